package planner

import (
	"sort"

	"github.com/thiremani/memplan/ir"
)

// linearScan adapts register-allocation linear scan to byte offsets:
// requests are served in ascending live-range start order; when a served
// value's range expires its region returns to a free list, and later
// requests reuse the best-fitting free region before extending the arena.
// Adjacent free regions are not coalesced, so the packing is a heuristic,
// not an optimum.
func linearScan(reqs []request) map[*ir.Value]Region {
	order := append([]request(nil), reqs...)
	sort.Slice(order, func(i, j int) bool {
		if order[i].rng.Begin != order[j].rng.Begin {
			return order[i].rng.Begin < order[j].rng.Begin
		}
		if order[i].rng.End != order[j].rng.End {
			return order[i].rng.End < order[j].rng.End
		}
		return order[i].idx < order[j].idx
	})

	regions := make(map[*ir.Value]Region, len(order))
	var active []placement
	var free []Region
	var highWater uint64

	for _, req := range order {
		// Expire actives whose range ended before this request begins;
		// their regions become reusable.
		keep := active[:0]
		for _, a := range active {
			if a.req.rng.End < req.rng.Begin {
				free = append(free, a.reg)
			} else {
				keep = append(keep, a)
			}
		}
		active = keep

		reg, ok := takeBestFit(&free, req.size)
		if !ok {
			reg = Region{Offset: highWater, Size: req.size}
		}
		if end := reg.Offset + reg.Size; end > highWater {
			highWater = end
		}
		regions[req.val] = reg
		active = append(active, placement{req: req, reg: reg})
	}
	return regions
}

// takeBestFit removes and returns the smallest free region of at least
// size bytes, ties broken toward the lowest offset. A larger region is
// split and its tail returned to the free list.
func takeBestFit(free *[]Region, size uint64) (Region, bool) {
	best := -1
	for i, r := range *free {
		if r.Size < size {
			continue
		}
		if best < 0 ||
			r.Size < (*free)[best].Size ||
			(r.Size == (*free)[best].Size && r.Offset < (*free)[best].Offset) {
			best = i
		}
	}
	if best < 0 {
		return Region{}, false
	}
	r := (*free)[best]
	*free = append((*free)[:best], (*free)[best+1:]...)
	if r.Size > size {
		*free = append(*free, Region{Offset: r.Offset + size, Size: r.Size - size})
	}
	return Region{Offset: r.Offset, Size: size}, true
}
