package planner

import (
	"sort"

	"github.com/thiremani/memplan/ir"
)

// greedyBySize serves requests in descending size order, placing each at
// the lowest offset that does not collide with an already-placed,
// live-range-overlapping region. Large values are placed first so small
// ones can fill the gaps between them. This is a packing heuristic; the
// resulting arena is not guaranteed minimal.
func greedyBySize(reqs []request) map[*ir.Value]Region {
	order := append([]request(nil), reqs...)
	sort.Slice(order, func(i, j int) bool {
		if order[i].size != order[j].size {
			return order[i].size > order[j].size
		}
		return order[i].idx < order[j].idx
	})

	regions := make(map[*ir.Value]Region, len(order))
	var placed []placement
	for _, req := range order {
		reg := Region{Offset: firstFit(placed, req.rng, req.size), Size: req.size}
		regions[req.val] = reg
		placed = append(placed, placement{req: req, reg: reg})
	}
	return regions
}
