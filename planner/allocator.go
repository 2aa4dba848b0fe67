package planner

import (
	"fmt"
	"sort"

	"github.com/thiremani/memplan/ir"
)

// Region is a placed (offset, size) byte span within the arena.
type Region struct {
	Offset uint64
	Size   uint64
}

// Overlaps reports whether two regions share at least one byte.
func (r Region) Overlaps(o Region) bool {
	return r.Offset < o.Offset+o.Size && o.Offset < r.Offset+r.Size
}

func (r Region) String() string {
	return fmt.Sprintf("{offset=%d, size=%d}", r.Offset, r.Size)
}

// request is one managed value's demand on the allocator. idx is the
// discovery order (execution order of out nodes, then output position)
// and serves as the deterministic tie-break everywhere.
type request struct {
	val  *ir.Value
	size uint64
	rng  LiveRange
	idx  int
}

// buildRequests lists the allocator inputs in discovery order.
func buildRequests(outNodes []*ir.Node, sizes map[*ir.Value]uint64, ranges map[*ir.Value]LiveRange) []request {
	var reqs []request
	for _, n := range outNodes {
		for _, out := range n.Outputs {
			size, ok := sizes[out]
			if !ok {
				continue
			}
			reqs = append(reqs, request{val: out, size: size, rng: ranges[out], idx: len(reqs)})
		}
	}
	return reqs
}

// placement pairs a served request with its region.
type placement struct {
	req request
	reg Region
}

// firstFit places size bytes against the already-placed regions whose
// owners' live ranges overlap rng. The regions are scanned in ascending
// offset order and the lowest gap large enough wins, so equal gaps are
// broken toward the lowest offset. When no gap fits, the request goes
// past the current high-water mark of the conflicting regions.
func firstFit(placed []placement, rng LiveRange, size uint64) uint64 {
	var conflicts []Region
	for _, p := range placed {
		if p.req.rng.Overlaps(rng) {
			conflicts = append(conflicts, p.reg)
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Offset != conflicts[j].Offset {
			return conflicts[i].Offset < conflicts[j].Offset
		}
		return conflicts[i].Size < conflicts[j].Size
	})
	var cursor uint64
	for _, c := range conflicts {
		if c.Offset >= cursor+size {
			break
		}
		if end := c.Offset + c.Size; end > cursor {
			cursor = end
		}
	}
	return cursor
}

// totalSize returns the arena size implied by a plan: the maximum
// offset+size over all regions.
func totalSize(regions map[*ir.Value]Region) uint64 {
	var total uint64
	for _, r := range regions {
		if end := r.Offset + r.Size; end > total {
			total = end
		}
	}
	return total
}

// validatePlan checks the whole plan before any graph mutation: every
// request served, capacity respected, and no byte overlap between values
// whose live ranges overlap. A failure here means a broken strategy, not
// a bad graph.
func validatePlan(reqs []request, regions map[*ir.Value]Region, total uint64) error {
	for _, req := range reqs {
		reg, ok := regions[req.val]
		if !ok {
			return fmt.Errorf("%w: no region for %s", ErrMalformedPlan, req.val.Name)
		}
		if reg.Size < req.size {
			return fmt.Errorf("%w: region %s smaller than %d bytes for %s",
				ErrMalformedPlan, reg, req.size, req.val.Name)
		}
		if reg.Offset+reg.Size > total {
			return fmt.Errorf("%w: region %s for %s exceeds arena of %d bytes",
				ErrArenaExceeded, reg, req.val.Name, total)
		}
	}
	for i := 0; i < len(reqs); i++ {
		for j := i + 1; j < len(reqs); j++ {
			if !reqs[i].rng.Overlaps(reqs[j].rng) {
				continue
			}
			if regions[reqs[i].val].Overlaps(regions[reqs[j].val]) {
				return fmt.Errorf("%w: %s and %s are live together but share bytes",
					ErrMalformedPlan, reqs[i].val.Name, reqs[j].val.Name)
			}
		}
	}
	return nil
}
