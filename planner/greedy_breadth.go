package planner

import (
	"github.com/thiremani/memplan/ir"
)

// greedyByBreadth walks the out-variant nodes in execution order and
// places each node's outputs together, using the same lowest-gap rule as
// greedyBySize. Grouping by producing node keeps values that are alive at
// the same node boundary adjacent, which tends to bound the peak
// footprint per step. Like the other strategies it only approximates the
// minimal arena.
func greedyByBreadth(reqs []request, outNodes []*ir.Node) map[*ir.Value]Region {
	byValue := make(map[*ir.Value]request, len(reqs))
	for _, req := range reqs {
		byValue[req.val] = req
	}

	regions := make(map[*ir.Value]Region, len(reqs))
	var placed []placement
	for _, n := range outNodes {
		for _, out := range n.Outputs {
			req, ok := byValue[out]
			if !ok {
				continue
			}
			reg := Region{Offset: firstFit(placed, req.rng, req.size), Size: req.size}
			regions[req.val] = reg
			placed = append(placed, placement{req: req, reg: reg})
		}
	}
	return regions
}
