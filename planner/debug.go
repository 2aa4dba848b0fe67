package planner

import (
	"fmt"
	"io"
	"sort"

	"github.com/thiremani/memplan/ir"
)

// dumpPlan writes one line per managed value, sorted by live-range start,
// then end, then name. Output is diagnostic only and not part of the
// pass's contract.
func dumpPlan(w io.Writer, plan *Plan) {
	vals := make([]*ir.Value, 0, len(plan.Regions))
	for v := range plan.Regions {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool {
		ri, rj := plan.Ranges[vals[i]], plan.Ranges[vals[j]]
		if ri.Begin != rj.Begin {
			return ri.Begin < rj.Begin
		}
		if ri.End != rj.End {
			return ri.End < rj.End
		}
		return vals[i].Name < vals[j].Name
	})
	for _, v := range vals {
		r := plan.Ranges[v]
		fmt.Fprintf(w, "%s: [%d, %d] %s\n", v.Name, r.Begin, r.End, plan.Regions[v])
	}
}
