package planner

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/thiremani/memplan/alias"
	"github.com/thiremani/memplan/ir"
)

// LiveRange is the closed interval [Begin, End] of instruction indices
// during which a value's storage must remain valid.
type LiveRange struct {
	Begin int
	End   int
}

// Disjoint reports whether two ranges never coexist. Two regions may only
// share bytes when their owners' ranges are disjoint.
func (r LiveRange) Disjoint(o LiveRange) bool {
	return r.End < o.Begin || o.End < r.Begin
}

// Overlaps is the negation of Disjoint.
func (r LiveRange) Overlaps(o LiveRange) bool {
	return !r.Disjoint(o)
}

// liveness computes a LiveRange for every node-produced value not in the
// always-alive set. A value's own interval runs from its producing
// instruction to its last consumer; the interval is then widened to the
// envelope of its whole may-alias class, so a view extends the life of
// the storage it reads.
func liveness(g *ir.Graph, db *alias.DB, alive *roaring.Bitmap) map[*ir.Value]LiveRange {
	index := make(map[*ir.Node]int, len(g.Nodes()))
	for i, n := range g.Nodes() {
		index[n] = i
	}

	own := make(map[uint32]LiveRange)
	for _, n := range g.Nodes() {
		for _, out := range n.Outputs {
			r := LiveRange{Begin: index[n], End: index[n]}
			for _, use := range out.Uses() {
				if at, ok := index[use]; ok && at > r.End {
					r.End = at
				}
			}
			own[out.ID()] = r
		}
	}

	ranges := make(map[*ir.Value]LiveRange)
	for _, n := range g.Nodes() {
		for _, out := range n.Outputs {
			if alive.Contains(out.ID()) {
				continue
			}
			r := own[out.ID()]
			it := db.Set(out).Iterator()
			for it.HasNext() {
				id := it.Next()
				ar, ok := own[id]
				if !ok {
					// Alias class member with no producing node, e.g.
					// a graph input: unbounded, treat as always alive.
					continue
				}
				if ar.Begin < r.Begin {
					r.Begin = ar.Begin
				}
				if ar.End > r.End {
					r.End = ar.End
				}
			}
			ranges[out] = r
		}
	}
	return ranges
}
