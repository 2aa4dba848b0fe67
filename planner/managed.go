package planner

import (
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/thiremani/memplan/ir"
)

// computeStorageSize returns the dense byte size of v's tensor, or false
// when the value is not tensor-typed or its shape is not fully known.
func computeStorageSize(v *ir.Value, logger *slog.Logger) (uint64, bool) {
	t := v.Type
	if t == nil {
		return 0, false
	}
	size, ok := t.StorageSize()
	if !ok {
		logger.Warn("output has no concrete sizes", "value", v.Name, "type", t.String())
		return 0, false
	}
	return size, true
}

// alreadyRewritten reports whether n was produced by a previous planning
// run: it is tagged as the out variant or already consumes an allocation.
func alreadyRewritten(n *ir.Node) bool {
	if n.Variant == ir.VariantOut {
		return true
	}
	for _, in := range n.Inputs {
		if p := in.Producer(); p != nil && p.Op == ir.OpAllocateTensor {
			return true
		}
	}
	return false
}

// managedValues selects the values eligible for arena placement. It
// returns the out-variant-capable nodes in execution order and the byte
// size of each managed value. Values whose size cannot be computed are
// leaked: left on their default allocating operator, with a warning
// unless they are bounded container values.
func managedValues(g *ir.Graph, alive *roaring.Bitmap, logger *slog.Logger) ([]*ir.Node, map[*ir.Value]uint64) {
	managed := make(map[*ir.Value]uint64)
	var outNodes []*ir.Node

	for _, n := range g.Nodes() {
		if !ir.HasOutVariant(n.Op) || alreadyRewritten(n) {
			continue
		}
		outNodes = append(outNodes, n)
		for _, out := range n.Outputs {
			if alive.Contains(out.ID()) {
				continue
			}
			if size, ok := computeStorageSize(out, logger); ok && size > 0 {
				managed[out] = size
			} else if ir.IsContainerOp(n.Op) {
				// Bounded container: safe to leave unmanaged, no noise.
				continue
			} else {
				logger.Warn("not handling unsupported value", "value", out.Name, "op", n.Op)
			}
		}
	}
	return outNodes, managed
}
