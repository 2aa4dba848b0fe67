package planner

import (
	"fmt"
	"sort"

	"github.com/thiremani/memplan/ir"
)

// insertAllocStorage puts the single arena-allocation instruction at the
// head of the graph, carrying the total byte size and the graph's
// dominant device (CPU when none is determined).
func insertAllocStorage(g *ir.Graph, total uint64) *ir.Node {
	storage := g.Create(ir.OpAllocateStorage, 1)
	storage.SetI(ir.AttrTotalSize, int64(total))
	dev, ok := ir.PickDevice(g)
	if !ok {
		dev = ir.CPU
	}
	storage.SetI(ir.AttrDevice, int64(dev))
	g.Prepend(storage)
	return storage
}

// insertAllocTensors wires one allocation instruction in front of every
// managed value's producer and appends its result as a trailing input of
// the producer, switching the producer to its out-writing overload. The
// producer's overload choice is recorded explicitly in the Variant tag so
// later passes need not re-derive it from the input signature.
func insertAllocTensors(g *ir.Graph, storage *ir.Node, regions map[*ir.Value]Region) error {
	total := uint64(storage.I(ir.AttrTotalSize))

	// Deterministic insertion order: by producer position, then output
	// position within the producer.
	vals := make([]*ir.Value, 0, len(regions))
	for v := range regions {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool {
		pi, pj := g.Index(vals[i].Producer()), g.Index(vals[j].Producer())
		if pi != pj {
			return pi < pj
		}
		return vals[i].ID() < vals[j].ID()
	})

	for _, v := range vals {
		reg := regions[v]
		if reg.Offset+reg.Size > total {
			// validatePlan runs before any mutation, so reaching this is
			// a programming error in the pass itself.
			return fmt.Errorf("%w: allocation %s for %s exceeds planned arena of %d bytes",
				ErrArenaExceeded, reg, v.Name, total)
		}
		node := v.Producer()
		alloc := g.Create(ir.OpAllocateTensor, 1)
		alloc.AddInput(storage.Outputs[0])
		alloc.SetI(ir.AttrSize, int64(reg.Size))
		alloc.SetI(ir.AttrOffset, int64(reg.Offset))
		alloc.SetIs(ir.AttrSizes, v.Type.ConcreteSizes())
		alloc.SetIs(ir.AttrStride, v.Type.ConcreteStrides())
		alloc.SetI(ir.AttrDevice, storage.I(ir.AttrDevice))
		alloc.SetI(ir.AttrDtype, int64(v.Type.Elem))
		g.InsertBefore(alloc, node)

		node.AddInput(alloc.Outputs[0])
		node.Variant = ir.VariantOut
	}
	return nil
}
