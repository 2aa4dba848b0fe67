package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T) *Graph {
	t.Helper()
	src := `graph(%a : f32[2,2]) -> (%out)
%t1 = aten.relu(%a) : f32[2,2]
%t2 = aten.tanh(%t1) : f32[2,2]
%out = aten.sigmoid(%t2) : f32[2,2]`
	g, errs := Parse("chain", src)
	require.Empty(t, errs)
	return g
}

func TestInsertBefore(t *testing.T) {
	g := buildChain(t)
	tanh := g.Nodes()[1]

	alloc := g.Create(OpAllocateTensor, 1)
	g.InsertBefore(alloc, tanh)

	require.Equal(t, alloc, g.Nodes()[1])
	require.Equal(t, tanh, g.Nodes()[2])
	require.Equal(t, 1, g.Index(alloc))
	require.Equal(t, 3, g.Index(g.Nodes()[3]))
}

func TestPrepend(t *testing.T) {
	g := buildChain(t)
	storage := g.Create(OpAllocateStorage, 1)
	g.Prepend(storage)
	require.Equal(t, storage, g.Nodes()[0])
	require.Len(t, g.Nodes(), 4)
}

func TestCreateAssignsOutputs(t *testing.T) {
	g := NewGraph("create")
	n := g.Create("aten.add", 2)
	require.Len(t, n.Outputs, 2)
	require.Equal(t, n, n.Outputs[0].Producer())
	require.NotEqual(t, n.Outputs[0].ID(), n.Outputs[1].ID())
	require.Equal(t, n.Outputs[0], g.ValueByID(n.Outputs[0].ID()))
}

func TestHasOutVariant(t *testing.T) {
	require.True(t, HasOutVariant("aten.add"))
	require.True(t, HasOutVariant("aten.relu"))
	require.True(t, HasOutVariant("aten.nonzero"))
	require.False(t, HasOutVariant("aten.view"))
	require.False(t, HasOutVariant("prim.ListConstruct"))
	require.False(t, HasOutVariant("aten.unknown_op"))
}

func TestViewAndContainerOps(t *testing.T) {
	require.True(t, IsViewOp("aten.reshape"))
	require.False(t, IsViewOp("aten.add"))
	require.True(t, IsContainerOp("prim.TupleConstruct"))
	require.True(t, IsContainerOp("aten.split"))
	require.False(t, IsContainerOp("aten.relu"))
}

func TestPickDevice(t *testing.T) {
	g := buildChain(t)
	// No annotations at all.
	_, ok := PickDevice(g)
	require.False(t, ok)

	g.Nodes()[0].SetDevice(CUDA)
	g.Nodes()[1].SetDevice(CUDA)
	g.Nodes()[2].SetDevice(CPU)
	dev, ok := PickDevice(g)
	require.True(t, ok)
	require.Equal(t, CUDA, dev)

	// A tie is treated as undetermined.
	tied := buildChain(t)
	tied.Nodes()[0].SetDevice(CUDA)
	tied.Nodes()[1].SetDevice(CPU)
	_, ok = PickDevice(tied)
	require.False(t, ok)
}
