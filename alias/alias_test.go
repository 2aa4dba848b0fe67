package alias

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thiremani/memplan/ir"
)

func mustParse(t *testing.T, name, src string) *ir.Graph {
	t.Helper()
	g, errs := ir.Parse(name, src)
	require.Empty(t, errs)
	return g
}

func TestViewAliasing(t *testing.T) {
	g := mustParse(t, "views", `graph(%a : f32[4,4]) -> (%out)
%t1 = aten.relu(%a) : f32[4,4]
%v1 = aten.view(%t1) : f32[16]
%v2 = aten.reshape(%v1) : f32[2,8]
%out = aten.tanh(%v2) : f32[2,8]`)

	db := Analyze(g)
	t1 := g.Nodes()[0].Outputs[0]
	v1 := g.Nodes()[1].Outputs[0]
	v2 := g.Nodes()[2].Outputs[0]
	out := g.Nodes()[3].Outputs[0]

	// The whole view chain shares storage.
	require.True(t, db.MayAlias(t1, v1))
	require.True(t, db.MayAlias(t1, v2))
	require.True(t, db.MayAlias(v1, v2))
	// tanh allocates fresh storage.
	require.False(t, db.MayAlias(out, t1))

	set := db.Set(t1)
	require.True(t, set.Contains(t1.ID()))
	require.True(t, set.Contains(v2.ID()))
	require.EqualValues(t, 3, set.GetCardinality())
}

func TestAlwaysAliveFolding(t *testing.T) {
	g := mustParse(t, "fold", `graph(%a : f32[4]) -> (%out)
%t1 = aten.relu(%a) : f32[4]
%t2 = aten.tanh(%t1) : f32[4]
%out = aten.view(%t2) : f32[4]`)

	db := Analyze(g)
	alive := db.AlwaysAlive()

	a := g.Inputs[0]
	t1 := g.Nodes()[0].Outputs[0]
	t2 := g.Nodes()[1].Outputs[0]
	out := g.Outputs[0]

	require.True(t, alive.Contains(a.ID()))
	require.True(t, alive.Contains(out.ID()))
	// %t2 aliases the graph output through the view, so it is folded in.
	require.True(t, alive.Contains(t2.ID()))
	require.False(t, alive.Contains(t1.ID()))
}

func TestCustomRule(t *testing.T) {
	g := mustParse(t, "custom", `graph(%a : f32[4]) -> (%out)
%t1 = aten.relu(%a) : f32[4]
%out = aten.tanh(%t1) : f32[4]`)

	// A rule that aliases every output with every input.
	all := func(n *ir.Node) [][2]*ir.Value {
		var pairs [][2]*ir.Value
		for _, out := range n.Outputs {
			for _, in := range n.Inputs {
				pairs = append(pairs, [2]*ir.Value{out, in})
			}
		}
		return pairs
	}

	db := Analyze(g, all)
	alive := db.AlwaysAlive()
	// Everything aliases the input, so everything is always alive.
	for _, n := range g.Nodes() {
		require.True(t, alive.Contains(n.Outputs[0].ID()))
	}
}

func TestNoAliasing(t *testing.T) {
	g := mustParse(t, "none", `graph(%a : f32[4]) -> (%out)
%t1 = aten.relu(%a) : f32[4]
%out = aten.tanh(%t1) : f32[4]`)

	db := Analyze(g)
	t1 := g.Nodes()[0].Outputs[0]
	require.EqualValues(t, 1, db.Set(t1).GetCardinality())
	require.True(t, db.MayAlias(t1, t1))
}
