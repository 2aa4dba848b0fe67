package planner

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thiremani/memplan/ir"
)

const chainSrc = `graph(%a : f32[2,2], %b : f32[2,2]) -> (%out)
%t1 = aten.add(%a, %b) : f32[2,2]
%t2 = aten.relu(%t1) : f32[2,2]
%t3 = aten.mul(%t2, %b) : f32[2,2]
%out = aten.tanh(%t3) : f32[2,2]`

func TestNaiveLeavesGraphUntouched(t *testing.T) {
	g := mustParse(t, "chain", chainSrc)
	before := g.String()

	plan, err := PlanMemory(g, Naive)
	require.NoError(t, err)
	require.Empty(t, plan.Regions)
	require.Zero(t, plan.TotalSize)
	require.Equal(t, before, g.String())
}

func TestPlanMemoryRewritesChain(t *testing.T) {
	for _, strat := range Strategies() {
		t.Run(strat.String(), func(t *testing.T) {
			g := mustParse(t, "chain", chainSrc)
			plan, err := PlanMemory(g, strat)
			require.NoError(t, err)

			// %t1, %t2, %t3 are managed; the chain reuses one slot.
			require.Len(t, plan.Regions, 3)
			require.Equal(t, uint64(32), plan.TotalSize)

			nodes := g.Nodes()
			require.Len(t, nodes, 4+1+3)

			storage := nodes[0]
			require.Equal(t, ir.OpAllocateStorage, storage.Op)
			require.Equal(t, int64(32), storage.I(ir.AttrTotalSize))
			require.Equal(t, int64(ir.CPU), storage.I(ir.AttrDevice))

			allocs := 0
			for _, n := range nodes[1:] {
				if n.Op != ir.OpAllocateTensor {
					continue
				}
				allocs++
				// Every allocation draws from the single storage node.
				require.Equal(t, storage, n.Inputs[0].Producer())
				require.LessOrEqual(t, n.I(ir.AttrOffset)+n.I(ir.AttrSize), storage.I(ir.AttrTotalSize))
				require.Equal(t, []int64{2, 2}, n.Is(ir.AttrSizes))
				require.Equal(t, []int64{2, 1}, n.Is(ir.AttrStride))
				require.Equal(t, int64(ir.F32), n.I(ir.AttrDtype))
			}
			require.Equal(t, 3, allocs)

			for v, reg := range plan.Regions {
				prod := v.Producer()
				require.Equal(t, ir.VariantOut, prod.Variant)
				// The trailing input is the allocation result.
				last := prod.Inputs[len(prod.Inputs)-1]
				alloc := last.Producer()
				require.Equal(t, ir.OpAllocateTensor, alloc.Op)
				require.Equal(t, int64(reg.Offset), alloc.I(ir.AttrOffset))
				require.Equal(t, int64(reg.Size), alloc.I(ir.AttrSize))
				// The allocation executes before the producer.
				require.Less(t, g.Index(alloc), g.Index(prod))
			}
		})
	}
}

func TestIdempotentSelection(t *testing.T) {
	g := mustParse(t, "chain", chainSrc)
	_, err := PlanMemory(g, GreedyBySize)
	require.NoError(t, err)
	after := g.String()

	// A second run finds every producer already rewritten and does
	// nothing.
	plan, err := PlanMemory(g, GreedyBySize)
	require.NoError(t, err)
	require.Empty(t, plan.Regions)
	require.Equal(t, after, g.String())
}

func TestLeakedValuesPassThrough(t *testing.T) {
	src := `graph(%a : f32[4,4]) -> (%out)
%t1 = aten.relu(%a) : f32[4,4]
%n = aten.nonzero(%t1) : i64
%parts = aten.split(%t1)
%out = aten.tanh(%t1) : f32[4,4]`
	g := mustParse(t, "leaky", src)

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	plan, err := PlanMemory(g, GreedyBySize, WithLogger(logger))
	require.NoError(t, err)

	// Only %t1 is managed; the dynamic and container outputs are leaked.
	require.Len(t, plan.Regions, 1)
	for v := range plan.Regions {
		require.Equal(t, "%t1", v.Name)
	}

	nonzero := findOp(t, g, "aten.nonzero")
	require.Len(t, nonzero.Inputs, 1)
	require.Equal(t, ir.VariantDefault, nonzero.Variant)

	split := findOp(t, g, "aten.split")
	require.Len(t, split.Inputs, 1)
	require.Equal(t, ir.VariantDefault, split.Variant)

	// The unsupported value warns; the bounded container stays quiet.
	require.Contains(t, logBuf.String(), "unsupported value")
	require.Contains(t, logBuf.String(), "%n")
	require.NotContains(t, logBuf.String(), "%parts")
}

func findOp(t *testing.T, g *ir.Graph, op string) *ir.Node {
	t.Helper()
	for _, n := range g.Nodes() {
		if n.Op == op {
			return n
		}
	}
	t.Fatalf("no %s node in graph", op)
	return nil
}

func TestDeviceInference(t *testing.T) {
	src := `graph(%a : f32[2,2]) -> (%out)
%t1 = aten.relu(%a) : f32[2,2] @cuda
%t2 = aten.tanh(%t1) : f32[2,2] @cuda
%out = aten.sigmoid(%t2) : f32[2,2]`
	g := mustParse(t, "cuda", src)

	_, err := PlanMemory(g, LinearScan)
	require.NoError(t, err)

	storage := g.Nodes()[0]
	require.Equal(t, ir.OpAllocateStorage, storage.Op)
	require.Equal(t, int64(ir.CUDA), storage.I(ir.AttrDevice))
}

func TestPlanDeterminism(t *testing.T) {
	for _, strat := range Strategies() {
		t.Run(strat.String(), func(t *testing.T) {
			offsets := func() map[string]uint64 {
				g := mustParse(t, "chain", chainSrc)
				plan, err := PlanMemory(g, strat)
				require.NoError(t, err)
				m := make(map[string]uint64, len(plan.Regions))
				for v, reg := range plan.Regions {
					m[v.Name] = reg.Offset
				}
				return m
			}
			first := offsets()
			for i := 0; i < 5; i++ {
				require.Equal(t, first, offsets())
			}
		})
	}
}

func TestDebugDump(t *testing.T) {
	g := mustParse(t, "chain", chainSrc)
	var buf bytes.Buffer
	_, err := PlanMemory(g, GreedyBySize, WithDebug(&buf))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	// Sorted by live-range start.
	require.True(t, strings.HasPrefix(lines[0], "%t1: [0, 1]"), "got %q", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "%t2: [1, 2]"), "got %q", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "%t3: [2, 3]"), "got %q", lines[2])
}

func TestParseStrategy(t *testing.T) {
	for _, strat := range append(Strategies(), Naive) {
		got, err := ParseStrategy(strat.String())
		require.NoError(t, err)
		require.Equal(t, strat, got)
	}
	_, err := ParseStrategy("optimal")
	require.Error(t, err)
}

func TestPlannedGraphPrints(t *testing.T) {
	g := mustParse(t, "chain", chainSrc)
	_, err := PlanMemory(g, GreedyBySize)
	require.NoError(t, err)

	printed := g.String()
	require.Contains(t, printed, "prim.AllocateStorage[device=0, total_size=32]()")
	require.Contains(t, printed, "prim.AllocateTensor[")
	require.Contains(t, printed, "offset=")
}
