// Package planner implements the static memory-planning pass: it assigns
// every eligible graph value a fixed (offset, size) region within one
// pre-allocated storage arena and rewrites producers to write in place
// into their regions.
package planner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/thiremani/memplan/alias"
	"github.com/thiremani/memplan/ir"
)

var (
	// ErrArenaExceeded means a computed region falls outside the declared
	// arena. The pass aborts rather than emit out-of-bounds allocations.
	ErrArenaExceeded = errors.New("allocation exceeds planned arena")
	// ErrMalformedPlan means a strategy produced an internally
	// inconsistent plan (missing, undersized or colliding regions).
	ErrMalformedPlan = errors.New("malformed allocation plan")
)

// Strategy selects the region-packing heuristic.
type Strategy int

const (
	// Naive performs no planning at all; the graph is left untouched.
	Naive Strategy = iota
	// GreedyBySize places values largest-first into the lowest fitting gap.
	GreedyBySize
	// LinearScan reuses expired regions in live-range start order.
	LinearScan
	// GreedyByBreadth places each out node's outputs together in
	// execution order.
	GreedyByBreadth
)

var strategyNames = map[Strategy]string{
	Naive:           "naive",
	GreedyBySize:    "greedy_by_size",
	LinearScan:      "linear_scan",
	GreedyByBreadth: "greedy_by_breadth",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps a strategy name to its Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", name)
}

// Strategies lists all packing strategies, excluding Naive.
func Strategies() []Strategy {
	return []Strategy{GreedyBySize, LinearScan, GreedyByBreadth}
}

// Plan is the immutable result of one planning run.
type Plan struct {
	Strategy  Strategy
	TotalSize uint64
	Regions   map[*ir.Value]Region
	Ranges    map[*ir.Value]LiveRange
}

type options struct {
	logger *slog.Logger
	rules  []alias.Rule
	debugW io.Writer
}

// Option configures a planning run.
type Option func(*options)

// WithLogger routes the pass's warnings to logger instead of
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAliasRules replaces the default may-alias rules.
func WithAliasRules(rules ...alias.Rule) Option {
	return func(o *options) { o.rules = rules }
}

// WithDebug dumps each managed value's live range and region to w,
// sorted by range start. Diagnostic only.
func WithDebug(w io.Writer) Option {
	return func(o *options) { o.debugW = w }
}

// PlanMemory runs the pass over g: liveness, managed-value selection,
// region allocation with the chosen strategy, then the in-place rewrite.
// The graph is mutated only after a complete plan has been validated; on
// error the graph is unchanged. The pass is stateless across calls and
// assumes the caller owns g exclusively for the duration.
func PlanMemory(g *ir.Graph, strat Strategy, opts ...Option) (*Plan, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	db := alias.Analyze(g, o.rules...)
	alive := db.AlwaysAlive()
	ranges := liveness(g, db, alive)
	outNodes, sizes := managedValues(g, alive, o.logger)

	managedRanges := make(map[*ir.Value]LiveRange, len(sizes))
	for v := range sizes {
		managedRanges[v] = ranges[v]
	}

	plan := &Plan{Strategy: strat, Ranges: managedRanges}
	if strat == Naive || len(sizes) == 0 {
		// Nothing to place: leave the graph untouched.
		plan.Regions = map[*ir.Value]Region{}
		return plan, nil
	}

	reqs := buildRequests(outNodes, sizes, managedRanges)
	switch strat {
	case GreedyBySize:
		plan.Regions = greedyBySize(reqs)
	case LinearScan:
		plan.Regions = linearScan(reqs)
	case GreedyByBreadth:
		plan.Regions = greedyByBreadth(reqs, outNodes)
	default:
		return nil, fmt.Errorf("unknown strategy %d", strat)
	}
	plan.TotalSize = totalSize(plan.Regions)

	if err := validatePlan(reqs, plan.Regions, plan.TotalSize); err != nil {
		return nil, fmt.Errorf("planning %s with %s: %w", g.Name, strat, err)
	}
	if o.debugW != nil {
		dumpPlan(o.debugW, plan)
	}

	storage := insertAllocStorage(g, plan.TotalSize)
	if err := insertAllocTensors(g, storage, plan.Regions); err != nil {
		return nil, fmt.Errorf("rewriting %s: %w", g.Name, err)
	}
	return plan, nil
}
