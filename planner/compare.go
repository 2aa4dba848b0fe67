package planner

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/thiremani/memplan/ir"
)

// Result reports the outcome of planning one graph with one strategy.
type Result struct {
	Strategy  Strategy
	TotalSize uint64
	Managed   int
}

// CompareStrategies plans the same graph source with every packing
// strategy and reports the arena size each one reaches. Each strategy
// gets its own parse of src, since planning mutates the graph; the runs
// are independent and execute concurrently.
func CompareStrategies(name, src string, opts ...Option) ([]Result, error) {
	strats := Strategies()
	results := make([]Result, len(strats))

	var grp errgroup.Group
	for i, strat := range strats {
		i, strat := i, strat
		grp.Go(func() error {
			g, perrs := ir.Parse(name, src)
			if len(perrs) > 0 {
				return fmt.Errorf("parsing %s: %w", name, perrs[0])
			}
			plan, err := PlanMemory(g, strat, opts...)
			if err != nil {
				return err
			}
			results[i] = Result{
				Strategy:  strat,
				TotalSize: plan.TotalSize,
				Managed:   len(plan.Regions),
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
