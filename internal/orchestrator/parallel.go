package orchestrator

import (
	"context"
	"fmt"
	"hash/fnv"

	"golang.org/x/sync/errgroup"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/stress"
)

// Factory builds the orchestrator for one scenario. seed is the scenario's
// derived seed; implementations must not share mutable collaborators
// (environment, agents, random sources) between calls.
type Factory func(scenario domain.StressScenario, seed uint64) (*Orchestrator, error)

// ScenarioResult is the outcome of one scenario run.
type ScenarioResult struct {
	Scenario string
	Result   *RunResult
	Err      error
}

// ScenarioSeed derives a per-scenario seed from the base seed and the
// scenario name, independent of scheduling order.
func ScenarioSeed(base uint64, name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return base + h.Sum64()
}

// RunScenarios runs every scenario with at most parallelism runs in flight.
// Results are returned in input order. A scenario that aborts or fails is
// reported in its ScenarioResult and does not stop the others; only invalid
// scenarios, factory errors and cancellation fail the whole call.
func RunScenarios(ctx context.Context, scenarios []domain.StressScenario, factory Factory, baseSeed uint64, parallelism int) ([]ScenarioResult, error) {
	if err := stress.ValidateAll(scenarios); err != nil {
		return nil, err
	}
	if parallelism < 1 {
		parallelism = 1
	}

	// Build everything up front so a bad factory fails before any run starts.
	orchs := make([]*Orchestrator, len(scenarios))
	for i, s := range scenarios {
		o, err := factory(s, ScenarioSeed(baseSeed, s.Name))
		if err != nil {
			return nil, fmt.Errorf("build scenario %s: %w", s.Name, err)
		}
		orchs[i] = o
	}

	results := make([]ScenarioResult, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i := range orchs {
		g.Go(func() error {
			res, err := orchs[i].Run(gctx)
			results[i] = ScenarioResult{Scenario: scenarios[i].Name, Result: res, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
