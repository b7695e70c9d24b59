package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"treaty-bidding-lab/internal/app"
	"treaty-bidding-lab/internal/orchestrator"
)

// stressCmd runs one independent simulation per stress scenario.
var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run the simulation under every stress scenario",
	Long: `Run one independent simulation per stress scenario, up to --parallelism
at a time. Each scenario gets its own agents, environment and random source
seeded from --seed and the scenario name, so results do not depend on
scheduling.

Examples:
  simulate stress
  simulate stress --scenarios baseline,catastrophe_shock --parallelism 2
  simulate stress --scenarios-file configs/scenarios.yaml --output stress.json`,
	RunE: runStress,
}

var stressNames []string

func init() {
	rootCmd.AddCommand(stressCmd)

	stressCmd.Flags().StringSliceVar(&stressNames, "scenarios", nil, "Comma-separated scenario names (default: all)")
	addOutputFlags(stressCmd)
}

func runStress(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	all, err := app.LoadScenarios(cfg.Stress.ScenariosFile)
	if err != nil {
		return err
	}
	scenarios, err := app.SelectScenarios(all, stressNames)
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.cleanup()

	logger.Info().
		Str("run_id", s.runID).
		Int("scenarios", len(scenarios)).
		Int("parallelism", cfg.Stress.Parallelism).
		Msg("starting stress sweep")

	results, runErr := orchestrator.RunScenarios(ctx, scenarios,
		orchestrator.NewFactory(s.factoryConfig()), cfg.Simulation.Seed, cfg.Stress.Parallelism)

	out := runOutput{RunID: s.runID, Seed: cfg.Simulation.Seed}
	aborted := 0
	for _, r := range results {
		out.Scenarios = append(out.Scenarios, newScenarioOutput(r.Scenario, r.Result, r.Err, runIncludeEpisodes))
		if errors.Is(r.Err, orchestrator.ErrTooManyFailures) {
			aborted++
		}
	}
	if err := writeJSON(cmd.OutOrStdout(), runOutputFile, out); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if aborted > 0 {
		return fmt.Errorf("%d of %d scenarios aborted: %w", aborted, len(results), orchestrator.ErrTooManyFailures)
	}
	return nil
}
