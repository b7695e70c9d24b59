package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"treaty-bidding-lab/internal/app"
	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/idhash"
	"treaty-bidding-lab/internal/orchestrator"
)

// runCmd runs a single simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation",
	Long: `Run a single simulation of N episodes and print the portfolio summary
as JSON. Without --scenario no stress overlay is applied.

Examples:
  simulate run
  simulate run --episodes 500 --seed 7 --output results.json
  simulate run --scenario capital_squeeze`,
	RunE: runSimulation,
}

var (
	runScenario        string
	runID              string
	runOutputFile      string
	runIncludeEpisodes bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runScenario, "scenario", "", "Apply the named stress scenario")
	addOutputFlags(runCmd)
}

// addOutputFlags registers the flags shared by run and stress.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (default: generated)")
	cmd.Flags().StringVar(&runOutputFile, "output", "", "Write JSON output to file (default: stdout)")
	cmd.Flags().BoolVar(&runIncludeEpisodes, "include-episodes", true, "Include per-episode records in the output")
}

// session holds the collaborators opened for one command.
type session struct {
	runID   string
	corpus  []domain.Treaty
	stores  orchestrator.Stores
	cleanup func()
}

func openSession(ctx context.Context) (*session, error) {
	corpus, err := app.LoadCorpus(cfg.Simulation)
	if err != nil {
		return nil, err
	}

	stores, cleanup, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	id := runID
	if id == "" {
		id = idhash.NewRunID()
	}
	return &session{runID: id, corpus: corpus, stores: stores, cleanup: cleanup}, nil
}

func (s *session) factoryConfig() orchestrator.FactoryConfig {
	return app.FactoryConfig(cfg, s.runID, s.corpus, app.Deps{Stores: s.stores, Logger: &logger})
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var scenario *domain.StressScenario
	if runScenario != "" {
		all, err := app.LoadScenarios(cfg.Stress.ScenariosFile)
		if err != nil {
			return err
		}
		selected, err := app.SelectScenarios(all, []string{runScenario})
		if err != nil {
			return err
		}
		scenario = &selected[0]
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.cleanup()

	seed := cfg.Simulation.Seed
	if scenario != nil {
		seed = orchestrator.ScenarioSeed(seed, scenario.Name)
	}

	orch, err := s.factoryConfig().Build(scenario, seed)
	if err != nil {
		return err
	}

	res, runErr := orch.Run(ctx)
	out := runOutput{
		RunID:     s.runID,
		Seed:      cfg.Simulation.Seed,
		Scenarios: []scenarioOutput{newScenarioOutput(orch.Scenario(), res, runErr, runIncludeEpisodes)},
	}
	if err := writeJSON(cmd.OutOrStdout(), runOutputFile, out); err != nil {
		return err
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, orchestrator.ErrTooManyFailures):
		return fmt.Errorf("run %s aborted: %w", s.runID, runErr)
	default:
		return runErr
	}
}
