// Package app wires configuration into stores, scenarios and orchestrator
// factories for the command-line tools.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"treaty-bidding-lab/internal/agent"
	"treaty-bidding-lab/internal/config"
	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/evaluation"
	"treaty-bidding-lab/internal/market"
	"treaty-bidding-lab/internal/observability"
	"treaty-bidding-lab/internal/orchestrator"
	chstore "treaty-bidding-lab/internal/storage/clickhouse"
	"treaty-bidding-lab/internal/storage/memory"
	"treaty-bidding-lab/internal/storage/migrations"
	pgstore "treaty-bidding-lab/internal/storage/postgres"
	"treaty-bidding-lab/internal/stress"
)

// OpenStores creates the stores for the configured backend and applies
// pending migrations. The returned cleanup closes any connections.
//
// The postgres backend keeps episode records, failures and checkpoints in
// PostgreSQL. Summaries go to ClickHouse when a DSN is configured and stay in
// memory otherwise.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (orchestrator.Stores, func(), error) {
	if cfg.Backend == "memory" {
		return orchestrator.Stores{
			Episodes:    memory.NewEpisodeRecordStore(),
			Failures:    memory.NewEpisodeFailureStore(),
			Summaries:   memory.NewPortfolioSummaryStore(),
			Checkpoints: memory.NewCheckpointStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return orchestrator.Stores{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return orchestrator.Stores{}, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info().Strs("files", applied).Msg("applied postgres migrations")
	}

	stores := orchestrator.Stores{
		Episodes:    pgstore.NewEpisodeRecordStore(pool),
		Failures:    pgstore.NewEpisodeFailureStore(pool),
		Checkpoints: pgstore.NewCheckpointStore(pool),
	}
	cleanup := func() { pool.Close() }

	if cfg.ClickhouseDSN == "" {
		logger.Warn().Msg("no clickhouse dsn configured, portfolio summaries are kept in memory")
		stores.Summaries = memory.NewPortfolioSummaryStore()
		return stores, cleanup, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return orchestrator.Stores{}, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	stores.Summaries = chstore.NewPortfolioSummaryStore(conn)

	return stores, func() {
		conn.Close()
		pool.Close()
	}, nil
}

// LoadScenarios reads the scenario file, or returns the predefined scenarios
// when path is empty.
func LoadScenarios(path string) ([]domain.StressScenario, error) {
	if path == "" {
		return domain.DefaultStressScenarios(), nil
	}
	return stress.LoadScenariosFile(path)
}

// SelectScenarios returns the scenarios whose names are listed, in the
// order listed. An empty list selects all.
func SelectScenarios(all []domain.StressScenario, names []string) ([]domain.StressScenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]domain.StressScenario, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	out := make([]domain.StressScenario, 0, len(names))
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("%w: unknown scenario %q", stress.ErrScenarioMisconfigured, n)
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadCorpus reads the treaty corpus. A corpus is required for the sample and
// sequence sources.
func LoadCorpus(cfg config.SimulationConfig) ([]domain.Treaty, error) {
	if cfg.TreatiesFile == "" {
		if cfg.Source == orchestrator.SourceSample || cfg.Source == orchestrator.SourceSequence {
			return nil, fmt.Errorf("source %q requires simulation.treaties_file", cfg.Source)
		}
		return nil, nil
	}
	return market.LoadTreatiesFile(cfg.TreatiesFile)
}

// Deps are the runtime collaborators shared by every run.
type Deps struct {
	Stores    orchestrator.Stores
	Publisher orchestrator.Publisher
	Metrics   *observability.Metrics
	Logger    *zerolog.Logger
}

// FactoryConfig maps configuration onto the orchestrator factory settings
// for one invocation.
func FactoryConfig(cfg *config.Config, runID string, corpus []domain.Treaty, deps Deps) orchestrator.FactoryConfig {
	return orchestrator.FactoryConfig{
		RunID:    runID,
		Episodes: cfg.Simulation.Episodes,
		Agents: agent.Spec{
			Kind:    agent.Kind(cfg.Simulation.AgentKind),
			Count:   cfg.Simulation.Agents,
			Mode:    agent.Mode(cfg.Simulation.Mode),
			Epsilon: cfg.Simulation.Epsilon,
		},
		Evaluation: evaluation.Config{
			MinPremiumMargin: cfg.Evaluation.MinPremiumMargin,
			TailRiskFraction: cfg.Evaluation.TailRiskFraction,
		},
		Source:                 cfg.Simulation.Source,
		Corpus:                 corpus,
		MaxConsecutiveFailures: cfg.Simulation.MaxConsecutiveFailures,
		Benchmark:              cfg.Simulation.Benchmark,
		Stores:                 deps.Stores,
		Publisher:              deps.Publisher,
		Metrics:                deps.Metrics,
		Logger:                 deps.Logger,
	}
}
