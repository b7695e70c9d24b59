// Package main provides the simulate CLI for running treaty-bidding
// simulations, stress sweeps and governance reviews.
//
// Usage:
//
//	simulate run --episodes 200 --seed 7
//	simulate stress --scenarios baseline,capital_squeeze --parallelism 2
//	simulate review --input results.json --format markdown
//	simulate scenarios
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"treaty-bidding-lab/internal/config"
	"treaty-bidding-lab/internal/logging"
)

var (
	configPath string

	cfg    *config.Config
	logger zerolog.Logger
)

// rootCmd is the base command for the simulate CLI.
var rootCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Treaty-bidding market simulation",
	Long: `simulate runs competing bidding agents against reinsurance treaties,
scores each winning bid for profit, tail risk and compliance, and summarizes
the results per stress scenario.

Configuration is read from --config, then TREATYLAB_* environment variables,
then command-line flags.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// configFlags maps config keys to persistent flag names.
var configFlags = map[string]string{
	"simulation.episodes":                 "episodes",
	"simulation.agents":                   "agents",
	"simulation.agent_kind":               "agent-kind",
	"simulation.mode":                     "mode",
	"simulation.epsilon":                  "epsilon",
	"simulation.seed":                     "seed",
	"simulation.max_consecutive_failures": "max-failures",
	"simulation.source":                   "source",
	"simulation.treaties_file":            "treaties",
	"simulation.benchmark":                "benchmark",
	"stress.scenarios_file":               "scenarios-file",
	"stress.parallelism":                  "parallelism",
	"storage.backend":                     "storage",
	"storage.postgres_dsn":                "postgres-dsn",
	"storage.clickhouse_dsn":              "clickhouse-dsn",
	"log.level":                           "log-level",
	"log.format":                          "log-format",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML config (default "+config.DefaultPath+" when present)")

	pf.Int("episodes", 100, "Episodes per run")
	pf.Int("agents", 3, "Number of bidding agents")
	pf.String("agent-kind", "mixed", "Agent population: heuristic, baseline, mixed")
	pf.String("mode", "train", "Agent mode: demo, train")
	pf.Float64("epsilon", 0.1, "Exploration rate in train mode")
	pf.Uint64("seed", 42, "Base random seed")
	pf.Int("max-failures", 10, "Abort after this many consecutive episode failures (0 disables)")
	pf.String("source", "synthetic", "Treaty source: sample, sequence, synthetic")
	pf.String("treaties", "", "JSON treaty corpus for sample/sequence sources")
	pf.Bool("benchmark", false, "Evaluate an actuarial baseline bid alongside every episode")
	pf.String("scenarios-file", "", "YAML stress scenarios (default: predefined set)")
	pf.Int("parallelism", 4, "Concurrent scenario runs")
	pf.String("storage", "memory", "Storage backend: memory, postgres")
	pf.String("postgres-dsn", "", "PostgreSQL connection string")
	pf.String("clickhouse-dsn", "", "ClickHouse connection string")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "console", "Log format: console, json")
}

// loadConfig resolves configuration and the logger before any subcommand runs.
func loadConfig(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		}
	}

	flags := make(map[string]*pflag.Flag, len(configFlags))
	for key, name := range configFlags {
		flags[key] = cmd.Flags().Lookup(name)
	}

	c, err := config.Load(path, flags)
	if err != nil {
		return err
	}

	l, err := logging.New(logging.Options{Level: c.Log.Level, Format: c.Log.Format, Output: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}

	cfg = c
	logger = l
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
