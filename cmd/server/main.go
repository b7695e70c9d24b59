// Package main provides the long-running simulation service:
// - Scheduler: a full stress sweep every server.interval
// - Feed: every recorded episode streamed over WebSocket at /feed
// - Observability: /health, /metrics (Prometheus), /status
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"treaty-bidding-lab/internal/app"
	"treaty-bidding-lab/internal/config"
	"treaty-bidding-lab/internal/feed"
	"treaty-bidding-lab/internal/logging"
	"treaty-bidding-lab/internal/observability"
)

func main() {
	fs := pflag.NewFlagSet("server", pflag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (default "+config.DefaultPath+" when present)")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.Duration("interval", time.Hour, "Interval between scheduled stress sweeps")
	fs.String("storage", "memory", "Storage backend: memory, postgres")
	fs.String("postgres-dsn", "", "PostgreSQL connection string")
	fs.String("clickhouse-dsn", "", "ClickHouse connection string")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "json", "Log format: console, json")
	_ = fs.Parse(os.Args[1:])

	path := *configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		}
	}

	cfg, err := config.Load(path, map[string]*pflag.Flag{
		"server.addr":            fs.Lookup("addr"),
		"server.interval":        fs.Lookup("interval"),
		"storage.backend":        fs.Lookup("storage"),
		"storage.postgres_dsn":   fs.Lookup("postgres-dsn"),
		"storage.clickhouse_dsn": fs.Lookup("clickhouse-dsn"),
		"log.level":              fs.Lookup("log-level"),
		"log.format":             fs.Lookup("log-format"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}
	logger = logger.With().Str("component", "server").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open stores")
	}
	defer cleanup()

	scenarios, err := app.LoadScenarios(cfg.Stress.ScenariosFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load scenarios")
	}
	corpus, err := app.LoadCorpus(cfg.Simulation)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load treaties")
	}

	metrics := observability.DefaultMetrics
	hub := feed.NewHub(feed.Options{Logger: &logger, Metrics: metrics})
	defer hub.Close()

	server := NewServer(ServerOptions{
		Config:    cfg,
		Scenarios: scenarios,
		Corpus:    corpus,
		Stores:    stores,
		Hub:       hub,
		Metrics:   metrics,
		Logger:    logger,
	})

	// Channel to signal completion
	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = server.Run(ctx)
	done <- err

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("shutdown complete")
}
