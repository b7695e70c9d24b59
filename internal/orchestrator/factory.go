package orchestrator

import (
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"treaty-bidding-lab/internal/agent"
	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/evaluation"
	"treaty-bidding-lab/internal/market"
	"treaty-bidding-lab/internal/observability"
	"treaty-bidding-lab/internal/stress"
)

// Source kinds accepted by FactoryConfig.Source.
const (
	SourceSample    = "sample"
	SourceSequence  = "sequence"
	SourceSynthetic = "synthetic"
)

// Stream identifiers for the PCG generators derived from a run seed.
const (
	streamSource    = 0x5eed_0001
	streamApplier   = 0x5eed_0002
	streamBenchmark = 0x5eed_0003
)

// BenchmarkAgentID identifies the actuarial benchmark in episode records.
const BenchmarkAgentID = "benchmark"

// FactoryConfig holds everything shared by the runs of one invocation.
type FactoryConfig struct {
	RunID    string
	Episodes int

	Agents     agent.Spec
	Evaluation evaluation.Config

	Source string // sample, sequence or synthetic
	Corpus []domain.Treaty

	MaxConsecutiveFailures int
	References             []string

	// Benchmark adds the actuarial baseline bidder to every run.
	Benchmark bool

	Stores    Stores
	Publisher Publisher
	Metrics   *observability.Metrics
	Logger    *zerolog.Logger
}

// NewFactory returns a Factory that builds a fresh environment, agent
// population and applier for every scenario.
func NewFactory(cfg FactoryConfig) Factory {
	return func(scenario domain.StressScenario, seed uint64) (*Orchestrator, error) {
		return cfg.Build(&scenario, seed)
	}
}

// Build creates one orchestrator. A nil scenario runs without a stress
// overlay and files records under the baseline scenario name.
func (cfg FactoryConfig) Build(scenario *domain.StressScenario, seed uint64) (*Orchestrator, error) {
	source, err := newSource(cfg.Source, cfg.Corpus, rand.New(rand.NewPCG(seed, streamSource)))
	if err != nil {
		return nil, err
	}

	env, err := market.New(market.Options{
		Source:    source,
		NumAgents: cfg.Agents.Count,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	agents, err := agent.NewAgents(cfg.Agents, seed)
	if err != nil {
		return nil, err
	}

	opts := Options{
		RunID:                  cfg.RunID,
		Episodes:               cfg.Episodes,
		Environment:            env,
		Agents:                 agents,
		Evaluator:              evaluation.NewEvaluator(cfg.Evaluation),
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		References:             cfg.References,
		Stores:                 cfg.Stores,
		Publisher:              cfg.Publisher,
		Metrics:                cfg.Metrics,
		Logger:                 cfg.Logger,
	}
	if scenario != nil {
		s := *scenario
		opts.Scenario = &s
		opts.Applier = stress.NewApplier(rand.New(rand.NewPCG(seed, streamApplier)))
	}
	if cfg.Benchmark {
		opts.Benchmark = agent.NewBaselineAgent(BenchmarkAgentID)
		opts.BenchmarkApplier = stress.NewApplier(rand.New(rand.NewPCG(seed, streamBenchmark)))
	}
	return New(opts)
}

func newSource(kind string, corpus []domain.Treaty, rng *rand.Rand) (market.TreatySource, error) {
	switch kind {
	case SourceSample:
		return market.NewSampleSource(corpus, rng)
	case SourceSequence:
		return market.NewSequenceSource(corpus)
	case SourceSynthetic, "":
		return market.NewSyntheticSource(rng), nil
	default:
		return nil, fmt.Errorf("unknown treaty source %q", kind)
	}
}
