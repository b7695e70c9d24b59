// Package orchestrator drives simulation runs.
// Each episode flows: environment reset → agent bids → auction step →
// stress overlay → evaluation → persistence → policy update.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"treaty-bidding-lab/internal/agent"
	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/evaluation"
	"treaty-bidding-lab/internal/idhash"
	"treaty-bidding-lab/internal/market"
	"treaty-bidding-lab/internal/metrics"
	"treaty-bidding-lab/internal/observability"
	"treaty-bidding-lab/internal/storage"
	"treaty-bidding-lab/internal/stress"
)

// State is the lifecycle state of a run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateDone      State = "done"
	StateAborted   State = "aborted"
	StateCancelled State = "cancelled"
)

// Orchestrator errors
var (
	// ErrTooManyFailures is returned when consecutive episode failures exceed
	// the configured maximum. The partial result is returned alongside it.
	ErrTooManyFailures = errors.New("too many consecutive episode failures")

	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("orchestrator already started")

	errAgentFailed   = errors.New("agent failed to bid")
	errStorageFailed = errors.New("persist episode")
)

// defaultLogEvery is the episode interval for rolling progress logs.
const defaultLogEvery = 10

// Publisher receives every recorded episode, e.g. a live feed.
type Publisher interface {
	Publish(ctx context.Context, rec domain.EpisodeRecord) error
}

// Stores groups the optional persistence collaborators. Nil stores are skipped.
type Stores struct {
	Episodes    storage.EpisodeRecordStore
	Failures    storage.EpisodeFailureStore
	Summaries   storage.PortfolioSummaryStore
	Checkpoints storage.CheckpointStore
}

// Options for creating Orchestrator.
type Options struct {
	RunID    string // generated when empty
	Episodes int

	Environment *market.Environment
	Agents      []agent.Agent
	Evaluator   *evaluation.Evaluator

	// Scenario, when set, is applied to every episode through Applier.
	Scenario *domain.StressScenario
	Applier  *stress.Applier

	// MaxConsecutiveFailures aborts the run once exceeded. Zero disables the limit.
	MaxConsecutiveFailures int

	// References are passed through to every evaluation record.
	References []string

	// Benchmark, when set, bids on every episode's treaty outside the auction
	// and is evaluated as if it had won. Under a scenario it needs its own
	// applier so the auction's capital shock draws are unaffected.
	Benchmark        agent.Agent
	BenchmarkApplier *stress.Applier

	Stores    Stores
	Publisher Publisher
	Metrics   *observability.Metrics
	Logger    *zerolog.Logger
	LogEvery  int
	Now       func() time.Time
}

// RunResult contains results from a run. Records and Episodes are in
// submission order.
type RunResult struct {
	RunID    string
	Scenario string
	State    State

	Episodes []domain.EpisodeRecord
	Records  []domain.EvaluationRecord
	Failures []domain.EpisodeFailure
	Summary  domain.PortfolioSummary

	// BenchmarkSummary covers the benchmark results of the recorded episodes.
	// Nil without a benchmark agent.
	BenchmarkSummary *domain.PortfolioSummary

	// Errors lists non-fatal collaborator errors (publish, checkpoint, summary store).
	Errors   []string
	Duration time.Duration
}

// Orchestrator runs one scenario over N episodes. It is single-use.
type Orchestrator struct {
	runID        string
	scenarioName string
	episodes     int

	env       *market.Environment
	agents    []agent.Agent
	evaluator *evaluation.Evaluator
	scenario  *domain.StressScenario
	applier   *stress.Applier
	refs      []string

	benchmark        agent.Agent
	benchmarkApplier *stress.Applier

	stores    Stores
	publisher Publisher
	metrics   *observability.Metrics
	logger    zerolog.Logger
	logEvery  int
	now       func() time.Time

	breaker *gobreaker.CircuitBreaker

	mu        sync.Mutex
	state     State
	completed int
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Environment == nil {
		return nil, errors.New("orchestrator: environment is required")
	}
	if opts.Evaluator == nil {
		return nil, errors.New("orchestrator: evaluator is required")
	}
	if opts.Episodes < 1 {
		return nil, fmt.Errorf("orchestrator: episodes must be positive, got %d", opts.Episodes)
	}
	if len(opts.Agents) != opts.Environment.NumAgents() {
		return nil, fmt.Errorf("orchestrator: %d agents for an environment expecting %d",
			len(opts.Agents), opts.Environment.NumAgents())
	}
	if opts.Scenario != nil {
		if opts.Applier == nil {
			return nil, errors.New("orchestrator: scenario requires an applier")
		}
		if err := stress.Validate(*opts.Scenario); err != nil {
			return nil, err
		}
		if opts.Benchmark != nil && opts.BenchmarkApplier == nil {
			return nil, errors.New("orchestrator: benchmark under a scenario requires its own applier")
		}
	}
	if opts.MaxConsecutiveFailures < 0 {
		return nil, fmt.Errorf("orchestrator: negative failure limit %d", opts.MaxConsecutiveFailures)
	}

	o := &Orchestrator{
		runID:     opts.RunID,
		episodes:  opts.Episodes,
		env:       opts.Environment,
		agents:    opts.Agents,
		evaluator: opts.Evaluator,
		scenario:  opts.Scenario,
		applier:   opts.Applier,
		refs:      opts.References,

		benchmark:        opts.Benchmark,
		benchmarkApplier: opts.BenchmarkApplier,

		stores:    opts.Stores,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logEvery:  opts.LogEvery,
		now:       opts.Now,
		state:     StateIdle,
	}
	if o.runID == "" {
		o.runID = idhash.NewRunID()
	}
	o.scenarioName = domain.ScenarioBaseline
	if o.scenario != nil {
		o.scenarioName = o.scenario.Name
	}
	if o.logEvery <= 0 {
		o.logEvery = defaultLogEvery
	}
	if o.now == nil {
		o.now = time.Now
	}

	o.logger = zerolog.Nop()
	if opts.Logger != nil {
		o.logger = opts.Logger.With().
			Str("component", "orchestrator").
			Str("run_id", o.runID).
			Str("scenario", o.scenarioName).
			Logger()
	}

	if opts.MaxConsecutiveFailures > 0 {
		limit := uint32(opts.MaxConsecutiveFailures)
		o.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: o.scenarioName,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > limit
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				o.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("episode failure breaker changed state")
				if o.metrics != nil {
					o.metrics.SetBreakerState(name, int(to))
				}
			},
		})
	}

	return o, nil
}

// RunID returns the run identifier.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Scenario returns the scenario name records are filed under.
func (o *Orchestrator) Scenario() string {
	return o.scenarioName
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Progress returns the number of episodes attempted and the total.
func (o *Orchestrator) Progress() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.completed, o.episodes
}

// Run executes all episodes. It returns ErrTooManyFailures or the context
// error together with the partial result when the run ends early.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	o.state = StateRunning
	o.mu.Unlock()

	start := o.now()
	result := &RunResult{RunID: o.runID, Scenario: o.scenarioName}

	o.logger.Info().Int("episodes", o.episodes).Int("agents", len(o.agents)).Msg("run started")
	result.Errors = append(result.Errors, o.loadCheckpoints(ctx)...)

	final, runErr := o.loop(ctx, result)

	result.Summary = metrics.SummarizeRun(o.runID, o.scenarioName, result.Records, result.Failures)
	if o.benchmark != nil {
		bench := metrics.SummarizeRun(o.runID, o.scenarioName, benchmarkRecords(result.Episodes), result.Failures)
		result.BenchmarkSummary = &bench
	}
	result.Errors = append(result.Errors, o.storeSummary(ctx, &result.Summary)...)
	result.Errors = append(result.Errors, o.saveCheckpoints(ctx)...)
	result.State = final
	result.Duration = o.now().Sub(start)

	o.mu.Lock()
	o.state = final
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RecordRun(o.scenarioName, string(final), result.Duration.Seconds(), result.Summary.ComplianceRate)
	}

	logEvent := o.logger.Info()
	if result.BenchmarkSummary != nil {
		logEvent = logEvent.
			Float64("benchmark_avg_profit", result.BenchmarkSummary.AvgProfit).
			Float64("benchmark_compliance_rate", result.BenchmarkSummary.ComplianceRate)
	}
	logEvent.
		Str("state", string(final)).
		Int("recorded", len(result.Records)).
		Int("failed", len(result.Failures)).
		Float64("avg_profit", result.Summary.AvgProfit).
		Float64("compliance_rate", result.Summary.ComplianceRate).
		Float64("risk_adjusted_return", result.Summary.RiskAdjustedReturn).
		Dur("duration", result.Duration).
		Msg("run finished")

	return result, runErr
}

func (o *Orchestrator) loop(ctx context.Context, result *RunResult) (State, error) {
	for i := 0; i < o.episodes; i++ {
		// Cooperative cancellation point: nothing of episode i has happened yet.
		if err := ctx.Err(); err != nil {
			o.logger.Warn().Int("episode", i).Msg("run cancelled")
			return StateCancelled, err
		}

		rec, err := o.execute(ctx, i)

		o.mu.Lock()
		o.completed++
		o.mu.Unlock()

		if err != nil {
			if ctx.Err() != nil {
				// Interrupted mid-episode; nothing was recorded for it.
				o.logger.Warn().Int("episode", i).Msg("run cancelled")
				return StateCancelled, ctx.Err()
			}
			o.recordFailure(ctx, result, i, err)
			if o.breaker != nil && o.breaker.State() == gobreaker.StateOpen {
				o.logger.Error().Int("episode", i).Int("recorded", len(result.Records)).Msg("aborting run")
				return StateAborted, fmt.Errorf("%w: after episode %d", ErrTooManyFailures, i)
			}
			continue
		}

		result.Episodes = append(result.Episodes, rec)
		result.Records = append(result.Records, rec.Evaluation)

		if o.publisher != nil {
			if err := o.publisher.Publish(ctx, rec); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("publish episode %d: %v", i, err))
			}
		}

		if (i+1)%o.logEvery == 0 || i == 0 {
			window := metrics.Summarize(metrics.Recent(result.Records, o.logEvery))
			o.logger.Info().
				Int("episode", i+1).
				Float64("avg_profit", window.AvgProfit).
				Float64("avg_cvar", window.AvgCVaR).
				Float64("compliance_rate", window.ComplianceRate).
				Msg("progress")
		}
	}
	return StateDone, nil
}

// execute runs one episode, through the failure breaker when configured.
func (o *Orchestrator) execute(ctx context.Context, index int) (domain.EpisodeRecord, error) {
	if o.breaker == nil {
		return o.runEpisode(ctx, index)
	}
	out, err := o.breaker.Execute(func() (interface{}, error) {
		return o.runEpisode(ctx, index)
	})
	if err != nil {
		return domain.EpisodeRecord{}, err
	}
	return out.(domain.EpisodeRecord), nil
}

// runEpisode performs one full cycle. It either returns a persisted record
// after updating agent policies, or an error with no side effects on agents.
func (o *Orchestrator) runEpisode(ctx context.Context, index int) (domain.EpisodeRecord, error) {
	var override *domain.Treaty
	if o.scenario != nil {
		sampled, err := o.env.Sample(ctx)
		if err != nil {
			return domain.EpisodeRecord{}, err
		}
		stressed := o.applier.ApplyTreaty(sampled, *o.scenario)
		override = &stressed
	}

	treaty, err := o.env.Reset(ctx, override)
	if err != nil {
		return domain.EpisodeRecord{}, err
	}

	bids := make([]domain.Bid, len(o.agents))
	for i, a := range o.agents {
		b, err := a.Bid(ctx, treaty)
		if err != nil {
			return domain.EpisodeRecord{}, fmt.Errorf("%w: %s: %v", errAgentFailed, a.ID(), err)
		}
		bids[i] = b
	}

	step, err := o.env.Step(bids)
	if err != nil {
		return domain.EpisodeRecord{}, err
	}

	winning := bids[step.WinnerIndex]
	if o.scenario != nil {
		winning = o.applier.ApplyBid(winning, *o.scenario)
	}

	eval := o.evaluator.Evaluate(winning, treaty, o.refs...)
	if o.scenario != nil {
		eval = o.applier.ApplyCapitalShock(eval, *o.scenario)
	}

	var bench *domain.BenchmarkResult
	if o.benchmark != nil {
		bench, err = o.runBenchmark(ctx, treaty)
		if err != nil {
			return domain.EpisodeRecord{}, err
		}
	}

	rec := domain.EpisodeRecord{
		EpisodeID:    idhash.ComputeEpisodeID(o.runID, o.scenarioName, index),
		RunID:        o.runID,
		Scenario:     o.scenarioName,
		EpisodeIndex: index,
		Treaty:       treaty,
		Bids:         bids,
		WinnerIndex:  step.WinnerIndex,
		Reward:       step.Reward,
		WinningBid:   winning,
		Evaluation:   eval,
		Benchmark:    bench,
		RecordedAt:   o.now().UTC(),
	}

	if err := o.persist(ctx, &rec); err != nil {
		return domain.EpisodeRecord{}, err
	}

	// Winner learns from its profit, losers from the tail risk they avoided.
	for i, a := range o.agents {
		if i == step.WinnerIndex {
			a.UpdatePolicy(step.Reward)
		} else {
			a.UpdatePolicy(-eval.CVaR)
		}
	}

	if o.metrics != nil {
		o.metrics.RecordEpisode(o.scenarioName, eval.Profit, eval.CVaR, eval.Flags.Failed())
	}

	return rec, nil
}

// runBenchmark evaluates the benchmark's bid on treaty with the same
// stress overlay the auction winner receives.
func (o *Orchestrator) runBenchmark(ctx context.Context, treaty domain.Treaty) (*domain.BenchmarkResult, error) {
	bid, err := o.benchmark.Bid(ctx, treaty)
	if err != nil {
		return nil, fmt.Errorf("%w: benchmark %s: %v", errAgentFailed, o.benchmark.ID(), err)
	}
	if err := bid.Validate(); err != nil {
		return nil, fmt.Errorf("benchmark: %w", err)
	}
	if o.scenario != nil {
		bid = o.benchmarkApplier.ApplyBid(bid, *o.scenario)
	}

	eval := o.evaluator.Evaluate(bid, treaty, o.refs...)
	if o.scenario != nil {
		eval = o.benchmarkApplier.ApplyCapitalShock(eval, *o.scenario)
	}
	return &domain.BenchmarkResult{Bid: bid, Evaluation: eval}, nil
}

func benchmarkRecords(episodes []domain.EpisodeRecord) []domain.EvaluationRecord {
	out := make([]domain.EvaluationRecord, 0, len(episodes))
	for _, ep := range episodes {
		if ep.Benchmark != nil {
			out = append(out, ep.Benchmark.Evaluation)
		}
	}
	return out
}

func (o *Orchestrator) persist(ctx context.Context, rec *domain.EpisodeRecord) error {
	if o.stores.Episodes == nil {
		return nil
	}
	start := time.Now()
	err := o.stores.Episodes.Insert(ctx, rec)
	if o.metrics != nil {
		o.metrics.RecordDBQuery("episode_records", "insert", time.Since(start).Seconds(), err)
	}
	if err != nil {
		return fmt.Errorf("%w %d: %v", errStorageFailed, rec.EpisodeIndex, err)
	}
	return nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, result *RunResult, index int, cause error) {
	f := domain.EpisodeFailure{
		RunID:        o.runID,
		Scenario:     o.scenarioName,
		EpisodeIndex: index,
		Reason:       classify(cause),
		Message:      cause.Error(),
		OccurredAt:   o.now().UTC(),
	}
	result.Failures = append(result.Failures, f)

	o.logger.Error().Err(cause).Int("episode", index).Str("reason", f.Reason).Msg("episode failed")
	if o.metrics != nil {
		o.metrics.RecordEpisodeFailure(o.scenarioName, f.Reason)
	}

	if o.stores.Failures != nil {
		if err := o.stores.Failures.Insert(ctx, &f); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			result.Errors = append(result.Errors, fmt.Sprintf("store failure %d: %v", index, err))
		}
	}
}

// classify maps an episode error to its failure reason code.
func classify(err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedTreaty):
		return domain.FailureMalformedTreaty
	case errors.Is(err, market.ErrBidArityMismatch):
		return domain.FailureBidArityMismatch
	case errors.Is(err, domain.ErrInvalidBid):
		return domain.FailureInvalidBid
	case errors.Is(err, errAgentFailed):
		return domain.FailureAgentError
	case errors.Is(err, errStorageFailed):
		return domain.FailureStorageError
	default:
		return domain.FailureInternal
	}
}

func (o *Orchestrator) storeSummary(ctx context.Context, sum *domain.PortfolioSummary) []string {
	if o.stores.Summaries == nil {
		return nil
	}
	// A cancelled run still stores its partial summary.
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	err := o.stores.Summaries.Insert(ctx, sum)
	if o.metrics != nil {
		o.metrics.RecordDBQuery("portfolio_summaries", "insert", time.Since(start).Seconds(), err)
	}
	if err != nil {
		return []string{fmt.Sprintf("store summary: %v", err)}
	}
	return nil
}

func (o *Orchestrator) loadCheckpoints(ctx context.Context) []string {
	if o.stores.Checkpoints == nil {
		return nil
	}
	var errs []string
	for _, a := range o.agents {
		cp, err := o.stores.Checkpoints.Latest(ctx, o.scenarioName, a.ID())
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("load checkpoint %s: %v", a.ID(), err))
			continue
		}
		if err := a.LoadParameters(cp.Parameters); err != nil {
			errs = append(errs, fmt.Sprintf("apply checkpoint %s: %v", a.ID(), err))
			continue
		}
		o.logger.Debug().Str("agent_id", a.ID()).Str("from_run", cp.RunID).Msg("checkpoint loaded")
	}
	return errs
}

func (o *Orchestrator) saveCheckpoints(ctx context.Context) []string {
	if o.stores.Checkpoints == nil {
		return nil
	}
	// Checkpoints are written even after cancellation.
	ctx = context.WithoutCancel(ctx)

	var errs []string
	for _, a := range o.agents {
		cp := &domain.AgentCheckpoint{
			AgentID:    a.ID(),
			RunID:      o.runID,
			Scenario:   o.scenarioName,
			Parameters: a.ExportParameters(),
			SavedAt:    o.now().UTC(),
		}
		if err := o.stores.Checkpoints.Insert(ctx, cp); err != nil {
			errs = append(errs, fmt.Sprintf("save checkpoint %s: %v", a.ID(), err))
		}
	}
	return errs
}
