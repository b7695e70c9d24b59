package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"treaty-bidding-lab/internal/agent"
	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/evaluation"
	"treaty-bidding-lab/internal/market"
	"treaty-bidding-lab/internal/storage"
	"treaty-bidding-lab/internal/storage/memory"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type fixedSource struct {
	treaty domain.Treaty
}

func (s fixedSource) Next(ctx context.Context) (domain.Treaty, error) {
	if err := ctx.Err(); err != nil {
		return domain.Treaty{}, err
	}
	return s.treaty.Clone(), nil
}

type stubAgent struct {
	id     string
	bid    domain.Bid
	err    error
	failOn map[int]bool
	onBid  func(call int)

	calls   int
	rewards []float64
	params  domain.AgentParameters
	loaded  *domain.AgentParameters
}

func (a *stubAgent) ID() string { return a.id }

func (a *stubAgent) Bid(ctx context.Context, _ domain.Treaty) (domain.Bid, error) {
	call := a.calls
	a.calls++
	if a.onBid != nil {
		a.onBid(call)
	}
	if err := ctx.Err(); err != nil {
		return domain.Bid{}, err
	}
	if a.err != nil {
		return domain.Bid{}, a.err
	}
	if a.failOn[call] {
		return domain.Bid{}, fmt.Errorf("scheduled failure on call %d", call)
	}
	b := a.bid
	b.AgentID = a.id
	return b, nil
}

func (a *stubAgent) UpdatePolicy(r float64) { a.rewards = append(a.rewards, r) }

func (a *stubAgent) ExportParameters() domain.AgentParameters { return a.params }

func (a *stubAgent) LoadParameters(p domain.AgentParameters) error {
	a.loaded = &p
	a.params = p
	return nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	recs []domain.EpisodeRecord
}

func (p *recordingPublisher) Publish(_ context.Context, rec domain.EpisodeRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, rec)
	return nil
}

func testTreaty() domain.Treaty {
	return domain.Treaty{TreatyID: "T-1", Exposure: 1_000_000, Limit: 0.3, QuotaShareCap: 0.5}
}

func twoAgents() (*stubAgent, *stubAgent) {
	low := &stubAgent{id: "low", bid: domain.Bid{QuotaShare: 0.2, Premium: 120, ExpectedLoss: 100, TailRisk: 10}}
	high := &stubAgent{id: "high", bid: domain.Bid{QuotaShare: 0.3, Premium: 150, ExpectedLoss: 100, TailRisk: 30}}
	return low, high
}

func newTestOrchestrator(t *testing.T, opts Options, agents ...agent.Agent) *Orchestrator {
	t.Helper()

	env, err := market.New(market.Options{Source: fixedSource{treaty: testTreaty()}, NumAgents: len(agents)})
	if err != nil {
		t.Fatalf("market.New: %v", err)
	}
	opts.Environment = env
	opts.Agents = agents
	if opts.Evaluator == nil {
		opts.Evaluator = evaluation.NewEvaluator(evaluation.DefaultConfig())
	}
	if opts.RunID == "" {
		opts.RunID = "run-test"
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}

	o, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestOrchestrator_Run_RecordsEveryEpisode(t *testing.T) {
	ctx := context.Background()
	low, high := twoAgents()
	episodes := memory.NewEpisodeRecordStore()
	summaries := memory.NewPortfolioSummaryStore()
	pub := &recordingPublisher{}

	o := newTestOrchestrator(t, Options{
		Episodes:  5,
		Stores:    Stores{Episodes: episodes, Summaries: summaries},
		Publisher: pub,
	}, low, high)

	result, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.State != StateDone || o.State() != StateDone {
		t.Errorf("expected state done, got %s / %s", result.State, o.State())
	}
	if len(result.Records) != 5 || len(result.Episodes) != 5 {
		t.Fatalf("expected 5 records, got %d", len(result.Records))
	}
	if len(result.Failures) != 0 {
		t.Errorf("expected no failures, got %d", len(result.Failures))
	}

	stored, err := episodes.GetByRun(ctx, "run-test", domain.ScenarioBaseline)
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(stored) != 5 {
		t.Fatalf("expected 5 stored records, got %d", len(stored))
	}
	for i, rec := range stored {
		if rec.EpisodeIndex != i {
			t.Errorf("record %d has index %d", i, rec.EpisodeIndex)
		}
		if rec.WinnerIndex != 1 {
			t.Errorf("record %d: expected winner 1, got %d", i, rec.WinnerIndex)
		}
		if rec.Evaluation.Profit != 50 {
			t.Errorf("record %d: expected profit 50, got %f", i, rec.Evaluation.Profit)
		}
		if !rec.RecordedAt.Equal(fixedNow) {
			t.Errorf("record %d: unexpected recorded_at %v", i, rec.RecordedAt)
		}
	}

	if len(pub.recs) != 5 {
		t.Errorf("expected 5 published records, got %d", len(pub.recs))
	}

	sum, err := summaries.GetByKey(ctx, "run-test", domain.ScenarioBaseline)
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if sum.Episodes != 5 || sum.AvgProfit != 50 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if done, total := o.Progress(); done != 5 || total != 5 {
		t.Errorf("expected progress 5/5, got %d/%d", done, total)
	}
}

func TestOrchestrator_Run_RewardsWinnerAndLosers(t *testing.T) {
	low, high := twoAgents()
	o := newTestOrchestrator(t, Options{Episodes: 3}, low, high)

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Winner gets the naive profit, the loser the negated cvar of the winning bid.
	wantWinner := []float64{50, 50, 50}
	wantLoser := []float64{-30, -30, -30}
	if !reflect.DeepEqual(high.rewards, wantWinner) {
		t.Errorf("winner rewards: got %v, want %v", high.rewards, wantWinner)
	}
	if !reflect.DeepEqual(low.rewards, wantLoser) {
		t.Errorf("loser rewards: got %v, want %v", low.rewards, wantLoser)
	}
}

func TestOrchestrator_Run_AbortsAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	low, high := twoAgents()
	low.err = errors.New("model unavailable")
	failures := memory.NewEpisodeFailureStore()

	o := newTestOrchestrator(t, Options{
		Episodes:               10,
		MaxConsecutiveFailures: 2,
		Stores:                 Stores{Failures: failures},
	}, low, high)

	result, err := o.Run(ctx)
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("expected ErrTooManyFailures, got %v", err)
	}
	if result == nil {
		t.Fatal("expected partial result")
	}
	if result.State != StateAborted {
		t.Errorf("expected aborted, got %s", result.State)
	}
	if len(result.Failures) != 3 {
		t.Errorf("expected 3 failures before abort, got %d", len(result.Failures))
	}
	for _, f := range result.Failures {
		if f.Reason != domain.FailureAgentError {
			t.Errorf("expected reason %s, got %s", domain.FailureAgentError, f.Reason)
		}
	}
	if len(high.rewards) != 0 {
		t.Errorf("no policy update expected on failed episodes, got %v", high.rewards)
	}

	stored, err := failures.GetByRun(ctx, "run-test", domain.ScenarioBaseline)
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("expected 3 stored failures, got %d", len(stored))
	}
	if result.Summary.FailedEpisodes != 3 || result.Summary.FailureReasons[domain.FailureAgentError] != 3 {
		t.Errorf("unexpected failure summary: %+v", result.Summary)
	}
}

func TestOrchestrator_Run_IsolatedFailureContinues(t *testing.T) {
	low, high := twoAgents()
	low.failOn = map[int]bool{1: true}

	o := newTestOrchestrator(t, Options{Episodes: 5, MaxConsecutiveFailures: 1}, low, high)

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Records) != 4 {
		t.Errorf("expected 4 records, got %d", len(result.Records))
	}
	if len(result.Failures) != 1 || result.Failures[0].EpisodeIndex != 1 {
		t.Errorf("expected a single failure at index 1, got %+v", result.Failures)
	}
	if result.Episodes[1].EpisodeIndex != 2 {
		t.Errorf("expected the failed index to be skipped, got %d", result.Episodes[1].EpisodeIndex)
	}
}

func TestOrchestrator_Run_MalformedTreaty(t *testing.T) {
	low, high := twoAgents()
	bad := testTreaty()
	bad.Limit = 2

	env, err := market.New(market.Options{Source: fixedSource{treaty: bad}, NumAgents: 2})
	if err != nil {
		t.Fatalf("market.New: %v", err)
	}
	o, err := New(Options{
		RunID:       "run-bad",
		Episodes:    3,
		Environment: env,
		Agents:      []agent.Agent{low, high},
		Evaluator:   evaluation.NewEvaluator(evaluation.DefaultConfig()),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("failure limit disabled, expected no error, got %v", err)
	}
	if len(result.Failures) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(result.Failures))
	}
	if result.Failures[0].Reason != domain.FailureMalformedTreaty {
		t.Errorf("expected malformed_treaty, got %s", result.Failures[0].Reason)
	}
	if low.calls != 0 {
		t.Errorf("agents must not bid on a malformed treaty")
	}
}

func TestOrchestrator_Run_CancelledBeforeStart(t *testing.T) {
	low, high := twoAgents()
	o := newTestOrchestrator(t, Options{Episodes: 5}, low, high)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.State != StateCancelled {
		t.Errorf("expected cancelled, got %s", result.State)
	}
	if len(result.Records) != 0 || len(result.Failures) != 0 {
		t.Errorf("expected nothing recorded, got %d records %d failures", len(result.Records), len(result.Failures))
	}
}

func TestOrchestrator_Run_CancelledMidEpisode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	low, high := twoAgents()
	low.onBid = func(call int) {
		if call == 2 {
			cancel()
		}
	}
	episodes := memory.NewEpisodeRecordStore()

	o := newTestOrchestrator(t, Options{Episodes: 10, Stores: Stores{Episodes: episodes}}, low, high)

	result, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(result.Records) != 2 {
		t.Errorf("expected the 2 completed episodes, got %d", len(result.Records))
	}
	if len(result.Failures) != 0 {
		t.Errorf("interrupted episode must not be recorded as a failure")
	}

	stored, _ := episodes.GetByRun(context.Background(), "run-test", domain.ScenarioBaseline)
	if len(stored) != 2 {
		t.Errorf("expected 2 stored records, got %d", len(stored))
	}
}

// ctxSummaryStore refuses inserts on a done context, like a database driver.
type ctxSummaryStore struct {
	*memory.PortfolioSummaryStore
}

func (s ctxSummaryStore) Insert(ctx context.Context, sum *domain.PortfolioSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.PortfolioSummaryStore.Insert(ctx, sum)
}

func TestOrchestrator_Run_CancelledStillStoresSummary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	low, high := twoAgents()
	low.onBid = func(call int) {
		if call == 1 {
			cancel()
		}
	}
	summaries := ctxSummaryStore{memory.NewPortfolioSummaryStore()}

	o := newTestOrchestrator(t, Options{Episodes: 5, Stores: Stores{Summaries: summaries}}, low, high)

	result, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.State != StateCancelled {
		t.Errorf("expected cancelled, got %s", result.State)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}

	sum, err := summaries.GetByKey(context.Background(), "run-test", domain.ScenarioBaseline)
	if err != nil {
		t.Fatalf("partial summary not stored: %v", err)
	}
	if sum.Episodes != 1 {
		t.Errorf("expected summary of 1 episode, got %d", sum.Episodes)
	}
}

func TestOrchestrator_Run_Benchmark(t *testing.T) {
	low, high := twoAgents()
	episodes := memory.NewEpisodeRecordStore()

	o := newTestOrchestrator(t, Options{
		Episodes:  3,
		Benchmark: agent.NewBaselineAgent("benchmark"),
		Stores:    Stores{Episodes: episodes},
	}, low, high)

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Exposure 1M: expected loss 40k, premium 48k, tail risk 12k.
	for i, rec := range result.Episodes {
		if rec.Benchmark == nil {
			t.Fatalf("episode %d has no benchmark", i)
		}
		if rec.Benchmark.Bid.AgentID != "benchmark" {
			t.Errorf("episode %d: unexpected benchmark agent %q", i, rec.Benchmark.Bid.AgentID)
		}
		if math.Abs(rec.Benchmark.Evaluation.Profit-8000) > 1e-6 {
			t.Errorf("episode %d: expected benchmark profit 8000, got %f", i, rec.Benchmark.Evaluation.Profit)
		}
		if math.Abs(rec.Benchmark.Evaluation.CVaR-12000) > 1e-6 {
			t.Errorf("episode %d: expected benchmark cvar 12000, got %f", i, rec.Benchmark.Evaluation.CVaR)
		}
		// The auction is unaffected.
		if rec.WinnerIndex != 1 || rec.Evaluation.Profit != 50 {
			t.Errorf("episode %d: auction changed: winner %d profit %f", i, rec.WinnerIndex, rec.Evaluation.Profit)
		}
	}

	stored, err := episodes.GetByRun(context.Background(), "run-test", domain.ScenarioBaseline)
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(stored) != 3 || stored[0].Benchmark == nil {
		t.Errorf("expected stored records to carry the benchmark")
	}

	if result.BenchmarkSummary == nil {
		t.Fatal("expected a benchmark summary")
	}
	bench := result.BenchmarkSummary
	if bench.Episodes != 3 || bench.RunID != "run-test" || bench.Scenario != domain.ScenarioBaseline {
		t.Errorf("unexpected benchmark summary keys: %+v", bench)
	}
	if math.Abs(bench.AvgProfit-8000) > 1e-6 {
		t.Errorf("expected benchmark avg profit 8000, got %f", bench.AvgProfit)
	}
	if math.Abs(bench.RiskAdjustedReturn-8000.0/12000.0) > 1e-9 {
		t.Errorf("expected benchmark risk-adjusted return 0.667, got %f", bench.RiskAdjustedReturn)
	}
	if math.Abs(result.Summary.RiskAdjustedReturn-50.0/30.0) > 1e-9 {
		t.Errorf("expected run risk-adjusted return 1.667, got %f", result.Summary.RiskAdjustedReturn)
	}
}

func TestOrchestrator_Run_BenchmarkUnderScenario(t *testing.T) {
	low, high := twoAgents()
	scenario := domain.StressCatastropheShock

	o := newTestOrchestrator(t, Options{
		Episodes:         1,
		Scenario:         &scenario,
		Applier:          stressApplier(1),
		Benchmark:        agent.NewBaselineAgent("benchmark"),
		BenchmarkApplier: stressApplier(2),
	}, low, high)

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Bids on the stressed 1.5M exposure (expected loss 60k, tail 18k), then
	// the loss and tail multipliers apply as for the winner.
	bench := result.Episodes[0].Benchmark
	if bench == nil {
		t.Fatal("expected a benchmark result")
	}
	if math.Abs(bench.Bid.ExpectedLoss-90_000) > 1e-6 || math.Abs(bench.Bid.TailRisk-36_000) > 1e-6 {
		t.Errorf("unexpected stressed benchmark bid %+v", bench.Bid)
	}
	if math.Abs(bench.Evaluation.Profit-(-18_000)) > 1e-6 {
		t.Errorf("expected benchmark profit -18000, got %f", bench.Evaluation.Profit)
	}
}

func TestOrchestrator_Run_NoBenchmark(t *testing.T) {
	low, high := twoAgents()
	o := newTestOrchestrator(t, Options{Episodes: 2}, low, high)

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.BenchmarkSummary != nil {
		t.Errorf("expected no benchmark summary, got %+v", result.BenchmarkSummary)
	}
	for i, rec := range result.Episodes {
		if rec.Benchmark != nil {
			t.Errorf("episode %d: unexpected benchmark", i)
		}
	}
}

func TestOrchestrator_Run_BenchmarkFailureFailsEpisode(t *testing.T) {
	low, high := twoAgents()
	bench := &stubAgent{id: "benchmark", err: errors.New("no quote")}

	o := newTestOrchestrator(t, Options{Episodes: 2, Benchmark: bench}, low, high)

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Records) != 0 || len(result.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d records %d failures", len(result.Records), len(result.Failures))
	}
	if result.Failures[0].Reason != domain.FailureAgentError {
		t.Errorf("expected agent_error, got %s", result.Failures[0].Reason)
	}
	if len(low.rewards) != 0 {
		t.Errorf("failed episodes must not update policies")
	}
}

func TestOrchestrator_Run_Twice(t *testing.T) {
	low, high := twoAgents()
	o := newTestOrchestrator(t, Options{Episodes: 1}, low, high)

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if _, err := o.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestOrchestrator_Run_ScenarioOverlay(t *testing.T) {
	low, high := twoAgents()
	scenario := domain.StressCatastropheShock

	o := newTestOrchestrator(t, Options{
		Episodes: 1,
		Scenario: &scenario,
		Applier:  stressApplier(1),
	}, low, high)

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rec := result.Episodes[0]
	if rec.Scenario != domain.ScenarioCatastropheShock {
		t.Errorf("expected scenario %s, got %s", domain.ScenarioCatastropheShock, rec.Scenario)
	}
	if !reflect.DeepEqual(rec.Treaty.StressPath, []string{domain.ScenarioCatastropheShock}) {
		t.Errorf("unexpected stress path %v", rec.Treaty.StressPath)
	}
	if rec.Treaty.Exposure != 1_500_000 {
		t.Errorf("expected stressed exposure 1.5M, got %f", rec.Treaty.Exposure)
	}
	if rec.WinningBid.ExpectedLoss != 150 || rec.WinningBid.TailRisk != 60 {
		t.Errorf("unexpected stressed bid %+v", rec.WinningBid)
	}
	if rec.Evaluation.Profit != 0 {
		t.Errorf("expected stressed profit 0, got %f", rec.Evaluation.Profit)
	}
	// The auction itself runs on unstressed bids.
	if rec.Reward != 50 {
		t.Errorf("expected naive reward 50, got %f", rec.Reward)
	}
}

func TestOrchestrator_Checkpoints(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCheckpointStore()

	low, high := twoAgents()
	high.params = domain.AgentParameters{BaseQuota: 0.4, BaseMargin: 1.2, Epsilon: 0.1}
	first := newTestOrchestrator(t, Options{RunID: "run-1", Episodes: 1, Stores: Stores{Checkpoints: store}}, low, high)
	if _, err := first.Run(ctx); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	cp, err := store.Latest(ctx, domain.ScenarioBaseline, "high")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if cp.RunID != "run-1" || cp.Scenario != domain.ScenarioBaseline {
		t.Errorf("unexpected checkpoint key %q/%q", cp.RunID, cp.Scenario)
	}

	low2, high2 := twoAgents()
	second := newTestOrchestrator(t, Options{RunID: "run-2", Episodes: 1, Stores: Stores{Checkpoints: store}}, low2, high2)
	result, err := second.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if high2.loaded == nil || high2.loaded.BaseQuota != 0.4 {
		t.Errorf("expected checkpoint to be loaded, got %+v", high2.loaded)
	}
}

func TestOrchestrator_New_Validation(t *testing.T) {
	env, _ := market.New(market.Options{Source: fixedSource{treaty: testTreaty()}, NumAgents: 2})
	low, _ := twoAgents()
	eval := evaluation.NewEvaluator(evaluation.DefaultConfig())
	bad := domain.StressScenario{Name: "bad", CapitalShock: 0, ExposureMultiplier: 1}

	tests := []struct {
		name string
		opts Options
	}{
		{"no environment", Options{Episodes: 1, Evaluator: eval}},
		{"no evaluator", Options{Episodes: 1, Environment: env}},
		{"zero episodes", Options{Environment: env, Evaluator: eval, Agents: []agent.Agent{low, low}}},
		{"agent arity", Options{Episodes: 1, Environment: env, Evaluator: eval, Agents: []agent.Agent{low}}},
		{"scenario without applier", Options{Episodes: 1, Environment: env, Evaluator: eval, Agents: []agent.Agent{low, low}, Scenario: &domain.StressBaseline}},
		{"invalid scenario", Options{Episodes: 1, Environment: env, Evaluator: eval, Agents: []agent.Agent{low, low}, Scenario: &bad, Applier: stressApplier(1)}},
		{"benchmark without applier", Options{Episodes: 1, Environment: env, Evaluator: eval, Agents: []agent.Agent{low, low}, Scenario: &domain.StressBaseline, Applier: stressApplier(1), Benchmark: agent.NewBaselineAgent("benchmark")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("sample: %w", domain.ErrMalformedTreaty), domain.FailureMalformedTreaty},
		{fmt.Errorf("%w: got 1, want 2", market.ErrBidArityMismatch), domain.FailureBidArityMismatch},
		{fmt.Errorf("bid 0: %w", domain.ErrInvalidBid), domain.FailureInvalidBid},
		{fmt.Errorf("%w: a: boom", errAgentFailed), domain.FailureAgentError},
		{fmt.Errorf("%w 3: %v", errStorageFailed, storage.ErrDuplicateKey), domain.FailureStorageError},
		{errors.New("other"), domain.FailureInternal},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
