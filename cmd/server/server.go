package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"treaty-bidding-lab/internal/app"
	"treaty-bidding-lab/internal/config"
	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/feed"
	"treaty-bidding-lab/internal/governance"
	"treaty-bidding-lab/internal/idhash"
	"treaty-bidding-lab/internal/observability"
	"treaty-bidding-lab/internal/orchestrator"
)

const (
	shutdownTimeout = 5 * time.Second
	uptimeTick      = 15 * time.Second
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	Config    *config.Config
	Scenarios []domain.StressScenario
	Corpus    []domain.Treaty
	Stores    orchestrator.Stores
	Hub       *feed.Hub
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
}

// Server schedules stress sweeps and serves health, metrics, status and the feed.
type Server struct {
	cfg       *config.Config
	scenarios []domain.StressScenario
	corpus    []domain.Treaty
	stores    orchestrator.Stores
	hub       *feed.Hub
	metrics   *observability.Metrics
	logger    zerolog.Logger

	mu          sync.Mutex
	started     time.Time
	running     bool
	sweeps      int
	lastSweep   time.Time
	lastRunID   string
	lastError   string
	lastResults []ScenarioStatus
	active      []*orchestrator.Orchestrator
}

// NewServer creates a new Server.
func NewServer(opts ServerOptions) *Server {
	return &Server{
		cfg:       opts.Config,
		scenarios: opts.Scenarios,
		corpus:    opts.Corpus,
		stores:    opts.Stores,
		hub:       opts.Hub,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		started:   time.Now(),
	}
}

// Run serves HTTP and runs the scheduler until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", httpServer.Addr).Msg("starting http server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go s.trackUptime(ctx)
	go s.runScheduler(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("http shutdown")
	}
	return runErr
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	if s.hub != nil {
		mux.Handle("/feed", s.hub)
	}
	return mux
}

// runScheduler runs a sweep immediately and then on every interval tick.
func (s *Server) runScheduler(ctx context.Context) {
	s.logger.Info().Dur("interval", s.cfg.Server.Interval).Msg("starting scheduler")

	s.runSweep(ctx)

	ticker := time.NewTicker(s.cfg.Server.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Server) trackUptime(ctx context.Context) {
	ticker := time.NewTicker(uptimeTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.metrics != nil {
				s.metrics.UptimeSeconds.Add(uptimeTick.Seconds())
			}
		}
	}
}

// runSweep runs every scenario once under a fresh run ID. Overlapping
// sweeps are skipped.
func (s *Server) runSweep(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("sweep already running, skipping")
		return
	}
	s.running = true
	sweep := s.sweeps
	s.active = nil
	s.mu.Unlock()

	runID := idhash.NewRunID()
	// Each sweep explores a different seed; a sweep is reproducible from its index.
	seed := s.cfg.Simulation.Seed + uint64(sweep)
	log := s.logger.With().Str("run_id", runID).Int("sweep", sweep).Logger()

	fc := app.FactoryConfig(s.cfg, runID, s.corpus, app.Deps{
		Stores:  s.stores,
		Metrics: s.metrics,
		Logger:  &log,
	})
	if s.hub != nil {
		fc.Publisher = s.hub
	}
	build := orchestrator.NewFactory(fc)
	factory := func(scenario domain.StressScenario, seed uint64) (*orchestrator.Orchestrator, error) {
		o, err := build(scenario, seed)
		if err == nil {
			s.mu.Lock()
			s.active = append(s.active, o)
			s.mu.Unlock()
		}
		return o, err
	}

	start := time.Now()
	log.Info().Int("scenarios", len(s.scenarios)).Msg("sweep started")
	results, err := orchestrator.RunScenarios(ctx, s.scenarios, factory, seed, s.cfg.Stress.Parallelism)

	statuses := make([]ScenarioStatus, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, newScenarioStatus(r))
	}

	s.mu.Lock()
	s.running = false
	s.sweeps++
	s.lastSweep = time.Now()
	s.lastRunID = runID
	s.lastResults = statuses
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.active = nil
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("sweep failed")
		return
	}
	observability.RecordRunSuccess(time.Now().Unix())
	log.Info().Dur("duration", time.Since(start)).Msg("sweep completed")
}

// ScenarioStatus is one scenario of the last sweep.
type ScenarioStatus struct {
	Scenario  string                   `json:"scenario"`
	State     orchestrator.State       `json:"state,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Verdict   governance.Verdict       `json:"verdict,omitempty"`
	Summary   domain.PortfolioSummary  `json:"summary"`
	Benchmark *domain.PortfolioSummary `json:"benchmark,omitempty"`
}

func newScenarioStatus(r orchestrator.ScenarioResult) ScenarioStatus {
	st := ScenarioStatus{Scenario: r.Scenario}
	if r.Err != nil {
		st.Error = r.Err.Error()
	}
	if r.Result != nil {
		st.State = r.Result.State
		st.Summary = r.Result.Summary
		st.Benchmark = r.Result.BenchmarkSummary
		st.Verdict = governance.Review(r.Result.Summary, governance.DefaultThresholds()).Verdict
	}
	return st
}

// Progress reports a scenario run in flight.
type Progress struct {
	Scenario string             `json:"scenario"`
	State    orchestrator.State `json:"state"`
	Done     int                `json:"done"`
	Total    int                `json:"total"`
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string           `json:"status"`
	Uptime          string           `json:"uptime"`
	Sweeps          int              `json:"sweeps"`
	SweepRunning    bool             `json:"sweep_running"`
	LastSweep       time.Time        `json:"last_sweep,omitempty"`
	LastRunID       string           `json:"last_run_id,omitempty"`
	LastError       string           `json:"last_error,omitempty"`
	LastResults     []ScenarioStatus `json:"last_results,omitempty"`
	InFlight        []Progress       `json:"in_flight,omitempty"`
	FeedSubscribers int              `json:"feed_subscribers"`
}

func (s *Server) status() StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Sweeps:       s.sweeps,
		SweepRunning: s.running,
		LastSweep:    s.lastSweep,
		LastRunID:    s.lastRunID,
		LastError:    s.lastError,
		LastResults:  s.lastResults,
	}
	for _, o := range s.active {
		done, total := o.Progress()
		resp.InFlight = append(resp.InFlight, Progress{Scenario: o.Scenario(), State: o.State(), Done: done, Total: total})
	}
	if s.hub != nil {
		resp.FeedSubscribers = s.hub.Subscribers()
	}
	return resp
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status()); err != nil {
		s.logger.Warn().Err(err).Msg("encode status")
	}
}
