// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Episode outcome labels.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Episode metrics
	EpisodesTotal      *prometheus.CounterVec
	EpisodeFailures    *prometheus.CounterVec
	ComplianceFailures *prometheus.CounterVec
	EpisodeProfit      *prometheus.HistogramVec
	WinningCVaR        *prometheus.HistogramVec

	// Run metrics
	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	ComplianceRate *prometheus.GaugeVec
	BreakerState   *prometheus.GaugeVec

	// Feed metrics
	FeedSubscribers prometheus.Gauge
	FeedDropped     prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	UptimeSeconds     prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered on the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a new Metrics instance registered on reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "treaty_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		EpisodesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "episode",
			Name:      "total",
			Help:      "Total number of episodes by scenario and status",
		}, []string{"scenario", "status"}),
		EpisodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "episode",
			Name:      "failures_total",
			Help:      "Total number of failed episodes by reason",
		}, []string{"reason"}),
		ComplianceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "episode",
			Name:      "compliance_failures_total",
			Help:      "Total number of failed compliance checks by flag",
		}, []string{"flag"}),
		EpisodeProfit: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "episode",
			Name:      "profit",
			Help:      "Naive profit of winning bids",
			Buckets:   []float64{-250_000, -50_000, 0, 10_000, 50_000, 100_000, 250_000, 1_000_000},
		}, []string{"scenario"}),
		WinningCVaR: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "episode",
			Name:      "winning_cvar",
			Help:      "Tail-risk proxy of winning bids",
			Buckets:   prometheus.ExponentialBuckets(1_000, 4, 8),
		}, []string{"scenario"}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of scenario runs by terminal state",
		}, []string{"state"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Scenario run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"scenario"}),
		ComplianceRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "compliance_rate",
			Help:      "Compliance rate of the last completed run per scenario",
		}, []string{"scenario"}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "failure_breaker_state",
			Help:      "Episode failure breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"scenario"}),

		FeedSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Number of connected episode feed subscribers",
		}),
		FeedDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "dropped_total",
			Help:      "Total number of subscribers dropped for falling behind",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"store", "operation"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful simulation run",
		}),
		UptimeSeconds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEpisode records a completed episode and its failed compliance checks.
func (m *Metrics) RecordEpisode(scenario string, profit, cvar float64, failedFlags []string) {
	m.EpisodesTotal.WithLabelValues(scenario, StatusOK).Inc()
	m.EpisodeProfit.WithLabelValues(scenario).Observe(profit)
	m.WinningCVaR.WithLabelValues(scenario).Observe(cvar)
	for _, flag := range failedFlags {
		m.ComplianceFailures.WithLabelValues(flag).Inc()
	}
}

// RecordEpisodeFailure records an episode that produced no evaluation.
func (m *Metrics) RecordEpisodeFailure(scenario, reason string) {
	m.EpisodesTotal.WithLabelValues(scenario, StatusFailed).Inc()
	m.EpisodeFailures.WithLabelValues(reason).Inc()
}

// RecordRun records a finished scenario run.
func (m *Metrics) RecordRun(scenario, state string, durationSeconds, complianceRate float64) {
	m.RunsTotal.WithLabelValues(state).Inc()
	m.RunDuration.WithLabelValues(scenario).Observe(durationSeconds)
	m.ComplianceRate.WithLabelValues(scenario).Set(complianceRate)
}

// SetBreakerState records the failure breaker state for a scenario.
func (m *Metrics) SetBreakerState(scenario string, state int) {
	m.BreakerState.WithLabelValues(scenario).Set(float64(state))
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(store, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(store, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(store, operation).Inc()
	}
}

// RecordDBQuery records database query metrics on DefaultMetrics.
func RecordDBQuery(store, operation string, seconds float64, err error) {
	DefaultMetrics.RecordDBQuery(store, operation, seconds, err)
}

// RecordRunSuccess stamps the last successful run time on DefaultMetrics.
func RecordRunSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulRun.Set(float64(unixSeconds))
}
