package domain

// PortfolioSummary aggregates evaluation records for one run and scenario.
// With zero records every numeric field is zero.
type PortfolioSummary struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`

	Episodes       int     `json:"episodes"`
	AvgProfit      float64 `json:"avg_profit"`
	AvgCVaR        float64 `json:"avg_cvar"`
	ComplianceRate float64 `json:"compliance_rate"` // [0,1]

	// Distribution
	ProfitStddev float64 `json:"profit_stddev"` // sample stddev (n-1)
	CVaRP95      float64 `json:"cvar_p95"`
	MaxCVaR      float64 `json:"max_cvar"`
	MaxDrawdown  float64 `json:"max_drawdown"` // on cumulative profit, episode order

	// RiskAdjustedReturn is the mean profit/CVaR over episodes with positive CVaR.
	RiskAdjustedReturn float64 `json:"risk_adjusted_return"`

	// Failure metadata
	FailedEpisodes int            `json:"failed_episodes"`
	FailureReasons map[string]int `json:"failure_reasons,omitempty"`
}
