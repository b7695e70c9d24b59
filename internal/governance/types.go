package governance

import (
	"errors"
	"fmt"

	"treaty-bidding-lab/internal/domain"
)

// Verdict is the outcome of a review.
type Verdict string

const (
	VerdictApprove  Verdict = "APPROVE"
	VerdictEscalate Verdict = "ESCALATE"
)

// Thresholds for the review checklist.
type Thresholds struct {
	MinComplianceRate float64 // compliance rate must be >= this, [0,1]
	MaxCVaRP95        float64 // cvar p95 must be <= this (monetary)
	MaxFailedEpisodes int     // failed episodes must be <= this
	HighRiskFraction  float64 // FindHighRisk flags cvar > fraction * exposure
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinComplianceRate: 0.8,
		MaxCVaRP95:        domain.DefaultExposure * domain.TailRiskStressFraction,
		MaxFailedEpisodes: 0,
		HighRiskFraction:  domain.TailRiskStressFraction,
	}
}

// Validation errors
var (
	ErrInvalidComplianceRate = errors.New("min compliance rate must be within [0,1]")
	ErrInvalidCVaRLimit      = errors.New("max cvar p95 must be non-negative")
	ErrInvalidFailureLimit   = errors.New("max failed episodes must be non-negative")
	ErrInvalidRiskFraction   = errors.New("high-risk exposure fraction must be positive")
)

// Validate checks threshold ranges.
func (t Thresholds) Validate() error {
	if t.MinComplianceRate < 0 || t.MinComplianceRate > 1 {
		return fmt.Errorf("%w: got %f", ErrInvalidComplianceRate, t.MinComplianceRate)
	}
	if t.MaxCVaRP95 < 0 {
		return fmt.Errorf("%w: got %f", ErrInvalidCVaRLimit, t.MaxCVaRP95)
	}
	if t.MaxFailedEpisodes < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFailureLimit, t.MaxFailedEpisodes)
	}
	if t.HighRiskFraction <= 0 {
		return fmt.Errorf("%w: got %f", ErrInvalidRiskFraction, t.HighRiskFraction)
	}
	return nil
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
	Pass      bool   `json:"pass"`
}

// ReviewResult is the checklist for one (run, scenario) summary.
type ReviewResult struct {
	RunID    string            `json:"run_id"`
	Scenario string            `json:"scenario"`
	Verdict  Verdict           `json:"verdict"`
	Criteria []CriterionResult `json:"criteria"`
}

// HighRiskEpisode is an episode flagged for manual review.
type HighRiskEpisode struct {
	EpisodeID    string   `json:"episode_id"`
	Scenario     string   `json:"scenario"`
	EpisodeIndex int      `json:"episode_index"`
	TreatyID     string   `json:"treaty_id"`
	AgentID      string   `json:"agent_id"`
	CVaR         float64  `json:"cvar"`
	Exposure     float64  `json:"exposure"`
	FailedChecks []string `json:"failed_checks,omitempty"`
}
