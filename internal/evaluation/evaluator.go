// Package evaluation scores a winning bid against its treaty.
package evaluation

import "treaty-bidding-lab/internal/domain"

// Config holds compliance thresholds. Zero values fall back to the domain constants.
type Config struct {
	MinPremiumMargin float64 // premium must be >= MinPremiumMargin * expected_loss
	TailRiskFraction float64 // cvar must be <= TailRiskFraction * exposure
}

// DefaultConfig returns thresholds from the domain constants.
func DefaultConfig() Config {
	return Config{
		MinPremiumMargin: domain.MinPremiumMargin,
		TailRiskFraction: domain.TailRiskStressFraction,
	}
}

// Evaluator computes profit, the cvar proxy and compliance flags.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(cfg Config) *Evaluator {
	def := DefaultConfig()
	if cfg.MinPremiumMargin <= 0 {
		cfg.MinPremiumMargin = def.MinPremiumMargin
	}
	if cfg.TailRiskFraction <= 0 {
		cfg.TailRiskFraction = def.TailRiskFraction
	}
	return &Evaluator{cfg: cfg}
}

// Config returns the active thresholds.
func (e *Evaluator) Config() Config {
	return e.cfg
}

// CVaR returns the tail-risk proxy for a bid.
// The proxy is the bid's own tail_risk estimate; it is not a distributional quantile.
func (e *Evaluator) CVaR(bid domain.Bid) float64 {
	return bid.TailRisk
}

// Evaluate scores bid against treaty. Missing treaty fields use the documented
// defaults (unconstrained cap, sentinel exposure). The capital check passes
// until a stress overlay applies a capital shock.
func (e *Evaluator) Evaluate(bid domain.Bid, treaty domain.Treaty, references ...string) domain.EvaluationRecord {
	cvar := e.CVaR(bid)

	flags := domain.ComplianceFlags{
		QuotaShareOK: bid.QuotaShare <= treaty.EffectiveQuotaShareCap(),
		PremiumOK:    e.premiumOK(bid),
		TailRiskOK:   cvar <= treaty.EffectiveExposure()*e.cfg.TailRiskFraction,
		CapitalOK:    true,
	}.WithAggregate()

	rec := domain.EvaluationRecord{
		Profit: bid.Profit(),
		CVaR:   cvar,
		Flags:  flags,
	}
	if len(references) > 0 {
		rec.References = append([]string(nil), references...)
	}
	return rec
}

// premiumOK requires a positive premium of at least the minimum margin over expected loss.
func (e *Evaluator) premiumOK(bid domain.Bid) bool {
	return bid.Premium > 0 && bid.Premium >= e.cfg.MinPremiumMargin*bid.ExpectedLoss
}
