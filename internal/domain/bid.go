package domain

import (
	"fmt"
	"math"
)

// Bid is one agent's proposal for a treaty. Read-only after creation.
type Bid struct {
	AgentID      string  `json:"agent_id"`
	QuotaShare   float64 `json:"quota_share"`   // fraction, may exceed the treaty cap (fails compliance)
	Premium      float64 `json:"premium"`       // monetary, > 0
	ExpectedLoss float64 `json:"expected_loss"` // monetary, >= 0
	TailRisk     float64 `json:"tail_risk"`     // monetary, >= 0, CVaR-style downside
}

// Profit returns premium minus expected loss.
func (b Bid) Profit() float64 {
	return b.Premium - b.ExpectedLoss
}

// Validate rejects negative or non-finite numeric fields.
func (b Bid) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"quota_share", b.QuotaShare},
		{"premium", b.Premium},
		{"expected_loss", b.ExpectedLoss},
		{"tail_risk", b.TailRisk},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s from agent %q is not finite", ErrInvalidBid, f.name, b.AgentID)
		}
		if f.v < 0 {
			return fmt.Errorf("%w: %s from agent %q is negative (%.4f)", ErrInvalidBid, f.name, b.AgentID, f.v)
		}
	}
	return nil
}
