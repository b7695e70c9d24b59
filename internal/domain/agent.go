package domain

import (
	"fmt"
	"math"
	"time"
)

// AgentParameters are the agent-internal policy values that survive across runs.
type AgentParameters struct {
	BaseQuota  float64 `json:"base_quota"`
	BaseMargin float64 `json:"base_margin"`
	Epsilon    float64 `json:"epsilon"`
}

// Policy bounds for adaptive agents.
const (
	MinBaseQuota  = 0.05
	MaxBaseQuota  = 0.6
	MinBaseMargin = 0.05
	MaxBaseMargin = 0.35
)

// Validate checks that parameters are finite and within policy bounds.
func (p AgentParameters) Validate() error {
	for _, v := range []float64{p.BaseQuota, p.BaseMargin, p.Epsilon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidParameters)
		}
	}
	if p.BaseQuota < MinBaseQuota || p.BaseQuota > MaxBaseQuota {
		return fmt.Errorf("%w: base_quota %.4f outside [%.2f, %.2f]", ErrInvalidParameters, p.BaseQuota, MinBaseQuota, MaxBaseQuota)
	}
	if p.BaseMargin < MinBaseMargin || p.BaseMargin > MaxBaseMargin {
		return fmt.Errorf("%w: base_margin %.4f outside [%.2f, %.2f]", ErrInvalidParameters, p.BaseMargin, MinBaseMargin, MaxBaseMargin)
	}
	if p.Epsilon < 0 || p.Epsilon > 1 {
		return fmt.Errorf("%w: epsilon %.4f outside [0, 1]", ErrInvalidParameters, p.Epsilon)
	}
	return nil
}

// AgentCheckpoint is a persisted snapshot of one agent's parameters. Agents
// only resume from checkpoints of their own scenario.
type AgentCheckpoint struct {
	AgentID    string          `json:"agent_id"`
	RunID      string          `json:"run_id"`
	Scenario   string          `json:"scenario"`
	Parameters AgentParameters `json:"parameters"`
	SavedAt    time.Time       `json:"saved_at"`
}
