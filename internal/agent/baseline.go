package agent

import (
	"context"
	"math"

	"treaty-bidding-lab/internal/domain"
)

// Baseline actuarial terms
const (
	baselineLossRate  = 0.04
	baselineQuota     = 0.3
	baselineMargin    = 0.2
	baselineTailRatio = 0.3
)

// BaselineAgent bids fixed actuarial terms and does not learn.
type BaselineAgent struct {
	id     string
	quota  float64
	margin float64
}

// NewBaselineAgent creates a baseline agent with quota 0.3 and margin 0.2.
func NewBaselineAgent(id string) *BaselineAgent {
	return &BaselineAgent{id: id, quota: baselineQuota, margin: baselineMargin}
}

// ID returns the agent identifier.
func (a *BaselineAgent) ID() string {
	return a.id
}

// Bid returns expected loss at 4% of exposure, premium at (1+margin) times
// expected loss and tail risk at 30% of expected loss.
func (a *BaselineAgent) Bid(ctx context.Context, treaty domain.Treaty) (domain.Bid, error) {
	if err := ctx.Err(); err != nil {
		return domain.Bid{}, err
	}
	expectedLoss := baselineLossRate * treaty.EffectiveExposure()
	return domain.Bid{
		AgentID:      a.id,
		QuotaShare:   math.Min(a.quota, treaty.EffectiveQuotaShareCap()),
		Premium:      expectedLoss * (1 + a.margin),
		ExpectedLoss: expectedLoss,
		TailRisk:     expectedLoss * baselineTailRatio,
	}, nil
}

// UpdatePolicy is a no-op.
func (a *BaselineAgent) UpdatePolicy(float64) {}

// ExportParameters returns the fixed terms.
func (a *BaselineAgent) ExportParameters() domain.AgentParameters {
	return domain.AgentParameters{BaseQuota: a.quota, BaseMargin: a.margin}
}

// LoadParameters replaces the fixed terms.
func (a *BaselineAgent) LoadParameters(p domain.AgentParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	a.quota = p.BaseQuota
	a.margin = p.BaseMargin
	return nil
}

var _ Agent = (*BaselineAgent)(nil)
