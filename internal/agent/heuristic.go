package agent

import (
	"context"
	"math"
	"math/rand/v2"

	"treaty-bidding-lab/internal/domain"
)

// Mode controls exploration.
type Mode string

const (
	ModeDemo  Mode = "demo"  // no exploration
	ModeTrain Mode = "train" // epsilon-greedy quota exploration
)

// Heuristic bid parameters
const (
	lossRateMin    = 0.02 // expected loss as fraction of exposure
	lossRateMax    = 0.06
	quotaStddev    = 0.05
	exploreMinQS   = 0.1
	marginJitter   = 0.05
	tailRatioMin   = 0.2 // tail risk as fraction of expected loss
	tailRatioMax   = 0.5
	policyStep     = 0.01
	defaultEpsilon = 0.1
)

// HeuristicOptions configures a HeuristicAgent.
type HeuristicOptions struct {
	ID      string
	Mode    Mode
	Epsilon float64 // exploration rate in train mode; 0 uses 0.1
	Rng     *rand.Rand
}

// HeuristicAgent bids around a base quota and margin that drift with reward.
type HeuristicAgent struct {
	id   string
	mode Mode
	rng  *rand.Rand

	baseQuota  float64
	baseMargin float64
	epsilon    float64
}

// NewHeuristicAgent creates an agent with base quota U(0.2, 0.5) and
// base margin U(0.1, 0.3) drawn from opts.Rng.
func NewHeuristicAgent(opts HeuristicOptions) *HeuristicAgent {
	rng := opts.Rng
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeDemo
	}
	eps := opts.Epsilon
	if eps <= 0 {
		eps = defaultEpsilon
	}

	return &HeuristicAgent{
		id:         opts.ID,
		mode:       mode,
		rng:        rng,
		baseQuota:  uniform(rng, 0.2, 0.5),
		baseMargin: uniform(rng, 0.1, 0.3),
		epsilon:    eps,
	}
}

// ID returns the agent identifier.
func (a *HeuristicAgent) ID() string {
	return a.id
}

// Bid proposes terms for treaty.
func (a *HeuristicAgent) Bid(ctx context.Context, treaty domain.Treaty) (domain.Bid, error) {
	if err := ctx.Err(); err != nil {
		return domain.Bid{}, err
	}

	qsCap := treaty.EffectiveQuotaShareCap()
	expectedLoss := uniform(a.rng, lossRateMin, lossRateMax) * treaty.EffectiveExposure()

	var quota float64
	if a.mode == ModeTrain && a.rng.Float64() < a.epsilon {
		quota = uniform(a.rng, math.Min(exploreMinQS, qsCap), qsCap)
	} else {
		quota = a.baseQuota + a.rng.NormFloat64()*quotaStddev
		quota = math.Min(qsCap, math.Max(domain.MinBaseQuota, quota))
	}

	factor := 1 + a.baseMargin + uniform(a.rng, -marginJitter, marginJitter)
	factor = math.Max(1.0, factor)

	return domain.Bid{
		AgentID:      a.id,
		QuotaShare:   quota,
		Premium:      expectedLoss * factor,
		ExpectedLoss: expectedLoss,
		TailRisk:     expectedLoss * uniform(a.rng, tailRatioMin, tailRatioMax),
	}, nil
}

// UpdatePolicy raises quota and margin by one step on positive reward and
// lowers them otherwise, within fixed bounds.
func (a *HeuristicAgent) UpdatePolicy(reward float64) {
	if reward > 0 {
		a.baseQuota = math.Min(domain.MaxBaseQuota, a.baseQuota+policyStep)
		a.baseMargin = math.Min(domain.MaxBaseMargin, a.baseMargin+policyStep)
		return
	}
	a.baseQuota = math.Max(domain.MinBaseQuota, a.baseQuota-policyStep)
	a.baseMargin = math.Max(domain.MinBaseMargin, a.baseMargin-policyStep)
}

// ExportParameters returns the current policy values.
func (a *HeuristicAgent) ExportParameters() domain.AgentParameters {
	return domain.AgentParameters{
		BaseQuota:  a.baseQuota,
		BaseMargin: a.baseMargin,
		Epsilon:    a.epsilon,
	}
}

// LoadParameters replaces the policy values after validation. Epsilon is
// taken as given, so a checkpointed 0 turns exploration off.
func (a *HeuristicAgent) LoadParameters(p domain.AgentParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	a.baseQuota = p.BaseQuota
	a.baseMargin = p.BaseMargin
	a.epsilon = p.Epsilon
	return nil
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

var _ Agent = (*HeuristicAgent)(nil)
