// Package stress overlays named stress scenarios on treaties, bids and
// evaluation records.
package stress

import (
	"math/rand/v2"

	"treaty-bidding-lab/internal/domain"
)

// Applier perturbs values under a scenario. It never mutates its inputs and
// repeated application compounds multiplicatively.
//
// The capital-shock gate draws from the injected random source, so a run is
// reproducible under a fixed seed. An Applier belongs to one run.
type Applier struct {
	rng *rand.Rand
}

// NewApplier creates an applier drawing capital-shock gates from rng.
func NewApplier(rng *rand.Rand) *Applier {
	return &Applier{rng: rng}
}

// ApplyTreaty returns a copy of t with exposure scaled by the scenario's
// exposure multiplier and the scenario name appended to its stress path.
func (a *Applier) ApplyTreaty(t domain.Treaty, s domain.StressScenario) domain.Treaty {
	out := t.Clone()
	out.Exposure = t.Exposure * s.ExposureMultiplier
	out.StressPath = append(out.StressPath, s.Name)
	return out
}

// ApplyBid returns a copy of b with expected loss scaled by the loss
// multiplier and tail risk by the tail-risk multiplier.
func (a *Applier) ApplyBid(b domain.Bid, s domain.StressScenario) domain.Bid {
	out := b
	out.ExpectedLoss = b.ExpectedLoss * s.LossMultiplier
	out.TailRisk = b.TailRisk * s.TailRiskMultiplier
	return out
}

// ApplyCapitalShock returns a copy of rec whose capital check passes with
// probability equal to the scenario's capital shock. A shock of 1.0 leaves
// the record unchanged and draws nothing from the random source.
// A capital check that already failed stays failed.
func (a *Applier) ApplyCapitalShock(rec domain.EvaluationRecord, s domain.StressScenario) domain.EvaluationRecord {
	out := rec.Clone()
	if !s.HasCapitalShock() {
		return out
	}

	passed := a.rng.Float64() < s.CapitalShock
	out.Flags.CapitalOK = out.Flags.CapitalOK && passed
	out.Flags = out.Flags.WithAggregate()
	return out
}
