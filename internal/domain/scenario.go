package domain

// StressScenario is a named multiplicative perturbation policy.
// Defined statically by configuration and never mutated.
type StressScenario struct {
	Name               string  `json:"name" yaml:"name" validate:"required"`
	LossMultiplier     float64 `json:"loss_multiplier" yaml:"loss_multiplier" validate:"gte=0"`
	TailRiskMultiplier float64 `json:"tail_risk_multiplier" yaml:"tail_risk_multiplier" validate:"gte=0"`
	CapitalShock       float64 `json:"capital_shock" yaml:"capital_shock" validate:"gt=0,lte=1"` // 1.0 = no shock
	ExposureMultiplier float64 `json:"exposure_multiplier" yaml:"exposure_multiplier" validate:"gt=0"`
}

// HasCapitalShock reports whether the scenario tightens the capital gate.
func (s StressScenario) HasCapitalShock() bool {
	return s.CapitalShock < 1.0
}

// Scenario name constants
const (
	ScenarioBaseline         = "baseline"
	ScenarioCatastropheShock = "catastrophe_shock"
	ScenarioCapitalSqueeze   = "capital_squeeze"
	ScenarioMarketDownturn   = "market_downturn"
)

// Predefined stress scenarios.
var (
	StressBaseline = StressScenario{
		Name:               ScenarioBaseline,
		LossMultiplier:     1.0,
		TailRiskMultiplier: 1.0,
		CapitalShock:       1.0,
		ExposureMultiplier: 1.0,
	}

	StressCatastropheShock = StressScenario{
		Name:               ScenarioCatastropheShock,
		LossMultiplier:     1.5,
		TailRiskMultiplier: 2.0,
		CapitalShock:       1.0,
		ExposureMultiplier: 1.5,
	}

	StressCapitalSqueeze = StressScenario{
		Name:               ScenarioCapitalSqueeze,
		LossMultiplier:     1.0,
		TailRiskMultiplier: 1.3,
		CapitalShock:       0.8,
		ExposureMultiplier: 1.0,
	}

	StressMarketDownturn = StressScenario{
		Name:               ScenarioMarketDownturn,
		LossMultiplier:     1.2,
		TailRiskMultiplier: 1.2,
		CapitalShock:       0.9,
		ExposureMultiplier: 1.1,
	}
)

// DefaultStressScenarios returns the predefined scenarios in a fixed order.
func DefaultStressScenarios() []StressScenario {
	return []StressScenario{
		StressBaseline,
		StressCatastropheShock,
		StressCapitalSqueeze,
		StressMarketDownturn,
	}
}
