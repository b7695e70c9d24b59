package stress

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"treaty-bidding-lab/internal/domain"
)

// ErrScenarioMisconfigured is returned when a scenario fails validation.
var ErrScenarioMisconfigured = errors.New("stress scenario misconfigured")

var scenarioValidate = validator.New()

// Validate checks one scenario's multipliers against their documented ranges.
func Validate(s domain.StressScenario) error {
	for _, v := range []float64{s.LossMultiplier, s.TailRiskMultiplier, s.CapitalShock, s.ExposureMultiplier} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: scenario %q has a non-finite multiplier", ErrScenarioMisconfigured, s.Name)
		}
	}
	if err := scenarioValidate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: scenario %q field %s fails %s=%s (got %v)",
				ErrScenarioMisconfigured, s.Name, fe.Field(), fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Errorf("%w: scenario %q: %v", ErrScenarioMisconfigured, s.Name, err)
	}
	return nil
}

// ValidateAll validates every scenario and rejects duplicate names.
func ValidateAll(scenarios []domain.StressScenario) error {
	seen := make(map[string]struct{}, len(scenarios))
	for _, s := range scenarios {
		if err := Validate(s); err != nil {
			return err
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate scenario name %q", ErrScenarioMisconfigured, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// scenarioFile is the YAML layout. Pointer fields distinguish absent
// multipliers, which default to 1.0.
type scenarioFile struct {
	Scenarios []struct {
		Name               string   `yaml:"name"`
		LossMultiplier     *float64 `yaml:"loss_multiplier"`
		TailRiskMultiplier *float64 `yaml:"tail_risk_multiplier"`
		CapitalShock       *float64 `yaml:"capital_shock"`
		ExposureMultiplier *float64 `yaml:"exposure_multiplier"`
	} `yaml:"scenarios"`
}

// LoadScenarios decodes and validates scenarios from YAML. The whole set is
// rejected if any scenario is misconfigured.
func LoadScenarios(r io.Reader) ([]domain.StressScenario, error) {
	var file scenarioFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode scenarios: %w", err)
	}

	scenarios := make([]domain.StressScenario, 0, len(file.Scenarios))
	for _, e := range file.Scenarios {
		scenarios = append(scenarios, domain.StressScenario{
			Name:               e.Name,
			LossMultiplier:     orOne(e.LossMultiplier),
			TailRiskMultiplier: orOne(e.TailRiskMultiplier),
			CapitalShock:       orOne(e.CapitalShock),
			ExposureMultiplier: orOne(e.ExposureMultiplier),
		})
	}

	if err := ValidateAll(scenarios); err != nil {
		return nil, err
	}
	return scenarios, nil
}

// LoadScenariosFile reads scenarios from a YAML file.
func LoadScenariosFile(path string) ([]domain.StressScenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenarios file: %w", err)
	}
	defer f.Close()

	return LoadScenarios(f)
}

func orOne(v *float64) float64 {
	if v == nil {
		return 1.0
	}
	return *v
}
