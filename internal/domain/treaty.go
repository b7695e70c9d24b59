package domain

import (
	"fmt"
	"math"
)

// Treaty represents one reinsurance placement offered for bid.
// Values handed to an episode are never mutated; stress overlays produce copies.
type Treaty struct {
	TreatyID       string  `json:"treaty_id"`
	Cedent         string  `json:"cedent"`
	Peril          string  `json:"peril"`
	Region         string  `json:"region"`
	LineOfBusiness string  `json:"line_of_business"`
	Exposure       float64 `json:"exposure"`        // monetary, > 0
	Limit          float64 `json:"limit"`           // fraction of exposure, 0-1
	QuotaShareCap  float64 `json:"quota_share_cap"` // fraction, (0,1]; 0 means absent
	Notes          string  `json:"notes,omitempty"`

	// StressPath lists scenario names applied to this value, oldest first.
	StressPath []string `json:"stress_path,omitempty"`
}

// Treaty defaults substituted for absent or unusable fields.
const (
	// DefaultExposure is the sentinel used when exposure is missing or <= 0.
	// Large enough that the tail-risk check is not vacuously false.
	DefaultExposure = 1_000_000.0

	// DefaultQuotaShareCap leaves quota share unconstrained.
	DefaultQuotaShareCap = 1.0
)

// EffectiveExposure returns exposure, or DefaultExposure when it is not positive.
func (t Treaty) EffectiveExposure() float64 {
	if t.Exposure <= 0 || math.IsNaN(t.Exposure) {
		return DefaultExposure
	}
	return t.Exposure
}

// EffectiveQuotaShareCap returns the cap, or DefaultQuotaShareCap when absent.
func (t Treaty) EffectiveQuotaShareCap() float64 {
	if t.QuotaShareCap <= 0 || math.IsNaN(t.QuotaShareCap) {
		return DefaultQuotaShareCap
	}
	return t.QuotaShareCap
}

// Clone returns a deep copy.
func (t Treaty) Clone() Treaty {
	c := t
	if t.StressPath != nil {
		c.StressPath = make([]string, len(t.StressPath))
		copy(c.StressPath, t.StressPath)
	}
	return c
}

// Normalize validates the treaty and substitutes documented defaults for
// recoverable defects. Each substitution is reported as a warning.
// Unrecoverable defects return ErrMalformedTreaty.
func (t Treaty) Normalize() (Treaty, []string, error) {
	fields := []struct {
		name string
		v    float64
	}{
		{"exposure", t.Exposure},
		{"limit", t.Limit},
		{"quota_share_cap", t.QuotaShareCap},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return Treaty{}, nil, fmt.Errorf("%w: %s is not finite", ErrMalformedTreaty, f.name)
		}
	}
	if t.QuotaShareCap < 0 || t.QuotaShareCap > 1 {
		return Treaty{}, nil, fmt.Errorf("%w: quota_share_cap %.4f outside [0,1]", ErrMalformedTreaty, t.QuotaShareCap)
	}
	if t.Limit < 0 || t.Limit > 1 {
		return Treaty{}, nil, fmt.Errorf("%w: limit %.4f outside [0,1]", ErrMalformedTreaty, t.Limit)
	}

	out := t.Clone()
	var warnings []string
	if out.Exposure <= 0 {
		warnings = append(warnings, fmt.Sprintf("exposure %.2f replaced with default %.0f", out.Exposure, DefaultExposure))
		out.Exposure = DefaultExposure
	}
	if out.QuotaShareCap == 0 {
		warnings = append(warnings, "quota_share_cap missing, using 1.0")
		out.QuotaShareCap = DefaultQuotaShareCap
	}
	return out, warnings, nil
}
