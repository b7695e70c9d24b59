package domain

// Compliance thresholds shared by the evaluator and the stress overlay.
const (
	// MinPremiumMargin is the minimum premium / expected_loss ratio for premium_ok.
	MinPremiumMargin = 1.05

	// TailRiskStressFraction is the fraction of exposure that cvar may not exceed.
	TailRiskStressFraction = 0.5
)

// Compliance flag names as exposed to collaborators.
const (
	FlagQuotaShareOK = "quota_share_ok"
	FlagPremiumOK    = "premium_ok"
	FlagTailRiskOK   = "tail_risk_ok"
	FlagCapitalOK    = "capital_ok"
	FlagAllOK        = "all_ok"
)

// ComplianceFlags holds the named regulatory checks for one winning bid.
// AllOK is always the AND of the individual flags; use WithAggregate after
// changing any of them.
type ComplianceFlags struct {
	QuotaShareOK bool `json:"quota_share_ok"`
	PremiumOK    bool `json:"premium_ok"`
	TailRiskOK   bool `json:"tail_risk_ok"`
	CapitalOK    bool `json:"capital_ok"`
	AllOK        bool `json:"all_ok"`
}

// WithAggregate returns a copy with AllOK recomputed.
func (f ComplianceFlags) WithAggregate() ComplianceFlags {
	f.AllOK = f.QuotaShareOK && f.PremiumOK && f.TailRiskOK && f.CapitalOK
	return f
}

// Checks returns the individual flags keyed by name, plus all_ok.
func (f ComplianceFlags) Checks() map[string]bool {
	return map[string]bool{
		FlagQuotaShareOK: f.QuotaShareOK,
		FlagPremiumOK:    f.PremiumOK,
		FlagTailRiskOK:   f.TailRiskOK,
		FlagCapitalOK:    f.CapitalOK,
		FlagAllOK:        f.AllOK,
	}
}

// Failed returns the names of individual checks that did not pass, in fixed order.
func (f ComplianceFlags) Failed() []string {
	var failed []string
	if !f.QuotaShareOK {
		failed = append(failed, FlagQuotaShareOK)
	}
	if !f.PremiumOK {
		failed = append(failed, FlagPremiumOK)
	}
	if !f.TailRiskOK {
		failed = append(failed, FlagTailRiskOK)
	}
	if !f.CapitalOK {
		failed = append(failed, FlagCapitalOK)
	}
	return failed
}

// EvaluationRecord is the scored outcome of one (treaty, winning bid) pair.
type EvaluationRecord struct {
	Profit float64         `json:"profit"` // premium - expected_loss
	CVaR   float64         `json:"cvar"`   // tail-risk proxy
	Flags  ComplianceFlags `json:"regulatory_flags"`

	// References are opaque clause/explanation pointers passed through untouched.
	References []string `json:"references,omitempty"`
}

// Clone returns a deep copy.
func (r EvaluationRecord) Clone() EvaluationRecord {
	c := r
	if r.References != nil {
		c.References = make([]string, len(r.References))
		copy(c.References, r.References)
	}
	return c
}
