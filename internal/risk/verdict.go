package risk

// Check names, in the order the gate evaluates them. The order affects
// only diagnostics; acceptance is the AND over all checks.
const (
	CheckConfidence       = "confidence"
	CheckExposure         = "exposure"
	CheckDailyLoss        = "daily_loss"
	CheckVolatility       = "volatility"
	CheckCorrelation      = "correlation"
	CheckDrawdown         = "drawdown"
	CheckMarketConditions = "market_conditions"
)

// CheckResult is one check's outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Verdict is the immutable result of a gate call. A rejection is an
// expected outcome, not an error.
type Verdict struct {
	Accepted bool          `json:"accepted"`
	Checks   []CheckResult `json:"checks"`
	Reason   string        `json:"reason,omitempty"`
	Caveats  []string      `json:"caveats,omitempty"` // fail-open notes
}

// FailedChecks returns the names of all failing checks.
func (v Verdict) FailedChecks() []string {
	var names []string
	for _, c := range v.Checks {
		if !c.Passed {
			names = append(names, c.Name)
		}
	}
	return names
}

func (v *Verdict) record(c CheckResult) {
	v.Checks = append(v.Checks, c)
}

func (v *Verdict) caveat(msg string) {
	v.Caveats = append(v.Caveats, msg)
}

func pass(name, detail string) CheckResult {
	return CheckResult{Name: name, Passed: true, Detail: detail}
}

func fail(name, detail string) CheckResult {
	return CheckResult{Name: name, Passed: false, Detail: detail}
}
