package plan

// ValidationResult is the per-step verdict from the safety validator,
// aggregated per-plan by OR-ing the approval flags, AND-ing Allowed, and
// concatenating warnings.
type ValidationResult struct {
	Allowed              bool     `json:"allowed"`
	Reason               string   `json:"reason,omitempty"`
	RequiresApproval     bool     `json:"requires_approval"`
	RequiresSecondFactor bool     `json:"requires_second_factor"`
	Warnings             []string `json:"warnings,omitempty"`

	// EffectiveRisk is the max of the plan's declared risk and every step's
	// risk. The consent prompt and audit record carry this, never the
	// declared risk alone.
	EffectiveRisk RiskLevel `json:"effective_risk,omitempty"`
}

// Merge folds another result into this one following the aggregation rules.
func (v *ValidationResult) Merge(other ValidationResult) {
	if !other.Allowed {
		v.Allowed = false
		if v.Reason == "" {
			v.Reason = other.Reason
		}
	}
	v.RequiresApproval = v.RequiresApproval || other.RequiresApproval
	v.RequiresSecondFactor = v.RequiresSecondFactor || other.RequiresSecondFactor
	v.Warnings = append(v.Warnings, other.Warnings...)
}

// ConsentDecision is the outcome of a consent exchange with a human.
type ConsentDecision struct {
	Approved             bool `json:"approved"`
	SecondFactorVerified bool `json:"second_factor_verified"`
}

// ExecutionOutcome is the per-step result of execution.
type ExecutionOutcome struct {
	Success    bool   `json:"success"`
	ResultText string `json:"result_text,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// ExecutionResult is the per-plan result. Success holds iff every step's
// outcome succeeded.
type ExecutionResult struct {
	Success        bool               `json:"success"`
	CompletedSteps int                `json:"completed_steps"`
	TotalSteps     int                `json:"total_steps"`
	Outcomes       []ExecutionOutcome `json:"outcomes"`
	Error          string             `json:"error,omitempty"`
}
