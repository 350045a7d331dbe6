package safety

import (
	"fmt"
	"strings"

	"github.com/rohanthewiz/logger"

	"deskpilot/plan"
	"deskpilot/policy"
)

// ValidatorConfig tunes the validator's risk thresholds.
type ValidatorConfig struct {
	// ApprovalThreshold is the aggregated risk at which human approval is
	// required. Defaults to medium.
	ApprovalThreshold plan.RiskLevel

	// RequireSecondFactorForHigh demands PIN verification for high-risk
	// plans. Off by default.
	RequireSecondFactorForHigh bool

	// SensitiveSettingPrefixes escalate a SystemSetting step to medium risk
	// when the setting path starts with one of them.
	SensitiveSettingPrefixes []string

	// LongTextThreshold is the typed-text length at which a Type step
	// escalates to medium risk.
	LongTextThreshold int
}

func (c *ValidatorConfig) applyDefaults() {
	if !c.ApprovalThreshold.Valid() {
		c.ApprovalThreshold = plan.RiskMedium
	}
	if c.SensitiveSettingPrefixes == nil {
		c.SensitiveSettingPrefixes = []string{"security.", "network.", "privacy.", "accounts."}
	}
	if c.LongTextThreshold <= 0 {
		c.LongTextThreshold = 200
	}
}

// Validator structurally validates plans, scans for dangerous patterns, and
// assigns risk. It owns no state of its own; the kill switch and rate
// limiter are injected.
type Validator struct {
	kill    *KillSwitch
	limiter *RateLimiter
	rules   *policy.RuleSet
	cfg     ValidatorConfig
}

// NewValidator wires a validator. rules may be nil.
func NewValidator(kill *KillSwitch, limiter *RateLimiter, rules *policy.RuleSet, cfg ValidatorConfig) *Validator {
	cfg.applyDefaults()
	return &Validator{kill: kill, limiter: limiter, rules: rules, cfg: cfg}
}

// stepVerdict is what a per-kind validator reports for one step.
type stepVerdict struct {
	risk             plan.RiskLevel
	requiresApproval bool
	warnings         []string
	reject           string
}

// stepValidators is the closed handler table over operation kinds. A kind
// missing here is rejected as unsafe; adding a kind means adding a handler.
var stepValidators = map[plan.Op]func(*Validator, plan.Step) stepVerdict{
	plan.OpOpenApp:       (*Validator).validateOpenApp,
	plan.OpSystemSetting: (*Validator).validateSystemSetting,
	plan.OpType:          (*Validator).validateType,
	plan.OpShortcut:      (*Validator).validateShortcut,
	plan.OpMessage:       (*Validator).validateMessage,
	plan.OpNavigate:      (*Validator).validateNavigate,
	plan.OpClick:         (*Validator).validateClick,
	plan.OpWait:          (*Validator).validateWait,
	plan.OpConfirm:       (*Validator).validateConfirm,
}

// Validate runs the full validation algorithm over a plan. The first
// structural or pattern failure short-circuits with a specific reason.
func (v *Validator) Validate(p *plan.Plan, userInput string) plan.ValidationResult {
	// Kill switch outranks every other check.
	if v.kill.IsActive() {
		return rejected("kill switch is active")
	}

	if p == nil || strings.TrimSpace(p.Task) == "" {
		return rejected("plan has no task description")
	}
	if len(p.Steps) == 0 {
		return rejected("plan has no steps")
	}
	if !p.Risk.Valid() {
		return rejected(fmt.Sprintf("plan has unknown risk level %q", p.Risk))
	}

	if rl := v.limiter.CheckLimit(); !rl.Allowed {
		return rl
	}

	// The spoken instruction itself is untrusted free text.
	if name, hit := ScanDangerous(userInput); hit {
		return rejected(fmt.Sprintf("user input matches dangerous pattern %q", name))
	}

	agg := plan.ValidationResult{Allowed: true}
	risk := p.Risk

	for i, step := range p.Steps {
		validate, known := stepValidators[step.Op]
		if !known {
			// Closed world: an unenumerated kind is high-risk and unsafe.
			return rejected(fmt.Sprintf("step %d has unknown operation %q", i+1, step.Op))
		}

		sv := validate(v, step)
		if sv.reject != "" {
			return rejected(fmt.Sprintf("step %d: %s", i+1, sv.reject))
		}

		risk = plan.MaxRisk(risk, sv.risk)
		agg.Merge(plan.ValidationResult{
			Allowed:          true,
			RequiresApproval: sv.requiresApproval,
			Warnings:         prefixWarnings(i+1, sv.warnings),
		})

		if v.rules != nil {
			rv := v.rules.Evaluate(step, p.Risk, userInput)
			if rv.Deny {
				return rejected(fmt.Sprintf("step %d denied by guard rule: %s", i+1, rv.Reason))
			}
			if rv.RequireApproval {
				agg.RequiresApproval = true
				agg.Warnings = append(agg.Warnings, fmt.Sprintf("step %d: %s", i+1, rv.Reason))
			}
		}
	}

	agg.EffectiveRisk = risk

	if risk.AtLeast(v.cfg.ApprovalThreshold) {
		agg.RequiresApproval = true
	}
	if risk == plan.RiskHigh && v.cfg.RequireSecondFactorForHigh {
		agg.RequiresSecondFactor = true
	}

	logger.Info("plan validated",
		"task", p.Task,
		"declared_risk", string(p.Risk),
		"effective_risk", string(risk),
		"requires_approval", agg.RequiresApproval,
		"requires_second_factor", agg.RequiresSecondFactor,
		"warnings", len(agg.Warnings))

	return agg
}

// EffectiveRisk computes the plan's aggregated risk without running full
// validation. Used for audit records and degraded-mode gating.
func (v *Validator) EffectiveRisk(p *plan.Plan) plan.RiskLevel {
	risk := p.Risk
	for _, step := range p.Steps {
		if validate, known := stepValidators[step.Op]; known {
			if sv := validate(v, step); sv.reject == "" {
				risk = plan.MaxRisk(risk, sv.risk)
				continue
			}
		}
		risk = plan.RiskHigh
	}
	return risk
}

func (v *Validator) validateOpenApp(s plan.Step) stepVerdict {
	if strings.TrimSpace(s.App) == "" {
		return stepVerdict{reject: "OpenApp requires an app name"}
	}
	return stepVerdict{risk: plan.RiskLow}
}

func (v *Validator) validateSystemSetting(s plan.Step) stepVerdict {
	if strings.TrimSpace(s.Target) == "" {
		return stepVerdict{reject: "SystemSetting requires a setting path"}
	}
	if s.Value == "" {
		return stepVerdict{reject: "SystemSetting requires a value"}
	}

	// Most settings are routine; security/network/privacy paths are not.
	for _, prefix := range v.cfg.SensitiveSettingPrefixes {
		if strings.HasPrefix(s.Target, prefix) {
			return stepVerdict{
				risk:     plan.RiskMedium,
				warnings: []string{fmt.Sprintf("changes sensitive setting %s", s.Target)},
			}
		}
	}
	return stepVerdict{risk: plan.RiskLow}
}

func (v *Validator) validateType(s plan.Step) stepVerdict {
	if s.Text == "" {
		return stepVerdict{reject: "Type requires text"}
	}
	if name, hit := ScanDangerous(s.Text); hit {
		return stepVerdict{reject: fmt.Sprintf("typed text matches dangerous pattern %q", name)}
	}
	if len(s.Text) > v.cfg.LongTextThreshold {
		return stepVerdict{
			risk:     plan.RiskMedium,
			warnings: []string{fmt.Sprintf("types a long text block (%d chars)", len(s.Text))},
		}
	}
	return stepVerdict{risk: plan.RiskLow}
}

func (v *Validator) validateShortcut(s plan.Step) stepVerdict {
	if strings.TrimSpace(s.Keys) == "" {
		return stepVerdict{reject: "Shortcut requires a key combination"}
	}
	return stepVerdict{risk: plan.RiskMedium}
}

func (v *Validator) validateMessage(s plan.Step) stepVerdict {
	if strings.TrimSpace(s.Target) == "" {
		return stepVerdict{reject: "Message requires a recipient"}
	}
	if s.Text == "" {
		return stepVerdict{reject: "Message requires a body"}
	}
	if name, hit := ScanDangerous(s.Text); hit {
		return stepVerdict{reject: fmt.Sprintf("message body matches dangerous pattern %q", name)}
	}

	// Sending a communication to another person is always high risk and
	// always needs approval, whatever the plan declares.
	return stepVerdict{
		risk:             plan.RiskHigh,
		requiresApproval: true,
		warnings:         []string{fmt.Sprintf("sends a message to %q", s.Target)},
	}
}

func (v *Validator) validateNavigate(s plan.Step) stepVerdict {
	if strings.TrimSpace(s.Target) == "" {
		return stepVerdict{reject: "Navigate requires a destination"}
	}
	return stepVerdict{risk: plan.RiskLow}
}

func (v *Validator) validateClick(s plan.Step) stepVerdict {
	if strings.TrimSpace(s.Target) == "" {
		return stepVerdict{reject: "Click requires a target element"}
	}
	return stepVerdict{risk: plan.RiskLow}
}

func (v *Validator) validateWait(s plan.Step) stepVerdict {
	if s.DurationMs < 0 {
		return stepVerdict{reject: "Wait requires a non-negative duration"}
	}
	return stepVerdict{risk: plan.RiskLow}
}

func (v *Validator) validateConfirm(s plan.Step) stepVerdict {
	if s.Text == "" {
		return stepVerdict{reject: "Confirm requires display text"}
	}
	return stepVerdict{risk: plan.RiskLow}
}

func rejected(reason string) plan.ValidationResult {
	return plan.ValidationResult{Allowed: false, Reason: reason}
}

func prefixWarnings(stepNum int, warnings []string) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, fmt.Sprintf("step %d: %s", stepNum, w))
	}
	return out
}
