// Package plan defines the shared data model for desktop automation plans:
// the Plan and Step types, risk levels, and the result types every other
// component produces or consumes.
package plan

import (
	"fmt"
	"strings"
)

// RiskLevel classifies how dangerous a plan or step is
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskRank gives the total order low < medium < high
var riskRank = map[RiskLevel]int{
	RiskLow:    0,
	RiskMedium: 1,
	RiskHigh:   2,
}

// Valid reports whether r is a known risk level
func (r RiskLevel) Valid() bool {
	_, ok := riskRank[r]
	return ok
}

// AtLeast reports whether r is at or above the given level
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return riskRank[r] >= riskRank[other]
}

// MaxRisk returns the higher of two risk levels
func MaxRisk(a, b RiskLevel) RiskLevel {
	if riskRank[b] > riskRank[a] {
		return b
	}
	return a
}

// Op identifies the kind of operation a step performs. The wire values match
// the planning service's output and are a closed set: anything else is
// rejected at the ingestion boundary.
type Op string

const (
	OpOpenApp       Op = "OpenApp"
	OpSystemSetting Op = "SystemSetting"
	OpType          Op = "Type"
	OpShortcut      Op = "Shortcut"
	OpMessage       Op = "Message"
	OpNavigate      Op = "Navigate"
	OpClick         Op = "Click"
	OpWait          Op = "Wait"
	OpConfirm       Op = "Confirm"
)

// KnownOps enumerates every operation kind the system understands.
var KnownOps = map[Op]bool{
	OpOpenApp:       true,
	OpSystemSetting: true,
	OpType:          true,
	OpShortcut:      true,
	OpMessage:       true,
	OpNavigate:      true,
	OpClick:         true,
	OpWait:          true,
	OpConfirm:       true,
}

// Step is one typed operation in a plan. Only the fields its Op needs are
// populated; steps are read-only once part of a Plan.
type Step struct {
	Op Op `json:"op"`

	// App is the application name for OpenApp.
	App string `json:"app,omitempty"`

	// Target is the setting path (SystemSetting), message recipient
	// (Message), destination (Navigate), or UI element (Click).
	Target string `json:"target,omitempty"`

	// Text is the literal text for Type, the message body for Message, and
	// the display text for Confirm.
	Text string `json:"text,omitempty"`

	// Keys is the key combination for Shortcut, e.g. "cmd+shift+4".
	Keys string `json:"keys,omitempty"`

	// Value is the value to assign for SystemSetting.
	Value string `json:"value,omitempty"`

	// DurationMs is the pause length for Wait.
	DurationMs int `json:"duration_ms,omitempty"`
}

// Summary renders a short human-readable description of the step, used in
// consent prompts and audit records.
func (s Step) Summary() string {
	switch s.Op {
	case OpOpenApp:
		return fmt.Sprintf("open app %q", s.App)
	case OpSystemSetting:
		return fmt.Sprintf("set %s = %s", s.Target, s.Value)
	case OpType:
		return fmt.Sprintf("type %d chars", len(s.Text))
	case OpShortcut:
		return fmt.Sprintf("press %s", s.Keys)
	case OpMessage:
		return fmt.Sprintf("send message to %q", s.Target)
	case OpNavigate:
		return fmt.Sprintf("navigate to %s", s.Target)
	case OpClick:
		return fmt.Sprintf("click %s", s.Target)
	case OpWait:
		return fmt.Sprintf("wait %dms", s.DurationMs)
	case OpConfirm:
		return fmt.Sprintf("confirm: %s", s.Text)
	}
	return string(s.Op)
}

// Plan is the validated unit of automation work. Immutable once created;
// produced by the external planning service and consumed here.
type Plan struct {
	ID    string    `json:"id"`
	Task  string    `json:"task"`
	Risk  RiskLevel `json:"risk"`
	Steps []Step    `json:"steps"`
}

// StepSummaries returns one summary line per step, in order.
func (p *Plan) StepSummaries() []string {
	out := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Summary())
	}
	return out
}

// Describe renders a one-line description used in logs.
func (p *Plan) Describe() string {
	return fmt.Sprintf("%s (%s, %d steps)", p.Task, p.Risk, len(p.Steps))
}

// FreeText collects every free-text field across the plan's steps, for
// pattern scanning.
func (p *Plan) FreeText() string {
	var b strings.Builder
	for _, s := range p.Steps {
		if s.Text != "" {
			b.WriteString(s.Text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
