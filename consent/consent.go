// Package consent drives the synchronous approve/deny exchange with a human
// for plans whose validation demands it. The presentation channel is an
// injected Approver; any channel failure counts as denial - the gate fails
// closed, never open.
package consent

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/rohanthewiz/logger"

	"deskpilot/plan"
)

// ApprovalRequest is the human-readable summary presented for a decision.
type ApprovalRequest struct {
	ID          string   `json:"id"`
	Task        string   `json:"task"`
	Risk        string   `json:"risk"`
	Steps       []string `json:"steps"`
	UserInput   string   `json:"user_input"`
	RequiresPIN bool     `json:"requires_pin"`
}

// ApprovalResponse is what the human (or their surface) sends back.
type ApprovalResponse struct {
	Approved bool   `json:"approved"`
	PIN      string `json:"pin,omitempty"`
}

// Approver is the human interaction boundary. Implementations block until a
// decision is available or fail with an error, which the coordinator treats
// as denial.
type Approver interface {
	PresentForApproval(req ApprovalRequest) (ApprovalResponse, error)
}

// Config holds consent coordinator settings.
type Config struct {
	// PINHash is the hex sha256 of the second-factor PIN. Empty means no PIN
	// is configured, so any second-factor requirement fails closed.
	PINHash string
}

// Coordinator decides whether approval is needed and runs the exchange.
type Coordinator struct {
	cfg Config
}

// NewCoordinator builds a consent coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg}
}

// RequestConsent returns the decision for a validated plan. Plans that do not
// require approval are auto-approved without prompting.
func (c *Coordinator) RequestConsent(p *plan.Plan, userInput string, vr plan.ValidationResult, approver Approver) plan.ConsentDecision {
	if !vr.RequiresApproval {
		return plan.ConsentDecision{Approved: true}
	}

	if approver == nil {
		logger.Warn("approval required but no interactive surface available, denying", "task", p.Task)
		return plan.ConsentDecision{}
	}

	// Present the effective risk, not the declared one: the plan may have
	// escalated during validation and the human must see what they approve.
	risk := vr.EffectiveRisk
	if !risk.Valid() {
		risk = p.Risk
	}

	req := ApprovalRequest{
		ID:          p.ID,
		Task:        p.Task,
		Risk:        string(risk),
		Steps:       p.StepSummaries(),
		UserInput:   userInput,
		RequiresPIN: vr.RequiresSecondFactor,
	}

	start := time.Now()
	resp, err := approver.PresentForApproval(req)
	if err != nil {
		logger.LogErr(err, "approval channel failed, denying", "task", p.Task)
		return plan.ConsentDecision{}
	}

	logger.Info("consent decision received",
		"task", p.Task,
		"approved", resp.Approved,
		"elapsed", time.Since(start).String())

	if !resp.Approved {
		return plan.ConsentDecision{}
	}

	decision := plan.ConsentDecision{Approved: true}

	if vr.RequiresSecondFactor {
		if !c.verifyPIN(resp.PIN) {
			logger.Warn("second factor verification failed, denying", "task", p.Task)
			return plan.ConsentDecision{}
		}
		decision.SecondFactorVerified = true
	}

	return decision
}

// verifyPIN compares the offered PIN against the configured hash in constant
// time. No configured hash means no PIN can ever verify.
func (c *Coordinator) verifyPIN(pin string) bool {
	if c.cfg.PINHash == "" || pin == "" {
		return false
	}
	sum := sha256.Sum256([]byte(pin))
	offered := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(offered), []byte(c.cfg.PINHash)) == 1
}

// HashPIN returns the hex sha256 of a PIN, for generating config values.
func HashPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}
