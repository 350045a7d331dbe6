package exec

import (
	"context"
	"sync/atomic"

	"github.com/rohanthewiz/logger"

	"deskpilot/audit"
	"deskpilot/consent"
	"deskpilot/plan"
	"deskpilot/safety"
	"deskpilot/scheduler"
)

// Coordinator is the single entry point for executing a plan. It is
// constructed once at startup with all of its collaborators injected and
// torn down at shutdown; nothing here is a package-level singleton.
type Coordinator struct {
	validator  *safety.Validator
	consent    *consent.Coordinator
	sched      *scheduler.Scheduler
	log        *audit.Log
	limiter    *safety.RateLimiter
	capability scheduler.Provider

	// degraded flips when an audit write fails; while set, high-risk plans
	// are refused because the trail can no longer be trusted.
	degraded atomic.Bool
}

// New wires a coordinator from its collaborators.
func New(validator *safety.Validator, consentCoord *consent.Coordinator, sched *scheduler.Scheduler, log *audit.Log, limiter *safety.RateLimiter, capability scheduler.Provider) *Coordinator {
	return &Coordinator{
		validator:  validator,
		consent:    consentCoord,
		sched:      sched,
		log:        log,
		limiter:    limiter,
		capability: capability,
	}
}

// Degraded reports whether audit persistence has failed since startup.
func (c *Coordinator) Degraded() bool {
	return c.degraded.Load()
}

// Execute runs the full pipeline for one plan: validation, consent,
// scheduling, and audit. It always returns an ExecutionResult; failures are
// reported in Result.Error, never panicked or silently dropped. Every
// outcome - rejection, denial, or execution - lands in the audit log.
func (c *Coordinator) Execute(ctx context.Context, p *plan.Plan, userInput string, approver consent.Approver) plan.ExecutionResult {
	total := 0
	if p != nil {
		total = len(p.Steps)
	}

	effRisk := plan.RiskLow
	if p != nil {
		effRisk = c.validator.EffectiveRisk(p)
	}

	// Degraded trust: without a working audit trail, high-risk work waits.
	if c.degraded.Load() && effRisk == plan.RiskHigh {
		reason := "audit log is degraded; high-risk plans are suspended"
		logger.Warn("refusing high-risk plan in degraded mode", "task", taskOf(p))
		return c.finish(p, userInput, effRisk, false, false, reason, nil, total)
	}

	vr := c.validator.Validate(p, userInput)
	if !vr.Allowed {
		logger.Info("plan rejected by validator", "task", taskOf(p), "reason", vr.Reason)
		return c.finish(p, userInput, effRisk, false, false, (&ValidationError{Reason: vr.Reason}).Error(), nil, total)
	}

	decision := c.consent.RequestConsent(p, userInput, vr, approver)
	if !decision.Approved {
		reason := "human declined or no decision was possible"
		if vr.RequiresSecondFactor && !decision.SecondFactorVerified {
			reason = "second-factor verification was not completed"
		}
		logger.Info("plan denied consent", "task", p.Task, "reason", reason)
		return c.finish(p, userInput, effRisk, false, false, (&ConsentDeniedError{Reason: reason}).Error(), nil, total)
	}

	// The plan is accepted: it now counts against the rate limit window.
	c.limiter.RecordAction(p.Task)

	outcomes, err := c.sched.Execute(ctx, p.Steps, c.capability)
	if err != nil {
		return c.finish(p, userInput, effRisk, true, false, (&SchedulingError{Err: err}).Error(), outcomes, total)
	}

	completed := 0
	for _, o := range outcomes {
		if o.Success {
			completed++
		}
	}

	execErr := ""
	if completed < total {
		execErr = (&StepExecutionError{Reason: firstError(outcomes)}).Error()
	}

	return c.finish(p, userInput, effRisk, true, true, execErr, outcomes, total)
}

func taskOf(p *plan.Plan) string {
	if p == nil {
		return "<nil plan>"
	}
	return p.Task
}

func firstError(outcomes []plan.ExecutionOutcome) string {
	for _, o := range outcomes {
		if !o.Success && o.Error != "" {
			return o.Error
		}
	}
	return ""
}

// finish writes the audit record and assembles the ExecutionResult. An
// audit write failure flips the degraded flag but does not crash the
// process or change the result beyond logging.
func (c *Coordinator) finish(p *plan.Plan, userInput string, risk plan.RiskLevel, approved, executed bool, errText string, outcomes []plan.ExecutionOutcome, total int) plan.ExecutionResult {
	if err := c.log.Append(taskOf(p), risk, userInput, p, approved, executed, errText); err != nil {
		c.degraded.Store(true)
		logger.LogErr((&AuditWriteError{Err: err}), "audit append failed, entering degraded mode")
	} else if c.degraded.Load() {
		// A successful write restores trust in the trail.
		c.degraded.Store(false)
		logger.Info("audit log recovered, leaving degraded mode")
	}

	completed := 0
	for _, o := range outcomes {
		if o.Success {
			completed++
		}
	}

	return plan.ExecutionResult{
		Success:        executed && errText == "" && completed == total,
		CompletedSteps: completed,
		TotalSteps:     total,
		Outcomes:       outcomes,
		Error:          errText,
	}
}
