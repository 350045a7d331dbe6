// Package exec composes the safety validator, consent coordinator,
// dependency scheduler, and audit log into the single entry point for
// executing a plan against the desktop.
package exec

import "fmt"

// Error taxonomy for plan execution. Every rejection carries a
// human-readable reason; these types let a caller classify without string
// matching.
type (
	// ValidationError covers malformed plans, dangerous patterns, unknown
	// operations, the kill switch, and rate limiting. Always fatal to the
	// plan; nothing executes.
	ValidationError struct {
		Reason string
	}

	// ConsentDeniedError covers human denial, second-factor failure, and
	// interaction-channel errors. Fatal to the plan.
	ConsentDeniedError struct {
		Reason string
	}

	// StepExecutionError covers capability-provider step failures. Non-fatal
	// to the plan except for message sends; the result carries per-step
	// outcomes alongside.
	StepExecutionError struct {
		Reason string
	}

	// SchedulingError covers unsatisfiable dependency graphs.
	SchedulingError struct {
		Err error
	}

	// AuditWriteError signals degraded trust: the audit record could not be
	// persisted.
	AuditWriteError struct {
		Err error
	}
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("plan rejected: %s", e.Reason)
}

func (e *ConsentDeniedError) Error() string {
	return fmt.Sprintf("consent denied: %s", e.Reason)
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step execution failed: %s", e.Reason)
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("scheduling failed: %v", e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit write failed: %v", e.Err)
}

func (e *AuditWriteError) Unwrap() error {
	return e.Err
}
