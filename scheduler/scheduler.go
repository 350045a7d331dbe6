package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"

	"deskpilot/plan"
	"deskpilot/safety"
)

// Provider is the capability provider boundary: the external component that
// performs a step's real-world effect. Called once per step.
type Provider interface {
	Perform(ctx context.Context, step plan.Step) (resultText string, err error)
}

// DefaultStepTimeout bounds a single capability-provider call so a hung step
// cannot block its wave forever.
const DefaultStepTimeout = 2 * time.Minute

// DefaultMaxWorkers bounds concurrent steps within one wave.
const DefaultMaxWorkers = 4

// Scheduler executes steps in dependency order, dispatching mutually
// independent steps concurrently and waiting at a barrier after each wave.
type Scheduler struct {
	kill        *safety.KillSwitch
	stepTimeout time.Duration
	maxWorkers  int
}

// Options tunes a Scheduler.
type Options struct {
	StepTimeout time.Duration
	MaxWorkers  int
}

// New builds a scheduler. kill may be nil when no emergency control surface
// exists (tests).
func New(kill *safety.KillSwitch, opts Options) *Scheduler {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	return &Scheduler{
		kill:        kill,
		stepTimeout: opts.StepTimeout,
		maxWorkers:  opts.MaxWorkers,
	}
}

// Execute runs the steps through the provider and returns outcomes
// index-aligned with the input. A failed Message step aborts remaining
// waves; any other failure is recorded and scheduling continues. The kill
// switch is observed at wave boundaries only - steps already dispatched run
// to completion.
func (s *Scheduler) Execute(ctx context.Context, steps []plan.Step, provider Provider) ([]plan.ExecutionOutcome, error) {
	outcomes := make([]plan.ExecutionOutcome, len(steps))
	if len(steps) == 0 {
		return outcomes, nil
	}

	graph := buildGraph(steps)
	reported := make([]bool, len(steps))
	done := 0

	semaphore := make(chan struct{}, s.maxWorkers)

	for done < len(steps) {
		if s.kill != nil && s.kill.IsActive() {
			markRemaining(outcomes, reported, "not executed: kill switch activated")
			logger.Warn("kill switch observed at wave boundary, stopping", "remaining", len(steps)-done)
			return outcomes, nil
		}
		if err := ctx.Err(); err != nil {
			markRemaining(outcomes, reported, "not executed: execution cancelled")
			return outcomes, nil
		}

		ready := graph.readyFrontier(reported)
		if len(ready) == 0 {
			// Unsatisfiable dependencies; stop instead of spinning.
			markRemaining(outcomes, reported, "not executed: dependency cycle")
			return outcomes, serr.New("dependency graph has an unsatisfiable cycle")
		}

		wave := graph.nextWave(ready)
		logger.Debug("dispatching wave", "size", len(wave), "completed", done, "total", len(steps))

		var wg sync.WaitGroup
		for _, idx := range wave {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				semaphore <- struct{}{}
				defer func() { <-semaphore }()

				outcomes[i] = s.runStep(ctx, steps[i], provider)
			}(idx)
		}
		// Barrier: the next wave forms only after every unit of work in this
		// one has reported.
		wg.Wait()

		abort := ""
		for _, idx := range wave {
			reported[idx] = true
			done++

			if !outcomes[idx].Success && steps[idx].Op == plan.OpMessage {
				// A message may already have been delivered; never risk a
				// duplicate send by carrying on.
				abort = fmt.Sprintf("aborted after failed message step %d", idx+1)
			}
		}

		if abort != "" {
			markRemaining(outcomes, reported, "not executed: "+abort)
			logger.Warn("message step failed, aborting remaining waves", "reason", abort)
			return outcomes, nil
		}
	}

	return outcomes, nil
}

// runStep calls the provider once with a bounded deadline, measuring the
// full duration for diagnostics.
func (s *Scheduler) runStep(ctx context.Context, step plan.Step, provider Provider) plan.ExecutionOutcome {
	stepCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
	defer cancel()

	start := time.Now()

	type performResult struct {
		text string
		err  error
	}
	resCh := make(chan performResult, 1)
	go func() {
		text, err := provider.Perform(stepCtx, step)
		resCh <- performResult{text, err}
	}()

	var outcome plan.ExecutionOutcome
	select {
	case res := <-resCh:
		outcome.DurationMs = time.Since(start).Milliseconds()
		if res.err != nil {
			outcome.Error = res.err.Error()
			logger.LogErr(res.err, "step failed", "op", string(step.Op), "duration_ms", outcome.DurationMs)
		} else {
			outcome.Success = true
			outcome.ResultText = res.text
		}
	case <-stepCtx.Done():
		outcome.DurationMs = time.Since(start).Milliseconds()
		outcome.Error = fmt.Sprintf("step timed out after %s", s.stepTimeout)
		logger.Warn("step timed out", "op", string(step.Op), "timeout", s.stepTimeout.String())
	}

	return outcome
}

func markRemaining(outcomes []plan.ExecutionOutcome, reported []bool, msg string) {
	for i := range outcomes {
		if !reported[i] {
			outcomes[i] = plan.ExecutionOutcome{Success: false, Error: msg}
		}
	}
}
