package exec

import (
	"context"
	"fmt"
	"os"
	osexec "os/exec"
	"time"

	"github.com/rohanthewiz/logger"

	"deskpilot/plan"
)

// LoggingProvider is the default capability provider. It honors Wait steps
// for real and performs everything else as a logged dry run, so the pipeline
// can be exercised end to end without touching the desktop. Message steps
// are delivered through a small strategy chain: a desktop notification
// first, stdout as the fallback.
type LoggingProvider struct {
	// DryRun suppresses the notification attempt as well; everything is
	// logged only. On by default from New.
	DryRun bool
}

func NewLoggingProvider() *LoggingProvider {
	return &LoggingProvider{DryRun: true}
}

// Perform implements scheduler.Provider.
func (lp *LoggingProvider) Perform(ctx context.Context, step plan.Step) (string, error) {
	switch step.Op {
	case plan.OpWait:
		ms := step.DurationMs
		if ms <= 0 {
			ms = 500
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(ms) * time.Millisecond):
		}
		return fmt.Sprintf("waited %dms", ms), nil

	case plan.OpMessage:
		return lp.deliverMessage(ctx, step)

	default:
		logger.Info("dry-run step", "op", string(step.Op), "summary", step.Summary())
		return "dry-run: " + step.Summary(), nil
	}
}

func (lp *LoggingProvider) deliverMessage(ctx context.Context, step plan.Step) (string, error) {
	strategies := []Strategy{
		{Name: "stdout", Attempt: func(_ context.Context, s plan.Step) (string, error) {
			fmt.Fprintln(os.Stdout, "MESSAGE to "+s.Target+": "+s.Text)
			return "printed message for " + s.Target, nil
		}},
	}
	if !lp.DryRun {
		notify := Strategy{Name: "notify-send", Attempt: func(ctx context.Context, s plan.Step) (string, error) {
			cmd := osexec.CommandContext(ctx, "notify-send", "deskpilot: "+s.Target, s.Text)
			if err := cmd.Run(); err != nil {
				return "", err
			}
			return "notified " + s.Target, nil
		}}
		strategies = append([]Strategy{notify}, strategies...)
	}
	return TryStrategies(ctx, step, strategies)
}
