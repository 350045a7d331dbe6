package exec

import (
	"context"
	"strings"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"

	"deskpilot/plan"
)

// Strategy is one way of performing a step. Providers that have several
// mechanisms available (native API, shell command, clipboard paste) list
// them in preference order and let TryStrategies walk the list.
type Strategy struct {
	Name    string
	Attempt func(ctx context.Context, step plan.Step) (string, error)
}

// TryStrategies runs strategies in order and returns the first success.
// When every strategy fails the errors are aggregated into one, so the
// caller sees the whole story rather than only the last attempt.
func TryStrategies(ctx context.Context, step plan.Step, strategies []Strategy) (string, error) {
	if len(strategies) == 0 {
		return "", serr.New("no strategies available for step: " + step.Summary())
	}

	var failures []string
	for _, st := range strategies {
		if err := ctx.Err(); err != nil {
			return "", serr.Wrap(err, "step cancelled before strategy "+st.Name)
		}

		result, err := st.Attempt(ctx, step)
		if err == nil {
			return result, nil
		}
		logger.Debug("strategy failed", "strategy", st.Name, "step", step.Summary(), "error", err.Error())
		failures = append(failures, st.Name+": "+err.Error())
	}

	return "", serr.New("all strategies failed for " + step.Summary() + " [" + strings.Join(failures, "; ") + "]")
}
