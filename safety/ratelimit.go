package safety

import (
	"fmt"
	"sync"
	"time"

	"github.com/rohanthewiz/logger"

	"deskpilot/plan"
)

// DefaultActionsPerMinute is the ceiling applied when none is configured.
const DefaultActionsPerMinute = 10

// RateLimiter keeps a sliding one-minute window of accepted action
// timestamps and rejects once the window is full. Shared across all in-flight
// executions, so every access is mutex-guarded.
type RateLimiter struct {
	mu     sync.Mutex
	window []time.Time
	limit  int
	span   time.Duration

	// now is swappable for tests
	now func() time.Time
}

// NewRateLimiter builds a limiter allowing limit actions per minute.
func NewRateLimiter(limit int) *RateLimiter {
	if limit <= 0 {
		limit = DefaultActionsPerMinute
	}
	return &RateLimiter{
		limit: limit,
		span:  time.Minute,
		now:   time.Now,
	}
}

// RecordAction notes that an action was accepted.
func (rl *RateLimiter) RecordAction(label string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)
	rl.window = append(rl.window, now)

	logger.Debug("action recorded", "label", label, "window_count", len(rl.window), "limit", rl.limit)
}

// CheckLimit reports whether another action is currently allowed. Safe to
// call from the validator before any step executes; it does not mutate the
// window beyond pruning expired entries.
func (rl *RateLimiter) CheckLimit() plan.ValidationResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.prune(rl.now())

	if len(rl.window) >= rl.limit {
		return plan.ValidationResult{
			Allowed: false,
			Reason:  fmt.Sprintf("rate limit exceeded: %d actions in the last minute (limit %d)", len(rl.window), rl.limit),
		}
	}

	return plan.ValidationResult{Allowed: true}
}

// prune drops timestamps older than the window span. Caller holds the lock.
func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.span)
	kept := rl.window[:0]
	for _, ts := range rl.window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	rl.window = kept
}
