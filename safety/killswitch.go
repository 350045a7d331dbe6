// Package safety holds the components that stand between an untrusted plan
// and the desktop: the kill switch, the rate limiter, and the validator.
package safety

import (
	"sync"

	"github.com/rohanthewiz/logger"
)

// KillSwitch is the process-wide emergency flag. When active, validation
// rejects every plan and the scheduler stops dispatching new waves. It is
// constructed once at startup and passed by reference to everything that
// needs it.
type KillSwitch struct {
	mu     sync.RWMutex
	active bool
	reason string
}

// NewKillSwitch returns an inactive kill switch.
func NewKillSwitch() *KillSwitch {
	return &KillSwitch{}
}

// Activate trips the switch. The reason is kept for the control surface.
func (k *KillSwitch) Activate(reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.active {
		logger.Warn("kill switch activated - all plan execution blocked", "reason", reason)
	}
	k.active = true
	k.reason = reason
}

// Deactivate clears the switch.
func (k *KillSwitch) Deactivate() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active {
		logger.Info("kill switch deactivated")
	}
	k.active = false
	k.reason = ""
}

// Reason reports why the switch was tripped; empty when inactive.
func (k *KillSwitch) Reason() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.reason
}

// IsActive reports the current state.
func (k *KillSwitch) IsActive() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active
}
