package web

import (
	"strings"
	"testing"
	"time"

	"deskpilot/audit"
	"deskpilot/consent"
	"deskpilot/exec"
	"deskpilot/safety"
	"deskpilot/scheduler"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := audit.OpenJSONL(t.TempDir() + "/audit.jsonl")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log, err := audit.NewLog(store)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}

	kill := safety.NewKillSwitch()
	limiter := safety.NewRateLimiter(10)
	validator := safety.NewValidator(kill, limiter, nil, safety.ValidatorConfig{})
	sched := scheduler.New(kill, scheduler.Options{})
	coord := exec.New(validator, consent.NewCoordinator(consent.Config{}), sched, log, limiter, exec.NewLoggingProvider())
	pending := consent.NewPendingManager(time.Second)

	return NewServer(coord, pending, kill, log)
}

func TestStatusPageRenders(t *testing.T) {
	s := newTestServer(t)

	page := s.renderStatusPage()
	if !strings.Contains(page, "DeskPilot") {
		t.Error("page should carry the product name")
	}
	if !strings.Contains(page, "Kill switch: inactive") {
		t.Errorf("page should show kill switch state, got: %s", page)
	}
	if !strings.Contains(page, "Audit trail: healthy") {
		t.Error("page should show audit health")
	}

	s.kill.Activate("test")
	page = s.renderStatusPage()
	if !strings.Contains(page, "ACTIVE") {
		t.Error("page should show the active kill switch")
	}
}
