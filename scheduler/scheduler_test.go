package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"deskpilot/plan"
	"deskpilot/safety"
)

// stubProvider records dispatch and completion times per step index and
// returns scripted results.
type stubProvider struct {
	mu        sync.Mutex
	delay     time.Duration
	failOps   map[plan.Op]bool
	failTexts map[string]bool
	starts    map[string]time.Time
	ends      map[string]time.Time
	calls     []string
}

func newStubProvider(delay time.Duration) *stubProvider {
	return &stubProvider{
		delay:     delay,
		failOps:   make(map[plan.Op]bool),
		failTexts: make(map[string]bool),
		starts:    make(map[string]time.Time),
		ends:      make(map[string]time.Time),
	}
}

func (p *stubProvider) Perform(ctx context.Context, step plan.Step) (string, error) {
	key := step.Summary()

	p.mu.Lock()
	p.starts[key] = time.Now()
	p.calls = append(p.calls, key)
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p.mu.Lock()
	p.ends[key] = time.Now()
	fail := p.failOps[step.Op] || p.failTexts[step.Text]
	p.mu.Unlock()

	if fail {
		return "", errors.New("scripted failure")
	}
	return "ok", nil
}

func exec(t *testing.T, steps []plan.Step, p Provider) []plan.ExecutionOutcome {
	t.Helper()
	s := New(nil, Options{StepTimeout: 5 * time.Second})
	outcomes, err := s.Execute(context.Background(), steps, p)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return outcomes
}

// TestWaitOrdersTypeAfterIt checks the ordering property for
// [OpenApp, Wait, Type]: Type may not start before Wait completes, and
// OpenApp does not share a wave with Wait.
func TestWaitOrdersTypeAfterIt(t *testing.T) {
	steps := []plan.Step{
		{Op: plan.OpOpenApp, App: "x"},
		{Op: plan.OpWait, DurationMs: 50},
		{Op: plan.OpType, Text: "hello"},
	}
	p := newStubProvider(30 * time.Millisecond)

	outcomes := exec(t, steps, p)
	for i, o := range outcomes {
		if !o.Success {
			t.Fatalf("step %d failed: %s", i, o.Error)
		}
	}

	waitEnd := p.ends[steps[1].Summary()]
	typeStart := p.starts[steps[2].Summary()]
	if typeStart.Before(waitEnd) {
		t.Error("Type dispatched before Wait completed")
	}

	// OpenApp is not parallel-safe, so it must not overlap Wait.
	openEnd := p.ends[steps[0].Summary()]
	waitStart := p.starts[steps[1].Summary()]
	if waitStart.Before(openEnd) {
		t.Error("Wait dispatched while OpenApp still running")
	}
}

// TestSystemSettingsShareAWave checks that independent settings overlap and
// the wave barrier holds until all three report.
func TestSystemSettingsShareAWave(t *testing.T) {
	steps := []plan.Step{
		{Op: plan.OpSystemSetting, Target: "a", Value: "1"},
		{Op: plan.OpSystemSetting, Target: "b", Value: "2"},
		{Op: plan.OpSystemSetting, Target: "c", Value: "3"},
	}
	p := newStubProvider(60 * time.Millisecond)

	outcomes := exec(t, steps, p)
	for i, o := range outcomes {
		if !o.Success {
			t.Fatalf("step %d failed: %s", i, o.Error)
		}
	}

	// All three dispatched before any finished means they shared the wave.
	latestStart := time.Time{}
	earliestEnd := time.Now().Add(time.Hour)
	for _, s := range steps {
		if ts := p.starts[s.Summary()]; ts.After(latestStart) {
			latestStart = ts
		}
		if te := p.ends[s.Summary()]; te.Before(earliestEnd) {
			earliestEnd = te
		}
	}
	if !latestStart.Before(earliestEnd) {
		t.Error("settings steps did not overlap; expected one concurrent wave")
	}
}

// TestPartialFailureContinues checks that a non-message failure does not
// stop later steps.
func TestPartialFailureContinues(t *testing.T) {
	steps := []plan.Step{
		{Op: plan.OpOpenApp, App: "notes"},
		{Op: plan.OpClick, Target: "broken-button"},
		{Op: plan.OpType, Text: "hello"},
	}
	p := newStubProvider(0)
	p.failOps[plan.OpClick] = true

	outcomes := exec(t, steps, p)

	if !outcomes[0].Success {
		t.Error("step 1 should succeed")
	}
	if outcomes[1].Success {
		t.Error("step 2 should fail")
	}
	if !outcomes[2].Success {
		t.Errorf("step 3 should still execute and succeed, got: %s", outcomes[2].Error)
	}
}

// TestMessageFailureAborts checks abort-on-message-failure semantics.
func TestMessageFailureAborts(t *testing.T) {
	steps := []plan.Step{
		{Op: plan.OpOpenApp, App: "mail"},
		{Op: plan.OpMessage, Target: "bob", Text: "hi"},
		{Op: plan.OpClick, Target: "archive"},
	}
	p := newStubProvider(0)
	p.failOps[plan.OpMessage] = true

	outcomes := exec(t, steps, p)

	if outcomes[1].Success {
		t.Fatal("message step should fail")
	}
	if outcomes[2].Success {
		t.Error("no step after a failed message may execute")
	}
	if !strings.Contains(outcomes[2].Error, "aborted after failed message") {
		t.Errorf("unexpected error for skipped step: %q", outcomes[2].Error)
	}

	// The provider must never have been called for the skipped step.
	for _, call := range p.calls {
		if strings.Contains(call, "archive") {
			t.Error("provider invoked for step after aborted message")
		}
	}
}

// TestKillSwitchStopsAtWaveBoundary checks cooperative cancellation.
func TestKillSwitchStopsAtWaveBoundary(t *testing.T) {
	kill := safety.NewKillSwitch()
	s := New(kill, Options{StepTimeout: 5 * time.Second})

	steps := []plan.Step{
		{Op: plan.OpOpenApp, App: "notes"},
		{Op: plan.OpType, Text: "hello"},
		{Op: plan.OpType, Text: "world"},
	}
	p := newStubProvider(40 * time.Millisecond)

	// Trip the switch while the first wave is in flight.
	go func() {
		time.Sleep(20 * time.Millisecond)
		kill.Activate("operator stop")
	}()

	outcomes, err := s.Execute(context.Background(), steps, p)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !outcomes[0].Success {
		t.Error("in-flight step should run to completion")
	}
	if outcomes[1].Success || outcomes[2].Success {
		t.Error("steps after the boundary must not run")
	}
	if !strings.Contains(outcomes[1].Error, "kill switch") {
		t.Errorf("unexpected error: %q", outcomes[1].Error)
	}
}

// TestStepTimeoutReportsFailure checks the bounded per-step deadline.
func TestStepTimeoutReportsFailure(t *testing.T) {
	s := New(nil, Options{StepTimeout: 30 * time.Millisecond})

	steps := []plan.Step{{Op: plan.OpOpenApp, App: "hung"}}
	p := newStubProvider(500 * time.Millisecond)

	outcomes, err := s.Execute(context.Background(), steps, p)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if outcomes[0].Success {
		t.Fatal("hung step should fail")
	}
	if !strings.Contains(outcomes[0].Error, "timed out") {
		t.Errorf("unexpected error: %q", outcomes[0].Error)
	}
}

// TestCycleDetection drives the frontier logic with a hand-built cyclic
// graph; the kind-based builder cannot produce one, but Execute must still
// refuse to spin if it ever sees one.
func TestCycleDetection(t *testing.T) {
	steps := []plan.Step{
		{Op: plan.OpOpenApp, App: "a"},
		{Op: plan.OpOpenApp, App: "b"},
	}
	g := &depGraph{
		steps:      steps,
		deps:       [][]int{{1}, {0}},
		dependents: [][]int{{1}, {0}},
	}

	reported := make([]bool, 2)
	if ready := g.readyFrontier(reported); len(ready) != 0 {
		t.Errorf("cyclic graph should have an empty frontier, got %v", ready)
	}
}

// TestDependencyEdges locks down the per-kind rule on a mixed plan.
func TestDependencyEdges(t *testing.T) {
	steps := []plan.Step{
		{Op: plan.OpSystemSetting, Target: "a", Value: "1"}, // 0: free
		{Op: plan.OpOpenApp, App: "notes"},                  // 1: pred not Wait -> free
		{Op: plan.OpType, Text: "x"},                        // 2: depends on 1
		{Op: plan.OpWait, DurationMs: 100},                  // 3: free
		{Op: plan.OpOpenApp, App: "mail"},                   // 4: pred is Wait -> depends on 3
		{Op: plan.OpClick, Target: "send"},                  // 5: conservative -> depends on 4
	}
	g := buildGraph(steps)

	want := [][]int{nil, nil, {1}, nil, {3}, {4}}
	for i, deps := range g.deps {
		if len(deps) != len(want[i]) {
			t.Errorf("step %d: deps %v, want %v", i, deps, want[i])
			continue
		}
		for j := range deps {
			if deps[j] != want[i][j] {
				t.Errorf("step %d: deps %v, want %v", i, deps, want[i])
			}
		}
	}
}

// TestExportDOT sanity-checks the diagnostic graph rendering.
func TestExportDOT(t *testing.T) {
	steps := []plan.Step{
		{Op: plan.OpOpenApp, App: "notes"},
		{Op: plan.OpType, Text: "hello"},
	}
	dot, err := ExportDOT(steps)
	if err != nil {
		t.Fatalf("ExportDOT failed: %v", err)
	}
	if !strings.Contains(dot, "digraph plan") {
		t.Errorf("missing digraph header: %s", dot)
	}
	if !strings.Contains(dot, "s0->s1") && !strings.Contains(dot, "s0 -> s1") {
		t.Errorf("missing dependency edge in DOT output: %s", dot)
	}
}
