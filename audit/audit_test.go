package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deskpilot/plan"
)

func tempLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	store, err := OpenJSONL(path)
	if err != nil {
		t.Fatalf("OpenJSONL failed: %v", err)
	}
	l, err := NewLog(store)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, path
}

func samplePlan(task string) *plan.Plan {
	return &plan.Plan{
		ID:   "p-" + task,
		Task: task,
		Risk: plan.RiskLow,
		Steps: []plan.Step{
			{Op: plan.OpSystemSetting, Target: "display.brightness", Value: "30"},
		},
	}
}

// TestChainIntegrity appends N entries and re-derives every hash.
func TestChainIntegrity(t *testing.T) {
	l, _ := tempLog(t)

	for i := 0; i < 5; i++ {
		p := samplePlan("task")
		if err := l.Append(p.Task, p.Risk, "utterance", p, true, true, ""); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	entries, err := l.Read(0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}

	// entries are newest-first; walk oldest-first for the chain.
	prev := ""
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.PrevHash != prev {
			t.Errorf("entry %d: prev_hash %q, want %q", i, e.PrevHash, prev)
		}
		recomputed, err := ComputeHash(e)
		if err != nil {
			t.Fatalf("ComputeHash failed: %v", err)
		}
		if recomputed != e.Hash {
			t.Errorf("entry %d: stored hash does not match recomputed", i)
		}
		prev = e.Hash
	}

	if err := l.Verify(); err != nil {
		t.Errorf("Verify failed on intact chain: %v", err)
	}
}

// TestTamperBreaksChain edits a middle record and expects Verify to fail.
func TestTamperBreaksChain(t *testing.T) {
	l, path := tempLog(t)

	for i := 0; i < 3; i++ {
		if err := l.Append("task", plan.RiskLow, "", samplePlan("t"), true, true, ""); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// Tamper with the middle line.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	var e Entry
	if err := json.Unmarshal([]byte(lines[1]), &e); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	e.Summary = "retroactively edited"
	edited, _ := json.Marshal(e)
	lines[1] = string(edited)

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := l.Verify(); err == nil {
		t.Fatal("Verify should fail after tampering")
	}
}

// TestReadLimitNewestFirst checks Read's ordering and limit handling.
func TestReadLimitNewestFirst(t *testing.T) {
	l, _ := tempLog(t)

	for _, task := range []string{"first", "second", "third"} {
		if err := l.Append(task, plan.RiskLow, "", samplePlan(task), true, true, ""); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries, err := l.Read(2)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Summary != "third" || entries[1].Summary != "second" {
		t.Errorf("wrong order: %s, %s", entries[0].Summary, entries[1].Summary)
	}
}

// TestReopenContinuesChain restarts the log over the same file and verifies
// the chain keeps extending.
func TestReopenContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	store, err := OpenJSONL(path)
	if err != nil {
		t.Fatalf("OpenJSONL failed: %v", err)
	}
	l, err := NewLog(store)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	if err := l.Append("before restart", plan.RiskLow, "", samplePlan("a"), true, true, ""); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	l.Close()

	store2, err := OpenJSONL(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	l2, err := NewLog(store2)
	if err != nil {
		t.Fatalf("NewLog after reopen failed: %v", err)
	}
	defer l2.Close()

	if err := l2.Append("after restart", plan.RiskLow, "", samplePlan("b"), true, true, ""); err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}

	if err := l2.Verify(); err != nil {
		t.Errorf("chain broken across restart: %v", err)
	}

	entries, _ := l2.Read(0)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].PrevHash != entries[1].Hash {
		t.Error("restarted log did not link to the previous tail")
	}
}

// TestFailedPlanStillAudited records a rejection and checks the fields.
func TestFailedPlanStillAudited(t *testing.T) {
	l, _ := tempLog(t)

	if err := l.Append("dangerous task", plan.RiskHigh, "rm everything", nil, false, false, "typed text matches dangerous pattern"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, _ := l.Read(1)
	e := entries[0]
	if e.Approved || e.Executed {
		t.Error("rejected plan must record approved=false executed=false")
	}
	if e.Error == "" || e.Risk != "high" {
		t.Errorf("rejection fields missing: %+v", e)
	}
}
