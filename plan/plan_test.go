package plan

import (
	"strings"
	"testing"
)

// TestParseBrightnessPlan parses the canonical low-risk settings plan
func TestParseBrightnessPlan(t *testing.T) {
	data := []byte(`{
		"task": "Set brightness to 30%",
		"risk": "low",
		"steps": [{"op": "SystemSetting", "target": "display.brightness", "value": "30"}]
	}`)

	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if p.Task != "Set brightness to 30%" {
		t.Errorf("unexpected task: %q", p.Task)
	}
	if p.Risk != RiskLow {
		t.Errorf("expected low risk, got %s", p.Risk)
	}
	if len(p.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(p.Steps))
	}
	if p.Steps[0].Op != OpSystemSetting || p.Steps[0].Target != "display.brightness" || p.Steps[0].Value != "30" {
		t.Errorf("step parsed incorrectly: %+v", p.Steps[0])
	}
	if p.ID == "" {
		t.Error("expected a generated plan ID")
	}
}

// TestParseRejectsUnknownOp verifies the closed-world rule at the boundary
func TestParseRejectsUnknownOp(t *testing.T) {
	data := []byte(`{"task": "x", "risk": "low", "steps": [{"op": "FormatDisk"}]}`)

	_, err := Parse(data)
	if err == nil {
		t.Fatal("expected error for unknown op")
	}
	if !strings.Contains(err.Error(), "unknown operation") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestParseRejectsUnknownRisk verifies unknown risk strings are not coerced
func TestParseRejectsUnknownRisk(t *testing.T) {
	data := []byte(`{"task": "x", "risk": "extreme", "steps": [{"op": "Wait", "value": "100"}]}`)

	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for unknown risk level")
	}
}

// TestParseWaitDuration verifies the wait pause comes through the value field
func TestParseWaitDuration(t *testing.T) {
	data := []byte(`{"task": "pause", "risk": "low", "steps": [{"op": "Wait", "value": "500"}]}`)

	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Steps[0].DurationMs != 500 {
		t.Errorf("expected 500ms, got %d", p.Steps[0].DurationMs)
	}

	bad := []byte(`{"task": "pause", "risk": "low", "steps": [{"op": "Wait", "value": "soon"}]}`)
	if _, err := Parse(bad); err == nil {
		t.Error("expected error for non-numeric wait duration")
	}
}

// TestParseRejectsUnknownFields verifies duck-typed plan shapes are refused
func TestParseRejectsUnknownFields(t *testing.T) {
	data := []byte(`{"task": "x", "risk": "low", "plan_name": "alt shape", "steps": []}`)

	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

// TestRiskOrdering checks the total order over risk levels
func TestRiskOrdering(t *testing.T) {
	if MaxRisk(RiskLow, RiskMedium) != RiskMedium {
		t.Error("expected medium > low")
	}
	if MaxRisk(RiskHigh, RiskMedium) != RiskHigh {
		t.Error("expected high > medium")
	}
	if !RiskHigh.AtLeast(RiskMedium) || !RiskMedium.AtLeast(RiskMedium) || RiskLow.AtLeast(RiskMedium) {
		t.Error("AtLeast comparisons are wrong")
	}
}

// TestValidationResultMerge checks the per-plan aggregation rules
func TestValidationResultMerge(t *testing.T) {
	agg := ValidationResult{Allowed: true}

	agg.Merge(ValidationResult{Allowed: true, RequiresApproval: true, Warnings: []string{"w1"}})
	agg.Merge(ValidationResult{Allowed: false, Reason: "first failure"})
	agg.Merge(ValidationResult{Allowed: false, Reason: "second failure", RequiresSecondFactor: true})

	if agg.Allowed {
		t.Error("expected Allowed=false after a failing merge")
	}
	if agg.Reason != "first failure" {
		t.Errorf("expected first failure reason to win, got %q", agg.Reason)
	}
	if !agg.RequiresApproval || !agg.RequiresSecondFactor {
		t.Error("approval flags should OR across merges")
	}
	if len(agg.Warnings) != 1 || agg.Warnings[0] != "w1" {
		t.Errorf("warnings not concatenated: %v", agg.Warnings)
	}
}
