package plan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rohanthewiz/serr"
)

// wireStep is the raw step shape at the ingestion boundary.
type wireStep struct {
	Op     string `json:"op"`
	Target string `json:"target"`
	App    string `json:"app"`
	Text   string `json:"text"`
	Keys   string `json:"keys"`
	Value  string `json:"value"`
}

// wirePlan is the raw plan shape at the ingestion boundary.
type wirePlan struct {
	Task  string     `json:"task"`
	Risk  string     `json:"risk"`
	Steps []wireStep `json:"steps"`
}

// Parse performs total parsing of a plan JSON object into the canonical Plan
// shape. Unknown op values and unknown risk levels are rejected, never
// ignored. Structural problems (missing task, empty steps) are left to the
// safety validator so they are audited with the rest of the validation
// outcome.
func Parse(data []byte) (*Plan, error) {
	var raw wirePlan
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, serr.Wrap(err, "plan JSON is malformed")
	}

	risk := RiskLevel(raw.Risk)
	if raw.Risk == "" {
		risk = RiskLow
	} else if !risk.Valid() {
		return nil, serr.New(fmt.Sprintf("unknown risk level %q", raw.Risk))
	}

	p := &Plan{
		ID:    uuid.New().String(),
		Task:  raw.Task,
		Risk:  risk,
		Steps: make([]Step, 0, len(raw.Steps)),
	}

	for i, ws := range raw.Steps {
		step, err := parseStep(ws)
		if err != nil {
			return nil, serr.Wrap(err, fmt.Sprintf("step %d", i+1))
		}
		p.Steps = append(p.Steps, step)
	}

	return p, nil
}

func parseStep(ws wireStep) (Step, error) {
	op := Op(ws.Op)
	if !KnownOps[op] {
		return Step{}, serr.New(fmt.Sprintf("unknown operation %q", ws.Op))
	}

	s := Step{
		Op:     op,
		App:    ws.App,
		Target: ws.Target,
		Text:   ws.Text,
		Keys:   ws.Keys,
		Value:  ws.Value,
	}

	// Wait carries its pause length in the value field.
	if op == OpWait {
		ms, err := strconv.Atoi(strings.TrimSpace(ws.Value))
		if err != nil || ms < 0 {
			return Step{}, serr.New(fmt.Sprintf("wait duration %q is not a non-negative integer", ws.Value))
		}
		s.DurationMs = ms
		s.Value = ""
	}

	return s, nil
}
