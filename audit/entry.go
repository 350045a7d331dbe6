// Package audit maintains a tamper-evident, append-only record of every
// validation, consent, and execution outcome. Entries are hash-chained:
// each entry's hash covers its content plus the previous entry's hash, so
// any retroactive edit breaks the chain for everything after it.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rohanthewiz/serr"

	"deskpilot/plan"
)

// chainSeed replaces the previous hash for the first entry in a log.
const chainSeed = "deskpilot-audit-genesis"

// Entry is one audit record. All fields are concrete types (no maps) so
// json.Marshal field order is deterministic and the hash is reproducible by
// an external auditor.
type Entry struct {
	Timestamp string    `json:"ts"`
	Summary   string    `json:"summary"`
	Risk      string    `json:"risk"`
	UserInput string    `json:"user_input"`
	Plan      plan.Plan `json:"plan"`
	Approved  bool      `json:"approved"`
	Executed  bool      `json:"executed"`
	Error     string    `json:"error,omitempty"`
	PrevHash  string    `json:"prev_hash,omitempty"`
	Hash      string    `json:"hash"`
}

// hashableEntry mirrors Entry minus the Hash field; marshaling it yields the
// canonical serialization the hash covers.
type hashableEntry struct {
	Timestamp string    `json:"ts"`
	Summary   string    `json:"summary"`
	Risk      string    `json:"risk"`
	UserInput string    `json:"user_input"`
	Plan      plan.Plan `json:"plan"`
	Approved  bool      `json:"approved"`
	Executed  bool      `json:"executed"`
	Error     string    `json:"error,omitempty"`
	PrevHash  string    `json:"prev_hash,omitempty"`
}

// ComputeHash derives the entry's hash from its content and chain position.
// An empty PrevHash (first entry) is replaced by the fixed seed.
func ComputeHash(e Entry) (string, error) {
	h := hashableEntry{
		Timestamp: e.Timestamp,
		Summary:   e.Summary,
		Risk:      e.Risk,
		UserInput: e.UserInput,
		Plan:      e.Plan,
		Approved:  e.Approved,
		Executed:  e.Executed,
		Error:     e.Error,
		PrevHash:  e.PrevHash,
	}
	if h.PrevHash == "" {
		h.PrevHash = chainSeed
	}

	data, err := json.Marshal(h)
	if err != nil {
		return "", serr.Wrap(err, "failed to serialize audit entry for hashing")
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
