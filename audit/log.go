package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"

	"deskpilot/plan"
)

// Store is the audit persistence boundary: one serialized record per audit
// event, appended in commit order, never rewritten.
type Store interface {
	AppendRecord(e Entry) error
	ReadAll() ([]Entry, error)
	Close() error
}

// Log is the process-wide audit chain. Appends are serialized under one
// mutex so the previous-hash pointer advances linearly; without that the
// chain order would be undefined under concurrent plans.
type Log struct {
	mu       sync.Mutex
	store    Store
	lastHash string
}

// NewLog opens a log over a store, seeding the chain pointer from the
// store's tail so a restarted process keeps extending the same chain.
func NewLog(store Store) (*Log, error) {
	entries, err := store.ReadAll()
	if err != nil {
		return nil, serr.Wrap(err, "failed to read existing audit entries")
	}

	l := &Log{store: store}
	if n := len(entries); n > 0 {
		l.lastHash = entries[n-1].Hash
		logger.Info("audit log opened", "entries", n)
	}
	return l, nil
}

// Append records one audit event. p may be nil when a plan never parsed.
func (l *Log) Append(summary string, risk plan.RiskLevel, userInput string, p *plan.Plan, approved, executed bool, execErr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Summary:   summary,
		Risk:      string(risk),
		UserInput: userInput,
		Approved:  approved,
		Executed:  executed,
		Error:     execErr,
		PrevHash:  l.lastHash,
	}
	if p != nil {
		e.Plan = *p
	}

	hash, err := ComputeHash(e)
	if err != nil {
		return err
	}
	e.Hash = hash

	if err := l.store.AppendRecord(e); err != nil {
		return serr.Wrap(err, "failed to persist audit entry")
	}

	l.lastHash = hash
	return nil
}

// Read returns up to limit entries, most recent first. limit <= 0 means all.
func (l *Log) Read(limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.store.ReadAll()
	if err != nil {
		return nil, serr.Wrap(err, "failed to read audit entries")
	}

	// Reverse into newest-first order.
	out := make([]Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Verify re-derives every hash in the chain from stored content and checks
// the links, without trusting the writer.
func (l *Log) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.store.ReadAll()
	if err != nil {
		return serr.Wrap(err, "failed to read audit entries")
	}

	prev := ""
	for i, e := range entries {
		if e.PrevHash != prev {
			return serr.New(fmt.Sprintf("audit chain broken at entry %d: prev_hash mismatch", i))
		}
		expected, err := ComputeHash(e)
		if err != nil {
			return err
		}
		if e.Hash != expected {
			return serr.New(fmt.Sprintf("audit chain broken at entry %d: stored hash does not match content", i))
		}
		prev = e.Hash
	}
	return nil
}

// Close releases the underlying store.
func (l *Log) Close() error {
	return l.store.Close()
}
