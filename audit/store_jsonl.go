package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rohanthewiz/serr"
)

// JSONLStore persists one JSON record per line in an append-only file - the
// flat line-oriented shape an external auditor can verify with nothing but
// the file itself. No rotation; at this scope the file stays small.
type JSONLStore struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenJSONL opens (or creates) the audit file in append-only mode.
func OpenJSONL(path string) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, serr.Wrap(err, "failed to create audit directory")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, serr.Wrap(err, "failed to open audit file")
	}

	return &JSONLStore{path: path, f: f}, nil
}

// AppendRecord writes one record and syncs it to disk before returning, so
// a crash cannot lose an acknowledged audit event.
func (s *JSONLStore) AppendRecord(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return serr.Wrap(err, "failed to serialize audit entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return serr.Wrap(err, "failed to append audit record")
	}
	if err := s.f.Sync(); err != nil {
		return serr.Wrap(err, "failed to sync audit file")
	}
	return nil
}

// ReadAll reconstructs every entry from the file, oldest first.
func (s *JSONLStore) ReadAll() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, serr.Wrap(err, "failed to open audit file for reading")
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, serr.Wrap(err, fmt.Sprintf("corrupt audit record at line %d", line))
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, serr.Wrap(err, "failed to scan audit file")
	}
	return entries, nil
}

// Close closes the underlying file.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
