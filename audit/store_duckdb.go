package audit

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"

	"deskpilot/plan"
)

// DuckDBStore persists audit records in an insert-only DuckDB table. The
// log layer above never issues updates or deletes; the table is the durable
// append-only store the chain requires, with SQL access for auditors.
type DuckDBStore struct {
	conn *sql.DB
	path string
}

// OpenDuckDB opens (or creates) the audit database and runs its migration.
func OpenDuckDB(path string) (*DuckDBStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, serr.Wrap(err, "failed to create audit directory")
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, serr.Wrap(err, "failed to open audit database")
	}
	if err := conn.Ping(); err != nil {
		return nil, serr.Wrap(err, "failed to ping audit database")
	}

	s := &DuckDBStore{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	logger.Info("audit database opened", "path", path)
	return s, nil
}

func (s *DuckDBStore) migrate() error {
	_, err := s.conn.Exec(`
		CREATE SEQUENCE IF NOT EXISTS audit_seq;
		CREATE TABLE IF NOT EXISTS audit_entries (
			seq BIGINT PRIMARY KEY DEFAULT nextval('audit_seq'),
			ts TEXT NOT NULL,
			summary TEXT NOT NULL,
			risk TEXT NOT NULL,
			user_input TEXT,
			plan JSON NOT NULL,
			approved BOOLEAN NOT NULL,
			executed BOOLEAN NOT NULL,
			error TEXT,
			prev_hash TEXT,
			hash TEXT NOT NULL
		);
	`)
	if err != nil {
		return serr.Wrap(err, "failed to run audit migration")
	}
	return nil
}

// AppendRecord inserts one audit row in commit order.
func (s *DuckDBStore) AppendRecord(e Entry) error {
	planJSON, err := json.Marshal(e.Plan)
	if err != nil {
		return serr.Wrap(err, "failed to serialize plan snapshot")
	}

	_, err = s.conn.Exec(`
		INSERT INTO audit_entries (ts, summary, risk, user_input, plan, approved, executed, error, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?::JSON, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.Summary, e.Risk, e.UserInput, string(planJSON),
		e.Approved, e.Executed, e.Error, e.PrevHash, e.Hash,
	)
	if err != nil {
		return serr.Wrap(err, "failed to insert audit entry")
	}
	return nil
}

// ReadAll returns every entry in commit order.
func (s *DuckDBStore) ReadAll() ([]Entry, error) {
	rows, err := s.conn.Query(`
		SELECT ts, summary, risk, user_input, plan, approved, executed, error, prev_hash, hash
		FROM audit_entries ORDER BY seq`)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var planJSON string
		var userInput, errText, prevHash sql.NullString

		if err := rows.Scan(&e.Timestamp, &e.Summary, &e.Risk, &userInput, &planJSON,
			&e.Approved, &e.Executed, &errText, &prevHash, &e.Hash); err != nil {
			return nil, serr.Wrap(err, "failed to scan audit row")
		}

		e.UserInput = userInput.String
		e.Error = errText.String
		e.PrevHash = prevHash.String

		var p plan.Plan
		if err := json.Unmarshal([]byte(planJSON), &p); err != nil {
			return nil, serr.Wrap(err, "corrupt plan snapshot in audit row")
		}
		e.Plan = p

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "failed to iterate audit rows")
	}
	return entries, nil
}

// Close closes the database connection.
func (s *DuckDBStore) Close() error {
	return s.conn.Close()
}
