package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const spoolSchema = `CREATE TABLE IF NOT EXISTS failed_samples (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  INTEGER NOT NULL,
	recorded_at TEXT    NOT NULL,
	payload     TEXT    NOT NULL,
	error       TEXT
)`

// SpoolEntry is one metrics sample whose upload failed
type SpoolEntry struct {
	ID         int64
	SessionID  int
	RecordedAt time.Time
	Sample     MetricsSample
	Error      string
}

// Spool is a SQLite journal of metric uploads that failed on the live path.
// Entries are kept until a flush re-submits them.
type Spool struct {
	db   *sql.DB
	path string
}

// OpenSpool opens (creating if needed) the spool database at path
func OpenSpool(path string) (*Spool, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &SpoolError{Path: path, Op: "open", Err: err}
	}
	// one writer at a time; the metrics loop and a flush may overlap
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &SpoolError{Path: path, Op: "open", Err: fmt.Errorf("database ping failed: %w", err)}
	}
	if _, err := db.Exec(spoolSchema); err != nil {
		db.Close()
		return nil, &SpoolError{Path: path, Op: "open", Err: fmt.Errorf("create schema: %w", err)}
	}
	return &Spool{db: db, path: path}, nil
}

// Record stores a sample whose upload failed with cause
func (s *Spool) Record(ctx context.Context, sessionID int, sample MetricsSample, cause error) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return &SpoolError{Path: s.path, Op: "record", Err: err}
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO failed_samples (session_id, recorded_at, payload, error) VALUES (?, ?, ?, ?)",
		sessionID, time.Now().UTC().Format(time.RFC3339Nano), string(payload), msg)
	if err != nil {
		return &SpoolError{Path: s.path, Op: "record", Err: err}
	}
	return nil
}

// List returns all entries, oldest first
func (s *Spool) List(ctx context.Context) ([]SpoolEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, session_id, recorded_at, payload, error FROM failed_samples ORDER BY id")
	if err != nil {
		return nil, &SpoolError{Path: s.path, Op: "list", Err: err}
	}
	defer rows.Close()

	var entries []SpoolEntry
	for rows.Next() {
		var (
			e        SpoolEntry
			recorded string
			payload  string
			errText  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &recorded, &payload, &errText); err != nil {
			return nil, &SpoolError{Path: s.path, Op: "list", Err: fmt.Errorf("scan failed: %w", err)}
		}
		if t, err := time.Parse(time.RFC3339Nano, recorded); err == nil {
			e.RecordedAt = t
		}
		if err := json.Unmarshal([]byte(payload), &e.Sample); err != nil {
			LogWarn("Skipping spool entry %d: %v", e.ID, err)
			continue
		}
		e.Error = errText.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &SpoolError{Path: s.path, Op: "list", Err: fmt.Errorf("rows iteration error: %w", err)}
	}
	return entries, nil
}

// Delete removes an entry after it was re-submitted
func (s *Spool) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM failed_samples WHERE id = ?", id); err != nil {
		return &SpoolError{Path: s.path, Op: "delete", Err: err}
	}
	return nil
}

// Count returns the number of pending entries
func (s *Spool) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM failed_samples").Scan(&n); err != nil {
		return 0, &SpoolError{Path: s.path, Op: "list", Err: err}
	}
	return n, nil
}

// Close closes the database
func (s *Spool) Close() error {
	return s.db.Close()
}
