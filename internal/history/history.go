// Package history keeps a ledger of pipeline runs in a SQLite database under
// .agency/state. Each run records the menu choice it started from and one row
// per task the crew attempted.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Run and task statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// timeLayout is fixed width so stamps sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one pipeline invocation.
type Run struct {
	ID         string
	Choice     string
	Phase      string
	Idea       string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
	TaskCount  int
}

// TaskRecord is the outcome of one task within a run.
type TaskRecord struct {
	ID       int64
	RunID    string
	TaskID   string
	Agent    string
	File     string
	Status   string
	Error    string
	Attempts int
	Duration time.Duration
	At       time.Time
}

// Store wraps the history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates (if needed) and opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("history: create state dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			choice      TEXT NOT NULL,
			phase       TEXT NOT NULL,
			idea        TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			error       TEXT NOT NULL DEFAULT '',
			started_at  TEXT NOT NULL,
			finished_at TEXT
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			task_id     TEXT    NOT NULL,
			agent       TEXT    NOT NULL,
			file        TEXT    NOT NULL DEFAULT '',
			status      TEXT    NOT NULL,
			error       TEXT    NOT NULL DEFAULT '',
			attempts    INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_run ON tasks(run_id);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// StartRun inserts a run in the running state.
func (s *Store) StartRun(ctx context.Context, id, choice, phase, idea string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("history: run id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, choice, phase, idea, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, choice, phase, idea, StatusRunning, s.stamp())
	if err != nil {
		return fmt.Errorf("history: start run %s: %w", id, err)
	}
	return nil
}

// RecordTask appends a task outcome to a run.
func (s *Store) RecordTask(ctx context.Context, rec TaskRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (run_id, task_id, agent, file, status, error, attempts, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.TaskID, rec.Agent, rec.File, rec.Status, rec.Error,
		rec.Attempts, rec.Duration.Milliseconds(), s.stamp())
	if err != nil {
		return fmt.Errorf("history: record task %s: %w", rec.TaskID, err)
	}
	return nil
}

// FinishRun marks a run as finished. runErr may be nil.
func (s *Store) FinishRun(ctx context.Context, id, status string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, msg, s.stamp(), id)
	if err != nil {
		return fmt.Errorf("history: finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("history: run %s not found", id)
	}
	return nil
}

// Runs returns the most recent runs, newest first. limit <= 0 means 20.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.choice, r.phase, r.idea, r.status, r.error, r.started_at, r.finished_at,
		        (SELECT COUNT(*) FROM tasks t WHERE t.run_id = r.id)
		   FROM runs r
		  ORDER BY r.started_at DESC
		  LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Choice, &r.Phase, &r.Idea, &r.Status, &r.Error, &started, &finished, &r.TaskCount); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.StartedAt = parseStamp(started)
		if finished.Valid {
			t := parseStamp(finished.String)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Tasks returns the task records of a run in insertion order.
func (s *Store) Tasks(ctx context.Context, runID string) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, task_id, agent, file, status, error, attempts, duration_ms, created_at
		   FROM tasks
		  WHERE run_id = ?
		  ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: list tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var (
			rec TaskRecord
			ms  int64
			at  string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.TaskID, &rec.Agent, &rec.File, &rec.Status, &rec.Error, &rec.Attempts, &ms, &at); err != nil {
			return nil, fmt.Errorf("history: scan task: %w", err)
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		rec.At = parseStamp(at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseStamp(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		// Older ledgers stored variable width stamps.
		if t, err = time.Parse(time.RFC3339Nano, value); err != nil {
			return time.Time{}
		}
	}
	return t
}
