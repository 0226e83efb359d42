// CLAUDE:SUMMARY SQLite log of dispatched action runs: one row per run with its outcome and duration.
// Package audit records the outcome of every action run posted to the
// dispatcher. Runs report nothing back to the sender, so this log is where
// the CLI and the control API read what happened to a run ID.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Schema creates the run log. Safe to apply more than once.
const Schema = `
CREATE TABLE IF NOT EXISTS action_runs (
	run_id      TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	transport   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_action_runs_started ON action_runs(started_at);
`

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("audit: run not found")

// Entry is one finished run.
type Entry struct {
	RunID      string    `json:"run_id"`
	Action     string    `json:"action"`
	Transport  string    `json:"transport,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// NewEntry builds the entry for a run that started at started and ended at
// end with err.
func NewEntry(runID, action, transport string, started, end time.Time, err error) Entry {
	e := Entry{
		RunID:      runID,
		Action:     action,
		Transport:  transport,
		Status:     StatusSuccess,
		StartedAt:  started,
		DurationMs: end.Sub(started).Milliseconds(),
	}
	if err != nil {
		e.Status = StatusError
		e.Error = err.Error()
	}
	return e
}

// Filter narrows Recent. Zero values match everything.
type Filter struct {
	Action string
	Status string
	Limit  int // default 50
}

// Logger writes and queries the run log.
type Logger struct {
	db *sql.DB
}

// New applies Schema to db and returns a Logger over it.
func New(db *sql.DB) (*Logger, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("audit: schema: %w", err)
	}
	return &Logger{db: db}, nil
}

// Record stores e. Recording the same run ID twice keeps the latest outcome.
func (l *Logger) Record(ctx context.Context, e Entry) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO action_runs (run_id, action, transport, status, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   status = excluded.status, error = excluded.error, duration_ms = excluded.duration_ms`,
		e.RunID, e.Action, e.Transport, e.Status, e.Error, e.StartedAt.UnixMilli(), e.DurationMs)
	if err != nil {
		return fmt.Errorf("audit: record %s: %w", e.RunID, err)
	}
	return nil
}

// Get returns the run with the given ID.
func (l *Logger) Get(ctx context.Context, runID string) (Entry, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT run_id, action, transport, status, error, started_at, duration_ms
		 FROM action_runs WHERE run_id = ?`, runID)
	e, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("audit: get %s: %w", runID, err)
	}
	return e, nil
}

// Recent returns the newest runs matching f, newest first.
func (l *Logger) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	q := `SELECT run_id, action, transport, status, error, started_at, duration_ms
		FROM action_runs WHERE 1=1`
	var args []any
	if f.Action != "" {
		q += " AND action = ?"
		args = append(args, f.Action)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	limit := 50
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " ORDER BY started_at DESC, run_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Entry, error) {
	var e Entry
	var started int64
	if err := s.Scan(&e.RunID, &e.Action, &e.Transport, &e.Status, &e.Error, &started, &e.DurationMs); err != nil {
		return Entry{}, err
	}
	e.StartedAt = time.UnixMilli(started).UTC()
	return e, nil
}
