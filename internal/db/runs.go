package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses recorded in processing_runs.
const (
	RunRunning = "running"
	RunOK      = "ok"
	RunFailed  = "failed"
)

// runTimeLayout is fixed width so started_at sorts as text.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one reconstruct or confirm pass over this database.
type Run struct {
	ID         string     `json:"run_id"`
	Command    string     `json:"command"`
	Params     string     `json:"params,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Windows    int        `json:"windows"`
	Events     int        `json:"events"`
	Error      string     `json:"error,omitempty"`
}

// RunResult is what a pass reports when it finishes.
type RunResult struct {
	Windows int
	Events  int
	Err     error
}

// StartRun records the start of a pass and returns its run id.
func (db *DB) StartRun(ctx context.Context, command, params string) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO processing_runs (run_id, command, params, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		id, command, params, time.Now().UTC().Format(runTimeLayout), RunRunning)
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}
	return id, nil
}

// FinishRun closes the run with its outcome.
func (db *DB) FinishRun(ctx context.Context, runID string, r RunResult) error {
	status, msg := RunOK, ""
	if r.Err != nil {
		status, msg = RunFailed, r.Err.Error()
	}
	res, err := db.ExecContext(ctx, `
		UPDATE processing_runs
		SET finished_at = ?, status = ?, windows = ?, events = ?, error = ?
		WHERE run_id = ?`,
		time.Now().UTC().Format(runTimeLayout), status, r.Windows, r.Events, msg, runID)
	if err != nil {
		return fmt.Errorf("failed to record run %s finish: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, command, params, started_at, finished_at, status, windows, events, error
		FROM processing_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r              Run
			params, errMsg sql.NullString
			started        string
			finished       sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Command, &params, &started, &finished, &r.Status, &r.Windows, &r.Events, &errMsg); err != nil {
			return nil, err
		}
		r.Params, r.Error = params.String, errMsg.String
		if r.StartedAt, err = time.Parse(runTimeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s: bad started_at %q: %w", r.ID, started, err)
		}
		if finished.Valid {
			t, err := time.Parse(runTimeLayout, finished.String)
			if err != nil {
				return nil, fmt.Errorf("run %s: bad finished_at %q: %w", r.ID, finished.String, err)
			}
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
