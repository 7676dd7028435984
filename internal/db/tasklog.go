package db

import (
	"context"
	"fmt"
	"time"
)

// LogEntry is one row of the LOG task log that LMT tools keep inside each
// database.
type LogEntry struct {
	ID      int64     `json:"id"`
	Process string    `json:"process"`
	Version string    `json:"version"`
	Date    time.Time `json:"date"`
	TMin    int       `json:"tmin"`
	TMax    int       `json:"tmax"`
}

const logDateLayout = "2006-01-02 15:04:05"

// AddLog appends e to the task log. A zero Date is stamped with the current
// time.
func (db *DB) AddLog(ctx context.Context, e LogEntry) error {
	if e.Date.IsZero() {
		e.Date = time.Now()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO LOG (PROCESS, VERSION, DATE, TMIN, TMAX) VALUES (?, ?, ?, ?, ?)`,
		e.Process, e.Version, e.Date.Format(logDateLayout), e.TMin, e.TMax)
	if err != nil {
		return fmt.Errorf("failed to write task log: %w", err)
	}
	return nil
}

// TaskLog returns the task log, newest first.
func (db *DB) TaskLog(ctx context.Context, limit int) ([]LogEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT ID, COALESCE(PROCESS, ''), COALESCE(VERSION, ''), COALESCE(DATE, ''),
		        COALESCE(TMIN, 0), COALESCE(TMAX, 0)
		 FROM LOG ORDER BY ID DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read task log: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var (
			e    LogEntry
			date string
		)
		if err := rows.Scan(&e.ID, &e.Process, &e.Version, &date, &e.TMin, &e.TMax); err != nil {
			return nil, err
		}
		// rows written by other LMT tools carry fractional seconds
		e.Date, _ = time.ParseInLocation("2006-01-02 15:04:05.999999999", date, time.Local)
		out = append(out, e)
	}
	return out, rows.Err()
}
