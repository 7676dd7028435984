package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/banshee-data/lmt.report/internal/interval"
	"github.com/banshee-data/lmt.report/internal/monitoring"
)

// EventIntervals returns the events called name whose first animal is
// animalID and that overlap [minFrame, maxFrame], clipped to that range and
// ordered by start frame.
func (db *DB) EventIntervals(ctx context.Context, name string, animalID, minFrame, maxFrame int) ([]interval.Interval, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT STARTFRAME, ENDFRAME
		FROM EVENT
		WHERE NAME = ? AND IDANIMALA = ?
		  AND ENDFRAME >= ? AND STARTFRAME <= ?
		ORDER BY STARTFRAME, ENDFRAME`,
		name, animalID, minFrame, maxFrame)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q events for animal %d: %w", name, animalID, err)
	}
	defer rows.Close()

	var out []interval.Interval
	for rows.Next() {
		var iv interval.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		if clipped, ok := interval.Clip(iv, minFrame, maxFrame); ok {
			out = append(out, clipped)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FlushEvents deletes every event called name that overlaps [minT, maxT] and
// returns how many were removed.
func (db *DB) FlushEvents(ctx context.Context, name string, minT, maxT int) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM EVENT
		WHERE NAME = ? AND ENDFRAME >= ? AND STARTFRAME <= ?`,
		name, minT, maxT)
	if err != nil {
		return 0, fmt.Errorf("failed to flush %q events: %w", name, err)
	}
	return res.RowsAffected()
}

// CommitWindow replaces the events called name that start inside the window
// [minT, maxT) with byAnimal, in one transaction. Either every animal's
// intervals are stored or none are. It returns the number of events written.
func (db *DB) CommitWindow(ctx context.Context, name string, minT, maxT int, byAnimal map[int][]interval.Interval) (int, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			monitoring.Logf("warning: failed to rollback window [%d, %d): %v", minT, maxT, err)
		}
	}()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM EVENT
		WHERE NAME = ? AND STARTFRAME >= ? AND STARTFRAME < ?`,
		name, minT, maxT)
	if err != nil {
		return 0, fmt.Errorf("failed to clear window [%d, %d): %w", minT, maxT, err)
	}
	if deleted, _ := res.RowsAffected(); deleted > 0 {
		monitoring.Logf("deleted %d existing %q events in window [%d, %d)", deleted, name, minT, maxT)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO EVENT (NAME, DESCRIPTION, STARTFRAME, ENDFRAME, IDANIMALA)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int, 0, len(byAnimal))
	for id := range byAnimal {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	written := 0
	for _, id := range ids {
		for _, iv := range byAnimal[id] {
			if iv.Start < minT || iv.End >= maxT {
				return 0, fmt.Errorf("animal %d: %v lies outside window [%d, %d)", id, iv, minT, maxT)
			}
			if err := iv.Validate(); err != nil {
				return 0, fmt.Errorf("animal %d: %w", id, err)
			}
			if _, err := stmt.ExecContext(ctx, name, name, iv.Start, iv.End, id); err != nil {
				return 0, fmt.Errorf("failed to insert %q event %v for animal %d: %w", name, iv, id, err)
			}
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit window [%d, %d): %w", minT, maxT, err)
	}
	return written, nil
}
