package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/lmt.report/internal/motion"
)

// Animal is one tracked animal from the ANIMAL table.
type Animal struct {
	ID       int    `json:"id"`
	RFID     string `json:"rfid"`
	Name     string `json:"name,omitempty"`
	Genotype string `json:"genotype,omitempty"`
}

// LoadAnimals returns every animal keyed by id.
func (db *DB) LoadAnimals(ctx context.Context) (map[int]Animal, error) {
	rows, err := db.QueryContext(ctx, `SELECT ID, RFID, NAME, GENOTYPE FROM ANIMAL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query animals: %w", err)
	}
	defer rows.Close()

	animals := make(map[int]Animal)
	for rows.Next() {
		var (
			a                    Animal
			rfid, name, genotype sql.NullString
		)
		if err := rows.Scan(&a.ID, &rfid, &name, &genotype); err != nil {
			return nil, err
		}
		a.RFID, a.Name, a.Genotype = rfid.String, name.String, genotype.String
		animals[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return animals, nil
}

// LoadDetections returns the positioned detections in frames [minT, maxT)
// keyed by animal id, each slice ordered by frame. Rows without an identity
// or without mass coordinates are skipped.
func (db *DB) LoadDetections(ctx context.Context, minT, maxT int) (map[int][]motion.Sample, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT ANIMALID, FRAMENUMBER, MASS_X, MASS_Y
		FROM DETECTION
		WHERE FRAMENUMBER >= ? AND FRAMENUMBER < ?
		  AND ANIMALID IS NOT NULL
		  AND MASS_X IS NOT NULL AND MASS_Y IS NOT NULL
		ORDER BY ANIMALID, FRAMENUMBER`, minT, maxT)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections [%d, %d): %w", minT, maxT, err)
	}
	defer rows.Close()

	out := make(map[int][]motion.Sample)
	for rows.Next() {
		var (
			animalID int
			s        motion.Sample
		)
		if err := rows.Scan(&animalID, &s.Frame, &s.Pos.X, &s.Pos.Y); err != nil {
			return nil, err
		}
		out[animalID] = append(out[animalID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MaxFrame returns MAX(FRAMENUMBER) of the FRAME table. ok is false when the
// table is empty.
func (db *DB) MaxFrame(ctx context.Context) (frame int, ok bool, err error) {
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(FRAMENUMBER) FROM FRAME`).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("failed to read max frame: %w", err)
	}
	return int(v.Int64), v.Valid, nil
}

// StartTimestamp returns the wall time of frame 1 in UTC. FRAME.TIMESTAMP is
// in epoch milliseconds; a missing row or a zero timestamp reports ok false.
func (db *DB) StartTimestamp(ctx context.Context) (t time.Time, ok bool, err error) {
	var ms sql.NullInt64
	err = db.QueryRowContext(ctx, `SELECT TIMESTAMP FROM FRAME WHERE FRAMENUMBER = 1`).Scan(&ms)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read start timestamp: %w", err)
	}
	if !ms.Valid || ms.Int64 == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms.Int64).UTC(), true, nil
}
