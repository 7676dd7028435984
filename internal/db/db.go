// Package db reads and writes Live Mouse Tracker databases: animals, raw
// detections, frames, events and the task log, plus the additive schema this
// tool maintains on top of them.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/lmt.report/internal/monitoring"
)

// ErrSchemaConflict is returned when an additive schema change finds the
// change already applied.
var ErrSchemaConflict = errors.New("schema conflict")

// DB is one open tracking database.
type DB struct {
	*sql.DB
	path string
}

var pragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA temp_store = MEMORY",
}

// OpenDB opens the database at path without touching its schema. A single
// connection is used so the pragmas hold for every statement.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q to %s: %w", p, path, err)
		}
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// PrepareSchema applies the embedded migrations and adds EVENT.METADATA.
// An already-present METADATA column is logged and ignored.
func (db *DB) PrepareSchema(ctx context.Context) error {
	if err := db.EnsureEventMetadataColumn(ctx); err != nil {
		if !errors.Is(err, ErrSchemaConflict) {
			return err
		}
		monitoring.Logf("METADATA field already exists: %s", db.path)
	}
	if err := db.MigrateUp(); err != nil {
		return err
	}
	return nil
}

// EnsureEventMetadataColumn adds the METADATA text column to EVENT. It returns
// an error wrapping ErrSchemaConflict when the column is already there.
func (db *DB) EnsureEventMetadataColumn(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `ALTER TABLE EVENT ADD COLUMN METADATA TEXT`)
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
		return fmt.Errorf("%w: EVENT.METADATA already exists", ErrSchemaConflict)
	}
	return fmt.Errorf("failed to add EVENT.METADATA: %w", err)
}
