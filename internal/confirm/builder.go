package confirm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/banshee-data/lmt.report/internal/config"
	"github.com/banshee-data/lmt.report/internal/db"
	"github.com/banshee-data/lmt.report/internal/interval"
	"github.com/banshee-data/lmt.report/internal/monitoring"
	"github.com/banshee-data/lmt.report/internal/timeutil"
	"github.com/banshee-data/lmt.report/internal/units"
)

// ErrNoFrames is returned for a database whose FRAME table is empty.
var ErrNoFrames = errors.New("FRAME table is empty")

// EventSource is the read side of a tracking database. *db.DB implements it.
type EventSource interface {
	LoadAnimals(ctx context.Context) (map[int]db.Animal, error)
	EventIntervals(ctx context.Context, name string, animalID, minFrame, maxFrame int) ([]interval.Interval, error)
	MaxFrame(ctx context.Context) (int, bool, error)
	StartTimestamp(ctx context.Context) (time.Time, bool, error)
}

// Store is an EventSource that must be closed.
type Store interface {
	EventSource
	Close() error
}

// Opener opens the store for one database file.
type Opener func(path string) (Store, error)

// OpenDB is the Opener for on-disk tracking databases.
func OpenDB(path string) (Store, error) {
	return db.OpenDB(path)
}

// AnimalReport is the confirmation result for one animal.
type AnimalReport struct {
	Animal         db.Animal           `json:"animal"`
	DetectionTotal int                 `json:"detection_total"`
	Confirmed      []ConfirmedInterval `json:"confirmed"`
	ConfirmedTotal int                 `json:"confirmed_total"`
}

// FileReport is the confirmation result for one database.
type FileReport struct {
	Name      string
	Start     time.Time
	HasStart  bool
	MaxFrame  int
	FrameRate units.FrameRate
	Animals   []AnimalReport
}

// Sink receives the outcome of each file in batch order.
type Sink interface {
	WriteFile(r *FileReport) error
	WriteFailure(name string, err error) error
}

// Builder resolves confirmed intervals for whole databases.
type Builder struct {
	cfg  config.RunConfig
	open Opener

	Stderr io.Writer
	Clock  timeutil.Clock
}

// NewBuilder returns a Builder for cfg. A nil open uses OpenDB.
func NewBuilder(cfg config.RunConfig, open Opener) *Builder {
	if open == nil {
		open = OpenDB
	}
	return &Builder{cfg: cfg, open: open, Stderr: os.Stderr, Clock: timeutil.RealClock{}}
}

// BuildFile reads the experiment metadata and resolves every animal of src,
// in ascending id order.
func (b *Builder) BuildFile(ctx context.Context, name string, src EventSource) (*FileReport, error) {
	fr := &FileReport{Name: name, FrameRate: b.cfg.FrameRate}

	var err error
	if fr.Start, fr.HasStart, err = src.StartTimestamp(ctx); err != nil {
		return nil, err
	}
	maxFrame, ok, err := src.MaxFrame(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoFrames
	}
	fr.MaxFrame = maxFrame

	animals, err := src.LoadAnimals(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(animals))
	for id := range animals {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ar, err := b.BuildAnimal(ctx, src, animals[id])
		if err != nil {
			return nil, fmt.Errorf("animal %d: %w", id, err)
		}
		fr.Animals = append(fr.Animals, ar)
	}
	return fr, nil
}

// BuildAnimal resolves one animal. Detections are read in [TMIN, TMAX],
// matches and mismatches up to their own limits.
func (b *Builder) BuildAnimal(ctx context.Context, src EventSource, a db.Animal) (AnimalReport, error) {
	ar := AnimalReport{Animal: a}
	detections, err := src.EventIntervals(ctx, b.cfg.DetectionEvent, a.ID, b.cfg.TMin, b.cfg.TMax)
	if err != nil {
		return ar, err
	}
	matches, err := src.EventIntervals(ctx, b.cfg.MatchEvent, a.ID, b.cfg.TMin, b.cfg.MatchMaxFrames)
	if err != nil {
		return ar, err
	}
	mismatches, err := src.EventIntervals(ctx, b.cfg.MismatchEvent, a.ID, b.cfg.TMin, b.cfg.MismatchMaxFrames)
	if err != nil {
		return ar, err
	}

	ar.DetectionTotal = interval.TotalDuration(detections)
	if ar.Confirmed, err = Resolve(detections, matches, mismatches); err != nil {
		return ar, err
	}
	ar.ConfirmedTotal = TotalDuration(ar.Confirmed)
	return ar, nil
}

// ProcessAll builds every file in order and hands each result to sink. A
// failing file is reported to sink and the batch moves on; only a sink error
// or a cancelled context stops it.
func (b *Builder) ProcessAll(ctx context.Context, paths []string, sink Sink) error {
	chrono := monitoring.StartChronometer("Confirm batch", b.Clock)
	defer chrono.Log()

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(path)
		fr, err := b.processFile(ctx, path, name)
		if err != nil {
			fmt.Fprintf(b.Stderr, "Error processing SQL file: %s: %v\n", name, err)
			if werr := sink.WriteFailure(name, err); werr != nil {
				return werr
			}
			continue
		}
		if err := sink.WriteFile(fr); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) processFile(ctx context.Context, path, name string) (*FileReport, error) {
	chrono := monitoring.StartChronometer("Confirm "+name, b.Clock)
	defer chrono.Log()

	store, err := b.open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			monitoring.Logf("failed to close %s: %v", path, err)
		}
	}()
	return b.BuildFile(ctx, name, store)
}
