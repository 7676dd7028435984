// Package reconstruct rebuilds filtered Detection events in tracking
// databases, one fixed-size frame window at a time.
package reconstruct

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/banshee-data/lmt.report/internal/config"
	"github.com/banshee-data/lmt.report/internal/db"
	"github.com/banshee-data/lmt.report/internal/interval"
	"github.com/banshee-data/lmt.report/internal/monitoring"
	"github.com/banshee-data/lmt.report/internal/motion"
	"github.com/banshee-data/lmt.report/internal/timeutil"
	"github.com/banshee-data/lmt.report/internal/version"
)

// EventStore is the tracking database as seen by the reconstructor.
// *db.DB implements it.
type EventStore interface {
	PrepareSchema(ctx context.Context) error
	LoadAnimals(ctx context.Context) (map[int]db.Animal, error)
	LoadDetections(ctx context.Context, minT, maxT int) (map[int][]motion.Sample, error)
	EventIntervals(ctx context.Context, name string, animalID, minFrame, maxFrame int) ([]interval.Interval, error)
	FlushEvents(ctx context.Context, name string, minT, maxT int) (int64, error)
	CommitWindow(ctx context.Context, name string, minT, maxT int, byAnimal map[int][]interval.Interval) (int, error)
	MaxFrame(ctx context.Context) (int, bool, error)
	AddLog(ctx context.Context, e db.LogEntry) error
	StartRun(ctx context.Context, command, params string) (string, error)
	FinishRun(ctx context.Context, runID string, r db.RunResult) error
	Close() error
}

// Opener opens the store for one database file.
type Opener func(path string) (EventStore, error)

// OpenDB is the Opener for on-disk tracking databases.
func OpenDB(path string) (EventStore, error) {
	return db.OpenDB(path)
}

// FileResult is the outcome of one database.
type FileResult struct {
	Path         string
	Windows      int
	Events       int
	Flushed      int64
	Stats        motion.Stats
	Verification *Verification
	Err          error
}

// OK reports whether the file was fully reconstructed.
func (r FileResult) OK() bool {
	return r.Err == nil
}

// BatchResult is the outcome of a whole batch.
type BatchResult struct {
	Files []FileResult
	// Cancelled is set when the context ended before every file was visited.
	Cancelled bool
}

// Failed returns the results of the files that did not complete.
func (b BatchResult) Failed() []FileResult {
	var out []FileResult
	for _, f := range b.Files {
		if !f.OK() {
			out = append(out, f)
		}
	}
	return out
}

// Reconstructor runs the windowed reconstruction over databases.
type Reconstructor struct {
	cfg  config.RunConfig
	open Opener

	// Stdout receives batch progress lines and Stderr failure traces.
	Stdout io.Writer
	Stderr io.Writer
	Clock  timeutil.Clock

	// VerifyWindowing compares each finished file against an in-memory
	// single-window reconstruction and reports the differences.
	VerifyWindowing bool
}

// New returns a Reconstructor for cfg. A nil open uses OpenDB.
func New(cfg config.RunConfig, open Opener) *Reconstructor {
	if open == nil {
		open = OpenDB
	}
	return &Reconstructor{
		cfg:    cfg,
		open:   open,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Clock:  timeutil.RealClock{},
	}
}

// ProcessAll reconstructs every file in order. A failing file never stops
// the batch; a cancelled context stops it before the next file.
func (r *Reconstructor) ProcessAll(ctx context.Context, paths []string) BatchResult {
	chrono := monitoring.StartChronometer("Full batch", r.Clock)
	var batch BatchResult
	for _, path := range paths {
		if ctx.Err() != nil {
			batch.Cancelled = true
			break
		}
		fmt.Fprintln(r.Stdout, "Processing file", path)
		batch.Files = append(batch.Files, r.ProcessFile(ctx, path))
	}
	chrono.Log()
	fmt.Fprintln(r.Stdout, "*** ALL JOBS DONE ***")
	return batch
}

// ProcessFile reconstructs one database. Errors and panics are contained:
// they are written to the database's task log and to Stderr, and returned in
// the result as a *FileError.
func (r *Reconstructor) ProcessFile(ctx context.Context, path string) (res FileResult) {
	chrono := monitoring.StartChronometer("File "+path, r.Clock)
	defer chrono.Log()
	res.Path = path

	store, err := r.open(path)
	if err != nil {
		res.Err = r.report(ctx, nil, &FileError{Path: path, Err: err})
		return res
	}
	defer func() {
		if err := store.Close(); err != nil {
			monitoring.Logf("failed to close %s: %v", path, err)
		}
	}()

	if err := r.process(ctx, store, &res); err != nil {
		fe := &FileError{Path: path, Err: err}
		var pe *panicError
		if errors.As(err, &pe) {
			fe.Stack = pe.stack
		}
		res.Err = r.report(ctx, store, fe)
		return res
	}

	entry := db.LogEntry{
		Process: fmt.Sprintf("Build Event %s: %d windows, %d events", r.cfg.DetectionEvent, res.Windows, res.Events),
		Version: version.Version,
		Date:    r.Clock.Now(),
		TMin:    r.cfg.TMin,
		TMax:    r.cfg.TMax,
	}
	if err := store.AddLog(ctx, entry); err != nil {
		monitoring.Logf("failed to write task log for %s: %v", path, err)
	}
	return res
}

// report records a failed file in its task log (when the store is open) and
// on Stderr.
func (r *Reconstructor) report(ctx context.Context, store EventStore, fe *FileError) error {
	trace := fe.Trace()
	if store != nil {
		entry := db.LogEntry{
			Process: trace,
			Version: version.Version,
			Date:    r.Clock.Now(),
			TMin:    r.cfg.TMin,
			TMax:    r.cfg.TMax,
		}
		if err := store.AddLog(context.WithoutCancel(ctx), entry); err != nil {
			monitoring.Logf("failed to write task log for %s: %v", fe.Path, err)
		}
	}
	fmt.Fprint(r.Stderr, trace)
	fmt.Fprintln(r.Stderr, "STOP PROCESSING FILE "+fe.Path)
	return fe
}

func (r *Reconstructor) process(ctx context.Context, store EventStore, res *FileResult) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = newPanicError(p)
		}
	}()
	if err := store.PrepareSchema(ctx); err != nil {
		return err
	}

	runID, err := store.StartRun(ctx, "reconstruct", r.params())
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			err = newPanicError(p)
		}
		result := db.RunResult{Windows: res.Windows, Events: res.Events, Err: err}
		if ferr := store.FinishRun(context.WithoutCancel(ctx), runID, result); ferr != nil {
			monitoring.Logf("failed to record run %s: %v", runID, ferr)
		}
	}()

	name := r.cfg.DetectionEvent
	flush := monitoring.StartChronometer("Flushing event "+name, r.Clock)
	if res.Flushed, err = store.FlushEvents(ctx, name, r.cfg.TMin, r.cfg.TMax); err != nil {
		return err
	}
	flush.Log()

	total, err := r.totalFrames(ctx, store)
	if err != nil {
		return err
	}

	params := r.cfg.MotionParams()
	for _, w := range Windows(r.cfg.TMin, total, r.cfg.WindowFrames) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stopped before window %v: %w", w, err)
		}
		chrono := monitoring.StartChronometer(fmt.Sprintf("File %s window %v", res.Path, w), r.Clock)
		n, stats, err := r.processWindow(ctx, store, w, params)
		if err != nil {
			return fmt.Errorf("window %v: %w", w, err)
		}
		chrono.Log()
		res.Windows++
		res.Events += n
		res.Stats.Add(stats)
	}
	monitoring.Logf("%s: %d windows, %d %q events; %d samples, %d speed rejected, %d stationary, mean speed %.2f, peak %.2f",
		res.Path, res.Windows, res.Events, name, res.Stats.Samples, res.Stats.SpeedRejected,
		res.Stats.StationaryExcluded, res.Stats.MeanSpeed, res.Stats.PeakSpeed)

	if r.VerifyWindowing {
		v, err := r.verify(ctx, store, total, params)
		if err != nil {
			return fmt.Errorf("windowing verification: %w", err)
		}
		res.Verification = v
	}
	return nil
}

// totalFrames is one past the last frame to reconstruct:
// min(MAX(FRAMENUMBER)+1, TMAX). An empty FRAME table yields TMIN.
func (r *Reconstructor) totalFrames(ctx context.Context, store EventStore) (int, error) {
	maxFrame, ok, err := store.MaxFrame(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		monitoring.Logf("FRAME table is empty, nothing to reconstruct")
		return r.cfg.TMin, nil
	}
	return min(maxFrame+1, r.cfg.TMax), nil
}

func (r *Reconstructor) processWindow(ctx context.Context, store EventStore, w Window, params motion.Params) (int, motion.Stats, error) {
	var stats motion.Stats
	animals, err := store.LoadAnimals(ctx)
	if err != nil {
		return 0, stats, err
	}
	detections, err := store.LoadDetections(ctx, w.MinT, w.MaxT)
	if err != nil {
		return 0, stats, err
	}
	for id := range detections {
		if _, ok := animals[id]; !ok {
			monitoring.Logf("window %v: ignoring %d detections of unknown animal %d", w, len(detections[id]), id)
		}
	}

	byAnimal := make(map[int][]interval.Interval, len(animals))
	for _, id := range sortedIDs(animals) {
		if err := ctx.Err(); err != nil {
			return 0, stats, err
		}
		ivs, st := motion.Filter(detections[id], w.MinT, w.MaxT, params)
		byAnimal[id] = ivs
		stats.Add(st)
	}

	n, err := store.CommitWindow(ctx, r.cfg.DetectionEvent, w.MinT, w.MaxT, byAnimal)
	if err != nil {
		return 0, stats, err
	}
	return n, stats, nil
}

func (r *Reconstructor) params() string {
	b, err := json.Marshal(r.cfg)
	if err != nil {
		return ""
	}
	return string(b)
}

func sortedIDs(animals map[int]db.Animal) []int {
	ids := make([]int, 0, len(animals))
	for id := range animals {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
