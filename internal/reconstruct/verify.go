package reconstruct

import (
	"context"
	"fmt"

	"github.com/banshee-data/lmt.report/internal/interval"
	"github.com/banshee-data/lmt.report/internal/monitoring"
	"github.com/banshee-data/lmt.report/internal/motion"
)

// AnimalDiff compares the stored events of one animal with a single-window
// reconstruction of the same range.
type AnimalDiff struct {
	AnimalID        int
	StoredEvents    int
	ReferenceEvents int
	StoredFrames    int
	ReferenceFrames int
	// DifferingFrames counts frames covered by exactly one of the two.
	DifferingFrames int
}

// Verification is the windowing check of one file.
type Verification struct {
	Animals []AnimalDiff
}

// Identical reports whether windowing covered exactly the same frames. Events
// split at a window boundary still count as identical.
func (v *Verification) Identical() bool {
	return v.DifferingFrames() == 0
}

// DifferingFrames sums the differing frames over all animals.
func (v *Verification) DifferingFrames() int {
	n := 0
	for _, a := range v.Animals {
		n += a.DifferingFrames
	}
	return n
}

// verify rebuilds [TMIN, total) as one window in memory and compares it with
// what the windowed pass stored. Nothing is written.
func (r *Reconstructor) verify(ctx context.Context, store EventStore, total int, params motion.Params) (*Verification, error) {
	v := &Verification{}
	if total <= r.cfg.TMin {
		return v, nil
	}
	animals, err := store.LoadAnimals(ctx)
	if err != nil {
		return nil, err
	}
	detections, err := store.LoadDetections(ctx, r.cfg.TMin, total)
	if err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(animals) {
		reference, _ := motion.Filter(detections[id], r.cfg.TMin, total, params)
		stored, err := store.EventIntervals(ctx, r.cfg.DetectionEvent, id, r.cfg.TMin, total-1)
		if err != nil {
			return nil, err
		}
		storedSet, referenceSet := interval.Merge(stored), interval.Merge(reference)
		d := AnimalDiff{
			AnimalID:        id,
			StoredEvents:    len(stored),
			ReferenceEvents: len(reference),
			StoredFrames:    interval.TotalDuration(storedSet),
			ReferenceFrames: interval.TotalDuration(referenceSet),
			DifferingFrames: interval.TotalDuration(interval.Subtract(storedSet, referenceSet)) +
				interval.TotalDuration(interval.Subtract(referenceSet, storedSet)),
		}
		if d.DifferingFrames != 0 {
			monitoring.Logf("windowing changed animal %d: %s", id, d)
		}
		v.Animals = append(v.Animals, d)
	}
	return v, nil
}

func (d AnimalDiff) String() string {
	return fmt.Sprintf("stored %d events / %d frames, single window %d events / %d frames, %d frames differ",
		d.StoredEvents, d.StoredFrames, d.ReferenceEvents, d.ReferenceFrames, d.DifferingFrames)
}
