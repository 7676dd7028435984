// Package confirm derives RFID-confirmed detection intervals from the
// Detection, RFID MATCH and RFID MISMATCH event streams of each animal.
package confirm

import (
	"fmt"

	"github.com/banshee-data/lmt.report/internal/interval"
)

// Confirmation names the event stream that confirmed an interval.
type Confirmation string

const (
	ByMatch    Confirmation = "MATCH"
	ByMismatch Confirmation = "MISMATCH"
)

// ConfirmedInterval is a detection interval, or its tail, backed by an RFID
// read.
type ConfirmedInterval struct {
	interval.Interval
	Source Confirmation `json:"confirmed_by"`
}

// Resolve confirms each detection against the match and mismatch streams.
//
// A detection overlapped by any match is confirmed whole. Otherwise, if
// mismatches overlap it, only the frames after the last of them are
// confirmed, and nothing when that mismatch reaches the detection's end.
// Detections with neither are dropped. Every stream must be sorted and
// non-overlapping.
func Resolve(detections, matches, mismatches []interval.Interval) ([]ConfirmedInterval, error) {
	for _, s := range []struct {
		name string
		ivs  []interval.Interval
	}{
		{"detection", detections},
		{"match", matches},
		{"mismatch", mismatches},
	} {
		if err := interval.ValidateStream(s.ivs); err != nil {
			return nil, fmt.Errorf("%s stream: %w", s.name, err)
		}
	}

	var out []ConfirmedInterval
	for _, d := range detections {
		if overlapsAny(d, matches) {
			out = append(out, ConfirmedInterval{Interval: d, Source: ByMatch})
			continue
		}
		if tail, ok := afterMismatches(d, mismatches); ok {
			out = append(out, ConfirmedInterval{Interval: tail, Source: ByMismatch})
		}
	}
	return out, nil
}

// TotalDuration sums the confirmed frames.
func TotalDuration(cis []ConfirmedInterval) int {
	total := 0
	for _, c := range cis {
		total += c.Duration()
	}
	return total
}

func overlapsAny(d interval.Interval, ivs []interval.Interval) bool {
	for _, iv := range ivs {
		if interval.Overlaps(d, iv) {
			return true
		}
	}
	return false
}

// afterMismatches returns (maxEnd+1, d.End) where maxEnd is the latest end of
// the mismatches overlapping d.
func afterMismatches(d interval.Interval, mismatches []interval.Interval) (interval.Interval, bool) {
	maxEnd, found := 0, false
	for _, m := range mismatches {
		if !interval.Overlaps(d, m) {
			continue
		}
		if !found || m.End > maxEnd {
			maxEnd = m.End
		}
		found = true
	}
	if !found || maxEnd >= d.End {
		return interval.Interval{}, false
	}
	return interval.New(maxEnd+1, d.End), true
}
