// Package interval provides closed integer frame intervals and the set
// operations used by detection reconstruction and confirmation.
package interval

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMalformedInterval reports an interval or interval stream that breaks
// the event-builder contract: inverted bounds, unsorted starts or overlap
// inside a single stream.
var ErrMalformedInterval = errors.New("malformed interval")

// Interval is a closed frame range [Start, End].
type Interval struct {
	Start int `json:"start_frame"`
	End   int `json:"end_frame"`
}

// New returns the interval [start, end].
func New(start, end int) Interval {
	return Interval{Start: start, End: end}
}

// Duration returns the number of frames covered, End-Start+1.
func (iv Interval) Duration() int {
	return iv.End - iv.Start + 1
}

// Contains reports whether frame f lies inside the interval.
func (iv Interval) Contains(f int) bool {
	return f >= iv.Start && f <= iv.End
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d,%d]", iv.Start, iv.End)
}

// Validate fails with ErrMalformedInterval when the duration is not positive.
func (iv Interval) Validate() error {
	if iv.Duration() < 1 {
		return fmt.Errorf("%w: %v has duration %d", ErrMalformedInterval, iv, iv.Duration())
	}
	return nil
}

// Overlaps reports whether a and b share at least one frame. Intervals that
// touch on a boundary frame overlap.
func Overlaps(a, b Interval) bool {
	return !(a.End < b.Start || b.End < a.Start)
}

// ValidateStream checks the single-stream contract: every interval valid,
// sorted by Start and pairwise non-overlapping.
func ValidateStream(ivs []Interval) error {
	for i, iv := range ivs {
		if err := iv.Validate(); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
		if i == 0 {
			continue
		}
		prev := ivs[i-1]
		if iv.Start < prev.Start {
			return fmt.Errorf("%w: index %d %v starts before %v", ErrMalformedInterval, i, iv, prev)
		}
		if Overlaps(prev, iv) {
			return fmt.Errorf("%w: index %d %v overlaps %v", ErrMalformedInterval, i, iv, prev)
		}
	}
	return nil
}

// TotalDuration sums the durations of ivs.
func TotalDuration(ivs []Interval) int {
	total := 0
	for _, iv := range ivs {
		total += iv.Duration()
	}
	return total
}

// Clip restricts iv to [lo, hi]. The second result is false when nothing
// remains.
func Clip(iv Interval, lo, hi int) (Interval, bool) {
	if iv.Start < lo {
		iv.Start = lo
	}
	if iv.End > hi {
		iv.End = hi
	}
	return iv, iv.Start <= iv.End
}

// Merge returns the sorted union of ivs. Overlapping and adjacent intervals
// are joined. The input is not modified.
func Merge(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End+1 {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Subtract returns the frames of a that are not covered by b, as a sorted
// non-overlapping slice.
func Subtract(a, b []Interval) []Interval {
	a = Merge(a)
	b = Merge(b)
	var out []Interval
	j := 0
	for _, iv := range a {
		cur := iv
		for j < len(b) && b[j].End < cur.Start {
			j++
		}
		k := j
		for k < len(b) && b[k].Start <= cur.End {
			if b[k].Start > cur.Start {
				out = append(out, Interval{Start: cur.Start, End: b[k].Start - 1})
			}
			cur.Start = b[k].End + 1
			if cur.Start > cur.End {
				break
			}
			k++
		}
		if cur.Start <= cur.End {
			out = append(out, cur)
		}
	}
	return out
}

// FromFrames groups sorted, distinct frame numbers into maximal runs of
// consecutive frames.
func FromFrames(frames []int) []Interval {
	if len(frames) == 0 {
		return nil
	}
	var out []Interval
	cur := Interval{Start: frames[0], End: frames[0]}
	for _, f := range frames[1:] {
		if f == cur.End+1 {
			cur.End = f
			continue
		}
		out = append(out, cur)
		cur = Interval{Start: f, End: f}
	}
	return append(out, cur)
}
