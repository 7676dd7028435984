package motion

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lmt.report/internal/interval"
	"github.com/banshee-data/lmt.report/internal/units"
)

// Sample is one detected position of an animal at a frame.
type Sample struct {
	Frame int
	Pos   r2.Vec
}

// Params configures the speed and stationary gates.
type Params struct {
	// FrameRate of the recording, used to turn frame deltas into seconds.
	FrameRate units.FrameRate

	// MinSpeed and MaxSpeed bound the incoming instantaneous speed of a
	// sample, in distance units per second.
	MinSpeed float64
	MaxSpeed float64

	// StationaryFrames is the length of the sliding span checked for lack of
	// motion. Values below 2 disable the stationary gate.
	StationaryFrames int

	// StationaryDistance is the displacement a span must reach to count as
	// moving. Spans whose positions all lie closer than this are excluded.
	StationaryDistance float64
}

// DefaultParams returns the gate settings for a 30 fps LMT recording:
// 0..100 units/s and one minute below one unit of motion.
func DefaultParams() Params {
	r := units.FrameRate(units.DefaultFrameRate)
	return Params{
		FrameRate:          r,
		MinSpeed:           0,
		MaxSpeed:           100,
		StationaryFrames:   r.OneMinute(),
		StationaryDistance: 1,
	}
}

// Validate checks that the parameters describe a usable filter.
func (p Params) Validate() error {
	if !p.FrameRate.Valid() {
		return fmt.Errorf("frame rate must be positive, got %d", p.FrameRate)
	}
	if p.MinSpeed < 0 {
		return fmt.Errorf("min speed must be non-negative, got %f", p.MinSpeed)
	}
	if p.MaxSpeed <= p.MinSpeed {
		return fmt.Errorf("max speed (%f) must exceed min speed (%f)", p.MaxSpeed, p.MinSpeed)
	}
	if p.StationaryFrames < 0 {
		return fmt.Errorf("stationary frames must be non-negative, got %d", p.StationaryFrames)
	}
	if p.StationaryDistance < 0 {
		return fmt.Errorf("stationary distance must be non-negative, got %f", p.StationaryDistance)
	}
	return nil
}

// Stats summarises what the gates did to one animal's samples.
type Stats struct {
	Samples            int
	SpeedRejected      int
	StationaryExcluded int
	Kept               int
	MeanSpeed          float64
	PeakSpeed          float64
}

// Add accumulates o into s. Speed figures keep the larger peak and a
// sample-weighted mean.
func (s *Stats) Add(o Stats) {
	total := s.Samples + o.Samples
	if total > 0 {
		s.MeanSpeed = (s.MeanSpeed*float64(s.Samples) + o.MeanSpeed*float64(o.Samples)) / float64(total)
	}
	s.Samples = total
	s.SpeedRejected += o.SpeedRejected
	s.StationaryExcluded += o.StationaryExcluded
	s.Kept += o.Kept
	s.PeakSpeed = math.Max(s.PeakSpeed, o.PeakSpeed)
}

// Filter returns the detection intervals of one animal inside the window
// [minT, maxT) after the speed and stationary gates.
//
// Nothing is carried between windows: the first sample of a window has no
// incoming speed and is kept, and stationary spans are only searched inside
// the window. An interval crossing maxT is closed at maxT-1 and the next
// window reopens it, so verdicts may differ from a single-window run only for
// frames within StationaryFrames of a window boundary.
func Filter(samples []Sample, minT, maxT int, p Params) ([]interval.Interval, Stats) {
	pts := prepare(samples, minT, maxT)
	stats := Stats{Samples: len(pts)}
	if len(pts) == 0 {
		return nil, stats
	}

	valid, speeds := speedGate(pts, p)
	for _, ok := range valid {
		if !ok {
			stats.SpeedRejected++
		}
	}
	if len(speeds) > 0 {
		stats.MeanSpeed = stat.Mean(speeds, nil)
		stats.PeakSpeed = floats.Max(speeds)
	}

	var out []interval.Interval
	for _, run := range runs(pts, valid) {
		span := interval.New(run[0].Frame, run[len(run)-1].Frame)
		still := stationarySpans(run, p)
		stats.StationaryExcluded += interval.TotalDuration(still)
		out = append(out, interval.Subtract([]interval.Interval{span}, still)...)
	}
	stats.Kept = interval.TotalDuration(out)
	return out, stats
}

// prepare keeps samples inside the window, sorted by frame with duplicate
// frames dropped.
func prepare(samples []Sample, minT, maxT int) []Sample {
	pts := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Frame >= minT && s.Frame < maxT {
			pts = append(pts, s)
		}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Frame < pts[j].Frame })
	out := pts[:0]
	for i, s := range pts {
		if i > 0 && s.Frame == pts[i-1].Frame {
			continue
		}
		out = append(out, s)
	}
	return out
}

// speedGate marks samples whose incoming speed lies in [MinSpeed, MaxSpeed].
// It also returns the speeds of the accepted transitions.
func speedGate(pts []Sample, p Params) ([]bool, []float64) {
	valid := make([]bool, len(pts))
	valid[0] = true
	maxStep := p.FrameRate.MaxDistancePerFrame(p.MaxSpeed)
	var speeds []float64
	for i := 1; i < len(pts); i++ {
		df := pts[i].Frame - pts[i-1].Frame
		d := r2.Norm(r2.Sub(pts[i].Pos, pts[i-1].Pos))
		speed := p.FrameRate.Speed(d, df)
		if d > maxStep*float64(df) || speed < p.MinSpeed {
			continue
		}
		valid[i] = true
		speeds = append(speeds, speed)
	}
	return valid, speeds
}

// runs splits valid samples into maximal runs of consecutive frames.
func runs(pts []Sample, valid []bool) [][]Sample {
	var out [][]Sample
	start := -1
	for i := range pts {
		contiguous := start >= 0 && valid[i] && pts[i].Frame == pts[i-1].Frame+1
		if contiguous {
			continue
		}
		if start >= 0 {
			out = append(out, pts[start:i])
			start = -1
		}
		if valid[i] {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, pts[start:])
	}
	return out
}

// stationarySpans returns the merged frame spans of every StationaryFrames
// long window in run whose positions all lie within StationaryDistance of
// each other.
func stationarySpans(run []Sample, p Params) []interval.Interval {
	w := p.StationaryFrames
	if w < 2 || len(run) < w {
		return nil
	}
	xs := make([]float64, len(run))
	ys := make([]float64, len(run))
	for i, s := range run {
		xs[i], ys[i] = s.Pos.X, s.Pos.Y
	}
	minX, maxX := slidingExtrema(xs, w)
	minY, maxY := slidingExtrema(ys, w)

	var spans []interval.Interval
	for j := range minX {
		width, height := maxX[j]-minX[j], maxY[j]-minY[j]
		if width >= p.StationaryDistance || height >= p.StationaryDistance {
			continue
		}
		if math.Hypot(width, height) >= p.StationaryDistance &&
			diameter(run[j:j+w]) >= p.StationaryDistance {
			continue
		}
		spans = append(spans, interval.New(run[j].Frame, run[j+w-1].Frame))
	}
	return interval.Merge(spans)
}

// slidingExtrema returns the minimum and maximum of every length-w window of
// v using monotonic index queues.
func slidingExtrema(v []float64, w int) (mins, maxs []float64) {
	n := len(v) - w + 1
	mins = make([]float64, n)
	maxs = make([]float64, n)
	var lo, hi []int
	for i, x := range v {
		for len(lo) > 0 && v[lo[len(lo)-1]] >= x {
			lo = lo[:len(lo)-1]
		}
		lo = append(lo, i)
		for len(hi) > 0 && v[hi[len(hi)-1]] <= x {
			hi = hi[:len(hi)-1]
		}
		hi = append(hi, i)
		if lo[0] <= i-w {
			lo = lo[1:]
		}
		if hi[0] <= i-w {
			hi = hi[1:]
		}
		if j := i - w + 1; j >= 0 {
			mins[j] = v[lo[0]]
			maxs[j] = v[hi[0]]
		}
	}
	return mins, maxs
}
