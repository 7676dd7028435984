// Package units converts between recording frames, wall-clock time and
// per-frame motion bounds at a fixed frame rate.
package units

import (
	"fmt"
	"time"
)

// DefaultFrameRate is the LMT camera rate in frames per second.
const DefaultFrameRate = 30

// Frames is a frame count at a fixed frame rate.
type Frames = int

// FrameRate is a recording's fixed rate in frames per second.
type FrameRate int

// Valid reports whether the rate can be used for conversions.
func (r FrameRate) Valid() bool {
	return r > 0
}

// OneSecond returns the number of frames in one second.
func (r FrameRate) OneSecond() Frames { return int(r) }

// OneMinute returns the number of frames in one minute.
func (r FrameRate) OneMinute() Frames { return 60 * r.OneSecond() }

// OneHour returns the number of frames in one hour.
func (r FrameRate) OneHour() Frames { return 60 * r.OneMinute() }

// OneDay returns the number of frames in one day.
func (r FrameRate) OneDay() Frames { return 24 * r.OneHour() }

// Days returns the number of frames in n days.
func (r FrameRate) Days(n int) Frames { return n * r.OneDay() }

// FrameDuration is the wall-clock time between two consecutive frames.
func (r FrameRate) FrameDuration() time.Duration {
	return time.Second / time.Duration(r)
}

// Seconds converts a frame count to seconds.
func (r FrameRate) Seconds(frames Frames) float64 {
	return float64(frames) / float64(r)
}

// MaxDistancePerFrame converts a speed in distance units per second into the
// largest displacement allowed between two consecutive frames.
func (r FrameRate) MaxDistancePerFrame(speed float64) float64 {
	return speed / float64(r)
}

// Speed returns the instantaneous speed in distance units per second for a
// displacement covered over frameDelta frames.
func (r FrameRate) Speed(displacement float64, frameDelta Frames) float64 {
	return displacement / r.Seconds(frameDelta)
}

// HMS splits a frame count into whole hours, minutes and seconds, truncating
// the remainder.
func (r FrameRate) HMS(frames Frames) (hours, minutes, seconds int) {
	total := int(r.Seconds(frames))
	return total / 3600, (total % 3600) / 60, total % 60
}

// FormatHMS renders frames as "<h>h <m>m <s>s".
func (r FrameRate) FormatHMS(frames Frames) string {
	h, m, s := r.HMS(frames)
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
