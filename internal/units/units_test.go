package units

import (
	"math"
	"testing"
	"time"
)

func TestFrameRateConstants(t *testing.T) {
	r := FrameRate(DefaultFrameRate)

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"one second", r.OneSecond(), 30},
		{"one minute", r.OneMinute(), 1800},
		{"one hour", r.OneHour(), 108000},
		{"one day", r.OneDay(), 2592000},
		{"eight days", r.Days(8), 20736000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %d, want %d", tt.got, tt.want)
			}
		})
	}
}

func TestFrameRateValid(t *testing.T) {
	if FrameRate(0).Valid() {
		t.Error("0 fps should be invalid")
	}
	if !FrameRate(25).Valid() {
		t.Error("25 fps should be valid")
	}
}

func TestSpeedConversions(t *testing.T) {
	r := FrameRate(30)

	if got := r.MaxDistancePerFrame(100); math.Abs(got-3.3333) > 0.001 {
		t.Errorf("MaxDistancePerFrame(100) = %f, want ~3.333", got)
	}
	// 3 units over one frame at 30 fps is 90 units/s
	if got := r.Speed(3, 1); math.Abs(got-90) > 1e-9 {
		t.Errorf("Speed(3, 1) = %f, want 90", got)
	}
	// the same displacement over two frames halves the speed
	if got := r.Speed(3, 2); math.Abs(got-45) > 1e-9 {
		t.Errorf("Speed(3, 2) = %f, want 45", got)
	}
	if got := r.FrameDuration(); got != 33333333*time.Nanosecond {
		t.Errorf("FrameDuration() = %v", got)
	}
}

func TestHMS(t *testing.T) {
	r := FrameRate(30)

	tests := []struct {
		frames int
		want   string
	}{
		{0, "0h 0m 0s"},
		{29, "0h 0m 0s"},
		{30, "0h 0m 1s"},
		{r.OneHour() + r.OneMinute()*2 + 95, "1h 2m 3s"},
		{r.Days(2), "48h 0m 0s"},
	}
	for _, tt := range tests {
		if got := r.FormatHMS(tt.frames); got != tt.want {
			t.Errorf("FormatHMS(%d) = %q, want %q", tt.frames, got, tt.want)
		}
	}
}
