package confirm

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lmt.report/internal/interval"
)

func ivs(pairs ...int) []interval.Interval {
	var out []interval.Interval
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, interval.New(pairs[i], pairs[i+1]))
	}
	return out
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		detections []interval.Interval
		matches    []interval.Interval
		mismatches []interval.Interval
		want       []ConfirmedInterval
	}{
		{
			name:       "mismatch inside detection keeps the tail",
			detections: ivs(100, 200),
			mismatches: ivs(150, 180),
			want:       []ConfirmedInterval{{Interval: interval.New(181, 200), Source: ByMismatch}},
		},
		{
			name:       "mismatch past the end confirms nothing",
			detections: ivs(100, 200),
			mismatches: ivs(150, 250),
		},
		{
			name:       "mismatch ending on the last frame confirms nothing",
			detections: ivs(100, 200),
			mismatches: ivs(150, 200),
		},
		{
			name:       "latest overlapping mismatch wins",
			detections: ivs(100, 200),
			mismatches: ivs(90, 110, 120, 130, 140, 160),
			want:       []ConfirmedInterval{{Interval: interval.New(161, 200), Source: ByMismatch}},
		},
		{
			name:       "mismatch before the detection start",
			detections: ivs(100, 200),
			mismatches: ivs(50, 100),
			want:       []ConfirmedInterval{{Interval: interval.New(101, 200), Source: ByMismatch}},
		},
		{
			name:       "match confirms whole detection",
			detections: ivs(100, 200),
			matches:    ivs(199, 300),
			mismatches: ivs(150, 180),
			want:       []ConfirmedInterval{{Interval: interval.New(100, 200), Source: ByMatch}},
		},
		{
			name:       "neither drops the detection",
			detections: ivs(100, 200, 300, 400),
			matches:    ivs(201, 299),
			mismatches: ivs(401, 500),
		},
		{
			name:       "mixed",
			detections: ivs(0, 10, 20, 30, 40, 50),
			matches:    ivs(5, 5),
			mismatches: ivs(18, 22, 45, 47),
			want: []ConfirmedInterval{
				{Interval: interval.New(0, 10), Source: ByMatch},
				{Interval: interval.New(23, 30), Source: ByMismatch},
				{Interval: interval.New(48, 50), Source: ByMismatch},
			},
		},
		{
			name: "no detections",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.detections, tt.matches, tt.mismatches)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveMalformedStreams(t *testing.T) {
	tests := []struct {
		name                            string
		detections, matches, mismatches []interval.Interval
	}{
		{"inverted detection", ivs(10, 5), nil, nil},
		{"unsorted matches", ivs(0, 10), ivs(20, 30, 5, 8), nil},
		{"overlapping mismatches", ivs(0, 10), nil, ivs(0, 5, 5, 9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.detections, tt.matches, tt.mismatches)
			require.Error(t, err)
			assert.True(t, errors.Is(err, interval.ErrMalformedInterval))
		})
	}
}

// randomStream returns a sorted non-overlapping stream inside [0, 10000].
func randomStream(rng *rand.Rand, n int) []interval.Interval {
	var out []interval.Interval
	t := rng.Intn(50)
	for i := 0; i < n; i++ {
		start := t + rng.Intn(100)
		end := start + rng.Intn(200)
		out = append(out, interval.New(start, end))
		t = end + 1
	}
	return out
}

func TestResolveProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		d := randomStream(rng, 20)
		m := randomStream(rng, rng.Intn(5))
		mm := randomStream(rng, rng.Intn(10))

		got, err := Resolve(d, m, mm)
		require.NoError(t, err)

		again, err := Resolve(d, m, mm)
		require.NoError(t, err)
		assert.Equal(t, got, again)

		assert.LessOrEqual(t, TotalDuration(got), interval.TotalDuration(d))

		var plain []interval.Interval
		for _, c := range got {
			plain = append(plain, c.Interval)
		}
		assert.NoError(t, interval.ValidateStream(plain))
		assert.Empty(t, interval.Subtract(plain, d), "confirmed frames must be detected frames")
	}
}
