package report

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lmt.report/internal/confirm"
	"github.com/banshee-data/lmt.report/internal/db"
	"github.com/banshee-data/lmt.report/internal/fsutil"
	"github.com/banshee-data/lmt.report/internal/interval"
)

func sampleReport() *confirm.FileReport {
	return &confirm.FileReport{
		Name:      "exp1.sqlite",
		Start:     time.UnixMilli(1700000000000).UTC(),
		HasStart:  true,
		MaxFrame:  113400,
		FrameRate: 30,
		Animals: []confirm.AnimalReport{
			{
				Animal:         db.Animal{ID: 1, RFID: "001043406128"},
				DetectionTotal: 152,
				Confirmed: []confirm.ConfirmedInterval{
					{Interval: interval.New(100, 200), Source: confirm.ByMatch},
					{Interval: interval.New(331, 350), Source: confirm.ByMismatch},
				},
				ConfirmedTotal: 121,
			},
			{
				Animal:         db.Animal{ID: 2, RFID: "001043406129"},
				DetectionTotal: 0,
			},
		},
	}
}

func TestWriter(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	var echo bytes.Buffer
	w, err := Create(fsys, "out/report.txt", &echo)
	require.NoError(t, err)

	require.NoError(t, w.WriteFile(sampleReport()))
	require.NoError(t, w.WriteFailure("broken.sqlite", errors.New("FRAME table is empty")))
	require.NoError(t, w.Close())

	want := strings.Join([]string{
		"Processing SQL file: exp1.sqlite",
		"Start Time of Experiment: 2023-11-14 22:13:20+00:00",
		"Max Frame: 113400",
		"Total Duration of Experiment: 1h 3m 0s (113400 frames)",
		"Animal 1 (RFID: 001043406128) - Detection total duration: 152 frames",
		"Confirmed Detection Intervals:",
		"100 200 duration: 101 (Confirmed by: MATCH)",
		"331 350 duration: 20 (Confirmed by: MISMATCH)",
		"Total confirmed detection duration for animal 1: 121 frames",
		Rule,
		"Animal 2 (RFID: 001043406129) - Detection total duration: 0 frames",
		"No confirmed detection events found.",
		Rule,
		"Processing SQL file: broken.sqlite",
		"Error processing SQL file: broken.sqlite: FRAME table is empty",
		Rule,
		"All files processed.",
		"",
	}, "\n")

	got, err := fsys.ReadFile("out/report.txt")
	require.NoError(t, err)
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want, echo.String())
}

func TestWriterQuietAndNoStart(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	w, err := Create(fsys, "report.txt", nil)
	require.NoError(t, err)

	fr := &confirm.FileReport{Name: "a.sqlite", MaxFrame: 0, FrameRate: 30}
	require.NoError(t, w.WriteFile(fr))
	require.NoError(t, w.Close())

	got, err := fsys.ReadFile("report.txt")
	require.NoError(t, err)
	want := "Processing SQL file: a.sqlite\n" +
		"No start timestamp found in FRAME table\n" +
		"Max Frame: 0\n" +
		"Total Duration of Experiment: 0h 0m 0s (0 frames)\n" +
		"All files processed.\n"
	assert.Equal(t, want, string(got))
}

func TestFormatStartTime(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{1700000000000, "2023-11-14 22:13:20+00:00"},
		{1700000000123, "2023-11-14 22:13:20.123000+00:00"},
		{1700000000033, "2023-11-14 22:13:20.033000+00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatStartTime(time.UnixMilli(tt.ms)))
	}
	local := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "2024-01-02 02:04:05+00:00", FormatStartTime(local))
}

type brokenFS struct{ *fsutil.MemoryFileSystem }

func (brokenFS) Create(string) (io.WriteCloser, error) { return nil, errors.New("read-only") }

func TestCreateError(t *testing.T) {
	_, err := Create(brokenFS{fsutil.NewMemoryFileSystem()}, "r.txt", nil)
	assert.ErrorContains(t, err, "read-only")
}
