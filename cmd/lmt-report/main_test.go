package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lmt.report/internal/monitoring"
	"github.com/banshee-data/lmt.report/internal/testutil"
)

func quietLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsageAndVersion(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage: lmt-report <command>")

	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout, "lmt-report version "))

	code, _, stderr = runCLI(t, "bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: bogus")
}

func TestInvalidFlags(t *testing.T) {
	quietLogs(t)
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"reconstruct", "-nope", "x.sqlite"}},
		{"negative speed", []string{"reconstruct", "-max-speed", "-1", "x.sqlite"}},
		{"tmax before tmin", []string{"confirm", "-tmin", "100", "-tmax", "50", "x.sqlite"}},
		{"missing config", []string{"confirm", "-config", "nope.json", "x.sqlite"}},
		{"no files", []string{"reconstruct"}},
		{"missing file", []string{"confirm", filepath.Join(t.TempDir(), "none.sqlite")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, 2, code)
		})
	}
}

func TestReconstructThenConfirm(t *testing.T) {
	quietLogs(t)
	f := testutil.NewLMTFixture(t, "exp.sqlite").
		AddAnimal(1, "A1").
		AddFrames(0, 299, 1700000000000).
		AddDetections(1, testutil.Walk(0, 200, 0)).
		AddEvent("RFID MISMATCH", 1, 50, 79)
	dir := filepath.Dir(f.Path)

	code, stdout, stderr := runCLI(t, "reconstruct", "-window", "1000", "-verify-windowing", dir)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Processing file "+f.Path)
	assert.Contains(t, stdout, "Windowing check "+f.Path+": identical")
	assert.Contains(t, stdout, "*** ALL JOBS DONE ***")

	out := filepath.Join(t.TempDir(), "report.txt")
	code, stdout, stderr = runCLI(t, "confirm", "-quiet", "-out", out, f.Path)
	require.Equal(t, 0, code, stderr)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	want := strings.Join([]string{
		"Processing SQL file: exp.sqlite",
		"Start Time of Experiment: 2023-11-14 22:13:20.033000+00:00",
		"Max Frame: 299",
		"Total Duration of Experiment: 0h 0m 9s (299 frames)",
		"Animal 1 (RFID: A1) - Detection total duration: 200 frames",
		"Confirmed Detection Intervals:",
		"80 199 duration: 120 (Confirmed by: MISMATCH)",
		"Total confirmed detection duration for animal 1: 120 frames",
		strings.Repeat("=", 50),
		"All files processed.",
		"",
	}, "\n")
	assert.Equal(t, want, string(data))
}

func TestConfirmEchoesToStdout(t *testing.T) {
	quietLogs(t)
	f := testutil.NewLMTFixture(t, "echo.sqlite").
		AddAnimal(1, "A1").
		AddFrames(0, 9, 0)

	out := filepath.Join(t.TempDir(), "report.txt")
	code, stdout, _ := runCLI(t, "confirm", "-out", out, f.Path)
	require.Equal(t, 0, code)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, string(data), stdout)
	assert.Contains(t, stdout, "No confirmed detection events found.")
}

func TestMigrate(t *testing.T) {
	quietLogs(t)
	f := testutil.NewLMTFixture(t, "m.sqlite")

	code, stdout, stderr := runCLI(t, "migrate", "up", f.Path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "version 3 (dirty: false)")

	code, stdout, _ = runCLI(t, "migrate", "status", f.Path)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "version 3 of 3 (dirty: false, pending: 0)")

	code, stdout, _ = runCLI(t, "migrate", "force", "2", f.Path)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "version 2 (dirty: false)")

	code, _, _ = runCLI(t, "migrate", "force")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "migrate", "sideways", f.Path)
	assert.Equal(t, 1, code)

	code, stdout, _ = runCLI(t, "migrate", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Usage: lmt-report migrate")
}

func TestServeArguments(t *testing.T) {
	code, _, stderr := runCLI(t, "serve")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "exactly one database file")
}
