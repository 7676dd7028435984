// Package report writes the confirmed detection intervals text report.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/lmt.report/internal/confirm"
	"github.com/banshee-data/lmt.report/internal/fsutil"
)

// Rule separates animals and failed files.
var Rule = strings.Repeat("=", 50)

// Writer renders file reports line by line into the report file, echoing
// each line to an optional second writer.
type Writer struct {
	file io.WriteCloser
	buf  *bufio.Writer
	echo io.Writer
	err  error
}

// Create truncates path on fsys and returns a Writer for it. A nil echo
// writes the report file only.
func Create(fsys fsutil.FileSystem, path string, echo io.Writer) (*Writer, error) {
	f, err := fsys.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report %s: %w", path, err)
	}
	return &Writer{file: f, buf: bufio.NewWriter(f), echo: echo}, nil
}

func (w *Writer) line(format string, args ...any) {
	if w.err != nil {
		return
	}
	s := fmt.Sprintf(format, args...) + "\n"
	if _, err := w.buf.WriteString(s); err != nil {
		w.err = err
		return
	}
	if w.echo != nil {
		io.WriteString(w.echo, s)
	}
}

// WriteFile writes the block of one database.
func (w *Writer) WriteFile(fr *confirm.FileReport) error {
	w.line("Processing SQL file: %s", fr.Name)
	if fr.HasStart {
		w.line("Start Time of Experiment: %s", FormatStartTime(fr.Start))
	} else {
		w.line("No start timestamp found in FRAME table")
	}
	w.line("Max Frame: %d", fr.MaxFrame)
	w.line("Total Duration of Experiment: %s (%d frames)", fr.FrameRate.FormatHMS(fr.MaxFrame), fr.MaxFrame)

	for _, a := range fr.Animals {
		w.line("Animal %d (RFID: %s) - Detection total duration: %d frames", a.Animal.ID, a.Animal.RFID, a.DetectionTotal)
		if len(a.Confirmed) == 0 {
			w.line("No confirmed detection events found.")
		} else {
			w.line("Confirmed Detection Intervals:")
			for _, c := range a.Confirmed {
				w.line("%d %d duration: %d (Confirmed by: %s)", c.Start, c.End, c.Duration(), c.Source)
			}
			w.line("Total confirmed detection duration for animal %d: %d frames", a.Animal.ID, a.ConfirmedTotal)
		}
		w.line("%s", Rule)
	}
	return w.err
}

// WriteFailure writes the block of a database whose confirm pass failed.
func (w *Writer) WriteFailure(name string, err error) error {
	w.line("Processing SQL file: %s", name)
	w.line("Error processing SQL file: %s: %v", name, err)
	w.line("%s", Rule)
	return w.err
}

// Close writes the closing line and closes the report file.
func (w *Writer) Close() error {
	w.line("All files processed.")
	if w.err == nil {
		w.err = w.buf.Flush()
	}
	if err := w.file.Close(); err != nil && w.err == nil {
		w.err = err
	}
	return w.err
}

// FormatStartTime renders t in UTC as "YYYY-MM-DD HH:MM:SS+00:00", with six
// fractional digits when t has sub-second microseconds.
func FormatStartTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/1000 != 0 {
		return t.Format("2006-01-02 15:04:05.000000-07:00")
	}
	return t.Format("2006-01-02 15:04:05-07:00")
}
