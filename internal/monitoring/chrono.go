package monitoring

import (
	"time"

	"github.com/banshee-data/lmt.report/internal/timeutil"
)

// Chronometer measures one named step of a batch (a file, a window, a flush)
// and reports its wall time through Logf.
type Chronometer struct {
	name  string
	clock timeutil.Clock
	start time.Time
}

// StartChronometer starts timing name. A nil clock uses the real clock.
func StartChronometer(name string, clock timeutil.Clock) *Chronometer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Chronometer{name: name, clock: clock, start: clock.Now()}
}

// Elapsed returns the time since the chronometer started.
func (c *Chronometer) Elapsed() time.Duration {
	return c.clock.Since(c.start)
}

// Log reports the elapsed time in seconds and returns it.
func (c *Chronometer) Log() time.Duration {
	d := c.Elapsed()
	Logf("[%s] %.3f s", c.name, d.Seconds())
	return d
}
