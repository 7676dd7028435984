package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/lmt.report/internal/motion"
	"github.com/banshee-data/lmt.report/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/lmt.defaults.json"

// DefaultReportPath is where the confirm pass writes its report unless told
// otherwise. Downstream scripts expect this name.
const DefaultReportPath = "confirmed_detection_intervals.txt"

// Event names written and read by the reconstruct and confirm passes.
const (
	DefaultDetectionEvent = "Detection"
	DefaultMatchEvent     = "RFID MATCH"
	DefaultMismatchEvent  = "RFID MISMATCH"
)

// TuningConfig is the JSON form of a run's settings. Every field is optional;
// the Get* methods fall back to the built-in defaults so partial files are
// safe. Frame counts are absolute frames at FrameRate.
type TuningConfig struct {
	FrameRate *int `json:"frame_rate,omitempty"`

	// Motion filter
	MinSpeed           *float64 `json:"min_speed,omitempty"`
	MaxSpeed           *float64 `json:"max_speed,omitempty"`
	StationaryFrames   *int     `json:"stationary_frames,omitempty"`
	StationaryDistance *float64 `json:"stationary_distance,omitempty"`

	// Frame ranges
	WindowFrames      *int `json:"window_frames,omitempty"`
	TMin              *int `json:"tmin,omitempty"`
	TMax              *int `json:"tmax,omitempty"`
	MatchMaxFrames    *int `json:"match_max_frames,omitempty"`
	MismatchMaxFrames *int `json:"mismatch_max_frames,omitempty"`

	// Event names
	DetectionEvent *string `json:"detection_event,omitempty"`
	MatchEvent     *string `json:"match_event,omitempty"`
	MismatchEvent  *string `json:"mismatch_event,omitempty"`

	ReportPath *string `json:"report_path,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. It panics when the file cannot be loaded and is
// intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge overrides c with every field set in o.
func (c *TuningConfig) Merge(o *TuningConfig) {
	if o == nil {
		return
	}
	mergePtr(&c.FrameRate, o.FrameRate)
	mergePtr(&c.MinSpeed, o.MinSpeed)
	mergePtr(&c.MaxSpeed, o.MaxSpeed)
	mergePtr(&c.StationaryFrames, o.StationaryFrames)
	mergePtr(&c.StationaryDistance, o.StationaryDistance)
	mergePtr(&c.WindowFrames, o.WindowFrames)
	mergePtr(&c.TMin, o.TMin)
	mergePtr(&c.TMax, o.TMax)
	mergePtr(&c.MatchMaxFrames, o.MatchMaxFrames)
	mergePtr(&c.MismatchMaxFrames, o.MismatchMaxFrames)
	mergePtr(&c.DetectionEvent, o.DetectionEvent)
	mergePtr(&c.MatchEvent, o.MatchEvent)
	mergePtr(&c.MismatchEvent, o.MismatchEvent)
	mergePtr(&c.ReportPath, o.ReportPath)
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// Validate checks the values that are set. Cross-field rules that involve
// defaults are checked by Resolve.
func (c *TuningConfig) Validate() error {
	if c.FrameRate != nil && *c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %d", *c.FrameRate)
	}
	if c.MinSpeed != nil && *c.MinSpeed < 0 {
		return fmt.Errorf("min_speed must be non-negative, got %f", *c.MinSpeed)
	}
	if c.MaxSpeed != nil && *c.MaxSpeed <= 0 {
		return fmt.Errorf("max_speed must be positive, got %f", *c.MaxSpeed)
	}
	if c.StationaryFrames != nil && *c.StationaryFrames < 0 {
		return fmt.Errorf("stationary_frames must be non-negative, got %d", *c.StationaryFrames)
	}
	if c.StationaryDistance != nil && *c.StationaryDistance < 0 {
		return fmt.Errorf("stationary_distance must be non-negative, got %f", *c.StationaryDistance)
	}
	if c.WindowFrames != nil && *c.WindowFrames <= 0 {
		return fmt.Errorf("window_frames must be positive, got %d", *c.WindowFrames)
	}
	if c.TMin != nil && *c.TMin < 0 {
		return fmt.Errorf("tmin must be non-negative, got %d", *c.TMin)
	}
	for name, s := range map[string]*string{
		"detection_event": c.DetectionEvent,
		"match_event":     c.MatchEvent,
		"mismatch_event":  c.MismatchEvent,
		"report_path":     c.ReportPath,
	} {
		if s != nil && *s == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	return nil
}

// GetFrameRate returns the frame_rate value or the LMT camera rate.
func (c *TuningConfig) GetFrameRate() units.FrameRate {
	if c.FrameRate == nil {
		return units.DefaultFrameRate
	}
	return units.FrameRate(*c.FrameRate)
}

// GetMinSpeed returns the min_speed value or the default.
func (c *TuningConfig) GetMinSpeed() float64 {
	if c.MinSpeed == nil {
		return 0
	}
	return *c.MinSpeed
}

// GetMaxSpeed returns the max_speed value or the default.
func (c *TuningConfig) GetMaxSpeed() float64 {
	if c.MaxSpeed == nil {
		return 100
	}
	return *c.MaxSpeed
}

// GetStationaryFrames returns the stationary_frames value or one minute of
// frames.
func (c *TuningConfig) GetStationaryFrames() int {
	if c.StationaryFrames == nil {
		return c.GetFrameRate().OneMinute()
	}
	return *c.StationaryFrames
}

// GetStationaryDistance returns the stationary_distance value or the default.
func (c *TuningConfig) GetStationaryDistance() float64 {
	if c.StationaryDistance == nil {
		return 1
	}
	return *c.StationaryDistance
}

// GetWindowFrames returns the window_frames value or eight days of frames.
func (c *TuningConfig) GetWindowFrames() int {
	if c.WindowFrames == nil {
		return c.GetFrameRate().Days(8)
	}
	return *c.WindowFrames
}

// GetTMin returns the tmin value or frame 0.
func (c *TuningConfig) GetTMin() int {
	if c.TMin == nil {
		return 0
	}
	return *c.TMin
}

// GetTMax returns the tmax value or thirty days of frames.
func (c *TuningConfig) GetTMax() int {
	if c.TMax == nil {
		return c.GetFrameRate().Days(30)
	}
	return *c.TMax
}

// GetMatchMaxFrames returns the match_max_frames value or thirty days.
func (c *TuningConfig) GetMatchMaxFrames() int {
	if c.MatchMaxFrames == nil {
		return c.GetFrameRate().Days(30)
	}
	return *c.MatchMaxFrames
}

// GetMismatchMaxFrames returns the mismatch_max_frames value or thirty days.
func (c *TuningConfig) GetMismatchMaxFrames() int {
	if c.MismatchMaxFrames == nil {
		return c.GetFrameRate().Days(30)
	}
	return *c.MismatchMaxFrames
}

// GetDetectionEvent returns the detection_event value or the default.
func (c *TuningConfig) GetDetectionEvent() string {
	if c.DetectionEvent == nil {
		return DefaultDetectionEvent
	}
	return *c.DetectionEvent
}

// GetMatchEvent returns the match_event value or the default.
func (c *TuningConfig) GetMatchEvent() string {
	if c.MatchEvent == nil {
		return DefaultMatchEvent
	}
	return *c.MatchEvent
}

// GetMismatchEvent returns the mismatch_event value or the default.
func (c *TuningConfig) GetMismatchEvent() string {
	if c.MismatchEvent == nil {
		return DefaultMismatchEvent
	}
	return *c.MismatchEvent
}

// GetReportPath returns the report_path value or the default.
func (c *TuningConfig) GetReportPath() string {
	if c.ReportPath == nil {
		return DefaultReportPath
	}
	return *c.ReportPath
}

// Resolve validates c and returns the RunConfig handed to every processing
// call.
func (c *TuningConfig) Resolve() (RunConfig, error) {
	if err := c.Validate(); err != nil {
		return RunConfig{}, err
	}
	rc := RunConfig{
		FrameRate:          c.GetFrameRate(),
		MinSpeed:           c.GetMinSpeed(),
		MaxSpeed:           c.GetMaxSpeed(),
		StationaryFrames:   c.GetStationaryFrames(),
		StationaryDistance: c.GetStationaryDistance(),
		WindowFrames:       c.GetWindowFrames(),
		TMin:               c.GetTMin(),
		TMax:               c.GetTMax(),
		MatchMaxFrames:     c.GetMatchMaxFrames(),
		MismatchMaxFrames:  c.GetMismatchMaxFrames(),
		DetectionEvent:     c.GetDetectionEvent(),
		MatchEvent:         c.GetMatchEvent(),
		MismatchEvent:      c.GetMismatchEvent(),
		ReportPath:         c.GetReportPath(),
	}
	if rc.TMax <= rc.TMin {
		return RunConfig{}, fmt.Errorf("tmax (%d) must exceed tmin (%d)", rc.TMax, rc.TMin)
	}
	if err := rc.MotionParams().Validate(); err != nil {
		return RunConfig{}, fmt.Errorf("invalid motion filter: %w", err)
	}
	return rc, nil
}

// RunConfig is the resolved, read-only configuration of one batch. It is a
// plain value: copies cannot affect the caller.
type RunConfig struct {
	FrameRate          units.FrameRate
	MinSpeed           float64
	MaxSpeed           float64
	StationaryFrames   int
	StationaryDistance float64
	WindowFrames       int
	TMin               int
	TMax               int
	MatchMaxFrames     int
	MismatchMaxFrames  int
	DetectionEvent     string
	MatchEvent         string
	MismatchEvent      string
	ReportPath         string
}

// DefaultRunConfig resolves the built-in defaults.
func DefaultRunConfig() RunConfig {
	rc, err := EmptyTuningConfig().Resolve()
	if err != nil {
		panic(fmt.Sprintf("built-in defaults are invalid: %v", err))
	}
	return rc
}

// MotionParams returns the motion filter settings.
func (rc RunConfig) MotionParams() motion.Params {
	return motion.Params{
		FrameRate:          rc.FrameRate,
		MinSpeed:           rc.MinSpeed,
		MaxSpeed:           rc.MaxSpeed,
		StationaryFrames:   rc.StationaryFrames,
		StationaryDistance: rc.StationaryDistance,
	}
}
