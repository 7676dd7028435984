package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetFrameRate() != 30 {
		t.Errorf("GetFrameRate() = %d, want 30", cfg.GetFrameRate())
	}
	if cfg.GetStationaryFrames() != 1800 {
		t.Errorf("GetStationaryFrames() = %d, want 1800", cfg.GetStationaryFrames())
	}
	if cfg.GetWindowFrames() != 8*2592000 {
		t.Errorf("GetWindowFrames() = %d, want %d", cfg.GetWindowFrames(), 8*2592000)
	}
	if cfg.GetTMax() != 30*2592000 {
		t.Errorf("GetTMax() = %d, want %d", cfg.GetTMax(), 30*2592000)
	}
	if cfg.GetMaxSpeed() != 100 || cfg.GetMinSpeed() != 0 {
		t.Errorf("speed bounds = [%f, %f], want [0, 100]", cfg.GetMinSpeed(), cfg.GetMaxSpeed())
	}
	if cfg.GetDetectionEvent() != "Detection" {
		t.Errorf("GetDetectionEvent() = %q", cfg.GetDetectionEvent())
	}
	if cfg.GetMatchEvent() != "RFID MATCH" || cfg.GetMismatchEvent() != "RFID MISMATCH" {
		t.Errorf("RFID event names = %q, %q", cfg.GetMatchEvent(), cfg.GetMismatchEvent())
	}
	if cfg.GetReportPath() != "confirmed_detection_intervals.txt" {
		t.Errorf("GetReportPath() = %q", cfg.GetReportPath())
	}
}

func TestFrameCountsFollowFrameRate(t *testing.T) {
	fps := 25
	cfg := &TuningConfig{FrameRate: &fps}

	if got := cfg.GetStationaryFrames(); got != 1500 {
		t.Errorf("GetStationaryFrames() = %d, want 1500", got)
	}
	if got := cfg.GetTMax(); got != 30*24*3600*25 {
		t.Errorf("GetTMax() = %d, want %d", got, 30*24*3600*25)
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	fromFile, err := MustLoadDefaultConfig().Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if builtin := DefaultRunConfig(); fromFile != builtin {
		t.Errorf("defaults file differs from built-ins:\nfile:    %+v\nbuiltin: %+v", fromFile, builtin)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	path := writeConfig(t, "test_config.json", `{
  "max_speed": 50,
  "stationary_frames": 900,
  "window_frames": 86400,
  "tmax": 172800,
  "detection_event": "Detection filtered"
}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetMaxSpeed() != 50 {
		t.Errorf("GetMaxSpeed() = %f, want 50", cfg.GetMaxSpeed())
	}
	if cfg.GetStationaryFrames() != 900 {
		t.Errorf("GetStationaryFrames() = %d, want 900", cfg.GetStationaryFrames())
	}
	if cfg.GetDetectionEvent() != "Detection filtered" {
		t.Errorf("GetDetectionEvent() = %q", cfg.GetDetectionEvent())
	}
	// unset fields keep their defaults
	if cfg.GetStationaryDistance() != 1 {
		t.Errorf("GetStationaryDistance() = %f, want 1", cfg.GetStationaryDistance())
	}
}

func TestLoadTuningConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "config.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"max_speed": `, "failed to parse"},
		{"negative min speed", "neg.json", `{"min_speed": -1}`, "min_speed"},
		{"zero window", "win.json", `{"window_frames": 0}`, "window_frames"},
		{"empty event name", "name.json", `{"match_event": ""}`, "match_event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadTuningConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("too large", func(t *testing.T) {
		path := writeConfig(t, "big.json", `{"report_path": "`+strings.Repeat("x", 1024*1024)+`"}`)
		_, err := LoadTuningConfig(path)
		if err == nil || !strings.Contains(err.Error(), "too large") {
			t.Errorf("error = %v, want too large", err)
		}
	})
}

func TestMerge(t *testing.T) {
	base := EmptyTuningConfig()
	speed := 80.0
	base.MaxSpeed = &speed

	window := 1000
	name := "other.txt"
	base.Merge(&TuningConfig{WindowFrames: &window, ReportPath: &name})
	base.Merge(nil)

	if base.GetMaxSpeed() != 80 {
		t.Errorf("unset override replaced max_speed: %f", base.GetMaxSpeed())
	}
	if base.GetWindowFrames() != 1000 {
		t.Errorf("GetWindowFrames() = %d, want 1000", base.GetWindowFrames())
	}
	if base.GetReportPath() != "other.txt" {
		t.Errorf("GetReportPath() = %q", base.GetReportPath())
	}

	// merged values are copies
	window = 5
	if base.GetWindowFrames() != 1000 {
		t.Errorf("Merge aliased the override: %d", base.GetWindowFrames())
	}
}

func TestResolve(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		rc, err := EmptyTuningConfig().Resolve()
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		p := rc.MotionParams()
		if p.StationaryFrames != 1800 || p.MaxSpeed != 100 || p.FrameRate != 30 {
			t.Errorf("MotionParams() = %+v", p)
		}
	})

	t.Run("tmax not after tmin", func(t *testing.T) {
		tmin, tmax := 100, 100
		_, err := (&TuningConfig{TMin: &tmin, TMax: &tmax}).Resolve()
		if err == nil || !strings.Contains(err.Error(), "tmax") {
			t.Errorf("error = %v, want tmax error", err)
		}
	})

	t.Run("speed bounds inverted", func(t *testing.T) {
		lo, hi := 20.0, 10.0
		_, err := (&TuningConfig{MinSpeed: &lo, MaxSpeed: &hi}).Resolve()
		if err == nil || !strings.Contains(err.Error(), "motion filter") {
			t.Errorf("error = %v, want motion filter error", err)
		}
	})
}
