package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidatesWithVideo(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("defaults without a video path should not validate")
	}
	cfg.VideoPath = "clip.mp4"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestParseArgsFull(t *testing.T) {
	cfg := Default()
	err := ParseArgs(&cfg, []string{"clip.mp4", "--offset", "-12.5", "-f", "--scale", "crop", "-v"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}

	if cfg.VideoPath != "clip.mp4" {
		t.Errorf("VideoPath = %q", cfg.VideoPath)
	}
	if math.Abs(cfg.OffsetMs-(-12.5)) > 1e-9 {
		t.Errorf("OffsetMs = %f, want -12.5", cfg.OffsetMs)
	}
	if !cfg.Fullscreen || !cfg.Verbose {
		t.Error("boolean flags not applied")
	}
	if cfg.ScaleMode != "crop" {
		t.Errorf("ScaleMode = %q, want crop", cfg.ScaleMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown option", []string{"clip.mp4", "--frobnicate"}},
		{"missing offset value", []string{"clip.mp4", "-o"}},
		{"bad offset value", []string{"clip.mp4", "-o", "fast"}},
		{"two positionals", []string{"a.mp4", "b.mp4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := ParseArgs(&cfg, tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseArgsHelp(t *testing.T) {
	cfg := Default()
	err := ParseArgs(&cfg, []string{"-h"})
	if !errors.Is(err, ErrHelpRequested) {
		t.Errorf("expected ErrHelpRequested, got %v", err)
	}
}

func TestInvalidScaleModeRejected(t *testing.T) {
	cfg := Default()
	if err := ParseArgs(&cfg, []string{"clip.mp4", "-s", "pillarbox"}); err != nil {
		t.Fatalf("ParseArgs should defer scale validation, got %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to reject unknown scale mode")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loopdeck.toml")
	body := `
video_path = "/media/loop.mp4"
offset_ms = 5.0
scale_mode = "stretch"
clock_port = 9000
max_cached_frames = 100
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.VideoPath != "/media/loop.mp4" || cfg.ScaleMode != "stretch" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.ClockPort != 9000 || cfg.MaxCachedFrames != 100 {
		t.Errorf("numeric file values not applied: %+v", cfg)
	}
	// Untouched fields keep their defaults.
	if cfg.PreloadFrames != 150 || cfg.RefreshHz != 60.0 {
		t.Errorf("defaults lost during file load: %+v", cfg)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile("/nonexistent/loopdeck.toml"); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "loopdeck.toml")
	os.WriteFile(path, []byte("video_path = [broken"), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed TOML")
	}
}
