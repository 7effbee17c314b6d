// Package config loads player settings from an optional TOML file and the
// command line. CLI flags win over the file; the file wins over defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// configName is the settings file looked up at startup.
const configName = "loopdeck.toml"

// Config holds every runtime setting of the player.
type Config struct {
	// VideoPath is the clip to play (required, positional on the CLI).
	VideoPath string `toml:"video_path"`
	// OffsetMs is the sync offset in milliseconds. Positive delays the
	// video relative to audio.
	OffsetMs float64 `toml:"offset_ms"`
	// Fullscreen selects borderless fullscreen on the primary display.
	Fullscreen bool `toml:"fullscreen"`
	// ScaleMode is letterbox, stretch or crop.
	ScaleMode string `toml:"scale_mode"`
	// WindowTitle is the window caption.
	WindowTitle string `toml:"window_title"`
	// ClockPort is the UDP port the transport bridge publishes on.
	ClockPort int `toml:"clock_port"`
	// RefreshHz paces the presenter when the window layer provides no
	// vsync callback.
	RefreshHz float64 `toml:"refresh_hz"`
	// Verbose raises logging to debug.
	Verbose bool `toml:"verbose"`

	// Cache and decoder tuning.
	MaxCachedFrames int `toml:"max_cached_frames"`
	PreloadFrames   int `toml:"preload_frames"`
	AheadPlaying    int `toml:"decode_ahead_playing"`
	AheadPaused     int `toml:"decode_ahead_paused"`
	SeekThreshold   int `toml:"seek_threshold"`
}

// Default returns the standard settings.
func Default() Config {
	return Config{
		ScaleMode:       "letterbox",
		WindowTitle:     "loopdeck",
		ClockPort:       8080,
		RefreshHz:       60.0,
		MaxCachedFrames: 300,
		PreloadFrames:   150,
		AheadPlaying:    150,
		AheadPaused:     20,
		SeekThreshold:   50,
	}
}

// searchPaths returns config file locations in priority order, mirroring
// the deployment layout: system dir, parent dir, working dir.
func searchPaths() []string {
	return []string{
		"/var/lib/loopdeck/" + configName,
		"../" + configName,
		configName,
	}
}

// Load reads the first config file found on the search path, applying it
// over the defaults. A missing file is not an error.
func Load() (Config, error) {
	cfg := Default()

	for _, path := range searchPaths() {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
		return cfg, nil
	}
	return cfg, nil
}

// LoadFile reads one specific config file over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints that the CLI and file cannot
// express individually.
func (c Config) Validate() error {
	if c.VideoPath == "" {
		return fmt.Errorf("config: video file is required")
	}
	if c.ScaleMode != "letterbox" && c.ScaleMode != "stretch" && c.ScaleMode != "crop" {
		return fmt.Errorf("config: invalid scale mode %q (letterbox|stretch|crop)", c.ScaleMode)
	}
	if c.MaxCachedFrames < 1 || c.PreloadFrames < 1 || c.AheadPlaying < 1 ||
		c.AheadPaused < 1 || c.SeekThreshold < 1 {
		return fmt.Errorf("config: cache/decoder tuning values must be positive")
	}
	if c.RefreshHz <= 0 {
		return fmt.Errorf("config: invalid refresh rate %.1f", c.RefreshHz)
	}
	if c.ClockPort < 1 || c.ClockPort > 65535 {
		return fmt.Errorf("config: invalid clock port %d", c.ClockPort)
	}
	return nil
}
