package media

import (
	"fmt"
	"math"
)

// Metadata describes a loaded clip. Immutable after load.
type Metadata struct {
	Width           int
	Height          int
	FPS             float64
	DurationSeconds float64

	// TotalFrames is round(DurationSeconds * FPS), computed once at load.
	// All frame arithmetic is performed modulo this value.
	TotalFrames int
}

// NewMetadata validates clip properties and derives TotalFrames.
func NewMetadata(width, height int, fps, durationSeconds float64) (Metadata, error) {
	if width <= 0 || height <= 0 {
		return Metadata{}, fmt.Errorf("media: invalid dimensions %dx%d", width, height)
	}
	if fps <= 0 {
		return Metadata{}, fmt.Errorf("media: invalid fps %.3f", fps)
	}
	if durationSeconds <= 0 {
		return Metadata{}, fmt.Errorf("media: invalid duration %.3fs", durationSeconds)
	}

	total := int(math.Round(durationSeconds * fps))
	if total < 1 {
		total = 1
	}

	return Metadata{
		Width:           width,
		Height:          height,
		FPS:             fps,
		DurationSeconds: durationSeconds,
		TotalFrames:     total,
	}, nil
}

// FrameDurationSeconds returns the nominal duration of one frame.
func (m Metadata) FrameDurationSeconds() float64 {
	return 1.0 / m.FPS
}

// Resolution returns a human-readable "WxH" string.
func (m Metadata) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}
