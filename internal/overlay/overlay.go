// Package overlay produces the on-screen telemetry as plain text. The
// windowing collaborator owns rasterization; this package only decides what
// the overlay says.
package overlay

import (
	"fmt"
	"strings"
)

// lowWaterFraction is the buffered-run fraction below which the buffer bar
// reports unhealthy (rendered red by the window layer).
const lowWaterFraction = 0.25

// Snapshot is one overlay refresh worth of telemetry.
type Snapshot struct {
	CurrentFrame int
	TotalFrames  int
	FPS          float64

	BufferedRun int
	AheadTarget int

	CacheResident int
	CacheCapacity int

	Dropped    uint64
	HeldServes uint64

	FramesDecoded uint64
	Seeks         uint64
	DecoderCursor int

	OffsetMs     float64
	Rolling      bool
	ExternalSync bool
}

// Lines renders the overlay text block, one string per display row.
func (s Snapshot) Lines() []string {
	transport := "STOPPED"
	if s.Rolling {
		transport = "ROLLING"
	}
	sync := "internal timer"
	if s.ExternalSync {
		sync = "external clock"
	}

	return []string{
		fmt.Sprintf("frame %d/%d @ %.3f fps", s.CurrentFrame, s.TotalFrames, s.FPS),
		fmt.Sprintf("transport %s  sync %s  offset %+.1f ms", transport, sync, s.OffsetMs),
		fmt.Sprintf("cache %d/%d  buffered %d/%d", s.CacheResident, s.CacheCapacity, s.BufferedRun, s.AheadTarget),
		fmt.Sprintf("decoder cursor %d  decoded %d  seeks %d", s.DecoderCursor, s.FramesDecoded, s.Seeks),
		fmt.Sprintf("dropped %d  held %d", s.Dropped, s.HeldServes),
	}
}

// BufferBar renders a fixed-width bar of the buffered run ahead of the
// cursor. Healthy is false below the low-water mark; the window layer
// renders an unhealthy bar red.
func (s Snapshot) BufferBar(width int) (bar string, healthy bool) {
	if width < 1 {
		return "", false
	}
	if s.AheadTarget < 1 {
		return strings.Repeat("-", width), false
	}

	fill := s.BufferedRun * width / s.AheadTarget
	if fill > width {
		fill = width
	}

	var b strings.Builder
	b.WriteString(strings.Repeat("#", fill))
	b.WriteString(strings.Repeat("-", width-fill))

	healthy = float64(s.BufferedRun) >= float64(s.AheadTarget)*lowWaterFraction
	return b.String(), healthy
}
