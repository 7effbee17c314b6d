package present

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/visiona/loopdeck/internal/clock"
)

// Key identifies an interactive key the windowing collaborator forwards.
// The collaborator owns real keycodes; these are the only ones the core
// reacts to.
type Key string

const (
	KeyEscape Key = "escape"
	KeyQ      Key = "q"
	KeyI      Key = "i"
	KeyF      Key = "f"
	KeyS      Key = "s"
	KeyC      Key = "c"
	KeyZero   Key = "0"
	KeyUp     Key = "up"
	KeyDown   Key = "down"
	KeyLeft   Key = "left"
	KeyRight  Key = "right"
)

const (
	offsetStepMs      = 1.0
	offsetStepLargeMs = 10.0
)

// Controls holds the user-adjustable presentation state and routes key
// events onto it. The scale mode, fullscreen and overlay flags are atomics
// so the window collaborator can poll them from its own thread.
type Controls struct {
	adapter *clock.Adapter

	videoPath string
	out       io.Writer

	scaleMode  atomic.Int32
	fullscreen atomic.Bool
	overlayOn  atomic.Bool
}

// NewControls wires controls over the clock adapter. Reproduce-command
// output ("C" key) goes to out.
func NewControls(adapter *clock.Adapter, videoPath string, fullscreen bool, mode ScaleMode, out io.Writer) *Controls {
	c := &Controls{
		adapter:   adapter,
		videoPath: videoPath,
		out:       out,
	}
	c.scaleMode.Store(int32(mode))
	c.fullscreen.Store(fullscreen)
	return c
}

// HandleKey applies a key event. Returns false when the event requests
// quitting.
func (c *Controls) HandleKey(key Key, shift bool) bool {
	switch key {
	case KeyEscape, KeyQ:
		return false

	case KeyI:
		on := !c.overlayOn.Load()
		c.overlayOn.Store(on)
		slog.Info("present: overlay toggled", "enabled", on)

	case KeyF:
		on := !c.fullscreen.Load()
		c.fullscreen.Store(on)
		slog.Info("present: fullscreen toggled", "enabled", on)

	case KeyUp, KeyRight:
		step := offsetStepMs
		if shift {
			step = offsetStepLargeMs
		}
		ms := c.adapter.AdjustOffsetMs(step)
		slog.Info("present: sync offset adjusted", "offset_ms", fmt.Sprintf("%.1f", ms))

	case KeyDown, KeyLeft:
		step := offsetStepMs
		if shift {
			step = offsetStepLargeMs
		}
		ms := c.adapter.AdjustOffsetMs(-step)
		slog.Info("present: sync offset adjusted", "offset_ms", fmt.Sprintf("%.1f", ms))

	case KeyZero:
		c.adapter.SetOffsetSeconds(0)
		slog.Info("present: sync offset reset")

	case KeyS:
		next := ScaleMode(c.scaleMode.Load()).Next()
		c.scaleMode.Store(int32(next))
		slog.Info("present: scale mode cycled", "mode", next.String())

	case KeyC:
		fmt.Fprintln(c.out, c.ReproduceCommand())
	}

	return true
}

// ReproduceCommand renders a command line that restores the current
// settings.
func (c *Controls) ReproduceCommand() string {
	cmd := "loopdeck " + c.videoPath

	if ms := c.adapter.OffsetSeconds() * 1000.0; ms != 0 {
		cmd += fmt.Sprintf(" --offset %.1f", ms)
	}
	if c.fullscreen.Load() {
		cmd += " --fullscreen"
	}
	if mode := c.ScaleMode(); mode != ScaleLetterbox {
		cmd += " --scale " + mode.String()
	}
	return cmd
}

// ScaleMode returns the active scale mode.
func (c *Controls) ScaleMode() ScaleMode {
	return ScaleMode(c.scaleMode.Load())
}

// Fullscreen returns the fullscreen flag.
func (c *Controls) Fullscreen() bool {
	return c.fullscreen.Load()
}

// OverlayEnabled returns the overlay flag.
func (c *Controls) OverlayEnabled() bool {
	return c.overlayOn.Load()
}
