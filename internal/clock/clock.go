// Package clock adapts the external audio transport into the video
// position the presenter syncs to.
//
// The transport is an external, shared, monotonically increasing sample
// counter plus a rolling/stopped flag. The video slaves to it; nothing here
// ever writes to the transport.
package clock

import (
	"math"
	"sync/atomic"

	"github.com/visiona/loopdeck/internal/timeline"
)

// Transport is the only interface consumed from the external clock source.
//
// Implementations must make FrameCounter and IsRolling safe to call from
// the presenter thread at vsync rate. SampleRate is read once at startup
// and assumed stable.
type Transport interface {
	FrameCounter() uint64
	IsRolling() bool
	SampleRate() uint32
	Close() error
}

// Adapter derives the video position from the transport and the
// user-configured sync offset. A positive offset delays the video relative
// to the audio.
//
// The offset is adjustable at runtime (keyboard nudging); it is stored as
// atomic float bits so the presenter can read it without locking.
type Adapter struct {
	transport  Transport
	sampleRate float64
	offsetBits atomic.Uint64
}

// NewAdapter wraps a transport, capturing its sample rate once.
func NewAdapter(transport Transport, offsetSeconds float64) *Adapter {
	a := &Adapter{
		transport:  transport,
		sampleRate: float64(transport.SampleRate()),
	}
	a.SetOffsetSeconds(offsetSeconds)
	return a
}

// AudioSeconds returns the transport position in seconds.
func (a *Adapter) AudioSeconds() float64 {
	return float64(a.transport.FrameCounter()) / a.sampleRate
}

// VideoSeconds returns the offset-corrected, loop-wrapped video position
// for a clip of the given duration.
func (a *Adapter) VideoSeconds(durationSeconds float64) float64 {
	return timeline.ApplyOffset(a.AudioSeconds(), a.OffsetSeconds(), durationSeconds)
}

// IsRolling reports whether the transport is rolling.
func (a *Adapter) IsRolling() bool {
	return a.transport.IsRolling()
}

// OffsetSeconds returns the current sync offset.
func (a *Adapter) OffsetSeconds() float64 {
	return math.Float64frombits(a.offsetBits.Load())
}

// SetOffsetSeconds replaces the sync offset.
func (a *Adapter) SetOffsetSeconds(seconds float64) {
	a.offsetBits.Store(math.Float64bits(seconds))
}

// AdjustOffsetMs nudges the sync offset by the given number of milliseconds
// and returns the new offset in milliseconds.
func (a *Adapter) AdjustOffsetMs(deltaMs float64) float64 {
	newOffset := a.OffsetSeconds() + deltaMs/1000.0
	a.SetOffsetSeconds(newOffset)
	return newOffset * 1000.0
}
