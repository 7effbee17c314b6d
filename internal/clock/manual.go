package clock

import "sync/atomic"

// ManualTransport is an in-process transport driven by the embedding code.
// Tests and standalone (clock-less) runs use it in place of a real
// transport bridge.
type ManualTransport struct {
	counter atomic.Uint64
	rolling atomic.Bool
	rate    uint32
}

// NewManualTransport creates a stopped transport at counter zero.
func NewManualTransport(sampleRate uint32) *ManualTransport {
	if sampleRate == 0 {
		sampleRate = 48000
	}
	return &ManualTransport{rate: sampleRate}
}

// SetCounter positions the transport.
func (m *ManualTransport) SetCounter(frames uint64) { m.counter.Store(frames) }

// Advance moves the transport forward.
func (m *ManualTransport) Advance(frames uint64) { m.counter.Add(frames) }

// SetRolling flips the rolling flag.
func (m *ManualTransport) SetRolling(rolling bool) { m.rolling.Store(rolling) }

// SetSeconds positions the transport at a time in seconds.
func (m *ManualTransport) SetSeconds(seconds float64) {
	m.counter.Store(uint64(seconds * float64(m.rate)))
}

// FrameCounter implements Transport.
func (m *ManualTransport) FrameCounter() uint64 { return m.counter.Load() }

// IsRolling implements Transport.
func (m *ManualTransport) IsRolling() bool { return m.rolling.Load() }

// SampleRate implements Transport.
func (m *ManualTransport) SampleRate() uint32 { return m.rate }

// Close implements Transport.
func (m *ManualTransport) Close() error { return nil }
