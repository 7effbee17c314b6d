package media

import (
	"fmt"

	"github.com/google/uuid"
)

// PixelStride is the number of bytes per pixel for packed RGB24 output.
const PixelStride = 3

// Frame is a single decoded, uncompressed video frame.
//
// IMMUTABILITY CONTRACT:
//   - The decoder MUST NOT modify Data after handing the frame to the cache.
//   - The presenter MUST NOT modify Data (read-only access).
//   - Enforcement is documentation-based; frames are shared by reference
//     between the decoder worker and the presenter.
type Frame struct {
	// Width in pixels
	Width int

	// Height in pixels
	Height int

	// StrideBytes is the row pitch. For packed RGB24 this is Width*3.
	StrideBytes int

	// Data holds Height*StrideBytes bytes of packed 24-bit RGB, top-down.
	Data []byte

	// TraceID is a unique identifier for log correlation.
	TraceID string
}

// NewFrame wraps decoded RGB24 bytes in a Frame, assigning a fresh TraceID.
//
// Returns an error if the buffer length does not match the geometry
// (fail-fast principle: a malformed frame must never enter the cache).
func NewFrame(width, height int, data []byte) (*Frame, error) {
	stride := width * PixelStride
	if want := height * stride; len(data) != want {
		return nil, fmt.Errorf(
			"media: frame buffer size mismatch: got %d bytes, want %d (%dx%d stride %d)",
			len(data), want, width, height, stride,
		)
	}
	return &Frame{
		Width:       width,
		Height:      height,
		StrideBytes: stride,
		Data:        data,
		TraceID:     uuid.New().String(),
	}, nil
}

// Clone returns a deep copy with its own buffer and a new TraceID.
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &Frame{
		Width:       f.Width,
		Height:      f.Height,
		StrideBytes: f.StrideBytes,
		Data:        data,
		TraceID:     uuid.New().String(),
	}
}

// SizeBytes returns the payload size of the frame buffer.
func (f *Frame) SizeBytes() int {
	return len(f.Data)
}
