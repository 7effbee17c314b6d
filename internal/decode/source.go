// Package decode wraps the container demuxer and codec behind a single
// owning handle and runs the background worker that keeps the frame store
// populated ahead of the playback cursor.
package decode

import (
	"errors"

	"github.com/visiona/loopdeck/internal/media"
)

// ErrEndOfStream is returned by Source.ReadNext when the demuxer has
// delivered the last frame of the file.
var ErrEndOfStream = errors.New("decode: end of stream")

// Source is the decoded-frame producer the worker drives. A Source is
// exclusively owned by a single worker goroutine; no method is safe for
// concurrent use.
//
// ReadNext returns:
//   - (frame, nil) for a decoded RGB24 frame,
//   - (nil, nil) when the current packet produced no frame,
//   - (nil, ErrEndOfStream) at end of file,
//   - (nil, err) for transient demuxer/codec failures.
//
// SeekToTime repositions the demuxer near the given timestamp. Positioning
// is approximate (the container grants keyframe granularity); the caller's
// cursor remains the source of truth for frame indexing.
type Source interface {
	ReadNext() (*media.Frame, error)
	SeekToTime(seconds float64) error
	Close() error
}
