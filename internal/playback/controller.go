// Package playback owns the authoritative playback cursor and the
// translation from external clock time to frame index.
package playback

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/visiona/loopdeck/internal/cache"
	"github.com/visiona/loopdeck/internal/media"
	"github.com/visiona/loopdeck/internal/timeline"
)

// externalSyncTimeout is how long the controller trusts the external clock
// after the last SyncToTime call before falling back to its internal timer.
const externalSyncTimeout = 100 * time.Millisecond

// Controller holds the playback cursor, play/pause state and external-sync
// state, and serves frames to the presenter.
//
// Concurrency model (see the frame store for the data side):
//   - currentFrame, playing and externalSync are atomic scalars. The
//     presenter writes them; the decoder worker reads them. Relaxed ordering
//     suffices — a stale read is corrected on the next worker iteration.
//   - lastValid, lastSync and lastTick are presenter-thread-local and are
//     only touched from the presenter loop.
type Controller struct {
	meta  media.Metadata
	store *cache.Store

	currentFrame atomic.Int64
	playing      atomic.Bool
	externalSync atomic.Bool

	// Presenter-thread-local bookkeeping.
	lastValid int
	lastSync  time.Time
	lastTick  time.Time

	heldServes atomic.Uint64

	now func() time.Time
}

// NewController creates a controller for the given clip.
func NewController(meta media.Metadata, store *cache.Store) *Controller {
	return &Controller{
		meta:      meta,
		store:     store,
		lastValid: -1,
		now:       time.Now,
	}
}

// SyncToTime sets the playback cursor from an external audio clock position.
// Non-blocking; safe to call every presenter tick. Idempotent for a repeated
// identical timestamp.
func (c *Controller) SyncToTime(audioSeconds float64) {
	idx := timeline.Wrap(timeline.TimeToFrame(audioSeconds, c.meta.FPS), c.meta.TotalFrames)
	c.currentFrame.Store(int64(idx))
	c.externalSync.Store(true)
	c.lastSync = c.now()
}

// Seek positions the cursor like SyncToTime but without engaging external
// sync, so the internal timer resumes from the new position.
func (c *Controller) Seek(seconds float64) {
	idx := timeline.Wrap(timeline.TimeToFrame(seconds, c.meta.FPS), c.meta.TotalFrames)
	c.currentFrame.Store(int64(idx))
	c.lastTick = c.now()
	slog.Debug("playback: seek", "seconds", seconds, "frame", idx)
}

// Update advances the cursor from the internal timer. This is the fallback
// for clock loss only: while external sync is fresh (< 100 ms old) the clock
// drives the cursor and Update is a no-op.
func (c *Controller) Update() {
	now := c.now()

	if c.externalSync.Load() {
		if now.Sub(c.lastSync) < externalSyncTimeout {
			return
		}
		c.externalSync.Store(false)
		slog.Warn("playback: external sync lost, falling back to internal timer")
		c.lastTick = now
		return
	}

	if !c.playing.Load() {
		return
	}

	frameDur := time.Duration(float64(time.Second) / c.meta.FPS)
	if c.lastTick.IsZero() {
		c.lastTick = now
		return
	}

	elapsed := now.Sub(c.lastTick)
	for elapsed >= frameDur {
		next := timeline.Wrap(int(c.currentFrame.Load())+1, c.meta.TotalFrames)
		c.currentFrame.Store(int64(next))
		elapsed -= frameDur
		c.lastTick = c.lastTick.Add(frameDur)
	}
}

// Play starts internal-timer playback.
func (c *Controller) Play() {
	c.playing.Store(true)
	c.lastTick = c.now()
}

// Pause stops playback. The cursor stays where it is.
func (c *Controller) Pause() {
	c.playing.Store(false)
}

// IsPlaying reports the play/pause flag.
func (c *Controller) IsPlaying() bool {
	return c.playing.Load()
}

// ExternalSyncActive reports whether the external clock currently drives
// the cursor.
func (c *Controller) ExternalSyncActive() bool {
	return c.externalSync.Load()
}

// CurrentFrame returns the playback cursor. Safe from any goroutine.
func (c *Controller) CurrentFrame() int {
	return int(c.currentFrame.Load())
}

// FrameForDisplay resolves the frame the presenter should show:
//
//  1. The frame at the cursor, if resident (records it as last-valid).
//  2. Otherwise the last valid frame, if still resident (a held frame).
//  3. Otherwise nil — the presenter counts this as a drop.
//
// The returned index identifies the frame actually served, which for a held
// frame differs from the cursor. Presenter-thread only.
func (c *Controller) FrameForDisplay() (*media.Frame, int) {
	i := int(c.currentFrame.Load())

	if f := c.store.Get(i); f != nil {
		c.lastValid = i
		return f, i
	}

	if c.lastValid >= 0 {
		if f := c.store.Get(c.lastValid); f != nil {
			c.heldServes.Add(1)
			return f, c.lastValid
		}
	}

	return nil, -1
}

// HeldServes returns how many times a held (stale) frame was served.
func (c *Controller) HeldServes() uint64 {
	return c.heldServes.Load()
}

// Metadata returns the immutable clip metadata.
func (c *Controller) Metadata() media.Metadata {
	return c.meta
}
