package playback

import (
	"testing"
	"time"

	"github.com/visiona/loopdeck/internal/cache"
	"github.com/visiona/loopdeck/internal/media"
)

func newTestController(t *testing.T, totalFrames int) (*Controller, *cache.Store) {
	t.Helper()
	meta, err := media.NewMetadata(4, 4, 24.0, float64(totalFrames)/24.0)
	if err != nil {
		t.Fatalf("NewMetadata failed: %v", err)
	}
	if meta.TotalFrames != totalFrames {
		t.Fatalf("metadata derived %d frames, want %d", meta.TotalFrames, totalFrames)
	}
	store, err := cache.New(300, totalFrames)
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	return NewController(meta, store), store
}

func frameAt(t *testing.T, store *cache.Store, index int) *media.Frame {
	t.Helper()
	data := make([]byte, 4*4*media.PixelStride)
	data[0] = byte(index)
	f, err := media.NewFrame(4, 4, data)
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	store.Insert(index, f)
	return f
}

func TestSyncToTimeSetsCursor(t *testing.T) {
	c, _ := newTestController(t, 240)

	c.SyncToTime(5.0) // 5 s at 24 fps = frame 120
	if got := c.CurrentFrame(); got != 120 {
		t.Errorf("CurrentFrame = %d, want 120", got)
	}
	if !c.ExternalSyncActive() {
		t.Error("external sync should be active after SyncToTime")
	}
}

func TestSyncToTimeIdempotent(t *testing.T) {
	c, _ := newTestController(t, 240)

	c.SyncToTime(3.25)
	first := c.CurrentFrame()
	c.SyncToTime(3.25)
	if got := c.CurrentFrame(); got != first {
		t.Errorf("repeated SyncToTime moved cursor: %d -> %d", first, got)
	}
}

func TestSyncToTimeWrapsPastDuration(t *testing.T) {
	c, _ := newTestController(t, 240)

	// 10 s clip; 10.5 s of audio wraps to frame 12.
	c.SyncToTime(10.5)
	if got := c.CurrentFrame(); got != 12 {
		t.Errorf("CurrentFrame = %d, want 12", got)
	}
}

func TestSeekDoesNotEngageExternalSync(t *testing.T) {
	c, _ := newTestController(t, 240)

	c.Seek(2.0)
	if c.CurrentFrame() != 48 {
		t.Errorf("CurrentFrame = %d, want 48", c.CurrentFrame())
	}
	if c.ExternalSyncActive() {
		t.Error("Seek must not engage external sync")
	}
}

func TestFrameForDisplayHitHeldNone(t *testing.T) {
	c, store := newTestController(t, 240)
	frameAt(t, store, 10)

	// Hit. Mid-frame timestamps sidestep float truncation at frame edges.
	c.Seek(10.5 / 24.0)
	f, idx := c.FrameForDisplay()
	if f == nil || idx != 10 {
		t.Fatalf("expected hit on frame 10, got idx %d", idx)
	}

	// Miss with a last-valid present: held frame, not a drop.
	c.Seek(20.5 / 24.0)
	f, idx = c.FrameForDisplay()
	if f == nil {
		t.Fatal("expected held frame, got nil")
	}
	if idx != 10 {
		t.Errorf("held frame index = %d, want 10", idx)
	}
	if c.HeldServes() != 1 {
		t.Errorf("HeldServes = %d, want 1", c.HeldServes())
	}

	// Last-valid evicted as well: nothing to serve.
	store.Clear()
	f, _ = c.FrameForDisplay()
	if f != nil {
		t.Error("expected nil after store cleared")
	}
}

func TestUpdateNoOpWhileExternallySynced(t *testing.T) {
	c, _ := newTestController(t, 240)

	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }

	c.Play()
	c.SyncToTime(1.0)
	cursor := c.CurrentFrame()

	// 50 ms later sync is still fresh (under 100 ms) and Update does
	// nothing; the first call after the 100 ms window drops back to the
	// internal timer without moving the cursor.
	base = base.Add(50 * time.Millisecond)
	c.Update()
	if c.CurrentFrame() != cursor {
		t.Error("Update moved cursor while external sync fresh")
	}
	if !c.ExternalSyncActive() {
		t.Error("external sync deactivated too early")
	}

	base = base.Add(100 * time.Millisecond)
	c.Update()
	if c.ExternalSyncActive() {
		t.Error("external sync should be inactive after timeout")
	}
	if c.CurrentFrame() != cursor {
		t.Error("fallback transition must not move the cursor")
	}
}

func TestUpdateAdvancesOnInternalTimer(t *testing.T) {
	c, _ := newTestController(t, 240)

	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }

	c.Play()

	// 5 frame durations at 24 fps.
	frameDurs := 5 * float64(time.Second) / 24.0
	base = base.Add(time.Duration(frameDurs))
	c.Update()
	if got := c.CurrentFrame(); got != 5 {
		t.Errorf("CurrentFrame = %d, want 5", got)
	}

	// Paused: no advance.
	c.Pause()
	base = base.Add(time.Second)
	c.Update()
	if got := c.CurrentFrame(); got != 5 {
		t.Errorf("CurrentFrame advanced while paused: %d", got)
	}
}

func TestUpdateWrapsAtLoopBoundary(t *testing.T) {
	c, _ := newTestController(t, 10)

	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }

	c.Play()
	c.Seek(9.0 / 24.0)

	base = base.Add(time.Duration(3 * float64(time.Second) / 24.0))
	c.Update()
	if got := c.CurrentFrame(); got != 2 {
		t.Errorf("CurrentFrame = %d, want 2 (wrapped)", got)
	}
}

func TestSingleFrameClip(t *testing.T) {
	c, store := newTestController(t, 1)
	frameAt(t, store, 0)

	c.SyncToTime(123.456)
	if c.CurrentFrame() != 0 {
		t.Errorf("CurrentFrame = %d, want 0", c.CurrentFrame())
	}
	f, idx := c.FrameForDisplay()
	if f == nil || idx != 0 {
		t.Error("single-frame clip must always serve frame 0")
	}
}
