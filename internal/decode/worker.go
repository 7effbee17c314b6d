package decode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/visiona/loopdeck/internal/cache"
	"github.com/visiona/loopdeck/internal/playback"
	"github.com/visiona/loopdeck/internal/timeline"
)

// Worker tuning. Sequential decoding is 10-100x cheaper than per-frame
// seeking (codec cost is dominated by keyframe dependencies), so the worker
// only seeks when its cursor has strayed past SeekThreshold from playback.
type Config struct {
	// PreloadFrames is the number of frames decoded synchronously at load.
	PreloadFrames int
	// AheadPlaying is the decode-ahead window while playing.
	AheadPlaying int
	// AheadPaused is the decode-ahead window while paused.
	AheadPaused int
	// SeekThreshold is the circular distance beyond which the worker
	// abandons sequential decoding and seeks.
	SeekThreshold int
}

// DefaultConfig returns the standard worker tuning.
func DefaultConfig() Config {
	return Config{
		PreloadFrames: 150,
		AheadPlaying:  150,
		AheadPaused:   20,
		SeekThreshold: 50,
	}
}

func (c Config) validate() error {
	if c.PreloadFrames < 1 || c.AheadPlaying < 1 || c.AheadPaused < 1 || c.SeekThreshold < 1 {
		return fmt.Errorf("decode: invalid worker config %+v", c)
	}
	return nil
}

// WorkerStats is a snapshot of worker counters.
type WorkerStats struct {
	FramesDecoded uint64
	Seeks         uint64
	Wraps         uint64
	Undecodable   int
	Cursor        int
}

// Worker is the long-lived background decoder. It owns the Source
// exclusively, observes the playback cursor, and keeps the frame store
// populated in the forward window [playback, playback+ahead).
type Worker struct {
	cfg    Config
	source Source
	store  *cache.Store
	ctrl   *playback.Controller

	total int
	fps   float64

	// Loop-private state; only the worker goroutine touches it.
	cursor      int
	needsSeek   bool
	undecodable map[int]bool
	seekFailAt  int
	seekFails   int

	framesDecoded atomic.Uint64
	seeks         atomic.Uint64
	wraps         atomic.Uint64
	cursorSnap    atomic.Int64
	undecodableN  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startedMu sync.Mutex
	started   bool
}

// NewWorker creates a worker over an opened source.
func NewWorker(cfg Config, source Source, store *cache.Store, ctrl *playback.Controller) (*Worker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	meta := ctrl.Metadata()
	return &Worker{
		cfg:         cfg,
		source:      source,
		store:       store,
		ctrl:        ctrl,
		total:       meta.TotalFrames,
		fps:         meta.FPS,
		undecodable: make(map[int]bool),
		seekFailAt:  -1,
	}, nil
}

// Preload decodes the head of the clip synchronously so playback can start
// instantly and the loop boundary is clean. Runs before Start.
func (w *Worker) Preload(ctx context.Context) (*PreloadStats, error) {
	target := w.cfg.PreloadFrames
	if target > w.total {
		target = w.total
	}

	if err := w.source.SeekToTime(0); err != nil {
		return nil, fmt.Errorf("decode: preload seek failed: %w", err)
	}

	slog.Info("decode: preloading", "frames", target)
	start := time.Now()
	frameTimes := make([]time.Time, 0, target)

	index := 0
	for index < target {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := w.source.ReadNext()
		if errors.Is(err, ErrEndOfStream) {
			slog.Warn("decode: stream ended during preload",
				"decoded", index,
				"expected", target,
			)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode: preload failed at frame %d: %w", index, err)
		}
		if frame == nil {
			continue
		}

		w.store.Insert(index, frame)
		frameTimes = append(frameTimes, time.Now())
		index++
	}

	stats := CalculatePreloadStats(frameTimes, time.Since(start), w.fps)
	slog.Info("decode: preload complete",
		"frames", stats.FramesDecoded,
		"duration", stats.Duration,
		"rate_mean", fmt.Sprintf("%.1f", stats.RateMean),
		"rate_range", fmt.Sprintf("%.0f-%.0f", stats.RateMin, stats.RateMax),
		"realtime", stats.Realtime,
	)
	if !stats.Realtime && stats.FramesDecoded > 1 {
		slog.Warn("decode: decode rate below realtime threshold, expect held frames",
			"rate_mean", stats.RateMean,
			"clip_fps", w.fps,
		)
	}
	return stats, nil
}

// Start launches the worker goroutine.
func (w *Worker) Start(ctx context.Context) error {
	w.startedMu.Lock()
	defer w.startedMu.Unlock()

	if w.started {
		return fmt.Errorf("decode: worker already started")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.started = true

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop terminates the worker and closes the source it owns. The worker
// wakes from its longest sleep (10 ms) to observe the stop. Idempotent.
func (w *Worker) Stop() error {
	w.startedMu.Lock()
	if !w.started {
		w.startedMu.Unlock()
		return nil
	}
	w.startedMu.Unlock()

	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		slog.Warn("decode: worker did not stop within timeout")
	}

	err := w.source.Close()

	slog.Info("decode: worker stopped",
		"frames_decoded", w.framesDecoded.Load(),
		"seeks", w.seeks.Load(),
		"wraps", w.wraps.Load(),
	)
	return err
}

// Stats returns a snapshot of worker counters. Safe from any goroutine.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		FramesDecoded: w.framesDecoded.Load(),
		Seeks:         w.seeks.Load(),
		Wraps:         w.wraps.Load(),
		Undecodable:   int(w.undecodableN.Load()),
		Cursor:        int(w.cursorSnap.Load()),
	}
}

// run is the worker main loop. Single-threaded within the worker: the
// cursor, needsSeek and the undecodable set are loop-private.
func (w *Worker) run() {
	defer w.wg.Done()

	w.cursor = 0
	w.needsSeek = true
	skips := 0

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		playbackIdx := w.ctrl.CurrentFrame()
		ahead := w.cfg.AheadPaused
		if w.ctrl.IsPlaying() {
			ahead = w.cfg.AheadPlaying
		}

		// Re-anchor on the playback cursor when it has run away from us in
		// either direction: too far ahead (we fell behind) or too far
		// behind (backward scrub past our window).
		d := timeline.CircularDistance(w.cursor, playbackIdx, w.total)
		if d > w.cfg.SeekThreshold || d < -(ahead+w.cfg.SeekThreshold) {
			slog.Debug("decode: cursor re-anchored to playback",
				"cursor", w.cursor,
				"playback", playbackIdx,
				"distance", d,
			)
			w.setCursor(playbackIdx)
			w.needsSeek = true
		}

		if w.store.BufferedRun(playbackIdx, ahead) >= ahead {
			w.sleep(10 * time.Millisecond)
			continue
		}

		if w.store.Contains(w.cursor) || w.undecodable[w.cursor] {
			w.advanceCursor()
			// A full lap of skips means every reachable frame is resident
			// or un-decodable; don't spin on the hole.
			skips++
			if skips > w.total {
				skips = 0
				w.sleep(10 * time.Millisecond)
			}
			continue
		}
		skips = 0

		if w.needsSeek {
			if !w.seekTo(w.cursor) {
				w.sleep(5 * time.Millisecond)
				continue
			}
			w.needsSeek = false
		}

		frame, err := w.source.ReadNext()
		switch {
		case errors.Is(err, ErrEndOfStream):
			// Loop wrap: a mandatory seek back to the top of the file.
			w.setCursor(0)
			w.needsSeek = true
			w.wraps.Add(1)
			w.sleep(5 * time.Millisecond)
			continue

		case err != nil:
			// Transient failure: treated as EOF for this attempt, never
			// propagated. The presenter holds the last valid frame.
			slog.Debug("decode: transient read failure, wrapping",
				"cursor", w.cursor,
				"error", err,
			)
			w.setCursor(0)
			w.needsSeek = true
			w.sleep(5 * time.Millisecond)
			continue

		case frame == nil:
			w.sleep(time.Millisecond)
			continue
		}

		w.store.Insert(w.cursor, frame)
		w.store.Evict(playbackIdx)
		w.framesDecoded.Add(1)
		w.advanceCursor()
	}
}

// seekTo positions the source at the cursor's timestamp. A second
// consecutive failure at the same index marks it un-decodable and moves on;
// the presenter holds the last valid frame across the gap.
func (w *Worker) seekTo(index int) bool {
	err := w.source.SeekToTime(timeline.FrameToTime(index, w.fps))
	if err == nil {
		w.seeks.Add(1)
		w.seekFailAt = -1
		w.seekFails = 0
		return true
	}

	if w.seekFailAt == index {
		w.seekFails++
	} else {
		w.seekFailAt = index
		w.seekFails = 1
	}
	slog.Debug("decode: seek failed",
		"index", index,
		"consecutive", w.seekFails,
		"error", err,
	)

	if w.seekFails >= 2 {
		slog.Warn("decode: marking frame un-decodable", "index", index)
		w.undecodable[index] = true
		w.undecodableN.Store(int64(len(w.undecodable)))
		w.seekFailAt = -1
		w.seekFails = 0
		w.advanceCursor()
	}
	return false
}

func (w *Worker) setCursor(index int) {
	w.cursor = timeline.Wrap(index, w.total)
	w.cursorSnap.Store(int64(w.cursor))
}

// advanceCursor steps the cursor forward one frame. Wrapping to 0 is always
// a seek: the demuxer is at EOF territory, not at the top of the file.
func (w *Worker) advanceCursor() {
	w.setCursor(w.cursor + 1)
	if w.cursor == 0 {
		w.needsSeek = true
	}
}

// sleep waits for d or until stop is requested, whichever comes first.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.ctx.Done():
	case <-time.After(d):
	}
}
