// Package present runs the vsync-paced loop that consumes frames from the
// playback controller and hands them to the texture-upload collaborator.
package present

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/visiona/loopdeck/internal/clock"
	"github.com/visiona/loopdeck/internal/media"
	"github.com/visiona/loopdeck/internal/playback"
)

// VideoSink is the texture upload / render collaborator. Upload receives
// frame bytes only when the displayed index changes; Render is called every
// tick and is where a real implementation blocks on the GPU buffer swap.
type VideoSink interface {
	Upload(frame *media.Frame, index int) error
	Render() error
}

// NullSink discards frames. Used headless and in tests that only care
// about the loop's bookkeeping.
type NullSink struct {
	uploads atomic.Uint64
}

func (n *NullSink) Upload(frame *media.Frame, index int) error {
	n.uploads.Add(1)
	slog.Debug("present: frame discarded by null sink",
		"index", index,
		"trace_id", frame.TraceID,
	)
	return nil
}

func (n *NullSink) Render() error { return nil }

// Uploads returns how many frames reached the sink.
func (n *NullSink) Uploads() uint64 { return n.uploads.Load() }

// Stats is a snapshot of presenter counters.
type Stats struct {
	Ticks        uint64
	Dropped      uint64
	LastUploaded int
	Rolling      bool
}

// Presenter drives one iteration per vsync: mirror the transport's rolling
// state into play/pause, sync the cursor to the clock, fetch a frame, and
// hand it to the sink. A held last-valid frame is not a drop; only a tick
// with nothing to show increments the drop counter.
type Presenter struct {
	ctrl    *playback.Controller
	adapter *clock.Adapter
	sink    VideoSink

	duration float64
	interval time.Duration

	// Loop-private state.
	wasRolling bool

	ticks        atomic.Uint64
	dropped      atomic.Uint64
	rolling      atomic.Bool
	lastUploaded atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startedMu sync.Mutex
	started   bool
}

// NewPresenter creates a presenter ticking at the given refresh rate.
func NewPresenter(ctrl *playback.Controller, adapter *clock.Adapter, sink VideoSink, refreshHz float64) (*Presenter, error) {
	if refreshHz <= 0 {
		return nil, fmt.Errorf("present: invalid refresh rate %.1f", refreshHz)
	}
	p := &Presenter{
		ctrl:     ctrl,
		adapter:  adapter,
		sink:     sink,
		duration: ctrl.Metadata().DurationSeconds,
		interval: time.Duration(float64(time.Second) / refreshHz),
	}
	p.lastUploaded.Store(-1)
	return p, nil
}

// Start launches the presenter loop.
func (p *Presenter) Start(ctx context.Context) error {
	p.startedMu.Lock()
	defer p.startedMu.Unlock()

	if p.started {
		return fmt.Errorf("present: presenter already started")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	p.wg.Add(1)
	go p.run()
	slog.Info("present: presenter started", "interval", p.interval)
	return nil
}

// Stop terminates the loop. Idempotent.
func (p *Presenter) Stop() error {
	p.startedMu.Lock()
	if !p.started {
		p.startedMu.Unlock()
		return nil
	}
	p.startedMu.Unlock()

	p.cancel()
	p.wg.Wait()

	slog.Info("present: presenter stopped",
		"ticks", p.ticks.Load(),
		"dropped", p.dropped.Load(),
	)
	return nil
}

func (p *Presenter) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick runs one presenter iteration. Exported so the embedding window loop
// can pace it from a real vsync callback instead of the internal ticker.
func (p *Presenter) Tick() {
	p.ticks.Add(1)

	// Mirror transport state into play/pause.
	rolling := p.adapter.IsRolling()
	p.rolling.Store(rolling)
	if rolling != p.wasRolling {
		if rolling {
			p.ctrl.Play()
			slog.Info("present: transport rolling, playing")
		} else {
			p.ctrl.Pause()
			slog.Info("present: transport stopped, paused")
		}
		p.wasRolling = rolling
	}

	// The counter is synced even while stopped so scrubbing-while-paused
	// tracks the transport position.
	p.ctrl.SyncToTime(p.adapter.VideoSeconds(p.duration))
	p.ctrl.Update()

	frame, index := p.ctrl.FrameForDisplay()
	if frame == nil {
		p.dropped.Add(1)
		slog.Debug("present: nothing to show", "cursor", p.ctrl.CurrentFrame())
	} else if int64(index) != p.lastUploaded.Load() {
		if err := p.sink.Upload(frame, index); err != nil {
			slog.Error("present: upload failed", "index", index, "error", err)
		} else {
			p.lastUploaded.Store(int64(index))
		}
	}

	if err := p.sink.Render(); err != nil {
		slog.Error("present: render failed", "error", err)
	}
}

// Stats returns a snapshot of presenter counters. Safe from any goroutine.
func (p *Presenter) Stats() Stats {
	return Stats{
		Ticks:        p.ticks.Load(),
		Dropped:      p.dropped.Load(),
		LastUploaded: int(p.lastUploaded.Load()),
		Rolling:      p.rolling.Load(),
	}
}
