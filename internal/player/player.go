// Package player wires the frame store, decoder worker, clock adapter and
// presenter into one lifecycle.
package player

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/visiona/loopdeck/internal/cache"
	"github.com/visiona/loopdeck/internal/clock"
	"github.com/visiona/loopdeck/internal/config"
	"github.com/visiona/loopdeck/internal/decode"
	"github.com/visiona/loopdeck/internal/media"
	"github.com/visiona/loopdeck/internal/overlay"
	"github.com/visiona/loopdeck/internal/playback"
	"github.com/visiona/loopdeck/internal/present"
)

// Player owns the core subsystems. Construction wires them; Start preloads
// and launches the worker and presenter; Stop tears down in reverse order.
//
// The transport and sink are collaborators: the player drives them but the
// caller owns their lifecycle.
type Player struct {
	cfg  config.Config
	meta media.Metadata

	store     *cache.Store
	ctrl      *playback.Controller
	worker    *decode.Worker
	adapter   *clock.Adapter
	presenter *present.Presenter
	controls  *present.Controls

	preload *decode.PreloadStats

	startedMu sync.Mutex
	started   bool
}

// New wires a player over an opened decode source and a transport.
// Reproduce-command output goes to out.
func New(cfg config.Config, meta media.Metadata, source decode.Source, transport clock.Transport, sink present.VideoSink, out io.Writer) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := cache.New(cfg.MaxCachedFrames, meta.TotalFrames)
	if err != nil {
		return nil, err
	}

	ctrl := playback.NewController(meta, store)

	worker, err := decode.NewWorker(decode.Config{
		PreloadFrames: cfg.PreloadFrames,
		AheadPlaying:  cfg.AheadPlaying,
		AheadPaused:   cfg.AheadPaused,
		SeekThreshold: cfg.SeekThreshold,
	}, source, store, ctrl)
	if err != nil {
		return nil, err
	}

	adapter := clock.NewAdapter(transport, cfg.OffsetMs/1000.0)

	presenter, err := present.NewPresenter(ctrl, adapter, sink, cfg.RefreshHz)
	if err != nil {
		return nil, err
	}

	mode, err := present.ParseScaleMode(cfg.ScaleMode)
	if err != nil {
		return nil, err
	}
	controls := present.NewControls(adapter, cfg.VideoPath, cfg.Fullscreen, mode, out)

	return &Player{
		cfg:       cfg,
		meta:      meta,
		store:     store,
		ctrl:      ctrl,
		worker:    worker,
		adapter:   adapter,
		presenter: presenter,
		controls:  controls,
	}, nil
}

// Start preloads the head of the clip, then launches the decoder worker and
// the presenter loop.
func (p *Player) Start(ctx context.Context) error {
	p.startedMu.Lock()
	defer p.startedMu.Unlock()

	if p.started {
		return fmt.Errorf("player: already started")
	}

	stats, err := p.worker.Preload(ctx)
	if err != nil {
		return fmt.Errorf("player: preload failed: %w", err)
	}
	p.preload = stats

	if err := p.worker.Start(ctx); err != nil {
		return err
	}
	if err := p.presenter.Start(ctx); err != nil {
		p.worker.Stop()
		return err
	}

	p.started = true
	slog.Info("player: started",
		"clip", p.cfg.VideoPath,
		"resolution", p.meta.Resolution(),
		"fps", p.meta.FPS,
		"total_frames", p.meta.TotalFrames,
	)
	return nil
}

// Stop shuts the presenter and worker down. Idempotent. The worker closes
// the decode source it owns; the frame store is released with the player.
func (p *Player) Stop() error {
	p.startedMu.Lock()
	if !p.started {
		p.startedMu.Unlock()
		return nil
	}
	p.started = false
	p.startedMu.Unlock()

	presErr := p.presenter.Stop()
	workErr := p.worker.Stop()
	if presErr != nil {
		return presErr
	}
	return workErr
}

// Controls exposes the key-command state for the window layer.
func (p *Player) Controls() *present.Controls {
	return p.controls
}

// Controller exposes the playback controller for the window layer.
func (p *Player) Controller() *playback.Controller {
	return p.ctrl
}

// Presenter exposes the presenter so a real window loop can pace Tick from
// its vsync callback.
func (p *Player) Presenter() *present.Presenter {
	return p.presenter
}

// PreloadStats returns the decode-rate statistics measured during Start.
func (p *Player) PreloadStats() *decode.PreloadStats {
	return p.preload
}

// Overlay aggregates a telemetry snapshot across the subsystems.
func (p *Player) Overlay() overlay.Snapshot {
	current := p.ctrl.CurrentFrame()
	ahead := p.cfg.AheadPaused
	if p.ctrl.IsPlaying() {
		ahead = p.cfg.AheadPlaying
	}

	cacheStats := p.store.Stats()
	workerStats := p.worker.Stats()
	presStats := p.presenter.Stats()

	return overlay.Snapshot{
		CurrentFrame:  current,
		TotalFrames:   p.meta.TotalFrames,
		FPS:           p.meta.FPS,
		BufferedRun:   p.store.BufferedRun(current, ahead),
		AheadTarget:   ahead,
		CacheResident: cacheStats.Resident,
		CacheCapacity: cacheStats.Capacity,
		Dropped:       presStats.Dropped,
		HeldServes:    p.ctrl.HeldServes(),
		FramesDecoded: workerStats.FramesDecoded,
		Seeks:         workerStats.Seeks,
		DecoderCursor: workerStats.Cursor,
		OffsetMs:      p.adapter.OffsetSeconds() * 1000.0,
		Rolling:       presStats.Rolling,
		ExternalSync:  p.ctrl.ExternalSyncActive(),
	}
}
