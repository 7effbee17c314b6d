// Command loopdeck is a clock-slaved looping video player. It decodes a
// clip into a bounded frame cache ahead of a playback cursor driven by an
// external audio transport clock, and hands frames to the window layer in
// lock-step with that clock.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/visiona/loopdeck/internal/clock"
	"github.com/visiona/loopdeck/internal/config"
	"github.com/visiona/loopdeck/internal/decode"
	"github.com/visiona/loopdeck/internal/player"
	"github.com/visiona/loopdeck/internal/present"
)

const clockReadyTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := config.ParseArgs(&cfg, args); err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			fmt.Print(config.Usage)
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, config.Usage)
		return 1
	}

	setupLogging(cfg.Verbose)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if _, err := os.Stat(cfg.VideoPath); err != nil {
		fmt.Fprintf(os.Stderr, "loopdeck: video file not found: %s\n", cfg.VideoPath)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	meta, err := decode.Probe(ctx, cfg.VideoPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	source, err := decode.OpenGstSource(cfg.VideoPath, meta)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	transport, err := clock.OpenUDPTransport(cfg.ClockPort)
	if err != nil {
		source.Close()
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer transport.Close()

	if err := transport.WaitReady(ctx, clockReadyTimeout); err != nil {
		source.Close()
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	p, err := player.New(cfg, meta, source, transport, &present.NullSink{}, os.Stdout)
	if err != nil {
		source.Close()
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := p.Start(ctx); err != nil {
		source.Close()
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer p.Stop()

	slog.Info("loopdeck: running",
		"clip", cfg.VideoPath,
		"title", cfg.WindowTitle,
		"offset_ms", cfg.OffsetMs,
		"scale", cfg.ScaleMode,
		"fullscreen", cfg.Fullscreen,
		"clock_port", cfg.ClockPort,
	)

	// The windowing layer would pump events here; headless, we idle until
	// a signal and periodically surface the overlay telemetry.
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("loopdeck: shutting down")
			return 0
		case <-ticker.C:
			if p.Controls().OverlayEnabled() {
				for _, line := range p.Overlay().Lines() {
					fmt.Println(line)
				}
			}
			snap := p.Overlay()
			slog.Debug("loopdeck: telemetry",
				"frame", snap.CurrentFrame,
				"buffered", snap.BufferedRun,
				"dropped", snap.Dropped,
			)
		}
	}
}

// setupLogging installs the process-wide structured logger.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}
