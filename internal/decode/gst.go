package decode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/visiona/loopdeck/internal/media"
)

const (
	// readTimeout bounds a single ReadNext wait. The worker treats a timed
	// out read as "packet produced no frame" and retries after a short sleep.
	readTimeout = 50 * time.Millisecond

	// sinkBuffers is the appsink/channel depth. Small on purpose: the frame
	// store is the real buffer, this only decouples the GStreamer streaming
	// thread from the worker loop.
	sinkBuffers = 4
)

// genFrame tags a decoded frame with the seek generation it was produced
// under, so frames that were in flight across a flushing seek are discarded
// instead of being assigned post-seek indices.
type genFrame struct {
	gen   uint64
	frame *media.Frame
}

// GstSource decodes a clip with a GStreamer pipeline:
//
//	filesrc → decodebin → videoconvert → videoscale →
//	capsfilter(video/x-raw,format=RGB,WxH) → appsink
//
// The capsfilter locks the output to packed RGB24 at the probed geometry, so
// every sample that reaches the appsink is exactly height*width*3 bytes.
//
// A GstSource is exclusively owned by the decoder worker. Close is
// idempotent.
type GstSource struct {
	path string
	meta media.Metadata

	pipeline *gst.Pipeline
	sink     *app.Sink

	frames  chan genFrame
	busErrs chan error

	gen    atomic.Uint64
	eos    atomic.Bool
	closed atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// OpenGstSource builds and starts the decode pipeline for path. The probed
// metadata supplies the output geometry for the caps lock.
func OpenGstSource(path string, meta media.Metadata) (*GstSource, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("decode: failed to create pipeline: %w", err)
	}

	filesrc, err := gst.NewElement("filesrc")
	if err != nil {
		return nil, fmt.Errorf("decode: failed to create filesrc: %w", err)
	}
	filesrc.SetProperty("location", path)

	decodebin, err := gst.NewElement("decodebin")
	if err != nil {
		return nil, fmt.Errorf("decode: failed to create decodebin: %w", err)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("decode: failed to create videoconvert: %w", err)
	}

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("decode: failed to create videoscale: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("decode: failed to create capsfilter: %w", err)
	}
	capsStr := fmt.Sprintf(
		"video/x-raw,format=RGB,width=%d,height=%d,pixel-aspect-ratio=1/1",
		meta.Width, meta.Height,
	)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("decode: failed to create appsink: %w", err)
	}
	// No clock sync: the worker paces decoding, not the pipeline. Frames are
	// never dropped here — indexing requires every decoded frame.
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", sinkBuffers)

	pipeline.AddMany(filesrc, decodebin, converter, scaler, capsfilter, appsink.Element)

	if err := gst.ElementLinkMany(filesrc, decodebin); err != nil {
		return nil, fmt.Errorf("decode: failed to link filesrc to decodebin: %w", err)
	}
	if err := gst.ElementLinkMany(converter, scaler, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("decode: failed to link conversion chain: %w", err)
	}

	// decodebin exposes its video pad only after stream discovery.
	decodebin.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		sinkPad := converter.GetStaticPad("sink")
		if sinkPad == nil {
			slog.Error("decode: failed to get videoconvert sink pad")
			return
		}
		if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
			slog.Debug("decode: skipping non-video pad",
				"pad", srcPad.GetName(),
				"ret", ret,
			)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &GstSource{
		path:     path,
		meta:     meta,
		pipeline: pipeline,
		sink:     appsink,
		frames:   make(chan genFrame, sinkBuffers),
		busErrs:  make(chan error, sinkBuffers),
		ctx:      ctx,
		cancel:   cancel,
	}

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		cancel()
		return nil, fmt.Errorf("decode: failed to start pipeline: %w", err)
	}

	// Wait for the pipeline to reach PLAYING before handing it to the worker.
	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(100 * time.Millisecond)
		if msg == nil {
			continue
		}
		if msg.Type() == gst.MessageError {
			gerr := msg.ParseError()
			cancel()
			pipeline.SetState(gst.StateNull)
			return nil, fmt.Errorf("decode: pipeline error [%s] opening %s: %s",
				ClassifyGstError(gerr), path, gerr.Error())
		}
		if msg.Type() == gst.MessageStateChanged && msg.Source() == pipeline.GetName() {
			_, newState := msg.ParseStateChanged()
			if newState == gst.StatePlaying {
				break
			}
		}
	}

	s.wg.Add(1)
	go s.watchBus()

	slog.Info("decode: pipeline started",
		"path", path,
		"resolution", meta.Resolution(),
		"caps", capsStr,
	)
	return s, nil
}

// onNewSample runs on the GStreamer streaming thread. It copies the sample
// out (GStreamer reuses the buffer) and hands it to the worker, blocking
// when the worker is behind — backpressure, not dropping, because every
// decoded frame is assigned an index.
func (s *GstSource) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Debug("decode: failed to pull sample, skipping")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Debug("decode: sample without buffer, skipping")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("decode: empty buffer received")
		return gst.FlowOK
	}

	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	frame, err := media.NewFrame(s.meta.Width, s.meta.Height, frameData)
	if err != nil {
		// Caps negotiation guarantees the geometry; a mismatch means the
		// pipeline is delivering something other than what we locked.
		slog.Error("decode: sample geometry mismatch", "error", err)
		return gst.FlowOK
	}

	gf := genFrame{gen: s.gen.Load(), frame: frame}
	select {
	case s.frames <- gf:
	case <-s.ctx.Done():
	}
	return gst.FlowOK
}

// watchBus monitors the pipeline bus for EOS and errors, mirroring them into
// flags/channels the worker-facing API reads from.
func (s *GstSource) watchBus() {
	defer s.wg.Done()

	bus := s.pipeline.GetPipelineBus()
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			s.eos.Store(true)
			slog.Debug("decode: end of stream reached", "path", s.path)

		case gst.MessageError:
			gerr := msg.ParseError()
			category := ClassifyGstError(gerr)
			slog.Error("decode: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"path", s.path,
			)
			select {
			case s.busErrs <- fmt.Errorf("decode: pipeline error [%s]: %s", category, gerr.Error()):
			default:
			}
		}
	}
}

// ReadNext implements Source. It waits up to readTimeout for the pipeline to
// deliver a frame; frames produced before the most recent seek are discarded.
func (s *GstSource) ReadNext() (*media.Frame, error) {
	for {
		select {
		case gf := <-s.frames:
			if gf.gen != s.gen.Load() {
				// In flight across a flushing seek; not ours to index.
				continue
			}
			return gf.frame, nil

		case err := <-s.busErrs:
			return nil, err

		case <-time.After(readTimeout):
			if s.eos.Load() {
				return nil, ErrEndOfStream
			}
			return nil, nil
		}
	}
}

// SeekToTime implements Source with a flushing, accurate pipeline seek.
// GStreamer decodes from the closest preceding keyframe and clips output to
// the requested position, so the next delivered frame is the one at (or just
// after) the target timestamp.
func (s *GstSource) SeekToTime(seconds float64) error {
	// Invalidate frames already decoded or in flight.
	s.gen.Add(1)

	pos := int64(seconds * float64(time.Second))
	ok := s.pipeline.Seek(
		1.0,
		gst.FormatTime,
		gst.SeekFlagFlush|gst.SeekFlagAccurate,
		gst.SeekTypeSet,
		pos,
		gst.SeekTypeNone,
		-1,
	)
	if !ok {
		return fmt.Errorf("decode: seek to %.3fs rejected by pipeline", seconds)
	}
	s.eos.Store(false)

	// Drain anything delivered before the flush took effect; the generation
	// check in ReadNext catches the stragglers.
	for {
		select {
		case <-s.frames:
		default:
			slog.Debug("decode: seeked", "seconds", seconds)
			return nil
		}
	}
}

// Close tears down the pipeline. Idempotent.
func (s *GstSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		slog.Warn("decode: bus watcher did not stop within timeout")
	}

	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("decode: failed to stop pipeline: %w", err)
	}
	slog.Info("decode: pipeline stopped", "path", s.path)
	return nil
}
