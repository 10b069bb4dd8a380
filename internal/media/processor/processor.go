// Package processor drives the per-frame seek, composite and encode loop and
// packages the result.
package processor

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/slopify/slopify/packages/cli/internal/media/compositor"
	"github.com/slopify/slopify/packages/cli/internal/media/encoder"
	"github.com/slopify/slopify/packages/cli/internal/media/layout"
	"github.com/slopify/slopify/packages/cli/internal/media/muxer"
	"github.com/slopify/slopify/packages/cli/internal/media/output"
	"github.com/slopify/slopify/packages/cli/internal/media/source"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

const (
	// DefaultFrameRate is used when Config.FrameRate is unset.
	DefaultFrameRate = 30
	// KeyFrameInterval is the fixed GOP: frame i is a key frame when i%30 == 0.
	KeyFrameInterval = 30
)

// ErrBusy is returned when Process is called while a run is in flight.
var ErrBusy = errors.New("processor is already running")

// Overlay places a source in an outer slot.
type Overlay struct {
	Position layout.Position
	Source   source.MediaSource
}

// Config describes one run. Zero Width, Height, FrameRate and Duration take
// their values from the main source (and 30 fps).
type Config struct {
	Main       source.MediaSource
	Overlays   []Overlay
	Width      int
	Height     int
	FrameRate  float64
	Duration   float64
	Codec      string
	Background color.Color
}

func (c *Config) applyDefaults() error {
	if c.Main == nil {
		return newError(KindInvalidConfig, "config", errors.New("main source is required"))
	}
	if c.Width == 0 {
		c.Width = c.Main.Width()
	}
	if c.Height == 0 {
		c.Height = c.Main.Height()
	}
	if c.FrameRate <= 0 {
		c.FrameRate = DefaultFrameRate
	}
	if c.Duration <= 0 {
		c.Duration = c.Main.Duration()
	}
	if c.Codec == "" {
		c.Codec = encoder.DefaultCodec
	}
	if c.Background == nil {
		c.Background = compositor.DefaultBackground
	}

	if c.Width <= 0 || c.Height <= 0 || c.Width%2 != 0 || c.Height%2 != 0 {
		return newError(KindUnsupportedGeometry, "config",
			fmt.Errorf("output size %dx%d must be positive and even", c.Width, c.Height))
	}
	if c.Duration <= 0 || math.IsInf(c.Duration, 0) || math.IsNaN(c.Duration) {
		return newError(KindInvalidConfig, "config", fmt.Errorf("invalid duration %v", c.Duration))
	}
	for i, o := range c.Overlays {
		if o.Source == nil {
			return newError(KindInvalidConfig, "config", fmt.Errorf("overlay %d has no source", i))
		}
		if !o.Position.IsOverlay() {
			return newError(KindInvalidConfig, "config", fmt.Errorf("overlay %d has invalid position %d", i, o.Position))
		}
	}
	return nil
}

// TotalFrames returns ceil(duration * frameRate).
func TotalFrames(duration, frameRate float64) int {
	return int(math.Ceil(duration * frameRate))
}

// Processor runs compositions. A Processor handles one run at a time.
type Processor struct {
	EncoderFactory encoder.Factory
	MuxerFactory   muxer.Factory
	// Tick waits for seeks to settle before compositing. The default only checks ctx.
	Tick   func(ctx context.Context) error
	Logger *slog.Logger

	running   atomic.Bool
	cancelled atomic.Bool
}

// New creates a processor with the given encoder factory and default muxers.
func New(encoders encoder.Factory, logger *slog.Logger) *Processor {
	return &Processor{EncoderFactory: encoders, Logger: logger}
}

// Cancel stops the in-flight run at the next frame boundary.
func (p *Processor) Cancel() {
	p.cancelled.Store(true)
}

func defaultTick(ctx context.Context) error { return ctx.Err() }

// Process renders cfg. Cancellation through ctx or Cancel yields an empty blob
// and a nil error; every other failure is an *Error and never a partial blob.
func (p *Processor) Process(ctx context.Context, cfg Config, onProgress ProgressFunc) (*output.Blob, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer p.running.Store(false)
	p.cancelled.Store(false)

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	run := &run{
		p:          p,
		cfg:        cfg,
		total:      TotalFrames(cfg.Duration, cfg.FrameRate),
		onProgress: onProgress,
		logger: util.ComponentLogger(p.Logger, "processor").With(
			"run", uuid.NewString(),
			"width", cfg.Width,
			"height", cfg.Height,
			"fps", cfg.FrameRate,
		),
	}
	return run.execute(ctx)
}

type run struct {
	p          *Processor
	cfg        Config
	total      int
	onProgress ProgressFunc
	logger     *slog.Logger

	comp *compositor.Compositor
	enc  encoder.Encoder
	mux  muxer.Muxer
}

func (r *run) report(stage Stage, current int) {
	if r.onProgress != nil {
		r.onProgress(newProgress(stage, current, r.total))
	}
}

func (r *run) isCancelled(ctx context.Context) bool {
	return r.p.cancelled.Load() || ctx.Err() != nil
}

func (r *run) cancel(frame int) (*output.Blob, error) {
	r.logger.Info("Processing cancelled", "frame", frame)
	r.report(StageCancelled, frame)
	return output.CreateBlob([]byte{}, r.mux.MIMEType()), nil
}

func (r *run) cleanup() {
	if r.enc != nil {
		if err := r.enc.Close(); err != nil {
			r.logger.Warn("Failed to close encoder", "error", err)
		}
	}
}

func (r *run) setup() error {
	cfg := r.cfg

	comp, err := compositor.New(cfg.Width, cfg.Height)
	if err != nil {
		return newError(KindUnsupportedGeometry, "compositor", err)
	}
	comp.SetBackground(cfg.Background)
	r.comp = comp

	newMuxer := r.p.MuxerFactory
	if newMuxer == nil {
		newMuxer = func(codec string) (muxer.Muxer, error) { return muxer.NewWithLogger(codec, r.p.Logger) }
	}
	mux, err := newMuxer(cfg.Codec)
	if err != nil {
		return newError(KindMuxerFault, "create", err)
	}
	if err := mux.Initialize(muxer.Config{Width: cfg.Width, Height: cfg.Height, FrameRate: cfg.FrameRate, Codec: cfg.Codec}); err != nil {
		return newError(KindMuxerFault, "initialize", err)
	}
	r.mux = mux

	if r.p.EncoderFactory == nil {
		return newError(KindEncoderFault, "create", errors.New("no encoder factory"))
	}
	r.enc = r.p.EncoderFactory()
	encCfg := encoder.Config{
		Codec:            cfg.Codec,
		Width:            cfg.Width,
		Height:           cfg.Height,
		Bitrate:          encoder.CalculateBitrate(cfg.Width, cfg.Height),
		FrameRate:        cfg.FrameRate,
		KeyFrameInterval: KeyFrameInterval,
	}
	if err := r.enc.Initialize(encCfg, nil); err != nil {
		return newError(KindEncoderFault, "initialize", err)
	}
	return nil
}

func (r *run) seek(ctx context.Context, t float64, src source.MediaSource) error {
	return src.Seek(ctx, source.LoopTime(t, src.Duration()))
}

func (r *run) execute(ctx context.Context) (*output.Blob, error) {
	defer r.cleanup()

	r.report(StageInitializing, 0)
	if err := r.setup(); err != nil {
		r.logger.Error("Failed to set up processing", "error", err)
		return nil, err
	}
	r.logger.Info("Processing started", "frames", r.total, "overlays", len(r.cfg.Overlays), "codec", r.cfg.Codec)

	layers := make([]compositor.Layer, 0, len(r.cfg.Overlays)+1)
	layers = append(layers, compositor.Layer{Slot: layout.Center, Source: r.cfg.Main})
	for _, o := range r.cfg.Overlays {
		layers = append(layers, compositor.Layer{Slot: o.Position, Source: o.Source})
	}

	tick := r.p.Tick
	if tick == nil {
		tick = defaultTick
	}

	r.report(StageProcessing, 0)
	for i := 0; i < r.total; i++ {
		if r.isCancelled(ctx) {
			return r.cancel(i)
		}

		t := float64(i) / r.cfg.FrameRate
		if err := r.seek(ctx, t, r.cfg.Main); err != nil {
			if r.isCancelled(ctx) {
				return r.cancel(i)
			}
			return nil, newError(KindSourceLoadFailed, "seek main", err)
		}
		for n, o := range r.cfg.Overlays {
			if err := r.seek(ctx, t, o.Source); err != nil {
				if r.isCancelled(ctx) {
					return r.cancel(i)
				}
				return nil, newError(KindSourceLoadFailed, fmt.Sprintf("seek overlay %d", n), err)
			}
		}
		if err := tick(ctx); err != nil {
			if r.isCancelled(ctx) {
				return r.cancel(i)
			}
			return nil, newError(KindSourceLoadFailed, "tick", err)
		}

		r.comp.Composite(layers)
		frame := r.comp.FrameAt(int64(float64(i) * 1_000_000 / r.cfg.FrameRate))
		err := r.enc.EncodeFrame(frame, i%KeyFrameInterval == 0)
		frame.Release()
		if err != nil {
			r.logger.Error("Encoder error", "frame", i, "error", err)
			return nil, newError(KindEncoderFault, "encode", err)
		}

		r.report(StageProcessing, i+1)
	}

	r.report(StageEncoding, r.total)
	chunks, err := r.enc.Flush(ctx)
	if err != nil {
		if r.isCancelled(ctx) {
			return r.cancel(r.total)
		}
		r.logger.Error("Encoder flush failed", "error", err)
		return nil, newError(KindEncoderFault, "flush", err)
	}
	if err := r.enc.Close(); err != nil {
		r.logger.Warn("Failed to close encoder", "error", err)
	}

	r.report(StageFinalizing, r.total)
	for _, c := range chunks {
		if err := r.mux.AddVideoChunk(c, nil); err != nil {
			return nil, newError(KindMuxerFault, "add chunk", err)
		}
	}
	buf, err := r.mux.Finalize()
	if err != nil {
		return nil, newError(KindMuxerFault, "finalize", err)
	}
	blob := output.CreateBlob(buf, r.mux.MIMEType())

	r.report(StageComplete, r.total)
	r.logger.Info("Processing complete", "chunks", len(chunks), "size", output.FormatFileSize(int64(blob.Size())))
	return blob, nil
}
