// Package studio is the entry point callers use to turn a main video and its
// overlays into a finished file.
package studio

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"strings"
	"time"

	"github.com/slopify/slopify/packages/cli/internal/media/compat"
	"github.com/slopify/slopify/packages/cli/internal/media/layout"
	"github.com/slopify/slopify/packages/cli/internal/media/output"
	"github.com/slopify/slopify/packages/cli/internal/media/processor"
	"github.com/slopify/slopify/packages/cli/internal/media/source"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

// CompatibilityError carries the user-facing incompatibility message.
type CompatibilityError struct {
	Compatibility compat.Compatibility
	Message       string
}

func (e *CompatibilityError) Error() string { return e.Message }

// SupportChecker reports host capabilities; *compat.Prober implements it.
type SupportChecker interface {
	CheckSupport() compat.Compatibility
}

// OverlaySource is an overlay video and its slot. A nil Position skips it.
type OverlaySource struct {
	Src      string
	Position *layout.Position
}

// Options override the output geometry and rate. Zero values mean "from the main video".
type Options struct {
	Width      int
	Height     int
	FrameRate  float64
	Duration   float64
	Codec      string
	Background color.Color
}

// Studio opens sources, runs the processor and saves results.
type Studio struct {
	Checker   SupportChecker
	Opener    source.Opener
	Processor *processor.Processor
	Packager  *output.Packager
	Logger    *slog.Logger

	now func() time.Time
}

// New wires a studio.
func New(checker SupportChecker, opener source.Opener, proc *processor.Processor, packager *output.Packager, logger *slog.Logger) *Studio {
	return &Studio{
		Checker:   checker,
		Opener:    opener,
		Processor: proc,
		Packager:  packager,
		Logger:    util.ComponentLogger(logger, "studio"),
		now:       time.Now,
	}
}

// ProcessVideos renders mainSrc with overlays. It returns a nil blob when the
// host is unsupported (with a *CompatibilityError) or the run was cancelled
// (with a nil error). Every opened source is released before returning.
func (s *Studio) ProcessVideos(ctx context.Context, mainSrc string, overlays []OverlaySource, opts Options, onProgress processor.ProgressFunc) (*output.Blob, error) {
	if s.Checker != nil {
		c := s.Checker.CheckSupport()
		if !c.Supported {
			msg := compat.DescribeIncompatibility(c)
			s.Logger.Warn("Host cannot process video", "missing", c.MissingFeatures)
			return nil, &CompatibilityError{Compatibility: c, Message: msg}
		}
	}

	var opened []source.MediaSource
	defer func() {
		for _, src := range opened {
			if err := src.Release(); err != nil {
				s.Logger.Warn("Failed to release source", "error", err)
			}
		}
	}()

	main, err := s.Opener.Open(ctx, mainSrc)
	if err != nil {
		return nil, &processor.Error{Kind: processor.KindSourceLoadFailed, Op: "open main", Err: err}
	}
	opened = append(opened, main)

	var layers []processor.Overlay
	for i, o := range overlays {
		if o.Position == nil {
			s.Logger.Debug("Skipping overlay without a position", "index", i, "src", o.Src)
			continue
		}
		src, err := s.Opener.Open(ctx, o.Src)
		if err != nil {
			return nil, &processor.Error{Kind: processor.KindSourceLoadFailed, Op: fmt.Sprintf("open overlay %d", i), Err: err}
		}
		opened = append(opened, src)
		layers = append(layers, processor.Overlay{Position: *o.Position, Source: src})
	}

	var last processor.Progress
	track := func(p processor.Progress) {
		last = p
		if onProgress != nil {
			onProgress(p)
		}
	}

	blob, err := s.Processor.Process(ctx, processor.Config{
		Main:       main,
		Overlays:   layers,
		Width:      opts.Width,
		Height:     opts.Height,
		FrameRate:  opts.FrameRate,
		Duration:   opts.Duration,
		Codec:      opts.Codec,
		Background: opts.Background,
	}, track)
	if err != nil {
		return nil, err
	}
	if blob.Empty() {
		return nil, nil
	}
	if last.Stage != processor.StageComplete && onProgress != nil {
		onProgress(processor.Progress{
			CurrentFrame: last.TotalFrames,
			TotalFrames:  last.TotalFrames,
			Percentage:   100,
			Stage:        processor.StageComplete,
		})
	}
	return blob, nil
}

// Download saves blob, naming it with GenerateFilename when filename is empty.
// Generated names take the blob's container extension.
func (s *Studio) Download(blob *output.Blob, filename string) (string, error) {
	if s.Packager == nil {
		return "", errors.New("no output packager configured")
	}
	if filename == "" {
		filename = strings.TrimSuffix(output.GenerateFilename(s.now()), ".mp4") + blob.Extension()
	}
	return s.Packager.Download(blob, filename)
}
