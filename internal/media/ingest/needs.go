package ingest

import (
	"context"
	"errors"
	"time"

	"k8s.io/utils/clock"

	"github.com/slopify/slopify/packages/cli/internal/ffmpeg"
)

// DecodeTimeout bounds the decodability check.
const DecodeTimeout = 5 * time.Second

// FrameDecoder decodes a single frame, as ffmpeg.FrameExtractor does.
type FrameDecoder interface {
	ExtractRGBA(ctx context.Context, path string, seconds float64, width, height int) ([]byte, error)
}

// DecodeChecker decides whether a file must be converted before processing.
type DecodeChecker struct {
	Reader  MetadataReader
	Frames  FrameDecoder
	Clock   clock.Clock
	Timeout time.Duration
}

// NewDecodeChecker creates a checker using ffprobe and ffmpeg.
func NewDecodeChecker(ffprobePath, ffmpegPath string) *DecodeChecker {
	return &DecodeChecker{
		Reader:  NewProbeReader(ffprobePath),
		Frames:  ffmpeg.NewFrameExtractor(ffmpegPath),
		Clock:   clock.RealClock{},
		Timeout: DecodeTimeout,
	}
}

var errNoFrame = errors.New("no frame decoded")

// NeedsTranscoding reports false when metadata (and a first frame, when a
// decoder is configured) can be read within the timeout. Errors and timeouts
// report true.
func (c *DecodeChecker) NeedsTranscoding(ctx context.Context, f *File) bool {
	clk := c.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DecodeTimeout
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- c.check(ctx, f) }()

	select {
	case err := <-result:
		return err != nil
	case <-clk.After(timeout):
		return true
	case <-ctx.Done():
		return true
	}
}

func (c *DecodeChecker) check(ctx context.Context, f *File) error {
	if _, err := c.Reader.ReadMetadata(ctx, f.Path); err != nil {
		return err
	}
	if c.Frames == nil {
		return nil
	}
	frame, err := c.Frames.ExtractRGBA(ctx, f.Path, 0, 16, 16)
	if err != nil {
		return err
	}
	if frame == nil {
		return errNoFrame
	}
	return nil
}
