// Package compat reports whether this host can run the processing pipeline.
package compat

import (
	"context"
	"fmt"
	"image"
	"os/exec"
	"runtime"
	"strings"

	"github.com/slopify/slopify/packages/cli/internal/ffmpeg"
	"github.com/slopify/slopify/packages/cli/internal/media/encoder"
)

// Canonical feature names, in reporting order.
const (
	FeatureVideoDecoder    = "VideoDecoder"
	FeatureVideoEncoder    = "VideoEncoder"
	FeatureOffscreenCanvas = "OffscreenCanvas"
	FeatureWebWorkers      = "Web Workers"
)

const (
	MsgSupported = "Your system supports video processing."

	// Reference size for codec test encodes.
	RefWidth  = 1920
	RefHeight = 1080
)

// CodecPreference is tried in order by SelectBestCodec.
var CodecPreference = []string{
	"avc1.42E01E",
	"avc1.4D401E",
	"avc1.640028",
	"vp8",
	"vp09.00.10.08",
}

// Features maps each capability the pipeline needs to its host equivalent:
// decoding and encoding through ffmpeg, an RGBA surface for compositing, and
// worker goroutines.
type Features struct {
	VideoDecoder    bool
	VideoEncoder    bool
	OffscreenCanvas bool
	WebWorkers      bool
}

// Compatibility is the result of CheckSupport.
type Compatibility struct {
	Supported       bool
	Features        Features
	MissingFeatures []string
}

// Prober checks host capabilities. The probe functions are replaceable.
type Prober struct {
	FFmpegPath  string
	FFprobePath string

	lookPath     func(file string) (string, error)
	allocSurface func() bool
	workerCount  func() int
	runner       ffmpeg.Runner
}

// NewProber creates a prober for the given binaries.
func NewProber(ffmpegPath, ffprobePath string) *Prober {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{
		FFmpegPath:   ffmpegPath,
		FFprobePath:  ffprobePath,
		lookPath:     exec.LookPath,
		allocSurface: allocSurface,
		workerCount:  func() int { return runtime.GOMAXPROCS(0) },
		runner:       ffmpeg.ExecRunner{},
	}
}

func allocSurface() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	return len(img.Pix) == 4
}

func (p *Prober) resolvable(path string) bool {
	_, err := p.lookPath(path)
	return err == nil
}

// CheckSupport is synchronous and has no side effects beyond PATH lookups.
func (p *Prober) CheckSupport() Compatibility {
	f := Features{
		VideoDecoder:    p.resolvable(p.FFmpegPath) && p.resolvable(p.FFprobePath),
		VideoEncoder:    p.resolvable(p.FFmpegPath),
		OffscreenCanvas: p.allocSurface(),
		WebWorkers:      p.workerCount() > 0,
	}

	var missing []string
	if !f.VideoDecoder {
		missing = append(missing, FeatureVideoDecoder)
	}
	if !f.VideoEncoder {
		missing = append(missing, FeatureVideoEncoder)
	}
	if !f.OffscreenCanvas {
		missing = append(missing, FeatureOffscreenCanvas)
	}
	if !f.WebWorkers {
		missing = append(missing, FeatureWebWorkers)
	}

	return Compatibility{
		Supported:       len(missing) == 0,
		Features:        f,
		MissingFeatures: missing,
	}
}

// DescribeIncompatibility renders the user-facing message.
func DescribeIncompatibility(c Compatibility) string {
	if c.Supported {
		return MsgSupported
	}
	return fmt.Sprintf("Your system doesn't support video processing. Missing features: %s. Please install FFmpeg with libx264 or libvpx for full functionality.",
		strings.Join(c.MissingFeatures, ", "))
}

// TestEncodeArgs returns the one-frame encode used to check a codec.
func TestEncodeArgs(codec string, width, height int) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=black:s=%dx%d:d=0.04", width, height),
		"-frames:v", "1",
		"-c:v", encoder.FFmpegCodec(codec),
	}
	if encoder.Family(codec) == encoder.FamilyAVC {
		args = append(args, "-profile:v", encoder.AVCProfile(codec))
	}
	return append(args, "-f", "null", "-")
}

// IsCodecSupported runs a one-frame test encode. Any host error means false.
func (p *Prober) IsCodecSupported(ctx context.Context, codec string, width, height int) bool {
	if !p.resolvable(p.FFmpegPath) || encoder.FFmpegCodec(codec) == "" {
		return false
	}
	res, err := p.runner.Run(ctx, p.FFmpegPath, TestEncodeArgs(codec, width, height)...)
	if err != nil {
		return false
	}
	return res.ExitCode == 0
}

// SelectBestCodec returns the first supported codec of CodecPreference, or
// baseline H.264 when none is.
func (p *Prober) SelectBestCodec(ctx context.Context) string {
	for _, codec := range CodecPreference {
		if p.IsCodecSupported(ctx, codec, RefWidth, RefHeight) {
			return codec
		}
	}
	return encoder.DefaultCodec
}
