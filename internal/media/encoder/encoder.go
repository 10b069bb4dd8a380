// Package encoder compresses composited frames into an ordered list of chunks.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/slopify/slopify/packages/cli/internal/media/compositor"
)

const (
	// MinBitrate and MaxBitrate bound CalculateBitrate.
	MinBitrate = 2_000_000
	MaxBitrate = 20_000_000

	// DefaultCodec is baseline-profile H.264.
	DefaultCodec = "avc1.42E01E"

	// DefaultKeyFrameInterval is the fixed GOP length in frames.
	DefaultKeyFrameInterval = 30
)

var (
	// ErrClosed is returned when using an encoder after Close.
	ErrClosed = errors.New("encoder closed")
	// ErrNotInitialized is returned when encoding before Initialize.
	ErrNotInitialized = errors.New("encoder not initialized")
)

// ChunkType tells key frames from delta frames.
type ChunkType int

const (
	ChunkKey ChunkType = iota
	ChunkDelta
)

func (t ChunkType) String() string {
	switch t {
	case ChunkKey:
		return "key"
	case ChunkDelta:
		return "delta"
	default:
		return fmt.Sprintf("ChunkType(%d)", int(t))
	}
}

// Chunk is one compressed frame. Data is owned by the chunk.
type Chunk struct {
	Data []byte
	// Timestamp in microseconds.
	Timestamp int64
	Type      ChunkType
}

// IsKey reports whether the chunk decodes on its own.
func (c Chunk) IsKey() bool { return c.Type == ChunkKey }

// Clone returns a deep copy of the chunk.
func (c Chunk) Clone() Chunk {
	data := make([]byte, len(c.Data))
	copy(data, c.Data)
	c.Data = data
	return c
}

// Config describes one encoding session.
type Config struct {
	Codec     string
	Width     int
	Height    int
	Bitrate   int
	FrameRate float64
	// KeyFrameInterval is the GOP length the encoder is prepared for.
	KeyFrameInterval int
}

// Validate checks the config and fills defaults.
func (c *Config) Validate() error {
	if c.Codec == "" {
		c.Codec = DefaultCodec
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid encoder size %dx%d", c.Width, c.Height)
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("encoder size %dx%d must be even", c.Width, c.Height)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("invalid frame rate %v", c.FrameRate)
	}
	if c.Bitrate <= 0 {
		c.Bitrate = CalculateBitrate(c.Width, c.Height)
	}
	if c.KeyFrameInterval <= 0 {
		c.KeyFrameInterval = DefaultKeyFrameInterval
	}
	if Family(c.Codec) == FamilyUnknown {
		return fmt.Errorf("unsupported codec %q", c.Codec)
	}
	return nil
}

// Encoder compresses frames asynchronously. EncodeFrame returns once the frame is
// queued (it blocks only when the queue is full); chunks are delivered to the
// callback and buffered in submission order. Flush waits for every submitted
// frame and returns the buffer.
type Encoder interface {
	Initialize(cfg Config, onChunk func(Chunk)) error
	EncodeFrame(frame *compositor.Frame, keyFrame bool) error
	Flush(ctx context.Context) ([]Chunk, error)
	// Close releases the encoder. It is idempotent.
	Close() error
}

// Factory creates encoders; the processor gets a fresh one per run.
type Factory func() Encoder

// CalculateBitrate returns a bitrate linear in pixel count, clamped to
// [MinBitrate, MaxBitrate].
func CalculateBitrate(width, height int) int {
	raw := float64(width) * float64(height) * 0.15 * 30
	return int(math.Min(math.Max(raw, MinBitrate), MaxBitrate))
}

// CodecFamily groups codec ids by bitstream and container.
type CodecFamily int

const (
	FamilyUnknown CodecFamily = iota
	FamilyAVC
	FamilyVP8
	FamilyVP9
)

func (f CodecFamily) String() string {
	switch f {
	case FamilyAVC:
		return "avc"
	case FamilyVP8:
		return "vp8"
	case FamilyVP9:
		return "vp9"
	default:
		return "unknown"
	}
}

// Family classifies a codec id such as "avc1.42E01E", "vp8" or "vp09.00.10.08".
func Family(codec string) CodecFamily {
	c := strings.ToLower(codec)
	switch {
	case strings.HasPrefix(c, "avc1") || strings.HasPrefix(c, "avc3") || c == "h264":
		return FamilyAVC
	case c == "vp8":
		return FamilyVP8
	case strings.HasPrefix(c, "vp09") || c == "vp9":
		return FamilyVP9
	default:
		return FamilyUnknown
	}
}

// AVCProfile returns the ffmpeg profile name for an avc1.PPCCLL codec id.
func AVCProfile(codec string) string {
	if len(codec) < 7 {
		return "baseline"
	}
	switch strings.ToUpper(codec[5:7]) {
	case "4D":
		return "main"
	case "64":
		return "high"
	default:
		return "baseline"
	}
}
