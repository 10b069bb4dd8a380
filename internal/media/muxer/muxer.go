// Package muxer packages encoded chunks into a playable container.
package muxer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/slopify/slopify/packages/cli/internal/media/encoder"
)

const (
	MIMETypeMP4  = "video/mp4"
	MIMETypeWebM = "video/webm"
)

var (
	// ErrFinalized is returned by every call after a successful Finalize.
	ErrFinalized = errors.New("muxer already finalized")
	// ErrNotInitialized is returned when adding chunks before Initialize.
	ErrNotInitialized = errors.New("muxer not initialized")
	// ErrTimestampOrder is returned when a chunk is older than its predecessor.
	ErrTimestampOrder = errors.New("chunk timestamp decreases")
)

// Config describes the single video track.
type Config struct {
	Width     int
	Height    int
	FrameRate float64
	Codec     string
}

// ChunkMeta carries decoder configuration that arrives alongside a chunk.
type ChunkMeta struct {
	SPS []byte
	PPS []byte
}

// Muxer accepts chunks in presentation order and produces a buffer that starts
// with the container header.
type Muxer interface {
	Initialize(cfg Config) error
	AddVideoChunk(chunk encoder.Chunk, meta *ChunkMeta) error
	Finalize() ([]byte, error)
	MIMEType() string
}

// Factory creates a muxer for a codec id.
type Factory func(codec string) (Muxer, error)

// New picks the container for a codec id.
func New(codec string) (Muxer, error) {
	return NewWithLogger(codec, nil)
}

// NewWithLogger is New with a component logger.
func NewWithLogger(codec string, logger *slog.Logger) (Muxer, error) {
	switch encoder.Family(codec) {
	case encoder.FamilyAVC:
		return NewMP4Muxer(logger), nil
	case encoder.FamilyVP8, encoder.FamilyVP9:
		return NewWebMMuxer(logger), nil
	default:
		return nil, fmt.Errorf("no container for codec %q", codec)
	}
}

// frameDuration returns one frame in microseconds.
func frameDuration(fps float64) int64 {
	if fps <= 0 {
		fps = 30
	}
	return int64(1e6 / fps)
}

func validateConfig(cfg Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid track size %dx%d", cfg.Width, cfg.Height)
	}
	return nil
}
