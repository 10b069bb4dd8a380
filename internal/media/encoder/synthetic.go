package encoder

import (
	"context"
	"sync"

	"github.com/slopify/slopify/packages/cli/internal/media/compositor"
	"github.com/slopify/slopify/packages/cli/internal/media/h264"
)

// Parameter sets and slices of a minimal 1080p baseline stream.
var (
	SyntheticSPS = []byte{
		0x67, 0x42, 0xc0, 0x28, 0xd9, 0x00, 0x78, 0x02,
		0x27, 0xe5, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04,
		0x00, 0x00, 0x03, 0x00, 0xf0, 0x3c, 0x60, 0xc9,
		0x20,
	}
	SyntheticPPS = []byte{0x68, 0xce, 0x38, 0x80}

	syntheticAUD   = []byte{0x09, 0xf0}
	syntheticIDR   = []byte{0x65, 0x88, 0x84, 0x00, 0x10}
	syntheticSlice = []byte{0x41, 0x9a, 0x24, 0x8c, 0x09}
)

// SyntheticEncoder emits a fixed Annex-B access unit per frame without running
// a codec. It backs dry runs and tests of the pipeline around the encoder.
type SyntheticEncoder struct {
	// FailAfter makes EncodeFrame fail once this many frames were accepted. Zero disables it.
	FailAfter int
	// Err is returned once FailAfter is reached.
	Err error

	mu      sync.Mutex
	cfg     Config
	onChunk func(Chunk)
	chunks  []Chunk
	frames  int
	keys    []bool
	ready   bool
	flushed bool
	closed  bool
}

// NewSyntheticEncoder returns an encoder that needs no external binaries.
func NewSyntheticEncoder() *SyntheticEncoder { return &SyntheticEncoder{} }

// SyntheticFactory returns a Factory producing SyntheticEncoders.
func SyntheticFactory() Factory {
	return func() Encoder { return NewSyntheticEncoder() }
}

func (e *SyntheticEncoder) Initialize(cfg Config, onChunk func(Chunk)) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.cfg = cfg
	e.onChunk = onChunk
	e.ready = true
	return nil
}

func (e *SyntheticEncoder) EncodeFrame(frame *compositor.Frame, keyFrame bool) error {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrClosed
	case !e.ready:
		e.mu.Unlock()
		return ErrNotInitialized
	case e.flushed:
		e.mu.Unlock()
		return ErrClosed
	case e.FailAfter > 0 && e.frames >= e.FailAfter:
		e.mu.Unlock()
		return e.Err
	}
	e.frames++
	e.keys = append(e.keys, keyFrame)

	var nalus [][]byte
	chunkType := ChunkDelta
	if keyFrame {
		nalus = [][]byte{syntheticAUD, SyntheticSPS, SyntheticPPS, syntheticIDR}
		chunkType = ChunkKey
	} else {
		nalus = [][]byte{syntheticAUD, syntheticSlice}
	}
	chunk := Chunk{Data: h264.ToAnnexB(nalus), Timestamp: frame.Timestamp, Type: chunkType}
	e.chunks = append(e.chunks, chunk)
	cb := e.onChunk
	e.mu.Unlock()

	if cb != nil {
		cb(chunk)
	}
	return nil
}

func (e *SyntheticEncoder) Flush(ctx context.Context) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if !e.ready {
		return nil, ErrNotInitialized
	}
	e.flushed = true
	return append([]Chunk(nil), e.chunks...), nil
}

func (e *SyntheticEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Frames returns how many frames were accepted.
func (e *SyntheticEncoder) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// KeyFrames returns the key frame request of every accepted frame.
func (e *SyntheticEncoder) KeyFrames() []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]bool(nil), e.keys...)
}

// Closed reports whether Close was called.
func (e *SyntheticEncoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
