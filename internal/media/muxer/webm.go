package muxer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"

	"github.com/slopify/slopify/packages/cli/internal/media/encoder"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

// WebMMuxer writes a single VP8 or VP9 track as WebM SimpleBlocks.
type WebMMuxer struct {
	logger *slog.Logger

	mu        sync.Mutex
	buf       bytes.Buffer
	out       *writerCloser
	track     webm.BlockWriteCloser
	fatalMu   sync.Mutex
	fatal     error
	started   bool
	finalized bool
	lastTS    int64
	base      int64
	blocks    int
}

// NewWebMMuxer creates a VP8/VP9 muxer.
func NewWebMMuxer(logger *slog.Logger) *WebMMuxer {
	return &WebMMuxer{logger: util.ComponentLogger(logger, "webm_muxer")}
}

func (m *WebMMuxer) MIMEType() string { return MIMETypeWebM }

// closeTimeout bounds the wait for the block writer to drain on Finalize.
const closeTimeout = 5 * time.Second

// writerCloser signals when the block writer is done with the buffer.
type writerCloser struct {
	io.Writer
	once   sync.Once
	closed chan struct{}
}

func newWriterCloser(w io.Writer) *writerCloser {
	return &writerCloser{Writer: w, closed: make(chan struct{})}
}

func (w *writerCloser) Close() error {
	w.once.Do(func() { close(w.closed) })
	return nil
}

func (m *WebMMuxer) fatalErr() error {
	m.fatalMu.Lock()
	defer m.fatalMu.Unlock()
	return m.fatal
}

// CodecID maps a codec id to the Matroska codec id.
func CodecID(codec string) string {
	if encoder.Family(codec) == encoder.FamilyVP9 {
		return "V_VP9"
	}
	return "V_VP8"
}

func (m *WebMMuxer) Initialize(cfg Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalized {
		return ErrFinalized
	}
	if m.track != nil {
		return errors.New("muxer already initialized")
	}

	m.out = newWriterCloser(&m.buf)
	writers, err := webm.NewSimpleBlockWriter(m.out, []webm.TrackEntry{
		{
			Name:            "Video",
			TrackNumber:     1,
			TrackUID:        1,
			CodecID:         CodecID(cfg.Codec),
			TrackType:       1,
			DefaultDuration: uint64(frameDuration(cfg.FrameRate) * 1000),
			Video: &webm.Video{
				PixelWidth:  uint64(cfg.Width),
				PixelHeight: uint64(cfg.Height),
			},
		},
	}, mkvcore.WithOnFatalHandler(func(err error) {
		m.logger.Warn("WebM writer failed", "error", err)
		m.fatalMu.Lock()
		m.fatal = err
		m.fatalMu.Unlock()
	}))
	if err != nil {
		return fmt.Errorf("failed to create WebM writer: %w", err)
	}
	m.track = writers[0]
	return nil
}

// AddVideoChunk appends one frame. Timestamps are rebased to the first chunk.
func (m *WebMMuxer) AddVideoChunk(chunk encoder.Chunk, _ *ChunkMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finalized {
		return ErrFinalized
	}
	if m.track == nil {
		return ErrNotInitialized
	}
	if err := m.fatalErr(); err != nil {
		return err
	}
	if m.started && chunk.Timestamp < m.lastTS {
		return fmt.Errorf("%w: %d after %d", ErrTimestampOrder, chunk.Timestamp, m.lastTS)
	}
	if len(chunk.Data) == 0 {
		return nil
	}
	if !m.started {
		m.base = chunk.Timestamp
		m.started = true
	}

	ms := (chunk.Timestamp - m.base) / 1000
	if _, err := m.track.Write(chunk.IsKey(), ms, chunk.Data); err != nil {
		return fmt.Errorf("failed to write block: %w", err)
	}
	m.lastTS = chunk.Timestamp
	m.blocks++
	return nil
}

func (m *WebMMuxer) Finalize() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finalized {
		return nil, ErrFinalized
	}
	if m.track == nil {
		return nil, ErrNotInitialized
	}
	if m.blocks == 0 {
		return nil, errors.New("no video chunks to mux")
	}
	if err := m.track.Close(); err != nil {
		return nil, fmt.Errorf("failed to close WebM track: %w", err)
	}
	select {
	case <-m.out.closed:
	case <-time.After(closeTimeout):
		return nil, errors.New("timed out closing WebM writer")
	}
	if err := m.fatalErr(); err != nil {
		return nil, err
	}
	m.finalized = true
	m.logger.Debug("WebM finalized", "blocks", m.blocks, "size", m.buf.Len())
	return m.buf.Bytes(), nil
}
