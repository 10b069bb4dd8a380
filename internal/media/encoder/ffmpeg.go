package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"

	"github.com/slopify/slopify/packages/cli/internal/ffmpeg"
	"github.com/slopify/slopify/packages/cli/internal/media/compositor"
	"github.com/slopify/slopify/packages/cli/internal/media/h264"
	"github.com/slopify/slopify/packages/cli/internal/proc_group"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

// DefaultQueueSize bounds frames waiting to be written to ffmpeg.
const DefaultQueueSize = 8

type submission struct {
	data      []byte
	timestamp int64
}

// FFmpegEncoder encodes frames with an ffmpeg child process. Frames are copied
// into a bounded queue and written to ffmpeg's stdin by a writer goroutine;
// a reader goroutine parses stdout into chunks and pairs each output unit with
// the oldest pending submission.
//
// Key frames are placed by ffmpeg every cfg.KeyFrameInterval frames, so the
// keyFrame hint passed to EncodeFrame must follow the same cadence.
type FFmpegEncoder struct {
	Path      string
	QueueSize int
	Logger    *slog.Logger

	cfg     Config
	onChunk func(Chunk)
	logger  *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr ffmpeg.StderrBuffer

	queue      chan submission
	writerDone chan struct{}
	readerDone chan struct{}

	// sendMu keeps the queue open while a submission is in flight.
	sendMu sync.RWMutex

	mu      sync.Mutex
	pending []int64
	chunks  []Chunk
	lastTS  int64
	frames  int
	err     error
	flushed bool
	closed  bool
}

// NewFFmpegEncoder creates an encoder that runs the given ffmpeg binary.
func NewFFmpegEncoder(path string, logger *slog.Logger) *FFmpegEncoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegEncoder{Path: path, QueueSize: DefaultQueueSize, Logger: logger}
}

// FFmpegFactory returns a Factory producing FFmpegEncoders.
func FFmpegFactory(path string, logger *slog.Logger) Factory {
	return func() Encoder { return NewFFmpegEncoder(path, logger) }
}

func (e *FFmpegEncoder) Initialize(cfg Config, onChunk func(Chunk)) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.cmd != nil {
		return errors.New("encoder already initialized")
	}

	e.cfg = cfg
	e.onChunk = onChunk
	e.logger = util.ComponentLogger(e.Logger, "encoder").With("codec", cfg.Codec)

	args := Args(cfg)
	cmd := exec.Command(e.Path, args...)
	procgroup.SetProcGrp(cmd)
	cmd.Stderr = &e.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("encoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("encoder stdout: %w", err)
	}
	e.logger.Debug("Starting encoder", "path", e.Path, "args", args)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}

	size := e.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	e.cmd = cmd
	e.stdin = stdin
	e.stdout = stdout
	e.queue = make(chan submission, size)
	e.writerDone = make(chan struct{})
	e.readerDone = make(chan struct{})

	go e.writeLoop()
	go e.readLoop()
	return nil
}

// EncodeFrame copies the frame and queues it. The caller may release the frame
// as soon as this returns. A keyFrame flag that disagrees with the configured
// GOP is rejected.
func (e *FFmpegEncoder) EncodeFrame(frame *compositor.Frame, keyFrame bool) error {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrClosed
	case e.cmd == nil:
		e.mu.Unlock()
		return ErrNotInitialized
	case e.flushed:
		e.mu.Unlock()
		return errors.New("encoder already flushed")
	case e.err != nil:
		err := e.err
		e.mu.Unlock()
		return err
	}
	if want := e.frames%e.cfg.KeyFrameInterval == 0; keyFrame != want {
		n := e.frames
		e.mu.Unlock()
		return fmt.Errorf("frame %d: key frame %t does not match interval %d", n, keyFrame, e.cfg.KeyFrameInterval)
	}
	e.mu.Unlock()

	if frame.Width() != e.cfg.Width || frame.Height() != e.cfg.Height {
		return fmt.Errorf("frame size %dx%d does not match encoder %dx%d",
			frame.Width(), frame.Height(), e.cfg.Width, e.cfg.Height)
	}

	data := make([]byte, len(frame.Bytes()))
	copy(data, frame.Bytes())

	e.sendMu.RLock()
	defer e.sendMu.RUnlock()
	e.mu.Lock()
	closed := e.closed || e.flushed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case e.queue <- submission{data: data, timestamp: frame.Timestamp}:
		e.mu.Lock()
		e.frames++
		e.mu.Unlock()
		return nil
	case <-e.writerDone:
		return e.failure()
	}
}

func (e *FFmpegEncoder) writeLoop() {
	defer close(e.writerDone)
	for sub := range e.queue {
		e.mu.Lock()
		e.pending = append(e.pending, sub.timestamp)
		e.mu.Unlock()
		if _, err := e.stdin.Write(sub.data); err != nil {
			e.fail(fmt.Errorf("write frame: %w", err))
			// Drain so submitters never block on a dead process.
			for range e.queue {
			}
			return
		}
	}
}

func (e *FFmpegEncoder) readLoop() {
	defer close(e.readerDone)
	var err error
	if Family(e.cfg.Codec) == FamilyAVC {
		err = e.readAnnexB()
	} else {
		err = e.readIVF()
	}
	if err != nil {
		e.fail(err)
	}
}

func (e *FFmpegEncoder) readAnnexB() error {
	var splitter h264.AccessUnitSplitter
	buf := make([]byte, 64*1024)
	for {
		n, err := e.stdout.Read(buf)
		if n > 0 {
			for _, au := range splitter.Write(buf[:n]) {
				e.emitAccessUnit(au)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if au := splitter.Flush(); len(au) > 0 {
					e.emitAccessUnit(au)
				}
				return nil
			}
			return fmt.Errorf("read encoder output: %w", err)
		}
	}
}

func (e *FFmpegEncoder) emitAccessUnit(au []byte) {
	chunkType := ChunkDelta
	if nalus, err := h264.ParseAccessUnit(au); err == nil && h264.IsKeyFrame(nalus) {
		chunkType = ChunkKey
	}
	e.emit(au, chunkType)
}

func (e *FFmpegEncoder) readIVF() error {
	reader, _, err := ivfreader.NewWith(e.stdout)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		return fmt.Errorf("read ivf header: %w", err)
	}
	family := Family(e.cfg.Codec)
	for {
		frame, _, err := reader.ParseNextFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read ivf frame: %w", err)
		}
		chunkType := ChunkDelta
		if IsVPXKeyFrame(family, frame) {
			chunkType = ChunkKey
		}
		e.emit(frame, chunkType)
	}
}

// emit resolves the oldest pending submission with an output unit.
func (e *FFmpegEncoder) emit(data []byte, chunkType ChunkType) {
	e.mu.Lock()
	var ts int64
	if len(e.pending) > 0 {
		ts = e.pending[0]
		e.pending = e.pending[1:]
	} else {
		ts = e.lastTS + int64(1e6/e.cfg.FrameRate)
	}
	e.lastTS = ts
	chunk := Chunk{Data: append([]byte(nil), data...), Timestamp: ts, Type: chunkType}
	e.chunks = append(e.chunks, chunk)
	cb := e.onChunk
	e.mu.Unlock()

	if cb != nil {
		cb(chunk)
	}
}

func (e *FFmpegEncoder) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil && !e.closed {
		e.err = err
		e.logger.Error("Encoder failed", "error", err, "stderr", e.stderr.String())
	}
}

func (e *FFmpegEncoder) failure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	return errors.New("encoder stopped")
}

// Flush closes the input, waits for every submitted frame to come out and
// returns all chunks in submission order.
func (e *FFmpegEncoder) Flush(ctx context.Context) ([]Chunk, error) {
	e.sendMu.Lock()
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		e.sendMu.Unlock()
		return nil, ErrClosed
	case e.cmd == nil:
		e.mu.Unlock()
		e.sendMu.Unlock()
		return nil, ErrNotInitialized
	case e.flushed:
		chunks := append([]Chunk(nil), e.chunks...)
		err := e.err
		e.mu.Unlock()
		e.sendMu.Unlock()
		return chunks, err
	}
	e.flushed = true
	e.mu.Unlock()
	close(e.queue)
	e.sendMu.Unlock()

	select {
	case <-e.writerDone:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	e.stdin.Close()

	select {
	case <-e.readerDone:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	waitErr := e.cmd.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	if waitErr != nil {
		e.err = fmt.Errorf("encoder exited: %w: %s", waitErr, e.stderr.String())
		return nil, e.err
	}
	if len(e.pending) > 0 {
		e.logger.Warn("Frames submitted without output", "count", len(e.pending))
	}
	e.logger.Debug("Encoder flushed", "chunks", len(e.chunks))
	return append([]Chunk(nil), e.chunks...), nil
}

// Close kills the process if it is still running. It is safe to call more than once.
func (e *FFmpegEncoder) Close() error {
	e.sendMu.Lock()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.sendMu.Unlock()
		return nil
	}
	e.closed = true
	cmd := e.cmd
	flushed := e.flushed
	e.flushed = true
	e.mu.Unlock()
	if cmd != nil && !flushed {
		close(e.queue)
	}
	e.sendMu.Unlock()

	if cmd == nil {
		return nil
	}
	if cmd.ProcessState == nil && cmd.Process != nil {
		procgroup.Kill(cmd)
		e.stdin.Close()
		<-e.writerDone
		<-e.readerDone
		cmd.Wait()
	}
	return nil
}

// IsVPXKeyFrame reads the key frame bit of a VP8 or VP9 frame header.
func IsVPXKeyFrame(family CodecFamily, frame []byte) bool {
	if len(frame) == 0 {
		return false
	}
	b := frame[0]
	switch family {
	case FamilyVP8:
		// frame tag bit 0: 0 = key frame
		return b&0x01 == 0
	case FamilyVP9:
		if b>>6 != 0x2 {
			return false
		}
		profile := (b>>5)&1 | ((b>>4)&1)<<1
		shift := uint(3)
		if profile == 3 {
			shift = 2
		}
		if (b>>shift)&1 == 1 { // show_existing_frame
			return false
		}
		return (b>>(shift-1))&1 == 0
	default:
		return false
	}
}
