package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"github.com/slopify/slopify/packages/cli/internal/ffmpeg"
	"github.com/slopify/slopify/packages/cli/internal/proc_group"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

// maxForwardSkip bounds how many frames a forward seek decodes and drops before
// restarting the decoder at the target instead.
const maxForwardSkip = 90

// Options configure file-backed sources.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	// FrameRate is the timeline rate the source is sampled at.
	FrameRate float64
	Logger    *slog.Logger
}

// FileOpener opens FileSources.
type FileOpener struct {
	Options Options
	prober  *ffmpeg.Prober
}

// NewFileOpener creates an opener that probes with ffprobe and decodes with ffmpeg.
func NewFileOpener(opts Options) *FileOpener {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	return &FileOpener{Options: opts, prober: ffmpeg.NewProber(opts.FFprobePath)}
}

// Open probes path and returns a source positioned before its first frame.
func (o *FileOpener) Open(ctx context.Context, path string) (MediaSource, error) {
	md, err := o.prober.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return NewFileSource(path, md, o.Options), nil
}

// FileSource decodes a media file through a long-running ffmpeg process that emits
// RGBA frames at the timeline rate. Sequential seeks read the next frame from the
// pipe; backward or distant seeks restart the decoder at the target position.
type FileSource struct {
	path   string
	meta   ffmpeg.Metadata
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	stderr   ffmpeg.StderrBuffer
	next     int // index of the frame the decoder produces next
	cur      int // index of the frame held in img
	eof      bool
	img      *image.RGBA
	spare    *image.RGBA
	time     float64
	released bool
}

// NewFileSource creates a source for an already probed file.
func NewFileSource(path string, md ffmpeg.Metadata, opts Options) *FileSource {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	return &FileSource{
		path:   path,
		meta:   md,
		opts:   opts,
		logger: util.ComponentLogger(opts.Logger, "file_source").With("path", path),
		cur:    -1,
	}
}

func (s *FileSource) Width() int        { return s.meta.Width }
func (s *FileSource) Height() int       { return s.meta.Height }
func (s *FileSource) Duration() float64 { return s.meta.Duration }

func (s *FileSource) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.time
}

func (s *FileSource) Frame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil
	}
	return s.img
}

// Seek decodes the frame displayed at seconds.
func (s *FileSource) Seek(ctx context.Context, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	idx := frameIndex(seconds, s.opts.FrameRate)
	s.time = seconds
	if idx == s.cur && s.img != nil {
		return nil
	}

	if s.cmd == nil || idx < s.next || idx-s.next > maxForwardSkip || (s.eof && idx < s.cur) {
		if err := s.restart(idx); err != nil {
			return err
		}
	}

	for s.next <= idx && !s.eof {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.readFrame(); err != nil {
			return err
		}
	}
	if s.img == nil {
		return fmt.Errorf("no frame decoded at %.3fs from %s: %s", seconds, s.path, s.stderr.String())
	}
	s.cur = idx
	return nil
}

// DecoderArgs returns the ffmpeg command line that decodes path from start as
// RGBA frames at fps. The scale filter pins the output to the probed display
// size, so the frame stride always matches what readFrame expects even when
// ffmpeg autorotates the stream.
func DecoderArgs(path string, start, fps float64, md ffmpeg.Metadata) []string {
	filter := fmt.Sprintf("fps=%s,scale=%d:%d",
		strconv.FormatFloat(fps, 'f', -1, 64), md.Width, md.Height)
	return []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(start, 'f', 6, 64),
		"-i", path,
		"-an",
		"-vf", filter,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}
}

func (s *FileSource) restart(idx int) error {
	s.stop()

	start := float64(idx) / s.opts.FrameRate
	cmd := exec.Command(s.opts.FFmpegPath, DecoderArgs(s.path, start, s.opts.FrameRate, s.meta)...)
	procgroup.SetProcGrp(cmd)
	s.stderr.Reset()
	cmd.Stderr = &s.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("decoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start decoder: %w", err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.next = idx
	s.eof = false
	s.logger.Debug("Decoder started", "pid", cmd.Process.Pid, "start", start)
	return nil
}

func (s *FileSource) readFrame() error {
	if s.spare == nil {
		s.spare = image.NewRGBA(image.Rect(0, 0, s.meta.Width, s.meta.Height))
	}
	_, err := io.ReadFull(s.stdout, s.spare.Pix)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// Past the last decodable frame; hold the previous one.
			s.eof = true
			return nil
		}
		return fmt.Errorf("read frame: %w", err)
	}
	s.img, s.spare = s.spare, s.img
	s.next++
	return nil
}

func (s *FileSource) stop() {
	if s.cmd == nil {
		return
	}
	if s.stdout != nil {
		s.stdout.Close()
	}
	procgroup.Kill(s.cmd)
	s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
}

// Release stops the decoder. Further seeks fail with ErrReleased.
func (s *FileSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	s.stop()
	s.img, s.spare = nil, nil
	return nil
}
