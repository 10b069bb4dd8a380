package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/slopify/slopify/packages/cli/internal/ffmpeg"
)

type countingReader struct {
	mu    sync.Mutex
	calls int
	md    ffmpeg.Metadata
	err   error
}

func (r *countingReader) ReadMetadata(ctx context.Context, path string) (ffmpeg.Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.md, r.err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()

	f, err := OpenFile(writeFile(t, dir, "clip.mp4", "not really a video"))
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", f.Name)
	assert.Equal(t, "video/mp4", f.MIMEType)
	assert.Equal(t, int64(18), f.Size)
	assert.Equal(t, ".mp4", f.Extension())

	f, err = OpenFile(writeFile(t, dir, "notes.txt", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", f.MIMEType)

	_, err = OpenFile(filepath.Join(dir, "missing.mp4"))
	assert.Error(t, err)
	_, err = OpenFile(dir)
	assert.Error(t, err)
}

func TestConvertedName(t *testing.T) {
	assert.Equal(t, "clip_converted.mp4", ConvertedName("clip.mov"))
	assert.Equal(t, "a.b_converted.mp4", ConvertedName("a.b.webm"))
	assert.Equal(t, "noext", ConvertedName("noext"))
	assert.Equal(t, ".mp4", (&File{Name: "noext"}).Extension())
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name     string
		file     File
		md       ffmpeg.Metadata
		readErr  error
		wantKind ErrorKind
		wantMsg  string
		reads    int
	}{
		{
			name:     "unsupported type skips reader",
			file:     File{MIMEType: "video/x-msvideo", Size: 10},
			wantKind: KindFormat,
			wantMsg:  "Unsupported format. Please use MP4, WebM, or MOV files.",
		},
		{
			name:     "too large skips reader",
			file:     File{MIMEType: "video/mp4", Size: MaxFileSizeBytes + 1},
			wantKind: KindSize,
			wantMsg:  "File too large. Maximum size is 500MB.",
		},
		{
			name:     "unreadable metadata",
			file:     File{MIMEType: "video/webm", Size: 10},
			readErr:  errors.New("moov atom not found"),
			wantKind: KindFormat,
			wantMsg:  "Failed to read video file.",
			reads:    1,
		},
		{
			name:     "too long",
			file:     File{MIMEType: "video/quicktime", Size: 10},
			md:       ffmpeg.Metadata{Duration: 300.5, Width: 640, Height: 480},
			wantKind: KindDuration,
			wantMsg:  "Video too long. Maximum duration is 5 minutes.",
			reads:    1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &countingReader{md: tt.md, err: tt.readErr}
			res := NewValidator(reader).Validate(context.Background(), &tt.file)
			assert.False(t, res.Valid)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.wantKind, res.Error.Kind)
			assert.Equal(t, tt.wantMsg, res.Error.Message)
			assert.Equal(t, tt.reads, reader.calls)
		})
	}
}

func TestValidateBoundaries(t *testing.T) {
	reader := &countingReader{md: ffmpeg.Metadata{Duration: MaxDurationSeconds, Width: 1280, Height: 720}}
	f := &File{Name: "edge.mp4", MIMEType: "video/mp4", Size: MaxFileSizeBytes}

	res := NewValidator(reader).Validate(context.Background(), f)
	require.True(t, res.Valid)
	assert.Equal(t, &Metadata{Duration: 300, Width: 1280, Height: 720, Name: "edge.mp4", Size: 524_288_000, Type: "video/mp4"}, res.Metadata)
}

type decoderFunc func(ctx context.Context, path string, seconds float64, w, h int) ([]byte, error)

func (f decoderFunc) ExtractRGBA(ctx context.Context, path string, seconds float64, w, h int) ([]byte, error) {
	return f(ctx, path, seconds, w, h)
}

func TestNeedsTranscoding(t *testing.T) {
	f := &File{Path: "clip.mp4"}
	ok := &countingReader{md: ffmpeg.Metadata{Duration: 1, Width: 2, Height: 2}}

	c := &DecodeChecker{Reader: ok}
	assert.False(t, c.NeedsTranscoding(context.Background(), f))

	c = &DecodeChecker{Reader: &countingReader{err: errors.New("bad")}}
	assert.True(t, c.NeedsTranscoding(context.Background(), f))

	c = &DecodeChecker{Reader: ok, Frames: decoderFunc(func(context.Context, string, float64, int, int) ([]byte, error) {
		return nil, nil
	})}
	assert.True(t, c.NeedsTranscoding(context.Background(), f), "no decodable frame")

	c = &DecodeChecker{Reader: ok, Frames: decoderFunc(func(context.Context, string, float64, int, int) ([]byte, error) {
		return make([]byte, 16*16*4), nil
	})}
	assert.False(t, c.NeedsTranscoding(context.Background(), f))
}

func TestNeedsTranscodingTimeout(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	blocked := MetadataReaderFunc(func(ctx context.Context, path string) (ffmpeg.Metadata, error) {
		<-ctx.Done()
		return ffmpeg.Metadata{}, ctx.Err()
	})
	c := &DecodeChecker{Reader: blocked, Clock: fc, Timeout: DecodeTimeout}

	result := make(chan bool, 1)
	go func() { result <- c.NeedsTranscoding(context.Background(), &File{Path: "slow.mov"}) }()

	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)
	fc.Step(DecodeTimeout)

	select {
	case needs := <-result:
		assert.True(t, needs)
	case <-time.After(time.Second):
		t.Fatal("NeedsTranscoding did not return after the timeout")
	}
}

func TestEngineServiceSharesLoad(t *testing.T) {
	release := make(chan struct{})
	svc := NewEngineService(func(ctx context.Context) (Engine, error) {
		<-release
		return &fakeEngine{}, nil
	}, nil)
	assert.False(t, svc.IsLoaded())

	var (
		mu     sync.Mutex
		events []TranscodeProgress
		wg     sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Acquire(context.Background(), func(p TranscodeProgress) {
				mu.Lock()
				events = append(events, p)
				mu.Unlock()
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, svc.Loads())
	assert.True(t, svc.IsLoaded())
	require.Len(t, events, 2)
	assert.Equal(t, TranscodeProgress{Stage: StageLoadingFFmpeg, Percentage: 0, Message: "Downloading video converter..."}, events[0])
	assert.Equal(t, TranscodeProgress{Stage: StageLoadingFFmpeg, Percentage: 100, Message: "Video converter ready"}, events[1])

	for i := 0; i < 5; i++ {
		svc.Release()
	}
	assert.False(t, svc.IsLoaded())

	_, err := svc.Acquire(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.Loads())
	svc.Release()
	svc.Release()
	assert.False(t, svc.IsLoaded())
}

func TestEngineServiceLoadError(t *testing.T) {
	boom := errors.New("no ffmpeg")
	svc := NewEngineService(func(ctx context.Context) (Engine, error) { return nil, boom }, nil)
	_, err := svc.Acquire(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, svc.IsLoaded())
}

func TestFFmpegLoader(t *testing.T) {
	runner := ffmpeg.RunnerFunc(func(ctx context.Context, name string, args ...string) (ffmpeg.Result, error) {
		assert.Equal(t, "/opt/ffmpeg", name)
		return ffmpeg.Result{Stdout: "ffmpeg version 6.1"}, nil
	})
	e, err := FFmpegLoader("/opt/ffmpeg", runner, nil)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/opt/ffmpeg", e.(*FFmpegEngine).Path)

	failing := ffmpeg.RunnerFunc(func(ctx context.Context, name string, args ...string) (ffmpeg.Result, error) {
		return ffmpeg.Result{ExitCode: 1}, nil
	})
	_, err = FFmpegLoader("/opt/ffmpeg", failing, nil)(context.Background())
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	d, ok := parseDuration("  Duration: 00:01:02.50, start: 0.000000, bitrate: 1205 kb/s")
	require.True(t, ok)
	assert.InDelta(t, 62.5, d, 1e-9)

	_, ok = parseDuration("Stream #0:0: Video: h264")
	assert.False(t, ok)
}

func TestScanCRLF(t *testing.T) {
	var lines []string
	scanLines(strings.NewReader("frame=1\rframe=2\nlast"), func(s string) { lines = append(lines, s) })
	assert.Equal(t, []string{"frame=1", "frame=2", "last"}, lines)
}

func TestTranscodeArgs(t *testing.T) {
	assert.Equal(t, []string{
		"-i", "input.mov",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "28",
		"-pix_fmt", "yuv420p",
		"-vf", "scale=1920:-2",
		"-an",
		"-y",
		"output.mp4",
	}, TranscodeArgs("input.mov", DefaultTranscodeConfig()))
}

func TestFailureMessage(t *testing.T) {
	logs := []string{
		"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'input.mov':",
		"[mov,mp4,m4a,3gp,3g2,mj2 @ 0x1] moov atom not found",
		"input.mov: Invalid data found when processing input",
		"Conversion FAILED",
	}
	assert.Equal(t, "FFmpeg failed: input.mov: Invalid data found when processing input; Conversion FAILED", FailureMessage(logs))
	assert.Equal(t, "FFmpeg failed: Unknown error", FailureMessage([]string{"frame=10"}))
}

func TestDefaultTranscodeConfig(t *testing.T) {
	assert.Equal(t, TranscodeConfig{
		TargetCodec:   "h264",
		TargetProfile: "high",
		TargetLevel:   "4.0",
		MaxWidth:      1920,
		MaxHeight:     1080,
		VideoBitrate:  5_000_000,
		AudioBitrate:  128_000,
	}, DefaultTranscodeConfig())
}
