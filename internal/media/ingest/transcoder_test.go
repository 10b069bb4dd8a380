package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopify/slopify/packages/cli/internal/ffmpeg"
)

type fakeEngine struct {
	exitCode int
	output   []byte
	noOutput bool
	logs     []string
	progress []float64
	started  chan struct{}
	block    bool
	args     []string
}

func (e *fakeEngine) Exec(ctx context.Context, dir string, args []string, onLog func(string), onProgress func(float64)) (int, error) {
	e.args = args
	for _, l := range e.logs {
		onLog(l)
	}
	for _, p := range e.progress {
		onProgress(p)
	}
	if e.block {
		close(e.started)
		<-ctx.Done()
		onProgress(0.9)
		return -1, ctx.Err()
	}
	if !e.noOutput {
		if err := os.WriteFile(filepath.Join(dir, "output.mp4"), e.output, 0o644); err != nil {
			return -1, err
		}
	}
	return e.exitCode, nil
}

func newTestTranscoder(t *testing.T, engine *fakeEngine) (*Transcoder, *File) {
	t.Helper()
	dir := t.TempDir()
	src := writeFile(t, dir, "clip.mov", "original bytes")
	svc := NewEngineService(func(ctx context.Context) (Engine, error) { return engine, nil }, nil)
	tr := NewTranscoder(svc, nil)
	tr.WorkRoot = t.TempDir()
	tr.OutputDir = t.TempDir()
	return tr, &File{Path: src, Name: "clip.mov", MIMEType: "video/quicktime", Size: 14}
}

func collect(events *[]TranscodeProgress) func(TranscodeProgress) {
	return func(p TranscodeProgress) { *events = append(*events, p) }
}

func TestTranscodeVideo(t *testing.T) {
	engine := &fakeEngine{output: []byte("converted"), progress: []float64{0.5, 1}}
	tr, f := newTestTranscoder(t, engine)

	var events []TranscodeProgress
	out := tr.TranscodeVideo(context.Background(), f, DefaultTranscodeConfig(), collect(&events))
	require.True(t, out.Success, out.Error)

	assert.Equal(t, "clip_converted.mp4", out.File.Name)
	assert.Equal(t, "video/mp4", out.File.MIMEType)
	assert.Equal(t, filepath.Join(tr.OutputDir, "clip_converted.mp4"), out.File.Path)
	assert.Equal(t, int64(14), out.OriginalSize)
	assert.Equal(t, int64(9), out.TranscodedSize)
	assert.True(t, out.WasDownscaled)
	assert.Equal(t, "input.mov", engine.args[1])

	data, err := os.ReadFile(out.File.Path)
	require.NoError(t, err)
	assert.Equal(t, "converted", string(data))

	assert.Equal(t, []TranscodeProgress{
		{Stage: StageLoadingFFmpeg, Percentage: 0, Message: "Downloading video converter..."},
		{Stage: StageLoadingFFmpeg, Percentage: 100, Message: "Video converter ready"},
		{Stage: StageTranscoding, Percentage: 0, Message: "Starting conversion..."},
		{Stage: StageTranscoding, Percentage: 50, Message: "Converting: 50%"},
		{Stage: StageTranscoding, Percentage: 100, Message: "Converting: 100%"},
		{Stage: StageComplete, Percentage: 100, Message: "Conversion complete"},
	}, events)

	work, err := os.ReadDir(tr.WorkRoot)
	require.NoError(t, err)
	assert.Empty(t, work, "work directory must be removed")
	assert.False(t, tr.Service.IsLoaded(), "engine is released after the job")
}

func TestTranscodeVideoFailures(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
		want   string
	}{
		{
			name: "non-zero exit with diagnostics",
			engine: &fakeEngine{exitCode: 1, logs: []string{
				"Input #0, mov, from 'input.mov':",
				"input.mov: Invalid data found when processing input",
			}},
			want: "FFmpeg failed: input.mov: Invalid data found when processing input",
		},
		{
			name:   "non-zero exit without diagnostics",
			engine: &fakeEngine{exitCode: 69, logs: []string{"frame=1"}},
			want:   "FFmpeg failed: Unknown error",
		},
		{
			name:   "missing output",
			engine: &fakeEngine{noOutput: true},
			want:   "FFmpeg did not produce output file",
		},
		{
			name:   "empty output",
			engine: &fakeEngine{output: []byte{}},
			want:   "FFmpeg produced empty output",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, f := newTestTranscoder(t, tt.engine)
			var events []TranscodeProgress
			out := tr.TranscodeVideo(context.Background(), f, DefaultTranscodeConfig(), collect(&events))
			assert.False(t, out.Success)
			assert.Equal(t, tt.want, out.Error)
			require.NotEmpty(t, events)
			assert.Equal(t, TranscodeProgress{Stage: StageError, Percentage: 0, Message: tt.want}, events[len(events)-1])
		})
	}
}

func TestTranscodeJobCancel(t *testing.T) {
	engine := &fakeEngine{block: true, progress: []float64{0.2}, started: make(chan struct{})}
	tr, f := newTestTranscoder(t, engine)

	var events []TranscodeProgress
	job := tr.Start(context.Background(), f, DefaultTranscodeConfig(), collect(&events))
	<-engine.started
	job.Cancel()
	out := job.Wait()

	assert.False(t, out.Success)
	assert.Equal(t, "Transcoding cancelled", out.Error)
	assert.True(t, job.Cancelled())
	for _, e := range events {
		assert.NotEqual(t, "Converting: 90%", e.Message)
		assert.NotEqual(t, StageError, e.Stage)
	}
	assert.Equal(t, TranscodeProgress{Stage: StageTranscoding, Percentage: 20, Message: "Converting: 20%"}, events[len(events)-1])
}

func TestTranscodeContextCancel(t *testing.T) {
	engine := &fakeEngine{block: true, started: make(chan struct{})}
	tr, f := newTestTranscoder(t, engine)

	ctx, cancel := context.WithCancel(context.Background())
	job := tr.Start(ctx, f, DefaultTranscodeConfig(), nil)
	<-engine.started
	cancel()
	assert.Equal(t, "Transcoding cancelled", job.Wait().Error)
}

func TestIngestConvertsUndecodableFiles(t *testing.T) {
	engine := &fakeEngine{output: []byte("converted")}
	tr, f := newTestTranscoder(t, engine)

	reader := MetadataReaderFunc(func(ctx context.Context, path string) (ffmpeg.Metadata, error) {
		if filepath.Base(path) == "clip_converted.mp4" {
			return ffmpeg.Metadata{Duration: 12, Width: 1920, Height: 1080}, nil
		}
		return ffmpeg.Metadata{}, assert.AnError
	})
	in := NewIngester(NewValidator(reader), &DecodeChecker{Reader: reader}, tr, nil)

	res := in.Ingest(context.Background(), f, nil)
	require.True(t, res.OK())
	assert.True(t, res.Transcoded)
	assert.Equal(t, "clip_converted.mp4", res.File.Name)
	assert.Equal(t, float64(12), res.Validation.Metadata.Duration)
}

func TestIngestKeepsOriginalErrorWhenConversionFails(t *testing.T) {
	engine := &fakeEngine{exitCode: 1, logs: []string{"Error while decoding stream"}}
	tr, f := newTestTranscoder(t, engine)

	reader := &countingReader{err: assert.AnError}
	in := NewIngester(NewValidator(reader), &DecodeChecker{Reader: reader}, tr, nil)

	res := in.Ingest(context.Background(), f, nil)
	assert.False(t, res.OK())
	assert.False(t, res.Transcoded)
	assert.Equal(t, KindFormat, res.Validation.Error.Kind)
	assert.Equal(t, "Failed to read video file.", res.Validation.Error.Message)
	assert.Equal(t, "Conversion was attempted but failed: FFmpeg failed: Error while decoding stream", res.ConversionError)
}

func TestIngestSkipsConversionForOtherErrors(t *testing.T) {
	engine := &fakeEngine{}
	tr, _ := newTestTranscoder(t, engine)
	in := NewIngester(NewValidator(&countingReader{}), nil, tr, nil)

	res := in.Ingest(context.Background(), &File{Name: "big.mp4", MIMEType: "video/mp4", Size: MaxFileSizeBytes + 1}, nil)
	assert.Equal(t, KindSize, res.Validation.Error.Kind)
	assert.Nil(t, res.Outcome)
	assert.Nil(t, engine.args)
}
