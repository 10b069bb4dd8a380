package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/slopify/slopify/packages/cli/internal/util"
)

// TranscodeStage is a step of a conversion.
type TranscodeStage string

const (
	StageLoadingFFmpeg TranscodeStage = "loading-ffmpeg"
	StageTranscoding   TranscodeStage = "transcoding"
	StageComplete      TranscodeStage = "complete"
	StageError         TranscodeStage = "error"
)

const (
	MsgStarting         = "Starting conversion..."
	MsgConversionDone   = "Conversion complete"
	MsgCancelled        = "Transcoding cancelled"
	MsgNoOutput         = "FFmpeg did not produce output file"
	MsgEmptyOutput      = "FFmpeg produced empty output"
	msgUnknownError     = "Unknown error"
	outputName          = "output.mp4"
	convertedMIMEType   = "video/mp4"
	transcodeWorkPrefix = "slopify-transcode-"
)

// TranscodeProgress is reported while converting.
type TranscodeProgress struct {
	Stage      TranscodeStage
	Percentage int
	Message    string
}

// TranscodeConfig describes the conversion target.
type TranscodeConfig struct {
	TargetCodec   string
	TargetProfile string
	TargetLevel   string
	MaxWidth      int
	MaxHeight     int
	VideoBitrate  int
	AudioBitrate  int
}

// DefaultTranscodeConfig targets 1080p H.264 high profile.
func DefaultTranscodeConfig() TranscodeConfig {
	return TranscodeConfig{
		TargetCodec:   "h264",
		TargetProfile: "high",
		TargetLevel:   "4.0",
		MaxWidth:      1920,
		MaxHeight:     1080,
		VideoBitrate:  5_000_000,
		AudioBitrate:  128_000,
	}
}

// TranscodeOutcome is either a converted File or an Error message.
type TranscodeOutcome struct {
	Success        bool
	File           *File
	OriginalSize   int64
	TranscodedSize int64
	WasDownscaled  bool
	Error          string
}

func failure(msg string) TranscodeOutcome {
	return TranscodeOutcome{Error: msg}
}

// TranscodeArgs returns the engine arguments for converting input<ext> into output.mp4.
func TranscodeArgs(inputName string, cfg TranscodeConfig) []string {
	return []string{
		"-i", inputName,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "28",
		"-pix_fmt", "yuv420p",
		"-vf", "scale=" + strconv.Itoa(cfg.MaxWidth) + ":-2",
		"-an",
		"-y",
		outputName,
	}
}

// FailureMessage builds the error from the engine's diagnostic lines.
func FailureMessage(logs []string) string {
	var matched []string
	for _, line := range logs {
		l := strings.ToLower(line)
		if strings.Contains(l, "error") || strings.Contains(l, "invalid") || strings.Contains(l, "failed") {
			matched = append(matched, line)
		}
	}
	detail := strings.Join(matched, "; ")
	if detail == "" {
		detail = msgUnknownError
	}
	return "FFmpeg failed: " + detail
}

// Transcoder converts files with an engine from its EngineService.
type Transcoder struct {
	Service *EngineService
	// WorkRoot holds per-job work directories; empty means os.TempDir.
	WorkRoot string
	// OutputDir receives converted files; empty means next to the input.
	OutputDir string
	Logger    *slog.Logger
}

// NewTranscoder creates a transcoder.
func NewTranscoder(service *EngineService, logger *slog.Logger) *Transcoder {
	return &Transcoder{Service: service, Logger: util.ComponentLogger(logger, "transcoder")}
}

// TranscodeJob is an in-flight conversion.
type TranscodeJob struct {
	cancelled atomic.Bool
	cancelCtx context.CancelFunc
	done      chan struct{}
	outcome   TranscodeOutcome

	mu   sync.Mutex
	logs []string
}

// Cancel marks the job cancelled. Later progress is dropped and the outcome
// is a failure.
func (j *TranscodeJob) Cancel() {
	j.cancelled.Store(true)
	j.cancelCtx()
}

// Cancelled reports whether Cancel was called or the context ended.
func (j *TranscodeJob) Cancelled() bool { return j.cancelled.Load() }

// Wait blocks until the job finishes.
func (j *TranscodeJob) Wait() TranscodeOutcome {
	<-j.done
	return j.outcome
}

// Logs returns the engine output collected for this job.
func (j *TranscodeJob) Logs() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.logs...)
}

func (j *TranscodeJob) appendLog(line string) {
	j.mu.Lock()
	j.logs = append(j.logs, line)
	j.mu.Unlock()
}

// TranscodeVideo converts f and waits for the outcome.
func (t *Transcoder) TranscodeVideo(ctx context.Context, f *File, cfg TranscodeConfig, onProgress func(TranscodeProgress)) TranscodeOutcome {
	return t.Start(ctx, f, cfg, onProgress).Wait()
}

// Start begins converting f in the background.
func (t *Transcoder) Start(ctx context.Context, f *File, cfg TranscodeConfig, onProgress func(TranscodeProgress)) *TranscodeJob {
	ctx, cancel := context.WithCancel(ctx)
	job := &TranscodeJob{cancelCtx: cancel, done: make(chan struct{})}

	emit := func(p TranscodeProgress) {
		if job.cancelled.Load() || ctx.Err() != nil || onProgress == nil {
			return
		}
		onProgress(p)
	}

	go func() {
		defer close(job.done)
		defer cancel()

		out := t.run(ctx, job, f, cfg, emit)
		if ctx.Err() != nil {
			job.cancelled.Store(true)
		}
		if job.cancelled.Load() {
			if out.Success && out.File != nil {
				os.Remove(out.File.Path)
			}
			out = failure(MsgCancelled)
		} else if !out.Success {
			t.logger().Error("Transcoding failed", "file", f.Name, "error", out.Error)
			emit(TranscodeProgress{Stage: StageError, Percentage: 0, Message: out.Error})
		}
		job.outcome = out
	}()
	return job
}

func (t *Transcoder) logger() *slog.Logger {
	if t.Logger == nil {
		return util.ComponentLogger(nil, "transcoder")
	}
	return t.Logger
}

func (t *Transcoder) run(ctx context.Context, job *TranscodeJob, f *File, cfg TranscodeConfig, emit func(TranscodeProgress)) TranscodeOutcome {
	if cfg.MaxWidth <= 0 {
		cfg = DefaultTranscodeConfig()
	}

	engine, err := t.Service.Acquire(ctx, emit)
	if err != nil {
		return failure(err.Error())
	}
	defer t.Service.Release()

	emit(TranscodeProgress{Stage: StageTranscoding, Percentage: 0, Message: MsgStarting})

	work, err := os.MkdirTemp(t.WorkRoot, transcodeWorkPrefix)
	if err != nil {
		return failure(fmt.Sprintf("failed to create work directory: %v", err))
	}
	defer os.RemoveAll(work)

	inputName := "input" + f.Extension()
	if err := copyFile(f.Path, filepath.Join(work, inputName)); err != nil {
		return failure(fmt.Sprintf("failed to stage input: %v", err))
	}

	onProgress := func(frac float64) {
		pct := int(math.Round(frac * 100))
		emit(TranscodeProgress{Stage: StageTranscoding, Percentage: pct, Message: fmt.Sprintf("Converting: %d%%", pct)})
	}
	code, err := engine.Exec(ctx, work, TranscodeArgs(inputName, cfg), job.appendLog, onProgress)
	if err != nil {
		return failure(err.Error())
	}
	if code != 0 {
		return failure(FailureMessage(job.Logs()))
	}

	produced := filepath.Join(work, outputName)
	info, err := os.Stat(produced)
	if err != nil {
		return failure(MsgNoOutput)
	}
	if info.Size() == 0 {
		return failure(MsgEmptyOutput)
	}

	dir := t.OutputDir
	if dir == "" {
		dir = filepath.Dir(f.Path)
	}
	dest := filepath.Join(dir, ConvertedName(f.Name))
	if err := moveFile(produced, dest); err != nil {
		return failure(fmt.Sprintf("failed to save converted file: %v", err))
	}

	emit(TranscodeProgress{Stage: StageComplete, Percentage: 100, Message: MsgConversionDone})
	t.logger().Info("Transcoding complete", "file", f.Name, "original", f.Size, "converted", info.Size())

	return TranscodeOutcome{
		Success: true,
		File: &File{
			Path:     dest,
			Name:     filepath.Base(dest),
			MIMEType: convertedMIMEType,
			Size:     info.Size(),
		},
		OriginalSize:   f.Size,
		TranscodedSize: info.Size(),
		WasDownscaled:  true,
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// moveFile renames src to dst, copying when they sit on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
