package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/slopify/slopify/packages/cli/internal/ffmpeg"
	"github.com/slopify/slopify/packages/cli/internal/proc_group"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

// Engine executes one transcoding command inside workDir. It returns the exit
// code; err is reserved for failures to run at all.
type Engine interface {
	Exec(ctx context.Context, workDir string, args []string, onLog func(string), onProgress func(float64)) (int, error)
}

// Loader prepares an Engine, for example by locating and checking a binary.
type Loader func(ctx context.Context) (Engine, error)

// FFmpegEngine runs the ffmpeg binary.
type FFmpegEngine struct {
	Path   string
	Logger *slog.Logger
}

// FFmpegLoader returns a Loader that verifies path runs before handing out an engine.
func FFmpegLoader(path string, runner ffmpeg.Runner, logger *slog.Logger) Loader {
	if path == "" {
		path = "ffmpeg"
	}
	if runner == nil {
		runner = ffmpeg.ExecRunner{}
	}
	return func(ctx context.Context) (Engine, error) {
		res, err := runner.Run(ctx, path, "-hide_banner", "-version")
		if err != nil {
			return nil, fmt.Errorf("failed to run %s: %w", path, err)
		}
		if res.ExitCode != 0 {
			return nil, fmt.Errorf("%s -version exited with %d", path, res.ExitCode)
		}
		return &FFmpegEngine{Path: path, Logger: util.ComponentLogger(logger, "ffmpeg_engine")}, nil
	}
}

var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// parseDuration returns seconds from an ffmpeg "Duration: HH:MM:SS.ss" log line.
func parseDuration(line string) (float64, bool) {
	m := durationRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, _ := strconv.ParseFloat(m[3], 64)
	return float64(h*3600+mins*60) + sec, true
}

// Exec runs ffmpeg with -progress on stdout. Stderr lines go to onLog; the
// input duration found in them turns out_time_us into a 0..1 fraction.
func (e *FFmpegEngine) Exec(ctx context.Context, workDir string, args []string, onLog func(string), onProgress func(float64)) (int, error) {
	full := append([]string{"-hide_banner", "-nostats", "-progress", "pipe:1"}, args...)
	cmd := exec.CommandContext(ctx, e.Path, full...)
	cmd.Dir = workDir
	procgroup.SetProcGrp(cmd)
	cmd.Cancel = func() error { return procgroup.Kill(cmd) }

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, err
	}
	if e.Logger != nil {
		e.Logger.Debug("Running ffmpeg", "dir", workDir, "args", full)
	}
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var (
		mu       sync.Mutex
		duration float64
		wg       sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stderr, func(line string) {
			if d, ok := parseDuration(line); ok {
				mu.Lock()
				if duration == 0 {
					duration = d
				}
				mu.Unlock()
			}
			if onLog != nil {
				onLog(line)
			}
		})
	}()
	go func() {
		defer wg.Done()
		scanLines(stdout, func(line string) {
			key, value, ok := strings.Cut(line, "=")
			if !ok || onProgress == nil {
				return
			}
			switch key {
			case "out_time_us":
				us, err := strconv.ParseInt(value, 10, 64)
				if err != nil || us < 0 {
					return
				}
				mu.Lock()
				d := duration
				mu.Unlock()
				if d > 0 {
					frac := float64(us) / 1e6 / d
					if frac > 1 {
						frac = 1
					}
					onProgress(frac)
				}
			case "progress":
				if value == "end" {
					onProgress(1)
				}
			}
		})
	}()
	wg.Wait()

	err = cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return exitErr.ExitCode(), nil
		}
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return -1, err
	}
	return 0, nil
}

func scanLines(r io.Reader, fn func(string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(scanCRLF)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			fn(line)
		}
	}
}

// scanCRLF splits on \n or \r; ffmpeg rewrites status lines with \r.
func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
