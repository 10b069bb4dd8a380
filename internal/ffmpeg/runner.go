// Package ffmpeg wraps the ffmpeg and ffprobe binaries the media pipeline runs on.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/slopify/slopify/packages/cli/internal/proc_group"
)

// Result is the captured outcome of one process execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command and captures stdout/stderr and exit code. A non-zero
// exit status is reported both in the result and as an *exec.ExitError.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	procgroup.SetProcGrp(cmd)
	cmd.Cancel = func() error { return procgroup.Kill(cmd) }
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, name string, args ...string) (Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return f(ctx, name, args...)
}
