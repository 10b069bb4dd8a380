//go:build !windows

// Package procgroup starts ffmpeg children in their own process group. A
// terminal interrupt then reaches only slopify, which cancels its work and
// stops the children itself.
package procgroup

import (
	"os/exec"
	"syscall"
)

func SetProcGrp(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// Kill stops cmd's whole process group, falling back to the process alone.
func Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
