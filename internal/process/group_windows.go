//go:build windows

// Package process manages subprocess lifecycles. On Windows there are
// no process groups in the Unix sense; Kill falls back to terminating
// the direct child.
package process

import "os/exec"

// Configure is a no-op on Windows.
func Configure(cmd *exec.Cmd) {}

// Kill terminates the command's process. Safe to call on a command
// that never started.
func Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
