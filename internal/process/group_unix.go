//go:build !windows

// Package process manages subprocess lifecycles. latex can fork helper
// processes; killing only the direct child on cancellation would leave
// them running, so commands get their own process group and the whole
// group is killed together.
package process

import (
	"os/exec"
	"syscall"
)

// Configure places cmd in its own process group.
// Must be called before cmd starts.
func Configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// Kill terminates cmd's entire process group. Safe to call on a
// command that never started.
func Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	// Negative PID targets the group set up by Configure.
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
