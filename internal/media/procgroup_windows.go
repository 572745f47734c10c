//go:build windows

package media

import (
	"os/exec"
	"syscall"
)

// SetProcessGroup is a no-op on Windows.
func SetProcessGroup(cmd *exec.Cmd) {}

// KillGroup maps SIGKILL to Process.Kill; other signals are no-ops since
// Windows has no reliable graceful termination via signals.
func KillGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if sig == syscall.SIGKILL {
		return cmd.Process.Kill()
	}
	return nil
}
