//go:build unix

package browser

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in a session of its own, so signals sent to this
// program's terminal (Ctrl+C, hangup) do not reach the browser.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
