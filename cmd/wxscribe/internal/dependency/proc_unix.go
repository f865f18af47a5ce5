//go:build unix

package dependency

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// ConfigureProcessGroup starts cmd in its own process group and makes context
// cancellation kill the whole group, so helpers spawned by the tool die too.
func ConfigureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
}
