//go:build !unix

package dependency

import (
	"os/exec"
	"time"
)

// ConfigureProcessGroup kills only the direct child on cancellation; process
// groups are a unix concept.
func ConfigureProcessGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = 5 * time.Second
}
