package shutdown

import (
	"os/exec"

	"github.com/sirupsen/logrus"
)

// DefaultCommand powers off a Raspberry Pi immediately.
var DefaultCommand = []string{"sudo", "shutdown", "now"}

// CommandHalter runs an OS command to power off. The command is started
// and reaped in the background; its result is only logged.
type CommandHalter struct {
	Command []string
	Log     logrus.FieldLogger
}

// Halt starts the command without waiting for it.
func (h *CommandHalter) Halt() {
	if len(h.Command) == 0 {
		h.Log.Error("no shutdown command configured")
		return
	}
	cmd := exec.Command(h.Command[0], h.Command[1:]...)
	if err := cmd.Start(); err != nil {
		h.Log.WithError(err).Error("start shutdown command")
		return
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			h.Log.WithError(err).Warn("shutdown command failed")
		}
	}()
}
