//go:build windows

package installer

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// setInstallerProcAttr keeps the silent installer from flashing a console
func setInstallerProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNoWindow,
	}
}
