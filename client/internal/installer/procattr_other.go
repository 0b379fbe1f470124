//go:build !windows

package installer

import "os/exec"

func setInstallerProcAttr(cmd *exec.Cmd) {}
