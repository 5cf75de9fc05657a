//go:build windows

package common

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// HideConsole prevents child process from flashing console window.
func HideConsole(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NO_WINDOW
}
