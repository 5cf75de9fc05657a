//go:build !windows

package common

import (
	"os/exec"
)

// HideConsole prevents child process from flashing console window.
func HideConsole(_ *exec.Cmd) {}
