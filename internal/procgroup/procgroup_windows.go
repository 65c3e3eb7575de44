//go:build windows

package procgroup

import (
	"os"
	"os/exec"
	"syscall"
)

func SetProcGrp(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}

// Terminate has no graceful form on Windows; console processes in a new
// group do not receive Ctrl-C from us.
func Terminate(p *os.Process) error {
	return p.Kill()
}

func Kill(p *os.Process) error {
	return p.Kill()
}
