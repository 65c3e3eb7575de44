//go:build !windows

package procgroup

import (
	"os"
	"os/exec"
	"syscall"
)

// SetProcGrp starts cmd in its own process group so signals reach every
// child it spawns.
func SetProcGrp(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// Terminate asks the process group led by p to exit.
func Terminate(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

// Kill force-kills the process group led by p.
func Kill(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	pgid, err := syscall.Getpgid(p.Pid)
	if err != nil {
		return p.Signal(sig)
	}
	return syscall.Kill(-pgid, sig)
}
