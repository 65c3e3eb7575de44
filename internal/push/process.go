package push

import (
	"bufio"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/rtsptool/rtsptool/internal/procgroup"
)

// Process is a launched, supervised program.
type Process interface {
	Pid() int
	// Output yields stdout and stderr lines merged, and is closed once the
	// process has exited and both streams are drained.
	Output() <-chan string
	// Wait blocks until the process has exited and returns its exit code.
	// A process killed by a signal reports -1.
	Wait() int
	// Done is closed when the process has exited.
	Done() <-chan struct{}
	Terminate() error
	Kill() error
}

// Launcher starts processes.
type Launcher interface {
	Launch(path string, args []string) (Process, error)
}

// ExecLauncher runs real commands in their own process group.
type ExecLauncher struct{}

func (ExecLauncher) Launch(path string, args []string) (Process, error) {
	cmd := exec.Command(path, args...)
	procgroup.SetProcGrp(cmd)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	// grandchildren holding the pipe must not keep Wait from returning
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return nil, errors.Wrapf(ErrLaunchFailure, "%s: %v", path, err)
	}

	p := &execProcess{
		cmd:  cmd,
		out:  make(chan string, 64),
		done: make(chan struct{}),
	}
	var scanned sync.WaitGroup
	scanned.Add(1)
	go func() {
		defer scanned.Done()
		scanLines(pr, p.out)
	}()
	go func() {
		err := cmd.Wait()
		p.code = exitCode(cmd, err)
		pw.Close()
		close(p.done)
		scanned.Wait()
		close(p.out)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	out  chan string
	done chan struct{}
	code int
}

func (p *execProcess) Pid() int              { return p.cmd.Process.Pid }
func (p *execProcess) Output() <-chan string { return p.out }
func (p *execProcess) Done() <-chan struct{} { return p.done }
func (p *execProcess) Terminate() error      { return procgroup.Terminate(p.cmd.Process) }
func (p *execProcess) Kill() error           { return procgroup.Kill(p.cmd.Process) }

func (p *execProcess) Wait() int {
	<-p.done
	return p.code
}

func scanLines(r io.ReadCloser, out chan<- string) {
	defer r.Close()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		out <- line
	}
	// keep the writer side unblocked if the scanner gave up on a long line
	_, _ = io.Copy(io.Discard, r)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
