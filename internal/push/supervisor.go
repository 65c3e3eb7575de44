package push

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/rtsptool/rtsptool/internal/events"
	"github.com/rtsptool/rtsptool/internal/util"
)

const (
	DefaultRestartDelay = 3000 * time.Millisecond
	DefaultGracePeriod  = 1000 * time.Millisecond
	DefaultStartTimeout = 3000 * time.Millisecond
)

// Supervisor owns at most one ffmpeg push process. All job state lives on
// a single loop goroutine; public methods post commands to it.
type Supervisor struct {
	launcher     Launcher
	ffmpegPath   string
	goos         string
	clock        clock.Clock
	restartDelay time.Duration
	gracePeriod  time.Duration
	startTimeout time.Duration
	logger       *slog.Logger

	events *events.Mailbox[Event]
	inbox  *events.Mailbox[message]
	cmds   chan func()
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once

	// loop-owned
	gen          uint64
	job          *Job
	proc         Process
	launching    chan launchedMsg
	startTimer   clock.Timer
	restartTimer clock.Timer
}

type message interface{}

type launchedMsg struct {
	gen  uint64
	proc Process
	err  error
}

type outputMsg struct {
	gen  uint64
	line string
}

type exitMsg struct {
	gen  uint64
	code int
}

// Option configures a Supervisor.
type Option func(*Supervisor)

func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) { s.launcher = l }
}

// WithFFmpegPath sets the ffmpeg binary. Defaults to "ffmpeg" on PATH.
func WithFFmpegPath(path string) Option {
	return func(s *Supervisor) { s.ffmpegPath = path }
}

func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

func WithRestartDelay(d time.Duration) Option {
	return func(s *Supervisor) { s.restartDelay = d }
}

func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) { s.gracePeriod = d }
}

func WithStartTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.startTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// withGOOS overrides the platform used to pick the capture format.
func withGOOS(goos string) Option {
	return func(s *Supervisor) { s.goos = goos }
}

// NewSupervisor creates an idle supervisor and starts its loop.
func NewSupervisor(opts ...Option) *Supervisor {
	s := &Supervisor{
		launcher:     ExecLauncher{},
		ffmpegPath:   "ffmpeg",
		goos:         runtime.GOOS,
		clock:        clock.RealClock{},
		restartDelay: DefaultRestartDelay,
		gracePeriod:  DefaultGracePeriod,
		startTimeout: DefaultStartTimeout,
		logger:       util.ComponentLogger("push"),
		events:       events.NewMailbox[Event](),
		inbox:        events.NewMailbox[message](),
		cmds:         make(chan func()),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

// Events delivers StatusEvent and ResetRequiredEvent values. It is closed
// by Close.
func (s *Supervisor) Events() <-chan Event {
	return s.events.C()
}

// StartPush replaces any current job with a new one restreaming input to
// output. The previous process has exited by the time it returns.
func (s *Supervisor) StartPush(input, output string) error {
	input = strings.TrimSpace(input)
	output = strings.TrimSpace(output)
	if input == "" || output == "" {
		return errors.New("push input and output are required")
	}
	return s.do(func() {
		s.retire()
		class := Classify(input)
		s.job = &Job{
			ID:     uuid.New(),
			Input:  input,
			Output: output,
			Class:  class,
			Active: true,
		}
		s.logger.Info("Push job created", "job", s.job.ID, "input", input, "output", output, "class", class.String())
		s.launch()
	})
}

// StopPush terminates the current job, if any, and cancels a pending
// restart.
func (s *Supervisor) StopPush() error {
	return s.do(func() {
		if s.job == nil || (!s.job.Active && s.proc == nil) {
			return
		}
		s.retire()
		s.status(StateIdle, "Push stopped", nil)
	})
}

// Job returns a snapshot of the current job.
func (s *Supervisor) Job() (Job, bool) {
	var (
		job Job
		ok  bool
	)
	err := s.do(func() {
		if s.job != nil {
			job, ok = *s.job, true
		}
	})
	if err != nil {
		return Job{}, false
	}
	return job, ok
}

// Close stops the job, ends the loop and closes Events.
func (s *Supervisor) Close() {
	s.once.Do(func() {
		_ = s.do(s.retire)
		close(s.quit)
		<-s.done

		s.inbox.Close()
		for range s.inbox.C() {
		}
		s.events.Close()
	})
}

func (s *Supervisor) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.cmds <- func() {
		defer close(finished)
		fn()
	}:
	case <-s.done:
		return ErrClosed
	}
	<-finished
	return nil
}

func (s *Supervisor) loop() {
	defer close(s.done)

	for {
		select {
		case fn := <-s.cmds:
			fn()
		case m := <-s.launching:
			s.launching = nil
			s.onLaunched(m)
		case m := <-s.inbox.C():
			s.handle(m)
		case <-timerC(s.startTimer):
			s.startTimer = nil
			s.onStartTimeout()
		case <-timerC(s.restartTimer):
			s.restartTimer = nil
			s.onRestartTimer()
		case <-s.quit:
			return
		}
	}
}

func (s *Supervisor) handle(m message) {
	switch m := m.(type) {
	case outputMsg:
		if m.gen != s.gen || s.job == nil {
			return
		}
		s.logger.Debug("ffmpeg", "job", s.job.ID, "line", m.line)
		s.emit(StatusEvent{JobID: s.job.ID, State: s.job.State, Message: m.line, Output: true})
	case exitMsg:
		if m.gen != s.gen || s.job == nil {
			return
		}
		s.onExit(m.code)
	}
}

// launch starts the current job's process in the background. The result
// arrives on s.launching.
func (s *Supervisor) launch() {
	s.gen++
	gen := s.gen
	job := s.job
	job.State = StateStarting
	job.PID = 0

	args := BuildArgs(job.Class, job.Input, job.Output, s.goos)
	s.logger.Debug("Launching ffmpeg", "job", job.ID, "path", s.ffmpegPath, "args", args)
	s.status(StateStarting, fmt.Sprintf("Starting %s push: %s -> %s", job.Class, job.Input, job.Output), nil)

	s.startTimer = s.clock.NewTimer(s.startTimeout)
	path := s.ffmpegPath
	result := make(chan launchedMsg, 1)
	s.launching = result
	go func() {
		p, err := s.launcher.Launch(path, args)
		result <- launchedMsg{gen: gen, proc: p, err: err}
	}()
}

// awaitLaunch blocks until the pending launch reports or the start timeout
// expires, and stops whatever process it produced.
func (s *Supervisor) awaitLaunch() {
	if s.startTimer == nil {
		s.startTimer = s.clock.NewTimer(s.startTimeout)
	}
	select {
	case m := <-s.launching:
		s.launching = nil
		if m.proc != nil {
			s.terminate(m.proc)
		}
	case <-s.startTimer.C():
		s.startTimer = nil
		s.logger.Warn("Pending launch did not finish before the start timeout")
		s.abandonLaunch()
	}
}

// abandonLaunch stops waiting for the pending launch. A process that still
// appears is killed.
func (s *Supervisor) abandonLaunch() {
	ch := s.launching
	if ch == nil {
		return
	}
	s.launching = nil
	go func() {
		if m := <-ch; m.proc != nil {
			discard(m.proc)
		}
	}()
}

func (s *Supervisor) onLaunched(m launchedMsg) {
	if m.gen != s.gen || s.job == nil || s.job.State != StateStarting {
		if m.proc != nil {
			s.logger.Debug("Discarding superseded process", "pid", m.proc.Pid())
			discard(m.proc)
		}
		return
	}
	stopTimer(&s.startTimer)

	if m.err != nil {
		s.launchFailed(m.err)
		return
	}

	s.proc = m.proc
	s.job.State = StateRunning
	s.job.PID = m.proc.Pid()
	s.logger.Info("Push process started", "job", s.job.ID, "pid", s.job.PID)
	s.status(StateRunning, fmt.Sprintf("Push started (pid %d)", s.job.PID), nil)

	go s.watch(m.gen, m.proc)
}

// watch forwards output and the exit code. It always drains the process,
// the loop drops messages from superseded generations.
func (s *Supervisor) watch(gen uint64, p Process) {
	for line := range p.Output() {
		s.inbox.Push(outputMsg{gen: gen, line: line})
	}
	s.inbox.Push(exitMsg{gen: gen, code: p.Wait()})
}

func (s *Supervisor) onStartTimeout() {
	if s.job == nil || s.job.State != StateStarting {
		return
	}
	s.launchFailed(errors.Errorf("not running after %s", s.startTimeout))
}

func (s *Supervisor) launchFailed(cause error) {
	err := cause
	if !errors.Is(err, ErrLaunchFailure) {
		err = errors.Wrap(ErrLaunchFailure, cause.Error())
	}
	s.gen++
	s.proc = nil
	s.job.Active = false
	s.abandonLaunch()

	s.logger.Error("Push launch failed", "job", s.job.ID, "error", err)
	s.status(StateExitedError, err.Error(), err)
	s.job.State = StateIdle
	s.emit(ResetRequiredEvent{JobID: s.job.ID, Reason: err.Error()})
}

func (s *Supervisor) onExit(code int) {
	job := s.job
	s.proc = nil
	job.PID = 0
	job.ExitCode = code

	if code == 0 {
		job.State = StateExitedClean
		job.Active = false
		s.logger.Info("Push process finished", "job", job.ID)
		s.emit(StatusEvent{JobID: job.ID, State: job.State, Message: "Push process exited with code 0", ExitCode: 0})
		return
	}

	job.State = StateExitedError
	s.logger.Warn("Push process exited abnormally", "job", job.ID, "code", code)
	if job.Active {
		s.logger.Info("Scheduling push restart", "job", job.ID, "delay", s.restartDelay)
		stopTimer(&s.restartTimer)
		s.restartTimer = s.clock.NewTimer(s.restartDelay)
	}

	s.emit(StatusEvent{
		JobID:    job.ID,
		State:    job.State,
		Message:  fmt.Sprintf("Push process exited with code %d", code),
		ExitCode: code,
	})
	s.emit(ResetRequiredEvent{JobID: job.ID, Reason: fmt.Sprintf("exit code %d", code)})
}

func (s *Supervisor) onRestartTimer() {
	if s.job == nil || !s.job.Active || s.proc != nil {
		return
	}
	s.job.Restarts++
	s.logger.Info("Restarting push", "job", s.job.ID, "attempt", s.job.Restarts)
	s.launch()
}

// retire detaches and stops whatever the current job is running, including
// a process that is still being launched. It blocks until the process has
// exited.
func (s *Supervisor) retire() {
	stopTimer(&s.restartTimer)
	s.gen++

	if s.job == nil {
		stopTimer(&s.startTimer)
		s.abandonLaunch()
		return
	}
	s.job.Active = false

	if s.launching != nil {
		s.job.State = StateStopping
		s.awaitLaunch()
	}
	stopTimer(&s.startTimer)

	if p := s.proc; p != nil {
		s.proc = nil
		s.job.State = StateStopping
		s.terminate(p)
	}
	s.job.State = StateIdle
	s.job.PID = 0
}

func (s *Supervisor) terminate(p Process) {
	logger := s.logger.With("pid", p.Pid())
	if err := p.Terminate(); err != nil {
		logger.Debug("Terminate failed", "error", err)
	}

	t := s.clock.NewTimer(s.gracePeriod)
	defer t.Stop()

	select {
	case <-p.Done():
		logger.Info("Push process stopped")
	case <-t.C():
		logger.Warn("Push process did not exit in time, killing", "grace", s.gracePeriod)
		if err := p.Kill(); err != nil {
			logger.Debug("Kill failed", "error", err)
		}
		<-p.Done()
	}
}

func (s *Supervisor) status(state State, msg string, err error) {
	if s.job == nil {
		return
	}
	s.emit(StatusEvent{JobID: s.job.ID, State: state, Message: msg, Err: err})
}

func (s *Supervisor) emit(e Event) {
	s.events.Push(e)
}

// discard kills a process nobody supervises and drains it.
func discard(p Process) {
	_ = p.Kill()
	go func() {
		for range p.Output() {
		}
	}()
}

func timerC(t clock.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C()
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
