package push

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

const sink = "rtsp://localhost:8554/live"

func newTestSupervisor(t *testing.T) (*Supervisor, *fakeLauncher, *testingclock.FakeClock) {
	t.Helper()
	l := newFakeLauncher()
	c := testingclock.NewFakeClock(time.Now())
	s := NewSupervisor(WithLauncher(l), WithClock(c), WithFFmpegPath("/usr/bin/ffmpeg"), withGOOS("linux"))
	t.Cleanup(s.Close)
	return s, l, c
}

func TestStartPushReplacesRunningJob(t *testing.T) {
	s, l, _ := newTestSupervisor(t)

	require.NoError(t, s.StartPush("0", sink))
	first := waitLaunch(t, l)
	waitFor(t, func() bool {
		job, _ := s.Job()
		return job.State == StateRunning
	})

	require.NoError(t, s.StartPush("1", sink))
	assert.True(t, first.exited(), "previous process must be gone when StartPush returns")
	terminated, killed := first.state()
	assert.True(t, terminated)
	assert.False(t, killed)

	second := waitLaunch(t, l)
	assert.Contains(t, second.args, "/dev/video1")
	assert.False(t, second.exited())

	job, ok := s.Job()
	require.True(t, ok)
	assert.Equal(t, "1", job.Input)
	assert.True(t, job.Active)
	assert.Equal(t, 2, l.count())

	// the retired process' exit is not reported as a crash
	waitFor(t, func() bool {
		job, _ := s.Job()
		return job.State == StateRunning
	})
	job, _ = s.Job()
	assert.Zero(t, job.Restarts)
}

func TestStartPushWaitsForPendingLaunch(t *testing.T) {
	s, l, _ := newTestSupervisor(t)
	release := make(chan struct{})
	l.block = release

	require.NoError(t, s.StartPush("0", sink))

	replaced := make(chan error, 1)
	go func() { replaced <- s.StartPush("1", sink) }()

	select {
	case err := <-replaced:
		t.Fatalf("StartPush returned before the pending launch finished: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	first := waitLaunch(t, l)
	select {
	case err := <-replaced:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("StartPush did not return")
	}

	assert.True(t, first.exited(), "pending process must be stopped when StartPush returns")
	terminated, killed := first.state()
	assert.True(t, terminated)
	assert.False(t, killed, "pending process gets the grace period")

	second := waitLaunch(t, l)
	assert.Contains(t, second.args, "/dev/video1")
	waitFor(t, func() bool {
		job, _ := s.Job()
		return job.State == StateRunning && job.Input == "1"
	})
	assert.False(t, second.exited())
	assert.Equal(t, 2, l.count())
}

func TestCleanExitDoesNotRestart(t *testing.T) {
	s, l, c := newTestSupervisor(t)

	require.NoError(t, s.StartPush("usb-cam", sink))
	p := waitLaunch(t, l)
	p.exit(0)

	ev := nextEvent(t, s, func(e StatusEvent) bool { return e.State == StateExitedClean })
	assert.Equal(t, 0, ev.ExitCode)

	job, _ := s.Job()
	assert.False(t, job.Active)
	assert.Equal(t, StateExitedClean, job.State)

	c.Step(10 * time.Second)
	assertNoLaunch(t, l)
}

func TestAbnormalExitRestartsAfterDelay(t *testing.T) {
	s, l, c := newTestSupervisor(t)

	require.NoError(t, s.StartPush("camera", sink))
	first := waitLaunch(t, l)
	first.out <- "[rtsp @ 0x1] Connection refused"
	first.exit(1)

	line := nextEvent(t, s, func(e StatusEvent) bool { return e.Output })
	assert.Equal(t, "[rtsp @ 0x1] Connection refused", line.Message)

	status := nextEvent(t, s, func(e StatusEvent) bool { return e.State == StateExitedError })
	assert.Equal(t, 1, status.ExitCode)
	reset := nextEvent[ResetRequiredEvent](t, s, nil)
	assert.Equal(t, status.JobID, reset.JobID)

	job, _ := s.Job()
	assert.True(t, job.Active)

	c.Step(DefaultRestartDelay - time.Millisecond)
	assertNoLaunch(t, l)

	c.Step(time.Millisecond)
	second := waitLaunch(t, l)
	assert.Equal(t, first.args, second.args)
	assert.Equal(t, first.path, second.path)

	waitFor(t, func() bool {
		job, _ := s.Job()
		return job.State == StateRunning
	})
	job, _ = s.Job()
	assert.Equal(t, 1, job.Restarts)
	assert.Equal(t, status.JobID, job.ID)
}

func TestStopCancelsPendingRestart(t *testing.T) {
	s, l, c := newTestSupervisor(t)

	require.NoError(t, s.StartPush("camera", sink))
	waitLaunch(t, l).exit(1)
	nextEvent[ResetRequiredEvent](t, s, nil)

	require.NoError(t, s.StopPush())
	c.Step(DefaultRestartDelay)
	assertNoLaunch(t, l)

	job, _ := s.Job()
	assert.False(t, job.Active)
	assert.Equal(t, StateIdle, job.State)
}

func TestNumericInputUsesDeviceProfile(t *testing.T) {
	s, l, _ := newTestSupervisor(t)

	require.NoError(t, s.StartPush("0", sink))
	p := waitLaunch(t, l)

	assert.Equal(t, "/usr/bin/ffmpeg", p.path)
	assert.Equal(t, BuildArgs(ClassDevice, "0", sink, "linux"), p.args)
	assert.Equal(t, []string{"-f", "v4l2", "-i", "/dev/video0"}, p.args[3:7])

	job, _ := s.Job()
	assert.Equal(t, ClassDevice, job.Class)
}

func TestKilledFileJobRelaunchesSamePair(t *testing.T) {
	s, l, c := newTestSupervisor(t)

	clip := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("not really mp4"), 0o644))

	require.NoError(t, s.StartPush(clip, sink))
	first := waitLaunch(t, l)
	assert.Equal(t, BuildArgs(ClassFile, clip, sink, "linux"), first.args)

	// killed from outside the supervisor
	first.exit(-1)

	status := nextEvent(t, s, func(e StatusEvent) bool { return e.State == StateExitedError })
	assert.Equal(t, -1, status.ExitCode)
	nextEvent[ResetRequiredEvent](t, s, nil)

	_, _ = s.Job()
	c.Step(DefaultRestartDelay)
	second := waitLaunch(t, l)
	assert.Equal(t, first.args, second.args)
}

func TestLaunchErrorClearsJob(t *testing.T) {
	s, l, _ := newTestSupervisor(t)
	l.err = errors.New("exec: \"ffmpeg\": executable file not found in $PATH")

	require.NoError(t, s.StartPush("camera", sink))

	status := nextEvent(t, s, func(e StatusEvent) bool { return e.Err != nil })
	assert.ErrorIs(t, status.Err, ErrLaunchFailure)
	assert.Contains(t, status.Message, "executable file not found")
	nextEvent[ResetRequiredEvent](t, s, nil)

	job, _ := s.Job()
	assert.False(t, job.Active)
	assert.Equal(t, StateIdle, job.State)
}

func TestStartTimeoutIsLaunchFailure(t *testing.T) {
	s, l, c := newTestSupervisor(t)
	release := make(chan struct{})
	l.block = release

	require.NoError(t, s.StartPush("camera", sink))
	c.Step(DefaultStartTimeout)

	status := nextEvent(t, s, func(e StatusEvent) bool { return e.Err != nil })
	assert.ErrorIs(t, status.Err, ErrLaunchFailure)
	nextEvent[ResetRequiredEvent](t, s, nil)

	// a process that shows up late is killed, not adopted
	close(release)
	late := waitLaunch(t, l)
	waitFor(t, func() bool {
		_, killed := late.state()
		return killed
	})

	job, _ := s.Job()
	assert.False(t, job.Active)
	assert.Zero(t, job.PID)
}

func TestStopEscalatesAfterGracePeriod(t *testing.T) {
	s, l, c := newTestSupervisor(t)
	l.ignoreTerm = true

	require.NoError(t, s.StartPush("camera", sink))
	p := waitLaunch(t, l)
	waitFor(t, func() bool {
		job, _ := s.Job()
		return job.State == StateRunning
	})

	stopped := make(chan error, 1)
	go func() { stopped <- s.StopPush() }()

	waitFor(t, func() bool {
		terminated, _ := p.state()
		return terminated && c.HasWaiters()
	})
	select {
	case <-stopped:
		t.Fatal("StopPush returned before the process exited")
	default:
	}

	c.Step(DefaultGracePeriod)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("StopPush did not return after the grace period")
	}

	_, killed := p.state()
	assert.True(t, killed)
	assert.True(t, p.exited())
}

func TestStopPushWhenIdle(t *testing.T) {
	s, l, _ := newTestSupervisor(t)

	assert.NoError(t, s.StopPush())
	assert.NoError(t, s.StopPush())
	_, ok := s.Job()
	assert.False(t, ok)
	assert.Zero(t, l.count())
}

func TestStartPushValidatesArguments(t *testing.T) {
	s, _, _ := newTestSupervisor(t)

	assert.Error(t, s.StartPush("", sink))
	assert.Error(t, s.StartPush("camera", "  "))
}

func TestClosedSupervisor(t *testing.T) {
	s, l, _ := newTestSupervisor(t)

	require.NoError(t, s.StartPush("camera", sink))
	p := waitLaunch(t, l)

	s.Close()
	assert.True(t, p.exited())
	assert.ErrorIs(t, s.StartPush("camera", sink), ErrClosed)
	assert.ErrorIs(t, s.StopPush(), ErrClosed)

	for range s.Events() {
	}
}
