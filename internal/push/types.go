// Package push supervises an external ffmpeg process that restreams a
// camera or a file to an RTSP sink, restarting it after abnormal exits.
package push

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrLaunchFailure is reported when ffmpeg cannot be spawned or does not
	// come up within the start timeout.
	ErrLaunchFailure = errors.New("push process failed to start")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("push supervisor is closed")
)

// State is the lifecycle state of a push job.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateExitedClean
	StateExitedError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateExitedClean:
		return "exited"
	case StateExitedError:
		return "crashed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Classification decides which ffmpeg profile a job uses.
type Classification int

const (
	ClassDevice Classification = iota
	ClassFile
)

func (c Classification) String() string {
	if c == ClassFile {
		return "file"
	}
	return "device"
}

// Job is a snapshot of the supervised job.
type Job struct {
	ID       uuid.UUID
	Input    string
	Output   string
	Class    Classification
	State    State
	Active   bool
	PID      int
	Restarts int
	ExitCode int
}

// Event is anything a Supervisor emits on its Events channel.
type Event interface {
	isPushEvent()
}

// StatusEvent is a human readable status update. ffmpeg output lines are
// forwarded as StatusEvents with Output set.
type StatusEvent struct {
	JobID   uuid.UUID
	State   State
	Message string
	Output  bool
	// ExitCode is only meaningful when State is StateExitedClean or
	// StateExitedError.
	ExitCode int
	Err      error
}

// ResetRequiredEvent tells the caller its push toggle no longer reflects
// a running job.
type ResetRequiredEvent struct {
	JobID  uuid.UUID
	Reason string
}

func (StatusEvent) isPushEvent()        {}
func (ResetRequiredEvent) isPushEvent() {}
