package ingest

import "github.com/pkg/errors"

var (
	// ErrBusy is returned when an operation needs an idle worker.
	ErrBusy = errors.New("ingest worker is running")
	// ErrNotConfigured is returned by Start before any Configure.
	ErrNotConfigured = errors.New("no stream source configured")
	// ErrInvalidTransport is returned for transports other than tcp/udp.
	ErrInvalidTransport = errors.New("invalid transport")
)

// ErrorKind classifies ingest failures.
type ErrorKind int

const (
	// OpenFailure ends the session; reported once.
	OpenFailure ErrorKind = iota + 1
	// ProbeFailure ends the session; reported once.
	ProbeFailure
	// DecoderUnavailable disables one track, the session continues.
	DecoderUnavailable
	// DecodeError skips one packet.
	DecodeError
	// ReadFailure is treated as end of stream.
	ReadFailure
	// SetupFailure covers allocation failures while building the session.
	SetupFailure
)

func (k ErrorKind) String() string {
	switch k {
	case OpenFailure:
		return "open failure"
	case ProbeFailure:
		return "probe failure"
	case DecoderUnavailable:
		return "decoder unavailable"
	case DecodeError:
		return "decode error"
	case ReadFailure:
		return "read failure"
	case SetupFailure:
		return "setup failure"
	}
	return "unknown"
}
