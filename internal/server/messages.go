package server

import (
	"time"

	"github.com/rtsptool/rtsptool/internal/ingest"
	"github.com/rtsptool/rtsptool/internal/push"
)

// Message is one entry of the WebSocket event feed. Frames are summarised,
// pixels and samples are never sent.
type Message struct {
	Type      string    `json:"type"`
	Time      time.Time `json:"time"`
	Seq       uint64    `json:"seq,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Samples   int       `json:"samples,omitempty"`
	URL       string    `json:"url,omitempty"`
	Transport string    `json:"transport,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	JobID     string    `json:"jobId,omitempty"`
	State     string    `json:"state,omitempty"`
	ExitCode  *int      `json:"exitCode,omitempty"`
	Output    bool      `json:"output,omitempty"`
}

// Message types
const (
	TypeVideoFrame   = "video_frame"
	TypeRedFrame     = "red_frame"
	TypeAudioChunk   = "audio_chunk"
	TypeStreamError  = "stream_error"
	TypeSessionEnded = "session_ended"
	TypePushStatus   = "push_status"
	TypePushReset    = "push_reset"
)

// IngestMessage converts an ingest event for the feed.
func IngestMessage(e ingest.Event) (Message, bool) {
	msg := Message{Time: time.Now()}
	switch e := e.(type) {
	case ingest.VideoFrameEvent:
		msg.Type = TypeVideoFrame
		msg.Seq, msg.Width, msg.Height = e.Seq, e.Frame.Width, e.Frame.Height
	case ingest.RedChannelFrameEvent:
		msg.Type = TypeRedFrame
		msg.Seq, msg.Width, msg.Height = e.Seq, e.Frame.Width, e.Frame.Height
	case ingest.AudioChunkEvent:
		msg.Type = TypeAudioChunk
		msg.Samples = e.Chunk.Samples()
	case ingest.StreamErrorEvent:
		msg.Type = TypeStreamError
		msg.URL, msg.Transport = e.Source.URL, e.Source.Transport.String()
		msg.Kind = e.Kind.String()
		msg.Message = e.Message()
	case ingest.SessionEndedEvent:
		msg.Type = TypeSessionEnded
		msg.URL, msg.Transport = e.Source.URL, e.Source.Transport.String()
	default:
		return Message{}, false
	}
	return msg, true
}

// PushMessage converts a push event for the feed.
func PushMessage(e push.Event) (Message, bool) {
	msg := Message{Time: time.Now()}
	switch e := e.(type) {
	case push.StatusEvent:
		msg.Type = TypePushStatus
		msg.JobID = e.JobID.String()
		msg.State = e.State.String()
		msg.Message = e.Message
		msg.Output = e.Output
		if e.State == push.StateExitedClean || e.State == push.StateExitedError {
			code := e.ExitCode
			msg.ExitCode = &code
		}
	case push.ResetRequiredEvent:
		msg.Type = TypePushReset
		msg.JobID = e.JobID.String()
		msg.Message = e.Reason
	default:
		return Message{}, false
	}
	return msg, true
}
