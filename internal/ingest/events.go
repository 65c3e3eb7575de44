package ingest

import "fmt"

// Event is anything a Worker emits on its Events channel.
type Event interface {
	isIngestEvent()
}

// VideoFrameEvent carries one converted picture.
type VideoFrameEvent struct {
	Seq   uint64
	Frame DecodedFrame
}

// RedChannelFrameEvent carries the red-only copy of the VideoFrameEvent
// with the same Seq. It is always emitted right after it.
type RedChannelFrameEvent struct {
	Seq   uint64
	Frame DecodedFrame
}

// AudioChunkEvent carries one resampled audio frame.
type AudioChunkEvent struct {
	Chunk AudioChunk
}

// StreamErrorEvent reports a failure that ended the session.
type StreamErrorEvent struct {
	Source StreamSource
	Kind   ErrorKind
	Err    error
}

// Message is the human readable form shown to users.
func (e StreamErrorEvent) Message() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// SessionEndedEvent is emitted once per session when the worker is idle again.
type SessionEndedEvent struct {
	Source StreamSource
}

func (VideoFrameEvent) isIngestEvent()      {}
func (RedChannelFrameEvent) isIngestEvent() {}
func (AudioChunkEvent) isIngestEvent()      {}
func (StreamErrorEvent) isIngestEvent()     {}
func (SessionEndedEvent) isIngestEvent()    {}
