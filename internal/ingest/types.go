package ingest

import (
	"image"
	"strings"

	"github.com/pkg/errors"
)

// Transport selects how RTSP media is delivered.
type Transport string

const (
	TransportTCP Transport = "tcp"
	TransportUDP Transport = "udp"
)

// ParseTransport accepts "tcp" or "udp" in any case.
func ParseTransport(s string) (Transport, error) {
	switch Transport(strings.ToLower(strings.TrimSpace(s))) {
	case TransportTCP:
		return TransportTCP, nil
	case TransportUDP:
		return TransportUDP, nil
	}
	return "", errors.Wrapf(ErrInvalidTransport, "%q", s)
}

func (t Transport) String() string {
	return string(t)
}

// StreamSource is what a session pulls from.
type StreamSource struct {
	URL       string
	Transport Transport
}

// Fixed PCM contract for every AudioChunk.
const (
	OutputSampleRate     = 44100
	OutputChannels       = 2
	OutputBytesPerSample = 2
)

// DecodedFrame is one picture as packed RGBA, 4 bytes per pixel, no row
// padding. A is always 0xff.
type DecodedFrame struct {
	Width  int
	Height int
	Pix    []byte
}

// Stride is the number of bytes per row.
func (f DecodedFrame) Stride() int {
	return f.Width * 4
}

// Image returns an image.RGBA sharing the frame's pixel buffer.
func (f DecodedFrame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Stride(),
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Clone returns a frame with its own copy of the pixel buffer.
func (f DecodedFrame) Clone() DecodedFrame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	f.Pix = pix
	return f
}

// AudioChunk is interleaved signed 16-bit little-endian PCM.
type AudioChunk struct {
	SampleRate int
	Channels   int
	Data       []byte
}

// Samples returns the number of per-channel samples in the chunk.
func (c AudioChunk) Samples() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Data) / (c.Channels * OutputBytesPerSample)
}
