package ingest

import (
	"context"
	"strconv"
	"time"
)

// DefaultMaxDelay bounds how long the demuxer waits to reorder late RTP
// packets before giving up on them.
const DefaultMaxDelay = 100 * time.Millisecond

// MediaType is the kind of an elementary stream.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeVideo
	MediaTypeAudio
)

func (m MediaType) String() string {
	switch m {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	}
	return "unknown"
}

// StreamInfo describes one elementary stream of an opened input.
type StreamInfo struct {
	Index int
	Type  MediaType
	Codec string
	// Extradata is the codec's out-of-band configuration, if any.
	Extradata []byte
}

// OpenOptions is everything a Backend needs to open a source.
type OpenOptions struct {
	URL       string
	Transport Transport
	MaxDelay  time.Duration
	UserAgent string
}

// Dictionary renders the demuxer options. max_delay is in microseconds.
func (o OpenOptions) Dictionary() map[string]string {
	d := map[string]string{
		"rtsp_transport": o.Transport.String(),
	}
	if o.MaxDelay > 0 {
		d["max_delay"] = strconv.FormatInt(o.MaxDelay.Microseconds(), 10)
	}
	if o.UserAgent != "" {
		d["user_agent"] = o.UserAgent
	}
	return d
}

// Backend opens media inputs. Cancelling ctx must unblock any pending
// Open or ReadPacket call on inputs it returned.
type Backend interface {
	Open(ctx context.Context, opts OpenOptions) (Input, error)
}

// Input is an opened, demuxable source.
type Input interface {
	// Probe reads enough of the input to learn its streams.
	Probe() error
	Streams() []StreamInfo
	OpenVideoDecoder(s StreamInfo) (VideoDecoder, error)
	OpenAudioDecoder(s StreamInfo) (AudioDecoder, error)
	// ReadPacket returns the next demuxed packet. The packet is valid until
	// Release is called and must be released before the next read.
	ReadPacket() (Packet, error)
	Close()
}

// Packet is one demuxed unit.
type Packet interface {
	StreamIndex() int
	Release()
}

// Picture is a decoded video frame in the decoder's native format. It is
// only valid inside the Decode callback that produced it.
type Picture interface {
	Width() int
	Height() int
}

// VideoDecoder decodes packets of one video stream.
type VideoDecoder interface {
	// Decode feeds p and calls fn for every picture it yields.
	Decode(p Packet, fn func(Picture)) error
	// NewRGBAConverter builds a converter to packed RGBA at the stream's
	// native resolution.
	NewRGBAConverter() (PictureConverter, error)
	Close()
}

// PictureConverter turns native pictures into owned RGBA frames.
type PictureConverter interface {
	ToRGBA(p Picture) (DecodedFrame, error)
	Close()
}

// AudioFrame is a decoded audio frame. It is only valid inside the Decode
// callback that produced it.
type AudioFrame interface {
	SampleRate() int
	NbSamples() int
}

// AudioDecoder decodes packets of one audio stream.
type AudioDecoder interface {
	Decode(p Packet, fn func(AudioFrame)) error
	// NewSampleConverter builds a converter to the fixed PCM contract
	// from the layout, format and rate of first.
	NewSampleConverter(first AudioFrame) (SampleConverter, error)
	Close()
}

// SampleConverter is the resampling primitive behind AudioResampler.
type SampleConverter interface {
	// Delay returns the samples buffered inside the converter, expressed in
	// units of 1/base seconds.
	Delay(base int) int64
	// Convert resamples f into a buffer sized for maxSamples output samples.
	// It returns the packed output buffer and the number of samples actually
	// produced.
	Convert(f AudioFrame, maxSamples int) ([]byte, int, error)
	Close()
}
