// Package libav implements ingest.Backend on top of FFmpeg through go-astiav.
package libav

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/rtsptool/rtsptool/internal/ingest"
	"github.com/rtsptool/rtsptool/internal/util"
)

var logLevelOnce sync.Once

// Backend opens RTSP inputs with libavformat.
type Backend struct {
	logger *slog.Logger
}

// NewBackend returns a Backend. FFmpeg's own logging is limited to errors
// unless verbose logging is on.
func NewBackend() *Backend {
	logLevelOnce.Do(func() {
		if util.IsVerbose() {
			astiav.SetLogLevel(astiav.LogLevelWarning)
		} else {
			astiav.SetLogLevel(astiav.LogLevelError)
		}
	})
	return &Backend{logger: util.ComponentLogger("libav")}
}

func (b *Backend) Open(ctx context.Context, opts ingest.OpenOptions) (ingest.Input, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("could not allocate format context")
	}

	ii := astiav.NewIOInterrupter()
	fc.SetIOInterrupter(ii)
	stop := context.AfterFunc(ctx, ii.Interrupt)

	d := astiav.NewDictionary()
	defer d.Free()
	for k, v := range opts.Dictionary() {
		if err := d.Set(k, v, astiav.NewDictionaryFlags()); err != nil {
			stop()
			fc.Free()
			ii.Free()
			return nil, errors.Wrapf(err, "setting option %s", k)
		}
	}

	b.logger.Debug("Opening input", "url", opts.URL, "options", opts.Dictionary())
	if err := fc.OpenInput(opts.URL, nil, d); err != nil {
		stop()
		fc.Free()
		ii.Free()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return &input{
		ctx:    ctx,
		fc:     fc,
		ii:     ii,
		stop:   stop,
		pkt:    astiav.AllocPacket(),
		logger: b.logger,
	}, nil
}

type input struct {
	ctx    context.Context
	fc     *astiav.FormatContext
	ii     *astiav.IOInterrupter
	stop   func() bool
	pkt    *astiav.Packet
	logger *slog.Logger

	streams []ingest.StreamInfo
}

func (in *input) Probe() error {
	if err := in.fc.FindStreamInfo(nil); err != nil {
		return err
	}

	in.streams = in.streams[:0]
	for _, s := range in.fc.Streams() {
		cp := s.CodecParameters()
		in.streams = append(in.streams, ingest.StreamInfo{
			Index:     s.Index(),
			Type:      mediaType(cp.MediaType()),
			Codec:     cp.CodecID().String(),
			Extradata: cp.ExtraData(),
		})
	}
	return nil
}

func (in *input) Streams() []ingest.StreamInfo {
	return in.streams
}

func (in *input) stream(idx int) (*astiav.Stream, error) {
	for _, s := range in.fc.Streams() {
		if s.Index() == idx {
			return s, nil
		}
	}
	return nil, errors.Errorf("no stream with index %d", idx)
}

func (in *input) openCodec(s ingest.StreamInfo) (*astiav.CodecContext, error) {
	st, err := in.stream(s.Index)
	if err != nil {
		return nil, err
	}
	cp := st.CodecParameters()

	codec := astiav.FindDecoder(cp.CodecID())
	if codec == nil {
		return nil, errors.Errorf("no decoder for %s", cp.CodecID())
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.Errorf("could not allocate %s codec context", codec.Name())
	}
	if err := cp.ToCodecContext(cc); err != nil {
		cc.Free()
		return nil, errors.Wrap(err, "copying codec parameters")
	}
	if err := cc.Open(codec, nil); err != nil {
		cc.Free()
		return nil, errors.Wrapf(err, "opening %s decoder", codec.Name())
	}
	in.logger.Debug("Decoder opened", "stream", s.Index, "codec", codec.Name())
	return cc, nil
}

func (in *input) OpenVideoDecoder(s ingest.StreamInfo) (ingest.VideoDecoder, error) {
	cc, err := in.openCodec(s)
	if err != nil {
		return nil, err
	}
	return &videoDecoder{cc: cc, frame: astiav.AllocFrame()}, nil
}

func (in *input) OpenAudioDecoder(s ingest.StreamInfo) (ingest.AudioDecoder, error) {
	cc, err := in.openCodec(s)
	if err != nil {
		return nil, err
	}
	return &audioDecoder{cc: cc, frame: astiav.AllocFrame()}, nil
}

func (in *input) ReadPacket() (ingest.Packet, error) {
	if err := in.fc.ReadFrame(in.pkt); err != nil {
		if in.ctx.Err() != nil {
			return nil, in.ctx.Err()
		}
		if errors.Is(err, astiav.ErrEof) {
			return nil, io.EOF
		}
		return nil, err
	}
	return packet{in.pkt}, nil
}

func (in *input) Close() {
	in.stop()
	in.pkt.Free()
	in.fc.CloseInput()
	in.fc.Free()
	in.ii.Free()
}

type packet struct {
	pkt *astiav.Packet
}

func (p packet) StreamIndex() int { return p.pkt.StreamIndex() }
func (p packet) Release()         { p.pkt.Unref() }

func mediaType(t astiav.MediaType) ingest.MediaType {
	switch t {
	case astiav.MediaTypeVideo:
		return ingest.MediaTypeVideo
	case astiav.MediaTypeAudio:
		return ingest.MediaTypeAudio
	}
	return ingest.MediaTypeUnknown
}
