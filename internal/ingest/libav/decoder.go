package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/rtsptool/rtsptool/internal/ingest"
)

// decode sends p to cc and hands every frame it yields to fn. The frame is
// unreferenced after fn returns.
func decode(cc *astiav.CodecContext, frame *astiav.Frame, p ingest.Packet, fn func(*astiav.Frame)) error {
	pkt, ok := p.(packet)
	if !ok {
		return errors.Errorf("unexpected packet type %T", p)
	}
	if err := cc.SendPacket(pkt.pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return errors.Wrap(err, "sending packet")
	}
	for {
		if err := cc.ReceiveFrame(frame); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return errors.Wrap(err, "receiving frame")
		}
		fn(frame)
		frame.Unref()
	}
}

type picture struct {
	f *astiav.Frame
}

func (p picture) Width() int  { return p.f.Width() }
func (p picture) Height() int { return p.f.Height() }

type videoDecoder struct {
	cc    *astiav.CodecContext
	frame *astiav.Frame
}

func (d *videoDecoder) Decode(p ingest.Packet, fn func(ingest.Picture)) error {
	return decode(d.cc, d.frame, p, func(f *astiav.Frame) {
		fn(picture{f})
	})
}

func (d *videoDecoder) NewRGBAConverter() (ingest.PictureConverter, error) {
	return &rgbaScaler{}, nil
}

func (d *videoDecoder) Close() {
	d.frame.Free()
	d.cc.Free()
}

type audioFrame struct {
	f *astiav.Frame
}

func (a audioFrame) SampleRate() int { return a.f.SampleRate() }
func (a audioFrame) NbSamples() int  { return a.f.NbSamples() }

type audioDecoder struct {
	cc    *astiav.CodecContext
	frame *astiav.Frame
}

func (d *audioDecoder) Decode(p ingest.Packet, fn func(ingest.AudioFrame)) error {
	return decode(d.cc, d.frame, p, func(f *astiav.Frame) {
		fn(audioFrame{f})
	})
}

func (d *audioDecoder) NewSampleConverter(first ingest.AudioFrame) (ingest.SampleConverter, error) {
	if _, ok := first.(audioFrame); !ok {
		return nil, errors.Errorf("unexpected frame type %T", first)
	}
	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		return nil, errors.New("could not allocate resample context")
	}
	return &sampleConverter{swr: swr}, nil
}

func (d *audioDecoder) Close() {
	d.frame.Free()
	d.cc.Free()
}
