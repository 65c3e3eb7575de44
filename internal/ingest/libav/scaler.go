package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/rtsptool/rtsptool/internal/ingest"
)

// rgbaScaler converts pictures to packed RGBA at their own size. The scale
// context is rebuilt whenever the source geometry or format changes.
type rgbaScaler struct {
	ssc    *astiav.SoftwareScaleContext
	dst    *astiav.Frame
	srcW   int
	srcH   int
	srcPix astiav.PixelFormat
}

func (s *rgbaScaler) ensure(src *astiav.Frame) error {
	w, h, pf := src.Width(), src.Height(), src.PixelFormat()
	if s.ssc != nil && w == s.srcW && h == s.srcH && pf == s.srcPix {
		return nil
	}
	s.Close()

	ssc, err := astiav.CreateSoftwareScaleContext(w, h, pf, w, h, astiav.PixelFormatRgba, astiav.NewSoftwareScaleContextFlags())
	if err != nil {
		return errors.Wrapf(err, "creating scale context %dx%d %s", w, h, pf)
	}

	dst := astiav.AllocFrame()
	dst.SetWidth(w)
	dst.SetHeight(h)
	dst.SetPixelFormat(astiav.PixelFormatRgba)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		ssc.Free()
		return errors.Wrap(err, "allocating rgba frame")
	}

	s.ssc, s.dst = ssc, dst
	s.srcW, s.srcH, s.srcPix = w, h, pf
	return nil
}

func (s *rgbaScaler) ToRGBA(p ingest.Picture) (ingest.DecodedFrame, error) {
	pic, ok := p.(picture)
	if !ok {
		return ingest.DecodedFrame{}, errors.Errorf("unexpected picture type %T", p)
	}
	if err := s.ensure(pic.f); err != nil {
		return ingest.DecodedFrame{}, err
	}
	if err := s.ssc.ScaleFrame(pic.f, s.dst); err != nil {
		return ingest.DecodedFrame{}, errors.Wrap(err, "scaling frame")
	}

	n, err := s.dst.ImageBufferSize(1)
	if err != nil {
		return ingest.DecodedFrame{}, errors.Wrap(err, "sizing rgba buffer")
	}
	pix := make([]byte, n)
	if _, err := s.dst.ImageCopyToBuffer(pix, 1); err != nil {
		return ingest.DecodedFrame{}, errors.Wrap(err, "copying rgba buffer")
	}
	return ingest.DecodedFrame{Width: s.srcW, Height: s.srcH, Pix: pix}, nil
}

func (s *rgbaScaler) Close() {
	if s.dst != nil {
		s.dst.Free()
		s.dst = nil
	}
	if s.ssc != nil {
		s.ssc.Free()
		s.ssc = nil
	}
}
