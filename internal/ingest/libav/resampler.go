package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/rtsptool/rtsptool/internal/ingest"
)

// sampleConverter wraps libswresample. The context configures itself from
// the first converted frame.
type sampleConverter struct {
	swr       *astiav.SoftwareResampleContext
	converted bool
}

func (c *sampleConverter) Delay(base int) int64 {
	// swr_get_delay is undefined before the context is configured
	if !c.converted {
		return 0
	}
	return c.swr.Delay(int64(base))
}

func (c *sampleConverter) Convert(f ingest.AudioFrame, maxSamples int) ([]byte, int, error) {
	src, ok := f.(audioFrame)
	if !ok {
		return nil, 0, errors.Errorf("unexpected frame type %T", f)
	}

	dst := astiav.AllocFrame()
	defer dst.Free()
	dst.SetChannelLayout(astiav.ChannelLayoutStereo)
	dst.SetSampleFormat(astiav.SampleFormatS16)
	dst.SetSampleRate(ingest.OutputSampleRate)
	dst.SetNbSamples(maxSamples)
	if err := dst.AllocBuffer(0); err != nil {
		return nil, 0, errors.Wrap(err, "allocating output samples")
	}

	if err := c.swr.ConvertFrame(src.f, dst); err != nil {
		return nil, 0, err
	}
	c.converted = true

	produced := dst.NbSamples()
	if produced == 0 {
		return nil, 0, nil
	}
	b, err := dst.Data().Bytes(1)
	if err != nil {
		return nil, 0, errors.Wrap(err, "reading output samples")
	}
	return b, produced, nil
}

func (c *sampleConverter) Close() {
	c.swr.Free()
}
