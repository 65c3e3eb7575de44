package ingest

import (
	"github.com/pkg/errors"
)

// AudioResampler converts decoded audio to 44.1 kHz stereo S16LE. One is
// built per session from the first decoded audio frame; later frames are
// assumed to share its layout, format and rate.
type AudioResampler struct {
	conv   SampleConverter
	inRate int
}

// NewAudioResampler builds the resampler for a session from its first audio
// frame.
func NewAudioResampler(dec AudioDecoder, first AudioFrame) (*AudioResampler, error) {
	if first.SampleRate() <= 0 {
		return nil, errors.Errorf("invalid input sample rate %d", first.SampleRate())
	}
	conv, err := dec.NewSampleConverter(first)
	if err != nil {
		return nil, errors.Wrap(err, "creating sample converter")
	}
	return &AudioResampler{
		conv:   conv,
		inRate: first.SampleRate(),
	}, nil
}

// Resample converts one frame. The chunk holds exactly the samples the
// conversion produced, which may be fewer than were allocated for.
func (r *AudioResampler) Resample(f AudioFrame) (AudioChunk, error) {
	maxSamples := OutputSampleCount(r.conv.Delay(r.inRate), f.NbSamples(), r.inRate, OutputSampleRate)

	buf, produced, err := r.conv.Convert(f, maxSamples)
	if err != nil {
		return AudioChunk{}, errors.Wrap(err, "converting samples")
	}

	size := produced * OutputChannels * OutputBytesPerSample
	if produced < 0 || size > len(buf) {
		return AudioChunk{}, errors.Errorf("converter produced %d samples into a %d byte buffer", produced, len(buf))
	}

	data := make([]byte, size)
	copy(data, buf[:size])

	return AudioChunk{
		SampleRate: OutputSampleRate,
		Channels:   OutputChannels,
		Data:       data,
	}, nil
}

// Close releases the underlying converter.
func (r *AudioResampler) Close() {
	r.conv.Close()
}

// OutputSampleCount is the upper bound of output samples for nbSamples new
// input samples plus delay already buffered, rescaled from inRate to
// outRate and rounded up.
func OutputSampleCount(delay int64, nbSamples, inRate, outRate int) int {
	if inRate <= 0 || outRate <= 0 {
		return 0
	}
	n := delay + int64(nbSamples)
	if n <= 0 {
		return 0
	}
	num := n * int64(outRate)
	return int((num + int64(inRate) - 1) / int64(inRate))
}
