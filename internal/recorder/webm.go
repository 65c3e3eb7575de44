// Package recorder persists ingest output: PCM audio into WebM and
// red-channel frames as PNG snapshots.
package recorder

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
	"github.com/pkg/errors"

	"github.com/rtsptool/rtsptool/internal/ingest"
	"github.com/rtsptool/rtsptool/internal/util"
)

const pcmCodecID = "A_PCM/INT/LIT"

// PCMWriter writes AudioChunks as a single uncompressed WebM audio track.
// Block timestamps come from the number of samples written so far.
type PCMWriter struct {
	mu      sync.Mutex
	track   webm.BlockWriteCloser
	logger  *slog.Logger
	samples uint64
	blocks  uint64

	// set from the muxer goroutine
	fatal atomic.Pointer[error]
}

// CreatePCMFile creates path and returns a writer recording into it.
func CreatePCMFile(path string) (*PCMWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", path)
	}
	w, err := NewPCMWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// NewPCMWriter writes the container header to w. w is closed by Close.
func NewPCMWriter(w io.WriteCloser) (*PCMWriter, error) {
	p := &PCMWriter{logger: util.ComponentLogger("recorder")}

	tracks, err := webm.NewSimpleBlockWriter(w, []webm.TrackEntry{
		{
			Name:        "Audio",
			TrackNumber: 1,
			TrackUID:    1,
			CodecID:     pcmCodecID,
			TrackType:   2,
			Audio: &webm.Audio{
				SamplingFrequency: ingest.OutputSampleRate,
				Channels:          ingest.OutputChannels,
			},
		},
	}, mkvcore.WithOnFatalHandler(func(err error) {
		p.logger.Warn("WebM writer failed", "error", err)
		p.fatal.Store(&err)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "creating webm writer")
	}
	p.track = tracks[0]
	return p, nil
}

// WriteChunk appends one chunk. Chunks must follow the fixed PCM contract.
func (p *PCMWriter) WriteChunk(c ingest.AudioChunk) error {
	if c.SampleRate != ingest.OutputSampleRate || c.Channels != ingest.OutputChannels {
		return errors.Errorf("unsupported chunk format %d Hz x %d", c.SampleRate, c.Channels)
	}
	if len(c.Data) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.track == nil {
		return io.ErrClosedPipe
	}
	if err := p.fatal.Load(); err != nil {
		return *err
	}

	ts := int64(p.samples * 1000 / ingest.OutputSampleRate)
	if _, err := p.track.Write(true, ts, c.Data); err != nil {
		return errors.Wrap(err, "writing audio block")
	}
	p.samples += uint64(c.Samples())
	p.blocks++

	if p.blocks%500 == 0 {
		p.logger.Debug("WebM audio progress", "blocks", p.blocks, "duration", p.duration().Truncate(time.Millisecond))
	}
	return nil
}

// Duration is the amount of audio written so far.
func (p *PCMWriter) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration()
}

func (p *PCMWriter) duration() time.Duration {
	return time.Duration(p.samples) * time.Second / ingest.OutputSampleRate
}

// Close finalizes the container and closes the underlying writer.
func (p *PCMWriter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.track == nil {
		return nil
	}
	err := p.track.Close()
	p.track = nil
	p.logger.Info("Audio recording closed", "blocks", p.blocks, "duration", p.duration().Truncate(time.Millisecond))
	return err
}
