package ingest

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

type fakePacket struct {
	index int
	bad   bool

	mu       sync.Mutex
	released bool
}

func (p *fakePacket) StreamIndex() int { return p.index }

func (p *fakePacket) Release() {
	p.mu.Lock()
	p.released = true
	p.mu.Unlock()
}

type fakeBackend struct {
	mu      sync.Mutex
	openErr error

	// blockOpen holds Open until the session is cancelled.
	blockOpen bool
	input     *fakeInput
	opened    []OpenOptions
	openedC   chan struct{}
}

func newFakeBackend(in *fakeInput) *fakeBackend {
	return &fakeBackend{input: in, openedC: make(chan struct{}, 16)}
}

func (b *fakeBackend) Open(ctx context.Context, opts OpenOptions) (Input, error) {
	b.mu.Lock()
	b.opened = append(b.opened, opts)
	in := b.input
	err := b.openErr
	block := b.blockOpen
	b.mu.Unlock()

	b.openedC <- struct{}{}
	if block {
		<-ctx.Done()
		return nil, errors.Wrap(ctx.Err(), "open interrupted")
	}
	if err != nil {
		return nil, err
	}
	in.ctx = ctx
	return in, nil
}

func (b *fakeBackend) openOptions() []OpenOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]OpenOptions(nil), b.opened...)
}

type fakeInput struct {
	ctx      context.Context
	streams  []StreamInfo
	probeErr error
	videoErr error
	audioErr error

	// live inputs block after the queued packets until the session is
	// cancelled; others report EOF.
	live    bool
	packets []*fakePacket

	width, height int

	// blockProbe holds Probe until the session is cancelled.
	blockProbe bool

	mu        sync.Mutex
	closed    bool
	vdec      *fakeVideoDecoder
	adec      *fakeAudioDecoder
	readCount int
}

func (in *fakeInput) Probe() error {
	if in.blockProbe {
		<-in.ctx.Done()
		return errors.Wrap(in.ctx.Err(), "probe interrupted")
	}
	return in.probeErr
}

func (in *fakeInput) Streams() []StreamInfo { return in.streams }

func (in *fakeInput) OpenVideoDecoder(s StreamInfo) (VideoDecoder, error) {
	if in.videoErr != nil {
		return nil, in.videoErr
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.vdec = &fakeVideoDecoder{width: in.width, height: in.height}
	return in.vdec, nil
}

func (in *fakeInput) OpenAudioDecoder(s StreamInfo) (AudioDecoder, error) {
	if in.audioErr != nil {
		return nil, in.audioErr
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.adec = &fakeAudioDecoder{}
	return in.adec, nil
}

func (in *fakeInput) ReadPacket() (Packet, error) {
	in.mu.Lock()
	in.readCount++
	if len(in.packets) > 0 {
		p := in.packets[0]
		in.packets = in.packets[1:]
		in.mu.Unlock()
		return p, nil
	}
	in.mu.Unlock()

	if in.live {
		<-in.ctx.Done()
		return nil, in.ctx.Err()
	}
	return nil, io.EOF
}

func (in *fakeInput) Close() {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
}

func (in *fakeInput) isClosed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.closed
}

type fakePicture struct{ w, h int }

func (p fakePicture) Width() int  { return p.w }
func (p fakePicture) Height() int { return p.h }

type fakeVideoDecoder struct {
	width, height int

	mu     sync.Mutex
	closed bool
	conv   *fakeConverter
}

func (d *fakeVideoDecoder) Decode(p Packet, fn func(Picture)) error {
	if p.(*fakePacket).bad {
		return errors.New("invalid data found when processing input")
	}
	fn(fakePicture{w: d.width, h: d.height})
	return nil
}

func (d *fakeVideoDecoder) NewRGBAConverter() (PictureConverter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conv = &fakeConverter{}
	return d.conv, nil
}

func (d *fakeVideoDecoder) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

type fakeConverter struct {
	mu     sync.Mutex
	calls  int
	closed bool
}

func (c *fakeConverter) ToRGBA(p Picture) (DecodedFrame, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()

	pix := make([]byte, p.Width()*p.Height()*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = byte(i/4 + n)
		pix[i+1] = byte(i/4*3 + 1)
		pix[i+2] = byte(i/4*5 + 2)
		pix[i+3] = 0xff
	}
	return DecodedFrame{Width: p.Width(), Height: p.Height(), Pix: pix}, nil
}

func (c *fakeConverter) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

type fakeAudioFrame struct{ rate, n int }

func (f fakeAudioFrame) SampleRate() int { return f.rate }
func (f fakeAudioFrame) NbSamples() int  { return f.n }

type fakeAudioDecoder struct {
	mu         sync.Mutex
	closed     bool
	converters []*fakeSampleConverter
}

func (d *fakeAudioDecoder) Decode(p Packet, fn func(AudioFrame)) error {
	if p.(*fakePacket).bad {
		return errors.New("corrupt audio packet")
	}
	fn(fakeAudioFrame{rate: 48000, n: 1024})
	return nil
}

func (d *fakeAudioDecoder) NewSampleConverter(first AudioFrame) (SampleConverter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &fakeSampleConverter{delay: 32, shortfall: 5}
	d.converters = append(d.converters, c)
	return c, nil
}

func (d *fakeAudioDecoder) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// fakeSampleConverter always produces shortfall samples fewer than asked.
type fakeSampleConverter struct {
	delay     int64
	shortfall int

	mu     sync.Mutex
	asked  []int
	bases  []int
	closed bool
}

func (c *fakeSampleConverter) Delay(base int) int64 {
	c.mu.Lock()
	c.bases = append(c.bases, base)
	c.mu.Unlock()
	return c.delay
}

func (c *fakeSampleConverter) Convert(f AudioFrame, maxSamples int) ([]byte, int, error) {
	c.mu.Lock()
	c.asked = append(c.asked, maxSamples)
	c.mu.Unlock()

	buf := make([]byte, maxSamples*OutputChannels*OutputBytesPerSample)
	for i := range buf {
		buf[i] = byte(i)
	}
	return buf, maxSamples - c.shortfall, nil
}

func (c *fakeSampleConverter) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func packets(idx ...int) []*fakePacket {
	out := make([]*fakePacket, len(idx))
	for i, n := range idx {
		out[i] = &fakePacket{index: n}
	}
	return out
}

func dualTrack() []StreamInfo {
	return []StreamInfo{
		{Index: 0, Type: MediaTypeVideo, Codec: "h264"},
		{Index: 1, Type: MediaTypeAudio, Codec: "aac"},
	}
}

// collect reads events until the session ends.
func collect(t *testing.T, w *Worker) []Event {
	t.Helper()

	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-w.Events():
			if !ok {
				return out
			}
			out = append(out, e)
			if _, ended := e.(SessionEndedEvent); ended {
				return out
			}
		case <-timeout:
			t.Fatalf("session did not end, got %d events", len(out))
			return nil
		}
	}
}

func waitOpened(t *testing.T, b *fakeBackend) {
	t.Helper()
	select {
	case <-b.openedC:
	case <-time.After(5 * time.Second):
		t.Fatal("backend was never opened")
	}
}
