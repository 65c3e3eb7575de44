package ingest

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/rtsptool/rtsptool/internal/events"
	"github.com/rtsptool/rtsptool/internal/util"
)

// Worker runs at most one ingest session at a time on its own goroutine,
// locked to an OS thread for the lifetime of the session.
type Worker struct {
	backend   Backend
	maxDelay  time.Duration
	userAgent string
	logger    *slog.Logger
	events    *events.Mailbox[Event]

	mu            sync.Mutex
	source        *StreamSource
	running       bool
	stopRequested bool
	cancel        context.CancelFunc
	done          chan struct{}

	stats workerStats
}

// Option configures a Worker.
type Option func(*Worker)

// WithMaxDelay overrides DefaultMaxDelay.
func WithMaxDelay(d time.Duration) Option {
	return func(w *Worker) {
		w.maxDelay = d
	}
}

// WithUserAgent sets the User-Agent sent in RTSP requests.
func WithUserAgent(ua string) Option {
	return func(w *Worker) {
		w.userAgent = ua
	}
}

// WithLogger sets the logger used by the worker.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = l
	}
}

// NewWorker creates an idle worker.
func NewWorker(backend Backend, opts ...Option) *Worker {
	w := &Worker{
		backend:  backend,
		maxDelay: DefaultMaxDelay,
		logger:   util.ComponentLogger("ingest"),
		events:   events.NewMailbox[Event](),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Events is the worker's only outbound channel. It is closed by Close.
func (w *Worker) Events() <-chan Event {
	return w.events.C()
}

// Configure sets the source for the next session.
func (w *Worker) Configure(url string, transport Transport) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("stream url is empty")
	}
	transport, err := ParseTransport(string(transport))
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrBusy
	}
	w.source = &StreamSource{URL: url, Transport: transport}
	return nil
}

// Source returns the configured source, if any.
func (w *Worker) Source() (StreamSource, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.source == nil {
		return StreamSource{}, false
	}
	return *w.source, true
}

// Running reports whether a session is live.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start begins a session in the background and returns immediately.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrBusy
	}
	if w.source == nil {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.running = true
	w.stopRequested = false
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.run(ctx, *w.source, w.done)
	return nil
}

// Stop asks the session to end and waits until it has released all of its
// resources. It is a no-op on an idle worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.stopRequested = true
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
}

// Close stops any session and closes the Events channel once every pending
// event has been delivered.
func (w *Worker) Close() {
	w.Stop()
	w.events.Close()
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	return w.stats.snapshot()
}

func (w *Worker) stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopRequested
}

func (w *Worker) emit(e Event) {
	w.events.Push(e)
}

func (w *Worker) run(ctx context.Context, src StreamSource, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)
	defer func() {
		w.mu.Lock()
		w.running = false
		w.cancel()
		w.mu.Unlock()

		w.emit(SessionEndedEvent{Source: src})
	}()

	w.stats.sessions.Add(1)
	newSession(w, src).run(ctx)
}

// Stats are cumulative over the worker's lifetime.
type Stats struct {
	Sessions       uint64
	VideoFrames    uint64
	AudioChunks    uint64
	DecodeErrors   uint64
	DroppedPackets uint64
}

type workerStats struct {
	sessions       atomic.Uint64
	videoFrames    atomic.Uint64
	audioChunks    atomic.Uint64
	decodeErrors   atomic.Uint64
	droppedPackets atomic.Uint64
}

func (s *workerStats) snapshot() Stats {
	return Stats{
		Sessions:       s.sessions.Load(),
		VideoFrames:    s.videoFrames.Load(),
		AudioChunks:    s.audioChunks.Load(),
		DecodeErrors:   s.decodeErrors.Load(),
		DroppedPackets: s.droppedPackets.Load(),
	}
}
