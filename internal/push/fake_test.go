package push

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid        int
	path       string
	args       []string
	ignoreTerm bool

	out  chan string
	done chan struct{}
	once sync.Once
	code int

	mu         sync.Mutex
	terminated bool
	killed     bool
}

func newFakeProcess(pid int, path string, args []string) *fakeProcess {
	return &fakeProcess{
		pid:  pid,
		path: path,
		args: args,
		out:  make(chan string, 16),
		done: make(chan struct{}),
	}
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.code = code
		close(p.out)
		close(p.done)
	})
}

func (p *fakeProcess) Pid() int              { return p.pid }
func (p *fakeProcess) Output() <-chan string { return p.out }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Wait() int {
	<-p.done
	return p.code
}

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	p.terminated = true
	ignore := p.ignoreTerm
	p.mu.Unlock()

	if !ignore {
		p.exit(255)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()

	p.exit(-1)
	return nil
}

func (p *fakeProcess) state() (terminated, killed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated, p.killed
}

func (p *fakeProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

type fakeLauncher struct {
	mu         sync.Mutex
	err        error
	block      chan struct{}
	ignoreTerm bool
	procs      []*fakeProcess

	launched chan *fakeProcess
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{launched: make(chan *fakeProcess, 16)}
}

func (l *fakeLauncher) Launch(path string, args []string) (Process, error) {
	l.mu.Lock()
	block := l.block
	l.mu.Unlock()
	if block != nil {
		<-block
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := newFakeProcess(1000+len(l.procs), path, args)
	p.ignoreTerm = l.ignoreTerm
	l.procs = append(l.procs, p)
	l.launched <- p
	return p, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

func waitLaunch(t *testing.T, l *fakeLauncher) *fakeProcess {
	t.Helper()
	select {
	case p := <-l.launched:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("nothing was launched")
		return nil
	}
}

func assertNoLaunch(t *testing.T, l *fakeLauncher) {
	t.Helper()
	select {
	case p := <-l.launched:
		t.Fatalf("unexpected launch of %v", p.args)
	case <-time.After(100 * time.Millisecond):
	}
}

// nextEvent returns the first event of type T matching match, skipping
// everything else.
func nextEvent[T Event](t *testing.T, s *Supervisor, match func(T) bool) T {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-s.Events():
			require.True(t, ok, "events closed")
			if v, ok := e.(T); ok && (match == nil || match(v)) {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("no %T event", zero)
			return zero
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond)
}
