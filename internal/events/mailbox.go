package events

import "sync"

// Mailbox is an unbounded FIFO that delivers pushed values on a channel.
type Mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool
	notify chan struct{}
	out    chan T
}

// NewMailbox creates a mailbox and starts its delivery goroutine.
func NewMailbox[T any]() *Mailbox[T] {
	m := &Mailbox[T]{
		notify: make(chan struct{}, 1),
		out:    make(chan T),
	}
	go m.pump()
	return m
}

// C returns the receive side. It is closed after Close once every queued
// value has been delivered.
func (m *Mailbox[T]) C() <-chan T {
	return m.out
}

// Push enqueues v. It never blocks. Returns false if the mailbox is closed.
func (m *Mailbox[T]) Push(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()

	m.wake()
	return true
}

// Len reports the number of values not yet handed to the consumer.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops accepting values. Already queued values are still delivered.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.wake()
}

func (m *Mailbox[T]) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Mailbox[T]) pump() {
	defer close(m.out)

	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			closed := m.closed
			m.mu.Unlock()
			if closed {
				return
			}
			<-m.notify
			continue
		}

		v := m.queue[0]
		var zero T
		m.queue[0] = zero
		m.queue = m.queue[1:]
		m.mu.Unlock()

		m.out <- v
	}
}
