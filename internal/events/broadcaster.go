package events

import (
	"log/slog"
	"sync"

	"github.com/rtsptool/rtsptool/internal/util"
)

// Broadcaster fans values out to named subscribers. Slow subscribers are
// disconnected rather than allowed to stall the publisher.
type Broadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]chan T
	closed      bool
	logger      *slog.Logger
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		subscribers: make(map[string]chan T),
		logger:      util.ComponentLogger("broadcaster"),
	}
}

// Subscribe registers id with a buffer of bufferSize. Re-using an id closes
// the earlier channel.
func (b *Broadcaster[T]) Subscribe(subscriberID string, bufferSize int) <-chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan T)
		close(ch)
		return ch
	}

	if old, exists := b.subscribers[subscriberID]; exists {
		close(old)
	}

	ch := make(chan T, bufferSize)
	b.subscribers[subscriberID] = ch

	b.logger.Debug("Subscriber added", "id", subscriberID, "total", len(b.subscribers))
	return ch
}

func (b *Broadcaster[T]) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.subscribers[subscriberID]; exists {
		close(ch)
		delete(b.subscribers, subscriberID)
		b.logger.Debug("Subscriber removed", "id", subscriberID, "remaining", len(b.subscribers))
	}
}

// Broadcast sends v to all current subscribers. If a subscriber's channel is
// full, that subscriber is dropped.
func (b *Broadcaster[T]) Broadcast(v T) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}

	var dropped []string
	for id, ch := range b.subscribers {
		select {
		case ch <- v:
		default:
			dropped = append(dropped, id)
		}
	}
	b.mu.RUnlock()

	if len(dropped) == 0 {
		return
	}

	b.mu.Lock()
	for _, id := range dropped {
		if ch, exists := b.subscribers[id]; exists {
			close(ch)
			delete(b.subscribers, id)
			b.logger.Warn("Dropping subscriber due to full channel", "id", id)
		}
	}
	b.mu.Unlock()
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[string]chan T)
}

func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
