// Package status fans progress events out to live subscribers.
//
// Delivery is lossy by design: Publish never blocks, and a subscriber whose
// queue is full is evicted on the spot rather than slowing the publisher.
package status

import (
	"sync"

	"go.uber.org/zap"
)

// DefaultQueueSize is the per-subscriber buffer capacity.
const DefaultQueueSize = 32

// Publisher is the write side used by the analysis pipeline and the recorder.
type Publisher interface {
	Publish(Event)
}

// Subscription is one subscriber's bounded queue. Events arrive on C; the
// channel is closed when the subscription is removed, either through
// Unsubscribe or through eviction.
type Subscription struct {
	C <-chan Event

	ch chan Event
}

// Broadcaster is an in-process publish/subscribe registry. It is safe for
// use from any goroutine. Its mutex is private to the registry and never
// held while anything other than a non-blocking channel send is performed.
type Broadcaster struct {
	mu        sync.Mutex
	subs      map[*Subscription]struct{}
	queueSize int
	closed    bool
	logger    *zap.Logger
}

// NewBroadcaster creates a broadcaster. queueSize <= 0 selects DefaultQueueSize.
func NewBroadcaster(queueSize int, logger *zap.Logger) *Broadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		subs:      make(map[*Subscription]struct{}),
		queueSize: queueSize,
		logger:    logger,
	}
}

// Subscribe registers a new bounded queue. After Close it returns a
// subscription whose channel is already closed.
func (b *Broadcaster) Subscribe() *Subscription {
	ch := make(chan Event, b.queueSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel. Removing a subscription
// that is already gone is a no-op.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// Publish offers ev to every subscriber without blocking. A subscriber whose
// queue is full is deregistered immediately and receives nothing further.
// With no subscribers this is a no-op.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.removeLocked(sub)
			b.logger.Warn("evicted slow status subscriber",
				zap.String("channel", string(ev.Channel)),
				zap.String("stage", string(ev.Stage)))
		}
	}
}

// Len returns the number of registered subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close removes every subscriber. Subsequent Publish calls are no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		b.removeLocked(sub)
	}
	b.closed = true
}

func (b *Broadcaster) removeLocked(sub *Subscription) {
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}
