// Package events carries the "complaints changed" refresh signal from the
// submission controller to the projections. Two buses are provided: an
// in-process one and a Redis pub/sub one shared across console instances.
package events

import (
	"context"
	"sync"
	"time"
)

// Signal announces that the gateway's record set has changed.
type Signal struct {
	Reason    string    `json:"reason"`
	AttemptID string    `json:"attempt_id,omitempty"`
	At        time.Time `json:"at"`
}

// Reasons attached to signals.
const (
	ReasonSubmission = "submission"
	ReasonPoll       = "poll"
	ReasonManual     = "manual"
)

// Bus is a publish/subscribe channel for refresh signals.
// Subscription channels are closed when the subscribing context ends.
type Bus interface {
	Publish(ctx context.Context, sig Signal) error
	Subscribe(ctx context.Context) (<-chan Signal, error)
	Close() error
}

// subscriberBuffer is the number of undelivered signals kept per subscriber.
// Overflow is dropped: a pending signal already causes a reload.
const subscriberBuffer = 4

// MemoryBus fans signals out to in-process subscribers
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[chan Signal]struct{}
	closed bool
}

// NewMemoryBus creates an in-process bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[chan Signal]struct{})}
}

// Publish delivers sig to every current subscriber without blocking.
func (b *MemoryBus) Publish(_ context.Context, sig Signal) error {
	if sig.At.IsZero() {
		sig.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- sig:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan Signal, error) {
	ch := make(chan Signal, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(ch)
	}()
	return ch, nil
}

// Close closes every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}

func (b *MemoryBus) remove(ch chan Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}
