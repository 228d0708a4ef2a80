// Package bus is the single coupling point between the editor and the
// pipelines: the editor calls Notify with the current text and every
// subscriber is invoked synchronously, in registration order.
package bus

import (
	"sync"
	"sync/atomic"
)

// Handler receives the current document text.
type Handler func(text string)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	bus     *Bus
	handler Handler
	active  atomic.Bool
}

// Unsubscribe removes the handler from the bus. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	s.bus.remove(s)
}

// Active reports whether the subscription still receives notifications.
func (s *Subscription) Active() bool {
	return s != nil && s.active.Load()
}

// Bus fans notifications out to subscribers. It does no buffering and no
// deduplication; a panicking subscriber propagates to the Notify caller.
type Bus struct {
	mu   sync.Mutex
	subs []*Subscription // copy-on-write
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns its handle.
func (b *Bus) Subscribe(h Handler) *Subscription {
	s := &Subscription{bus: b, handler: h}
	s.active.Store(true)

	b.mu.Lock()
	next := make([]*Subscription, len(b.subs), len(b.subs)+1)
	copy(next, b.subs)
	b.subs = append(next, s)
	b.mu.Unlock()
	return s
}

// Notify invokes every subscriber exactly once with text.
func (b *Bus) Notify(text string) {
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	for _, s := range subs {
		if s.active.Load() {
			s.handler(text)
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		s.active.Store(false)
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make([]*Subscription, 0, len(b.subs))
	for _, cur := range b.subs {
		if cur != s {
			next = append(next, cur)
		}
	}
	b.subs = next
}
