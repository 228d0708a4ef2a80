package sched

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates a 60Hz paint cycle.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameClock hands out paint opportunities. Callbacks requested before a
// tick run together on that tick, in request order; callbacks requested
// while a tick is running wait for the next one.
type FrameClock interface {
	RequestFrame(fn func()) (cancel func())
}

type frameRequest struct {
	fn        func()
	cancelled bool
}

// Frames is a ticker-driven FrameClock. The ticker only runs while there
// are queued requests.
type Frames struct {
	interval time.Duration

	mu      sync.Mutex
	queue   []*frameRequest
	running bool
	stopped bool
	ticks   uint64
}

// NewFrames creates a frame clock ticking every interval.
func NewFrames(interval time.Duration) *Frames {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Frames{interval: interval}
}

// RequestFrame schedules fn for the next tick. After Stop it is a no-op.
func (f *Frames) RequestFrame(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return func() {}
	}
	req := &frameRequest{fn: fn}
	f.queue = append(f.queue, req)
	if !f.running {
		f.running = true
		go f.run()
	}
	return func() {
		f.mu.Lock()
		req.cancelled = true
		f.mu.Unlock()
	}
}

// Ticks returns the number of ticks that ran callbacks.
func (f *Frames) Ticks() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticks
}

// Stop drops queued callbacks and refuses new ones. Safe to call twice.
func (f *Frames) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.queue = nil
}

func (f *Frames) run() {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for range ticker.C {
		f.mu.Lock()
		batch := f.queue
		f.queue = nil
		if f.stopped || len(batch) == 0 {
			f.running = false
			f.mu.Unlock()
			return
		}
		f.ticks++
		f.mu.Unlock()

		for _, req := range batch {
			f.mu.Lock()
			skip := req.cancelled || f.stopped
			f.mu.Unlock()
			if !skip {
				req.fn()
			}
		}
	}
}
