package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// IdleScheduler defers low-priority work until the host is idle.
type IdleScheduler interface {
	RequestIdle(fn func()) (cancel func())
}

// Idler considers the host idle once no activity has been reported through
// Busy for the quiet period. A request never waits longer than timeout.
type Idler struct {
	quiet   time.Duration
	timeout time.Duration

	lastBusy atomic.Int64 // unix nanos
	closed   atomic.Bool
}

// NewIdler creates an idle scheduler.
func NewIdler(quiet, timeout time.Duration) *Idler {
	if quiet <= 0 {
		quiet = 50 * time.Millisecond
	}
	if timeout < quiet {
		timeout = quiet
	}
	return &Idler{quiet: quiet, timeout: timeout}
}

// Busy records interactive activity.
func (i *Idler) Busy() {
	i.lastBusy.Store(time.Now().UnixNano())
}

// RequestIdle runs fn on its own goroutine at the next idle opportunity.
func (i *Idler) RequestIdle(fn func()) func() {
	var (
		mu        sync.Mutex
		timer     *time.Timer
		cancelled bool
	)
	deadline := time.Now().Add(i.timeout)

	var check func()
	check = func() {
		mu.Lock()
		defer mu.Unlock()
		if cancelled || i.closed.Load() {
			return
		}
		now := time.Now()
		wait := i.quiet - now.Sub(time.Unix(0, i.lastBusy.Load()))
		if remaining := deadline.Sub(now); wait > remaining {
			wait = remaining
		}
		if wait > 0 {
			timer = time.AfterFunc(wait, check)
			return
		}
		cancelled = true
		go fn()
	}

	mu.Lock()
	timer = time.AfterFunc(0, check)
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		cancelled = true
		if timer != nil {
			timer.Stop()
		}
	}
}

// Close cancels every outstanding request. Safe to call twice.
func (i *Idler) Close() {
	i.closed.Store(true)
}

// ImmediateIdle is the fallback used when no idle scheduling is available:
// work runs on the next asynchronous tick.
type ImmediateIdle struct{}

// RequestIdle runs fn on its own goroutine as soon as possible.
func (ImmediateIdle) RequestIdle(fn func()) func() {
	t := time.AfterFunc(0, fn)
	return func() { t.Stop() }
}
