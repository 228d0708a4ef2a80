package persist

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/vanderheijden86/markon/pkg/debug"
	"github.com/vanderheijden86/markon/pkg/sched"
	"github.com/vanderheijden86/markon/pkg/store"
)

// DefaultDebounce is the quiet period before a save is written.
const DefaultDebounce = 600 * time.Millisecond

// State is the saver's position in its write cycle.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateIdleWait
	StateWriting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDebouncing:
		return "debouncing"
	case StateIdleWait:
		return "idle_wait"
	case StateWriting:
		return "writing"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// busyNotifier is implemented by idle schedulers that track editor activity.
type busyNotifier interface {
	Busy()
}

// SaverConfig configures a Saver.
type SaverConfig struct {
	Store    *store.Store
	Key      string              // defaults to store.ContentKey
	Debounce time.Duration       // defaults to DefaultDebounce
	Idle     sched.IdleScheduler // nil falls back to sched.ImmediateIdle
	LogLevel LogLevel
}

// Saver debounces document saves into durable writes. Every value it writes
// is the latest one it has seen, and at most one write is in flight.
type Saver struct {
	store     *store.Store
	key       string
	debouncer *sched.Debouncer
	idle      sched.IdleScheduler
	events    *eventLog

	mu         sync.Mutex
	latest     string
	hasLatest  bool
	lastSaved  string
	hasSaved   bool
	cancelIdle func()
	writing    string
	writeDone  chan struct{} // non-nil while a write is in flight
	rerun      bool          // an idle callback fired during a write
	gen        uint64        // invalidates stale timer callbacks
	closed     bool
}

// NewSaver creates a Saver.
func NewSaver(cfg SaverConfig) *Saver {
	if cfg.Key == "" {
		cfg.Key = store.ContentKey
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Idle == nil {
		log.Printf("warning: idle scheduling unavailable, saves will run on the next tick")
		cfg.Idle = sched.ImmediateIdle{}
	}
	return &Saver{
		store:     cfg.Store,
		key:       cfg.Key,
		debouncer: sched.NewDebouncer(cfg.Debounce),
		idle:      cfg.Idle,
		events:    newEventLog(cfg.LogLevel, "persist"),
	}
}

// State reports the current state.
func (s *Saver) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Saver) stateLocked() State {
	switch {
	case s.closed:
		return StateClosed
	case s.writeDone != nil:
		return StateWriting
	case s.debouncer.Pending():
		return StateDebouncing
	case s.cancelIdle != nil:
		return StateIdleWait
	default:
		return StateIdle
	}
}

// LastSaved returns the last value durably written.
func (s *Saver) LastSaved() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved, s.hasSaved
}

// Save schedules a write of text. Saving the value already on disk is a
// no-op apart from dropping any pending write of an older value.
func (s *Saver) Save(text string) {
	if b, ok := s.idle.(busyNotifier); ok {
		b.Busy()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latest, s.hasLatest = text, true

	if s.hasSaved && text == s.lastSaved {
		s.cancelTimersLocked()
		s.events.logEvent(LogLevelTrace, "save_skipped", map[string]any{"bytes": len(text)})
		return
	}
	s.scheduleLocked()
	s.events.logEvent(LogLevelTrace, "save_scheduled", map[string]any{"bytes": len(text)})
}

func (s *Saver) scheduleLocked() {
	s.cancelTimersLocked()
	gen := s.gen
	s.debouncer.Trigger(func() { s.onDebounce(gen) })
}

// cancelTimersLocked drops the pending debounce and idle wait. Callbacks
// already running see a newer generation and do nothing.
func (s *Saver) cancelTimersLocked() {
	s.gen++
	s.debouncer.Cancel()
	if s.cancelIdle != nil {
		s.cancelIdle()
		s.cancelIdle = nil
	}
}

func (s *Saver) onDebounce(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.cancelIdle = s.idle.RequestIdle(func() { s.onIdle(gen) })
}

func (s *Saver) onIdle(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.cancelIdle = nil
	if s.writeDone != nil {
		s.rerun = true
		s.mu.Unlock()
		return
	}
	if !s.dirtyLocked() {
		s.mu.Unlock()
		return
	}
	value := s.latest
	done := s.beginWriteLocked(value)
	s.mu.Unlock()

	s.write(context.Background(), value, done)
}

func (s *Saver) dirtyLocked() bool {
	return s.hasLatest && !(s.hasSaved && s.latest == s.lastSaved)
}

func (s *Saver) beginWriteLocked(value string) chan struct{} {
	done := make(chan struct{})
	s.writing = value
	s.writeDone = done
	return done
}

// write performs one store write and settles the saver afterwards.
func (s *Saver) write(ctx context.Context, value string, done chan struct{}) bool {
	start := time.Now()
	ok := s.store.Write(ctx, s.key, value)
	debug.LogTiming("persist: store write", time.Since(start))

	s.mu.Lock()
	defer s.mu.Unlock()

	if ok {
		s.lastSaved, s.hasSaved = value, true
		s.events.logEvent(LogLevelDebug, "write_complete", map[string]any{
			"bytes":       len(value),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	} else {
		s.events.logEvent(LogLevelError, "write_failed", map[string]any{"bytes": len(value)})
	}
	s.writing = ""
	s.writeDone = nil
	close(done)

	if s.closed {
		return ok
	}
	rerun := s.rerun
	s.rerun = false
	if s.debouncer.Pending() || s.cancelIdle != nil {
		return ok
	}
	if (rerun || ok) && s.dirtyLocked() {
		debug.Log("persist: newer content arrived during write, rescheduling")
		s.scheduleLocked()
	}
	return ok
}

// Flush cancels pending timers and writes the latest value now if it differs
// from what is on disk. A non-nil text replaces the latest value first. An
// in-flight write is always waited for, since it may change what is on disk;
// if it wrote the latest value Flush does not write again.
func (s *Saver) Flush(ctx context.Context, text *string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if text != nil {
		s.latest, s.hasLatest = *text, true
	}
	s.cancelTimersLocked()
	s.rerun = false

	for {
		if s.writeDone != nil {
			done := s.writeDone
			s.events.logEvent(LogLevelDebug, "flush_wait", map[string]any{
				"bytes":          len(s.writing),
				"same_as_latest": s.writing == s.latest,
			})
			s.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			s.mu.Lock()
			if !s.dirtyLocked() {
				s.mu.Unlock()
				return nil
			}
			if s.closed {
				s.mu.Unlock()
				return ErrClosed
			}
			// write may have rescheduled the newer value.
			s.cancelTimersLocked()
			continue
		}
		if !s.dirtyLocked() {
			s.mu.Unlock()
			return nil
		}

		value := s.latest
		done := s.beginWriteLocked(value)
		s.mu.Unlock()

		s.events.logEvent(LogLevelInfo, "flush", map[string]any{"bytes": len(value)})
		if !s.write(ctx, value, done) {
			return ErrWriteFailed
		}
		return nil
	}
}

// Load reads the persisted record. A record read while nothing has been
// written yet becomes the baseline for later saves.
func (s *Saver) Load(ctx context.Context) (string, bool) {
	v, ok := s.store.Read(ctx, s.key)
	s.events.logEvent(LogLevelDebug, "load", map[string]any{"found": ok, "bytes": len(v)})
	if !ok {
		return "", false
	}

	s.mu.Lock()
	if !s.hasSaved && s.writeDone == nil {
		s.lastSaved, s.hasSaved = v, true
	}
	s.mu.Unlock()
	return v, true
}

// Close cancels pending timers and waits for an in-flight write. Safe to
// call twice.
func (s *Saver) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancelTimersLocked()
	done := s.writeDone
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}
