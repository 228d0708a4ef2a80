// Package session wires the editor-facing API to the render and persistence
// pipelines. A Session owns the document text and the update bus; the
// preview and the persister are independent subscribers of that bus.
//
// Typical use:
//
//	s, err := session.New(cfg, session.Options{})
//	if err != nil { ... }
//	defer s.Cleanup()
//	s.Load()
//	s.EmitUpdate(text) // on every edit
//	s.Hide(ctx)        // when the editor loses visibility
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/markon/pkg/bus"
	"github.com/vanderheijden86/markon/pkg/config"
	"github.com/vanderheijden86/markon/pkg/debug"
	"github.com/vanderheijden86/markon/pkg/enhance"
	"github.com/vanderheijden86/markon/pkg/metrics"
	"github.com/vanderheijden86/markon/pkg/persist"
	"github.com/vanderheijden86/markon/pkg/preview"
	"github.com/vanderheijden86/markon/pkg/sched"
	"github.com/vanderheijden86/markon/pkg/store"
	"github.com/vanderheijden86/markon/pkg/watcher"
)

// ErrClosed is returned by operations on a session after Cleanup.
var ErrClosed = errors.New("session: closed")

// Options overrides parts of the wiring. The zero value builds everything
// from the config.
type Options struct {
	// Seed is told about content restored by Load, after the session text
	// has been replaced.
	Seed func(text string)

	// Hooks observe the render pipeline. When all are nil the session
	// records render latency with a metrics.Profiler.
	Hooks preview.Hooks

	// Store replaces the store described by cfg.Store. The session does not
	// close a store it did not open.
	Store *store.Store

	// Spawn replaces how the persistence worker is started.
	Spawn persist.SpawnFunc

	// FrameClock replaces the session's frame clock.
	FrameClock sched.FrameClock

	// Enhancer replaces the enhancement stage.
	Enhancer preview.Enhancer
}

// Session is one open document.
type Session struct {
	cfg       config.Config
	bus       *bus.Bus
	preview   *preview.Preview
	persister persist.Persister
	store     *store.Store
	ownStore  bool
	idler     *sched.Idler
	frames    *sched.Frames // nil when the clock was supplied
	profiler  *metrics.Profiler
	seed      func(string)

	mu      sync.RWMutex
	text    string
	subs    []*bus.Subscription
	watcher *watcher.Watcher
	closed  bool

	cleanupOnce sync.Once
	cleanupErr  error
}

// New builds a session from cfg. Nothing is loaded until Load is called.
func New(cfg config.Config, opts Options) (*Session, error) {
	strategy, err := persist.ParseStrategy(cfg.Persist.Strategy)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:   cfg,
		bus:   bus.New(),
		store: opts.Store,
		seed:  opts.Seed,
		idler: sched.NewIdler(cfg.Persist.IdleQuiet, cfg.Persist.IdleTimeout),
	}

	if s.store == nil {
		open, err := store.OpenerFor(cfg.Store.Backend, cfg.Store.Path)
		if err != nil {
			s.idler.Close()
			return nil, fmt.Errorf("store: %w", err)
		}
		s.store = store.New(open)
		s.ownStore = true
	}

	spawn := opts.Spawn
	if spawn == nil && strings.TrimSpace(cfg.Persist.WorkerCommand) != "" {
		argv := strings.Fields(cfg.Persist.WorkerCommand)
		spawn = persist.ExecSpawner(argv[0], argv[1:]...)
	}

	s.persister, err = persist.New(persist.Options{
		Store:    s.store,
		Key:      store.ContentKey,
		Debounce: cfg.Persist.Debounce,
		Idle:     s.idler,
		Strategy: strategy,
		LogLevel: persist.ParseLogLevel(cfg.Persist.LogLevel),
		Seed:     s.applySeed,
		Spawn:    spawn,
	})
	if err != nil {
		s.idler.Close()
		if s.ownStore {
			_ = s.store.Close()
		}
		return nil, err
	}

	clock := opts.FrameClock
	if clock == nil {
		s.frames = sched.NewFrames(cfg.Render.FrameInterval)
		clock = s.frames
	}

	enhancer := opts.Enhancer
	if enhancer == nil {
		enhancer = enhance.NewPipeline(
			enhance.WithHighlighter(enhance.NewChromaHighlighter(cfg.Render.HighlightStyle)),
		)
	}

	hooks := opts.Hooks
	if hooks.OnRenderStart == nil && hooks.OnRenderComplete == nil && hooks.OnError == nil {
		s.profiler = metrics.NewProfiler(nil)
		hooks = preview.Hooks{
			OnRenderStart:    s.profiler.MarkRenderStart,
			OnRenderComplete: s.profiler.MarkRenderComplete,
		}
	}

	s.preview = preview.New(s.Text,
		preview.WithDebounce(cfg.Render.Debounce),
		preview.WithFrameClock(clock),
		preview.WithEnhancer(enhancer),
		preview.WithHooks(hooks),
	)

	s.subs = []*bus.Subscription{
		s.bus.Subscribe(s.preview.Notify),
		s.bus.Subscribe(s.persister.Save),
	}
	return s, nil
}

// RegisterUpdateListener subscribes h to document updates.
func (s *Session) RegisterUpdateListener(h bus.Handler) *bus.Subscription {
	sub := s.bus.Subscribe(h)

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return sub
}

// EmitUpdate records text as the current document and notifies every
// listener. Updates after Cleanup are dropped.
func (s *Session) EmitUpdate(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.text = text
	s.mu.Unlock()

	s.idler.Busy()
	s.bus.Notify(text)
}

// Text returns the current document.
func (s *Session) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Load asks the persister for the stored document. Non-empty content
// replaces the document asynchronously.
func (s *Session) Load() {
	s.persister.Load()
}

func (s *Session) applySeed(text string) {
	debug.Log("session: seeding %d bytes from the store", len(text))
	s.EmitUpdate(text)
	if s.seed != nil {
		s.seed(text)
	}
}

// Hide flushes the current document, as when the editor is hidden.
func (s *Session) Hide(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return s.persister.Flush(ctx, s.Text())
}

// Unload flushes the current document and waits at most the configured
// unload timeout.
func (s *Session) Unload() error {
	ctx := context.Background()
	if d := s.cfg.Persist.UnloadTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return s.Hide(ctx)
}

// WatchSignals unloads the session on SIGINT or SIGTERM. It returns once
// the document has been flushed or ctx is done; the caller decides whether
// to exit.
func (s *Session) WatchSignals(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		debug.Log("session: %s received, flushing", sig)
		return s.Unload()
	}
}

// WatchFile feeds on-disk edits of path into EmitUpdate. The file's current
// content becomes the document right away.
func (s *Session) WatchFile(path string, opts ...watcher.WatcherOption) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.watcher != nil {
		s.mu.Unlock()
		return watcher.ErrAlreadyStarted
	}
	s.mu.Unlock()

	opts = append(opts, watcher.WithOnChange(s.EmitUpdate))
	w, err := watcher.NewWatcher(path, opts...)
	if err != nil {
		return err
	}
	text, err := w.Read()
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed || s.watcher != nil {
		s.mu.Unlock()
		w.Stop()
		if s.closed {
			return ErrClosed
		}
		return watcher.ErrAlreadyStarted
	}
	s.watcher = w
	s.mu.Unlock()

	s.EmitUpdate(text)
	return nil
}

// Preview returns the render pipeline and its live tree.
func (s *Session) Preview() *preview.Preview {
	return s.preview
}

// HTML serializes the live preview.
func (s *Session) HTML() string {
	return s.preview.HTML()
}

// Profiler returns the default latency profiler, or nil when custom hooks
// were supplied.
func (s *Session) Profiler() *metrics.Profiler {
	return s.profiler
}

// Timings returns the pipeline timing metrics that have samples. The
// metrics are process-wide, so they cover every session.
func (s *Session) Timings() []metrics.TimingStats {
	return metrics.AllTimingStats()
}

func logTimings() {
	if !debug.Enabled() {
		return
	}
	for _, st := range metrics.AllTimingStats() {
		debug.Log("session: %s n=%d avg=%.2fms max=%.2fms", st.Name, st.Count, st.AvgMs, st.MaxMs)
	}
}

// Cleanup removes every listener, cancels pending timers and releases the
// worker and the store. A pending save that was not flushed is dropped.
// Safe to call more than once.
func (s *Session) Cleanup() error {
	s.cleanupOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		subs := s.subs
		s.subs = nil
		w := s.watcher
		s.watcher = nil
		s.mu.Unlock()

		for _, sub := range subs {
			sub.Unsubscribe()
		}
		s.bus.Close()
		if w != nil {
			w.Stop()
		}

		// The pipelines are independent; tear them down side by side.
		var g errgroup.Group
		g.Go(func() error {
			s.preview.Close()
			if s.frames != nil {
				s.frames.Stop()
			}
			return nil
		})
		g.Go(func() error {
			err := s.persister.Close()
			s.idler.Close()
			if s.ownStore {
				err = errors.Join(err, s.store.Close())
			}
			return err
		})
		s.cleanupErr = g.Wait()
		logTimings()
	})
	return s.cleanupErr
}
