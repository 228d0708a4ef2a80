// Package persist saves the document durably without blocking the editor.
//
// Two endpoints exchange a four-message protocol (SAVE_CONTENT, LOAD_CONTENT,
// FLUSH_NOW, CONTENT_LOADED). The worker endpoint owns a Saver, the
// debounce/idle/write state machine, and runs on its own goroutine or in
// another process. When no worker can be started the Direct variant drives
// the same Saver in-process. Callers only see the Persister interface.
package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/vanderheijden86/markon/pkg/sched"
	"github.com/vanderheijden86/markon/pkg/store"
)

// Persister is the strategy-agnostic persistence API.
type Persister interface {
	// Save schedules a debounced write of text.
	Save(text string)
	// Load fetches the persisted record; non-empty content is delivered to
	// the seed callback asynchronously.
	Load()
	// Flush cancels pending timers and writes text now if it differs from
	// the last durably written value.
	Flush(ctx context.Context, text string) error
	Close() error
}

// Strategy selects the deployment variant.
type Strategy string

const (
	StrategyAuto   Strategy = "auto"
	StrategyWorker Strategy = "worker"
	StrategyDirect Strategy = "direct"
)

// ParseStrategy validates a strategy name. Empty means auto.
func ParseStrategy(raw string) (Strategy, error) {
	switch s := Strategy(raw); s {
	case "":
		return StrategyAuto, nil
	case StrategyAuto, StrategyWorker, StrategyDirect:
		return s, nil
	default:
		return "", fmt.Errorf("unknown persist strategy %q", raw)
	}
}

// SpawnFunc starts a worker endpoint and returns the UI end of its transport.
type SpawnFunc func(ctx context.Context) (Transport, error)

// Options configures New.
type Options struct {
	Store    *store.Store
	Key      string
	Debounce time.Duration
	Idle     sched.IdleScheduler
	Strategy Strategy
	LogLevel LogLevel

	// Seed receives non-empty loaded content.
	Seed func(text string)

	// Spawn overrides how the worker is started. The default runs a Worker
	// on its own goroutine behind an in-process pipe.
	Spawn SpawnFunc
}

func (o Options) saverConfig() SaverConfig {
	return SaverConfig{
		Store:    o.Store,
		Key:      o.Key,
		Debounce: o.Debounce,
		Idle:     o.Idle,
		LogLevel: o.LogLevel,
	}
}

// New builds a Persister. The worker variant is preferred; under
// StrategyAuto a worker that cannot be started falls back to Direct with a
// warning.
func New(opts Options) (Persister, error) {
	if opts.Store == nil && opts.Spawn == nil {
		return nil, errors.New("persist: no store configured")
	}

	switch opts.Strategy {
	case StrategyDirect:
		return newDirect(opts)
	case StrategyWorker:
		return newWorker(opts)
	case StrategyAuto, "":
		p, err := newWorker(opts)
		if err == nil {
			return p, nil
		}
		log.Printf("warning: persistence worker unavailable, saving in-process: %v", err)
		return newDirect(opts)
	default:
		return nil, fmt.Errorf("unknown persist strategy %q", opts.Strategy)
	}
}

func newDirect(opts Options) (Persister, error) {
	if opts.Store == nil {
		return nil, errors.New("persist: direct strategy needs a store")
	}
	return NewDirect(NewSaver(opts.saverConfig()), opts.Seed), nil
}

func newWorker(opts Options) (Persister, error) {
	spawn := opts.Spawn
	if spawn == nil {
		spawn = localSpawner(opts)
	}
	t, err := spawn(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkerUnavailable, err)
	}
	return NewClient(t, opts.Seed), nil
}

// localSpawner runs the worker on its own goroutine. The worker and its
// saver shut down when the client closes the pipe.
func localSpawner(opts Options) SpawnFunc {
	return func(ctx context.Context) (Transport, error) {
		if opts.Store == nil {
			return nil, errors.New("no store for the local worker")
		}
		ui, end := NewPipe()
		saver := NewSaver(opts.saverConfig())
		w := NewWorker(end, saver, opts.LogLevel)

		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			_ = w.Run(context.Background())
			saver.Close()
		}()
		return &ownedTransport{Transport: ui, stopped: stopped}, nil
	}
}

// ownedTransport waits for the local worker to stop on Close so no write
// outlives the persister.
type ownedTransport struct {
	Transport
	stopped <-chan struct{}
}

func (o *ownedTransport) carriesAcks() bool { return true }

func (o *ownedTransport) Close() error {
	err := o.Transport.Close()
	<-o.stopped
	return err
}

// ServeWorker runs a worker endpoint over a byte stream until the peer
// disconnects or ctx is cancelled. It is the entry point for a worker living
// in another process.
func ServeWorker(ctx context.Context, rw io.ReadWriteCloser, cfg SaverConfig) error {
	t := NewStream(rw)
	saver := NewSaver(cfg)
	defer saver.Close()

	err := NewWorker(t, saver, cfg.LogLevel).Run(ctx)
	if cerr := t.Close(); err == nil {
		err = cerr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
