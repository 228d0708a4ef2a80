// Package store is the durable key-value layer behind the persistence
// pipeline. A Store lazily opens one shared Backend connection and reports
// storage failures as boolean results instead of errors, so a failed write
// never reaches the editor.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/markon/pkg/debug"
	"github.com/vanderheijden86/markon/pkg/metrics"
)

// ContentKey is the single fixed key the document is stored under.
const ContentKey = "markon-content"

// ErrClosed is returned by Open after Close.
var ErrClosed = errors.New("store: closed")

// Backend is the raw key-value primitive.
type Backend interface {
	// Get returns the value for key and whether a record exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Opener creates a Backend connection.
type Opener func(ctx context.Context) (Backend, error)

// Store wraps a Backend opened on first use.
type Store struct {
	open  Opener
	group singleflight.Group

	mu      sync.Mutex
	backend Backend
	closed  bool
}

// New creates a store that opens its backend with open.
func New(open Opener) *Store {
	return &Store{open: open}
}

// Open returns the shared backend connection, creating it on first use.
// Concurrent callers share one attempt; a failed attempt is not cached.
func (s *Store) Open(ctx context.Context) (Backend, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.backend != nil {
		b := s.backend
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("open", func() (any, error) {
		s.mu.Lock()
		if s.backend != nil {
			b := s.backend
			s.mu.Unlock()
			return b, nil
		}
		s.mu.Unlock()

		b, err := s.open(ctx)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			_ = b.Close()
			return nil, ErrClosed
		}
		s.backend = b
		debug.Log("store: connection opened")
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Backend), nil
}

// Write stores value under key and reports success. Failures are logged.
func (s *Store) Write(ctx context.Context, key, value string) bool {
	defer metrics.Timer(metrics.StoreWrite)()

	b, err := s.Open(ctx)
	if err != nil {
		log.Printf("warning: failed to save content: %v", err)
		return false
	}
	if err := b.Put(ctx, key, value); err != nil {
		log.Printf("warning: failed to save content: %v", err)
		return false
	}
	debug.Log("store: wrote %d bytes under %s", len(value), key)
	return true
}

// Read returns the value stored under key. A missing record and a failed
// read both report false; failures are logged.
func (s *Store) Read(ctx context.Context, key string) (string, bool) {
	defer metrics.Timer(metrics.StoreRead)()

	b, err := s.Open(ctx)
	if err != nil {
		log.Printf("warning: failed to load content: %v", err)
		return "", false
	}
	v, ok, err := b.Get(ctx, key)
	if err != nil {
		log.Printf("warning: failed to load content: %v", err)
		return "", false
	}
	return v, ok
}

// Clear removes the record under key and reports success.
func (s *Store) Clear(ctx context.Context, key string) bool {
	b, err := s.Open(ctx)
	if err != nil {
		log.Printf("warning: failed to clear content: %v", err)
		return false
	}
	if err := b.Delete(ctx, key); err != nil {
		log.Printf("warning: failed to clear content: %v", err)
		return false
	}
	return true
}

// Close releases the backend connection. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}
