package store

import (
	"context"
	"sync"
)

// Memory is an in-process Backend. Failures can be injected with FailWrites
// and FailReads to exercise the error paths of the pipeline.
type Memory struct {
	mu        sync.Mutex
	data      map[string]string
	writeErr  error
	readErr   error
	puts      int
	putValues []string
	closed    bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Opener returns an Opener that always hands out m.
func (m *Memory) Opener() Opener {
	return func(context.Context) (Backend, error) {
		return m, nil
	}
}

// FailWrites makes every Put return err; nil restores normal behavior.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// FailReads makes every Get return err; nil restores normal behavior.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

// Puts returns the number of successful writes and their values in order.
func (m *Memory) Puts() (int, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts, append([]string(nil), m.putValues...)
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return "", false, m.readErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Put(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.data[key] = value
	m.puts++
	m.putValues = append(m.putValues, value)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Close marks the backend closed. The data survives so a test can inspect it.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
