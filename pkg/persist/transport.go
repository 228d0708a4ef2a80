package persist

import (
	"errors"
	"sync"
)

// Common errors.
var (
	ErrClosed            = errors.New("persist: closed")
	ErrWorkerUnavailable = errors.New("persist: worker unavailable")
	ErrWriteFailed       = errors.New("persist: write failed")
)

// Transport is one end of a message channel between the UI endpoint and the
// worker endpoint. Post never blocks on the receiver; messages are delivered
// in the order they were posted.
type Transport interface {
	Post(env Envelope) error
	Messages() <-chan Envelope
	// Done is closed once the transport is closed from either end.
	Done() <-chan struct{}
	Close() error
}

// acknowledger is implemented by transports that carry flush acknowledgements.
type acknowledger interface {
	carriesAcks() bool
}

// mailbox is an unbounded FIFO drained into out by a pump goroutine.
type mailbox struct {
	mu      sync.Mutex
	queue   []Envelope
	drained func() // set by finish; runs once the queue is empty
	notify  chan struct{}
	out     chan Envelope
}

func newMailbox(done <-chan struct{}) *mailbox {
	m := &mailbox{
		notify: make(chan struct{}, 1),
		out:    make(chan Envelope),
	}
	go m.pump(done)
	return m
}

func (m *mailbox) put(env Envelope) {
	m.mu.Lock()
	m.queue = append(m.queue, env)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// finish marks the end of input. Once every queued envelope has been
// delivered, then runs and the pump exits.
func (m *mailbox) finish(then func()) {
	m.mu.Lock()
	m.drained = then
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) pump(done <-chan struct{}) {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			then := m.drained
			m.mu.Unlock()
			if then != nil {
				then()
				return
			}
			select {
			case <-m.notify:
				continue
			case <-done:
				return
			}
		}
		env := m.queue[0]
		m.queue[0] = Envelope{}
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- env:
		case <-done:
			return
		}
	}
}

// pipe is shared by the two ends returned from NewPipe.
type pipe struct {
	done      chan struct{}
	closeOnce sync.Once
}

func (p *pipe) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

type pipeEnd struct {
	p    *pipe
	in   *mailbox // delivered to this end
	peer *mailbox // delivered to the other end
}

// NewPipe returns the two connected ends of an in-process transport. The
// worker endpoint served on one end runs on its own goroutine; nothing is
// shared between the ends except the messages themselves.
func NewPipe() (ui, worker Transport) {
	p := &pipe{done: make(chan struct{})}
	toUI := newMailbox(p.done)
	toWorker := newMailbox(p.done)
	return &pipeEnd{p: p, in: toUI, peer: toWorker}, &pipeEnd{p: p, in: toWorker, peer: toUI}
}

func (e *pipeEnd) Post(env Envelope) error {
	select {
	case <-e.p.done:
		return ErrClosed
	default:
	}
	e.peer.put(env)
	return nil
}

func (e *pipeEnd) Messages() <-chan Envelope { return e.in.out }
func (e *pipeEnd) Done() <-chan struct{}     { return e.p.done }
func (e *pipeEnd) carriesAcks() bool         { return true }

func (e *pipeEnd) Close() error {
	e.p.close()
	return nil
}
