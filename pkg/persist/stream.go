package persist

import (
	"errors"
	"io"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/markon/pkg/debug"
)

// streamTransport carries envelopes as JSON lines over a byte stream, so the
// worker endpoint can live in another process. Flush acknowledgements do not
// cross the stream; a flush over a stream is best-effort.
type streamTransport struct {
	rw io.ReadWriteCloser

	wmu sync.Mutex
	enc *json.Encoder

	in        *mailbox
	done      chan struct{}
	closeOnce sync.Once
	g         errgroup.Group
}

// NewStream wraps rw in a Transport.
func NewStream(rw io.ReadWriteCloser) Transport {
	t := &streamTransport{
		rw:   rw,
		enc:  json.NewEncoder(rw),
		done: make(chan struct{}),
	}
	t.in = newMailbox(t.done)
	t.g.Go(t.readLoop)
	return t
}

func (t *streamTransport) readLoop() error {
	dec := json.NewDecoder(t.rw)
	for {
		var env Envelope
		if err := dec.Decode(&env); err != nil {
			select {
			case <-t.done:
				// Closed locally.
				return nil
			default:
			}
			if !errors.Is(err, io.EOF) {
				debug.Log("persist: stream read ended: %v", err)
			}
			// The peer hung up: deliver what already arrived, then close.
			t.in.finish(t.shutdown)
			return nil
		}
		t.in.put(env)
	}
}

func (t *streamTransport) Post(env Envelope) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if err := t.enc.Encode(env); err != nil {
		return err
	}
	return nil
}

func (t *streamTransport) Messages() <-chan Envelope { return t.in.out }
func (t *streamTransport) Done() <-chan struct{}     { return t.done }

func (t *streamTransport) shutdown() {
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.rw.Close()
	})
}

// Close closes the stream and waits for the read loop to exit.
func (t *streamTransport) Close() error {
	t.shutdown()
	return t.g.Wait()
}
