package persist

import (
	"context"
	"log"
	"sync"
)

// Client is the UI endpoint of the worker variant. Every call posts an
// envelope and returns without touching storage.
type Client struct {
	t    Transport
	seed func(string)

	acks      bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient starts dispatching worker replies. seed receives loaded content.
func NewClient(t Transport, seed func(string)) *Client {
	c := &Client{t: t, seed: seed, done: make(chan struct{})}
	if a, ok := t.(acknowledger); ok {
		c.acks = a.carriesAcks()
	}
	go c.dispatch()
	return c
}

func (c *Client) dispatch() {
	defer close(c.done)
	for {
		select {
		case <-c.t.Done():
			return
		case env := <-c.t.Messages():
			if env.Type != ContentLoaded {
				continue
			}
			text, ok := env.Text()
			if ok && text != "" && c.seed != nil {
				c.seed(text)
			}
		}
	}
}

func (c *Client) post(env Envelope) error {
	if err := c.t.Post(env); err != nil {
		log.Printf("warning: persistence worker unreachable: %v", err)
		return err
	}
	return nil
}

// Save posts SAVE_CONTENT.
func (c *Client) Save(text string) {
	_ = c.post(SaveMessage(text))
}

// Load posts LOAD_CONTENT; the reply reaches the seed callback.
func (c *Client) Load() {
	_ = c.post(LoadMessage())
}

// Flush posts FLUSH_NOW. Over transports that carry acknowledgements it
// waits until the worker has written the value or ctx is done.
func (c *Client) Flush(ctx context.Context, text string) error {
	env := FlushMessage(text)
	if c.acks {
		env.ack = make(chan error, 1)
	}
	if err := c.post(env); err != nil {
		return err
	}
	if env.ack == nil {
		return nil
	}
	select {
	case err := <-env.ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.t.Done():
		return ErrClosed
	}
}

// Close shuts the transport and stops dispatching. Safe to call twice.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.t.Close()
		<-c.done
	})
	return err
}
