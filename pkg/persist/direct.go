package persist

import (
	"context"
	"sync"
)

// Direct runs the saver on the caller's side with no worker in between.
// Its debounce, flush and idempotence behavior is the Saver's, exactly as in
// the worker variant.
type Direct struct {
	saver *Saver
	seed  func(string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewDirect wraps saver. seed receives loaded content.
func NewDirect(saver *Saver, seed func(string)) *Direct {
	ctx, cancel := context.WithCancel(context.Background())
	return &Direct{saver: saver, seed: seed, ctx: ctx, cancel: cancel}
}

func (d *Direct) Save(text string) {
	d.saver.Save(text)
}

// Load reads the record in the background and seeds non-empty content.
func (d *Direct) Load() {
	if d.ctx.Err() != nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		text, ok := d.saver.Load(d.ctx)
		if ok && text != "" && d.seed != nil && d.ctx.Err() == nil {
			d.seed(text)
		}
	}()
}

func (d *Direct) Flush(ctx context.Context, text string) error {
	return d.saver.Flush(ctx, &text)
}

// Close cancels pending saves and waits for background work. Safe to call
// twice.
func (d *Direct) Close() error {
	d.once.Do(func() {
		d.cancel()
		d.saver.Close()
		d.wg.Wait()
	})
	return nil
}
