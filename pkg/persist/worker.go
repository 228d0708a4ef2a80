package persist

import (
	"context"
	"time"
)

// Worker is the endpoint that owns the saver. It handles envelopes strictly
// in arrival order on the goroutine that calls Run.
type Worker struct {
	t      Transport
	saver  *Saver
	events *eventLog
}

// NewWorker creates a worker serving t with saver.
func NewWorker(t Transport, saver *Saver, level LogLevel) *Worker {
	return &Worker{t: t, saver: saver, events: newEventLog(level, "persist_worker")}
}

// Run processes messages until ctx is cancelled or the transport closes.
func (w *Worker) Run(ctx context.Context) error {
	start := time.Now()
	w.events.logEvent(LogLevelInfo, "worker_start", nil)
	defer func() {
		w.events.logEvent(LogLevelInfo, "worker_stop", map[string]any{
			"uptime_ms": time.Since(start).Milliseconds(),
		})
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.t.Done():
			return nil
		case env := <-w.t.Messages():
			w.handle(ctx, env)
		}
	}
}

func (w *Worker) handle(ctx context.Context, env Envelope) {
	switch env.Type {
	case SaveContent:
		text, ok := env.Text()
		if !ok {
			w.events.logEvent(LogLevelWarn, "save_without_content", nil)
			return
		}
		w.saver.Save(text)

	case LoadContent:
		text, found := w.saver.Load(ctx)
		if err := w.t.Post(LoadedMessage(text, found)); err != nil {
			w.events.logEvent(LogLevelWarn, "reply_failed", map[string]any{"error": err.Error()})
		}

	case FlushNow:
		err := w.saver.Flush(ctx, env.Content)
		if err != nil {
			w.events.logEvent(LogLevelError, "flush_failed", map[string]any{"error": err.Error()})
		}
		if env.ack != nil {
			env.ack <- err
		}

	default:
		w.events.logEvent(LogLevelDebug, "unknown_message", map[string]any{"type": string(env.Type)})
	}
}
