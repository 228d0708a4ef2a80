package metrics

import (
	"sync"
	"time"
)

// Profiler measures render latency: the time between the moment a render
// actually starts (after debouncing) and the moment its result has been
// painted. It is meant to be plugged into the render scheduler's start and
// complete hooks.
type Profiler struct {
	metric *TimingMetric
	now    func() time.Time

	mu      sync.Mutex
	start   time.Time
	started bool
	last    time.Duration
	samples int
}

// NewProfiler returns a profiler recording into m. A nil m records into
// RenderLatency.
func NewProfiler(m *TimingMetric) *Profiler {
	if m == nil {
		m = RenderLatency
	}
	return &Profiler{metric: m, now: time.Now}
}

// MarkRenderStart records the start of a render.
func (p *Profiler) MarkRenderStart() {
	p.mu.Lock()
	p.start = p.now()
	p.started = true
	p.mu.Unlock()
}

// MarkRenderComplete closes the measurement opened by MarkRenderStart.
// Completions without a matching start (skipped renders) are ignored.
func (p *Profiler) MarkRenderComplete() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	d := p.now().Sub(p.start)
	p.started = false
	p.last = d
	p.samples++
	p.mu.Unlock()

	p.metric.Record(d)
}

// Last returns the most recent measured latency and the number of samples.
func (p *Profiler) Last() (time.Duration, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.samples
}
