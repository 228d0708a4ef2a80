// Package preview schedules renders of the document into a live HTML tree.
//
// A storm of notifications becomes at most one render in flight, always of
// the latest text. A render waits for the next frame, runs the enhancement
// stage off-tree, then reconciles the result into the live tree. The
// render-complete hook fires two frames after the tree was patched.
package preview

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/vanderheijden86/markon/pkg/debug"
	"github.com/vanderheijden86/markon/pkg/enhance"
	"github.com/vanderheijden86/markon/pkg/morph"
	"github.com/vanderheijden86/markon/pkg/sched"
)

// State is the scheduler state.
type State int

const (
	// StateIdle means nothing is scheduled.
	StateIdle State = iota
	// StateDebouncing means a render is waiting for the debounce timer.
	StateDebouncing
	// StateRendering means a render is waiting for its frame or running.
	StateRendering
	// StateClosed means the scheduler was torn down.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateRendering:
		return "rendering"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is the last text rendered into the live tree.
type Snapshot struct {
	SourceText string
	ProducedAt time.Time
}

// Hooks are optional observability callbacks.
type Hooks struct {
	OnRenderStart    func()
	OnRenderComplete func()
	OnError          func(err error)
}

// Option configures a Preview.
type Option func(*Preview)

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(p *Preview) {
		p.debounce = d
	}
}

// WithFrameClock sets the frame clock. The preview does not stop a clock it
// did not create.
func WithFrameClock(f sched.FrameClock) Option {
	return func(p *Preview) {
		p.frames = f
	}
}

// WithEnhancer replaces the enhancement stage.
func WithEnhancer(e Enhancer) Option {
	return func(p *Preview) {
		p.enhancer = e
	}
}

// WithReconciler replaces the reconciler boundary.
func WithReconciler(r ReconcileFunc) Option {
	return func(p *Preview) {
		p.reconcile = r
	}
}

// WithImageState sets how loaded images are detected.
func WithImageState(s morph.ImageState) Option {
	return func(p *Preview) {
		p.reconcile = Reconcile(s)
	}
}

// WithHooks sets the observability hooks.
func WithHooks(h Hooks) Option {
	return func(p *Preview) {
		p.hooks = h
	}
}

// Preview owns the live preview tree and the render scheduler.
type Preview struct {
	getText   func() string
	enhancer  Enhancer
	reconcile ReconcileFunc
	frames    sched.FrameClock
	ownFrames *sched.Frames
	debounce  time.Duration
	debouncer *sched.Debouncer
	hooks     Hooks

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	dirty       bool // a notification arrived while rendering
	snapshot    Snapshot
	idle        chan struct{}
	idleClosed  bool
	cancelFrame func()

	treeMu sync.RWMutex
	root   *html.Node
}

// New creates a preview that pulls the document with getText and schedules
// the initial render.
func New(getText func() string, opts ...Option) *Preview {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Preview{
		getText: getText,
		ctx:     ctx,
		cancel:  cancel,
		root:    enhance.NewContainer(),
		idle:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.enhancer == nil {
		p.enhancer = enhance.NewPipeline()
	}
	if p.reconcile == nil {
		p.reconcile = Reconcile(nil)
	}
	if p.frames == nil {
		p.ownFrames = sched.NewFrames(sched.DefaultFrameInterval)
		p.frames = p.ownFrames
	}
	p.debouncer = sched.NewDebouncer(p.debounce)

	p.mu.Lock()
	p.state = StateDebouncing
	p.debouncer.Trigger(p.onDebounce)
	p.mu.Unlock()
	return p
}

// Notify schedules a render. It has the bus handler signature; the text
// rendered is always pulled fresh when the render starts.
func (p *Preview) Notify(string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateIdle:
		p.state = StateDebouncing
		p.markBusyLocked()
		p.debouncer.Trigger(p.onDebounce)
	case StateRendering:
		p.dirty = true
	}
}

func (p *Preview) onDebounce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateDebouncing {
		return
	}
	p.state = StateRendering
	p.cancelFrame = p.frames.RequestFrame(p.render)
}

func (p *Preview) render() {
	defer debug.LogEnterExit("preview.render")()

	p.mu.Lock()
	if p.state != StateRendering {
		p.mu.Unlock()
		return
	}
	p.cancelFrame = nil
	last := p.snapshot.SourceText
	p.mu.Unlock()

	text := p.getText()
	if text == last {
		fire(p.hooks.OnRenderComplete)
		p.finish(&Snapshot{SourceText: text, ProducedAt: time.Now()})
		return
	}

	fire(p.hooks.OnRenderStart)

	var desired *html.Node
	if rerr := safeCompute("enhance", func() error {
		var err error
		desired, err = p.enhancer.Enhance(p.ctx, text)
		return err
	}); rerr != nil {
		p.fail(rerr)
		return
	}

	dropped := false
	if rerr := safeCompute("reconcile", func() error {
		p.treeMu.Lock()
		defer p.treeMu.Unlock()
		if p.State() == StateClosed {
			dropped = true
			return nil
		}
		return p.reconcile(p.root, desired)
	}); rerr != nil {
		p.fail(rerr)
		return
	}
	if dropped {
		debug.Log("preview: dropping render finished after close")
		return
	}

	p.afterFrames(2, p.hooks.OnRenderComplete)
	p.finish(&Snapshot{SourceText: text, ProducedAt: time.Now()})
}

// afterFrames runs fn once n more frames have passed.
func (p *Preview) afterFrames(n int, fn func()) {
	if fn == nil {
		return
	}
	if n == 0 {
		fn()
		return
	}
	p.frames.RequestFrame(func() { p.afterFrames(n-1, fn) })
}

func (p *Preview) fail(rerr *RenderError) {
	if p.State() == StateClosed {
		debug.Log("preview: render aborted by close: %v", rerr)
		return
	}
	log.Printf("warning: preview render failed: %v", rerr)
	if p.hooks.OnError != nil {
		p.hooks.OnError(rerr)
	}
	p.finish(nil)
}

// finish records the snapshot, if any, and leaves the rendering state.
func (p *Preview) finish(snap *Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap != nil {
		p.snapshot = *snap
	}
	if p.state != StateRendering {
		return
	}
	if p.dirty {
		p.dirty = false
		p.state = StateDebouncing
		p.debouncer.Trigger(p.onDebounce)
		return
	}
	p.state = StateIdle
	p.markIdleLocked()
}

func (p *Preview) markIdleLocked() {
	if !p.idleClosed {
		p.idleClosed = true
		close(p.idle)
	}
}

func (p *Preview) markBusyLocked() {
	if p.idleClosed {
		p.idleClosed = false
		p.idle = make(chan struct{})
	}
}

func fire(fn func()) {
	if fn != nil {
		fn()
	}
}

// WaitIdle blocks until no render is scheduled or running.
func (p *Preview) WaitIdle(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return ErrClosed
	}
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		if p.State() == StateClosed {
			return ErrClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the scheduler state.
func (p *Preview) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the last rendered snapshot.
func (p *Preview) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Root returns the live preview root. Only the reconciler may change it.
func (p *Preview) Root() *html.Node {
	return p.root
}

// HTML serializes the live tree's children.
func (p *Preview) HTML() string {
	p.treeMu.RLock()
	defer p.treeMu.RUnlock()
	return enhance.InnerHTML(p.root)
}

var imgSelector = cascadia.MustCompile("img")

// MarkImageLoaded flags every live image with the given src as loaded, the
// way a host reports a finished image download. It returns the number of
// images marked.
func (p *Preview) MarkImageLoaded(src string) int {
	p.treeMu.Lock()
	defer p.treeMu.Unlock()

	n := 0
	for _, img := range imgSelector.MatchAll(p.root) {
		if v, _ := enhance.Attr(img, "src"); v == src {
			enhance.SetAttr(img, morph.LoadedAttr, "true")
			n++
		}
	}
	return n
}

// Close cancels pending work and stops accepting notifications. A render
// already past its frame runs to completion but is not applied if it has
// not reached the reconciler. Safe to call twice.
func (p *Preview) Close() {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return
	}
	p.state = StateClosed
	p.dirty = false
	p.debouncer.Cancel()
	if p.cancelFrame != nil {
		p.cancelFrame()
		p.cancelFrame = nil
	}
	p.markIdleLocked()
	p.mu.Unlock()

	p.cancel()
	if p.ownFrames != nil {
		p.ownFrames.Stop()
	}
}
