// Package enhance turns markdown text into the enhanced, detached HTML tree
// the preview reconciles against: markdown conversion, sanitizing, callout
// annotation and syntax highlighting, in that order.
package enhance

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/vanderheijden86/markon/pkg/debug"
	"github.com/vanderheijden86/markon/pkg/metrics"
)

// DefaultHighlightStyle is the chroma style used when none is configured.
const DefaultHighlightStyle = "github"

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHighlighter replaces the code highlighter. nil disables highlighting.
func WithHighlighter(h Highlighter) Option {
	return func(p *Pipeline) {
		p.highlighter = h
	}
}

// WithSanitizer replaces the sanitizer. nil disables sanitizing.
func WithSanitizer(s *Sanitizer) Option {
	return func(p *Pipeline) {
		p.sanitizer = s
	}
}

// Pipeline composes the enhancement passes.
type Pipeline struct {
	markdown    *Markdown
	sanitizer   *Sanitizer
	highlighter Highlighter
}

// NewPipeline creates a pipeline with the default passes.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		markdown:    NewMarkdown(),
		sanitizer:   NewSanitizer(),
		highlighter: NewChromaHighlighter(DefaultHighlightStyle),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enhance renders text into a detached container. Highlighting completes
// before Enhance returns.
func (p *Pipeline) Enhance(ctx context.Context, text string) (*html.Node, error) {
	defer metrics.Timer(metrics.Enhance)()

	markup, err := p.markdown.Convert(text)
	if err != nil {
		return nil, err
	}
	if p.sanitizer != nil {
		markup = p.sanitizer.Sanitize(markup)
	}

	root, err := ParseFragment(markup)
	if err != nil {
		return nil, err
	}

	n := Callouts(root)
	debug.LogIf(n > 0, "enhance: converted %d callouts", n)

	if p.highlighter != nil {
		if err := p.highlighter.Highlight(ctx, root); err != nil {
			return nil, fmt.Errorf("highlight: %w", err)
		}
	}
	return root, nil
}
