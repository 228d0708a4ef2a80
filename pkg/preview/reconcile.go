package preview

import (
	"context"

	"golang.org/x/net/html"

	"github.com/vanderheijden86/markon/pkg/metrics"
	"github.com/vanderheijden86/markon/pkg/morph"
)

// Enhancer renders text into a detached tree.
type Enhancer interface {
	Enhance(ctx context.Context, text string) (*html.Node, error)
}

// EnhancerFunc adapts a function to Enhancer.
type EnhancerFunc func(ctx context.Context, text string) (*html.Node, error)

func (f EnhancerFunc) Enhance(ctx context.Context, text string) (*html.Node, error) {
	return f(ctx, text)
}

// ReconcileFunc patches the live tree to match desired.
type ReconcileFunc func(live, desired *html.Node) error

// Reconcile returns the reconciler boundary: only the children of the live
// root are patched, and images that already finished loading are kept
// as-is when their source is unchanged. A nil state uses morph.LoadedByAttr.
func Reconcile(state morph.ImageState) ReconcileFunc {
	if state == nil {
		state = morph.LoadedByAttr
	}
	preserve := morph.PreserveImages(state)
	return func(live, desired *html.Node) error {
		defer metrics.Timer(metrics.Reconcile)()
		return morph.Morph(live, desired, morph.Options{
			ChildrenOnly:      true,
			OnBeforeElUpdated: preserve,
		})
	}
}
