// Package morph patches a live HTML tree in place so that it matches a
// desired tree, keeping node identity wherever the node kind is unchanged.
//
// Elements are matched positionally by tag name; an element carrying an id is
// only matched with an element carrying the same id, and a later live sibling
// with that id is moved into place instead of being recreated. Nodes that
// cannot be matched are replaced by deep copies of the desired nodes; the
// desired tree itself is never modified.
package morph

import (
	"errors"

	"golang.org/x/net/html"
)

// Common errors.
var (
	ErrNilNode      = errors.New("morph: nil node")
	ErrDetachedRoot = errors.New("morph: cannot replace a root without a parent")
)

// Options control a Morph call.
type Options struct {
	// ChildrenOnly patches the children of the live root and never touches
	// the root node itself.
	ChildrenOnly bool
	// OnBeforeElUpdated is consulted before an existing element is patched
	// from its desired counterpart. Returning false keeps the live element,
	// its attributes and its subtree unchanged.
	OnBeforeElUpdated func(from, to *html.Node) bool
}

// Morph patches live to match desired.
func Morph(live, desired *html.Node, opts Options) error {
	if live == nil || desired == nil {
		return ErrNilNode
	}
	if opts.ChildrenOnly {
		morphChildren(live, desired, opts)
		return nil
	}
	if !compatible(live, desired) {
		if live.Parent == nil {
			return ErrDetachedRoot
		}
		live.Parent.InsertBefore(Clone(desired), live)
		live.Parent.RemoveChild(live)
		return nil
	}
	morphNode(live, desired, opts)
	return nil
}

func morphNode(from, to *html.Node, opts Options) {
	switch from.Type {
	case html.TextNode, html.CommentNode:
		if from.Data != to.Data {
			from.Data = to.Data
		}
	case html.ElementNode:
		if opts.OnBeforeElUpdated != nil && !opts.OnBeforeElUpdated(from, to) {
			return
		}
		syncAttrs(from, to)
		morphChildren(from, to, opts)
	default:
		morphChildren(from, to, opts)
	}
}

func morphChildren(from, to *html.Node, opts Options) {
	cur := from.FirstChild
	for want := to.FirstChild; want != nil; want = want.NextSibling {
		if cur == nil {
			from.AppendChild(Clone(want))
			continue
		}
		if compatible(cur, want) {
			morphNode(cur, want, opts)
			cur = cur.NextSibling
			continue
		}
		if id := idOf(want); id != "" {
			if match := findByID(cur.NextSibling, id); match != nil && compatible(match, want) {
				from.RemoveChild(match)
				from.InsertBefore(match, cur)
				morphNode(match, want, opts)
				continue
			}
		}
		next := cur.NextSibling
		from.InsertBefore(Clone(want), cur)
		from.RemoveChild(cur)
		cur = next
	}
	for cur != nil {
		next := cur.NextSibling
		from.RemoveChild(cur)
		cur = next
	}
}

func compatible(a, b *html.Node) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type != html.ElementNode {
		return true
	}
	return a.Data == b.Data && a.Namespace == b.Namespace && idOf(a) == idOf(b)
}

func findByID(start *html.Node, id string) *html.Node {
	for n := start; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && idOf(n) == id {
			return n
		}
	}
	return nil
}

func idOf(n *html.Node) string {
	if n.Type != html.ElementNode {
		return ""
	}
	return attr(n, "id")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func syncAttrs(from, to *html.Node) {
	if sameAttrs(from.Attr, to.Attr) {
		return
	}
	from.Attr = append([]html.Attribute(nil), to.Attr...)
}

func sameAttrs(a, b []html.Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		found := false
		for _, y := range b {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Clone returns a detached deep copy of n.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}
