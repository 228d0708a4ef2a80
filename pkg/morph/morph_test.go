package morph

import (
	"fmt"
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"pgregory.net/rapid"
)

type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

func parse(t fataler, markup string) *html.Node {
	t.Helper()
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), root)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root
}

func inner(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

func childrenOnly() Options {
	return Options{ChildrenOnly: true, OnBeforeElUpdated: PreserveImages(nil)}
}

func TestMorph_PreservesLoadedImage(t *testing.T) {
	live := parse(t, `<img src="a.png" data-loaded="true">`)
	img := live.FirstChild

	if err := Morph(live, parse(t, `<img src="a.png">`), childrenOnly()); err != nil {
		t.Fatalf("morph: %v", err)
	}

	if live.FirstChild != img {
		t.Fatal("expected the live image node to be kept")
	}
	if !LoadedByAttr(img) {
		t.Error("expected loaded state to survive")
	}
}

func TestMorph_UpdatesImageWithDifferentSource(t *testing.T) {
	live := parse(t, `<img src="a.png" data-loaded="true">`)

	if err := Morph(live, parse(t, `<img src="b.png">`), childrenOnly()); err != nil {
		t.Fatalf("morph: %v", err)
	}

	img := live.FirstChild
	if got := attr(img, "src"); got != "b.png" {
		t.Errorf("src = %q, want b.png", got)
	}
	if LoadedByAttr(img) {
		t.Error("a new source must not inherit the loaded state")
	}
}

func TestMorph_PatchesUnloadedImage(t *testing.T) {
	live := parse(t, `<img src="a.png" alt="old">`)

	if err := Morph(live, parse(t, `<img src="a.png" alt="new">`), childrenOnly()); err != nil {
		t.Fatalf("morph: %v", err)
	}
	if got := attr(live.FirstChild, "alt"); got != "new" {
		t.Errorf("alt = %q, want new", got)
	}
}

func TestMorph_ChildrenOnlyKeepsRoot(t *testing.T) {
	live := parse(t, `<p>old</p>`)
	live.Attr = []html.Attribute{{Key: "id", Val: "preview"}}
	desired := parse(t, `<h1>new</h1><p>text</p>`)

	if err := Morph(live, desired, childrenOnly()); err != nil {
		t.Fatalf("morph: %v", err)
	}
	if attr(live, "id") != "preview" {
		t.Error("root attributes were touched")
	}
	if got := inner(live); got != `<h1>new</h1><p>text</p>` {
		t.Errorf("unexpected children: %q", got)
	}
}

func TestMorph_KeepsIdentityOfUnchangedNodes(t *testing.T) {
	live := parse(t, `<h1>Title</h1><p>one</p><p>two</p>`)
	h1 := live.FirstChild
	second := h1.NextSibling.NextSibling

	if err := Morph(live, parse(t, `<h1>Title</h1><p>one!</p><p>two</p><p>three</p>`), childrenOnly()); err != nil {
		t.Fatalf("morph: %v", err)
	}
	if live.FirstChild != h1 || h1.NextSibling.NextSibling != second {
		t.Error("expected existing nodes to be patched in place")
	}
	if got := inner(live); got != `<h1>Title</h1><p>one!</p><p>two</p><p>three</p>` {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestMorph_MovesKeyedSibling(t *testing.T) {
	live := parse(t, `<p id="a">a</p><p id="b">b</p>`)
	b := live.LastChild

	if err := Morph(live, parse(t, `<p id="b">b</p><p id="a">a</p>`), childrenOnly()); err != nil {
		t.Fatalf("morph: %v", err)
	}
	if live.FirstChild != b {
		t.Error("expected keyed node to be moved, not recreated")
	}
	if got := inner(live); got != `<p id="b">b</p><p id="a">a</p>` {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestMorph_DesiredTreeUntouched(t *testing.T) {
	live := parse(t, ``)
	desired := parse(t, `<ul><li>x</li></ul>`)
	before := inner(desired)

	if err := Morph(live, desired, childrenOnly()); err != nil {
		t.Fatalf("morph: %v", err)
	}
	if inner(desired) != before || desired.FirstChild.Parent != desired {
		t.Error("desired tree was modified")
	}
}

func TestMorph_Errors(t *testing.T) {
	if err := Morph(nil, parse(t, ""), Options{}); err != ErrNilNode {
		t.Errorf("expected ErrNilNode, got %v", err)
	}
	live := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
	desired := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	if err := Morph(live, desired, Options{}); err != ErrDetachedRoot {
		t.Errorf("expected ErrDetachedRoot, got %v", err)
	}
}

func TestMorph_ConvergesProperty(t *testing.T) {
	tags := []string{"p", "h1", "ul", "img", "pre"}
	genDoc := func(t *rapid.T, label string) string {
		picks := rapid.SliceOfN(rapid.IntRange(0, len(tags)-1), 0, 8).Draw(t, label)
		var b strings.Builder
		for i, k := range picks {
			switch tags[k] {
			case "img":
				fmt.Fprintf(&b, `<img src="%d.png">`, i%3)
			case "ul":
				fmt.Fprintf(&b, "<ul><li>%d</li></ul>", i)
			default:
				fmt.Fprintf(&b, "<%s>%d</%s>", tags[k], i, tags[k])
			}
		}
		return b.String()
	}

	rapid.Check(t, func(t *rapid.T) {
		live := parse(t, genDoc(t, "live"))
		desired := parse(t, genDoc(t, "desired"))

		if err := Morph(live, desired, Options{ChildrenOnly: true}); err != nil {
			t.Fatalf("morph: %v", err)
		}
		if got, want := inner(live), inner(desired); got != want {
			t.Fatalf("live did not converge:\n got %s\nwant %s", got, want)
		}
	})
}
