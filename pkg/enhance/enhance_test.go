package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"pgregory.net/rapid"

	"github.com/vanderheijden86/markon/pkg/testutil"
)

func mustParse(t testing.TB, markup string) *html.Node {
	t.Helper()
	root, err := ParseFragment(markup)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	return root
}

func TestMarkdown_GFMFeatures(t *testing.T) {
	md := NewMarkdown()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"line break", "first\nsecond", "<br>"},
		{"table", "| a | b |\n|---|---|\n| 1 | 2 |", "<table>"},
		{"autolink", "see https://example.com now", `<a href="https://example.com"`},
		{"strikethrough", "~~gone~~", "<del>gone</del>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := md.Convert(tt.input)
			if err != nil {
				t.Fatalf("convert: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected %q in output, got %q", tt.want, out)
			}
		})
	}
}

func TestSanitizer_StripsScripts(t *testing.T) {
	s := NewSanitizer()
	out := s.Sanitize(`<p>hi</p><script>alert(1)</script><pre><code class="language-go">x</code></pre>`)

	if strings.Contains(out, "<script") {
		t.Errorf("script survived sanitizing: %q", out)
	}
	if !strings.Contains(out, `class="language-go"`) {
		t.Errorf("code language class was dropped: %q", out)
	}
}

func TestCallouts_LiteralWarning(t *testing.T) {
	root := mustParse(t, `<blockquote><p>[!WARNING] Be careful</p><p>second</p></blockquote>`)

	if n := Callouts(root); n != 1 {
		t.Fatalf("expected 1 callout, got %d", n)
	}

	wrapper := firstElementChild(root)
	if wrapper == nil || wrapper.Data != "div" {
		t.Fatalf("expected wrapper div, got %q", InnerHTML(root))
	}
	if kind, _ := Attr(wrapper, "data-kind"); kind != "warning" {
		t.Errorf("data-kind = %q, want warning", kind)
	}
	if title, _ := Attr(wrapper, "data-title"); title != "WARNING" {
		t.Errorf("data-title = %q, want WARNING", title)
	}
	first := firstElementChild(wrapper)
	if first == nil || TextContent(first) != "Be careful" {
		t.Errorf("expected first child text %q, got %q", "Be careful", InnerHTML(wrapper))
	}
	if strings.Contains(InnerHTML(root), "blockquote") {
		t.Errorf("quote block was not replaced: %q", InnerHTML(root))
	}
	if !strings.Contains(InnerHTML(wrapper), "<p>second</p>") {
		t.Errorf("remaining children were not moved: %q", InnerHTML(wrapper))
	}
}

func TestCallouts_MarkerVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  string
		text  string
	}{
		{"lowercase", `<blockquote><p>[!note] hello</p></blockquote>`, "note", "hello"},
		{"mixed case and padding", `<blockquote><p>   [!Tip]   spaced  </p></blockquote>`, "tip", "spaced"},
		{"line break after marker", "<blockquote>\n<p>[!CAUTION]<br>\nhot</p>\n</blockquote>", "caution", "hot"},
		{"marker only", `<blockquote><p>[!IMPORTANT]</p></blockquote>`, "important", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := mustParse(t, tt.input)
			if n := Callouts(root); n != 1 {
				t.Fatalf("expected 1 callout, got %d", n)
			}
			wrapper := firstElementChild(root)
			if kind, _ := Attr(wrapper, "data-kind"); kind != tt.kind {
				t.Errorf("data-kind = %q, want %q", kind, tt.kind)
			}
			if title, _ := Attr(wrapper, "data-title"); title != strings.ToUpper(tt.kind) {
				t.Errorf("data-title = %q", title)
			}
			if got := TextContent(firstElementChild(wrapper)); got != tt.text {
				t.Errorf("text = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestCallouts_LeavesOtherQuotesUntouched(t *testing.T) {
	inputs := []string{
		`<blockquote><p>plain quote</p></blockquote>`,
		`<blockquote><p>[!DANGER] unknown kind</p></blockquote>`,
		`<blockquote><p>text before [!NOTE] marker</p></blockquote>`,
		`<blockquote><ul><li>[!NOTE] in a list</li></ul></blockquote>`,
		`<blockquote></blockquote>`,
	}
	for _, input := range inputs {
		root := mustParse(t, input)
		before := InnerHTML(root)
		if n := Callouts(root); n != 0 {
			t.Errorf("%s: expected no conversion, got %d", input, n)
		}
		if after := InnerHTML(root); after != before {
			t.Errorf("%s: tree changed to %q", input, after)
		}
	}
}

func TestCallouts_NestedQuotes(t *testing.T) {
	root := mustParse(t, `<blockquote><p>[!NOTE] outer</p><blockquote><p>[!TIP] inner</p></blockquote></blockquote>`)

	if n := Callouts(root); n != 2 {
		t.Fatalf("expected 2 callouts, got %d", n)
	}
	out := InnerHTML(root)
	if strings.Contains(out, "blockquote") {
		t.Errorf("expected both quote blocks converted: %q", out)
	}
}

func TestCallouts_IdempotentProperty(t *testing.T) {
	kinds := []string{"NOTE", "tip", "Important", "WARNING", "caution", "DANGER", ""}
	rapid.Check(t, func(t *rapid.T) {
		blocks := rapid.SliceOfN(rapid.IntRange(0, len(kinds)-1), 1, 6).Draw(t, "blocks")
		body := rapid.StringMatching(`[a-z ]{0,12}`).Draw(t, "body")

		var b strings.Builder
		for _, k := range blocks {
			marker := ""
			if kinds[k] != "" {
				marker = fmt.Sprintf("[!%s] ", kinds[k])
			}
			fmt.Fprintf(&b, "<blockquote><p>%s%s</p><p>more</p></blockquote>", marker, body)
		}

		root, err := ParseFragment(b.String())
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		Callouts(root)
		once := InnerHTML(root)

		if n := Callouts(root); n != 0 {
			t.Fatalf("second pass converted %d blocks", n)
		}
		if twice := InnerHTML(root); twice != once {
			t.Fatalf("second pass changed output:\n%s\n%s", once, twice)
		}
	})
}

func TestChromaHighlighter_ColorsCodeBlocks(t *testing.T) {
	root := mustParse(t, `<pre><code class="language-go">func main() { println("hi") }</code></pre><p><code>inline</code></p>`)
	h := NewChromaHighlighter(DefaultHighlightStyle)

	if err := h.Highlight(context.Background(), root); err != nil {
		t.Fatalf("highlight: %v", err)
	}

	code := codeBlocks.MatchAll(root)[0]
	if !hasClass(code, "chroma") {
		t.Errorf("expected chroma class on code block")
	}
	if _, ok := Attr(code, HighlightedAttr); !ok {
		t.Errorf("expected highlighted marker")
	}
	if !strings.Contains(InnerHTML(code), "<span") {
		t.Errorf("expected token spans, got %q", InnerHTML(code))
	}
	if strings.TrimSpace(TextContent(code)) != `func main() { println("hi") }` {
		t.Errorf("highlighting changed the code text: %q", TextContent(code))
	}
	if strings.Contains(InnerHTML(root), "inline</span>") {
		t.Errorf("inline code should not be highlighted")
	}

	before := InnerHTML(root)
	if err := h.Highlight(context.Background(), root); err != nil {
		t.Fatalf("second highlight: %v", err)
	}
	if InnerHTML(root) != before {
		t.Errorf("second highlight pass changed the tree")
	}
}

func TestChromaHighlighter_RespectsContext(t *testing.T) {
	root := mustParse(t, `<pre><code>x := 1</code></pre>`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewChromaHighlighter(DefaultHighlightStyle).Highlight(ctx, root)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type failingHighlighter struct{}

func (failingHighlighter) Highlight(context.Context, *html.Node) error {
	return errors.New("highlighter rejected")
}

func TestPipeline_Enhance(t *testing.T) {
	p := NewPipeline()

	root, err := p.Enhance(context.Background(), "# Title\n\n> [!WARNING] Be careful\n\n```go\nfunc f() {}\n```\n\n<script>x()</script>")
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	out := InnerHTML(root)

	for _, want := range []string{"<h1", `data-kind="warning"`, `data-title="WARNING"`, "chroma"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
	if strings.Contains(out, "<script") {
		t.Errorf("script survived: %q", out)
	}
	if root.Parent != nil {
		t.Errorf("expected detached container")
	}
}

func TestPipeline_HighlightFailure(t *testing.T) {
	p := NewPipeline(WithHighlighter(failingHighlighter{}))

	if _, err := p.Enhance(context.Background(), "```\nx\n```"); err == nil {
		t.Fatal("expected highlighter error to surface")
	}
}

func TestPipeline_GeneratedDocuments(t *testing.T) {
	var (
		callouts = cascadia.MustCompile("div.callout")
		quotes   = cascadia.MustCompile("blockquote")
		images   = cascadia.MustCompile("img")
		code     = cascadia.MustCompile("pre > code.chroma")
	)
	p := NewPipeline()

	for seed := int64(1); seed <= 5; seed++ {
		cfg := testutil.DefaultConfig()
		cfg.Seed = seed
		cfg.Sections = 6
		doc := testutil.New(cfg).Document()

		root, err := p.Enhance(context.Background(), doc.Text)
		if err != nil {
			t.Fatalf("seed %d: enhance: %v", seed, err)
		}
		if got := len(callouts.MatchAll(root)); got != doc.Callouts {
			t.Errorf("seed %d: %d callouts, want %d", seed, got, doc.Callouts)
		}
		if got := len(quotes.MatchAll(root)); got != 0 {
			t.Errorf("seed %d: %d quote blocks left unconverted", seed, got)
		}
		if got := len(images.MatchAll(root)); got != len(doc.Images) {
			t.Errorf("seed %d: %d images, want %d", seed, got, len(doc.Images))
		}
		if got := len(code.MatchAll(root)); got != doc.Code {
			t.Errorf("seed %d: %d highlighted blocks, want %d", seed, got, doc.Code)
		}
	}
}
