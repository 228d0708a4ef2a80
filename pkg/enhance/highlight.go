package enhance

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// HighlightedAttr marks a code block that has already been colored.
const HighlightedAttr = "data-highlighted"

// Highlighter colors code blocks in place.
type Highlighter interface {
	Highlight(ctx context.Context, root *html.Node) error
}

var codeBlocks = cascadia.MustCompile("pre > code")

// ChromaHighlighter colors `pre > code` blocks with chroma, emitting
// class-based spans so the stylesheet owns the palette.
type ChromaHighlighter struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

// NewChromaHighlighter creates a highlighter using the named chroma style.
func NewChromaHighlighter(style string) *ChromaHighlighter {
	return &ChromaHighlighter{
		style: styles.Get(style),
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.PreventSurroundingPre(true),
		),
	}
}

// Highlight colors every code block under root that has not been colored
// yet. It checks ctx between blocks.
func (h *ChromaHighlighter) Highlight(ctx context.Context, root *html.Node) error {
	for _, code := range codeBlocks.MatchAll(root) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, done := Attr(code, HighlightedAttr); done {
			continue
		}
		if err := h.highlightBlock(code); err != nil {
			return err
		}
	}
	return nil
}

func (h *ChromaHighlighter) highlightBlock(code *html.Node) error {
	src := TextContent(code)
	lang := codeLanguage(code)

	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(src)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, src)
	if err != nil {
		return fmt.Errorf("tokenise %q block: %w", lang, err)
	}
	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, it); err != nil {
		return fmt.Errorf("format %q block: %w", lang, err)
	}

	nodes, err := html.ParseFragment(&buf, code)
	if err != nil {
		return fmt.Errorf("parse highlighted %q block: %w", lang, err)
	}
	removeChildren(code)
	for _, n := range nodes {
		code.AppendChild(n)
	}
	addClass(code, "chroma")
	SetAttr(code, HighlightedAttr, "true")
	return nil
}

func codeLanguage(code *html.Node) string {
	v, _ := Attr(code, "class")
	for _, c := range strings.Fields(v) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return lang
		}
	}
	return ""
}
