package enhance

import (
	"bytes"
	"fmt"
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Markdown converts markdown to HTML with GFM tables, autolinks,
// strikethrough and task lists, rendering soft line breaks as <br>.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a converter.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				gmhtml.WithHardWraps(),
				// Raw HTML is passed through here and cleaned by the Sanitizer.
				gmhtml.WithUnsafe(),
			),
		),
	}
}

// bufPool recycles conversion buffers; a render runs on every pause in
// typing.
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Convert renders text to an HTML string.
func (m *Markdown) Convert(text string) (string, error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	if err := m.md.Convert([]byte(text), buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

var codeLanguageClass = regexp.MustCompile(`^language-[\w+#.-]+$`)

// Sanitizer strips unsafe markup from converted HTML before it is enhanced.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a sanitizer based on bluemonday's UGC policy, widened
// for the markup the converter emits.
func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(codeLanguageClass).OnElements("code")
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")
	p.AllowAttrs("align").Matching(regexp.MustCompile(`^(left|right|center)$`)).OnElements("th", "td")
	return &Sanitizer{policy: p}
}

// Sanitize returns the cleaned markup.
func (s *Sanitizer) Sanitize(markup string) string {
	return s.policy.Sanitize(markup)
}
