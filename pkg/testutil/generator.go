// Package testutil provides deterministic markdown fixtures for pipeline
// tests. Generators seeded alike produce identical documents and edit
// sequences.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
)

// CalloutKinds are the callout markers the generator emits.
var CalloutKinds = []string{"NOTE", "TIP", "IMPORTANT", "WARNING", "CAUTION"}

var codeLanguages = []string{"go", "python", "js", "bash", ""}

var words = []string{
	"render", "preview", "debounce", "flush", "worker", "store", "idle",
	"frame", "patch", "image", "callout", "snapshot", "editor", "markdown",
}

// GeneratorConfig controls document generation.
type GeneratorConfig struct {
	Seed       int64 // Random seed for determinism
	Sections   int   // Number of top-level sections (default: 3)
	Callouts   bool  // Emit callout blockquotes
	CodeBlocks bool  // Emit fenced code blocks
	Images     bool  // Emit images
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:       42, // Deterministic
		Sections:   3,
		Callouts:   true,
		CodeBlocks: true,
		Images:     true,
	}
}

// Document is a generated markdown document and what it contains.
type Document struct {
	Text     string
	Callouts int
	Code     int
	Images   []string // image sources in document order
}

// Generator creates markdown fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
	img int
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Sections <= 0 {
		cfg.Sections = 3
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Document builds one document.
func (g *Generator) Document() Document {
	var (
		b   strings.Builder
		doc Document
	)
	for i := 0; i < g.cfg.Sections; i++ {
		w := g.word()
		fmt.Fprintf(&b, "## %s%s %d\n\n", strings.ToUpper(w[:1]), w[1:], i+1)
		b.WriteString(g.sentence())
		b.WriteString("\n\n")

		if g.cfg.Callouts && g.rng.Intn(2) == 0 {
			kind := CalloutKinds[g.rng.Intn(len(CalloutKinds))]
			fmt.Fprintf(&b, "> [!%s]\n> %s\n\n", kind, g.sentence())
			doc.Callouts++
		}
		if g.cfg.CodeBlocks && g.rng.Intn(2) == 0 {
			lang := codeLanguages[g.rng.Intn(len(codeLanguages))]
			fmt.Fprintf(&b, "```%s\nx := %d\n```\n\n", lang, g.rng.Intn(100))
			doc.Code++
		}
		if g.cfg.Images && g.rng.Intn(2) == 0 {
			g.img++
			src := fmt.Sprintf("img-%d.png", g.img)
			fmt.Fprintf(&b, "![%s](%s)\n\n", g.word(), src)
			doc.Images = append(doc.Images, src)
		}
		items := g.rng.Intn(3)
		for j := 0; j < items; j++ {
			fmt.Fprintf(&b, "- %s\n", g.sentence())
		}
		b.WriteString("\n")
	}
	doc.Text = b.String()
	return doc
}

// Keystrokes returns the successive document states produced by typing
// suffix at the end of base, one character at a time.
func Keystrokes(base, suffix string) []string {
	out := make([]string, 0, len(suffix))
	for i := range suffix {
		out = append(out, base+suffix[:i+1])
	}
	return out
}

// Burst returns n successive edits of base, each appending one word.
func (g *Generator) Burst(base string, n int) []string {
	out := make([]string, 0, n)
	cur := base
	for i := 0; i < n; i++ {
		cur += " " + g.word()
		out = append(out, cur)
	}
	return out
}

func (g *Generator) word() string {
	return words[g.rng.Intn(len(words))]
}

func (g *Generator) sentence() string {
	n := 3 + g.rng.Intn(6)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = g.word()
	}
	return strings.Join(parts, " ") + "."
}
