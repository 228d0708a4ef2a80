package enhance

import (
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CalloutKinds lists the recognised callout markers, lowercase.
var CalloutKinds = []string{"note", "tip", "important", "warning", "caution"}

// CalloutAttr marks a converted callout wrapper.
const CalloutAttr = "data-callout"

var (
	calloutMarker = regexp.MustCompile(`(?i)^\s*\[!(` + strings.ToUpper(strings.Join(CalloutKinds, "|")) + `)\]\s*`)
	blockquotes   = cascadia.MustCompile("blockquote")
)

// Callouts converts every quote block whose first paragraph starts with a
// [!KIND] marker into a callout wrapper:
//
//	<div class="callout" data-kind="warning" data-title="WARNING" data-callout="true">
//
// The marker is removed from the paragraph and the quote block is replaced in
// place. Wrappers are never quote blocks, so converting converted output is a
// no-op. It returns the number of converted blocks.
func Callouts(root *html.Node) int {
	converted := 0
	for _, bq := range blockquotes.MatchAll(root) {
		if convertCallout(bq) {
			converted++
		}
	}
	return converted
}

func convertCallout(bq *html.Node) bool {
	if _, done := Attr(bq, CalloutAttr); done || bq.Parent == nil {
		return false
	}
	first := firstElementChild(bq)
	if first == nil || first.DataAtom != atom.P {
		return false
	}

	text := TextContent(first)
	m := calloutMarker.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	kind := strings.ToLower(m[1])

	SetTextContent(first, strings.TrimSpace(text[len(m[0]):]))

	wrapper := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	SetAttr(wrapper, "class", "callout")
	SetAttr(wrapper, "data-kind", kind)
	SetAttr(wrapper, "data-title", strings.ToUpper(kind))
	SetAttr(wrapper, CalloutAttr, "true")

	for c := bq.FirstChild; c != nil; c = bq.FirstChild {
		bq.RemoveChild(c)
		wrapper.AppendChild(c)
	}
	bq.Parent.InsertBefore(wrapper, bq)
	bq.Parent.RemoveChild(bq)
	return true
}
