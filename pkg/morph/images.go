package morph

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LoadedAttr is set to "true" on a live image by the host once the image
// has finished loading.
const LoadedAttr = "data-loaded"

// ImageState reports whether a live image element has finished loading.
type ImageState func(img *html.Node) bool

// LoadedByAttr is the default ImageState: it reads LoadedAttr.
func LoadedByAttr(img *html.Node) bool {
	return attr(img, LoadedAttr) == "true"
}

// PreserveImages returns an OnBeforeElUpdated policy that keeps an already
// loaded live image untouched when the desired image has the same source.
// Every other pair is patched normally.
func PreserveImages(loaded ImageState) func(from, to *html.Node) bool {
	if loaded == nil {
		loaded = LoadedByAttr
	}
	return func(from, to *html.Node) bool {
		if isImage(from) && isImage(to) && attr(from, "src") == attr(to, "src") && loaded(from) {
			return false
		}
		return true
	}
}

func isImage(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.DataAtom == atom.Img || n.Data == "img")
}
