package observer

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Page holds one HTML document tree.
//
// Page is not safe for concurrent use. Once it is handed to an Observer,
// only the observer's loop goroutine may touch it; use Observer.Mutate and
// Observer.Snapshot to reach it from outside.
type Page struct {
	root *html.Node
}

// NewPage wraps an existing document tree. A nil root creates an empty
// document.
func NewPage(root *html.Node) *Page {
	if root == nil {
		root = emptyDocument()
	}
	return &Page{root: root}
}

// ParsePage parses a full HTML document.
func ParsePage(r io.Reader) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &Page{root: root}, nil
}

// Root returns the document node.
func (p *Page) Root() *html.Node {
	return p.root
}

// Replace swaps the document tree. A nil root empties the page.
func (p *Page) Replace(root *html.Node) {
	if root == nil {
		root = emptyDocument()
	}
	p.root = root
}

// Render writes the serialized document to w.
func (p *Page) Render(w io.Writer) error {
	if err := html.Render(w, p.root); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}

// emptyDocument returns the tree of an empty HTML document.
func emptyDocument() *html.Node {
	root, err := html.Parse(strings.NewReader(""))
	if err != nil {
		return &html.Node{Type: html.DocumentNode}
	}
	return root
}
