package renderer

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/fieldlink/internal/model"
)

// relValue is the rel attribute written on every generated anchor.
const relValue = "noopener noreferrer"

// maxPathDepth is the number of elements describePath includes.
const maxPathDepth = 3

// newAnchor creates a detached anchor element with a single text child.
func newAnchor(href, text string, settings model.Settings) *html.Node {
	a := &html.Node{
		Type:     html.ElementNode,
		Data:     "a",
		DataAtom: atom.A,
		Attr: []html.Attribute{
			{Key: "href", Val: href},
			{Key: "rel", Val: relValue},
		},
	}
	if settings.OpenInNewTab {
		a.Attr = append(a.Attr, html.Attribute{Key: "target", Val: "_blank"})
	}
	a.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return a
}

// parseFragment parses markup as the content of context. It returns nil when
// the markup does not parse.
func parseFragment(markup string, context *html.Node) []*html.Node {
	if context == nil || context.Type != html.ElementNode {
		context = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil
	}
	return nodes
}

// decodeMarkup decodes entity-escaped markup by parsing it and taking the
// resulting text content.
func decodeMarkup(markup string) string {
	var sb strings.Builder
	for _, n := range parseFragment(markup, nil) {
		writeText(&sb, n)
	}
	return sb.String()
}

// writeText appends the text content of n to sb.
func writeText(sb *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(sb, c)
	}
}

// collectTextNodes returns the text nodes below n in document order.
// Text inside existing anchors, scripts, and styles is not collected.
func collectTextNodes(n *html.Node) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				nodes = append(nodes, c)
			case html.ElementNode:
				switch c.DataAtom {
				case atom.A, atom.Script, atom.Style:
					// Existing anchors are never linked a second time.
					continue
				}
				walk(c)
			}
		}
	}
	walk(n)
	return nodes
}

// removeChildren detaches every child of n.
func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// anchorHrefs returns the href of every anchor at or below n.
func anchorHrefs(n *html.Node) []string {
	var hrefs []string
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode && cur.DataAtom == atom.A {
			if href, ok := getAttr(cur, "href"); ok {
				hrefs = append(hrefs, href)
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return hrefs
}

// getAttr returns the value of the named attribute.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// describePath builds a short CSS-like path such as
// "div.user-profile-fields > span.value" for log and report output.
func describePath(n *html.Node) string {
	parts := make([]string, 0, maxPathDepth)
	for cur := n; cur != nil && cur.Type == html.ElementNode && len(parts) < maxPathDepth; cur = cur.Parent {
		if cur.DataAtom == atom.Body || cur.DataAtom == atom.Html {
			break
		}
		parts = append(parts, describeElement(cur))
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func describeElement(n *html.Node) string {
	name := n.Data
	if class, ok := getAttr(n, "class"); ok {
		for _, c := range strings.Fields(class) {
			name += "." + c
		}
	}
	return name
}
