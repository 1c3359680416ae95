package renderer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/fieldlink/internal/linkify"
	"github.com/nao1215/fieldlink/internal/model"
)

// renderField applies the rendering steps to one field element.
//
// Steps, in order; the first one that applies ends the processing:
//  1. already marked: skip. Otherwise mark immediately.
//  2. empty trimmed text: stop.
//  3. escaped anchor markup in the inner HTML: decode and render it.
//  4. anchor markup in the text: render the text as HTML.
//  5. whole-field URL (only when enabled): one link for the whole field.
//  6. split every text node into text and links.
func (r *Renderer) renderField(sel *goquery.Selection, settings model.Settings) model.FieldResult {
	node := sel.Get(0)
	result := model.FieldResult{Path: describePath(node)}

	if v, ok := sel.Attr(r.markerAttr); ok && v != "" {
		result.Outcome = model.OutcomeSkipped
		return result
	}
	sel.SetAttr(r.markerAttr, "true")

	text := strings.TrimSpace(sel.Text())
	result.Text = text
	if text == "" {
		result.Outcome = model.OutcomeEmpty
		return result
	}

	if r.escapedHTML {
		if inner, err := sel.Html(); err == nil && linkify.HasEscapedAnchor(inner) {
			decoded := decodeMarkup(inner)
			if linkify.IsAlreadyHTML(decoded) {
				sel.SetHtml(decoded)
				result.Outcome = model.OutcomeEscapedHTML
				result.Links = anchorHrefs(node)
				return result
			}
		}
	}

	if linkify.IsAlreadyHTML(text) {
		sel.SetHtml(text)
		result.Outcome = model.OutcomeAlreadyHTML
		result.Links = anchorHrefs(node)
		return result
	}

	if r.wholeField {
		if segments := linkify.SplitWhole(text); segments != nil {
			removeChildren(node)
			for _, n := range r.buildNodes(segments, node, settings) {
				node.AppendChild(n)
			}
			result.Outcome = model.OutcomeWholeURL
			result.Links = segmentHrefs(segments)
			return result
		}
	}

	result.Links = r.renderTextNodes(node, settings)
	if len(result.Links) > 0 {
		result.Outcome = model.OutcomeLinked
	} else {
		result.Outcome = model.OutcomeUnchanged
	}
	return result
}

// renderTextNodes rewrites every text node below element and returns the
// hrefs of the links it created. Text nodes are collected before any of
// them is replaced.
func (r *Renderer) renderTextNodes(element *html.Node, settings model.Settings) []string {
	var links []string

	for _, textNode := range collectTextNodes(element) {
		segments := linkify.Split(textNode.Data)
		if segments == nil {
			continue
		}

		parent := textNode.Parent
		if parent == nil {
			continue
		}

		if len(segments) == 1 && segments[0].Kind == linkify.SegmentHTML {
			nodes := parseFragment(segments[0].Text, parent)
			if len(nodes) == 0 {
				continue
			}
			first := nodes[0]
			parent.InsertBefore(first, textNode)
			parent.RemoveChild(textNode)
			links = append(links, anchorHrefs(first)...)
			continue
		}

		for _, n := range r.buildNodes(segments, parent, settings) {
			parent.InsertBefore(n, textNode)
		}
		parent.RemoveChild(textNode)
		links = append(links, segmentHrefs(segments)...)
	}

	return links
}

// buildNodes converts segments into detached nodes. context is the element
// the nodes will be inserted into, used for parsing raw markup segments.
func (r *Renderer) buildNodes(segments []linkify.Segment, context *html.Node, settings model.Settings) []*html.Node {
	nodes := make([]*html.Node, 0, len(segments))
	for _, s := range segments {
		switch s.Kind {
		case linkify.SegmentLink:
			nodes = append(nodes, newAnchor(s.Href, s.Text, settings))
		case linkify.SegmentHTML:
			nodes = append(nodes, parseFragment(s.Text, context)...)
		default:
			nodes = append(nodes, &html.Node{Type: html.TextNode, Data: s.Text})
		}
	}
	return nodes
}

// segmentHrefs returns the hrefs of the link segments.
func segmentHrefs(segments []linkify.Segment) []string {
	links := linkify.Links(segments)
	if len(links) == 0 {
		return nil
	}
	hrefs := make([]string, 0, len(links))
	for _, l := range links {
		hrefs = append(hrefs, l.Href)
	}
	return hrefs
}
