package linkify

// SegmentKind identifies the type of a Segment.
type SegmentKind int

const (
	// SegmentText is plain text, rendered as a text node.
	SegmentText SegmentKind = iota
	// SegmentLink is a generated anchor.
	SegmentLink
	// SegmentHTML is raw markup that should be parsed as HTML.
	SegmentHTML
)

// Segment is one piece of the rewritten content of a text node.
type Segment struct {
	// Kind is the segment type.
	Kind SegmentKind

	// Text is the plain text, the link text, or the raw markup,
	// depending on Kind.
	Text string

	// Href is the link target. Only set for SegmentLink.
	Href string
}

// Split rewrites the text of one text node into segments.
//
// Already-HTML text becomes a single SegmentHTML. Otherwise markdown links
// are used when at least one exists, and bare URLs are only considered when
// there is no markdown link. Split returns nil when nothing in text should be
// rendered as a link, meaning the text node is left unchanged.
func Split(text string) []Segment {
	if IsAlreadyHTML(text) {
		return []Segment{{Kind: SegmentHTML, Text: text}}
	}
	if matches := FindMarkdownLinks(text); len(matches) > 0 {
		return build(text, matches)
	}
	if matches := FindBareURLs(text); len(matches) > 0 {
		return build(text, matches)
	}
	return nil
}

// SplitWhole rewrites an entire field whose trimmed text is a single URL into
// one link segment. It returns nil when the text does not start with a URL.
func SplitWhole(text string) []Segment {
	if !IsURL(text) {
		return nil
	}
	return []Segment{LinkSegment(text)}
}

// LinkSegment builds a link segment for a raw URL token.
func LinkSegment(raw string) Segment {
	return Segment{Kind: SegmentLink, Text: DisplayText(raw), Href: Href(raw)}
}

// Links returns only the link segments.
func Links(segments []Segment) []Segment {
	var links []Segment
	for _, s := range segments {
		if s.Kind == SegmentLink {
			links = append(links, s)
		}
	}
	return links
}

// build interleaves plain text with the given matches.
func build(text string, matches []Match) []Segment {
	segments := make([]Segment, 0, len(matches)*2+1)
	last := 0

	for _, m := range matches {
		if m.Start > last {
			segments = append(segments, Segment{Kind: SegmentText, Text: text[last:m.Start]})
		}
		if m.OpenParen != "" {
			segments = append(segments, Segment{Kind: SegmentText, Text: m.OpenParen})
		}
		segments = append(segments, Segment{Kind: SegmentLink, Text: m.Text, Href: m.Href})
		if m.CloseParen != "" {
			segments = append(segments, Segment{Kind: SegmentText, Text: m.CloseParen})
		}
		last = m.End
	}

	if last < len(text) {
		segments = append(segments, Segment{Kind: SegmentText, Text: text[last:]})
	}
	return segments
}
