package model

import "fmt"

// Outcome describes what a render pass did with one field element.
type Outcome int

const (
	// OutcomeSkipped means the element was already marked as processed.
	OutcomeSkipped Outcome = iota

	// OutcomeEmpty means the element had no text; it was only marked.
	OutcomeEmpty

	// OutcomeEscapedHTML means entity-escaped anchor markup was decoded
	// and rendered.
	OutcomeEscapedHTML

	// OutcomeAlreadyHTML means the text itself was anchor markup and was
	// rendered as HTML.
	OutcomeAlreadyHTML

	// OutcomeWholeURL means the whole field was a URL and became one link.
	OutcomeWholeURL

	// OutcomeLinked means at least one text node was rewritten.
	OutcomeLinked

	// OutcomeUnchanged means no link was found; the text was preserved.
	OutcomeUnchanged
)

// Outcomes lists every outcome in display order.
var Outcomes = []Outcome{
	OutcomeLinked,
	OutcomeWholeURL,
	OutcomeEscapedHTML,
	OutcomeAlreadyHTML,
	OutcomeUnchanged,
	OutcomeEmpty,
	OutcomeSkipped,
}

// outcomeNames maps outcomes to their serialized names.
var outcomeNames = map[Outcome]string{
	OutcomeSkipped:     "skipped",
	OutcomeEmpty:       "empty",
	OutcomeEscapedHTML: "escaped_html",
	OutcomeAlreadyHTML: "already_html",
	OutcomeWholeURL:    "whole_url",
	OutcomeLinked:      "linked",
	OutcomeUnchanged:   "unchanged",
}

// String returns the serialized name of the outcome.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Rewritten reports whether the outcome changed the element's content.
func (o Outcome) Rewritten() bool {
	switch o {
	case OutcomeEscapedHTML, OutcomeAlreadyHTML, OutcomeWholeURL, OutcomeLinked:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	for k, v := range outcomeNames {
		if v == string(text) {
			*o = k
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", string(text))
}

// FieldResult records the outcome of rendering one field element.
type FieldResult struct {
	// Path is a CSS-like path to the element, e.g.
	// "div.user-profile-fields > span.value".
	Path string `json:"path"`

	// Text is the trimmed text content before rendering.
	Text string `json:"text,omitempty"`

	// Outcome is what the renderer did.
	Outcome Outcome `json:"outcome"`

	// Links are the hrefs of anchors present in the field after rendering
	// that were produced by this pass.
	Links []string `json:"links,omitempty"`
}
