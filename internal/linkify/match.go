package linkify

import (
	"regexp"
	"strings"
)

// urlChar matches one character allowed inside a URL token: anything except
// whitespace (including Unicode space separators) and a closing parenthesis.
const urlChar = `[^\s\x0B\p{Zs}\x{2028}\x{2029}\x{FEFF})]`

var (
	// anchorHTMLRegex recognizes text that already carries anchor markup.
	anchorHTMLRegex = regexp.MustCompile(`(?i)<a\s+[^>]*href=`)

	// urlPrefixRegex recognizes text that starts with a URL.
	urlPrefixRegex = regexp.MustCompile(`(?i)^(https?://|www\.)`)

	// schemeRegex recognizes an explicit http(s) scheme.
	schemeRegex = regexp.MustCompile(`(?i)^https?://`)

	// markdownLinkRegex matches [label](http(s)://destination).
	// Group 1 is the label, group 2 the destination.
	markdownLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\((https?://` + urlChar + `+)\)`)

	// bareURLRegex matches a bare URL optionally wrapped in parentheses.
	// Group 1 is the opening parenthesis, group 2 the URL token and
	// group 5 the closing parenthesis.
	bareURLRegex = regexp.MustCompile(`(?i)(\(?)((https?://` + urlChar + `+)|(www\.` + urlChar + `+))(\)?)`)
)

// Kind identifies how a piece of text is rendered.
type Kind int

const (
	// KindNone means the text contains nothing to render as a link.
	KindNone Kind = iota
	// KindHTML means the text already holds anchor markup.
	KindHTML
	// KindMarkdown means the text holds at least one markdown link.
	KindMarkdown
	// KindBareURL means the text holds at least one bare URL.
	KindBareURL
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindMarkdown:
		return "markdown"
	case KindBareURL:
		return "bare_url"
	default:
		return "none"
	}
}

// Match is one link found in a text node.
// Start and End are byte offsets of the whole match in the scanned text,
// including any surrounding parentheses that were captured.
type Match struct {
	// Start is the byte offset where the match begins.
	Start int

	// End is the byte offset just past the match.
	End int

	// Raw is the matched URL token for bare URLs, or the whole
	// `[label](url)` construct for markdown links.
	Raw string

	// OpenParen is "(" when a parenthesis preceded a bare URL.
	OpenParen string

	// CloseParen is ")" when a parenthesis followed a bare URL.
	CloseParen string

	// Href is the resolved link target.
	Href string

	// Text is the visible link text.
	Text string

	// Kind is KindMarkdown or KindBareURL.
	Kind Kind
}

// IsURL reports whether the trimmed text starts with http://, https:// or www.
func IsURL(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	return urlPrefixRegex.MatchString(text)
}

// IsAlreadyHTML reports whether text contains an anchor tag with an href.
func IsAlreadyHTML(text string) bool {
	if text == "" {
		return false
	}
	return anchorHTMLRegex.MatchString(text)
}

// HasEscapedAnchor reports whether serialized markup contains an anchor tag
// whose angle brackets were encoded as entities.
func HasEscapedAnchor(markup string) bool {
	return strings.Contains(markup, "&lt;a") || strings.Contains(markup, "&lt;A")
}

// Href turns a raw URL token into a link target. Tokens without an http(s)
// scheme get https:// prepended.
func Href(raw string) string {
	if schemeRegex.MatchString(raw) {
		return raw
	}
	return "https://" + raw
}

// DisplayText returns the visible text for a raw URL token: a leading
// https:// or http:// is removed first, then a leading www.
// Both prefixes are matched case-sensitively.
func DisplayText(raw string) string {
	text, ok := strings.CutPrefix(raw, "https://")
	if !ok {
		text = strings.TrimPrefix(raw, "http://")
	}
	return strings.TrimPrefix(text, "www.")
}

// FindMarkdownLinks returns all non-overlapping markdown links in text,
// left to right. The destination is used verbatim as Href.
func FindMarkdownLinks(text string) []Match {
	locs := markdownLinkRegex.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		matches = append(matches, Match{
			Start: loc[0],
			End:   loc[1],
			Raw:   text[loc[0]:loc[1]],
			Href:  text[loc[4]:loc[5]],
			Text:  text[loc[2]:loc[3]],
			Kind:  KindMarkdown,
		})
	}
	return matches
}

// FindBareURLs returns all non-overlapping bare URLs in text, left to right.
func FindBareURLs(text string) []Match {
	locs := bareURLRegex.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		raw := text[loc[4]:loc[5]]
		m := Match{
			Start: loc[0],
			End:   loc[1],
			Raw:   raw,
			Href:  Href(raw),
			Text:  DisplayText(raw),
			Kind:  KindBareURL,
		}
		if loc[3] > loc[2] {
			m.OpenParen = text[loc[2]:loc[3]]
		}
		if loc[11] > loc[10] {
			m.CloseParen = text[loc[10]:loc[11]]
		}
		matches = append(matches, m)
	}
	return matches
}

// Plan reports which rendering branch applies to the text of one text node.
func Plan(text string) Kind {
	switch {
	case IsAlreadyHTML(text):
		return KindHTML
	case markdownLinkRegex.MatchString(text):
		return KindMarkdown
	case bareURLRegex.MatchString(text):
		return KindBareURL
	default:
		return KindNone
	}
}
