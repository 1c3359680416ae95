// Package linkify detects links in the text of a custom user field and
// describes how that text should be rendered.
//
// The package is pure: it never touches a document tree. Callers hand it the
// text of one text node (or of a whole field) and receive either a predicate
// answer or a flat list of segments, where each segment is plain text, a
// generated link, or raw anchor markup that should be parsed as HTML.
//
// # Recognized formats
//
// Detection follows a fixed precedence for a single piece of text:
//
//  1. Already-HTML: text containing an anchor tag with an href attribute,
//     e.g. `<a href="https://example.com">example</a>`.
//  2. Markdown links: `[label](https://example.com/path)`. The destination
//     must start with http:// or https://.
//  3. Bare URLs: `https://...`, `http://...` and `www....` tokens. A single
//     opening parenthesis before and a closing parenthesis after the token
//     are kept as plain text around the link.
//
// Escaped anchor markup (`&lt;a href=...`) is recognized on the raw inner
// markup of a field by HasEscapedAnchor; decoding it requires an HTML parser
// and is done by the renderer package.
//
// # Usage
//
//	segments := linkify.Split("see (https://example.com)")
//	// [text "see "] [text "("] [link https://example.com "example.com"] [text ")"]
package linkify
