// Package renderer rewrites custom user field values in an HTML document so
// that URLs render as anchors.
//
// # Architecture
//
// The Renderer is a thin adapter between a golang.org/x/net/html document
// tree and the pure detection logic in the linkify package:
//
//   - Candidate field elements are found with a cascadia selector group,
//     driven through goquery.
//   - Each element is marked with a data attribute the first time it is
//     seen, so later passes leave it alone.
//   - The element's text is classified (escaped anchor markup, literal anchor
//     markup, or plain text) and plain text nodes are split into text and
//     anchor nodes according to linkify.Split.
//
// # Default selectors
//
//	.user-field-value
//	.public-user-field
//	.user-profile-fields .value
//	.user-card-additional-controls .user-field
//
// # Generated anchors
//
// Every generated anchor carries rel="noopener noreferrer". It also carries
// target="_blank" when the settings ask for links to open in a new tab,
// which is the default.
//
// # Usage
//
//	r, err := renderer.New(renderer.WithSettings(model.Settings{OpenInNewTab: true}))
//	if err != nil {
//	    return err
//	}
//	results := r.RenderFieldLinks(doc) // doc is an *html.Node
//
// Rendering never fails on content: unmatched or malformed text is left as
// it is. A Renderer keeps no per-document state and may be shared between
// goroutines as long as each goroutine works on its own tree.
package renderer
