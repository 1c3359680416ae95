// Package model defines the core data structures used throughout fieldlink.
//
// This package contains the following main types:
//   - Document: A source HTML document (file, URL, or proxied response)
//   - Settings: Renderer settings resolved from site configuration
//   - FieldResult: The outcome of rendering one custom user field
//   - RenderReport: The summary of one render pass over a document
//
// The models are serializable to JSON for report output and history storage.
package model
