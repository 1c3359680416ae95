package model

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// MaxDocumentSize is the maximum size of a document body that is kept.
// Larger bodies are truncated to this size.
const MaxDocumentSize = 10 * 1024 * 1024 // 10 MB

// Document is one HTML source to render.
type Document struct {
	// Source identifies the document: a file path, a URL, or "-" for stdin.
	Source string `json:"source"`

	// ContentType is the MIME type reported for the document.
	// Files are assumed to be text/html.
	ContentType string `json:"content_type"`

	// StatusCode is the HTTP status code for fetched documents, 0 otherwise.
	StatusCode int `json:"status_code,omitempty"`

	// Raw is the document body as read.
	Raw []byte `json:"-"`

	// Rendered is the document body after rendering.
	Rendered []byte `json:"-"`

	// Hash is the SHA3-256 hash of Raw.
	Hash string `json:"hash"`
}

// NewDocument creates a document from its source name and body,
// truncating the body and computing its hash.
func NewDocument(source string, raw []byte) *Document {
	d := &Document{
		Source:      source,
		ContentType: "text/html",
		Raw:         raw,
	}
	d.TruncateRaw()
	d.ComputeHash()
	return d
}

// ComputeHash calculates and sets the SHA3-256 hash of the raw content.
func (d *Document) ComputeHash() {
	if len(d.Raw) == 0 {
		d.Hash = ""
		return
	}
	sum := sha3.Sum256(d.Raw)
	d.Hash = hex.EncodeToString(sum[:])
}

// TruncateRaw limits Raw to MaxDocumentSize bytes.
func (d *Document) TruncateRaw() {
	if len(d.Raw) > MaxDocumentSize {
		d.Raw = d.Raw[:MaxDocumentSize]
	}
}

// IsHTML reports whether the content type indicates HTML.
func (d *Document) IsHTML() bool {
	ct := strings.ToLower(strings.TrimSpace(d.ContentType))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
