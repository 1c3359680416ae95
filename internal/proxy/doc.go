// Package proxy serves a forum through a reverse proxy that renders the
// links in custom user fields of every HTML page on the way out.
//
// It is the server-side counterpart of the in-page renderer: the browser
// receives pages whose fields already contain anchors. Non-HTML responses,
// oversized bodies and encodings other than gzip pass through untouched.
package proxy
