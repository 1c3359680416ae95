package proxy

import "errors"

// ErrInvalidUpstream is returned when the upstream URL is not an absolute
// http or https URL.
var ErrInvalidUpstream = errors.New("upstream must be an absolute http(s) URL")
