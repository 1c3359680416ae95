package fetch

import "errors"

// Fetch errors.
var (
	// ErrUnexpectedStatus is returned when a page responds with a non-2xx
	// status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML is returned when a page responds with a content type
	// other than HTML.
	ErrNotHTML = errors.New("response is not HTML")

	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// SOCKS proxy errors.
var (
	// ErrInvalidProxyAddress is returned when a SOCKS proxy address is not
	// in "host:port" format.
	ErrInvalidProxyAddress = errors.New("invalid SOCKS proxy address: must be host:port")

	// ErrNotSOCKS5 is returned when the proxy does not complete a SOCKS5
	// greeting.
	ErrNotSOCKS5 = errors.New("proxy does not speak SOCKS5")
)
