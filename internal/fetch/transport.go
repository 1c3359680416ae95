package fetch

import (
	"net/http"

	"github.com/nao1215/fieldlink/internal/config"
)

// siteTransport wraps an http.RoundTripper and adds the cookie and headers
// configured for the request's host.
type siteTransport struct {
	base  http.RoundTripper
	sites *config.File
}

// NewSiteTransport returns a RoundTripper that injects per-site cookies and
// headers from sites. A nil base uses http.DefaultTransport; a nil sites
// returns base unchanged.
func NewSiteTransport(base http.RoundTripper, sites *config.File) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if sites == nil {
		return base
	}
	return &siteTransport{base: base, sites: sites}
}

// RoundTrip implements http.RoundTripper.
func (t *siteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	site := t.sites.SiteConfig(req.URL.Hostname())
	if site.Cookie == "" && len(site.Headers) == 0 {
		return t.base.RoundTrip(req)
	}

	// Clone the request; a RoundTripper must not modify its input.
	clone := req.Clone(req.Context())

	if site.Cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+site.Cookie)
		} else {
			clone.Header.Set("Cookie", site.Cookie)
		}
	}
	for key, value := range site.Headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
