package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/nao1215/fieldlink/internal/config"
	"github.com/nao1215/fieldlink/internal/model"
)

// StdinSource is the source name that reads the document from stdin.
const StdinSource = "-"

// Fetcher loads documents from files, stdin, and http(s) URLs.
type Fetcher struct {
	// client performs HTTP requests.
	client *http.Client

	// userAgent is sent with every request.
	userAgent string

	// maxBodySize limits the response body read.
	maxBodySize int64

	// stdin is read for StdinSource.
	stdin io.Reader

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client. Its transport is used as is; wrap
// it with NewSiteTransport to send per-site cookies and headers.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size in bytes.
// Zero or negative keeps the default.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithStdin sets the reader used for the "-" source.
func WithStdin(r io.Reader) Option {
	return func(f *Fetcher) {
		f.stdin = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
		stdin:       os.Stdin,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		f.client = &http.Client{Timeout: config.DefaultTimeout}
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}

	return f
}

// NewHTTPClient builds the client used for remote sources: a timeout and a
// transport that adds the per-site cookies and headers from sites on top of
// base. A nil base uses http.DefaultTransport.
func NewHTTPClient(timeout time.Duration, sites *config.File, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: NewSiteTransport(base, sites),
	}
}

// IsURL reports whether source is an http or https URL.
func IsURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Host returns the host name of a URL source, or "" for files and stdin.
func Host(source string) string {
	if !IsURL(source) {
		return ""
	}
	u, err := url.Parse(source)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Load reads the document named by source.
func (f *Fetcher) Load(ctx context.Context, source string) (*model.Document, error) {
	switch {
	case source == StdinSource:
		return f.loadReader(source, f.stdin)
	case IsURL(source):
		return f.Fetch(ctx, source)
	default:
		return f.loadFile(source)
	}
}

// Fetch downloads an HTML page.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*model.Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", pageURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	f.logger.Debug("fetching page", "url", pageURL)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}

	doc := model.NewDocument(pageURL, body)
	doc.StatusCode = resp.StatusCode
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		doc.ContentType = ct
	}
	if !doc.IsHTML() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotHTML, pageURL, doc.ContentType)
	}

	f.logger.Debug("page fetched",
		"url", pageURL,
		"status", resp.StatusCode,
		"bytes", len(body),
	)
	return doc, nil
}

func (f *Fetcher) loadFile(path string) (*model.Document, error) {
	file, err := os.Open(path) //nolint:gosec // User-provided source path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	return f.loadReader(path, file)
}

func (f *Fetcher) loadReader(source string, r io.Reader) (*model.Document, error) {
	if r == nil {
		return nil, fmt.Errorf("no reader for %s", source)
	}
	body, err := io.ReadAll(io.LimitReader(r, model.MaxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return model.NewDocument(source, body), nil
}
