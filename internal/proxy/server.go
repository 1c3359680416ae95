package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/nao1215/fieldlink/internal/config"
	"github.com/nao1215/fieldlink/internal/fetch"
	"github.com/nao1215/fieldlink/internal/renderer"
)

// PingPath answers health checks without touching the upstream.
const PingPath = "/-/ping"

// shutdownTimeout bounds the graceful shutdown of ListenAndServe.
const shutdownTimeout = 5 * time.Second

// Server is a reverse proxy that renders field links in HTML responses.
type Server struct {
	// upstream is the forum base URL.
	upstream *url.URL

	// transport sends requests upstream.
	transport http.RoundTripper

	// sites supplies the upstream host's cookie, headers, settings and
	// selectors.
	sites *config.File

	// rendererOpts are applied after the site options.
	rendererOpts []renderer.Option

	// sameTab forces links to open in the same tab.
	sameTab bool

	// maxBodySize is the largest body that is rendered.
	maxBodySize int64

	renderer *renderer.Renderer
	proxy    *httputil.ReverseProxy
	mux      *http.ServeMux
	handler  http.Handler
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithTransport sets the transport used for upstream requests.
// The per-site cookie and headers are added on top of it.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Server) {
		s.transport = rt
	}
}

// WithSites sets the config file.
func WithSites(sites *config.File) Option {
	return func(s *Server) {
		s.sites = sites
	}
}

// WithRendererOptions adds renderer options.
func WithRendererOptions(opts ...renderer.Option) Option {
	return func(s *Server) {
		s.rendererOpts = append(s.rendererOpts, opts...)
	}
}

// WithSameTab forces links to open in the same tab.
func WithSameTab(sameTab bool) Option {
	return func(s *Server) {
		s.sameTab = sameTab
	}
}

// WithMaxBodySize sets the largest response body that is rendered.
// Zero or negative keeps the default.
func WithMaxBodySize(size int64) Option {
	return func(s *Server) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a proxy for upstream.
func New(upstream string, opts ...Option) (*Server, error) {
	u, err := url.Parse(upstream)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUpstream, upstream)
	}

	s := &Server{
		upstream:    u,
		maxBodySize: config.DefaultMaxBodySize,
		mux:         http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.transport == nil {
		s.transport = http.DefaultTransport
	}

	rOpts := []renderer.Option{renderer.WithLogger(s.logger)}
	if s.sites != nil {
		site := s.sites.SiteConfig(u.Hostname())
		rOpts = append(rOpts, renderer.WithSite(site.Settings, site.Selectors))
	}
	rOpts = append(rOpts, s.rendererOpts...)
	if s.sameTab {
		rOpts = append(rOpts, renderer.WithSameTab())
	}
	s.renderer, err = renderer.New(rOpts...)
	if err != nil {
		return nil, err
	}

	s.proxy = &httputil.ReverseProxy{
		Rewrite:        s.rewrite,
		Transport:      fetch.NewSiteTransport(s.transport, s.sites),
		ModifyResponse: s.modifyResponse,
		ErrorHandler:   s.handleError,
	}

	s.registerRoutes()
	s.handler = withLogging(s.logger, s.mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Upstream returns the upstream base URL.
func (s *Server) Upstream() string {
	return s.upstream.String()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("proxy listening", "addr", addr, "upstream", s.Upstream())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down proxy: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc(PingPath, s.handlePing)
	s.mux.Handle("/", s.proxy)
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong\n"))
}

// rewrite points the outgoing request at the upstream.
func (s *Server) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(s.upstream)
	pr.SetXForwarded()
	// The transport then negotiates gzip itself and decodes it.
	pr.Out.Header.Del("Accept-Encoding")
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("upstream request failed",
		"path", r.URL.Path,
		"error", err,
	)
	http.Error(w, "upstream unavailable", http.StatusBadGateway)
}
