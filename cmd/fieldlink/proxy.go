package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nao1215/fieldlink/internal/config"
	"github.com/nao1215/fieldlink/internal/proxy"
)

// NewProxyCmd creates the proxy command.
func NewProxyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Serve a forum through a proxy that renders field links",
		Long: `Proxy forwards requests to a forum and renders the custom user field
links of every HTML page on the way back. Other responses pass through
untouched.

The cookie, headers, settings and selectors configured for the upstream
host are applied, so the proxy can serve logged-in pages.

Examples:
  # Browse http://127.0.0.1:8080 instead of the forum
  fieldlink proxy --upstream https://forum.example.com

  # Listen on another address
  fieldlink proxy -u https://forum.example.com -l :9000

  # Reach the forum through Tor
  fieldlink proxy -u http://forumxyz.onion --socks-proxy 127.0.0.1:9050`,
		Args: cobra.NoArgs,
		RunE: runProxyCmd,
	}

	cmd.Flags().StringP("upstream", "u", "",
		"Base URL of the forum to proxy (required)")
	cmd.Flags().StringP("listen", "l", config.DefaultListenAddr,
		"Listen address")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for upstream response headers")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Largest HTML page that is rendered; larger pages pass through")

	addSocksFlag(cmd)
	addRendererFlags(cmd)

	return cmd
}

// runProxyCmd executes the proxy command.
func runProxyCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildProxyConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ValidateProxy(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runProxy(ctx, cfg, logger, func(s *proxy.Server) {
		fmt.Fprintf(cmd.OutOrStdout(), "Proxying %s on http://%s (Ctrl+C to stop)\n", s.Upstream(), cfg.ListenAddr)
	})
}

// buildProxyConfig creates a Config from the proxy command flags.
func buildProxyConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := newBaseConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.Upstream, err = cmd.Flags().GetString("upstream"); err != nil {
		return nil, err
	}
	if cfg.ListenAddr, err = cmd.Flags().GetString("listen"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if err := readSocksFlag(cmd, cfg); err != nil {
		return nil, err
	}
	if err := readRendererFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newProxyServer builds the proxy for cfg.
func newProxyServer(cfg *config.Config, transport *http.Transport, logger *slog.Logger) (*proxy.Server, error) {
	transport.ResponseHeaderTimeout = cfg.Timeout

	return proxy.New(cfg.Upstream,
		proxy.WithTransport(transport),
		proxy.WithSites(cfg.SiteConfigs),
		proxy.WithRendererOptions(rendererOptions(cfg)...),
		proxy.WithSameTab(cfg.SameTab),
		proxy.WithMaxBodySize(cfg.MaxBodySize),
		proxy.WithLogger(logger),
	)
}

// runProxy serves until ctx is cancelled. ready is called once the server
// is built.
func runProxy(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready func(*proxy.Server)) error {
	transport, err := newBaseTransport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer transport.CloseIdleConnections()

	s, err := newProxyServer(cfg, transport, logger)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if ready != nil {
		ready(s)
	}
	return s.ListenAndServe(ctx, cfg.ListenAddr)
}
