package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/fieldlink/internal/config"
	"github.com/nao1215/fieldlink/internal/fetch"
	"github.com/nao1215/fieldlink/internal/log"
	"github.com/nao1215/fieldlink/internal/model"
	"github.com/nao1215/fieldlink/internal/renderer"
	"github.com/nao1215/fieldlink/internal/report"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getConfigFlag retrieves the config file flag from the command or its
// parent.
func getConfigFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return ""
		}
	}
	return path
}

// getLogJSONFlag retrieves the log-json flag from the command or its parent.
func getLogJSONFlag(cmd *cobra.Command) bool {
	jsonLogs, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		jsonLogs, err = cmd.Root().PersistentFlags().GetBool("log-json")
		if err != nil {
			return false
		}
	}
	return jsonLogs
}

// setupLogger creates the masking structured logger on stderr.
func setupLogger(cfg *config.Config) *slog.Logger {
	if cfg.JSONLogs {
		return log.NewSecureJSONLogger(os.Stderr, cfg.Verbose)
	}
	return log.NewSecureLogger(os.Stderr, cfg.Verbose)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// addRendererFlags registers the flags that shape the renderer.
func addRendererFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("selector", "s", nil,
		"CSS selector for field values (repeatable, overrides config and defaults)")
	cmd.Flags().Bool("same-tab", false,
		"Open generated links in the same tab")
	cmd.Flags().Bool("no-escaped-html", false,
		"Do not decode entity-escaped anchors")
	cmd.Flags().Bool("whole-field", false,
		"Turn a field that starts with a URL into a single link")
}

// addDatabaseFlags registers the history database flags.
func addDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("save", false,
		"Record every run in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
}

// addSocksFlag registers the SOCKS5 proxy flag for remote requests.
func addSocksFlag(cmd *cobra.Command) {
	cmd.Flags().String("socks-proxy", "",
		"SOCKS5 proxy (host:port) for remote requests, e.g. 127.0.0.1:9050 for Tor")
}

// readSocksFlag fills the SOCKS5 proxy address of cfg.
func readSocksFlag(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	cfg.SocksProxy, err = cmd.Flags().GetString("socks-proxy")
	return err
}

// newBaseTransport returns the transport for remote requests. Without a
// SOCKS proxy it is a clone of http.DefaultTransport. With one, the proxy
// must answer a SOCKS5 greeting first.
func newBaseTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*http.Transport, error) {
	if cfg.SocksProxy == "" {
		return http.DefaultTransport.(*http.Transport).Clone(), nil
	}

	if err := fetch.ValidateProxyAddress(cfg.SocksProxy); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	logger.Info("checking SOCKS proxy", "address", cfg.SocksProxy)
	if err := fetch.CheckSOCKSProxy(ctx, cfg.SocksProxy); err != nil {
		return nil, fmt.Errorf("SOCKS proxy unavailable: %w", err)
	}
	return fetch.NewSOCKSTransport(cfg.SocksProxy)
}

// newBaseConfig reads the flags every command shares and loads the
// configuration file.
func newBaseConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.JSONLogs = getLogJSONFlag(cmd)

	cfg.ConfigFilePath = getConfigFlag(cmd)

	var err error
	cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSiteConfigs loads the configuration file. If the user explicitly
// specified a path, a missing file is an error; otherwise an empty
// configuration is used.
func loadSiteConfigs(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	switch {
	case found != "":
		cf, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		return cf, nil
	case path != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	default:
		return &config.File{
			Settings: make(config.SettingValues),
			Sites:    make(map[string]config.SiteConfig),
		}, nil
	}
}

// readRendererFlags fills the renderer options of cfg.
func readRendererFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.Selectors, err = cmd.Flags().GetStringSlice("selector"); err != nil {
		return err
	}
	if cfg.SameTab, err = cmd.Flags().GetBool("same-tab"); err != nil {
		return err
	}
	if cfg.DisableEscapedHTML, err = cmd.Flags().GetBool("no-escaped-html"); err != nil {
		return err
	}
	if cfg.WholeField, err = cmd.Flags().GetBool("whole-field"); err != nil {
		return err
	}
	return nil
}

// readDatabaseFlags fills the history database options of cfg.
func readDatabaseFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.SaveToDB, err = cmd.Flags().GetBool("save"); err != nil {
		return err
	}
	if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return err
	}
	return nil
}

// rendererOptions returns the renderer options chosen on the command line.
// Site settings and selectors are applied before them.
func rendererOptions(cfg *config.Config) []renderer.Option {
	opts := []renderer.Option{
		renderer.WithEscapedHTML(!cfg.DisableEscapedHTML),
		renderer.WithWholeFieldShortcut(cfg.WholeField),
	}
	if len(cfg.Selectors) > 0 {
		opts = append(opts, renderer.WithSelectors(cfg.Selectors...))
	}
	return opts
}

// newReportWriter returns the report writer for the selected format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// openReportOutput opens the report file, or returns fallback when no file
// is configured. The returned function closes the file.
func openReportOutput(cfg *config.Config, fallback io.Writer) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return fallback, func() error { return nil }, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports can include field text from logged-in pages.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// countFailed returns the number of failed reports.
func countFailed(reports []*model.RenderReport) int {
	failed := 0
	for _, r := range reports {
		if r != nil && r.Failed() {
			failed++
		}
	}
	return failed
}
