package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/fieldlink/internal/config"
	"github.com/nao1215/fieldlink/internal/database"
	"github.com/nao1215/fieldlink/internal/fetch"
	"github.com/nao1215/fieldlink/internal/model"
	"github.com/nao1215/fieldlink/internal/pipeline"
	"github.com/nao1215/fieldlink/internal/renderer"
)

// NewRenderCmd creates the render command.
func NewRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [source...]",
		Short: "Render links in the custom user fields of HTML documents",
		Long: `Render finds custom user field values in HTML documents and turns the
links in them into anchors.

A source is a file path, an http(s) URL, or - for stdin. Remote pages are
fetched with the cookie and headers configured for their host, so logged-in
profile pages can be rendered too.

By default a report is printed and the rendered documents are discarded.
Use --output-dir to keep them, or --stdout to print the single rendered
document instead of the report.

Examples:
  # Report the fields of a saved profile page
  fieldlink render profile.html

  # Render a live profile page and keep the result
  fieldlink render -d rendered https://forum.example.com/u/alice

  # Use as a filter
  cat profile.html | fieldlink render --stdout - > rendered.html

  # JSON report for several pages, recorded in the history database
  fieldlink render --json --save page1.html page2.html

  # Fetch a forum that is only reachable through Tor
  fieldlink render --socks-proxy 127.0.0.1:9050 http://forumxyz.onion/u/alice`,
		Args: cobra.ArbitraryArgs,
		RunE: runRenderCmd,
	}

	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"HTTP timeout for remote sources")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of documents rendered concurrently")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for remote sources")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes for remote sources")

	// Output flags
	cmd.Flags().StringP("output-dir", "d", "",
		"Write rendered documents into this directory")
	cmd.Flags().Bool("stdout", false,
		"Print the rendered document instead of the report (single source only)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	addSocksFlag(cmd)
	addRendererFlags(cmd)
	addDatabaseFlags(cmd)
	cmd.Flags().Duration("skip-recent", 0,
		"Skip sources rendered within this window according to the history database (e.g. 1h)")

	return cmd
}

// runRenderCmd executes the render command.
func runRenderCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildRenderConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.ValidateSources(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runRender(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
}

// buildRenderConfig creates a Config from the render command flags.
func buildRenderConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := newBaseConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = cmd.Flags().GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.Stdout, err = cmd.Flags().GetBool("stdout"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if err := readSocksFlag(cmd, cfg); err != nil {
		return nil, err
	}
	if err := readRendererFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := readDatabaseFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if cfg.SkipRecent, err = cmd.Flags().GetDuration("skip-recent"); err != nil {
		return nil, err
	}

	cfg.Sources = args
	return cfg, nil
}

// runRender renders every source and writes one report per source, plus a
// batch summary for more than one source. It fails when any source failed.
func runRender(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	// Reject bad selectors before any source is loaded.
	if _, err := renderer.New(rendererOptions(cfg)...); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger.Info("starting render",
		"sources", len(cfg.Sources),
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var transport http.RoundTripper
	if cfg.SocksProxy != "" {
		t, err := newBaseTransport(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer t.CloseIdleConnections()
		transport = t
	}

	var db *database.RenderDB
	if cfg.SaveToDB || cfg.SkipRecent > 0 {
		var err error
		db, err = database.Open(cfg.EffectiveDBDir(), database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	sources := cfg.Sources
	if cfg.SkipRecent > 0 {
		var err error
		sources, err = skipRecentSources(ctx, db, sources, cfg.SkipRecent, logger)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Fprintf(stdout, "All sources were rendered within %s. Nothing to do.\n", cfg.SkipRecent)
			return nil
		}
	}

	fetcher := fetch.New(
		fetch.WithHTTPClient(fetch.NewHTTPClient(cfg.Timeout, cfg.SiteConfigs, transport)),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithStdin(stdin),
		fetch.WithLogger(logger),
	)

	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineSites(cfg.SiteConfigs),
		pipeline.WithPipelineRendererOptions(rendererOptions(cfg)...),
		pipeline.WithPipelineSameTab(cfg.SameTab),
	}
	switch {
	case cfg.Stdout:
		configOpts = append(configOpts, pipeline.WithPipelineOutput(stdout))
	case cfg.OutputDir != "":
		configOpts = append(configOpts, pipeline.WithPipelineOutputDir(cfg.OutputDir))
	}
	if cfg.SaveToDB {
		configOpts = append(configOpts, pipeline.WithPipelineStore(db))
	}

	// With --stdout the report is only written to a report file.
	fallback := stdout
	if cfg.Stdout {
		fallback = io.Discard
	}
	out, closeOut, err := openReportOutput(cfg, fallback)
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // Best effort close of the report file
	writer := newReportWriter(cfg, out)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(fetcher,
				[]pipeline.Option{
					pipeline.WithLogger(logger),
					pipeline.WithContinueOnError(true),
				},
				configOpts...,
			)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	reports := make([]*model.RenderReport, len(sources))
	var mu sync.Mutex
	batchErr := bp.ProcessBatchWithCallback(ctx, sources, func(job *model.RenderJob, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = job.Report
		if job.OutputPath != "" {
			logger.Info("rendered document written", "source", job.Source, "path", job.OutputPath)
		}
		if _, err := writer.Write(job.Report); err != nil {
			logger.Error("report failed", "source", job.Source, "error", err)
		}
	})

	if len(sources) > 1 {
		if _, err := writer.WriteSummary(model.NewBatchSummary(reports)); err != nil {
			logger.Error("summary failed", "error", err)
		}
	}

	if batchErr != nil {
		return batchErr
	}
	if failed := countFailed(reports); failed > 0 {
		return fmt.Errorf("%d of %d source(s) failed to render", failed, len(sources))
	}
	return nil
}

// skipRecentSources drops the sources rendered within window. Stdin is
// never skipped.
func skipRecentSources(ctx context.Context, db *database.RenderDB, sources []string, window time.Duration, logger *slog.Logger) ([]string, error) {
	kept := make([]string, 0, len(sources))
	for _, source := range sources {
		if source == fetch.StdinSource {
			kept = append(kept, source)
			continue
		}
		recent, err := db.HasRecentRender(ctx, source, window)
		if err != nil {
			return nil, fmt.Errorf("failed to check render history: %w", err)
		}
		if recent {
			logger.Info("skipping recently rendered source", "source", source, "window", window)
			continue
		}
		kept = append(kept, source)
	}
	return kept, nil
}
