package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/fieldlink/internal/config"
	"github.com/nao1215/fieldlink/internal/database"
	"github.com/nao1215/fieldlink/internal/fetch"
	"github.com/nao1215/fieldlink/internal/model"
	"github.com/nao1215/fieldlink/internal/observer"
	"github.com/nao1215/fieldlink/internal/renderer"
	"github.com/nao1215/fieldlink/internal/watcher"
)

// errNotDirectory is returned when the watch target is not a directory.
var errNotDirectory = errors.New("watch target is not a directory")

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Render HTML snapshots in a directory as they change",
		Long: `Watch polls a directory of saved HTML pages. Every new or modified
*.html file is loaded as a page transition and its custom user fields are
rendered after the page change delay.

With --save, runs are recorded in the history database and a snapshot
whose content is unchanged since its last run is skipped, also across
restarts.

Examples:
  # Watch a directory and print a line per rendered snapshot
  fieldlink watch ./snapshots

  # Keep the rendered pages and the history
  fieldlink watch -d rendered --save ./snapshots

  # Render the current snapshots once and exit
  fieldlink watch --once ./snapshots`,
		Args: cobra.ExactArgs(1),
		RunE: runWatchCmd,
	}

	cmd.Flags().DurationP("interval", "i", config.DefaultPollInterval,
		"Polling interval")
	cmd.Flags().Duration("page-change-delay", config.DefaultPageChangeDelay,
		"Wait between loading a snapshot and scanning it")
	cmd.Flags().StringP("output-dir", "d", "",
		"Write rendered snapshots into this directory")
	cmd.Flags().Bool("once", false,
		"Poll once and exit")

	addRendererFlags(cmd)
	addDatabaseFlags(cmd)

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildWatchConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.ValidateSources(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	once, err := cmd.Flags().GetBool("once")
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runWatch(ctx, cfg, once, cmd.OutOrStdout(), logger)
}

// buildWatchConfig creates a Config from the watch command flags.
func buildWatchConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := newBaseConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.PollInterval, err = cmd.Flags().GetDuration("interval"); err != nil {
		return nil, err
	}
	if cfg.PageChangeDelay, err = cmd.Flags().GetDuration("page-change-delay"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = cmd.Flags().GetString("output-dir"); err != nil {
		return nil, err
	}
	if err := readRendererFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := readDatabaseFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Sources = args
	return cfg, nil
}

// newWatchRenderer builds the renderer for local snapshots: the file-level
// settings and selectors, then the command line options.
func newWatchRenderer(cfg *config.Config, logger *slog.Logger) (*renderer.Renderer, error) {
	opts := []renderer.Option{renderer.WithLogger(logger)}
	if cfg.SiteConfigs != nil {
		site := cfg.SiteConfigs.SiteConfig("")
		opts = append(opts, renderer.WithSite(site.Settings, site.Selectors))
	}
	opts = append(opts, rendererOptions(cfg)...)
	if cfg.SameTab {
		opts = append(opts, renderer.WithSameTab())
	}
	return renderer.New(opts...)
}

// runWatch watches cfg.Sources[0] until ctx is cancelled, or polls it once.
func runWatch(ctx context.Context, cfg *config.Config, once bool, out io.Writer, logger *slog.Logger) error {
	dir := cfg.Sources[0]
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", errNotDirectory, dir)
	}

	r, err := newWatchRenderer(cfg, logger)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	opts := []watcher.Option{
		watcher.WithInterval(cfg.PollInterval),
		watcher.WithLoader(fetch.New(fetch.WithLogger(logger))),
		watcher.WithOutputDir(cfg.OutputDir),
		watcher.WithLogger(logger),
		watcher.WithObserverOptions(
			observer.WithPageChangeDelay(cfg.PageChangeDelay),
		),
		watcher.WithReportHook(func(report *model.RenderReport) {
			printWatchLine(out, report)
		}),
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.EffectiveDBDir(), database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		opts = append(opts, watcher.WithStore(db))
	}

	w := watcher.New(dir, r, opts...)

	if !once {
		fmt.Fprintf(out, "Watching %s (every %s, Ctrl+C to stop)...\n", dir, cfg.PollInterval)
		return w.Run(ctx)
	}

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	reports, err := w.Poll(ctx)
	if err != nil {
		return err
	}
	if failed := countFailed(reports); failed > 0 {
		return fmt.Errorf("%d of %d snapshot(s) failed to render", failed, len(reports))
	}
	return nil
}

// printWatchLine prints one line per rendered snapshot.
func printWatchLine(out io.Writer, report *model.RenderReport) {
	if report.Failed() {
		fmt.Fprintf(out, "[x] %s: %s\n", report.Source, report.ErrorMessage)
		return
	}
	fmt.Fprintf(out, "[+] %s: %d field(s), %d rewritten, %d link(s)\n",
		report.Source, report.FieldCount(), report.RewrittenCount(), report.LinkCount())
}
