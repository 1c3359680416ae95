package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/fieldlink/internal/config"
	"github.com/nao1215/fieldlink/internal/database"
	"github.com/nao1215/fieldlink/internal/model"
)

// errNotEnoughRuns is returned by --diff when a source has fewer than two
// recorded runs.
var errNotEnoughRuns = errors.New("at least two recorded runs are needed to compare")

// NewHistoryCmd creates the history command.
// This command reads the render runs recorded with --save.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [source]",
		Short: "Show recorded render runs",
		Long: `History lists the render runs recorded with 'render --save' and
'watch --save'.

Examples:
  # List every recorded source
  fieldlink history --list-sources

  # List the runs of one source (or of every source without an argument)
  fieldlink history https://forum.example.com/u/alice

  # Show the full report of a run
  fieldlink history --id 5

  # Show the links added and removed between the latest two runs
  fieldlink history --diff https://forum.example.com/u/alice`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-sources", "L", false,
		"List all sources in the database")
	cmd.Flags().Int64P("id", "i", 0,
		"Show the report of the run with this ID")
	cmd.Flags().Bool("diff", false,
		"Compare the latest two runs of the source")
	cmd.Flags().BoolP("json", "j", false,
		"Output the report of --id in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the report of --id in Markdown format")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	listSources bool
	id          int64
	diff        bool
	source      string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var opts historyOptions
	var err error
	if opts.listSources, err = cmd.Flags().GetBool("list-sources"); err != nil {
		return err
	}
	if opts.id, err = cmd.Flags().GetInt64("id"); err != nil {
		return err
	}
	if opts.diff, err = cmd.Flags().GetBool("diff"); err != nil {
		return err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return err
	}
	if len(args) > 0 {
		opts.source = args[0]
	}

	// Validate before opening the database.
	if cfg.JSONReport && cfg.MarkdownReport {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}
	if opts.diff && opts.source == "" {
		return errors.New("a source is required with --diff")
	}

	db, err := database.Open(cfg.EffectiveDBDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(cmd.Context(), db, cfg, opts, cmd.OutOrStdout())
}

// runHistory dispatches on the history options.
func runHistory(ctx context.Context, db *database.RenderDB, cfg *config.Config, opts historyOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.listSources:
		return listSources(ctx, db, out)
	case opts.id > 0:
		return showRun(ctx, db, cfg, opts.id, out)
	case opts.diff:
		return diffRuns(ctx, db, opts.source, out)
	default:
		return listRuns(ctx, db, opts.source, out)
	}
}

// listSources lists every source with recorded runs.
func listSources(ctx context.Context, db *database.RenderDB, out io.Writer) error {
	sources, err := db.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if len(sources) == 0 {
		fmt.Fprintln(out, "No render runs found in the database.")
		fmt.Fprintln(out, "\nUse 'fieldlink render --save <source>' to record a run.")
		return nil
	}

	fmt.Fprintf(out, "Rendered sources (%d):\n\n", len(sources))
	for _, source := range sources {
		fmt.Fprintf(out, "  • %s\n", source)
	}
	fmt.Fprintln(out, "\nUse 'fieldlink history <source>' to see the runs of a source.")
	return nil
}

// listRuns lists the runs of source, or of every source when empty.
func listRuns(ctx context.Context, db *database.RenderDB, source string, out io.Writer) error {
	runs, err := db.GetRenderHistoryWithMetadata(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to get render history: %w", err)
	}

	label := source
	if label == "" {
		label = "all sources"
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No render history found for %s\n", label)
		return nil
	}

	fmt.Fprintf(out, "Render history for %s (%d runs):\n\n", label, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-7s  %-9s  %-6s  %s\n", "ID", "Date", "Fields", "Rewritten", "Links", "Source")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))

	for _, meta := range runs {
		src := meta.Source
		if meta.Error != "" {
			src += " (error: " + meta.Error + ")"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-7d  %-9d  %-6d  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			meta.Fields,
			meta.Rewritten,
			meta.Links,
			src,
		)
	}

	fmt.Fprintln(out, "\nUse 'fieldlink history --id <id>' to show the report of a run.")
	return nil
}

// showRun writes the full report of one run.
func showRun(ctx context.Context, db *database.RenderDB, cfg *config.Config, id int64, out io.Writer) error {
	report, err := db.GetRenderReportByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get run %d: %w", id, err)
	}
	if report == nil {
		return fmt.Errorf("no run with ID %d", id)
	}

	_, err = newReportWriter(cfg, out).Write(report)
	return err
}

// linkDiff is the change in links between two runs.
type linkDiff struct {
	added   []string
	removed []string
}

// compareLinks returns the links present in cur but not prev, and the
// reverse, each sorted.
func compareLinks(prev, cur *model.RenderReport) linkDiff {
	before := linkSet(prev)
	after := linkSet(cur)

	var diff linkDiff
	for link := range after {
		if !before[link] {
			diff.added = append(diff.added, link)
		}
	}
	for link := range before {
		if !after[link] {
			diff.removed = append(diff.removed, link)
		}
	}
	sort.Strings(diff.added)
	sort.Strings(diff.removed)
	return diff
}

func linkSet(report *model.RenderReport) map[string]bool {
	set := make(map[string]bool)
	for _, field := range report.Fields {
		for _, link := range field.Links {
			set[link] = true
		}
	}
	return set
}

// diffRuns prints the link changes between the latest two runs of source.
func diffRuns(ctx context.Context, db *database.RenderDB, source string, out io.Writer) error {
	history, err := db.GetRenderHistory(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to get render history: %w", err)
	}
	if len(history) < 2 {
		return fmt.Errorf("%w: %s has %d", errNotEnoughRuns, source, len(history))
	}

	cur, prev := history[0], history[1]
	diff := compareLinks(prev, cur)

	fmt.Fprintf(out, "Comparing runs of %s\n", source)
	fmt.Fprintf(out, "  previous: %s (%d links)\n", prev.DateRendered.Format("2006-01-02 15:04:05"), prev.LinkCount())
	fmt.Fprintf(out, "  latest:   %s (%d links)\n\n", cur.DateRendered.Format("2006-01-02 15:04:05"), cur.LinkCount())

	if len(diff.added) == 0 && len(diff.removed) == 0 {
		fmt.Fprintln(out, "No link changes.")
		return nil
	}
	for _, link := range diff.added {
		fmt.Fprintf(out, "  + %s\n", link)
	}
	for _, link := range diff.removed {
		fmt.Fprintf(out, "  - %s\n", link)
	}
	return nil
}
