package watcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/nao1215/fieldlink/internal/config"
	"github.com/nao1215/fieldlink/internal/model"
	"github.com/nao1215/fieldlink/internal/observer"
	"github.com/nao1215/fieldlink/internal/pipeline"
	"github.com/nao1215/fieldlink/internal/renderer"
)

// ErrScanTimeout is returned when the observer does not report a scan for
// a navigated snapshot in time.
var ErrScanTimeout = errors.New("timed out waiting for page scan")

// Store persists watched documents and their render runs.
// database.RenderDB implements it.
type Store interface {
	IsUnchanged(ctx context.Context, source, hash string) (bool, error)
	UpsertDocument(ctx context.Context, doc *model.Document) (int64, error)
	SaveRenderReport(ctx context.Context, report *model.RenderReport) error
}

// ReportHook is called with the report of every rendered snapshot.
type ReportHook func(*model.RenderReport)

// fileState is what a poll remembers about a file.
type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher polls a directory and renders changed snapshots.
type Watcher struct {
	dir       string
	interval  time.Duration
	renderer  *renderer.Renderer
	loader    pipeline.Loader
	store     Store
	outputDir string
	hook      ReportHook
	logger    *slog.Logger

	observerOpts []observer.Option
	scanTimeout  time.Duration

	seen   map[string]fileState
	obs    *observer.Observer
	events chan observer.ScanEvent

	// current is the snapshot the observer shows. Changes to it are applied
	// as mutations rather than page changes.
	current     string
	lastTrigger observer.Trigger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the polling period. Non-positive values keep the
// default.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLoader sets the loader used to read snapshots.
func WithLoader(loader pipeline.Loader) Option {
	return func(w *Watcher) {
		w.loader = loader
	}
}

// WithStore records documents and runs, and skips unchanged snapshots.
func WithStore(store Store) Option {
	return func(w *Watcher) {
		w.store = store
	}
}

// WithOutputDir writes every rendered snapshot to dir.
func WithOutputDir(dir string) Option {
	return func(w *Watcher) {
		w.outputDir = dir
	}
}

// WithReportHook sets a function called with every report.
func WithReportHook(hook ReportHook) Option {
	return func(w *Watcher) {
		w.hook = hook
	}
}

// WithObserverOptions adds options for the underlying observer.
// The scan hook and ModePageChange are always set by the watcher.
func WithObserverOptions(opts ...observer.Option) Option {
	return func(w *Watcher) {
		w.observerOpts = append(w.observerOpts, opts...)
	}
}

// WithScanTimeout bounds the wait for the scan of one snapshot.
func WithScanTimeout(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.scanTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a Watcher for dir using r for every scan.
func New(dir string, r *renderer.Renderer, opts ...Option) *Watcher {
	w := &Watcher{
		dir:         dir,
		interval:    config.DefaultPollInterval,
		renderer:    r,
		scanTimeout: 10 * time.Second,
		seen:        make(map[string]fileState),
		events:      make(chan observer.ScanEvent, 1),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.loader == nil {
		w.loader = pipeline.LoaderFunc(loadFile)
	}

	obsOpts := append([]observer.Option{observer.WithLogger(w.logger)}, w.observerOpts...)
	obsOpts = append(obsOpts, observer.WithMode(observer.ModePageChange), observer.WithScanHook(w.onScan))
	w.obs = observer.New(r, nil, obsOpts...)

	return w
}

// Start starts the observer. Poll may be called once Start returns.
func (w *Watcher) Start(ctx context.Context) error {
	return w.obs.Start(ctx)
}

// Stop stops the observer. A stopped Watcher cannot be restarted.
func (w *Watcher) Stop() {
	w.obs.Stop()
}

// Run starts the watcher and polls until ctx is cancelled. The first poll
// happens immediately. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	w.logger.Info("watching directory", "dir", w.dir, "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll renders every snapshot that is new or modified since the last
// poll and returns their reports. A snapshot that fails is logged and
// reported with its error; only directory and observer errors stop the
// poll.
func (w *Watcher) Poll(ctx context.Context) ([]*model.RenderReport, error) {
	changed, err := w.changedFiles()
	if err != nil {
		return nil, err
	}

	var reports []*model.RenderReport
	for _, path := range changed {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := w.process(ctx, path)
		if errors.Is(err, observer.ErrStopped) || errors.Is(err, observer.ErrNotStarted) {
			return reports, err
		}
		if report == nil {
			continue
		}
		if err != nil {
			report.SetError(err)
			w.logger.Warn("failed to render snapshot", "file", path, "error", err)
		}

		w.save(ctx, report)
		if w.hook != nil {
			w.hook(report)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// changedFiles lists new and modified snapshots in name order and forgets
// removed ones.
func (w *Watcher) changedFiles() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", w.dir, err)
	}

	present := make(map[string]bool, len(entries))
	var changed []string
	for _, entry := range entries {
		if entry.IsDir() || !isSnapshot(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(w.dir, entry.Name())
		present[path] = true

		state := fileState{modTime: info.ModTime(), size: info.Size()}
		if prev, ok := w.seen[path]; ok && prev == state {
			continue
		}
		w.seen[path] = state
		changed = append(changed, path)
	}

	for path := range w.seen {
		if !present[path] {
			delete(w.seen, path)
		}
	}

	sort.Strings(changed)
	return changed, nil
}

// process navigates the observer to one snapshot and waits for its scan.
// It returns a nil report for skipped snapshots.
func (w *Watcher) process(ctx context.Context, path string) (*model.RenderReport, error) {
	report := model.NewRenderReport(path)

	doc, err := w.loader.Load(ctx, path)
	if err != nil {
		return report, err
	}
	report.Hash = doc.Hash

	if w.store != nil {
		unchanged, err := w.store.IsUnchanged(ctx, path, doc.Hash)
		if err != nil {
			w.logger.Warn("failed to check snapshot history", "file", path, "error", err)
		} else if unchanged {
			w.logger.Debug("snapshot unchanged, skipping", "file", path)
			return nil, nil
		}
	}

	root, err := html.Parse(bytes.NewReader(doc.Raw))
	if err != nil {
		return report, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	w.drainEvents()
	report.Settings = w.renderer.Settings()
	if err := w.show(path, root); err != nil {
		return report, err
	}

	ev, err := w.waitScan(ctx)
	if err != nil {
		return report, err
	}
	w.lastTrigger = ev.Trigger
	report.AddFields(ev.Results...)
	w.logger.Debug("snapshot scanned", "file", path, "trigger", ev.Trigger.String())

	var buf bytes.Buffer
	if err := w.obs.Snapshot(&buf); err != nil {
		return report, err
	}
	doc.Rendered = buf.Bytes()

	if w.outputDir != "" {
		if err := w.writeRendered(path, doc.Rendered); err != nil {
			return report, err
		}
	}
	if w.store != nil {
		if _, err := w.store.UpsertDocument(ctx, doc); err != nil {
			w.logger.Error("failed to store document", "file", path, "error", err)
		}
	}
	return report, nil
}

// show puts root on the observer. A new snapshot is a page change. An
// in-place change of the current snapshot is a mutation once the observer
// watches mutations, and a page change before that.
func (w *Watcher) show(path string, root *html.Node) error {
	if path == w.current {
		observing, err := w.obs.Observing()
		if err != nil {
			return err
		}
		if observing {
			return w.obs.Mutate(func(doc *html.Node) {
				replaceContent(doc, root)
			})
		}
	}

	if err := w.obs.Navigate(root); err != nil {
		return err
	}
	w.current = path
	return nil
}

// replaceContent moves the children of src into dst, replacing dst's.
func replaceContent(dst, src *html.Node) {
	for c := dst.FirstChild; c != nil; c = dst.FirstChild {
		dst.RemoveChild(c)
	}
	for c := src.FirstChild; c != nil; c = src.FirstChild {
		src.RemoveChild(c)
		dst.AppendChild(c)
	}
}

// onScan runs on the observer loop goroutine. Page change scans answer a
// navigation and mutation scans answer an in-place change.
func (w *Watcher) onScan(ev observer.ScanEvent) {
	if ev.Trigger != observer.TriggerPageChange && ev.Trigger != observer.TriggerMutation {
		return
	}
	select {
	case w.events <- ev:
	default:
		w.logger.Debug("dropping stale scan event")
	}
}

func (w *Watcher) drainEvents() {
	for {
		select {
		case <-w.events:
		default:
			return
		}
	}
}

func (w *Watcher) waitScan(ctx context.Context) (observer.ScanEvent, error) {
	timer := time.NewTimer(w.scanTimeout)
	defer timer.Stop()

	select {
	case ev := <-w.events:
		return ev, nil
	case <-ctx.Done():
		return observer.ScanEvent{}, ctx.Err()
	case <-w.obs.Done():
		return observer.ScanEvent{}, observer.ErrStopped
	case <-timer.C:
		return observer.ScanEvent{}, ErrScanTimeout
	}
}

func (w *Watcher) writeRendered(path string, rendered []byte) error {
	if err := os.MkdirAll(w.outputDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	out := filepath.Join(w.outputDir, pipeline.OutputName(path))
	if err := os.WriteFile(out, rendered, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	w.logger.Debug("rendered snapshot written", "file", path, "output", out)
	return nil
}

func (w *Watcher) save(ctx context.Context, report *model.RenderReport) {
	if w.store == nil {
		return
	}
	if err := w.store.SaveRenderReport(ctx, report); err != nil {
		w.logger.Error("failed to save render report", "file", report.Source, "error", err)
	}
}

func isSnapshot(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}

func loadFile(_ context.Context, path string) (*model.Document, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // Watched directory is user-provided
	if err != nil {
		return nil, err
	}
	return model.NewDocument(path, raw), nil
}
