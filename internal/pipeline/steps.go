package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nao1215/fieldlink/internal/config"
	"github.com/nao1215/fieldlink/internal/fetch"
	"github.com/nao1215/fieldlink/internal/model"
	"github.com/nao1215/fieldlink/internal/renderer"
)

// ErrNoDocument is returned by steps that need a loaded document.
var ErrNoDocument = errors.New("no document loaded")

// Loader reads the document named by a source.
// fetch.Fetcher implements it.
type Loader interface {
	Load(ctx context.Context, source string) (*model.Document, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, source string) (*model.Document, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, source string) (*model.Document, error) {
	return f(ctx, source)
}

// ReportStore persists render reports.
// database.RenderDB implements it.
type ReportStore interface {
	SaveRenderReport(ctx context.Context, report *model.RenderReport) error
}

// DocumentStore is implemented by stores that also keep the latest version
// of each document. PersistStep uses it when the store provides it.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc *model.Document) (int64, error)
}

// LoadStep reads the job's source into job.Document.
type LoadStep struct {
	loader Loader
	logger *slog.Logger
}

// NewLoadStep creates a load step.
func NewLoadStep(loader Loader, logger *slog.Logger) *LoadStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadStep{loader: loader, logger: logger}
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do executes the load step.
func (s *LoadStep) Do(ctx context.Context, job *model.RenderJob) error {
	doc, err := s.loader.Load(ctx, job.Source)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	job.Document = doc
	job.Report.Hash = doc.Hash

	s.logger.Debug("document loaded",
		"source", job.Source,
		"bytes", len(doc.Raw),
		"hash", doc.Hash,
	)
	return nil
}

// RenderStep renders the links in the custom user fields of job.Document.
// A renderer is built per job so that each forum host gets its own
// settings and selectors from the config file.
type RenderStep struct {
	// sites is the loaded config file, or nil.
	sites *config.File

	// opts are applied after the per-site options and so win over them.
	opts []renderer.Option

	// sameTab forces links to open in the same tab.
	sameTab bool

	logger *slog.Logger
}

// RenderStepOption configures a RenderStep.
type RenderStepOption func(*RenderStep)

// WithRenderSites sets the config file used for per-site settings and
// selectors.
func WithRenderSites(sites *config.File) RenderStepOption {
	return func(s *RenderStep) {
		s.sites = sites
	}
}

// WithRendererOptions adds renderer options applied to every job.
func WithRendererOptions(opts ...renderer.Option) RenderStepOption {
	return func(s *RenderStep) {
		s.opts = append(s.opts, opts...)
	}
}

// WithRenderSameTab forces links to open in the same tab whatever the
// site settings say.
func WithRenderSameTab(sameTab bool) RenderStepOption {
	return func(s *RenderStep) {
		s.sameTab = sameTab
	}
}

// WithRenderLogger sets the logger for the step and its renderers.
func WithRenderLogger(logger *slog.Logger) RenderStepOption {
	return func(s *RenderStep) {
		s.logger = logger
	}
}

// NewRenderStep creates a render step.
func NewRenderStep(opts ...RenderStepOption) *RenderStep {
	s := &RenderStep{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Name returns the step name.
func (s *RenderStep) Name() string {
	return "render"
}

// Do executes the render step.
func (s *RenderStep) Do(_ context.Context, job *model.RenderJob) error {
	if job.Document == nil {
		return ErrNoDocument
	}

	r, err := renderer.New(s.rendererOptions(job.Source)...)
	if err != nil {
		return err
	}

	report, err := r.RenderDocument(job.Document)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	job.Report.Hash = report.Hash
	job.Report.Settings = report.Settings
	job.Report.AddFields(report.Fields...)

	s.logger.Debug("document rendered",
		"source", job.Source,
		"fields", report.FieldCount(),
		"rewritten", report.RewrittenCount(),
		"links", report.LinkCount(),
	)
	return nil
}

// rendererOptions builds the renderer options for source.
func (s *RenderStep) rendererOptions(source string) []renderer.Option {
	opts := []renderer.Option{renderer.WithLogger(s.logger)}

	if s.sites != nil {
		site := s.sites.SiteConfig(fetch.Host(source))
		opts = append(opts, renderer.WithSite(site.Settings, site.Selectors))
	}

	opts = append(opts, s.opts...)

	if s.sameTab {
		opts = append(opts, renderer.WithSameTab())
	}
	return opts
}

// WriteStep writes job.Document.Rendered to a directory or a writer.
type WriteStep struct {
	// dir receives one file per source. Ignored when w is set.
	dir string

	// w receives the rendered document directly.
	w io.Writer

	logger *slog.Logger
}

// NewWriteStep creates a step that writes rendered documents into dir.
func NewWriteStep(dir string, logger *slog.Logger) *WriteStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &WriteStep{dir: dir, logger: logger}
}

// NewStreamWriteStep creates a step that writes the rendered document to w.
func NewStreamWriteStep(w io.Writer, logger *slog.Logger) *WriteStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &WriteStep{w: w, logger: logger}
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return "write"
}

// Do executes the write step.
func (s *WriteStep) Do(_ context.Context, job *model.RenderJob) error {
	if job.Document == nil || job.Document.Rendered == nil {
		return ErrNoDocument
	}

	if s.w != nil {
		if _, err := s.w.Write(job.Document.Rendered); err != nil {
			return fmt.Errorf("failed to write rendered document: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.dir, OutputName(job.Source))
	if err := os.WriteFile(path, job.Document.Rendered, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	job.OutputPath = path

	s.logger.Debug("rendered document written", "source", job.Source, "path", path)
	return nil
}

// unsafeNameChars matches characters not kept in output file names.
var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// OutputName derives the output file name for source: the base name of a
// file, a sanitized host and path for a URL, or "stdin.html".
func OutputName(source string) string {
	if source == fetch.StdinSource {
		return "stdin.html"
	}

	if fetch.IsURL(source) {
		name := source
		if u, err := url.Parse(source); err == nil {
			name = u.Host + u.Path
		}
		name = strings.Trim(unsafeNameChars.ReplaceAllString(name, "_"), "_.")
		if name == "" {
			name = "index"
		}
		return name + ".html"
	}

	return filepath.Base(source)
}

// PersistStep records the job's report in a ReportStore, and the rendered
// document too when the store is a DocumentStore.
type PersistStep struct {
	store  ReportStore
	logger *slog.Logger
}

// NewPersistStep creates a persist step.
func NewPersistStep(store ReportStore, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persist step.
func (s *PersistStep) Do(ctx context.Context, job *model.RenderJob) error {
	if docs, ok := s.store.(DocumentStore); ok && job.Document != nil && !job.Report.Failed() {
		if _, err := docs.UpsertDocument(ctx, job.Document); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
	}
	if err := s.store.SaveRenderReport(ctx, job.Report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	s.logger.Debug("report saved", "source", job.Source)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Sites is the loaded config file, or nil.
	Sites *config.File

	// RendererOptions are applied to every renderer.
	RendererOptions []renderer.Option

	// SameTab forces links to open in the same tab.
	SameTab bool

	// OutputDir receives rendered documents when set.
	OutputDir string

	// Output receives the rendered document when set. It wins over
	// OutputDir.
	Output io.Writer

	// Store records every run when set.
	Store ReportStore
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineSites sets the config file for per-site options.
func WithPipelineSites(sites *config.File) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Sites = sites
	}
}

// WithPipelineRendererOptions adds renderer options.
func WithPipelineRendererOptions(opts ...renderer.Option) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.RendererOptions = append(c.RendererOptions, opts...)
	}
}

// WithPipelineSameTab forces links to open in the same tab.
func WithPipelineSameTab(sameTab bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.SameTab = sameTab
	}
}

// WithPipelineOutputDir writes rendered documents into dir.
func WithPipelineOutputDir(dir string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.OutputDir = dir
	}
}

// WithPipelineOutput writes the rendered document to w.
func WithPipelineOutput(w io.Writer) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Output = w
	}
}

// WithPipelineStore records every run in store.
func WithPipelineStore(store ReportStore) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Store = store
	}
}

// DefaultPipeline creates the standard pipeline: load, render, then write
// and persist when configured.
//
// The first parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineSites, etc).
func DefaultPipeline(loader Loader, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p.AddSteps(
		NewLoadStep(loader, p.logger),
		NewRenderStep(
			WithRenderSites(cfg.Sites),
			WithRendererOptions(cfg.RendererOptions...),
			WithRenderSameTab(cfg.SameTab),
			WithRenderLogger(p.logger),
		),
	)

	switch {
	case cfg.Output != nil:
		p.AddStep(NewStreamWriteStep(cfg.Output, p.logger))
	case cfg.OutputDir != "":
		p.AddStep(NewWriteStep(cfg.OutputDir, p.logger))
	}

	if cfg.Store != nil {
		p.AddStep(NewPersistStep(cfg.Store, p.logger))
	}

	return p
}
