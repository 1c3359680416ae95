package renderer

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/nao1215/fieldlink/internal/model"
)

// MarkerAttr is the attribute that marks a field element as processed.
const MarkerAttr = "data-link-processed"

// DefaultSelectors are the CSS selectors that identify rendered custom user
// field values.
var DefaultSelectors = []string{
	".user-field-value",
	".public-user-field",
	".user-profile-fields .value",
	".user-card-additional-controls .user-field",
}

// Renderer finds custom user field elements and renders the links in them.
type Renderer struct {
	// settings are used when no settings source is configured.
	settings model.Settings

	// source, when set, is consulted at the start of every pass.
	source SettingsSource

	// selectors are the CSS selectors for field elements.
	selectors []string

	// matcher is the compiled selector group.
	matcher cascadia.Selector

	// markerAttr is the attribute written on processed elements.
	markerAttr string

	// escapedHTML enables decoding of entity-escaped anchor markup.
	escapedHTML bool

	// wholeField enables the whole-field URL shortcut, which turns a field
	// whose text starts with a URL into a single link before any text node
	// scanning.
	wholeField bool

	// logger is used for debug output about each field.
	logger *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSettings sets fixed renderer settings.
func WithSettings(settings model.Settings) Option {
	return func(r *Renderer) {
		r.settings = settings
	}
}

// WithSettingsSource sets a source that is read once per pass.
// It takes precedence over WithSettings.
func WithSettingsSource(src SettingsSource) Option {
	return func(r *Renderer) {
		r.source = src
	}
}

// WithSite applies a forum host's settings and selectors. Nil settings and
// empty selectors keep the current values.
func WithSite(settings SettingsSource, selectors []string) Option {
	return func(r *Renderer) {
		if settings != nil {
			r.source = settings
		}
		if len(selectors) > 0 {
			r.selectors = selectors
		}
	}
}

// WithSameTab makes links open in the same tab, dropping any settings
// source configured before it.
func WithSameTab() Option {
	return func(r *Renderer) {
		r.source = nil
		r.settings = model.Settings{OpenInNewTab: false}
	}
}

// WithSelectors replaces the default field selectors.
// An empty list keeps the defaults.
func WithSelectors(selectors ...string) Option {
	return func(r *Renderer) {
		if len(selectors) > 0 {
			r.selectors = selectors
		}
	}
}

// WithMarkerAttr changes the processed-marker attribute name.
func WithMarkerAttr(name string) Option {
	return func(r *Renderer) {
		if name != "" {
			r.markerAttr = name
		}
	}
}

// WithEscapedHTML enables or disables decoding of entity-escaped anchors.
// Enabled by default.
func WithEscapedHTML(enabled bool) Option {
	return func(r *Renderer) {
		r.escapedHTML = enabled
	}
}

// WithWholeFieldShortcut enables or disables the whole-field URL shortcut.
// Disabled by default.
func WithWholeFieldShortcut(enabled bool) Option {
	return func(r *Renderer) {
		r.wholeField = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// New creates a Renderer. It returns an error when a selector does not
// compile.
func New(opts ...Option) (*Renderer, error) {
	r := &Renderer{
		settings:    model.DefaultSettings(),
		selectors:   DefaultSelectors,
		markerAttr:  MarkerAttr,
		escapedHTML: true,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	matcher, err := cascadia.Compile(strings.Join(r.selectors, ", "))
	if err != nil {
		return nil, fmt.Errorf("invalid field selector: %w", err)
	}
	r.matcher = matcher

	return r, nil
}

// Selectors returns the field selectors in use.
func (r *Renderer) Selectors() []string {
	out := make([]string, len(r.selectors))
	copy(out, r.selectors)
	return out
}

// Settings returns the settings the next pass will use.
func (r *Renderer) Settings() model.Settings {
	if r.source != nil {
		return ResolveSettings(r.source)
	}
	return r.settings
}

// RenderFieldLinks renders every field element below scope and returns one
// result per matched element, in document order. A nil scope is a no-op.
func (r *Renderer) RenderFieldLinks(scope *html.Node) []model.FieldResult {
	if scope == nil {
		return nil
	}

	settings := r.Settings()
	results := make([]model.FieldResult, 0)

	goquery.NewDocumentFromNode(scope).FindMatcher(r.matcher).Each(func(_ int, sel *goquery.Selection) {
		result := r.renderField(sel, settings)
		r.logger.Debug("field rendered",
			"path", result.Path,
			"outcome", result.Outcome.String(),
			"links", len(result.Links),
		)
		results = append(results, result)
	})

	return results
}

// RenderDocument parses doc.Raw, renders it, and stores the serialized
// result in doc.Rendered.
func (r *Renderer) RenderDocument(doc *model.Document) (*model.RenderReport, error) {
	report := model.NewRenderReport(doc.Source)
	report.Hash = doc.Hash
	report.Settings = r.Settings()

	var buf bytes.Buffer
	results, err := r.RenderHTML(bytes.NewReader(doc.Raw), &buf)
	if err != nil {
		return report, err
	}

	report.AddFields(results...)
	doc.Rendered = buf.Bytes()
	return report, nil
}

// RenderHTML parses a full HTML document from in, renders it, and writes
// the serialized document to out.
func (r *Renderer) RenderHTML(in io.Reader, out io.Writer) ([]model.FieldResult, error) {
	root, err := html.Parse(in)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	results := r.RenderFieldLinks(root)

	if err := html.Render(out, root); err != nil {
		return results, fmt.Errorf("failed to render HTML: %w", err)
	}
	return results, nil
}
