package renderer

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/fieldlink/internal/model"
)

const (
	newTabAttrs = ` rel="noopener noreferrer" target="_blank"`
	sameTabAttr = ` rel="noopener noreferrer"`
)

// renderField parses a page holding one field value, renders it, and returns
// the field's inner HTML and the single field result.
func renderField(t *testing.T, r *Renderer, field string) (string, model.FieldResult) {
	t.Helper()

	page := `<html><body><div class="user-profile-fields">` +
		`<span class="value">` + field + `</span>` +
		`</div></body></html>`
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("failed to parse page: %v", err)
	}

	results := r.RenderFieldLinks(root)
	if len(results) != 1 {
		t.Fatalf("expected 1 field result, got %d", len(results))
	}

	inner, err := goquery.NewDocumentFromNode(root).Find(".user-profile-fields .value").Html()
	if err != nil {
		t.Fatalf("failed to serialize field: %v", err)
	}
	return inner, results[0]
}

func mustNew(t *testing.T, opts ...Option) *Renderer {
	t.Helper()

	r, err := New(opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return r
}

// TestRenderFieldLinks tests the rewrite of single field values.
func TestRenderFieldLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		field   string
		want    string
		outcome model.Outcome
		links   []string
	}{
		{
			name:    "www URL gets https scheme and short display text",
			field:   "www.example.com/a",
			want:    `<a href="https://www.example.com/a"` + newTabAttrs + `>example.com/a</a>`,
			outcome: model.OutcomeLinked,
			links:   []string{"https://www.example.com/a"},
		},
		{
			name:    "http URL keeps its scheme in href only",
			field:   "http://example.com/x",
			want:    `<a href="http://example.com/x"` + newTabAttrs + `>example.com/x</a>`,
			outcome: model.OutcomeLinked,
			links:   []string{"http://example.com/x"},
		},
		{
			name:    "URL surrounded by text",
			field:   "visit https://www.example.com now",
			want:    `visit <a href="https://www.example.com"` + newTabAttrs + `>example.com</a> now`,
			outcome: model.OutcomeLinked,
			links:   []string{"https://www.example.com"},
		},
		{
			name:    "markdown link leaves no brackets behind",
			field:   "[Click here](https://example.com/x)",
			want:    `<a href="https://example.com/x"` + newTabAttrs + `>Click here</a>`,
			outcome: model.OutcomeLinked,
			links:   []string{"https://example.com/x"},
		},
		{
			name:    "markdown link suppresses bare URL scan",
			field:   "[x](https://a.example) and www.b.example",
			want:    `<a href="https://a.example"` + newTabAttrs + `>x</a> and www.b.example`,
			outcome: model.OutcomeLinked,
			links:   []string{"https://a.example"},
		},
		{
			name:    "parentheses stay as text",
			field:   "see (https://example.com)",
			want:    `see (<a href="https://example.com"` + newTabAttrs + `>example.com</a>)`,
			outcome: model.OutcomeLinked,
			links:   []string{"https://example.com"},
		},
		{
			name:    "several URLs",
			field:   "a https://one.example b www.two.example",
			want:    `a <a href="https://one.example"` + newTabAttrs + `>one.example</a> b <a href="https://www.two.example"` + newTabAttrs + `>two.example</a>`,
			outcome: model.OutcomeLinked,
			links:   []string{"https://one.example", "https://www.two.example"},
		},
		{
			name:    "anchor markup as text renders verbatim",
			field:   `&lt;a href=&#34;https://x.com&#34;&gt;x&lt;/a&gt;`,
			want:    `<a href="https://x.com">x</a>`,
			outcome: model.OutcomeEscapedHTML,
			links:   []string{"https://x.com"},
		},
		{
			name:    "plain text is unchanged",
			field:   "just a bio",
			want:    "just a bio",
			outcome: model.OutcomeUnchanged,
		},
		{
			name:    "existing anchor is not linked twice",
			field:   `<a href="https://a.example">https://a.example</a>`,
			want:    `<a href="https://a.example">https://a.example</a>`,
			outcome: model.OutcomeUnchanged,
		},
		{
			name:    "whitespace only field is empty",
			field:   "   ",
			want:    "   ",
			outcome: model.OutcomeEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := mustNew(t)
			got, result := renderField(t, r, tt.field)
			if got != tt.want {
				t.Errorf("rendered markup mismatch\n got: %s\nwant: %s", got, tt.want)
			}
			if result.Outcome != tt.outcome {
				t.Errorf("outcome = %v, want %v", result.Outcome, tt.outcome)
			}
			if !reflect.DeepEqual(result.Links, tt.links) {
				t.Errorf("links = %v, want %v", result.Links, tt.links)
			}
		})
	}
}

// TestRenderFieldLinksEscapedDocument tests decoding of an escaped anchor
// delivered through a full document, the way forum markup arrives.
func TestRenderFieldLinksEscapedDocument(t *testing.T) {
	t.Parallel()

	r := mustNew(t)
	in := `<html><body><span class="user-field-value">&lt;a href=&quot;https://x.com&quot;&gt;x&lt;/a&gt;</span></body></html>`

	var out bytes.Buffer
	results, err := r.RenderHTML(strings.NewReader(in), &out)
	if err != nil {
		t.Fatalf("RenderHTML() failed: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != model.OutcomeEscapedHTML {
		t.Fatalf("unexpected results: %+v", results)
	}

	want := `<span class="user-field-value" data-link-processed="true"><a href="https://x.com">x</a></span>`
	if !strings.Contains(out.String(), want) {
		t.Errorf("expected %s in output, got %s", want, out.String())
	}
}

// TestRenderFieldLinksSettings tests the new-tab directive.
func TestRenderFieldLinksSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		opts     []Option
		wantAttr string
	}{
		{
			name:     "default opens in new tab",
			wantAttr: newTabAttrs,
		},
		{
			name:     "fixed settings disable new tab",
			opts:     []Option{WithSettings(model.Settings{OpenInNewTab: false})},
			wantAttr: sameTabAttr,
		},
		{
			name:     "source with boolean false disables new tab",
			opts:     []Option{WithSettingsSource(SettingsMap{SettingKeyOpenInNewTab: false})},
			wantAttr: sameTabAttr,
		},
		{
			name:     "source with string false keeps new tab",
			opts:     []Option{WithSettingsSource(SettingsMap{SettingKeyOpenInNewTab: "false"})},
			wantAttr: newTabAttrs,
		},
		{
			name:     "source without the key keeps new tab",
			opts:     []Option{WithSettingsSource(SettingsMap{})},
			wantAttr: newTabAttrs,
		},
		{
			name: "source wins over fixed settings",
			opts: []Option{
				WithSettings(model.Settings{OpenInNewTab: false}),
				WithSettingsSource(SettingsMap{SettingKeyOpenInNewTab: true}),
			},
			wantAttr: newTabAttrs,
		},
		{
			name:     "site settings disable new tab",
			opts:     []Option{WithSite(SettingsMap{SettingKeyOpenInNewTab: false}, nil)},
			wantAttr: sameTabAttr,
		},
		{
			name: "same tab drops the settings source",
			opts: []Option{
				WithSite(SettingsMap{SettingKeyOpenInNewTab: true}, nil),
				WithSameTab(),
			},
			wantAttr: sameTabAttr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := mustNew(t, tt.opts...)
			got, _ := renderField(t, r, "[a](https://a.example) text")
			want := `<a href="https://a.example"` + tt.wantAttr + `>a</a> text`
			if got != want {
				t.Errorf("rendered markup mismatch\n got: %s\nwant: %s", got, want)
			}
		})
	}
}

// TestRenderFieldLinksOptions tests the optional rendering steps.
func TestRenderFieldLinksOptions(t *testing.T) {
	t.Parallel()

	t.Run("escaped decoding disabled falls back to text markup", func(t *testing.T) {
		t.Parallel()

		r := mustNew(t, WithEscapedHTML(false))
		got, result := renderField(t, r, `&lt;a href=&#34;https://x.com&#34;&gt;x&lt;/a&gt;`)
		if got != `<a href="https://x.com">x</a>` {
			t.Errorf("unexpected markup: %s", got)
		}
		if result.Outcome != model.OutcomeAlreadyHTML {
			t.Errorf("outcome = %v, want %v", result.Outcome, model.OutcomeAlreadyHTML)
		}
	})

	t.Run("whole field shortcut links the entire value", func(t *testing.T) {
		t.Parallel()

		r := mustNew(t, WithWholeFieldShortcut(true))
		got, result := renderField(t, r, "  <b>https://example.com/profile</b> ")
		want := `<a href="https://example.com/profile"` + newTabAttrs + `>example.com/profile</a>`
		if got != want {
			t.Errorf("rendered markup mismatch\n got: %s\nwant: %s", got, want)
		}
		if result.Outcome != model.OutcomeWholeURL {
			t.Errorf("outcome = %v, want %v", result.Outcome, model.OutcomeWholeURL)
		}
	})

	t.Run("whole field shortcut ignores text not starting with a URL", func(t *testing.T) {
		t.Parallel()

		r := mustNew(t, WithWholeFieldShortcut(true))
		_, result := renderField(t, r, "see https://example.com")
		if result.Outcome != model.OutcomeLinked {
			t.Errorf("outcome = %v, want %v", result.Outcome, model.OutcomeLinked)
		}
	})

	t.Run("custom marker attribute", func(t *testing.T) {
		t.Parallel()

		r := mustNew(t, WithMarkerAttr("data-seen"))
		root, err := html.Parse(strings.NewReader(`<span class="user-field-value">www.a.example</span>`))
		if err != nil {
			t.Fatal(err)
		}
		r.RenderFieldLinks(root)

		sel := goquery.NewDocumentFromNode(root).Find(".user-field-value")
		if v, ok := sel.Attr("data-seen"); !ok || v != "true" {
			t.Errorf("expected data-seen marker, got %q (present=%v)", v, ok)
		}
		if _, ok := sel.Attr(MarkerAttr); ok {
			t.Error("default marker must not be written")
		}
	})
}

// TestRenderFieldLinksMarker tests that elements are processed once.
func TestRenderFieldLinksMarker(t *testing.T) {
	t.Parallel()

	t.Run("marked element is skipped", func(t *testing.T) {
		t.Parallel()

		r := mustNew(t)
		in := `<span class="user-field-value" data-link-processed="true">www.example.com</span>`
		root, err := html.Parse(strings.NewReader(in))
		if err != nil {
			t.Fatal(err)
		}

		results := r.RenderFieldLinks(root)
		if len(results) != 1 || results[0].Outcome != model.OutcomeSkipped {
			t.Fatalf("unexpected results: %+v", results)
		}
		inner, _ := goquery.NewDocumentFromNode(root).Find(".user-field-value").Html()
		if inner != "www.example.com" {
			t.Errorf("marked element was modified: %s", inner)
		}
	})

	t.Run("empty marker value is not a mark", func(t *testing.T) {
		t.Parallel()

		r := mustNew(t)
		in := `<span class="user-field-value" data-link-processed="">www.example.com</span>`
		root, err := html.Parse(strings.NewReader(in))
		if err != nil {
			t.Fatal(err)
		}

		results := r.RenderFieldLinks(root)
		if len(results) != 1 || results[0].Outcome != model.OutcomeLinked {
			t.Fatalf("unexpected results: %+v", results)
		}
	})

	t.Run("second pass changes nothing", func(t *testing.T) {
		t.Parallel()

		r := mustNew(t)
		in := `<html><head></head><body>` +
			`<div class="public-user-field">site: www.example.com</div>` +
			`<span class="user-field-value">[blog](https://blog.example)</span>` +
			`<span class="user-field-value">   </span>` +
			`</body></html>`

		var first bytes.Buffer
		if _, err := r.RenderHTML(strings.NewReader(in), &first); err != nil {
			t.Fatalf("first pass failed: %v", err)
		}

		var second bytes.Buffer
		results, err := r.RenderHTML(bytes.NewReader(first.Bytes()), &second)
		if err != nil {
			t.Fatalf("second pass failed: %v", err)
		}
		if first.String() != second.String() {
			t.Errorf("second pass changed the document\nfirst:  %s\nsecond: %s", first.String(), second.String())
		}
		for _, res := range results {
			if res.Outcome != model.OutcomeSkipped {
				t.Errorf("expected every field to be skipped, got %v for %s", res.Outcome, res.Path)
			}
		}
	})
}

// TestRenderFieldLinksSelectors tests element discovery.
func TestRenderFieldLinksSelectors(t *testing.T) {
	t.Parallel()

	t.Run("default selectors", func(t *testing.T) {
		t.Parallel()

		in := `<html><body>` +
			`<span class="user-field-value">a</span>` +
			`<div class="public-user-field">b</div>` +
			`<div class="user-profile-fields"><span class="value">c</span></div>` +
			`<span class="value">outside</span>` +
			`<div class="user-card-additional-controls"><div class="user-field">d</div></div>` +
			`<div class="user-field">outside</div>` +
			`</body></html>`
		root, err := html.Parse(strings.NewReader(in))
		if err != nil {
			t.Fatal(err)
		}

		results := mustNew(t).RenderFieldLinks(root)
		var texts []string
		for _, res := range results {
			texts = append(texts, res.Text)
		}
		if want := []string{"a", "b", "c", "d"}; !reflect.DeepEqual(texts, want) {
			t.Errorf("matched fields = %v, want %v", texts, want)
		}
	})

	t.Run("custom selectors replace defaults", func(t *testing.T) {
		t.Parallel()

		r := mustNew(t, WithSelectors(".bio"))
		root, err := html.Parse(strings.NewReader(`<p class="bio">www.a.example</p><span class="user-field-value">x</span>`))
		if err != nil {
			t.Fatal(err)
		}
		results := r.RenderFieldLinks(root)
		if len(results) != 1 || results[0].Path != "p.bio" {
			t.Errorf("unexpected results: %+v", results)
		}
		if got := r.Selectors(); !reflect.DeepEqual(got, []string{".bio"}) {
			t.Errorf("Selectors() = %v", got)
		}
	})

	t.Run("invalid selector", func(t *testing.T) {
		t.Parallel()

		if _, err := New(WithSelectors("[[")); err == nil {
			t.Error("expected error for invalid selector")
		}
	})

	t.Run("nil scope", func(t *testing.T) {
		t.Parallel()

		if results := mustNew(t).RenderFieldLinks(nil); results != nil {
			t.Errorf("expected nil results, got %v", results)
		}
	})

	t.Run("path describes ancestors", func(t *testing.T) {
		t.Parallel()

		_, result := renderField(t, mustNew(t), "x")
		if result.Path != "div.user-profile-fields > span.value" {
			t.Errorf("Path = %q", result.Path)
		}
	})
}

// TestRenderDocument tests rendering of a model.Document.
func TestRenderDocument(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><span class="user-field-value">www.example.com</span></body></html>`)
	doc := model.NewDocument("profile.html", raw)

	r := mustNew(t, WithSettings(model.Settings{OpenInNewTab: false}))
	report, err := r.RenderDocument(doc)
	if err != nil {
		t.Fatalf("RenderDocument() failed: %v", err)
	}

	if report.Source != "profile.html" || report.Hash != doc.Hash {
		t.Errorf("unexpected report identity: %+v", report)
	}
	if report.Settings.OpenInNewTab {
		t.Error("expected report to carry the pass settings")
	}
	if report.LinkCount() != 1 {
		t.Errorf("LinkCount() = %d, want 1", report.LinkCount())
	}
	want := `<a href="https://www.example.com"` + sameTabAttr + `>example.com</a>`
	if !strings.Contains(string(doc.Rendered), want) {
		t.Errorf("expected %s in rendered document, got %s", want, doc.Rendered)
	}
}

// TestResolveSettings tests settings resolution from raw values.
func TestResolveSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  SettingsSource
		want bool
	}{
		{name: "nil source", src: nil, want: true},
		{name: "missing key", src: SettingsMap{}, want: true},
		{name: "true", src: SettingsMap{SettingKeyOpenInNewTab: true}, want: true},
		{name: "false", src: SettingsMap{SettingKeyOpenInNewTab: false}, want: false},
		{name: "zero", src: SettingsMap{SettingKeyOpenInNewTab: 0}, want: true},
		{name: "nil value", src: SettingsMap{SettingKeyOpenInNewTab: nil}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ResolveSettings(tt.src).OpenInNewTab; got != tt.want {
				t.Errorf("OpenInNewTab = %v, want %v", got, tt.want)
			}
		})
	}
}
