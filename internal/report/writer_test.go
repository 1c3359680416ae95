package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/fieldlink/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.RenderReport {
	report := model.NewRenderReport("https://forum.example.com/u/alice")
	report.Hash = strings.Repeat("ab", 32)
	report.AddFields(
		model.FieldResult{
			Path:    "div.user-profile-fields > span.value",
			Text:    "see www.example.com",
			Outcome: model.OutcomeLinked,
			Links:   []string{"https://www.example.com"},
		},
		model.FieldResult{
			Path:    "span.user-field-value",
			Text:    "Berlin",
			Outcome: model.OutcomeUnchanged,
		},
	)
	return report
}

// createTestSummary creates a batch summary with one failed document.
func createTestSummary() *model.BatchSummary {
	failed := model.NewRenderReport("missing.html")
	failed.SetError(errors.New("file not found"))
	return model.NewBatchSummary([]*model.RenderReport{createTestReport(), failed})
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and outcomes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"FIELDLINK REPORT",
			"https://forum.example.com/u/alice",
			"Links open: new tab",
			"Status:     Complete",
			"OUTCOMES",
			"Linked:",
			"Unchanged:",
			"TOTAL:         2 fields, 1 links",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
		if strings.Contains(output, "Skipped:") {
			t.Error("empty outcomes should be hidden by default")
		}
	})

	t.Run("lists rewritten fields only", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[+] div.user-profile-fields > span.value (linked)") {
			t.Errorf("expected rewritten field:\n%s", output)
		}
		if !strings.Contains(output, "Link: https://www.example.com") {
			t.Errorf("expected link:\n%s", output)
		}
		if strings.Contains(output, "span.user-field-value") {
			t.Errorf("unchanged field should be hidden:\n%s", output)
		}
	})

	t.Run("verbose shows every field with text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[-] span.user-field-value (unchanged)") {
			t.Errorf("expected unchanged field:\n%s", output)
		}
		if !strings.Contains(output, "Text: Berlin") {
			t.Errorf("expected field text:\n%s", output)
		}
	})

	t.Run("show empty lists every outcome", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"Skipped:", "Escaped Html:", "Whole Url:"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q:\n%s", want, output)
			}
		}
	})

	t.Run("writes error status and same tab", func(t *testing.T) {
		t.Parallel()

		report := model.NewRenderReport("profile.html")
		report.Settings.OpenInNewTab = false
		report.SetError(errors.New("failed to parse HTML"))

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "ERROR - failed to parse HTML") {
			t.Errorf("expected error status:\n%s", output)
		}
		if !strings.Contains(output, "Links open: same tab") {
			t.Errorf("expected same tab:\n%s", output)
		}
	})

	t.Run("writes batch summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteSummary(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"FIELDLINK BATCH SUMMARY",
			"Documents:  2",
			"Failed:     1",
			"[+] https://forum.example.com/u/alice (2 fields, 1 links)",
			"[x] missing.html",
			"Error: file not found",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var back model.RenderReport
		if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if back.Source != "https://forum.example.com/u/alice" || len(back.Fields) != 2 {
			t.Errorf("unexpected report: %+v", back)
		}
		if back.Fields[0].Outcome != model.OutcomeLinked {
			t.Errorf("outcome = %v", back.Fields[0].Outcome)
		}
		if !strings.HasSuffix(buf.String(), "\n") {
			t.Error("expected trailing newline")
		}
	})

	t.Run("compact by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lines := strings.Count(strings.TrimSpace(buf.String()), "\n"); lines != 0 {
			t.Errorf("expected single line, got %d newlines", lines)
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"source\"") {
			t.Errorf("expected indented output: %s", buf.String())
		}
	})

	t.Run("custom prefix and indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent(">>", "\t")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, ">>") || !strings.Contains(output, "\t") {
			t.Errorf("expected custom prefix and tab indent: %s", output)
		}
	})

	t.Run("writes summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteSummary(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var back struct {
			Documents int            `json:"documents"`
			Failed    int            `json:"failed"`
			Outcomes  map[string]int `json:"outcomes"`
		}
		if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if back.Documents != 2 || back.Failed != 1 || back.Outcomes["linked"] != 1 {
			t.Errorf("unexpected summary: %+v", back)
		}
	})
}

// TestFullJSONWriter tests the versioned JSON wrapper.
func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewFullJSONWriter(&buf, "v1.2.3")
	if _, err := w.Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var back JSONReport
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if back.Version != "v1.2.3" || back.Report == nil || back.Summary != nil {
		t.Errorf("unexpected wrapper: %+v", back)
	}

	buf.Reset()
	if _, err := w.WriteSummary(createTestSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back = JSONReport{}
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if back.Summary == nil || back.Summary.Documents != 2 || back.Report != nil {
		t.Errorf("unexpected wrapper: %+v", back)
	}
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	w := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

	n, err := w.Write(createTestReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != text.Len()+js.Len() {
		t.Errorf("expected %d bytes, got %d", text.Len()+js.Len(), n)
	}
	if !strings.Contains(text.String(), "FIELDLINK REPORT") || !json.Valid(js.Bytes()) {
		t.Error("expected both outputs")
	}

	text.Reset()
	js.Reset()
	if _, err := w.WriteSummary(createTestSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text.String(), "BATCH SUMMARY") || !json.Valid(js.Bytes()) {
		t.Error("expected both summaries")
	}
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# fieldlink Report",
			"https://forum.example.com/u/alice",
			"## Outcomes",
			"Linked",
			"```mermaid",
			"Field Outcomes",
			"## Fields",
			"div.user-profile-fields",
			"https://www.example.com",
			"1 link(s) rendered.",
			"✅ Complete",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("report without fields", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(model.NewRenderReport("empty.html")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "No custom user fields were found.") {
			t.Errorf("expected note:\n%s", output)
		}
		if !strings.Contains(output, "No field was rewritten.") {
			t.Errorf("expected empty fields text:\n%s", output)
		}
		if strings.Contains(output, "```mermaid") {
			t.Error("no chart without fields")
		}
	})

	t.Run("writes error status", func(t *testing.T) {
		t.Parallel()

		report := model.NewRenderReport("broken.html")
		report.SetError(errors.New("failed to parse HTML"))

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "❌ Error - failed to parse HTML") {
			t.Errorf("expected error status:\n%s", buf.String())
		}
	})

	t.Run("writes summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteSummary(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# fieldlink Batch Summary",
			"## Documents",
			"missing.html",
			"1 document(s) could not be rendered.",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})
}

// TestOutcomeLabel tests outcome display labels.
func TestOutcomeLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		outcome model.Outcome
		want    string
	}{
		{model.OutcomeLinked, "Linked"},
		{model.OutcomeEscapedHTML, "Escaped Html"},
		{model.OutcomeWholeURL, "Whole Url"},
		{model.OutcomeAlreadyHTML, "Already Html"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if got := outcomeLabel(tt.outcome); got != tt.want {
				t.Errorf("outcomeLabel(%v) = %q, want %q", tt.outcome, got, tt.want)
			}
		})
	}
}

// TestTruncateString tests the truncateString helper.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abc", 2, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
