package report

import (
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/fieldlink/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs one document's report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RenderReport) (int, error)

	// WriteSummary outputs the summary of a batch run.
	WriteSummary(summary *model.BatchSummary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.RenderReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *model.BatchSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// outcomeLabel returns the display label of an outcome,
// e.g. "Escaped Html" for escaped_html.
func outcomeLabel(o model.Outcome) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Title(language.English).String(strings.ReplaceAll(o.String(), "_", " "))
}

// tabLabel describes where generated links open.
func tabLabel(settings model.Settings) string {
	if settings.OpenInNewTab {
		return "new tab"
	}
	return "same tab"
}

// dateFormat is used for report timestamps.
const dateFormat = "2006-01-02 15:04:05 MST"
