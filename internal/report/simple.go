package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/fieldlink/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether outcomes with no fields are listed.
	showEmpty bool

	// verbose adds the field text and the fields without links.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to list outcomes with no fields.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one report in human-readable format.
func (w *SimpleWriter) Write(report *model.RenderReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeOutcomes(&sb, report.CountByOutcome(), report.FieldCount(), report.LinkCount())
	w.writeFields(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs a batch summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.BatchSummary) (int, error) {
	var sb strings.Builder

	writeRule(&sb, "=")
	sb.WriteString("                      FIELDLINK BATCH SUMMARY\n")
	writeRule(&sb, "=")
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Documents:  %d\n", summary.Documents))
	sb.WriteString(fmt.Sprintf("Succeeded:  %d\n", summary.Succeeded()))
	sb.WriteString(fmt.Sprintf("Failed:     %d\n", summary.Failed))
	sb.WriteString("\n")

	w.writeOutcomes(&sb, summary.Outcomes, summary.Fields, summary.Links)

	writeSection(&sb, "DOCUMENTS")
	for _, r := range summary.Reports {
		if r.Failed() {
			sb.WriteString(fmt.Sprintf("  [x] %s\n      Error: %s\n", r.Source, r.ErrorMessage))
			continue
		}
		sb.WriteString(fmt.Sprintf("  [+] %s (%d fields, %d links)\n", r.Source, r.FieldCount(), r.LinkCount()))
	}
	sb.WriteString("\n")

	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with document information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RenderReport) {
	sb.WriteString("\n")
	writeRule(sb, "=")
	sb.WriteString("                          FIELDLINK REPORT\n")
	writeRule(sb, "=")
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Source:     %s\n", report.Source))
	sb.WriteString(fmt.Sprintf("Rendered:   %s\n", report.DateRendered.Format(dateFormat)))
	if report.Hash != "" {
		sb.WriteString(fmt.Sprintf("Hash:       %s\n", report.Hash))
	}
	sb.WriteString(fmt.Sprintf("Links open: %s\n", tabLabel(report.Settings)))

	if report.Failed() {
		sb.WriteString(fmt.Sprintf("Status:     ERROR - %s\n", report.ErrorMessage))
	} else {
		sb.WriteString("Status:     Complete\n")
	}

	sb.WriteString("\n")
}

// writeOutcomes writes the per-outcome field counts.
func (w *SimpleWriter) writeOutcomes(sb *strings.Builder, counts map[model.Outcome]int, fields, links int) {
	writeSection(sb, "OUTCOMES")

	for _, o := range model.Outcomes {
		n := counts[o]
		if n == 0 && !w.showEmpty {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-14s %d\n", outcomeLabel(o)+":", n))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  TOTAL:         %d fields, %d links\n", fields, links))
	sb.WriteString("\n")
}

// writeFields lists the rewritten fields and their links.
func (w *SimpleWriter) writeFields(sb *strings.Builder, report *model.RenderReport) {
	if report.RewrittenCount() == 0 && !w.verbose {
		return
	}

	writeSection(sb, "FIELDS")

	for _, f := range report.Fields {
		if !f.Outcome.Rewritten() && !w.verbose {
			continue
		}

		indicator := "-"
		if f.Outcome.Rewritten() {
			indicator = "+"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %s (%s)\n", indicator, f.Path, f.Outcome))
		if w.verbose && f.Text != "" {
			sb.WriteString(fmt.Sprintf("      Text: %s\n", f.Text))
		}
		for _, link := range f.Links {
			sb.WriteString(fmt.Sprintf("      Link: %s\n", link))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	writeRule(sb, "=")
	sb.WriteString("Report generated by fieldlink\n")
	sb.WriteString("https://github.com/nao1215/fieldlink\n")
	writeRule(sb, "=")
}

// writeSection writes a section title between rules.
func writeSection(sb *strings.Builder, title string) {
	writeRule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	writeRule(sb, "-")
	sb.WriteString("\n")
}

func writeRule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}
