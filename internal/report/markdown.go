package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/fieldlink/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs one report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RenderReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeOutcomes(md, report.CountByOutcome(), report.FieldCount(), report.LinkCount())
	w.writeFields(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs a batch summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.BatchSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("fieldlink Batch Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Documents", strconv.Itoa(summary.Documents)},
			{"Succeeded", strconv.Itoa(summary.Succeeded())},
			{"Failed", strconv.Itoa(summary.Failed)},
		},
	})
	md.PlainText("")

	if summary.Failed > 0 {
		md.Warningf("%d document(s) could not be rendered.", summary.Failed)
		md.PlainText("")
	}

	w.writeOutcomes(md, summary.Outcomes, summary.Fields, summary.Links)

	md.H2("Documents")
	md.PlainText("")

	rows := make([][]string, len(summary.Reports))
	for i, r := range summary.Reports {
		rows[i] = []string{
			"`" + r.Source + "`",
			strconv.Itoa(r.FieldCount()),
			strconv.Itoa(r.LinkCount()),
			statusText(r),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Fields", "Links", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with document information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RenderReport) {
	md.H1("fieldlink Report")
	md.PlainText("")

	hash := report.Hash
	if hash == "" {
		hash = "-"
	} else {
		hash = "`" + truncateString(hash, 16) + "`"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source", "`" + report.Source + "`"},
			{"Rendered", report.DateRendered.Format(dateFormat)},
			{"Hash", hash},
			{"Links open in", tabLabel(report.Settings)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText returns the status text based on report state.
func statusText(report *model.RenderReport) string {
	if report.Failed() {
		return "❌ Error - " + report.ErrorMessage
	}
	return "✅ Complete"
}

// writeOutcomes writes the outcome table, a pie chart and an alert.
func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, counts map[model.Outcome]int, fields, links int) {
	md.H2("Outcomes")
	md.PlainText("")

	rows := make([][]string, 0, len(model.Outcomes)+1)
	for _, o := range model.Outcomes {
		rows = append(rows, []string{outcomeLabel(o), strconv.Itoa(counts[o])})
	}
	rows = append(rows, []string{"**Total fields**", "**" + strconv.Itoa(fields) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Fields"},
		Rows:   rows,
	})
	md.PlainText("")

	if fields > 0 {
		w.writePieChart(md, counts)
	}

	switch {
	case fields == 0:
		md.Note("No custom user fields were found.")
	case links == 0:
		md.Tip("Fields were found, but none contained a link.")
	default:
		md.PlainTextf("%d link(s) rendered.", links)
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of the outcome distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts map[model.Outcome]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Field Outcomes"),
		piechart.WithShowData(true),
	)

	for _, o := range model.Outcomes {
		if n := counts[o]; n > 0 {
			chart.LabelAndIntValue(outcomeLabel(o), uint64(n)) //nolint:gosec // counts are never negative
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFields writes a table of the rewritten fields.
func (w *MarkdownWriter) writeFields(md *markdown.Markdown, report *model.RenderReport) {
	md.H2("Fields")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Fields))
	for _, f := range report.Fields {
		if !f.Outcome.Rewritten() {
			continue
		}
		rows = append(rows, []string{
			"`" + f.Path + "`",
			outcomeLabel(f.Outcome),
			truncateString(f.Text, 50),
			strconv.Itoa(len(f.Links)),
		})
	}

	if len(rows) == 0 {
		md.PlainText("No field was rewritten.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Path", "Outcome", "Text", "Links"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range report.Fields {
		if len(f.Links) > 0 {
			md.BulletList(f.Links...)
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [fieldlink](https://github.com/nao1215/fieldlink)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
