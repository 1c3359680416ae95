package model

import "time"

// RenderReport summarizes one render pass over a document.
type RenderReport struct {
	// Source identifies the rendered document.
	Source string `json:"source"`

	// Hash is the hash of the document before rendering.
	Hash string `json:"hash,omitempty"`

	// DateRendered is when the pass ran.
	DateRendered time.Time `json:"date_rendered"`

	// Settings are the settings the pass used.
	Settings Settings `json:"settings"`

	// Fields contains one entry per matched field element.
	Fields []FieldResult `json:"fields,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error is the first error that stopped the pass, if any.
	Error error `json:"-"`

	// ErrorMessage is the serializable form of Error.
	ErrorMessage string `json:"error,omitempty"`
}

// NewRenderReport creates an empty report for the given source.
func NewRenderReport(source string) *RenderReport {
	return &RenderReport{
		Source:       source,
		DateRendered: time.Now(),
		Settings:     DefaultSettings(),
		Fields:       make([]FieldResult, 0),
	}
}

// AddFields appends field results to the report.
func (r *RenderReport) AddFields(results ...FieldResult) {
	r.Fields = append(r.Fields, results...)
}

// FieldCount returns the number of matched field elements.
func (r *RenderReport) FieldCount() int {
	return len(r.Fields)
}

// LinkCount returns the total number of links produced by the pass.
func (r *RenderReport) LinkCount() int {
	total := 0
	for _, f := range r.Fields {
		total += len(f.Links)
	}
	return total
}

// RewrittenCount returns the number of fields whose content was changed.
func (r *RenderReport) RewrittenCount() int {
	n := 0
	for _, f := range r.Fields {
		if f.Outcome.Rewritten() {
			n++
		}
	}
	return n
}

// CountByOutcome returns the number of fields per outcome.
func (r *RenderReport) CountByOutcome() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, f := range r.Fields {
		counts[f.Outcome]++
	}
	return counts
}

// Failed reports whether the pass recorded an error.
func (r *RenderReport) Failed() bool {
	return r.Error != nil || r.ErrorMessage != ""
}

// SetError records err on the report. Only the first error is kept.
func (r *RenderReport) SetError(err error) {
	if err == nil || r.Error != nil {
		return
	}
	r.Error = err
	r.ErrorMessage = err.Error()
}
