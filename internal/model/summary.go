package model

// BatchSummary aggregates the reports of one batch run.
type BatchSummary struct {
	// Reports are the per-source reports in source order.
	Reports []*RenderReport `json:"reports"`

	// Documents is the number of reports.
	Documents int `json:"documents"`

	// Failed is the number of reports that recorded an error.
	Failed int `json:"failed"`

	// Fields is the total number of matched field elements.
	Fields int `json:"fields"`

	// Rewritten is the total number of fields whose content changed.
	Rewritten int `json:"rewritten"`

	// Links is the total number of links produced.
	Links int `json:"links"`

	// Outcomes counts fields per outcome over all reports.
	Outcomes map[Outcome]int `json:"outcomes"`
}

// NewBatchSummary builds a summary from reports. Nil reports, left by
// sources that never started, are skipped.
func NewBatchSummary(reports []*RenderReport) *BatchSummary {
	s := &BatchSummary{
		Reports:  make([]*RenderReport, 0, len(reports)),
		Outcomes: make(map[Outcome]int),
	}

	for _, r := range reports {
		if r == nil {
			continue
		}
		s.Reports = append(s.Reports, r)
		s.Documents++
		if r.Failed() {
			s.Failed++
		}
		s.Fields += r.FieldCount()
		s.Rewritten += r.RewrittenCount()
		s.Links += r.LinkCount()
		for o, n := range r.CountByOutcome() {
			s.Outcomes[o] += n
		}
	}

	return s
}

// Succeeded returns the number of reports without an error.
func (s *BatchSummary) Succeeded() int {
	return s.Documents - s.Failed
}
