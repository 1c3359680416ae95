package model

// RenderJob carries one source through the render pipeline.
type RenderJob struct {
	// Source is the file path, URL, or "-" the document is read from.
	Source string

	// Document is set by the load step.
	Document *Document

	// Report accumulates the outcome of every step.
	Report *RenderReport

	// OutputPath is where the write step stored the rendered document,
	// if anywhere.
	OutputPath string
}

// NewRenderJob creates a job with an empty report for source.
func NewRenderJob(source string) *RenderJob {
	return &RenderJob{
		Source: source,
		Report: NewRenderReport(source),
	}
}
