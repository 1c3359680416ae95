// Package pipeline runs render jobs through a fixed sequence of steps.
//
// A job is one source document. The default pipeline loads it (file, stdin
// or URL), renders the links in its custom user fields, optionally writes
// the rendered document, and optionally records the run in the history
// database. Each step receives the job and adds to its report.
//
// BatchProcessor renders many sources concurrently with errgroup, giving
// every source a fresh pipeline.
package pipeline
