package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/fieldlink/internal/model"
)

// defaultConcurrency is used when WithConcurrency is not given.
const defaultConcurrency = 4

// BatchProcessor renders multiple sources concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each source.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent renders.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed reports in source order.
	// Access is synchronized via mutex.
	results []*model.RenderReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent renders.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each source so that no
// pipeline state is shared between sources.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     defaultConcurrency,
		results:         make([]*model.RenderReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch renders multiple sources concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Returns one report per source in input order, including reports of
// failed sources. A source that never started because the batch was
// cancelled has a nil report. The error is non-nil only when the batch
// was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, sources []string) ([]*model.RenderReport, error) {
	bp.logger.Info("starting batch processing",
		"total_sources", len(sources),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.results = make([]*model.RenderReport, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, source := range sources {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("rendering source",
				"source", source,
				"index", i+1,
				"total", len(sources),
			)

			job := model.NewRenderJob(source)
			err := bp.pipelineFactory().Execute(ctx, job)

			bp.mu.Lock()
			bp.results[i] = job.Report
			bp.mu.Unlock()

			if err != nil {
				// Recorded in the report; other sources keep going.
				bp.logger.Warn("render failed",
					"source", source,
					"error", err,
				)
				return nil
			}

			bp.logger.Info("render completed",
				"source", source,
				"fields", job.Report.FieldCount(),
				"links", job.Report.LinkCount(),
			)

			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_sources", len(sources),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback renders multiple sources and calls callback
// for each completed job, with the index of its source. The callback runs
// on the worker goroutine, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	sources []string,
	callback func(job *model.RenderJob, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_sources", len(sources),
		"concurrency", bp.concurrency,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, source := range sources {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			job := model.NewRenderJob(source)
			_ = bp.pipelineFactory().Execute(ctx, job) //nolint:errcheck // Error is stored in the report

			callback(job, i)

			return nil
		})
	}

	return g.Wait()
}
