package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cohortlab/unionfit/internal/model"
)

// Run is one independent estimation task: a validated series and the
// (sex, group) key it belongs to.
type Run struct {
	Key    model.RunKey
	Series *model.AgeSeries
}

// BatchProcessor handles concurrent processing of multiple (sex, group)
// runs. It uses errgroup to manage goroutines and respect concurrency
// limits.
//
// Design decision: We use a separate BatchProcessor rather than adding
// batch functionality to Pipeline because:
//  1. It keeps the Pipeline focused on single-run execution
//  2. It allows different batch strategies later (e.g., per-wave grouping)
//  3. It provides cleaner separation of concerns
//
// Runs share no mutable state (each owns its report, state history, and
// estimate), so the only synchronization is around result collection.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each run.
	// We use a factory to ensure each run gets a fresh pipeline instance.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent runs.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed reports in input order.
	// Access is synchronized via mutex.
	results []*model.FitReport
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

// WithConcurrency sets the maximum number of concurrent runs.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each run to create a fresh
// pipeline instance. This ensures that pipeline state doesn't leak between
// runs and allows for per-run customization if needed.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     4,
		results:         make([]*model.FitReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch estimates multiple (sex, group) runs concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each run gets its own goroutine, but only 'concurrency' goroutines run
// simultaneously.
//
// Returns all reports in input order, even for runs whose pipeline
// recorded an error. The error return indicates the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, runs []Run) ([]*model.FitReport, error) {
	bp.logger.Info("starting batch estimation",
		"total_runs", len(runs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results slice to maintain order
	bp.results = make([]*model.FitReport, len(runs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, run := range runs {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("estimating run",
				"run", run.Key,
				"index", i+1,
				"total", len(runs),
			)

			report := model.NewFitReport(run.Key, run.Series)

			pipeline := bp.pipelineFactory()
			err := pipeline.Execute(ctx, report)

			// Store the result regardless of error; the report carries
			// error information if a step failed.
			bp.mu.Lock()
			bp.results[i] = report
			bp.mu.Unlock()

			if err != nil {
				bp.logger.Warn("run failed",
					"run", run.Key,
					"error", err,
				)
				// Don't return the error to errgroup - the other runs are
				// independent and should still complete.
				return nil
			}

			bp.logger.Info("run completed",
				"run", run.Key,
			)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch estimation complete",
		"total_runs", len(runs),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}
