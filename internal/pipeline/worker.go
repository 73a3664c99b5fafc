package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-forecast/backend-go/pkg/logger"
)

// Worker plans the SKUs of a batch on a bounded pool
type Worker struct {
	planner    SKUPlanner
	config     PipelineConfig
	store      RunStore
	cache      ResultCache
	aggregator *ResultAggregator
	log        zerolog.Logger
}

// Option customises a Worker.
type Option func(*Worker)

// WithRunStore persists every batch to store.
func WithRunStore(store RunStore) Option {
	return func(w *Worker) { w.store = store }
}

// WithResultCache reuses results for unchanged inputs.
func WithResultCache(cache ResultCache) Option {
	return func(w *Worker) { w.cache = cache }
}

// WithAggregator streams completed results into export files.
func WithAggregator(agg *ResultAggregator) Option {
	return func(w *Worker) { w.aggregator = agg }
}

// NewWorker creates a new batch worker
func NewWorker(planner SKUPlanner, config PipelineConfig, opts ...Option) *Worker {
	w := &Worker{
		planner: planner,
		config:  config,
		store:   NewMemoryStore(),
		cache:   NewNoopCache(),
		log:     logger.Component("pipeline"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.aggregator == nil && config.OutputDir != "" {
		w.aggregator = NewResultAggregator(config.OutputDir, nil)
	}
	return w
}

// Aggregator returns the export aggregator, or nil when exports are off.
func (w *Worker) Aggregator() *ResultAggregator {
	return w.aggregator
}

// Store returns the run store results are persisted to.
func (w *Worker) Store() RunStore {
	return w.store
}

type skuOutcome struct {
	result domain.SKUResult
	cached bool
}

// Run plans every SKU in the batch. Per-SKU failures are recorded on the
// SKU and never abort siblings. The returned error is non-nil only when the
// batch could not start.
func (w *Worker) Run(ctx context.Context, batch Batch) (*domain.BatchResult, error) {
	jobID := batch.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	log := w.log.With().Str("job_id", jobID).Logger()

	run := &domain.BatchResult{
		JobID:     jobID,
		Status:    domain.JobProcessing,
		StartedAt: time.Now().UTC(),
		Results:   []domain.SKUResult{},
	}

	if err := batch.Config.Validate(); err != nil {
		w.finish(ctx, run, domain.JobFailed, err.Error())
		return run, err
	}
	w.save(ctx, run)

	log.Info().Int("skus", len(batch.Inputs)).Msg("batch started")

	outcomes := w.planParallel(ctx, batch)

	run.Results = make([]domain.SKUResult, len(outcomes))
	for i, o := range outcomes {
		run.Results[i] = o.result
		run.Summary.Total++
		if o.cached {
			run.Summary.Cached++
		}
		switch o.result.Status {
		case domain.SKUCompleted:
			run.Summary.Completed++
		case domain.SKUCancelled:
			run.Summary.Cancelled++
		default:
			run.Summary.Failed++
		}
	}

	if w.aggregator != nil {
		if err := w.aggregator.Add(ctx, jobID, run.Results); err != nil {
			log.Error().Err(err).Msg("failed to buffer export rows")
		}
		if err := w.aggregator.Finalize(ctx, jobID); err != nil {
			log.Error().Err(err).Msg("failed to finalize exports")
		}
	}

	status, reason := domain.JobCompleted, ""
	if run.Summary.Total > 0 && run.Summary.Completed == 0 {
		status = domain.JobFailed
		reason = fmt.Sprintf("no SKU could be planned (%d failed, %d cancelled)", run.Summary.Failed, run.Summary.Cancelled)
	}
	w.finish(ctx, run, status, reason)

	log.Info().
		Str("status", string(run.Status)).
		Int("completed", run.Summary.Completed).
		Int("failed", run.Summary.Failed).
		Int("cancelled", run.Summary.Cancelled).
		Int("cached", run.Summary.Cached).
		Dur("took", run.CompletedAt.Sub(run.StartedAt)).
		Msg("batch finished")

	return run, nil
}

// planParallel fans SKU indexes out to the pool. Slot i is written only by
// the goroutine that received index i.
func (w *Worker) planParallel(ctx context.Context, batch Batch) []skuOutcome {
	n := len(batch.Inputs)
	outcomes := make([]skuOutcome, n)
	done := make([]bool, n)
	if n == 0 {
		return outcomes
	}

	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > n {
		workerCount = n
	}

	jobChan := make(chan int)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				outcomes[idx] = w.planOne(ctx, batch.Inputs[idx], batch.Config)
				done[idx] = true
			}
		}()
	}

enqueue:
	for idx := range batch.Inputs {
		select {
		case <-ctx.Done():
			break enqueue
		case jobChan <- idx:
		}
	}
	close(jobChan)
	wg.Wait()

	for idx, ok := range done {
		if !ok {
			outcomes[idx] = skuOutcome{result: domain.FailedResult(batch.Inputs[idx].ProductID, domain.SKUCancelled, "cancelled before start")}
		}
	}
	return outcomes
}

func (w *Worker) planOne(ctx context.Context, in domain.SKUInput, cfg domain.PlanConfig) (out skuOutcome) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Str("sku", in.ProductID).Interface("panic", r).Msg("sku planning panicked")
			out = skuOutcome{result: domain.FailedResult(in.ProductID, domain.SKUFailed, "internal error while planning")}
		}
	}()

	if err := ctx.Err(); err != nil {
		return skuOutcome{result: domain.FailedResult(in.ProductID, domain.SKUCancelled, "cancelled before start")}
	}

	cached, ok, err := w.cache.Get(ctx, in, cfg)
	if err != nil {
		w.log.Warn().Err(err).Str("sku", in.ProductID).Msg("failed to read cached result")
	}
	if ok && cached != nil {
		return skuOutcome{result: *cached, cached: true}
	}

	start := time.Now()
	res, err := w.planner.PlanSKU(ctx, in, cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return skuOutcome{result: domain.FailedResult(in.ProductID, domain.SKUCancelled, err.Error())}
		}
		w.log.Warn().Err(err).Str("sku", in.ProductID).Msg("sku failed")
		return skuOutcome{result: domain.FailedResult(in.ProductID, domain.SKUFailed, err.Error())}
	}

	if err := w.cache.Set(ctx, in, cfg, res); err != nil {
		w.log.Warn().Err(err).Str("sku", in.ProductID).Msg("failed to cache result")
	}
	w.log.Debug().
		Str("sku", in.ProductID).
		Str("model", string(res.ModelUsed)).
		Dur("took", time.Since(start)).
		Msg("sku completed")
	return skuOutcome{result: res}
}

func (w *Worker) finish(ctx context.Context, run *domain.BatchResult, status domain.JobStatus, reason string) {
	now := time.Now().UTC()
	run.Status = status
	run.Error = reason
	run.CompletedAt = &now
	// saved even when the batch context is cancelled
	w.save(context.WithoutCancel(ctx), run)
}

func (w *Worker) save(ctx context.Context, run *domain.BatchResult) {
	if err := w.store.SaveRun(ctx, run); err != nil {
		w.log.Warn().Err(err).Str("job_id", run.JobID).Msg("failed to persist run")
	}
}
