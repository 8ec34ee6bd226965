package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/haasonsaas/ragsweep/internal/observability"
	"github.com/haasonsaas/ragsweep/internal/retry"
)

// Runner executes evaluations on a fixed-size worker pool shared by the
// whole sweep. Submit blocks while every worker is busy, so at most size
// evaluations are ever in flight.
type Runner struct {
	evaluator Evaluator
	pool      *ants.Pool
	retry     retry.Config
	wg        sync.WaitGroup

	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRunner creates a runner with size workers.
func NewRunner(evaluator Evaluator, size int, policy retry.Config) (*Runner, error) {
	if size <= 0 {
		return nil, invalidSpec("max_concurrency", "must be positive, got %d", size)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Runner{
		evaluator: evaluator,
		pool:      pool,
		retry:     policy,
		logger:    observability.NopLogger(),
	}, nil
}

// Submit schedules cfg against index and calls record exactly once with its
// outcome. Transient evaluator errors are retried under the runner's policy.
// Configs whose context is done before they start are recorded as failed
// without calling the evaluator.
func (r *Runner) Submit(ctx context.Context, cfg Config, index Index, metricNames []string, record func(Config, *Outcome, error)) {
	r.wg.Add(1)
	task := func() {
		defer r.wg.Done()
		out, err := r.run(ctx, cfg, index, metricNames)
		record(cfg, out, err)
	}
	if err := r.pool.Submit(task); err != nil {
		r.wg.Done()
		record(cfg, nil, &EvaluationError{Config: cfg, Err: fmt.Errorf("schedule: %w", err)})
	}
}

func (r *Runner) run(ctx context.Context, cfg Config, index Index, metricNames []string) (*Outcome, error) {
	ctx = observability.WithConfig(ctx, cfg.String())

	if err := ctx.Err(); err != nil {
		return nil, &EvaluationError{Config: cfg, Err: err}
	}

	req := EvalRequest{
		Index:    index,
		Config:   cfg,
		K:        cfg.K,
		Reranker: cfg.Reranker,
		Metrics:  append([]string(nil), metricNames...),
	}

	r.metrics.EvaluationStarted()
	defer r.metrics.EvaluationFinished()
	start := time.Now()

	out, result := retry.DoWithValue(ctx, r.retry, func(attempt int) (*Outcome, error) {
		if attempt > 1 {
			r.metrics.RecordRetry()
			r.logger.Debug(ctx, "retrying evaluation", "attempt", attempt)
		}
		return r.evaluator.Evaluate(ctx, req)
	})
	elapsed := time.Since(start)

	if result.Err == nil && out == nil {
		result.Err = errors.New("evaluator returned no outcome")
	}
	if result.Err != nil {
		r.metrics.RecordEvaluation("failure", elapsed.Seconds())
		r.logger.Warn(ctx, "evaluation failed", "error", result.Err, "attempts", result.Attempts)
		return nil, &EvaluationError{Config: cfg, Attempts: result.Attempts, Err: result.Err}
	}
	r.metrics.RecordEvaluation("success", elapsed.Seconds())
	r.logger.Debug(ctx, "evaluation finished", "duration_ms", elapsed.Milliseconds(), "trace", out.TraceReference)
	return out, nil
}

// Wait blocks until every submitted evaluation has been recorded.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Release waits for submitted work and stops the pool.
func (r *Runner) Release() {
	r.wg.Wait()
	r.pool.Release()
}
