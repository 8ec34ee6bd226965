package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/ragsweep/internal/observability"
	"github.com/haasonsaas/ragsweep/internal/retry"
)

// Engine runs sweeps.
type Engine struct {
	builder     Builder
	evaluator   Evaluator
	logger      *observability.Logger
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	retry       retry.Config
	knownMetric func(string) bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *observability.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithTracer sets the tracer used for the sweep and build spans.
func WithTracer(tracer *observability.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithRetry sets the retry policy for transient evaluation errors.
func WithRetry(policy retry.Config) Option {
	return func(e *Engine) { e.retry = policy }
}

// WithMetricRegistry rejects specs naming metrics for which known returns false.
func WithMetricRegistry(known func(string) bool) Option {
	return func(e *Engine) { e.knownMetric = known }
}

// NewEngine creates an engine over the given collaborators.
func NewEngine(builder Builder, evaluator Evaluator, opts ...Option) *Engine {
	e := &Engine{
		builder:   builder,
		evaluator: evaluator,
		logger:    observability.NopLogger(),
		retry:     retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan expands spec without running it.
func (e *Engine) Plan(spec Spec) (*Plan, error) {
	return Expand(spec, e.knownMetric)
}

// Run expands spec, builds each group once and evaluates every config.
//
// The only error returned is an invalid spec (or invalid collaborators);
// build and evaluation failures are recorded on the affected results. The
// result has one entry per config in enumeration order, even when ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context, spec Spec) (SweepResult, error) {
	if e.builder == nil || e.evaluator == nil {
		return nil, errors.New("sweep engine requires a builder and an evaluator")
	}
	plan, err := e.Plan(spec)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, plan)
}

// Evaluate runs a single config through the same path as a sweep, so the
// result is a SweepResult of length one.
func (e *Engine) Evaluate(ctx context.Context, chunker, embedder Component, k int, reranker *Component, metrics []string) (SweepResult, error) {
	var rerankers []*Component
	if reranker != nil {
		rerankers = []*Component{reranker}
	}
	return e.Run(ctx, Spec{
		Chunkers:       []Component{chunker},
		Embedders:      []Component{embedder},
		KValues:        []int{k},
		Rerankers:      rerankers,
		Metrics:        metrics,
		MaxConcurrency: 1,
	})
}

func (e *Engine) execute(ctx context.Context, plan *Plan) (SweepResult, error) {
	runID := observability.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = observability.WithRunID(ctx, runID)
	}
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.TraceSweep(ctx, runID, len(plan.Configs))
		defer span.End()
	}

	runner, err := NewRunner(e.evaluator, plan.Spec.MaxConcurrency, e.retry)
	if err != nil {
		return nil, err
	}
	runner.logger = e.logger
	runner.metrics = e.metrics

	cache := NewCache(e.builder)
	cache.logger = e.logger
	cache.metrics = e.metrics
	cache.tracer = e.tracer

	agg := NewAggregator(plan.Configs)
	record := func(cfg Config, out *Outcome, err error) {
		agg.Record(cfg, out, err)
		if err != nil {
			e.metrics.RecordConfig(string(failureOf(err).Stage), "failure")
			return
		}
		e.metrics.RecordConfig(string(StageEvaluation), "success")
	}

	start := time.Now()
	e.logger.Info(ctx, "sweep started",
		"configs", len(plan.Configs),
		"groups", len(plan.Groups),
		"max_concurrency", plan.Spec.MaxConcurrency,
	)

	validator, _ := e.evaluator.(ConfigValidator)
	var builds sync.WaitGroup
	for _, group := range plan.Groups {
		pending := make([]Config, 0, len(group.Configs))
		for _, cfg := range group.Configs {
			if validator != nil {
				if verr := validator.ValidateConfig(cfg); verr != nil {
					record(cfg, nil, &ValidationError{Subject: fmt.Sprintf("config %s", cfg), Err: verr})
					continue
				}
			}
			pending = append(pending, cfg)
		}
		if len(pending) == 0 {
			continue
		}

		builds.Add(1)
		go func(g Group, pending []Config) {
			defer builds.Done()
			groupCtx := observability.WithGroup(ctx, g.Label())
			index, err := cache.Get(groupCtx, g)
			if err != nil {
				for _, cfg := range pending {
					record(cfg, nil, err)
				}
				return
			}
			for _, cfg := range pending {
				runner.Submit(groupCtx, cfg, index, plan.Spec.Metrics, record)
			}
		}(group, pending)
	}

	builds.Wait()
	runner.Release()
	if err := cache.Close(); err != nil {
		e.logger.Warn(ctx, "releasing indexes failed", "error", err)
	}

	result := agg.Result()
	e.logger.Info(ctx, "sweep finished",
		"configs", len(result),
		"failed", len(result.Failed()),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
