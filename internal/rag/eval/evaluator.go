// Package eval runs a single retrieval evaluation: every dataset example is
// queried against one built index, optionally reranked, scored and averaged.
package eval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/ragsweep/internal/observability"
	"github.com/haasonsaas/ragsweep/internal/rag/dataset"
	"github.com/haasonsaas/ragsweep/internal/rag/metrics"
	"github.com/haasonsaas/ragsweep/internal/rag/rerank"
	"github.com/haasonsaas/ragsweep/internal/retry"
	"github.com/haasonsaas/ragsweep/pkg/models"
)

// Retriever is the read side of a built index.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]*models.SearchResult, error)
}

// Request describes one evaluation.
type Request struct {
	Index    Retriever
	K        int
	Reranker rerank.Reranker
	Metrics  []string
}

// Options controls evaluation behavior.
type Options struct {
	// CaseSensitive disables case folding in token-level metrics.
	CaseSensitive bool

	// Timeout bounds one evaluation. Zero means no limit.
	Timeout time.Duration

	// TraceURLTemplate renders the trace reference, e.g.
	// "http://localhost:16686/trace/{trace_id}".
	TraceURLTemplate string
}

// Evaluator runs evaluations against a fixed dataset.
type Evaluator struct {
	dataset *dataset.Dataset
	tracer  *observability.Tracer
	logger  *observability.Logger
	options Options
}

// NewEvaluator creates an evaluator. The dataset is validated once here.
// A nil tracer disables spans and trace references.
func NewEvaluator(ds *dataset.Dataset, tracer *observability.Tracer, logger *observability.Logger, opts Options) (*Evaluator, error) {
	if ds == nil {
		return nil, errors.New("dataset is nil")
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Evaluator{dataset: ds, tracer: tracer, logger: logger, options: opts}, nil
}

// Validate checks a request without running it. Errors are permanent.
func (e *Evaluator) Validate(req Request) error {
	if req.Index == nil {
		return retry.Permanent(errors.New("index is nil"))
	}
	if req.K <= 0 {
		return retry.Permanent(fmt.Errorf("k must be positive, got %d", req.K))
	}
	for _, name := range req.Metrics {
		if !metrics.Known(name) {
			return retry.Permanent(fmt.Errorf("unknown metric %q", name))
		}
	}
	return nil
}

// Evaluate queries every example, scores the results and averages each
// metric. Metric keys in the report carry "@k". Retrieval and reranking
// errors are returned as is so callers may retry them.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Report, error) {
	if err := e.Validate(req); err != nil {
		return nil, err
	}
	names := req.Metrics
	if len(names) == 0 {
		names = metrics.DefaultNames()
	}

	if e.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.options.Timeout)
		defer cancel()
	}

	if e.tracer == nil {
		return e.run(ctx, req, names)
	}

	ctx, span := e.tracer.TraceEvaluation(ctx, describe(req))
	defer span.End()
	e.tracer.SetAttributes(span, "eval.k", req.K, "eval.examples", len(e.dataset.Examples), "eval.metrics", names)

	report, err := e.run(ctx, req, names)
	if err != nil {
		e.tracer.RecordError(span, err)
		return nil, err
	}
	report.TraceReference = observability.TraceReference(ctx, e.options.TraceURLTemplate)
	return report, nil
}

func (e *Evaluator) run(ctx context.Context, req Request, names []string) (*Report, error) {
	start := time.Now()
	opts := metrics.Options{CaseSensitive: e.options.CaseSensitive}

	cases := make([]CaseResult, 0, len(e.dataset.Examples))
	for _, ex := range e.dataset.Examples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cr, err := e.evaluateCase(ctx, req, ex, names, opts)
		if err != nil {
			return nil, err
		}
		cases = append(cases, cr)
	}

	report := &Report{
		GeneratedAt: time.Now(),
		Dataset:     e.dataset.Name,
		K:           req.K,
		Cases:       cases,
	}
	report.Summary = summarize(cases, names, time.Since(start))
	report.Metrics = make(map[string]float64, len(names))
	for _, name := range names {
		report.Metrics[fmt.Sprintf("%s@%d", name, req.K)] = report.Summary.Averages[name]
	}
	return report, nil
}

func (e *Evaluator) evaluateCase(ctx context.Context, req Request, ex dataset.Example, names []string, opts metrics.Options) (CaseResult, error) {
	start := time.Now()

	fetch := req.K
	if req.Reranker != nil {
		fetch = req.Reranker.Candidates(req.K)
	}
	results, err := req.Index.Search(ctx, ex.Query, fetch)
	if err != nil {
		return CaseResult{}, fmt.Errorf("search %s: %w", ex.ID, err)
	}
	if req.Reranker != nil {
		results, err = req.Reranker.Rerank(ctx, ex.Query, results, req.K)
		if err != nil {
			return CaseResult{}, fmt.Errorf("rerank %s: %w", ex.ID, err)
		}
	} else if len(results) > req.K {
		results = results[:req.K]
	}

	sample := ex.Sample()
	sample.Retrieved = results
	scores, err := metrics.Compute(names, sample, opts)
	if err != nil {
		return CaseResult{}, retry.Permanent(err)
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		if r != nil && r.Chunk != nil {
			ids = append(ids, r.Chunk.ID)
		}
	}

	e.logger.Debug(ctx, "evaluated example", "example", ex.ID, "retrieved", len(ids))

	return CaseResult{
		CaseID:    ex.ID,
		Query:     ex.Query,
		Retrieved: ids,
		Expected:  len(ex.Expected),
		Metrics:   scores,
		QueryTime: time.Since(start),
	}, nil
}

func describe(req Request) string {
	reranker := "none"
	if req.Reranker != nil {
		reranker = req.Reranker.Name()
	}
	return fmt.Sprintf("k=%d | %s", req.K, reranker)
}
