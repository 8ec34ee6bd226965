// Package pipeline connects the retrieval building blocks to the sweep engine.
//
// Builder turns a (chunker, embedder) pair into a built index over the
// knowledge base. Evaluator runs the dataset against one index at one depth,
// optionally reranked. Both validate component params before any work so a
// malformed config fails without touching a provider.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/haasonsaas/ragsweep/internal/observability"
	"github.com/haasonsaas/ragsweep/internal/rag/chunker"
	"github.com/haasonsaas/ragsweep/internal/rag/embeddings/providers"
	"github.com/haasonsaas/ragsweep/internal/rag/eval"
	"github.com/haasonsaas/ragsweep/internal/rag/index"
	"github.com/haasonsaas/ragsweep/internal/rag/rerank"
	"github.com/haasonsaas/ragsweep/internal/rag/store"
	"github.com/haasonsaas/ragsweep/internal/retry"
	"github.com/haasonsaas/ragsweep/internal/sweep"
	"github.com/haasonsaas/ragsweep/pkg/models"
)

var (
	_ sweep.Builder         = (*Builder)(nil)
	_ sweep.GroupValidator  = (*Builder)(nil)
	_ sweep.Evaluator       = (*Evaluator)(nil)
	_ sweep.ConfigValidator = (*Evaluator)(nil)
)

// BuilderOptions configures index builds.
type BuilderOptions struct {
	// Store selects the vector store backend for every index.
	Store store.Config

	// EmbeddingBatchSize caps texts per embedding request. Default: 100.
	EmbeddingBatchSize int

	Logger *observability.Logger
}

// Builder builds one index per preprocessing group.
type Builder struct {
	documents []*models.Document
	opts      BuilderOptions
}

// NewBuilder creates a builder over the loaded knowledge base. Documents are
// shared read-only by concurrent builds.
func NewBuilder(documents []*models.Document, opts BuilderOptions) (*Builder, error) {
	if len(documents) == 0 {
		return nil, errors.New("knowledge base is empty")
	}
	if err := opts.Store.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	return &Builder{documents: documents, opts: opts}, nil
}

// ValidateGroup checks chunker params and the embedder type without building.
func (b *Builder) ValidateGroup(c, e sweep.Component) error {
	if _, err := chunker.New(c.Type, c.Params); err != nil {
		return err
	}
	if !slices.Contains(providers.Types(), strings.ToLower(strings.TrimSpace(e.Type))) {
		return fmt.Errorf("unknown embedder type %q", e.Type)
	}
	return nil
}

// Build chunks, embeds and stores the knowledge base. Each build gets its
// own store collection and its own embedder instance.
func (b *Builder) Build(ctx context.Context, c, e sweep.Component) (sweep.Index, error) {
	splitter, err := chunker.New(c.Type, c.Params)
	if err != nil {
		return nil, err
	}
	embedder, err := providers.New(ctx, e.Type, e.Params)
	if err != nil {
		return nil, err
	}

	ix, err := index.Build(ctx, index.BuildRequest{
		Documents:          b.documents,
		Chunker:            splitter,
		Embedder:           embedder,
		Store:              b.opts.Store,
		Collection:         "sweep_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		EmbeddingBatchSize: b.opts.EmbeddingBatchSize,
	})
	if err != nil {
		return nil, err
	}

	stats := ix.Stats()
	b.opts.Logger.Debug(ctx, "index built",
		"chunks", stats.Chunks,
		"tokens", stats.Tokens,
		"dimension", stats.Dimension,
		"backend", b.opts.Store.Backend,
	)
	return ix, nil
}

// Evaluator runs single evaluations for the sweep.
type Evaluator struct {
	eval *eval.Evaluator

	// OnReport, if set, receives the full report of every successful
	// evaluation. It may be called concurrently.
	OnReport func(sweep.Config, *eval.Report)
}

// NewEvaluator wraps a single-evaluation runner.
func NewEvaluator(e *eval.Evaluator) *Evaluator {
	return &Evaluator{eval: e}
}

// ValidateConfig checks the reranker params.
func (e *Evaluator) ValidateConfig(cfg sweep.Config) error {
	if cfg.Reranker == nil {
		return nil
	}
	_, err := rerank.New(cfg.Reranker.Type, cfg.Reranker.Params)
	return err
}

// Evaluate runs the dataset against req.Index. Rerankers are constructed per
// evaluation so no state is shared between configs.
func (e *Evaluator) Evaluate(ctx context.Context, req sweep.EvalRequest) (*sweep.Outcome, error) {
	retriever, ok := req.Index.(eval.Retriever)
	if !ok {
		return nil, retry.Permanent(fmt.Errorf("index %T does not support search", req.Index))
	}

	var reranker rerank.Reranker
	if req.Reranker != nil {
		r, err := rerank.New(req.Reranker.Type, req.Reranker.Params)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		reranker = r
	}

	report, err := e.eval.Evaluate(ctx, eval.Request{
		Index:    retriever,
		K:        req.K,
		Reranker: reranker,
		Metrics:  req.Metrics,
	})
	if err != nil {
		return nil, err
	}
	if e.OnReport != nil {
		e.OnReport(req.Config, report)
	}
	return &sweep.Outcome{
		Metrics:        report.Metrics,
		TraceReference: report.TraceReference,
	}, nil
}
