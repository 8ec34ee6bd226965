// Package rerank reorders retrieved chunks using a second-stage scorer.
package rerank

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/ragsweep/internal/params"
	"github.com/haasonsaas/ragsweep/pkg/models"
)

// Reranker rescores retrieval candidates for a query.
type Reranker interface {
	// Rerank returns at most topK results ordered by the new score.
	// The input slice is not modified.
	Rerank(ctx context.Context, query string, results []*models.SearchResult, topK int) ([]*models.SearchResult, error)

	// Candidates returns how many first-stage hits to fetch for a final depth of k.
	Candidates(k int) int

	// Name returns the reranker name.
	Name() string
}

// Names of the registered reranker types.
const (
	TypeLexical = "lexical"
	TypeHTTP    = "http"
)

// Types lists the reranker types New understands.
func Types() []string {
	return []string{TypeLexical, TypeHTTP}
}

// DefaultCandidatesFactor is the first-stage over-fetch multiplier.
const DefaultCandidatesFactor = 3

// New constructs a reranker from a type name and free-form params.
func New(kind string, p map[string]any) (Reranker, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case TypeLexical:
		cfg := DefaultLexicalConfig()
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("lexical reranker: %w", err)
		}
		return NewLexical(cfg)
	case TypeHTTP:
		cfg := HTTPConfig{}
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("http reranker: %w", err)
		}
		return NewHTTP(cfg)
	default:
		return nil, fmt.Errorf("unknown reranker type %q", kind)
	}
}

func candidates(factor, k int) int {
	if factor <= 0 {
		factor = DefaultCandidatesFactor
	}
	return k * factor
}

// rescored copies results with new scores and ranks them.
func rescored(results []*models.SearchResult, scores []float32, topK int) []*models.SearchResult {
	out := make([]*models.SearchResult, len(results))
	for i, r := range results {
		out[i] = &models.SearchResult{Chunk: r.Chunk, Score: scores[i]}
	}
	return models.RankResults(out, topK)
}
