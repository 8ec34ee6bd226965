package rerank

import (
	"context"
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/haasonsaas/ragsweep/internal/rag/embeddings"
	"github.com/haasonsaas/ragsweep/pkg/models"
)

// Lexical similarity algorithms.
const (
	AlgorithmJaccard      = "jaccard"
	AlgorithmCosine       = "cosine"
	AlgorithmSorensenDice = "sorensen_dice"
	AlgorithmJaroWinkler  = "jaro_winkler"
)

// LexicalConfig configures the lexical reranker.
type LexicalConfig struct {
	// Algorithm is jaccard, cosine (character bigrams), sorensen_dice or jaro_winkler.
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	// Weight blends lexical similarity with the first-stage score:
	// score = weight*lexical + (1-weight)*vector.
	Weight float64 `yaml:"weight" json:"weight"`

	CandidatesFactor int `yaml:"candidates_factor" json:"candidates_factor"`
}

// DefaultLexicalConfig returns jaccard with an even blend.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{Algorithm: AlgorithmJaccard, Weight: 0.5, CandidatesFactor: DefaultCandidatesFactor}
}

// Lexical reranks by string similarity between the query and chunk text.
type Lexical struct {
	config LexicalConfig
}

// NewLexical validates cfg and creates a lexical reranker.
func NewLexical(cfg LexicalConfig) (*Lexical, error) {
	cfg.Algorithm = strings.ToLower(strings.TrimSpace(cfg.Algorithm))
	switch cfg.Algorithm {
	case "":
		cfg.Algorithm = AlgorithmJaccard
	case AlgorithmJaccard, AlgorithmCosine, AlgorithmSorensenDice, AlgorithmJaroWinkler:
	default:
		return nil, fmt.Errorf("unknown lexical algorithm %q", cfg.Algorithm)
	}
	if cfg.Weight < 0 || cfg.Weight > 1 {
		return nil, fmt.Errorf("weight must be in [0, 1], got %v", cfg.Weight)
	}
	if cfg.CandidatesFactor < 0 {
		return nil, fmt.Errorf("candidates_factor must not be negative")
	}
	return &Lexical{config: cfg}, nil
}

// Name returns the reranker name.
func (l *Lexical) Name() string { return TypeLexical }

// Candidates returns k times the candidates factor.
func (l *Lexical) Candidates(k int) int { return candidates(l.config.CandidatesFactor, k) }

// Rerank blends lexical and vector scores.
func (l *Lexical) Rerank(ctx context.Context, query string, results []*models.SearchResult, topK int) ([]*models.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := normalize(query)
	scores := make([]float32, len(results))
	for i, r := range results {
		lexical := l.similarity(q, normalize(r.Chunk.Content))
		scores[i] = float32(l.config.Weight*lexical + (1-l.config.Weight)*float64(r.Score))
	}
	return rescored(results, scores, topK), nil
}

func (l *Lexical) similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	switch l.config.Algorithm {
	case AlgorithmCosine:
		return float64(edlib.CosineSimilarity(a, b, 2))
	case AlgorithmSorensenDice:
		return float64(edlib.SorensenDiceCoefficient(a, b, 0))
	case AlgorithmJaroWinkler:
		return float64(edlib.JaroWinklerSimilarity(a, b))
	default:
		return float64(edlib.JaccardSimilarity(a, b, 0))
	}
}

// normalize lowercases and collapses text to space-separated word tokens.
func normalize(text string) string {
	return strings.Join(embeddings.Tokenize(text), " ")
}
