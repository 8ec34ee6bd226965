package embeddings

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
)

// TFIDFConfig configures the TF-IDF embedder.
type TFIDFConfig struct {
	// MaxFeatures caps the vocabulary at the most document-frequent terms.
	// Zero keeps every term.
	MaxFeatures int `yaml:"max_features" json:"max_features"`

	// Stopwords removes common English function words.
	Stopwords bool `yaml:"stopwords" json:"stopwords"`
}

// TFIDF implements a corpus-prepared TF-IDF vectorizer. The vocabulary and
// smoothed IDF weights are learned by Prepare; Embed fails before that.
type TFIDF struct {
	config TFIDFConfig

	mu         sync.RWMutex
	vocabulary map[string]int
	idf        []float64
}

var (
	_ Provider = (*TFIDF)(nil)
	_ Preparer = (*TFIDF)(nil)
)

// ErrNotPrepared is returned when a TF-IDF embedder is used before Prepare.
var ErrNotPrepared = errors.New("tfidf embedder not prepared")

// NewTFIDF creates an unprepared TF-IDF embedder.
func NewTFIDF(cfg TFIDFConfig) *TFIDF {
	return &TFIDF{config: cfg}
}

// Name returns the provider name.
func (e *TFIDF) Name() string { return "tfidf" }

// Dimension returns the vocabulary size (zero before Prepare).
func (e *TFIDF) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.idf)
}

// MaxBatchSize returns the maximum number of texts per batch.
func (e *TFIDF) MaxBatchSize() int { return 1024 }

// Prepare builds the vocabulary and IDF values from the corpus.
func (e *TFIDF) Prepare(ctx context.Context, corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen := make(map[string]struct{})
		for _, tok := range e.tokens(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return errors.New("no tokens found in corpus")
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	// Stable ordering: by document frequency, then lexically.
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if e.config.MaxFeatures > 0 && len(terms) > e.config.MaxFeatures {
		terms = terms[:e.config.MaxFeatures]
	}
	sort.Strings(terms)

	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocabulary[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	e.mu.Lock()
	e.vocabulary = vocabulary
	e.idf = idf
	e.mu.Unlock()
	return nil
}

// Embed computes the L2-normalized TF-IDF vector for text.
func (e *TFIDF) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.vocabulary == nil {
		return nil, ErrNotPrepared
	}

	vec := make([]float32, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokens(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		vec[idx] = float32(float64(count) / float64(total) * e.idf[idx])
	}
	return Normalize(vec), nil
}

// EmbedBatch embeds each text independently.
func (e *TFIDF) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *TFIDF) tokens(text string) []string {
	raw := Tokenize(text)
	if !e.config.Stopwords {
		return raw
	}
	out := raw[:0]
	for _, t := range raw {
		if _, stop := stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same",
		"too", "very", "can", "will", "just", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
