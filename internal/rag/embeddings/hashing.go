package embeddings

import (
	"context"
	"hash/fnv"
)

// HashingConfig configures the feature-hashing embedder.
type HashingConfig struct {
	Dimension int  `yaml:"dimension" json:"dimension"`
	Bigrams   bool `yaml:"bigrams" json:"bigrams"`
}

// Hashing is a deterministic, offline embedder that maps word tokens (and
// optionally adjacent word pairs) into a fixed number of signed buckets.
// It needs no corpus preparation and no network access.
type Hashing struct {
	config HashingConfig
}

var _ Provider = (*Hashing)(nil)

// NewHashing creates a hashing embedder. Dimension defaults to 256.
func NewHashing(cfg HashingConfig) *Hashing {
	if cfg.Dimension <= 0 {
		cfg.Dimension = 256
	}
	return &Hashing{config: cfg}
}

// Name returns the provider name.
func (h *Hashing) Name() string { return "hashing" }

// Dimension returns the number of buckets.
func (h *Hashing) Dimension() int { return h.config.Dimension }

// MaxBatchSize returns the maximum number of texts per batch.
func (h *Hashing) MaxBatchSize() int { return 1024 }

// Embed hashes the tokens of text into a unit-length vector.
func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, h.config.Dimension)
	tokens := Tokenize(text)
	for i, tok := range tokens {
		h.add(vec, tok)
		if h.config.Bigrams && i > 0 {
			h.add(vec, tokens[i-1]+" "+tok)
		}
	}
	return Normalize(vec), nil
}

func (h *Hashing) add(vec []float32, feature string) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	idx := sum % uint64(len(vec))
	if sum>>63 == 1 {
		vec[idx]--
		return
	}
	vec[idx]++
}

// EmbedBatch embeds each text independently.
func (h *Hashing) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
