// Package providers constructs embedding providers from a type name and
// free-form params.
package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/haasonsaas/ragsweep/internal/params"
	"github.com/haasonsaas/ragsweep/internal/ratelimit"
	"github.com/haasonsaas/ragsweep/internal/rag/embeddings"
	"github.com/haasonsaas/ragsweep/internal/rag/embeddings/bedrock"
	"github.com/haasonsaas/ragsweep/internal/rag/embeddings/gemini"
	"github.com/haasonsaas/ragsweep/internal/rag/embeddings/ollama"
	"github.com/haasonsaas/ragsweep/internal/rag/embeddings/openai"
)

// Names of the registered embedder types.
const (
	TypeHashing = "hashing"
	TypeTFIDF   = "tfidf"
	TypeOpenAI  = "openai"
	TypeOllama  = "ollama"
	TypeGemini  = "gemini"
	TypeBedrock = "bedrock"
)

// Types lists the embedder types New understands.
func Types() []string {
	return []string{TypeHashing, TypeTFIDF, TypeOpenAI, TypeOllama, TypeGemini, TypeBedrock}
}

// Remote embedders accept these params on top of their own. Every
// preprocessing group calling the same embedder type shares one bucket.
const (
	paramRequestsPerSecond = "requests_per_second"
	paramBurst             = "burst"
)

var limiter = ratelimit.NewLimiter()

// New builds a provider. Each call returns a fresh instance so stateful
// providers (tfidf) are never shared across preprocessing groups.
func New(ctx context.Context, kind string, p map[string]any) (embeddings.Provider, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if !isRemote(kind) {
		return newProvider(ctx, kind, p)
	}

	rest, limit, err := splitRateLimit(p)
	if err != nil {
		return nil, fmt.Errorf("%s embedder: %w", kind, err)
	}
	provider, err := newProvider(ctx, kind, rest)
	if err != nil || !limit.Enabled() {
		return provider, err
	}
	bucket, err := limiter.Bucket(kind, limit)
	if err != nil {
		return nil, fmt.Errorf("%s embedder: %w", kind, err)
	}
	return embeddings.RateLimited(provider, bucket), nil
}

func isRemote(kind string) bool {
	switch kind {
	case TypeOpenAI, TypeOllama, TypeGemini, TypeBedrock:
		return true
	}
	return false
}

// splitRateLimit removes the rate limit params from p.
func splitRateLimit(p map[string]any) (map[string]any, ratelimit.Config, error) {
	var cfg ratelimit.Config
	limits := make(map[string]any, 2)
	rest := make(map[string]any, len(p))
	for k, v := range p {
		switch k {
		case paramRequestsPerSecond, paramBurst:
			limits[k] = v
		default:
			rest[k] = v
		}
	}
	if err := params.Decode(limits, &cfg); err != nil {
		return nil, cfg, err
	}
	if _, ok := limits[paramRequestsPerSecond]; ok && !cfg.Enabled() {
		return nil, cfg, fmt.Errorf("%s must be positive", paramRequestsPerSecond)
	}
	if cfg.BurstSize < 0 {
		return nil, cfg, fmt.Errorf("%s must not be negative", paramBurst)
	}
	return rest, cfg, nil
}

func newProvider(ctx context.Context, kind string, p map[string]any) (embeddings.Provider, error) {
	switch kind {
	case TypeHashing:
		var cfg embeddings.HashingConfig
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("hashing embedder: %w", err)
		}
		if cfg.Dimension < 0 {
			return nil, fmt.Errorf("hashing embedder: dimension must not be negative")
		}
		return embeddings.NewHashing(cfg), nil

	case TypeTFIDF:
		cfg := embeddings.TFIDFConfig{}
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("tfidf embedder: %w", err)
		}
		if cfg.MaxFeatures < 0 {
			return nil, fmt.Errorf("tfidf embedder: max_features must not be negative")
		}
		return embeddings.NewTFIDF(cfg), nil

	case TypeOpenAI:
		var cfg openai.Config
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
		}
		provider, err := openai.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		return provider, nil

	case TypeOllama:
		var cfg ollama.Config
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("ollama embedder: %w", err)
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = os.Getenv("OLLAMA_HOST")
		}
		return ollama.New(cfg)

	case TypeGemini:
		var cfg gemini.Config
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("gemini embedder: %w", err)
		}
		if cfg.APIKey == "" {
			cfg.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
		}
		provider, err := gemini.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("gemini embedder: %w", err)
		}
		return provider, nil

	case TypeBedrock:
		var cfg bedrock.Config
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("bedrock embedder: %w", err)
		}
		if cfg.Region == "" {
			cfg.Region = firstEnv("AWS_REGION", "AWS_DEFAULT_REGION")
		}
		provider, err := bedrock.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bedrock embedder: %w", err)
		}
		return provider, nil

	default:
		return nil, fmt.Errorf("unknown embedder type %q", kind)
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
