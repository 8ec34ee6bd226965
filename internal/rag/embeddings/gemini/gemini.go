// Package gemini provides an embedding provider backed by the Gemini API.
package gemini

import (
	"context"
	"fmt"

	"github.com/haasonsaas/ragsweep/internal/rag/embeddings"
	"google.golang.org/genai"
)

// Config contains configuration for the Gemini provider.
type Config struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	Model   string `yaml:"model" json:"model"`
	// TaskType hints the model at the intended use, e.g. RETRIEVAL_DOCUMENT.
	TaskType   string `yaml:"task_type" json:"task_type"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
}

// Provider implements embeddings.Provider using Gemini embedding models.
type Provider struct {
	client *genai.Client
	config Config
}

var _ embeddings.Provider = (*Provider)(nil)

// New creates a Gemini embedding provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client, config: cfg}, nil
}

func (c Config) withDefaults() (Config, error) {
	if c.APIKey == "" {
		return c, fmt.Errorf("gemini API key is required")
	}
	if c.Model == "" {
		c.Model = "text-embedding-004"
	}
	if c.Dimensions < 0 {
		return c, fmt.Errorf("dimensions must not be negative")
	}
	return c, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return "gemini" }

// Dimension returns the embedding dimension.
func (p *Provider) Dimension() int {
	if p.config.Dimensions > 0 {
		return p.config.Dimensions
	}
	return 768
}

// MaxBatchSize returns the maximum number of texts per batch.
func (p *Provider) MaxBatchSize() int { return 100 }

// Embed generates an embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	cfg := &genai.EmbedContentConfig{TaskType: p.config.TaskType}
	if p.config.Dimensions > 0 {
		dims := int32(p.config.Dimensions) // #nosec G115 -- bounded by model limits
		cfg.OutputDimensionality = &dims
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.config.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini: expected %d embeddings, got %d", len(texts), got)
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini: empty embedding for input %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
