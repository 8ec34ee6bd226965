// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/ragsweep/internal/rag/embeddings"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "nomic-embed-text"
	maxBatch       = 256
)

// knownDimensions is used until the server has answered once.
var knownDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
	"bge-m3":            1024,
}

// Config holds the embedder params accepted in a sweep file.
type Config struct {
	BaseURL string        `yaml:"base_url"` // default http://localhost:11434
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	// Dimensions overrides the size reported before the first response.
	Dimensions int `yaml:"dimensions"`
}

// Provider calls the /api/embed endpoint, which accepts a batch of inputs.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client
	dim     atomic.Int64
}

var _ embeddings.Provider = (*Provider)(nil)

// New validates cfg and applies defaults. No request is made.
func New(cfg Config) (*Provider, error) {
	if cfg.Dimensions < 0 {
		return nil, fmt.Errorf("dimensions must not be negative, got %d", cfg.Dimensions)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	p := &Provider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
	dim := cfg.Dimensions
	if dim == 0 {
		dim = knownDimensions[cfg.Model]
	}
	if dim == 0 {
		dim = knownDimensions[defaultModel]
	}
	p.dim.Store(int64(dim))
	return p, nil
}

func (p *Provider) Name() string { return "ollama" }

// Dimension is the configured or known size until a response reveals the
// real one.
func (p *Provider) Dimension() int { return int(p.dim.Load()) }

func (p *Provider) MaxBatchSize() int { return maxBatch }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch sends texts in one request. Callers keep batches within
// MaxBatchSize.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embed(ctx, texts)
}

func (p *Provider) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama %s: %w", p.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama %s: status %d: %s", p.model, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama %s: got %d embeddings for %d inputs", p.model, len(out.Embeddings), len(inputs))
	}
	for i, v := range out.Embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("ollama %s: empty embedding for input %d", p.model, i)
		}
	}
	p.dim.Store(int64(len(out.Embeddings[0])))
	return out.Embeddings, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}
