package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/ragsweep/internal/retry"
	"github.com/haasonsaas/ragsweep/pkg/models"
)

// HTTPConfig configures a remote rerank endpoint speaking the common
// Cohere/Jina/TEI request shape.
type HTTPConfig struct {
	URL              string        `yaml:"url" json:"url"`
	Model            string        `yaml:"model" json:"model"`
	APIKey           string        `yaml:"api_key" json:"api_key"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	CandidatesFactor int           `yaml:"candidates_factor" json:"candidates_factor"`
}

// HTTP calls a remote cross-encoder.
type HTTP struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTP creates an HTTP reranker.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CandidatesFactor < 0 {
		return nil, fmt.Errorf("candidates_factor must not be negative")
	}
	return &HTTP{config: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Name returns the reranker name.
func (h *HTTP) Name() string { return TypeHTTP }

// Candidates returns k times the candidates factor.
func (h *HTTP) Candidates(k int) int { return candidates(h.config.CandidatesFactor, k) }

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank sends the candidates to the endpoint. Client errors (4xx other than
// 429) are permanent; everything else may be retried by the caller.
func (h *HTTP) Rerank(ctx context.Context, query string, results []*models.SearchResult, topK int) ([]*models.SearchResult, error) {
	if len(results) == 0 {
		return nil, nil
	}
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Chunk.Content
	}
	body, err := json.Marshal(rerankRequest{Model: h.config.Model, Query: query, Documents: docs, TopN: len(docs)})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("rerank endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	// Candidates the endpoint did not score are dropped.
	scores := make([]float32, len(results))
	scored := make([]bool, len(results))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(results) {
			return nil, fmt.Errorf("rerank response index %d out of range", r.Index)
		}
		scores[r.Index] = float32(r.RelevanceScore)
		scored[r.Index] = true
	}
	var kept []*models.SearchResult
	var keptScores []float32
	for i := range results {
		if scored[i] {
			kept = append(kept, results[i])
			keptScores = append(keptScores, scores[i])
		}
	}
	return rescored(kept, keptScores, topK), nil
}
