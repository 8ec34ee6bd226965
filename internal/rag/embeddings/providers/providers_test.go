package providers

import (
	"context"
	"testing"
)

func TestNew(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	tests := []struct {
		name     string
		kind     string
		params   map[string]any
		wantName string
		wantDim  int
		wantErr  bool
	}{
		{name: "hashing default", kind: "hashing", wantName: "hashing", wantDim: 256},
		{name: "hashing dimension", kind: "Hashing", params: map[string]any{"dimension": 32}, wantName: "hashing", wantDim: 32},
		{name: "hashing unknown param", kind: "hashing", params: map[string]any{"dims": 32}, wantErr: true},
		{name: "tfidf", kind: "tfidf", params: map[string]any{"stopwords": true}, wantName: "tfidf", wantDim: 0},
		{name: "openai env key", kind: "openai", params: map[string]any{"model": "text-embedding-3-large"}, wantName: "openai", wantDim: 3072},
		{name: "ollama", kind: "ollama", params: map[string]any{"model": "all-minilm"}, wantName: "ollama", wantDim: 384},
		{name: "gemini missing key", kind: "gemini", wantErr: true},
		{name: "bedrock bad dimensions", kind: "bedrock", params: map[string]any{"dimensions": 100}, wantErr: true},
		{name: "ollama rate limited", kind: "ollama", params: map[string]any{"model": "all-minilm", "requests_per_second": 5, "burst": 2}, wantName: "ollama", wantDim: 384},
		{name: "rate limit zero", kind: "openai", params: map[string]any{"requests_per_second": 0}, wantErr: true},
		{name: "rate limit negative burst", kind: "openai", params: map[string]any{"requests_per_second": 1, "burst": -1}, wantErr: true},
		{name: "rate limit on local embedder", kind: "hashing", params: map[string]any{"requests_per_second": 1}, wantErr: true},
		{name: "unknown", kind: "word2vec", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(context.Background(), tt.kind, tt.params)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
			if p.Dimension() != tt.wantDim {
				t.Errorf("Dimension() = %d, want %d", p.Dimension(), tt.wantDim)
			}
		})
	}
}

func TestNewReturnsFreshInstances(t *testing.T) {
	a, err := New(context.Background(), TypeTFIDF, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(context.Background(), TypeTFIDF, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("expected distinct provider instances")
	}
}
