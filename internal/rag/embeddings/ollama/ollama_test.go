package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	p, err := New(Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if p.baseURL != defaultBaseURL || p.model != defaultModel {
		t.Errorf("provider = %s %s", p.baseURL, p.model)
	}
	if p.Dimension() != 768 {
		t.Errorf("Dimension() = %d, want 768", p.Dimension())
	}
	if _, err := New(Config{Dimensions: -1}); err == nil {
		t.Error("expected error for negative dimensions")
	}
}

func TestProviderDimension(t *testing.T) {
	tests := []struct {
		cfg  Config
		want int
	}{
		{Config{Model: "nomic-embed-text"}, 768},
		{Config{Model: "mxbai-embed-large"}, 1024},
		{Config{Model: "all-minilm"}, 384},
		{Config{Model: "custom"}, 768},
		{Config{Model: "custom", Dimensions: 512}, 512},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Model, func(t *testing.T) {
			p, err := New(tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			if got := p.Dimension(); got != tt.want {
				t.Errorf("Dimension() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProviderEmbedBatch(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "custom" {
			t.Errorf("model = %q", req.Model)
		}
		var out embedResponse
		for _, in := range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{float32(len(in)), 1, 0})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer server.Close()

	p, _ := New(Config{BaseURL: server.URL + "/", Model: "custom"})
	vectors, err := p.EmbedBatch(context.Background(), []string{"a", "abc"})
	if err != nil {
		t.Fatalf("EmbedBatch error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][0] != 3 {
		t.Errorf("vectors = %v", vectors)
	}
	if p.Dimension() != 3 {
		t.Errorf("Dimension() after response = %d, want 3", p.Dimension())
	}

	v, err := p.Embed(context.Background(), "abcd")
	if err != nil || v[0] != 4 {
		t.Errorf("Embed = %v, %v", v, err)
	}
}

func TestProviderEmbedErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
			want: "404",
		},
		{
			name: "empty embedding",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"embeddings": [[]]}`))
			},
			want: "empty embedding",
		},
		{
			name: "count mismatch",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"embeddings": []}`))
			},
			want: "got 0 embeddings for 1 inputs",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			p, _ := New(Config{BaseURL: server.URL})
			_, err := p.Embed(context.Background(), "x")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
