package gemini

import (
	"context"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		model   string
		wantErr bool
	}{
		{name: "missing key", cfg: Config{}, wantErr: true},
		{name: "negative dimensions", cfg: Config{APIKey: "k", Dimensions: -3}, wantErr: true},
		{name: "default model", cfg: Config{APIKey: "k"}, model: "text-embedding-004"},
		{name: "explicit model", cfg: Config{APIKey: "k", Model: "gemini-embedding-001"}, model: "gemini-embedding-001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.withDefaults()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Model != tt.model {
				t.Errorf("Model = %q, want %q", got.Model, tt.model)
			}
		})
	}
}

func TestProviderDimension(t *testing.T) {
	p, err := New(context.Background(), Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if p.Dimension() != 768 {
		t.Errorf("Dimension() = %d, want 768", p.Dimension())
	}
	if p.Name() != "gemini" {
		t.Errorf("Name() = %q", p.Name())
	}

	p, err = New(context.Background(), Config{APIKey: "k", Dimensions: 256})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if p.Dimension() != 256 {
		t.Errorf("Dimension() = %d, want 256", p.Dimension())
	}
}

func TestEmbedBatchEmpty(t *testing.T) {
	p, err := New(context.Background(), Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	out, err := p.EmbedBatch(context.Background(), nil)
	if err != nil || out != nil {
		t.Fatalf("EmbedBatch(nil) = %v, %v", out, err)
	}
}
