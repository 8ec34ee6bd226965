// Package store provides vector storage for indexed chunks. A store holds the
// chunks of exactly one preprocessing group and is discarded when its index is
// closed.
package store

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/haasonsaas/ragsweep/internal/rag/store/pgvector"
	"github.com/haasonsaas/ragsweep/internal/rag/store/sqlite"
	"github.com/haasonsaas/ragsweep/pkg/models"
)

// VectorStore defines the interface for chunk storage and similarity search.
type VectorStore interface {
	// Upsert stores chunks with their embeddings, replacing chunks with the
	// same ID.
	Upsert(ctx context.Context, chunks []*models.DocumentChunk) error

	// Search returns up to k chunks ranked by cosine similarity.
	Search(ctx context.Context, embedding []float32, k int) ([]*models.SearchResult, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources and drops the stored chunks.
	Close() error
}

var (
	_ VectorStore = (*MemoryStore)(nil)
	_ VectorStore = (*sqlite.Store)(nil)
	_ VectorStore = (*pgvector.Store)(nil)
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPgvector = "pgvector"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is memory, sqlite or pgvector. Default: memory.
	Backend string `yaml:"backend" json:"backend"`

	// Path is the sqlite database file. Default: in-memory.
	Path string `yaml:"path" json:"path"`

	// DSN is the PostgreSQL connection string for pgvector.
	DSN string `yaml:"dsn" json:"dsn"`
}

// Validate checks the backend name and its required settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case "", BackendMemory, BackendSQLite:
		return nil
	case BackendPgvector:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("store: pgvector backend requires dsn")
		}
		return nil
	default:
		return fmt.Errorf("store: unknown backend %q", c.Backend)
	}
}

// Open creates an empty store for one collection of chunks with the given
// embedding dimension.
func Open(ctx context.Context, cfg Config, collection string, dimension int) (VectorStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Backend) {
	case BackendSQLite:
		return sqlite.New(ctx, sqlite.Config{Path: cfg.Path, Collection: collection, Dimension: dimension})
	case BackendPgvector:
		return pgvector.New(ctx, pgvector.Config{DSN: cfg.DSN, Collection: collection, Dimension: dimension, RunMigrations: true})
	default:
		return NewMemoryStore(dimension), nil
	}
}

func validateEmbedding(embedding []float32, dimension int) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is empty")
	}
	if dimension > 0 && len(embedding) != dimension {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), dimension)
	}
	for _, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("embedding contains invalid values")
		}
	}
	return nil
}
