// Package index builds read-only retrieval indexes from a knowledge base.
// A build runs the full pipeline: chunk -> prepare -> embed -> store.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/ragsweep/internal/rag/chunker"
	"github.com/haasonsaas/ragsweep/internal/rag/embeddings"
	"github.com/haasonsaas/ragsweep/internal/rag/store"
	"github.com/haasonsaas/ragsweep/pkg/models"
)

// ErrNoChunks is returned when chunking the knowledge base yields nothing.
var ErrNoChunks = errors.New("knowledge base produced no chunks")

// BuildRequest contains everything needed to build one index.
type BuildRequest struct {
	// Documents is the knowledge base.
	Documents []*models.Document

	// Chunker splits documents into chunks.
	Chunker chunker.Chunker

	// Embedder embeds chunks and queries. Providers implementing
	// embeddings.Preparer see the chunk corpus before embedding.
	Embedder embeddings.Provider

	// Store selects the vector store backend.
	Store store.Config

	// Collection names the store collection for this index.
	Collection string

	// EmbeddingBatchSize is the maximum texts per embedding batch.
	// Default: 100
	EmbeddingBatchSize int
}

// Stats describes a built index.
type Stats struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Tokens    int           `json:"tokens"`
	Dimension int           `json:"dimension"`
	Duration  time.Duration `json:"duration"`
}

// Index is a built, read-only retrieval index. Search is safe for concurrent
// use; Close must be called exactly once when no searches are in flight.
type Index struct {
	store    store.VectorStore
	embedder embeddings.Provider
	stats    Stats
}

// Build processes the knowledge base into a searchable index. On failure or
// cancellation any partially written store is closed.
func Build(ctx context.Context, req BuildRequest) (*Index, error) {
	start := time.Now()

	if req.Chunker == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if req.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if req.EmbeddingBatchSize <= 0 {
		req.EmbeddingBatchSize = 100
	}

	var chunks []*models.DocumentChunk
	tokens := 0
	for _, doc := range req.Documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docChunks, err := req.Chunker.Chunk(doc)
		if err != nil {
			return nil, fmt.Errorf("chunking %s failed: %w", doc.ID, err)
		}
		for _, c := range docChunks {
			tokens += c.TokenCount
		}
		chunks = append(chunks, docChunks...)
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	if preparer, ok := req.Embedder.(embeddings.Preparer); ok {
		if err := preparer.Prepare(ctx, texts); err != nil {
			return nil, fmt.Errorf("prepare embedder: %w", err)
		}
	}

	vectors, err := embeddings.EmbedAll(ctx, req.Embedder, texts, req.EmbeddingBatchSize)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	for i, c := range chunks {
		c.Embedding = vectors[i]
	}

	dimension := req.Embedder.Dimension()
	if len(vectors) > 0 && len(vectors[0]) != dimension {
		dimension = len(vectors[0])
	}

	vs, err := store.Open(ctx, req.Store, req.Collection, dimension)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := vs.Upsert(ctx, chunks); err != nil {
		_ = vs.Close()
		return nil, fmt.Errorf("storage failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = vs.Close()
		return nil, err
	}

	return &Index{
		store:    vs,
		embedder: req.Embedder,
		stats: Stats{
			Documents: len(req.Documents),
			Chunks:    len(chunks),
			Tokens:    tokens,
			Dimension: dimension,
			Duration:  time.Since(start),
		},
	}, nil
}

// Search embeds the query and returns the k most similar chunks.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]*models.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	queryEmbedding, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.store.Search(ctx, queryEmbedding, k)
}

// Stats returns build statistics.
func (ix *Index) Stats() Stats {
	return ix.stats
}

// Close releases the underlying store.
func (ix *Index) Close() error {
	return ix.store.Close()
}
