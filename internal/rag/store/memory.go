package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/haasonsaas/ragsweep/internal/rag/embeddings"
	"github.com/haasonsaas/ragsweep/pkg/models"
)

// MemoryStore keeps chunks in memory and searches them by brute force.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	chunks    map[string]*models.DocumentChunk
}

// NewMemoryStore creates an empty in-memory store. A zero dimension accepts
// any embedding length.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		chunks:    make(map[string]*models.DocumentChunk),
	}
}

// Upsert stores chunks.
func (s *MemoryStore) Upsert(ctx context.Context, chunks []*models.DocumentChunk) error {
	for i, chunk := range chunks {
		if err := validateEmbedding(chunk.Embedding, s.dimension); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks == nil {
		return fmt.Errorf("store is closed")
	}
	for _, chunk := range chunks {
		if _, ok := s.chunks[chunk.ID]; !ok {
			s.order = append(s.order, chunk.ID)
		}
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// Search scores every chunk against embedding.
func (s *MemoryStore) Search(ctx context.Context, embedding []float32, k int) ([]*models.SearchResult, error) {
	if err := validateEmbedding(embedding, s.dimension); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]*models.SearchResult, 0, len(s.order))
	for _, id := range s.order {
		chunk := s.chunks[id]
		results = append(results, &models.SearchResult{
			Chunk: chunk,
			Score: embeddings.Cosine(embedding, chunk.Embedding),
		})
	}
	return models.RankResults(results, k), nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Close drops all chunks.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.order = nil
	return nil
}
