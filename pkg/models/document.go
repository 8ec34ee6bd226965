// Package models defines the core data types shared by the ragsweep
// collaborators: knowledge-base documents, their chunks, and retrieval hits.
package models

import (
	"fmt"
	"sort"
	"time"
)

// Document represents one knowledge-base document before chunking.
type Document struct {
	// ID is the stable identifier for the document (relative path for files).
	ID string `json:"id"`

	// Name is the human-readable name or title of the document.
	Name string `json:"name"`

	// SourceURI is the original path or URI.
	SourceURI string `json:"source_uri,omitempty"`

	// ContentType is the MIME type of the original document.
	ContentType string `json:"content_type"`

	// Content is the raw text content of the document.
	Content string `json:"content"`

	// Metadata contains additional information about the document.
	Metadata DocumentMetadata `json:"metadata"`

	// LoadedAt is when the document was read from disk.
	LoadedAt time.Time `json:"loaded_at"`
}

// DocumentMetadata contains additional information about a document.
type DocumentMetadata struct {
	// Title is the document title (first heading for markdown).
	Title string `json:"title,omitempty"`

	// Tags are labels for categorization.
	Tags []string `json:"tags,omitempty"`

	// Custom contains user-defined metadata fields.
	Custom map[string]any `json:"custom,omitempty"`
}

// DocumentChunk represents a portion of a document for vector indexing.
// Chunks are the unit of retrieval.
type DocumentChunk struct {
	// ID is deterministic: "<document_id>#<index>".
	ID string `json:"id"`

	// DocumentID links this chunk to its parent document.
	DocumentID string `json:"document_id"`

	// Index is the position of this chunk within the document (0-based).
	Index int `json:"index"`

	// Content is the text content of this chunk.
	Content string `json:"content"`

	// Embedding is the vector embedding for semantic search.
	Embedding []float32 `json:"-"`

	// StartOffset is the character offset in the original document.
	StartOffset int `json:"start_offset"`

	// EndOffset is the ending character offset.
	EndOffset int `json:"end_offset"`

	// Section is the heading this chunk falls under, if any.
	Section string `json:"section,omitempty"`

	// TokenCount is the approximate token count for this chunk.
	TokenCount int `json:"token_count,omitempty"`
}

// ChunkID builds the deterministic chunk identifier.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s#%d", documentID, index)
}

// SearchResult represents a single retrieval hit.
type SearchResult struct {
	// Chunk is the matching chunk.
	Chunk *DocumentChunk `json:"chunk"`

	// Score is the similarity or relevance score. Higher is better.
	Score float32 `json:"score"`
}

// Texts returns the chunk contents of results in rank order.
func Texts(results []*SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil || r.Chunk == nil {
			continue
		}
		out = append(out, r.Chunk.Content)
	}
	return out
}

// RankResults orders results by descending score, breaking ties by chunk ID,
// and truncates to k when k is positive.
func RankResults(results []*SearchResult, k int) []*SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
