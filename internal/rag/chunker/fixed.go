package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/haasonsaas/ragsweep/pkg/models"
)

// FixedConfig configures the fixed-width chunker. Sizes are in runes.
type FixedConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// FixedChunker cuts documents into fixed-size windows regardless of structure.
type FixedChunker struct {
	config       FixedConfig
	tokenCounter TokenCounter
}

// NewFixedChunker creates a fixed-width chunker.
func NewFixedChunker(cfg FixedConfig) *FixedChunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	return &FixedChunker{config: cfg, tokenCounter: &SimpleTokenCounter{CharsPerToken: 4}}
}

// Name returns the chunker name.
func (c *FixedChunker) Name() string { return TypeFixed }

// Chunk splits the document into windows of ChunkSize runes stepping by
// ChunkSize-ChunkOverlap.
func (c *FixedChunker) Chunk(doc *models.Document) ([]*models.DocumentChunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	content := doc.Content
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	// byte offset of every rune boundary, plus the end of the text
	bounds := make([]int, 0, utf8.RuneCountInString(content)+1)
	for i := range content {
		bounds = append(bounds, i)
	}
	bounds = append(bounds, len(content))
	runes := len(bounds) - 1

	step := c.config.ChunkSize - c.config.ChunkOverlap
	var chunks []Chunk
	for start := 0; start < runes; start += step {
		end := start + c.config.ChunkSize
		if end > runes {
			end = runes
		}
		text := content[bounds[start]:bounds[end]]
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, Chunk{
				Content:     text,
				StartOffset: bounds[start],
				EndOffset:   bounds[end],
			})
		}
		if end == runes {
			break
		}
	}
	return toDocumentChunks(doc, chunks, c.tokenCounter), nil
}
