// Package chunker provides text chunking interfaces and implementations
// used to split a knowledge base into retrievable units.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/haasonsaas/ragsweep/internal/params"
	"github.com/haasonsaas/ragsweep/pkg/models"
)

// Chunker defines the interface for text chunking strategies.
// Chunkers are pure functions of their construction parameters and the
// document content: the same input always yields the same chunks.
type Chunker interface {
	// Chunk splits a document into chunks.
	Chunk(doc *models.Document) ([]*models.DocumentChunk, error)

	// Name returns the chunker name for logging and debugging.
	Name() string
}

// Config contains common configuration for character-based chunkers.
type Config struct {
	// ChunkSize is the target size of each chunk in characters.
	// Default: 1000
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// ChunkOverlap is the number of characters to overlap between chunks.
	// Default: 200
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	// MinChunkSize is the minimum chunk size to keep.
	// Chunks smaller than this are merged with the previous chunk.
	// Default: 100
	MinChunkSize int `yaml:"min_chunk_size" json:"min_chunk_size"`

	// PreserveWhitespace keeps leading/trailing whitespace in chunks.
	// Default: false
	PreserveWhitespace bool `yaml:"preserve_whitespace" json:"preserve_whitespace"`

	// KeepSeparators includes separators at the end of chunks.
	// Default: true
	KeepSeparators bool `yaml:"keep_separators" json:"keep_separators"`
}

// DefaultConfig returns the default chunker configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:          1000,
		ChunkOverlap:       200,
		MinChunkSize:       100,
		PreserveWhitespace: false,
		KeepSeparators:     true,
	}
}

// Names of the registered chunker types.
const (
	TypeRecursive = "recursive"
	TypeMarkdown  = "markdown"
	TypeSentence  = "sentence"
	TypeFixed     = "fixed"
)

// Types lists the chunker types New understands.
func Types() []string {
	return []string{TypeRecursive, TypeMarkdown, TypeSentence, TypeFixed}
}

// New constructs a chunker of the given type from free-form params.
// Unknown types and unknown params are errors.
func New(kind string, p map[string]any) (Chunker, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case TypeRecursive, "recursive_character":
		cfg := DefaultConfig()
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("recursive chunker: %w", err)
		}
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("recursive chunker: %w", err)
		}
		return NewRecursiveCharacterTextSplitter(cfg), nil
	case TypeMarkdown:
		cfg := DefaultConfig()
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("markdown chunker: %w", err)
		}
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("markdown chunker: %w", err)
		}
		return NewMarkdownSplitter(cfg), nil
	case TypeSentence:
		cfg := DefaultSentenceConfig()
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("sentence chunker: %w", err)
		}
		if cfg.SentencesPerChunk <= 0 {
			return nil, fmt.Errorf("sentence chunker: sentences_per_chunk must be positive")
		}
		if cfg.OverlapSentences < 0 || cfg.OverlapSentences >= cfg.SentencesPerChunk {
			return nil, fmt.Errorf("sentence chunker: overlap_sentences must be in [0, sentences_per_chunk)")
		}
		return NewSentenceChunker(cfg), nil
	case TypeFixed:
		cfg := FixedConfig{ChunkSize: 512, ChunkOverlap: 64}
		if err := params.Decode(p, &cfg); err != nil {
			return nil, fmt.Errorf("fixed chunker: %w", err)
		}
		if cfg.ChunkSize <= 0 {
			return nil, fmt.Errorf("fixed chunker: chunk_size must be positive")
		}
		if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
			return nil, fmt.Errorf("fixed chunker: chunk_overlap must be in [0, chunk_size)")
		}
		return NewFixedChunker(cfg), nil
	default:
		return nil, fmt.Errorf("unknown chunker type %q", kind)
	}
}

func (c Config) validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size)")
	}
	if c.MinChunkSize < 0 {
		return fmt.Errorf("min_chunk_size must not be negative")
	}
	return nil
}

// Chunk represents a piece of text with position information.
type Chunk struct {
	// Content is the chunk text.
	Content string

	// StartOffset is the byte offset in the original document.
	StartOffset int

	// EndOffset is the ending byte offset.
	EndOffset int
}

// TokenCounter estimates token count for text.
type TokenCounter interface {
	// Count returns the estimated token count for text.
	Count(text string) int
}

// SimpleTokenCounter estimates tokens by dividing character count by average chars per token.
type SimpleTokenCounter struct {
	// CharsPerToken is the average characters per token (default: 4).
	CharsPerToken int
}

// Count returns the estimated token count.
func (c *SimpleTokenCounter) Count(text string) int {
	cpt := c.CharsPerToken
	if cpt <= 0 {
		cpt = 4 // ~4 chars per token for English
	}
	return (len(text) + cpt - 1) / cpt
}

type section struct {
	title  string
	offset int
}

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t#]*$`)

// sections returns the markdown headings of content with their byte offsets.
func sections(content string) []section {
	matches := headingPattern.FindAllStringSubmatchIndex(content, -1)
	out := make([]section, 0, len(matches))
	for _, m := range matches {
		out = append(out, section{title: content[m[2]:m[3]], offset: m[0]})
	}
	return out
}

// findSection finds the section title for a given offset.
func findSection(secs []section, offset int) string {
	for i := len(secs) - 1; i >= 0; i-- {
		if offset >= secs[i].offset {
			return secs[i].title
		}
	}
	return ""
}

// toDocumentChunks converts positioned chunks into document chunks with
// deterministic IDs and section metadata.
func toDocumentChunks(doc *models.Document, chunks []Chunk, counter TokenCounter) []*models.DocumentChunk {
	secs := sections(doc.Content)
	out := make([]*models.DocumentChunk, 0, len(chunks))
	for i, c := range chunks {
		out = append(out, &models.DocumentChunk{
			ID:          models.ChunkID(doc.ID, i),
			DocumentID:  doc.ID,
			Index:       i,
			Content:     c.Content,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			Section:     findSection(secs, c.StartOffset),
			TokenCount:  counter.Count(c.Content),
		})
	}
	return out
}
