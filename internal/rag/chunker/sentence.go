package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/haasonsaas/ragsweep/pkg/models"
)

// SentenceConfig configures the sentence chunker.
type SentenceConfig struct {
	SentencesPerChunk int `yaml:"sentences_per_chunk" json:"sentences_per_chunk"`
	OverlapSentences  int `yaml:"overlap_sentences" json:"overlap_sentences"`
}

// DefaultSentenceConfig returns five sentences per chunk with one sentence of overlap.
func DefaultSentenceConfig() SentenceConfig {
	return SentenceConfig{SentencesPerChunk: 5, OverlapSentences: 1}
}

// SentenceChunker groups consecutive sentences into chunks with overlap.
type SentenceChunker struct {
	config       SentenceConfig
	splitter     *regexp.Regexp
	tokenCounter TokenCounter
}

// NewSentenceChunker creates a sentence chunker.
func NewSentenceChunker(cfg SentenceConfig) *SentenceChunker {
	if cfg.SentencesPerChunk <= 0 {
		cfg.SentencesPerChunk = DefaultSentenceConfig().SentencesPerChunk
	}
	if cfg.OverlapSentences < 0 || cfg.OverlapSentences >= cfg.SentencesPerChunk {
		cfg.OverlapSentences = 0
	}
	return &SentenceChunker{
		config:       cfg,
		splitter:     regexp.MustCompile(`[^.!?\n]+(?:[.!?]+|\n|$)`),
		tokenCounter: &SimpleTokenCounter{CharsPerToken: 4},
	}
}

// Name returns the chunker name.
func (c *SentenceChunker) Name() string { return TypeSentence }

// Chunk splits a document into sentence windows.
func (c *SentenceChunker) Chunk(doc *models.Document) ([]*models.DocumentChunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	content := doc.Content
	var sentences []span
	for _, loc := range c.splitter.FindAllStringIndex(content, -1) {
		piece := content[loc[0]:loc[1]]
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}
		lead := len(piece) - len(strings.TrimLeftFunc(piece, unicode.IsSpace))
		start := loc[0] + lead
		sentences = append(sentences, span{start, start + len(trimmed)})
	}
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	for i := 0; i < len(sentences); {
		end := i + c.config.SentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		start, stop := sentences[i].start, sentences[end-1].end
		chunks = append(chunks, Chunk{
			Content:     content[start:stop],
			StartOffset: start,
			EndOffset:   stop,
		})
		if end == len(sentences) {
			break
		}
		i = end - c.config.OverlapSentences
	}
	return toDocumentChunks(doc, chunks, c.tokenCounter), nil
}
