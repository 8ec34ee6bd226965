package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/haasonsaas/ragsweep/pkg/models"
)

// RecursiveCharacterTextSplitter implements a recursive chunking strategy.
// It tries to split on larger separators first, then falls back to smaller ones.
// This is similar to LangChain's RecursiveCharacterTextSplitter.
type RecursiveCharacterTextSplitter struct {
	name         string
	config       Config
	separators   []string
	tokenCounter TokenCounter
}

// DefaultSeparators returns the default separator hierarchy.
// Splits are attempted in order, from largest semantic units to smallest.
var DefaultSeparators = []string{
	"\n\n", // Paragraph break
	"\n",   // Line break
	". ",   // Sentence end
	"? ",   // Question end
	"! ",   // Exclamation end
	"; ",   // Semicolon
	": ",   // Colon
	", ",   // Comma
	" ",    // Space
	"",     // Character (last resort)
}

// MarkdownSeparators are separators optimized for Markdown documents.
var MarkdownSeparators = []string{
	"\n## ",   // H2 heading
	"\n### ",  // H3 heading
	"\n#### ", // H4 heading
	"\n\n",    // Paragraph break
	"\n",      // Line break
	". ",      // Sentence end
	" ",       // Space
	"",        // Character
}

// NewRecursiveCharacterTextSplitter creates a new recursive text splitter.
func NewRecursiveCharacterTextSplitter(cfg Config) *RecursiveCharacterTextSplitter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultConfig().ChunkOverlap
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if cfg.MinChunkSize < 0 {
		cfg.MinChunkSize = 0
	}

	return &RecursiveCharacterTextSplitter{
		name:         TypeRecursive,
		config:       cfg,
		separators:   DefaultSeparators,
		tokenCounter: &SimpleTokenCounter{CharsPerToken: 4},
	}
}

// NewMarkdownSplitter creates a splitter optimized for Markdown documents.
func NewMarkdownSplitter(cfg Config) *RecursiveCharacterTextSplitter {
	splitter := NewRecursiveCharacterTextSplitter(cfg)
	splitter.name = TypeMarkdown
	splitter.separators = MarkdownSeparators
	return splitter
}

// WithSeparators sets custom separators.
func (s *RecursiveCharacterTextSplitter) WithSeparators(seps []string) *RecursiveCharacterTextSplitter {
	s.separators = seps
	return s
}

// WithTokenCounter sets a custom token counter.
func (s *RecursiveCharacterTextSplitter) WithTokenCounter(tc TokenCounter) *RecursiveCharacterTextSplitter {
	s.tokenCounter = tc
	return s
}

// Name returns the chunker name.
func (s *RecursiveCharacterTextSplitter) Name() string {
	return s.name
}

// Chunk splits a document into chunks using recursive character splitting.
func (s *RecursiveCharacterTextSplitter) Chunk(doc *models.Document) ([]*models.DocumentChunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	content := doc.Content
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	raw := s.splitText(content, 0, s.separators)
	raw = s.mergeSmall(raw, content)
	merged := s.applyOverlap(raw, content)

	return toDocumentChunks(doc, merged, s.tokenCounter), nil
}

type span struct {
	start, end int
}

// splitText recursively splits text using the separator hierarchy.
// base is the offset of text inside the original document.
func (s *RecursiveCharacterTextSplitter) splitText(text string, base int, separators []string) []Chunk {
	if len(text) == 0 {
		return nil
	}

	// Find the first separator that exists in the text
	separator := ""
	var rest []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var result []Chunk
	curStart, curEnd := -1, -1
	flush := func() {
		if curStart < 0 {
			return
		}
		if c, ok := s.makeChunk(text, base, curStart, curEnd); ok {
			result = append(result, c)
		}
		curStart, curEnd = -1, -1
	}

	for _, p := range splitSpans(text, separator, s.config.KeepSeparators) {
		size := p.end - p.start
		if curStart >= 0 && (curEnd-curStart)+size > s.config.ChunkSize {
			flush()
		}
		// A single piece larger than the target is split with finer separators.
		if size > s.config.ChunkSize && len(rest) > 0 {
			flush()
			result = append(result, s.splitText(text[p.start:p.end], base+p.start, rest)...)
			continue
		}
		if curStart < 0 {
			curStart = p.start
		}
		curEnd = p.end
	}
	flush()

	return result
}

// splitSpans returns the non-empty pieces of text between occurrences of sep.
// With keep set, each piece retains its trailing separator.
func splitSpans(text, sep string, keep bool) []span {
	var spans []span
	if sep == "" {
		for i := 0; i < len(text); {
			_, size := utf8.DecodeRuneInString(text[i:])
			spans = append(spans, span{i, i + size})
			i += size
		}
		return spans
	}

	start := 0
	for start < len(text) {
		idx := strings.Index(text[start:], sep)
		if idx < 0 {
			spans = append(spans, span{start, len(text)})
			break
		}
		end := start + idx
		if keep {
			end += len(sep)
		}
		if end > start {
			spans = append(spans, span{start, end})
		}
		start += idx + len(sep)
	}
	return spans
}

func (s *RecursiveCharacterTextSplitter) makeChunk(text string, base, start, end int) (Chunk, bool) {
	content := text[start:end]
	if !s.config.PreserveWhitespace {
		lead := len(content) - len(strings.TrimLeftFunc(content, unicode.IsSpace))
		content = strings.TrimSpace(content)
		start += lead
	}
	if content == "" {
		return Chunk{}, false
	}
	return Chunk{
		Content:     content,
		StartOffset: base + start,
		EndOffset:   base + start + len(content),
	}, true
}

// mergeSmall folds chunks shorter than MinChunkSize into their predecessor.
func (s *RecursiveCharacterTextSplitter) mergeSmall(chunks []Chunk, original string) []Chunk {
	if s.config.MinChunkSize <= 0 || len(chunks) <= 1 {
		return chunks
	}
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Content) < s.config.MinChunkSize && len(out) > 0 {
			prev := &out[len(out)-1]
			prev.EndOffset = c.EndOffset
			prev.Content = original[prev.StartOffset:prev.EndOffset]
			continue
		}
		out = append(out, c)
	}
	return out
}

// applyOverlap extends each chunk backwards by ChunkOverlap bytes of the
// original text, never past the start of the previous chunk.
func (s *RecursiveCharacterTextSplitter) applyOverlap(chunks []Chunk, original string) []Chunk {
	if len(chunks) <= 1 || s.config.ChunkOverlap <= 0 {
		return chunks
	}

	result := make([]Chunk, len(chunks))
	result[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		chunk := chunks[i]
		start := chunk.StartOffset - s.config.ChunkOverlap
		if start < chunks[i-1].StartOffset {
			start = chunks[i-1].StartOffset
		}
		for start < chunk.StartOffset && !utf8.RuneStart(original[start]) {
			start++
		}
		content := original[start:chunk.EndOffset]
		if !s.config.PreserveWhitespace {
			trimmed := strings.TrimLeftFunc(content, unicode.IsSpace)
			start += len(content) - len(trimmed)
			content = trimmed
		}
		result[i] = Chunk{
			Content:     content,
			StartOffset: start,
			EndOffset:   chunk.EndOffset,
		}
	}
	return result
}
