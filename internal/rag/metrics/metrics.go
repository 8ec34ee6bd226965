// Package metrics implements retrieval quality metrics and the registry the
// sweep engine validates metric names against.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/haasonsaas/ragsweep/pkg/models"
)

// ChunkKey identifies a chunk by document and section for chunk-level
// comparison. An empty section matches every chunk of the document.
type ChunkKey struct {
	DocID   string `yaml:"doc_id" json:"doc_id"`
	Section string `yaml:"section,omitempty" json:"section,omitempty"`
}

// Sample is one query's retrieval output plus its ground truth.
type Sample struct {
	// Retrieved is the final ranked result list (after reranking).
	Retrieved []*models.SearchResult

	// ReferenceChunks are ground-truth passages for token-level metrics.
	ReferenceChunks []string

	// Expected are ground-truth chunk keys for chunk-level and rank metrics.
	Expected []ChunkKey
}

// Options tune metric computation.
type Options struct {
	// CaseSensitive disables case folding for token-level metrics.
	CaseSensitive bool
}

// Metric is a named scoring function returning a value in [0, 1].
type Metric struct {
	Name        string
	Description string
	Score       func(s Sample, opts Options) float64
}

// Metric names.
const (
	TokenLevelRecall    = "token_level_recall"
	TokenLevelPrecision = "token_level_precision"
	TokenLevelIoU       = "token_level_iou"
	ChunkLevelRecall    = "chunk_level_recall"
	ChunkLevelPrecision = "chunk_level_precision"
	MRR                 = "mrr"
	NDCG                = "ndcg"
)

var registry = map[string]Metric{
	TokenLevelRecall: {
		Name:        TokenLevelRecall,
		Description: "share of reference tokens present in the retrieved text",
		Score: func(s Sample, o Options) float64 {
			ref, got := tokenSets(s, o)
			return ratio(intersection(ref, got), len(ref), len(got))
		},
	},
	TokenLevelPrecision: {
		Name:        TokenLevelPrecision,
		Description: "share of retrieved tokens present in the reference text",
		Score: func(s Sample, o Options) float64 {
			ref, got := tokenSets(s, o)
			return ratio(intersection(ref, got), len(got), len(ref))
		},
	},
	TokenLevelIoU: {
		Name:        TokenLevelIoU,
		Description: "intersection over union of reference and retrieved tokens",
		Score: func(s Sample, o Options) float64 {
			ref, got := tokenSets(s, o)
			inter := intersection(ref, got)
			return ratio(inter, len(ref)+len(got)-inter, len(ref)*len(got))
		},
	},
	ChunkLevelRecall: {
		Name:        ChunkLevelRecall,
		Description: "share of expected chunks that were retrieved",
		Score: func(s Sample, _ Options) float64 {
			expected, retrieved := newExpectedSet(s.Expected), retrievedKeys(s.Retrieved)
			found := 0
			for _, exp := range expected.list {
				for _, r := range retrieved {
					if exp.matches(r) {
						found++
						break
					}
				}
			}
			return ratio(found, len(expected.list), len(retrieved))
		},
	},
	ChunkLevelPrecision: {
		Name:        ChunkLevelPrecision,
		Description: "share of distinct retrieved chunks that were expected",
		Score: func(s Sample, _ Options) float64 {
			expected, retrieved := newExpectedSet(s.Expected), retrievedKeys(s.Retrieved)
			relevant := 0
			for _, r := range retrieved {
				if expected.matches(r) {
					relevant++
				}
			}
			return ratio(relevant, len(retrieved), len(expected.list))
		},
	},
	MRR: {
		Name:        MRR,
		Description: "reciprocal rank of the first expected chunk",
		Score: func(s Sample, _ Options) float64 {
			expected := newExpectedSet(s.Expected)
			for idx, r := range s.Retrieved {
				if expected.matches(keyOf(r)) {
					return 1.0 / float64(idx+1)
				}
			}
			return 0
		},
	},
	NDCG: {
		Name:        NDCG,
		Description: "normalized discounted cumulative gain with binary relevance",
		Score: func(s Sample, _ Options) float64 {
			return ndcg(s.Retrieved, newExpectedSet(s.Expected))
		},
	},
}

// Lookup returns the metric registered under name.
func Lookup(name string) (Metric, bool) {
	m, ok := registry[name]
	return m, ok
}

// Known reports whether name is a registered metric.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names returns all registered metric names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultNames returns the token-level metrics used when none are requested.
// Each call returns a fresh slice.
func DefaultNames() []string {
	return []string{TokenLevelRecall, TokenLevelPrecision, TokenLevelIoU}
}

// Compute scores sample under each named metric.
func Compute(names []string, s Sample, opts Options) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	for _, name := range names {
		m, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown metric %q", name)
		}
		out[name] = m.Score(s, opts)
	}
	return out, nil
}

// Tokens splits text on whitespace, folding case unless opts.CaseSensitive.
func Tokens(text string, opts Options) []string {
	if !opts.CaseSensitive {
		text = cases.Fold().String(text)
	}
	return strings.Fields(text)
}

func tokenSets(s Sample, opts Options) (ref, got map[string]struct{}) {
	ref = make(map[string]struct{})
	for _, t := range Tokens(strings.Join(s.ReferenceChunks, " "), opts) {
		ref[t] = struct{}{}
	}
	got = make(map[string]struct{})
	for _, t := range Tokens(strings.Join(models.Texts(s.Retrieved), " "), opts) {
		got[t] = struct{}{}
	}
	return ref, got
}

func intersection(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}

// ratio returns num/den, or 0 when either side of the comparison is empty.
func ratio(num, den, other int) float64 {
	if den == 0 || other == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
