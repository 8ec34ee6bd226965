package metrics

import (
	"math"

	"github.com/haasonsaas/ragsweep/pkg/models"
)

type expectedSet struct {
	list []ChunkKey
}

// newExpectedSet deduplicates expected keys, dropping ones without a document.
func newExpectedSet(expected []ChunkKey) expectedSet {
	seen := make(map[ChunkKey]struct{}, len(expected))
	set := expectedSet{}
	for _, exp := range expected {
		if exp.DocID == "" {
			continue
		}
		if _, dup := seen[exp]; dup {
			continue
		}
		seen[exp] = struct{}{}
		set.list = append(set.list, exp)
	}
	return set
}

func (k ChunkKey) matches(r ChunkKey) bool {
	if k.DocID != r.DocID {
		return false
	}
	return k.Section == "" || k.Section == r.Section
}

func (s expectedSet) matches(r ChunkKey) bool {
	for _, exp := range s.list {
		if exp.matches(r) {
			return true
		}
	}
	return false
}

func keyOf(r *models.SearchResult) ChunkKey {
	if r == nil || r.Chunk == nil {
		return ChunkKey{}
	}
	return ChunkKey{DocID: r.Chunk.DocumentID, Section: r.Chunk.Section}
}

// retrievedKeys returns the distinct keys of results in rank order.
func retrievedKeys(results []*models.SearchResult) []ChunkKey {
	seen := make(map[ChunkKey]struct{}, len(results))
	out := make([]ChunkKey, 0, len(results))
	for _, r := range results {
		key := keyOf(r)
		if key.DocID == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func ndcg(results []*models.SearchResult, expected expectedSet) float64 {
	if len(results) == 0 || len(expected.list) == 0 {
		return 0
	}
	dcg := 0.0
	for idx, r := range results {
		if expected.matches(keyOf(r)) {
			dcg += 1.0 / math.Log2(float64(idx+2))
		}
	}
	idcg := idealDCG(len(expected.list), len(results))
	if idcg == 0 {
		return 0
	}
	return math.Min(dcg/idcg, 1)
}

func idealDCG(expectedCount, retrievedCount int) float64 {
	n := expectedCount
	if retrievedCount < n {
		n = retrievedCount
	}
	idcg := 0.0
	for i := 0; i < n; i++ {
		idcg += 1.0 / math.Log2(float64(i+2))
	}
	return idcg
}
