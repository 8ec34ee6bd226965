package models

import "testing"

func TestChunkID(t *testing.T) {
	tests := []struct {
		doc   string
		index int
		want  string
	}{
		{"guide.md", 0, "guide.md#0"},
		{"docs/faq.txt", 12, "docs/faq.txt#12"},
		{"", 3, "#3"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := ChunkID(tt.doc, tt.index); got != tt.want {
				t.Errorf("ChunkID(%q, %d) = %q, want %q", tt.doc, tt.index, got, tt.want)
			}
		})
	}
}

func TestTexts(t *testing.T) {
	results := []*SearchResult{
		{Chunk: &DocumentChunk{Content: "first"}},
		nil,
		{Chunk: nil},
		{Chunk: &DocumentChunk{Content: "second"}},
	}
	got := Texts(results)
	if len(got) != 2 {
		t.Fatalf("expected 2 texts, got %d", len(got))
	}
	if got[0] != "first" || got[1] != "second" {
		t.Errorf("unexpected texts %v", got)
	}
}

func TestRankResults(t *testing.T) {
	hit := func(id string, score float32) *SearchResult {
		return &SearchResult{Chunk: &DocumentChunk{ID: id}, Score: score}
	}
	results := []*SearchResult{hit("b", 0.5), hit("c", 0.9), hit("a", 0.5), hit("d", 0.1)}

	ranked := RankResults(results, 3)
	want := []string{"c", "a", "b"}
	if len(ranked) != len(want) {
		t.Fatalf("len = %d, want %d", len(ranked), len(want))
	}
	for i, id := range want {
		if ranked[i].Chunk.ID != id {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].Chunk.ID, id)
		}
	}

	if all := RankResults([]*SearchResult{hit("x", 1)}, 0); len(all) != 1 {
		t.Errorf("k=0 should keep everything, got %d", len(all))
	}
}
