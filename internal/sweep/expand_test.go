package sweep

import (
	"errors"
	"reflect"
	"testing"
)

func comp(t string, params ...any) Component {
	c := Component{Type: t}
	if len(params) > 0 {
		c.Params = map[string]any{}
		for i := 0; i+1 < len(params); i += 2 {
			c.Params[params[i].(string)] = params[i+1]
		}
	}
	return c
}

func TestComponentKey(t *testing.T) {
	a := Component{Type: "recursive", Params: map[string]any{"chunk_size": 500, "chunk_overlap": 50}}
	b := Component{Type: "recursive", Params: map[string]any{"chunk_overlap": 50, "chunk_size": 500}}
	c := Component{Type: "recursive", Params: map[string]any{"chunk_size": 600, "chunk_overlap": 50}}

	if a.Key() != b.Key() {
		t.Errorf("param order changed the key: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Error("different params produced the same key")
	}
	if got := (Component{Type: "hashing"}).Key(); got != "hashing" {
		t.Errorf("Key() = %q, want hashing", got)
	}
	if got := a.String(); got != "recursive(chunk_overlap=50, chunk_size=500)" {
		t.Errorf("String() = %q", got)
	}
}

func TestSpecWithDefaults(t *testing.T) {
	spec := Spec{}
	d := spec.WithDefaults()

	if len(d.Chunkers) != 1 || d.Chunkers[0].Type != DefaultChunker {
		t.Errorf("chunkers = %v", d.Chunkers)
	}
	if len(d.Embedders) != 1 || d.Embedders[0].Type != DefaultEmbedder {
		t.Errorf("embedders = %v", d.Embedders)
	}
	if !reflect.DeepEqual(d.KValues, []int{5}) {
		t.Errorf("k_values = %v", d.KValues)
	}
	if len(d.Rerankers) != 1 || d.Rerankers[0] != nil {
		t.Errorf("rerankers = %v", d.Rerankers)
	}
	if !reflect.DeepEqual(d.Metrics, DefaultMetrics()) {
		t.Errorf("metrics = %v", d.Metrics)
	}
	if d.MaxConcurrency != 4 {
		t.Errorf("max_concurrency = %d", d.MaxConcurrency)
	}

	// Defaults are constructed fresh and never shared.
	d.Chunkers[0].Type = "mutated"
	if again := spec.WithDefaults(); again.Chunkers[0].Type != DefaultChunker {
		t.Error("defaults were shared between calls")
	}
	if spec.Chunkers != nil {
		t.Error("WithDefaults modified its receiver")
	}
}

func TestExpandProductSize(t *testing.T) {
	lexical := &Component{Type: "lexical"}
	tests := []struct {
		name string
		spec Spec
		want int
	}{
		{"all defaults", Spec{}, 1},
		{"k only", Spec{KValues: []int{1, 5, 10}}, 3},
		{"full", Spec{
			Chunkers:  []Component{comp("recursive"), comp("sentence")},
			Embedders: []Component{comp("hashing"), comp("tfidf"), comp("openai")},
			KValues:   []int{5, 10},
			Rerankers: []*Component{nil, lexical},
		}, 24},
		{"duplicates kept", Spec{
			Chunkers:  []Component{comp("recursive"), comp("recursive")},
			KValues:   []int{5, 5},
			Rerankers: []*Component{nil, nil},
		}, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Expand(tt.spec, nil)
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if len(plan.Configs) != tt.want {
				t.Errorf("len(configs) = %d, want %d", len(plan.Configs), tt.want)
			}
			if tt.spec.Size() != tt.want {
				t.Errorf("Size() = %d, want %d", tt.spec.Size(), tt.want)
			}
			total := 0
			for _, g := range plan.Groups {
				total += len(g.Configs)
			}
			if total != tt.want {
				t.Errorf("grouped configs = %d, want %d", total, tt.want)
			}
		})
	}
}

func TestExpandEnumerationOrder(t *testing.T) {
	lexical := &Component{Type: "lexical"}
	spec := Spec{
		Chunkers:  []Component{comp("recursive"), comp("sentence")},
		Embedders: []Component{comp("hashing")},
		KValues:   []int{10, 5},
		Rerankers: []*Component{nil, lexical},
	}
	plan, err := Expand(spec, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	want := []string{
		"recursive | hashing | k=10 | none",
		"recursive | hashing | k=10 | lexical",
		"recursive | hashing | k=5 | none",
		"recursive | hashing | k=5 | lexical",
		"sentence | hashing | k=10 | none",
		"sentence | hashing | k=10 | lexical",
		"sentence | hashing | k=5 | none",
		"sentence | hashing | k=5 | lexical",
	}
	for i, cfg := range plan.Configs {
		if cfg.Index != i {
			t.Errorf("config %d has index %d", i, cfg.Index)
		}
		if cfg.String() != want[i] {
			t.Errorf("config %d = %q, want %q", i, cfg.String(), want[i])
		}
	}
	if len(plan.Groups) != 2 || plan.Groups[0].Chunker.Type != "recursive" || plan.Groups[1].Chunker.Type != "sentence" {
		t.Errorf("unexpected groups: %+v", plan.Groups)
	}
	if plan.Groups[1].Configs[0].Index != 4 {
		t.Errorf("second group starts at %d, want 4", plan.Groups[1].Configs[0].Index)
	}
}

func TestExpandDuplicateComponentsShareGroup(t *testing.T) {
	a := comp("recursive", "chunk_size", 500)
	b := comp("recursive", "chunk_size", 500)
	spec := Spec{
		Chunkers:  []Component{a, comp("fixed"), b},
		Embedders: []Component{comp("hashing")},
	}
	plan, err := Expand(spec, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(plan.Configs) != 3 {
		t.Fatalf("expected 3 configs, got %d", len(plan.Configs))
	}
	if len(plan.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(plan.Groups))
	}
	first := plan.Groups[0]
	if len(first.Configs) != 2 || first.Configs[0].Index != 0 || first.Configs[1].Index != 1 {
		t.Errorf("duplicate chunker configs not grouped first: %+v", first.Configs)
	}
	if plan.Groups[1].Configs[0].Index != 2 {
		t.Errorf("fixed group index = %d, want 2", plan.Groups[1].Configs[0].Index)
	}
}

func TestExpandRerankerNone(t *testing.T) {
	plan, err := Expand(Spec{Rerankers: []*Component{{Type: "none"}, {Type: "lexical"}}}, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if plan.Configs[0].Reranker != nil {
		t.Errorf("expected none to mean no reranker, got %v", plan.Configs[0].Reranker)
	}
	if plan.Configs[1].Reranker == nil || plan.Configs[1].Reranker.Type != "lexical" {
		t.Errorf("unexpected reranker %v", plan.Configs[1].Reranker)
	}
}

func TestExpandInvalidSpec(t *testing.T) {
	known := func(name string) bool { return name == "token_level_recall" }
	tests := []struct {
		name  string
		spec  Spec
		field string
	}{
		{"zero k", Spec{KValues: []int{5, 0}}, "k_values"},
		{"negative k", Spec{KValues: []int{-1}}, "k_values"},
		{"negative concurrency", Spec{MaxConcurrency: -2}, "max_concurrency"},
		{"empty chunker type", Spec{Chunkers: []Component{{}}}, "chunkers[0]"},
		{"empty embedder type", Spec{Embedders: []Component{comp("hashing"), {Type: " "}}}, "embedders[1]"},
		{"unencodable params", Spec{Chunkers: []Component{comp("fixed", "fn", func() {})}}, "chunkers[0]"},
		{"unknown metric", Spec{Metrics: []string{"bleu"}}, "metrics"},
		{"empty metric", Spec{Metrics: []string{""}}, "metrics"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Expand(tt.spec, known)
			if !errors.Is(err, ErrInvalidSweepSpec) {
				t.Fatalf("expected ErrInvalidSweepSpec, got %v", err)
			}
			var specErr *InvalidSpecError
			if !errors.As(err, &specErr) {
				t.Fatalf("expected *InvalidSpecError, got %T", err)
			}
			if specErr.Field != tt.field {
				t.Errorf("field = %q, want %q", specErr.Field, tt.field)
			}
		})
	}
}

func TestExpandWithoutRegistryAcceptsAnyMetric(t *testing.T) {
	if _, err := Expand(Spec{Metrics: []string{"custom_metric"}}, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGroupKeyEquality(t *testing.T) {
	a := Config{Chunker: comp("recursive", "chunk_size", 500), Embedder: comp("hashing"), K: 5}
	b := Config{Chunker: comp("recursive", "chunk_size", 500), Embedder: comp("hashing"), K: 10, Reranker: &Component{Type: "lexical"}}
	c := Config{Chunker: comp("recursive", "chunk_size", 400), Embedder: comp("hashing"), K: 5}

	if a.GroupKey() != b.GroupKey() {
		t.Error("configs differing only in k and reranker must share a group")
	}
	if a.GroupKey() == c.GroupKey() {
		t.Error("configs with different chunker params must not share a group")
	}
}
