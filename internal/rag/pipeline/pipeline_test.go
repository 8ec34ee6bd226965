package pipeline

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/haasonsaas/ragsweep/internal/observability"
	"github.com/haasonsaas/ragsweep/internal/rag/dataset"
	"github.com/haasonsaas/ragsweep/internal/rag/eval"
	"github.com/haasonsaas/ragsweep/internal/rag/metrics"
	"github.com/haasonsaas/ragsweep/internal/rag/store"
	"github.com/haasonsaas/ragsweep/internal/retry"
	"github.com/haasonsaas/ragsweep/internal/sweep"
	"github.com/haasonsaas/ragsweep/pkg/models"
)

func testDocuments() []*models.Document {
	return []*models.Document{
		{ID: "pets.md", Content: "# Pets\n\nCats sleep most of the day. Dogs enjoy long walks in the park."},
		{ID: "finance.md", Content: "# Finance\n\nStock markets fell sharply after the interest rate decision."},
		{ID: "garden.md", Content: "# Garden\n\nTomatoes need full sun and regular watering in summer."},
	}
}

func testDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Name: "smoke",
		Examples: []dataset.Example{
			{
				ID:              "q1",
				Query:           "what happened to stock markets after the rate decision",
				ReferenceChunks: []string{"Stock markets fell sharply after the interest rate decision."},
				Expected:        []metrics.ChunkKey{{DocID: "finance.md", Section: "Finance"}},
			},
			{
				ID:              "q2",
				Query:           "how much do cats sleep",
				ReferenceChunks: []string{"Cats sleep most of the day."},
				Expected:        []metrics.ChunkKey{{DocID: "pets.md", Section: "Pets"}},
			},
		},
	}
}

func newEngine(t *testing.T, opts ...sweep.Option) (*sweep.Engine, *Evaluator) {
	t.Helper()
	builder, err := NewBuilder(testDocuments(), BuilderOptions{Store: store.Config{Backend: store.BackendMemory}})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	single, err := eval.NewEvaluator(testDataset(), nil, nil, eval.Options{})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	evaluator := NewEvaluator(single)
	opts = append(opts, sweep.WithMetricRegistry(metrics.Known))
	return sweep.NewEngine(builder, evaluator, opts...), evaluator
}

func TestDefaultMetricsAgree(t *testing.T) {
	if !reflect.DeepEqual(sweep.DefaultMetrics(), metrics.DefaultNames()) {
		t.Errorf("sweep defaults %v differ from metric defaults %v", sweep.DefaultMetrics(), metrics.DefaultNames())
	}
	for _, name := range sweep.DefaultMetrics() {
		if !metrics.Known(name) {
			t.Errorf("default metric %q is not registered", name)
		}
	}
}

func TestSweepEndToEnd(t *testing.T) {
	engine, evaluator := newEngine(t)

	var mu sync.Mutex
	reports := 0
	evaluator.OnReport = func(_ sweep.Config, r *eval.Report) {
		mu.Lock()
		reports++
		mu.Unlock()
	}

	spec := sweep.Spec{
		Chunkers: []sweep.Component{
			{Type: "sentence", Params: map[string]any{"sentences_per_chunk": 1, "overlap_sentences": 0}},
			{Type: "fixed", Params: map[string]any{"chunk_size": 64, "chunk_overlap": 8}},
		},
		Embedders: []sweep.Component{{Type: "hashing"}, {Type: "tfidf"}},
		KValues:   []int{1, 3},
		Rerankers: []*sweep.Component{nil, {Type: "lexical"}},
		Metrics:   []string{"token_level_recall", "chunk_level_recall", "mrr"},
	}
	result, err := engine.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result) != 16 {
		t.Fatalf("len(result) = %d, want 16", len(result))
	}
	for _, r := range result {
		if !r.Succeeded() {
			t.Errorf("%s failed: %+v", r.Config, r.Failure)
			continue
		}
		for _, name := range spec.Metrics {
			v, ok := r.Metrics[name]
			if !ok {
				t.Errorf("%s: missing metric %s in %v", r.Config, name, r.Metrics)
				continue
			}
			if v < 0 || v > 1 {
				t.Errorf("%s: %s = %v out of range", r.Config, name, v)
			}
		}
	}
	if reports != 16 {
		t.Errorf("reports = %d, want 16", reports)
	}
}

func TestSweepRejectsUnknownMetric(t *testing.T) {
	engine, _ := newEngine(t)
	_, err := engine.Run(context.Background(), sweep.Spec{Metrics: []string{"bleu"}})
	if !errors.Is(err, sweep.ErrInvalidSweepSpec) {
		t.Fatalf("expected ErrInvalidSweepSpec, got %v", err)
	}
}

func TestSweepValidationFailures(t *testing.T) {
	engine, _ := newEngine(t, sweep.WithRetry(retry.Config{MaxAttempts: 3}))

	spec := sweep.Spec{
		Chunkers: []sweep.Component{
			{Type: "recursive", Params: map[string]any{"chunk_size": 100, "chunk_overlap": 20}},
			{Type: "recursive", Params: map[string]any{"chunk_size": 100, "bogus": true}},
		},
		Embedders: []sweep.Component{{Type: "hashing"}},
		Rerankers: []*sweep.Component{nil, {Type: "lexical", Params: map[string]any{"algorithm": "soundex"}}},
	}
	result, err := engine.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result) != 4 {
		t.Fatalf("len(result) = %d, want 4", len(result))
	}

	if !result[0].Succeeded() {
		t.Errorf("valid config failed: %+v", result[0].Failure)
	}
	for _, i := range []int{1, 2, 3} {
		f := result[i].Failure
		if f == nil || f.Stage != sweep.StageValidation || f.Retriable {
			t.Errorf("config %d (%s): failure = %+v", i, result[i].Config, f)
		}
	}
}

func TestBuilderValidateGroup(t *testing.T) {
	builder, err := NewBuilder(testDocuments(), BuilderOptions{})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	tests := []struct {
		name     string
		chunker  sweep.Component
		embedder sweep.Component
		wantErr  bool
	}{
		{"defaults", sweep.Component{Type: "recursive"}, sweep.Component{Type: "hashing"}, false},
		{"unknown chunker", sweep.Component{Type: "semantic"}, sweep.Component{Type: "hashing"}, true},
		{"bad overlap", sweep.Component{Type: "fixed", Params: map[string]any{"chunk_size": 10, "chunk_overlap": 10}}, sweep.Component{Type: "hashing"}, true},
		{"unknown embedder", sweep.Component{Type: "recursive"}, sweep.Component{Type: "word2vec"}, true},
		{"case-insensitive embedder", sweep.Component{Type: "recursive"}, sweep.Component{Type: "TFIDF"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := builder.ValidateGroup(tt.chunker, tt.embedder)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGroup() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewBuilderErrors(t *testing.T) {
	if _, err := NewBuilder(nil, BuilderOptions{}); err == nil {
		t.Error("expected error for empty knowledge base")
	}
	if _, err := NewBuilder(testDocuments(), BuilderOptions{Store: store.Config{Backend: "redis"}}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

type closeOnly struct{}

func (closeOnly) Close() error { return nil }

func TestEvaluatorRejectsNonSearchableIndex(t *testing.T) {
	single, err := eval.NewEvaluator(testDataset(), nil, observability.NopLogger(), eval.Options{})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	_, err = NewEvaluator(single).Evaluate(context.Background(), sweep.EvalRequest{Index: closeOnly{}, K: 1})
	if !retry.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}
