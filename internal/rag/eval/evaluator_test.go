package eval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/ragsweep/internal/observability"
	"github.com/haasonsaas/ragsweep/internal/rag/dataset"
	"github.com/haasonsaas/ragsweep/internal/rag/metrics"
	"github.com/haasonsaas/ragsweep/internal/retry"
	"github.com/haasonsaas/ragsweep/pkg/models"
)

type fakeRetriever struct {
	mu      sync.Mutex
	results map[string][]*models.SearchResult
	err     error
	fetched []int
}

func (f *fakeRetriever) Search(ctx context.Context, query string, k int) ([]*models.SearchResult, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, k)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := f.results[query]
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

type blockingRetriever struct{}

func (blockingRetriever) Search(ctx context.Context, _ string, _ int) ([]*models.SearchResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type reverseReranker struct{}

func (reverseReranker) Rerank(_ context.Context, _ string, results []*models.SearchResult, topK int) ([]*models.SearchResult, error) {
	out := make([]*models.SearchResult, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		out = append(out, results[i])
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (reverseReranker) Candidates(k int) int { return 3 * k }
func (reverseReranker) Name() string         { return "reverse" }

func hit(doc string, idx int, content string, score float32) *models.SearchResult {
	return &models.SearchResult{
		Chunk: &models.DocumentChunk{
			ID:         models.ChunkID(doc, idx),
			DocumentID: doc,
			Index:      idx,
			Content:    content,
		},
		Score: score,
	}
}

func testDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Name: "unit",
		Examples: []dataset.Example{
			{
				ID:              "q1",
				Query:           "what do cats eat",
				ReferenceChunks: []string{"cats eat fish"},
				Expected:        []metrics.ChunkKey{{DocID: "cats.md"}},
			},
			{
				ID:              "q2",
				Query:           "what do dogs eat",
				ReferenceChunks: []string{"dogs eat bones"},
				Expected:        []metrics.ChunkKey{{DocID: "dogs.md"}},
			},
		},
	}
}

func testRetriever() *fakeRetriever {
	return &fakeRetriever{results: map[string][]*models.SearchResult{
		"what do cats eat": {hit("cats.md", 0, "cats eat fish", 0.9), hit("misc.md", 0, "stocks rose", 0.1)},
		"what do dogs eat": {hit("misc.md", 1, "markets fell", 0.8), hit("dogs.md", 0, "dogs eat bones", 0.7)},
	}}
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNewEvaluator(t *testing.T) {
	if _, err := NewEvaluator(nil, nil, nil, Options{}); err == nil {
		t.Error("expected error for nil dataset")
	}
	if _, err := NewEvaluator(&dataset.Dataset{Name: "empty"}, nil, nil, Options{}); err == nil {
		t.Error("expected error for dataset without examples")
	}
	if _, err := NewEvaluator(testDataset(), nil, nil, Options{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEvaluateAveragesMetrics(t *testing.T) {
	ev, err := NewEvaluator(testDataset(), nil, nil, Options{})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	report, err := ev.Evaluate(context.Background(), Request{
		Index:   testRetriever(),
		K:       1,
		Metrics: []string{metrics.TokenLevelRecall, metrics.MRR},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// q1 retrieves its reference at rank 1, q2 retrieves an unrelated chunk.
	if got := report.Metrics["token_level_recall@1"]; !almostEqual(got, 0.5) {
		t.Errorf("token_level_recall@1 = %v, want 0.5", got)
	}
	if got := report.Metrics["mrr@1"]; !almostEqual(got, 0.5) {
		t.Errorf("mrr@1 = %v, want 0.5", got)
	}
	if len(report.Metrics) != 2 {
		t.Errorf("expected 2 metric keys, got %v", report.Metrics)
	}
	if report.Summary.Cases != 2 || len(report.Cases) != 2 {
		t.Errorf("expected 2 cases, got %+v", report.Summary)
	}
	if report.Cases[0].CaseID != "q1" || report.Cases[1].CaseID != "q2" {
		t.Errorf("cases out of dataset order: %v, %v", report.Cases[0].CaseID, report.Cases[1].CaseID)
	}
	if report.TraceReference != "" {
		t.Errorf("expected no trace reference without tracer, got %q", report.TraceReference)
	}
}

func TestEvaluateDefaultMetrics(t *testing.T) {
	ev, _ := NewEvaluator(testDataset(), nil, nil, Options{})

	report, err := ev.Evaluate(context.Background(), Request{Index: testRetriever(), K: 2})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, name := range metrics.DefaultNames() {
		key := fmt.Sprintf("%s@2", name)
		if _, ok := report.Metrics[key]; !ok {
			t.Errorf("missing default metric %s in %v", key, report.Metrics)
		}
	}
	// k=2 retrieves both references.
	if got := report.Metrics["token_level_recall@2"]; !almostEqual(got, 1) {
		t.Errorf("token_level_recall@2 = %v, want 1", got)
	}
}

func TestEvaluateTruncatesToK(t *testing.T) {
	retriever := &fakeRetriever{results: map[string][]*models.SearchResult{
		"what do cats eat": {hit("a", 0, "x", 1), hit("a", 1, "y", 0.9), hit("a", 2, "z", 0.8)},
	}}
	// A retriever that ignores k must still be cut to k.
	retriever.results["what do dogs eat"] = retriever.results["what do cats eat"]
	ev, _ := NewEvaluator(testDataset(), nil, nil, Options{})

	report, err := ev.Evaluate(context.Background(), Request{Index: ignoreK{retriever}, K: 2})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, c := range report.Cases {
		if len(c.Retrieved) != 2 {
			t.Errorf("case %s retrieved %d chunks, want 2", c.CaseID, len(c.Retrieved))
		}
	}
}

type ignoreK struct{ inner *fakeRetriever }

func (r ignoreK) Search(ctx context.Context, query string, _ int) ([]*models.SearchResult, error) {
	return r.inner.Search(ctx, query, 100)
}

func TestEvaluateWithReranker(t *testing.T) {
	retriever := testRetriever()
	ev, _ := NewEvaluator(testDataset(), nil, nil, Options{})

	report, err := ev.Evaluate(context.Background(), Request{
		Index:    retriever,
		K:        1,
		Reranker: reverseReranker{},
		Metrics:  []string{metrics.MRR},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	for _, k := range retriever.fetched {
		if k != 3 {
			t.Errorf("expected over-fetch of 3 candidates, got %d", k)
		}
	}
	// Reversing the two candidates swaps which example hits at rank 1.
	if got := report.Cases[0].Retrieved; len(got) != 1 || got[0] != "misc.md#0" {
		t.Errorf("q1 retrieved %v", got)
	}
	if got := report.Cases[1].Retrieved; len(got) != 1 || got[0] != "dogs.md#0" {
		t.Errorf("q2 retrieved %v", got)
	}
	if got := report.Metrics["mrr@1"]; !almostEqual(got, 0.5) {
		t.Errorf("mrr@1 = %v, want 0.5", got)
	}
}

func TestEvaluateValidationIsPermanent(t *testing.T) {
	ev, _ := NewEvaluator(testDataset(), nil, nil, Options{})

	tests := []struct {
		name string
		req  Request
	}{
		{"nil index", Request{K: 5}},
		{"zero k", Request{Index: testRetriever(), K: 0}},
		{"negative k", Request{Index: testRetriever(), K: -1}},
		{"unknown metric", Request{Index: testRetriever(), K: 5, Metrics: []string{"bleu"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ev.Evaluate(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if !retry.IsPermanent(err) {
				t.Errorf("expected permanent error, got %v", err)
			}
		})
	}
}

func TestEvaluateSearchErrorIsTransient(t *testing.T) {
	sentinel := errors.New("connection reset")
	ev, _ := NewEvaluator(testDataset(), nil, nil, Options{})

	_, err := ev.Evaluate(context.Background(), Request{Index: &fakeRetriever{err: sentinel}, K: 3})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped search error, got %v", err)
	}
	if retry.IsPermanent(err) {
		t.Error("search errors must stay retryable")
	}
	if !strings.Contains(err.Error(), "q1") {
		t.Errorf("expected example id in error, got %v", err)
	}
}

func TestEvaluateTimeout(t *testing.T) {
	ev, _ := NewEvaluator(testDataset(), nil, nil, Options{Timeout: 20 * time.Millisecond})

	_, err := ev.Evaluate(context.Background(), Request{Index: blockingRetriever{}, K: 3})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestEvaluateTraceReference(t *testing.T) {
	tracer, shutdown := observability.NewTracer(observability.TraceConfig{})
	defer func() { _ = shutdown(context.Background()) }()

	ev, _ := NewEvaluator(testDataset(), tracer, nil, Options{
		TraceURLTemplate: "http://jaeger.local/trace/{trace_id}",
	})

	first, err := ev.Evaluate(context.Background(), Request{Index: testRetriever(), K: 1})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	second, err := ev.Evaluate(context.Background(), Request{Index: testRetriever(), K: 1})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	const prefix = "http://jaeger.local/trace/"
	if !strings.HasPrefix(first.TraceReference, prefix) || len(first.TraceReference) != len(prefix)+32 {
		t.Errorf("unexpected trace reference %q", first.TraceReference)
	}
	if first.TraceReference == second.TraceReference {
		t.Error("expected one trace per evaluation")
	}
}
