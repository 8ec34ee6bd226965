package sweep

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

type fakeIndex struct {
	key    string
	closed atomic.Bool
}

func (i *fakeIndex) Close() error {
	i.closed.Store(true)
	return nil
}

// fakeBuilder counts builds per group and can fail or block chosen chunkers.
type fakeBuilder struct {
	mu       sync.Mutex
	builds   map[string]int
	active   map[string]int
	overlap  bool
	indexes  []*fakeIndex
	failFor  map[string]error
	delay    time.Duration
	blockFor string
	invalid  map[string]error
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{
		builds:  make(map[string]int),
		active:  make(map[string]int),
		failFor: make(map[string]error),
		invalid: make(map[string]error),
	}
}

func (b *fakeBuilder) Build(ctx context.Context, chunker, embedder Component) (Index, error) {
	key := string(NewGroupKey(chunker, embedder))
	b.mu.Lock()
	b.builds[key]++
	b.active[key]++
	if b.active[key] > 1 {
		b.overlap = true
	}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.active[key]--
		b.mu.Unlock()
	}()

	if chunker.Type == b.blockFor {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := b.failFor[chunker.Type]; ok {
		return nil, err
	}
	idx := &fakeIndex{key: key}
	b.mu.Lock()
	b.indexes = append(b.indexes, idx)
	b.mu.Unlock()
	return idx, nil
}

func (b *fakeBuilder) totalBuilds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.builds {
		n += c
	}
	return n
}

func (b *fakeBuilder) buildsFor(chunker, embedder Component) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds[string(NewGroupKey(chunker, embedder))]
}

type validatingBuilder struct {
	*fakeBuilder
}

func (b validatingBuilder) ValidateGroup(chunker, _ Component) error {
	if err, ok := b.invalid[chunker.Type]; ok {
		return err
	}
	return nil
}

// fakeEvaluator returns deterministic metrics derived from the config and
// tracks how many evaluations run at once.
type fakeEvaluator struct {
	mu        sync.Mutex
	calls     int
	callsFor  map[int]int
	inFlight  int
	maxFlight int
	jitter    time.Duration
	rng       *rand.Rand

	// failures maps a reranker type to the number of transient failures
	// before success; a negative count fails forever.
	failures map[string]int
	fatal    map[string]error
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{
		callsFor: make(map[int]int),
		failures: make(map[string]int),
		fatal:    make(map[string]error),
	}
}

var errTransient = errors.New("remote service unavailable")

func (f *fakeEvaluator) Evaluate(ctx context.Context, req EvalRequest) (*Outcome, error) {
	f.mu.Lock()
	f.calls++
	f.callsFor[req.Config.Index]++
	attempt := f.callsFor[req.Config.Index]
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	var sleep time.Duration
	if f.jitter > 0 {
		if f.rng == nil {
			f.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		sleep = time.Duration(f.rng.Int63n(int64(f.jitter)))
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if sleep > 0 {
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	reranker := "none"
	if req.Reranker != nil {
		reranker = req.Reranker.Type
	}
	if err, ok := f.fatal[reranker]; ok {
		return nil, err
	}
	if n, ok := f.failures[reranker]; ok && (n < 0 || attempt <= n) {
		return nil, errTransient
	}

	idx := req.Index.(*fakeIndex)
	score := float64(req.K) / 100
	return &Outcome{
		Metrics: map[string]float64{
			fmt.Sprintf("token_level_recall@%d", req.K):    score,
			fmt.Sprintf("token_level_precision@%d", req.K): score / 2,
		},
		TraceReference: fmt.Sprintf("trace:%s:%d:%s", idx.key, req.K, reranker),
	}, nil
}

func (f *fakeEvaluator) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type validatingEvaluator struct {
	*fakeEvaluator
	reject string
}

func (v validatingEvaluator) ValidateConfig(cfg Config) error {
	if cfg.Reranker != nil && cfg.Reranker.Type == v.reject {
		return errors.New("malformed reranker params")
	}
	return nil
}
