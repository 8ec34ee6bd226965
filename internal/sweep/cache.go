package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/ragsweep/internal/observability"
)

// entry is one arena slot. mu serializes builders of the same key; done
// marks a published index or a final failure.
type entry struct {
	mu    sync.Mutex
	done  bool
	index Index
	err   error
}

// Cache builds each preprocessing group at most once per run and hands the
// published index to every config of the group.
//
// A failed build is final: later Get calls for the key return the same
// error without building again. A cancelled build leaves the slot empty so
// a later Get with a live context builds from scratch.
type Cache struct {
	builder Builder
	entries cmap.ConcurrentMap[string, *entry]

	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewCache creates an empty cache over builder.
func NewCache(builder Builder) *Cache {
	return &Cache{
		builder: builder,
		entries: cmap.New[*entry](),
		logger:  observability.NopLogger(),
	}
}

func (c *Cache) slot(key GroupKey) *entry {
	return c.entries.Upsert(string(key), nil, func(exist bool, valueInMap, _ *entry) *entry {
		if exist {
			return valueInMap
		}
		return &entry{}
	})
}

// Get returns the index for g, building it if no build has completed yet.
func (c *Cache) Get(ctx context.Context, g Group) (Index, error) {
	e := c.slot(g.Key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done {
		return e.index, e.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if v, ok := c.builder.(GroupValidator); ok {
		if err := v.ValidateGroup(g.Chunker, g.Embedder); err != nil {
			e.done = true
			e.err = &ValidationError{Subject: fmt.Sprintf("group %s", g.Label()), Err: err}
			c.metrics.RecordBuild("invalid", 0)
			return nil, e.err
		}
	}

	index, err := c.build(ctx, g)
	if err != nil && ctx.Err() != nil {
		if index != nil {
			_ = index.Close()
		}
		return nil, ctx.Err()
	}
	if err != nil {
		e.done = true
		e.err = &PreprocessingError{Group: g.Key, Err: err}
		return nil, e.err
	}
	if index == nil {
		e.done = true
		e.err = &PreprocessingError{Group: g.Key, Err: errors.New("builder returned no index")}
		return nil, e.err
	}

	e.done = true
	e.index = index
	return index, nil
}

func (c *Cache) build(ctx context.Context, g Group) (Index, error) {
	ctx = observability.WithGroup(ctx, g.Label())
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.TraceBuild(ctx, g.Label())
		defer span.End()
		index, err := c.timedBuild(ctx, g)
		c.tracer.RecordError(span, err)
		return index, err
	}
	return c.timedBuild(ctx, g)
}

func (c *Cache) timedBuild(ctx context.Context, g Group) (Index, error) {
	c.logger.Info(ctx, "preprocessing started", "configs", len(g.Configs))
	start := time.Now()
	index, err := c.builder.Build(ctx, g.Chunker, g.Embedder)
	elapsed := time.Since(start)

	switch {
	case err != nil && ctx.Err() != nil:
		c.metrics.RecordBuild("canceled", elapsed.Seconds())
		c.logger.Warn(ctx, "preprocessing canceled", "duration_ms", elapsed.Milliseconds())
	case err != nil:
		c.metrics.RecordBuild("failure", elapsed.Seconds())
		c.logger.Error(ctx, "preprocessing failed", "error", err, "duration_ms", elapsed.Milliseconds())
	default:
		c.metrics.RecordBuild("success", elapsed.Seconds())
		c.logger.Info(ctx, "preprocessing finished", "duration_ms", elapsed.Milliseconds())
	}
	return index, err
}

// Close releases every published index. The cache is empty afterwards.
func (c *Cache) Close() error {
	var errs []error
	for key, e := range c.entries.Items() {
		e.mu.Lock()
		if e.index != nil {
			if err := e.index.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", key, err))
			}
			e.index = nil
		}
		e.mu.Unlock()
	}
	c.entries.Clear()
	return errors.Join(errs...)
}
