package embeddings

import (
	"context"

	"github.com/haasonsaas/ragsweep/internal/ratelimit"
)

// RateLimited wraps p so that every Embed and EmbedBatch call first takes a
// token from bucket. A batch counts as one request.
func RateLimited(p Provider, bucket *ratelimit.Bucket) Provider {
	if bucket == nil {
		return p
	}
	return &rateLimited{Provider: p, bucket: bucket}
}

type rateLimited struct {
	Provider
	bucket *ratelimit.Bucket
}

func (r *rateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Provider.Embed(ctx, text)
}

func (r *rateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Provider.EmbedBatch(ctx, texts)
}
