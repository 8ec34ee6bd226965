// Package ratelimit provides token buckets for throttling calls to remote
// embedding APIs.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config configures a token bucket.
type Config struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// BurstSize is the maximum number of requests allowed in a burst.
	// Default: twice the rate, at least 1.
	BurstSize int `yaml:"burst"`
}

// Enabled reports whether the config limits anything.
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// Bucket implements token bucket rate limiting.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// NewBucket creates a full token bucket. A non-positive rate is an error.
func NewBucket(config Config) (*Bucket, error) {
	if config.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests_per_second must be positive, got %v", config.RequestsPerSecond)
	}
	if config.BurstSize < 0 {
		return nil, fmt.Errorf("burst must not be negative, got %d", config.BurstSize)
	}
	if config.BurstSize == 0 {
		config.BurstSize = max(1, int(config.RequestsPerSecond*2))
	}
	return &Bucket{
		tokens:     float64(config.BurstSize),
		maxTokens:  float64(config.BurstSize),
		refillRate: config.RequestsPerSecond,
		lastRefill: time.Now(),
		now:        time.Now,
	}, nil
}

// Allow consumes a token if one is available.
func (b *Bucket) Allow() bool {
	return b.reserve() == 0
}

// Wait blocks until a token is available or ctx is done.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		wait := b.reserve()
		if wait == 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a token and returns 0, or returns how long until one is
// available without taking it.
func (b *Bucket) reserve() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	needed := 1 - b.tokens
	return max(time.Millisecond, time.Duration(needed/b.refillRate*float64(time.Second)))
}

// refill adds tokens based on time elapsed (must be called with lock held).
func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now

	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
}

// Tokens returns the current number of available tokens.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// Limiter hands out one bucket per key, so every caller of the same remote
// endpoint shares its budget.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

// NewLimiter creates an empty limiter.
func NewLimiter() *Limiter {
	return &Limiter{buckets: make(map[string]*Bucket)}
}

// Bucket returns the bucket for key, creating it from config on first use.
// Later configs for the same key are ignored.
func (l *Limiter) Bucket(key string, config Config) (*Bucket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		return b, nil
	}
	b, err := NewBucket(config)
	if err != nil {
		return nil, err
	}
	l.buckets[key] = b
	return b, nil
}
