package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Waiter is anything a client can block on before issuing a request.
type Waiter interface {
	WaitForToken(ctx context.Context) error
}

// Bucket implements a token bucket rate limiter.
// Refill is lazy: tokens are recomputed from elapsed time on every access,
// there is no background ticker.
type Bucket struct {
	tokens          float64
	maxTokens       float64
	refillPerSecond float64
	lastRefill      time.Time
	now             func() time.Time

	mu sync.Mutex
	// queue serializes WaitForToken callers so a sleeper that wakes up
	// cannot be overtaken by a later waiter computing the same wait.
	queue sync.Mutex
}

// Option configures a Bucket.
type Option func(*Bucket)

// WithClock replaces the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bucket) {
		b.now = now
	}
}

// NewBucket creates a bucket that holds maxTokens and refills the whole
// capacity once per minute (maxTokens/60 tokens per second).
func NewBucket(maxTokens int, opts ...Option) *Bucket {
	return NewBucketWithRate(maxTokens, float64(maxTokens)/60, opts...)
}

// NewBucketWithRate creates a bucket with an explicit refill rate in tokens
// per second. The bucket starts full.
func NewBucketWithRate(maxTokens int, refillPerSecond float64, opts ...Option) *Bucket {
	if maxTokens < 1 {
		maxTokens = 1
	}
	if refillPerSecond <= 0 {
		refillPerSecond = float64(maxTokens) / 60
	}

	b := &Bucket{
		tokens:          float64(maxTokens),
		maxTokens:       float64(maxTokens),
		refillPerSecond: refillPerSecond,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lastRefill = b.now()
	return b
}

// TryConsume takes one token if available without blocking.
func (b *Bucket) TryConsume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// WaitForToken blocks until a token is available and consumes it.
// It sleeps exactly long enough to accumulate the shortfall rather than
// polling. Only ctx cancellation makes it fail.
func (b *Bucket) WaitForToken(ctx context.Context) error {
	b.queue.Lock()
	defer b.queue.Unlock()

	for {
		wait, ok := b.reserve()
		if ok {
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

// reserve consumes a token if one is available, otherwise returns how long
// the caller must wait for the missing fraction.
func (b *Bucket) reserve() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}

	shortfall := 1 - b.tokens
	wait := time.Duration(math.Ceil(shortfall / b.refillPerSecond * float64(time.Second)))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// RemainingTokens returns floor(tokens) after a lazy refill.
func (b *Bucket) RemainingTokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return int(math.Floor(b.tokens))
}

// MaxTokens returns the bucket capacity.
func (b *Bucket) MaxTokens() int {
	return int(b.maxTokens)
}

// refill adds tokens based on elapsed time.
// Must be called with mutex held
func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	b.tokens = math.Min(b.maxTokens, b.tokens+elapsed*b.refillPerSecond)
	b.lastRefill = now
}
