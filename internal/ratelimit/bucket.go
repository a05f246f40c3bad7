// Package ratelimit throttles outgoing API calls with a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements the token bucket rate limiting algorithm
type TokenBucket struct {
	capacity       int64         // Maximum tokens in bucket
	tokens         int64         // Current tokens available
	refillRate     int64         // Tokens added per refill interval
	refillInterval time.Duration // How often to refill
	lastRefill     time.Time     // Last refill timestamp
	mu             sync.Mutex
}

// NewTokenBucket creates a full bucket that allows refillRate calls per
// interval, with up to burst extra calls saved up.
func NewTokenBucket(refillRate, burst int64, interval time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:       refillRate + burst,
		tokens:         refillRate + burst,
		refillRate:     refillRate,
		refillInterval: interval,
		lastRefill:     time.Now(),
	}
}

// PerMinute returns a bucket allowing n calls per minute, or nil when n is
// not positive. A nil bucket never blocks.
func PerMinute(n int) *TokenBucket {
	if n <= 0 {
		return nil
	}
	return NewTokenBucket(int64(n), 0, time.Minute)
}

// Acquire attempts to acquire n tokens from the bucket, waiting for refills
// until ctx is done.
func (tb *TokenBucket) Acquire(ctx context.Context, n int64) error {
	if tb == nil {
		return nil
	}
	for {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tb.mu.Lock()
		tb.refill()

		if tb.tokens >= n {
			tb.tokens -= n
			tb.mu.Unlock()
			return nil
		}

		// Calculate wait time for next refill
		waitTime := tb.refillInterval - time.Since(tb.lastRefill)
		tb.mu.Unlock()

		if waitTime <= 0 {
			waitTime = 10 * time.Millisecond
		}

		// Wait for refill or context cancellation
		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Retry after wait
		}
	}
}

// refill adds tokens to the bucket based on elapsed time
// Must be called with tb.mu locked
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	if elapsed >= tb.refillInterval && tb.refillInterval > 0 {
		// Calculate how many full refill periods have elapsed
		periods := elapsed / tb.refillInterval
		tokensToAdd := int64(periods) * tb.refillRate
		tb.tokens = min(tb.capacity, tb.tokens+tokensToAdd)
		tb.lastRefill = now
	}
}

// Available returns current available tokens (thread-safe)
func (tb *TokenBucket) Available() int64 {
	if tb == nil {
		return 0
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}
