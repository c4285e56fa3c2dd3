package throttle

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm for a single key
type TokenBucket struct {
	capacity   int
	tokens     float64
	refillRate float64 // Tokens added per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket
// capacity: Maximum number of requests allowed in a burst
// refillRate: Number of requests allowed per second
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request should be allowed and consumes a token if so
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Tokens returns the current number of available tokens
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens
}

// Reset refills the bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = float64(tb.capacity)
	tb.lastRefill = time.Now()
}

// BucketLimiter manages one token bucket per key and satisfies the Limiter
// interface, for callers that want burst-friendly smoothing instead of a hard
// fixed window.
type BucketLimiter struct {
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate float64
	ttl        time.Duration
	mu         sync.Mutex
}

// NewBucketLimiter creates a per-key token bucket limiter
// capacity: Maximum burst per key
// refillRate: Requests allowed per second per key
// ttl: Time to keep inactive buckets in memory (0 = forever)
func NewBucketLimiter(capacity int, refillRate float64, ttl time.Duration) *BucketLimiter {
	l := &BucketLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
	}
	if ttl > 0 {
		go l.cleanup()
	}
	return l
}

// Allow checks and consumes one token for the key
func (l *BucketLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	l.mu.Lock()
	bucket, exists := l.buckets[key]
	if !exists {
		bucket = NewTokenBucket(l.capacity, l.refillRate)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	allowed := bucket.Allow()
	return allowed, int(bucket.Tokens()), nil
}

// Reset refills the bucket for a specific key
func (l *BucketLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bucket, exists := l.buckets[key]; exists {
		bucket.Reset()
	}
}

// cleanup periodically removes buckets that have been idle past the TTL
func (l *BucketLimiter) cleanup() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for key, bucket := range l.buckets {
			bucket.mu.Lock()
			idle := now.Sub(bucket.lastRefill)
			bucket.mu.Unlock()
			if idle > l.ttl {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
