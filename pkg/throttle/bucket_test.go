package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_BurstThenDeny(t *testing.T) {
	bucket := NewTokenBucket(3, 0.0001) // effectively no refill during the test

	for i := 0; i < 3; i++ {
		assert.True(t, bucket.Allow())
	}
	assert.False(t, bucket.Allow())
}

func TestTokenBucket_Refill(t *testing.T) {
	bucket := NewTokenBucket(1, 100) // refills a token every 10ms

	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, bucket.Allow())
}

func TestTokenBucket_Reset(t *testing.T) {
	bucket := NewTokenBucket(1, 0.0001)

	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())

	bucket.Reset()
	assert.True(t, bucket.Allow())
}

func TestBucketLimiter_PerKey(t *testing.T) {
	limiter := NewBucketLimiter(1, 0.0001, 0)
	ctx := context.Background()

	allowed, _, err := limiter.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = limiter.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Independent key, independent bucket
	allowed, _, err = limiter.Allow(ctx, "198.51.100.4")
	require.NoError(t, err)
	assert.True(t, allowed)
}
