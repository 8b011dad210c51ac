package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowAndRefill(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tb := NewTokenBucket(3, 2).WithClock(func() time.Time { return now })

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
	assert.Equal(t, 0, tb.Remaining())

	now = now.Add(500 * time.Millisecond)
	assert.True(t, tb.Allow(), "half a second at 2/s refills one token")
	assert.False(t, tb.Allow())

	now = now.Add(time.Hour)
	assert.Equal(t, 3, tb.Remaining(), "refill is capped at capacity")
}

func TestTokenBucketWait(t *testing.T) {
	tb := NewTokenBucket(1, 1000)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tb.Wait(ctx))
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := NewTokenBucket(1, 0)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.Canceled)
}

func TestNewTokenBucketMinimumCapacity(t *testing.T) {
	tb := NewTokenBucket(0, 1)
	assert.Equal(t, 1, tb.Remaining())
}
