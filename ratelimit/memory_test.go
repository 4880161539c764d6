package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/sitebid/authcore/ratelimit"
	"github.com/stretchr/testify/require"
)

const (
	maxAttempts = 5
	window      = 15 * time.Minute

	testAction   = "login"
	testIdentity = "203.0.113.7"
)

func TestMemoryLimiterBlocksAfterMaxAttempts(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewMemoryLimiter(maxAttempts, window,
		ratelimit.WithNowTime(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < maxAttempts; i++ {
		res, err := limiter.Check(ctx, testAction, testIdentity)
		require.NoError(t, err)
		require.True(t, res.Allowed, "attempt %d should be allowed", i+1)
		require.Equal(t, maxAttempts-i-1, res.Remaining)
	}

	res, err := limiter.Check(ctx, testAction, testIdentity)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, window, res.RetryAfter)

	// Still blocked partway through the window, with a shrinking wait.
	now = now.Add(5 * time.Minute)
	res, err = limiter.Check(ctx, testAction, testIdentity)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 10*time.Minute, res.RetryAfter)
}

func TestMemoryLimiterWindowRollsOver(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewMemoryLimiter(maxAttempts, window,
		ratelimit.WithNowTime(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < maxAttempts+3; i++ {
		_, err := limiter.Check(ctx, testAction, testIdentity)
		require.NoError(t, err)
	}

	now = now.Add(window)
	res, err := limiter.Check(ctx, testAction, testIdentity)
	require.NoError(t, err)
	require.True(t, res.Allowed, "an elapsed window resets the counter")
	require.Equal(t, maxAttempts-1, res.Remaining)
}

func TestMemoryLimiterReset(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(maxAttempts, window)
	ctx := context.Background()

	for i := 0; i < maxAttempts+1; i++ {
		_, err := limiter.Check(ctx, testAction, testIdentity)
		require.NoError(t, err)
	}

	require.NoError(t, limiter.Reset(ctx, testAction, testIdentity))

	res, err := limiter.Check(ctx, testAction, testIdentity)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(maxAttempts, window)
	ctx := context.Background()

	for i := 0; i < maxAttempts+1; i++ {
		_, err := limiter.Check(ctx, testAction, testIdentity)
		require.NoError(t, err)
	}

	// Same identity under a different action is a separate window.
	res, err := limiter.Check(ctx, "refresh", testIdentity)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	// Different identity under the same action too.
	res, err = limiter.Check(ctx, testAction, "198.51.100.9")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}
