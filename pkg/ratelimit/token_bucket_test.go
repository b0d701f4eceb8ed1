package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_AllowUntilEmpty(t *testing.T) {
	tb := NewTokenBucket(60, 2)
	frozen := time.Now()
	tb.now = func() time.Time { return frozen }
	tb.lastRefillTime = frozen

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	// 60 qpm = 每秒 1 个令牌
	frozen = frozen.Add(time.Second)
	assert.True(t, tb.Allow())
}

func TestTokenBucket_DefaultCapacity(t *testing.T) {
	tb := NewTokenBucket(1, 0)
	assert.Equal(t, 1.0, tb.capacity)
	assert.Equal(t, 30.0, NewTokenBucket(60, 0).capacity)
}

func TestRetryWithBackoff_RetriesMarkedErrors(t *testing.T) {
	tb := NewTokenBucket(6000, 10).WithRetryPolicy(time.Millisecond, 3)
	calls := 0

	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return MarkRetryable(fmt.Errorf("tika 返回 503"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_StopsOnPermanentError(t *testing.T) {
	tb := NewTokenBucket(6000, 10).WithRetryPolicy(time.Millisecond, 3)
	permanent := errors.New("bad request")
	calls := 0

	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_GivesUpAfterMaxRetries(t *testing.T) {
	tb := NewTokenBucket(6000, 10).WithRetryPolicy(time.Millisecond, 2)
	calls := 0

	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWait_ContextCancelled(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", MarkRetryable(errors.New("x")))))
	assert.True(t, IsRetryable(errors.New("i/o timeout")))
}
