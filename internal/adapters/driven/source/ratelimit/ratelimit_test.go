package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Unlimited(t *testing.T) {
	l := New(Config{})

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}
}

func TestNew_LimitsBurst(t *testing.T) {
	l := New(Config{QueriesPerSecond: 1, Burst: 2})

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestWait_RespectsContext(t *testing.T) {
	l := New(Config{QueriesPerSecond: 0.001, Burst: 1})
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, l.Wait(ctx))
}

func TestBackoff_BlocksAllow(t *testing.T) {
	l := New(Config{})

	l.Backoff(time.Hour)

	assert.False(t, l.Allow())
}

func TestBackoff_WaitHonoursWindow(t *testing.T) {
	l := New(Config{})
	l.Backoff(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestBackoff_DoesNotShorten(t *testing.T) {
	l := New(Config{})
	l.Backoff(time.Hour)
	l.Backoff(time.Millisecond)

	assert.False(t, l.Allow())
}

func TestBackoff_DefaultDuration(t *testing.T) {
	l := New(Config{})
	l.Backoff(0)

	assert.WithinDuration(t, time.Now().Add(DefaultBackoff), l.retryAt, time.Second)
}

func TestNilLimiter(t *testing.T) {
	var l *Limiter

	assert.True(t, l.Allow())
	assert.NoError(t, l.Wait(context.Background()))
	l.Backoff(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
