package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridstats/sports-cli/internal/resilience"
)

// newTestLimiter returns a limiter with a controllable clock. Mutate the
// returned time pointer before calling Configure so window starts line up.
func newTestLimiter(t *testing.T) (*Limiter, *time.Time) {
	t.Helper()
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	l := New(nil)
	l.nowFunc = func() time.Time { return now }
	return l, &now
}

func TestAcquire_FailFastExhaustion(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t)
	l.Configure("thesportsdb", SourceConfig{RequestsPerHour: 3, Mode: ModeFailFast})

	ctx := context.Background()
	for range 3 {
		require.NoError(t, l.Acquire(ctx, "thesportsdb"))
	}

	err := l.Acquire(ctx, "thesportsdb")
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))

	var rle *resilience.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "thesportsdb", rle.Source)
	assert.Greater(t, rle.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rle.RetryAfter, time.Hour)
}

func TestAcquire_QueueModeBlocksUntilCancel(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t)
	l.Configure("balldontlie", SourceConfig{RequestsPerHour: 1, Mode: ModeQueue})

	require.NoError(t, l.Acquire(context.Background(), "balldontlie"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Acquire(ctx, "balldontlie")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "should have waited for the context")
}

func TestAcquire_WindowRolls(t *testing.T) {
	t.Parallel()

	l, now := newTestLimiter(t)
	l.Configure("thesportsdb", SourceConfig{RequestsPerHour: 2, Mode: ModeFailFast})

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "thesportsdb"))
	require.NoError(t, l.Acquire(ctx, "thesportsdb"))
	require.Error(t, l.Acquire(ctx, "thesportsdb"))

	*now = now.Add(61 * time.Minute)
	require.NoError(t, l.Acquire(ctx, "thesportsdb"), "a new window should admit requests")
}

func TestAcquire_BackwardClockJumpDoesNotReArm(t *testing.T) {
	t.Parallel()

	l, now := newTestLimiter(t)
	l.Configure("thesportsdb", SourceConfig{RequestsPerHour: 1, Mode: ModeFailFast})

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "thesportsdb"))
	require.Error(t, l.Acquire(ctx, "thesportsdb"))

	// A wall clock stepping backwards must not grant a fresh window.
	*now = now.Add(-45 * time.Minute)
	err := l.Acquire(ctx, "thesportsdb")
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))
}

func TestAcquire_BurstThenLimited(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t)
	l.Configure("sleeper", SourceConfig{RequestsPerHour: 1000, Burst: 5, Mode: ModeFailFast})

	ctx := context.Background()
	for i := range 5 {
		require.NoError(t, l.Acquire(ctx, "sleeper"), "burst request %d", i)
	}

	err := l.Acquire(ctx, "sleeper")
	require.Error(t, err, "burst tokens spent, next request must be refused")
	assert.True(t, resilience.IsRateLimit(err))

	// The refused request must not consume window budget.
	assert.Equal(t, 5, l.Status("sleeper").Used)
}

func TestAcquire_UnknownSourceUnlimited(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t)
	ctx := context.Background()
	for range 100 {
		require.NoError(t, l.Acquire(ctx, "statsapi"))
	}
}

func TestAcquire_ConcurrentNeverOversubscribes(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t)
	l.Configure("thesportsdb", SourceConfig{RequestsPerHour: 20, Mode: ModeFailFast})

	var granted atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background(), "thesportsdb"); err == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), granted.Load(), "grants must match the configured limit exactly")
}

func TestStatus(t *testing.T) {
	t.Parallel()

	l, now := newTestLimiter(t)
	l.Configure("thesportsdb", SourceConfig{RequestsPerHour: 10, Mode: ModeQueue})

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "thesportsdb"))
	require.NoError(t, l.Acquire(ctx, "thesportsdb"))

	*now = now.Add(15 * time.Minute)
	st := l.Status("thesportsdb")
	assert.Equal(t, "thesportsdb", st.Source)
	assert.Equal(t, ModeQueue, st.Mode)
	assert.Equal(t, 10, st.Limit)
	assert.Equal(t, 2, st.Used)
	assert.Equal(t, 8, st.Remaining)
	assert.Equal(t, 45*time.Minute, st.ResetIn)
}

func TestSources(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t)
	l.Configure("a", SourceConfig{})
	l.Configure("b", SourceConfig{})

	assert.ElementsMatch(t, []string{"a", "b"}, l.Sources())
}
