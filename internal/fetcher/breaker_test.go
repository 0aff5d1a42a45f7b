package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFetcher returns the queued results in order.
type scriptedFetcher struct {
	results []error
	calls   int
}

func (s *scriptedFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.results) && s.results[idx] != nil {
		return "", s.results[idx]
	}
	return "ok", nil
}

func fail(url string) error {
	return &FetchFailure{URL: url, Attempts: 3, Cause: errors.New("boom")}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	inner := &scriptedFetcher{results: []error{fail("a"), fail("b"), fail("c")}}
	b := NewBreaker(inner, 3, time.Minute)

	ctx := context.Background()
	for range 3 {
		_, err := b.FetchPage(ctx, "https://example.org/x")
		require.Error(t, err)
	}
	assert.Equal(t, 3, inner.calls)

	// Open: rejected without touching the inner fetcher.
	_, err := b.FetchPage(ctx, "https://example.org/y")
	require.Error(t, err)
	assert.True(t, IsFetchFailure(err))
	assert.ErrorIs(t, err, ErrArchiveUnavailable)
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	inner := &scriptedFetcher{results: []error{fail("a"), fail("b")}}
	b := NewBreaker(inner, 2, time.Minute)

	now := time.Now()
	b.now = func() time.Time { return now }

	ctx := context.Background()
	for range 2 {
		_, _ = b.FetchPage(ctx, "u")
	}
	_, err := b.FetchPage(ctx, "u")
	assert.ErrorIs(t, err, ErrArchiveUnavailable)

	// Cooldown elapses: one probe goes through and succeeds, closing
	// the breaker.
	now = now.Add(2 * time.Minute)
	text, err := b.FetchPage(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	text, err = b.FetchPage(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 4, inner.calls)
}

func TestBreakerFailedProbeRestartsCooldown(t *testing.T) {
	inner := &scriptedFetcher{results: []error{fail("a"), fail("b"), fail("probe")}}
	b := NewBreaker(inner, 2, time.Minute)

	now := time.Now()
	b.now = func() time.Time { return now }

	ctx := context.Background()
	for range 2 {
		_, _ = b.FetchPage(ctx, "u")
	}

	now = now.Add(2 * time.Minute)
	_, err := b.FetchPage(ctx, "u")
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)

	// Still inside the new cooldown window: rejected again.
	now = now.Add(30 * time.Second)
	_, err = b.FetchPage(ctx, "u")
	assert.ErrorIs(t, err, ErrArchiveUnavailable)
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerIgnoresNonFetchFailures(t *testing.T) {
	inner := &scriptedFetcher{results: []error{
		context.Canceled, context.Canceled, context.Canceled, context.Canceled,
	}}
	b := NewBreaker(inner, 2, time.Minute)

	ctx := context.Background()
	for range 4 {
		_, _ = b.FetchPage(ctx, "u")
	}
	// Cancellations never open the breaker.
	assert.Equal(t, 4, inner.calls)
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	inner := &scriptedFetcher{results: []error{fail("a"), nil, fail("b"), fail("c")}}
	b := NewBreaker(inner, 3, time.Minute)

	ctx := context.Background()
	for range 4 {
		_, _ = b.FetchPage(ctx, "u")
	}
	// One failure, a success, two failures: streak is 2, still closed.
	_, err := b.FetchPage(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 5, inner.calls)
}
