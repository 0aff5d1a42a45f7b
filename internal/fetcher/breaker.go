package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrArchiveUnavailable is the cause carried by fetch failures rejected
// while the breaker is open.
var ErrArchiveUnavailable = eris.New("fetch: archive unavailable")

// Breaker wraps a Fetcher and stops issuing requests after too many
// consecutive fetch failures. A long run of exhausted retries usually
// means the archive is down or the crawler has been blocked; continuing
// to burn the retry budget on every queued URL only makes that worse.
// While open, fetches fail fast with a *FetchFailure so walkers and
// document workers wind down through their normal skip paths. After the
// cooldown a single probe request is let through; success closes the
// breaker, failure restarts the cooldown.
type Breaker struct {
	inner     Fetcher
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker wraps inner. threshold is the consecutive-failure count
// that opens the breaker; cooldown is how long it stays open before a
// probe is allowed.
func NewBreaker(inner Fetcher, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 2 * time.Minute
	}
	return &Breaker{
		inner:     inner,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// FetchPage delegates to the wrapped fetcher unless the breaker is open.
func (b *Breaker) FetchPage(ctx context.Context, url string) (string, error) {
	if !b.allow() {
		return "", &FetchFailure{URL: url, Attempts: 0, Cause: ErrArchiveUnavailable}
	}

	text, err := b.inner.FetchPage(ctx, url)
	b.record(url, err)
	return text, err
}

// allow reports whether a request may proceed. When open, it admits one
// probe per cooldown window by pushing openedAt forward.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if b.now().Sub(b.openedAt) < b.cooldown {
		return false
	}
	b.openedAt = b.now()
	return true
}

// record updates the failure streak. Only exhausted fetches count:
// cancellation and caller bugs say nothing about archive health.
func (b *Breaker) record(url string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.failures >= b.threshold {
			zap.L().Info("fetch: archive recovered, closing breaker")
		}
		b.failures = 0
		return
	}
	if !IsFetchFailure(err) {
		return
	}

	b.failures++
	if b.failures == b.threshold {
		b.openedAt = b.now()
		zap.L().Warn("fetch: too many consecutive failures, opening breaker",
			zap.String("url", url),
			zap.Int("failures", b.failures),
			zap.Duration("cooldown", b.cooldown),
		)
	}
}
