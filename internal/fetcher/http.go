package fetcher

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps how much of a response body is read. Decision pages
// are a few hundred KB at most; anything larger is truncated.
const maxBodyBytes = 4 * 1024 * 1024

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int

	// Limiter is the shared request pacer. All fetches issued through
	// this fetcher wait on it, so the aggregate outbound rate stays
	// bounded even when walkers and document workers run concurrently.
	// The coordinator constructs one limiter per run and injects it.
	Limiter *rate.Limiter

	// RateLimitWait is the base backoff after a 429; the actual delay
	// grows proportionally with the attempt number. TransientWait is
	// the smaller increment used for timeouts, resets, and 5xx.
	RateLimitWait time.Duration
	TransientWait time.Duration
}

// HTTPFetcher implements Fetcher using net/http with bounded retries,
// rate-limit-aware backoff, and charset decoding.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "fos-cli/1.0"
	}
	if opts.RateLimitWait == 0 {
		opts.RateLimitWait = 60 * time.Second
	}
	if opts.TransientWait == 0 {
		opts.TransientWait = 5 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts: opts,
	}
}

// FetchPage fetches the URL and returns the decoded body text. It
// retries transient failures (network errors, 5xx) and rate limiting
// (429) up to MaxRetries, then returns a *FetchFailure. Non-retryable
// statuses (404 and other 4xx) fail immediately.
func (f *HTTPFetcher) FetchPage(ctx context.Context, rawURL string) (string, error) {
	var lastErr error

	for attempt := range f.opts.MaxRetries {
		if f.opts.Limiter != nil {
			if err := f.opts.Limiter.Wait(ctx); err != nil {
				return "", eris.Wrap(err, "fetch: rate limiter wait")
			}
		}

		text, delay, err := f.attempt(ctx, rawURL, attempt)
		if err == nil {
			return text, nil
		}
		if IsFetchFailure(err) {
			// Non-retryable status: fail immediately.
			return "", err
		}
		lastErr = err

		if attempt < f.opts.MaxRetries-1 {
			if !f.sleep(ctx, delay) {
				break
			}
		}
	}

	return "", &FetchFailure{
		URL:      rawURL,
		Attempts: f.opts.MaxRetries,
		Cause:    lastErr,
	}
}

// attempt performs a single request. On a retryable failure it returns
// the backoff delay to apply before the next attempt. A *FetchFailure
// return means the status is permanent and retrying is pointless.
func (f *HTTPFetcher) attempt(ctx context.Context, rawURL string, attempt int) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		zap.L().Warn("fetch: request failed, retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		return "", f.transientDelay(attempt), err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		text, readErr := decodeBody(resp)
		if readErr != nil {
			return "", f.transientDelay(attempt), readErr
		}
		return text, 0, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		delay := f.opts.RateLimitWait * time.Duration(attempt+1)
		zap.L().Warn("fetch: rate limited, backing off",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
		return "", delay, eris.Errorf("http 429 from %s", rawURL)

	case resp.StatusCode >= 500:
		_ = resp.Body.Close()
		zap.L().Warn("fetch: server error, retrying",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt+1),
		)
		return "", f.transientDelay(attempt), eris.Errorf("http %d from %s", resp.StatusCode, rawURL)

	default:
		_ = resp.Body.Close()
		return "", 0, &FetchFailure{
			URL:      rawURL,
			Attempts: attempt + 1,
			Cause:    eris.Errorf("http %d", resp.StatusCode),
		}
	}
}

// transientDelay grows linearly with the attempt number: a smaller
// increment than the 429 backoff.
func (f *HTTPFetcher) transientDelay(attempt int) time.Duration {
	return f.opts.TransientWait * time.Duration(attempt+1)
}

// sleep waits for d or until the context is cancelled. Returns false on
// cancellation so retry loops stop promptly.
func (f *HTTPFetcher) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// decodeBody reads the response body and converts it to UTF-8 using the
// Content-Type charset when one is declared.
func decodeBody(resp *http.Response) (string, error) {
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "fetch: read body")
	}

	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return string(raw), nil
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(raw), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		zap.L().Debug("fetch: unsupported charset, using raw bytes",
			zap.String("charset", charset),
		)
		return string(raw), nil
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw), nil
	}
	return string(decoded), nil
}
