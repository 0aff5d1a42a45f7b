package fetcher

import "context"

// Fetcher defines the interface for retrieving remote pages as text.
type Fetcher interface {
	// FetchPage fetches the URL and returns the response body decoded
	// to UTF-8. A *FetchFailure error means all retries were exhausted;
	// callers must treat it as skip-and-continue, not abort-the-run.
	FetchPage(ctx context.Context, url string) (string, error)
}
