package fetcher

import (
	"errors"
	"fmt"
)

// FetchFailure is returned after all retries for a URL are exhausted.
// It is a skip signal, not a run-fatal condition.
type FetchFailure struct {
	URL      string
	Attempts int
	Cause    error
}

func (f *FetchFailure) Error() string {
	return fmt.Sprintf("fetch failed after %d attempts: %s: %v", f.Attempts, f.URL, f.Cause)
}

func (f *FetchFailure) Unwrap() error {
	return f.Cause
}

// IsFetchFailure reports whether err is (or wraps) a FetchFailure.
func IsFetchFailure(err error) bool {
	var ff *FetchFailure
	return errors.As(err, &ff)
}
