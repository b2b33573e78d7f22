package votes

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrVotesNotFound means the page was fetched but carries no vote count.
	ErrVotesNotFound = errors.New("votes: could not find vote count")
	// ErrNotFound means the vote store has no entry for the URL.
	ErrNotFound = errors.New("votes: url not in vote store")
)

// FetchError is returned when the vote count for a URL could not be obtained.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("votes: fetch failed: %v", e.Err)
	}
	return fmt.Sprintf("votes: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is a non-200 response from a route page.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// retryable reports whether another attempt could plausibly succeed.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
