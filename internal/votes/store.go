package votes

import (
	"context"
)

// VoteRepository interface for dependency injection
type VoteRepository interface {
	VotesByURLs(ctx context.Context, urls []string) (map[string]int, error)
}

// Store serves vote counts that were scraped ahead of time and loaded into the vote store.
type Store struct {
	repo VoteRepository
}

// NewStore creates a new store-backed vote fetcher
func NewStore(repo VoteRepository) *Store {
	return &Store{repo: repo}
}

// Fetch looks every URL up in one query. A URL the store does not know is a *FetchError
// wrapping ErrNotFound.
func (s *Store) Fetch(ctx context.Context, urls []string) ([]int, error) {
	if len(urls) == 0 {
		return []int{}, nil
	}

	unique := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, url := range urls {
		if _, ok := seen[url]; !ok {
			seen[url] = struct{}{}
			unique = append(unique, url)
		}
	}

	found, err := s.repo.VotesByURLs(ctx, unique)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	results := make([]int, len(urls))
	for i, url := range urls {
		votes, ok := found[url]
		if !ok {
			return nil, &FetchError{URL: url, Err: ErrNotFound}
		}
		results[i] = votes
	}
	return results, nil
}
