package service

import (
	"context"
	"fmt"
	"net/url"

	"crag-clusters/internal/models"
)

// maxBatchURLs bounds a single batch lookup.
const maxBatchURLs = 1000

// VoteService contains the business logic for looking up precomputed vote counts
type VoteService struct {
	repo VoteRepository
}

// VoteRepository interface for dependency injection
type VoteRepository interface {
	FindVotes(ctx context.Context, url string) (*models.RouteVote, error)
	VotesByURLs(ctx context.Context, urls []string) (map[string]int, error)
}

// NewVoteService creates a new vote service
func NewVoteService(repo VoteRepository) *VoteService {
	return &VoteService{repo: repo}
}

// Lookup returns the stored vote count for a route page, or nil if none is stored
func (s *VoteService) Lookup(ctx context.Context, routeURL string) (*models.RouteVote, error) {
	if err := validateRouteURL(routeURL); err != nil {
		return nil, err
	}

	vote, err := s.repo.FindVotes(ctx, routeURL)
	if err != nil {
		return nil, fmt.Errorf("service: failed to find votes: %w", err)
	}

	return vote, nil
}

// LookupBatch returns the stored counts for every known URL, in request order. Unknown
// URLs are left out.
func (s *VoteService) LookupBatch(ctx context.Context, routeURLs []string) ([]models.RouteVote, error) {
	if len(routeURLs) == 0 {
		return nil, fmt.Errorf("service: at least one url is required")
	}
	if len(routeURLs) > maxBatchURLs {
		return nil, fmt.Errorf("service: at most %d urls per request, got %d", maxBatchURLs, len(routeURLs))
	}
	for _, u := range routeURLs {
		if err := validateRouteURL(u); err != nil {
			return nil, err
		}
	}

	found, err := s.repo.VotesByURLs(ctx, routeURLs)
	if err != nil {
		return nil, fmt.Errorf("service: failed to look up votes: %w", err)
	}

	votes := make([]models.RouteVote, 0, len(found))
	for _, u := range routeURLs {
		if count, ok := found[u]; ok {
			votes = append(votes, models.RouteVote{URL: u, Votes: count})
		}
	}
	return votes, nil
}

func validateRouteURL(routeURL string) error {
	if routeURL == "" {
		return fmt.Errorf("service: url cannot be empty")
	}
	parsed, err := url.Parse(routeURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("service: invalid url: %q", routeURL)
	}
	return nil
}
