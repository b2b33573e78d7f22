package service

import (
	"context"
	"testing"

	"crag-clusters/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockVoteRepository is a mock implementation of the VoteRepository interface
type MockVoteRepository struct {
	mock.Mock
}

// FindVotes implements VoteRepository.
func (m *MockVoteRepository) FindVotes(ctx context.Context, url string) (*models.RouteVote, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(*models.RouteVote), args.Error(1)
}

// VotesByURLs implements VoteRepository.
func (m *MockVoteRepository) VotesByURLs(ctx context.Context, urls []string) (map[string]int, error) {
	args := m.Called(ctx, urls)
	return args.Get(0).(map[string]int), args.Error(1)
}

const routeURL = "https://www.mountainproject.com/route/105717310/midnight-lightning"

func TestVoteService_Lookup(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		callsRepo   bool
		mockVote    *models.RouteVote
		mockError   error
		expected    *models.RouteVote
		expectError bool
	}{
		{
			name:        "empty url",
			url:         "",
			expectError: true,
		},
		{
			name:        "relative url",
			url:         "/route/105717310",
			expectError: true,
		},
		{
			name:      "stored vote",
			url:       routeURL,
			callsRepo: true,
			mockVote:  &models.RouteVote{URL: routeURL, Votes: 412},
			expected:  &models.RouteVote{URL: routeURL, Votes: 412},
		},
		{
			name:      "unknown url",
			url:       routeURL,
			callsRepo: true,
			mockVote:  nil,
			expected:  nil,
		},
		{
			name:        "repository error",
			url:         routeURL,
			callsRepo:   true,
			mockError:   assert.AnError,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			mockRepo := new(MockVoteRepository)
			service := NewVoteService(mockRepo)

			if tt.callsRepo {
				mockRepo.On("FindVotes", mock.Anything, tt.url).Return(tt.mockVote, tt.mockError)
			}

			// Execute
			result, err := service.Lookup(context.Background(), tt.url)

			// Assert
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestVoteService_LookupBatch(t *testing.T) {
	other := "https://www.mountainproject.com/route/105721318/the-mandala"

	tests := []struct {
		name        string
		urls        []string
		callsRepo   bool
		found       map[string]int
		mockError   error
		expected    []models.RouteVote
		expectError bool
	}{
		{
			name:        "no urls",
			urls:        nil,
			expectError: true,
		},
		{
			name:        "invalid url in batch",
			urls:        []string{routeURL, "not a url"},
			expectError: true,
		},
		{
			name:      "keeps request order and drops unknown",
			urls:      []string{other, "https://example.com/unknown", routeURL},
			callsRepo: true,
			found:     map[string]int{routeURL: 412, other: 96},
			expected: []models.RouteVote{
				{URL: other, Votes: 96},
				{URL: routeURL, Votes: 412},
			},
		},
		{
			name:        "repository error",
			urls:        []string{routeURL},
			callsRepo:   true,
			found:       map[string]int(nil),
			mockError:   assert.AnError,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockVoteRepository)
			service := NewVoteService(mockRepo)

			if tt.callsRepo {
				mockRepo.On("VotesByURLs", mock.Anything, tt.urls).Return(tt.found, tt.mockError)
			}

			result, err := service.LookupBatch(context.Background(), tt.urls)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestVoteService_LookupBatchTooMany(t *testing.T) {
	urls := make([]string, maxBatchURLs+1)
	for i := range urls {
		urls[i] = routeURL
	}

	_, err := NewVoteService(new(MockVoteRepository)).LookupBatch(context.Background(), urls)
	assert.Error(t, err)
}
