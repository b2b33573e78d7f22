package service

import (
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"crag-clusters/internal/cluster"
	"crag-clusters/internal/dataset"
	"crag-clusters/internal/votes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockVoteFetcher is a mock implementation of the VoteFetcher interface
type MockVoteFetcher struct {
	mock.Mock
}

func (m *MockVoteFetcher) Fetch(ctx context.Context, urls []string) ([]int, error) {
	args := m.Called(ctx, urls)
	return args.Get(0).([]int), args.Error(1)
}

const inputHeader = "Route,Location,URL,Avg Stars,Your Stars,Route Type,Rating,Pitches,Length,Area Latitude,Area Longitude\n"

// Two routes within tolerance of each other and one far away.
const threeRoutes = inputHeader +
	"R1,Joshua Tree National Park > Hidden Valley,https://example.com/route/1,3.5,-1,Boulder,V3,1,12,34.0,-116.0\n" +
	"R2,Joshua Tree National Park > Hidden Valley,https://example.com/route/2,2.0,-1,Boulder,V0,1,8,34.00000005,-116.0\n" +
	"R3,Joshua Tree National Park > Queen Mountain,https://example.com/route/3,3.9,-1,Sport,5.11a,3,200,35.0,-117.0\n"

var threeURLs = []string{"https://example.com/route/1", "https://example.com/route/2", "https://example.com/route/3"}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "joshua_tree.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return records
}

func logText(votes int) string {
	return strconv.FormatFloat(math.Log10(float64(votes)), 'f', -1, 64)
}

func defaultOptions() ProcessorOptions {
	return ProcessorOptions{
		Tolerance:        1e-7,
		VoteThreshold:    2,
		PopularThreshold: 10,
		Boulder:          true,
		ReverseOutput:    true,
	}
}

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name      string
		opts      func(*ProcessorOptions)
		votes     []int
		expected  [][]string
		kept      int
		locations int
	}{
		{
			name:      "threshold keeps both locations, newest first",
			votes:     []int{5, 1, 10},
			locations: 2,
			kept:      2,
			expected: [][]string{
				dataset.OutputHeader,
				{"R3 (5.11a 3.9 10)", "Joshua Tree National Park", "35.0", "-117.0", "https://example.com/route/3", logText(10)},
				{"R1 (V3 3.5 5) \n R2 (V0 2.0 1)", "Joshua Tree National Park", "34.0", "-116.0", "https://example.com/route/1", logText(5)},
			},
		},
		{
			name:      "high threshold leaves header only",
			opts:      func(o *ProcessorOptions) { o.VoteThreshold = 20 },
			votes:     []int{5, 1, 10},
			locations: 2,
			kept:      0,
			expected:  [][]string{dataset.OutputHeader},
		},
		{
			name:      "seed votes decide inclusion",
			votes:     []int{1, 50, 10},
			locations: 2,
			kept:      1,
			expected: [][]string{
				dataset.OutputHeader,
				{"R3 (5.11a 3.9 10)", "Joshua Tree National Park", "35.0", "-117.0", "https://example.com/route/3", logText(10)},
			},
		},
		{
			name:      "input order without reversal",
			opts:      func(o *ProcessorOptions) { o.ReverseOutput = false },
			votes:     []int{100, 1, 10},
			locations: 2,
			kept:      2,
			expected: [][]string{
				dataset.OutputHeader,
				{"R1 (V3 3.5 100) \n R2 (V0 2.0 1)", "Joshua Tree National Park", "34.0", "-116.0", "https://example.com/route/1", logText(100)},
				{"R3 (5.11a 3.9 10)", "Joshua Tree National Park", "35.0", "-117.0", "https://example.com/route/3", logText(10)},
			},
		},
		{
			name:      "roped climbs",
			opts:      func(o *ProcessorOptions) { o.Boulder = false; o.Tolerance = 1e-6 },
			votes:     []int{10, 2, 3},
			locations: 2,
			kept:      2,
			expected: [][]string{
				dataset.OutputHeader,
				{"R3 (5.11a 3.9 3) (Sport 3 200)", "Joshua Tree National Park", "35.0", "-117.0", "https://example.com/route/3", logText(3)},
				{"R1 (V3 3.5 10) (Boulder 1 12) \n R2 (V0 2.0 2) (Boulder 1 8)", "Joshua Tree National Park", "34.0", "-116.0", "https://example.com/route/1", logText(10)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := writeInput(t, threeRoutes)

			opts := defaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}

			fetcher := new(MockVoteFetcher)
			fetcher.On("Fetch", mock.Anything, threeURLs).Return(tt.votes, nil)

			summary, err := NewProcessor(fetcher, cluster.Pairwise{}, opts).Process(context.Background(), input)
			require.NoError(t, err)

			output := filepath.Join(filepath.Dir(input), "joshua_tree_processed.csv")
			assert.Equal(t, []string{output}, summary.Outputs)
			assert.Equal(t, 3, summary.Routes)
			assert.Equal(t, tt.locations, summary.Locations)
			assert.Equal(t, tt.kept, summary.Kept)
			assert.Equal(t, tt.expected, readOutput(t, output))

			fetcher.AssertExpectations(t)
		})
	}
}

func TestProcessor_SplitByPopularity(t *testing.T) {
	input := writeInput(t, threeRoutes)

	opts := defaultOptions()
	opts.SplitByPopularity = true

	fetcher := new(MockVoteFetcher)
	fetcher.On("Fetch", mock.Anything, threeURLs).Return([]int{5, 1, 10}, nil)

	summary, err := NewProcessor(fetcher, cluster.Indexed{}, opts).Process(context.Background(), input)
	require.NoError(t, err)

	dir := filepath.Dir(input)
	processed := filepath.Join(dir, "joshua_tree_processed.csv")
	popular := filepath.Join(dir, "joshua_tree_processed_popular.csv")
	assert.ElementsMatch(t, []string{processed, popular}, summary.Outputs)

	popularRows := readOutput(t, popular)
	require.Len(t, popularRows, 2)
	assert.Equal(t, "https://example.com/route/3", popularRows[1][4])

	processedRows := readOutput(t, processed)
	require.Len(t, processedRows, 2)
	assert.Equal(t, "https://example.com/route/1", processedRows[1][4])
}

func TestProcessor_SplitFailureLeavesNoOutput(t *testing.T) {
	input := writeInput(t, threeRoutes)
	dir := filepath.Dir(input)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "joshua_tree_processed_popular.csv"), 0o755))

	opts := defaultOptions()
	opts.SplitByPopularity = true

	fetcher := new(MockVoteFetcher)
	fetcher.On("Fetch", mock.Anything, threeURLs).Return([]int{5, 1, 10}, nil)

	_, err := NewProcessor(fetcher, cluster.Pairwise{}, opts).Process(context.Background(), input)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "joshua_tree_processed.csv"))
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only the input and the blocking directory may exist")
}

func TestProcessor_EmptyInputWritesHeaderOnly(t *testing.T) {
	input := writeInput(t, inputHeader)

	fetcher := new(MockVoteFetcher)
	fetcher.On("Fetch", mock.Anything, []string{}).Return([]int{}, nil)

	summary, err := NewProcessor(fetcher, cluster.Pairwise{}, defaultOptions()).Process(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Locations)

	data, err := os.ReadFile(summary.Outputs[0])
	require.NoError(t, err)
	assert.Equal(t, strings.Join(dataset.OutputHeader, ",")+"\n", string(data))
}

func TestProcessor_FetchFailureWritesNothing(t *testing.T) {
	input := writeInput(t, threeRoutes)

	fetchErr := &votes.FetchError{URL: threeURLs[1], Err: votes.ErrVotesNotFound}
	fetcher := new(MockVoteFetcher)
	fetcher.On("Fetch", mock.Anything, threeURLs).Return([]int(nil), fetchErr)

	_, err := NewProcessor(fetcher, cluster.Pairwise{}, defaultOptions()).Process(context.Background(), input)

	var target *votes.FetchError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, threeURLs[1], target.URL)

	entries, err := os.ReadDir(filepath.Dir(input))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the input file may exist")
}

func TestProcessor_FetcherReturnsWrongCount(t *testing.T) {
	input := writeInput(t, threeRoutes)

	fetcher := new(MockVoteFetcher)
	fetcher.On("Fetch", mock.Anything, threeURLs).Return([]int{1}, nil)

	_, err := NewProcessor(fetcher, cluster.Pairwise{}, defaultOptions()).Process(context.Background(), input)
	assert.Error(t, err)
}

func TestProcessor_SchemaAndDataErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  any
	}{
		{
			name:    "missing columns",
			content: "Route,URL\nR1,https://example.com/route/1\n",
			target:  new(*dataset.SchemaError),
		},
		{
			name:    "bad latitude",
			content: inputHeader + "R1,A > B,https://example.com/route/1,3,-1,Boulder,V1,1,10,north,-116.0\n",
			target:  new(*dataset.DataError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := writeInput(t, tt.content)
			fetcher := new(MockVoteFetcher)

			_, err := NewProcessor(fetcher, cluster.Pairwise{}, defaultOptions()).Process(context.Background(), input)
			require.ErrorAs(t, err, tt.target)

			fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
		})
	}
}

func TestProcessor_RunStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	bad := filepath.Join(dir, "bad.csv")
	never := filepath.Join(dir, "never.csv")
	require.NoError(t, os.WriteFile(good, []byte(threeRoutes), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("Route\n"), 0o644))
	require.NoError(t, os.WriteFile(never, []byte(threeRoutes), 0o644))

	fetcher := new(MockVoteFetcher)
	fetcher.On("Fetch", mock.Anything, threeURLs).Return([]int{5, 1, 10}, nil).Once()

	summaries, err := NewProcessor(fetcher, cluster.Pairwise{}, defaultOptions()).Run(context.Background(), []string{good, bad, never})
	require.Error(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, good, summaries[0].Input)

	_, statErr := os.Stat(filepath.Join(dir, "never_processed.csv"))
	assert.True(t, os.IsNotExist(statErr))
	fetcher.AssertExpectations(t)
}

func TestProcessor_Deterministic(t *testing.T) {
	input := writeInput(t, threeRoutes)
	output := filepath.Join(filepath.Dir(input), "joshua_tree_processed.csv")

	fetcher := new(MockVoteFetcher)
	fetcher.On("Fetch", mock.Anything, threeURLs).Return([]int{5, 1, 10}, nil)
	processor := NewProcessor(fetcher, cluster.Pairwise{}, defaultOptions())

	_, err := processor.Process(context.Background(), input)
	require.NoError(t, err)
	first, err := os.ReadFile(output)
	require.NoError(t, err)

	_, err = processor.Process(context.Background(), input)
	require.NoError(t, err)
	second, err := os.ReadFile(output)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
