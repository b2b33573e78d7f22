package service

import (
	"context"
	"fmt"

	"crag-clusters/internal/cluster"
	"crag-clusters/internal/dataset"
	"crag-clusters/internal/models"

	"github.com/rs/zerolog"
)

const (
	processedSuffix = "_processed"
	popularSuffix   = "_processed_popular"
)

// VoteFetcher interface for dependency injection
type VoteFetcher interface {
	Fetch(ctx context.Context, urls []string) ([]int, error)
}

// ProcessorOptions controls clustering, filtering and output layout.
type ProcessorOptions struct {
	Tolerance         float64
	VoteThreshold     int
	PopularThreshold  int
	SplitByPopularity bool
	Boulder           bool
	ReverseOutput     bool
}

// Processor turns route exports into per-location summaries.
type Processor struct {
	fetcher   VoteFetcher
	clusterer cluster.Clusterer
	opts      ProcessorOptions
}

// Summary describes one processed file.
type Summary struct {
	Input     string
	Routes    int
	Locations int
	Kept      int
	Outputs   []string
}

// NewProcessor creates a new processor
func NewProcessor(fetcher VoteFetcher, clusterer cluster.Clusterer, opts ProcessorOptions) *Processor {
	return &Processor{fetcher: fetcher, clusterer: clusterer, opts: opts}
}

// Run processes each file in order and stops at the first failure.
func (p *Processor) Run(ctx context.Context, paths []string) ([]Summary, error) {
	summaries := make([]Summary, 0, len(paths))
	for _, path := range paths {
		summary, err := p.Process(ctx, path)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Process reads one route export and writes its processed output next to it. Nothing is
// written unless every step succeeds.
func (p *Processor) Process(ctx context.Context, path string) (Summary, error) {
	logger := zerolog.Ctx(ctx).With().Str("input", path).Logger()
	summary := Summary{Input: path}

	routes, err := dataset.ReadRoutes(path)
	if err != nil {
		return summary, err
	}
	summary.Routes = len(routes)
	logger.Info().Int("routes", len(routes)).Msg("read routes")

	rows, err := p.Summarize(logger.WithContext(ctx), routes)
	if err != nil {
		return summary, fmt.Errorf("service: %s: %w", path, err)
	}
	summary.Locations = len(rows)

	rows = FilterByVotes(rows, p.opts.VoteThreshold)
	ApplyLogScale(rows)
	summary.Kept = len(rows)

	outputs := map[string][]models.LocationRow{}
	if p.opts.SplitByPopularity {
		popular, rest := SplitByVotes(rows, p.opts.PopularThreshold)
		outputs[dataset.OutputPath(path, popularSuffix)] = popular
		outputs[dataset.OutputPath(path, processedSuffix)] = rest
	} else {
		outputs[dataset.OutputPath(path, processedSuffix)] = rows
	}

	if p.opts.ReverseOutput {
		for out, data := range outputs {
			outputs[out] = Reversed(data)
		}
	}

	written, err := dataset.WriteAllLocations(outputs)
	if err != nil {
		return summary, err
	}
	summary.Outputs = written
	for _, out := range written {
		logger.Info().Str("output", out).Int("locations", len(outputs[out])).Msg("wrote locations")
	}

	logger.Info().
		Int("routes", summary.Routes).
		Int("locations", summary.Locations).
		Int("kept", summary.Kept).
		Int("vote_threshold", p.opts.VoteThreshold).
		Msg("processed file")

	return summary, nil
}

// Summarize fetches votes for routes, clusters them by location and aggregates each
// cluster. Rows are in cluster order and are not yet filtered.
func (p *Processor) Summarize(ctx context.Context, routes []models.Route) ([]models.LocationRow, error) {
	logger := zerolog.Ctx(ctx)

	urls := make([]string, len(routes))
	lats := make([]float64, len(routes))
	lons := make([]float64, len(routes))
	for i, r := range routes {
		urls[i] = r.URL
		lats[i] = r.Latitude
		lons[i] = r.Longitude
	}

	votes, err := p.fetcher.Fetch(ctx, urls)
	if err != nil {
		return nil, err
	}
	if len(votes) != len(routes) {
		return nil, fmt.Errorf("service: vote source returned %d counts for %d routes", len(votes), len(routes))
	}

	clusters, err := p.clusterer.Cluster(lats, lons, p.opts.Tolerance)
	if err != nil {
		return nil, err
	}

	if missing := cluster.Unassigned(len(routes), clusters); len(missing) > 0 {
		logger.Warn().Ints("rows", missing).Msg("rows left out of every location by non-transitive tolerance")
	}
	if dups := cluster.Duplicated(clusters); len(dups) > 0 {
		logger.Warn().Ints("rows", dups).Msg("rows listed under more than one location by non-transitive tolerance")
	}

	return Aggregate(routes, votes, clusters, p.opts.Boulder)
}
