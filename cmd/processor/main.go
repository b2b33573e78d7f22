package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"crag-clusters/internal/cluster"
	"crag-clusters/internal/config"
	"crag-clusters/internal/repository"
	"crag-clusters/internal/service"
	"crag-clusters/internal/votes"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

func main() {
	configDir := flag.String("config", "./configs", "Directory holding app.env")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [--config dir] <file.csv> [more.csv ...]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()
	log.Logger = logger

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatal().Msg("at least one input file is required")
	}

	config, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", config.LogLevel).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logger.WithContext(ctx)

	fetcher, closeFetcher, err := newFetcher(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot set up vote source")
	}
	defer closeFetcher()

	processor := service.NewProcessor(fetcher, newClusterer(config), service.ProcessorOptions{
		Tolerance:         config.Tolerance,
		VoteThreshold:     config.VoteThreshold,
		PopularThreshold:  config.PopularThreshold,
		SplitByPopularity: config.SplitByPopularity,
		Boulder:           config.Boulder,
		ReverseOutput:     config.ReverseOutput,
	})

	paths := make([]string, flag.NArg())
	for i, arg := range flag.Args() {
		paths[i] = filepath.Join(config.DataDir, arg)
	}

	summaries, err := processor.Run(ctx, paths)
	if err != nil {
		closeFetcher()
		log.Fatal().Err(err).Msg("processing failed")
	}

	for _, s := range summaries {
		log.Info().
			Str("input", s.Input).
			Int("routes", s.Routes).
			Int("locations", s.Locations).
			Int("kept", s.Kept).
			Strs("outputs", s.Outputs).
			Msg("done")
	}
}

func newClusterer(cfg config.Config) cluster.Clusterer {
	if cfg.ClusterIndex == config.ClusterIndexRTree {
		return cluster.Indexed{}
	}
	return cluster.Pairwise{}
}

// newFetcher returns the configured vote source and a func releasing its resources.
func newFetcher(ctx context.Context, cfg config.Config) (service.VoteFetcher, func(), error) {
	if cfg.VoteSource == config.VoteSourceStore {
		conn, err := pgxpool.New(ctx, cfg.DBSource)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot connect to db: %w", err)
		}
		return votes.NewStore(repository.NewRepository(conn)), conn.Close, nil
	}

	scraper := votes.NewScraper(votes.ScraperOptions{
		Client:           &http.Client{Timeout: cfg.FetchTimeout},
		UserAgent:        cfg.UserAgent,
		Concurrency:      cfg.FetchConcurrency,
		MaxAttempts:      cfg.FetchMaxAttempts,
		InitialBackoff:   cfg.FetchInitialBackoff,
		CacheSize:        cfg.FetchCacheSize,
		ProgressInterval: cfg.ProgressInterval,
	})
	return scraper, func() {}, nil
}
