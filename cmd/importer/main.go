package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"crag-clusters/internal/config"
	"crag-clusters/internal/dataset"
	"crag-clusters/internal/models"
	"crag-clusters/internal/repository"
	"crag-clusters/internal/votes"

	"github.com/dustin/go-humanize"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

func main() {
	file := flag.String("file", "", "Path to a URL,Votes CSV file to import")
	routes := flag.String("routes", "", "Path to a route export whose vote counts should be scraped and imported")
	configDir := flag.String("config", "configs", "Directory holding app.env")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if (*file == "") == (*routes == "") {
		log.Fatal().Msg("exactly one of --file or --routes is required")
	}

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	var records []models.RouteVote
	if *file != "" {
		log.Info().Str("file", *file).Msg("starting import")
		records, err = readVotesFile(*file)
	} else {
		log.Info().Str("routes", *routes).Msg("starting scrape")
		records, err = scrapeRoutes(ctx, cfg, *routes)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("cannot collect vote counts")
	}

	log.Info().Str("records", humanize.Comma(int64(len(records)))).Msg("collected vote counts")

	// Connect to DB
	conn, err := pgxpool.New(ctx, cfg.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer conn.Close()

	repo := repository.NewRepository(conn)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("cannot create table")
	}

	merged, err := repo.ImportVotes(ctx, records)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot import vote counts")
	}

	if err := verifyImport(ctx, repo, distinctURLs(records)); err != nil {
		log.Fatal().Err(err).Msg("import verification failed")
	}

	log.Info().Str("merged", humanize.Comma(merged)).Msg("successfully imported vote counts")
}

func readVotesFile(path string) ([]models.RouteVote, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	records, skipped, err := parseVotesCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("skipped rows with negative vote counts")
	}
	return records, nil
}

// parseVotesCSV reads URL,Votes rows. Rows with a negative count mark failed fetches and
// are skipped.
func parseVotesCSV(r io.Reader) ([]models.RouteVote, int, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	urlCol, votesCol := -1, -1
	for i, name := range header {
		switch strings.TrimPrefix(strings.TrimSpace(name), "\ufeff") {
		case "URL":
			urlCol = i
		case "Votes":
			votesCol = i
		}
	}
	if urlCol < 0 || votesCol < 0 {
		return nil, 0, fmt.Errorf("header must contain URL and Votes columns, got %v", header)
	}

	var records []models.RouteVote
	skipped := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read record: %w", err)
		}

		count, err := strconv.Atoi(strings.TrimSpace(record[votesCol]))
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: invalid vote count %q", line, record[votesCol])
		}
		if count < 0 {
			skipped++
			continue
		}

		url := strings.TrimSpace(record[urlCol])
		if url == "" {
			return nil, 0, fmt.Errorf("line %d: empty url", line)
		}
		records = append(records, models.RouteVote{URL: url, Votes: count})
	}

	return records, skipped, nil
}

func scrapeRoutes(ctx context.Context, cfg config.Config, path string) ([]models.RouteVote, error) {
	routes, err := dataset.ReadRoutes(path)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(routes))
	seen := make(map[string]bool, len(routes))
	for _, route := range routes {
		if !seen[route.URL] {
			seen[route.URL] = true
			urls = append(urls, route.URL)
		}
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

	return collectResults(ctx, scraper.FetchEach(ctx, urls))
}

// collectResults keeps successful counts and logs each failed URL.
func collectResults(ctx context.Context, results []votes.Result) ([]models.RouteVote, error) {
	records := make([]models.RouteVote, 0, len(results))
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			log.Warn().Err(res.Err).Str("url", res.URL).Msg("vote fetch failed")
			continue
		}
		records = append(records, models.RouteVote{URL: res.URL, Votes: res.Votes})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed > 0 {
		log.Warn().Int("failed", failed).Int("total", len(results)).Msg("some vote counts could not be fetched")
	}
	return records, nil
}

func distinctURLs(records []models.RouteVote) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.URL] = struct{}{}
	}
	return len(seen)
}

func verifyImport(ctx context.Context, repo *repository.Repository, expected int) error {
	count, err := repo.CountVotes(ctx)
	if err != nil {
		return err
	}
	if count < expected {
		return fmt.Errorf("record count mismatch: expected at least %d, got %d", expected, count)
	}
	return nil
}
