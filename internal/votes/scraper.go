package votes

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bluele/gcache"
	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ScraperOptions configures a Scraper. Zero values fall back to the defaults below.
type ScraperOptions struct {
	Client           *http.Client
	UserAgent        string
	Concurrency      int
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	CacheSize        int
	ProgressInterval time.Duration
}

const (
	defaultConcurrency    = 8
	defaultMaxAttempts    = 10
	defaultInitialBackoff = 5 * time.Second
	defaultMaxBackoff     = 10 * time.Minute
	defaultCacheSize      = 10000
	defaultUserAgent      = "crag-clusters/1.0"
)

// Scraper reads vote counts off route detail pages.
type Scraper struct {
	client           *http.Client
	userAgent        string
	concurrency      int
	maxAttempts      int
	initialBackoff   time.Duration
	maxBackoff       time.Duration
	progressInterval time.Duration
	cache            gcache.Cache
}

// Result is the outcome for a single URL from FetchEach.
type Result struct {
	URL   string
	Votes int
	Err   error
}

// NewScraper creates a new scraper
func NewScraper(opts ScraperOptions) *Scraper {
	s := &Scraper{
		client:           opts.Client,
		userAgent:        opts.UserAgent,
		concurrency:      opts.Concurrency,
		maxAttempts:      opts.MaxAttempts,
		initialBackoff:   opts.InitialBackoff,
		maxBackoff:       opts.MaxBackoff,
		progressInterval: opts.ProgressInterval,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 30 * time.Second}
	}
	if s.userAgent == "" {
		s.userAgent = defaultUserAgent
	}
	if s.concurrency < 1 {
		s.concurrency = defaultConcurrency
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.initialBackoff <= 0 {
		s.initialBackoff = defaultInitialBackoff
	}
	if s.maxBackoff < s.initialBackoff {
		s.maxBackoff = defaultMaxBackoff
	}
	cacheSize := opts.CacheSize
	if cacheSize < 1 {
		cacheSize = defaultCacheSize
	}
	s.cache = gcache.New(cacheSize).LRU().Build()
	return s
}

// Fetch returns one vote count per URL, in input order. The first URL that cannot be
// fetched cancels the remaining requests and is returned as a *FetchError.
func (s *Scraper) Fetch(ctx context.Context, urls []string) ([]int, error) {
	results := make([]int, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var done atomic.Int64
	stop := s.reportProgress(ctx, &done, len(urls))

	for i, url := range urls {
		g.Go(func() error {
			defer done.Add(1)
			if err := ctx.Err(); err != nil {
				return &FetchError{URL: url, Err: err}
			}
			votes, err := s.fetchURL(ctx, url)
			if err != nil {
				return &FetchError{URL: url, Err: err}
			}
			results[i] = votes
			return nil
		})
	}

	err := g.Wait()
	stop(err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FetchEach fetches every URL and reports failures per URL instead of aborting.
func (s *Scraper) FetchEach(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	var done atomic.Int64
	stop := s.reportProgress(ctx, &done, len(urls))

	for i, url := range urls {
		g.Go(func() error {
			defer done.Add(1)
			votes, err := s.fetchURL(ctx, url)
			if err != nil {
				err = &FetchError{URL: url, Err: err}
			}
			results[i] = Result{URL: url, Votes: votes, Err: err}
			return nil
		})
	}

	g.Wait()
	stop(ctx.Err())
	return results
}

func (s *Scraper) fetchURL(ctx context.Context, url string) (int, error) {
	if cached, err := s.cache.Get(url); err == nil {
		return cached.(int), nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = s.maxBackoff
	b.MaxElapsedTime = 0

	logger := zerolog.Ctx(ctx)
	attempt := 0
	votes, err := backoff.RetryNotifyWithData(
		func() (int, error) {
			attempt++
			return s.fetchOnce(ctx, url)
		},
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxAttempts-1)), ctx),
		func(err error, wait time.Duration) {
			logger.Debug().Err(err).Str("url", url).Int("attempt", attempt).Dur("wait", wait).Msg("retrying vote fetch")
		},
	)
	if err != nil {
		return 0, err
	}

	s.cache.Set(url, votes)
	return votes, nil
}

func (s *Scraper) fetchOnce(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, backoff.Permanent(ctx.Err())
		}
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if !statusErr.retryable() {
			return 0, backoff.Permanent(statusErr)
		}
		return 0, statusErr
	}

	votes, err := ExtractVotes(resp.Body)
	if err != nil && !errors.Is(err, ErrVotesNotFound) {
		return 0, backoff.Permanent(err)
	}
	return votes, err
}

// reportProgress logs how many URLs are done every progressInterval until stopped.
// stop logs the final count at Info only when err is nil.
func (s *Scraper) reportProgress(ctx context.Context, done *atomic.Int64, total int) (stop func(err error)) {
	logger := zerolog.Ctx(ctx)
	if s.progressInterval <= 0 || total == 0 {
		return func(error) {}
	}

	quit := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(s.progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info().
					Str("processed", humanize.Comma(done.Load())).
					Str("total", humanize.Comma(int64(total))).
					Msg("fetching votes")
			}
		}
	}()

	return func(err error) {
		close(quit)
		<-finished
		if err != nil {
			logger.Debug().Err(err).
				Str("processed", humanize.Comma(done.Load())).
				Str("total", humanize.Comma(int64(total))).
				Msg("vote fetch stopped")
			return
		}
		logger.Info().
			Str("processed", humanize.Comma(done.Load())).
			Str("total", humanize.Comma(int64(total))).
			Msg("vote fetch finished")
	}
}
