package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

// Options controls a scrape run.
type Options struct {
	Query          string
	Pages          int
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	RetryDelay     time.Duration
}

// Scraper walks search result pages of several marketplaces and collects raw
// listing fragments. Sources run in parallel; pages of one source run in order.
type Scraper struct {
	fetcher      PageFetcher
	marketplaces map[models.Source]Marketplace
	opts         Options
	logger       *utils.Logger
	pool         *utils.WorkerPool
	seen         *utils.KeySet
	retry        *utils.RetryConfig

	mu       sync.Mutex
	listings []*models.RawListing
}

// New creates a Scraper for the given marketplaces.
func New(fetcher PageFetcher, marketplaces []Marketplace, opts Options, logger *utils.Logger) *Scraper {
	if opts.Pages < 1 {
		opts.Pages = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	byName := make(map[models.Source]Marketplace, len(marketplaces))
	for _, m := range marketplaces {
		byName[m.Source()] = m
	}
	return &Scraper{
		fetcher:      fetcher,
		marketplaces: byName,
		opts:         opts,
		logger:       logger,
		pool:         utils.NewWorkerPool(opts.MaxConcurrency, opts.RateLimitMs),
		seen:         utils.NewKeySet(),
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   opts.RetryDelay,
			Logger:      logger,
		},
	}
}

// Scrape collects fragments from every configured marketplace. A failing
// source is logged and skipped; the error is returned only when no source
// produced anything.
func (s *Scraper) Scrape(ctx context.Context) ([]*models.RawListing, error) {
	s.logger.Info("[scraper] Starting scrape: query=%q pages=%d sources=%d",
		s.opts.Query, s.opts.Pages, len(s.marketplaces))

	var (
		errMu   sync.Mutex
		lastErr error
		failed  int
	)
	for _, m := range s.marketplaces {
		s.pool.Submit(func() {
			if err := s.scrapeSource(ctx, m); err != nil {
				s.logger.Error("[scraper] %s: %v", m.Source(), err)
				errMu.Lock()
				lastErr = err
				failed++
				errMu.Unlock()
			}
		})
	}
	s.pool.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listings) == 0 && failed > 0 {
		return nil, fmt.Errorf("scraper: all %d sources failed: %w", failed, lastErr)
	}
	s.logger.Info("[scraper] Collected %d listing fragments", len(s.listings))
	return s.listings, nil
}

func (s *Scraper) scrapeSource(ctx context.Context, m Marketplace) error {
	source := m.Source()
	for page := 1; page <= s.opts.Pages; page++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		url := m.SearchURL(s.opts.Query, page)
		s.logger.Info("[scraper] %s page %d: %s", source, page, url)

		var html string
		err := s.retry.Do(ctx, fmt.Sprintf("%s page %d", source, page), func() error {
			var fetchErr error
			html, fetchErr = s.fetcher.FetchHTML(ctx, url)
			return fetchErr
		})
		if err != nil {
			if page == 1 {
				return err
			}
			s.logger.Error("[scraper] %s page %d failed: %v", source, page, err)
			return nil
		}

		found, err := m.ParseResults(html)
		if err != nil {
			return err
		}

		fresh := found[:0]
		for _, r := range found {
			if s.seen.Add(models.RecordKey(r.Source, r.ListingID)) {
				fresh = append(fresh, r)
			}
		}

		if len(fresh) == 0 {
			s.logger.Warn("[scraper] %s page %d returned no new listings, stopping", source, page)
			return nil
		}

		s.mu.Lock()
		s.listings = append(s.listings, fresh...)
		s.mu.Unlock()
		s.logger.Info("[scraper] %s page %d done: %d listings", source, page, len(fresh))

		if page < s.opts.Pages && s.opts.RateLimitMs > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(s.opts.RateLimitMs) * time.Millisecond):
			}
		}
	}
	return nil
}
