package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"graded-cards-scraper/models"
	"graded-cards-scraper/scraper"
	"graded-cards-scraper/services"
	"graded-cards-scraper/storage"
)

const (
	recordsFile   = "records.json"
	listingsFile  = "listings.csv"
	statsTextFile = "stats.txt"
	statsJSONFile = "stats.json"
)

var (
	scrapeQuery    string
	scrapeSources  []string
	scrapePages    int
	scrapeInput    string
	scrapeNoImages bool
	scrapeFresh    bool
)

func init() {
	f := scrapeCmd.Flags()
	f.StringVarP(&scrapeQuery, "query", "q", "psa 10 pokemon card", "marketplace search query")
	f.StringSliceVar(&scrapeSources, "sources", []string{"ebay", "mercari"}, "marketplaces to search")
	f.IntVar(&scrapePages, "pages", 0, "result pages per marketplace (default from PAGES_TO_SCRAPE)")
	f.StringVar(&scrapeInput, "input", "", "read raw listing fragments from a JSON file instead of the browser")
	f.BoolVar(&scrapeNoImages, "no-images", false, "skip image downloads")
	f.BoolVar(&scrapeFresh, "fresh", false, "ignore records from previous runs")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--query <text>] [--sources ebay,mercari] [--input raw.json]",
	Short: "Collects listings, resolves their images and writes records, CSV and statistics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		return runScrape(cmd.Context(), e)
	},
}

func runScrape(ctx context.Context, e *env) error {
	cfg, logger := e.cfg, e.logger
	if scrapePages > 0 {
		cfg.PagesToScrape = scrapePages
	}

	sources, err := parseSources(scrapeSources)
	if err != nil {
		return err
	}

	logger.Info("=== Graded card scraper starting ===")
	logger.Info("Config: pages %d | concurrency %d | rate %dms | images %s",
		cfg.PagesToScrape, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.ImagesDir)

	extractor, err := services.NewExtractor(e.vocab, logger)
	if err != nil {
		return err
	}

	var resolver *services.ImageResolver
	if !scrapeNoImages {
		fetcher := services.NewHTTPImageFetcher(cfg.ImageTimeout, cfg.MaxRetries, cfg.ImageRateLimitMs)
		resolver, err = services.NewImageResolver(fetcher, e.vocab, services.ResolverOptions{
			BaseDir:     cfg.ImagesDir,
			MinWidth:    cfg.MinImageWidth,
			MinHeight:   cfg.MinImageHeight,
			Concurrency: cfg.ImageConcurrency,
		}, logger)
		if err != nil {
			return err
		}
	}

	builder := services.NewBuilder(logger)

	var previous []*models.ListingRecord
	if !scrapeFresh {
		previous, err = storage.ReadPreviousRecords(e.output(recordsFile))
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(previous))
		for _, r := range previous {
			keys = append(keys, r.Key())
		}
		builder.Seed(keys)
		logger.Info("Resuming: %d records from previous runs", len(previous))
	}

	var pg *storage.PostgresStore
	if cfg.PostgresEnabled {
		pg, err = storage.NewPostgresStore(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			return err
		}
		defer pg.Close()

		if !scrapeFresh {
			n, err := seedFrom(ctx, builder, pg, sources)
			if err != nil {
				return err
			}
			logger.Info("Resuming: %d keys already stored in PostgreSQL", n)
		}
	}

	raws, err := collect(ctx, e, sources)
	if err != nil {
		return err
	}
	if len(raws) == 0 {
		return errors.New("no listings were collected")
	}

	pipeline := services.NewPipeline(extractor, resolver, builder, cfg.MaxConcurrency, logger)
	sum := pipeline.Run(ctx, raws)
	fresh := builder.Records()

	all := append(previous, fresh...)
	report, err := writeOutputs(e, all)
	if err != nil {
		return err
	}

	if pg != nil {
		n, err := pg.Save(ctx, fresh)
		if err != nil {
			logger.Error("PostgreSQL write failed: %v", err)
		} else {
			logger.Info("Stored %d new records in PostgreSQL (table: graded_listings)", n)
		}
	}

	services.PrintSummary(os.Stdout, sum)
	services.NewStatsService(logger).Print(os.Stdout, report)

	fmt.Printf("  Done. Records: %s | CSV: %s | Images: %s\n\n",
		e.output(recordsFile), e.output(listingsFile), cfg.ImagesDir)
	return nil
}

// collect gathers raw fragments either from --input or from the marketplaces.
func collect(ctx context.Context, e *env, sources []models.Source) ([]*models.RawListing, error) {
	if scrapeInput != "" {
		raws, err := storage.ReadRawJSON(scrapeInput)
		if err != nil {
			return nil, err
		}
		e.logger.Info("Loaded %d raw listings from %s", len(raws), scrapeInput)
		return raws, nil
	}

	browser, err := scraper.NewBrowser(e.cfg.ChromeBin, e.logger)
	if err != nil {
		return nil, err
	}
	defer browser.Close()

	parsers := scraper.Marketplaces()
	markets := make([]scraper.Marketplace, 0, len(sources))
	for _, s := range sources {
		markets = append(markets, parsers[s])
	}

	s := scraper.New(browser, markets, scraper.Options{
		Query:          scrapeQuery,
		Pages:          e.cfg.PagesToScrape,
		MaxConcurrency: e.cfg.MaxConcurrency,
		RateLimitMs:    e.cfg.RateLimitMs,
		MaxRetries:     e.cfg.MaxRetries,
		RetryDelay:     2 * time.Second,
	}, e.logger)
	return s.Scrape(ctx)
}

// writeOutputs writes the JSON records, the CSV export and both statistics
// files. Each file is replaced atomically.
func writeOutputs(e *env, records []*models.ListingRecord) (*models.StatsReport, error) {
	if err := storage.WriteRecordsJSON(e.output(recordsFile), records); err != nil {
		return nil, err
	}
	report, err := convert(e, records, e.output(listingsFile))
	if err != nil {
		return nil, err
	}
	e.logger.Info("Wrote %d records to %s", len(records), e.cfg.OutputDir)
	return report, nil
}

// seedFrom marks every key already persisted in ks as seen and returns how
// many there were.
func seedFrom(ctx context.Context, b *services.Builder, ks storage.KeySource, sources []models.Source) (int, error) {
	keys, err := ks.ExistingKeys(ctx, sources...)
	if err != nil {
		return 0, err
	}
	b.Seed(keys)
	return len(keys), nil
}

func parseSources(names []string) ([]models.Source, error) {
	out := make([]models.Source, 0, len(names))
	for _, n := range names {
		s, ok := models.ParseSource(n)
		if !ok {
			return nil, fmt.Errorf("unknown source %q (want ebay or mercari)", n)
		}
		out = append(out, s)
	}
	return out, nil
}
