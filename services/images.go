package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"

	"graded-cards-scraper/config"
	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

const (
	defaultMinDimension = 400
	maxImageBytes       = 20 << 20
	maxNameLength       = 50
	pathTimeLayout      = "20060102T150405"
)

var unsafeNameRegexp = regexp.MustCompile(`[^\w\s-]`)

// ImageFetcher downloads the bytes behind an image URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPImageFetcher fetches images over HTTP with a per-request timeout,
// bounded retries and a shared rate limit across all callers.
type HTTPImageFetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// NewHTTPImageFetcher builds a fetcher. rateLimitMs is the minimum spacing
// between requests; zero disables throttling.
func NewHTTPImageFetcher(timeout time.Duration, retries, rateLimitMs int) *HTTPImageFetcher {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(retries)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() == 429 || res.StatusCode() >= 500
	})
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetHeader("accept", "image/avif,image/webp,image/png,image/jpeg,*/*;q=0.8")

	return &HTTPImageFetcher{
		client:  client,
		limiter: utils.NewLimiter(rateLimitMs),
	}
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("get %s: http status %d", url, res.StatusCode())
	}

	body := res.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("get %s: empty body", url)
	}
	if len(body) > maxImageBytes {
		return nil, fmt.Errorf("get %s: image too large: %d bytes", url, len(body))
	}
	return body, nil
}

// ResolveReport counts what happened to the images of one or more listings.
type ResolveReport struct {
	Saved    int
	Failed   int
	TooSmall int
}

// Add accumulates another report.
func (r *ResolveReport) Add(o ResolveReport) {
	r.Saved += o.Saved
	r.Failed += o.Failed
	r.TooSmall += o.TooSmall
}

// ResolverOptions configures an ImageResolver.
type ResolverOptions struct {
	BaseDir     string
	MinWidth    int
	MinHeight   int
	Concurrency int
}

type urlRule struct {
	re          *regexp.Regexp
	replacement string
}

// ImageResolver upgrades listing image URLs to their largest variant,
// downloads them, applies the minimum-size quality gate and stores accepted
// images under the base directory.
type ImageResolver struct {
	fetcher ImageFetcher
	logger  *utils.Logger
	opts    ResolverOptions
	rules   map[models.Source][]urlRule
}

// NewImageResolver compiles the per-source URL rules from the vocabulary.
func NewImageResolver(fetcher ImageFetcher, vocab config.Vocabulary, opts ResolverOptions, logger *utils.Logger) (*ImageResolver, error) {
	if opts.MinWidth <= 0 {
		opts.MinWidth = defaultMinDimension
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = defaultMinDimension
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	rules := make(map[models.Source][]urlRule)
	for source := range vocab.Marketplaces {
		for _, r := range vocab.ImageRules(source) {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("images: %s rule %q: %w", source, r.Pattern, err)
			}
			rules[models.Source(source)] = append(rules[models.Source(source)], urlRule{re: re, replacement: r.Replacement})
		}
	}

	return &ImageResolver{fetcher: fetcher, logger: logger, opts: opts, rules: rules}, nil
}

// UpgradeURL rewrites a thumbnail URL into the highest-resolution variant the
// marketplace serves. URLs no rule matches are returned unchanged.
func (r *ImageResolver) UpgradeURL(source models.Source, url string) string {
	for _, rule := range r.rules[source] {
		url = rule.re.ReplaceAllString(url, rule.replacement)
	}
	return url
}

// LocalPath is the slash-separated path, relative to the base directory, of
// the n-th (1-based) image of a record.
func LocalPath(rec *models.ListingRecord, n int) string {
	name := sanitizeName(rec.CardName)
	if name == "" {
		name = sanitizeName(rec.ListingID)
	}
	if name == "" {
		name = "listing"
	}
	company := rec.GradingCompany
	if company == "" {
		company = models.CompanyUnknown
	}
	file := fmt.Sprintf("%s_%s_%d.jpg", name, rec.ScrapedAt.UTC().Format(pathTimeLayout), n)
	return path.Join(string(rec.Source), string(company), file)
}

func sanitizeName(s string) string {
	s = unsafeNameRegexp.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "_")
	if len(s) > maxNameLength {
		s = strings.TrimRight(s[:maxNameLength], "_-")
	}
	return s
}

type imageOutcome int

const (
	outcomeFailed imageOutcome = iota
	outcomeTooSmall
	outcomeSaved
)

// Resolve downloads the images of one record in parallel and returns those
// that passed the quality gate, in the order of the record's image URLs.
// Individual failures never fail the record.
func (r *ImageResolver) Resolve(ctx context.Context, rec *models.ListingRecord) ([]models.Image, ResolveReport) {
	var report ResolveReport
	if len(rec.ImageURLs) == 0 {
		return []models.Image{}, report
	}

	images := make([]models.Image, len(rec.ImageURLs))
	outcomes := make([]imageOutcome, len(rec.ImageURLs))

	pool := utils.NewWorkerPool(r.opts.Concurrency, 0)
	var mu sync.Mutex
	for i, u := range rec.ImageURLs {
		pool.Submit(func() {
			img, outcome := r.resolveOne(ctx, rec, u, i+1)
			mu.Lock()
			images[i], outcomes[i] = img, outcome
			mu.Unlock()
		})
	}
	pool.Wait()

	kept := make([]models.Image, 0, len(images))
	for i, o := range outcomes {
		switch o {
		case outcomeSaved:
			report.Saved++
			kept = append(kept, images[i])
		case outcomeTooSmall:
			report.TooSmall++
		default:
			report.Failed++
		}
	}
	return kept, report
}

func (r *ImageResolver) resolveOne(ctx context.Context, rec *models.ListingRecord, original string, n int) (models.Image, imageOutcome) {
	url := r.UpgradeURL(rec.Source, original)

	data, err := r.fetcher.Fetch(ctx, url)
	if err != nil && url != original {
		r.logger.Debug("[images] Upgraded URL failed for %s, trying original: %v", rec.Key(), err)
		url = original
		data, err = r.fetcher.Fetch(ctx, url)
	}
	if err != nil {
		r.logger.Warn("[images] Download failed for %s: %v", rec.Key(), err)
		return models.Image{}, outcomeFailed
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		r.logger.Warn("[images] Undecodable image for %s (%s): %v", rec.Key(), url, err)
		return models.Image{}, outcomeFailed
	}
	if cfg.Width < r.opts.MinWidth || cfg.Height < r.opts.MinHeight {
		r.logger.Debug("[images] Skipping %dx%d %s image for %s (minimum %dx%d)",
			cfg.Width, cfg.Height, format, rec.Key(), r.opts.MinWidth, r.opts.MinHeight)
		return models.Image{}, outcomeTooSmall
	}

	rel := LocalPath(rec, n)
	dest := filepath.Join(r.opts.BaseDir, filepath.FromSlash(rel))
	err = utils.WriteFileAtomic(dest, func(w io.Writer) error {
		_, werr := w.Write(data)
		return werr
	})
	if err != nil {
		r.logger.Error("[images] Could not store image for %s: %v", rec.Key(), err)
		return models.Image{}, outcomeFailed
	}

	return models.Image{URL: url, LocalPath: rel}, outcomeSaved
}
