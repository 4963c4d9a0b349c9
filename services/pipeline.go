package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

// Pipeline turns raw fragments into admitted records: extract fields, skip
// identities already known, resolve images, then admit.
type Pipeline struct {
	extractor *Extractor
	resolver  *ImageResolver
	builder   *Builder
	logger    *utils.Logger
	workers   int
	now       func() time.Time
}

// NewPipeline wires the stages together. A nil resolver skips image
// downloads entirely.
func NewPipeline(extractor *Extractor, resolver *ImageResolver, builder *Builder, workers int, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		resolver:  resolver,
		builder:   builder,
		logger:    logger,
		workers:   workers,
		now:       time.Now,
	}
}

// Run processes fragments concurrently and reports what happened to each.
// Identities are claimed in input order before any work is scheduled, and
// records are admitted in input order afterwards, so the earliest copy of a
// listing always wins. Fragments left unprocessed because ctx was cancelled
// are not counted as attempted.
func (p *Pipeline) Run(ctx context.Context, raws []*models.RawListing) models.RunSummary {
	sum := models.RunSummary{RunID: uuid.NewString()}
	p.logger.Info("[pipeline] Run %s: processing %d fragments", sum.RunID, len(raws))

	type slot struct {
		rec    *models.ListingRecord
		status AdmitStatus
		report ResolveReport
		done   bool
	}
	slots := make([]slot, len(raws))
	claimed := utils.NewKeySet()
	pool := utils.NewWorkerPool(p.workers, 0)

	for i, raw := range raws {
		if ctx.Err() != nil {
			break
		}
		rec := p.extractor.Build(raw, p.now())
		slots[i].rec = rec

		if rec.ListingID != "" && (p.builder.Seen(rec.Source, rec.ListingID) || !claimed.Add(rec.Key())) {
			p.logger.Debug("[pipeline] Duplicate listing skipped: %s", rec.Key())
			slots[i].status, slots[i].done = Duplicate, true
			continue
		}

		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			if rec.ListingID != "" && p.resolver != nil {
				rec.Images, slots[i].report = p.resolver.Resolve(ctx, rec)
			}
			slots[i].done = true
		})
	}
	pool.Wait()

	for _, sl := range slots {
		if !sl.done {
			continue
		}
		if sl.status == "" {
			sl.status = p.builder.Admit(sl.rec).Status
		}
		sum.Attempted++
		switch sl.status {
		case Accepted:
			sum.Admitted++
		case Duplicate:
			sum.Duplicates++
		case Invalid:
			sum.Invalid++
		}
		sum.ImagesSaved += sl.report.Saved
		sum.ImagesFailed += sl.report.Failed
		sum.ImagesTooSmall += sl.report.TooSmall
	}

	p.logger.Info("[pipeline] Run %s: %d attempted, %d admitted, %d duplicates, %d invalid, images %d saved / %d failed / %d too small",
		sum.RunID, sum.Attempted, sum.Admitted, sum.Duplicates, sum.Invalid,
		sum.ImagesSaved, sum.ImagesFailed, sum.ImagesTooSmall)
	return sum
}
