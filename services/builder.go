package services

import (
	"errors"
	"sync"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

var (
	// ErrMissingListingID is returned for records without a usable identity.
	ErrMissingListingID = errors.New("record has no listing_id")
	// ErrUnknownSource is returned for records from an unsupported marketplace.
	ErrUnknownSource = errors.New("record has an unknown source")
)

// AdmitStatus is the outcome of offering a record to the Builder.
type AdmitStatus string

const (
	Accepted  AdmitStatus = "accepted"
	Duplicate AdmitStatus = "duplicate"
	Invalid   AdmitStatus = "invalid"
)

// AdmitResult is returned by Builder.Admit. Err is set for invalid records.
type AdmitResult struct {
	Status AdmitStatus
	Err    error
}

// Builder collects records, keeping only the first admission of each
// (source, listing_id). It is safe for concurrent use.
type Builder struct {
	logger *utils.Logger

	mu      sync.Mutex
	keys    *utils.KeySet
	records []*models.ListingRecord
}

// NewBuilder creates an empty Builder.
func NewBuilder(logger *utils.Logger) *Builder {
	return &Builder{logger: logger, keys: utils.NewKeySet()}
}

// Seed marks keys from an earlier run as already seen, so those listings are
// treated as duplicates without being stored again.
func (b *Builder) Seed(keys []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		b.keys.Add(k)
	}
}

// Seen reports whether (source, listingID) has already been admitted or seeded.
func (b *Builder) Seen(source models.Source, listingID string) bool {
	return b.keys.Contains(models.RecordKey(source, listingID))
}

// Admit validates a record and stores it unless its identity is taken.
// Records with a grade but no grading company lose the grade, and negative
// prices are dropped; both are logged.
func (b *Builder) Admit(rec *models.ListingRecord) AdmitResult {
	if rec == nil || rec.ListingID == "" {
		b.logger.Warn("[builder] Rejecting record without listing_id")
		return AdmitResult{Status: Invalid, Err: ErrMissingListingID}
	}
	if _, ok := models.ParseSource(string(rec.Source)); !ok {
		b.logger.Warn("[builder] Rejecting %s: unknown source %q", rec.ListingID, rec.Source)
		return AdmitResult{Status: Invalid, Err: ErrUnknownSource}
	}

	if rec.GradingCompany == "" {
		rec.GradingCompany = models.CompanyUnknown
	}
	if rec.Grade != nil && rec.GradingCompany == models.CompanyUnknown {
		b.logger.Warn("[builder] %s has grade %s but no grading company, dropping grade", rec.Key(), FormatGrade(*rec.Grade))
		rec.Grade = nil
	}
	if rec.Price != nil && *rec.Price < 0 {
		b.logger.Warn("[builder] %s has negative price %.2f, dropping price", rec.Key(), *rec.Price)
		rec.Price = nil
	}
	if len(rec.Images) > len(rec.ImageURLs) {
		rec.Images = rec.Images[:len(rec.ImageURLs)]
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.keys.Add(rec.Key()) {
		b.logger.Debug("[builder] Duplicate listing skipped: %s", rec.Key())
		return AdmitResult{Status: Duplicate}
	}
	b.records = append(b.records, rec)
	return AdmitResult{Status: Accepted}
}

// Records returns the admitted records in admission order.
func (b *Builder) Records() []*models.ListingRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*models.ListingRecord, len(b.records))
	copy(out, b.records)
	return out
}

// Len returns the number of admitted records.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
