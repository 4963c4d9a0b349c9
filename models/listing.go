package models

import (
	"strings"
	"time"
)

// Source identifies the marketplace a listing came from.
type Source string

const (
	SourceEbay    Source = "ebay"
	SourceMercari Source = "mercari"
)

// ParseSource normalises a source name. ok is false for unknown marketplaces.
func ParseSource(s string) (Source, bool) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceEbay:
		return SourceEbay, true
	case SourceMercari:
		return SourceMercari, true
	}
	return Source(strings.ToLower(strings.TrimSpace(s))), false
}

// GradingCompany is the authority that graded a card.
type GradingCompany string

const (
	CompanyPSA     GradingCompany = "PSA"
	CompanyBGS     GradingCompany = "BGS"
	CompanyCGC     GradingCompany = "CGC"
	CompanySGC     GradingCompany = "SGC"
	CompanyTAG     GradingCompany = "TAG"
	CompanyUnknown GradingCompany = "unknown"
)

// RawListing is one listing fragment as produced by the fetch layer, before
// any parsing or normalisation.
type RawListing struct {
	Title     string   `json:"title"`
	PriceText string   `json:"price_text,omitempty"`
	URL       string   `json:"url"`
	ImageURLs []string `json:"image_urls"`
	ListingID string   `json:"listing_id"`
	Source    Source   `json:"source"`
}

// Image is a resolved, downloaded listing image. LocalPath is relative to the
// images base directory.
type Image struct {
	URL       string `json:"url"`
	LocalPath string `json:"local_path"`
}

// ListingRecord is one normalised marketplace listing.
type ListingRecord struct {
	Source         Source         `json:"source"`
	ListingID      string         `json:"listing_id"`
	Title          string         `json:"title"`
	CardName       string         `json:"card_name"`
	GradingCompany GradingCompany `json:"grading_company"`
	Grade          *float64       `json:"grade"`
	Price          *float64       `json:"price"`
	ListingURL     string         `json:"listing_url"`
	ImageURLs      []string       `json:"image_urls"`
	Images         []Image        `json:"images"`
	ScrapedAt      time.Time      `json:"scraped_at"`
}

// Key returns the identity of the record within the whole collection.
func (r *ListingRecord) Key() string {
	return RecordKey(r.Source, r.ListingID)
}

// RecordKey builds the (source, listing_id) identity key.
func RecordKey(source Source, listingID string) string {
	return string(source) + "/" + listingID
}

// ImagePaths returns the local paths of the resolved images in order.
func (r *ListingRecord) ImagePaths() []string {
	paths := make([]string, 0, len(r.Images))
	for _, img := range r.Images {
		paths = append(paths, img.LocalPath)
	}
	return paths
}

// Float returns a pointer to v; used for nullable grade and price fields.
func Float(v float64) *float64 {
	return &v
}
