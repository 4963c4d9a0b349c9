package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"graded-cards-scraper/config"
	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

var (
	// priceRegexp captures a dollar amount such as "$1,250.00"
	priceRegexp = regexp.MustCompile(`\$\s*(\d+(?:,\d+)*(?:\.\d+)?)`)
	// priceRangeRegexp captures "$100 - $200" and "$100 to $200"
	priceRangeRegexp = regexp.MustCompile(`(?i)\$\s*(\d+(?:,\d+)*(?:\.\d+)?)\s*(?:-|–|to)\s*\$\s*(\d+(?:,\d+)*(?:\.\d+)?)`)
)

// Fields are the attributes parsed out of a listing title and price text.
type Fields struct {
	CardName string
	Company  models.GradingCompany
	Grade    *float64
	Price    *float64
}

// Extractor turns raw listing text into structured fields. It never fails on
// unparseable input: missing attributes come back as unknown or nil.
type Extractor struct {
	logger   *utils.Logger
	scanner  *GradeScanner
	bySource map[models.Source]*GradeScanner
}

// NewExtractor compiles the vocabulary, including per-marketplace overrides.
func NewExtractor(vocab config.Vocabulary, logger *utils.Logger) (*Extractor, error) {
	scanner, err := NewGradeScanner(vocab)
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		logger:   logger,
		scanner:  scanner,
		bySource: make(map[models.Source]*GradeScanner),
	}
	for name, m := range vocab.Marketplaces {
		if m.Vocabulary == nil {
			continue
		}
		merged, err := vocab.ForSource(name)
		if err != nil {
			return nil, err
		}
		s, err := NewGradeScanner(merged)
		if err != nil {
			return nil, fmt.Errorf("extractor: %s vocabulary: %w", name, err)
		}
		e.bySource[models.Source(name)] = s
	}
	return e, nil
}

func (e *Extractor) scannerFor(source models.Source) *GradeScanner {
	if s, ok := e.bySource[source]; ok {
		return s
	}
	return e.scanner
}

// Extract parses a title and an optional price text with the shared vocabulary.
func (e *Extractor) Extract(title, priceText string) Fields {
	return e.extract(e.scanner, title, priceText)
}

// ExtractFor is Extract with the vocabulary of one marketplace.
func (e *Extractor) ExtractFor(source models.Source, title, priceText string) Fields {
	return e.extract(e.scannerFor(source), title, priceText)
}

func (e *Extractor) extract(s *GradeScanner, title, priceText string) Fields {
	title = normaliseText(title)

	company, own := s.Company(title)
	f := Fields{Company: company}

	remove := make([]span, 0, len(own)+1)
	for _, m := range s.mentions(title) {
		remove = append(remove, m.alias)
	}
	for _, m := range own {
		g, ok := s.gradeFor(title, m)
		if !ok {
			continue
		}
		f.Grade = models.Float(g.value)
		remove = append(remove, span{min(m.alias.start, g.num.start), max(m.alias.end, g.num.end)})
		break
	}

	f.CardName = cardName(s, title, remove)

	f.Price = ParsePrice(priceText)
	if f.Price == nil {
		f.Price = ParsePrice(title)
	}
	return f
}

// Build assembles a ListingRecord from a raw fragment. The record is not
// validated here; the Builder decides whether it is admissible.
func (e *Extractor) Build(raw *models.RawListing, now time.Time) *models.ListingRecord {
	source, _ := models.ParseSource(string(raw.Source))
	f := e.ExtractFor(source, raw.Title, raw.PriceText)

	rec := &models.ListingRecord{
		Source:         source,
		ListingID:      strings.TrimSpace(raw.ListingID),
		Title:          normaliseText(raw.Title),
		CardName:       f.CardName,
		GradingCompany: f.Company,
		Grade:          f.Grade,
		Price:          f.Price,
		ListingURL:     strings.TrimSpace(raw.URL),
		ImageURLs:      cleanURLs(raw.ImageURLs),
		Images:         []models.Image{},
		ScrapedAt:      now.UTC(),
	}

	if rec.GradingCompany == models.CompanyUnknown {
		e.logger.Debug("[extractor] No grading company in %s/%s: %q", rec.Source, rec.ListingID, rec.Title)
	}
	return rec
}

// ParsePrice returns the first dollar amount in s, or the lower bound when
// that amount opens a price range. nil when s carries no amount.
func ParsePrice(s string) *float64 {
	m := priceRegexp.FindStringSubmatchIndex(s)
	if m == nil {
		return nil
	}

	if r := priceRangeRegexp.FindStringSubmatchIndex(s[m[0]:]); r != nil && r[0] == 0 {
		rest := s[m[0]:]
		lo, errLo := parseAmount(rest[r[2]:r[3]])
		hi, errHi := parseAmount(rest[r[4]:r[5]])
		if errLo == nil && errHi == nil {
			return models.Float(math.Min(lo, hi))
		}
	}

	v, err := parseAmount(s[m[2]:m[3]])
	if err != nil {
		return nil
	}
	return models.Float(v)
}

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

// cardName blanks out the removed spans, qualifier phrases and prices, then
// tidies what remains.
func cardName(s *GradeScanner, title string, remove []span) string {
	b := []byte(title)
	for _, r := range remove {
		for i := r.start; i < r.end && i < len(b); i++ {
			b[i] = ' '
		}
	}

	name := string(b)
	if s.qualifier != nil {
		name = s.qualifier.ReplaceAllString(name, " ")
	}
	name = priceRegexp.ReplaceAllString(name, " ")
	name = normaliseText(name)
	name = strings.Trim(name, " -–—|,.:;/#*~!+")
	name = normaliseText(name)

	if name == "" || isNumeric(name) {
		return ""
	}
	return name
}

func isNumeric(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
