package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graded-cards-scraper/config"
	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(config.DefaultVocabulary(), utils.Discard())
	require.NoError(t, err)
	return e
}

func TestExtractCompanyAndGrade(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		title   string
		company models.GradingCompany
		grade   *float64
	}{
		{"Charizard Base Set PSA 10 GEM MINT", models.CompanyPSA, models.Float(10)},
		{"PSA10 Pikachu Illustrator", models.CompanyPSA, models.Float(10)},
		{"psa-9 Blastoise", models.CompanyPSA, models.Float(9)},
		{"BGS 9.5 Umbreon VMAX", models.CompanyBGS, models.Float(9.5)},
		{"Beckett 8.5 Mewtwo", models.CompanyBGS, models.Float(8.5)},
		{"CGC Pristine 10 Lugia", models.CompanyCGC, models.Float(10)},
		{"Rayquaza 9 SGC", models.CompanySGC, models.Float(9)},
		{"TAG 10 Gengar", models.CompanyTAG, models.Float(10)},
		{"Pikachu & Zekrom Tag Team GX", models.CompanyUnknown, nil},
		{"Charizard 4/102 PSA", models.CompanyPSA, nil},
		{"Charizard 4/102 PSA 7", models.CompanyPSA, models.Float(7)},
		{"PSA 11 Charizard", models.CompanyPSA, nil},
		{"PSA 9.3 Charizard", models.CompanyPSA, nil},
		{"Raw Charizard 10/10 condition", models.CompanyUnknown, nil},
		{"Charizard Base Set PSA 10.", models.CompanyPSA, models.Float(10)},
		{"PSA 10. Charizard", models.CompanyPSA, models.Float(10)},
		{"Umbreon BGS 9.5.", models.CompanyBGS, models.Float(9.5)},
		{"PSA 10.25 Charizard", models.CompanyPSA, nil},
		{"", models.CompanyUnknown, nil},
	}

	for _, tt := range tests {
		got := e.Extract(tt.title, "")
		if got.Company != tt.company {
			t.Errorf("Extract(%q).Company = %s; want %s", tt.title, got.Company, tt.company)
		}
		assert.Equal(t, tt.grade, got.Grade, "grade for %q", tt.title)
	}
}

func TestExtractFirstCompanyInVocabularyOrderWins(t *testing.T) {
	e := newTestExtractor(t)

	got := e.Extract("BGS 9.5 crossover PSA 10 Charizard", "")
	assert.Equal(t, models.CompanyPSA, got.Company)
	assert.Equal(t, models.Float(10), got.Grade)
}

func TestExtractGradeWithoutCompanyIsAbsent(t *testing.T) {
	e := newTestExtractor(t)

	got := e.Extract("Charizard Gem Mint 10", "")
	assert.Equal(t, models.CompanyUnknown, got.Company)
	assert.Nil(t, got.Grade)
}

func TestExtractCardName(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		title string
		want  string
	}{
		{"Charizard Base Set PSA 10 GEM MINT", "Charizard Base Set"},
		{"PSA 10 - Pikachu Promo", "Pikachu Promo"},
		{"Umbreon VMAX Alt Art BGS 9.5 Black Label $1,200", "Umbreon VMAX Alt Art"},
		{"PSA 10", ""},
		{"Charizard Base Set PSA 10.", "Charizard Base Set"},
		{"PSA 10 #025", ""},
		{"  Mewtwo   Holo  ", "Mewtwo Holo"},
	}

	for _, tt := range tests {
		got := e.Extract(tt.title, "").CardName
		if got != tt.want {
			t.Errorf("CardName(%q) = %q; want %q", tt.title, got, tt.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"$120", models.Float(120)},
		{"$1,200.50", models.Float(1200.50)},
		{"US $ 99.99", models.Float(99.99)},
		{"$100 - $200", models.Float(100)},
		{"$250 to $180", models.Float(180)},
		{"$5 shipping, PSA 10 $100 - $200", models.Float(5)},
		{"PSA 10 $100 - $200", models.Float(100)},
		{"", nil},
		{"free", nil},
		{"120 USD", nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePrice(tt.raw), "ParsePrice(%q)", tt.raw)
	}
}

func TestExtractPriceFallsBackToTitle(t *testing.T) {
	e := newTestExtractor(t)

	assert.Equal(t, models.Float(45), e.Extract("PSA 9 Eevee $45", "").Price)
	assert.Equal(t, models.Float(60), e.Extract("PSA 9 Eevee $45", "$60.00").Price)
	assert.Nil(t, e.Extract("PSA 9 Eevee", "make an offer").Price)
}

func TestBuildRecord(t *testing.T) {
	e := newTestExtractor(t)
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	rec := e.Build(&models.RawListing{
		Title:     "  Charizard  PSA 10 ",
		PriceText: "$500.00",
		URL:       "https://www.ebay.com/itm/123 ",
		ImageURLs: []string{"https://i.ebayimg.com/a.jpg", "", "https://i.ebayimg.com/a.jpg", "https://i.ebayimg.com/b.jpg"},
		ListingID: " 123 ",
		Source:    "EBAY",
	}, now)

	assert.Equal(t, models.SourceEbay, rec.Source)
	assert.Equal(t, "123", rec.ListingID)
	assert.Equal(t, "Charizard PSA 10", rec.Title)
	assert.Equal(t, "Charizard", rec.CardName)
	assert.Equal(t, models.CompanyPSA, rec.GradingCompany)
	assert.Equal(t, models.Float(10), rec.Grade)
	assert.Equal(t, models.Float(500), rec.Price)
	assert.Equal(t, []string{"https://i.ebayimg.com/a.jpg", "https://i.ebayimg.com/b.jpg"}, rec.ImageURLs)
	assert.Empty(t, rec.Images)
	assert.Equal(t, now, rec.ScrapedAt)
}

func TestExtractForUsesMarketplaceOverrides(t *testing.T) {
	vocab := config.DefaultVocabulary()
	m := vocab.Marketplaces["mercari"]
	m.Vocabulary = &config.Vocabulary{
		Companies: []config.CompanyAlias{{Alias: "ACE", Company: "PSA"}},
	}
	vocab.Marketplaces["mercari"] = m

	e, err := NewExtractor(vocab, utils.Discard())
	require.NoError(t, err)

	assert.Equal(t, models.CompanyPSA, e.ExtractFor(models.SourceMercari, "ACE 10 Charizard", "").Company)
	assert.Equal(t, models.CompanyUnknown, e.ExtractFor(models.SourceEbay, "ACE 10 Charizard", "").Company)
}

func TestScanGrades(t *testing.T) {
	s, err := NewGradeScanner(config.DefaultVocabulary())
	require.NoError(t, err)

	tests := []struct {
		title string
		want  []float64
	}{
		{"Charizard PSA 10", []float64{10}},
		{"PSA 9 Charizard not a PSA 10", []float64{9, 10}},
		{"PSA 10 GEM MINT 10", []float64{10}},
		{"BGS 9.5 Grade 9 subgrades", []float64{9.5, 9}},
		{"Charizard 4/102 holo", nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, s.ScanGrades(tt.title), "ScanGrades(%q)", tt.title)
	}
}
