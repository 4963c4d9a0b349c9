package services

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

func sampleRecords() []*models.ListingRecord {
	return []*models.ListingRecord{
		{Source: models.SourceEbay, ListingID: "1", Title: "Charizard PSA 10", GradingCompany: models.CompanyPSA, Grade: models.Float(10), Price: models.Float(200),
			Images: []models.Image{{LocalPath: "a.jpg"}, {LocalPath: "b.jpg"}}},
		{Source: models.SourceEbay, ListingID: "2", Title: "Pikachu BGS 9.5", GradingCompany: models.CompanyBGS, Grade: models.Float(9.5), Price: models.Float(50)},
		{Source: models.SourceMercari, ListingID: "3", Title: "Mew PSA 9", GradingCompany: models.CompanyPSA, Grade: models.Float(9), Price: models.Float(120),
			Images: []models.Image{{LocalPath: "c.jpg"}}},
		{Source: models.SourceMercari, ListingID: "4", Title: "Lugia CGC 10", GradingCompany: models.CompanyCGC, Grade: models.Float(10), Price: models.Float(300)},
		{Source: models.SourceEbay, ListingID: "5", Title: "Raw Eevee", GradingCompany: models.CompanyUnknown},
	}
}

func TestStatsCounts(t *testing.T) {
	svc := NewStatsService(utils.Discard())
	r := svc.Generate(sampleRecords())
	if r.TotalRecords != 5 {
		t.Errorf("TotalRecords: got %d, want 5", r.TotalRecords)
	}
	if r.PricedRecords != 4 {
		t.Errorf("PricedRecords: got %d, want 4", r.PricedRecords)
	}
	if r.ImagesDownloaded != 3 {
		t.Errorf("ImagesDownloaded: got %d, want 3", r.ImagesDownloaded)
	}

	wantCompany := map[string]int{"PSA": 2, "BGS": 1, "CGC": 1, "unknown": 1}
	if diff := cmp.Diff(wantCompany, r.ByCompany); diff != "" {
		t.Errorf("ByCompany mismatch (-want +got):\n%s", diff)
	}
	wantGrade := map[string]int{"10": 2, "9.5": 1, "9": 1}
	if diff := cmp.Diff(wantGrade, r.ByGrade); diff != "" {
		t.Errorf("ByGrade mismatch (-want +got):\n%s", diff)
	}
	wantSource := map[string]int{"ebay": 3, "mercari": 2}
	if diff := cmp.Diff(wantSource, r.BySource); diff != "" {
		t.Errorf("BySource mismatch (-want +got):\n%s", diff)
	}
}

func TestStatsPrices(t *testing.T) {
	svc := NewStatsService(utils.Discard())
	r := svc.Generate(sampleRecords())
	if r.MeanPrice != 167.50 {
		t.Errorf("MeanPrice: got %.2f, want 167.50", r.MeanPrice)
	}
	if r.MedianPrice != 160 {
		t.Errorf("MedianPrice: got %.2f, want 160", r.MedianPrice)
	}
	if r.MinPrice != 50 {
		t.Errorf("MinPrice: got %.2f, want 50", r.MinPrice)
	}
	if r.MaxPrice != 300 {
		t.Errorf("MaxPrice: got %.2f, want 300", r.MaxPrice)
	}
	if r.TotalPrice != 670 {
		t.Errorf("TotalPrice: got %.2f, want 670", r.TotalPrice)
	}
	if r.AvgPriceByCompany["PSA"] != 160 {
		t.Errorf("AvgPriceByCompany[PSA]: got %.2f, want 160", r.AvgPriceByCompany["PSA"])
	}
	if _, ok := r.AvgPriceByCompany["unknown"]; ok {
		t.Error("AvgPriceByCompany should skip companies without priced records")
	}

	wantByGrade := map[string]float64{"10": 250, "9.5": 50, "9": 120}
	if diff := cmp.Diff(wantByGrade, r.AvgPriceByGrade); diff != "" {
		t.Errorf("AvgPriceByGrade mismatch (-want +got):\n%s", diff)
	}
}

func TestStatsMeanAndMedianSkipUnpriced(t *testing.T) {
	svc := NewStatsService(utils.Discard())
	r := svc.Generate([]*models.ListingRecord{
		{Source: models.SourceEbay, ListingID: "a", Price: models.Float(100)},
		{Source: models.SourceEbay, ListingID: "b", Price: models.Float(200)},
		{Source: models.SourceEbay, ListingID: "c"},
	})
	if r.MeanPrice != 150 || r.MedianPrice != 150 {
		t.Errorf("mean/median: got %.2f/%.2f, want 150/150", r.MeanPrice, r.MedianPrice)
	}
}

func TestStatsMostExpensiveFirstOnTies(t *testing.T) {
	svc := NewStatsService(utils.Discard())
	r := svc.Generate([]*models.ListingRecord{
		{Source: models.SourceEbay, ListingID: "a", Price: models.Float(10)},
		{Source: models.SourceEbay, ListingID: "b", Price: models.Float(99)},
		{Source: models.SourceEbay, ListingID: "c", Price: models.Float(99)},
	})
	if r.MostExpensive == nil {
		t.Fatal("MostExpensive should not be nil")
	}
	if r.MostExpensive.ListingID != "b" {
		t.Errorf("MostExpensive: got %q, want %q", r.MostExpensive.ListingID, "b")
	}
}

func TestStatsTopTen(t *testing.T) {
	var recs []*models.ListingRecord
	for i := 1; i <= 15; i++ {
		recs = append(recs, &models.ListingRecord{Source: models.SourceEbay, ListingID: fmt.Sprint(i), Price: models.Float(float64(i))})
	}

	r := NewStatsService(utils.Discard()).Generate(recs)
	if len(r.TopExpensive) != 10 {
		t.Fatalf("TopExpensive len: got %d, want 10", len(r.TopExpensive))
	}
	if r.TopExpensive[0].Price != 15 || r.TopExpensive[9].Price != 6 {
		t.Errorf("TopExpensive range: got %.0f..%.0f, want 15..6", r.TopExpensive[0].Price, r.TopExpensive[9].Price)
	}
}

func TestStatsEmptyInput(t *testing.T) {
	r := NewStatsService(utils.Discard()).Generate(nil)
	if r.TotalRecords != 0 || r.PricedRecords != 0 {
		t.Errorf("expected zero counts for empty input")
	}
	if r.MostExpensive != nil {
		t.Errorf("MostExpensive should be nil for empty input")
	}
	if r.ByCompany == nil || r.TopExpensive == nil {
		t.Errorf("maps and lists should be empty, not nil")
	}
}

func TestStatsPrint(t *testing.T) {
	svc := NewStatsService(utils.Discard())
	var buf bytes.Buffer
	svc.Print(&buf, svc.Generate(sampleRecords()))

	out := buf.String()
	for _, want := range []string{"Graded Listing Statistics", "$167.50", "Lugia CGC 10", "PSA"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("Print output missing %q", want)
		}
	}
}

func TestPrintFilterResultSkipsUnusedReasons(t *testing.T) {
	res := models.FilterResult{
		Kept: []models.Row{{ListingID: "1"}, {ListingID: "2"}},
		Rejected: []models.Rejection{
			{ListingID: "3", Reason: models.ReasonMemeListing},
			{ListingID: "4", Reason: models.ReasonMemeListing},
		},
	}
	var buf bytes.Buffer
	PrintFilterResult(&buf, res)

	out := buf.String()
	if !strings.Contains(out, "MEME_LISTING") || !strings.Contains(out, "KEEP") {
		t.Errorf("PrintFilterResult output missing reasons:\n%s", out)
	}
	if strings.Contains(out, "MULTI_ITEM") {
		t.Errorf("PrintFilterResult should omit reasons with no rows:\n%s", out)
	}
}
