package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

// missingMarker stands in for statistics that have no value, such as the
// mean of a collection without prices.
const missingMarker = "-"

// WriteStatsText renders the report as "key: value" lines. Map keys are
// sorted so the output is byte-stable for a given report.
func WriteStatsText(w io.Writer, r *models.StatsReport) error {
	money := func(v float64) string {
		if r.PricedRecords == 0 {
			return missingMarker
		}
		return strconv.FormatFloat(v, 'f', 2, 64)
	}

	lines := []string{
		fmt.Sprintf("total_records: %d", r.TotalRecords),
		fmt.Sprintf("priced_records: %d", r.PricedRecords),
		"mean_price: " + money(r.MeanPrice),
		"median_price: " + money(r.MedianPrice),
		"total_price: " + money(r.TotalPrice),
		"min_price: " + money(r.MinPrice),
		"max_price: " + money(r.MaxPrice),
		fmt.Sprintf("images_downloaded: %d", r.ImagesDownloaded),
	}
	lines = append(lines, countSection("by_company", r.ByCompany)...)
	lines = append(lines, countSection("by_grade", r.ByGrade)...)
	lines = append(lines, countSection("by_source", r.BySource)...)

	lines = append(lines, priceSection("avg_price_by_company", r.AvgPriceByCompany)...)
	lines = append(lines, priceSection("avg_price_by_grade", r.AvgPriceByGrade)...)

	if r.MostExpensive == nil {
		lines = append(lines, "most_expensive: "+missingMarker)
	} else {
		lines = append(lines, "most_expensive: "+pricedLine(*r.MostExpensive))
	}

	lines = append(lines, "top_expensive:")
	for i, p := range r.TopExpensive {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, pricedLine(p)))
	}

	for _, l := range lines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteStatsTextFile writes the text report, replacing path atomically.
func WriteStatsTextFile(path string, r *models.StatsReport) error {
	if err := utils.WriteFileAtomic(path, func(w io.Writer) error { return WriteStatsText(w, r) }); err != nil {
		return fmt.Errorf("stats: write %q: %w", path, err)
	}
	return nil
}

// WriteStatsJSONFile writes the report as indented JSON, replacing path atomically.
func WriteStatsJSONFile(path string, r *models.StatsReport) error {
	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	})
	if err != nil {
		return fmt.Errorf("stats: write %q: %w", path, err)
	}
	return nil
}

func countSection(name string, m map[string]int) []string {
	out := []string{name + ":"}
	for _, k := range sortedKeys(m) {
		out = append(out, fmt.Sprintf("  %s: %d", k, m[k]))
	}
	return out
}

func priceSection(name string, m map[string]float64) []string {
	out := []string{name + ":"}
	for _, k := range sortedKeys(m) {
		out = append(out, fmt.Sprintf("  %s: %.2f", k, m[k]))
	}
	return out
}

func pricedLine(p models.PricedRecord) string {
	grade := missingMarker
	if p.Grade != nil {
		grade = strconv.FormatFloat(*p.Grade, 'f', -1, 64)
	}
	name := p.CardName
	if name == "" {
		name = missingMarker
	}
	return fmt.Sprintf("%s | %s | %s %s | %.2f", p.ListingID, name, p.GradingCompany, grade, p.Price)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
