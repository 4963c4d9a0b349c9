package services

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

const topExpensiveCount = 10

// StatsService computes aggregate statistics over a record collection.
type StatsService struct {
	logger *utils.Logger
}

func NewStatsService(logger *utils.Logger) *StatsService {
	return &StatsService{logger: logger}
}

// Generate computes the report. Price statistics only consider priced
// records; an empty input yields zero values and empty maps.
func (s *StatsService) Generate(records []*models.ListingRecord) *models.StatsReport {
	report := &models.StatsReport{
		ByCompany:         make(map[string]int),
		ByGrade:           make(map[string]int),
		BySource:          make(map[string]int),
		AvgPriceByCompany: make(map[string]float64),
		AvgPriceByGrade:   make(map[string]float64),
		TopExpensive:      []models.PricedRecord{},
	}

	report.TotalRecords = len(records)
	if len(records) == 0 {
		return report
	}

	var priced []models.PricedRecord
	companyTotals := make(map[string]float64)
	companyPriced := make(map[string]int)
	gradeTotals := make(map[string]float64)
	gradePriced := make(map[string]int)

	for _, r := range records {
		company := string(r.GradingCompany)
		if company == "" {
			company = string(models.CompanyUnknown)
		}
		report.ByCompany[company]++
		report.BySource[string(r.Source)]++
		if r.Grade != nil {
			report.ByGrade[FormatGrade(*r.Grade)]++
		}
		report.ImagesDownloaded += len(r.Images)

		if r.Price == nil {
			continue
		}
		priced = append(priced, models.PricedRecord{
			ListingID:      r.ListingID,
			Title:          r.Title,
			CardName:       r.CardName,
			GradingCompany: company,
			Grade:          r.Grade,
			Price:          *r.Price,
		})
		companyTotals[company] += *r.Price
		companyPriced[company]++
		if r.Grade != nil {
			g := FormatGrade(*r.Grade)
			gradeTotals[g] += *r.Price
			gradePriced[g]++
		}
	}

	report.PricedRecords = len(priced)
	if len(priced) == 0 {
		return report
	}

	prices := make([]float64, len(priced))
	report.MinPrice = priced[0].Price
	report.MaxPrice = priced[0].Price
	for i, p := range priced {
		prices[i] = p.Price
		report.TotalPrice += p.Price
		if p.Price < report.MinPrice {
			report.MinPrice = p.Price
		}
		if p.Price > report.MaxPrice {
			report.MaxPrice = p.Price
		}
	}
	report.MeanPrice = round2(report.TotalPrice / float64(len(priced)))
	report.MedianPrice = round2(median(prices))
	report.TotalPrice = round2(report.TotalPrice)

	for company, total := range companyTotals {
		report.AvgPriceByCompany[company] = round2(total / float64(companyPriced[company]))
	}
	for grade, total := range gradeTotals {
		report.AvgPriceByGrade[grade] = round2(total / float64(gradePriced[grade]))
	}

	// Stable sort keeps input order among equal prices, so the first
	// most expensive record wins ties.
	sort.SliceStable(priced, func(i, j int) bool {
		return priced[i].Price > priced[j].Price
	})
	top := priced[0]
	report.MostExpensive = &top
	if len(priced) > topExpensiveCount {
		priced = priced[:topExpensiveCount]
	}
	report.TopExpensive = priced

	s.logger.Debug("[stats] %d records, %d priced, mean $%.2f, median $%.2f",
		report.TotalRecords, report.PricedRecords, report.MeanPrice, report.MedianPrice)
	return report
}

// Print renders the report as console tables.
func (s *StatsService) Print(w io.Writer, r *models.StatsReport) {
	overview := newTable(w)
	overview.SetTitle("Graded Listing Statistics")
	overview.AppendRows([]table.Row{
		{"Total records", r.TotalRecords},
		{"Priced records", r.PricedRecords},
		{"Images downloaded", r.ImagesDownloaded},
	})
	if r.PricedRecords > 0 {
		overview.AppendSeparator()
		overview.AppendRows([]table.Row{
			{"Mean price", fmt.Sprintf("$%.2f", r.MeanPrice)},
			{"Median price", fmt.Sprintf("$%.2f", r.MedianPrice)},
			{"Minimum price", fmt.Sprintf("$%.2f", r.MinPrice)},
			{"Maximum price", fmt.Sprintf("$%.2f", r.MaxPrice)},
			{"Total value", fmt.Sprintf("$%.2f", r.TotalPrice)},
		})
	}
	overview.Render()

	companies := newTable(w)
	companies.SetTitle("By Grading Company")
	companies.AppendHeader(table.Row{"Company", "Listings", "Avg Price"})
	for _, c := range sortedKeys(r.ByCompany) {
		avg := "-"
		if v, ok := r.AvgPriceByCompany[c]; ok {
			avg = fmt.Sprintf("$%.2f", v)
		}
		companies.AppendRow(table.Row{c, r.ByCompany[c], avg})
	}
	companies.Render()

	grades := newTable(w)
	grades.SetTitle("By Grade / Source")
	grades.AppendHeader(table.Row{"Key", "Listings", "Avg Price"})
	for _, g := range sortedKeys(r.ByGrade) {
		avg := "-"
		if v, ok := r.AvgPriceByGrade[g]; ok {
			avg = fmt.Sprintf("$%.2f", v)
		}
		grades.AppendRow(table.Row{"grade " + g, r.ByGrade[g], avg})
	}
	grades.AppendSeparator()
	for _, src := range sortedKeys(r.BySource) {
		grades.AppendRow(table.Row{src, r.BySource[src], ""})
	}
	grades.Render()

	if len(r.TopExpensive) > 0 {
		top := newTable(w)
		top.SetTitle("Most Expensive Listings")
		top.AppendHeader(table.Row{"#", "Listing", "Title", "Company", "Grade", "Price"})
		for i, p := range r.TopExpensive {
			grade := "-"
			if p.Grade != nil {
				grade = FormatGrade(*p.Grade)
			}
			top.AppendRow(table.Row{i + 1, p.ListingID, truncate(p.Title, 50), p.GradingCompany, grade, fmt.Sprintf("$%.2f", p.Price)})
		}
		top.Render()
	}
}

// PrintSummary renders the outcome of a pipeline run.
func PrintSummary(w io.Writer, sum models.RunSummary) {
	t := newTable(w)
	t.SetTitle("Run " + sum.RunID)
	t.AppendRows([]table.Row{
		{"Fragments attempted", sum.Attempted},
		{"Records admitted", sum.Admitted},
		{"Duplicates", sum.Duplicates},
		{"Invalid", sum.Invalid},
		{"Images saved", sum.ImagesSaved},
		{"Images failed", sum.ImagesFailed},
		{"Images below minimum size", sum.ImagesTooSmall},
	})
	t.Render()
}

// PrintFilterResult renders rejection counts per reason code.
func PrintFilterResult(w io.Writer, res models.FilterResult) {
	t := newTable(w)
	t.SetTitle("Quality filter")
	t.AppendHeader(table.Row{"Reason", "Rows"})
	t.AppendRow(table.Row{models.ReasonKeep, len(res.Kept)})
	counts := res.ReasonCounts()
	for _, code := range []models.ReasonCode{
		models.ReasonGradeMismatch,
		models.ReasonMultiItem,
		models.ReasonSealedProduct,
		models.ReasonMemeListing,
		models.ReasonTooFewImages,
		models.ReasonMissingGrade,
	} {
		if counts[code] > 0 {
			t.AppendRow(table.Row{code, counts[code]})
		}
	}
	t.Render()
}

// PrintPurgeReport renders what an image purge did.
func PrintPurgeReport(w io.Writer, r PurgeReport) {
	t := newTable(w)
	t.SetTitle("Image purge")
	t.AppendRows([]table.Row{
		{"Listings", r.Listings},
		{"Files removed", r.Removed},
		{"Already missing", r.Missing},
		{"Refused", r.Refused},
		{"Failed", r.Failed},
		{"Directories removed", r.DirsRemoved},
	})
	t.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
