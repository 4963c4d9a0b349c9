package models

// Row is one line of the tabular export, kept as the rendered strings so the
// quality filter can round-trip it without reformatting.
type Row struct {
	Source         string
	ListingID      string
	CardName       string
	GradingCompany string
	Grade          string
	Price          string
	ListingURL     string
	ImageURLs      []string
	ImagePaths     []string
	ScrapedAt      string
	Title          string
}

// PricedRecord is a compact view of a record used in the stats report.
type PricedRecord struct {
	ListingID      string   `json:"listing_id"`
	Title          string   `json:"title"`
	CardName       string   `json:"card_name"`
	GradingCompany string   `json:"grading_company"`
	Grade          *float64 `json:"grade"`
	Price          float64  `json:"price"`
}

// StatsReport holds the aggregate statistics over a record collection.
type StatsReport struct {
	TotalRecords      int                `json:"total_records"`
	PricedRecords     int                `json:"priced_records"`
	MeanPrice         float64            `json:"mean_price"`
	MedianPrice       float64            `json:"median_price"`
	TotalPrice        float64            `json:"total_price"`
	MinPrice          float64            `json:"min_price"`
	MaxPrice          float64            `json:"max_price"`
	ByCompany         map[string]int     `json:"by_company"`
	ByGrade           map[string]int     `json:"by_grade"`
	BySource          map[string]int     `json:"by_source"`
	AvgPriceByCompany map[string]float64 `json:"avg_price_by_company"`
	AvgPriceByGrade   map[string]float64 `json:"avg_price_by_grade"`
	ImagesDownloaded  int                `json:"images_downloaded"`
	MostExpensive     *PricedRecord      `json:"most_expensive"`
	TopExpensive      []PricedRecord     `json:"top_expensive"`
}

// RunSummary reports what happened to every fragment in a pipeline run.
type RunSummary struct {
	RunID          string `json:"run_id"`
	Attempted      int    `json:"attempted"`
	Admitted       int    `json:"admitted"`
	Duplicates     int    `json:"duplicates"`
	Invalid        int    `json:"invalid"`
	ImagesSaved    int    `json:"images_saved"`
	ImagesFailed   int    `json:"images_failed"`
	ImagesTooSmall int    `json:"images_too_small"`
}
