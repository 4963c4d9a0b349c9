package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"graded-cards-scraper/models"
)

// ErrMissingColumn is returned when a CSV lacks a required column.
var ErrMissingColumn = errors.New("csv: missing required column")

// ReadRowsFile reads a tabular export from disk.
func ReadRowsFile(path string) ([]models.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadRows(f)
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", path, err)
	}
	return rows, nil
}

// ReadRows parses a tabular export. Columns are matched by header name, so
// files without the trailing title column still load.
func ReadRows(r io.Reader) ([]models.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("csv: header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range []string{"source", "listing_id"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	var rows []models.Row
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}

		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		rows = append(rows, models.Row{
			Source:         get("source"),
			ListingID:      get("listing_id"),
			CardName:       get("card_name"),
			GradingCompany: get("grading_company"),
			Grade:          get("grade"),
			Price:          get("price"),
			ListingURL:     get("listing_url"),
			ImageURLs:      splitList(get("image_urls")),
			ImagePaths:     splitList(get("image_paths")),
			ScrapedAt:      get("scraped_at"),
			Title:          get("title"),
		})
	}
	return rows, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ListSeparator)
}
