package storage

import (
	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

// MergeRows concatenates CSV exports and drops repeated (source, listing_id)
// rows. The first occurrence wins and order is otherwise preserved. Rows
// without a listing ID cannot be matched and are always kept.
func MergeRows(sets ...[]models.Row) (merged []models.Row, duplicates int) {
	seen := utils.NewKeySet()
	merged = []models.Row{}
	for _, rows := range sets {
		for _, r := range rows {
			if r.ListingID != "" && !seen.Add(models.RecordKey(models.Source(r.Source), r.ListingID)) {
				duplicates++
				continue
			}
			merged = append(merged, r)
		}
	}
	return merged, duplicates
}
