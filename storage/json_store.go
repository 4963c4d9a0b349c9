package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

// ErrNullElement is returned for a JSON array holding null in place of an object.
var ErrNullElement = errors.New("null element")

// WriteRecordsJSON writes records as a JSON array, replacing path atomically.
func WriteRecordsJSON(path string, records []*models.ListingRecord) error {
	if records == nil {
		records = []*models.ListingRecord{}
	}
	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	})
	if err != nil {
		return fmt.Errorf("json: write %q: %w", path, err)
	}
	return nil
}

// ReadRecordsJSON loads a JSON array of records.
func ReadRecordsJSON(path string) ([]*models.ListingRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("json: read %q: %w", path, err)
	}

	var records []*models.ListingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("json: parse %q: %w", path, err)
	}
	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("json: parse %q: element %d: %w", path, i, ErrNullElement)
		}
	}
	return records, nil
}

// ReadRawJSON loads raw listing fragments, for runs fed from a file instead
// of the browser.
func ReadRawJSON(path string) ([]*models.RawListing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("json: read %q: %w", path, err)
	}

	var raw []*models.RawListing
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("json: parse %q: %w", path, err)
	}
	for i, r := range raw {
		if r == nil {
			return nil, fmt.Errorf("json: parse %q: element %d: %w", path, i, ErrNullElement)
		}
	}
	return raw, nil
}

// ReadPreviousRecords loads the records of an earlier run for resuming. A
// missing file yields no records.
func ReadPreviousRecords(path string) ([]*models.ListingRecord, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return ReadRecordsJSON(path)
}
