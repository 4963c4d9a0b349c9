package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

var manifestHeader = []string{"listing_id", "reason_code"}

// ErrBadManifest is returned for a manifest that is not listing_id,reason_code.
var ErrBadManifest = errors.New("malformed rejection manifest")

// ManifestEntry is one line of the rejection manifest.
type ManifestEntry struct {
	ListingID string
	Reason    models.ReasonCode
}

// WriteManifest writes the rejection manifest, replacing path atomically.
func WriteManifest(path string, rejected []models.Rejection) error {
	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(manifestHeader); err != nil {
			return err
		}
		for _, r := range rejected {
			if err := cw.Write([]string{r.ListingID, string(r.Reason)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("manifest: write %q: %w", path, err)
	}
	return nil
}

// ReadManifest loads a rejection manifest.
func ReadManifest(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("manifest: parse %q: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if !validManifestHeader(records[0]) {
		return nil, fmt.Errorf("manifest: %q: header %q: %w", path, strings.Join(records[0], ","), ErrBadManifest)
	}

	entries := make([]ManifestEntry, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(manifestHeader) {
			return nil, fmt.Errorf("manifest: %q: line %d has %d fields: %w", path, i+2, len(rec), ErrBadManifest)
		}
		entries = append(entries, ManifestEntry{ListingID: rec[0], Reason: models.ReasonCode(rec[1])})
	}
	return entries, nil
}

func validManifestHeader(h []string) bool {
	if len(h) != len(manifestHeader) {
		return false
	}
	for i, col := range h {
		if strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")) != manifestHeader[i] {
			return false
		}
	}
	return true
}
