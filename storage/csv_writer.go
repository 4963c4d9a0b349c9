package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"graded-cards-scraper/models"
)

// ListSeparator joins list columns (image URLs and paths) in one CSV cell.
// Marketplace image URLs may contain commas but never a pipe.
const ListSeparator = "|"

// Header is the fixed column order of the tabular export.
var Header = []string{
	"source", "listing_id", "card_name", "grading_company", "grade", "price",
	"listing_url", "image_urls", "image_paths", "scraped_at", "title",
}

// RecordRow renders a record as a table row. Missing values become "".
func RecordRow(r *models.ListingRecord) models.Row {
	row := models.Row{
		Source:         string(r.Source),
		ListingID:      r.ListingID,
		CardName:       r.CardName,
		GradingCompany: string(r.GradingCompany),
		ListingURL:     r.ListingURL,
		ImageURLs:      r.ImageURLs,
		ImagePaths:     r.ImagePaths(),
		Title:          r.Title,
	}
	if r.Grade != nil {
		row.Grade = strconv.FormatFloat(*r.Grade, 'f', -1, 64)
	}
	if r.Price != nil {
		row.Price = strconv.FormatFloat(*r.Price, 'f', 2, 64)
	}
	if !r.ScrapedAt.IsZero() {
		row.ScrapedAt = r.ScrapedAt.UTC().Format(time.RFC3339)
	}
	return row
}

func rowFields(r models.Row) []string {
	return []string{
		r.Source,
		r.ListingID,
		r.CardName,
		r.GradingCompany,
		r.Grade,
		r.Price,
		r.ListingURL,
		strings.Join(r.ImageURLs, ListSeparator),
		strings.Join(r.ImagePaths, ListSeparator),
		r.ScrapedAt,
		r.Title,
	}
}

// ErrNilRecord is returned when a record slice holds a nil entry.
var ErrNilRecord = errors.New("nil record")

// CSVWriter streams rows into a temporary file next to the destination and
// only renames it into place on Close. A writer that is aborted, or whose
// Close fails, leaves any previous file at the destination untouched.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	buf    *bufio.Writer
	writer *csv.Writer
	done   bool
}

// NewCSVWriter creates the temporary file and writes the header row.
// Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("csv: create temp for %q: %w", path, err)
	}

	buf := bufio.NewWriter(f)
	w := csv.NewWriter(buf)
	if err := w.Write(Header); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("csv: write header: %w", err)
	}

	return &CSVWriter{path: path, file: f, buf: buf, writer: w}, nil
}

// WriteRows appends rows in order.
func (c *CSVWriter) WriteRows(rows []models.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return fmt.Errorf("csv: write to closed writer %q", c.path)
	}
	for _, r := range rows {
		if err := c.writer.Write(rowFields(r)); err != nil {
			return fmt.Errorf("csv: write row %s: %w", r.ListingID, err)
		}
	}
	return nil
}

// Write renders records and appends them in order.
func (c *CSVWriter) Write(records []*models.ListingRecord) error {
	rows := make([]models.Row, 0, len(records))
	for i, r := range records {
		if r == nil {
			return fmt.Errorf("csv: record %d: %w", i, ErrNilRecord)
		}
		rows = append(rows, RecordRow(r))
	}
	return c.WriteRows(rows)
}

// Close flushes the temporary file and renames it over the destination.
func (c *CSVWriter) Close() (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return nil
	}
	c.done = true
	tmp := c.file.Name()
	defer func() {
		if err != nil {
			_ = c.file.Close()
			_ = os.Remove(tmp)
		}
	}()

	c.writer.Flush()
	if err = c.writer.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err = c.buf.Flush(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err = c.file.Sync(); err != nil {
		return fmt.Errorf("csv: sync: %w", err)
	}
	if err = c.file.Close(); err != nil {
		return fmt.Errorf("csv: close: %w", err)
	}
	if err = os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("csv: rename into %q: %w", c.path, err)
	}
	return nil
}

// Abort discards everything written so far. It is a no-op after Close, so it
// can be deferred.
func (c *CSVWriter) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return
	}
	c.done = true
	_ = c.file.Close()
	_ = os.Remove(c.file.Name())
}

// WriteRowsFile writes a complete CSV file in one go.
func WriteRowsFile(path string, rows []models.Row) error {
	w, err := NewCSVWriter(path)
	if err != nil {
		return err
	}
	defer w.Abort()

	if err := w.WriteRows(rows); err != nil {
		return err
	}
	return w.Close()
}

// WriteRecordsFile renders records and writes them as a CSV file.
func WriteRecordsFile(path string, records []*models.ListingRecord) error {
	w, err := NewCSVWriter(path)
	if err != nil {
		return err
	}
	defer w.Abort()

	if err := w.Write(records); err != nil {
		return err
	}
	return w.Close()
}
