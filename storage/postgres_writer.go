package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"graded-cards-scraper/models"
)

// PostgresStore persists admitted records to PostgreSQL. The first write of
// a (source, listing_id) wins; later writes of the same key are ignored.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects, waiting for the server to come up, and runs
// the schema migration.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return NewPostgresStoreFromDB(context.Background(), db)
}

// NewPostgresStoreFromDB wraps an open connection and migrates the schema.
func NewPostgresStoreFromDB(ctx context.Context, db *sqlx.DB) (*PostgresStore, error) {
	ps := &PostgresStore{db: db}
	if err := ps.migrate(ctx); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS graded_listings (
			id              SERIAL PRIMARY KEY,
			source          VARCHAR(32)   NOT NULL,
			listing_id      TEXT          NOT NULL,
			title           TEXT          NOT NULL DEFAULT '',
			card_name       TEXT          NOT NULL DEFAULT '',
			grading_company VARCHAR(16)   NOT NULL DEFAULT 'unknown',
			grade           NUMERIC(3,1),
			price           NUMERIC(12,2),
			listing_url     TEXT          NOT NULL DEFAULT '',
			image_urls      TEXT[]        NOT NULL DEFAULT '{}',
			images          JSONB         NOT NULL DEFAULT '[]',
			scraped_at      TIMESTAMPTZ   NOT NULL,
			UNIQUE (source, listing_id)
		);

		CREATE INDEX IF NOT EXISTS idx_graded_listings_company ON graded_listings(grading_company);
		CREATE INDEX IF NOT EXISTS idx_graded_listings_grade   ON graded_listings(grade);
		CREATE INDEX IF NOT EXISTS idx_graded_listings_price   ON graded_listings(price);
	`)
	return err
}

// Save batch-inserts records and returns how many were new.
func (ps *PostgresStore) Save(ctx context.Context, records []*models.ListingRecord) (int, error) {
	const batchSize = 50

	inserted := 0
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		n, err := ps.insertBatch(ctx, records[i:end])
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

const columnsPerRow = 11

func (ps *PostgresStore) insertBatch(ctx context.Context, batch []*models.ListingRecord) (int, error) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*columnsPerRow)

	for idx, r := range batch {
		images, err := json.Marshal(r.Images)
		if err != nil {
			return 0, fmt.Errorf("postgres: encode images for %s: %w", r.Key(), err)
		}

		placeholders := make([]string, columnsPerRow)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*columnsPerRow+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			string(r.Source), r.ListingID, r.Title, r.CardName, string(r.GradingCompany),
			r.Grade, r.Price, r.ListingURL, pq.Array(r.ImageURLs), string(images), r.ScrapedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO graded_listings (
			source, listing_id, title, card_name, grading_company,
			grade, price, listing_url, image_urls, images, scraped_at
		)
		VALUES %s
		ON CONFLICT (source, listing_id) DO NOTHING
	`, strings.Join(valueStrings, ","))

	res, err := ps.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert batch: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type listingRow struct {
	Source         string          `db:"source"`
	ListingID      string          `db:"listing_id"`
	Title          string          `db:"title"`
	CardName       string          `db:"card_name"`
	GradingCompany string          `db:"grading_company"`
	Grade          sql.NullFloat64 `db:"grade"`
	Price          sql.NullFloat64 `db:"price"`
	ListingURL     string          `db:"listing_url"`
	ImageURLs      pq.StringArray  `db:"image_urls"`
	Images         []byte          `db:"images"`
	ScrapedAt      time.Time       `db:"scraped_at"`
}

func (lr listingRow) record() (*models.ListingRecord, error) {
	rec := &models.ListingRecord{
		Source:         models.Source(lr.Source),
		ListingID:      lr.ListingID,
		Title:          lr.Title,
		CardName:       lr.CardName,
		GradingCompany: models.GradingCompany(lr.GradingCompany),
		ListingURL:     lr.ListingURL,
		ImageURLs:      []string(lr.ImageURLs),
		Images:         []models.Image{},
		ScrapedAt:      lr.ScrapedAt.UTC(),
	}
	if lr.Grade.Valid {
		rec.Grade = models.Float(lr.Grade.Float64)
	}
	if lr.Price.Valid {
		rec.Price = models.Float(lr.Price.Float64)
	}
	if rec.ImageURLs == nil {
		rec.ImageURLs = []string{}
	}
	if len(lr.Images) > 0 {
		if err := json.Unmarshal(lr.Images, &rec.Images); err != nil {
			return nil, fmt.Errorf("postgres: decode images for %s: %w", rec.Key(), err)
		}
	}
	return rec, nil
}

// FetchAll retrieves every stored record in insertion order.
func (ps *PostgresStore) FetchAll(ctx context.Context) ([]*models.ListingRecord, error) {
	var rows []listingRow
	err := ps.db.SelectContext(ctx, &rows, `
		SELECT source, listing_id, title, card_name, grading_company, grade, price,
		       listing_url, image_urls, images, scraped_at
		FROM graded_listings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}

	records := make([]*models.ListingRecord, 0, len(rows))
	for _, lr := range rows {
		rec, err := lr.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ExistingKeys returns the identity keys already stored, optionally limited
// to some sources.
func (ps *PostgresStore) ExistingKeys(ctx context.Context, sources ...models.Source) ([]string, error) {
	query := `SELECT source, listing_id FROM graded_listings`
	var args []interface{}
	if len(sources) > 0 {
		names := make([]string, len(sources))
		for i, s := range sources {
			names[i] = string(s)
		}
		query += ` WHERE source = ANY($1)`
		args = append(args, pq.Array(names))
	}

	rows, err := ps.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: existing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var source, id string
		if err := rows.Scan(&source, &id); err != nil {
			return nil, fmt.Errorf("postgres: scan key: %w", err)
		}
		keys = append(keys, models.RecordKey(models.Source(source), id))
	}
	return keys, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
