package storage

import (
	"context"

	"graded-cards-scraper/models"
)

// KeySource lists identity keys persisted by an earlier run.
type KeySource interface {
	ExistingKeys(ctx context.Context, sources ...models.Source) ([]string, error)
}

var _ KeySource = (*PostgresStore)(nil)
