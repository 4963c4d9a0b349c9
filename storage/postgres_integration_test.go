//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"graded-cards-scraper/models"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
	store     *PostgresStore
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("graded_cards"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	store, err := NewPostgresStoreFromDB(s.ctx, db)
	s.Require().NoError(err)
	s.store = store
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM graded_listings")
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) TestSaveAndFetchAll() {
	n, err := s.store.Save(s.ctx, sampleRecords())
	s.NoError(err)
	s.Equal(2, n)

	got, err := s.store.FetchAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(sampleRecords()[0].Images, got[0].Images)
	s.Equal(models.Float(10), got[0].Grade)
	s.Equal(models.Float(140), got[0].Price)
	s.Nil(got[1].Grade)
	s.Nil(got[1].Price)
	s.True(sampleRecords()[0].ScrapedAt.Equal(got[0].ScrapedAt))
}

func (s *PostgresStoreSuite) TestFirstWriteWins() {
	_, err := s.store.Save(s.ctx, sampleRecords()[:1])
	s.Require().NoError(err)

	changed := sampleRecords()[0]
	changed.Title = "a later title"
	n, err := s.store.Save(s.ctx, []*models.ListingRecord{changed})
	s.NoError(err)
	s.Equal(0, n)

	got, err := s.store.FetchAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(sampleRecords()[0].Title, got[0].Title)
}

func (s *PostgresStoreSuite) TestExistingKeys() {
	_, err := s.store.Save(s.ctx, sampleRecords())
	s.Require().NoError(err)

	keys, err := s.store.ExistingKeys(s.ctx)
	s.NoError(err)
	s.ElementsMatch([]string{"ebay/111", "mercari/m222"}, keys)

	keys, err = s.store.ExistingKeys(s.ctx, models.SourceMercari)
	s.NoError(err)
	s.Equal([]string{"mercari/m222"}, keys)
}
