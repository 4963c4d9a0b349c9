package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graded-cards-scraper/config"
	"graded-cards-scraper/models"
	"graded-cards-scraper/services"
	"graded-cards-scraper/storage"
	"graded-cards-scraper/utils"
)

func TestMatchManifest(t *testing.T) {
	rows := []models.Row{
		{Source: "ebay", ListingID: "1", ImagePaths: []string{"ebay/PSA/a_1.jpg"}},
		{Source: "ebay", ListingID: "2", ImagePaths: []string{"ebay/PSA/b_1.jpg"}},
		{Source: "mercari", ListingID: "1", ImagePaths: []string{"mercari/PSA/c_1.jpg"}},
	}
	entries := []storage.ManifestEntry{
		{ListingID: "1", Reason: models.ReasonMemeListing},
		{ListingID: "gone", Reason: models.ReasonMultiItem},
	}

	got := matchManifest(entries, rows)
	assert.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, "1", r.ListingID)
		assert.Equal(t, models.ReasonMemeListing, r.Reason)
	}
	assert.Equal(t, "ebay", got[0].Row.Source)
	assert.Equal(t, "mercari", got[1].Row.Source)
}

func TestParseSources(t *testing.T) {
	got, err := parseSources([]string{"eBay", " mercari "})
	assert.NoError(t, err)
	assert.Equal(t, []models.Source{models.SourceEbay, models.SourceMercari}, got)

	_, err = parseSources([]string{"amazon"})
	assert.Error(t, err)
}

type stubKeys []string

func (s stubKeys) ExistingKeys(_ context.Context, _ ...models.Source) ([]string, error) {
	return s, nil
}

func TestSeedFrom(t *testing.T) {
	b := services.NewBuilder(utils.Discard())
	n, err := seedFrom(context.Background(), b, stubKeys{"ebay/1", "mercari/m2"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, b.Seen(models.SourceEbay, "1"))
	assert.False(t, b.Seen(models.SourceEbay, "2"))
}

func testEnv(t *testing.T) *env {
	t.Helper()
	return &env{cfg: &config.Config{OutputDir: t.TempDir()}, logger: utils.Discard(), vocab: config.DefaultVocabulary()}
}

func TestConvertDirSkipsBadFiles(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	rec := &models.ListingRecord{Source: models.SourceEbay, ListingID: "1", GradingCompany: models.CompanyPSA, Images: []models.Image{}}
	require.NoError(t, storage.WriteRecordsJSON(filepath.Join(in, "a.json"), []*models.ListingRecord{rec}))
	require.NoError(t, os.WriteFile(filepath.Join(in, "b.json"), []byte("[null]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("x"), 0o644))

	n, failed, err := convertDir(testEnv(t), in, out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"b.json"}, failed)

	rows, err := storage.ReadRowsFile(filepath.Join(out, "a.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].ListingID)
	assert.FileExists(t, filepath.Join(out, "a_stats.txt"))
	assert.FileExists(t, filepath.Join(out, "a_stats.json"))
	assert.NoFileExists(t, filepath.Join(out, "b.csv"))
}

func TestConvertDirEmpty(t *testing.T) {
	_, _, err := convertDir(testEnv(t), t.TempDir(), t.TempDir())
	assert.Error(t, err)
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, storage.WriteRowsFile(a, []models.Row{
		{Source: "ebay", ListingID: "1", Title: "first"},
	}))
	require.NoError(t, storage.WriteRowsFile(b, []models.Row{
		{Source: "ebay", ListingID: "1", Title: "second"},
		{Source: "mercari", ListingID: "1", Title: "other source"},
	}))

	rows, dups, err := mergeFiles([]string{a, b})
	require.NoError(t, err)
	assert.Equal(t, 1, dups)
	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0].Title)
	assert.Equal(t, "other source", rows[1].Title)

	_, _, err = mergeFiles([]string{a, filepath.Join(dir, "missing.csv")})
	assert.Error(t, err)
}
