package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

func writeImage(t *testing.T, base, rel string) {
	t.Helper()
	full := filepath.Join(base, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("jpg"), 0o644))
}

func TestPurgeIsIdempotent(t *testing.T) {
	base := t.TempDir()
	writeImage(t, base, "ebay/PSA/Charizard_1.jpg")
	writeImage(t, base, "ebay/PSA/Charizard_2.jpg")
	writeImage(t, base, "ebay/PSA/Keep_1.jpg")
	writeImage(t, base, "mercari/unknown/m1_1.jpg")

	rejected := []models.Rejection{
		{ListingID: "1", Reason: models.ReasonGradeMismatch, Row: models.Row{
			Source: "ebay", ListingID: "1", ImagePaths: []string{"ebay/PSA/Charizard_1.jpg", "ebay/PSA/Charizard_2.jpg"},
		}},
		{ListingID: "m1", Reason: models.ReasonMemeListing, Row: models.Row{
			Source: "mercari", ListingID: "m1", ImagePaths: []string{"mercari/unknown/m1_1.jpg"},
		}},
		{ListingID: "2", Reason: models.ReasonSealedProduct, Row: models.Row{Source: "ebay", ListingID: "2"}},
	}

	p := NewImagePurger(base, utils.Discard())

	report, err := p.Purge(rejected)
	require.NoError(t, err)
	assert.Equal(t, PurgeReport{Listings: 2, Removed: 3, DirsRemoved: 2}, report)

	assert.FileExists(t, filepath.Join(base, "ebay", "PSA", "Keep_1.jpg"))
	assert.NoDirExists(t, filepath.Join(base, "mercari"), "emptied directories are removed")
	assert.DirExists(t, base)

	report, err = p.Purge(rejected)
	require.NoError(t, err, "second run must not fail")
	assert.Equal(t, PurgeReport{Listings: 2, Missing: 3}, report)
}

func TestPurgeRefusesPathsOutsideBase(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "images")
	require.NoError(t, os.MkdirAll(base, 0o755))
	outside := filepath.Join(root, "precious.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

	p := NewImagePurger(base, utils.Discard())
	report, err := p.Purge([]models.Rejection{{
		ListingID: "x", Reason: models.ReasonMemeListing,
		Row: models.Row{ListingID: "x", ImagePaths: []string{"../precious.txt", outside}},
	}})

	assert.ErrorIs(t, err, ErrOutsideBaseDir)
	assert.Equal(t, 2, report.Refused)
	assert.FileExists(t, outside)
}
