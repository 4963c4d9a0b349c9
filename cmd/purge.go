package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"graded-cards-scraper/models"
	"graded-cards-scraper/services"
	"graded-cards-scraper/storage"
)

var (
	purgeManifest string
	purgeInput    string
)

func init() {
	f := purgeCmd.Flags()
	f.StringVar(&purgeManifest, "manifest", "", "rejection manifest (default <output>/rejected_manifest.csv)")
	f.StringVar(&purgeInput, "input", "", "CSV export the manifest was built from (default <output>/listings.csv)")
	rootCmd.AddCommand(purgeCmd)
}

var purgeCmd = &cobra.Command{
	Use:   "purge [--manifest rejected_manifest.csv] [--input listings.csv]",
	Short: "Deletes the stored images of every listing named in a rejection manifest.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}

		entries, err := storage.ReadManifest(orDefault(purgeManifest, e.output(manifestFile)))
		if err != nil {
			return err
		}
		rows, err := storage.ReadRowsFile(orDefault(purgeInput, e.output(listingsFile)))
		if err != nil {
			return err
		}

		rejected := matchManifest(entries, rows)
		e.logger.Info("[purge] %d manifest entries, %d matched CSV rows", len(entries), len(rejected))

		report, err := services.NewImagePurger(e.cfg.ImagesDir, e.logger).Purge(rejected)
		services.PrintPurgeReport(os.Stdout, report)
		return err
	},
}

// matchManifest pairs manifest entries with their CSV rows so the purger knows
// which image paths to remove. The manifest only carries listing IDs, so every
// row with a matching ID is included. Entries without a row are dropped.
func matchManifest(entries []storage.ManifestEntry, rows []models.Row) []models.Rejection {
	byID := make(map[string][]models.Row, len(rows))
	for _, r := range rows {
		byID[r.ListingID] = append(byID[r.ListingID], r)
	}

	var out []models.Rejection
	for _, e := range entries {
		for _, r := range byID[e.ListingID] {
			out = append(out, models.Rejection{ListingID: e.ListingID, Reason: e.Reason, Row: r})
		}
	}
	return out
}
