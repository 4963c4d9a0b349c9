package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"graded-cards-scraper/services"
	"graded-cards-scraper/storage"
)

const (
	filteredFile = "listings_filtered.csv"
	manifestFile = "rejected_manifest.csv"
)

var (
	filterInput    string
	filterOut      string
	filterManifest string
	filterPurge    bool
)

func init() {
	f := filterCmd.Flags()
	f.StringVar(&filterInput, "input", "", "CSV export to filter (default <output>/listings.csv)")
	f.StringVar(&filterOut, "out", "", "filtered CSV (default <output>/listings_filtered.csv)")
	f.StringVar(&filterManifest, "manifest", "", "rejection manifest (default <output>/rejected_manifest.csv)")
	f.BoolVar(&filterPurge, "purge", false, "delete the stored images of rejected rows after writing the manifest")
	rootCmd.AddCommand(filterCmd)
}

var filterCmd = &cobra.Command{
	Use:   "filter [--input listings.csv] [--purge]",
	Short: "Rejects mismatched, multi-item, sealed and meme listings and writes a manifest.",
	Long: "Classifies every row of the CSV export, writes the kept rows and a manifest of " +
		"rejected listing IDs with reason codes. Images are only deleted with --purge, " +
		"or later with the purge command.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		input := orDefault(filterInput, e.output(listingsFile))
		out := orDefault(filterOut, e.output(filteredFile))
		manifest := orDefault(filterManifest, e.output(manifestFile))

		rows, err := storage.ReadRowsFile(input)
		if err != nil {
			return err
		}

		qf, err := services.NewQualityFilter(e.vocab, services.FilterOptions{
			MinImages:    e.cfg.MinImages,
			RequireGrade: e.cfg.RequireGrade,
			Workers:      e.cfg.MaxConcurrency,
		}, e.logger)
		if err != nil {
			return err
		}
		res := qf.Filter(rows)

		if err := storage.WriteRowsFile(out, res.Kept); err != nil {
			return err
		}
		if err := storage.WriteManifest(manifest, res.Rejected); err != nil {
			return err
		}
		e.logger.Info("[filter] Kept rows -> %s, manifest -> %s", out, manifest)
		services.PrintFilterResult(os.Stdout, res)

		if !filterPurge {
			return nil
		}
		report, err := services.NewImagePurger(e.cfg.ImagesDir, e.logger).Purge(res.Rejected)
		services.PrintPurgeReport(os.Stdout, report)
		return err
	},
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
