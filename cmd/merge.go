package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"graded-cards-scraper/models"
	"graded-cards-scraper/storage"
)

var mergeOut string

func init() {
	mergeCmd.Flags().StringVarP(&mergeOut, "out", "o", "", "merged CSV (default <output>/listings_merged.csv)")
	rootCmd.AddCommand(mergeCmd)
}

var mergeCmd = &cobra.Command{
	Use:   "merge <a.csv> <b.csv> [...] [-o merged.csv]",
	Short: "Merges CSV exports, keeping the first row of every (source, listing_id).",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		out := orDefault(mergeOut, e.output("listings_merged.csv"))

		rows, dups, err := mergeFiles(args)
		if err != nil {
			return err
		}
		if err := storage.WriteRowsFile(out, rows); err != nil {
			return err
		}
		e.logger.Info("[merge] %d files -> %s: %d rows, %d duplicates dropped", len(args), out, len(rows), dups)
		return nil
	},
}

// mergeFiles reads every export in order and merges them. A file that cannot
// be read aborts the merge so no partial result is written.
func mergeFiles(paths []string) ([]models.Row, int, error) {
	if len(paths) == 0 {
		return nil, 0, errors.New("merge: no input files")
	}
	sets := make([][]models.Row, 0, len(paths))
	for _, p := range paths {
		rows, err := storage.ReadRowsFile(p)
		if err != nil {
			return nil, 0, err
		}
		sets = append(sets, rows)
	}
	rows, dups := storage.MergeRows(sets...)
	return rows, dups, nil
}
