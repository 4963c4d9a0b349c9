package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"graded-cards-scraper/models"
	"graded-cards-scraper/services"
	"graded-cards-scraper/storage"
)

var (
	convertInput        string
	convertCSV          string
	convertQuiet        bool
	convertBatch        string
	convertBatchOut     string
	convertFromPostgres bool
)

func init() {
	f := convertCmd.Flags()
	f.StringVar(&convertInput, "input", "", "JSON records file (default <output>/records.json)")
	f.StringVar(&convertCSV, "csv", "", "CSV file to write (default <output>/listings.csv)")
	f.BoolVar(&convertQuiet, "quiet", false, "do not print the statistics table")
	f.StringVar(&convertBatch, "batch", "", "convert every *.json records file in this directory")
	f.StringVar(&convertBatchOut, "batch-out", "", "directory for batch output (default: the --batch directory)")
	f.BoolVar(&convertFromPostgres, "from-postgres", false, "read records from PostgreSQL instead of a JSON file")
	convertCmd.MarkFlagsMutuallyExclusive("batch", "input", "from-postgres")
	rootCmd.AddCommand(convertCmd)
}

var convertCmd = &cobra.Command{
	Use:   "convert [--input records.json | --from-postgres | --batch <dir>] [--csv listings.csv]",
	Short: "Converts JSON records into the CSV export and statistics files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}

		if convertBatch != "" {
			n, failed, err := convertDir(e, convertBatch, orDefault(convertBatchOut, convertBatch))
			if err != nil {
				return err
			}
			e.logger.Info("[convert] Batch done: %d converted, %d failed", n, len(failed))
			if len(failed) > 0 {
				return fmt.Errorf("convert: %d files failed: %s", len(failed), strings.Join(failed, ", "))
			}
			return nil
		}

		records, err := loadRecords(cmd.Context(), e)
		if err != nil {
			return err
		}
		report, err := convert(e, records, orDefault(convertCSV, e.output(listingsFile)))
		if err != nil {
			return err
		}
		if !convertQuiet {
			services.NewStatsService(e.logger).Print(os.Stdout, report)
		}
		return nil
	},
}

func loadRecords(ctx context.Context, e *env) ([]*models.ListingRecord, error) {
	if !convertFromPostgres {
		return storage.ReadRecordsJSON(orDefault(convertInput, e.output(recordsFile)))
	}
	pg, err := storage.NewPostgresStore(e.cfg.DSN())
	if err != nil {
		return nil, err
	}
	defer pg.Close()

	records, err := pg.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("[convert] Loaded %d records from PostgreSQL", len(records))
	return records, nil
}

// convert writes the CSV export to csvPath and the statistics files next to
// it. Nothing is written for a step that fails, and earlier files stay intact.
func convert(e *env, records []*models.ListingRecord, csvPath string) (*models.StatsReport, error) {
	dir := filepath.Dir(csvPath)
	report, err := convertTo(e, records, csvPath, filepath.Join(dir, statsTextFile), filepath.Join(dir, statsJSONFile))
	if err != nil {
		return nil, err
	}
	e.logger.Info("[convert] %d records -> %s (stats in %s)", len(records), csvPath, dir)
	return report, nil
}

func convertTo(e *env, records []*models.ListingRecord, csvPath, textPath, jsonPath string) (*models.StatsReport, error) {
	if err := storage.WriteRecordsFile(csvPath, records); err != nil {
		return nil, err
	}
	report := services.NewStatsService(e.logger).Generate(records)
	if err := storage.WriteStatsTextFile(textPath, report); err != nil {
		return nil, err
	}
	if err := storage.WriteStatsJSONFile(jsonPath, report); err != nil {
		return nil, err
	}
	return report, nil
}

// convertDir converts every *.json file in dir to <name>.csv plus
// <name>_stats.txt and <name>_stats.json in outDir. A file that fails is
// logged and skipped; its name is returned in failed.
func convertDir(e *env, dir, outDir string) (converted int, failed []string, err error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, nil, fmt.Errorf("convert: list %q: %w", dir, err)
	}
	if len(paths) == 0 {
		return 0, nil, errors.New("convert: no JSON files in " + dir)
	}
	sort.Strings(paths)

	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		records, err := storage.ReadRecordsJSON(p)
		if err == nil {
			_, err = convertTo(e, records,
				filepath.Join(outDir, name+".csv"),
				filepath.Join(outDir, name+"_stats.txt"),
				filepath.Join(outDir, name+"_stats.json"))
		}
		if err != nil {
			e.logger.Error("[convert] Skipping %s: %v", p, err)
			failed = append(failed, filepath.Base(p))
			continue
		}
		e.logger.Info("[convert] %s -> %s.csv (%d records)", filepath.Base(p), name, len(records))
		converted++
	}
	return converted, failed, nil
}
