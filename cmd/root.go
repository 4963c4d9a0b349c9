package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"graded-cards-scraper/config"
	"graded-cards-scraper/utils"
)

var (
	logLevel  string
	vocabFile string
	outputDir string
)

var rootCmd = &cobra.Command{
	Use:          "graded-cards",
	Short:        "graded-cards collects graded trading-card listings and builds a clean dataset from them.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default from LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&vocabFile, "vocabulary", "", "YAML vocabulary file (default from VOCABULARY_FILE)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output", "", "output directory (default from OUTPUT_DIR)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ExecuteContext(context.Background())
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command needs: configuration, a logger at the requested
// level and the vocabulary table.
type env struct {
	cfg    *config.Config
	logger *utils.Logger
	vocab  config.Vocabulary
}

func loadEnv() (*env, error) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if vocabFile != "" {
		cfg.VocabularyFile = vocabFile
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
		cfg.ImagesDir = filepath.Join(outputDir, "images")
	}

	logger := utils.NewLogger()
	logger.SetLevel(utils.ParseLevel(cfg.LogLevel))

	vocab, err := config.LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, vocab: vocab}, nil
}

func (e *env) output(name string) string {
	return filepath.Join(e.cfg.OutputDir, name)
}
