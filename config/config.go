package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency   int
	ImageConcurrency int
	RateLimitMs      int
	ImageRateLimitMs int
	MaxRetries       int
	PagesToScrape    int
	ImageTimeout     time.Duration

	MinImageWidth  int
	MinImageHeight int
	MinImages      int
	RequireGrade   bool

	OutputDir      string
	ImagesDir      string
	VocabularyFile string
	ChromeBin      string
	LogLevel       string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	outputDir := getEnv("OUTPUT_DIR", "./output")

	return &Config{
		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "graded_cards"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency:   getEnvInt("MAX_CONCURRENCY", 3),
		ImageConcurrency: getEnvInt("IMAGE_CONCURRENCY", 4),
		RateLimitMs:      getEnvInt("RATE_LIMIT_MS", 2000),
		ImageRateLimitMs: getEnvInt("IMAGE_RATE_LIMIT_MS", 250),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		PagesToScrape:    getEnvInt("PAGES_TO_SCRAPE", 2),
		ImageTimeout:     time.Duration(getEnvInt("IMAGE_TIMEOUT_SEC", 20)) * time.Second,

		MinImageWidth:  getEnvInt("MIN_IMAGE_WIDTH", 400),
		MinImageHeight: getEnvInt("MIN_IMAGE_HEIGHT", 400),
		MinImages:      getEnvInt("MIN_IMAGES", 0),
		RequireGrade:   getEnvBool("REQUIRE_GRADE", false),

		OutputDir:      outputDir,
		ImagesDir:      getEnv("IMAGES_DIR", outputDir+"/images"),
		VocabularyFile: getEnv("VOCABULARY_FILE", ""),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
