package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Dataset sources.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatasetPath   string
	DatasetSource string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	SQLitePath string

	ServerAddr   string
	MaxUploadMB  int
	PanelCacheOn bool

	MaxConcurrency  int
	RateLimitMs     int
	MaxRetries      int
	PagesToScrape   int
	ListingsPerPage int
	ScrapeStartURL  string
	CSVOutputPath   string
	ChromeBin       string

	Debug bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	return &Config{
		DatasetPath:   getEnv("DATASET_PATH", "./data/modele_webapp_prix.xlsx"),
		DatasetSource: strings.ToLower(getEnv("DATASET_SOURCE", SourceFile)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "pricer"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "pricer123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		SQLitePath: getEnv("SQLITE_PATH", "./data/listings.db"),

		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		MaxUploadMB:  getEnvInt("MAX_UPLOAD_MB", 20),
		PanelCacheOn: getEnvBool("PANEL_CACHE", true),

		MaxConcurrency:  getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		PagesToScrape:   getEnvInt("PAGES_TO_SCRAPE", 2),
		ListingsPerPage: getEnvInt("LISTINGS_PER_PAGE", 20),
		ScrapeStartURL:  getEnv("SCRAPE_START_URL", ""),
		CSVOutputPath:   getEnv("CSV_OUTPUT_PATH", "./output/scraped_listings.csv"),
		ChromeBin:       getEnv("CHROME_BIN", ""),

		Debug: getEnvBool("DEBUG", false),
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
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
