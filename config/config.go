package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// StorageBackend selects "postgres" or "memory".
	StorageBackend string

	TargetURL      string
	PagesToScrape  int
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	ChromeBin      string

	ScrapeInterval   time.Duration
	ExtractTimeout   time.Duration
	TransformTimeout time.Duration

	Port string
}

// Load reads the .env file and returns a populated Config struct.
// Call Validate before using it; a bad schedule or timeout is fatal.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "etl"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "etl123"),
		PostgresDB:       getEnv("POSTGRES_DB", "coin_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		StorageBackend: getEnv("STORAGE_BACKEND", "postgres"),

		TargetURL:      getEnv("TARGET_URL", "https://www.numiscorner.com/collections/antique-greek"),
		PagesToScrape:  getEnvInt("PAGES_TO_SCRAPE", 1),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		ChromeBin:      getEnv("CHROME_BIN", ""),

		ScrapeInterval:   getEnvDuration("SCRAPE_INTERVAL", 5*time.Minute),
		ExtractTimeout:   getEnvDuration("EXTRACT_TIMEOUT", 90*time.Second),
		TransformTimeout: getEnvDuration("TRANSFORM_TIMEOUT", 30*time.Second),

		Port: getEnv("PORT", "3000"),
	}
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	if c.ScrapeInterval < time.Second {
		return fmt.Errorf("config: SCRAPE_INTERVAL %s is below 1s", c.ScrapeInterval)
	}
	if c.ExtractTimeout <= 0 || c.TransformTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	// RetryConfig.Do never invokes fn with zero attempts, so a non-positive
	// value would turn every retried operation into a silent no-op.
	if c.MaxRetries < 1 {
		return fmt.Errorf("config: MAX_RETRIES must be at least 1, got %d", c.MaxRetries)
	}
	if c.StorageBackend != "postgres" && c.StorageBackend != "memory" {
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.TargetURL == "" {
		return fmt.Errorf("config: TARGET_URL must not be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("config: PORT %q is not numeric", c.Port)
	}
	return nil
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
		log.Printf("[config] %s=%q is not a duration, using %s", key, val, fallback)
	}
	return fallback
}
