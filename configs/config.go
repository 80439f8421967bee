package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	// PublicURL is the base of the browsable URL handed to the captioning
	// service and stored on each post, e.g. https://pub-xxxx.r2.dev
	PublicURL string
	Prefix    string
	// NewUploadsLimit bounds the listing used to find new uploads,
	// AvailabilityLimit the listing used to count available pictures.
	NewUploadsLimit   int
	AvailabilityLimit int
}

type Gemini struct {
	APIKey            string
	Model             string
	RequestsPerSecond int
}

type Config struct {
	PostgresURI  string
	RedisURI     string
	R2           R2
	Gemini       Gemini
	LedgerPath   string
	AuditLogPath string
	PollInterval time.Duration
	TimeZone     string
	StatusAddr   string
	SecretKey    string
	SentryDSN    string
	Environment  string
	LogLevel     string
	LogFile      string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("No .env file loaded, relying on environment variables")
	}

	return &Config{
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", ""),
		R2: R2{
			AccountID:         getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:         getEnv("R2_ACCESS_KEY", ""),
			SecretKey:         getEnv("R2_SECRET_KEY", ""),
			BucketName:        getEnv("R2_BUCKET_NAME", ""),
			PublicURL:         getEnv("R2_PUBLIC_URL", ""),
			Prefix:            getEnv("R2_PREFIX", ""),
			NewUploadsLimit:   getEnvAsInt("R2_NEW_UPLOADS_LIMIT", 100),
			AvailabilityLimit: getEnvAsInt("R2_AVAILABILITY_LIMIT", 500),
		},
		Gemini: Gemini{
			APIKey:            getEnv("GEMINI_API_KEY", ""),
			Model:             getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			RequestsPerSecond: getEnvAsInt("GEMINI_RPS", 1),
		},
		LedgerPath:   getEnv("LEDGER_PATH", "processed_images.json"),
		AuditLogPath: getEnv("AUDIT_LOG_PATH", "uploads_log.txt"),
		PollInterval: getEnvAsDuration("POLL_INTERVAL", 5*time.Second),
		TimeZone:     getEnv("SCHEDULE_TIMEZONE", "America/New_York"),
		StatusAddr:   getEnv("STATUS_ADDR", ""),
		SecretKey:    getEnv("SECRET_KEY", ""),
		SentryDSN:    getEnv("SENTRY_DSN", ""),
		Environment:  getEnv("APP_ENV", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
	}
}

// Validate reports the first missing setting the watcher cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.PostgresURI == "":
		return errors.New("POSTGRES_URI is required")
	case c.R2.AccountID == "" || c.R2.AccessKey == "" || c.R2.SecretKey == "":
		return errors.New("R2_ACCOUNT_ID, R2_ACCESS_KEY and R2_SECRET_KEY are required")
	case c.R2.BucketName == "":
		return errors.New("R2_BUCKET_NAME is required")
	case c.R2.PublicURL == "":
		return errors.New("R2_PUBLIC_URL is required")
	case c.Gemini.APIKey == "":
		return errors.New("GEMINI_API_KEY is required")
	case c.PollInterval <= 0:
		return errors.New("POLL_INTERVAL must be positive")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return errors.New("SCHEDULE_TIMEZONE is not a known time zone: " + c.TimeZone)
	}
	return nil
}

// Location returns the zone schedule hours are expressed in, UTC if the
// configured name cannot be resolved.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
