package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	LogLevel    string
	Port        string
	DatabaseURL string
	ProcessType string

	StorageBackend    string
	StoragePath       string
	StorageBaseURL    string
	StorageBucket     string
	StorageServiceKey string

	PollInterval        time.Duration
	MaxPollBackoff      time.Duration
	BatchSize           int
	MaxAttempts         int
	StaleAfter          time.Duration
	JobTimeout          time.Duration
	ShutdownGrace       time.Duration
	FetchMaxAttempts    int
	FetchInitialBackoff time.Duration
	FetchMaxBytes       int64

	OutputFormat  string
	OutputQuality int

	EnhancementConfigPath string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadDotEnv reads .env.local then .env when present. Variables already set
// in the environment win.
func LoadDotEnv() {
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	appEnv := getEnv("APP_ENV", "development")
	defaultLevel := "info"
	if appEnv == "development" {
		defaultLevel = "debug"
	}
	cfg := &Config{
		AppEnv:      appEnv,
		LogLevel:    getEnv("LOG_LEVEL", defaultLevel),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ProcessType: getEnv("PROCESS_TYPE", "enhancement"),

		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", "http")),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:    os.Getenv("STORAGE_BASE_URL"),
		StorageBucket:     getEnv("STORAGE_BUCKET", "retail-captures"),
		StorageServiceKey: os.Getenv("STORAGE_SERVICE_KEY"),

		PollInterval:        time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 30)),
		MaxPollBackoff:      time.Second * time.Duration(getEnvInt("MAX_POLL_BACKOFF_SECONDS", 300)),
		BatchSize:           getEnvInt("MAX_CONCURRENT_PROCESSING", 5),
		MaxAttempts:         getEnvInt("MAX_ATTEMPTS", 5),
		StaleAfter:          time.Minute * time.Duration(getEnvInt("STALE_JOB_MINUTES", 30)),
		JobTimeout:          time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 120)),
		ShutdownGrace:       time.Second * time.Duration(getEnvInt("SHUTDOWN_GRACE_SECONDS", 30)),
		FetchMaxAttempts:    getEnvInt("FETCH_MAX_ATTEMPTS", 3),
		FetchInitialBackoff: time.Millisecond * time.Duration(getEnvInt("FETCH_INITIAL_BACKOFF_MS", 1000)),
		FetchMaxBytes:       int64(getEnvInt("FETCH_MAX_MB", 50)) << 20,

		OutputFormat:  getEnv("OUTPUT_FORMAT", "jpeg"),
		OutputQuality: getEnvInt("OUTPUT_QUALITY", 95),

		EnhancementConfigPath: os.Getenv("ENHANCEMENT_CONFIG"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("TRIGGER_RATE_LIMIT_PER_MINUTE", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.StorageBackend {
	case "http":
		if c.StorageBaseURL == "" {
			return errors.New("STORAGE_BASE_URL is required for the http storage backend")
		}
	case "file":
		if c.StoragePath == "" {
			return errors.New("STORAGE_PATH is required for the file storage backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be http or file, got %q", c.StorageBackend)
	}
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL_SECONDS must be positive")
	}
	if c.MaxPollBackoff < c.PollInterval {
		c.MaxPollBackoff = c.PollInterval
	}
	if c.BatchSize < 1 {
		return errors.New("MAX_CONCURRENT_PROCESSING must be at least 1")
	}
	if c.MaxAttempts < 0 {
		return errors.New("MAX_ATTEMPTS must not be negative")
	}
	if c.JobTimeout <= 0 {
		return errors.New("JOB_TIMEOUT_SECONDS must be positive")
	}
	if c.FetchMaxAttempts < 1 {
		return errors.New("FETCH_MAX_ATTEMPTS must be at least 1")
	}
	if c.FetchMaxBytes <= 0 {
		return errors.New("FETCH_MAX_MB must be positive")
	}
	if c.OutputQuality < 95 || c.OutputQuality > 100 {
		return fmt.Errorf("OUTPUT_QUALITY must be between 95 and 100, got %d", c.OutputQuality)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
