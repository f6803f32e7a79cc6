// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTP settings
	Port string

	// Gemini settings
	GeminiAPIKey      string
	GeminiModel       string
	MaxEscalations    int // per-day cap on external classification calls (0 = unlimited)
	EscalationTimeout time.Duration

	// Ingestion settings
	SourcesPath     string
	CategoriesPath  string
	FetchBatchSize  int // feeds fetched concurrently
	MaxPerFeed      int // entries taken per feed
	Freshness       time.Duration
	FetchTimeout    time.Duration
	DescriptionMax  int // runes kept from a cleaned description
	DedupByTitle    bool

	// Cache settings
	MaxItems        int // snapshot cap
	CacheDuration   time.Duration
	RefreshInterval time.Duration // how often the background loop checks staleness
	SnapshotPath    string        // "" disables snapshot persistence

	// Feedback store settings
	DatabaseURL string

	// App settings
	Debug         bool
	RetryAttempts int
	RetryDelay    time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		Port:              "8080",
		GeminiModel:       "gemini-1.5-flash",
		MaxEscalations:    200,
		EscalationTimeout: 15 * time.Second,
		SourcesPath:       "configs/sources.yaml",
		CategoriesPath:    "configs/categories.yaml",
		FetchBatchSize:    5,
		MaxPerFeed:        15,
		Freshness:         72 * time.Hour,
		FetchTimeout:      10 * time.Second,
		DescriptionMax:    300,
		MaxItems:          150,
		CacheDuration:     12 * time.Hour,
		RefreshInterval:   30 * time.Minute,
		SnapshotPath:      "snapshot.json",
		RetryAttempts:     3,
		RetryDelay:        5 * time.Second,
	}

	// Load from environment
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.SourcesPath = getEnvOrDefault("SOURCES_CONFIG_PATH", cfg.SourcesPath)
	cfg.CategoriesPath = getEnvOrDefault("CATEGORIES_CONFIG_PATH", cfg.CategoriesPath)
	cfg.SnapshotPath = getEnvOrDefault("SNAPSHOT_PATH", cfg.SnapshotPath)

	cfg.MaxEscalations = getEnvIntOrDefault("MAX_ESCALATIONS", cfg.MaxEscalations)
	cfg.FetchBatchSize = getEnvIntOrDefault("FETCH_BATCH_SIZE", cfg.FetchBatchSize)
	cfg.MaxPerFeed = getEnvIntOrDefault("MAX_NEWS_PER_FEED", cfg.MaxPerFeed)
	cfg.DescriptionMax = getEnvIntOrDefault("DESCRIPTION_MAX_RUNES", cfg.DescriptionMax)
	cfg.MaxItems = getEnvIntOrDefault("MAX_NEWS_ITEMS", cfg.MaxItems)
	cfg.RetryAttempts = getEnvIntOrDefault("RETRY_ATTEMPTS", cfg.RetryAttempts)

	if v := os.Getenv("NEWS_FRESHNESS_HOURS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.Freshness = time.Duration(val) * time.Hour
		}
	}
	if v := os.Getenv("CACHE_DURATION_HOURS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.CacheDuration = time.Duration(val) * time.Hour
		}
	}
	if v := os.Getenv("REFRESH_INTERVAL_MINUTES"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RefreshInterval = time.Duration(val) * time.Minute
		}
	}
	if v := os.Getenv("FETCH_TIMEOUT_SECONDS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.FetchTimeout = time.Duration(val) * time.Second
		}
	}
	if v := os.Getenv("ESCALATION_TIMEOUT_SECONDS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.EscalationTimeout = time.Duration(val) * time.Second
		}
	}

	if os.Getenv("DEDUP_BY_TITLE") == "true" {
		cfg.DedupByTitle = true
	}
	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue >= 0 {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.SourcesPath == "" {
		return fmt.Errorf("SOURCES_CONFIG_PATH is required")
	}
	if c.CategoriesPath == "" {
		return fmt.Errorf("CATEGORIES_CONFIG_PATH is required")
	}
	if c.FetchBatchSize < 1 {
		return fmt.Errorf("FETCH_BATCH_SIZE must be at least 1")
	}
	if c.MaxPerFeed < 1 {
		return fmt.Errorf("MAX_NEWS_PER_FEED must be at least 1")
	}
	if c.MaxItems < 1 {
		return fmt.Errorf("MAX_NEWS_ITEMS must be at least 1")
	}
	// GEMINI_API_KEY is optional: with no key the escalation adapter runs in
	// rule-only fallback mode and never touches the network.
	return nil
}
