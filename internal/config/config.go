package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // empty disables the snapshot archive
	Port        string
	Environment string

	// IsThereAnyDeal access
	ITADBaseURL    string
	ITADSeedSlug   string
	UserAgent      string
	HTTPTimeout    time.Duration
	HTTPRetryCount int
	TitleDelay     time.Duration

	// Artifacts
	PriceJSONPath string
	PriceJSPath   string
	PriceJSGlobal string
	CatalogPath   string

	WSPollInterval time.Duration
}

func Load() *Config {
	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		ITADBaseURL:    getEnv("ITAD_BASE_URL", "https://isthereanydeal.com"),
		ITADSeedSlug:   getEnv("ITAD_SEED_SLUG", "red-dead-redemption-2"),
		UserAgent:      getEnv("USER_AGENT", ""),
		HTTPTimeout:    time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		HTTPRetryCount: getEnvInt("HTTP_RETRY_COUNT", 2),
		TitleDelay:     time.Duration(getEnvInt("TITLE_DELAY_MS", 180)) * time.Millisecond,

		PriceJSONPath: getEnv("PRICE_JSON_PATH", "price-data.json"),
		PriceJSPath:   getEnv("PRICE_JS_PATH", "price-data.js"),
		PriceJSGlobal: getEnv("PRICE_JS_GLOBAL", "ALIVE_PRICE_DATA"),
		CatalogPath:   getEnv("CATALOG_PATH", ""),

		WSPollInterval: time.Duration(getEnvInt("WS_POLL_SECONDS", 5)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
