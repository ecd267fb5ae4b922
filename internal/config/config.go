package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries the engine's runtime settings, read from the environment.
// Defaults mirror the upstream platform's constraints: 250-record pages and
// 500ms spacing stay under Shopify's 2 req/s budget.
type Config struct {
	MongoURI      string
	MongoDatabase string

	// RedisAddr enables resume-cursor checkpointing; empty disables it.
	RedisAddr     string
	RedisPassword string
	CursorTTL     time.Duration

	Port string

	ShopifyAPIVersion string
	PageSize          int
	CallSpacing       time.Duration

	FullSyncSchedule        string
	IncrementalSyncSchedule string
	IncrementalWindow       time.Duration
	SyncWorkers             int
	SyncOnStart             bool
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() *Config {
	return &Config{
		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "xenoxify"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		CursorTTL:     getDuration("CURSOR_TTL", 6*time.Hour),

		Port: getEnv("PORT", "8080"),

		ShopifyAPIVersion: getEnv("SHOPIFY_API_VERSION", "2023-10"),
		PageSize:          getInt("SYNC_PAGE_SIZE", 250),
		CallSpacing:       getDuration("SYNC_CALL_SPACING", 500*time.Millisecond),

		// Daily full sync at 2 AM, hourly incremental at the top of the hour.
		FullSyncSchedule:        getEnv("FULL_SYNC_SCHEDULE", "0 2 * * *"),
		IncrementalSyncSchedule: getEnv("INCREMENTAL_SYNC_SCHEDULE", "0 * * * *"),
		IncrementalWindow:       getDuration("INCREMENTAL_WINDOW", time.Hour),
		SyncWorkers:             getInt("SYNC_WORKERS", 3),
		SyncOnStart:             getBool("SYNC_ON_START", true),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
