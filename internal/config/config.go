// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Chain identity
	ChainID string

	// Base URLs for the external data sources
	RPCURL       string
	TokenAPIURL  string
	AssetAPIURL  string
	BIMServerURL string

	// OpenAI settings for narrative analysis
	OpenAIKey   string
	OpenAIModel string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Per-call network budget for upstream requests
	RequestTimeout time.Duration

	// Retry policy knobs
	RetryMaxAttempts int
	RetryBackoffBase time.Duration
	RetryMaxDelay    time.Duration

	// How long a cached record stays eligible as a fallback source
	// for fields that failed to refresh
	FallbackWindow time.Duration

	// Per-category cache TTLs. BIM analysis has no TTL: it is
	// refreshed only on explicit invalidation.
	NetworkTTL time.Duration
	TokenTTL   time.Duration
	StakingTTL time.Duration
	AssetsTTL  time.Duration

	// Circuit breaker settings for upstream sources
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
}

var loadEnvOnce sync.Once

// Load creates a new Config from environment variables. A .env file in
// the working directory is honored when present.
func Load() Config {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})

	return Config{
		Port:         GetEnvOrDefault("PORT", "8080"),
		ChainID:      GetEnvOrDefault("CHAIN_ID", "ithaca-1"),
		RPCURL:       GetEnvOrDefault("RPC_URL", "https://testnet-rpc.daodiseo.chaintools.tech"),
		TokenAPIURL:  GetEnvOrDefault("TOKEN_API_URL", "https://testnet-api.daodiseo.chaintools.tech"),
		AssetAPIURL:  GetEnvOrDefault("ASSET_API_URL", "https://assets.daodiseo.chaintools.tech"),
		BIMServerURL: GetEnvOrDefault("BIMSERVER_URL", "http://localhost:8080"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  GetEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		OtelEndpoint: GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		RequestTimeout:   GetEnvAsDuration("REQUEST_TIMEOUT", 5*time.Second),
		RetryMaxAttempts: GetEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBackoffBase: GetEnvAsDuration("RETRY_BACKOFF_BASE", 200*time.Millisecond),
		RetryMaxDelay:    GetEnvAsDuration("RETRY_MAX_DELAY", 2*time.Second),

		FallbackWindow: GetEnvAsDuration("FALLBACK_WINDOW", 10*time.Minute),
		NetworkTTL:     GetEnvAsDuration("NETWORK_TTL", 30*time.Second),
		TokenTTL:       GetEnvAsDuration("TOKEN_TTL", 15*time.Second),
		StakingTTL:     GetEnvAsDuration("STAKING_TTL", 30*time.Second),
		AssetsTTL:      GetEnvAsDuration("ASSETS_TTL", 60*time.Second),

		BreakerFailureThreshold: GetEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerCooldown:         GetEnvAsDuration("BREAKER_COOLDOWN", 30*time.Second),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
