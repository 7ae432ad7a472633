package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dexrouter/internal/constants"
)

type Config struct {
	// HTTP API settings
	APIAddr string
	APIKey  string
	DevMode bool

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Market data settings. An empty GeckoBaseURL falls back to the public
	// GeckoTerminal endpoint.
	GeckoBaseURL   string
	Network        string
	GeckoRateLimit float64
	GeckoPages     int
	FetchTimeout   time.Duration

	// Refresh settings
	RefreshInterval time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	StaleThreshold  int

	// Route search settings
	MaxHops         int
	TopK            int
	MinLiquidityUSD float64
	MaxPriceImpact  float64

	// ClickHouse settings. History recording is disabled when the addr is
	// empty.
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// AI settings
	OpenRouterAPIKey string
	AIModel          string
}

func Load() *Config {
	return &Config{
		// API
		APIAddr: getEnv("API_ADDR", ":8080"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		// Market data
		GeckoBaseURL:   getEnv("GECKO_BASE_URL", ""),
		Network:        getEnv("NETWORK", "ethereum"),
		GeckoRateLimit: getFloatEnv("GECKO_RATE_LIMIT", 0.5),
		GeckoPages:     getIntEnv("GECKO_PAGES", 1),
		FetchTimeout:   getDurationEnv("FETCH_TIMEOUT", 30*time.Second),

		// Refresh
		RefreshInterval: getDurationEnv("REFRESH_INTERVAL", 5*time.Minute),
		MaxRetries:      getIntEnv("MAX_RETRIES", 5),
		RetryBackoff:    getDurationEnv("RETRY_BACKOFF", 2*time.Second),
		StaleThreshold:  getIntEnv("STALE_THRESHOLD", 3),

		// Route search
		MaxHops:         getIntEnv("MAX_HOPS", 3),
		TopK:            getIntEnv("TOP_K", 5),
		MinLiquidityUSD: getFloatEnv("MIN_LIQUIDITY_USD", 1000),
		MaxPriceImpact:  getFloatEnv("MAX_PRICE_IMPACT", 0.30),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "dex"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// AI
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", ""),
	}
}

// Validate rejects configurations that would make the service misbehave
// quietly: a non-positive refresh interval, hop or branching bounds below
// one, or an impact ceiling outside (0, 1].
func (c *Config) Validate() error {
	if c.APIAddr == "" {
		return fmt.Errorf("API_ADDR must not be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must not be empty")
	}
	if c.GeckoRateLimit <= 0 {
		return fmt.Errorf("GECKO_RATE_LIMIT must be positive")
	}
	if c.GeckoPages < 1 {
		return fmt.Errorf("GECKO_PAGES must be at least 1")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative")
	}
	if c.RetryBackoff <= 0 {
		return fmt.Errorf("RETRY_BACKOFF must be positive")
	}
	if c.StaleThreshold < 1 {
		return fmt.Errorf("STALE_THRESHOLD must be at least 1")
	}
	if c.MaxHops < 1 || c.MaxHops > constants.MaxHopsCeiling {
		return fmt.Errorf("MAX_HOPS must be between 1 and %d", constants.MaxHopsCeiling)
	}
	if c.TopK < 1 {
		return fmt.Errorf("TOP_K must be at least 1")
	}
	if c.MinLiquidityUSD < 0 {
		return fmt.Errorf("MIN_LIQUIDITY_USD must not be negative")
	}
	if c.MaxPriceImpact <= 0 || c.MaxPriceImpact > 1 {
		return fmt.Errorf("MAX_PRICE_IMPACT must be in (0, 1]")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
