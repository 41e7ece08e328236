package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Target site
	BaseURL string

	// Browser session
	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	LaunchTimeout  time.Duration
	NavTimeout     time.Duration
	SettleDelay    time.Duration
	OpsPerSecond   float64
	ProxyServer    string

	// Retry policy
	MaxAttempts  int
	RetryBackoff time.Duration

	// Worker
	ScrapeInterval time.Duration
	RunGateTTL     time.Duration

	// Postgres place store
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis publisher
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache run gate
	MemcacheAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		BaseURL: getEnv("SCRAPE_BASE_URL", "https://korean.visitseoul.net"),

		Headless:       getEnvBool("CHROME_HEADLESS", true),
		UserAgent:      getEnv("CHROME_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		ViewportWidth:  getEnvInt("CHROME_VIEWPORT_WIDTH", 1920),
		ViewportHeight: getEnvInt("CHROME_VIEWPORT_HEIGHT", 1080),
		LaunchTimeout:  getEnvDuration("CHROME_LAUNCH_TIMEOUT_SECONDS", 300),
		NavTimeout:     getEnvDuration("CHROME_NAV_TIMEOUT_SECONDS", 30),
		SettleDelay:    time.Duration(getEnvInt("CHROME_SETTLE_DELAY_MS", 1500)) * time.Millisecond,
		OpsPerSecond:   getEnvFloat("CHROME_OPS_PER_SECOND", 2.0),
		ProxyServer:    getEnv("CHROME_PROXY_SERVER", ""),

		MaxAttempts:  getEnvInt("SCRAPE_MAX_ATTEMPTS", 2),
		RetryBackoff: time.Duration(getEnvInt("SCRAPE_RETRY_BACKOFF_MS", 5000)) * time.Millisecond,

		ScrapeInterval: getEnvDuration("SCRAPE_INTERVAL_SECONDS", 21600),
		RunGateTTL:     getEnvDuration("SCRAPE_RUN_GATE_TTL_SECONDS", 3600),

		DBHost:     getEnv("POSTGRES_HOST", "localhost"),
		DBPort:     getEnvInt("POSTGRES_PORT", 5432),
		DBUser:     getEnv("POSTGRES_USER", "postgres"),
		DBPassword: getEnv("POSTGRES_PASSWORD", "postgres"),
		DBName:     getEnv("POSTGRES_DB", "places"),
		DBSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "places"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", "localhost:11211"),

		Environment: getEnv("PLACEWORKER_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("SCRAPE_BASE_URL must not be empty")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("SCRAPE_MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.ScrapeInterval <= 0 {
		return fmt.Errorf("SCRAPE_INTERVAL_SECONDS must be positive")
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive, got %dx%d", c.ViewportWidth, c.ViewportHeight)
	}
	if c.OpsPerSecond <= 0 {
		return fmt.Errorf("CHROME_OPS_PER_SECOND must be positive")
	}
	return nil
}

// DSN builds the Postgres connection string
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

// getEnvDuration reads a duration expressed in whole seconds
func getEnvDuration(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
