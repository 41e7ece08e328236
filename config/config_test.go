package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "https://korean.visitseoul.net", cfg.BaseURL)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 1920, cfg.ViewportWidth)
	assert.Equal(t, 1080, cfg.ViewportHeight)
	assert.Equal(t, 5*time.Minute, cfg.LaunchTimeout)
	assert.Equal(t, 30*time.Second, cfg.NavTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, 2.0, cfg.OpsPerSecond)

	assert.Equal(t, 2, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryBackoff)
	assert.Equal(t, 6*time.Hour, cfg.ScrapeInterval)

	assert.Equal(t, "places", cfg.RedisStream)
	assert.Equal(t, "localhost:11211", cfg.MemcacheAddr)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SCRAPE_BASE_URL", "https://stage.example.test")
	t.Setenv("SCRAPE_MAX_ATTEMPTS", "3")
	t.Setenv("SCRAPE_RETRY_BACKOFF_MS", "250")
	t.Setenv("CHROME_HEADLESS", "false")
	t.Setenv("CHROME_OPS_PER_SECOND", "0.5")
	t.Setenv("POSTGRES_HOST", "db.internal")

	cfg := LoadConfig()

	assert.Equal(t, "https://stage.example.test", cfg.BaseURL)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBackoff)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 0.5, cfg.OpsPerSecond)
	assert.Equal(t, "db.internal", cfg.DBHost)
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SCRAPE_MAX_ATTEMPTS", "many")
	t.Setenv("CHROME_HEADLESS", "yes please")

	cfg := LoadConfig()

	assert.Equal(t, 2, cfg.MaxAttempts)
	assert.True(t, cfg.Headless)
}

func TestValidate(t *testing.T) {
	cfg := LoadConfig()

	cfg.BaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.ScrapeInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.OpsPerSecond = -1
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	cfg := LoadConfig()
	cfg.DBHost = "db.internal"
	cfg.DBPort = 5433
	cfg.DBUser = "scraper"
	cfg.DBPassword = "secret"
	cfg.DBName = "places"
	cfg.DBSSLMode = "disable"

	assert.Equal(t,
		"host=db.internal port=5433 user=scraper password=secret dbname=places sslmode=disable",
		cfg.DSN(),
	)
}
