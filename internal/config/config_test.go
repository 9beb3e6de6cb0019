package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setBase(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("DB_DRIVER", "SQLite")
}

func TestLoad_SQLiteDefaults(t *testing.T) {
	setBase(t)
	t.Setenv("FRONTEND_BASE_URL", "https://glossary.example.com/")
	t.Setenv("AMQP_URL", "amqp://legacy/")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "glossary.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.AccessTTLMin)
	assert.Equal(t, 7, cfg.RefreshTTLDays)
	assert.Equal(t, time.Hour, cfg.ResetTTL)
	assert.Equal(t, "https://glossary.example.com", cfg.FrontendBaseURL)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.Empty(t, cfg.Mail.Host)
	assert.Equal(t, "amqp://legacy/", cfg.RabbitURL)
	assert.False(t, cfg.EventsEnabled)

	t.Setenv("RABBITMQ_URL", "amqp://broker/")
	assert.Equal(t, "amqp://broker/", Load().RabbitURL)
}

func TestLoad_MySQL(t *testing.T) {
	setBase(t)
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "glossary")
	t.Setenv("EVENTS_ENABLED", "yes")

	cfg := Load()
	assert.Equal(t, "app", cfg.DBUser)
	assert.Empty(t, cfg.DBPass)
	assert.Equal(t, "glossary", cfg.DBName)
	assert.True(t, cfg.EventsEnabled)
}

func TestLoadRateLimitConfig(t *testing.T) {
	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 20, cfg.Capacity)
	assert.True(t, cfg.Fallback)

	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg = LoadRateLimitConfig()
	assert.Equal(t, 3, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL, "TTL covers five refill intervals")
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_TTL", "bogus")
	cfg := LoadCacheConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, time.Second, cfg.TTL)
	assert.Equal(t, "user_route_query", cfg.KeyStrategy)
}
