package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 90, cfg.RetentionDays)
	assert.Equal(t, 120, cfg.RateLimitCount)
	assert.Equal(t, 0, cfg.RateLimitBurst)
	assert.Equal(t, 5, cfg.WebhookMaxAttempts)
	assert.True(t, cfg.LiteMode())
	assert.Nil(t, cfg.EncryptionKey)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://orbi@localhost:5432/orbi?sslmode=disable")
	t.Setenv("RATE_LIMIT_COUNT", "3")
	t.Setenv("RETENTION_DAYS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.LiteMode())
	assert.Equal(t, 3, cfg.RateLimitCount)
	assert.Equal(t, 30, cfg.RetentionDays)
}

func TestLoadEncryptionKey(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "000102030405060708090a0b0c0d0e0f000102030405060708090a0b0c0d0e0f")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.EncryptionKey, 32)
}

func TestLoadEncryptionKeyRejectsBadInput(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "not-hex")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ENCRYPTION_KEY", "abcdef")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("RATE_LIMIT_COUNT", "many")
	_, err := Load()
	assert.Error(t, err)
}
