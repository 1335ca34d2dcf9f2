package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "symptom_reports", cfg.NotifyChannel)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout())
	assert.True(t, cfg.IsDev())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://example/fever")
	t.Setenv("CHATBOT_API_URL", "http://backend:8080")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "postgres://example/fever", cfg.DatabaseURL)
	assert.Equal(t, "http://backend:8080", cfg.ChatbotAPIURL)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout())
}
