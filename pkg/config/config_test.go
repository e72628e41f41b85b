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

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "tutorhub", cfg.Database.Name)
	assert.Equal(t, "IDR", cfg.Payment.Currency)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TutorTTL)
	assert.Equal(t, 2, cfg.Settlement.Workers)
	assert.Equal(t, "tutorhub", cfg.Events.SubjectPrefix)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PAYMENT_CURRENCY", "usd")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SETTLEMENT_RETRY_DELAY", "not-a-duration")
	t.Setenv("OTEL_SAMPLE_RATE", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "USD", cfg.Payment.Currency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.Settlement.RetryDelay)
	assert.InDelta(t, 0.1, cfg.Telemetry.SampleRate, 0.0001)
}
