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

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.Alerting.DedupWindow())
	assert.Equal(t, 24*time.Hour, cfg.Alerting.SuppressionRetention())
	assert.Equal(t, time.Hour, cfg.Alerting.CleanupInterval())
	assert.Equal(t, 1000, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 64, cfg.WebSocket.SendBufferSize)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ORACLEWATCH_PORT", "9090")
	t.Setenv("ORACLEWATCH_LOG_LEVEL", "debug")
	t.Setenv("ORACLEWATCH_ALERTING_DEDUP_WINDOW_MS", "60000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.Alerting.DedupWindow())
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("ORACLEWATCH_PORT", "70000")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateEnabledChannelNeedsURL(t *testing.T) {
	cfg := &Config{
		Port: 8080,
		Alerting: AlertingConfig{
			DedupWindowMs:          3600000,
			SuppressionRetentionMs: 86400000,
			CleanupIntervalMs:      3600000,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 100},
		Integrations: IntegrationsConfig{
			Channels: map[string]ChannelConfig{
				"email": {Enabled: true},
			},
		},
	}
	err := validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_url")

	cfg.Integrations.Channels["email"] = ChannelConfig{Enabled: true, WebhookURL: "https://relay.example.com/email"}
	assert.NoError(t, validateConfig(cfg))
}
