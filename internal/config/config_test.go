package config

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		WebhookURL:    "https://discord.example.com/api/webhooks/1/abc",
		StateBackend:  "file",
		StatePath:     "state.json",
		Interval:      DefaultInterval,
		BatchSize:     DefaultBatchSize,
		BatchDelay:    DefaultBatchDelay,
		FirstRunLimit: DefaultFirstRunLimit,
	}
}

func TestDefaultConfigFromEnvironment(t *testing.T) {
	t.Setenv("RELAY_WEBHOOK_URL", "")
	t.Setenv(LegacyWebhookEnv, "https://legacy.example.com/hook")
	t.Setenv("RELAY_INTERVAL", "0")
	t.Setenv("RELAY_BATCH_DELAY", "250ms")
	t.Setenv("RELAY_BATCH_SIZE", "4")
	t.Setenv("RELAY_LOG_LEVEL", "warn")
	t.Setenv("RELAY_STATE_BACKEND", "sqlite")

	cfg := DefaultConfig()
	assert.Equal(t, "https://legacy.example.com/hook", cfg.WebhookURL)
	assert.Equal(t, time.Duration(0), cfg.Interval)
	assert.Equal(t, 250*time.Millisecond, cfg.BatchDelay)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.StateBackend)
}

func TestDefaultConfigPrefersRelayWebhook(t *testing.T) {
	t.Setenv("RELAY_WEBHOOK_URL", "https://new.example.com/hook")
	t.Setenv(LegacyWebhookEnv, "https://legacy.example.com/hook")

	assert.Equal(t, "https://new.example.com/hook", DefaultConfig().WebhookURL)
}

func TestDefaults(t *testing.T) {
	for _, key := range []string{"RELAY_USERNAME", "RELAY_INTERVAL", "RELAY_BATCH_SIZE", "RELAY_FIRST_RUN_LIMIT", "RELAY_STATE_PATH", "RELAY_STATE_BACKEND"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	cfg := DefaultConfig()
	assert.Equal(t, "Arch Linux Bot", cfg.Username)
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 3, cfg.FirstRunLimit)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative interval", func(c *Config) { c.Interval = -time.Second }},
		{"batch size zero", func(c *Config) { c.BatchSize = 0 }},
		{"batch size above limit", func(c *Config) { c.BatchSize = 11 }},
		{"negative delay", func(c *Config) { c.BatchDelay = -1 }},
		{"first run limit zero", func(c *Config) { c.FirstRunLimit = 0 }},
		{"unknown backend", func(c *Config) { c.StateBackend = "redis" }},
		{"file without path", func(c *Config) { c.StatePath = "" }},
		{"postgres without url", func(c *Config) { c.StateBackend = "postgres" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateMissingWebhook(t *testing.T) {
	cfg := validConfig()
	cfg.WebhookURL = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingWebhook)

	// The status server does not deliver and only needs storage.
	assert.NoError(t, cfg.ValidateStore())
}

func TestParseInterval(t *testing.T) {
	d, err := ParseInterval("15")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)

	d, err = ParseInterval("300s")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)

	_, err = ParseInterval("soon")
	assert.Error(t, err)
}

func TestGetEnvHelpersFallBack(t *testing.T) {
	t.Setenv("RELAY_TEST_INT", "ten")
	t.Setenv("RELAY_TEST_DURATION", "later")
	assert.Equal(t, 7, GetEnvInt("RELAY_TEST_INT", 7))
	assert.Equal(t, time.Hour, GetEnvDuration("RELAY_TEST_DURATION", time.Hour))
	assert.Equal(t, zerolog.InfoLevel, GetEnvLogLevel("RELAY_TEST_MISSING", zerolog.InfoLevel))
}

func TestDurationsOtherThanIntervalNeedUnits(t *testing.T) {
	t.Setenv("RELAY_INTERVAL", "15")
	t.Setenv("RELAY_BATCH_DELAY", "1")
	t.Setenv("RELAY_REQUEST_TIMEOUT", "30")

	cfg := DefaultConfig()
	assert.Equal(t, 15*time.Minute, cfg.Interval)
	assert.Equal(t, DefaultBatchDelay, cfg.BatchDelay)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)

	t.Setenv("RELAY_BATCH_DELAY", "2s")
	t.Setenv("RELAY_REQUEST_TIMEOUT", "45s")
	cfg = DefaultConfig()
	assert.Equal(t, 2*time.Second, cfg.BatchDelay)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
}

func TestListenAddr(t *testing.T) {
	cfg := &Config{ServerHost: "127.0.0.1", ServerPort: 9000}
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr())
}
