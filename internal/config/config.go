package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"feedwatch/relay/internal/state"
)

// ErrMissingWebhook is returned by Validate when no webhook URL is configured.
var ErrMissingWebhook = errors.New("webhook URL is not set (RELAY_WEBHOOK_URL or DISCORD_WEBHOOK_URL)")

// Config holds all configuration for the application
type Config struct {
	// Delivery settings
	WebhookURL     string
	Username       string
	RequestTimeout time.Duration

	// Feed table, empty for the compiled-in defaults
	FeedsPath string

	// Watermark storage
	StateBackend string
	StatePath    string
	DatabaseURL  string

	// Processing settings
	Interval      time.Duration
	BatchSize     int
	BatchDelay    time.Duration
	FirstRunLimit int

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Log settings
	LogLevel zerolog.Level
	LogFile  string
}

// DefaultConfig returns a configuration seeded from the environment, falling
// back to hardcoded defaults. Command-line flags override it afterwards.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		WebhookURL:     GetEnvFirst("", "RELAY_WEBHOOK_URL", LegacyWebhookEnv),
		Username:       GetEnvString("RELAY_USERNAME", DefaultUsername),
		RequestTimeout: GetEnvDuration("RELAY_REQUEST_TIMEOUT", DefaultRequestTimeout),
		FeedsPath:      GetEnvString("RELAY_FEEDS_PATH", DefaultFeedsPath),
		StateBackend:   GetEnvString("RELAY_STATE_BACKEND", DefaultStateBackend),
		StatePath:      GetEnvString("RELAY_STATE_PATH", DefaultStatePath),
		DatabaseURL:    GetEnvString("RELAY_DATABASE_URL", ""),
		Interval:       GetEnvInterval("RELAY_INTERVAL", DefaultInterval),
		BatchSize:      GetEnvInt("RELAY_BATCH_SIZE", DefaultBatchSize),
		BatchDelay:     GetEnvDuration("RELAY_BATCH_DELAY", DefaultBatchDelay),
		FirstRunLimit:  GetEnvInt("RELAY_FIRST_RUN_LIMIT", DefaultFirstRunLimit),
		ServerHost:     GetEnvString("RELAY_HOST", DefaultServerHost),
		ServerPort:     GetEnvInt("RELAY_PORT", DefaultServerPort),
		APIKey:         GetEnvString("RELAY_API_KEY", ""),
		LogLevel:       GetEnvLogLevel("RELAY_LOG_LEVEL", logLevel),
		LogFile:        GetEnvString("RELAY_LOG_FILE", DefaultLogFile),
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// ValidateStore checks the watermark storage settings.
func (c *Config) ValidateStore() error {
	switch c.StateBackend {
	case state.BackendFile, state.BackendSQLite:
		if c.StatePath == "" {
			return fmt.Errorf("state path is required for the %s backend", c.StateBackend)
		}
	case state.BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.StateBackend)
	}
	return nil
}

// Validate checks everything the delivery loop needs.
func (c *Config) Validate() error {
	if c.WebhookURL == "" {
		return ErrMissingWebhook
	}
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval cannot be negative: %s", c.Interval)
	}
	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("batch size must be between 1 and %d, got %d", MaxBatchSize, c.BatchSize)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("batch delay cannot be negative: %s", c.BatchDelay)
	}
	if c.FirstRunLimit < 1 {
		return fmt.Errorf("first run limit must be positive, got %d", c.FirstRunLimit)
	}
	return nil
}
