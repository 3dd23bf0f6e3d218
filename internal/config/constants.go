package config

import (
	"time"

	"feedwatch/relay/internal/state"
)

// Constants defining default values for application configuration
const (
	DefaultStateBackend = state.BackendFile
	DefaultStatePath    = "./state.json"
	DefaultFeedsPath    = "" // Empty means the compiled-in feed table

	DefaultUsername       = "Arch Linux Bot"
	DefaultInterval       = 5 * time.Minute // 0 means one-shot mode
	DefaultBatchSize      = 10
	MaxBatchSize          = 10 // Embeds per webhook message
	DefaultBatchDelay     = time.Second
	DefaultFirstRunLimit  = 3
	DefaultRequestTimeout = 20 * time.Second

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultLogLevel = "info"
	DefaultLogFile  = "" // Empty means console only

	// LegacyWebhookEnv is read when RELAY_WEBHOOK_URL is unset.
	LegacyWebhookEnv = "DISCORD_WEBHOOK_URL"
)
