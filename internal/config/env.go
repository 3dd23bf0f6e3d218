package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GetEnvString retrieves a string from environment variables or returns the default value.
func GetEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvFirst returns the first non-empty value among keys, or the default value.
func GetEnvFirst(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

// GetEnvInt retrieves an integer from environment variables or returns the default value.
func GetEnvInt(key string, defaultValue int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valStr).Msg("Ignoring invalid integer in environment")
		return defaultValue
	}
	return val
}

// GetEnvDuration retrieves a Go duration ("500ms", "20s") from environment
// variables or returns the default value. Bare numbers are rejected.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valStr).Msg("Ignoring invalid duration in environment")
		return defaultValue
	}
	return val
}

// GetEnvInterval is GetEnvDuration that also reads a bare number as minutes.
func GetEnvInterval(key string, defaultValue time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}

	val, err := ParseInterval(valStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valStr).Msg("Ignoring invalid interval in environment")
		return defaultValue
	}
	return val
}

// ParseInterval parses a bare number of minutes or a Go duration string.
func ParseInterval(s string) (time.Duration, error) {
	if minutes, err := strconv.Atoi(s); err == nil {
		return time.Duration(minutes) * time.Minute, nil
	}
	return time.ParseDuration(s)
}

// GetEnvLogLevel retrieves a log level from environment variables or returns the default value.
func GetEnvLogLevel(key string, defaultValue zerolog.Level) zerolog.Level {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}

	level, err := zerolog.ParseLevel(valStr)
	if err != nil {
		return defaultValue
	}
	return level
}
