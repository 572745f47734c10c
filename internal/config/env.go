package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/rs/zerolog"
)

// ParseString reads a string from an environment variable or returns the default.
// It logs the source (environment or default) for observability.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		lowerKey := strings.ToLower(key)
		switch {
		case strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "secret") || strings.Contains(lowerKey, "key_id"):
			logger.Debug().
				Str("key", key).
				Str("source", "environment").
				Bool("sensitive", true).
				Msg("using environment variable")
		case value == "":
			logger.Debug().
				Str("key", key).
				Str("default", defaultValue).
				Str("source", "default").
				Msg("using default value (environment variable is empty)")
			return defaultValue
		default:
			logger.Debug().
				Str("key", key).
				Str("value", value).
				Str("source", "environment").
				Msg("using environment variable")
		}
		return value
	}
	return defaultValue
}

// ParseInt reads an integer from an environment variable or returns the default.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		logger.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
	}
	return defaultValue
}

// ParseFloat reads a float from an environment variable or returns the default.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
		logger.Warn().Str("key", key).Str("value", value).Msg("invalid float, using default")
	}
	return defaultValue
}

// ParseBool reads a boolean from an environment variable or returns the default.
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		logger.Warn().Str("key", key).Str("value", value).Msg("invalid boolean, using default")
	}
	return defaultValue
}

// ParseMillis reads a duration expressed in milliseconds or returns the default.
func ParseMillis(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed >= 0 {
			return time.Duration(parsed) * time.Millisecond
		}
		logger.Warn().Str("key", key).Str("value", value).Msg("invalid millisecond value, using default")
	}
	return defaultValue
}
