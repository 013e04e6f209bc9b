// Package config provides configuration for the xfetch TUI.
package config

import (
	"os"
	"time"
)

// Config holds the TUI configuration.
type Config struct {
	// Server connection
	ServerURL string
	APIKey    string

	// Refresh intervals
	HistoryRefresh time.Duration
	JobsRefresh    time.Duration

	// Page size for the history table
	PageSize int
}

// Load returns configuration from environment variables with sensible
// defaults.
func Load() *Config {
	return &Config{
		ServerURL:      getEnv("XFETCH_SERVER_URL", "http://127.0.0.1:9310"),
		APIKey:         getEnv("XFETCH_API_KEY", ""),
		HistoryRefresh: getDuration("XFETCH_HISTORY_REFRESH", 5*time.Second),
		JobsRefresh:    getDuration("XFETCH_JOBS_REFRESH", 2*time.Second),
		PageSize:       50,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
