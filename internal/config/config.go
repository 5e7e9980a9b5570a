package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string
	RedisURL   string

	// ExamAPIBaseURL is the base URL of the authoritative exam backend,
	// e.g. "http://localhost:8000". All attempt state of record lives there.
	ExamAPIBaseURL string
	// ExamAPITimeout bounds every single remote call; retries are the
	// caller's decision, never the transport's.
	ExamAPITimeout time.Duration

	// ClockTick is the cadence of timer re-evaluation for live sessions.
	ClockTick time.Duration
	// SessionIdleTimeout evicts session controllers that have seen no
	// traffic — a browser that navigated away without save-and-exit.
	SessionIdleTimeout time.Duration

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "pretty"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		ExamAPIBaseURL:     getEnv("EXAM_API_BASE_URL", "http://localhost:8000"),
		ExamAPITimeout:     time.Duration(getEnvInt("EXAM_API_TIMEOUT_SECONDS", 15)) * time.Second,
		ClockTick:          time.Duration(getEnvInt("CLOCK_TICK_MS", 1000)) * time.Millisecond,
		SessionIdleTimeout: time.Duration(getEnvInt("SESSION_IDLE_TIMEOUT_MINUTES", 240)) * time.Minute,
		AllowedOrigins:     parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
