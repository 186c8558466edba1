// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	FrontendURL   string
	DBPath        string // empty = in-memory store
	UploadBaseURL string
	SessionTTL    time.Duration
	ReapInterval  time.Duration
	Stream        StreamConfig
	Generate      GenerateConfig
	RateLimit     RateLimitConfig
}

// StreamConfig controls the event stream endpoints.
type StreamConfig struct {
	KeepaliveInterval  time.Duration
	QueueSize          int
	RetryDelay         time.Duration
	MaxRequestBodySize int64
}

// GenerateConfig controls the simulated generation collaborator and the
// bounds on background tasks.
type GenerateConfig struct {
	JobDelay       time.Duration
	JobTimeout     time.Duration
	ReplyFragments int
	FragmentDelay  time.Duration
	ReplyTimeout   time.Duration
}

// RateLimitConfig controls per-session message-post throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		DBPath:        getEnv("DB_PATH", ""),
		UploadBaseURL: getEnv("UPLOAD_BASE_URL", "https://example.storage.local"),
		SessionTTL:    getEnvDuration("SESSION_TTL", 60*time.Minute),
		ReapInterval:  getEnvDuration("SESSION_REAP_INTERVAL", 5*time.Minute),
		Stream: StreamConfig{
			KeepaliveInterval:  getEnvDuration("KEEPALIVE_INTERVAL", 15*time.Second),
			QueueSize:          getEnvInt("STREAM_QUEUE_SIZE", 32),
			RetryDelay:         getEnvDuration("SSE_RETRY_DELAY", 5*time.Second),
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},
		Generate: GenerateConfig{
			JobDelay:       getEnvDuration("JOB_DELAY", time.Second),
			JobTimeout:     getEnvDuration("JOB_TIMEOUT", 2*time.Minute),
			ReplyFragments: getEnvInt("REPLY_FRAGMENTS", 2),
			FragmentDelay:  getEnvDuration("FRAGMENT_DELAY", 600*time.Millisecond),
			ReplyTimeout:   getEnvDuration("REPLY_TIMEOUT", 2*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Stream.KeepaliveInterval <= 0 {
		return fmt.Errorf("KEEPALIVE_INTERVAL must be > 0")
	}
	if c.Stream.QueueSize <= 0 {
		return fmt.Errorf("STREAM_QUEUE_SIZE must be > 0")
	}
	if c.Stream.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.Generate.ReplyFragments <= 0 {
		return fmt.Errorf("REPLY_FRAGMENTS must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
