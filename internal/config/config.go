// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Storage settings.
	StorageBackend string // "file" or "sqlite"
	StorageDir     string // Data directory for the file backend.
	SQLitePath     string // Database path for the sqlite backend.

	// LLM provider settings.
	LLMProvider     string // "anthropic", "openai", "vertex", "auto", or "stub"
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
	GCPProjectID    string
	GCPRegion       string
	VertexModel     string

	// Capture service for image-based exports. Empty disables capture;
	// PPTX export falls back to native text shapes.
	CaptureEndpoint string

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxConcurrentRuns   int
	SSEKeepaliveEvery   time.Duration
	MaxRequestBodyBytes int64
	CORSOrigins         string // Comma-separated allowed origins; "*" in dev.
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("DECKSMITH_PORT", 8080),
		ReadTimeout:         envDuration("DECKSMITH_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("DECKSMITH_WRITE_TIMEOUT", 0), // 0: SSE streams stay open
		StorageBackend:      envStr("DECKSMITH_STORAGE_BACKEND", "file"),
		StorageDir:          envStr("DECKSMITH_STORAGE_DIR", "./data"),
		SQLitePath:          envStr("DECKSMITH_SQLITE_PATH", "./data/decksmith.db"),
		LLMProvider:         envStr("DECKSMITH_LLM_PROVIDER", "anthropic"),
		AnthropicAPIKey:     envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:      envStr("DECKSMITH_ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		OpenAIModel:         envStr("DECKSMITH_OPENAI_MODEL", "gpt-4o"),
		GCPProjectID:        envStr("DECKSMITH_GCP_PROJECT", ""),
		GCPRegion:           envStr("DECKSMITH_GCP_REGION", "us-central1"),
		VertexModel:         envStr("DECKSMITH_VERTEX_MODEL", "gemini-1.5-pro"),
		CaptureEndpoint:     envStr("DECKSMITH_CAPTURE_ENDPOINT", ""),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "decksmith"),
		LogLevel:            envStr("DECKSMITH_LOG_LEVEL", "info"),
		MaxConcurrentRuns:   envInt("DECKSMITH_MAX_CONCURRENT_RUNS", 4),
		SSEKeepaliveEvery:   envDuration("DECKSMITH_SSE_KEEPALIVE", 15*time.Second),
		MaxRequestBodyBytes: int64(envInt("DECKSMITH_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
		CORSOrigins:         envStr("DECKSMITH_CORS_ORIGINS", "*"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("config: DECKSMITH_STORAGE_BACKEND must be \"file\" or \"sqlite\" (got %q)", c.StorageBackend)
	}

	switch c.LLMProvider {
	case "auto":
		if c.AnthropicAPIKey == "" && c.OpenAIAPIKey == "" && c.GCPProjectID == "" {
			return fmt.Errorf("config: the auto provider needs at least one of ANTHROPIC_API_KEY, OPENAI_API_KEY, or DECKSMITH_GCP_PROJECT")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("config: ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("config: OPENAI_API_KEY is required for the openai provider")
		}
	case "vertex":
		if c.GCPProjectID == "" {
			return fmt.Errorf("config: DECKSMITH_GCP_PROJECT is required for the vertex provider")
		}
	case "stub":
	default:
		return fmt.Errorf("config: unknown DECKSMITH_LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.MaxConcurrentRuns < 1 {
		return fmt.Errorf("config: DECKSMITH_MAX_CONCURRENT_RUNS must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: DECKSMITH_MAX_REQUEST_BODY_BYTES must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
