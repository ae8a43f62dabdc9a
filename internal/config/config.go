// Package config loads the orchestration server's runtime configuration from
// environment variables, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the fully resolved, validated runtime configuration (spec.md §6).
type Config struct {
	APIPort int

	// StorageBackend selects "postgres" (default, durable) or "memory"
	// (in-process, used for local development without a database).
	StorageBackend string

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBPoolMin  int
	DBPoolMax  int

	EmbeddingProvider  string
	EmbeddingDimension int
	ChatModel          string

	RAGEnabled         bool
	RAGIntervalSeconds int
	RAGMaxResults      int
	RAGProjectRoot     string

	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	ChatBaseURL      string
	ChatAPIKey       string

	MaxWorkers          int
	AgentTimeoutSeconds int

	SecurityEnabled      bool
	SecuritySanitizeMode string
	SecurityAlertWebhook string

	// AdminToken pins the process-wide admin sentinel token (spec.md §5:
	// "loaded once at startup; rotation requires restart"). Empty means
	// generate a fresh random token on first boot and log it once.
	AdminToken string

	SessionTimeoutSeconds       int
	SessionSweepIntervalSeconds int

	LogLevel  string
	LogFormat string
	LogOutput string
}

// Load reads a .env file if present (missing file is not an error, matching
// the teacher's config.Load()) and then populates Config from the process
// environment, applying defaults and validating the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIPort: envInt("API_PORT", 8080),

		StorageBackend: envString("STORAGE_BACKEND", "postgres"),

		DBHost:     envString("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envString("DB_NAME", "orchestrator"),
		DBUser:     envString("DB_USER", "orchestrator"),
		DBPassword: envString("DB_PASSWORD", ""),
		DBPoolMin:  envInt("DB_POOL_MIN", 2),
		DBPoolMax:  envInt("DB_POOL_MAX", 10),

		EmbeddingProvider:  envString("EMBEDDING_PROVIDER", "local"),
		EmbeddingDimension: envInt("EMBEDDING_DIMENSION", 384),
		ChatModel:          envString("CHAT_MODEL", "local"),

		RAGEnabled:         envBool("RAG_ENABLED", true),
		RAGIntervalSeconds: envInt("RAG_INTERVAL_SECONDS", 300),
		RAGMaxResults:      envInt("RAG_MAX_RESULTS", 8),
		RAGProjectRoot:     envString("RAG_PROJECT_ROOT", "."),

		EmbeddingBaseURL: envString("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingAPIKey:  envString("EMBEDDING_API_KEY", ""),
		ChatBaseURL:      envString("CHAT_BASE_URL", "https://api.openai.com/v1"),
		ChatAPIKey:       envString("CHAT_API_KEY", ""),

		MaxWorkers:          envInt("MAX_WORKERS", 16),
		AgentTimeoutSeconds: envInt("AGENT_TIMEOUT_SECONDS", 3600),

		SecurityEnabled:      envBool("SECURITY_ENABLED", true),
		SecuritySanitizeMode: envString("SECURITY_SANITIZE_MODE", "neutralize"),
		SecurityAlertWebhook: envString("SECURITY_ALERT_WEBHOOK", ""),

		AdminToken: envString("ADMIN_TOKEN", ""),

		SessionTimeoutSeconds:       envInt("SESSION_TIMEOUT_SECONDS", 3600),
		SessionSweepIntervalSeconds: envInt("SESSION_SWEEP_INTERVAL_SECONDS", 60),

		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "text"),
		LogOutput: envString("LOG_OUTPUT", "stdout"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// failures deep in startup; invalid config exits with status 2 (spec.md §6).
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("config: API_PORT out of range: %d", c.APIPort)
	}
	switch c.StorageBackend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: STORAGE_BACKEND invalid: %q", c.StorageBackend)
	}
	if c.DBPoolMin < 0 || c.DBPoolMax <= 0 || c.DBPoolMin > c.DBPoolMax {
		return fmt.Errorf("config: DB_POOL_MIN/DB_POOL_MAX invalid: %d/%d", c.DBPoolMin, c.DBPoolMax)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("config: EMBEDDING_DIMENSION must be positive: %d", c.EmbeddingDimension)
	}
	if c.RAGIntervalSeconds <= 0 {
		return fmt.Errorf("config: RAG_INTERVAL_SECONDS must be positive: %d", c.RAGIntervalSeconds)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("config: MAX_WORKERS must be positive: %d", c.MaxWorkers)
	}
	if c.SessionTimeoutSeconds <= 0 {
		return fmt.Errorf("config: SESSION_TIMEOUT_SECONDS must be positive: %d", c.SessionTimeoutSeconds)
	}
	if c.SessionSweepIntervalSeconds <= 0 {
		return fmt.Errorf("config: SESSION_SWEEP_INTERVAL_SECONDS must be positive: %d", c.SessionSweepIntervalSeconds)
	}
	switch c.SecuritySanitizeMode {
	case "remove", "neutralize", "block":
	default:
		return fmt.Errorf("config: SECURITY_SANITIZE_MODE invalid: %q", c.SecuritySanitizeMode)
	}
	switch strings.ToLower(c.EmbeddingProvider) {
	case "local", "remote", "openai":
	default:
		return fmt.Errorf("config: EMBEDDING_PROVIDER invalid: %q", c.EmbeddingProvider)
	}
	return nil
}

// DSN renders the postgres connection string for lib/pq.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword)
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
