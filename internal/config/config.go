package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	// DialogueQueued hands dialogue requests to a worker through Redis.
	DialogueQueued = "queue"
	// DialogueInline generates dialogue inside the API process.
	DialogueInline = "inline"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL       string
	StorageBackend string
	SQLitePath     string
	// AgentTTL expires stored agents; zero keeps them forever.
	AgentTTL time.Duration

	// DialogueProvider selects the wire protocol: openai (any OpenAI-compatible
	// endpoint, Groq by default) or anthropic.
	DialogueProvider string
	DialogueBaseURL  string
	DialogueModel    string
	// DialogueAPIKeyEnv names the environment variable holding the API key.
	// The key is read by the dialogue service when it is constructed.
	DialogueAPIKeyEnv string
	ContentRating     string
	DialogueMode      string

	WorkerID string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:         getEnv("REDIS_URL", "localhost:6379"),
		StorageBackend:   strings.ToLower(getEnv("STORAGE_BACKEND", StorageRedis)),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/npcs.db"),
		DialogueProvider: strings.ToLower(getEnv("DIALOGUE_PROVIDER", ProviderOpenAI)),
		ContentRating:    getEnv("CONTENT_RATING", "PG-13"),
		DialogueMode:     strings.ToLower(getEnv("DIALOGUE_MODE", DialogueQueued)),
		WorkerID:         os.Getenv("WORKER_ID"),
	}

	switch cfg.StorageBackend {
	case StorageRedis, StorageSQLite, StorageMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q: must be one of redis, sqlite, memory", cfg.StorageBackend)
	}

	switch cfg.DialogueProvider {
	case ProviderOpenAI:
		cfg.DialogueBaseURL = getEnv("DIALOGUE_BASE_URL", "https://api.groq.com/openai/v1")
		cfg.DialogueModel = getEnv("DIALOGUE_MODEL", "llama-3.1-8b-instant")
		cfg.DialogueAPIKeyEnv = getEnv("DIALOGUE_API_KEY_ENV", "GROQ_API_KEY")
	case ProviderAnthropic:
		cfg.DialogueBaseURL = getEnv("DIALOGUE_BASE_URL", "https://api.anthropic.com/v1")
		cfg.DialogueModel = getEnv("DIALOGUE_MODEL", "claude-3-5-haiku-latest")
		cfg.DialogueAPIKeyEnv = getEnv("DIALOGUE_API_KEY_ENV", "ANTHROPIC_API_KEY")
	default:
		return nil, fmt.Errorf("invalid DIALOGUE_PROVIDER %q: must be openai or anthropic", cfg.DialogueProvider)
	}

	switch cfg.DialogueMode {
	case DialogueQueued, DialogueInline:
	default:
		return nil, fmt.Errorf("invalid DIALOGUE_MODE %q: must be queue or inline", cfg.DialogueMode)
	}

	ttl, err := parseTTL(getEnv("AGENT_TTL", "0"))
	if err != nil {
		return nil, err
	}
	cfg.AgentTTL = ttl

	return cfg, nil
}

// parseTTL accepts a Go duration ("24h") or a plain number of seconds.
func parseTTL(raw string) (time.Duration, error) {
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, serr := strconv.Atoi(raw)
		if serr != nil {
			return 0, fmt.Errorf("invalid AGENT_TTL %q: %w", raw, err)
		}
		d = time.Duration(secs) * time.Second
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid AGENT_TTL %q: must not be negative", raw)
	}
	return d, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
