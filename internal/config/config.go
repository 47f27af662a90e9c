package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"local"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Database settings
	Database DatabaseConfig

	// Embeddings configuration
	Embeddings EmbeddingsConfig

	// LLM configuration (intent classification, task generation)
	LLM LLMConfig

	// Assistant conversation loop configuration
	Assistant AssistantConfig

	// Scheduler configuration (overdue sweep)
	Scheduler SchedulerConfig

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host          string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port          int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User          string        `env:"POSTGRES_USER" envDefault:"tiphys"`
	Password      string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database      string        `env:"POSTGRES_DB" envDefault:"tiphys"`
	SSLMode       string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns  int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns  int           `env:"DB_MAX_IDLE_CONNS" envDefault:"2"`
	MaxIdleTime   time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug    bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
	RunMigrations bool          `env:"DB_RUN_MIGRATIONS" envDefault:"true"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// EmbeddingsConfig holds embedding service configuration
type EmbeddingsConfig struct {
	// Embedding model name
	Model string `env:"EMBEDDING_MODEL" envDefault:"gemini-embedding-001"`

	// Embedding dimension; the vector column and index are created with
	// this dimensionality at startup
	Dimension int `env:"EMBEDDING_DIMENSION" envDefault:"768"`

	// Google API Key for the Gemini API
	GoogleAPIKey string `env:"GOOGLE_API_KEY" envDefault:""`

	// Disable embeddings network calls (for testing)
	NetworkDisabled bool `env:"EMBEDDINGS_NETWORK_DISABLED" envDefault:"false"`
}

// IsEnabled returns true if embeddings are configured
func (e *EmbeddingsConfig) IsEnabled() bool {
	if e.NetworkDisabled {
		return false
	}
	return e.GoogleAPIKey != ""
}

// LLMConfig holds LLM (chat completion) configuration
type LLMConfig struct {
	// Chat model name
	Model string `env:"LLM_MODEL" envDefault:"gemini-2.5-flash"`

	// Max output tokens for chat completions
	MaxOutputTokens int `env:"LLM_MAX_OUTPUT_TOKENS" envDefault:"8192"`

	// Temperature for chat completions (0.0-1.0)
	Temperature float64 `env:"LLM_TEMPERATURE" envDefault:"0"`

	// Request timeout
	Timeout time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`

	// Google API Key for the Gemini API
	GoogleAPIKey string `env:"GOOGLE_API_KEY" envDefault:""`

	// Disable LLM network calls (for testing)
	NetworkDisabled bool `env:"LLM_NETWORK_DISABLED" envDefault:"false"`
}

// IsEnabled returns true if LLM is configured
func (l *LLMConfig) IsEnabled() bool {
	if l.NetworkDisabled {
		return false
	}
	return l.GoogleAPIKey != ""
}

// AssistantConfig holds conversation loop settings
type AssistantConfig struct {
	// CommentWindowHours is the half-width of the time window, centered
	// on now, used when commenting on upcoming and recent tasks
	CommentWindowHours int `env:"ASSISTANT_COMMENT_WINDOW_HOURS" envDefault:"12"`

	// SearchLimit caps results per retrieval tool during collision search
	SearchLimit int `env:"ASSISTANT_SEARCH_LIMIT" envDefault:"25"`

	// SimilarityTopK caps embedding-similarity matches
	SimilarityTopK int `env:"ASSISTANT_SIMILARITY_TOP_K" envDefault:"5"`
}

// SchedulerConfig holds background job settings
type SchedulerConfig struct {
	// Enabled turns on the overdue sweep job
	Enabled bool `env:"SCHEDULER_ENABLED" envDefault:"false"`

	// OverdueSweepCron is the cron expression for the overdue sweep
	OverdueSweepCron string `env:"SCHEDULER_OVERDUE_CRON" envDefault:"*/5 * * * *"`
}

// IsEnabled returns true if the scheduler should run
func (s *SchedulerConfig) IsEnabled() bool {
	return s.Enabled
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("db_host", cfg.Database.Host),
		slog.Bool("llm_enabled", cfg.LLM.IsEnabled()),
		slog.Bool("embeddings_enabled", cfg.Embeddings.IsEnabled()),
	)

	return cfg, nil
}
