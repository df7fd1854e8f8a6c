package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	TelegramToken string `envconfig:"TELEGRAM_TOKEN"`
	DatabaseURI   string `envconfig:"DATABASE_URI"`
	// postgres or memory; memory loses everything on restart
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`

	APIEnabled bool   `envconfig:"API_ENABLED" default:"false"`
	APIHost    string `envconfig:"API_HOST" default:"0.0.0.0"`
	APIPort    int    `envconfig:"API_PORT" default:"8000"`

	Debug    bool   `envconfig:"DEBUG" default:"false"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DefaultTimezone       string        `envconfig:"DEFAULT_TIMEZONE" default:"Europe/Moscow"`
	RepeatFallbackMinutes int           `envconfig:"REPEAT_FALLBACK_MINUTES" default:"15"`
	SnoozeMinutes         int           `envconfig:"SNOOZE_MINUTES" default:"60"`
	MisfireGrace          time.Duration `envconfig:"MISFIRE_GRACE" default:"60s"`
	DialogTTL             time.Duration `envconfig:"DIALOG_TTL" default:"30m"`
	SweepSchedule         string        `envconfig:"SWEEP_SCHEDULE" default:"@every 5m"`

	AIAPIKey  string `envconfig:"AI_API_KEY"`
	AIBaseURL string `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel   string `envconfig:"AI_MODEL" default:"openai/gpt-4o-mini"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// .env file is optional in production
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings every command depends on
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURI == "" {
			return fmt.Errorf("DATABASE_URI is required for STORAGE_DRIVER=%s", c.StorageDriver)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER: %s", c.StorageDriver)
	}

	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	if c.RepeatFallbackMinutes <= 0 {
		return fmt.Errorf("REPEAT_FALLBACK_MINUTES must be positive, got %d", c.RepeatFallbackMinutes)
	}
	if c.SnoozeMinutes <= 0 {
		return fmt.Errorf("SNOOZE_MINUTES must be positive, got %d", c.SnoozeMinutes)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return nil
}

// ValidateBot checks what the Telegram bot needs on top of Validate
func (c *Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func (c *Config) SnoozeInterval() time.Duration {
	return time.Duration(c.SnoozeMinutes) * time.Minute
}

func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

func (c *Config) AIEnabled() bool {
	return c.AIAPIKey != ""
}

// Level returns the configured log level, forced to debug in debug mode
func (c *Config) Level() zerolog.Level {
	if c.Debug {
		return zerolog.DebugLevel
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// Log writes a summary of the loaded configuration without secrets
func (c *Config) Log(log zerolog.Logger) {
	log.Info().
		Str("storage_driver", c.StorageDriver).
		Bool("database_uri_present", c.DatabaseURI != "").
		Bool("telegram_token_present", c.TelegramToken != "").
		Bool("api_enabled", c.APIEnabled).
		Str("api_addr", c.APIAddr()).
		Str("default_timezone", c.DefaultTimezone).
		Int("repeat_fallback_minutes", c.RepeatFallbackMinutes).
		Int("snooze_minutes", c.SnoozeMinutes).
		Dur("misfire_grace", c.MisfireGrace).
		Dur("dialog_ttl", c.DialogTTL).
		Str("sweep_schedule", c.SweepSchedule).
		Bool("ai_enabled", c.AIEnabled()).
		Str("ai_model", c.AIModel).
		Msg("Configuration loaded")
}
