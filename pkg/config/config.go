package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the full configuration of the idm service.
type Config struct {
	BaseURL     string `env:"BASE_URL" env-default:"http://localhost:4000"`
	FrontendURL string `env:"FRONTEND_URL" env-default:"http://localhost:3000"`

	Persistence PersistenceConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Email       EmailConfig
	Telegram    TelegramConfig
	Redis       RedisConfig
	TwoFA       TwoFAConfig
	RateLimit   RateLimitConfig
}

// Load reads envFile when it exists, then the process environment, and
// validates the result. An empty envFile skips the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			slog.Info("Loading configuration from .env file", "path", envFile)
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section and returns ValidationErrors when any of
// them is invalid.
func (c Config) Validate() error {
	return Validate(
		c.Persistence.Validate,
		func() ValidationErrors {
			if c.Persistence.Type != PersistencePostgres {
				return nil
			}
			return c.Database.Validate()
		},
		c.JWT.Validate,
		c.Email.Validate,
		c.TwoFA.Validate,
		c.RateLimit.Validate,
	)
}
