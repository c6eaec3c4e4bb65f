package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// Config holds application configuration
type Config struct {
	Port                     int           `env:"PORT,default=4000" validate:"min=1,max=65535"`
	Environment              string        `env:"ENVIRONMENT,default=development"` // development, staging, production
	LogLevel                 string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	LogFormat                string        `env:"LOG_FORMAT,default=json" validate:"oneof=json text"`
	AllowedOrigins           string        `env:"ALLOWED_ORIGINS,default=*"`
	DistDir                  string        `env:"DIST_DIR,default=dist" validate:"required"`
	AssetsDir                string        `env:"ASSETS_DIR,default=assets" validate:"required"`
	StaticMaxAge             time.Duration `env:"STATIC_MAX_AGE,default=720h"`
	RabbitMQURL              string        `env:"RABBITMQ_URL" validate:"omitempty,url"`
	OpenAPISpecPath          string        `env:"OPENAPI_SPEC_PATH,default=api/openapi.yaml"`
	OpenAPIValidation        bool          `env:"OPENAPI_VALIDATION,default=true"`
	OpenAPIValidateResponses bool          `env:"OPENAPI_VALIDATE_RESPONSES,default=false"`
	SubscriberBuffer         int           `env:"SUBSCRIBER_BUFFER,default=64" validate:"min=1"`
	ClientBuffer             int           `env:"CLIENT_BUFFER,default=256" validate:"min=1"`
}

// Load reads configuration from the environment, after merging an optional .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for correctness
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.IsProduction() {
		if c.AllowedOrigins == "*" || c.AllowedOrigins == "" {
			return fmt.Errorf("ALLOWED_ORIGINS must list explicit origins in production")
		}

		// Warn about non-HTTPS origins in production
		for _, origin := range strings.Split(c.AllowedOrigins, ",") {
			if !strings.HasPrefix(strings.TrimSpace(origin), "https://") {
				slog.Warn("non-HTTPS origin allowed in production", slog.String("origin", origin))
			}
		}
	}

	return nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev" || c.Environment == ""
}
