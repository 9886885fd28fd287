package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Conversation engine knobs.
	ContextWindow      int           `env:"CONTEXT_WINDOW" envDefault:"10"`
	TurnTimeout        time.Duration `env:"TURN_TIMEOUT" envDefault:"45s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	// Retention sweep.
	RetentionDays int           `env:"RETENTION_DAYS" envDefault:"90"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`

	Ark ArkConfig `envPrefix:"ARK_"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ContextWindow < 1 {
		return nil, fmt.Errorf("CONTEXT_WINDOW must be at least 1, got %d", cfg.ContextWindow)
	}
	if cfg.RetentionDays < 1 {
		return nil, fmt.Errorf("RETENTION_DAYS must be at least 1, got %d", cfg.RetentionDays)
	}
	return cfg, nil
}

// RetentionHorizon converts the retention setting into a duration.
func (c *Config) RetentionHorizon() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// ArkConfig holds credentials and defaults for the Ark chat model.
type ArkConfig struct {
	APIKey    string `env:"API_KEY"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Model     string `env:"MODEL"`
	BaseURL   string `env:"BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"REGION" envDefault:"cn-beijing"`
}

// Enabled reports whether the required credentials are present.
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates a model instance from the configuration.
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials missing: set ARK_API_KEY+ARK_MODEL or AK/SK pair")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	})
}
