// Package config loads tripwise configuration from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/tripwise/internal/logging"
	"github.com/aretw0/tripwise/pkg/adapters/amadeus"
	"github.com/aretw0/tripwise/pkg/adapters/claude"
	"github.com/aretw0/tripwise/pkg/workflow"
	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for tripwise.
type Config struct {
	Model       ModelConfig    `mapstructure:"model"`
	Provider    ProviderConfig `mapstructure:"provider"`
	Server      ServerConfig   `mapstructure:"server"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Log         LogConfig      `mapstructure:"log"`
	PromptsFile string         `mapstructure:"prompts_file"`
}

// ModelConfig holds the model backend settings.
type ModelConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	Name         string        `mapstructure:"name"`
	MaxTokens    int64         `mapstructure:"max_tokens"`
	MaxToolTurns int           `mapstructure:"max_tool_turns"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ProviderConfig holds the flight data provider settings.
type ProviderConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	TokenTimeout  time.Duration `mapstructure:"token_timeout"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	// TokenCache reuses access tokens until shortly before they expire.
	TokenCache    bool `mapstructure:"token_cache"`
	RetryMaxTries uint `mapstructure:"retry_max_tries"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig enables distributed session locks and shared artifact history
// when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`

	// HistoryTTL expires idle session history. Zero keeps it forever.
	HistoryTTL time.Duration `mapstructure:"history_ttl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. With an empty path it looks for ./tripwise.yaml,
// then the user config directory; neither file is required.
// Precedence (highest to lowest): environment, file, defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tripwise")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(userConfigDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("TRIPWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("model.api_key", "TRIPWISE_MODEL_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("provider.client_id", "TRIPWISE_PROVIDER_CLIENT_ID", "AMADEUS_CLIENT_ID")
	_ = v.BindEnv("provider.client_secret", "TRIPWISE_PROVIDER_CLIENT_SECRET", "AMADEUS_CLIENT_SECRET")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.PromptsFile != "" && !filepath.IsAbs(cfg.PromptsFile) {
		if used := v.ConfigFileUsed(); used != "" {
			cfg.PromptsFile = filepath.Join(filepath.Dir(used), cfg.PromptsFile)
		}
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.name", string(claude.DefaultModel))
	v.SetDefault("model.max_tokens", claude.DefaultMaxTokens)
	v.SetDefault("model.max_tool_turns", workflow.DefaultMaxToolTurns)
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.timeout", "2m")

	v.SetDefault("provider.base_url", amadeus.DefaultBaseURL)
	v.SetDefault("provider.client_id", "")
	v.SetDefault("provider.client_secret", "")
	v.SetDefault("provider.token_timeout", amadeus.DefaultTokenTimeout.String())
	v.SetDefault("provider.search_timeout", amadeus.DefaultSearchTimeout.String())
	v.SetDefault("provider.token_cache", true)
	v.SetDefault("provider.retry_max_tries", amadeus.DefaultMaxTries)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "5m")
	v.SetDefault("redis.history_ttl", "0s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("prompts_file", "")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name:         string(claude.DefaultModel),
			MaxTokens:    claude.DefaultMaxTokens,
			MaxToolTurns: workflow.DefaultMaxToolTurns,
			Timeout:      2 * time.Minute,
		},
		Provider: ProviderConfig{
			BaseURL:       amadeus.DefaultBaseURL,
			TokenTimeout:  amadeus.DefaultTokenTimeout,
			SearchTimeout: amadeus.DefaultSearchTimeout,
			TokenCache:    true,
			RetryMaxTries: amadeus.DefaultMaxTries,
		},
		Server: ServerConfig{Addr: ":8080"},
		Redis:  RedisConfig{LockTTL: 5 * time.Minute},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Validate reports every problem at once. Any error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model.APIKey) == "" {
		errs = append(errs, errors.New("model.api_key is required (or ANTHROPIC_API_KEY)"))
	}
	if c.Model.MaxTokens <= 0 {
		errs = append(errs, errors.New("model.max_tokens must be positive"))
	}
	if c.Model.MaxToolTurns <= 0 {
		errs = append(errs, errors.New("model.max_tool_turns must be positive"))
	}
	if err := c.ProviderConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("provider: %w", err))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		errs = append(errs, errors.New("redis.lock_ttl must be positive"))
	}
	if c.Redis.HistoryTTL < 0 {
		errs = append(errs, errors.New("redis.history_ttl must not be negative"))
	}
	if c.Model.BaseURL != "" {
		if u, err := url.Parse(c.Model.BaseURL); err != nil || u.Scheme == "" {
			errs = append(errs, errors.New("model.base_url must be absolute"))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ProviderConfig returns the flight provider configuration.
func (c *Config) ProviderConfig() amadeus.Config {
	return amadeus.Config{
		BaseURL: c.Provider.BaseURL,
		Credentials: amadeus.Credentials{
			ClientID:     c.Provider.ClientID,
			ClientSecret: c.Provider.ClientSecret,
		},
		TokenTimeout:  c.Provider.TokenTimeout,
		SearchTimeout: c.Provider.SearchTimeout,
		MaxTries:      c.Provider.RetryMaxTries,
	}
}

// ModelBackend returns the model backend configuration.
func (c *Config) ModelBackend() claude.Config {
	return claude.Config{
		APIKey:    c.Model.APIKey,
		Model:     c.Model.Name,
		MaxTokens: c.Model.MaxTokens,
		BaseURL:   c.Model.BaseURL,
		Timeout:   c.Model.Timeout,
	}
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tripwise")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "tripwise")
	}
	return filepath.Join(home, ".config", "tripwise")
}
