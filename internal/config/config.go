package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "THREAD_DL"

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config struct for environment variables. Command line flags override the matching fields.
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"2m"`
	UserAgent   string        `envconfig:"USER_AGENT"`
	MediaHost   string        `envconfig:"MEDIA_HOST" default:"i.4cdn.org"`

	AbortOnFailure    bool   `envconfig:"ABORT_ON_FAILURE" default:"false"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	Telemetry struct {
		Enabled      bool   `split_words:"true" default:"false"`
		OTLPEndpoint string `envconfig:"OTLP_ENDPOINT" default:"localhost:4317"`
		ServiceName  string `split_words:"true" default:"thread_downloader"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.LogFormat)
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout must not be negative: %s", c.HTTPTimeout)
	}

	if strings.TrimSpace(c.MediaHost) == "" {
		return fmt.Errorf("media host must not be empty")
	}

	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// JSONLogs reports whether logs should be written as JSON instead of text.
func (c *Config) JSONLogs() bool {
	return strings.EqualFold(c.LogFormat, "json")
}
