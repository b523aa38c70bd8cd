// Package config loads service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrMissingSetting is returned when a required variable is set but empty.
var ErrMissingSetting = errors.New("missing required setting")

// Config holds the service configuration.
type Config struct {
	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID" required:"true"`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET" required:"true"`
	SpotifyRedirectURI  string `envconfig:"SPOTIFY_REDIRECT_URI" required:"true"`

	Addr        string        `envconfig:"MOODTUNES_ADDR" default:"127.0.0.1:8000"`
	FrontendURL string        `envconfig:"MOODTUNES_FRONTEND_URL" default:"/"`
	CORSOrigins []string      `envconfig:"MOODTUNES_CORS_ORIGINS" default:"*"`
	LogLevel    string        `envconfig:"MOODTUNES_LOG_LEVEL" default:"info"`
	LogFormat   string        `envconfig:"MOODTUNES_LOG_FORMAT" default:"json"`
	HTTPTimeout time.Duration `envconfig:"MOODTUNES_HTTP_TIMEOUT" default:"10s"`
	TokenMargin time.Duration `envconfig:"MOODTUNES_TOKEN_MARGIN" default:"30s"`
}

// Load reads the configuration from the environment.
// Missing or empty Spotify credentials are an error.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values envconfig accepts but the service cannot run with.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"SPOTIFY_CLIENT_ID", c.SpotifyClientID},
		{"SPOTIFY_CLIENT_SECRET", c.SpotifyClientSecret},
		{"SPOTIFY_REDIRECT_URI", c.SpotifyRedirectURI},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingSetting, r.name)
		}
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid MOODTUNES_LOG_FORMAT %q: want json or console", c.LogFormat)
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid MOODTUNES_HTTP_TIMEOUT %s: must be positive", c.HTTPTimeout)
	}
	if c.TokenMargin < 0 {
		return fmt.Errorf("invalid MOODTUNES_TOKEN_MARGIN %s: must not be negative", c.TokenMargin)
	}

	return nil
}
