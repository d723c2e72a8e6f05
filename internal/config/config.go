// Package config loads the engine configuration.
//
// Configuration comes from defaults, an optional YAML file and the
// environment, in that order; later sources win. The API key is only
// accepted from the environment so it never ends up in a config file
// by accident.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
)

// Config holds the runtime configuration of the engine.
type Config struct {
	// APIKey is the GW2 API key to track. Environment only.
	APIKey string `env:"GW2TRACKER_API_KEY" yaml:"-"`
	// BaseURL overrides the API endpoint, e.g. for a proxy.
	BaseURL string `env:"GW2TRACKER_BASE_URL" yaml:"base_url"`
	// DatabasePath is the path of the sqlite database file.
	DatabasePath string `env:"GW2TRACKER_DATABASE_PATH" yaml:"database_path"`
	// UserAgent is sent with every API request.
	UserAgent string `env:"GW2TRACKER_USER_AGENT" yaml:"user_agent"`
	// RequestTimeout bounds a single API request including retries.
	RequestTimeout time.Duration `env:"GW2TRACKER_REQUEST_TIMEOUT" yaml:"request_timeout"`
	// MaxInFlight bounds the number of concurrent API requests.
	MaxInFlight int `env:"GW2TRACKER_MAX_IN_FLIGHT" yaml:"max_in_flight"`
	// RequestsPerSecond bounds the sustained API request rate.
	RequestsPerSecond float64 `env:"GW2TRACKER_REQUESTS_PER_SECOND" yaml:"requests_per_second"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"GW2TRACKER_LOG_LEVEL" yaml:"log_level"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		DatabasePath:      "gw2tracker.sqlite",
		RequestTimeout:    30 * time.Second,
		MaxInFlight:       10,
		RequestsPerSecond: 5,
		LogLevel:          "info",
	}
}

// Load returns the configuration from the given YAML file and the
// environment. A missing file is not an error; path may be empty to
// load from the environment alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
