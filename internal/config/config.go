package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full client configuration, loaded once at startup.
type Config struct {
	API     APIConfig     `envPrefix:"STRIDELINK_API_"`
	Channel ChannelConfig `envPrefix:"STRIDELINK_CHANNEL_"`
	Store   StoreConfig   `envPrefix:"STRIDELINK_STORE_"`
	Typing  TypingConfig  `envPrefix:"STRIDELINK_TYPING_"`
}

// APIConfig covers the REST backend.
type APIConfig struct {
	BaseURL string        `env:"BASE"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// ChannelConfig covers the real-time messaging backend.
type ChannelConfig struct {
	// BaseURL is read once at connection-establishment time. An empty
	// value fails connection setup instead of dialing an empty host.
	BaseURL           string        `env:"BASE"`
	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`
	ReconnectAttempts int           `env:"RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY" envDefault:"1000ms"`
}

// StoreConfig covers the on-device credential store.
type StoreConfig struct {
	Path string `env:"PATH"`
}

// TypingConfig covers presence timing windows.
type TypingConfig struct {
	Throttle time.Duration `env:"THROTTLE" envDefault:"1500ms"`
	Expiry   time.Duration `env:"EXPIRY" envDefault:"3000ms"`
}

// Load reads configuration from the environment over built-in defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.Store.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.Store.Path = filepath.Join(home, ".stridelink", "stridelink.db")
	}

	return cfg, nil
}

// Validate checks that the configuration can actually drive the client.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL is required (STRIDELINK_API_BASE)")
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}

	if c.Channel.BaseURL == "" {
		return fmt.Errorf("channel base URL is required (STRIDELINK_CHANNEL_BASE)")
	}

	if c.Channel.HandshakeTimeout <= 0 {
		return fmt.Errorf("channel handshake timeout must be positive")
	}

	if c.Channel.WriteTimeout <= 0 {
		return fmt.Errorf("channel write timeout must be positive")
	}

	if c.Channel.ReconnectAttempts <= 0 {
		return fmt.Errorf("channel reconnect attempts must be positive")
	}

	if c.Channel.ReconnectDelay <= 0 {
		return fmt.Errorf("channel reconnect delay must be positive")
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store path cannot be empty")
	}

	if c.Typing.Throttle <= 0 {
		return fmt.Errorf("typing throttle window must be positive")
	}

	if c.Typing.Expiry <= 0 {
		return fmt.Errorf("typing expiry window must be positive")
	}

	return nil
}
