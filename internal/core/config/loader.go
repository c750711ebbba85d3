package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

const (
	DefaultPort            = 8080
	DefaultSubmitTimeout   = 30 * time.Second
	DefaultBufferCapacity  = 32
	DefaultMaxRetries      = 5
	DefaultInitialBackoff  = time.Second
	DefaultMaxBackoff      = 30 * time.Second
	DefaultMaxFeeds        = 10
	DefaultDialConcurrency = 4
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, applies defaults and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Target.SubmitTimeout == 0 {
		c.Target.SubmitTimeout = DefaultSubmitTimeout
	}
	if c.Relay.BufferCapacity == 0 {
		c.Relay.BufferCapacity = DefaultBufferCapacity
	}
	if c.Relay.MaxRetries == 0 {
		c.Relay.MaxRetries = DefaultMaxRetries
	}
	if c.Relay.InitialBackoff == 0 {
		c.Relay.InitialBackoff = DefaultInitialBackoff
	}
	if c.Relay.MaxBackoff == 0 {
		c.Relay.MaxBackoff = DefaultMaxBackoff
	}
	if c.Relay.MaxFeeds == 0 {
		c.Relay.MaxFeeds = DefaultMaxFeeds
	}
	if c.Relay.DialConcurrency == 0 {
		c.Relay.DialConcurrency = DefaultDialConcurrency
	}
}

// Validate checks the settings the relayer cannot start without.
func (c *AppConfig) Validate() error {
	if c.Target.URL == "" {
		return fmt.Errorf("target.url is required")
	}
	if c.Target.AccountSeed == "" {
		return fmt.Errorf("target.account_seed is required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	explicit := 0
	for i, s := range c.Sources {
		if s.URL == "" {
			return fmt.Errorf("sources[%d].url is required", i)
		}
		if s.Index != nil {
			explicit++
		}
	}
	if explicit != 0 && explicit != len(c.Sources) {
		return fmt.Errorf("sources: index must be set on every source or on none")
	}

	if c.Relay.BufferCapacity < 0 || c.Relay.MaxRetries < 0 || c.Relay.DialConcurrency < 0 {
		return fmt.Errorf("relay tunables must not be negative")
	}
	if c.Relay.InitialBackoff < 0 || c.Relay.MaxBackoff < c.Relay.InitialBackoff {
		return fmt.Errorf("relay.max_backoff must be at least relay.initial_backoff")
	}
	return nil
}

// SourceDescriptors returns the configured sources in configuration order.
func (c *AppConfig) SourceDescriptors() []domain.SourceDescriptor {
	out := make([]domain.SourceDescriptor, len(c.Sources))
	for i, s := range c.Sources {
		idx := i
		if s.Index != nil {
			idx = *s.Index
		}
		out[i] = domain.SourceDescriptor{Endpoint: s.URL, Index: idx}
	}
	return out
}
