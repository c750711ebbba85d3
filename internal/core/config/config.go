package config

import (
	"time"

	redisclient "github.com/vietddude/feedrelay/internal/infra/redis"
	"github.com/vietddude/feedrelay/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Target   TargetConfig       `yaml:"target"`
	Sources  []SourceConfig     `yaml:"sources"`
	Relay    RelayConfig        `yaml:"relay"`
	Server   ServerConfig       `yaml:"server"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TargetConfig holds settings for the chain that archives the feeds.
type TargetConfig struct {
	URL           string        `yaml:"url"`
	AccountSeed   string        `yaml:"account_seed"` // secret uri: 0x seed, mnemonic or //Dev, optional /derivation
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
	FeedProcessor *uint8        `yaml:"feed_processor"` // unset for runtimes with a unit processor kind
}

// SourceConfig holds settings for one relayed chain.
type SourceConfig struct {
	URL   string `yaml:"url"`
	Index *int   `yaml:"index"` // defaults to the position in the list
}

// RelayConfig holds the tunables of the relay pipeline.
type RelayConfig struct {
	BufferCapacity   int           `yaml:"buffer_capacity"`
	MaxRetries       int           `yaml:"max_retries"`
	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	MaxFeeds         int           `yaml:"max_feeds"` // 0 = default cap, negative = no cap
	DialConcurrency  int           `yaml:"dial_concurrency"`
	DroppedRetention time.Duration `yaml:"dropped_retention"` // 0 = keep forever
	FetchAttempts    uint          `yaml:"fetch_attempts"`    // per source block, 0 = adapter default
	FetchDelay       time.Duration `yaml:"fetch_delay"`
}
