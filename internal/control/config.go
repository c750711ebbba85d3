package control

import (
	"time"

	"github.com/vietddude/feedrelay/internal/core/config"
	"github.com/vietddude/feedrelay/internal/core/domain"
	redisclient "github.com/vietddude/feedrelay/internal/infra/redis"
	"github.com/vietddude/feedrelay/internal/infra/storage/postgres"
	"github.com/vietddude/feedrelay/internal/relaying/scheduler"
)

// Config holds the relayer configuration. It is not modified after NewRelayer.
type Config struct {
	TargetURL     string
	AccountSeed   string
	SubmitTimeout time.Duration
	FeedProcessor *uint8

	Sources          []domain.SourceDescriptor
	Scheduler        scheduler.Config
	MaxFeeds         int
	DialConcurrency  int
	DroppedRetention time.Duration
	FetchAttempts    uint
	FetchDelay       time.Duration

	Port     int // 0 disables the health server
	Database postgres.Config
	Redis    redisclient.Config
}

// FromAppConfig maps the loaded configuration file onto the relayer config.
func FromAppConfig(cfg *config.AppConfig) Config {
	return Config{
		TargetURL:     cfg.Target.URL,
		AccountSeed:   cfg.Target.AccountSeed,
		SubmitTimeout: cfg.Target.SubmitTimeout,
		FeedProcessor: cfg.Target.FeedProcessor,
		Sources:       cfg.SourceDescriptors(),
		Scheduler: scheduler.Config{
			BufferCapacity: cfg.Relay.BufferCapacity,
			MaxRetries:     cfg.Relay.MaxRetries,
			InitialBackoff: cfg.Relay.InitialBackoff,
			MaxBackoff:     cfg.Relay.MaxBackoff,
		},
		MaxFeeds:         cfg.Relay.MaxFeeds,
		DialConcurrency:  cfg.Relay.DialConcurrency,
		DroppedRetention: cfg.Relay.DroppedRetention,
		FetchAttempts:    cfg.Relay.FetchAttempts,
		FetchDelay:       cfg.Relay.FetchDelay,
		Port:             cfg.Server.Port,
		Database:         cfg.Database,
		Redis:            cfg.Redis,
	}
}
