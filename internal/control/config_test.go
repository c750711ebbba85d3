package control

import (
	"testing"
	"time"

	"github.com/vietddude/feedrelay/internal/core/config"
)

func TestFromAppConfig(t *testing.T) {
	one, zero := 1, 0
	kind := uint8(2)
	app := &config.AppConfig{
		Target: config.TargetConfig{URL: "ws://target", AccountSeed: "seed", SubmitTimeout: 3 * time.Second, FeedProcessor: &kind},
		Sources: []config.SourceConfig{
			{URL: "ws://b", Index: &one},
			{URL: "ws://a", Index: &zero},
		},
		Relay: config.RelayConfig{
			BufferCapacity:   8,
			MaxRetries:       2,
			InitialBackoff:   time.Second,
			MaxBackoff:       4 * time.Second,
			MaxFeeds:         5,
			DialConcurrency:  3,
			DroppedRetention: time.Hour,
			FetchAttempts:    7,
			FetchDelay:       time.Second,
		},
		Server: config.ServerConfig{Port: 9090},
	}

	cfg := FromAppConfig(app)
	if cfg.TargetURL != "ws://target" || cfg.SubmitTimeout != 3*time.Second || cfg.Port != 9090 {
		t.Errorf("unexpected target settings: %+v", cfg)
	}
	if cfg.FeedProcessor == nil || *cfg.FeedProcessor != 2 {
		t.Errorf("expected feed processor 2, got %v", cfg.FeedProcessor)
	}
	if len(cfg.Sources) != 2 || cfg.Sources[0].Index != 1 || cfg.Sources[1].Endpoint != "ws://a" {
		t.Errorf("expected explicit indices to be kept, got %+v", cfg.Sources)
	}
	if cfg.Scheduler.BufferCapacity != 8 || cfg.Scheduler.MaxRetries != 2 || cfg.Scheduler.MaxBackoff != 4*time.Second {
		t.Errorf("unexpected scheduler config: %+v", cfg.Scheduler)
	}
	if cfg.MaxFeeds != 5 || cfg.DialConcurrency != 3 || cfg.DroppedRetention != time.Hour {
		t.Errorf("unexpected relay tunables: %+v", cfg)
	}
	if cfg.FetchAttempts != 7 || cfg.FetchDelay != time.Second {
		t.Errorf("unexpected fetch policy: %d, %s", cfg.FetchAttempts, cfg.FetchDelay)
	}
}
