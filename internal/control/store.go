package control

import (
	"context"
	"fmt"
	"log/slog"

	redisclient "github.com/vietddude/feedrelay/internal/infra/redis"
	"github.com/vietddude/feedrelay/internal/infra/storage"
	"github.com/vietddude/feedrelay/internal/infra/storage/memory"
	"github.com/vietddude/feedrelay/internal/infra/storage/postgres"
)

// OpenStore selects the storage backends. Feed assignments need PostgreSQL;
// progress and dropped items prefer Redis, then PostgreSQL, then memory.
func OpenStore(ctx context.Context, dbCfg postgres.Config, redisCfg redisclient.Config) (*storage.Store, error) {
	store := memory.NewStore()

	if dbCfg.URL != "" {
		db, err := postgres.NewDB(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		collectorCtx, stopCollector := context.WithCancel(context.Background())
		db.StartMetricsCollector(collectorCtx)
		store.OnClose(func() error {
			stopCollector()
			return db.Close()
		})

		store.Feeds = postgres.NewFeedRepo(db)
		store.Progress = postgres.NewProgressRepo(db)
		store.Dropped = postgres.NewDroppedItemRepo(db)
		store.Persistent = true
		slog.Info("Using PostgreSQL storage")
	}

	if redisCfg.URL != "" {
		client, err := redisclient.NewClient(redisCfg)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		store.OnClose(client.Close)

		store.Progress = redisclient.NewProgressRepo(client)
		store.Dropped = redisclient.NewDroppedItemRepo(client)
		store.Persistent = true
		slog.Info("Using Redis for progress and dropped items")
	}

	if !store.Persistent {
		slog.Info("Using Memory storage")
	}
	return store, nil
}
