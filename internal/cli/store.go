package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/vietddude/feedrelay/internal/control"
	"github.com/vietddude/feedrelay/internal/core/config"
	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/infra/storage"
)

// openStore opens the configured backends and exits if none is persistent.
func openStore(ctx context.Context, cfg *config.AppConfig) *storage.Store {
	store, err := control.OpenStore(ctx, cfg.Database, cfg.Redis)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	if !store.Persistent {
		_ = store.Close()
		slog.Error("No persistent storage configured, set database.url or redis.url")
		os.Exit(1)
	}
	return store
}

func parseFeedIDs(args []string) ([]domain.FeedID, error) {
	ids := make([]domain.FeedID, 0, len(args))
	for _, a := range args {
		n, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid feed id %q: %w", a, err)
		}
		ids = append(ids, domain.FeedID(n))
	}
	return ids, nil
}
