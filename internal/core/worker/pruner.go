package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/feedrelay/internal/infra/storage"
)

// Pruner deletes dropped items older than the retention period.
type Pruner struct {
	retention time.Duration
	repo      storage.DroppedItemRepository
	now       func() time.Time
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, repo storage.DroppedItemRepository) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		now:       time.Now,
		log:       slog.Default().With("component", "pruner"),
	}
}

// Interval is how often Start prunes: 10% of the retention, clamped to [1m, 1h].
func (p *Pruner) Interval() time.Duration {
	interval := min(p.retention/10, 1*time.Hour)
	return max(interval, 1*time.Minute)
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs one retention pass and returns the number of deleted items.
func (p *Pruner) Prune(ctx context.Context) int {
	cutoff := p.now().Add(-p.retention)
	n, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error("Failed to prune dropped items", "error", err)
		return 0
	}
	if n > 0 {
		p.log.Info("Pruned dropped items", "count", n, "cutoff", cutoff)
	}
	return n
}
