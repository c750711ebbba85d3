package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/infra/storage"
	"github.com/vietddude/feedrelay/internal/relaying/metrics"
)

// ErrNotAdvancing is returned when a feed is asked to move to a block it already passed.
var ErrNotAdvancing = errors.New("block does not advance feed progress")

const defaultWindow = 50

// Tracker records the last accepted block of every feed.
// Progress is best effort: the target chain remains the authority.
type Tracker struct {
	repo storage.ProgressRepository
	log  *slog.Logger

	mu      sync.RWMutex
	latest  map[domain.FeedID]uint64
	windows map[domain.FeedID]*Throughput
}

func NewTracker(repo storage.ProgressRepository) *Tracker {
	return &Tracker{
		repo:    repo,
		log:     slog.Default().With("component", "progress"),
		latest:  make(map[domain.FeedID]uint64),
		windows: make(map[domain.FeedID]*Throughput),
	}
}

// Load seeds the tracker from persisted progress.
func (t *Tracker) Load(ctx context.Context) error {
	all, err := t.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range all {
		t.latest[p.FeedID] = p.BlockNumber
	}
	return nil
}

// Record advances the feed of an accepted item.
func (t *Tracker) Record(ctx context.Context, item domain.RelayItem) error {
	t.mu.Lock()
	if last, ok := t.latest[item.FeedID]; ok && item.Block.Number <= last {
		t.mu.Unlock()
		return fmt.Errorf("feed %s at %d, got %d: %w", item.FeedID, last, item.Block.Number, ErrNotAdvancing)
	}
	t.latest[item.FeedID] = item.Block.Number
	w, ok := t.windows[item.FeedID]
	if !ok {
		w = NewThroughput(defaultWindow)
		t.windows[item.FeedID] = w
	}
	now := time.Now()
	w.RecordBlock(item.Block.Number, now)
	t.mu.Unlock()

	metrics.LatestRelayedBlock.WithLabelValues(
		fmt.Sprint(item.SourceIndex()), item.FeedID.String(),
	).Set(float64(item.Block.Number))

	moved, err := t.repo.Advance(ctx, &domain.RelayProgress{
		FeedID:      item.FeedID,
		SourceIndex: item.SourceIndex(),
		BlockNumber: item.Block.Number,
		BlockHash:   item.Block.Hash,
		UpdatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("failed to persist progress: %w", err)
	}
	if !moved {
		t.log.Debug("Persisted progress already ahead", "feed_id", uint64(item.FeedID), "block", item.Block.Number)
	}
	return nil
}

// Latest returns the last accepted block of a feed.
func (t *Tracker) Latest(feedID domain.FeedID) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.latest[feedID]
	return n, ok
}

// BlocksPerSecond reports the recent relay rate of a feed.
func (t *Tracker) BlocksPerSecond(feedID domain.FeedID) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, ok := t.windows[feedID]
	if !ok {
		return 0
	}
	return w.BlocksPerSecond()
}

// Reset forgets the given feeds, or every feed when none is given.
func (t *Tracker) Reset(ctx context.Context, feedIDs ...domain.FeedID) (int, error) {
	n, err := t.repo.Clear(ctx, feedIDs...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear progress: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(feedIDs) == 0 {
		t.latest = make(map[domain.FeedID]uint64)
		t.windows = make(map[domain.FeedID]*Throughput)
		return n, nil
	}
	for _, id := range feedIDs {
		delete(t.latest, id)
		delete(t.windows, id)
	}
	return n, nil
}
