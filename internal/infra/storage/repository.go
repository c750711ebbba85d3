package storage

import (
	"context"
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

// FeedRepository records the feed assignments of the latest run
type FeedRepository interface {
	// SaveAll replaces the recorded assignments with those of a run
	SaveAll(ctx context.Context, assignments []domain.FeedAssignment) error

	// GetAll retrieves the recorded assignments ordered by source index
	GetAll(ctx context.Context) ([]domain.FeedAssignment, error)
}

// ProgressRepository handles the best-effort relay progress record
type ProgressRepository interface {
	// Advance stores progress if it is past the recorded block of the feed.
	// It reports whether the record moved.
	Advance(ctx context.Context, progress *domain.RelayProgress) (bool, error)

	// Get retrieves the progress of a feed, nil if none is recorded
	Get(ctx context.Context, feedID domain.FeedID) (*domain.RelayProgress, error)

	// GetAll retrieves the progress of every feed ordered by feed id
	GetAll(ctx context.Context) ([]*domain.RelayProgress, error)

	// Clear removes the progress of the given feeds, or of all feeds if none are given
	Clear(ctx context.Context, feedIDs ...domain.FeedID) (int, error)
}

// DroppedItemRepository handles the dead letter queue of dropped relay items
type DroppedItemRepository interface {
	// Add records a dropped item
	Add(ctx context.Context, item *domain.DroppedItem) error

	// GetAll retrieves dropped items, oldest first; a nil feed selects every feed
	GetAll(ctx context.Context, feedID *domain.FeedID) ([]*domain.DroppedItem, error)

	// Count returns the number of recorded dropped items
	Count(ctx context.Context) (int, error)

	// DeleteOlderThan removes items dropped before cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Store bundles the repositories of one backend configuration.
type Store struct {
	Feeds    FeedRepository
	Progress ProgressRepository
	Dropped  DroppedItemRepository

	// Persistent is false when every repository lives in process memory
	Persistent bool

	closers []func() error
}

// OnClose registers a function run by Close, in reverse order.
func (s *Store) OnClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Store) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
