package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/infra/storage"
)

type MemoryStorage struct {
	feeds    []domain.FeedAssignment
	progress map[domain.FeedID]*domain.RelayProgress
	dropped  []*domain.DroppedItem
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		progress: make(map[domain.FeedID]*domain.RelayProgress),
	}
}

// NewStore returns a non-persistent store backed by a single MemoryStorage.
func NewStore() *storage.Store {
	m := NewMemoryStorage()
	return &storage.Store{
		Feeds:    NewFeedRepo(m),
		Progress: NewProgressRepo(m),
		Dropped:  NewDroppedItemRepo(m),
	}
}

// -----------------------------------------------------------------------------
// Feed Repository
// -----------------------------------------------------------------------------

type FeedRepo struct {
	store *MemoryStorage
}

func NewFeedRepo(store *MemoryStorage) *FeedRepo {
	return &FeedRepo{store: store}
}

func (r *FeedRepo) SaveAll(ctx context.Context, assignments []domain.FeedAssignment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.feeds = append([]domain.FeedAssignment(nil), assignments...)
	sort.Slice(r.store.feeds, func(i, j int) bool {
		return r.store.feeds[i].SourceIndex < r.store.feeds[j].SourceIndex
	})
	return nil
}

func (r *FeedRepo) GetAll(ctx context.Context) ([]domain.FeedAssignment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]domain.FeedAssignment(nil), r.store.feeds...), nil
}

// -----------------------------------------------------------------------------
// Progress Repository
// -----------------------------------------------------------------------------

type ProgressRepo struct {
	store *MemoryStorage
}

func NewProgressRepo(store *MemoryStorage) *ProgressRepo {
	return &ProgressRepo{store: store}
}

func (r *ProgressRepo) Advance(ctx context.Context, p *domain.RelayProgress) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if cur, ok := r.store.progress[p.FeedID]; ok && cur.BlockNumber >= p.BlockNumber {
		return false, nil
	}
	cp := *p
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	r.store.progress[p.FeedID] = &cp
	return true, nil
}

func (r *ProgressRepo) Get(ctx context.Context, feedID domain.FeedID) (*domain.RelayProgress, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.progress[feedID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *ProgressRepo) GetAll(ctx context.Context) ([]*domain.RelayProgress, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.RelayProgress, 0, len(r.store.progress))
	for _, p := range r.store.progress {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeedID < out[j].FeedID })
	return out, nil
}

func (r *ProgressRepo) Clear(ctx context.Context, feedIDs ...domain.FeedID) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if len(feedIDs) == 0 {
		n := len(r.store.progress)
		r.store.progress = make(map[domain.FeedID]*domain.RelayProgress)
		return n, nil
	}
	n := 0
	for _, id := range feedIDs {
		if _, ok := r.store.progress[id]; ok {
			delete(r.store.progress, id)
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Dropped Item Repository
// -----------------------------------------------------------------------------

type DroppedItemRepo struct {
	store *MemoryStorage
}

func NewDroppedItemRepo(store *MemoryStorage) *DroppedItemRepo {
	return &DroppedItemRepo{store: store}
}

func (r *DroppedItemRepo) Add(ctx context.Context, item *domain.DroppedItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *item
	r.store.dropped = append(r.store.dropped, &cp)
	return nil
}

func (r *DroppedItemRepo) GetAll(ctx context.Context, feedID *domain.FeedID) ([]*domain.DroppedItem, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.DroppedItem, 0, len(r.store.dropped))
	for _, it := range r.store.dropped {
		if feedID != nil && it.FeedID != *feedID {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DroppedAt.Before(out[j].DroppedAt) })
	return out, nil
}

func (r *DroppedItemRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.dropped), nil
}

func (r *DroppedItemRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.dropped[:0]
	for _, it := range r.store.dropped {
		if it.DroppedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, it)
	}
	n := len(r.store.dropped) - len(kept)
	r.store.dropped = kept
	return n, nil
}
