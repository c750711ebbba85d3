package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

func TestProgressRepo_AdvanceOnlyForward(t *testing.T) {
	repo := NewProgressRepo(NewMemoryStorage())
	ctx := context.Background()

	moved, err := repo.Advance(ctx, &domain.RelayProgress{FeedID: 1, BlockNumber: 10, BlockHash: "0xa"})
	if err != nil || !moved {
		t.Fatalf("first advance: moved=%v err=%v", moved, err)
	}
	if moved, _ := repo.Advance(ctx, &domain.RelayProgress{FeedID: 1, BlockNumber: 10}); moved {
		t.Error("same block should not advance")
	}
	if moved, _ := repo.Advance(ctx, &domain.RelayProgress{FeedID: 1, BlockNumber: 9}); moved {
		t.Error("older block should not advance")
	}
	if moved, _ := repo.Advance(ctx, &domain.RelayProgress{FeedID: 1, BlockNumber: 12, BlockHash: "0xc"}); !moved {
		t.Error("newer block should advance")
	}

	p, _ := repo.Get(ctx, 1)
	if p == nil || p.BlockNumber != 12 || p.BlockHash != "0xc" {
		t.Errorf("unexpected progress %+v", p)
	}
	if p.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
	if p, _ := repo.Get(ctx, 2); p != nil {
		t.Errorf("expected nil for unknown feed, got %+v", p)
	}
}

func TestProgressRepo_Clear(t *testing.T) {
	repo := NewProgressRepo(NewMemoryStorage())
	ctx := context.Background()
	for id := domain.FeedID(1); id <= 3; id++ {
		repo.Advance(ctx, &domain.RelayProgress{FeedID: id, BlockNumber: 1})
	}

	if n, _ := repo.Clear(ctx, 2, 9); n != 1 {
		t.Errorf("expected 1 cleared, got %d", n)
	}
	all, _ := repo.GetAll(ctx)
	if len(all) != 2 || all[0].FeedID != 1 || all[1].FeedID != 3 {
		t.Errorf("unexpected remaining progress %+v", all)
	}
	if n, _ := repo.Clear(ctx); n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
}

func TestDroppedItemRepo(t *testing.T) {
	repo := NewDroppedItemRepo(NewMemoryStorage())
	ctx := context.Background()
	now := time.Now()

	repo.Add(ctx, &domain.DroppedItem{ID: "b", FeedID: 2, DroppedAt: now.Add(-time.Minute)})
	repo.Add(ctx, &domain.DroppedItem{ID: "a", FeedID: 1, DroppedAt: now.Add(-2 * time.Hour)})
	repo.Add(ctx, &domain.DroppedItem{ID: "c", FeedID: 1, DroppedAt: now})

	all, _ := repo.GetAll(ctx, nil)
	if len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Errorf("expected oldest first, got %v", ids(all))
	}
	feed := domain.FeedID(1)
	byFeed, _ := repo.GetAll(ctx, &feed)
	if len(byFeed) != 2 {
		t.Errorf("expected 2 items for feed 1, got %d", len(byFeed))
	}

	n, _ := repo.DeleteOlderThan(ctx, now.Add(-time.Hour))
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if c, _ := repo.Count(ctx); c != 2 {
		t.Errorf("expected 2 remaining, got %d", c)
	}
}

func TestFeedRepo_SaveAllReplaces(t *testing.T) {
	repo := NewFeedRepo(NewMemoryStorage())
	ctx := context.Background()

	repo.SaveAll(ctx, []domain.FeedAssignment{{FeedID: 5, SourceIndex: 1}, {FeedID: 4, SourceIndex: 0}})
	repo.SaveAll(ctx, []domain.FeedAssignment{{FeedID: 8, SourceIndex: 1}, {FeedID: 7, SourceIndex: 0}})

	got, _ := repo.GetAll(ctx)
	if len(got) != 2 || got[0].FeedID != 7 || got[1].FeedID != 8 {
		t.Errorf("unexpected assignments %+v", got)
	}
}

func ids(items []*domain.DroppedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
