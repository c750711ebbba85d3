package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

// DroppedItemRepo implements storage.DroppedItemRepository using Redis.
// Items live in per-id keys indexed by a sorted set scored by drop time.
type DroppedItemRepo struct {
	rdb *redis.Client
}

func NewDroppedItemRepo(client *Client) *DroppedItemRepo {
	return &DroppedItemRepo{rdb: client.rdb}
}

// Key helpers
func (r *DroppedItemRepo) queueKey() string {
	return key("dropped")
}

func (r *DroppedItemRepo) itemKey(id string) string {
	return key("dropped_item", id)
}

// Add adds a dropped item to the queue.
func (r *DroppedItemRepo) Add(ctx context.Context, item *domain.DroppedItem) error {
	if item.DroppedAt.IsZero() {
		item.DroppedAt = time.Now()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal dropped item: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.itemKey(item.ID), data, 0)
	pipe.ZAdd(ctx, r.queueKey(), redis.Z{
		Score:  float64(item.DroppedAt.UnixMilli()),
		Member: item.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add dropped item: %w", err)
	}
	return nil
}

// GetAll retrieves dropped items oldest first.
func (r *DroppedItemRepo) GetAll(ctx context.Context, feedID *domain.FeedID) ([]*domain.DroppedItem, error) {
	ids, err := r.rdb.ZRange(ctx, r.queueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	items := make([]*domain.DroppedItem, 0, len(ids))
	for _, id := range ids {
		data, err := r.rdb.Get(ctx, r.itemKey(id)).Bytes()
		if err == redis.Nil {
			// Data removed but ID still in queue, remove it
			r.rdb.ZRem(ctx, r.queueKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get dropped item: %w", err)
		}

		var item domain.DroppedItem
		if err := json.Unmarshal(data, &item); err != nil {
			continue
		}
		if feedID != nil && item.FeedID != *feedID {
			continue
		}
		items = append(items, &item)
	}
	return items, nil
}

// Count returns the count of dropped items.
func (r *DroppedItemRepo) Count(ctx context.Context) (int, error) {
	count, err := r.rdb.ZCard(ctx, r.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

// DeleteOlderThan removes items dropped before cutoff.
func (r *DroppedItemRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	maxScore := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	ids, err := r.rdb.ZRangeByScore(ctx, r.queueKey(), &redis.ZRangeBy{Min: "-inf", Max: maxScore}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore failed: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = r.itemKey(id)
		members[i] = id
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, r.queueKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to prune dropped items: %w", err)
	}
	return len(ids), nil
}
