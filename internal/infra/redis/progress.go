package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

// advanceScript moves a feed forward only if the new block is past the recorded one.
// KEYS[1] block hash, KEYS[2] record hash; ARGV feed, block, record.
var advanceScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur and tonumber(cur) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
return 1
`)

// ProgressRepo implements storage.ProgressRepository using Redis hashes keyed by feed.
type ProgressRepo struct {
	rdb *redis.Client
}

func NewProgressRepo(client *Client) *ProgressRepo {
	return &ProgressRepo{rdb: client.rdb}
}

func (r *ProgressRepo) blocksKey() string {
	return key("progress", "block")
}

func (r *ProgressRepo) recordsKey() string {
	return key("progress", "record")
}

func (r *ProgressRepo) Advance(ctx context.Context, p *domain.RelayProgress) (bool, error) {
	rec := *p
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to marshal progress: %w", err)
	}

	moved, err := advanceScript.Run(ctx, r.rdb,
		[]string{r.blocksKey(), r.recordsKey()},
		rec.FeedID.String(), strconv.FormatUint(rec.BlockNumber, 10), string(data),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to advance progress: %w", err)
	}
	return moved == 1, nil
}

func (r *ProgressRepo) Get(ctx context.Context, feedID domain.FeedID) (*domain.RelayProgress, error) {
	data, err := r.rdb.HGet(ctx, r.recordsKey(), feedID.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hget failed: %w", err)
	}

	var p domain.RelayProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

func (r *ProgressRepo) GetAll(ctx context.Context) ([]*domain.RelayProgress, error) {
	all, err := r.rdb.HGetAll(ctx, r.recordsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}

	out := make([]*domain.RelayProgress, 0, len(all))
	for _, data := range all {
		var p domain.RelayProgress
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeedID < out[j].FeedID })
	return out, nil
}

func (r *ProgressRepo) Clear(ctx context.Context, feedIDs ...domain.FeedID) (int, error) {
	if len(feedIDs) == 0 {
		n, err := r.rdb.HLen(ctx, r.recordsKey()).Result()
		if err != nil {
			return 0, fmt.Errorf("hlen failed: %w", err)
		}
		if err := r.rdb.Del(ctx, r.blocksKey(), r.recordsKey()).Err(); err != nil {
			return 0, fmt.Errorf("failed to clear progress: %w", err)
		}
		return int(n), nil
	}

	fields := make([]string, len(feedIDs))
	for i, id := range feedIDs {
		fields[i] = id.String()
	}
	pipe := r.rdb.TxPipeline()
	pipe.HDel(ctx, r.blocksKey(), fields...)
	removed := pipe.HDel(ctx, r.recordsKey(), fields...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear progress: %w", err)
	}
	return int(removed.Val()), nil
}
