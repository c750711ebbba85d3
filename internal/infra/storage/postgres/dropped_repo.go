package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

// DroppedItemRepo implements storage.DroppedItemRepository using PostgreSQL.
type DroppedItemRepo struct {
	db *DB
}

func NewDroppedItemRepo(db *DB) *DroppedItemRepo {
	return &DroppedItemRepo{db: db}
}

// Add records a dropped item. Re-adding the same id is a no-op.
func (r *DroppedItemRepo) Add(ctx context.Context, item *domain.DroppedItem) error {
	query := `
		INSERT INTO dropped_items
			(id, feed_id, source_index, block_number, block_hash, reason, error_msg, attempts, dropped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	droppedAt := item.DroppedAt
	if droppedAt.IsZero() {
		droppedAt = time.Now()
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		item.ID,
		int64(item.FeedID),
		item.SourceIndex,
		int64(item.BlockNumber),
		item.BlockHash,
		string(item.Reason),
		item.Error,
		item.Attempts,
		droppedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add dropped item: %w", err)
	}
	return nil
}

func (r *DroppedItemRepo) GetAll(ctx context.Context, feedID *domain.FeedID) ([]*domain.DroppedItem, error) {
	var (
		rows []*domain.DroppedItem
		err  error
	)
	const columns = `id, feed_id, source_index, block_number, block_hash, reason, error_msg, attempts, dropped_at`
	if feedID == nil {
		err = r.db.SelectContext(ctx, &rows,
			`SELECT `+columns+` FROM dropped_items ORDER BY dropped_at ASC`)
	} else {
		err = r.db.SelectContext(ctx, &rows,
			`SELECT `+columns+` FROM dropped_items WHERE feed_id = $1 ORDER BY dropped_at ASC`,
			int64(*feedID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dropped items: %w", err)
	}
	return rows, nil
}

func (r *DroppedItemRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM dropped_items`); err != nil {
		return 0, fmt.Errorf("failed to count dropped items: %w", err)
	}
	return count, nil
}

func (r *DroppedItemRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dropped_items WHERE dropped_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune dropped items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}
