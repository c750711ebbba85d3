package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

// ProgressRepo implements storage.ProgressRepository using PostgreSQL.
type ProgressRepo struct {
	db *DB
}

func NewProgressRepo(db *DB) *ProgressRepo {
	return &ProgressRepo{db: db}
}

// Advance upserts the progress only when it moves the feed forward.
func (r *ProgressRepo) Advance(ctx context.Context, p *domain.RelayProgress) (bool, error) {
	query := `
		INSERT INTO relay_progress (feed_id, source_index, block_number, block_hash, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (feed_id) DO UPDATE SET
			source_index = EXCLUDED.source_index,
			block_number = EXCLUDED.block_number,
			block_hash   = EXCLUDED.block_hash,
			updated_at   = EXCLUDED.updated_at
		WHERE relay_progress.block_number < EXCLUDED.block_number
	`
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, query,
		int64(p.FeedID), p.SourceIndex, int64(p.BlockNumber), p.BlockHash, updatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to advance progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *ProgressRepo) Get(ctx context.Context, feedID domain.FeedID) (*domain.RelayProgress, error) {
	var p domain.RelayProgress
	query := `
		SELECT feed_id, source_index, block_number, block_hash, updated_at
		FROM relay_progress
		WHERE feed_id = $1
	`
	err := r.db.GetContext(ctx, &p, query, int64(feedID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return &p, nil
}

func (r *ProgressRepo) GetAll(ctx context.Context) ([]*domain.RelayProgress, error) {
	var rows []*domain.RelayProgress
	query := `
		SELECT feed_id, source_index, block_number, block_hash, updated_at
		FROM relay_progress
		ORDER BY feed_id ASC
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return rows, nil
}

func (r *ProgressRepo) Clear(ctx context.Context, feedIDs ...domain.FeedID) (int, error) {
	var (
		res sql.Result
		err error
	)
	if len(feedIDs) == 0 {
		res, err = r.db.ExecContext(ctx, `DELETE FROM relay_progress`)
	} else {
		ids := make([]int64, len(feedIDs))
		for i, id := range feedIDs {
			ids[i] = int64(id)
		}
		var query string
		var args []any
		query, args, err = sqlx.In(`DELETE FROM relay_progress WHERE feed_id IN (?)`, ids)
		if err != nil {
			return 0, fmt.Errorf("failed to build clear query: %w", err)
		}
		res, err = r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}
