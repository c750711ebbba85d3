package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

// FeedRepo implements storage.FeedRepository using PostgreSQL.
type FeedRepo struct {
	db *DB
}

func NewFeedRepo(db *DB) *FeedRepo {
	return &FeedRepo{db: db}
}

// SaveAll replaces the recorded assignments in one transaction.
func (r *FeedRepo) SaveAll(ctx context.Context, assignments []domain.FeedAssignment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM feed_assignments`); err != nil {
		return fmt.Errorf("failed to clear feed assignments: %w", err)
	}

	query := `
		INSERT INTO feed_assignments (source_index, feed_id, endpoint, created_at)
		VALUES ($1, $2, $3, $4)
	`
	for _, a := range assignments {
		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query, a.SourceIndex, int64(a.FeedID), a.Endpoint, createdAt); err != nil {
			return fmt.Errorf("failed to save assignment of source %d: %w", a.SourceIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feed assignments: %w", err)
	}
	return nil
}

func (r *FeedRepo) GetAll(ctx context.Context) ([]domain.FeedAssignment, error) {
	var rows []domain.FeedAssignment
	query := `
		SELECT feed_id, source_index, endpoint, created_at
		FROM feed_assignments
		ORDER BY source_index ASC
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get feed assignments: %w", err)
	}
	return rows, nil
}
