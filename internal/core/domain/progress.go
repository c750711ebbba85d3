package domain

import "time"

// RelayProgress is the last block of a feed accepted by the target chain
type RelayProgress struct {
	FeedID      FeedID    `json:"feed_id"      db:"feed_id"`
	SourceIndex int       `json:"source_index" db:"source_index"`
	BlockNumber uint64    `json:"block_number" db:"block_number"`
	BlockHash   string    `json:"block_hash"   db:"block_hash"`
	UpdatedAt   time.Time `json:"updated_at"   db:"updated_at"`
}
