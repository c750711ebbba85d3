package domain

import "time"

// DroppedItem represents a relay item that was permanently dropped
type DroppedItem struct {
	ID          string     `json:"id"           db:"id"`
	FeedID      FeedID     `json:"feed_id"      db:"feed_id"`
	SourceIndex int        `json:"source_index" db:"source_index"`
	BlockNumber uint64     `json:"block_number" db:"block_number"`
	BlockHash   string     `json:"block_hash"   db:"block_hash"`
	Reason      DropReason `json:"reason"       db:"reason"`
	Error       string     `json:"error_msg"    db:"error_msg"`
	Attempts    int        `json:"attempts"     db:"attempts"`
	DroppedAt   time.Time  `json:"dropped_at"   db:"dropped_at"`
}

type DropReason string

const (
	DropReasonFatal            DropReason = "fatal"
	DropReasonRetriesExhausted DropReason = "retries_exhausted"
	DropReasonShutdown         DropReason = "shutdown"
)
