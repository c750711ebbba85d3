package domain

import (
	"strconv"
	"time"
)

// FeedID identifies a feed on the target chain.
type FeedID uint64

func (f FeedID) String() string {
	return strconv.FormatUint(uint64(f), 10)
}

// SourceDescriptor describes one configured source chain.
type SourceDescriptor struct {
	Endpoint string
	Index    int
}

// FeedAssignment records which feed a source was assigned during a run.
type FeedAssignment struct {
	FeedID      FeedID    `json:"feed_id"      db:"feed_id"`
	SourceIndex int       `json:"source_index" db:"source_index"`
	Endpoint    string    `json:"endpoint"     db:"endpoint"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
}
