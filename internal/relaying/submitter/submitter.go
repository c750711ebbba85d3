// Package submitter archives relay items on the target chain.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/infra/chain"
	"github.com/vietddude/feedrelay/internal/relaying/metrics"
)

const DefaultSubmitTimeout = 30 * time.Second

var (
	// ErrNoFeedEvent is returned when a creation receipt lacks the FeedCreated event.
	ErrNoFeedEvent = errors.New("receipt has no Feeds.FeedCreated event")
)

type Config struct {
	// SubmitTimeout bounds one submission, from signing until inclusion in a block.
	SubmitTimeout time.Duration
	// FeedProcessor is the feed processor kind passed to Feeds.create.
	FeedProcessor *uint8
}

// Submitter submits target calls through a connection that signs them.
type Submitter struct {
	conn      chain.Connection
	timeout   time.Duration
	processor *uint8
	runID     uuid.UUID
	log       *slog.Logger
}

func New(conn chain.Connection, cfg Config) *Submitter {
	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	runID := uuid.New()
	return &Submitter{
		conn:      conn,
		timeout:   timeout,
		processor: cfg.FeedProcessor,
		runID:     runID,
		log:       slog.Default().With("component", "submitter", "run_id", runID.String()),
	}
}

// RunID identifies the relayer run in logs.
func (s *Submitter) RunID() uuid.UUID {
	return s.runID
}

// Submit performs exactly one submission of item and classifies the result.
func (s *Submitter) Submit(ctx context.Context, item domain.RelayItem) domain.SubmissionResult {
	result := domain.SubmissionResult{Item: item, Attempts: 1}

	call, err := PutBlockCall(item)
	if err != nil {
		result.Outcome = domain.OutcomeFatal
		result.Err = err
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	receipt, err := s.conn.SubmitCall(ctx, call)
	result.Outcome = Classify(err)
	metrics.SubmitLatency.WithLabelValues(result.Outcome.String()).Observe(time.Since(start).Seconds())

	if receipt != nil {
		result.TxHash = receipt.TxHash
	}
	switch {
	case err == nil:
	case result.Outcome == domain.OutcomeAccepted:
		s.log.Debug("Extrinsic already in pool",
			"source", item.SourceIndex(),
			"feed_id", uint64(item.FeedID),
			"block", item.Block.Number,
		)
	default:
		result.Err = fmt.Errorf("submit block %d of feed %s: %w", item.Block.Number, item.FeedID, err)
	}
	return result
}

// CreateFeed requests a feed for src and returns the id the target assigned.
func (s *Submitter) CreateFeed(ctx context.Context, src domain.SourceDescriptor) (domain.FeedID, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	receipt, err := s.conn.SubmitCall(ctx, CreateFeedCall(s.processor))
	if err != nil {
		return 0, fmt.Errorf("submit %s: %w", CallCreateFeed, err)
	}

	id, err := feedIDFromReceipt(receipt)
	if err != nil {
		return 0, err
	}
	s.log.Debug("Feed creation included",
		"source", src.Index, "feed_id", uint64(id), "tx", receipt.TxHash, "block", receipt.BlockHash)
	return id, nil
}
