package control

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/core/progress"
	"github.com/vietddude/feedrelay/internal/infra/storage"
	"github.com/vietddude/feedrelay/internal/relaying/metrics"
	"github.com/vietddude/feedrelay/internal/relaying/scheduler"
)

const (
	recorderQueueSize = 1024
	recordTimeout     = 5 * time.Second
)

// recorder turns scheduler events into metrics and storage writes.
// Writes run on its own goroutine so the scheduler never waits on storage.
type recorder struct {
	scheduler.NopObserver

	dropped storage.DroppedItemRepository
	tracker *progress.Tracker
	log     *slog.Logger

	jobs     chan func(ctx context.Context)
	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	overflow atomic.Uint64
}

func newRecorder(dropped storage.DroppedItemRepository, tracker *progress.Tracker) *recorder {
	r := &recorder{
		dropped: dropped,
		tracker: tracker,
		log:     slog.Default().With("component", "recorder"),
		jobs:    make(chan func(ctx context.Context), recorderQueueSize),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *recorder) loop() {
	defer close(r.done)
	for job := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		job(ctx)
		cancel()
	}
}

func (r *recorder) enqueue(job func(ctx context.Context)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.jobs <- job:
	default:
		n := r.overflow.Add(1)
		r.log.Warn("Recorder queue full, record skipped", "skipped_total", n)
	}
}

// close stops accepting records and waits until queued ones are written.
func (r *recorder) close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *recorder) OnAccepted(result domain.SubmissionResult) {
	item := result.Item
	source := strconv.Itoa(item.SourceIndex())
	metrics.ItemsAccepted.WithLabelValues(source, item.FeedID.String()).Inc()

	r.enqueue(func(ctx context.Context) {
		if err := r.tracker.Record(ctx, item); err != nil {
			if errors.Is(err, progress.ErrNotAdvancing) {
				r.log.Debug("Progress not advanced", "feed_id", uint64(item.FeedID), "error", err)
				return
			}
			r.log.Warn("Failed to record progress", "feed_id", uint64(item.FeedID), "error", err)
		}
	})
}

func (r *recorder) OnDropped(item domain.RelayItem, reason domain.DropReason, err error, attempts int) {
	source := strconv.Itoa(item.SourceIndex())
	metrics.ItemsDropped.WithLabelValues(source, item.FeedID.String(), string(reason)).Inc()
	if reason != domain.DropReasonShutdown {
		metrics.FailuresTotal.WithLabelValues(string(domain.FailureKindFatalSubmission), source).Inc()
	}

	dropped := &domain.DroppedItem{
		ID:          uuid.NewString(),
		FeedID:      item.FeedID,
		SourceIndex: item.SourceIndex(),
		BlockNumber: item.Block.Number,
		BlockHash:   item.Block.Hash,
		Reason:      reason,
		Attempts:    attempts,
		DroppedAt:   time.Now(),
	}
	if err != nil {
		dropped.Error = err.Error()
	}

	r.enqueue(func(ctx context.Context) {
		if err := r.dropped.Add(ctx, dropped); err != nil {
			r.log.Error("Failed to store dropped item",
				"feed_id", uint64(item.FeedID), "block", item.Block.Number, "error", err)
		}
	})
}

func (r *recorder) OnRetry(item domain.RelayItem, attempt int, delay time.Duration, err error) {
	source := strconv.Itoa(item.SourceIndex())
	metrics.SubmitRetries.WithLabelValues(source, item.FeedID.String()).Inc()
	metrics.FailuresTotal.WithLabelValues(string(domain.FailureKindTransientSubmission), source).Inc()
}

func (r *recorder) OnSourceLost(sourceIndex int, feedID domain.FeedID, err error) {
	metrics.FailuresTotal.WithLabelValues(string(domain.FailureKindConnectionLost), strconv.Itoa(sourceIndex)).Inc()
}
