// Package scheduler merges independently paced source lanes into one submission order.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/relaying/metrics"
	"github.com/vietddude/feedrelay/internal/relaying/recovery"
)

const (
	DefaultBufferCapacity = 32
	DefaultMaxRetries     = 5
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("scheduler already run")

// Source is a lazy sequence of relay items for one feed.
type Source interface {
	Index() int
	FeedID() domain.FeedID
	Next(ctx context.Context) (domain.RelayItem, error)
	Close() error
}

// Submitter submits one relay item once.
type Submitter interface {
	Submit(ctx context.Context, item domain.RelayItem) domain.SubmissionResult
}

// Config bounds the lane buffers and the retry policy. Zero values take the defaults.
type Config struct {
	BufferCapacity int
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = DefaultBufferCapacity
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	return c
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithObserver reports scheduler events to o.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// lane is the bounded buffer of a single source.
// slots holds one token per free buffer position.
type lane struct {
	src    Source
	index  int
	label  string
	feedID domain.FeedID

	slots chan struct{}
	buf   chan domain.RelayItem
	done  chan struct{}

	lost      atomic.Bool
	submitted atomic.Uint64
	dropped   atomic.Uint64
	closeOnce sync.Once
}

func (l *lane) close(log *slog.Logger) {
	l.closeOnce.Do(func() {
		if err := l.src.Close(); err != nil {
			log.Debug("Source close failed", "source", l.index, "error", err)
		}
	})
}

// Scheduler owns the lanes, their buffers and all retry state.
type Scheduler struct {
	cfg       Config
	submitter Submitter
	backoff   *recovery.ExponentialBackoff
	observer  Observer
	log       *slog.Logger

	mu     sync.Mutex
	state  State
	lanes  []*lane
	cursor int

	laneCtx     context.Context
	cancelLanes context.CancelFunc
	ready       chan struct{}
	ran         atomic.Bool
}

// New creates an idle scheduler submitting through submitter.
func New(cfg Config, submitter Submitter, opts ...Option) *Scheduler {
	cfg = cfg.withDefaults()
	laneCtx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cfg:       cfg,
		submitter: submitter,
		backoff: &recovery.ExponentialBackoff{
			InitialDelay: cfg.InitialBackoff,
			MaxDelay:     cfg.MaxBackoff,
			MaxRetries:   cfg.MaxRetries,
			Classifier:   recovery.ClassifyOutcome,
		},
		observer:    NopObserver{},
		log:         slog.Default().With("component", "scheduler"),
		laneCtx:     laneCtx,
		cancelLanes: cancel,
		ready:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach adds a lane for src and starts pulling from it.
// The first attach moves the scheduler from idle to running.
func (s *Scheduler) Attach(src Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Accepting() {
		return fmt.Errorf("attach source %d: %w", src.Index(), domain.ErrNotAccepting)
	}

	l := &lane{
		src:    src,
		index:  src.Index(),
		label:  strconv.Itoa(src.Index()),
		feedID: src.FeedID(),
		slots:  make(chan struct{}, s.cfg.BufferCapacity),
		buf:    make(chan domain.RelayItem, s.cfg.BufferCapacity),
		done:   make(chan struct{}),
	}
	for i := 0; i < s.cfg.BufferCapacity; i++ {
		l.slots <- struct{}{}
	}
	s.lanes = append(s.lanes, l)
	metrics.SourcesActive.Inc()

	if s.state == StateIdle {
		s.setStateLocked(StateRunning)
	}

	go s.produce(l)
	s.log.Info("Source attached", "source", l.index, "feed_id", uint64(l.feedID), "capacity", s.cfg.BufferCapacity)
	return nil
}

// produce pulls from the source only while the lane has a free slot.
func (s *Scheduler) produce(l *lane) {
	defer close(l.done)
	ctx := s.laneCtx

	for {
		select {
		case <-l.slots:
		case <-ctx.Done():
			return
		}

		item, err := l.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.loseLane(l, err)
			return
		}

		l.buf <- item
		metrics.BlocksReceived.WithLabelValues(l.label).Inc()
		metrics.BufferedItems.WithLabelValues(l.label).Set(float64(len(l.buf)))
		s.signal()
	}
}

func (s *Scheduler) loseLane(l *lane, err error) {
	if !l.lost.CompareAndSwap(false, true) {
		return
	}
	metrics.SourcesActive.Dec()

	ev := domain.FailureEvent{
		Kind:        domain.FailureKindConnectionLost,
		SourceIndex: l.index,
		FeedID:      l.feedID,
		Err:         err,
		At:          time.Now(),
	}
	s.log.Error("Source lost", append(ev.LogAttrs(), "buffered", len(l.buf))...)
	s.observer.OnSourceLost(l.index, l.feedID, err)
	l.close(s.log)
}

func (s *Scheduler) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Run submits buffered items round-robin until ctx is cancelled, then drains.
// Every source attached so far is closed before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	for ctx.Err() == nil {
		l, item, ok := s.pick()
		if !ok {
			select {
			case <-s.ready:
			case <-ctx.Done():
			}
			continue
		}
		s.submit(ctx, l, item)
	}

	s.shutdown()
	return nil
}

// pick scans the lanes starting after the last served one and dequeues
// the first available item.
func (s *Scheduler) pick() (*lane, domain.RelayItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.lanes)
	for i := 0; i < n; i++ {
		idx := (s.cursor + i) % n
		l := s.lanes[idx]
		select {
		case item := <-l.buf:
			l.slots <- struct{}{}
			s.cursor = idx + 1
			metrics.BufferedItems.WithLabelValues(l.label).Set(float64(len(l.buf)))
			return l, item, true
		default:
		}
	}
	return nil, domain.RelayItem{}, false
}

// submit runs the submission with retries. The submission itself is detached
// from ctx so an in-flight attempt completes; ctx only cuts the backoff waits.
func (s *Scheduler) submit(ctx context.Context, l *lane, item domain.RelayItem) {
	submitCtx := context.WithoutCancel(ctx)
	var last domain.SubmissionResult

	attempts, err := s.backoff.Do(ctx, func(attempt int) error {
		last = s.submitter.Submit(submitCtx, item)
		if last.Outcome == domain.OutcomeAccepted {
			return nil
		}
		return &recovery.OutcomeError{Outcome: last.Outcome, Err: last.Err}
	}, func(attempt int, delay time.Duration, err error) {
		s.log.Warn("Submission failed, retrying",
			append(s.failure(domain.FailureKindTransientSubmission, item, err).LogAttrs(),
				"attempt", attempt, "delay", delay)...)
		s.observer.OnRetry(item, attempt, delay, err)
	})
	last.Item = item
	last.Attempts = attempts

	switch {
	case attempts == 0:
		// Shutdown won the race with pick; the item was never sent.
		s.drop(l, item, domain.DropReasonShutdown, err, 0)

	case err == nil:
		last.Outcome = domain.OutcomeAccepted
		l.submitted.Add(1)
		s.log.Debug("Item accepted",
			"source", l.index, "feed_id", uint64(l.feedID), "block", item.Block.Number, "attempts", attempts)
		s.observer.OnAccepted(last)

	case last.Outcome == domain.OutcomeFatal:
		s.drop(l, item, domain.DropReasonFatal, last.Err, attempts)

	case ctx.Err() != nil && attempts <= s.cfg.MaxRetries:
		s.drop(l, item, domain.DropReasonShutdown, last.Err, attempts)

	default:
		exhausted := fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, attempts, last.Err)
		s.drop(l, item, domain.DropReasonRetriesExhausted, exhausted, attempts)
	}
}

func (s *Scheduler) drop(l *lane, item domain.RelayItem, reason domain.DropReason, err error, attempts int) {
	l.dropped.Add(1)
	if reason != domain.DropReasonShutdown {
		s.log.Error("Item dropped",
			append(s.failure(domain.FailureKindFatalSubmission, item, err).LogAttrs(),
				"reason", string(reason), "attempts", attempts)...)
	}
	s.observer.OnDropped(item, reason, err, attempts)
}

func (s *Scheduler) failure(kind domain.FailureKind, item domain.RelayItem, err error) domain.FailureEvent {
	return domain.FailureEvent{
		Kind:        kind,
		SourceIndex: item.SourceIndex(),
		FeedID:      item.FeedID,
		BlockNumber: item.Block.Number,
		Err:         err,
		At:          time.Now(),
	}
}

// shutdown stops every lane and discards what is still buffered.
func (s *Scheduler) shutdown() {
	s.mu.Lock()
	s.setStateLocked(StateDraining)
	lanes := make([]*lane, len(s.lanes))
	copy(lanes, s.lanes)
	s.mu.Unlock()

	s.cancelLanes()
	for _, l := range lanes {
		l.close(s.log)
	}
	for _, l := range lanes {
		<-l.done
	}

	discarded := 0
	for _, l := range lanes {
	drain:
		for {
			select {
			case item := <-l.buf:
				discarded++
				s.drop(l, item, domain.DropReasonShutdown, nil, 0)
			default:
				break drain
			}
		}
		metrics.BufferedItems.WithLabelValues(l.label).Set(0)
		if !l.lost.Load() {
			metrics.SourcesActive.Dec()
		}
	}

	s.log.Info("Scheduler drained", "sources", len(lanes), "discarded", discarded)

	s.mu.Lock()
	s.setStateLocked(StateStopped)
	s.mu.Unlock()
}

func (s *Scheduler) setStateLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	metrics.SchedulerState.Set(float64(to))
	s.log.Info("Scheduler state changed", "from", from.String(), "to", to.String())
	s.observer.OnStateChange(from, to)
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LaneStats is a point-in-time view of one lane.
type LaneStats struct {
	SourceIndex int
	FeedID      domain.FeedID
	Buffered    int
	Capacity    int
	Active      bool
	Submitted   uint64
	Dropped     uint64
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	State State
	Lanes []LaneStats
}

// Stats returns the state and per-lane counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{State: s.state, Lanes: make([]LaneStats, 0, len(s.lanes))}
	for _, l := range s.lanes {
		stats.Lanes = append(stats.Lanes, LaneStats{
			SourceIndex: l.index,
			FeedID:      l.feedID,
			Buffered:    len(l.buf),
			Capacity:    cap(l.buf),
			Active:      !l.lost.Load() && s.state.Accepting(),
			Submitted:   l.submitted.Load(),
			Dropped:     l.dropped.Load(),
		})
	}
	return stats
}
