package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/core/progress"
	"github.com/vietddude/feedrelay/internal/core/worker"
	"github.com/vietddude/feedrelay/internal/infra/chain"
	"github.com/vietddude/feedrelay/internal/infra/chain/substrate"
	"github.com/vietddude/feedrelay/internal/infra/signer"
	"github.com/vietddude/feedrelay/internal/infra/storage"
	"github.com/vietddude/feedrelay/internal/relaying/health"
	"github.com/vietddude/feedrelay/internal/relaying/registry"
	"github.com/vietddude/feedrelay/internal/relaying/scheduler"
	"github.com/vietddude/feedrelay/internal/relaying/source"
	"github.com/vietddude/feedrelay/internal/relaying/submitter"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("relayer already started")

// Relayer wires the relay pipeline and manages its lifecycle.
type Relayer struct {
	cfg       Config
	dialer    chain.Dialer
	signer    *signer.Signer
	store     *storage.Store
	ownsStore bool

	target       chain.Connection
	submitter    *submitter.Submitter
	registry     *registry.Registry
	tracker      *progress.Tracker
	recorder     *recorder
	scheduler    *scheduler.Scheduler
	healthMon    *health.Monitor
	healthServer *health.Server
	pruner       *worker.Pruner

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup
	log     *slog.Logger
}

type Option func(*Relayer)

// WithDialer replaces the substrate dialer used for the target and every source.
func WithDialer(d chain.Dialer) Option {
	return func(r *Relayer) {
		if d != nil {
			r.dialer = d
		}
	}
}

// WithStore uses store instead of opening the configured backends.
// The caller keeps ownership and closes it.
func WithStore(store *storage.Store) Option {
	return func(r *Relayer) {
		r.store = store
	}
}

// NewRelayer validates cfg and prepares a relayer. No connection is opened yet.
func NewRelayer(cfg Config, opts ...Option) (*Relayer, error) {
	if cfg.TargetURL == "" {
		return nil, fmt.Errorf("%w: target url is required", domain.ErrStartup)
	}
	if err := registry.ValidateSources(cfg.Sources, cfg.MaxFeeds); err != nil {
		return nil, &registry.StartupError{SourceIndex: -1, Err: err}
	}

	sgn, err := signer.FromSeed(cfg.AccountSeed)
	if err != nil {
		return nil, fmt.Errorf("%w: account seed: %w", domain.ErrStartup, err)
	}

	r := &Relayer{
		cfg:    cfg,
		dialer: &substrate.Dialer{
			Account:       sgn.KeyringPair(),
			FetchAttempts: cfg.FetchAttempts,
			FetchDelay:    cfg.FetchDelay,
		},
		signer: sgn,
		done:   make(chan struct{}),
		log:    slog.Default().With("component", "relayer"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start creates the feeds, opens the sources and starts relaying.
// Errors returned by Start are startup failures; relaying runs until ctx is
// cancelled or Stop is called.
func (r *Relayer) Start(ctx context.Context) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true

	defer func() {
		if err != nil {
			r.release()
			close(r.done)
		}
	}()

	// 1. Storage
	if r.store == nil {
		store, err := OpenStore(ctx, r.cfg.Database, r.cfg.Redis)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStartup, err)
		}
		r.store = store
		r.ownsStore = true
	}

	// 2. Target chain and feed registry
	target, err := r.dialer.Connect(ctx, r.cfg.TargetURL)
	if err != nil {
		return fmt.Errorf("%w: connect target: %w", domain.ErrStartup, err)
	}
	r.target = target
	if name, err := target.ChainIdentity(ctx); err == nil {
		r.log.Info("Connected to target", "chain", name, "account", r.signer.Address())
	}

	r.submitter = submitter.New(target, submitter.Config{
		SubmitTimeout: r.cfg.SubmitTimeout,
		FeedProcessor: r.cfg.FeedProcessor,
	})
	r.log.Info("Creating feeds", "run_id", r.submitter.RunID().String(), "sources", len(r.cfg.Sources))
	reg, err := registry.Create(ctx, r.submitter, r.cfg.Sources, registry.Options{MaxFeeds: r.cfg.MaxFeeds})
	if err != nil {
		return err
	}
	r.registry = reg

	// Assignments are an operator record, the chain stays authoritative
	if err := r.store.Feeds.SaveAll(ctx, reg.Assignments()); err != nil {
		r.log.Warn("Failed to persist feed assignments", "error", err)
	}

	// 3. Progress and event recording
	r.tracker = progress.NewTracker(r.store.Progress)
	if err := r.tracker.Load(ctx); err != nil {
		r.log.Warn("Failed to load relay progress", "error", err)
	}
	r.recorder = newRecorder(r.store.Dropped, r.tracker)
	r.scheduler = scheduler.New(r.cfg.Scheduler, r.submitter, scheduler.WithObserver(r.recorder))

	// 4. Sources
	subs, err := r.openSources(ctx)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err := r.scheduler.Attach(sub); err != nil {
			sub.Close()
			return fmt.Errorf("%w: %w", domain.ErrStartup, err)
		}
	}

	// 5. Run
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(r.done)
		if err := r.scheduler.Run(runCtx); err != nil {
			r.log.Error("Scheduler failed", "error", err)
		}
	}()

	r.healthMon = health.NewMonitor(r.scheduler, r.store.Dropped, r.tracker)
	r.healthMon.ExpectSources(reg.Len())
	if r.cfg.Port > 0 {
		r.healthServer = health.NewServer(r.healthMon, r.cfg.Port)
		go func() {
			if err := r.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.log.Error("Health server failed", "error", err)
			}
		}()
	}

	if r.cfg.DroppedRetention > 0 {
		r.pruner = worker.NewPruner(r.cfg.DroppedRetention, r.store.Dropped)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.pruner.Start(runCtx)
		}()
	}

	r.log.Info("Relayer started", "sources", len(subs), "feeds", reg.Len())
	return nil
}

// openSources subscribes to every source concurrently. A source that cannot
// be opened is reported as lost; at least one must succeed.
func (r *Relayer) openSources(ctx context.Context) ([]*source.Subscription, error) {
	sources := r.registry.Sources()
	opened := make([]*source.Subscription, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.DialConcurrency > 0 {
		g.SetLimit(r.cfg.DialConcurrency)
	}
	for i, desc := range sources {
		feedID, err := r.registry.FeedID(desc.Index)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStartup, err)
		}
		g.Go(func() error {
			sub, err := source.Open(gctx, r.dialer, desc, feedID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				ev := domain.FailureEvent{
					Kind:        domain.FailureKindConnectionLost,
					SourceIndex: desc.Index,
					FeedID:      feedID,
					Err:         err,
				}
				r.log.Error("Failed to open source", ev.LogAttrs()...)
				r.recorder.OnSourceLost(desc.Index, feedID, err)
				return nil
			}
			opened[i] = sub
			return nil
		})
	}

	err := g.Wait()
	subs := make([]*source.Subscription, 0, len(opened))
	for _, sub := range opened {
		if sub != nil {
			subs = append(subs, sub)
		}
	}
	if err != nil {
		for _, sub := range subs {
			sub.Close()
		}
		return nil, fmt.Errorf("%w: open sources: %w", domain.ErrStartup, err)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: no source could be opened: %w", domain.ErrStartup, domain.ErrConnectionLost)
	}
	return subs, nil
}

// Stop signals shutdown and waits for the scheduler to drain, bounded by ctx.
func (r *Relayer) Stop(ctx context.Context) error {
	r.log.Info("Stopping relayer...")

	r.mu.Lock()
	started := r.started
	cancel := r.cancel
	r.mu.Unlock()
	if !started || cancel == nil {
		return nil
	}
	cancel()

	waited := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(waited)
	}()

	var stopErr error
	select {
	case <-waited:
	case <-ctx.Done():
		stopErr = fmt.Errorf("relayer stop: %w", ctx.Err())
	}

	if r.healthServer != nil {
		if err := r.healthServer.Stop(ctx); err != nil && stopErr == nil {
			stopErr = fmt.Errorf("health server stop: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.release()
	return stopErr
}

// release closes what Start acquired. Callers hold r.mu.
func (r *Relayer) release() {
	if r.recorder != nil {
		r.recorder.close()
		r.recorder = nil
	}
	if r.target != nil {
		if err := r.target.Close(); err != nil {
			r.log.Debug("Target close failed", "error", err)
		}
		r.target = nil
	}
	if r.store != nil && r.ownsStore {
		if err := r.store.Close(); err != nil {
			r.log.Warn("Failed to close storage", "error", err)
		}
		r.store = nil
	}
}

// Done is closed once relaying has stopped.
func (r *Relayer) Done() <-chan struct{} {
	return r.done
}

// Health returns the current health report. It is empty before Start.
func (r *Relayer) Health(ctx context.Context) health.HealthReport {
	r.mu.Lock()
	mon := r.healthMon
	r.mu.Unlock()
	if mon == nil {
		return health.HealthReport{SystemStatus: health.StatusCritical, State: scheduler.StateIdle.String()}
	}
	return mon.CheckHealth(ctx)
}

// Registry returns the feed mapping of the run, nil before Start.
func (r *Relayer) Registry() *registry.Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry
}
