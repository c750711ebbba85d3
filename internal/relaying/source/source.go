// Package source turns one source chain connection into a sequence of relay items.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/infra/chain"
)

// Subscription emits the blocks of one source chain tagged with its feed.
// Once it terminates it never yields again.
type Subscription struct {
	desc   domain.SourceDescriptor
	feedID domain.FeedID
	chain  string

	conn chain.Connection
	sub  chain.BlockSubscription

	mu      sync.Mutex
	err     error
	last    uint64
	started bool

	closeOnce sync.Once
	log       *slog.Logger
}

// Open connects to the source endpoint and subscribes to its new blocks.
func Open(ctx context.Context, dialer chain.Dialer, desc domain.SourceDescriptor, feedID domain.FeedID) (*Subscription, error) {
	conn, err := dialer.Connect(ctx, desc.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: source %d: connect: %w", domain.ErrConnectionLost, desc.Index, err)
	}

	name, err := conn.ChainIdentity(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: source %d: chain identity: %w", domain.ErrConnectionLost, desc.Index, err)
	}

	sub, err := conn.SubscribeBlocks(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: source %d: subscribe: %w", domain.ErrConnectionLost, desc.Index, err)
	}

	s := &Subscription{
		desc:   desc,
		feedID: feedID,
		chain:  name,
		conn:   conn,
		sub:    sub,
		log: slog.Default().With(
			"component", "source",
			"source", desc.Index,
			"feed_id", uint64(feedID),
			"chain", name,
		),
	}
	s.log.Info("Subscribed to source", "endpoint", desc.Endpoint)
	return s, nil
}

func (s *Subscription) Index() int {
	return s.desc.Index
}

func (s *Subscription) FeedID() domain.FeedID {
	return s.feedID
}

// Chain is the chain name the source reported.
func (s *Subscription) Chain() string {
	return s.chain
}

// Next blocks until the source announces a block past the last one emitted.
// A cancelled ctx returns ctx.Err() and leaves the subscription usable;
// any other failure terminates it with ErrConnectionLost.
func (s *Subscription) Next(ctx context.Context) (domain.RelayItem, error) {
	for {
		if err := s.terminal(); err != nil {
			return domain.RelayItem{}, err
		}

		block, err := s.sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return domain.RelayItem{}, err
			}
			err = s.terminate(fmt.Errorf("%w: source %d: %w", domain.ErrConnectionLost, s.desc.Index, err))
			s.log.Warn("Source subscription ended", "error", err)
			return domain.RelayItem{}, err
		}

		s.mu.Lock()
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return domain.RelayItem{}, err
		}
		if s.started && block.Number <= s.last {
			s.mu.Unlock()
			s.log.Debug("Skipping non-advancing announcement", "block", block.Number, "last", s.last)
			continue
		}
		s.started = true
		s.last = block.Number
		s.mu.Unlock()

		block.SourceIndex = s.desc.Index
		return domain.RelayItem{FeedID: s.feedID, Block: *block}, nil
	}
}

// Err returns the terminal error, or nil while the subscription is live.
func (s *Subscription) Err() error {
	return s.terminal()
}

// Close unsubscribes and closes the connection. Next then returns ErrSubscriptionClosed.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.terminate(fmt.Errorf("%w: source %d", domain.ErrSubscriptionClosed, s.desc.Index))
		if uerr := s.sub.Unsubscribe(); uerr != nil {
			s.log.Debug("Unsubscribe failed", "error", uerr)
		}
		err = s.conn.Close()
	})
	return err
}

func (s *Subscription) terminal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// terminate records err unless the subscription already ended and returns the terminal error.
func (s *Subscription) terminate(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
	return s.err
}
