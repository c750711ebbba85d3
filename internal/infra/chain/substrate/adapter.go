// Package substrate connects the relayer to Substrate nodes over websocket JSON-RPC.
package substrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/infra/chain"
)

const (
	defaultFetchAttempts = 5
	defaultFetchDelay    = 200 * time.Millisecond
)

var (
	// ErrSubscriptionClosed is returned once the node ends the head subscription.
	ErrSubscriptionClosed = errors.New("head subscription closed")
	// ErrUnsubscribed is returned by Next after Unsubscribe.
	ErrUnsubscribed = errors.New("unsubscribed")
)

type fetchPolicy struct {
	attempts uint
	delay    time.Duration
}

// Adapter implements chain.Connection on top of a node.
type Adapter struct {
	endpoint string
	node     node
	fetch    fetchPolicy
	log      *slog.Logger
}

var _ chain.Connection = (*Adapter)(nil)

func newAdapter(endpoint string, n node, fetch fetchPolicy) *Adapter {
	if fetch.attempts == 0 {
		fetch.attempts = defaultFetchAttempts
	}
	if fetch.delay <= 0 {
		fetch.delay = defaultFetchDelay
	}
	return &Adapter{
		endpoint: endpoint,
		node:     n,
		fetch:    fetch,
		log:      slog.Default().With("component", "substrate", "endpoint", endpoint),
	}
}

func (a *Adapter) ChainIdentity(ctx context.Context) (string, error) {
	name, err := await(ctx, a.node.Chain)
	if err != nil {
		return "", fmt.Errorf("system_chain failed: %w", err)
	}
	return name, nil
}

func (a *Adapter) SubmitCall(ctx context.Context, call chain.Call) (*chain.Receipt, error) {
	return a.node.Submit(ctx, call)
}

// SubscribeBlocks follows new heads and yields every block from the first
// announced head onwards by number. Heads announced while the consumer is
// busy are coalesced, so a slow consumer never overflows the subscription.
func (a *Adapter) SubscribeBlocks(ctx context.Context) (chain.BlockSubscription, error) {
	stream, err := await(ctx, a.node.SubscribeHeads)
	if err != nil {
		return nil, fmt.Errorf("chain_subscribeNewHeads failed: %w", err)
	}
	f := newHeadFollower(stream)
	go f.run()
	return &blockSubscription{adapter: a, follower: f}, nil
}

func (a *Adapter) Close() error {
	a.node.Close()
	return nil
}

// fetchBlock reads block number by hash, retrying transient RPC failures
// while the head subscription is still alive.
func (a *Adapter) fetchBlock(ctx context.Context, number uint64, alive func() bool) (*domain.Block, error) {
	var blk *domain.Block
	err := retry.Do(func() error {
		h, err := await(ctx, func() (types.Hash, error) { return a.node.BlockHash(number) })
		if err != nil {
			return fmt.Errorf("chain_getBlockHash %d failed: %w", number, err)
		}
		if h == (types.Hash{}) {
			return fmt.Errorf("chain_getBlockHash: no hash for block %d", number)
		}
		signed, err := await(ctx, func() (*types.SignedBlock, error) { return a.node.Block(h) })
		if err != nil {
			return fmt.Errorf("chain_getBlock %s failed: %w", h.Hex(), err)
		}
		if signed == nil {
			return fmt.Errorf("chain_getBlock: block %s not found", h.Hex())
		}
		payload, err := codec.Encode(signed.Block)
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("encode block %d: %w", number, err))
		}
		blk = &domain.Block{
			Number:     number,
			Hash:       h.Hex(),
			ParentHash: signed.Block.Header.ParentHash.Hex(),
			Payload:    payload,
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(a.fetch.attempts),
		retry.Delay(a.fetch.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return retry.IsRecoverable(err) && ctx.Err() == nil && alive()
		}),
		retry.OnRetry(func(n uint, err error) {
			a.log.Warn("Block fetch failed, retrying", "block", number, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return blk, nil
}

// headFollower drains the head subscription and keeps only the first and
// highest announced numbers.
type headFollower struct {
	stream headStream

	mu      sync.Mutex
	first   uint64
	highest uint64
	seen    bool
	err     error

	notify   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newHeadFollower(stream headStream) *headFollower {
	return &headFollower{
		stream: stream,
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (f *headFollower) run() {
	defer close(f.done)
	for {
		select {
		case <-f.stop:
			f.fail(ErrUnsubscribed)
			return
		case h, ok := <-f.stream.Chan():
			if !ok {
				f.fail(ErrSubscriptionClosed)
				return
			}
			f.announce(uint64(h.Number))
		case err := <-f.stream.Err():
			if err == nil {
				err = ErrSubscriptionClosed
			}
			f.fail(err)
			return
		}
	}
}

func (f *headFollower) announce(number uint64) {
	f.mu.Lock()
	if !f.seen {
		f.first, f.highest, f.seen = number, number, true
	} else if number > f.highest {
		f.highest = number
	}
	f.mu.Unlock()
	f.signal()
}

func (f *headFollower) fail(err error) {
	f.mu.Lock()
	if f.err == nil {
		select {
		case <-f.stop:
			err = ErrUnsubscribed
		default:
		}
		f.err = err
	}
	f.mu.Unlock()
	f.signal()
}

func (f *headFollower) signal() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *headFollower) snapshot() (first, highest uint64, seen bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.first, f.highest, f.seen, f.err
}

func (f *headFollower) alive() bool {
	_, _, _, err := f.snapshot()
	return err == nil
}

func (f *headFollower) close() {
	f.stopOnce.Do(func() {
		close(f.stop)
		f.stream.Unsubscribe()
	})
	<-f.done
}

type blockSubscription struct {
	adapter  *Adapter
	follower *headFollower

	started bool
	next    uint64
}

// Next returns the next block by number. Blocks announced before the
// subscription ended are still delivered before its error.
func (s *blockSubscription) Next(ctx context.Context) (*domain.Block, error) {
	for {
		first, highest, seen, err := s.follower.snapshot()
		if seen {
			if !s.started {
				s.next, s.started = first, true
			}
			if s.next <= highest {
				blk, fetchErr := s.adapter.fetchBlock(ctx, s.next, s.follower.alive)
				if fetchErr != nil {
					return nil, fetchErr
				}
				s.next++
				return blk, nil
			}
		}
		if err != nil {
			return nil, err
		}

		select {
		case <-s.follower.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *blockSubscription) Unsubscribe() error {
	s.follower.close()
	return nil
}
