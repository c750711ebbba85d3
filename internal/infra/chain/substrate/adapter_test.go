package substrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/vietddude/feedrelay/internal/infra/chain"
)

type fakeStream struct {
	heads chan types.Header
	errs  chan error
	once  sync.Once
	unsub chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		heads: make(chan types.Header, 10000),
		errs:  make(chan error, 1),
		unsub: make(chan struct{}),
	}
}

func (s *fakeStream) Chan() <-chan types.Header { return s.heads }
func (s *fakeStream) Err() <-chan error         { return s.errs }
func (s *fakeStream) Unsubscribe()              { s.once.Do(func() { close(s.unsub) }) }

func (s *fakeStream) announce(numbers ...uint64) {
	for _, n := range numbers {
		s.heads <- types.Header{Number: types.BlockNumber(n)}
	}
}

// fakeNode serves blocks by number; hashFailures makes the next lookups fail.
type fakeNode struct {
	stream *fakeStream

	mu           sync.Mutex
	hashFailures int
	hashCalls    int
	submitted    []chain.Call
	closed       bool
}

func newFakeNode() *fakeNode {
	return &fakeNode{stream: newFakeStream()}
}

func (n *fakeNode) Chain() (string, error)              { return "Source Testnet", nil }
func (n *fakeNode) SubscribeHeads() (headStream, error) { return n.stream, nil }

func (n *fakeNode) BlockHash(number uint64) (types.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hashCalls++
	if n.hashFailures > 0 {
		n.hashFailures--
		return types.Hash{}, errors.New("connection reset")
	}
	return hashOf(number), nil
}

func (n *fakeNode) Block(h types.Hash) (*types.SignedBlock, error) {
	return &types.SignedBlock{Block: types.Block{
		Header: types.Header{ParentHash: types.NewHash([]byte("parent")), Number: types.BlockNumber(h[31])},
	}}, nil
}

func (n *fakeNode) Submit(ctx context.Context, call chain.Call) (*chain.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, call)
	return &chain.Receipt{TxHash: "0xabc"}, nil
}

func (n *fakeNode) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
}

func hashOf(number uint64) types.Hash {
	var h types.Hash
	h[31] = byte(number)
	h[30] = byte(number >> 8)
	return h
}

func testAdapter(n *fakeNode) *Adapter {
	return newAdapter("ws://source", n, fetchPolicy{attempts: 3, delay: time.Millisecond})
}

func subscribe(t *testing.T, a *Adapter) chain.BlockSubscription {
	t.Helper()
	sub, err := a.SubscribeBlocks(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { sub.Unsubscribe() })
	return sub
}

func nextNumbers(t *testing.T, sub chain.BlockSubscription, n int) []uint64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var out []uint64
	for i := 0; i < n; i++ {
		blk, err := sub.Next(ctx)
		if err != nil {
			t.Fatalf("next #%d: %v", i, err)
		}
		out = append(out, blk.Number)
	}
	return out
}

func TestAdapter_ChainIdentity(t *testing.T) {
	a := testAdapter(newFakeNode())
	name, err := a.ChainIdentity(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if name != "Source Testnet" {
		t.Errorf("expected Source Testnet, got %s", name)
	}
}

func TestAdapter_SubscribeBlocks(t *testing.T) {
	n := newFakeNode()
	sub := subscribe(t, testAdapter(n))
	n.stream.announce(5, 6)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	blk, err := sub.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if blk.Number != 5 || blk.Hash != hashOf(5).Hex() || len(blk.Payload) == 0 {
		t.Errorf("unexpected block %+v", blk)
	}
	if blk.ParentHash != types.NewHash([]byte("parent")).Hex() {
		t.Errorf("unexpected parent hash %s", blk.ParentHash)
	}
}

func TestAdapter_CoalescedHeadsAreFetchedByNumber(t *testing.T) {
	n := newFakeNode()
	sub := subscribe(t, testAdapter(n))

	n.stream.announce(5)
	if got := fmt.Sprint(nextNumbers(t, sub, 1)); got != "[5]" {
		t.Fatalf("expected [5], got %s", got)
	}

	// Heads announced while the consumer was busy, out of order and with gaps
	n.stream.announce(9, 7)
	if got := fmt.Sprint(nextNumbers(t, sub, 4)); got != "[6 7 8 9]" {
		t.Errorf("expected [6 7 8 9], got %s", got)
	}
}

func TestAdapter_SlowConsumerDoesNotEndSubscription(t *testing.T) {
	n := newFakeNode()
	a := testAdapter(n)
	sub := subscribe(t, a)

	for i := uint64(1); i <= 5000; i++ {
		n.stream.announce(i)
	}
	follower := sub.(*blockSubscription).follower
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, highest, _, err := follower.snapshot()
		if err != nil {
			t.Fatalf("subscription ended under backpressure: %v", err)
		}
		if highest == 5000 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("follower stuck at %d", highest)
		}
		time.Sleep(time.Millisecond)
	}

	if got := fmt.Sprint(nextNumbers(t, sub, 2)); got != "[1 2]" {
		t.Errorf("expected [1 2], got %s", got)
	}
}

func TestAdapter_TransientFetchFailureIsRetried(t *testing.T) {
	n := newFakeNode()
	n.hashFailures = 2
	sub := subscribe(t, testAdapter(n))
	n.stream.announce(3)

	if got := fmt.Sprint(nextNumbers(t, sub, 1)); got != "[3]" {
		t.Errorf("expected [3], got %s", got)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.hashCalls != 3 {
		t.Errorf("expected 3 hash lookups, got %d", n.hashCalls)
	}
}

func TestAdapter_FetchFailureAfterRetries(t *testing.T) {
	n := newFakeNode()
	n.hashFailures = 10
	sub := subscribe(t, testAdapter(n))
	n.stream.announce(3)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := sub.Next(ctx); err == nil {
		t.Fatal("expected fetch error")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.hashCalls != 3 {
		t.Errorf("expected 3 attempts, got %d", n.hashCalls)
	}
}

func TestAdapter_AnnouncedBlocksDeliveredBeforeError(t *testing.T) {
	n := newFakeNode()
	sub := subscribe(t, testAdapter(n))
	n.stream.announce(1)
	if got := fmt.Sprint(nextNumbers(t, sub, 1)); got != "[1]" {
		t.Fatalf("expected [1], got %s", got)
	}

	n.stream.announce(3)
	follower := sub.(*blockSubscription).follower
	for {
		if _, highest, _, _ := follower.snapshot(); highest == 3 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	n.stream.errs <- errors.New("connection closed")

	if got := fmt.Sprint(nextNumbers(t, sub, 2)); got != "[2 3]" {
		t.Fatalf("expected [2 3], got %s", got)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := sub.Next(ctx); err == nil || err.Error() != "connection closed" {
		t.Errorf("expected the subscription error, got %v", err)
	}
}

func TestAdapter_Unsubscribe(t *testing.T) {
	n := newFakeNode()
	sub := subscribe(t, testAdapter(n))

	if err := sub.Unsubscribe(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-n.stream.unsub:
	default:
		t.Error("expected node subscription to be cancelled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, ErrUnsubscribed) {
		t.Errorf("expected ErrUnsubscribed, got %v", err)
	}
}

func TestAdapter_NextHonoursContext(t *testing.T) {
	sub := subscribe(t, testAdapter(newFakeNode()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestAdapter_SubmitCallAndClose(t *testing.T) {
	n := newFakeNode()
	a := testAdapter(n)
	call := chain.Call{Name: "Feeds.put", Args: []any{types.NewU64(1)}}
	if _, err := a.SubmitCall(context.Background(), call); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.submitted) != 1 || n.submitted[0].Name != "Feeds.put" || !n.closed {
		t.Errorf("unexpected node state: submitted=%v closed=%v", n.submitted, n.closed)
	}
}

type codedError struct{ code int }

func (e codedError) Error() string  { return fmt.Sprintf("code %d", e.code) }
func (e codedError) ErrorCode() int { return e.code }

func TestRPCError(t *testing.T) {
	var rpcErr *chain.RPCError
	if err := rpcError(fmt.Errorf("submit: %w", codedError{1010})); !errors.As(err, &rpcErr) || rpcErr.Code != 1010 {
		t.Errorf("expected rpc error 1010, got %v", err)
	}
	plain := errors.New("eof")
	if err := rpcError(plain); err != plain {
		t.Errorf("expected error unchanged, got %v", err)
	}
}

func TestDialer_RejectsScheme(t *testing.T) {
	if _, err := (&Dialer{}).Connect(context.Background(), "http://node:9933"); err == nil {
		t.Error("expected unsupported scheme error")
	}
}
