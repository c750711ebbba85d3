package substrate

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/vietddude/feedrelay/internal/infra/chain"
)

// Runs against a dev node, e.g. subspace-node --dev on ws://127.0.0.1:9944.
func liveEndpoint(t *testing.T) string {
	t.Helper()
	if os.Getenv("E2E_LIVE") == "" {
		t.Skip("Skipping live adapter test. Set E2E_LIVE=true to run.")
	}
	if url := os.Getenv("FEEDRELAY_TEST_NODE_URL"); url != "" {
		return url
	}
	return "ws://127.0.0.1:9944"
}

func TestLiveAdapter_FollowsBlocks(t *testing.T) {
	endpoint := liveEndpoint(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := (&Dialer{}).Connect(ctx, endpoint)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	name, err := conn.ChainIdentity(ctx)
	if err != nil {
		t.Fatalf("chain identity: %v", err)
	}
	t.Logf("Connected to %s", name)

	sub, err := conn.SubscribeBlocks(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	first, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("first block: %v", err)
	}
	second, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("second block: %v", err)
	}
	if second.Number != first.Number+1 || second.ParentHash != first.Hash {
		t.Errorf("blocks do not chain: #%d %s then #%d parent %s", first.Number, first.Hash, second.Number, second.ParentHash)
	}
}

func TestLiveAdapter_CreateFeed(t *testing.T) {
	endpoint := liveEndpoint(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	alice, err := signature.KeyringPairFromSecret("//Alice", 42)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := (&Dialer{Account: &alice}).Connect(ctx, endpoint)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	receipt, err := conn.SubmitCall(ctx, chain.Call{
		Name: "Feeds.create",
		Args: []any{types.NewOptionBytesEmpty()},
	})
	if err != nil {
		t.Fatalf("Feeds.create: %v", err)
	}
	ev, ok := receipt.FindEvent("Feeds.FeedCreated")
	if !ok {
		t.Fatalf("no FeedCreated event in %+v", receipt.Events)
	}
	id, _ := ev.Field("feed_id", 0)
	t.Logf("Created feed %v in block %s", id, receipt.BlockHash)
}
