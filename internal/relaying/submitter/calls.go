package submitter

import (
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/infra/chain"
)

// Calls and events of the feeds pallet on the target chain.
const (
	CallCreateFeed   = "Feeds.create"
	CallPutBlock     = "Feeds.put"
	EventFeedCreated = "Feeds.FeedCreated"
)

// PutBlockCall archives the SCALE encoded block of item under its feed.
func PutBlockCall(item domain.RelayItem) (chain.Call, error) {
	if len(item.Block.Payload) == 0 {
		return chain.Call{}, fmt.Errorf("%w: block %d has no payload", chain.ErrInvalidCall, item.Block.Number)
	}
	return chain.Call{
		Name: CallPutBlock,
		Args: []any{types.NewU64(uint64(item.FeedID)), types.NewBytes(item.Block.Payload)},
	}, nil
}

// CreateFeedCall requests a feed without initial data. processor selects the
// feed processor kind; nil is for runtimes whose kind is the unit type.
func CreateFeedCall(processor *uint8) chain.Call {
	var args []any
	if processor != nil {
		args = append(args, types.NewU8(*processor))
	}
	args = append(args, types.NewOptionBytesEmpty())
	return chain.Call{Name: CallCreateFeed, Args: args}
}

// feedIDFromReceipt reads the feed id of the FeedCreated event, by field
// name or as the first field.
func feedIDFromReceipt(receipt *chain.Receipt) (domain.FeedID, error) {
	ev, ok := receipt.FindEvent(EventFeedCreated)
	if !ok {
		return 0, ErrNoFeedEvent
	}
	v, ok := ev.Field("feed_id", 0)
	if !ok {
		return 0, fmt.Errorf("FeedCreated has no fields: %w", ErrNoFeedEvent)
	}
	id, ok := asUint64(v)
	if !ok {
		return 0, fmt.Errorf("decode FeedCreated feed id %v (%T): %w", v, v, ErrNoFeedEvent)
	}
	return domain.FeedID(id), nil
}

func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case types.U64:
		return uint64(n), true
	case types.U32:
		return uint64(n), true
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	case int:
		if n >= 0 {
			return uint64(n), true
		}
	}
	return 0, false
}
