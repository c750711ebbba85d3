package substrate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/hash"
	"github.com/centrifuge/go-substrate-rpc-client/v4/registry/retriever"
	"github.com/centrifuge/go-substrate-rpc-client/v4/registry/state"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"

	"github.com/vietddude/feedrelay/internal/infra/chain"
)

const eventExtrinsicFailed = "System.ExtrinsicFailed"

// node is the subset of the node RPC used by Adapter.
type node interface {
	Chain() (string, error)
	SubscribeHeads() (headStream, error)
	BlockHash(number uint64) (types.Hash, error)
	Block(hash types.Hash) (*types.SignedBlock, error)
	Submit(ctx context.Context, call chain.Call) (*chain.Receipt, error)
	Close()
}

// headStream is satisfied by the new heads subscription of the rpc client.
type headStream interface {
	Chan() <-chan types.Header
	Err() <-chan error
	Unsubscribe()
}

// rpcNode talks to a node through go-substrate-rpc-client.
type rpcNode struct {
	api     *gsrpc.SubstrateAPI
	account *signature.KeyringPair

	// mu serializes submissions so account nonces are taken in order
	mu          sync.Mutex
	meta        *types.Metadata
	specVersion types.U32
	events      retriever.EventRetriever
}

func dialNode(ctx context.Context, endpoint string, account *signature.KeyringPair) (*rpcNode, error) {
	api, err := await(ctx, func() (*gsrpc.SubstrateAPI, error) {
		return gsrpc.NewSubstrateAPI(endpoint)
	})
	if err != nil {
		return nil, err
	}
	return &rpcNode{api: api, account: account}, nil
}

func (n *rpcNode) Chain() (string, error) {
	name, err := n.api.RPC.System.Chain()
	if err != nil {
		return "", rpcError(err)
	}
	return string(name), nil
}

func (n *rpcNode) SubscribeHeads() (headStream, error) {
	sub, err := n.api.RPC.Chain.SubscribeNewHeads()
	if err != nil {
		return nil, rpcError(err)
	}
	return sub, nil
}

func (n *rpcNode) BlockHash(number uint64) (types.Hash, error) {
	h, err := n.api.RPC.Chain.GetBlockHash(number)
	if err != nil {
		return types.Hash{}, rpcError(err)
	}
	return h, nil
}

func (n *rpcNode) Block(h types.Hash) (*types.SignedBlock, error) {
	b, err := n.api.RPC.Chain.GetBlock(h)
	if err != nil {
		return nil, rpcError(err)
	}
	return b, nil
}

func (n *rpcNode) Close() {
	n.api.Client.Close()
}

// Submit signs call with the node account, submits it and watches it until
// it is included in a block. The returned receipt carries the events the
// extrinsic emitted.
func (n *rpcNode) Submit(ctx context.Context, call chain.Call) (*chain.Receipt, error) {
	if n.account == nil {
		return nil, chain.ErrNoAccount
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	rv, err := n.api.RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return nil, fmt.Errorf("runtime version: %w", rpcError(err))
	}
	meta, err := n.metadata(rv.SpecVersion)
	if err != nil {
		return nil, err
	}

	c, err := types.NewCall(meta, call.Name, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", chain.ErrInvalidCall, call.Name, err)
	}
	ext := types.NewExtrinsic(c)

	genesis, err := n.api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		return nil, fmt.Errorf("genesis hash: %w", rpcError(err))
	}
	nonce, err := n.api.RPC.System.AccountNextIndex(n.account.Address)
	if err != nil {
		return nil, fmt.Errorf("account nonce: %w", rpcError(err))
	}

	err = ext.Sign(*n.account, types.SignatureOptions{
		BlockHash:          genesis,
		Era:                types.ExtrinsicEra{IsMortalEra: false},
		GenesisHash:        genesis,
		Nonce:              types.NewUCompactFromUInt(uint64(nonce)),
		SpecVersion:        rv.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: rv.TransactionVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", call.Name, err)
	}

	encoded, err := codec.EncodeToHex(ext)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", chain.ErrInvalidCall, call.Name, err)
	}
	txHash, err := extrinsicHash(ext)
	if err != nil {
		return nil, err
	}

	sub, err := n.api.RPC.Author.SubmitAndWatchExtrinsic(ext)
	if err != nil {
		return nil, rpcError(err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case status := <-sub.Chan():
			switch {
			case status.IsInBlock:
				return n.receipt(encoded, txHash, status.AsInBlock)
			case status.IsFinalized:
				return n.receipt(encoded, txHash, status.AsFinalized)
			case status.IsInvalid:
				return nil, fmt.Errorf("%s %s: %w", call.Name, txHash, chain.ErrExtrinsicRejected)
			case status.IsDropped, status.IsUsurped, status.IsFinalityTimeout:
				return nil, fmt.Errorf("%s %s: %w", call.Name, txHash, chain.ErrExtrinsicDropped)
			}
		case err := <-sub.Err():
			if err == nil {
				err = ErrSubscriptionClosed
			}
			return nil, fmt.Errorf("watch %s: %w", call.Name, rpcError(err))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// metadata caches the runtime metadata until the spec version changes.
func (n *rpcNode) metadata(specVersion types.U32) (*types.Metadata, error) {
	if n.meta != nil && n.specVersion == specVersion {
		return n.meta, nil
	}
	meta, err := n.api.RPC.State.GetMetadataLatest()
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", rpcError(err))
	}
	events, err := retriever.NewDefaultEventRetriever(state.NewEventProvider(n.api.RPC.State), n.api.RPC.State)
	if err != nil {
		return nil, fmt.Errorf("event retriever: %w", err)
	}
	n.meta, n.specVersion, n.events = meta, specVersion, events
	return meta, nil
}

// receipt collects the events emitted by the extrinsic encoded as hex in block blockHash.
func (n *rpcNode) receipt(encoded, txHash string, blockHash types.Hash) (*chain.Receipt, error) {
	block, err := n.api.RPC.Chain.GetBlock(blockHash)
	if err != nil {
		return nil, fmt.Errorf("inclusion block: %w", rpcError(err))
	}
	index := -1
	for i, x := range block.Block.Extrinsics {
		if enc, err := codec.EncodeToHex(x); err == nil && enc == encoded {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("extrinsic %s not found in block %s", txHash, blockHash.Hex())
	}

	events, err := n.events.GetEvents(blockHash)
	if err != nil {
		return nil, fmt.Errorf("events of block %s: %w", blockHash.Hex(), err)
	}

	receipt := &chain.Receipt{TxHash: txHash, BlockHash: blockHash.Hex()}
	for _, ev := range events {
		if ev.Phase == nil || !ev.Phase.IsApplyExtrinsic || ev.Phase.AsApplyExtrinsic != uint32(index) {
			continue
		}
		converted := chain.Event{Name: ev.Name}
		for _, f := range ev.Fields {
			converted.Fields = append(converted.Fields, chain.EventField{Name: f.Name, Value: f.Value})
		}
		receipt.Events = append(receipt.Events, converted)
	}

	if ev, failed := receipt.FindEvent(eventExtrinsicFailed); failed {
		detail, _ := ev.Field("dispatch_error", 0)
		return receipt, &chain.DispatchError{BlockHash: receipt.BlockHash, Detail: fmt.Sprintf("%v", detail)}
	}
	return receipt, nil
}

func extrinsicHash(ext types.Extrinsic) (string, error) {
	raw, err := codec.Encode(ext)
	if err != nil {
		return "", fmt.Errorf("encode extrinsic: %w", err)
	}
	h, err := hash.NewBlake2b256(nil)
	if err != nil {
		return "", err
	}
	h.Write(raw)
	return codec.HexEncodeToString(h.Sum(nil)), nil
}

// rpcError exposes the JSON-RPC error code of err as a chain.RPCError.
func rpcError(err error) error {
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) {
		return &chain.RPCError{Code: coded.ErrorCode(), Message: err.Error()}
	}
	return err
}

// await runs a blocking client call and gives up when ctx is done.
// The call itself keeps running until the client returns.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
