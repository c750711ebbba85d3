package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

// Dialer opens connections to chain endpoints.
type Dialer interface {
	// Connect establishes a connection to the endpoint
	Connect(ctx context.Context, endpoint string) (Connection, error)
}

// Connection defines the chain-level capability the relayer consumes.
// This is the boundary between the relay core and the wire protocol.
type Connection interface {
	// SubscribeBlocks starts a subscription to newly announced blocks
	SubscribeBlocks(ctx context.Context) (BlockSubscription, error)

	// SubmitCall signs call with the relayer account, submits it and waits
	// until it is included in a block
	SubmitCall(ctx context.Context, call Call) (*Receipt, error)

	// ChainIdentity returns the chain name reported by the node
	ChainIdentity(ctx context.Context) (string, error)

	// Close releases the connection
	Close() error
}

// BlockSubscription is a lazy sequence of announced blocks.
type BlockSubscription interface {
	// Next blocks until the chain announces the next block.
	// It returns an error once the subscription terminated; the
	// subscription cannot be restarted afterwards.
	Next(ctx context.Context) (*domain.Block, error)

	// Unsubscribe stops the subscription
	Unsubscribe() error
}

// Call is a runtime call addressed as "Pallet.function".
type Call struct {
	Name string
	Args []any
}

func (c Call) String() string {
	return c.Name
}

// Receipt describes an included extrinsic.
type Receipt struct {
	TxHash    string
	BlockHash string
	Events    []Event
}

// Event is a runtime event emitted by the included extrinsic.
type Event struct {
	// Name is "Pallet.Event", for example "Feeds.FeedCreated"
	Name   string
	Fields []EventField
}

// EventField is one decoded event field. Name is empty for unnamed fields.
type EventField struct {
	Name  string
	Value any
}

// FindEvent returns the first event with the given name, compared case-insensitively.
func (r *Receipt) FindEvent(name string) (*Event, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Events {
		if strings.EqualFold(r.Events[i].Name, name) {
			return &r.Events[i], true
		}
	}
	return nil, false
}

// Field returns the value of the named field, falling back to the field at
// position pos when the runtime metadata carries no field names.
func (e *Event) Field(name string, pos int) (any, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	if pos >= 0 && pos < len(e.Fields) {
		return e.Fields[pos].Value, true
	}
	return nil, false
}

// RPCError is an error object returned by a node.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

var (
	// ErrExtrinsicRejected is returned when the pool reports the extrinsic invalid.
	ErrExtrinsicRejected = errors.New("extrinsic rejected")
	// ErrExtrinsicDropped is returned when the extrinsic left the pool without inclusion.
	ErrExtrinsicDropped = errors.New("extrinsic dropped")
	// ErrInvalidCall is returned when a call does not match the runtime metadata.
	ErrInvalidCall = errors.New("invalid runtime call")
	// ErrNoAccount is returned when submitting on a connection opened without an account.
	ErrNoAccount = errors.New("connection has no signing account")
)

// DispatchError reports an extrinsic that was included but failed to execute.
type DispatchError struct {
	BlockHash string
	Detail    string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("extrinsic failed in block %s: %s", e.BlockHash, e.Detail)
}
