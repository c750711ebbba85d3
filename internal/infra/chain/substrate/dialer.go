package substrate

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"

	"github.com/vietddude/feedrelay/internal/infra/chain"
)

// Dialer opens websocket connections to Substrate nodes.
type Dialer struct {
	// Account signs submitted calls. Connections without one can only read.
	Account *signature.KeyringPair

	// FetchAttempts and FetchDelay bound the retries of a single block fetch.
	FetchAttempts uint
	FetchDelay    time.Duration
}

var _ chain.Dialer = (*Dialer)(nil)

func (d *Dialer) Connect(ctx context.Context, endpoint string) (chain.Connection, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}

	n, err := dialNode(ctx, endpoint, d.Account)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return newAdapter(endpoint, n, fetchPolicy{attempts: d.FetchAttempts, delay: d.FetchDelay}), nil
}
