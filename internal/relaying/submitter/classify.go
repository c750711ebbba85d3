package submitter

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/infra/chain"
)

// Transaction pool error codes reported by the target node.
const (
	codeInvalidTransaction = 1010
	codeUnknownTransaction = 1011
	codeTemporarilyBanned  = 1012
	codeAlreadyImported    = 1013
	codeTooLowPriority     = 1014
	codeCycleDetected      = 1015
	codeImmediatelyDropped = 1016
)

// Classify determines the outcome of a submission error.
func Classify(err error) domain.Outcome {
	if err == nil {
		return domain.OutcomeAccepted
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.OutcomeTransient
	}
	if errors.Is(err, chain.ErrInvalidCall) || errors.Is(err, chain.ErrNoAccount) {
		return domain.OutcomeFatal
	}
	// Included but failed to dispatch, for example an unknown feed or a bad origin
	var dispatchErr *chain.DispatchError
	if errors.As(err, &dispatchErr) {
		return domain.OutcomeFatal
	}
	// A stale nonce or a full pool; the next attempt is signed afresh
	if errors.Is(err, chain.ErrExtrinsicRejected) || errors.Is(err, chain.ErrExtrinsicDropped) {
		return domain.OutcomeTransient
	}

	var rpcErr *chain.RPCError
	if errors.As(err, &rpcErr) {
		return classifyRPC(rpcErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.OutcomeTransient
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return domain.OutcomeTransient
	}

	s := strings.ToLower(err.Error())
	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") {
		return domain.OutcomeFatal
	}
	if isFatalMessage(s) {
		return domain.OutcomeFatal
	}

	// Default to transient (network, closed connection, node restarts)
	return domain.OutcomeTransient
}

func classifyRPC(e *chain.RPCError) domain.Outcome {
	switch e.Code {
	case codeAlreadyImported:
		// The identical signed extrinsic is already in the pool.
		return domain.OutcomeAccepted
	case codeInvalidTransaction, codeCycleDetected:
		return domain.OutcomeFatal
	case codeUnknownTransaction, codeTemporarilyBanned, codeTooLowPriority, codeImmediatelyDropped:
		return domain.OutcomeTransient
	case -32700, -32600, -32601, -32602:
		return domain.OutcomeFatal
	}

	s := strings.ToLower(e.Error())
	if isFatalMessage(s) {
		return domain.OutcomeFatal
	}
	return domain.OutcomeTransient
}

func isFatalMessage(s string) bool {
	return strings.Contains(s, "bad signature") ||
		strings.Contains(s, "badproof") ||
		strings.Contains(s, "invalid transaction") ||
		strings.Contains(s, "unknown feed") ||
		strings.Contains(s, "feed not found")
}
