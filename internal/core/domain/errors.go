package domain

import "errors"

var (
	// ErrStartup marks failures that abort the relayer before relaying begins
	ErrStartup = errors.New("startup failure")

	// ErrInvalidSources is returned when the source list is not a valid index set
	ErrInvalidSources = errors.New("invalid source descriptors")

	// ErrConnectionLost is returned once a source subscription terminates
	ErrConnectionLost = errors.New("source connection lost")

	// ErrSubscriptionClosed is returned by a subscription closed by its owner
	ErrSubscriptionClosed = errors.New("subscription closed")

	// ErrRetriesExhausted converts a transient failure into a fatal one
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrNotAccepting is returned when sources are attached after shutdown
	ErrNotAccepting = errors.New("scheduler is not accepting sources")
)
