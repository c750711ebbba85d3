package domain

import "time"

// Outcome is the classification of one submission to the target chain.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeTransient
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeTransient:
		return "transient"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// SubmissionResult is the outcome of submitting a relay item.
type SubmissionResult struct {
	Item     RelayItem
	Outcome  Outcome
	Err      error
	TxHash   string
	Attempts int
}

// FailureKind classifies failures surfaced to the operator
type FailureKind string

const (
	FailureKindStartup             FailureKind = "startup"
	FailureKindConnectionLost      FailureKind = "connection_lost"
	FailureKindTransientSubmission FailureKind = "transient_submission"
	FailureKindFatalSubmission     FailureKind = "fatal_submission"
)

// FailureEvent is a structured failure report.
type FailureEvent struct {
	Kind        FailureKind
	SourceIndex int
	FeedID      FeedID
	BlockNumber uint64
	Err         error
	At          time.Time
}

// LogAttrs returns the event as slog key/value pairs.
func (e FailureEvent) LogAttrs() []any {
	attrs := []any{
		"kind", string(e.Kind),
		"source", e.SourceIndex,
		"feed_id", uint64(e.FeedID),
	}
	if e.BlockNumber > 0 {
		attrs = append(attrs, "block", e.BlockNumber)
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err)
	}
	return attrs
}
