package recovery

import (
	"errors"
	"math"
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

// RetryStrategy defines how retries should be handled.
type RetryStrategy interface {
	// GetDelay returns the delay before retry number attempt (0-indexed).
	GetDelay(attempt int) time.Duration

	// ShouldRetry checks if we should retry based on the error and retries done so far.
	ShouldRetry(err error, attempt int) bool
}

// Classifier maps a failed attempt to its outcome.
type Classifier func(err error) domain.Outcome

// OutcomeError carries the classification of a failed attempt.
type OutcomeError struct {
	Outcome domain.Outcome
	Err     error
}

func (e *OutcomeError) Error() string {
	if e.Err == nil {
		return e.Outcome.String()
	}
	return e.Err.Error()
}

func (e *OutcomeError) Unwrap() error {
	return e.Err
}

// ClassifyOutcome reads the outcome of an OutcomeError.
// Any other non-nil error is transient.
func ClassifyOutcome(err error) domain.Outcome {
	if err == nil {
		return domain.OutcomeAccepted
	}
	var oe *OutcomeError
	if errors.As(err, &oe) {
		return oe.Outcome
	}
	return domain.OutcomeTransient
}

// ExponentialBackoff retries transient failures with doubling delays.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxRetries   int
	Classifier   Classifier
}

// DefaultBackoff returns 1s, 2s, 4s, 8s, 16s (max 30s).
func DefaultBackoff(classifier Classifier) *ExponentialBackoff {
	if classifier == nil {
		classifier = ClassifyOutcome
	}
	return &ExponentialBackoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		MaxRetries:   5,
		Classifier:   classifier,
	}
}

// GetDelay calculates delay: InitialDelay * 2^attempt
func (s *ExponentialBackoff) GetDelay(attempt int) time.Duration {
	delay := float64(s.InitialDelay) * math.Pow(2, float64(attempt))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry checks if error is transient and max retries not exceeded.
func (s *ExponentialBackoff) ShouldRetry(err error, attempt int) bool {
	if attempt >= s.MaxRetries {
		return false
	}
	return s.classify(err) == domain.OutcomeTransient
}

func (s *ExponentialBackoff) classify(err error) domain.Outcome {
	if s.Classifier == nil {
		return ClassifyOutcome(err)
	}
	return s.Classifier(err)
}
