package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

func transient(msg string) error {
	return &OutcomeError{Outcome: domain.OutcomeTransient, Err: errors.New(msg)}
}

func fatal(msg string) error {
	return &OutcomeError{Outcome: domain.OutcomeFatal, Err: errors.New(msg)}
}

func fastBackoff(maxRetries int) *ExponentialBackoff {
	b := DefaultBackoff(nil)
	b.InitialDelay = time.Millisecond
	b.MaxDelay = 4 * time.Millisecond
	b.MaxRetries = maxRetries
	return b
}

func TestBackoff_Delay(t *testing.T) {
	strategy := DefaultBackoff(nil)
	strategy.InitialDelay = 1 * time.Second
	strategy.MaxDelay = 10 * time.Second

	// Attempt 0: 1*2^0 = 1s
	if d := strategy.GetDelay(0); d != 1*time.Second {
		t.Errorf("expected 1s, got %v", d)
	}

	// Attempt 2: 1*2^2 = 4s
	if d := strategy.GetDelay(2); d != 4*time.Second {
		t.Errorf("expected 4s, got %v", d)
	}

	// Attempt 10: Cap at MaxDelay (10s)
	if d := strategy.GetDelay(10); d != 10*time.Second {
		t.Errorf("expected 10s, got %v", d)
	}
}

func TestBackoff_ShouldRetry(t *testing.T) {
	strategy := DefaultBackoff(nil)
	strategy.MaxRetries = 3

	if !strategy.ShouldRetry(transient("busy"), 0) {
		t.Error("should retry attempt 0")
	}
	if !strategy.ShouldRetry(errors.New("unclassified"), 2) {
		t.Error("unclassified errors are transient")
	}
	if strategy.ShouldRetry(transient("busy"), 3) {
		t.Error("should NOT retry attempt 3 (max reached)")
	}
	if strategy.ShouldRetry(fatal("bad signature"), 0) {
		t.Error("should NOT retry a fatal failure")
	}
}

func TestClassifyOutcome(t *testing.T) {
	if got := ClassifyOutcome(nil); got != domain.OutcomeAccepted {
		t.Errorf("nil: expected accepted, got %s", got)
	}
	wrapped := errors.Join(errors.New("context"), fatal("unknown feed"))
	if got := ClassifyOutcome(wrapped); got != domain.OutcomeFatal {
		t.Errorf("wrapped fatal: expected fatal, got %s", got)
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	b := fastBackoff(5)
	var retries []int

	attempts, err := b.Do(context.Background(), func(attempt int) error {
		if attempt <= 3 {
			return transient("pool busy")
		}
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		retries = append(retries, attempt)
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
	if len(retries) != 3 || retries[0] != 1 || retries[2] != 3 {
		t.Errorf("unexpected retry notifications %v", retries)
	}
}

func TestDo_FatalIsNotRetried(t *testing.T) {
	b := fastBackoff(5)
	retried := false

	attempts, err := b.Do(context.Background(), func(int) error {
		return fatal("bad signature")
	}, func(int, time.Duration, error) { retried = true })

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if ClassifyOutcome(err) != domain.OutcomeFatal {
		t.Errorf("expected fatal error, got %v", err)
	}
	if retried {
		t.Error("fatal failure should not be retried")
	}
}

func TestDo_Exhausted(t *testing.T) {
	b := fastBackoff(2)
	var retries int

	attempts, err := b.Do(context.Background(), func(int) error {
		return transient("timeout")
	}, func(int, time.Duration, error) { retries++ })

	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if retries != 2 {
		t.Errorf("expected 2 retry notifications, got %d", retries)
	}
	if ClassifyOutcome(err) != domain.OutcomeTransient {
		t.Errorf("expected last transient error, got %v", err)
	}
}

func TestDo_ZeroRetries(t *testing.T) {
	b := fastBackoff(0)

	attempts, _ := b.Do(context.Background(), func(int) error {
		return transient("timeout")
	}, nil)

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_StopsWhenContextCancelled(t *testing.T) {
	b := DefaultBackoff(nil)
	b.InitialDelay = time.Hour
	b.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		attempts, _ := b.Do(ctx, func(int) error {
			return transient("timeout")
		}, nil)
		done <- attempts
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case attempts := <-done:
		if attempts != 1 {
			t.Errorf("expected 1 attempt before shutdown, got %d", attempts)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDo_NoRetryAfterCancellation(t *testing.T) {
	b := fastBackoff(5)
	ctx, cancel := context.WithCancel(context.Background())

	attempts, _ := b.Do(ctx, func(int) error {
		cancel()
		return transient("timeout")
	}, nil)

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_CancelledBeforeFirstAttempt(t *testing.T) {
	b := fastBackoff(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := 0
	attempts, err := b.Do(ctx, func(int) error {
		ran++
		return nil
	}, nil)

	if ran != 0 || attempts != 0 {
		t.Errorf("expected op not to run, ran %d times (attempts %d)", ran, attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
