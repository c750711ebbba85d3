package scheduler

import (
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

// Observer is notified of scheduler events. Methods may be called concurrently,
// must not block and must not call back into the Scheduler.
type Observer interface {
	OnAccepted(result domain.SubmissionResult)
	OnDropped(item domain.RelayItem, reason domain.DropReason, err error, attempts int)
	OnRetry(item domain.RelayItem, attempt int, delay time.Duration, err error)
	OnSourceLost(sourceIndex int, feedID domain.FeedID, err error)
	OnStateChange(from, to State)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnAccepted(domain.SubmissionResult)                        {}
func (NopObserver) OnDropped(domain.RelayItem, domain.DropReason, error, int) {}
func (NopObserver) OnRetry(domain.RelayItem, int, time.Duration, error)       {}
func (NopObserver) OnSourceLost(int, domain.FeedID, error)                    {}
func (NopObserver) OnStateChange(State, State)                                {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) OnAccepted(result domain.SubmissionResult) {
	for _, obs := range o {
		obs.OnAccepted(result)
	}
}

func (o Observers) OnDropped(item domain.RelayItem, reason domain.DropReason, err error, attempts int) {
	for _, obs := range o {
		obs.OnDropped(item, reason, err, attempts)
	}
}

func (o Observers) OnRetry(item domain.RelayItem, attempt int, delay time.Duration, err error) {
	for _, obs := range o {
		obs.OnRetry(item, attempt, delay, err)
	}
}

func (o Observers) OnSourceLost(sourceIndex int, feedID domain.FeedID, err error) {
	for _, obs := range o {
		obs.OnSourceLost(sourceIndex, feedID, err)
	}
}

func (o Observers) OnStateChange(from, to State) {
	for _, obs := range o {
		obs.OnStateChange(from, to)
	}
}
