package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/relaying/scheduler"
)

// DefaultCacheTTL bounds how often storage is queried for a report.
const DefaultCacheTTL = 5 * time.Second

// StatsProvider exposes a point-in-time view of the scheduler.
type StatsProvider interface {
	Stats() scheduler.Stats
}

// DroppedCounter counts stored dead letters.
type DroppedCounter interface {
	Count(ctx context.Context) (int, error)
}

// ProgressReader reports per-feed relay progress.
type ProgressReader interface {
	Latest(feedID domain.FeedID) (uint64, bool)
	BlocksPerSecond(feedID domain.FeedID) float64
}

// Monitor aggregates health status from the scheduler and storage.
type Monitor struct {
	stats    StatsProvider
	dropped  DroppedCounter
	progress ProgressReader
	cacheTTL time.Duration
	expected int

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a new health monitor. dropped and progress may be nil.
func NewMonitor(stats StatsProvider, dropped DroppedCounter, progress ProgressReader) *Monitor {
	return &Monitor{
		stats:    stats,
		dropped:  dropped,
		progress: progress,
		cacheTTL: DefaultCacheTTL,
	}
}

// ExpectSources sets how many sources were configured. Sources that never
// got a lane count as lost.
func (m *Monitor) ExpectSources(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expected = n
	m.lastReport = nil
}

// CheckHealth builds a health report, reusing a recent one when available.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheTTL {
		return *m.lastReport
	}

	stats := m.stats.Stats()
	report := HealthReport{
		State:   stats.State.String(),
		Sources: make([]SourceHealth, 0, len(stats.Lanes)),
	}

	if m.dropped != nil {
		if n, err := m.dropped.Count(ctx); err == nil {
			report.DroppedItems = n
		}
	}

	accepting := stats.State.Accepting()
	lost := 0
	var droppedInLanes uint64
	for _, l := range stats.Lanes {
		h := SourceHealth{
			SourceIndex: l.SourceIndex,
			FeedID:      uint64(l.FeedID),
			Status:      StatusHealthy,
			Active:      l.Active,
			Buffered:    l.Buffered,
			Capacity:    l.Capacity,
			Submitted:   l.Submitted,
			Dropped:     l.Dropped,
		}
		if m.progress != nil {
			h.LatestBlock, _ = m.progress.Latest(l.FeedID)
			h.BlocksPerSecond = m.progress.BlocksPerSecond(l.FeedID)
		}

		switch {
		case accepting && !l.Active:
			h.Status = StatusCritical
			lost++
		case l.Dropped > 0:
			h.Status = StatusDegraded
		}
		droppedInLanes += l.Dropped
		report.Sources = append(report.Sources, h)
	}

	total := len(stats.Lanes)
	if accepting && m.expected > total {
		lost += m.expected - total
		total = m.expected
	}
	report.SystemStatus = evaluate(stats.State, total, lost, droppedInLanes > 0 || report.DroppedItems > 0)

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

// evaluate applies the status rules: every source lost or a stopped scheduler is critical,
// any lost source or dropped item is degraded.
func evaluate(state scheduler.State, sources, lost int, dropped bool) SystemStatus {
	switch {
	case state == scheduler.StateStopped:
		return StatusCritical
	case sources > 0 && lost == sources:
		return StatusCritical
	case state != scheduler.StateRunning, lost > 0, dropped:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}
