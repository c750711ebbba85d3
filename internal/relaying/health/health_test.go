package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/feedrelay/internal/core/domain"
	"github.com/vietddude/feedrelay/internal/relaying/scheduler"
)

// =============================================================================
// Stubs
// =============================================================================

type stubStats struct {
	stats scheduler.Stats
}

func (s *stubStats) Stats() scheduler.Stats { return s.stats }

type stubDropped struct {
	count int
}

func (s *stubDropped) Count(ctx context.Context) (int, error) { return s.count, nil }

type stubProgress struct {
	latest map[domain.FeedID]uint64
}

func (s *stubProgress) Latest(id domain.FeedID) (uint64, bool) {
	n, ok := s.latest[id]
	return n, ok
}
func (s *stubProgress) BlocksPerSecond(domain.FeedID) float64 { return 1.5 }

func lanes(active ...bool) []scheduler.LaneStats {
	out := make([]scheduler.LaneStats, len(active))
	for i, a := range active {
		out[i] = scheduler.LaneStats{SourceIndex: i, FeedID: domain.FeedID(i + 1), Active: a, Capacity: 32}
	}
	return out
}

func newTestMonitor(stats scheduler.Stats, dropped int) *Monitor {
	m := NewMonitor(&stubStats{stats: stats}, &stubDropped{count: dropped}, nil)
	m.cacheTTL = 0
	return m
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Status(t *testing.T) {
	tests := []struct {
		name    string
		stats   scheduler.Stats
		dropped int
		want    SystemStatus
	}{
		{"all active", scheduler.Stats{State: scheduler.StateRunning, Lanes: lanes(true, true)}, 0, StatusHealthy},
		{"one lost", scheduler.Stats{State: scheduler.StateRunning, Lanes: lanes(true, false)}, 0, StatusDegraded},
		{"dropped items", scheduler.Stats{State: scheduler.StateRunning, Lanes: lanes(true)}, 3, StatusDegraded},
		{"all lost", scheduler.Stats{State: scheduler.StateRunning, Lanes: lanes(false, false)}, 0, StatusCritical},
		{"draining", scheduler.Stats{State: scheduler.StateDraining, Lanes: lanes(false)}, 0, StatusDegraded},
		{"stopped", scheduler.Stats{State: scheduler.StateStopped}, 0, StatusCritical},
		{"idle", scheduler.Stats{State: scheduler.StateIdle}, 0, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := newTestMonitor(tt.stats, tt.dropped).CheckHealth(context.Background())
			if report.SystemStatus != tt.want {
				t.Errorf("expected %s, got %s", tt.want, report.SystemStatus)
			}
		})
	}
}

func TestMonitor_SourceDetails(t *testing.T) {
	stats := scheduler.Stats{State: scheduler.StateRunning, Lanes: lanes(true, false)}
	stats.Lanes[0].Dropped = 1
	m := NewMonitor(&stubStats{stats: stats}, nil, &stubProgress{latest: map[domain.FeedID]uint64{1: 42}})

	report := m.CheckHealth(context.Background())
	if len(report.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(report.Sources))
	}
	first, second := report.Sources[0], report.Sources[1]
	if first.Status != StatusDegraded || first.LatestBlock != 42 || first.BlocksPerSecond != 1.5 {
		t.Errorf("unexpected first source: %+v", first)
	}
	if second.Status != StatusCritical || second.Active {
		t.Errorf("unexpected second source: %+v", second)
	}
}

func TestMonitor_ExpectedSources(t *testing.T) {
	m := newTestMonitor(scheduler.Stats{State: scheduler.StateRunning, Lanes: lanes(true)}, 0)
	m.ExpectSources(2)
	if got := m.CheckHealth(context.Background()).SystemStatus; got != StatusDegraded {
		t.Errorf("expected degraded with a missing source, got %s", got)
	}

	m = newTestMonitor(scheduler.Stats{State: scheduler.StateIdle}, 0)
	m.ExpectSources(1)
	if got := m.CheckHealth(context.Background()).SystemStatus; got != StatusCritical {
		t.Errorf("expected critical with no lane at all, got %s", got)
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	stub := &stubStats{stats: scheduler.Stats{State: scheduler.StateRunning, Lanes: lanes(true)}}
	m := NewMonitor(stub, nil, nil)

	if got := m.CheckHealth(context.Background()).SystemStatus; got != StatusHealthy {
		t.Fatalf("expected healthy, got %s", got)
	}
	stub.stats = scheduler.Stats{State: scheduler.StateStopped}
	if got := m.CheckHealth(context.Background()).SystemStatus; got != StatusHealthy {
		t.Errorf("expected cached healthy report, got %s", got)
	}
}

func TestServer_Endpoints(t *testing.T) {
	m := newTestMonitor(scheduler.Stats{State: scheduler.StateRunning, Lanes: lanes(false)}, 0)
	srv := httptest.NewServer(NewServer(m, 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable || body["status"] != "critical" {
		t.Errorf("expected 503 critical, got %d %v", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/health/detailed")
	if err != nil {
		t.Fatal(err)
	}
	var report HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if report.State != "running" || len(report.Sources) != 1 {
		t.Errorf("unexpected detailed report: %+v", report)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected metrics 200, got %d", resp.StatusCode)
	}
}
