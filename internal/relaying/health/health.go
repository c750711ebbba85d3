// Package health provides relay health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the relayer or one source.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// SourceHealth contains health data for one source lane.
type SourceHealth struct {
	SourceIndex     int          `json:"source_index"`
	FeedID          uint64       `json:"feed_id"`
	Status          SystemStatus `json:"status"`
	Active          bool         `json:"active"`
	Buffered        int          `json:"buffered"`
	Capacity        int          `json:"capacity"`
	Submitted       uint64       `json:"submitted"`
	Dropped         uint64       `json:"dropped"`
	LatestBlock     uint64       `json:"latest_block"`
	BlocksPerSecond float64      `json:"blocks_per_second"`
}

// HealthReport contains the full relayer health report.
type HealthReport struct {
	SystemStatus SystemStatus   `json:"system_status"`
	State        string         `json:"state"`
	DroppedItems int            `json:"dropped_items"`
	Sources      []SourceHealth `json:"sources"`
}
