package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksReceived tracks blocks announced per source
	BlocksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_blocks_received_total",
			Help: "Total number of blocks received from source chains",
		},
		[]string{"source"},
	)

	// ItemsAccepted tracks relay items accepted by the target per feed
	ItemsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_items_accepted_total",
			Help: "Total number of relay items accepted by the target chain",
		},
		[]string{"source", "feed"},
	)

	// ItemsDropped tracks relay items permanently dropped
	ItemsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_items_dropped_total",
			Help: "Total number of relay items dropped",
		},
		[]string{"source", "feed", "reason"},
	)

	// SubmitRetries tracks resubmissions after transient failures
	SubmitRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_submit_retries_total",
			Help: "Total number of resubmissions after transient failures",
		},
		[]string{"source", "feed"},
	)

	// SubmitLatency tracks one submission round trip to the target
	SubmitLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relayer_submit_latency_seconds",
			Help:    "Target submission latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// FailuresTotal tracks surfaced failures by kind
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_failures_total",
			Help: "Total number of failures by kind",
		},
		[]string{"kind", "source"},
	)

	// BufferedItems tracks the buffer occupancy of each lane
	BufferedItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relayer_buffered_items",
			Help: "Relay items buffered per source lane",
		},
		[]string{"source"},
	)

	// LatestRelayedBlock tracks the last block accepted per feed
	LatestRelayedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relayer_latest_relayed_block",
			Help: "Latest source block accepted by the target chain",
		},
		[]string{"source", "feed"},
	)

	// SourcesActive tracks live source subscriptions
	SourcesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayer_sources_active",
			Help: "Number of live source subscriptions",
		},
	)

	// SchedulerState exposes the scheduler lifecycle state (0 idle .. 3 stopped)
	SchedulerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayer_scheduler_state",
			Help: "Scheduler lifecycle state: 0 idle, 1 running, 2 draining, 3 stopped",
		},
	)

	// DBConnectionPoolUsage tracks the share of open database connections in percent
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayer_db_connection_pool_usage_percent",
			Help: "Open database connections as a percentage of the pool size",
		},
	)
)
