package progress

import "time"

type blockRecord struct {
	BlockNumber uint64
	RelayedAt   time.Time
}

// Throughput tracks relay timing over a sliding window of blocks.
type Throughput struct {
	windowSize int
	records    []blockRecord // oldest first
}

func NewThroughput(windowSize int) *Throughput {
	if windowSize < 2 {
		windowSize = 2
	}
	return &Throughput{
		windowSize: windowSize,
		records:    make([]blockRecord, 0, windowSize),
	}
}

// RecordBlock records when a block was accepted.
func (t *Throughput) RecordBlock(blockNumber uint64, at time.Time) {
	record := blockRecord{BlockNumber: blockNumber, RelayedAt: at}
	if len(t.records) >= t.windowSize {
		// Shift elements left, drop oldest
		copy(t.records, t.records[1:])
		t.records[len(t.records)-1] = record
		return
	}
	t.records = append(t.records, record)
}

// BlocksPerSecond is zero until two blocks are recorded.
func (t *Throughput) BlocksPerSecond() float64 {
	if len(t.records) < 2 {
		return 0
	}
	first := t.records[0]
	last := t.records[len(t.records)-1]
	elapsed := last.RelayedAt.Sub(first.RelayedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(len(t.records)-1) / elapsed
}

// AverageInterval is the mean time between accepted blocks.
func (t *Throughput) AverageInterval() time.Duration {
	if len(t.records) < 2 {
		return 0
	}
	total := t.records[len(t.records)-1].RelayedAt.Sub(t.records[0].RelayedAt)
	return total / time.Duration(len(t.records)-1)
}
