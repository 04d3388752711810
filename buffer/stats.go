package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// FlushReason describes which trigger caused a flush.
type FlushReason string

const (
	// FlushReasonSize means the buffer was within FlushFraction of capacity.
	FlushReasonSize FlushReason = "size"
	// FlushReasonDeadline means MaxWait elapsed since the batch window opened.
	FlushReasonDeadline FlushReason = "deadline"
	// FlushReasonManual means Flush was called.
	FlushReasonManual FlushReason = "manual"
	// FlushReasonClose means Close flushed the remaining items.
	FlushReasonClose FlushReason = "close"
)

// StatsCollector defines the interface for collecting metrics from a Buffer.
// Implementations can store metrics in memory or export them to a monitoring
// system. The StatsCollector is optional - if not provided, no statistics are
// collected.
//
// Flush methods are called while the buffer lock is held, so implementations
// must not call back into the Buffer.
type StatsCollector interface {
	// RecordItemReceived is called for each item accepted by Receive.
	RecordItemReceived()

	// RecordItemSuperseded is called when an accepted item replaces one
	// that was still buffered under the same key.
	RecordItemSuperseded()

	// RecordBackpressureWait is called once per Receive call that had to
	// wait for space.
	RecordBackpressureWait()

	// RecordFlushStart is called before the sink is invoked.
	RecordFlushStart(reason FlushReason, batchSize int)

	// RecordFlushComplete is called after the sink returns and every status
	// in the batch has been resolved.
	RecordFlushComplete(batchSize int, duration time.Duration, err error)

	// GetStats returns a snapshot of the current statistics.
	GetStats() Stats
}

// Stats holds aggregated statistics about a Buffer.
type Stats struct {
	// ItemsReceived is the total number of items accepted by Receive.
	ItemsReceived uint64

	// ItemsSuperseded is the total number of items replaced before a flush.
	ItemsSuperseded uint64

	// ItemsCommitted is the total number of items in successful flushes.
	ItemsCommitted uint64

	// ItemsFailed is the total number of items in failed flushes.
	ItemsFailed uint64

	// BackpressureWaits is the number of Receive calls that had to wait.
	BackpressureWaits uint64

	// Flushes is the total number of completed flushes.
	Flushes uint64

	// FlushErrors is the number of flushes the sink rejected.
	FlushErrors uint64

	// FlushesByReason counts flushes by trigger.
	FlushesByReason map[FlushReason]uint64

	// TotalFlushTime is the cumulative time spent in flushes.
	TotalFlushTime time.Duration

	// MinFlushTime is the minimum time taken by a flush.
	MinFlushTime time.Duration

	// MaxFlushTime is the maximum time taken by a flush.
	MaxFlushTime time.Duration

	// MinBatchSize is the smallest batch flushed.
	MinBatchSize int

	// MaxBatchSize is the largest batch flushed.
	MaxBatchSize int

	// StartTime is when statistics collection began.
	StartTime time.Time

	// LastUpdateTime is when statistics were last updated.
	LastUpdateTime time.Time
}

// NoOpStatsCollector is a stats collector that discards all metrics.
// This is the default stats collector when none is specified.
type NoOpStatsCollector struct{}

// RecordItemReceived implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordItemReceived() {}

// RecordItemSuperseded implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordItemSuperseded() {}

// RecordBackpressureWait implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordBackpressureWait() {}

// RecordFlushStart implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordFlushStart(reason FlushReason, batchSize int) {}

// RecordFlushComplete implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordFlushComplete(batchSize int, duration time.Duration, err error) {}

// GetStats implements the StatsCollector interface.
func (n *NoOpStatsCollector) GetStats() Stats {
	return Stats{}
}

// BasicStatsCollector is a simple in-memory implementation of StatsCollector.
// All operations are thread-safe.
type BasicStatsCollector struct {
	mu    sync.RWMutex
	stats Stats

	// Atomic counters for lock-free updates
	itemsReceived     uint64
	itemsSuperseded   uint64
	backpressureWaits uint64
}

// NewBasicStatsCollector creates a new BasicStatsCollector.
func NewBasicStatsCollector() *BasicStatsCollector {
	now := time.Now()
	return &BasicStatsCollector{
		stats: Stats{
			FlushesByReason: make(map[FlushReason]uint64),
			StartTime:       now,
			LastUpdateTime:  now,
			MinFlushTime:    time.Duration(1<<63 - 1), // Max duration as initial value
		},
	}
}

// RecordItemReceived implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordItemReceived() {
	atomic.AddUint64(&b.itemsReceived, 1)
}

// RecordItemSuperseded implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordItemSuperseded() {
	atomic.AddUint64(&b.itemsSuperseded, 1)
}

// RecordBackpressureWait implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordBackpressureWait() {
	atomic.AddUint64(&b.backpressureWaits, 1)
}

// RecordFlushStart implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordFlushStart(reason FlushReason, batchSize int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.LastUpdateTime = time.Now()
	b.stats.FlushesByReason[reason]++

	if batchSize < b.stats.MinBatchSize || b.stats.MinBatchSize == 0 {
		b.stats.MinBatchSize = batchSize
	}
	if batchSize > b.stats.MaxBatchSize {
		b.stats.MaxBatchSize = batchSize
	}
}

// RecordFlushComplete implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordFlushComplete(batchSize int, duration time.Duration, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.LastUpdateTime = time.Now()
	b.stats.Flushes++
	b.stats.TotalFlushTime += duration

	if err != nil {
		b.stats.FlushErrors++
		b.stats.ItemsFailed += uint64(batchSize)
	} else {
		b.stats.ItemsCommitted += uint64(batchSize)
	}

	if duration < b.stats.MinFlushTime {
		b.stats.MinFlushTime = duration
	}
	if duration > b.stats.MaxFlushTime {
		b.stats.MaxFlushTime = duration
	}
}

// GetStats implements the StatsCollector interface.
// It returns a snapshot of the current statistics.
func (b *BasicStatsCollector) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := b.stats
	stats.ItemsReceived = atomic.LoadUint64(&b.itemsReceived)
	stats.ItemsSuperseded = atomic.LoadUint64(&b.itemsSuperseded)
	stats.BackpressureWaits = atomic.LoadUint64(&b.backpressureWaits)

	stats.FlushesByReason = make(map[FlushReason]uint64, len(b.stats.FlushesByReason))
	for k, v := range b.stats.FlushesByReason {
		stats.FlushesByReason[k] = v
	}

	if stats.Flushes == 0 {
		stats.MinFlushTime = 0
	}

	return stats
}

// AverageFlushTime returns the average time taken by a flush.
// Returns 0 if no flushes have completed.
func (s *Stats) AverageFlushTime() time.Duration {
	if s.Flushes == 0 {
		return 0
	}
	return s.TotalFlushTime / time.Duration(s.Flushes)
}

// AverageBatchSize returns the average size of flushed batches.
// Returns 0 if no flushes have completed.
func (s *Stats) AverageBatchSize() float64 {
	if s.Flushes == 0 {
		return 0
	}
	return float64(s.ItemsCommitted+s.ItemsFailed) / float64(s.Flushes)
}

// FailureRate returns the percentage of flushed items that were in failed
// batches. Returns 0 if nothing has been flushed.
func (s *Stats) FailureRate() float64 {
	total := s.ItemsCommitted + s.ItemsFailed
	if total == 0 {
		return 0
	}
	return float64(s.ItemsFailed) / float64(total) * 100
}
