// Package metrics exports buffer statistics to Prometheus.
//
// Collector implements buffer.StatsCollector, so it can be passed to
// Buffer.WithStats; every recorded event updates a Prometheus counter or
// histogram and is also kept in a buffer.BasicStatsCollector so that
// GetStats keeps working. RegisterBuffer adds gauges that sample a buffer's
// occupancy and problem flag at scrape time.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MasterOfBinary/gocommit/buffer"
)

// DefaultNamespace is the metric namespace used when none is given.
const DefaultNamespace = "gocommit"

// Collector is a buffer.StatsCollector backed by Prometheus metrics.
type Collector struct {
	basic *buffer.BasicStatsCollector

	itemsReceived     prometheus.Counter
	itemsSuperseded   prometheus.Counter
	itemsCommitted    prometheus.Counter
	itemsFailed       prometheus.Counter
	backpressureWaits prometheus.Counter
	flushes           *prometheus.CounterVec
	flushErrors       prometheus.Counter
	flushDuration     prometheus.Histogram
	batchSize         prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg. An
// empty namespace uses DefaultNamespace. Registering two collectors with the
// same namespace on one registerer panics.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Collector{
		basic: buffer.NewBasicStatsCollector(),

		itemsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "items_received_total",
			Help:      "Number of items accepted by Receive",
		}),
		itemsSuperseded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "items_superseded_total",
			Help:      "Number of items replaced by a newer item with the same key before being committed",
		}),
		itemsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "items_committed_total",
			Help:      "Number of items written by a successful sink commit",
		}),
		itemsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "items_failed_total",
			Help:      "Number of items dropped because their sink commit failed",
		}),
		backpressureWaits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "backpressure_waits_total",
			Help:      "Number of Receive calls that had to wait for free capacity",
		}),
		flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "flushes_total",
			Help:      "Number of non-empty flushes by trigger",
		}, []string{"reason"}),
		flushErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "flush_errors_total",
			Help:      "Number of flushes whose sink commit failed",
		}),
		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "flush_duration_seconds",
			Help:      "Time spent in the sink per flush",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "batch_size",
			Help:      "Number of items per flushed batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
}

// RecordItemReceived implements buffer.StatsCollector.
func (c *Collector) RecordItemReceived() {
	c.basic.RecordItemReceived()
	c.itemsReceived.Inc()
}

// RecordItemSuperseded implements buffer.StatsCollector.
func (c *Collector) RecordItemSuperseded() {
	c.basic.RecordItemSuperseded()
	c.itemsSuperseded.Inc()
}

// RecordBackpressureWait implements buffer.StatsCollector.
func (c *Collector) RecordBackpressureWait() {
	c.basic.RecordBackpressureWait()
	c.backpressureWaits.Inc()
}

// RecordFlushStart implements buffer.StatsCollector.
func (c *Collector) RecordFlushStart(reason buffer.FlushReason, batchSize int) {
	c.basic.RecordFlushStart(reason, batchSize)
	c.flushes.WithLabelValues(string(reason)).Inc()
	c.batchSize.Observe(float64(batchSize))
}

// RecordFlushComplete implements buffer.StatsCollector.
func (c *Collector) RecordFlushComplete(batchSize int, duration time.Duration, err error) {
	c.basic.RecordFlushComplete(batchSize, duration, err)
	c.flushDuration.Observe(duration.Seconds())

	if err != nil {
		c.flushErrors.Inc()
		c.itemsFailed.Add(float64(batchSize))
		return
	}
	c.itemsCommitted.Add(float64(batchSize))
}

// GetStats implements buffer.StatsCollector.
func (c *Collector) GetStats() buffer.Stats {
	return c.basic.GetStats()
}

// BufferState is implemented by buffer.Buffer.
type BufferState interface {
	Len() int
	HadProblem() bool
	AreAllCommitted() bool
}

// RegisterBuffer registers gauges that report the state of b at scrape
// time: the number of buffered items, whether any commit has failed and
// whether every received item is committed.
func RegisterBuffer(reg prometheus.Registerer, namespace string, b BufferState) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "items",
		Help:      "Number of items currently buffered",
	}, func() float64 {
		return float64(b.Len())
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "had_problem",
		Help:      "1 if any sink commit has failed since the buffer was created",
	}, func() float64 {
		return boolToFloat(b.HadProblem())
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "all_committed",
		Help:      "1 if every received item has reached a terminal state",
	}, func() float64 {
		return boolToFloat(b.AreAllCommitted())
	})
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
