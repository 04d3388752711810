package buffer

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Buffer collects keyed items from concurrent producers and commits them to a
// Sink in batches.
//
// To create a new Buffer, call New:
//
//	b := buffer.New[string, *Doc](buffer.NewConstantConfig(&buffer.ConfigValues{
//		Capacity: 5000,
//		MaxWait:  time.Second,
//	}), sink)
//
// Producers call Receive, which returns a Status for the item and blocks only
// while the buffer is full. Nothing is flushed until Tick is called, so a
// scheduler must call Tick periodically (the scheduler package does this):
//
//	st, err := b.Receive(ctx, doc.ID, doc)
//	if err != nil {
//		return err // ctx canceled, timed out or closed; the item was not accepted
//	}
//	// later
//	if st.Committed() && st.Err() == nil {
//		// written
//	}
//
// Receive, Tick, Flush and Close share one mutex. A flush snapshots the
// buffered items, calls the sink and resolves every status before the mutex
// is released, so no producer can slip an item in under a key that is part
// of the batch in flight.
type Buffer[K comparable, V any] struct {
	config Config
	sink   Sink[V]
	logger Logger
	stats  StatsCollector
	clock  clockwork.Clock

	// All fields below are protected by mu
	mu       sync.Mutex
	entries  map[K]*Status[V]
	deadline time.Time
	space    chan struct{}
	closed   bool
	used     bool

	pending    atomic.Int64
	hadProblem atomic.Bool
}

// New creates a new Buffer that commits to sink. If config is nil, the
// default values are used.
//
// New panics if sink is nil.
func New[K comparable, V any](config Config, sink Sink[V]) *Buffer[K, V] {
	if sink == nil {
		panic("buffer: sink cannot be nil")
	}
	if config == nil {
		config = NewConstantConfig(nil)
	}

	return &Buffer[K, V]{
		config:  config,
		sink:    sink,
		logger:  &NoOpLogger{},
		stats:   &NoOpStatsCollector{},
		clock:   clockwork.NewRealClock(),
		entries: make(map[K]*Status[V]),
		space:   make(chan struct{}),
	}
}

// WithLogger sets a custom logger for the Buffer. If not set, no logging
// occurs.
//
// Panics if called after the Buffer has accepted an item.
func (b *Buffer[K, V]) WithLogger(logger Logger) *Buffer[K, V] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.used {
		panic("buffer: WithLogger cannot be called after Receive")
	}

	if logger == nil {
		logger = &NoOpLogger{}
	}
	b.logger = logger
	return b
}

// WithStats sets a custom stats collector for the Buffer.
//
// Example:
//
//	stats := buffer.NewBasicStatsCollector()
//	b := buffer.New[string, *Doc](config, sink).WithStats(stats)
//
//	// Later, retrieve statistics
//	current := stats.GetStats()
//
// Panics if called after the Buffer has accepted an item.
func (b *Buffer[K, V]) WithStats(stats StatsCollector) *Buffer[K, V] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.used {
		panic("buffer: WithStats cannot be called after Receive")
	}

	if stats == nil {
		stats = &NoOpStatsCollector{}
	}
	b.stats = stats
	return b
}

// WithClock sets the clock used for the flush deadline and the receive
// timeout. It exists mainly for tests.
//
// Panics if called after the Buffer has accepted an item.
func (b *Buffer[K, V]) WithClock(clock clockwork.Clock) *Buffer[K, V] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.used {
		panic("buffer: WithClock cannot be called after Receive")
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	b.clock = clock
	return b
}

// Receive adds item to the buffer under key and returns its Status.
//
// If an item with the same key is still buffered, that item is dropped and
// its Status is committed without error. Only the newest item for a key is
// handed to the sink.
//
// Receive blocks while the buffer is full. It returns an error only if the
// item was not accepted: item is nil, ctx is done, ReceiveTimeout elapsed
// while waiting, or the buffer was closed. Sink failures are reported
// through the returned Status, never by Receive.
func (b *Buffer[K, V]) Receive(ctx context.Context, key K, item V) (*Status[V], error) {
	if isNil(item) {
		return nil, ErrNilItem
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		waited  bool
		timeout <-chan time.Time
	)

	for {
		b.mu.Lock()
		b.used = true

		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}

		config := b.values()
		if len(b.entries) < config.Capacity {
			status := b.insertLocked(key, item, config)
			b.mu.Unlock()
			return status, nil
		}

		// Every flush closes and replaces space, so holding on to the
		// current channel is enough to be woken by the next one.
		space := b.space
		b.mu.Unlock()

		if !waited {
			waited = true
			b.stats.RecordBackpressureWait()
			b.logger.Debug("Buffer full at %d items, waiting for a flush", config.Capacity)

			if config.ReceiveTimeout > 0 {
				timer := b.clock.NewTimer(config.ReceiveTimeout)
				defer timer.Stop()
				timeout = timer.Chan()
			}
		}

		select {
		case <-space:
		case <-timeout:
			return nil, ErrReceiveTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// insertLocked stores item under key. b.mu must be held and the buffer must
// have room.
func (b *Buffer[K, V]) insertLocked(key K, item V, config ConfigValues) *Status[V] {
	status := newStatus(item)
	b.pending.Add(1)

	prev, exists := b.entries[key]
	if exists {
		if prev.resolve(nil, true) {
			b.pending.Add(-1)
		}
		b.stats.RecordItemSuperseded()
		b.logger.Debug("Item for key %v superseded before flush", key)
	}

	wasEmpty := len(b.entries) == 0
	b.entries[key] = status

	// Only the first arrival in a batch window starts the clock.
	if wasEmpty && b.deadline.IsZero() {
		b.deadline = b.clock.Now().Add(config.MaxWait)
	}

	b.stats.RecordItemReceived()
	return status
}

// Tick flushes the buffer if a flush condition holds and does nothing
// otherwise. It is meant to be called by a scheduler at a fixed cadence (see
// DefaultTickInterval) and must keep being called after it returns an error.
//
// A flush happens when at most ceil(FlushFraction * Capacity) slots are free,
// or when MaxWait has passed since the first item of the current batch
// arrived.
//
// If the sink fails, every item in the batch is committed with the sink's
// error, the batch is dropped, HadProblem starts returning true, and Tick
// returns a *SinkError.
func (b *Buffer[K, V]) Tick(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	reason, ok := b.flushReasonLocked(b.values())
	if !ok {
		return nil
	}

	return b.flushLocked(ctx, reason)
}

// Flush commits whatever is buffered right away, regardless of the flush
// triggers. Errors are reported as in Tick.
func (b *Buffer[K, V]) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.flushLocked(ctx, FlushReasonManual)
}

// Close stops the Buffer from accepting items, wakes every producer blocked
// in Receive with ErrClosed, and flushes the remaining items. Calling Close
// more than once is safe; later calls do nothing and return nil.
func (b *Buffer[K, V]) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.logger.Info("Closing buffer with %d pending items", len(b.entries))

	err := b.flushLocked(ctx, FlushReasonClose)

	close(b.space)
	b.space = make(chan struct{})

	return err
}

// AreAllCommitted reports whether every item accepted so far has been
// committed. It does not take the buffer lock, so the answer may be stale by
// the time the caller looks at it.
func (b *Buffer[K, V]) AreAllCommitted() bool {
	return b.pending.Load() == 0
}

// HadProblem reports whether any flush has ever failed. Once true it stays
// true.
func (b *Buffer[K, V]) HadProblem() bool {
	return b.hadProblem.Load()
}

// Len returns the number of buffered items.
func (b *Buffer[K, V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// values returns the current config with defaults applied.
func (b *Buffer[K, V]) values() ConfigValues {
	return fixConfig(b.config.Get())
}

// flushReasonLocked evaluates both flush triggers. The size trigger is
// checked first, so a full buffer past its deadline reports FlushReasonSize.
func (b *Buffer[K, V]) flushReasonLocked(config ConfigValues) (FlushReason, bool) {
	remaining := config.Capacity - len(b.entries)
	if remaining <= config.flushThreshold() {
		return FlushReasonSize, true
	}

	if !b.deadline.IsZero() && b.clock.Now().After(b.deadline) {
		return FlushReasonDeadline, true
	}

	return "", false
}

// flushLocked commits every buffered item in one sink call, resolves their
// statuses and empties the buffer. b.mu must be held.
func (b *Buffer[K, V]) flushLocked(ctx context.Context, reason FlushReason) error {
	b.deadline = time.Time{}

	if len(b.entries) == 0 {
		return nil
	}

	statuses := make([]*Status[V], 0, len(b.entries))
	batch := make([]V, 0, len(b.entries))
	for _, st := range b.entries {
		statuses = append(statuses, st)
		batch = append(batch, st.item)
	}

	size := len(batch)
	b.logger.Debug("Flushing %d items (trigger: %s)", size, reason)
	b.stats.RecordFlushStart(reason, size)
	startTime := time.Now()

	err := b.commit(ctx, batch)

	for _, st := range statuses {
		if st.resolve(err, false) {
			b.pending.Add(-1)
		}
	}

	// The batch is dropped on failure as well; it is never retried.
	clear(b.entries)
	close(b.space)
	b.space = make(chan struct{})

	duration := time.Since(startTime)
	b.stats.RecordFlushComplete(size, duration, err)

	if err != nil {
		b.hadProblem.Store(true)
		b.logger.Error("Flush of %d items failed after %v (trigger: %s): %v", size, duration, reason, err)
		return &SinkError{Err: err, Items: size}
	}

	b.logger.Info("Flushed %d items in %v (trigger: %s)", size, duration, reason)
	return nil
}

// commit calls the sink, turning a panic into an error so that the statuses
// of the batch are still resolved.
func (b *Buffer[K, V]) commit(ctx context.Context, batch []V) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()

	return b.sink.Commit(ctx, batch)
}

// isNil reports whether v is nil, including typed nil pointers, maps, slices,
// channels and functions.
func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
