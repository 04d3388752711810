package buffer

import "time"

// Default configuration values. They are applied by the Buffer whenever the
// corresponding ConfigValues field is zero.
const (
	// DefaultCapacity is the default maximum number of buffered items.
	DefaultCapacity = 1000

	// DefaultMaxWait is the default time an item may wait before the batch
	// containing it is flushed.
	DefaultMaxWait = time.Second

	// DefaultFlushFraction is the default fraction of capacity that, once
	// only that much room remains, triggers a size-based flush.
	DefaultFlushFraction = 0.01

	// DefaultTickInterval is the cadence at which a scheduler is expected to
	// call Buffer.Tick.
	DefaultTickInterval = 100 * time.Millisecond
)
