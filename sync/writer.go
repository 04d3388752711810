package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/MasterOfBinary/gocommit/buffer"
	"github.com/MasterOfBinary/gocommit/scheduler"
)

// minTickInterval bounds how often the writer's scheduler ticks.
const minTickInterval = time.Millisecond

// Writer provides synchronous write operations that are batched behind the scenes.
// It uses generics to provide type safety for keys and values.
type Writer[K comparable, V any] struct {
	buffer    *buffer.Buffer[K, *write[K, V]]
	scheduler *scheduler.Scheduler
}

// NewWriter creates a Writer with the specified configuration and write
// function, and starts ticking its buffer in the background. The writeFunc
// will be called with batches of key-value pairs to write.
//
// The tick interval is the smaller of buffer.DefaultTickInterval and a
// quarter of the configured MaxWait, so that a batch waits at most about
// MaxWait plus one tick.
func NewWriter[K comparable, V any](config buffer.Config, writeFunc WriteFunc[K, V]) (*Writer[K, V], error) {
	return NewWriterWithLogger(config, writeFunc, nil)
}

// NewWriterWithLogger is like NewWriter but logs buffer and scheduler events
// to logger.
func NewWriterWithLogger[K comparable, V any](config buffer.Config, writeFunc WriteFunc[K, V], logger buffer.Logger) (*Writer[K, V], error) {
	if writeFunc == nil {
		return nil, errors.New("sync: writeFunc cannot be nil")
	}
	if config == nil {
		config = buffer.NewConstantConfig(nil)
	}

	b := buffer.New[K, *write[K, V]](config, &writeSink[K, V]{writeFunc: writeFunc}).
		WithLogger(logger)

	s := scheduler.New(b, tickInterval(config.Get().MaxWait)).
		WithLogger(logger)
	if err := s.Start(context.Background()); err != nil {
		return nil, err
	}

	return &Writer[K, V]{
		buffer:    b,
		scheduler: s,
	}, nil
}

func tickInterval(maxWait time.Duration) time.Duration {
	interval := buffer.DefaultTickInterval
	if maxWait > 0 && maxWait/4 < interval {
		interval = maxWait / 4
	}
	if interval < minTickInterval {
		interval = minTickInterval
	}
	return interval
}

// Set writes a key-value pair. It blocks until the batched operation completes
// or the context is cancelled. Multiple concurrent Set calls will be batched
// together according to the buffer configuration.
//
// If another Set for the same key is accepted before this one is written,
// this value is discarded and Set returns nil; the newer call reports the
// outcome of the write. A canceled context does not withdraw an accepted
// value, it only stops the wait.
func (w *Writer[K, V]) Set(ctx context.Context, key K, value V) error {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := w.buffer.Receive(ctx, key, &write[K, V]{key: key, value: value})
	if err != nil {
		return err
	}

	return st.Wait(ctx)
}

// Flush writes every pending value now instead of waiting for the next
// trigger.
func (w *Writer[K, V]) Flush(ctx context.Context) error {
	return w.buffer.Flush(ctx)
}

// HadProblem reports whether any batched write has failed.
func (w *Writer[K, V]) HadProblem() bool {
	return w.buffer.HadProblem()
}

// Close stops the background ticking, writes the pending values and rejects
// further Set calls with buffer.ErrClosed. Calling Close more than once is
// safe.
func (w *Writer[K, V]) Close(ctx context.Context) error {
	return multierr.Combine(
		w.scheduler.Stop(),
		w.buffer.Close(ctx),
	)
}
