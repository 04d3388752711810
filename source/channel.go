package source

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MasterOfBinary/gocommit/buffer"
)

// defaultWorkers is used when Channel.Workers is zero.
const defaultWorkers = 1

// Channel is a pump that reads records from Input and hands them to a
// Receiver from a pool of worker goroutines. Workers block on the receiver's
// backpressure independently, so a slow Receive call does not stall the
// other workers.
type Channel[K comparable, V any] struct {
	// Input is the channel from which records are read. Run returns once it
	// is closed and drained.
	Input <-chan Record[K, V]

	// Workers is the number of goroutines calling Receive (default: 1).
	Workers int

	// OnStatus, if set, is called with every accepted record and its status
	// handle. It runs on the worker goroutine, so it should not block.
	OnStatus func(rec Record[K, V], st *buffer.Status[V])

	// Logger reports rejected records. If nil, nothing is logged.
	Logger buffer.Logger
}

// Run pumps records into r until Input is closed, ctx is canceled or a
// Receive call fails. It returns the first error, or nil once Input is
// drained. buffer.ErrNilItem does not stop the pump; the record is logged
// and skipped.
func (c *Channel[K, V]) Run(ctx context.Context, r Receiver[K, V]) error {
	if c.Input == nil {
		return errors.New("source: input channel cannot be nil")
	}

	workers := c.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	logger := c.Logger
	if logger == nil {
		logger = &buffer.NoOpLogger{}
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return c.work(ctx, r, logger)
		})
	}

	return g.Wait()
}

func (c *Channel[K, V]) work(ctx context.Context, r Receiver[K, V], logger buffer.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-c.Input:
			if !ok {
				return nil
			}

			st, err := r.Receive(ctx, rec.Key, rec.Value)
			if errors.Is(err, buffer.ErrNilItem) {
				logger.Warn("Skipping record with nil value for key %v", rec.Key)
				continue
			}
			if err != nil {
				return fmt.Errorf("source: receive key %v: %w", rec.Key, err)
			}

			if c.OnStatus != nil {
				c.OnStatus(rec, st)
			}
		}
	}
}
