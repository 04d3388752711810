package sink

import (
	"context"
	"time"

	"github.com/MasterOfBinary/gocommit/buffer"
)

// WithTimeout wraps a sink so that every Commit runs with a context that
// expires after d. A non-positive d returns s unchanged.
//
// The wrapped sink must honor its context for the timeout to take effect.
func WithTimeout[V any](s buffer.Sink[V], d time.Duration) buffer.Sink[V] {
	if d <= 0 {
		return s
	}

	return buffer.SinkFunc[V](func(ctx context.Context, batch []V) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return s.Commit(ctx, batch)
	})
}
