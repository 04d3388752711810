package buffer

import (
	"context"
	"sync"
	"sync/atomic"
)

// Status reports the fate of a single item passed to Receive. The buffer
// writes it exactly once; the caller may read it any number of times from any
// goroutine.
//
// A Status moves from pending to one of two terminal states, and Committed
// returns true in BOTH of them:
//
//   - committed: the item was written by the sink, or it was superseded by a
//     later item under the same key before it could be flushed.
//   - committed with failure: the sink rejected the batch holding the item.
//     Err returns the sink's error.
//
// Committed only means "no longer pending". Check Err before treating a
// committed item as written.
type Status[V any] struct {
	item V
	done chan struct{}
	once sync.Once

	committed  atomic.Bool
	superseded atomic.Bool

	// failure is written before committed is set and never after.
	failure error
}

func newStatus[V any](item V) *Status[V] {
	return &Status[V]{
		item: item,
		done: make(chan struct{}),
	}
}

// Item returns the item that was passed to Receive.
func (s *Status[V]) Item() V {
	return s.item
}

// Committed reports whether the item has left the buffer, successfully or
// not. See Err.
func (s *Status[V]) Committed() bool {
	return s.committed.Load()
}

// Err returns the error of the failed batch the item belonged to. It returns
// nil while the item is pending and after a successful commit.
func (s *Status[V]) Err() error {
	if !s.committed.Load() {
		return nil
	}
	return s.failure
}

// Superseded reports whether the item was replaced by a later item with the
// same key and therefore never reached the sink. A superseded Status is
// committed without error.
func (s *Status[V]) Superseded() bool {
	return s.superseded.Load()
}

// Done returns a channel that is closed once the Status is committed.
func (s *Status[V]) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the Status is committed or ctx is done. It returns the
// batch error, if any, or ctx.Err() if ctx finished first.
func (s *Status[V]) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve moves the Status to its terminal state. Only the first call has an
// effect and it reports whether it was that call.
func (s *Status[V]) resolve(failure error, superseded bool) bool {
	resolved := false
	s.once.Do(func() {
		s.failure = failure
		s.superseded.Store(superseded)
		s.committed.Store(true)
		close(s.done)
		resolved = true
	})
	return resolved
}
