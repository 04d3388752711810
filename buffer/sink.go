package buffer

import "context"

// Sink receives the batches flushed by a Buffer.
type Sink[V any] interface {
	// Commit writes the whole batch as one atomic bulk operation. Either
	// every item is written and nil is returned, or none is and an error is
	// returned; the buffer does not retry and does not support partial
	// success.
	//
	// Commit is called with the buffer lock held, so it must not call back
	// into the Buffer. It is never called concurrently by the same Buffer,
	// and the batches it receives are disjoint.
	//
	// Example:
	//
	//	func (s *MySink) Commit(ctx context.Context, batch []*Doc) error {
	//		tx, err := s.db.BeginTx(ctx, nil)
	//		if err != nil {
	//			return err
	//		}
	//		defer tx.Rollback()
	//
	//		for _, doc := range batch {
	//			if _, err := tx.ExecContext(ctx, insertDoc, doc.ID, doc.Body); err != nil {
	//				return err
	//			}
	//		}
	//
	//		return tx.Commit()
	//	}
	Commit(ctx context.Context, batch []V) error
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc[V any] func(ctx context.Context, batch []V) error

// Commit implements the Sink interface by calling f.
func (f SinkFunc[V]) Commit(ctx context.Context, batch []V) error {
	return f(ctx, batch)
}
