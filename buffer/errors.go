package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrNilItem is returned by Receive when the item is nil.
	ErrNilItem = errors.New("buffer: item cannot be nil")

	// ErrClosed is returned by Receive once Close has been called, including
	// to callers that were blocked waiting for space.
	ErrClosed = errors.New("buffer: closed")

	// ErrReceiveTimeout is returned by Receive when ReceiveTimeout is set and
	// no space became available in time.
	ErrReceiveTimeout = errors.New("buffer: timed out waiting for space")
)

// SinkError is returned by Tick, Flush and Close when the sink fails to commit
// a batch. The same underlying error is recorded on the Status of every item
// in the batch.
type SinkError struct {
	// Err is the error returned by the sink.
	Err error

	// Items is the number of items in the dropped batch.
	Items int
}

func (e SinkError) Error() string {
	return fmt.Sprintf("sink error (%d items dropped): %v", e.Items, e.Err)
}

func (e SinkError) Unwrap() error {
	return e.Err
}
