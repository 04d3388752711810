package source

import (
	"context"
	"fmt"

	"github.com/MasterOfBinary/gocommit/buffer"
)

// Record is one keyed item on its way into a buffer.
type Record[K comparable, V any] struct {
	Key   K
	Value V
}

// Receiver accepts keyed items. It is implemented by buffer.Buffer.
type Receiver[K comparable, V any] interface {
	Receive(ctx context.Context, key K, item V) (*buffer.Status[V], error)
}

// Document is a JSON document read by Lines. Key is the value of the key
// field, or a generated UUID if the document has none.
type Document struct {
	Key  string
	Body []byte
}

// Error wraps an error raised while reading input, with the input line it
// came from.
type Error struct {
	Line int
	Err  error
}

// Error implements the error interface.
func (e Error) Error() string {
	return fmt.Sprintf("source error at line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e Error) Unwrap() error {
	return e.Err
}
