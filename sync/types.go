package sync

import (
	"context"
)

// WriteFunc is a user-provided function that performs a batched write operation.
// It receives a map of key-value pairs to write and returns an error if the
// entire batch fails. Each key appears once; when a key was Set more than
// once before a flush only the newest value is passed.
type WriteFunc[K comparable, V any] func(ctx context.Context, data map[K]V) error

// write is the buffered form of one Set call.
type write[K comparable, V any] struct {
	key   K
	value V
}

// writeSink adapts a WriteFunc to buffer.Sink.
type writeSink[K comparable, V any] struct {
	writeFunc WriteFunc[K, V]
}

func (s *writeSink[K, V]) Commit(ctx context.Context, batch []*write[K, V]) error {
	data := make(map[K]V, len(batch))
	for _, w := range batch {
		data[w.key] = w.value
	}

	return s.writeFunc(ctx, data)
}
