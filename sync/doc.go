// Package sync provides a synchronous, blocking write API built on top of
// the gocommit buffer. It offers a type-safe, generic interface for batching
// writes while making the calls appear synchronous to the caller.
//
// The main type is Writer, whose Set method blocks until the value has been
// written as part of a batch. Behind the scenes, concurrent Set calls are
// collected in a buffer.Buffer that a scheduler.Scheduler flushes by size
// or age.
//
// Basic usage:
//
//	// Define a function that performs batched writes
//	writeFunc := func(ctx context.Context, data map[string]string) error {
//		// Perform batched database write, API call, etc.
//		return db.BatchSet(ctx, data)
//	}
//
//	config := buffer.NewConstantConfig(&buffer.ConfigValues{
//		Capacity: 100,
//		MaxWait:  50 * time.Millisecond,
//	})
//	writer, err := sync.NewWriter(config, writeFunc)
//	if err != nil {
//		return err
//	}
//	defer writer.Close(ctx)
//
//	// Make synchronous calls that are batched behind the scenes
//	err = writer.Set(ctx, "key1", "value1")
//
// The sync package handles:
//   - Per-request context cancellation
//   - Last-write-wins collapsing of repeated keys
//   - Error propagation from the write function to every caller in the batch
//   - Graceful shutdown with a final flush
package sync
