// Package buffer contains a keyed commit buffer. The main type is Buffer,
// which can be created using New. Producers call Receive from any number of
// goroutines; a single scheduler goroutine calls Tick periodically, and the
// buffer hands batches of items to a Sink when a flush condition holds.
//
// Two independent triggers decide when a batch is flushed:
//
//   - Size: only FlushFraction * Capacity (rounded up) free slots remain.
//   - Time: MaxWait has elapsed since the first item of the batch arrived.
//
// Whichever fires first wins. Receive blocks while the buffer is full and
// resumes once a flush frees space, which bounds memory and the load on the
// sink.
//
// Every call to Receive returns a Status for the item. Note that a Status is
// "committed" in both terminal states:
//
//	st, _ := b.Receive(ctx, "doc-1", doc)
//	<-st.Done()
//	if err := st.Err(); err != nil {
//		// committed, but the batch failed
//	}
//
// Always check Err before treating Committed as success.
//
// Submitting an item under a key that is still buffered replaces the old
// item. The old item's Status resolves as committed without error and the
// old item never reaches the sink.
//
// Flushes are all-or-nothing. A failed batch is dropped after its statuses
// are marked, and HadProblem reports true from then on; there is no retry.
package buffer
