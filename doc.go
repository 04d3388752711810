// Package gocommit contains a keyed batching commit buffer. The main type is
// buffer.Buffer, which can be created using buffer.New. Producers hand it
// keyed items with Receive, and the items are written in batches by an
// implementation of the buffer.Sink interface. Some Sink implementations are
// provided in the sink package, or you can create your own custom one.
//
// Buffer uses the Capacity, FlushFraction and MaxWait configuration
// parameters in buffer.ConfigValues to decide when to flush. Flushes happen
// on Tick, which is driven periodically by a scheduler.Scheduler:
//
//	Size: the number of free slots is at most FlushFraction * Capacity.
//	Age:  MaxWait has passed since the first item entered an empty buffer.
//
// A few examples, with Capacity = 10:
//
// FlushFraction = 0.1. Nine distinct keys have been received. One slot is
// left, so the next Tick flushes all nine.
//
// FlushFraction = 0.1, MaxWait = 1s. Three keys have been received and 1s
// passes. The next Tick flushes the three.
//
// Receiving a key that is already buffered replaces the buffered item. The
// replaced item is never written; its Status reports it as committed and
// superseded. Receive blocks while the buffer is full, so producers slow
// down to the rate the sink can absorb.
//
// A failed commit is not retried. Every item of the batch is marked
// committed with the sink error, and HadProblem reports true from then on.
// Note that committed therefore means "no longer pending", not "written";
// check Status.Err to tell the two apart.
//
// The sync package wraps a Buffer and Scheduler in a blocking Set call, and
// cmd/gocommitd is a daemon that commits JSON lines from stdin to BadgerDB
// or a SQL database.
package gocommit
