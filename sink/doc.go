// Package sink contains several implementations of the buffer.Sink
// interface for common storage backends, including:
//
// - Badger: For writing each batch to a BadgerDB in one transaction
// - SQL: For inserting each batch into a database/sql table in one transaction
//
// and decorators that add behavior to any sink:
//
// - Logging: For logging every commit with its size and duration
// - Timeout: For bounding the time a single commit may take
//
// Every sink commits a batch atomically where the backend allows it, and
// returns the first error it hits without partial retries. Retrying a failed
// batch is left to the caller.
//
// Basic usage of the SQL sink:
//
//	s := &sink.SQL[*Doc]{
//		DB:      db,
//		Table:   "docs",
//		Columns: []string{"id", "body"},
//		Args: func(d *Doc) ([]any, error) {
//			return []any{d.ID, d.Body}, nil
//		},
//	}
//	b := buffer.New[string, *Doc](config, sink.WithLogging[*Doc](s, logger, "docs"))
package sink
