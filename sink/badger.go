package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"
)

// EncodeFunc turns an item into the key and value stored in BadgerDB.
type EncodeFunc[V any] func(item V) (key, value []byte, err error)

// JSONEncoder returns an EncodeFunc that stores items as JSON under the key
// returned by keyOf.
func JSONEncoder[V any](keyOf func(V) string) EncodeFunc[V] {
	return func(item V) ([]byte, []byte, error) {
		value, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(item)
		if err != nil {
			return nil, nil, err
		}
		return []byte(keyOf(item)), value, nil
	}
}

// Badger is a Sink that writes every batch to a BadgerDB.
//
// A batch is written in a single read-write transaction, so it is either
// stored completely or not at all. A batch too large for one transaction
// fails with an error wrapping badger.ErrTxnTooBig and nothing is written;
// keep the buffer capacity well under the database's transaction limits.
type Badger[V any] struct {
	// DB is the database to write to. It is not closed by the sink.
	DB *badger.DB

	// Encode converts each item into a key and value.
	Encode EncodeFunc[V]

	// TTL, if positive, is set on every written entry.
	TTL time.Duration
}

// NewBadger creates a Badger sink.
func NewBadger[V any](db *badger.DB, encode EncodeFunc[V]) *Badger[V] {
	return &Badger[V]{
		DB:     db,
		Encode: encode,
	}
}

// Commit implements buffer.Sink.
func (s *Badger[V]) Commit(ctx context.Context, batch []V) error {
	if s.DB == nil || s.Encode == nil {
		return errors.New("badger sink: DB and Encode must be set")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pairs := make([]kv, 0, len(batch))
	for i, item := range batch {
		key, value, err := s.Encode(item)
		if err != nil {
			return fmt.Errorf("badger sink: encode item %d: %w", i, err)
		}
		pairs = append(pairs, kv{key: key, value: value})
	}

	err := s.DB.Update(func(txn *badger.Txn) error {
		for _, p := range pairs {
			if err := txn.SetEntry(s.entry(p)); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("badger sink: batch of %d items does not fit in one transaction: %w", len(batch), err)
	}
	return err
}

type kv struct {
	key, value []byte
}

// entry builds the entry for p, with the TTL if one is set.
func (s *Badger[V]) entry(p kv) *badger.Entry {
	e := badger.NewEntry(p.key, p.value)
	if s.TTL > 0 {
		e = e.WithTTL(s.TTL)
	}
	return e
}
