package buffer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/MasterOfBinary/gocommit/buffer"
)

// recordingSink stores every batch it is given and fails while Err is set.
type recordingSink[V any] struct {
	mu      sync.Mutex
	batches [][]V
	err     error
	panics  bool
}

func (s *recordingSink[V]) Commit(_ context.Context, batch []V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.panics {
		panic("sink exploded")
	}

	cp := make([]V, len(batch))
	copy(cp, batch)
	s.batches = append(s.batches, cp)
	return s.err
}

func (s *recordingSink[V]) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSink[V]) getBatches() [][]V {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([][]V, len(s.batches))
	copy(result, s.batches)
	return result
}

// newTestBuffer returns a string-keyed buffer on a fake clock.
func newTestBuffer(t *testing.T, values buffer.ConfigValues) (*buffer.Buffer[string, string], *recordingSink[string], *clockwork.FakeClock, *buffer.BasicStatsCollector) {
	t.Helper()

	sink := &recordingSink[string]{}
	clock := clockwork.NewFakeClock()
	stats := buffer.NewBasicStatsCollector()

	b := buffer.New[string, string](buffer.NewConstantConfig(&values), sink).
		WithClock(clock).
		WithStats(stats)

	return b, sink, clock, stats
}

// mustReceive calls Receive and fails the test if it does not return promptly.
func mustReceive[V any](t *testing.T, b *buffer.Buffer[string, V], key string, item V) *buffer.Status[V] {
	t.Helper()

	type result struct {
		st  *buffer.Status[V]
		err error
	}
	done := make(chan result, 1)
	go func() {
		st, err := b.Receive(context.Background(), key, item)
		done <- result{st, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.NotNil(t, r.st)
		return r.st
	case <-time.After(time.Second):
		t.Fatalf("Receive(%q) blocked", key)
		return nil
	}
}
