package buffer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Pending(t *testing.T) {
	st := newStatus("doc")

	assert.Equal(t, "doc", st.Item())
	assert.False(t, st.Committed())
	assert.NoError(t, st.Err())
	assert.False(t, st.Superseded())

	select {
	case <-st.Done():
		t.Fatal("Done closed for a pending status")
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, st.Wait(ctx), context.DeadlineExceeded)
}

func TestStatus_Resolve(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		st := newStatus(1)
		require.True(t, st.resolve(nil, false))

		assert.True(t, st.Committed())
		assert.NoError(t, st.Err())
		assert.NoError(t, st.Wait(context.Background()))
	})

	t.Run("failure is still committed", func(t *testing.T) {
		errSink := errors.New("sink down")
		st := newStatus(1)
		require.True(t, st.resolve(errSink, false))

		assert.True(t, st.Committed())
		assert.ErrorIs(t, st.Err(), errSink)
		assert.ErrorIs(t, st.Wait(context.Background()), errSink)
	})

	t.Run("superseded", func(t *testing.T) {
		st := newStatus(1)
		require.True(t, st.resolve(nil, true))

		assert.True(t, st.Committed())
		assert.True(t, st.Superseded())
		assert.NoError(t, st.Err())
	})

	t.Run("write once", func(t *testing.T) {
		st := newStatus(1)
		require.True(t, st.resolve(nil, false))
		assert.False(t, st.resolve(errors.New("late"), true))

		assert.NoError(t, st.Err())
		assert.False(t, st.Superseded())
	})
}

func TestStatus_ConcurrentReaders(t *testing.T) {
	st := newStatus("x")
	errSink := errors.New("sink down")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-st.Done()
			assert.True(t, st.Committed())
			assert.ErrorIs(t, st.Err(), errSink)
		}()
	}

	st.resolve(errSink, false)
	wg.Wait()
}
