package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MasterOfBinary/gocommit/buffer"
)

// Logging wraps another sink and logs every commit with its batch size,
// duration and outcome.
type Logging[V any] struct {
	// Sink is the wrapped sink that does the actual work. Commit fails if
	// it is nil.
	Sink buffer.Sink[V]

	// Logger is used to log commits.
	// If nil, no logging occurs.
	Logger buffer.Logger

	// Name is an optional name for this sink used in log messages.
	// If empty, the wrapped sink's type is used.
	Name string
}

// Commit implements buffer.Sink by delegating to the wrapped sink.
func (s *Logging[V]) Commit(ctx context.Context, batch []V) error {
	if s.Sink == nil {
		return errors.New("sink: wrapped sink is nil")
	}

	if s.Logger == nil {
		return s.Sink.Commit(ctx, batch)
	}

	name := s.Name
	if name == "" {
		name = fmt.Sprintf("%T", s.Sink)
	}

	startTime := time.Now()
	s.Logger.Debug("Sink '%s' committing %d items", name, len(batch))

	err := s.Sink.Commit(ctx, batch)

	duration := time.Since(startTime)
	if err != nil {
		s.Logger.Error("Sink '%s' failed after %v: %v", name, duration, err)
	} else {
		s.Logger.Debug("Sink '%s' committed %d items in %v", name, len(batch), duration)
	}

	return err
}

// WithLogging wraps a sink with logging.
//
// Example:
//
//	logger, _ := buffer.NewZapLogger(buffer.LogLevelDebug)
//	wrapped := sink.WithLogging[*Doc](docs, logger, "docs")
func WithLogging[V any](s buffer.Sink[V], logger buffer.Logger, name string) *Logging[V] {
	return &Logging[V]{
		Sink:   s,
		Logger: logger,
		Name:   name,
	}
}
