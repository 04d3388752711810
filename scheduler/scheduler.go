// Package scheduler drives a buffer.Buffer by calling its Tick method at a
// fixed cadence.
//
// Ticks never overlap: if a flush takes longer than the interval, the next
// tick is skipped and rescheduled rather than run concurrently. An error
// returned by Tick is logged and handed to the error handler, and the
// schedule carries on.
//
// Basic usage:
//
//	b := buffer.New[string, *Doc](config, sink)
//	s := scheduler.New(b, buffer.DefaultTickInterval).WithLogger(logger)
//	if err := s.Start(ctx); err != nil {
//		return err
//	}
//	defer s.Stop()
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/MasterOfBinary/gocommit/buffer"
)

// jobName is the gocron name of the tick job.
const jobName = "buffer-tick"

// Ticker is implemented by buffer.Buffer.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Scheduler calls Tick on a Ticker periodically. Create one with New.
type Scheduler struct {
	target   Ticker
	interval time.Duration
	logger   buffer.Logger
	clock    clockwork.Clock
	onError  func(error)

	ticks    atomic.Uint64
	failures atomic.Uint64

	mu      sync.Mutex
	running bool
	sched   gocron.Scheduler
	cancel  context.CancelFunc
}

// New creates a Scheduler that calls target.Tick every interval. A
// non-positive interval is replaced by buffer.DefaultTickInterval.
func New(target Ticker, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = buffer.DefaultTickInterval
	}

	return &Scheduler{
		target:   target,
		interval: interval,
		logger:   &buffer.NoOpLogger{},
		clock:    clockwork.NewRealClock(),
	}
}

// WithLogger sets the logger used to report tick errors.
//
// Panics if called after Start.
func (s *Scheduler) WithLogger(logger buffer.Logger) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		panic("scheduler: WithLogger cannot be called after Start")
	}

	if logger == nil {
		logger = &buffer.NoOpLogger{}
	}
	s.logger = logger
	return s
}

// WithClock sets the clock that gocron schedules against.
//
// Panics if called after Start.
func (s *Scheduler) WithClock(clock clockwork.Clock) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		panic("scheduler: WithClock cannot be called after Start")
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s.clock = clock
	return s
}

// WithErrorHandler sets a function that receives every error returned by
// Tick. It is called from the scheduler goroutine, after the error has been
// logged.
//
// Panics if called after Start.
func (s *Scheduler) WithErrorHandler(fn func(error)) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		panic("scheduler: WithErrorHandler cannot be called after Start")
	}

	s.onError = fn
	return s
}

// Start begins calling Tick in the background. Tick receives a context that
// carries the values of ctx but not its cancellation, so a flush that is
// running when ctx is canceled still reaches the sink with a live context.
// Canceling ctx does not stop the schedule, Stop does.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already started")
	}
	if s.target == nil {
		return errors.New("scheduler: target cannot be nil")
	}

	sched, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return err
	}

	// Stop cancels tickCtx after the last tick has returned.
	tickCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() error {
			return s.tick(tickCtx)
		}),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithError(s.handleError),
		),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return err
	}

	sched.Start()

	s.sched = sched
	s.cancel = cancel
	s.running = true
	s.logger.Info("Scheduler started, ticking every %v", s.interval)
	return nil
}

// Stop stops the schedule and waits for a running tick to return. It does
// not flush the target. Calling Stop on a stopped Scheduler does nothing.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.sched.Shutdown()
	s.cancel()
	s.running = false
	s.logger.Info("Scheduler stopped after %d ticks (%d errors)", s.ticks.Load(), s.failures.Load())
	return err
}

// Ticks returns the number of completed Tick calls.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Errors returns the number of Tick calls that returned an error.
func (s *Scheduler) Errors() uint64 {
	return s.failures.Load()
}

func (s *Scheduler) tick(ctx context.Context) error {
	err := s.target.Tick(ctx)
	s.ticks.Add(1)
	return err
}

// handleError is the gocron listener for failed ticks.
func (s *Scheduler) handleError(jobID uuid.UUID, name string, err error) {
	s.failures.Add(1)
	s.logger.Error("Job %s (%s) tick failed: %v", name, jobID, err)

	if s.onError != nil {
		s.onError(err)
	}
}
