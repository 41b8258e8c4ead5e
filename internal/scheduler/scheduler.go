// Package scheduler runs a refresh job on a fixed interval and on demand.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultInterval is used when New is given a non-positive interval.
const DefaultInterval = 10 * time.Minute

// ErrAlreadyRunning is returned by Start while the loop is active.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Job is the work done on every tick.
type Job func(ctx context.Context) error

// Status describes the scheduler for display.
type Status struct {
	Running  bool
	Interval time.Duration
	Runs     int
	LastRun  time.Time
	LastErr  error
}

// Scheduler runs a Job once when started, then every interval, and whenever
// Trigger is called. Runs never overlap: there is one loop goroutine, and
// ticks that arrive while a run is in progress are dropped.
type Scheduler struct {
	interval time.Duration
	job      Job
	clock    clockwork.Clock
	logger   *zap.Logger
	trigger  chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	runs    int
	lastRun time.Time
	lastErr error
}

// New creates a stopped Scheduler. A nil clock means the real clock and a
// nil logger discards output.
func New(interval time.Duration, job Job, clock clockwork.Clock, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		interval: interval,
		job:      job,
		clock:    clock,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the loop. It returns immediately; the loop stops when ctx
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels the loop and waits for an in-flight run to return. It is safe
// to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

// Trigger requests an immediate run. Requests made while one is already
// pending are coalesced; Trigger never blocks.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:  s.runningLocked(),
		Interval: s.interval,
		Runs:     s.runs,
		LastRun:  s.lastRun,
		LastErr:  s.lastErr,
	}
}

func (s *Scheduler) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.execute(ctx, ticker.Chan(), "start")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.execute(ctx, ticker.Chan(), "tick")
		case <-s.trigger:
			s.execute(ctx, ticker.Chan(), "trigger")
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, ticks <-chan time.Time, reason string) {
	if ctx.Err() != nil {
		return
	}
	started := s.clock.Now()
	err := s.job(ctx)

	// Drop a tick that fired during the run.
	select {
	case <-ticks:
	default:
	}

	s.mu.Lock()
	s.runs++
	s.lastRun = started
	s.lastErr = err
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("scheduled run failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	s.logger.Debug("scheduled run finished", zap.String("reason", reason), zap.Duration("took", s.clock.Since(started)))
}
