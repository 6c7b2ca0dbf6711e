// Package scheduler runs background jobs on fixed schedules.
//
// The scheduler owns one goroutine. Due jobs run one at a time under a
// per-run timeout; errors and panics are logged and the loop continues.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRunTimeout bounds a single job run.
const DefaultRunTimeout = 10 * time.Minute

// Schedule returns the first run time strictly after now.
type Schedule func(now time.Time) time.Time

// Every runs at a fixed interval.
func Every(interval time.Duration) Schedule {
	return func(now time.Time) time.Time {
		return now.Add(interval)
	}
}

// WeeklyAt runs every week on day at hour:00 UTC.
func WeeklyAt(day time.Weekday, hour int) Schedule {
	return func(now time.Time) time.Time {
		now = now.UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
		next = next.AddDate(0, 0, (int(day)-int(next.Weekday())+7)%7)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	}
}

// Job is a named unit of background work.
type Job struct {
	Name     string
	Schedule Schedule
	Run      func(ctx context.Context) error
}

// Scheduler runs registered jobs until stopped.
//
// All public methods are safe for concurrent use.
type Scheduler struct {
	jobs       []Job
	runTimeout time.Duration
	now        func() time.Time
	logger     *zap.Logger

	// mu protects running, stopCh and done.
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRunTimeout sets the per-run timeout.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

// WithClock overrides the time source used to compute run times.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithJob registers a job.
func WithJob(job Job) Option {
	return func(s *Scheduler) {
		s.jobs = append(s.jobs, job)
	}
}

// New creates a scheduler. It does not start automatically.
func New(logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	s := &Scheduler{
		runTimeout: DefaultRunTimeout,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, j := range s.jobs {
		if j.Name == "" || j.Schedule == nil || j.Run == nil {
			return nil, fmt.Errorf("job %q: name, schedule and run are required", j.Name)
		}
	}
	return s, nil
}

// Start begins the background loop. Starting a running scheduler is an
// error.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name
	}
	s.logger.Info("scheduler started", zap.Strings("jobs", names))

	go s.loop(s.stopCh, s.done)
	return nil
}

// Stop signals the loop and waits for it to exit, including any job in
// flight. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("scheduler stopped")
	return nil
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if len(s.jobs) == 0 {
		<-stopCh
		return
	}

	next := make([]time.Time, len(s.jobs))
	now := s.now()
	for i, j := range s.jobs {
		next[i] = j.Schedule(now)
		s.logger.Debug("job scheduled", zap.String("job", j.Name), zap.Time("next_run", next[i]))
	}

	for {
		due := 0
		for i := range next {
			if next[i].Before(next[due]) {
				due = i
			}
		}

		timer := time.NewTimer(max(0, next[due].Sub(s.now())))
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		s.runSafe(stopCh, s.jobs[due])
		next[due] = s.jobs[due].Schedule(s.now())
	}
}

// runSafe runs job with the run timeout, canceling it early on stop.
func (s *Scheduler) runSafe(stopCh <-chan struct{}, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	result := "success"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			s.logger.Error("job panicked, continuing scheduler",
				zap.String("job", job.Name),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
		runsTotal.WithLabelValues(job.Name, result).Inc()
	}()

	if err := job.Run(ctx); err != nil {
		result = "error"
		s.logger.Error("job failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	s.logger.Info("job completed", zap.String("job", job.Name), zap.Duration("duration", time.Since(start)))
}
