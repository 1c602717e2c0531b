// Package scheduler re-runs the retrieval cycle on a fixed hourly interval
// and keeps a countdown to the next run.
package scheduler

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/johnrirwin/ainewsdesk/internal/aggregator"
	"github.com/johnrirwin/ainewsdesk/internal/logging"
	"github.com/johnrirwin/ainewsdesk/internal/models"
)

// State is the scheduler's externally visible phase.
type State string

const (
	// StateIdle means no refresh is scheduled.
	StateIdle State = "idle"
	// StateArmed means the interval was just set and the immediate cycle is running.
	StateArmed State = "armed"
	// StatePending means the scheduler is waiting for the next fire time.
	StatePending State = "pending"
)

// Runner performs one retrieval cycle over the current keyword set.
type Runner interface {
	Refresh(ctx context.Context) error
	LastUpdated() time.Time
}

// CredentialSource reports the current API key.
type CredentialSource interface {
	Credential() string
}

// Options tune the time base. The zero value means one hour per interval unit
// and a one-second countdown.
type Options struct {
	Unit      time.Duration
	Countdown time.Duration
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State            State      `json:"state"`
	IntervalHours    int        `json:"intervalHours"`
	NextRefresh      *time.Time `json:"nextRefresh,omitempty"`
	SecondsRemaining *int64     `json:"secondsRemaining,omitempty"`
}

// handle owns one timer goroutine. dispose stops it and waits for it to exit;
// calling dispose more than once is safe.
type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func start(parent context.Context, run func(ctx context.Context)) *handle {
	ctx, cancel := context.WithCancel(parent)
	h := &handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		run(ctx)
	}()
	return h
}

func (h *handle) dispose() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}

type Scheduler struct {
	runner    Runner
	creds     CredentialSource
	logger    *logging.Logger
	unit      time.Duration
	countdown time.Duration
	now       func() time.Time

	mu        sync.Mutex
	hours     int
	refresh   *handle
	ticker    *handle
	stopped   bool
	nextFire  atomic.Int64 // unix nanos, 0 when unknown
	remaining atomic.Int64 // seconds, -1 when no countdown

	cycles sync.WaitGroup
}

func New(runner Runner, creds CredentialSource, logger *logging.Logger, opts Options) *Scheduler {
	if opts.Unit <= 0 {
		opts.Unit = time.Hour
	}
	if opts.Countdown <= 0 {
		opts.Countdown = time.Second
	}
	s := &Scheduler{
		runner:    runner,
		creds:     creds,
		logger:    logger,
		unit:      opts.Unit,
		countdown: opts.Countdown,
		now:       time.Now,
	}
	s.remaining.Store(-1)
	return s
}

// ErrStopped is returned by SetInterval after Stop.
var ErrStopped = errors.New("scheduler stopped")

// ErrNegativeInterval is returned for intervals below zero.
var ErrNegativeInterval = errors.New("refresh interval must not be negative")

// SetInterval disposes any running timers and, when hours is non-zero and a
// credential is configured, runs one cycle immediately and then every hours
// hours. Zero disarms.
func (s *Scheduler) SetInterval(hours int) error {
	if hours < 0 {
		return ErrNegativeInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	s.hours = hours
	s.rearmLocked()
	return nil
}

// CredentialChanged re-evaluates the schedule after the API key was set or
// cleared. A configured interval with a new key fires immediately.
func (s *Scheduler) CredentialChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.rearmLocked()
}

// Interval returns the configured interval in hours.
func (s *Scheduler) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hours
}

func (s *Scheduler) rearmLocked() {
	s.refresh.dispose()
	s.ticker.dispose()
	s.refresh, s.ticker = nil, nil
	s.nextFire.Store(0)
	s.remaining.Store(-1)

	if s.hours == 0 {
		s.logger.Debug("Auto-refresh disabled")
		return
	}

	interval := time.Duration(s.hours) * s.unit
	s.ticker = start(context.Background(), func(ctx context.Context) {
		s.runCountdown(ctx, interval)
	})

	if s.creds.Credential() == "" {
		s.logger.Info("Auto-refresh interval set but no API key configured", logging.WithField("hours", s.hours))
		return
	}

	s.refresh = start(context.Background(), func(ctx context.Context) {
		s.runRefresh(ctx, interval)
	})
	s.logger.Info("Auto-refresh armed", logging.WithField("hours", s.hours))
}

func (s *Scheduler) runRefresh(ctx context.Context, interval time.Duration) {
	s.fire()

	t := time.NewTicker(interval)
	defer t.Stop()
	s.nextFire.Store(s.now().Add(interval).UnixNano())

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.nextFire.Store(s.now().Add(interval).UnixNano())
			s.fire()
		}
	}
}

// fire starts a cycle without waiting for it. The cycle is not cancelled
// when the schedule changes; Stop waits for it.
func (s *Scheduler) fire() {
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()

		err := s.runner.Refresh(context.Background())
		var ce *models.CycleError
		switch {
		case err == nil:
		case errors.Is(err, aggregator.ErrCycleInFlight):
			s.logger.Debug("Scheduled refresh skipped, a cycle is in flight")
		case errors.As(err, &ce):
			s.logger.Warn("Scheduled refresh finished with failures", logging.WithField("keywords", ce.Keywords()))
		default:
			s.logger.Error("Scheduled refresh failed", logging.WithField("error", err.Error()))
		}
	}()
}

func (s *Scheduler) runCountdown(ctx context.Context, interval time.Duration) {
	s.updateRemaining(interval)

	t := time.NewTicker(s.countdown)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.updateRemaining(interval)
		}
	}
}

func (s *Scheduler) updateRemaining(interval time.Duration) {
	last := s.runner.LastUpdated()
	if last.IsZero() {
		s.remaining.Store(-1)
		return
	}
	s.remaining.Store(Remaining(interval, last, s.now()))
}

// Remaining is interval minus the time elapsed since last, in whole seconds
// rounded up and clamped at zero.
func Remaining(interval time.Duration, last, now time.Time) int64 {
	left := interval - now.Sub(last)
	if left <= 0 {
		return 0
	}
	return int64(math.Ceil(left.Seconds()))
}

// Status reports the current state, the next fire time and the countdown.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	hours := s.hours
	refreshing := s.refresh != nil
	s.mu.Unlock()

	st := Status{State: StateIdle, IntervalHours: hours}
	if refreshing {
		st.State = StateArmed
		if next := s.nextFire.Load(); next != 0 {
			t := time.Unix(0, next)
			st.State = StatePending
			st.NextRefresh = &t
		}
	}
	if r := s.remaining.Load(); r >= 0 {
		st.SecondsRemaining = &r
	}
	return st
}

// Stop disposes both timers and waits for any cycle they started. No cycle
// fires after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.refresh.dispose()
	s.ticker.dispose()
	s.refresh, s.ticker = nil, nil
	s.mu.Unlock()

	s.cycles.Wait()
	s.logger.Debug("Scheduler stopped")
}
