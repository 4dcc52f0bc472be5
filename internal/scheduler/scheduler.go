// Package scheduler triggers the unattended daily snapshot.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kebairia/snapback/internal/logger"
)

const day = 24 * time.Hour

// ErrInvalidTimeOfDay is returned for missing or out of range times of day.
var ErrInvalidTimeOfDay = errors.New("time of day must be within [00:00:00, 24:00:00)")

// Job is the work run at every firing.
type Job func(ctx context.Context) error

// Scheduler owns one cron engine holding at most one daily entry.
type Scheduler struct {
	job     Job
	timeout time.Duration
	log     logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	running bool
}

type Option func(*Scheduler)

// WithTimeout bounds every firing of the job. Zero means unbounded.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// New returns a disabled scheduler for job. Call Configure to enable it.
func New(job Job, opts ...Option) *Scheduler {
	s := &Scheduler{job: job, log: logger.Global()}
	for _, opt := range opts {
		opt(s)
	}
	cl := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// Configure replaces the current entry. When enabled, the job fires at the
// next occurrence of timeOfDay (an offset from local midnight) and daily
// after that. Disabling drops the entry.
func (s *Scheduler) Configure(enabled bool, timeOfDay *time.Duration) error {
	var spec string
	if enabled {
		if timeOfDay == nil || *timeOfDay < 0 || *timeOfDay >= day {
			return ErrInvalidTimeOfDay
		}
		spec = cronSpec(*timeOfDay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	if !enabled {
		s.log.Info("backup schedule disabled")
		return nil
	}

	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return fmt.Errorf("schedule backup %q: %w", spec, err)
	}
	s.entry = id
	if !s.running {
		s.cron.Start()
		s.running = true
	}
	s.log.Info("backup scheduled", "time_of_day", *timeOfDay, "next_run", s.cron.Entry(id).Next)
	return nil
}

// NextRun reports the next firing, if an entry is active.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == 0 {
		return time.Time{}, false
	}
	return s.cron.Entry(s.entry).Next, true
}

// Stop halts the engine and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.cron.Stop()
	s.mu.Unlock()
	<-done.Done()
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.log.Error("scheduled backup failed", "error", err.Error(), "duration", time.Since(start))
		return
	}
	s.log.Info("scheduled backup finished", "duration", time.Since(start))
}

// NextOccurrence returns the next instant at timeOfDay after now: today if
// still in the future, otherwise tomorrow.
func NextOccurrence(now time.Time, timeOfDay time.Duration) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(timeOfDay)
	if !next.After(now) {
		next = time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Add(timeOfDay)
	}
	return next
}

func cronSpec(timeOfDay time.Duration) string {
	secs := int(timeOfDay / time.Second)
	return fmt.Sprintf("%d %d %d * * *", secs%60, (secs/60)%60, secs/3600)
}

// cronLogger routes cron's own messages into our logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
