// internal/scheduler/scheduler.go
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the pipeline's periodic jobs (the poll tick and the
// window flush) as independent cron entries. The two timers interleave
// arbitrarily; jobs coordinate only through the shared window buffer.
// A panicking job is recovered and logged so one bad tick never stops
// the schedule.
type Scheduler struct {
	cron *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field, plus @every descriptors.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates an empty Scheduler.
func New() *Scheduler {
	logger := slogCronLogger{slog.Default()}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithChain(cron.Recover(logger)),
		),
	}
}

// Every registers fn to run on the given fixed interval. Intervals
// under one second are rejected (the cron runner resolves at one-second
// granularity).
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval < time.Second {
		return fmt.Errorf("interval for %s must be at least 1s, got %s", name, interval)
	}
	if _, err := s.cron.AddFunc("@every "+interval.String(), fn); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	slog.Info("scheduled job", "name", name, "every", interval)
	return nil
}

// Start starts the cron ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron ticker. Jobs already in flight finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// slogCronLogger adapts slog to the cron.Logger interface.
type slogCronLogger struct {
	l *slog.Logger
}

func (c slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
