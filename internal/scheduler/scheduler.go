// Package scheduler repeats a task on a fixed interval until its context ends.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Task is one unit of scheduled work. It must return promptly once ctx is done.
type Task func(ctx context.Context)

// Scheduler runs a Task immediately and then every interval. A run that is
// still going when the next one is due causes that one to be skipped.
type Scheduler struct {
	interval time.Duration
	logger   zerolog.Logger
}

// New creates a Scheduler. An interval of 0 runs the task exactly once.
func New(interval time.Duration) (*Scheduler, error) {
	if interval < 0 {
		return nil, fmt.Errorf("interval cannot be negative: %s", interval)
	}
	return &Scheduler{
		interval: interval,
		logger:   log.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Run blocks until ctx is done, or after the single run in one-shot mode.
// It waits for an in-flight run before returning.
func (s *Scheduler) Run(ctx context.Context, task Task) error {
	if s.interval == 0 {
		s.logger.Info().Msg("Running in one-shot mode")
		task(ctx)
		return nil
	}

	s.logger.Info().Dur("interval", s.interval).Msg("Running in periodic mode")
	task(ctx)
	if ctx.Err() != nil {
		return nil
	}

	cronLogger := cronLogAdapter{logger: s.logger}
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	c.Schedule(every(s.interval), cron.FuncJob(func() {
		task(ctx)
		s.logger.Info().Time("next_run", time.Now().Add(s.interval)).Msg("Waiting for next processing cycle")
	}))

	c.Start()
	s.logger.Info().Time("next_run", time.Now().Add(s.interval)).Msg("Waiting for next processing cycle")

	<-ctx.Done()
	s.logger.Info().Msg("Shutting down periodic processing")
	<-c.Stop().Done()
	return nil
}

// every is a constant-delay schedule without cron's one-second floor.
type every time.Duration

func (e every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

// cronLogAdapter routes cron's own logging through zerolog. Cron's info
// messages are per-tick noise and go to debug.
type cronLogAdapter struct {
	logger zerolog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
