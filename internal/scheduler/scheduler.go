// Package scheduler drives periodic refreshes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "inkuinfo/internal/log"
)

// Refresher is the job the scheduler runs. Errors are already logged by the
// job; the schedule keeps going regardless.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler runs a Refresher once at start and then on a fixed interval.
// Ticks are not serialized: a slow refresh may overlap the next one.
type Scheduler struct {
	cron     *cron.Cron
	job      Refresher
	interval time.Duration
	initial  sync.WaitGroup
}

// New creates a Scheduler. cron's @every schedules have one second
// resolution, so intervals are rounded down to whole seconds.
func New(job Refresher, interval time.Duration) *Scheduler {
	logger := appLog.CronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	return &Scheduler{cron: c, job: job, interval: interval}
}

// Start runs the job immediately, schedules it every interval and blocks
// until ctx is cancelled. It then stops the schedule and waits for running
// jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval < time.Second {
		return errors.New("scheduler: interval must be at least 1s")
	}

	run := func() {
		if err := s.job.Refresh(ctx); err != nil {
			appLog.Debug("scheduled refresh returned error", "err", err.Error())
		}
	}

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, run); err != nil {
		return fmt.Errorf("scheduler: add refresh job: %w", err)
	}

	initial := cron.NewChain(cron.Recover(appLog.CronLogger{})).Then(cron.FuncJob(run))
	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		initial.Run()
	}()

	s.cron.Start()
	appLog.Info("scheduler started", "interval", s.interval.String())

	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop stops the schedule and waits for running refreshes to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.initial.Wait()
	appLog.Info("scheduler stopped")
}
