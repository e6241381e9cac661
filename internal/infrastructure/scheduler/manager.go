// Package scheduler provides unified scheduler management using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// BatchJob defines the interface for a scheduled batch processing job.
// Each Execute call processes a batch and returns the number of items processed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// Locker keeps a job on one instance at a time. ran=false means another
// instance holds the lock and the tick is skipped.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) (ran bool, err error)
}

// JobSpec describes one interval job.
type JobSpec struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Job      BatchJob
}

// SchedulerManager manages all billing sweeps using gocron v2.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	locker    Locker
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a new SchedulerManager. A nil locker runs
// every tick locally.
func NewSchedulerManager(locker Locker, log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		locker:    locker,
		logger:    log,
	}, nil
}

// Register adds an interval job. Ticks never overlap on one instance and
// the distributed lock keeps them off other instances.
func (m *SchedulerManager) Register(spec JobSpec) error {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = spec.Interval
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(spec.Interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			m.run(ctx, spec.Name, timeout, spec.Job)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("billing", spec.Name),
		gocron.WithName(spec.Name),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered billing job", "name", spec.Name, "interval", spec.Interval)
	return nil
}

// RunOnce executes the job the way a tick would.
func (m *SchedulerManager) RunOnce(ctx context.Context, spec JobSpec) {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = spec.Interval
	}
	m.run(ctx, spec.Name, timeout, spec.Job)
}

func (m *SchedulerManager) run(ctx context.Context, name string, ttl time.Duration, job BatchJob) {
	startTime := biztime.NowUTC()
	var count int

	exec := func(ctx context.Context) error {
		var err error
		count, err = job.Execute(ctx)
		return err
	}

	var (
		ran = true
		err error
	)
	if m.locker != nil {
		ran, err = m.locker.WithLock(ctx, "job:"+name, ttl, exec)
	} else {
		err = exec(ctx)
	}

	switch {
	case err != nil:
		m.logger.Errorw("billing job failed",
			"name", name,
			"error", err,
			"duration", time.Since(startTime),
		)
	case !ran:
		m.logger.Debugw("billing job skipped, lock held elsewhere", "name", name)
	case count > 0:
		m.logger.Infow("billing job processed items",
			"name", name,
			"count", count,
			"duration", time.Since(startTime),
		)
	}
}

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
