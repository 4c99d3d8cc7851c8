package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
)

// Job is one periodic task. Run is never called again before the previous
// call has returned.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (string, error)
}

// Jobs is the standard schedule built from the sync configuration. A zero
// interval disables a job.
func (r *Runner) Jobs(cfg internal.SyncConfig) []Job {
	return []Job{
		{Name: NameScheduledSync, Interval: cfg.ScheduledInterval, Run: r.ScheduledSync},
		{Name: NameRetryFailed, Interval: cfg.RetryInterval, Run: r.RetryFailedSyncs},
		{Name: NameSyncPending, Interval: cfg.PendingInterval, Run: r.SyncPendingItems},
		{Name: NameSyncDevices, Interval: cfg.DeviceInterval, Run: func(ctx context.Context) (string, error) {
			return r.SyncDevices(ctx, false)
		}},
		{Name: NameCleanupLogs, Interval: cfg.CleanupInterval, Run: func(ctx context.Context) (string, error) {
			return r.CleanupOldSyncLogs(ctx, cfg.CleanupDays)
		}},
	}
}

type Scheduler struct {
	jobs   []Job
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		logger: logger,
	}
}

// Start launches one goroutine per enabled job and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.once.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		for _, job := range s.jobs {
			if job.Interval <= 0 {
				s.logger.Info("job disabled", "job", job.Name)
				continue
			}
			s.wg.Add(1)
			go s.loop(job)
		}
		s.logger.Info("scheduler started", "jobs", len(s.jobs))
	})
}

func (s *Scheduler) loop(job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Debug("job scheduled", "job", job.Name, "interval", job.Interval)
	for {
		select {
		case <-ticker.C:
			if _, err := job.Run(s.ctx); err != nil {
				s.logger.Warn("scheduled job returned an error", "job", job.Name, "error", err)
			}
		case <-s.ctx.Done():
			s.logger.Debug("job stopping", "job", job.Name)
			return
		}
	}
}

// Run starts the scheduler and blocks until ctx is cancelled and every job
// has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start(ctx)
	<-s.ctx.Done()
	s.wg.Wait()
	return nil
}

func (s *Scheduler) Shutdown() {
	if s.cancel == nil {
		return
	}
	s.logger.Info("shutting down scheduler")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler shutdown complete")
}
