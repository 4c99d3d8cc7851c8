package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/frahmantamala/payroll-admin/internal/accounting"
	"github.com/frahmantamala/payroll-admin/internal/core/common/batch"
	"github.com/frahmantamala/payroll-admin/internal/synclock"
	"github.com/frahmantamala/payroll-admin/internal/synclog"
)

const (
	NameScheduledSync = "scheduled-sync"
	NameRetryFailed   = "retry-failed-syncs"
	NameSyncPending   = "sync-pending-items"
	NameCleanupLogs   = "cleanup-sync-logs"
	NameSyncDevices   = "sync-devices"
)

type SettingsSource interface {
	Settings(ctx context.Context) (synclog.Settings, error)
}

type AccountingSync interface {
	FullSync(ctx context.Context, settings synclog.Settings) accounting.Outcome
	SyncPending(ctx context.Context, settings synclog.Settings) accounting.Outcome
	RetryFailed(ctx context.Context, settings synclog.Settings, now time.Time) accounting.Outcome
}

type DeviceSync interface {
	SyncAll(ctx context.Context, settings synclog.Settings, force bool) (*batch.Result, error)
	RetryFailed(ctx context.Context, settings synclog.Settings, now time.Time) (*batch.Result, error)
}

type LogCleaner interface {
	Cleanup(ctx context.Context, days int) (int64, error)
}

// Runner holds the background jobs. Every run takes its own settings
// snapshot, holds a cluster-wide lock for its name, and turns a panic into an
// error.
type Runner struct {
	settings   SettingsSource
	accounting AccountingSync
	devices    DeviceSync
	logs       LogCleaner
	locker     synclock.Locker
	lockTTL    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewRunner(settings SettingsSource, accounting AccountingSync, devices DeviceSync, logs LogCleaner, locker synclock.Locker, lockTTL time.Duration, logger *slog.Logger) *Runner {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &Runner{
		settings:   settings,
		accounting: accounting,
		devices:    devices,
		logs:       logs,
		locker:     locker,
		lockTTL:    lockTTL,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Runner) run(ctx context.Context, name string, job func(ctx context.Context, settings synclog.Settings) (string, error)) (summary string, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", name, rec)
			r.logger.Error("job panicked", "job", name, "panic", rec, "stack", string(debug.Stack()))
		}
		if err != nil {
			r.logger.Error("job failed", "job", name, "error", err, "duration", time.Since(start))
			return
		}
		r.logger.Info("job finished", "job", name, "summary", summary, "duration", time.Since(start))
	}()

	release, ok, err := r.locker.Acquire(ctx, synclock.JobKey(name), r.lockTTL)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("%s is already running", name), nil
	}
	defer release()

	settings, err := r.settings.Settings(ctx)
	if err != nil {
		return "", err
	}
	return job(ctx, settings)
}

// ScheduledSync pushes everything the accounting system is missing.
func (r *Runner) ScheduledSync(ctx context.Context) (string, error) {
	return r.run(ctx, NameScheduledSync, func(ctx context.Context, settings synclog.Settings) (string, error) {
		if !settings.ScheduledSyncEnabled {
			return "scheduled sync is disabled", nil
		}
		o := r.accounting.FullSync(ctx, settings)
		return "full sync: " + o.Message, nil
	})
}

func (r *Runner) RetryFailedSyncs(ctx context.Context) (string, error) {
	return r.run(ctx, NameRetryFailed, func(ctx context.Context, settings synclog.Settings) (string, error) {
		now := r.now()
		o := r.accounting.RetryFailed(ctx, settings, now)
		devices, err := r.devices.RetryFailed(ctx, settings, now)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("accounting: %s; devices: %s", o.Message, describe(devices)), nil
	})
}

// SyncPendingItems pushes items that were never attempted.
func (r *Runner) SyncPendingItems(ctx context.Context) (string, error) {
	return r.run(ctx, NameSyncPending, func(ctx context.Context, settings synclog.Settings) (string, error) {
		if !settings.ScheduledSyncEnabled {
			return "scheduled sync is disabled", nil
		}
		o := r.accounting.SyncPending(ctx, settings)
		return "pending sync: " + o.Message, nil
	})
}

func (r *Runner) CleanupOldSyncLogs(ctx context.Context, days int) (string, error) {
	return r.run(ctx, NameCleanupLogs, func(ctx context.Context, _ synclog.Settings) (string, error) {
		n, err := r.logs.Cleanup(ctx, days)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("deleted %d sync logs older than %d days", n, days), nil
	})
}

func (r *Runner) SyncDevices(ctx context.Context, force bool) (string, error) {
	return r.run(ctx, NameSyncDevices, func(ctx context.Context, settings synclog.Settings) (string, error) {
		result, err := r.devices.SyncAll(ctx, settings, force)
		if err != nil {
			return "", err
		}
		return "devices: " + describe(result), nil
	})
}

func describe(r *batch.Result) string {
	skipped := 0
	for _, item := range r.Items {
		if item.Skipped {
			skipped++
		}
	}
	return fmt.Sprintf("%d processed, %d succeeded (%d skipped), %d failed",
		r.Total(), r.SuccessCount, skipped, r.FailedCount)
}
