package synclog

import (
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	syncDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/sync"
)

type (
	Log           = syncDatamodel.Log
	Configuration = syncDatamodel.Configuration
	Type          = syncDatamodel.Type
	Status        = syncDatamodel.Status
)

const maxBackoff = 24 * time.Hour

// Defaults seed the configuration row the first time it is read.
type Defaults struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
}

func DefaultsFromConfig(cfg internal.SyncConfig) Defaults {
	d := Defaults{MaxRetries: cfg.MaxRetries, RetryBaseDelay: cfg.RetryBaseDelay}
	if d.MaxRetries <= 0 {
		d.MaxRetries = 3
	}
	if d.RetryBaseDelay <= 0 {
		d.RetryBaseDelay = 5 * time.Minute
	}
	return d
}

// Settings is an immutable snapshot of the sync switches, taken once per
// job or request.
type Settings struct {
	PayrollSyncEnabled   bool
	ExpenseSyncEnabled   bool
	ScheduledSyncEnabled bool
	MaxRetries           int
	RetryBaseDelay       time.Duration
}

func settingsOf(c *Configuration) Settings {
	return Settings{
		PayrollSyncEnabled:   c.PayrollSyncEnabled,
		ExpenseSyncEnabled:   c.ExpenseSyncEnabled,
		ScheduledSyncEnabled: c.ScheduledSyncEnabled,
		MaxRetries:           c.MaxRetries,
		RetryBaseDelay:       time.Duration(c.RetryBaseDelaySeconds) * time.Second,
	}
}

// Backoff is the wait before retry number retryCount+1: base doubled once per
// attempt already made, capped at a day.
func Backoff(base time.Duration, retryCount int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Retryable reports whether a failed log still has attempts left.
func Retryable(l *Log) bool {
	return l.Status == syncDatamodel.StatusFailed && l.RetryCount < l.MaxRetries
}
