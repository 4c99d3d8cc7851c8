package device

import (
	"context"
	"time"

	deviceDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/device"
	employeeDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/employee"
	"github.com/frahmantamala/payroll-admin/internal/synclog"
)

type (
	Device        = deviceDatamodel.Device
	AttendanceLog = deviceDatamodel.AttendanceLog
)

// SyncOutcome reports one device pull. Status is SUCCESS, FAILED or SKIPPED.
type SyncOutcome struct {
	DeviceID   int64          `json:"device_id"`
	Status     synclog.Status `json:"status"`
	LogsSynced int            `json:"logs_synced"`
	Message    string         `json:"message"`
	SyncLogID  int64          `json:"sync_log_id,omitempty"`
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Device, error)
	ListActive(ctx context.Context) ([]*Device, error)
	SaveSyncState(ctx context.Context, dev *Device) error
	// InsertAttendanceLogs stores the logs not seen before and returns how
	// many were new.
	InsertAttendanceLogs(ctx context.Context, logs []*AttendanceLog) (int64, error)
}

type EmployeeDirectory interface {
	DeviceUserIndex(ctx context.Context, deviceUserIDs []string) (map[string]int64, error)
	ListActive(ctx context.Context) ([]*employeeDatamodel.Employee, error)
}

type SyncLogger interface {
	Begin(ctx context.Context, syncType synclog.Type, sourceID int64, settings synclog.Settings) (*synclog.Log, error)
	BeginRetry(ctx context.Context, l *synclog.Log) error
	Succeed(ctx context.Context, l *synclog.Log, message string, externalID *string) error
	Fail(ctx context.Context, l *synclog.Log, message string, settings synclog.Settings) error
	Skip(ctx context.Context, syncType synclog.Type, sourceID int64, message string) (*synclog.Log, error)
	DueForRetry(ctx context.Context, now time.Time, limit int, types ...synclog.Type) ([]*synclog.Log, error)
}

type dedupKey struct {
	userID string
	at     int64
}

func recentlySynced(dev *Device, now time.Time, minInterval time.Duration) (time.Duration, bool) {
	if dev.LastSyncedAt == nil {
		return 0, false
	}
	since := now.Sub(*dev.LastSyncedAt)
	return since, since < minInterval
}

func outcome(dev *Device, status synclog.Status, message string) *SyncOutcome {
	return &SyncOutcome{DeviceID: dev.ID, Status: status, Message: message}
}
