package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/core/common/batch"
	syncDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/sync"
	"github.com/frahmantamala/payroll-admin/internal/core/events"
	"github.com/frahmantamala/payroll-admin/internal/synclock"
	"github.com/frahmantamala/payroll-admin/internal/synclog"
)

type Config struct {
	MinInterval time.Duration
	LockTTL     time.Duration
	BatchSize   int
}

func ConfigFrom(device internal.DeviceConfig, sync internal.SyncConfig) Config {
	return Config{
		MinInterval: device.MinInterval(),
		LockTTL:     device.LockTTL,
		BatchSize:   sync.BatchSize,
	}
}

// Service pulls attendance punches from the terminals and pushes the
// employee roster back to them. A device is never pulled by two workers at
// once and never more often than the minimum interval unless forced.
type Service struct {
	repo      Repository
	client    Client
	employees EmployeeDirectory
	logs      SyncLogger
	locker    synclock.Locker
	publisher events.Publisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, client Client, employees EmployeeDirectory, logs SyncLogger, locker synclock.Locker, publisher events.Publisher, cfg Config, logger *slog.Logger) *Service {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 15 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Service{
		repo:      repo,
		client:    client,
		employees: employees,
		logs:      logs,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) TestConnection(ctx context.Context, deviceID int64) (bool, string, error) {
	dev, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return false, "", err
	}
	ok, msg := s.client.TestConnection(ctx, dev)
	s.logger.Info("device connection tested", "device_id", dev.ID, "ok", ok, "message", msg)
	return ok, msg, nil
}

// SyncDevice pulls the punches recorded since the last successful sync.
func (s *Service) SyncDevice(ctx context.Context, settings synclog.Settings, deviceID int64, force bool) (*SyncOutcome, error) {
	dev, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if !dev.IsActive {
		return s.skip(ctx, dev, "device is inactive")
	}
	if since, recent := recentlySynced(dev, s.now(), s.cfg.MinInterval); recent && !force {
		msg := fmt.Sprintf("last synced %s ago, minimum interval is %s",
			since.Truncate(time.Second), s.cfg.MinInterval)
		return s.skip(ctx, dev, msg)
	}

	release, ok, err := s.locker.Acquire(ctx, synclock.DeviceKey(dev.ID), s.cfg.LockTTL)
	if err != nil {
		return nil, internal.NewInternalError("failed to acquire device lock", err)
	}
	if !ok {
		return s.skip(ctx, dev, "device sync already in progress")
	}
	defer release()

	l, err := s.logs.Begin(ctx, syncDatamodel.TypeDevice, dev.ID, settings)
	if err != nil {
		return nil, err
	}
	return s.pull(ctx, settings, l, dev)
}

func (s *Service) skip(ctx context.Context, dev *Device, message string) (*SyncOutcome, error) {
	l, err := s.logs.Skip(ctx, syncDatamodel.TypeDevice, dev.ID, message)
	if err != nil {
		return nil, err
	}
	s.logger.Info("device sync skipped", "device_id", dev.ID, "reason", message)
	o := outcome(dev, syncDatamodel.StatusSkipped, message)
	o.SyncLogID = l.ID
	return o, nil
}

func (s *Service) pull(ctx context.Context, settings synclog.Settings, l *synclog.Log, dev *Device) (_ *SyncOutcome, err error) {
	closed := false
	defer func() {
		if err != nil && !closed {
			if failErr := s.logs.Fail(ctx, l, err.Error(), settings); failErr != nil {
				s.logger.Error("failed to record device sync failure", "error", failErr, "device_id", dev.ID)
			}
		}
	}()

	res := s.client.SyncDeviceData(ctx, dev, dev.LastSyncedAt)
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "device returned no data"
		}
		if err := s.logs.Fail(ctx, l, msg, settings); err != nil {
			return nil, err
		}
		closed = true
		if err := s.saveFailure(ctx, dev, msg); err != nil {
			return nil, err
		}
		o := outcome(dev, syncDatamodel.StatusFailed, msg)
		o.SyncLogID = l.ID
		return o, nil
	}

	inserted, err := s.store(ctx, dev, res.Logs)
	if err != nil {
		if stateErr := s.saveFailure(ctx, dev, err.Error()); stateErr != nil {
			s.logger.Error("failed to record device sync failure", "error", stateErr, "device_id", dev.ID)
		}
		return nil, internal.NewInternalError("failed to store attendance logs", err)
	}

	syncTime := res.SyncTime
	if syncTime.IsZero() {
		syncTime = s.now()
	}
	previous := dev.LastSyncedAt
	dev.LastSyncedAt = &syncTime
	dev.LastSyncStatus = string(syncDatamodel.StatusSuccess)
	dev.LastError = nil
	if err := s.repo.SaveSyncState(ctx, dev); err != nil {
		dev.LastSyncedAt = previous
		return nil, internal.NewInternalError("failed to save device sync state", err)
	}

	msg := fmt.Sprintf("stored %d new attendance logs of %d received", inserted, len(res.Logs))
	if err := s.logs.Succeed(ctx, l, msg, nil); err != nil {
		return nil, err
	}
	closed = true

	if s.publisher != nil {
		ev := events.NewDeviceSyncedEvent(dev.ID, int(inserted))
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Error("failed to publish event", "error", err, "event_type", ev.EventType())
		}
	}

	s.logger.Info("device synced",
		"device_id", dev.ID,
		"received", len(res.Logs),
		"stored", inserted,
		"sync_log_id", l.ID)

	o := outcome(dev, syncDatamodel.StatusSuccess, msg)
	o.LogsSynced = int(inserted)
	o.SyncLogID = l.ID
	return o, nil
}

// saveFailure records the error on the device and keeps LastSyncedAt as it
// was.
func (s *Service) saveFailure(ctx context.Context, dev *Device, message string) error {
	dev.LastSyncStatus = string(syncDatamodel.StatusFailed)
	dev.LastError = &message
	if err := s.repo.SaveSyncState(ctx, dev); err != nil {
		return internal.NewInternalError("failed to save device sync state", err)
	}
	return nil
}

// store maps device users to employees and inserts the punches, dropping
// repeats of the same user and timestamp.
func (s *Service) store(ctx context.Context, dev *Device, raw []RawLog) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	userIDs := make([]string, 0, len(raw))
	seenUser := make(map[string]bool, len(raw))
	for _, r := range raw {
		if r.DeviceUserID != "" && !seenUser[r.DeviceUserID] {
			seenUser[r.DeviceUserID] = true
			userIDs = append(userIDs, r.DeviceUserID)
		}
	}
	index, err := s.employees.DeviceUserIndex(ctx, userIDs)
	if err != nil {
		return 0, err
	}

	rows := make([]*AttendanceLog, 0, len(raw))
	seen := make(map[dedupKey]bool, len(raw))
	for _, r := range raw {
		if r.DeviceUserID == "" || r.Timestamp.IsZero() {
			continue
		}
		ts := r.Timestamp.UTC()
		key := dedupKey{userID: r.DeviceUserID, at: ts.UnixNano()}
		if seen[key] {
			continue
		}
		seen[key] = true

		row := &AttendanceLog{
			DeviceID:     dev.ID,
			DeviceUserID: r.DeviceUserID,
			Timestamp:    ts,
			Punch:        r.Punch,
		}
		if employeeID, ok := index[r.DeviceUserID]; ok {
			row.EmployeeID = &employeeID
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return s.repo.InsertAttendanceLogs(ctx, rows)
}

// SyncAll pulls every active device in turn.
func (s *Service) SyncAll(ctx context.Context, settings synclog.Settings, force bool) (*batch.Result, error) {
	devices, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list devices", err)
	}

	result := batch.New(len(devices))
	for _, dev := range devices {
		if err := ctx.Err(); err != nil {
			result.Fail(dev.ID, err)
			continue
		}
		o, err := s.SyncDevice(ctx, settings, dev.ID, force)
		record(result, dev.ID, o, err)
	}

	s.logger.Info("device sync finished",
		"devices", len(devices),
		"success_count", result.SuccessCount,
		"failed_count", result.FailedCount)
	return result, nil
}

// RetryFailed re-runs failed device pulls that are due. A device that is
// busy keeps its log untouched for the next sweep.
func (s *Service) RetryFailed(ctx context.Context, settings synclog.Settings, now time.Time) (*batch.Result, error) {
	due, err := s.logs.DueForRetry(ctx, now, s.cfg.BatchSize, syncDatamodel.TypeDevice)
	if err != nil {
		return nil, err
	}

	result := batch.New(len(due))
	for _, l := range due {
		o, err := s.retry(ctx, settings, l)
		record(result, l.ID, o, err)
	}
	return result, nil
}

func (s *Service) retry(ctx context.Context, settings synclog.Settings, l *synclog.Log) (*SyncOutcome, error) {
	release, ok, err := s.locker.Acquire(ctx, synclock.DeviceKey(l.SourceID), s.cfg.LockTTL)
	if err != nil {
		return nil, internal.NewInternalError("failed to acquire device lock", err)
	}
	if !ok {
		return &SyncOutcome{DeviceID: l.SourceID, Status: syncDatamodel.StatusSkipped, Message: "device sync already in progress"}, nil
	}
	defer release()

	if err := s.logs.BeginRetry(ctx, l); err != nil {
		return nil, err
	}
	dev, err := s.repo.GetByID(ctx, l.SourceID)
	if err != nil {
		if failErr := s.logs.Fail(ctx, l, err.Error(), settings); failErr != nil {
			return nil, failErr
		}
		return nil, err
	}
	return s.pull(ctx, settings, l, dev)
}

func record(result *batch.Result, id int64, o *SyncOutcome, err error) {
	switch {
	case err != nil:
		result.Fail(id, err)
	case o.Status == syncDatamodel.StatusSkipped:
		result.Skip(id, o.Message)
	case o.Status == syncDatamodel.StatusSuccess:
		result.Succeed(id, o.Message)
	default:
		result.Fail(id, errors.New(o.Message))
	}
}

// PushEmployees enrolls every active employee that has a device user id.
func (s *Service) PushEmployees(ctx context.Context, deviceID int64) (*EmployeeSyncResult, error) {
	dev, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	employees, err := s.employees.ListActive(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list employees", err)
	}

	users := make([]User, 0, len(employees))
	for _, e := range employees {
		if e.DeviceUserID == nil || *e.DeviceUserID == "" {
			continue
		}
		users = append(users, User{UserID: *e.DeviceUserID, Name: e.Name, EmployeeID: e.ID})
	}

	res := s.client.SyncEmployeesToDevice(ctx, dev, users)
	if !res.Success {
		s.logger.Warn("employee push failed", "device_id", dev.ID, "error", res.Error)
	} else {
		s.logger.Info("employees pushed to device",
			"device_id", dev.ID,
			"synced", res.EmployeesSynced,
			"total", res.TotalEmployees)
	}
	return &res, nil
}
