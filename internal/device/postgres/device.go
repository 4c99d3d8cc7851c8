package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/device"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) GetByID(ctx context.Context, id int64) (*device.Device, error) {
	var d device.Device
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrDeviceNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DeviceRepository) ListActive(ctx context.Context) ([]*device.Device, error) {
	var devices []*device.Device
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *DeviceRepository) SaveSyncState(ctx context.Context, dev *device.Device) error {
	return r.db.WithContext(ctx).
		Model(&device.Device{}).
		Where("id = ?", dev.ID).
		Updates(map[string]interface{}{
			"last_synced_at":   dev.LastSyncedAt,
			"last_sync_status": dev.LastSyncStatus,
			"last_error":       dev.LastError,
		}).Error
}

func (r *DeviceRepository) InsertAttendanceLogs(ctx context.Context, logs []*device.AttendanceLog) (int64, error) {
	if len(logs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "device_user_id"}, {Name: "timestamp"}},
			DoNothing: true,
		}).
		Create(&logs)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
