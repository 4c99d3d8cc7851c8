package device

import (
	"time"

	"gorm.io/gorm"
)

type Device struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	SerialNumber   string         `gorm:"column:serial_number;uniqueIndex;not null" json:"serial_number"`
	IPAddress      string         `gorm:"column:ip_address;not null" json:"ip_address"`
	Port           int            `gorm:"column:port;not null;default:4370" json:"port"`
	IsActive       bool           `gorm:"column:is_active" json:"is_active"`
	LastSyncedAt   *time.Time     `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	LastSyncStatus string         `gorm:"column:last_sync_status" json:"last_sync_status"`
	LastError      *string        `gorm:"column:last_error" json:"last_error,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Device) TableName() string {
	return "attendance_devices"
}

type AttendanceLog struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	DeviceID     int64     `gorm:"column:device_id;not null;uniqueIndex:idx_attendance_dedup" json:"device_id"`
	DeviceUserID string    `gorm:"column:device_user_id;not null;uniqueIndex:idx_attendance_dedup" json:"device_user_id"`
	EmployeeID   *int64    `gorm:"column:employee_id;index" json:"employee_id,omitempty"`
	Timestamp    time.Time `gorm:"column:timestamp;not null;uniqueIndex:idx_attendance_dedup" json:"timestamp"`
	Punch        int       `gorm:"column:punch" json:"punch"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AttendanceLog) TableName() string {
	return "attendance_logs"
}
