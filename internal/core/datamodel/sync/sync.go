package sync

import "time"

type Type string

const (
	TypeExpense       Type = "EXPENSE"
	TypePayrollPeriod Type = "PAYROLL_PERIOD"
	TypeDevice        Type = "DEVICE"
	TypeFullSync      Type = "FULL_SYNC"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeExpense, TypePayrollPeriod, TypeDevice, TypeFullSync:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusSkipped    Status = "SKIPPED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSuccess, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Log is one attempted synchronization with an external system.
type Log struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	SyncType    Type       `gorm:"column:sync_type;not null;index:idx_sync_type_source" json:"sync_type"`
	SourceID    int64      `gorm:"column:source_id;not null;index:idx_sync_type_source" json:"source_id"`
	Status      Status     `gorm:"column:status;not null;default:PENDING;index" json:"status"`
	Message     string     `gorm:"column:message" json:"message"`
	RetryCount  int        `gorm:"column:retry_count;not null" json:"retry_count"`
	MaxRetries  int        `gorm:"column:max_retries;not null" json:"max_retries"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at;index" json:"next_retry_at,omitempty"`
	ExternalID  *string    `gorm:"column:external_id" json:"external_id,omitempty"`
	StartedAt   time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt  *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Log) TableName() string {
	return "sync_logs"
}

// Configuration is the single row of runtime sync switches.
type Configuration struct {
	ID                    int64     `gorm:"primaryKey" json:"id"`
	PayrollSyncEnabled    bool      `gorm:"column:payroll_sync_enabled" json:"payroll_sync_enabled"`
	ExpenseSyncEnabled    bool      `gorm:"column:expense_sync_enabled" json:"expense_sync_enabled"`
	ScheduledSyncEnabled  bool      `gorm:"column:scheduled_sync_enabled" json:"scheduled_sync_enabled"`
	MaxRetries            int       `gorm:"column:max_retries;not null" json:"max_retries"`
	RetryBaseDelaySeconds int       `gorm:"column:retry_base_delay_seconds;not null;default:300" json:"retry_base_delay_seconds"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Configuration) TableName() string {
	return "sync_configurations"
}

type ExpenseSyncStatus struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	ExpenseID    int64      `gorm:"column:expense_id;not null;uniqueIndex" json:"expense_id"`
	ExternalID   *string    `gorm:"column:external_id" json:"external_id,omitempty"`
	Status       Status     `gorm:"column:status;not null;default:PENDING" json:"status"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	LastError    *string    `gorm:"column:last_error" json:"last_error,omitempty"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ExpenseSyncStatus) TableName() string {
	return "expense_sync_statuses"
}

type PayrollSyncStatus struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	PeriodID     int64      `gorm:"column:period_id;not null;uniqueIndex" json:"period_id"`
	ExternalID   *string    `gorm:"column:external_id" json:"external_id,omitempty"`
	Status       Status     `gorm:"column:status;not null;default:PENDING" json:"status"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	LastError    *string    `gorm:"column:last_error" json:"last_error,omitempty"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (PayrollSyncStatus) TableName() string {
	return "payroll_sync_statuses"
}
