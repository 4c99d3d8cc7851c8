package threshold

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultThreshold is the single global row used when no override applies.
type DefaultThreshold struct {
	ID         int64           `gorm:"primaryKey" json:"id"`
	MaxAmount  decimal.Decimal `gorm:"column:max_amount;type:numeric(14,2);not null" json:"max_amount"`
	Percentage decimal.Decimal `gorm:"column:percentage;type:numeric(5,2);not null" json:"percentage"`
	Currency   string          `gorm:"column:currency;not null;default:USD" json:"currency"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (DefaultThreshold) TableName() string {
	return "expense_deduction_thresholds"
}

type EmployeeThreshold struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	EmployeeID    int64           `gorm:"column:employee_id;not null;index" json:"employee_id"`
	MaxAmount     decimal.Decimal `gorm:"column:max_amount;type:numeric(14,2);not null" json:"max_amount"`
	Percentage    decimal.Decimal `gorm:"column:percentage;type:numeric(5,2);not null" json:"percentage"`
	EffectiveFrom time.Time       `gorm:"column:effective_from;not null" json:"effective_from"`
	EffectiveTo   *time.Time      `gorm:"column:effective_to" json:"effective_to,omitempty"`
	IsActive      bool            `gorm:"column:is_active" json:"is_active"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (EmployeeThreshold) TableName() string {
	return "employee_deduction_thresholds"
}
