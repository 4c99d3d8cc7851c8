package employee

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Employee struct {
	ID           int64           `gorm:"primaryKey" json:"id"`
	EmployeeCode string          `gorm:"column:employee_code;uniqueIndex;not null" json:"employee_code"`
	Name         string          `gorm:"column:name;not null" json:"name"`
	Email        string          `gorm:"column:email" json:"email"`
	Department   string          `gorm:"column:department" json:"department"`
	ManagerID    *int64          `gorm:"column:manager_id" json:"manager_id,omitempty"`
	DeviceUserID *string         `gorm:"column:device_user_id;index" json:"device_user_id,omitempty"`
	BaseSalary   decimal.Decimal `gorm:"column:base_salary;type:numeric(14,2);not null;default:0" json:"base_salary"`
	IsActive     bool            `gorm:"column:is_active" json:"is_active"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"column:deleted_at;index" json:"-"`
}

func (Employee) TableName() string {
	return "employees"
}
