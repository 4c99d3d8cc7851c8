package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
)

func (s PeriodStatus) IsValid() bool {
	return s == PeriodStatusOpen || s == PeriodStatusClosed
}

type Period struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"column:name;not null" json:"name"`
	StartDate time.Time    `gorm:"column:start_date;not null" json:"start_date"`
	EndDate   time.Time    `gorm:"column:end_date;not null" json:"end_date"`
	Status    PeriodStatus `gorm:"column:status;not null;default:OPEN" json:"status"`
	CreatedAt time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Period) TableName() string {
	return "payroll_periods"
}

type Operation string

const (
	OperationAdd    Operation = "ADD"
	OperationDeduct Operation = "DEDUCT"
)

func (o Operation) IsValid() bool {
	return o == OperationAdd || o == OperationDeduct
}

// Integration is the immutable audit of one payroll commit for one expense.
type Integration struct {
	ID                int64           `gorm:"primaryKey" json:"id"`
	ExpenseID         int64           `gorm:"column:expense_id;not null;uniqueIndex:idx_expense_payroll_ref" json:"expense_id"`
	EmployeeID        int64           `gorm:"column:employee_id;not null;index" json:"employee_id"`
	PayrollReference  string          `gorm:"column:payroll_reference;not null;uniqueIndex:idx_expense_payroll_ref" json:"payroll_reference"`
	PeriodStart       time.Time       `gorm:"column:period_start;not null" json:"period_start"`
	PeriodEnd         time.Time       `gorm:"column:period_end;not null" json:"period_end"`
	Operation         Operation       `gorm:"column:operation;not null" json:"operation"`
	ProcessedAmount   decimal.Decimal `gorm:"column:processed_amount;type:numeric(14,2);not null" json:"processed_amount"`
	RemainingAmount   decimal.Decimal `gorm:"column:remaining_amount;type:numeric(14,2);not null" json:"remaining_amount"`
	InstallmentNumber *int            `gorm:"column:installment_number" json:"installment_number,omitempty"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Integration) TableName() string {
	return "payroll_expense_integrations"
}
