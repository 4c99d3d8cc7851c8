package installment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Plan struct {
	ID                   int64           `gorm:"primaryKey" json:"id"`
	ExpenseID            int64           `gorm:"column:expense_id;not null;uniqueIndex" json:"expense_id"`
	TotalAmount          decimal.Decimal `gorm:"column:total_amount;type:numeric(14,2);not null" json:"total_amount"`
	InstallmentAmount    decimal.Decimal `gorm:"column:installment_amount;type:numeric(14,2);not null" json:"installment_amount"`
	NumberOfInstallments int             `gorm:"column:number_of_installments;not null" json:"number_of_installments"`
	StartDate            time.Time       `gorm:"column:start_date;not null" json:"start_date"`
	EndDate              time.Time       `gorm:"column:end_date;not null" json:"end_date"`
	Installments         []Installment   `gorm:"foreignKey:PlanID" json:"installments,omitempty"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Plan) TableName() string {
	return "expense_installment_plans"
}

type Installment struct {
	ID                int64           `gorm:"primaryKey" json:"id"`
	PlanID            int64           `gorm:"column:plan_id;not null;uniqueIndex:idx_plan_installment" json:"plan_id"`
	InstallmentNumber int             `gorm:"column:installment_number;not null;uniqueIndex:idx_plan_installment" json:"installment_number"`
	ScheduledDate     time.Time       `gorm:"column:scheduled_date;not null" json:"scheduled_date"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	RemainingBalance  decimal.Decimal `gorm:"column:remaining_balance;type:numeric(14,2);not null" json:"remaining_balance"`
	IsProcessed       bool            `gorm:"column:is_processed" json:"is_processed"`
	ProcessedAt       *time.Time      `gorm:"column:processed_at" json:"processed_at,omitempty"`
	PayrollReference  *string         `gorm:"column:payroll_reference" json:"payroll_reference,omitempty"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Installment) TableName() string {
	return "expense_installments"
}
