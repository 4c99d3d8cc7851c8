package expense

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusDisbursed   Status = "DISBURSED"
	StatusCancelled   Status = "CANCELLED"
)

var AllStatuses = []Status{
	StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved,
	StatusRejected, StatusDisbursed, StatusCancelled,
}

func (s Status) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
)

func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusUnpaid || s == PaymentStatusPaid
}

type PayrollEffect string

const (
	PayrollEffectNone                 PayrollEffect = "NO_EFFECT"
	PayrollEffectAddToSalary          PayrollEffect = "ADD_TO_SALARY"
	PayrollEffectDeductFromSalary     PayrollEffect = "DEDUCT_FROM_SALARY"
	PayrollEffectDeductInInstallments PayrollEffect = "DEDUCT_IN_INSTALLMENTS"
)

func (e PayrollEffect) IsValid() bool {
	switch e {
	case PayrollEffectNone, PayrollEffectAddToSalary, PayrollEffectDeductFromSalary, PayrollEffectDeductInInstallments:
		return true
	}
	return false
}

// IsDeduction reports whether the expense reduces the employee's pay.
func (e PayrollEffect) IsDeduction() bool {
	return e == PayrollEffectDeductFromSalary || e == PayrollEffectDeductInInstallments
}

type PayrollStatus string

const (
	PayrollStatusNotApplicable      PayrollStatus = "NOT_APPLICABLE"
	PayrollStatusPending            PayrollStatus = "PENDING_PAYROLL_PROCESSING"
	PayrollStatusPartiallyProcessed PayrollStatus = "PARTIALLY_PROCESSED"
	PayrollStatusAdded              PayrollStatus = "ADDED"
	PayrollStatusDeducted           PayrollStatus = "DEDUCTED"
)

func (s PayrollStatus) IsValid() bool {
	switch s {
	case PayrollStatusNotApplicable, PayrollStatusPending, PayrollStatusPartiallyProcessed,
		PayrollStatusAdded, PayrollStatusDeducted:
		return true
	}
	return false
}

type Expense struct {
	ID                int64            `gorm:"primaryKey" json:"id"`
	Reference         string           `gorm:"column:reference;uniqueIndex;not null" json:"reference"`
	EmployeeID        int64            `gorm:"column:employee_id;not null;index" json:"employee_id"`
	CreatedBy         int64            `gorm:"column:created_by;not null" json:"created_by"`
	Category          string           `gorm:"column:category" json:"category"`
	Description       string           `gorm:"column:description;not null" json:"description"`
	TotalAmount       decimal.Decimal  `gorm:"column:total_amount;type:numeric(14,2);not null" json:"total_amount"`
	Currency          string           `gorm:"column:currency;not null;default:USD" json:"currency"`
	Status            Status           `gorm:"column:status;not null;default:DRAFT;index" json:"status"`
	PaymentStatus     PaymentStatus    `gorm:"column:payment_status;not null;default:UNPAID" json:"payment_status"`
	PayrollEffect     PayrollEffect    `gorm:"column:payroll_effect;not null;default:NO_EFFECT" json:"payroll_effect"`
	AddToPayroll      bool             `gorm:"column:add_to_payroll" json:"add_to_payroll"`
	InstallmentAmount *decimal.Decimal `gorm:"column:installment_amount;type:numeric(14,2)" json:"installment_amount,omitempty"`
	PayrollStatus     PayrollStatus    `gorm:"column:payroll_status;not null;default:NOT_APPLICABLE" json:"payroll_status"`
	RemainingAmount   decimal.Decimal  `gorm:"column:remaining_amount;type:numeric(14,2);not null" json:"remaining_amount"`
	ExpenseDate       time.Time        `gorm:"column:expense_date" json:"expense_date"`
	RejectionReason   *string          `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	ApprovedAt        *time.Time       `gorm:"column:approved_at" json:"approved_at,omitempty"`
	ApprovedBy        *int64           `gorm:"column:approved_by" json:"approved_by,omitempty"`
	DisbursedAt       *time.Time       `gorm:"column:disbursed_at" json:"disbursed_at,omitempty"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt   `gorm:"column:deleted_at;index" json:"-"`
}

func (Expense) TableName() string {
	return "expenses"
}

// StatusHistory rows are written once and never updated.
type StatusHistory struct {
	ID               int64           `gorm:"primaryKey" json:"id"`
	ExpenseID        int64           `gorm:"column:expense_id;not null;index" json:"expense_id"`
	FromStatus       Status          `gorm:"column:from_status;not null" json:"from_status"`
	ToStatus         Status          `gorm:"column:to_status;not null" json:"to_status"`
	PreviousSnapshot json.RawMessage `gorm:"column:previous_snapshot;type:jsonb" json:"previous_snapshot"`
	CurrentSnapshot  json.RawMessage `gorm:"column:current_snapshot;type:jsonb" json:"current_snapshot"`
	Actor            int64           `gorm:"column:actor;not null" json:"actor"`
	Reason           string          `gorm:"column:reason" json:"reason,omitempty"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (StatusHistory) TableName() string {
	return "expense_status_history"
}
