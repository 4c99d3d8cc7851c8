package expense

import (
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/core/common/validation"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	"github.com/shopspring/decimal"
)

type CreateExpenseDTO struct {
	EmployeeID           int64            `json:"employee_id"`
	Category             string           `json:"category"`
	Description          string           `json:"description"`
	TotalAmount          decimal.Decimal  `json:"total_amount"`
	Currency             string           `json:"currency"`
	ExpenseDate          time.Time        `json:"expense_date"`
	PayrollEffect        PayrollEffect    `json:"payroll_effect"`
	AddToPayroll         *bool            `json:"add_to_payroll,omitempty"`
	InstallmentAmount    *decimal.Decimal `json:"installment_amount,omitempty"`
	InstallmentStartDate *time.Time       `json:"installment_start_date,omitempty"`
}

func (dto CreateExpenseDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("employee_id", dto.EmployeeID).Required()
	v.Field("description", dto.Description).Required().MaxLength(500)
	v.Field("total_amount", dto.TotalAmount).
		Required().
		Positive(internal.ErrCodeInvalidAmount).
		MaxDecimal(decimal.NewFromInt(10_000_000), internal.ErrCodeInvalidAmount).
		MaxScale(2, internal.ErrCodeInvalidAmount)
	v.Field("currency", dto.Currency).MaxLength(3)
	v.Field("expense_date", dto.ExpenseDate).Required().NotFuture()
	v.Field("payroll_effect", dto.payrollEffect()).OneOf()
	v.Field("installment_amount", dto.InstallmentAmount).
		Positive(internal.ErrCodeInvalidAmount).
		MaxScale(2, internal.ErrCodeInvalidAmount)

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func (dto CreateExpenseDTO) payrollEffect() PayrollEffect {
	if dto.PayrollEffect == "" {
		return expenseDatamodel.PayrollEffectNone
	}
	return dto.PayrollEffect
}

// addToPayroll defaults to true for any expense that affects payroll.
func (dto CreateExpenseDTO) addToPayroll() bool {
	effect := dto.payrollEffect()
	if effect == expenseDatamodel.PayrollEffectNone {
		return false
	}
	if dto.AddToPayroll != nil {
		return *dto.AddToPayroll
	}
	return true
}

func (dto CreateExpenseDTO) currency() string {
	if dto.Currency == "" {
		return "USD"
	}
	return dto.Currency
}

type UpdateStatusDTO struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (dto UpdateStatusDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("status", dto.Status).Required().OneOf()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type BulkApproveDTO struct {
	ExpenseIDs []int64 `json:"expense_ids"`
}

func (dto BulkApproveDTO) Validate() error {
	if len(dto.ExpenseIDs) == 0 {
		return internal.NewValidationFieldError("expense_ids", "expense_ids must not be empty", internal.ErrCodeValidationFailed)
	}
	return nil
}
