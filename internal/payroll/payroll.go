package payroll

import (
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/core/common/validation"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	payrollDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/payroll"
	"github.com/shopspring/decimal"
)

type (
	Period      = payrollDatamodel.Period
	Integration = payrollDatamodel.Integration
	Operation   = payrollDatamodel.Operation
)

// Cycle is the pay window a payroll run covers.
type Cycle struct {
	Start time.Time `json:"period_start"`
	End   time.Time `json:"period_end"`
}

func (c Cycle) Validate() error {
	v := validation.NewValidator()
	v.Field("period_start", c.Start).Required()
	v.Field("period_end", c.End).Required()
	if err := v.Validate(); err != nil {
		return err
	}
	if c.End.Before(c.Start) {
		return internal.NewValidationFieldError("period_end", "period_end must not be before period_start", internal.ErrCodeInvalidDate)
	}
	return nil
}

func CycleOf(p *Period) Cycle {
	return Cycle{Start: p.StartDate, End: p.EndDate}
}

// Line is one expense's contribution to a payroll run.
type Line struct {
	ExpenseID         int64                          `json:"expense_id"`
	Reference         string                         `json:"reference"`
	PayrollEffect     expenseDatamodel.PayrollEffect `json:"payroll_effect"`
	Amount            decimal.Decimal                `json:"amount"`
	RemainingAmount   decimal.Decimal                `json:"remaining_amount"`
	InstallmentNumber *int                           `json:"installment_number,omitempty"`
}

type Summary struct {
	EmployeeID      int64           `json:"employee_id"`
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	Additions       []Line          `json:"additions"`
	Deductions      []Line          `json:"deductions"`
	TotalAdditions  decimal.Decimal `json:"total_additions"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	NetAdjustment   decimal.Decimal `json:"net_adjustment"`
}

func operationFor(effect expenseDatamodel.PayrollEffect) Operation {
	if effect.IsDeduction() {
		return payrollDatamodel.OperationDeduct
	}
	return payrollDatamodel.OperationAdd
}

// settledStatus is the payroll status of an expense once nothing remains.
func settledStatus(effect expenseDatamodel.PayrollEffect) expenseDatamodel.PayrollStatus {
	if effect.IsDeduction() {
		return expenseDatamodel.PayrollStatusDeducted
	}
	return expenseDatamodel.PayrollStatusAdded
}

// eligible reports whether the expense is waiting on payroll.
func eligible(exp *expenseDatamodel.Expense) bool {
	if exp.Status != expenseDatamodel.StatusApproved || !exp.AddToPayroll {
		return false
	}
	if exp.PayrollEffect == expenseDatamodel.PayrollEffectNone || !exp.PayrollEffect.IsValid() {
		return false
	}
	if !exp.RemainingAmount.IsPositive() {
		return false
	}
	return exp.PayrollStatus == expenseDatamodel.PayrollStatusPending ||
		exp.PayrollStatus == expenseDatamodel.PayrollStatusPartiallyProcessed
}

type MarkProcessedDTO struct {
	ExpenseIDs       []int64   `json:"expense_ids"`
	PayrollReference string    `json:"payroll_reference"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
}

func (dto MarkProcessedDTO) Cycle() Cycle {
	return Cycle{Start: dto.PeriodStart, End: dto.PeriodEnd}
}

func (dto MarkProcessedDTO) Validate() error {
	if len(dto.ExpenseIDs) == 0 {
		return internal.NewValidationFieldError("expense_ids", "expense_ids must not be empty", internal.ErrCodeValidationFailed)
	}
	v := validation.NewValidator()
	v.Field("payroll_reference", dto.PayrollReference).Required().MaxLength(100)
	if err := v.Validate(); err != nil {
		return err
	}
	return dto.Cycle().Validate()
}

type CreatePeriodDTO struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func (dto CreatePeriodDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().MaxLength(100)
	if err := v.Validate(); err != nil {
		return err
	}
	return Cycle{Start: dto.StartDate, End: dto.EndDate}.Validate()
}
