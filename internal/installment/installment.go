package installment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	employeeDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/employee"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	installmentDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/installment"
	"github.com/frahmantamala/payroll-admin/internal/threshold"
	"github.com/shopspring/decimal"
)

type (
	Plan        = installmentDatamodel.Plan
	Installment = installmentDatamodel.Installment
)

type ThresholdResolver interface {
	Resolve(ctx context.Context, employeeID int64, asOf time.Time) threshold.Threshold
}

type EmployeeLookup interface {
	GetByID(ctx context.Context, id int64) (*employeeDatamodel.Employee, error)
}

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	GetPlanByExpenseID(ctx context.Context, expenseID int64) (*Plan, error)
	CreatePlan(ctx context.Context, plan *Plan) error
	SetExpenseInstallmentAmount(ctx context.Context, expenseID int64, amount decimal.Decimal) error
	NextDue(ctx context.Context, expenseID int64) (*Installment, error)
	MarkProcessed(ctx context.Context, installmentID int64, payrollReference string, at time.Time) error
}

type Service struct {
	repo       Repository
	thresholds ThresholdResolver
	employees  EmployeeLookup
	logger     *slog.Logger
}

func NewService(repo Repository, thresholds ThresholdResolver, employees EmployeeLookup, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		thresholds: thresholds,
		employees:  employees,
		logger:     logger,
	}
}

type Preview struct {
	TotalAmount          decimal.Decimal        `json:"total_amount"`
	InstallmentAmount    decimal.Decimal        `json:"installment_amount"`
	NumberOfInstallments int                    `json:"number_of_installments"`
	StartDate            time.Time              `json:"start_date"`
	EndDate              time.Time              `json:"end_date"`
	Installments         []ScheduledInstallment `json:"installments"`
}

func (s *Service) Preview(total, limit decimal.Decimal, start time.Time) (*Preview, error) {
	schedule, err := BuildSchedule(total, limit, start)
	if err != nil {
		return nil, err
	}
	return &Preview{
		TotalAmount:          total,
		InstallmentAmount:    schedule[0].Amount,
		NumberOfInstallments: len(schedule),
		StartDate:            schedule[0].Date,
		EndDate:              schedule[len(schedule)-1].Date,
		Installments:         schedule,
	}, nil
}

// CreatePlan amortizes the expense over payroll cycles. The per-cycle amount
// is the requested installment amount bounded by the employee's threshold.
// Calling it again for the same expense returns the existing plan.
func (s *Service) CreatePlan(ctx context.Context, exp *expenseDatamodel.Expense, start time.Time) (*Plan, error) {
	existing, err := s.repo.GetPlanByExpenseID(ctx, exp.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load installment plan", err)
	}
	if existing != nil {
		return existing, nil
	}

	limit := s.cycleCap(ctx, exp, start)
	schedule, err := BuildSchedule(exp.TotalAmount, limit, start)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		ExpenseID:            exp.ID,
		TotalAmount:          exp.TotalAmount,
		InstallmentAmount:    schedule[0].Amount,
		NumberOfInstallments: len(schedule),
		StartDate:            schedule[0].Date,
		EndDate:              schedule[len(schedule)-1].Date,
		Installments:         make([]Installment, 0, len(schedule)),
	}
	for _, si := range schedule {
		plan.Installments = append(plan.Installments, Installment{
			InstallmentNumber: si.Number,
			ScheduledDate:     si.Date,
			Amount:            si.Amount,
			RemainingBalance:  si.RemainingAfter,
		})
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.CreatePlan(ctx, plan); err != nil {
			return err
		}
		return tx.SetExpenseInstallmentAmount(ctx, exp.ID, plan.InstallmentAmount)
	})
	if err != nil {
		s.logger.Error("failed to create installment plan", "error", err, "expense_id", exp.ID)
		return nil, internal.NewInternalError("failed to create installment plan", err)
	}

	amount := plan.InstallmentAmount
	exp.InstallmentAmount = &amount

	s.logger.Info("installment plan created",
		"expense_id", exp.ID,
		"installments", plan.NumberOfInstallments,
		"installment_amount", plan.InstallmentAmount.String())

	return plan, nil
}

func (s *Service) cycleCap(ctx context.Context, exp *expenseDatamodel.Expense, asOf time.Time) decimal.Decimal {
	salary := decimal.Zero
	if s.employees != nil {
		emp, err := s.employees.GetByID(ctx, exp.EmployeeID)
		if err != nil {
			s.logger.Warn("employee salary unavailable, using threshold max amount",
				"error", err,
				"employee_id", exp.EmployeeID)
		} else {
			salary = emp.BaseSalary
		}
	}

	limit := s.thresholds.Resolve(ctx, exp.EmployeeID, asOf).CycleCap(salary)
	if exp.InstallmentAmount != nil && exp.InstallmentAmount.IsPositive() {
		limit = decimal.Min(limit, *exp.InstallmentAmount)
	}
	// Installments are stored in cents; rounding down keeps them under the cap.
	return limit.Truncate(2)
}

func (s *Service) GetPlan(ctx context.Context, expenseID int64) (*Plan, error) {
	plan, err := s.repo.GetPlanByExpenseID(ctx, expenseID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load installment plan", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: no installment plan for expense %d", internal.ErrNotFound, expenseID)
	}
	return plan, nil
}

// NextDue returns the lowest-numbered unprocessed installment, or ErrNotFound
// once the plan is exhausted.
func (s *Service) NextDue(ctx context.Context, expenseID int64) (*Installment, error) {
	inst, err := s.repo.NextDue(ctx, expenseID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load next installment", err)
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: no pending installment for expense %d", internal.ErrNotFound, expenseID)
	}
	return inst, nil
}

func (s *Service) MarkProcessed(ctx context.Context, installmentID int64, payrollReference string) error {
	err := s.repo.MarkProcessed(ctx, installmentID, payrollReference, time.Now().UTC())
	if errors.Is(err, internal.ErrNotFound) {
		return err
	}
	if err != nil {
		return internal.NewInternalError("failed to mark installment processed", err)
	}
	return nil
}
