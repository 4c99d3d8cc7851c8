package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/core/common/batch"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	installmentDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/installment"
	payrollDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-admin/internal/core/events"
	"github.com/shopspring/decimal"
)

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error

	ListPending(ctx context.Context, employeeID int64, approvedBy time.Time) ([]*expenseDatamodel.Expense, error)
	GetExpense(ctx context.Context, id int64) (*expenseDatamodel.Expense, error)
	SaveExpense(ctx context.Context, exp *expenseDatamodel.Expense) error

	NextDueInstallment(ctx context.Context, expenseID int64) (*installmentDatamodel.Installment, error)
	ConsumeInstallment(ctx context.Context, installmentID int64, payrollReference string, at time.Time) error

	IntegrationExists(ctx context.Context, expenseID int64, payrollReference string) (bool, error)
	CreateIntegration(ctx context.Context, in *Integration) error
	ListIntegrations(ctx context.Context, expenseID int64) ([]*Integration, error)

	CreatePeriod(ctx context.Context, p *Period) error
	GetPeriod(ctx context.Context, id int64) (*Period, error)
	SavePeriod(ctx context.Context, p *Period) error
}

// Engine turns approved expenses into payroll additions and deductions.
type Engine struct {
	repo      Repository
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewEngine(repo Repository, publisher events.Publisher, logger *slog.Logger) *Engine {
	return &Engine{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Collect gathers what the employee's expenses contribute to one payroll
// run. Nothing is written.
func (e *Engine) Collect(ctx context.Context, employeeID int64, cycle Cycle) (*Summary, error) {
	if err := cycle.Validate(); err != nil {
		return nil, err
	}

	pending, err := e.repo.ListPending(ctx, employeeID, endOfDay(cycle.End))
	if err != nil {
		e.logger.Error("failed to list pending payroll expenses", "error", err, "employee_id", employeeID)
		return nil, internal.NewInternalError("failed to list pending payroll expenses", err)
	}

	summary := &Summary{
		EmployeeID:      employeeID,
		PeriodStart:     cycle.Start,
		PeriodEnd:       cycle.End,
		Additions:       []Line{},
		Deductions:      []Line{},
		TotalAdditions:  decimal.Zero,
		TotalDeductions: decimal.Zero,
	}
	for _, exp := range pending {
		amount, inst, err := e.amountFor(ctx, e.repo, exp)
		if err != nil {
			return nil, internal.NewInternalError("failed to compute payroll amount", err)
		}
		line := Line{
			ExpenseID:       exp.ID,
			Reference:       exp.Reference,
			PayrollEffect:   exp.PayrollEffect,
			Amount:          amount,
			RemainingAmount: exp.RemainingAmount,
		}
		if inst != nil {
			n := inst.InstallmentNumber
			line.InstallmentNumber = &n
		}
		if exp.PayrollEffect.IsDeduction() {
			summary.Deductions = append(summary.Deductions, line)
			summary.TotalDeductions = summary.TotalDeductions.Add(amount)
		} else {
			summary.Additions = append(summary.Additions, line)
			summary.TotalAdditions = summary.TotalAdditions.Add(amount)
		}
	}
	summary.NetAdjustment = summary.TotalAdditions.Sub(summary.TotalDeductions)

	return summary, nil
}

// amountFor is what one payroll run takes from the expense: the next
// installment for amortized deductions, the configured installment amount,
// or the full amount, never more than what remains.
func (e *Engine) amountFor(ctx context.Context, repo Repository, exp *expenseDatamodel.Expense) (decimal.Decimal, *installmentDatamodel.Installment, error) {
	amount := exp.TotalAmount
	if exp.InstallmentAmount != nil && exp.InstallmentAmount.IsPositive() {
		amount = *exp.InstallmentAmount
	}

	var inst *installmentDatamodel.Installment
	if exp.PayrollEffect == expenseDatamodel.PayrollEffectDeductInInstallments {
		var err error
		inst, err = repo.NextDueInstallment(ctx, exp.ID)
		if err != nil {
			return decimal.Zero, nil, err
		}
		if inst != nil {
			amount = inst.Amount
		}
	}

	return decimal.Min(amount, exp.RemainingAmount), inst, nil
}

// MarkAsProcessed commits a payroll run for the given expenses. The whole
// batch shares one transaction and every expense runs in its own savepoint:
// a failed item is reported and rolled back on its own while the rest commit.
// An expense already committed under the same reference is reported as a
// skipped success and nothing is written for it.
func (e *Engine) MarkAsProcessed(ctx context.Context, expenseIDs []int64, payrollReference string, cycle Cycle) (*batch.Result, error) {
	dto := MarkProcessedDTO{
		ExpenseIDs:       expenseIDs,
		PayrollReference: payrollReference,
		PeriodStart:      cycle.Start,
		PeriodEnd:        cycle.End,
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	result := batch.New(len(expenseIDs))
	var pending []events.Event

	err := e.repo.Transaction(ctx, func(tx Repository) error {
		for _, id := range expenseIDs {
			var (
				event   events.Event
				skipped bool
			)
			err := tx.Transaction(ctx, func(item Repository) error {
				var err error
				event, skipped, err = e.processOne(ctx, item, id, payrollReference, cycle)
				return err
			})
			switch {
			case err != nil:
				e.logger.Warn("payroll item failed",
					"error", err,
					"expense_id", id,
					"payroll_reference", payrollReference)
				result.Fail(id, err)
			case skipped:
				result.Skip(id, "already processed under "+payrollReference)
			default:
				pending = append(pending, event)
				result.Succeed(id, "processed")
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error("payroll batch failed", "error", err, "payroll_reference", payrollReference)
		return nil, internal.NewInternalError("payroll batch failed", err)
	}

	for _, ev := range pending {
		if e.publisher == nil {
			break
		}
		if err := e.publisher.Publish(ctx, ev); err != nil {
			e.logger.Error("failed to publish event", "error", err, "event_type", ev.EventType())
		}
	}

	e.logger.Info("payroll batch processed",
		"payroll_reference", payrollReference,
		"success_count", result.SuccessCount,
		"failed_count", result.FailedCount)
	return result, nil
}

func (e *Engine) processOne(ctx context.Context, repo Repository, id int64, ref string, cycle Cycle) (events.Event, bool, error) {
	done, err := repo.IntegrationExists(ctx, id, ref)
	if err != nil {
		return nil, false, err
	}
	if done {
		return nil, true, nil
	}

	exp, err := repo.GetExpense(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !eligible(exp) {
		return nil, false, fmt.Errorf("%w: expense %d is %s with payroll status %s",
			internal.ErrNotEligibleForPayroll, id, exp.Status, exp.PayrollStatus)
	}

	amount, inst, err := e.amountFor(ctx, repo, exp)
	if err != nil {
		return nil, false, err
	}

	now := e.now()
	exp.RemainingAmount = exp.RemainingAmount.Sub(amount)
	if exp.RemainingAmount.IsPositive() {
		exp.PayrollStatus = expenseDatamodel.PayrollStatusPartiallyProcessed
	} else {
		exp.RemainingAmount = decimal.Zero
		exp.PayrollStatus = settledStatus(exp.PayrollEffect)
	}

	integration := &Integration{
		ExpenseID:        exp.ID,
		EmployeeID:       exp.EmployeeID,
		PayrollReference: ref,
		PeriodStart:      cycle.Start,
		PeriodEnd:        cycle.End,
		Operation:        operationFor(exp.PayrollEffect),
		ProcessedAmount:  amount,
		RemainingAmount:  exp.RemainingAmount,
	}
	if inst != nil {
		if err := repo.ConsumeInstallment(ctx, inst.ID, ref, now); err != nil {
			return nil, false, err
		}
		n := inst.InstallmentNumber
		integration.InstallmentNumber = &n
	}

	if err := repo.SaveExpense(ctx, exp); err != nil {
		return nil, false, err
	}
	if err := repo.CreateIntegration(ctx, integration); err != nil {
		return nil, false, err
	}

	return events.NewPayrollExpenseProcessedEvent(
		exp.ID,
		exp.EmployeeID,
		ref,
		string(integration.Operation),
		amount.StringFixed(2),
		exp.RemainingAmount.StringFixed(2),
	), false, nil
}

func (e *Engine) History(ctx context.Context, expenseID int64) ([]*Integration, error) {
	if _, err := e.repo.GetExpense(ctx, expenseID); err != nil {
		if errors.Is(err, internal.ErrExpenseNotFound) {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to load expense", err)
	}
	list, err := e.repo.ListIntegrations(ctx, expenseID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load payroll history", err)
	}
	return list, nil
}

func (e *Engine) CreatePeriod(ctx context.Context, dto CreatePeriodDTO) (*Period, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	p := &Period{
		Name:      dto.Name,
		StartDate: dto.StartDate,
		EndDate:   dto.EndDate,
		Status:    payrollDatamodel.PeriodStatusOpen,
	}
	if err := e.repo.CreatePeriod(ctx, p); err != nil {
		return nil, internal.NewInternalError("failed to create payroll period", err)
	}
	e.logger.Info("payroll period created", "period_id", p.ID, "name", p.Name)
	return p, nil
}

func (e *Engine) GetPeriod(ctx context.Context, id int64) (*Period, error) {
	p, err := e.repo.GetPeriod(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrNotFound) {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to load payroll period", err)
	}
	return p, nil
}

// ClosePeriod freezes a period once its payroll has run.
func (e *Engine) ClosePeriod(ctx context.Context, id int64) (*Period, error) {
	p, err := e.GetPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == payrollDatamodel.PeriodStatusClosed {
		return nil, fmt.Errorf("%w: period %d", internal.ErrPeriodClosed, id)
	}
	p.Status = payrollDatamodel.PeriodStatusClosed
	if err := e.repo.SavePeriod(ctx, p); err != nil {
		return nil, internal.NewInternalError("failed to close payroll period", err)
	}
	e.logger.Info("payroll period closed", "period_id", id)
	return p, nil
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
