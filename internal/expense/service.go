package expense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/core/common/batch"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	installmentDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/installment"
	workflowDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/workflow"
	"github.com/frahmantamala/payroll-admin/internal/core/events"
)

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	Create(ctx context.Context, exp *Expense) error
	GetByID(ctx context.Context, id int64) (*Expense, error)
	Save(ctx context.Context, exp *Expense) error
	CreateHistory(ctx context.Context, h *StatusHistory) error
	ListHistory(ctx context.Context, expenseID int64) ([]*StatusHistory, error)
	SoftDelete(ctx context.Context, id int64) error
}

// WorkflowCreator opens the approval workflow of a new expense.
type WorkflowCreator interface {
	CreateForExpense(ctx context.Context, exp *Expense) (*workflowDatamodel.Workflow, error)
}

// PlanCreator amortizes an installment-deducted expense.
type PlanCreator interface {
	CreatePlan(ctx context.Context, exp *Expense, start time.Time) (*installmentDatamodel.Plan, error)
}

type Service struct {
	repo      Repository
	workflows WorkflowCreator
	plans     PlanCreator
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, workflows WorkflowCreator, plans PlanCreator, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		workflows: workflows,
		plans:     plans,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetWorkflowCreator breaks the construction cycle between the expense and
// workflow services.
func (s *Service) SetWorkflowCreator(w WorkflowCreator) {
	s.workflows = w
}

func (s *Service) CreateExpense(ctx context.Context, dto CreateExpenseDTO, creatorID int64) (*Expense, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("expense validation failed", "error", err, "creator_id", creatorID)
		return nil, err
	}

	now := s.now()
	exp := &Expense{
		Reference:       NewReference(now),
		EmployeeID:      dto.EmployeeID,
		CreatedBy:       creatorID,
		Category:        dto.Category,
		Description:     dto.Description,
		TotalAmount:     dto.TotalAmount,
		Currency:        dto.currency(),
		Status:          StatusDraft,
		PaymentStatus:   expenseDatamodel.PaymentStatusUnpaid,
		PayrollEffect:   dto.payrollEffect(),
		AddToPayroll:    dto.addToPayroll(),
		PayrollStatus:   expenseDatamodel.PayrollStatusNotApplicable,
		RemainingAmount: dto.TotalAmount,
		ExpenseDate:     dto.ExpenseDate,
	}
	if dto.InstallmentAmount != nil {
		amount := *dto.InstallmentAmount
		exp.InstallmentAmount = &amount
	}

	if err := s.repo.Create(ctx, exp); err != nil {
		s.logger.Error("failed to create expense", "error", err, "employee_id", dto.EmployeeID)
		return nil, internal.NewInternalError("failed to create expense", err)
	}

	if s.workflows != nil {
		if _, err := s.workflows.CreateForExpense(ctx, exp); err != nil {
			s.logger.Error("failed to create approval workflow", "error", err, "expense_id", exp.ID)
			return nil, err
		}
	}

	if exp.PayrollEffect == expenseDatamodel.PayrollEffectDeductInInstallments && s.plans != nil {
		start := firstOfNextMonth(now)
		if dto.InstallmentStartDate != nil {
			start = *dto.InstallmentStartDate
		}
		if _, err := s.plans.CreatePlan(ctx, exp, start); err != nil {
			s.logger.Error("failed to create installment plan", "error", err, "expense_id", exp.ID)
			return nil, err
		}
	}

	s.logger.Info("expense created",
		"expense_id", exp.ID,
		"reference", exp.Reference,
		"employee_id", exp.EmployeeID,
		"amount", exp.TotalAmount.String(),
		"payroll_effect", exp.PayrollEffect)

	return exp, nil
}

func (s *Service) GetExpense(ctx context.Context, id int64) (*Expense, error) {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrExpenseNotFound) {
			return nil, err
		}
		s.logger.Error("failed to get expense", "error", err, "expense_id", id)
		return nil, internal.NewInternalError("failed to get expense", err)
	}
	return exp, nil
}

func (s *Service) History(ctx context.Context, id int64) ([]*StatusHistory, error) {
	if _, err := s.GetExpense(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load status history", err)
	}
	return history, nil
}

// DeleteExpense tombstones a draft or cancelled expense.
func (s *Service) DeleteExpense(ctx context.Context, id int64) error {
	exp, err := s.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if !CanDelete(exp) {
		return fmt.Errorf("%w: expense %d is %s", internal.ErrCannotModifyExpense, id, exp.Status)
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return internal.NewInternalError("failed to delete expense", err)
	}
	s.logger.Info("expense deleted", "expense_id", id)
	return nil
}

// UpdateStatus applies one transition from the fixed table, its side effects
// and its audit record in a single transaction. A rejected transition leaves
// the expense untouched.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to Status, actor int64, reason string) (*Expense, error) {
	if !to.IsValid() {
		return nil, internal.NewValidationFieldError("status", fmt.Sprintf("unsupported status %q", to), internal.ErrCodeInvalidEnum)
	}

	var (
		updated *Expense
		pending []events.Event
	)
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		var err error
		updated, pending, err = s.transition(ctx, tx, id, to, actor, reason)
		return err
	})
	if err != nil {
		s.logger.Warn("status update refused",
			"error", err,
			"expense_id", id,
			"to_status", to,
			"actor", actor)
		return nil, err
	}

	s.publish(ctx, pending)
	return updated, nil
}

func (s *Service) transition(ctx context.Context, repo Repository, id int64, to Status, actor int64, reason string) (*Expense, []events.Event, error) {
	exp, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	from := exp.Status
	if !CanTransition(from, to) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", internal.ErrInvalidTransition, from, to)
	}
	reason = strings.TrimSpace(reason)
	if to == StatusRejected && reason == "" {
		return nil, nil, internal.ErrRejectionReasonRequired
	}

	previous, err := json.Marshal(exp)
	if err != nil {
		return nil, nil, internal.NewInternalError("failed to snapshot expense", err)
	}

	now := s.now()
	exp.Status = to
	switch to {
	case StatusApproved:
		exp.ApprovedAt = &now
		exp.ApprovedBy = &actor
		if exp.AddToPayroll {
			exp.PayrollStatus = expenseDatamodel.PayrollStatusPending
		}
	case StatusRejected:
		exp.RejectionReason = &reason
	case StatusSubmitted:
		exp.RejectionReason = nil
	case StatusDisbursed:
		exp.DisbursedAt = &now
		exp.PaymentStatus = expenseDatamodel.PaymentStatusPaid
	}

	current, err := json.Marshal(exp)
	if err != nil {
		return nil, nil, internal.NewInternalError("failed to snapshot expense", err)
	}

	if err := repo.Save(ctx, exp); err != nil {
		return nil, nil, internal.NewInternalError("failed to save expense", err)
	}
	if err := repo.CreateHistory(ctx, &StatusHistory{
		ExpenseID:        exp.ID,
		FromStatus:       from,
		ToStatus:         to,
		PreviousSnapshot: previous,
		CurrentSnapshot:  current,
		Actor:            actor,
		Reason:           reason,
		CreatedAt:        now,
	}); err != nil {
		return nil, nil, internal.NewInternalError("failed to record status history", err)
	}

	pending := []events.Event{
		events.NewExpenseStatusChangedEvent(exp.ID, exp.EmployeeID, string(from), string(to), actor),
	}
	if to == StatusApproved {
		pending = append(pending, events.NewExpenseApprovedEvent(exp.ID, exp.EmployeeID, exp.TotalAmount.StringFixed(2), exp.Currency, exp.AddToPayroll))
	}

	s.logger.Info("expense status changed",
		"expense_id", exp.ID,
		"from_status", from,
		"to_status", to,
		"actor", actor)

	return exp, pending, nil
}

func (s *Service) Submit(ctx context.Context, id, actor int64) (*Expense, error) {
	return s.UpdateStatus(ctx, id, StatusSubmitted, actor, "")
}

func (s *Service) StartReview(ctx context.Context, id, actor int64) (*Expense, error) {
	return s.UpdateStatus(ctx, id, StatusUnderReview, actor, "")
}

func (s *Service) Approve(ctx context.Context, id, actor int64) (*Expense, error) {
	return s.UpdateStatus(ctx, id, StatusApproved, actor, "")
}

func (s *Service) Reject(ctx context.Context, id, actor int64, reason string) (*Expense, error) {
	return s.UpdateStatus(ctx, id, StatusRejected, actor, reason)
}

func (s *Service) Cancel(ctx context.Context, id, actor int64, reason string) (*Expense, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled, actor, reason)
}

func (s *Service) Disburse(ctx context.Context, id, actor int64) (*Expense, error) {
	return s.UpdateStatus(ctx, id, StatusDisbursed, actor, "")
}

// BulkApprove approves each expense in order inside one batch transaction.
// Each item runs in its own savepoint, so a failed item leaves no trace and
// never stops the rest of the batch.
func (s *Service) BulkApprove(ctx context.Context, ids []int64, actor int64) (*batch.Result, error) {
	result := batch.New(len(ids))
	var pending []events.Event

	err := s.repo.Transaction(ctx, func(tx Repository) error {
		for _, id := range ids {
			var itemEvents []events.Event
			err := tx.Transaction(ctx, func(item Repository) error {
				var err error
				_, itemEvents, err = s.transition(ctx, item, id, StatusApproved, actor, "")
				return err
			})
			if err != nil {
				result.Fail(id, err)
				continue
			}
			pending = append(pending, itemEvents...)
			result.Succeed(id, "approved")
		}
		return nil
	})
	if err != nil {
		s.logger.Error("bulk approve failed", "error", err, "count", len(ids))
		return nil, internal.NewInternalError("bulk approve failed", err)
	}

	s.publish(ctx, pending)
	s.logger.Info("bulk approve finished",
		"success_count", result.SuccessCount,
		"failed_count", result.FailedCount)
	return result, nil
}

func (s *Service) publish(ctx context.Context, pending []events.Event) {
	if s.publisher == nil {
		return
	}
	// Handlers may outlive the caller's transaction.
	ctx = internal.ContextWithoutTx(ctx)
	for _, e := range pending {
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Error("failed to publish event", "error", err, "event_type", e.EventType())
		}
	}
}

func firstOfNextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}
