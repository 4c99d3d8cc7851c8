package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
)

type Repository interface {
	Transaction(ctx context.Context, fn func(context.Context, Repository) error) error
	GetByExpenseID(ctx context.Context, expenseID int64) (*Workflow, error)
	Create(ctx context.Context, wf *Workflow) error
	SaveProgress(ctx context.Context, wf *Workflow, completed *Step) error
}

// ExpenseStatusUpdater is the expense state machine as seen by the stepper.
type ExpenseStatusUpdater interface {
	GetExpense(ctx context.Context, id int64) (*expenseDatamodel.Expense, error)
	UpdateStatus(ctx context.Context, id int64, to expenseDatamodel.Status, actor int64, reason string) (*expenseDatamodel.Expense, error)
}

type ManagerLookup interface {
	ManagerOf(ctx context.Context, employeeID int64) (*int64, error)
}

type Service struct {
	repo     Repository
	expenses ExpenseStatusUpdater
	managers ManagerLookup
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, expenses ExpenseStatusUpdater, managers ManagerLookup, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		expenses: expenses,
		managers: managers,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateForExpense opens the five-step workflow of an expense. An expense
// has at most one workflow; asking again returns the existing one.
func (s *Service) CreateForExpense(ctx context.Context, exp *expenseDatamodel.Expense) (*Workflow, error) {
	existing, err := s.repo.GetByExpenseID(ctx, exp.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load workflow", err)
	}
	if existing != nil {
		return existing, nil
	}

	var managerID *int64
	if s.managers != nil {
		managerID, err = s.managers.ManagerOf(ctx, exp.EmployeeID)
		if err != nil {
			s.logger.Warn("manager lookup failed, creator reviews instead",
				"error", err,
				"employee_id", exp.EmployeeID)
			managerID = nil
		}
	}

	approvers := approversFor(exp, managerID)
	wf := &Workflow{
		ExpenseID:       exp.ID,
		CurrentStep:     StepEmployeeRequest,
		TotalSteps:      TotalSteps,
		CurrentApprover: approvers[StepEmployeeRequest],
		Steps:           make([]Step, 0, TotalSteps),
	}
	next := approvers[StepAdminEntry]
	wf.NextApprover = &next
	for n := 1; n <= TotalSteps; n++ {
		wf.Steps = append(wf.Steps, Step{
			StepNumber: n,
			Name:       StepName(n),
			Approver:   approvers[n],
		})
	}

	if err := s.repo.Create(ctx, wf); err != nil {
		s.logger.Error("failed to create workflow", "error", err, "expense_id", exp.ID)
		return nil, internal.NewInternalError("failed to create workflow", err)
	}

	s.logger.Info("approval workflow created",
		"expense_id", exp.ID,
		"workflow_id", wf.ID,
		"reviewer", approvers[StepReview])
	return wf, nil
}

func (s *Service) GetForExpense(ctx context.Context, expenseID int64) (*Workflow, error) {
	wf, err := s.repo.GetByExpenseID(ctx, expenseID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load workflow", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: no workflow for expense %d", internal.ErrNotFound, expenseID)
	}
	return wf, nil
}

// AdvanceToNextStep completes the current step on behalf of approver. The
// expense moves to the status the step implies in the same transaction as the
// step; if the state machine refuses, nothing is written. Reaching the final
// step completes the workflow with the expense approved.
func (s *Service) AdvanceToNextStep(ctx context.Context, expenseID, approver int64) (*Workflow, error) {
	exp, err := s.expenses.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	wf, err := s.CreateForExpense(ctx, exp)
	if err != nil {
		return nil, err
	}
	if wf.IsCompleted {
		return nil, fmt.Errorf("%w: expense %d", internal.ErrWorkflowAlreadyCompleted, expenseID)
	}

	current := stepByNumber(wf, wf.CurrentStep)
	if current == nil {
		return nil, internal.NewInternalError(fmt.Sprintf("workflow %d has no step %d", wf.ID, wf.CurrentStep), nil)
	}

	now := s.now()
	current.IsCompleted = true
	current.CompletedAt = &now
	current.CompletedBy = &approver

	wf.CurrentStep++
	if next := stepByNumber(wf, wf.CurrentStep); next != nil {
		wf.CurrentApprover = next.Approver
	}
	wf.NextApprover = nil
	if following := stepByNumber(wf, wf.CurrentStep+1); following != nil {
		approverID := following.Approver
		wf.NextApprover = &approverID
	}
	if wf.CurrentStep >= wf.TotalSteps {
		wf.IsCompleted = true
		wf.CompletedAt = &now
	}

	var refused error
	err = s.repo.Transaction(ctx, func(txCtx context.Context, tx Repository) error {
		if target, ok := CompletionTarget(current.StepNumber); ok && needsTransition(exp.Status, target) {
			if _, err := s.expenses.UpdateStatus(txCtx, expenseID, target, approver, ""); err != nil {
				refused = err
				return err
			}
		}
		return tx.SaveProgress(txCtx, wf, current)
	})
	if refused != nil {
		s.logger.Warn("workflow advance refused by expense state",
			"error", refused,
			"expense_id", expenseID,
			"step", current.StepNumber,
			"expense_status", exp.Status)
		return nil, refused
	}
	if err != nil {
		s.logger.Error("failed to save workflow progress", "error", err, "expense_id", expenseID)
		return nil, internal.NewInternalError("failed to save workflow progress", err)
	}

	s.logger.Info("workflow advanced",
		"expense_id", expenseID,
		"completed_step", current.StepNumber,
		"current_step", wf.CurrentStep,
		"is_completed", wf.IsCompleted)
	return wf, nil
}
