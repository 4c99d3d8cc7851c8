package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-admin/internal"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	"github.com/frahmantamala/payroll-admin/internal/core/testdb"
	"github.com/frahmantamala/payroll-admin/internal/expense"
	expensePostgres "github.com/frahmantamala/payroll-admin/internal/expense/postgres"
	"github.com/frahmantamala/payroll-admin/internal/workflow"
	"github.com/frahmantamala/payroll-admin/internal/workflow/postgres"
)

type managers map[int64]int64

func (m managers) ManagerOf(_ context.Context, employeeID int64) (*int64, error) {
	id, ok := m[employeeID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// failingProgressRepo runs real transactions but cannot record step progress.
type failingProgressRepo struct {
	*postgres.WorkflowRepository
}

func (r failingProgressRepo) Transaction(ctx context.Context, fn func(context.Context, workflow.Repository) error) error {
	return r.WorkflowRepository.Transaction(ctx, func(txCtx context.Context, tx workflow.Repository) error {
		return fn(txCtx, failingProgressTx{tx})
	})
}

type failingProgressTx struct {
	workflow.Repository
}

func (failingProgressTx) SaveProgress(context.Context, *workflow.Workflow, *workflow.Step) error {
	return errors.New("disk full")
}

var _ = Describe("Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		expenses *expense.Service
		svc      *workflow.Service
	)

	seed := func(status expense.Status, employeeID int64) *expense.Expense {
		exp := &expense.Expense{
			Reference:       expense.NewReference(time.Now()),
			EmployeeID:      employeeID,
			CreatedBy:       2,
			Description:     "conference travel",
			TotalAmount:     decimal.NewFromInt(800),
			RemainingAmount: decimal.NewFromInt(800),
			Currency:        "USD",
			Status:          status,
			PaymentStatus:   expenseDatamodel.PaymentStatusUnpaid,
			PayrollEffect:   expenseDatamodel.PayrollEffectAddToSalary,
			AddToPayroll:    true,
			PayrollStatus:   expenseDatamodel.PayrollStatusNotApplicable,
			ExpenseDate:     time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
		}
		Expect(db.Create(exp).Error).NotTo(HaveOccurred())
		return exp
	}

	statusOf := func(id int64) expense.Status {
		var e expense.Expense
		Expect(db.First(&e, id).Error).NotTo(HaveOccurred())
		return e.Status
	}

	historyCount := func(id int64) int64 {
		var n int64
		Expect(db.Model(&expense.StatusHistory{}).Where("expense_id = ?", id).Count(&n).Error).NotTo(HaveOccurred())
		return n
	}

	stored := func(expenseID int64) *workflow.Workflow {
		wf, err := svc.GetForExpense(ctx, expenseID)
		Expect(err).NotTo(HaveOccurred())
		return wf
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		expenses = expense.NewService(expensePostgres.NewExpenseRepository(db), nil, nil, nil, logger)
		svc = workflow.NewService(postgres.NewWorkflowRepository(db), expenses, managers{11: 7}, logger)
	})

	AfterEach(func() {
		Expect(testdb.Close(db)).To(Succeed())
	})

	Describe("CreateForExpense", func() {
		It("opens five steps with the manager reviewing", func() {
			exp := seed(expense.StatusDraft, 11)

			wf, err := svc.CreateForExpense(ctx, exp)
			Expect(err).NotTo(HaveOccurred())
			Expect(wf.CurrentStep).To(Equal(1))
			Expect(wf.TotalSteps).To(Equal(5))
			Expect(wf.IsCompleted).To(BeFalse())
			Expect(wf.CurrentApprover).To(Equal(int64(11)))
			Expect(*wf.NextApprover).To(Equal(int64(2)))

			loaded := stored(exp.ID)
			Expect(loaded.Steps).To(HaveLen(5))
			approvers := make([]int64, 0, 5)
			for _, s := range loaded.Steps {
				approvers = append(approvers, s.Approver)
			}
			Expect(approvers).To(Equal([]int64{11, 2, 7, 7, 2}))
			Expect(loaded.Steps[3].Name).To(Equal("Approval"))
		})

		It("falls back to the creator when the employee has no manager", func() {
			exp := seed(expense.StatusDraft, 12)

			_, err := svc.CreateForExpense(ctx, exp)
			Expect(err).NotTo(HaveOccurred())

			loaded := stored(exp.ID)
			Expect(loaded.Steps[2].Approver).To(Equal(int64(2)))
			Expect(loaded.Steps[3].Approver).To(Equal(int64(2)))
		})

		It("returns the existing workflow on a second call", func() {
			exp := seed(expense.StatusDraft, 11)

			first, err := svc.CreateForExpense(ctx, exp)
			Expect(err).NotTo(HaveOccurred())
			second, err := svc.CreateForExpense(ctx, exp)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))

			var n int64
			Expect(db.Model(&workflow.Workflow{}).Where("expense_id = ?", exp.ID).Count(&n).Error).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
		})
	})

	Describe("AdvanceToNextStep", func() {
		It("drives the expense to approved and completes on reaching the last step", func() {
			exp := seed(expense.StatusDraft, 11)
			_, err := svc.CreateForExpense(ctx, exp)
			Expect(err).NotTo(HaveOccurred())

			wantStatus := []expense.Status{
				expense.StatusSubmitted,
				expense.StatusUnderReview,
				expense.StatusUnderReview,
				expense.StatusApproved,
			}
			for i, want := range wantStatus {
				wf, err := svc.AdvanceToNextStep(ctx, exp.ID, 7)
				Expect(err).NotTo(HaveOccurred(), "advance %d", i+1)
				Expect(wf.CurrentStep).To(Equal(i + 2))
				Expect(statusOf(exp.ID)).To(Equal(want))
			}

			wf := stored(exp.ID)
			Expect(wf.IsCompleted).To(BeTrue())
			Expect(wf.CompletedAt).NotTo(BeNil())
			Expect(wf.CurrentStep).To(Equal(5))
			Expect(wf.NextApprover).To(BeNil())
			for _, s := range wf.Steps[:4] {
				Expect(s.IsCompleted).To(BeTrue())
				Expect(*s.CompletedBy).To(Equal(int64(7)))
			}
			// step 3 implied no new status, so only three changes were audited
			Expect(historyCount(exp.ID)).To(Equal(int64(3)))
		})

		It("rolls the expense back when the step cannot be saved", func() {
			exp := seed(expense.StatusDraft, 11)
			_, err := svc.CreateForExpense(ctx, exp)
			Expect(err).NotTo(HaveOccurred())

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			broken := workflow.NewService(failingProgressRepo{postgres.NewWorkflowRepository(db)}, expenses, managers{11: 7}, logger)

			_, err = broken.AdvanceToNextStep(ctx, exp.ID, 11)
			Expect(err).To(HaveOccurred())

			Expect(statusOf(exp.ID)).To(Equal(expense.StatusDraft))
			Expect(historyCount(exp.ID)).To(BeZero())
			Expect(stored(exp.ID).CurrentStep).To(Equal(1))

			_, err = svc.AdvanceToNextStep(ctx, exp.ID, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(statusOf(exp.ID)).To(Equal(expense.StatusSubmitted))
		})

		It("refuses a completed workflow without touching anything", func() {
			exp := seed(expense.StatusDraft, 11)
			for i := 0; i < 4; i++ {
				_, err := svc.AdvanceToNextStep(ctx, exp.ID, 7)
				Expect(err).NotTo(HaveOccurred())
			}
			before := stored(exp.ID)

			_, err := svc.AdvanceToNextStep(ctx, exp.ID, 7)
			Expect(errors.Is(err, internal.ErrWorkflowAlreadyCompleted)).To(BeTrue())

			after := stored(exp.ID)
			Expect(after.CurrentStep).To(Equal(before.CurrentStep))
			Expect(after.UpdatedAt).To(Equal(before.UpdatedAt))
			Expect(statusOf(exp.ID)).To(Equal(expense.StatusApproved))
		})

		It("leaves the workflow unchanged when the implied transition is illegal", func() {
			exp := seed(expense.StatusDraft, 11)
			for i := 0; i < 2; i++ {
				_, err := svc.AdvanceToNextStep(ctx, exp.ID, 7)
				Expect(err).NotTo(HaveOccurred())
			}
			_, err := expenses.Reject(ctx, exp.ID, 7, "missing receipt")
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.AdvanceToNextStep(ctx, exp.ID, 7)
			Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue())

			wf := stored(exp.ID)
			Expect(wf.CurrentStep).To(Equal(3))
			Expect(wf.Steps[2].IsCompleted).To(BeFalse())
			Expect(statusOf(exp.ID)).To(Equal(expense.StatusRejected))
		})

		It("does not move an expense that is already ahead of the step", func() {
			exp := seed(expense.StatusUnderReview, 11)

			wf, err := svc.AdvanceToNextStep(ctx, exp.ID, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(wf.CurrentStep).To(Equal(2))
			Expect(statusOf(exp.ID)).To(Equal(expense.StatusUnderReview))
			Expect(historyCount(exp.ID)).To(BeZero())
		})

		It("creates the workflow on first advance when none exists", func() {
			exp := seed(expense.StatusDraft, 12)

			wf, err := svc.AdvanceToNextStep(ctx, exp.ID, 12)
			Expect(err).NotTo(HaveOccurred())
			Expect(wf.CurrentStep).To(Equal(2))
			Expect(wf.CurrentApprover).To(Equal(int64(2)))
			Expect(statusOf(exp.ID)).To(Equal(expense.StatusSubmitted))
		})

		It("reports a missing expense", func() {
			_, err := svc.AdvanceToNextStep(ctx, 404, 2)
			Expect(errors.Is(err, internal.ErrExpenseNotFound)).To(BeTrue())
		})
	})

	Describe("DerivedStep", func() {
		DescribeTable("maps expense status to the step it waits on",
			func(status expense.Status, step int) {
				Expect(workflow.DerivedStep(status)).To(Equal(step))
			},
			Entry("draft", expense.StatusDraft, 1),
			Entry("submitted", expense.StatusSubmitted, 2),
			Entry("under review", expense.StatusUnderReview, 3),
			Entry("approved", expense.StatusApproved, 5),
			Entry("disbursed", expense.StatusDisbursed, 5),
			Entry("rejected", expense.StatusRejected, 0),
			Entry("cancelled", expense.StatusCancelled, 0),
		)
	})
})
