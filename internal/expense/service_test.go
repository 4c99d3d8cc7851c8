package expense_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-admin/internal"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	installmentDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/installment"
	workflowDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/workflow"
	"github.com/frahmantamala/payroll-admin/internal/core/events"
	"github.com/frahmantamala/payroll-admin/internal/core/testdb"
	"github.com/frahmantamala/payroll-admin/internal/expense"
	"github.com/frahmantamala/payroll-admin/internal/expense/postgres"
)

type mockWorkflowCreator struct {
	created []int64
	err     error
}

func (m *mockWorkflowCreator) CreateForExpense(_ context.Context, exp *expense.Expense) (*workflowDatamodel.Workflow, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = append(m.created, exp.ID)
	return &workflowDatamodel.Workflow{ExpenseID: exp.ID, CurrentStep: 1, TotalSteps: workflowDatamodel.TotalSteps}, nil
}

type mockPlanCreator struct {
	calls []int64
	start time.Time
}

func (m *mockPlanCreator) CreatePlan(_ context.Context, exp *expense.Expense, start time.Time) (*installmentDatamodel.Plan, error) {
	m.calls = append(m.calls, exp.ID)
	m.start = start
	return &installmentDatamodel.Plan{ExpenseID: exp.ID}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// expectedTransitions is written out independently of the production table.
var expectedTransitions = map[expense.Status][]expense.Status{
	expense.StatusDraft:       {expense.StatusSubmitted, expense.StatusCancelled},
	expense.StatusSubmitted:   {expense.StatusUnderReview, expense.StatusRejected, expense.StatusCancelled},
	expense.StatusUnderReview: {expense.StatusApproved, expense.StatusRejected, expense.StatusCancelled},
	expense.StatusApproved:    {expense.StatusDisbursed, expense.StatusCancelled},
	expense.StatusRejected:    {expense.StatusSubmitted, expense.StatusCancelled},
}

func allowed(from, to expense.Status) bool {
	for _, s := range expectedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		svc       *expense.Service
		workflows *mockWorkflowCreator
		plans     *mockPlanCreator
		publisher *recordingPublisher
	)

	seed := func(status expense.Status, addToPayroll bool) *expense.Expense {
		exp := &expense.Expense{
			Reference:       expense.NewReference(time.Now()),
			EmployeeID:      11,
			CreatedBy:       2,
			Description:     "client dinner",
			TotalAmount:     decimal.NewFromInt(1200),
			RemainingAmount: decimal.NewFromInt(1200),
			Currency:        "USD",
			Status:          status,
			PaymentStatus:   expenseDatamodel.PaymentStatusUnpaid,
			PayrollEffect:   expenseDatamodel.PayrollEffectAddToSalary,
			AddToPayroll:    addToPayroll,
			PayrollStatus:   expenseDatamodel.PayrollStatusNotApplicable,
			ExpenseDate:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		}
		Expect(db.Create(exp).Error).NotTo(HaveOccurred())
		return exp
	}

	historyCount := func(id int64) int64 {
		var n int64
		Expect(db.Model(&expense.StatusHistory{}).Where("expense_id = ?", id).Count(&n).Error).NotTo(HaveOccurred())
		return n
	}

	reload := func(id int64) *expense.Expense {
		var e expense.Expense
		Expect(db.Unscoped().First(&e, id).Error).NotTo(HaveOccurred())
		return &e
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())

		workflows = &mockWorkflowCreator{}
		plans = &mockPlanCreator{}
		publisher = &recordingPublisher{}
		svc = expense.NewService(postgres.NewExpenseRepository(db), workflows, plans, publisher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	AfterEach(func() {
		Expect(testdb.Close(db)).To(Succeed())
	})

	Describe("UpdateStatus", func() {
		It("accepts exactly the transition table and audits each accepted change once", func() {
			for _, from := range expenseDatamodel.AllStatuses {
				for _, to := range expenseDatamodel.AllStatuses {
					exp := seed(from, true)
					before := reload(exp.ID)

					updated, err := svc.UpdateStatus(ctx, exp.ID, to, 5, "needs receipts")

					if allowed(from, to) {
						Expect(err).NotTo(HaveOccurred(), "%s -> %s", from, to)
						Expect(updated.Status).To(Equal(to))
						Expect(reload(exp.ID).Status).To(Equal(to))
						Expect(historyCount(exp.ID)).To(Equal(int64(1)), "%s -> %s", from, to)
					} else {
						Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue(), "%s -> %s", from, to)
						after := reload(exp.ID)
						Expect(after.Status).To(Equal(from))
						Expect(after.UpdatedAt).To(Equal(before.UpdatedAt))
						Expect(historyCount(exp.ID)).To(BeZero())
					}
					Expect(expense.CanTransition(from, to)).To(Equal(allowed(from, to)))
				}
			}
		})

		It("treats disbursed and cancelled as terminal", func() {
			Expect(expense.IsTerminal(expense.StatusDisbursed)).To(BeTrue())
			Expect(expense.IsTerminal(expense.StatusCancelled)).To(BeTrue())
			Expect(expense.IsTerminal(expense.StatusRejected)).To(BeFalse())
			Expect(expense.AllowedTransitions(expense.StatusDisbursed)).To(BeEmpty())
		})

		It("requires a reason to reject and leaves the expense untouched without one", func() {
			exp := seed(expense.StatusSubmitted, false)

			_, err := svc.Reject(ctx, exp.ID, 5, "   ")
			Expect(errors.Is(err, internal.ErrRejectionReasonRequired)).To(BeTrue())
			Expect(reload(exp.ID).Status).To(Equal(expense.StatusSubmitted))
			Expect(historyCount(exp.ID)).To(BeZero())

			rejected, err := svc.Reject(ctx, exp.ID, 5, "duplicate claim")
			Expect(err).NotTo(HaveOccurred())
			Expect(*rejected.RejectionReason).To(Equal("duplicate claim"))
		})

		It("rejects statuses outside the enum", func() {
			exp := seed(expense.StatusDraft, false)

			_, err := svc.UpdateStatus(ctx, exp.ID, expense.Status("PROCESSING"), 5, "")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("returns not found for an unknown expense", func() {
			_, err := svc.Approve(ctx, 999, 5)
			Expect(errors.Is(err, internal.ErrExpenseNotFound)).To(BeTrue())
		})

		It("queues payroll processing when an expense under review is approved", func() {
			exp := seed(expense.StatusUnderReview, true)

			approved, err := svc.Approve(ctx, exp.ID, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Status).To(Equal(expense.StatusApproved))
			Expect(approved.PayrollStatus).To(Equal(expenseDatamodel.PayrollStatusPending))
			Expect(*approved.ApprovedBy).To(Equal(int64(5)))
			Expect(publisher.types()).To(Equal([]string{events.EventTypeExpenseStatusChanged, events.EventTypeExpenseApproved}))
		})

		It("leaves payroll status alone when the expense is not added to payroll", func() {
			exp := seed(expense.StatusUnderReview, false)

			approved, err := svc.Approve(ctx, exp.ID, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.PayrollStatus).To(Equal(expenseDatamodel.PayrollStatusNotApplicable))
		})

		It("marks a disbursed expense as paid", func() {
			exp := seed(expense.StatusApproved, false)

			disbursed, err := svc.Disburse(ctx, exp.ID, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(disbursed.PaymentStatus).To(Equal(expenseDatamodel.PaymentStatusPaid))
			Expect(disbursed.DisbursedAt).NotTo(BeNil())
		})

		It("snapshots the state before and after the change", func() {
			exp := seed(expense.StatusDraft, false)
			_, err := svc.Submit(ctx, exp.ID, 11)
			Expect(err).NotTo(HaveOccurred())

			history, err := svc.History(ctx, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(1))
			Expect(history[0].Actor).To(Equal(int64(11)))

			var previous, current map[string]interface{}
			Expect(json.Unmarshal(history[0].PreviousSnapshot, &previous)).To(Succeed())
			Expect(json.Unmarshal(history[0].CurrentSnapshot, &current)).To(Succeed())
			Expect(previous["status"]).To(Equal("DRAFT"))
			Expect(current["status"]).To(Equal("SUBMITTED"))
		})
	})

	Describe("BulkApprove", func() {
		It("reports every item and commits only the valid ones", func() {
			ok1 := seed(expense.StatusUnderReview, true)
			draft := seed(expense.StatusDraft, true)
			ok2 := seed(expense.StatusUnderReview, false)

			result, err := svc.BulkApprove(ctx, []int64{ok1.ID, draft.ID, 999, ok2.ID}, 5)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.SuccessCount).To(Equal(2))
			Expect(result.FailedCount).To(Equal(2))
			Expect(result.Total()).To(Equal(4))
			Expect(result.Items[1].Success).To(BeFalse())
			Expect(result.Items[2].Success).To(BeFalse())

			Expect(reload(ok1.ID).Status).To(Equal(expense.StatusApproved))
			Expect(reload(ok2.ID).Status).To(Equal(expense.StatusApproved))
			Expect(reload(draft.ID).Status).To(Equal(expense.StatusDraft))
			Expect(historyCount(draft.ID)).To(BeZero())
		})
	})

	Describe("CreateExpense", func() {
		var dto expense.CreateExpenseDTO

		BeforeEach(func() {
			dto = expense.CreateExpenseDTO{
				EmployeeID:    11,
				Category:      "travel",
				Description:   "conference trip",
				TotalAmount:   decimal.RequireFromString("2450.75"),
				ExpenseDate:   time.Now().AddDate(0, 0, -3),
				PayrollEffect: expenseDatamodel.PayrollEffectAddToSalary,
			}
		})

		It("creates a draft with a reference and opens its workflow", func() {
			exp, err := svc.CreateExpense(ctx, dto, 2)
			Expect(err).NotTo(HaveOccurred())

			Expect(exp.Status).To(Equal(expense.StatusDraft))
			Expect(exp.Reference).To(MatchRegexp(`^EXP-\d{6}-[0-9A-F]{8}$`))
			Expect(exp.RemainingAmount.Equal(exp.TotalAmount)).To(BeTrue())
			Expect(exp.AddToPayroll).To(BeTrue())
			Expect(exp.Currency).To(Equal("USD"))
			Expect(workflows.created).To(Equal([]int64{exp.ID}))
			Expect(plans.calls).To(BeEmpty())
		})

		It("builds an installment plan for installment deductions", func() {
			dto.PayrollEffect = expenseDatamodel.PayrollEffectDeductInInstallments
			start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
			dto.InstallmentStartDate = &start

			exp, err := svc.CreateExpense(ctx, dto, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(plans.calls).To(Equal([]int64{exp.ID}))
			Expect(plans.start).To(Equal(start))
		})

		It("rejects an unknown payroll effect", func() {
			dto.PayrollEffect = expenseDatamodel.PayrollEffect("DEDUCT_LATER")

			_, err := svc.CreateExpense(ctx, dto, 2)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.GetDetailedMessage()).To(ContainSubstring("payroll_effect"))
		})

		It("rejects a non-positive amount", func() {
			dto.TotalAmount = decimal.NewFromInt(-5)

			_, err := svc.CreateExpense(ctx, dto, 2)
			Expect(err).To(HaveOccurred())
			var count int64
			Expect(db.Model(&expense.Expense{}).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})

	Describe("DeleteExpense", func() {
		It("tombstones drafts and hides them from reads", func() {
			exp := seed(expense.StatusDraft, false)

			Expect(svc.DeleteExpense(ctx, exp.ID)).To(Succeed())
			_, err := svc.GetExpense(ctx, exp.ID)
			Expect(errors.Is(err, internal.ErrExpenseNotFound)).To(BeTrue())
			Expect(reload(exp.ID).DeletedAt.Valid).To(BeTrue())
		})

		It("refuses to delete an expense in flight", func() {
			exp := seed(expense.StatusSubmitted, false)

			err := svc.DeleteExpense(ctx, exp.ID)
			Expect(errors.Is(err, internal.ErrCannotModifyExpense)).To(BeTrue())
		})
	})
})
