package payroll_test

import (
	"context"
	"errors"
	"fmt"
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
	payrollDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-admin/internal/core/events"
	"github.com/frahmantamala/payroll-admin/internal/core/testdb"
	"github.com/frahmantamala/payroll-admin/internal/payroll"
	"github.com/frahmantamala/payroll-admin/internal/payroll/postgres"
)

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

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("Engine", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		engine    *payroll.Engine
		publisher *recordingPublisher
		march     payroll.Cycle
		seq       int
	)

	seed := func(employeeID int64, effect expenseDatamodel.PayrollEffect, amount string, mutate func(*expenseDatamodel.Expense)) *expenseDatamodel.Expense {
		seq++
		approvedAt := day(2025, 3, 5)
		exp := &expenseDatamodel.Expense{
			Reference:       fmt.Sprintf("EXP-202503-%04d", seq),
			EmployeeID:      employeeID,
			CreatedBy:       2,
			Description:     "expense",
			TotalAmount:     dec(amount),
			RemainingAmount: dec(amount),
			Currency:        "USD",
			Status:          expenseDatamodel.StatusApproved,
			PaymentStatus:   expenseDatamodel.PaymentStatusUnpaid,
			PayrollEffect:   effect,
			AddToPayroll:    true,
			PayrollStatus:   expenseDatamodel.PayrollStatusPending,
			ExpenseDate:     day(2025, 3, 1),
			ApprovedAt:      &approvedAt,
		}
		if mutate != nil {
			mutate(exp)
		}
		Expect(db.Create(exp).Error).NotTo(HaveOccurred())
		return exp
	}

	seedPlan := func(exp *expenseDatamodel.Expense, amounts ...string) {
		remaining := exp.TotalAmount
		plan := &installmentDatamodel.Plan{
			ExpenseID:            exp.ID,
			TotalAmount:          exp.TotalAmount,
			InstallmentAmount:    dec(amounts[0]),
			NumberOfInstallments: len(amounts),
			StartDate:            day(2025, 3, 28),
			EndDate:              day(2025, time.Month(2+len(amounts)), 28),
		}
		for i, a := range amounts {
			remaining = remaining.Sub(dec(a))
			plan.Installments = append(plan.Installments, installmentDatamodel.Installment{
				InstallmentNumber: i + 1,
				ScheduledDate:     day(2025, time.Month(3+i), 28),
				Amount:            dec(a),
				RemainingBalance:  remaining,
			})
		}
		Expect(db.Create(plan).Error).NotTo(HaveOccurred())
	}

	reload := func(id int64) *expenseDatamodel.Expense {
		var e expenseDatamodel.Expense
		Expect(db.First(&e, id).Error).NotTo(HaveOccurred())
		return &e
	}

	integrations := func(id int64) int64 {
		var n int64
		Expect(db.Model(&payroll.Integration{}).Where("expense_id = ?", id).Count(&n).Error).NotTo(HaveOccurred())
		return n
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())

		publisher = &recordingPublisher{}
		engine = payroll.NewEngine(postgres.NewPayrollRepository(db), publisher, slog.New(slog.NewTextHandler(io.Discard, nil)))
		march = payroll.Cycle{Start: day(2025, 3, 1), End: day(2025, 3, 31)}
	})

	AfterEach(func() {
		Expect(testdb.Close(db)).To(Succeed())
	})

	Describe("Collect", func() {
		It("partitions pending expenses into additions and deductions", func() {
			addition := seed(11, expenseDatamodel.PayrollEffectAddToSalary, "300.00", nil)
			capped := seed(11, expenseDatamodel.PayrollEffectDeductFromSalary, "200.00", func(e *expenseDatamodel.Expense) {
				amount := dec("50.00")
				e.InstallmentAmount = &amount
			})
			amortized := seed(11, expenseDatamodel.PayrollEffectDeductInInstallments, "250.00", nil)
			seedPlan(amortized, "100.00", "100.00", "50.00")

			seed(11, expenseDatamodel.PayrollEffectAddToSalary, "40.00", func(e *expenseDatamodel.Expense) {
				e.Status = expenseDatamodel.StatusUnderReview
			})
			seed(11, expenseDatamodel.PayrollEffectAddToSalary, "40.00", func(e *expenseDatamodel.Expense) {
				e.AddToPayroll = false
			})
			seed(11, expenseDatamodel.PayrollEffectAddToSalary, "40.00", func(e *expenseDatamodel.Expense) {
				late := day(2025, 4, 2)
				e.ApprovedAt = &late
			})
			seed(12, expenseDatamodel.PayrollEffectAddToSalary, "40.00", nil)

			summary, err := engine.Collect(ctx, 11, march)
			Expect(err).NotTo(HaveOccurred())

			Expect(summary.Additions).To(HaveLen(1))
			Expect(summary.Additions[0].ExpenseID).To(Equal(addition.ID))
			Expect(summary.Deductions).To(HaveLen(2))
			Expect(summary.TotalAdditions.Equal(dec("300"))).To(BeTrue())
			Expect(summary.TotalDeductions.Equal(dec("150"))).To(BeTrue(), summary.TotalDeductions.String())
			Expect(summary.NetAdjustment.Equal(dec("150"))).To(BeTrue())

			for _, line := range summary.Deductions {
				switch line.ExpenseID {
				case capped.ID:
					Expect(line.Amount.Equal(dec("50"))).To(BeTrue())
				case amortized.ID:
					Expect(line.Amount.Equal(dec("100"))).To(BeTrue())
					Expect(*line.InstallmentNumber).To(Equal(1))
				default:
					Fail("unexpected deduction line")
				}
			}
		})

		It("never asks for more than remains", func() {
			exp := seed(11, expenseDatamodel.PayrollEffectDeductFromSalary, "500.00", func(e *expenseDatamodel.Expense) {
				e.RemainingAmount = dec("120.00")
				e.PayrollStatus = expenseDatamodel.PayrollStatusPartiallyProcessed
			})

			summary, err := engine.Collect(ctx, 11, march)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Deductions).To(HaveLen(1))
			Expect(summary.Deductions[0].ExpenseID).To(Equal(exp.ID))
			Expect(summary.Deductions[0].Amount.Equal(dec("120"))).To(BeTrue())
		})

		It("rejects a cycle that ends before it starts", func() {
			_, err := engine.Collect(ctx, 11, payroll.Cycle{Start: march.End, End: march.Start})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})
	})

	Describe("MarkAsProcessed", func() {
		It("commits valid expenses and reports invalid ones without side effects", func() {
			addition := seed(11, expenseDatamodel.PayrollEffectAddToSalary, "300.00", nil)
			draft := seed(11, expenseDatamodel.PayrollEffectAddToSalary, "80.00", func(e *expenseDatamodel.Expense) {
				e.Status = expenseDatamodel.StatusDraft
				e.PayrollStatus = expenseDatamodel.PayrollStatusNotApplicable
			})
			amortized := seed(11, expenseDatamodel.PayrollEffectDeductInInstallments, "250.00", nil)
			seedPlan(amortized, "100.00", "100.00", "50.00")

			ids := []int64{addition.ID, 999, draft.ID, amortized.ID}
			result, err := engine.MarkAsProcessed(ctx, ids, "PR-2025-03", march)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.SuccessCount).To(Equal(2))
			Expect(result.FailedCount).To(Equal(2))
			Expect(result.SuccessCount + result.FailedCount).To(Equal(len(ids)))
			Expect(result.Items).To(HaveLen(4))
			Expect(result.Items[1].Success).To(BeFalse())
			Expect(result.Items[2].Success).To(BeFalse())

			added := reload(addition.ID)
			Expect(added.RemainingAmount.IsZero()).To(BeTrue())
			Expect(added.PayrollStatus).To(Equal(expenseDatamodel.PayrollStatusAdded))
			Expect(integrations(addition.ID)).To(Equal(int64(1)))

			partial := reload(amortized.ID)
			Expect(partial.RemainingAmount.Equal(dec("150"))).To(BeTrue())
			Expect(partial.PayrollStatus).To(Equal(expenseDatamodel.PayrollStatusPartiallyProcessed))

			var first installmentDatamodel.Installment
			Expect(db.Where("installment_number = ?", 1).First(&first).Error).NotTo(HaveOccurred())
			Expect(first.IsProcessed).To(BeTrue())
			Expect(*first.PayrollReference).To(Equal("PR-2025-03"))

			untouched := reload(draft.ID)
			Expect(untouched.RemainingAmount.Equal(dec("80"))).To(BeTrue())
			Expect(untouched.PayrollStatus).To(Equal(expenseDatamodel.PayrollStatusNotApplicable))
			Expect(integrations(draft.ID)).To(BeZero())

			Expect(publisher.count()).To(Equal(2))
		})

		It("skips expenses already committed under the same reference", func() {
			amortized := seed(11, expenseDatamodel.PayrollEffectDeductInInstallments, "250.00", nil)
			seedPlan(amortized, "100.00", "100.00", "50.00")

			_, err := engine.MarkAsProcessed(ctx, []int64{amortized.ID}, "PR-2025-03", march)
			Expect(err).NotTo(HaveOccurred())

			again, err := engine.MarkAsProcessed(ctx, []int64{amortized.ID}, "PR-2025-03", march)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.SuccessCount).To(Equal(1))
			Expect(again.Items[0].Skipped).To(BeTrue())

			Expect(integrations(amortized.ID)).To(Equal(int64(1)))
			Expect(reload(amortized.ID).RemainingAmount.Equal(dec("150"))).To(BeTrue())
			Expect(publisher.count()).To(Equal(1))
		})

		It("consumes one installment per run until the expense is fully deducted", func() {
			amortized := seed(11, expenseDatamodel.PayrollEffectDeductInInstallments, "250.00", nil)
			seedPlan(amortized, "100.00", "100.00", "50.00")

			refs := []string{"PR-2025-03", "PR-2025-04", "PR-2025-05"}
			remaining := []string{"150", "50", "0"}
			for i, ref := range refs {
				result, err := engine.MarkAsProcessed(ctx, []int64{amortized.ID}, ref, march)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.SuccessCount).To(Equal(1), ref)
				Expect(reload(amortized.ID).RemainingAmount.Equal(dec(remaining[i]))).To(BeTrue(), ref)
			}
			Expect(reload(amortized.ID).PayrollStatus).To(Equal(expenseDatamodel.PayrollStatusDeducted))

			history, err := engine.History(ctx, amortized.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(3))
			Expect(*history[2].InstallmentNumber).To(Equal(3))
			Expect(history[2].ProcessedAmount.Equal(dec("50"))).To(BeTrue())

			result, err := engine.MarkAsProcessed(ctx, []int64{amortized.ID}, "PR-2025-06", march)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.FailedCount).To(Equal(1))
			Expect(integrations(amortized.ID)).To(Equal(int64(3)))
		})

		It("validates the batch before touching anything", func() {
			_, err := engine.MarkAsProcessed(ctx, nil, "PR-2025-03", march)
			Expect(err).To(HaveOccurred())

			_, err = engine.MarkAsProcessed(ctx, []int64{1}, "", march)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})
	})

	Describe("periods", func() {
		It("closes an open period once", func() {
			p, err := engine.CreatePeriod(ctx, payroll.CreatePeriodDTO{
				Name:      "March 2025",
				StartDate: march.Start,
				EndDate:   march.End,
			})
			Expect(err).NotTo(HaveOccurred())

			closed, err := engine.ClosePeriod(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(closed.Status).To(Equal(payrollDatamodel.PeriodStatusClosed))

			_, err = engine.ClosePeriod(ctx, p.ID)
			Expect(errors.Is(err, internal.ErrPeriodClosed)).To(BeTrue())

			_, err = engine.ClosePeriod(ctx, 404)
			Expect(errors.Is(err, internal.ErrNotFound)).To(BeTrue())
		})
	})
})
