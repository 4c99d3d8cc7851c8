package installment_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-admin/internal"
	employeeDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/employee"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	"github.com/frahmantamala/payroll-admin/internal/installment"
	"github.com/frahmantamala/payroll-admin/internal/installment/postgres"
	"github.com/frahmantamala/payroll-admin/internal/threshold"
)

type fixedThreshold struct {
	t threshold.Threshold
}

func (f fixedThreshold) Resolve(context.Context, int64, time.Time) threshold.Threshold {
	return f.t
}

type employeeStub struct {
	salary decimal.Decimal
	err    error
}

func (e employeeStub) GetByID(_ context.Context, id int64) (*employeeDatamodel.Employee, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &employeeDatamodel.Employee{ID: id, BaseSalary: e.salary}, nil
}

var _ = Describe("Service", func() {
	var (
		ctx    context.Context
		db     *gorm.DB
		svc    *installment.Service
		exp    *expenseDatamodel.Expense
		start  time.Time
		logger *slog.Logger
	)

	newService := func(t threshold.Threshold, emp employeeStub) *installment.Service {
		return installment.NewService(postgres.NewInstallmentRepository(db), fixedThreshold{t: t}, emp, logger)
	}

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		start = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&expenseDatamodel.Expense{}, &installment.Plan{}, &installment.Installment{})).To(Succeed())

		exp = &expenseDatamodel.Expense{
			Reference:       "EXP-202502-0000abcd",
			EmployeeID:      3,
			CreatedBy:       1,
			Description:     "laptop advance",
			TotalAmount:     decimal.NewFromInt(10000),
			RemainingAmount: decimal.NewFromInt(10000),
			Currency:        "USD",
			Status:          expenseDatamodel.StatusDraft,
			PaymentStatus:   expenseDatamodel.PaymentStatusUnpaid,
			PayrollEffect:   expenseDatamodel.PayrollEffectDeductInInstallments,
			PayrollStatus:   expenseDatamodel.PayrollStatusNotApplicable,
			ExpenseDate:     start,
		}
		Expect(db.Create(exp).Error).NotTo(HaveOccurred())

		svc = newService(threshold.Threshold{MaxAmount: decimal.NewFromInt(3000), Percentage: decimal.NewFromInt(70)}, employeeStub{})
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("CreatePlan", func() {
		It("persists the threshold-bounded schedule and records the first installment on the expense", func() {
			plan, err := svc.CreatePlan(ctx, exp, start)
			Expect(err).NotTo(HaveOccurred())

			Expect(plan.NumberOfInstallments).To(Equal(4))
			Expect(plan.InstallmentAmount.Equal(decimal.NewFromInt(3000))).To(BeTrue())
			Expect(plan.EndDate).To(Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)))

			var stored expenseDatamodel.Expense
			Expect(db.First(&stored, exp.ID).Error).NotTo(HaveOccurred())
			Expect(stored.InstallmentAmount).NotTo(BeNil())
			Expect(stored.InstallmentAmount.Equal(decimal.NewFromInt(3000))).To(BeTrue())

			var count int64
			Expect(db.Model(&installment.Installment{}).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(4)))
		})

		It("uses the salary share when it is below the max amount", func() {
			svc = newService(
				threshold.Threshold{MaxAmount: decimal.NewFromInt(5000), Percentage: decimal.NewFromInt(50)},
				employeeStub{salary: decimal.NewFromInt(4000)},
			)

			plan, err := svc.CreatePlan(ctx, exp, start)
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.InstallmentAmount.Equal(decimal.NewFromInt(2000))).To(BeTrue())
			Expect(plan.NumberOfInstallments).To(Equal(5))
		})

		It("honours a requested installment amount below the threshold", func() {
			requested := decimal.NewFromInt(2500)
			exp.InstallmentAmount = &requested

			plan, err := svc.CreatePlan(ctx, exp, start)
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.NumberOfInstallments).To(Equal(4))
			Expect(plan.InstallmentAmount.Equal(requested)).To(BeTrue())
		})

		It("keeps installments in whole cents for a sub-cent requested amount", func() {
			exp.TotalAmount = decimal.NewFromInt(100)
			requested := decimal.RequireFromString("33.335")
			exp.InstallmentAmount = &requested

			plan, err := svc.CreatePlan(ctx, exp, start)
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.InstallmentAmount.String()).To(Equal("33.33"))
			Expect(plan.NumberOfInstallments).To(Equal(4))

			var rows []installment.Installment
			Expect(db.Order("installment_number ASC").Find(&rows).Error).NotTo(HaveOccurred())
			sum := decimal.Zero
			for _, row := range rows {
				Expect(row.Amount.Equal(row.Amount.Truncate(2))).To(BeTrue())
				sum = sum.Add(row.Amount)
			}
			Expect(sum.Equal(decimal.NewFromInt(100))).To(BeTrue())
			Expect(rows[3].Amount.String()).To(Equal("0.01"))
		})

		It("falls back to the max amount when the employee cannot be loaded", func() {
			svc = newService(
				threshold.Threshold{MaxAmount: decimal.NewFromInt(5000), Percentage: decimal.NewFromInt(10)},
				employeeStub{err: errors.New("gone")},
			)

			plan, err := svc.CreatePlan(ctx, exp, start)
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.NumberOfInstallments).To(Equal(2))
		})

		It("returns the existing plan on a second call", func() {
			first, err := svc.CreatePlan(ctx, exp, start)
			Expect(err).NotTo(HaveOccurred())

			second, err := svc.CreatePlan(ctx, exp, start.AddDate(0, 3, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))
			Expect(second.Installments).To(HaveLen(4))
		})
	})

	Describe("NextDue and MarkProcessed", func() {
		It("walks installments in order until the plan is exhausted", func() {
			_, err := svc.CreatePlan(ctx, exp, start)
			Expect(err).NotTo(HaveOccurred())

			for n := 1; n <= 4; n++ {
				next, err := svc.NextDue(ctx, exp.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(next.InstallmentNumber).To(Equal(n))
				Expect(svc.MarkProcessed(ctx, next.ID, fmt.Sprintf("PR-2025-%02d", n))).To(Succeed())
			}

			_, err = svc.NextDue(ctx, exp.ID)
			Expect(errors.Is(err, internal.ErrNotFound)).To(BeTrue())
		})

		It("does not mark an installment twice", func() {
			_, err := svc.CreatePlan(ctx, exp, start)
			Expect(err).NotTo(HaveOccurred())
			next, err := svc.NextDue(ctx, exp.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.MarkProcessed(ctx, next.ID, "PR-1")).To(Succeed())
			Expect(errors.Is(svc.MarkProcessed(ctx, next.ID, "PR-2"), internal.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Preview", func() {
		It("summarises a schedule without persisting", func() {
			p, err := svc.Preview(decimal.NewFromInt(10000), decimal.NewFromInt(3000), start)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.NumberOfInstallments).To(Equal(4))
			Expect(p.Installments[3].Amount.String()).To(Equal("1000"))

			var count int64
			Expect(db.Model(&installment.Plan{}).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})
})
