package accounting_test

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
	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/accounting"
	"github.com/frahmantamala/payroll-admin/internal/accounting/postgres"
	"github.com/frahmantamala/payroll-admin/internal/core/common/batch"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	payrollDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/payroll"
	syncDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/sync"
	"github.com/frahmantamala/payroll-admin/internal/core/testdb"
	"github.com/frahmantamala/payroll-admin/internal/synclog"
	synclogPostgres "github.com/frahmantamala/payroll-admin/internal/synclog/postgres"
)

type fakeClient struct {
	failing  map[string]bool
	expenses []accounting.ExpensePayload
	periods  []accounting.PayrollPeriodPayload
}

func (f *fakeClient) SyncExpense(_ context.Context, p accounting.ExpensePayload) (*accounting.Result, error) {
	f.expenses = append(f.expenses, p)
	if f.failing[p.Reference] {
		return nil, fmt.Errorf("%w: accounting API returned status 503", internal.ErrExternalSyncFailure)
	}
	return &accounting.Result{Success: true, Message: "ok", ExternalID: "QB-" + p.Reference}, nil
}

func (f *fakeClient) SyncPayrollPeriod(_ context.Context, p accounting.PayrollPeriodPayload) (*accounting.Result, error) {
	f.periods = append(f.periods, p)
	return &accounting.Result{Success: true, Message: "ok", ExternalID: fmt.Sprintf("JE-%d", p.PeriodID)}, nil
}

func (f *fakeClient) TestConnection(context.Context) (*accounting.Result, error) {
	return &accounting.Result{Success: true, Message: "connected"}, nil
}

type brokenRepo struct {
	accounting.Repository
	err error
}

func (r *brokenRepo) SaveExpenseSyncStatus(context.Context, *accounting.ExpenseSyncStatus) error {
	return r.err
}

func (r *brokenRepo) ListIntegrationsBetween(context.Context, time.Time, time.Time) ([]*payrollDatamodel.Integration, error) {
	return nil, r.err
}

var _ = Describe("Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		client   *fakeClient
		logs     *synclog.Service
		svc      *accounting.Service
		settings synclog.Settings
		seq      int
		logger   *slog.Logger
	)

	seedExpense := func(status expenseDatamodel.Status) *expenseDatamodel.Expense {
		seq++
		exp := &expenseDatamodel.Expense{
			Reference:       fmt.Sprintf("EXP-202503-%04d", seq),
			EmployeeID:      11,
			CreatedBy:       2,
			Description:     "hotel",
			TotalAmount:     decimal.NewFromInt(250),
			RemainingAmount: decimal.NewFromInt(250),
			Currency:        "USD",
			Status:          status,
			PaymentStatus:   expenseDatamodel.PaymentStatusUnpaid,
			PayrollEffect:   expenseDatamodel.PayrollEffectAddToSalary,
			AddToPayroll:    true,
			PayrollStatus:   expenseDatamodel.PayrollStatusPending,
			ExpenseDate:     time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		}
		Expect(db.Create(exp).Error).NotTo(HaveOccurred())
		return exp
	}

	seedPeriod := func(status payrollDatamodel.PeriodStatus) *payrollDatamodel.Period {
		p := &payrollDatamodel.Period{
			Name:      "March 2025",
			StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
			Status:    status,
		}
		Expect(db.Create(p).Error).NotTo(HaveOccurred())
		return p
	}

	expenseStatus := func(id int64) *accounting.ExpenseSyncStatus {
		var st accounting.ExpenseSyncStatus
		Expect(db.Where("expense_id = ?", id).First(&st).Error).NotTo(HaveOccurred())
		return &st
	}

	logsFor := func(t syncDatamodel.Type, id int64) []*synclog.Log {
		list, err := logs.ListBySource(ctx, t, id)
		Expect(err).NotTo(HaveOccurred())
		return list
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())

		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		client = &fakeClient{failing: map[string]bool{}}
		logs = synclog.NewService(synclogPostgres.NewSyncLogRepository(db), synclog.Defaults{MaxRetries: 3, RetryBaseDelay: time.Minute}, nil, logger)
		svc = accounting.NewService(postgres.NewAccountingRepository(db), client, logs, 50, logger)
		settings, err = logs.Settings(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(testdb.Close(db)).To(Succeed())
	})

	Describe("SyncExpense", func() {
		It("records the external id and a successful log", func() {
			exp := seedExpense(expenseDatamodel.StatusApproved)

			o, err := svc.SyncExpense(ctx, settings, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Success).To(BeTrue())

			st := expenseStatus(exp.ID)
			Expect(st.Status).To(Equal(syncDatamodel.StatusSuccess))
			Expect(*st.ExternalID).To(Equal("QB-" + exp.Reference))

			list := logsFor(syncDatamodel.TypeExpense, exp.ID)
			Expect(list).To(HaveLen(1))
			Expect(list[0].Status).To(Equal(syncDatamodel.StatusSuccess))
		})

		It("sends the known external id on a second sync", func() {
			exp := seedExpense(expenseDatamodel.StatusApproved)
			_, err := svc.SyncExpense(ctx, settings, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.SyncExpense(ctx, settings, exp.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(client.expenses).To(HaveLen(2))
			Expect(client.expenses[0].ExternalID).To(BeEmpty())
			Expect(client.expenses[1].ExternalID).To(Equal("QB-" + exp.Reference))
		})

		It("captures failures and schedules a retry", func() {
			exp := seedExpense(expenseDatamodel.StatusApproved)
			client.failing[exp.Reference] = true

			o, err := svc.SyncExpense(ctx, settings, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Success).To(BeFalse())
			Expect(o.Message).To(ContainSubstring("503"))

			st := expenseStatus(exp.ID)
			Expect(st.Status).To(Equal(syncDatamodel.StatusFailed))
			Expect(*st.LastError).To(ContainSubstring("503"))

			list := logsFor(syncDatamodel.TypeExpense, exp.ID)
			Expect(list).To(HaveLen(1))
			Expect(list[0].Status).To(Equal(syncDatamodel.StatusFailed))
			Expect(list[0].NextRetryAt).NotTo(BeNil())
		})

		It("skips without calling out when expense sync is disabled", func() {
			exp := seedExpense(expenseDatamodel.StatusApproved)
			settings.ExpenseSyncEnabled = false

			o, err := svc.SyncExpense(ctx, settings, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Skipped).To(BeTrue())
			Expect(client.expenses).To(BeEmpty())
			Expect(logsFor(syncDatamodel.TypeExpense, exp.ID)[0].Status).To(Equal(syncDatamodel.StatusSkipped))
		})

		It("skips expenses that are not approved yet", func() {
			exp := seedExpense(expenseDatamodel.StatusSubmitted)

			o, err := svc.SyncExpense(ctx, settings, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Skipped).To(BeTrue())
			Expect(client.expenses).To(BeEmpty())
		})

		It("fails the log when the sync status cannot be saved", func() {
			exp := seedExpense(expenseDatamodel.StatusApproved)
			broken := accounting.NewService(&brokenRepo{Repository: postgres.NewAccountingRepository(db), err: errors.New("db down")}, client, logs, 50, logger)

			_, err := broken.SyncExpense(ctx, settings, exp.ID)
			Expect(err).To(HaveOccurred())

			list := logsFor(syncDatamodel.TypeExpense, exp.ID)
			Expect(list).To(HaveLen(1))
			Expect(list[0].Status).To(Equal(syncDatamodel.StatusFailed))
			Expect(list[0].Message).To(ContainSubstring("db down"))
			Expect(list[0].NextRetryAt).NotTo(BeNil())

			due, err := logs.DueForRetry(ctx, time.Now().UTC().Add(time.Hour), 10, syncDatamodel.TypeExpense)
			Expect(err).NotTo(HaveOccurred())
			Expect(due).To(HaveLen(1))
			Expect(due[0].ID).To(Equal(list[0].ID))
		})

		It("fails the log when payroll lines cannot be loaded", func() {
			period := seedPeriod(payrollDatamodel.PeriodStatusClosed)
			broken := accounting.NewService(&brokenRepo{Repository: postgres.NewAccountingRepository(db), err: errors.New("db down")}, client, logs, 50, logger)

			_, err := broken.SyncPayrollPeriod(ctx, settings, period.ID)
			Expect(err).To(HaveOccurred())
			Expect(client.periods).To(BeEmpty())

			list := logsFor(syncDatamodel.TypePayrollPeriod, period.ID)
			Expect(list).To(HaveLen(1))
			Expect(list[0].Status).To(Equal(syncDatamodel.StatusFailed))
			Expect(list[0].NextRetryAt).NotTo(BeNil())
		})

		It("reports unknown expenses", func() {
			_, err := svc.SyncExpense(ctx, settings, 999)
			Expect(errors.Is(err, internal.ErrExpenseNotFound)).To(BeTrue())
		})
	})

	Describe("BatchSyncExpenses", func() {
		It("tracks each item independently", func() {
			ok := seedExpense(expenseDatamodel.StatusApproved)
			bad := seedExpense(expenseDatamodel.StatusApproved)
			client.failing[bad.Reference] = true

			o := svc.BatchSyncExpenses(ctx, settings, []int64{ok.ID, 999, bad.ID})
			Expect(o.Success).To(BeFalse())

			result, isBatch := o.Data.(*batch.Result)
			Expect(isBatch).To(BeTrue())
			Expect(result.SuccessCount).To(Equal(1))
			Expect(result.FailedCount).To(Equal(2))
			Expect(result.Total()).To(Equal(3))
			Expect(expenseStatus(ok.ID).Status).To(Equal(syncDatamodel.StatusSuccess))
		})
	})

	Describe("SyncPayrollPeriod", func() {
		It("sends the period's payroll commits as one entry", func() {
			p := seedPeriod(payrollDatamodel.PeriodStatusClosed)
			for i, op := range []payrollDatamodel.Operation{payrollDatamodel.OperationAdd, payrollDatamodel.OperationDeduct, payrollDatamodel.OperationDeduct} {
				Expect(db.Create(&payrollDatamodel.Integration{
					ExpenseID:        int64(i + 1),
					EmployeeID:       11,
					PayrollReference: "PR-2025-03",
					PeriodStart:      p.StartDate,
					PeriodEnd:        p.EndDate,
					Operation:        op,
					ProcessedAmount:  decimal.NewFromInt(int64(100 * (i + 1))),
					RemainingAmount:  decimal.Zero,
				}).Error).NotTo(HaveOccurred())
			}

			o, err := svc.SyncPayrollPeriod(ctx, settings, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Success).To(BeTrue())

			Expect(client.periods).To(HaveLen(1))
			sent := client.periods[0]
			Expect(sent.Lines).To(HaveLen(3))
			Expect(sent.TotalAdditions.Equal(decimal.NewFromInt(100))).To(BeTrue())
			Expect(sent.TotalDeductions.Equal(decimal.NewFromInt(500))).To(BeTrue())

			var st accounting.PayrollSyncStatus
			Expect(db.Where("period_id = ?", p.ID).First(&st).Error).NotTo(HaveOccurred())
			Expect(*st.ExternalID).To(Equal(fmt.Sprintf("JE-%d", p.ID)))
		})

		It("skips when payroll sync is disabled", func() {
			p := seedPeriod(payrollDatamodel.PeriodStatusClosed)
			settings.PayrollSyncEnabled = false

			o, err := svc.SyncPayrollPeriod(ctx, settings, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Skipped).To(BeTrue())
			Expect(client.periods).To(BeEmpty())
		})
	})

	Describe("FullSync and SyncPending", func() {
		It("pushes every approved expense and closed period that is missing", func() {
			a := seedExpense(expenseDatamodel.StatusApproved)
			seedExpense(expenseDatamodel.StatusDraft)
			d := seedExpense(expenseDatamodel.StatusDisbursed)
			seedPeriod(payrollDatamodel.PeriodStatusOpen)
			closed := seedPeriod(payrollDatamodel.PeriodStatusClosed)

			o := svc.FullSync(ctx, settings)
			Expect(o.Success).To(BeTrue(), o.Message)
			Expect(client.expenses).To(HaveLen(2))
			Expect(client.periods).To(HaveLen(1))
			Expect(client.periods[0].PeriodID).To(Equal(closed.ID))
			Expect(expenseStatus(a.ID).Status).To(Equal(syncDatamodel.StatusSuccess))
			Expect(expenseStatus(d.ID).Status).To(Equal(syncDatamodel.StatusSuccess))
			Expect(logsFor(syncDatamodel.TypeFullSync, 0)).To(HaveLen(1))

			svc.FullSync(ctx, settings)
			Expect(client.expenses).To(HaveLen(2))
		})

		It("leaves failed items to the retry sweep when syncing pending ones", func() {
			failed := seedExpense(expenseDatamodel.StatusApproved)
			client.failing[failed.Reference] = true
			_, err := svc.SyncExpense(ctx, settings, failed.ID)
			Expect(err).NotTo(HaveOccurred())
			fresh := seedExpense(expenseDatamodel.StatusApproved)

			o := svc.SyncPending(ctx, settings)
			Expect(o.Success).To(BeTrue(), o.Message)
			Expect(client.expenses).To(HaveLen(2))
			Expect(client.expenses[1].ExpenseID).To(Equal(fresh.ID))
		})
	})

	Describe("RetryFailed", func() {
		It("reruns due failures on their original log", func() {
			exp := seedExpense(expenseDatamodel.StatusApproved)
			client.failing[exp.Reference] = true
			_, err := svc.SyncExpense(ctx, settings, exp.ID)
			Expect(err).NotTo(HaveOccurred())

			o := svc.RetryFailed(ctx, settings, time.Now().UTC())
			Expect(o.Data.(*batch.Result).Total()).To(BeZero())

			delete(client.failing, exp.Reference)
			o = svc.RetryFailed(ctx, settings, time.Now().UTC().Add(time.Hour))
			Expect(o.Success).To(BeTrue(), o.Message)
			Expect(o.Data.(*batch.Result).SuccessCount).To(Equal(1))

			list := logsFor(syncDatamodel.TypeExpense, exp.ID)
			Expect(list).To(HaveLen(1))
			Expect(list[0].Status).To(Equal(syncDatamodel.StatusSuccess))
			Expect(list[0].RetryCount).To(Equal(1))
			Expect(expenseStatus(exp.ID).Status).To(Equal(syncDatamodel.StatusSuccess))
		})

		It("does nothing while accounting sync is switched off", func() {
			settings.ExpenseSyncEnabled = false
			settings.PayrollSyncEnabled = false

			o := svc.RetryFailed(ctx, settings, time.Now().UTC())
			Expect(o.Skipped).To(BeTrue())
		})
	})
})
