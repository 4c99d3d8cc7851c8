package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	installmentDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/installment"
	installmentPostgres "github.com/frahmantamala/payroll-admin/internal/installment/postgres"
	"github.com/frahmantamala/payroll-admin/internal/payroll"
	"gorm.io/gorm"
)

type PayrollRepository struct {
	db *gorm.DB
}

func NewPayrollRepository(db *gorm.DB) *PayrollRepository {
	return &PayrollRepository{db: db}
}

func (r *PayrollRepository) Transaction(ctx context.Context, fn func(payroll.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PayrollRepository{db: tx})
	})
}

func (r *PayrollRepository) ListPending(ctx context.Context, employeeID int64, approvedBy time.Time) ([]*expenseDatamodel.Expense, error) {
	var list []*expenseDatamodel.Expense
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Where("status = ? AND add_to_payroll = ?", expenseDatamodel.StatusApproved, true).
		Where("payroll_status IN ?", []expenseDatamodel.PayrollStatus{
			expenseDatamodel.PayrollStatusPending,
			expenseDatamodel.PayrollStatusPartiallyProcessed,
		}).
		Where("payroll_effect <> ?", expenseDatamodel.PayrollEffectNone).
		Where("remaining_amount > 0").
		Where("approved_at IS NULL OR approved_at <= ?", approvedBy).
		Order("approved_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *PayrollRepository) GetExpense(ctx context.Context, id int64) (*expenseDatamodel.Expense, error) {
	var exp expenseDatamodel.Expense
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrExpenseNotFound
		}
		return nil, err
	}
	return &exp, nil
}

func (r *PayrollRepository) SaveExpense(ctx context.Context, exp *expenseDatamodel.Expense) error {
	return r.db.WithContext(ctx).Save(exp).Error
}

// Installment rows are reached through the same handle so they join the
// caller's transaction.
func (r *PayrollRepository) NextDueInstallment(ctx context.Context, expenseID int64) (*installmentDatamodel.Installment, error) {
	return installmentPostgres.NewInstallmentRepository(r.db).NextDue(ctx, expenseID)
}

func (r *PayrollRepository) ConsumeInstallment(ctx context.Context, installmentID int64, payrollReference string, at time.Time) error {
	return installmentPostgres.NewInstallmentRepository(r.db).MarkProcessed(ctx, installmentID, payrollReference, at)
}

func (r *PayrollRepository) IntegrationExists(ctx context.Context, expenseID int64, payrollReference string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&payroll.Integration{}).
		Where("expense_id = ? AND payroll_reference = ?", expenseID, payrollReference).
		Count(&n).Error
	return n > 0, err
}

func (r *PayrollRepository) CreateIntegration(ctx context.Context, in *payroll.Integration) error {
	return r.db.WithContext(ctx).Create(in).Error
}

func (r *PayrollRepository) ListIntegrations(ctx context.Context, expenseID int64) ([]*payroll.Integration, error) {
	var list []*payroll.Integration
	err := r.db.WithContext(ctx).
		Where("expense_id = ?", expenseID).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *PayrollRepository) CreatePeriod(ctx context.Context, p *payroll.Period) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PayrollRepository) GetPeriod(ctx context.Context, id int64) (*payroll.Period, error) {
	var p payroll.Period
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PayrollRepository) SavePeriod(ctx context.Context, p *payroll.Period) error {
	return r.db.WithContext(ctx).Save(p).Error
}
