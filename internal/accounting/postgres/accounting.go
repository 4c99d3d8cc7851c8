package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/accounting"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	payrollDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/payroll"
	syncDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/sync"
	"gorm.io/gorm"
)

type AccountingRepository struct {
	db *gorm.DB
}

func NewAccountingRepository(db *gorm.DB) *AccountingRepository {
	return &AccountingRepository{db: db}
}

func (r *AccountingRepository) GetExpense(ctx context.Context, id int64) (*expenseDatamodel.Expense, error) {
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

func (r *AccountingRepository) GetPeriod(ctx context.Context, id int64) (*payrollDatamodel.Period, error) {
	var p payrollDatamodel.Period
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *AccountingRepository) ListIntegrationsBetween(ctx context.Context, start, end time.Time) ([]*payrollDatamodel.Integration, error) {
	var list []*payrollDatamodel.Integration
	err := r.db.WithContext(ctx).
		Where("period_start >= ? AND period_end <= ?", start, end).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (r *AccountingRepository) GetExpenseSyncStatus(ctx context.Context, expenseID int64) (*accounting.ExpenseSyncStatus, error) {
	var st accounting.ExpenseSyncStatus
	err := r.db.WithContext(ctx).Where("expense_id = ?", expenseID).First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func (r *AccountingRepository) SaveExpenseSyncStatus(ctx context.Context, st *accounting.ExpenseSyncStatus) error {
	return r.db.WithContext(ctx).Save(st).Error
}

func (r *AccountingRepository) GetPayrollSyncStatus(ctx context.Context, periodID int64) (*accounting.PayrollSyncStatus, error) {
	var st accounting.PayrollSyncStatus
	err := r.db.WithContext(ctx).Where("period_id = ?", periodID).First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func (r *AccountingRepository) SavePayrollSyncStatus(ctx context.Context, st *accounting.PayrollSyncStatus) error {
	return r.db.WithContext(ctx).Save(st).Error
}

func (r *AccountingRepository) ListUnsyncedExpenseIDs(ctx context.Context, pendingOnly bool, limit int) ([]int64, error) {
	q := r.db.WithContext(ctx).
		Model(&expenseDatamodel.Expense{}).
		Joins("LEFT JOIN expense_sync_statuses s ON s.expense_id = expenses.id").
		Where("expenses.status IN ?", []expenseDatamodel.Status{
			expenseDatamodel.StatusApproved,
			expenseDatamodel.StatusDisbursed,
		})
	q = unsynced(q, pendingOnly)

	var ids []int64
	err := q.Order("expenses.id ASC").Limit(limit).Pluck("expenses.id", &ids).Error
	return ids, err
}

func (r *AccountingRepository) ListUnsyncedPeriodIDs(ctx context.Context, pendingOnly bool, limit int) ([]int64, error) {
	q := r.db.WithContext(ctx).
		Model(&payrollDatamodel.Period{}).
		Joins("LEFT JOIN payroll_sync_statuses s ON s.period_id = payroll_periods.id").
		Where("payroll_periods.status = ?", payrollDatamodel.PeriodStatusClosed)
	q = unsynced(q, pendingOnly)

	var ids []int64
	err := q.Order("payroll_periods.id ASC").Limit(limit).Pluck("payroll_periods.id", &ids).Error
	return ids, err
}

func unsynced(q *gorm.DB, pendingOnly bool) *gorm.DB {
	if pendingOnly {
		return q.Where("s.id IS NULL OR s.status = ?", syncDatamodel.StatusPending)
	}
	return q.Where("s.id IS NULL OR s.status <> ?", syncDatamodel.StatusSuccess)
}
