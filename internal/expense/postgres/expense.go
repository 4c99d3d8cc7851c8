package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/expense"
	"gorm.io/gorm"
)

// ExpenseRepository implements expense.Repository using GORM. Tombstoned rows
// are hidden by gorm's soft-delete scope.
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// Transaction opens a transaction, or a savepoint when the repository or ctx
// is already bound to one.
func (r *ExpenseRepository) Transaction(ctx context.Context, fn func(expense.Repository) error) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ExpenseRepository{db: tx})
	})
}

func (r *ExpenseRepository) conn(ctx context.Context) *gorm.DB {
	return internal.DBFromContext(ctx, r.db)
}

func (r *ExpenseRepository) Create(ctx context.Context, exp *expense.Expense) error {
	return r.conn(ctx).Create(exp).Error
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*expense.Expense, error) {
	var exp expense.Expense
	err := r.conn(ctx).Where("id = ?", id).First(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrExpenseNotFound
		}
		return nil, err
	}
	return &exp, nil
}

func (r *ExpenseRepository) Save(ctx context.Context, exp *expense.Expense) error {
	return r.conn(ctx).Save(exp).Error
}

func (r *ExpenseRepository) CreateHistory(ctx context.Context, h *expense.StatusHistory) error {
	return r.conn(ctx).Create(h).Error
}

func (r *ExpenseRepository) ListHistory(ctx context.Context, expenseID int64) ([]*expense.StatusHistory, error) {
	var history []*expense.StatusHistory
	err := r.conn(ctx).
		Where("expense_id = ?", expenseID).
		Order("id ASC").
		Find(&history).Error
	return history, err
}

func (r *ExpenseRepository) SoftDelete(ctx context.Context, id int64) error {
	res := r.conn(ctx).Delete(&expense.Expense{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrExpenseNotFound
	}
	return nil
}
