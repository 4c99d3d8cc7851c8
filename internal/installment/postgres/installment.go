package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	"github.com/frahmantamala/payroll-admin/internal/installment"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InstallmentRepository struct {
	db *gorm.DB
}

func NewInstallmentRepository(db *gorm.DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

func (r *InstallmentRepository) Transaction(ctx context.Context, fn func(installment.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&InstallmentRepository{db: tx})
	})
}

func (r *InstallmentRepository) GetPlanByExpenseID(ctx context.Context, expenseID int64) (*installment.Plan, error) {
	var plan installment.Plan
	err := r.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("installment_number ASC")
		}).
		Where("expense_id = ?", expenseID).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// CreatePlan inserts the plan and its installments through the association.
func (r *InstallmentRepository) CreatePlan(ctx context.Context, plan *installment.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *InstallmentRepository) SetExpenseInstallmentAmount(ctx context.Context, expenseID int64, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&expenseDatamodel.Expense{}).
		Where("id = ?", expenseID).
		Update("installment_amount", amount).Error
}

func (r *InstallmentRepository) NextDue(ctx context.Context, expenseID int64) (*installment.Installment, error) {
	var inst installment.Installment
	err := r.db.WithContext(ctx).
		Joins("JOIN expense_installment_plans p ON p.id = expense_installments.plan_id").
		Where("p.expense_id = ? AND expense_installments.is_processed = ?", expenseID, false).
		Order("expense_installments.installment_number ASC").
		First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inst, nil
}

func (r *InstallmentRepository) MarkProcessed(ctx context.Context, installmentID int64, payrollReference string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&installment.Installment{}).
		Where("id = ? AND is_processed = ?", installmentID, false).
		Updates(map[string]interface{}{
			"is_processed":      true,
			"processed_at":      at,
			"payroll_reference": payrollReference,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrNotFound
	}
	return nil
}
