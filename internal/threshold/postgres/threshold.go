package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/payroll-admin/internal/threshold"
	"gorm.io/gorm"
)

type ThresholdRepository struct {
	db *gorm.DB
}

func NewThresholdRepository(db *gorm.DB) *ThresholdRepository {
	return &ThresholdRepository{db: db}
}

func (r *ThresholdRepository) Transaction(ctx context.Context, fn func(threshold.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ThresholdRepository{db: tx})
	})
}

// FindActiveOverride returns nil when the employee has no override covering asOf.
func (r *ThresholdRepository) FindActiveOverride(ctx context.Context, employeeID int64, asOf time.Time) (*threshold.EmployeeThreshold, error) {
	var t threshold.EmployeeThreshold
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND is_active = ?", employeeID, true).
		Where("effective_from <= ?", asOf).
		Where("effective_to IS NULL OR effective_to >= ?", asOf).
		Order("effective_from DESC").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *ThresholdRepository) GetDefault(ctx context.Context) (*threshold.DefaultThreshold, error) {
	var d threshold.DefaultThreshold
	err := r.db.WithContext(ctx).Order("id ASC").First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *ThresholdRepository) CreateDefault(ctx context.Context, d *threshold.DefaultThreshold) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// CloseOverridesFrom ends overrides that are still open on from and retires
// the ones that would only start on or after it.
func (r *ThresholdRepository) CloseOverridesFrom(ctx context.Context, employeeID int64, from time.Time) error {
	db := r.db.WithContext(ctx)
	dayBefore := from.AddDate(0, 0, -1)

	err := db.Model(&threshold.EmployeeThreshold{}).
		Where("employee_id = ? AND is_active = ?", employeeID, true).
		Where("effective_from < ?", from).
		Where("effective_to IS NULL OR effective_to >= ?", from).
		Update("effective_to", dayBefore).Error
	if err != nil {
		return err
	}

	return db.Model(&threshold.EmployeeThreshold{}).
		Where("employee_id = ? AND is_active = ?", employeeID, true).
		Where("effective_from >= ?", from).
		Update("is_active", false).Error
}

func (r *ThresholdRepository) CreateOverride(ctx context.Context, t *threshold.EmployeeThreshold) error {
	return r.db.WithContext(ctx).Create(t).Error
}
