package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/employee"
	"gorm.io/gorm"
)

type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id int64) (*employee.Employee, error) {
	var e employee.Employee
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *EmployeeRepository) ListActive(ctx context.Context) ([]*employee.Employee, error) {
	var employees []*employee.Employee
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&employees).Error
	return employees, err
}

func (r *EmployeeRepository) FindByDeviceUserIDs(ctx context.Context, deviceUserIDs []string) ([]*employee.Employee, error) {
	var employees []*employee.Employee
	err := r.db.WithContext(ctx).
		Where("device_user_id IN ?", deviceUserIDs).
		Find(&employees).Error
	return employees, err
}
