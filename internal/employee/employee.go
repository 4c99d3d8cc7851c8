package employee

import (
	"context"
	"fmt"

	employeeDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/employee"
)

type Employee = employeeDatamodel.Employee

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Employee, error)
	ListActive(ctx context.Context) ([]*Employee, error)
	FindByDeviceUserIDs(ctx context.Context, deviceUserIDs []string) ([]*Employee, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Employee, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee by id: %w", err)
	}
	return e, nil
}

// ManagerOf returns the employee's manager id, or nil when none is recorded.
func (s *Service) ManagerOf(ctx context.Context, employeeID int64) (*int64, error) {
	e, err := s.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return e.ManagerID, nil
}

func (s *Service) ListActive(ctx context.Context) ([]*Employee, error) {
	employees, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	return employees, nil
}

// DeviceUserIndex maps attendance-device user ids to employee ids.
func (s *Service) DeviceUserIndex(ctx context.Context, deviceUserIDs []string) (map[string]int64, error) {
	index := make(map[string]int64, len(deviceUserIDs))
	if len(deviceUserIDs) == 0 {
		return index, nil
	}

	employees, err := s.repo.FindByDeviceUserIDs(ctx, deviceUserIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to map device users: %w", err)
	}
	for _, e := range employees {
		if e.DeviceUserID != nil {
			index[*e.DeviceUserID] = e.ID
		}
	}
	return index, nil
}
