// Package testdb opens throwaway sqlite databases for repository tests.
package testdb

import (
	"fmt"

	deviceDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/device"
	employeeDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/employee"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	installmentDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/installment"
	payrollDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/payroll"
	syncDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/sync"
	thresholdDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/threshold"
	workflowDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/workflow"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models is every table the application owns.
func Models() []interface{} {
	return []interface{}{
		&employeeDatamodel.Employee{},
		&expenseDatamodel.Expense{},
		&expenseDatamodel.StatusHistory{},
		&workflowDatamodel.Workflow{},
		&workflowDatamodel.Step{},
		&installmentDatamodel.Plan{},
		&installmentDatamodel.Installment{},
		&thresholdDatamodel.DefaultThreshold{},
		&thresholdDatamodel.EmployeeThreshold{},
		&payrollDatamodel.Period{},
		&payrollDatamodel.Integration{},
		&syncDatamodel.Log{},
		&syncDatamodel.Configuration{},
		&syncDatamodel.ExpenseSyncStatus{},
		&syncDatamodel.PayrollSyncStatus{},
		&deviceDatamodel.Device{},
		&deviceDatamodel.AttendanceLog{},
	}
}

// Open returns an in-memory database with the full schema. The pool is pinned
// to one connection because every sqlite :memory: connection is a separate
// database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
