package accounting

import (
	"context"
	"time"

	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	payrollDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/payroll"
	syncDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/sync"
	"github.com/frahmantamala/payroll-admin/internal/synclog"
)

type (
	ExpenseSyncStatus = syncDatamodel.ExpenseSyncStatus
	PayrollSyncStatus = syncDatamodel.PayrollSyncStatus
)

// Outcome is the answer to one sync request: whether the accounting system
// accepted it, a human-readable message, and whatever detail came back.
type Outcome struct {
	Success bool        `json:"success"`
	Skipped bool        `json:"skipped,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func skipped(message string) Outcome {
	return Outcome{Skipped: true, Message: message}
}

type Repository interface {
	GetExpense(ctx context.Context, id int64) (*expenseDatamodel.Expense, error)
	GetPeriod(ctx context.Context, id int64) (*payrollDatamodel.Period, error)
	ListIntegrationsBetween(ctx context.Context, start, end time.Time) ([]*payrollDatamodel.Integration, error)

	GetExpenseSyncStatus(ctx context.Context, expenseID int64) (*ExpenseSyncStatus, error)
	SaveExpenseSyncStatus(ctx context.Context, st *ExpenseSyncStatus) error
	GetPayrollSyncStatus(ctx context.Context, periodID int64) (*PayrollSyncStatus, error)
	SavePayrollSyncStatus(ctx context.Context, st *PayrollSyncStatus) error

	// ListUnsyncedExpenseIDs returns approved or disbursed expenses the
	// accounting system does not have yet. With pendingOnly, expenses whose
	// last attempt failed are left to the retry sweep.
	ListUnsyncedExpenseIDs(ctx context.Context, pendingOnly bool, limit int) ([]int64, error)
	ListUnsyncedPeriodIDs(ctx context.Context, pendingOnly bool, limit int) ([]int64, error)
}

// SyncLogger is the sync audit trail.
type SyncLogger interface {
	Begin(ctx context.Context, syncType synclog.Type, sourceID int64, settings synclog.Settings) (*synclog.Log, error)
	BeginRetry(ctx context.Context, l *synclog.Log) error
	Succeed(ctx context.Context, l *synclog.Log, message string, externalID *string) error
	Fail(ctx context.Context, l *synclog.Log, message string, settings synclog.Settings) error
	Skip(ctx context.Context, syncType synclog.Type, sourceID int64, message string) (*synclog.Log, error)
	DueForRetry(ctx context.Context, now time.Time, limit int, types ...synclog.Type) ([]*synclog.Log, error)
}

func syncable(exp *expenseDatamodel.Expense) bool {
	return exp.Status == expenseDatamodel.StatusApproved || exp.Status == expenseDatamodel.StatusDisbursed
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
