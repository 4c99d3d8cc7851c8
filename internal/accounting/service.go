package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/core/common/batch"
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	payrollDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/payroll"
	syncDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/sync"
	"github.com/frahmantamala/payroll-admin/internal/synclog"
	"github.com/shopspring/decimal"
)

// Service pushes approved expenses and payroll periods to the accounting
// system. Every attempt is logged; a failed attempt is left to the retry
// sweep instead of being retried in place.
type Service struct {
	repo      Repository
	client    Client
	logs      SyncLogger
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, client Client, logs SyncLogger, batchSize int, logger *slog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Service{
		repo:      repo,
		client:    client,
		logs:      logs,
		batchSize: batchSize,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) TestConnection(ctx context.Context) Outcome {
	res, err := s.client.TestConnection(ctx)
	if err != nil {
		return Outcome{Message: err.Error()}
	}
	return Outcome{Success: res.Success, Message: res.Message}
}

func (s *Service) SyncExpense(ctx context.Context, settings synclog.Settings, expenseID int64) (Outcome, error) {
	if !settings.ExpenseSyncEnabled {
		if _, err := s.logs.Skip(ctx, syncDatamodel.TypeExpense, expenseID, "expense sync is disabled"); err != nil {
			return Outcome{}, err
		}
		return skipped("expense sync is disabled"), nil
	}

	exp, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return Outcome{}, err
	}
	if !syncable(exp) {
		msg := fmt.Sprintf("expense %d is %s and not ready for accounting", exp.ID, exp.Status)
		if _, err := s.logs.Skip(ctx, syncDatamodel.TypeExpense, expenseID, msg); err != nil {
			return Outcome{}, err
		}
		return skipped(msg), nil
	}

	l, err := s.logs.Begin(ctx, syncDatamodel.TypeExpense, expenseID, settings)
	if err != nil {
		return Outcome{}, err
	}
	return s.pushExpense(ctx, settings, l, exp)
}

func (s *Service) pushExpense(ctx context.Context, settings synclog.Settings, l *synclog.Log, exp *expenseDatamodel.Expense) (_ Outcome, err error) {
	closed := false
	defer func() {
		if err != nil && !closed {
			s.failOpenLog(ctx, settings, l, err)
		}
	}()

	st, err := s.repo.GetExpenseSyncStatus(ctx, exp.ID)
	if err != nil {
		return Outcome{}, internal.NewInternalError("failed to load expense sync status", err)
	}
	if st == nil {
		st = &ExpenseSyncStatus{ExpenseID: exp.ID, Status: syncDatamodel.StatusPending}
	}

	res, err := s.client.SyncExpense(ctx, ExpensePayload{
		ExpenseID:     exp.ID,
		Reference:     exp.Reference,
		EmployeeID:    exp.EmployeeID,
		Category:      exp.Category,
		Description:   exp.Description,
		Amount:        exp.TotalAmount,
		Currency:      exp.Currency,
		ExpenseDate:   exp.ExpenseDate,
		PayrollEffect: string(exp.PayrollEffect),
		ExternalID:    deref(st.ExternalID),
	})
	if err == nil && !res.Success {
		err = fmt.Errorf("%w: %s", internal.ErrExternalSyncFailure, res.Message)
	}

	now := s.now()
	if err != nil {
		msg := err.Error()
		st.Status = syncDatamodel.StatusFailed
		st.LastError = &msg
		if logErr := s.logs.Fail(ctx, l, msg, settings); logErr != nil {
			return Outcome{}, logErr
		}
		closed = true
		if saveErr := s.repo.SaveExpenseSyncStatus(ctx, st); saveErr != nil {
			return Outcome{}, internal.NewInternalError("failed to save expense sync status", saveErr)
		}
		return Outcome{Message: msg}, nil
	}

	st.Status = syncDatamodel.StatusSuccess
	st.LastError = nil
	st.LastSyncedAt = &now
	if res.ExternalID != "" {
		st.ExternalID = optional(res.ExternalID)
	}
	if err := s.repo.SaveExpenseSyncStatus(ctx, st); err != nil {
		return Outcome{}, internal.NewInternalError("failed to save expense sync status", err)
	}
	if err := s.logs.Succeed(ctx, l, res.Message, st.ExternalID); err != nil {
		return Outcome{}, err
	}
	closed = true

	s.logger.Info("expense synced to accounting",
		"expense_id", exp.ID,
		"external_id", deref(st.ExternalID),
		"sync_log_id", l.ID)
	return Outcome{Success: true, Message: res.Message, Data: res}, nil
}

func (s *Service) SyncPayrollPeriod(ctx context.Context, settings synclog.Settings, periodID int64) (Outcome, error) {
	if !settings.PayrollSyncEnabled {
		if _, err := s.logs.Skip(ctx, syncDatamodel.TypePayrollPeriod, periodID, "payroll sync is disabled"); err != nil {
			return Outcome{}, err
		}
		return skipped("payroll sync is disabled"), nil
	}

	period, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return Outcome{}, err
	}

	l, err := s.logs.Begin(ctx, syncDatamodel.TypePayrollPeriod, periodID, settings)
	if err != nil {
		return Outcome{}, err
	}
	return s.pushPeriod(ctx, settings, l, period)
}

func (s *Service) pushPeriod(ctx context.Context, settings synclog.Settings, l *synclog.Log, period *payrollDatamodel.Period) (_ Outcome, err error) {
	closed := false
	defer func() {
		if err != nil && !closed {
			s.failOpenLog(ctx, settings, l, err)
		}
	}()

	st, err := s.repo.GetPayrollSyncStatus(ctx, period.ID)
	if err != nil {
		return Outcome{}, internal.NewInternalError("failed to load payroll sync status", err)
	}
	if st == nil {
		st = &PayrollSyncStatus{PeriodID: period.ID, Status: syncDatamodel.StatusPending}
	}

	integrations, err := s.repo.ListIntegrationsBetween(ctx, period.StartDate, period.EndDate)
	if err != nil {
		return Outcome{}, internal.NewInternalError("failed to load payroll integrations", err)
	}

	payload := PayrollPeriodPayload{
		PeriodID:        period.ID,
		Name:            period.Name,
		StartDate:       period.StartDate,
		EndDate:         period.EndDate,
		TotalAdditions:  decimal.Zero,
		TotalDeductions: decimal.Zero,
		Lines:           make([]PayrollLine, 0, len(integrations)),
		ExternalID:      deref(st.ExternalID),
	}
	for _, in := range integrations {
		payload.Lines = append(payload.Lines, PayrollLine{
			ExpenseID:        in.ExpenseID,
			EmployeeID:       in.EmployeeID,
			PayrollReference: in.PayrollReference,
			Operation:        string(in.Operation),
			Amount:           in.ProcessedAmount,
		})
		if in.Operation == payrollDatamodel.OperationDeduct {
			payload.TotalDeductions = payload.TotalDeductions.Add(in.ProcessedAmount)
		} else {
			payload.TotalAdditions = payload.TotalAdditions.Add(in.ProcessedAmount)
		}
	}

	res, err := s.client.SyncPayrollPeriod(ctx, payload)
	if err == nil && !res.Success {
		err = fmt.Errorf("%w: %s", internal.ErrExternalSyncFailure, res.Message)
	}

	now := s.now()
	if err != nil {
		msg := err.Error()
		st.Status = syncDatamodel.StatusFailed
		st.LastError = &msg
		if logErr := s.logs.Fail(ctx, l, msg, settings); logErr != nil {
			return Outcome{}, logErr
		}
		closed = true
		if saveErr := s.repo.SavePayrollSyncStatus(ctx, st); saveErr != nil {
			return Outcome{}, internal.NewInternalError("failed to save payroll sync status", saveErr)
		}
		return Outcome{Message: msg}, nil
	}

	st.Status = syncDatamodel.StatusSuccess
	st.LastError = nil
	st.LastSyncedAt = &now
	if res.ExternalID != "" {
		st.ExternalID = optional(res.ExternalID)
	}
	if err := s.repo.SavePayrollSyncStatus(ctx, st); err != nil {
		return Outcome{}, internal.NewInternalError("failed to save payroll sync status", err)
	}
	if err := s.logs.Succeed(ctx, l, res.Message, st.ExternalID); err != nil {
		return Outcome{}, err
	}
	closed = true

	s.logger.Info("payroll period synced to accounting",
		"period_id", period.ID,
		"lines", len(payload.Lines),
		"sync_log_id", l.ID)
	return Outcome{Success: true, Message: res.Message, Data: res}, nil
}

// BatchSyncExpenses syncs each expense independently; one failure never
// stops the rest.
func (s *Service) BatchSyncExpenses(ctx context.Context, settings synclog.Settings, ids []int64) Outcome {
	if !settings.ExpenseSyncEnabled {
		return skipped("expense sync is disabled")
	}
	result := s.runBatch(ctx, ids, func(id int64) (Outcome, error) {
		return s.SyncExpense(ctx, settings, id)
	})
	return batchOutcome("expenses", result)
}

func (s *Service) BatchSyncPayrollPeriods(ctx context.Context, settings synclog.Settings, ids []int64) Outcome {
	if !settings.PayrollSyncEnabled {
		return skipped("payroll sync is disabled")
	}
	result := s.runBatch(ctx, ids, func(id int64) (Outcome, error) {
		return s.SyncPayrollPeriod(ctx, settings, id)
	})
	return batchOutcome("payroll periods", result)
}

func (s *Service) runBatch(ctx context.Context, ids []int64, sync func(int64) (Outcome, error)) *batch.Result {
	result := batch.New(len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Fail(id, err)
			continue
		}
		o, err := sync(id)
		switch {
		case err != nil:
			result.Fail(id, err)
		case o.Skipped:
			result.Skip(id, o.Message)
		case o.Success:
			result.Succeed(id, o.Message)
		default:
			result.Fail(id, errors.New(o.Message))
		}
	}
	return result
}

func batchOutcome(what string, r *batch.Result) Outcome {
	return Outcome{
		Success: r.FailedCount == 0,
		Message: fmt.Sprintf("synced %d of %d %s", r.SuccessCount, r.Total(), what),
		Data:    r,
	}
}

// FullSync pushes everything the accounting system is missing, failed items
// included. Items that fail again get their own retry schedule.
func (s *Service) FullSync(ctx context.Context, settings synclog.Settings) Outcome {
	if !settings.ExpenseSyncEnabled && !settings.PayrollSyncEnabled {
		return skipped("accounting sync is disabled")
	}

	l, err := s.logs.Begin(ctx, syncDatamodel.TypeFullSync, 0, settings)
	if err != nil {
		return Outcome{Message: err.Error()}
	}
	return s.fullSync(ctx, settings, l)
}

func (s *Service) fullSync(ctx context.Context, settings synclog.Settings, l *synclog.Log) Outcome {
	outcome, err := s.syncUnsynced(ctx, settings, false)
	if err != nil {
		if logErr := s.logs.Fail(ctx, l, err.Error(), settings); logErr != nil {
			s.logger.Error("failed to record full sync failure", "error", logErr)
		}
		return Outcome{Message: err.Error()}
	}
	if err := s.logs.Succeed(ctx, l, outcome.Message, nil); err != nil {
		s.logger.Error("failed to record full sync", "error", err)
	}
	return outcome
}

// SyncPending pushes items that were never attempted.
func (s *Service) SyncPending(ctx context.Context, settings synclog.Settings) Outcome {
	if !settings.ExpenseSyncEnabled && !settings.PayrollSyncEnabled {
		return skipped("accounting sync is disabled")
	}
	outcome, err := s.syncUnsynced(ctx, settings, true)
	if err != nil {
		return Outcome{Message: err.Error()}
	}
	return outcome
}

func (s *Service) syncUnsynced(ctx context.Context, settings synclog.Settings, pendingOnly bool) (Outcome, error) {
	data := map[string]interface{}{}
	success := true
	var expensesMsg, periodsMsg string

	if settings.ExpenseSyncEnabled {
		ids, err := s.repo.ListUnsyncedExpenseIDs(ctx, pendingOnly, s.batchSize)
		if err != nil {
			return Outcome{}, internal.NewInternalError("failed to list unsynced expenses", err)
		}
		o := s.BatchSyncExpenses(ctx, settings, ids)
		data["expenses"] = o.Data
		success = success && o.Success
		expensesMsg = o.Message
	} else {
		expensesMsg = "expense sync is disabled"
	}

	if settings.PayrollSyncEnabled {
		ids, err := s.repo.ListUnsyncedPeriodIDs(ctx, pendingOnly, s.batchSize)
		if err != nil {
			return Outcome{}, internal.NewInternalError("failed to list unsynced payroll periods", err)
		}
		o := s.BatchSyncPayrollPeriods(ctx, settings, ids)
		data["payroll_periods"] = o.Data
		success = success && o.Success
		periodsMsg = o.Message
	} else {
		periodsMsg = "payroll sync is disabled"
	}

	return Outcome{
		Success: success,
		Message: expensesMsg + "; " + periodsMsg,
		Data:    data,
	}, nil
}

// RetryFailed runs the next attempt of every failed accounting sync that is
// due. Each retry reuses its original log so the attempt count carries over.
func (s *Service) RetryFailed(ctx context.Context, settings synclog.Settings, now time.Time) Outcome {
	var types []synclog.Type
	if settings.ExpenseSyncEnabled {
		types = append(types, syncDatamodel.TypeExpense)
	}
	if settings.PayrollSyncEnabled {
		types = append(types, syncDatamodel.TypePayrollPeriod)
	}
	if len(types) == 0 {
		return skipped("accounting sync is disabled")
	}
	types = append(types, syncDatamodel.TypeFullSync)

	due, err := s.logs.DueForRetry(ctx, now, s.batchSize, types...)
	if err != nil {
		return Outcome{Message: err.Error()}
	}

	result := batch.New(len(due))
	for _, l := range due {
		o, err := s.retry(ctx, settings, l)
		switch {
		case err != nil:
			result.Fail(l.ID, err)
		case o.Success:
			result.Succeed(l.ID, o.Message)
		default:
			result.Fail(l.ID, errors.New(o.Message))
		}
	}

	s.logger.Info("accounting retry sweep finished",
		"due", len(due),
		"success_count", result.SuccessCount,
		"failed_count", result.FailedCount)
	return Outcome{
		Success: result.FailedCount == 0,
		Message: fmt.Sprintf("retried %d sync logs: %d succeeded, %d failed", result.Total(), result.SuccessCount, result.FailedCount),
		Data:    result,
	}
}

func (s *Service) retry(ctx context.Context, settings synclog.Settings, l *synclog.Log) (Outcome, error) {
	if err := s.logs.BeginRetry(ctx, l); err != nil {
		return Outcome{}, err
	}

	switch l.SyncType {
	case syncDatamodel.TypeExpense:
		exp, err := s.repo.GetExpense(ctx, l.SourceID)
		if err != nil {
			return s.abandon(ctx, settings, l, err)
		}
		return s.pushExpense(ctx, settings, l, exp)
	case syncDatamodel.TypePayrollPeriod:
		period, err := s.repo.GetPeriod(ctx, l.SourceID)
		if err != nil {
			return s.abandon(ctx, settings, l, err)
		}
		return s.pushPeriod(ctx, settings, l, period)
	case syncDatamodel.TypeFullSync:
		return s.fullSync(ctx, settings, l), nil
	}
	return s.abandon(ctx, settings, l, fmt.Errorf("unsupported sync type %s", l.SyncType))
}

// failOpenLog closes a log that is still in progress after an attempt ended
// in an error, so the retry sweep picks it up.
func (s *Service) failOpenLog(ctx context.Context, settings synclog.Settings, l *synclog.Log, cause error) {
	if err := s.logs.Fail(ctx, l, cause.Error(), settings); err != nil {
		s.logger.Error("failed to record sync failure", "error", err, "sync_log_id", l.ID)
	}
}

// abandon records a retry that could not even be attempted.
func (s *Service) abandon(ctx context.Context, settings synclog.Settings, l *synclog.Log, cause error) (Outcome, error) {
	if err := s.logs.Fail(ctx, l, cause.Error(), settings); err != nil {
		return Outcome{}, err
	}
	return Outcome{Message: cause.Error()}, nil
}
