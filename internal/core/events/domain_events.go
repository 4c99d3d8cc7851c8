package events

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeExpenseStatusChanged    = "expense.status_changed"
	EventTypeExpenseApproved         = "expense.approved"
	EventTypePayrollExpenseProcessed = "payroll.expense_processed"
	EventTypeSyncFailed              = "sync.failed"
	EventTypeDeviceSynced            = "device.synced"
)

// AllTypes lists every event type the services publish.
var AllTypes = []string{
	EventTypeExpenseStatusChanged,
	EventTypeExpenseApproved,
	EventTypePayrollExpenseProcessed,
	EventTypeSyncFailed,
	EventTypeDeviceSynced,
}

func newBase(eventType string, aggregateID int64, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Aggregate: strconv.FormatInt(aggregateID, 10),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type ExpenseStatusChangedEvent struct {
	BaseEvent
	ExpenseID  int64  `json:"expense_id"`
	EmployeeID int64  `json:"employee_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Actor      int64  `json:"actor"`
}

func NewExpenseStatusChangedEvent(expenseID, employeeID int64, from, to string, actor int64) *ExpenseStatusChangedEvent {
	return &ExpenseStatusChangedEvent{
		BaseEvent: newBase(EventTypeExpenseStatusChanged, expenseID, map[string]interface{}{
			"expense_id":  expenseID,
			"employee_id": employeeID,
			"from_status": from,
			"to_status":   to,
			"actor":       actor,
		}),
		ExpenseID:  expenseID,
		EmployeeID: employeeID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
	}
}

type ExpenseApprovedEvent struct {
	BaseEvent
	ExpenseID    int64  `json:"expense_id"`
	EmployeeID   int64  `json:"employee_id"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	AddToPayroll bool   `json:"add_to_payroll"`
}

func NewExpenseApprovedEvent(expenseID, employeeID int64, amount, currency string, addToPayroll bool) *ExpenseApprovedEvent {
	return &ExpenseApprovedEvent{
		BaseEvent: newBase(EventTypeExpenseApproved, expenseID, map[string]interface{}{
			"expense_id":     expenseID,
			"employee_id":    employeeID,
			"amount":         amount,
			"currency":       currency,
			"add_to_payroll": addToPayroll,
		}),
		ExpenseID:    expenseID,
		EmployeeID:   employeeID,
		Amount:       amount,
		Currency:     currency,
		AddToPayroll: addToPayroll,
	}
}

type PayrollExpenseProcessedEvent struct {
	BaseEvent
	ExpenseID        int64  `json:"expense_id"`
	EmployeeID       int64  `json:"employee_id"`
	PayrollReference string `json:"payroll_reference"`
	Operation        string `json:"operation"`
	ProcessedAmount  string `json:"processed_amount"`
	RemainingAmount  string `json:"remaining_amount"`
}

func NewPayrollExpenseProcessedEvent(expenseID, employeeID int64, reference, operation, processed, remaining string) *PayrollExpenseProcessedEvent {
	return &PayrollExpenseProcessedEvent{
		BaseEvent: newBase(EventTypePayrollExpenseProcessed, expenseID, map[string]interface{}{
			"expense_id":        expenseID,
			"employee_id":       employeeID,
			"payroll_reference": reference,
			"operation":         operation,
			"processed_amount":  processed,
			"remaining_amount":  remaining,
		}),
		ExpenseID:        expenseID,
		EmployeeID:       employeeID,
		PayrollReference: reference,
		Operation:        operation,
		ProcessedAmount:  processed,
		RemainingAmount:  remaining,
	}
}

type SyncFailedEvent struct {
	BaseEvent
	SyncLogID  int64  `json:"sync_log_id"`
	SyncType   string `json:"sync_type"`
	SourceID   int64  `json:"source_id"`
	Message    string `json:"message"`
	RetryCount int    `json:"retry_count"`
}

func NewSyncFailedEvent(logID int64, syncType string, sourceID int64, message string, retryCount int) *SyncFailedEvent {
	return &SyncFailedEvent{
		BaseEvent: newBase(EventTypeSyncFailed, sourceID, map[string]interface{}{
			"sync_log_id": logID,
			"sync_type":   syncType,
			"source_id":   sourceID,
			"message":     message,
			"retry_count": retryCount,
		}),
		SyncLogID:  logID,
		SyncType:   syncType,
		SourceID:   sourceID,
		Message:    message,
		RetryCount: retryCount,
	}
}

type DeviceSyncedEvent struct {
	BaseEvent
	DeviceID   int64 `json:"device_id"`
	LogsSynced int   `json:"logs_synced"`
}

func NewDeviceSyncedEvent(deviceID int64, logsSynced int) *DeviceSyncedEvent {
	return &DeviceSyncedEvent{
		BaseEvent: newBase(EventTypeDeviceSynced, deviceID, map[string]interface{}{
			"device_id":   deviceID,
			"logs_synced": logsSynced,
		}),
		DeviceID:   deviceID,
		LogsSynced: logsSynced,
	}
}
