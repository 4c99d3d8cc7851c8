package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeForbidden  ErrorType = "FORBIDDEN"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal   ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidDate      ErrorCode = "INVALID_DATE"
	ErrCodeInvalidEnum      ErrorCode = "INVALID_ENUM_VALUE"

	ErrCodeNotFound                 ErrorCode = "NOT_FOUND"
	ErrCodeExpenseNotFound          ErrorCode = "EXPENSE_NOT_FOUND"
	ErrCodeDeviceNotFound           ErrorCode = "DEVICE_NOT_FOUND"
	ErrCodeInvalidTransition        ErrorCode = "INVALID_TRANSITION"
	ErrCodeRejectionReasonRequired  ErrorCode = "REJECTION_REASON_REQUIRED"
	ErrCodeCannotModifyExpense      ErrorCode = "CANNOT_MODIFY_EXPENSE"
	ErrCodeWorkflowAlreadyCompleted ErrorCode = "WORKFLOW_ALREADY_COMPLETED"
	ErrCodeInvalidScheduleInput     ErrorCode = "INVALID_SCHEDULE_INPUT"
	ErrCodeThresholdNotFound        ErrorCode = "THRESHOLD_NOT_FOUND"
	ErrCodeNotEligible              ErrorCode = "NOT_ELIGIBLE_FOR_PAYROLL"
	ErrCodePeriodClosed             ErrorCode = "PAYROLL_PERIOD_CLOSED"

	ErrCodeExternalSyncFailure ErrorCode = "EXTERNAL_SYNC_FAILURE"
	ErrCodeConfigMissing       ErrorCode = "CONFIG_MISSING"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {

			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy so package-level sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// Is matches on error code so copies made by WithCause still satisfy errors.Is
// against the sentinel they came from.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Type == t.Type
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewExternalError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadGateway,
	}
}

var (
	ErrNotFound                 = NewNotFoundError("resource not found", ErrCodeNotFound)
	ErrExpenseNotFound          = NewNotFoundError("expense not found", ErrCodeExpenseNotFound)
	ErrDeviceNotFound           = NewNotFoundError("attendance device not found", ErrCodeDeviceNotFound)
	ErrThresholdNotFound        = NewNotFoundError("deduction threshold not found", ErrCodeThresholdNotFound)
	ErrInvalidTransition        = NewConflictError("invalid status transition", ErrCodeInvalidTransition)
	ErrWorkflowAlreadyCompleted = NewConflictError("approval workflow already completed", ErrCodeWorkflowAlreadyCompleted)
	ErrCannotModifyExpense      = NewConflictError("cannot modify expense in current status", ErrCodeCannotModifyExpense)
	ErrRejectionReasonRequired  = NewValidationError("reason is required when rejecting an expense", ErrCodeRejectionReasonRequired)
	ErrInvalidScheduleInput     = NewValidationError("total amount and installment cap must be greater than zero", ErrCodeInvalidScheduleInput)
	ErrNotEligibleForPayroll    = NewConflictError("expense is not eligible for payroll processing", ErrCodeNotEligible)
	ErrPeriodClosed             = NewConflictError("payroll period is closed", ErrCodePeriodClosed)
	ErrExternalSyncFailure      = NewExternalError("external synchronization failed", ErrCodeExternalSyncFailure)
	ErrConfigMissing            = &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeConfigMissing,
		Message:    "required configuration is missing",
		StatusCode: http.StatusInternalServerError,
	}
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
