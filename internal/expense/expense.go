package expense

import (
	"fmt"
	"strings"
	"time"

	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	"github.com/google/uuid"
)

type (
	Expense       = expenseDatamodel.Expense
	StatusHistory = expenseDatamodel.StatusHistory
	Status        = expenseDatamodel.Status
	PayrollEffect = expenseDatamodel.PayrollEffect
)

const (
	StatusDraft       = expenseDatamodel.StatusDraft
	StatusSubmitted   = expenseDatamodel.StatusSubmitted
	StatusUnderReview = expenseDatamodel.StatusUnderReview
	StatusApproved    = expenseDatamodel.StatusApproved
	StatusRejected    = expenseDatamodel.StatusRejected
	StatusDisbursed   = expenseDatamodel.StatusDisbursed
	StatusCancelled   = expenseDatamodel.StatusCancelled
)

// transitions is the complete set of legal status changes. Statuses mapping
// to an empty set are terminal.
var transitions = map[Status][]Status{
	StatusDraft:       {StatusSubmitted, StatusCancelled},
	StatusSubmitted:   {StatusUnderReview, StatusRejected, StatusCancelled},
	StatusUnderReview: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:    {StatusDisbursed, StatusCancelled},
	StatusRejected:    {StatusSubmitted, StatusCancelled},
	StatusDisbursed:   {},
	StatusCancelled:   {},
}

func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func AllowedTransitions(from Status) []Status {
	return append([]Status(nil), transitions[from]...)
}

func IsTerminal(s Status) bool {
	allowed, known := transitions[s]
	return known && len(allowed) == 0
}

// CanDelete reports whether the expense may be tombstoned.
func CanDelete(e *Expense) bool {
	return e.Status == StatusDraft || e.Status == StatusCancelled
}

// NewReference returns a reference of the form EXP-YYYYMM-XXXXXXXX.
func NewReference(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("EXP-%s-%s", at.Format("200601"), suffix)
}
