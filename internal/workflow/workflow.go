package workflow

import (
	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	workflowDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/workflow"
)

type (
	Workflow = workflowDatamodel.Workflow
	Step     = workflowDatamodel.Step
)

const TotalSteps = workflowDatamodel.TotalSteps

const (
	StepEmployeeRequest = 1
	StepAdminEntry      = 2
	StepReview          = 3
	StepApproval        = 4
	StepDisbursement    = 5
)

var stepNames = map[int]string{
	StepEmployeeRequest: "Employee Request",
	StepAdminEntry:      "Admin/HR Entry",
	StepReview:          "Review",
	StepApproval:        "Approval",
	StepDisbursement:    "Disbursement",
}

func StepName(n int) string {
	return stepNames[n]
}

// completionTargets is the expense status implied by finishing a step.
var completionTargets = map[int]expenseDatamodel.Status{
	StepEmployeeRequest: expenseDatamodel.StatusSubmitted,
	StepAdminEntry:      expenseDatamodel.StatusUnderReview,
	StepReview:          expenseDatamodel.StatusUnderReview,
	StepApproval:        expenseDatamodel.StatusApproved,
}

// progress orders the statuses on the approval path. Rejected and cancelled
// expenses are off the path.
var progress = map[expenseDatamodel.Status]int{
	expenseDatamodel.StatusDraft:       0,
	expenseDatamodel.StatusSubmitted:   1,
	expenseDatamodel.StatusUnderReview: 2,
	expenseDatamodel.StatusApproved:    3,
	expenseDatamodel.StatusDisbursed:   4,
}

func CompletionTarget(step int) (expenseDatamodel.Status, bool) {
	s, ok := completionTargets[step]
	return s, ok
}

// needsTransition reports whether the expense still has to move to reach
// target. An expense already at or past target is left alone.
func needsTransition(current, target expenseDatamodel.Status) bool {
	rank, onPath := progress[current]
	if !onPath {
		return true
	}
	return rank < progress[target]
}

// DerivedStep is the workflow step an expense in the given status is waiting
// on. Zero means the expense has left the approval path.
func DerivedStep(status expenseDatamodel.Status) int {
	switch status {
	case expenseDatamodel.StatusDraft:
		return StepEmployeeRequest
	case expenseDatamodel.StatusSubmitted:
		return StepAdminEntry
	case expenseDatamodel.StatusUnderReview:
		return StepReview
	case expenseDatamodel.StatusApproved, expenseDatamodel.StatusDisbursed:
		return StepDisbursement
	}
	return 0
}

// approversFor assigns one approver per step: the employee opens the request,
// the creator enters and disburses it, and the manager (or creator when the
// employee has none) reviews and approves.
func approversFor(exp *expenseDatamodel.Expense, managerID *int64) map[int]int64 {
	reviewer := exp.CreatedBy
	if managerID != nil && *managerID > 0 {
		reviewer = *managerID
	}
	return map[int]int64{
		StepEmployeeRequest: exp.EmployeeID,
		StepAdminEntry:      exp.CreatedBy,
		StepReview:          reviewer,
		StepApproval:        reviewer,
		StepDisbursement:    exp.CreatedBy,
	}
}

func stepByNumber(wf *Workflow, n int) *Step {
	for i := range wf.Steps {
		if wf.Steps[i].StepNumber == n {
			return &wf.Steps[i]
		}
	}
	return nil
}
