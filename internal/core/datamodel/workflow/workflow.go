package workflow

import "time"

const TotalSteps = 5

type Workflow struct {
	ID              int64      `gorm:"primaryKey" json:"id"`
	ExpenseID       int64      `gorm:"column:expense_id;not null;uniqueIndex" json:"expense_id"`
	CurrentStep     int        `gorm:"column:current_step;not null;default:1" json:"current_step"`
	TotalSteps      int        `gorm:"column:total_steps;not null;default:5" json:"total_steps"`
	CurrentApprover int64      `gorm:"column:current_approver" json:"current_approver"`
	NextApprover    *int64     `gorm:"column:next_approver" json:"next_approver,omitempty"`
	IsCompleted     bool       `gorm:"column:is_completed" json:"is_completed"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Steps           []Step     `gorm:"foreignKey:WorkflowID" json:"steps,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Workflow) TableName() string {
	return "expense_approval_workflows"
}

type Step struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	WorkflowID  int64      `gorm:"column:workflow_id;not null;uniqueIndex:idx_workflow_step" json:"workflow_id"`
	StepNumber  int        `gorm:"column:step_number;not null;uniqueIndex:idx_workflow_step" json:"step_number"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Approver    int64      `gorm:"column:approver" json:"approver"`
	IsCompleted bool       `gorm:"column:is_completed" json:"is_completed"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CompletedBy *int64     `gorm:"column:completed_by" json:"completed_by,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Step) TableName() string {
	return "expense_approval_steps"
}
