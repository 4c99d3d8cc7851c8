package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/workflow"
	"gorm.io/gorm"
)

type WorkflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Transaction hands fn a context carrying the transaction, so the expense
// status change made inside it commits together with the step.
func (r *WorkflowRepository) Transaction(ctx context.Context, fn func(context.Context, workflow.Repository) error) error {
	return internal.DBFromContext(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return fn(internal.ContextWithTx(ctx, tx), &WorkflowRepository{db: tx})
	})
}

func (r *WorkflowRepository) conn(ctx context.Context) *gorm.DB {
	return internal.DBFromContext(ctx, r.db)
}

func (r *WorkflowRepository) GetByExpenseID(ctx context.Context, expenseID int64) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	err := r.conn(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		Where("expense_id = ?", expenseID).
		First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wf, nil
}

func (r *WorkflowRepository) Create(ctx context.Context, wf *workflow.Workflow) error {
	return r.conn(ctx).Create(wf).Error
}

// SaveProgress writes the workflow header and the step that was just completed.
func (r *WorkflowRepository) SaveProgress(ctx context.Context, wf *workflow.Workflow, completed *workflow.Step) error {
	db := r.conn(ctx)
	if err := db.Omit("Steps").Save(wf).Error; err != nil {
		return err
	}
	return db.Save(completed).Error
}
