package threshold

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	FindActiveOverride(ctx context.Context, employeeID int64, asOf time.Time) (*EmployeeThreshold, error)
	GetDefault(ctx context.Context) (*DefaultThreshold, error)
	CreateDefault(ctx context.Context, d *DefaultThreshold) error
	CloseOverridesFrom(ctx context.Context, employeeID int64, from time.Time) error
	CreateOverride(ctx context.Context, t *EmployeeThreshold) error
}

type Resolver struct {
	repo     Repository
	defaults Defaults
	logger   *slog.Logger
}

func NewResolver(repo Repository, defaults Defaults, logger *slog.Logger) *Resolver {
	return &Resolver{
		repo:     repo,
		defaults: defaults,
		logger:   logger,
	}
}

// Resolve never fails: lookup errors degrade to the global default and then
// to the configured defaults.
func (r *Resolver) Resolve(ctx context.Context, employeeID int64, asOf time.Time) Threshold {
	day := dateOnly(asOf)

	override, err := r.repo.FindActiveOverride(ctx, employeeID, day)
	if err != nil {
		r.logger.Error("failed to look up employee threshold, falling back to default",
			"error", err,
			"employee_id", employeeID)
	}
	if override != nil {
		return fromOverride(override)
	}

	return r.Default(ctx)
}

// Default returns the global threshold, creating it from the configured
// defaults on first access.
func (r *Resolver) Default(ctx context.Context) Threshold {
	d, err := r.repo.GetDefault(ctx)
	if err != nil {
		r.logger.Error("failed to load default threshold", "error", err)
		return fromDefaults(r.defaults)
	}
	if d != nil {
		return fromDefault(d)
	}

	d = &DefaultThreshold{
		MaxAmount:  r.defaults.MaxAmount,
		Percentage: r.defaults.Percentage,
		Currency:   r.defaults.Currency,
	}
	if err := r.repo.CreateDefault(ctx, d); err != nil {
		r.logger.Error("failed to create default threshold", "error", err)
		return fromDefaults(r.defaults)
	}

	r.logger.Info("default deduction threshold created",
		"max_amount", d.MaxAmount.String(),
		"percentage", d.Percentage.String())
	return fromDefault(d)
}

// SetEmployeeThreshold records a new override and closes whatever was open so
// that overrides of one employee never overlap.
func (r *Resolver) SetEmployeeThreshold(ctx context.Context, t *EmployeeThreshold) error {
	if err := validateOverride(t); err != nil {
		return err
	}

	t.EffectiveFrom = dateOnly(t.EffectiveFrom)
	if t.EffectiveTo != nil {
		to := dateOnly(*t.EffectiveTo)
		t.EffectiveTo = &to
	}
	t.IsActive = true

	err := r.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.CloseOverridesFrom(ctx, t.EmployeeID, t.EffectiveFrom); err != nil {
			return err
		}
		return tx.CreateOverride(ctx, t)
	})
	if err != nil {
		r.logger.Error("failed to set employee threshold", "error", err, "employee_id", t.EmployeeID)
		return internal.NewInternalError("failed to set employee threshold", err)
	}

	r.logger.Info("employee threshold set",
		"employee_id", t.EmployeeID,
		"max_amount", t.MaxAmount.String(),
		"effective_from", t.EffectiveFrom.Format(time.DateOnly))
	return nil
}

func validateOverride(t *EmployeeThreshold) *internal.AppError {
	v := validation.NewValidator()
	v.Field("employee_id", t.EmployeeID).Required()
	v.Field("max_amount", t.MaxAmount).
		Positive(internal.ErrCodeInvalidAmount).
		MaxScale(2, internal.ErrCodeInvalidAmount)
	v.Field("percentage", t.Percentage).
		Positive(internal.ErrCodeInvalidAmount).
		MaxDecimal(decimal.NewFromInt(100), internal.ErrCodeInvalidAmount)
	v.Field("effective_from", t.EffectiveFrom).Required()
	v.Field("effective_to", t.EffectiveTo).Custom(func(value interface{}) *internal.AppError {
		to, _ := value.(*time.Time)
		if to != nil && to.Before(t.EffectiveFrom) {
			return internal.NewValidationFieldError("effective_to", "effective_to must not precede effective_from", internal.ErrCodeInvalidDate)
		}
		return nil
	})
	return v.Validate()
}
