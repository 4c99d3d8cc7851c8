package threshold

import (
	"fmt"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	thresholdDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/threshold"
	"github.com/shopspring/decimal"
)

type (
	DefaultThreshold  = thresholdDatamodel.DefaultThreshold
	EmployeeThreshold = thresholdDatamodel.EmployeeThreshold
)

type Source string

const (
	SourceEmployee Source = "employee"
	SourceDefault  Source = "default"
)

var hundred = decimal.NewFromInt(100)

// Defaults is the configured global threshold, used to seed the default row
// and as the answer of last resort.
type Defaults struct {
	MaxAmount  decimal.Decimal
	Percentage decimal.Decimal
	Currency   string
}

func DefaultsFromConfig(cfg internal.DeductionConfig) (Defaults, error) {
	maxAmount, err := cfg.MaxAmount()
	if err != nil {
		return Defaults{}, fmt.Errorf("parse default max amount: %w", err)
	}
	pct, err := cfg.Percentage()
	if err != nil {
		return Defaults{}, fmt.Errorf("parse default percentage: %w", err)
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	return Defaults{MaxAmount: maxAmount, Percentage: pct, Currency: currency}, nil
}

func StandardDefaults() Defaults {
	return Defaults{
		MaxAmount:  decimal.NewFromInt(5000),
		Percentage: decimal.NewFromInt(70),
		Currency:   "USD",
	}
}

// Threshold is the effective per-cycle deduction limit for one employee on one date.
type Threshold struct {
	MaxAmount  decimal.Decimal `json:"max_amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Currency   string          `json:"currency,omitempty"`
	Source     Source          `json:"source"`
	OverrideID *int64          `json:"override_id,omitempty"`
}

// CycleCap is the most that may be deducted in one payroll cycle from the given salary.
func (t Threshold) CycleCap(salary decimal.Decimal) decimal.Decimal {
	if !salary.IsPositive() {
		return t.MaxAmount
	}
	bySalary := salary.Mul(t.Percentage).Div(hundred).Round(2)
	return decimal.Min(t.MaxAmount, bySalary)
}

func fromDefault(d *DefaultThreshold) Threshold {
	return Threshold{
		MaxAmount:  d.MaxAmount,
		Percentage: d.Percentage,
		Currency:   d.Currency,
		Source:     SourceDefault,
	}
}

func fromDefaults(d Defaults) Threshold {
	return Threshold{
		MaxAmount:  d.MaxAmount,
		Percentage: d.Percentage,
		Currency:   d.Currency,
		Source:     SourceDefault,
	}
}

func fromOverride(o *EmployeeThreshold) Threshold {
	id := o.ID
	return Threshold{
		MaxAmount:  o.MaxAmount,
		Percentage: o.Percentage,
		Source:     SourceEmployee,
		OverrideID: &id,
	}
}

// dateOnly drops the clock so effective ranges compare by calendar day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
