package installment

import (
	"fmt"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/shopspring/decimal"
)

// maxScheduleDay keeps every month-step landing on a real calendar day.
const maxScheduleDay = 28

type ScheduledInstallment struct {
	Number         int             `json:"installment_number"`
	Date           time.Time       `json:"scheduled_date"`
	Amount         decimal.Decimal `json:"amount"`
	RemainingAfter decimal.Decimal `json:"remaining_balance"`
}

// BuildSchedule splits total into monthly slices of at most limit, starting on
// start (day clamped to 28). The last slice carries the remainder.
func BuildSchedule(total, limit decimal.Decimal, start time.Time) ([]ScheduledInstallment, error) {
	if !total.IsPositive() || !limit.IsPositive() {
		return nil, fmt.Errorf("%w: total=%s limit=%s", internal.ErrInvalidScheduleInput, total.String(), limit.String())
	}

	first := clampDay(start)
	count := int(total.Div(limit).Ceil().IntPart())
	schedule := make([]ScheduledInstallment, 0, count)

	remaining := total
	for n := 1; remaining.IsPositive(); n++ {
		amount := decimal.Min(remaining, limit)
		remaining = remaining.Sub(amount)
		schedule = append(schedule, ScheduledInstallment{
			Number:         n,
			Date:           first.AddDate(0, n-1, 0),
			Amount:         amount,
			RemainingAfter: remaining,
		})
	}

	return schedule, nil
}

func clampDay(t time.Time) time.Time {
	y, m, d := t.Date()
	if d > maxScheduleDay {
		d = maxScheduleDay
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
