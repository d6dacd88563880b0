package attendance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// AGGREGATOR - One month of attendance into summary counters
// =============================================================================

// DefaultMinCoverage is the fraction of working days that must have a
// record before a month may be closed without partial mode.
const DefaultMinCoverage = 0.9

// AggregateOptions controls completeness checking.
type AggregateOptions struct {
	// Partial skips the completeness check and marks the summary as draft.
	Partial bool

	// MinCoverage overrides DefaultMinCoverage when > 0.
	MinCoverage float64
}

// Aggregate folds a month's attendance records into a summary. Pure
// function of its inputs: no store access, no clock.
//
// Records outside the month are ignored. Two records on the same date
// violate the one-per-day invariant and fail aggregation outright.
func Aggregate(emp core.EmployeeID, month core.Month, records []*core.Attendance, policy core.SchedulePolicy, opts AggregateOptions) (core.MonthlyAttendanceSummary, error) {
	summary := core.MonthlyAttendanceSummary{
		Employee:           emp,
		Month:              month,
		WorkingDays:        policy.WorkingDaysIn(month),
		PresentDays:        decimal.Zero,
		TotalWorkedHours:   decimal.Zero,
		TotalOvertimeHours: decimal.Zero,
		Partial:            opts.Partial,
	}

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.Employee != emp || !month.Contains(rec.Date) || rec.IsDeleted() {
			continue
		}
		day := rec.Date.Format("2006-01-02")
		if seen[day] {
			return core.MonthlyAttendanceSummary{}, &core.ValidationError{
				Field:   "records",
				Message: fmt.Sprintf("two attendance records for %s on %s", emp, day),
			}
		}
		seen[day] = true

		summary.PresentDays = summary.PresentDays.Add(rec.Status.PresenceWeight())
		summary.TotalWorkedHours = summary.TotalWorkedHours.Add(rec.WorkedHours)
		summary.TotalOvertimeHours = summary.TotalOvertimeHours.Add(rec.OvertimeHours)

		if rec.Status.CountsAsScheduled() {
			summary.RecordedDays++
		}

		switch rec.Status {
		case core.StatusAbsent:
			summary.AbsentDays++
		case core.StatusLeave:
			summary.LeaveDays++
		case core.StatusPresent, core.StatusLate, core.StatusHalfDay,
			core.StatusWeekend, core.StatusHoliday:
			// counted via presence weight / not scheduled
		}

		if rec.LateArrivalMinutes > 0 {
			summary.LateArrivals++
		}
		if rec.EarlyDepartureMinutes > 0 {
			summary.EarlyDepartures++
		}
	}

	if !opts.Partial {
		minCoverage := opts.MinCoverage
		if minCoverage <= 0 {
			minCoverage = DefaultMinCoverage
		}
		required := int(float64(summary.WorkingDays)*minCoverage + 0.5)
		if summary.RecordedDays < required {
			return core.MonthlyAttendanceSummary{}, &core.IncompleteAttendanceError{
				Employee:     emp,
				Month:        month,
				RecordedDays: summary.RecordedDays,
				WorkingDays:  summary.WorkingDays,
				MinCoverage:  minCoverage,
			}
		}
	}

	return summary, nil
}

// =============================================================================
// STORE-BACKED AGGREGATION
// =============================================================================

// Aggregator runs Aggregate against the record store.
type Aggregator struct {
	Store       core.AttendanceStore
	MinCoverage float64
}

func NewAggregator(store core.AttendanceStore) *Aggregator {
	return &Aggregator{Store: store}
}

// AggregateMonth loads the employee's records intersecting the month and
// folds them. Set partial for a draft aggregation of an open month.
func (a *Aggregator) AggregateMonth(ctx context.Context, emp *core.Employee, month core.Month, partial bool) (core.MonthlyAttendanceSummary, error) {
	records, err := a.Store.QueryAttendanceRange(ctx, core.EmployeeID(emp.ID), month.Start(), month.End())
	if err != nil {
		return core.MonthlyAttendanceSummary{}, fmt.Errorf("load attendance for %s %s: %w", emp.ID, month, err)
	}
	return Aggregate(core.EmployeeID(emp.ID), month, records, emp.Schedule, AggregateOptions{
		Partial:     partial,
		MinCoverage: a.MinCoverage,
	})
}
