package attendance_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const aggEmployee = core.EmployeeID("emp-1")

var june = core.Month{Year: 2025, Month: time.June}

func record(day int, status core.AttendanceStatus, worked string) *core.Attendance {
	rec := &core.Attendance{
		AuditRecord:   core.NewAuditRecord("test", time.Now()),
		Employee:      aggEmployee,
		Branch:        "branch-1",
		Date:          time.Date(2025, time.June, day, 0, 0, 0, 0, time.UTC),
		Status:        status,
		Type:          core.TypeRegular,
		WorkedHours:   core.MustDecimal(worked),
		BreakHours:    decimal.Zero,
		OvertimeHours: decimal.Zero,
	}
	if status == core.StatusLate {
		rec.LateArrivalMinutes = 12
	}
	return rec
}

// fullMonth builds n scheduled-day records, all PRESENT at 8 hours.
func fullMonth(n int) []*core.Attendance {
	records := make([]*core.Attendance, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, record(i+1, core.StatusPresent, "8"))
	}
	return records
}

func defaultPolicy() core.SchedulePolicy {
	return core.SchedulePolicy{
		ShiftStart: core.MustClock("09:00"),
		ShiftEnd:   core.MustClock("17:00"),
	}
}

// =============================================================================
// COUNTING
// =============================================================================

func TestAggregate_PresenceWeights(t *testing.T) {
	// GIVEN: 18 present days, 2 late, 2 half days
	// WHEN: Aggregating the month
	// THEN: presentDays = 18 + 2 + 2*0.5 = 21, lateArrivals = 2

	records := fullMonth(18)
	records = append(records,
		record(19, core.StatusLate, "8"),
		record(20, core.StatusLate, "8"),
		record(23, core.StatusHalfDay, "4"),
		record(24, core.StatusHalfDay, "3.5"),
	)

	summary, err := attendance.Aggregate(aggEmployee, june, records, defaultPolicy(), attendance.AggregateOptions{})
	require.NoError(t, err)

	assert.True(t, summary.PresentDays.Equal(decimal.NewFromInt(21)),
		"presentDays %s", summary.PresentDays)
	assert.Equal(t, 2, summary.LateArrivals)
	assert.Equal(t, 22, summary.RecordedDays)
	assert.Equal(t, 22, summary.WorkingDays)
	assert.True(t, summary.TotalWorkedHours.Equal(core.MustDecimal("167.5")),
		"totalWorkedHours %s", summary.TotalWorkedHours)
}

func TestAggregate_AbsentAndLeaveCountAsRecorded(t *testing.T) {
	// ABSENT and LEAVE are accounted-for scheduled days: they satisfy the
	// completeness check even though they add no presence.
	records := fullMonth(18)
	records = append(records,
		record(19, core.StatusAbsent, "0"),
		record(20, core.StatusAbsent, "0"),
	)
	leave := record(23, core.StatusLeave, "0")
	leave.LeaveType = core.LeaveAnnual
	records = append(records, leave, record(24, core.StatusLeave, "0"))

	summary, err := attendance.Aggregate(aggEmployee, june, records, defaultPolicy(), attendance.AggregateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 22, summary.RecordedDays)
	assert.Equal(t, 2, summary.AbsentDays)
	assert.Equal(t, 2, summary.LeaveDays)
	assert.True(t, summary.PresentDays.Equal(decimal.NewFromInt(18)))
}

func TestAggregate_WeekendsNotScheduled(t *testing.T) {
	// Weekend and holiday records exist for audit but do not count toward
	// completeness.
	records := fullMonth(20)
	records = append(records,
		record(7, core.StatusWeekend, "0"),
		record(8, core.StatusWeekend, "0"),
		record(16, core.StatusHoliday, "0"),
	)

	summary, err := attendance.Aggregate(aggEmployee, june, records, defaultPolicy(), attendance.AggregateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 20, summary.RecordedDays)
}

func TestAggregate_RecordsOutsideMonthIgnored(t *testing.T) {
	records := fullMonth(20)
	stray := record(15, core.StatusPresent, "8")
	stray.Date = time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC)
	records = append(records, stray)

	other := record(16, core.StatusPresent, "8")
	other.Employee = "someone-else"
	other.Date = time.Date(2025, time.June, 27, 0, 0, 0, 0, time.UTC)
	records = append(records, other)

	summary, err := attendance.Aggregate(aggEmployee, june, records, defaultPolicy(), attendance.AggregateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 20, summary.RecordedDays)
	assert.True(t, summary.PresentDays.Equal(decimal.NewFromInt(20)))
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestAggregate_DuplicateDateFails(t *testing.T) {
	records := fullMonth(20)
	records = append(records, record(5, core.StatusHalfDay, "3"))

	_, err := attendance.Aggregate(aggEmployee, june, records, defaultPolicy(), attendance.AggregateOptions{})

	require.Error(t, err)
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))
}

// =============================================================================
// COMPLETENESS
// =============================================================================

func TestAggregate_IncompleteMonthRejected(t *testing.T) {
	// GIVEN: 19 recorded days against 22 working days at 90% coverage
	// WHEN: Aggregating without partial mode
	// THEN: IncompleteAttendanceError (required = 20)

	_, err := attendance.Aggregate(aggEmployee, june, fullMonth(19), defaultPolicy(), attendance.AggregateOptions{})

	require.Error(t, err)
	var incomplete *core.IncompleteAttendanceError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, 19, incomplete.RecordedDays)
	assert.Equal(t, 22, incomplete.WorkingDays)
}

func TestAggregate_ExactThresholdPasses(t *testing.T) {
	// 20 of 22 is exactly the rounded 90% requirement.
	summary, err := attendance.Aggregate(aggEmployee, june, fullMonth(20), defaultPolicy(), attendance.AggregateOptions{})

	require.NoError(t, err)
	assert.Equal(t, 20, summary.RecordedDays)
	assert.False(t, summary.Partial)
}

func TestAggregate_PartialSkipsCompleteness(t *testing.T) {
	summary, err := attendance.Aggregate(aggEmployee, june, fullMonth(5), defaultPolicy(), attendance.AggregateOptions{Partial: true})

	require.NoError(t, err)
	assert.True(t, summary.Partial)
	assert.Equal(t, 5, summary.RecordedDays)
}

func TestAggregate_CustomCoverage(t *testing.T) {
	// Half coverage: 11 of 22 suffices.
	summary, err := attendance.Aggregate(aggEmployee, june, fullMonth(11), defaultPolicy(), attendance.AggregateOptions{MinCoverage: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 11, summary.RecordedDays)

	_, err = attendance.Aggregate(aggEmployee, june, fullMonth(10), defaultPolicy(), attendance.AggregateOptions{MinCoverage: 0.5})
	require.Error(t, err)
}

func TestAggregate_PolicyWorkingDaysOverride(t *testing.T) {
	policy := defaultPolicy()
	policy.ExpectedMonthlyDays = 26

	summary, err := attendance.Aggregate(aggEmployee, june, fullMonth(24), policy, attendance.AggregateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 26, summary.WorkingDays)

	// Rounded 90% of 26 is 23 required days, so 22 is short.
	_, err = attendance.Aggregate(aggEmployee, june, fullMonth(22), policy, attendance.AggregateOptions{})
	require.Error(t, err)
}

func TestAggregate_LongMonthFollowsCalendar(t *testing.T) {
	// GIVEN: July 2025, whose calendar holds 23 scheduled weekdays
	// WHEN: Aggregating a fully present month under the default policy
	// THEN: The denominator expands to the calendar count, so presence
	//       plus absence stays within workingDays

	july := core.Month{Year: 2025, Month: time.July}
	policy := defaultPolicy()

	var records []*core.Attendance
	for d := july.Start(); !d.After(july.End()); d = d.AddDate(0, 0, 1) {
		if !policy.IsWorkingDay(d) {
			continue
		}
		rec := record(1, core.StatusPresent, "8")
		rec.Date = d
		records = append(records, rec)
	}
	require.Len(t, records, 23)

	summary, err := attendance.Aggregate(aggEmployee, july, records, policy, attendance.AggregateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 23, summary.WorkingDays)
	assert.True(t, summary.PresentDays.Equal(decimal.NewFromInt(23)),
		"presentDays %s", summary.PresentDays)
	bound := summary.PresentDays.Add(decimal.NewFromInt(int64(summary.AbsentDays)))
	assert.True(t, bound.LessThanOrEqual(decimal.NewFromInt(int64(summary.WorkingDays))),
		"present %s + absent %d must stay within workingDays %d",
		summary.PresentDays, summary.AbsentDays, summary.WorkingDays)
}
