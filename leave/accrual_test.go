package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/core"
	"github.com/warp/payroll-engine/core/store"
	"github.com/warp/payroll-engine/leave"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const leaveBranch = core.BranchID("branch-1")

var (
	accrualJune  = core.Month{Year: 2025, Month: time.June}
	accrualClock = time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)
)

func newAccruer(mem *store.Memory) *leave.Accruer {
	a := leave.NewAccruer(mem)
	a.Clock = func() time.Time { return accrualClock }
	return a
}

func seedLeaveEmployee(t *testing.T, mem *store.Memory, code string, hired time.Time) *core.Employee {
	t.Helper()
	emp := &core.Employee{
		AuditRecord: core.NewAuditRecord("test", time.Now()),
		Code:        code,
		FirstName:   "Dana",
		LastName:    "Reyes",
		Branch:      leaveBranch,
		Status:      core.EmployeeActive,
		HireDate:    hired,
	}
	require.NoError(t, mem.PutEmployee(context.Background(), emp))
	return emp
}

func seedLeaveDay(t *testing.T, mem *store.Memory, emp *core.Employee, day int, month core.Month, lt core.LeaveType) {
	t.Helper()
	rec := &core.Attendance{
		AuditRecord: core.NewAuditRecord("test", time.Now()),
		Employee:    core.EmployeeID(emp.ID),
		Branch:      leaveBranch,
		Date:        time.Date(month.Year, month.Month, day, 0, 0, 0, 0, time.UTC),
		Status:      core.StatusLeave,
		LeaveType:   lt,
		Type:        core.TypeRegular,
	}
	require.NoError(t, mem.PutAttendance(context.Background(), rec))
}

func reload(t *testing.T, mem *store.Memory, emp *core.Employee) *core.Employee {
	t.Helper()
	got, err := mem.GetEmployee(context.Background(), core.EmployeeID(emp.ID))
	require.NoError(t, err)
	return got
}

// =============================================================================
// POLICY
// =============================================================================

func TestPolicy_TierSelection(t *testing.T) {
	// GIVEN: The standard annual policy with tiers at 0, 3 and 5 years
	// WHEN: Looking up the yearly accrual per tenure
	// THEN: The highest matching tier wins

	p := leave.StandardAnnualPolicy()

	cases := []struct {
		years int
		days  int64
	}{
		{0, 15}, {2, 15}, {3, 20}, {4, 20}, {5, 25}, {12, 25},
	}
	for _, c := range cases {
		assert.True(t, p.AnnualDaysFor(c.years).Equal(decimal.NewFromInt(c.days)),
			"years=%d", c.years)
	}
}

func TestPolicy_MonthlyAccrualRounded(t *testing.T) {
	// GIVEN: Tiered yearly accruals
	// WHEN: Dividing into monthly shares
	// THEN: Shares are rounded to two decimal places

	annual := leave.StandardAnnualPolicy()
	assert.Equal(t, "1.25", annual.MonthlyAccrual(0).String())
	assert.Equal(t, "1.67", annual.MonthlyAccrual(3).String())
	assert.Equal(t, "2.08", annual.MonthlyAccrual(5).String())

	sick := leave.StandardSickPolicy()
	assert.Equal(t, "1", sick.MonthlyAccrual(0).String())
}

// =============================================================================
// MONTHLY POSTING
// =============================================================================

func TestPostMonth_AccrualAndUsage(t *testing.T) {
	// GIVEN: A five-year employee with 10 annual days banked who took
	//        2 annual and 1 sick leave day in June
	// WHEN: Posting June
	// THEN: Balances move by accrual minus usage; unpaid leave is ignored

	mem := store.NewMemory()
	emp := seedLeaveEmployee(t, mem, "E001", time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC))
	emp.AnnualLeaveBalance = decimal.NewFromInt(10)
	require.NoError(t, mem.PutEmployee(context.Background(), emp))

	seedLeaveDay(t, mem, emp, 2, accrualJune, core.LeaveAnnual)
	seedLeaveDay(t, mem, emp, 3, accrualJune, core.LeaveAnnual)
	seedLeaveDay(t, mem, emp, 4, accrualJune, core.LeaveSick)
	seedLeaveDay(t, mem, emp, 5, accrualJune, core.LeaveUnpaid)

	postings, err := newAccruer(mem).PostMonth(context.Background(), leaveBranch, accrualJune, "hr-admin")
	require.NoError(t, err)
	require.Len(t, postings, 1)

	p := postings[0]
	require.NoError(t, p.Err)
	assert.Equal(t, "2.08", p.AnnualAccrued.String())
	assert.Equal(t, "2", p.AnnualUsed.String())
	assert.Equal(t, "10.08", p.AnnualBalance.String())
	assert.Equal(t, "1", p.SickAccrued.String())
	assert.Equal(t, "1", p.SickUsed.String())
	assert.True(t, p.SickBalance.IsZero())

	stored := reload(t, mem, emp)
	assert.Equal(t, "10.08", stored.AnnualLeaveBalance.String())
	assert.True(t, stored.SickLeaveBalance.IsZero())
	assert.Equal(t, "hr-admin", stored.UpdatedBy)
	assert.True(t, stored.UpdatedAt.Equal(accrualClock))
}

func TestPostMonth_AnnualBalanceFloorsAtZero(t *testing.T) {
	// GIVEN: One banked day and four annual leave days taken
	// WHEN: Posting the month
	// THEN: The annual balance is floored at zero, not driven negative

	mem := store.NewMemory()
	emp := seedLeaveEmployee(t, mem, "E001", time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))
	emp.AnnualLeaveBalance = decimal.NewFromInt(1)
	require.NoError(t, mem.PutEmployee(context.Background(), emp))

	for day := 2; day <= 5; day++ {
		seedLeaveDay(t, mem, emp, day, accrualJune, core.LeaveAnnual)
	}

	postings, err := newAccruer(mem).PostMonth(context.Background(), leaveBranch, accrualJune, "hr-admin")
	require.NoError(t, err)
	require.Len(t, postings, 1)

	assert.Equal(t, "4", postings[0].AnnualUsed.String())
	assert.True(t, postings[0].AnnualBalance.IsZero())
	assert.True(t, reload(t, mem, emp).AnnualLeaveBalance.IsZero())
}

func TestPostMonth_SickBalanceMayGoNegative(t *testing.T) {
	// GIVEN: No banked sick days and three sick days taken
	// WHEN: Posting the month
	// THEN: The sick balance goes negative; illness does not wait for accrual

	mem := store.NewMemory()
	emp := seedLeaveEmployee(t, mem, "E001", time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))

	for day := 2; day <= 4; day++ {
		seedLeaveDay(t, mem, emp, day, accrualJune, core.LeaveSick)
	}

	postings, err := newAccruer(mem).PostMonth(context.Background(), leaveBranch, accrualJune, "hr-admin")
	require.NoError(t, err)
	require.Len(t, postings, 1)

	assert.Equal(t, "-2", postings[0].SickBalance.String())
	assert.Equal(t, "-2", reload(t, mem, emp).SickLeaveBalance.String())
}

func TestPostMonth_JanuaryCarryoverCapped(t *testing.T) {
	// GIVEN: 9 annual and 4 sick days left over from the previous year
	// WHEN: Posting January
	// THEN: Annual carryover is capped at 5, sick expires entirely,
	//       then the month accrues on top

	january := core.Month{Year: 2025, Month: time.January}

	mem := store.NewMemory()
	emp := seedLeaveEmployee(t, mem, "E001", time.Date(2020, time.June, 15, 0, 0, 0, 0, time.UTC))
	emp.AnnualLeaveBalance = decimal.NewFromInt(9)
	emp.SickLeaveBalance = decimal.NewFromInt(4)
	require.NoError(t, mem.PutEmployee(context.Background(), emp))

	postings, err := newAccruer(mem).PostMonth(context.Background(), leaveBranch, january, "hr-admin")
	require.NoError(t, err)
	require.Len(t, postings, 1)

	// 4 whole years of service on January 1, so the 20-day tier applies.
	assert.Equal(t, "6.67", postings[0].AnnualBalance.String())
	assert.Equal(t, "1", postings[0].SickBalance.String())
}

func TestPostMonth_MidYearBalanceCarriesUncapped(t *testing.T) {
	// GIVEN: A balance above the carryover cap in a non-January month
	// WHEN: Posting June
	// THEN: The cap does not apply; it is a year-boundary rule only

	mem := store.NewMemory()
	emp := seedLeaveEmployee(t, mem, "E001", time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))
	emp.AnnualLeaveBalance = decimal.NewFromInt(9)
	require.NoError(t, mem.PutEmployee(context.Background(), emp))

	postings, err := newAccruer(mem).PostMonth(context.Background(), leaveBranch, accrualJune, "hr-admin")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, "10.25", postings[0].AnnualBalance.String())
}

func TestPostMonth_SkipsInactiveAndFutureHires(t *testing.T) {
	// GIVEN: An active employee, a terminated one, and one hired after June
	// WHEN: Posting June for the branch
	// THEN: Only the active, already-hired employee is posted

	mem := store.NewMemory()
	seedLeaveEmployee(t, mem, "E001", time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))

	terminated := seedLeaveEmployee(t, mem, "E002", time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC))
	terminated.Status = core.EmployeeTerminated
	require.NoError(t, mem.PutEmployee(context.Background(), terminated))

	seedLeaveEmployee(t, mem, "E003", time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC))

	postings, err := newAccruer(mem).PostMonth(context.Background(), leaveBranch, accrualJune, "hr-admin")
	require.NoError(t, err)
	require.Len(t, postings, 1)
}

func TestPostMonth_RequiresActor(t *testing.T) {
	// GIVEN: A posting request without an actor
	// WHEN: Posting
	// THEN: The request is rejected as a validation error

	mem := store.NewMemory()
	_, err := newAccruer(mem).PostMonth(context.Background(), leaveBranch, accrualJune, "")
	require.Error(t, err)
	assert.True(t, core.IsClientError(err))
}

// =============================================================================
// PROJECTION
// =============================================================================

func TestProjectedAnnualBalance(t *testing.T) {
	// GIVEN: A five-year employee with 10 banked days in mid June
	// WHEN: Projecting to year end
	// THEN: Six remaining monthly accruals are added at the current tier

	mem := store.NewMemory()
	emp := seedLeaveEmployee(t, mem, "E001", time.Date(2019, time.February, 1, 0, 0, 0, 0, time.UTC))
	emp.AnnualLeaveBalance = decimal.NewFromInt(10)

	a := newAccruer(mem)
	projected := a.ProjectedAnnualBalance(emp, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "22.48", projected.String())

	// December has nothing left to accrue.
	yearEnd := a.ProjectedAnnualBalance(emp, time.Date(2025, time.December, 10, 0, 0, 0, 0, time.UTC))
	assert.True(t, yearEnd.Equal(emp.AnnualLeaveBalance))
}
