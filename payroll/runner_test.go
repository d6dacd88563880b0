package payroll_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/core"
	"github.com/warp/payroll-engine/core/store"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// FIXTURE
// =============================================================================

const runnerBranch = core.BranchID("branch-1")

func newRunner(mem *store.Memory) *payroll.Runner {
	ctrl := payroll.NewController(mem, nil, nil)
	ctrl.Clock = func() time.Time { return lifecycleClock }
	return &payroll.Runner{
		Store:      mem,
		Aggregator: attendance.NewAggregator(mem),
		Calculator: newCalculator(),
		Controller: ctrl,
	}
}

// seedMonth stores `days` PRESENT records for the employee in calcMonth.
func seedMonth(t *testing.T, mem *store.Memory, emp *core.Employee, days int) {
	t.Helper()
	for i := 0; i < days; i++ {
		rec := &core.Attendance{
			AuditRecord:   core.NewAuditRecord("test", time.Now()),
			Employee:      core.EmployeeID(emp.ID),
			Branch:        emp.Branch,
			Date:          time.Date(calcMonth.Year, calcMonth.Month, i+1, 0, 0, 0, 0, time.UTC),
			Status:        core.StatusPresent,
			Type:          core.TypeRegular,
			WorkedHours:   decimal.NewFromInt(8),
			BreakHours:    decimal.Zero,
			OvertimeHours: decimal.Zero,
		}
		require.NoError(t, mem.PutAttendance(context.Background(), rec))
	}
}

func seedEmployee(t *testing.T, mem *store.Memory, code, base string) *core.Employee {
	t.Helper()
	emp := salariedEmployee(base)
	emp.Code = code
	require.NoError(t, mem.PutEmployee(context.Background(), emp))
	return emp
}

// =============================================================================
// SINGLE EMPLOYEE
// =============================================================================

func TestCalculateOne_AggregatesThenCalculates(t *testing.T) {
	mem := store.NewMemory()
	emp := seedEmployee(t, mem, "EMP-001", "50000")
	seedMonth(t, mem, emp, 20)

	rec, err := newRunner(mem).CalculateOne(context.Background(), emp, calcMonth, "runner", false)
	require.NoError(t, err)

	assert.Equal(t, core.PayrollCalculated, rec.Status)
	assert.Equal(t, 20, rec.Summary.RecordedDays)
	assert.True(t, rec.NetSalary.Equal(decimal.NewFromInt(37000)), "net %s", rec.NetSalary)
}

func TestCalculateOne_IncompleteMonthFails(t *testing.T) {
	mem := store.NewMemory()
	emp := seedEmployee(t, mem, "EMP-001", "50000")
	seedMonth(t, mem, emp, 12)

	_, err := newRunner(mem).CalculateOne(context.Background(), emp, calcMonth, "runner", false)
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))

	// Partial mode produces a draft aggregation instead.
	rec, err := newRunner(mem).CalculateOne(context.Background(), emp, calcMonth, "runner", true)
	require.NoError(t, err)
	assert.True(t, rec.Summary.Partial)
}

func TestCalculateOne_PriorMonthBaseline(t *testing.T) {
	// GIVEN: A committed prior month with a far smaller net
	// WHEN: Calculating the current month
	// THEN: The swing flags the new record

	mem := store.NewMemory()
	emp := seedEmployee(t, mem, "EMP-001", "50000")
	seedMonth(t, mem, emp, 20)

	prior := &core.PayrollRecord{
		AuditRecord: core.NewAuditRecord("test", time.Now()),
		Employee:    core.EmployeeID(emp.ID),
		Branch:      emp.Branch,
		Month:       calcMonth.Prev(),
		Status:      core.PayrollPaid,
		BaseSalary:  decimal.NewFromInt(9000),
		GrossSalary: decimal.NewFromInt(9000),
		NetSalary:   decimal.NewFromInt(9000),
	}
	require.NoError(t, mem.PutPayroll(context.Background(), prior, 0))

	rec, err := newRunner(mem).CalculateOne(context.Background(), emp, calcMonth, "runner", false)
	require.NoError(t, err)

	assert.True(t, rec.IsFlagged)
	assert.NotEmpty(t, rec.FlagReason)
}

// =============================================================================
// BRANCH BATCH
// =============================================================================

func TestRunBranch_OneResultPerEmployee(t *testing.T) {
	mem := store.NewMemory()

	complete := seedEmployee(t, mem, "EMP-001", "50000")
	seedMonth(t, mem, complete, 20)

	short := seedEmployee(t, mem, "EMP-002", "42000")
	seedMonth(t, mem, short, 10)

	inactive := seedEmployee(t, mem, "EMP-003", "38000")
	inactive.Status = core.EmployeeTerminated
	require.NoError(t, mem.PutEmployee(context.Background(), inactive))

	results, err := newRunner(mem).RunBranch(context.Background(), runnerBranch, calcMonth, "runner", false)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, sort.SliceIsSorted(results, func(i, j int) bool {
		return results[i].Employee < results[j].Employee
	}))

	byEmployee := make(map[core.EmployeeID]payroll.RunResult, len(results))
	for _, res := range results {
		byEmployee[res.Employee] = res
	}

	ok := byEmployee[core.EmployeeID(complete.ID)]
	require.NoError(t, ok.Err)
	require.NotNil(t, ok.Record)
	assert.Equal(t, core.PayrollCalculated, ok.Record.Status)

	failed := byEmployee[core.EmployeeID(short.ID)]
	require.Error(t, failed.Err)
	assert.Nil(t, failed.Record)

	skipped := byEmployee[core.EmployeeID(inactive.ID)]
	assert.NoError(t, skipped.Err)
	assert.Nil(t, skipped.Record, "inactive employees are skipped, not calculated")
}

func TestRunBranch_ConcurrentWorkersCommitAll(t *testing.T) {
	mem := store.NewMemory()
	runner := newRunner(mem)
	runner.Concurrency = 8

	var ids []core.EmployeeID
	for i := 0; i < 12; i++ {
		emp := seedEmployee(t, mem, "EMP-"+string(rune('A'+i)), "30000")
		seedMonth(t, mem, emp, 20)
		ids = append(ids, core.EmployeeID(emp.ID))
	}

	results, err := runner.RunBranch(context.Background(), runnerBranch, calcMonth, "runner", false)
	require.NoError(t, err)
	require.Len(t, results, 12)

	for _, res := range results {
		require.NoError(t, res.Err)
		require.NotNil(t, res.Record)
	}

	// Every record committed to the store at version 1.
	for _, id := range ids {
		stored, err := mem.GetPayroll(context.Background(), core.MonthKey{Employee: id, Month: calcMonth})
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Version)
	}
}

func TestRunBranch_RerunRecomputes(t *testing.T) {
	mem := store.NewMemory()
	runner := newRunner(mem)

	emp := seedEmployee(t, mem, "EMP-001", "50000")
	seedMonth(t, mem, emp, 20)

	_, err := runner.RunBranch(context.Background(), runnerBranch, calcMonth, "runner", false)
	require.NoError(t, err)

	results, err := runner.RunBranch(context.Background(), runnerBranch, calcMonth, "runner", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	// Recomputation bumped the stored version instead of duplicating.
	assert.Equal(t, int64(2), results[0].Record.Version)
}
