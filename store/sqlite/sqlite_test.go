package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/core"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var dbMonth = core.Month{Year: 2025, Month: time.June}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "payroll.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dbAttendance(emp core.EmployeeID, day int) *core.Attendance {
	checkIn := time.Date(2025, time.June, day, 9, 0, 0, 0, time.UTC)
	checkOut := time.Date(2025, time.June, day, 17, 15, 0, 0, time.UTC)
	return &core.Attendance{
		AuditRecord:        core.NewAuditRecord("test", time.Now().UTC()),
		Employee:           emp,
		Branch:             "branch-1",
		Date:               core.DateOf(checkIn),
		CheckInTime:        &checkIn,
		CheckOutTime:       &checkOut,
		WorkedHours:        core.MustDecimal("8.25"),
		BreakHours:         decimal.Zero,
		OvertimeHours:      core.MustDecimal("0.25"),
		Status:             core.StatusPresent,
		Type:               core.TypeRegular,
		CheckInDevice:      "term-a",
		VerificationMethod: core.VerifyFingerprint,
		VerificationScore:  0.97,
		CheckInLocation:    &core.Geolocation{Latitude: 40.0, Longitude: -74.0},
	}
}

func dbPayroll(emp core.EmployeeID) *core.PayrollRecord {
	rec := &core.PayrollRecord{
		AuditRecord:             core.NewAuditRecord("test", time.Now().UTC()),
		Employee:                emp,
		Branch:                  "branch-1",
		Month:                   dbMonth,
		Status:                  core.PayrollDraft,
		BaseSalary:              decimal.NewFromInt(50000),
		TaxDeduction:            decimal.NewFromInt(4000),
		SocialSecurityDeduction: decimal.NewFromInt(4500),
		HealthInsuranceDeduction: decimal.NewFromInt(1000),
		PensionDeduction:        decimal.NewFromInt(3500),
		PaymentMethod:           core.PayBankTransfer,
		BankAccount:             "000123456",
		Summary: core.MonthlyAttendanceSummary{
			Employee:     emp,
			Month:        dbMonth,
			WorkingDays:  22,
			PresentDays:  decimal.NewFromInt(20),
			RecordedDays: 22,
		},
	}
	rec.Recalculate()
	return rec
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestSQLite_AttendanceRoundTrip(t *testing.T) {
	s := openStore(t)
	rec := dbAttendance("emp-1", 2)

	require.NoError(t, s.PutAttendance(context.Background(), rec))

	got, err := s.GetAttendance(context.Background(), rec.Key())
	require.NoError(t, err)

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, core.StatusPresent, got.Status)
	assert.True(t, got.WorkedHours.Equal(core.MustDecimal("8.25")), "worked %s", got.WorkedHours)
	assert.True(t, got.OvertimeHours.Equal(core.MustDecimal("0.25")))
	require.NotNil(t, got.CheckInTime)
	assert.True(t, got.CheckInTime.Equal(*rec.CheckInTime))
	require.NotNil(t, got.CheckInLocation)
	assert.InDelta(t, 40.0, got.CheckInLocation.Latitude, 1e-9)
	assert.Equal(t, core.DeviceID("term-a"), got.CheckInDevice)
}

func TestSQLite_AttendanceMissingKey(t *testing.T) {
	s := openStore(t)

	_, err := s.GetAttendance(context.Background(),
		core.NewDayKey("emp-1", time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)))

	assert.True(t, core.IsNotFound(err))
}

func TestSQLite_DuplicateDayRejected(t *testing.T) {
	// The partial unique index on (employee, date) blocks a second record
	// under a different ID.
	s := openStore(t)
	require.NoError(t, s.PutAttendance(context.Background(), dbAttendance("emp-1", 2)))

	err := s.PutAttendance(context.Background(), dbAttendance("emp-1", 2))

	require.Error(t, err)
	var dup *core.DuplicateRecordError
	assert.True(t, errors.As(err, &dup))
}

func TestSQLite_AttendanceUpdateByID(t *testing.T) {
	s := openStore(t)
	rec := dbAttendance("emp-1", 2)
	require.NoError(t, s.PutAttendance(context.Background(), rec))

	rec.Status = core.StatusHalfDay
	rec.WorkedHours = decimal.NewFromInt(3)
	rec.ManualOverride = true
	rec.ManualOverrideBy = "hr-lead"
	rec.ManualOverrideReason = "checkout device fault"
	require.NoError(t, s.PutAttendance(context.Background(), rec))

	got, err := s.GetAttendance(context.Background(), rec.Key())
	require.NoError(t, err)
	assert.Equal(t, core.StatusHalfDay, got.Status)
	assert.True(t, got.ManualOverride)
	assert.Equal(t, "hr-lead", got.ManualOverrideBy)
	assert.Equal(t, int64(2), got.Version, "rewrites bump the stored version")
	assert.Equal(t, int64(2), rec.Version, "the stored version is handed back")
}

func TestSQLite_QueryRangeOrdered(t *testing.T) {
	s := openStore(t)
	for _, day := range []int{16, 2, 9} {
		require.NoError(t, s.PutAttendance(context.Background(), dbAttendance("emp-1", day)))
	}
	require.NoError(t, s.PutAttendance(context.Background(), dbAttendance("emp-2", 9)))

	got, err := s.QueryAttendanceRange(context.Background(), "emp-1",
		time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Date.Day())
	assert.Equal(t, 9, got[1].Date.Day())
}

// =============================================================================
// PAYROLL - OPTIMISTIC VERSIONING ON DISK
// =============================================================================

func TestSQLite_PayrollInsertAndReload(t *testing.T) {
	s := openStore(t)
	rec := dbPayroll("emp-1")

	require.NoError(t, s.PutPayroll(context.Background(), rec, 0))
	assert.Equal(t, int64(1), rec.Version)

	got, err := s.GetPayroll(context.Background(), rec.MonthKey())
	require.NoError(t, err)

	assert.True(t, got.GrossSalary.Equal(decimal.NewFromInt(50000)))
	assert.True(t, got.TotalDeductions.Equal(decimal.NewFromInt(13000)))
	assert.True(t, got.NetSalary.Equal(decimal.NewFromInt(37000)), "net %s", got.NetSalary)
	assert.Equal(t, core.PayBankTransfer, got.PaymentMethod)
	require.NoError(t, got.Validate(), "reloaded record keeps the arithmetic invariants")

	// The aggregation snapshot survives the round trip.
	assert.Equal(t, 22, got.Summary.WorkingDays)
	assert.True(t, got.Summary.PresentDays.Equal(decimal.NewFromInt(20)))
}

func TestSQLite_PayrollVersionConflict(t *testing.T) {
	// GIVEN: A committed record at version 1
	// WHEN: Two writers both carry version 1
	// THEN: The second write loses with ConcurrentModificationError

	s := openStore(t)
	rec := dbPayroll("emp-1")
	require.NoError(t, s.PutPayroll(context.Background(), rec, 0))

	winner, err := s.GetPayroll(context.Background(), rec.MonthKey())
	require.NoError(t, err)
	loser, err := s.GetPayroll(context.Background(), rec.MonthKey())
	require.NoError(t, err)

	winner.Notes = "first writer"
	require.NoError(t, s.PutPayroll(context.Background(), winner, 1))
	assert.Equal(t, int64(2), winner.Version)

	loser.Notes = "second writer"
	err = s.PutPayroll(context.Background(), loser, 1)

	var conflict *core.ConcurrentModificationError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(1), conflict.ExpectedVersion)

	stored, err := s.GetPayroll(context.Background(), rec.MonthKey())
	require.NoError(t, err)
	assert.Equal(t, "first writer", stored.Notes)
}

func TestSQLite_PayrollCreateRaceLosesAsVersionConflict(t *testing.T) {
	// Two fresh commits for the same employee-month: the loser gets the
	// same retryable version conflict a stale update would.
	s := openStore(t)
	first := dbPayroll("emp-1")
	require.NoError(t, s.PutPayroll(context.Background(), first, 0))

	err := s.PutPayroll(context.Background(), dbPayroll("emp-1"), 0)

	var conflict *core.ConcurrentModificationError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(0), conflict.ExpectedVersion)
	assert.Equal(t, first.Version, conflict.ActualVersion)
	assert.True(t, core.IsRetryable(err))
}

func TestSQLite_LineItemsRewrittenWithRecord(t *testing.T) {
	// GIVEN: A record committed with two allowances and one deduction
	// WHEN: Updating it with a single different allowance
	// THEN: The reload shows exactly the new line items

	s := openStore(t)
	rec := dbPayroll("emp-1")
	rec.Allowances = []core.PayrollAllowance{
		{ID: "a-1", Name: "housing", Type: core.AllowanceFixed, Amount: decimal.NewFromInt(5000), Taxable: true},
		{ID: "a-2", Name: "transport", Type: core.AllowanceFixed, Amount: decimal.NewFromInt(3000)},
	}
	rec.AllowanceTotal = decimal.NewFromInt(8000)
	rec.Deductions = []core.PayrollDeduction{
		{ID: "d-1", Name: "loan installment", Type: core.DeductionLoan, Amount: decimal.NewFromInt(2000)},
	}
	rec.OtherDeductions = decimal.NewFromInt(2000)
	rec.Recalculate()
	require.NoError(t, s.PutPayroll(context.Background(), rec, 0))

	got, err := s.GetPayroll(context.Background(), rec.MonthKey())
	require.NoError(t, err)
	require.Len(t, got.Allowances, 2)
	require.Len(t, got.Deductions, 1)
	byID := make(map[string]core.PayrollAllowance, len(got.Allowances))
	for _, a := range got.Allowances {
		byID[a.ID] = a
	}
	assert.True(t, byID["a-1"].Amount.Equal(decimal.NewFromInt(5000)))
	assert.True(t, byID["a-1"].Taxable)

	got.Allowances = []core.PayrollAllowance{
		{ID: "a-3", Name: "meal", Type: core.AllowanceOneTime, Amount: decimal.NewFromInt(750)},
	}
	got.AllowanceTotal = decimal.NewFromInt(750)
	got.Deductions = nil
	got.OtherDeductions = decimal.Zero
	got.Recalculate()
	require.NoError(t, s.PutPayroll(context.Background(), got, got.Version))

	again, err := s.GetPayroll(context.Background(), rec.MonthKey())
	require.NoError(t, err)
	require.Len(t, again.Allowances, 1)
	assert.Equal(t, "meal", again.Allowances[0].Name)
	assert.Empty(t, again.Deductions)
}

func TestSQLite_CorrectionsSurviveReload(t *testing.T) {
	s := openStore(t)
	rec := dbPayroll("emp-1")
	rec.Status = core.PayrollApproved
	rec.Corrections = []core.CorrectionEntry{{
		ID:        "corr-1",
		Field:     "otherDeductions",
		OldValue:  "0.00",
		NewValue:  "350.00",
		Reason:    "uniform charge missed in the run",
		Source:    "manual",
		AppliedBy: "hr-lead",
		AppliedAt: time.Date(2025, time.July, 3, 10, 0, 0, 0, time.UTC),
	}}
	require.NoError(t, s.PutPayroll(context.Background(), rec, 0))

	got, err := s.GetPayroll(context.Background(), rec.MonthKey())
	require.NoError(t, err)
	require.Len(t, got.Corrections, 1)
	assert.Equal(t, "corr-1", got.Corrections[0].ID)
	assert.Equal(t, "350.00", got.Corrections[0].NewValue)
}

func TestSQLite_QueryPayrollByStatus(t *testing.T) {
	s := openStore(t)

	draft := dbPayroll("emp-1")
	require.NoError(t, s.PutPayroll(context.Background(), draft, 0))

	approved := dbPayroll("emp-2")
	approved.Status = core.PayrollApproved
	require.NoError(t, s.PutPayroll(context.Background(), approved, 0))

	got, err := s.QueryPayrollByStatus(context.Background(), dbMonth, core.PayrollApproved)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.EmployeeID("emp-2"), got[0].Employee)

	all, err := s.QueryPayrollByStatus(context.Background(), dbMonth, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// EMPLOYEES AND BRANCHES
// =============================================================================

func TestSQLite_EmployeeRoundTrip(t *testing.T) {
	s := openStore(t)
	emp := &core.Employee{
		AuditRecord: core.NewAuditRecord("test", time.Now().UTC()),
		Code:        "EMP-001",
		FirstName:   "Nadia",
		LastName:    "Osei",
		Email:       "nadia.osei@example.com",
		Branch:      "branch-1",
		Status:      core.EmployeeActive,
		HireDate:    time.Date(2020, time.January, 15, 0, 0, 0, 0, time.UTC),
		BiometricID: "BIO-1001",
		Schedule: core.SchedulePolicy{
			ShiftStart:   core.MustClock("09:00"),
			ShiftEnd:     core.MustClock("17:00"),
			GraceMinutes: 5,
		},
		Salary: core.SalaryConfig{
			BaseSalary:    decimal.NewFromInt(50000),
			PaymentMethod: core.PayBankTransfer,
			BankAccount:   "000123456",
		},
	}
	require.NoError(t, s.PutEmployee(context.Background(), emp))

	got, err := s.GetEmployee(context.Background(), core.EmployeeID(emp.ID))
	require.NoError(t, err)
	assert.Equal(t, "EMP-001", got.Code)
	assert.Equal(t, core.MustClock("09:00"), got.Schedule.ShiftStart)
	assert.Equal(t, 5, got.Schedule.GraceMinutes)
	assert.True(t, got.Salary.BaseSalary.Equal(decimal.NewFromInt(50000)))

	byBio, err := s.FindEmployeeByBiometricID(context.Background(), "BIO-1001")
	require.NoError(t, err)
	assert.Equal(t, emp.ID, byBio.ID)
}

func TestSQLite_BranchWithDeviceRegistry(t *testing.T) {
	s := openStore(t)
	branch := &core.Branch{
		AuditRecord:    core.NewAuditRecord("test", time.Now().UTC()),
		Code:           "BR-1",
		Name:           "Headquarters",
		Timezone:       "UTC",
		Status:         core.BranchActive,
		Location:       core.Geolocation{Latitude: 40.0, Longitude: -74.0},
		GeofenceRadius: 150,
		Devices: []core.Device{
			{ID: "term-a", Name: "Lobby terminal", SerialNumber: "SN-001", Status: core.DeviceOnline},
			{ID: "term-b", Name: "Back entrance", SerialNumber: "SN-002", Status: core.DeviceOffline},
		},
	}
	require.NoError(t, s.PutBranch(context.Background(), branch))

	got, err := s.GetBranch(context.Background(), core.BranchID(branch.ID))
	require.NoError(t, err)
	assert.Equal(t, "BR-1", got.Code)
	assert.InDelta(t, 150, got.GeofenceRadius, 1e-9)
	require.Len(t, got.Devices, 2)
	assert.True(t, got.OwnsDevice("term-b"))
	assert.False(t, got.OwnsDevice("term-z"))
}
