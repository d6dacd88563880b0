package payroll_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/core"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var calcMonth = core.Month{Year: 2025, Month: time.June}

func salariedEmployee(base string) *core.Employee {
	return &core.Employee{
		AuditRecord: core.NewAuditRecord("test", time.Now()),
		Code:        "EMP-001",
		FirstName:   "Nadia",
		LastName:    "Osei",
		Branch:      "branch-1",
		Status:      core.EmployeeActive,
		HireDate:    time.Date(2020, time.January, 15, 0, 0, 0, 0, time.UTC),
		Salary: core.SalaryConfig{
			BaseSalary:    core.MustDecimal(base),
			PaymentMethod: core.PayBankTransfer,
			BankName:      "First National",
			BankAccount:   "000123456",
		},
	}
}

func monthSummary(presentDays int64, overtimeHours string) core.MonthlyAttendanceSummary {
	return core.MonthlyAttendanceSummary{
		Employee:           "emp-1",
		Month:              calcMonth,
		WorkingDays:        22,
		PresentDays:        decimal.NewFromInt(presentDays),
		RecordedDays:       22,
		TotalWorkedHours:   decimal.NewFromInt(presentDays * 8),
		TotalOvertimeHours: core.MustDecimal(overtimeHours),
	}
}

func calcInput(emp *core.Employee, summary core.MonthlyAttendanceSummary) payroll.Input {
	return payroll.Input{
		Employee: emp,
		Summary:  summary,
		Actor:    "calculator",
		Now:      time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newCalculator() *payroll.Calculator {
	return payroll.NewCalculator(payroll.DefaultRateTable(), payroll.DefaultCalcConfig())
}

// =============================================================================
// BASELINE SCENARIO
// =============================================================================

func TestCalculate_StandardMonth(t *testing.T) {
	// GIVEN: Base 50000, 20 of 22 present, no overtime, no allowances
	// WHEN: Calculating with the default rate table
	// THEN: gross 50000, tax 4000, SS 4500, HI 1000, pension 3500, net 37000

	emp := salariedEmployee("50000")
	rec, err := newCalculator().Calculate(calcInput(emp, monthSummary(20, "0")))
	require.NoError(t, err)

	assert.Equal(t, core.PayrollDraft, rec.Status)
	assert.True(t, rec.GrossSalary.Equal(decimal.NewFromInt(50000)), "gross %s", rec.GrossSalary)
	assert.True(t, rec.TaxDeduction.Equal(decimal.NewFromInt(4000)), "tax %s", rec.TaxDeduction)
	assert.True(t, rec.SocialSecurityDeduction.Equal(decimal.NewFromInt(4500)))
	assert.True(t, rec.HealthInsuranceDeduction.Equal(decimal.NewFromInt(1000)))
	assert.True(t, rec.PensionDeduction.Equal(decimal.NewFromInt(3500)))
	assert.True(t, rec.TotalDeductions.Equal(decimal.NewFromInt(13000)))
	assert.True(t, rec.NetSalary.Equal(decimal.NewFromInt(37000)), "net %s", rec.NetSalary)

	// Arithmetic invariants hold on the minted record.
	require.NoError(t, rec.Validate())
	assert.True(t, rec.NetSalary.Equal(rec.GrossSalary.Sub(rec.TotalDeductions)))

	// Payment details are copied from the salary config.
	assert.Equal(t, core.PayBankTransfer, rec.PaymentMethod)
	assert.Equal(t, "000123456", rec.BankAccount)
}

func TestCalculate_Deterministic(t *testing.T) {
	emp := salariedEmployee("73210.55")
	in := calcInput(emp, monthSummary(21, "6.5"))

	first, err := newCalculator().Calculate(in)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := newCalculator().Calculate(in)
		require.NoError(t, err)
		assert.True(t, first.NetSalary.Equal(again.NetSalary))
		assert.True(t, first.TaxDeduction.Equal(again.TaxDeduction))
	}
}

// =============================================================================
// OVERTIME
// =============================================================================

func TestCalculate_OvertimePay(t *testing.T) {
	// Base 17600 over 176 standard hours is a 100/h rate; 10 overtime hours
	// at 1.5x adds 1500.
	emp := salariedEmployee("17600")
	rec, err := newCalculator().Calculate(calcInput(emp, monthSummary(22, "10")))
	require.NoError(t, err)

	assert.True(t, rec.OvertimeAmount.Equal(decimal.NewFromInt(1500)),
		"overtime %s", rec.OvertimeAmount)
	assert.True(t, rec.GrossSalary.Equal(decimal.NewFromInt(19100)))
}

func TestCalculate_EmployeeStandardHoursOverride(t *testing.T) {
	// A salary config with 160 standard hours beats the calculator default.
	emp := salariedEmployee("16000")
	emp.Salary.StandardMonthlyHours = decimal.NewFromInt(160)

	rec, err := newCalculator().Calculate(calcInput(emp, monthSummary(22, "4")))
	require.NoError(t, err)

	// 100/h rate, 4h at 1.5x = 600.
	assert.True(t, rec.OvertimeAmount.Equal(decimal.NewFromInt(600)),
		"overtime %s", rec.OvertimeAmount)
}

// =============================================================================
// ALLOWANCES AND TAXABLE BASE
// =============================================================================

func TestCalculate_NonTaxableAllowanceCarveOut(t *testing.T) {
	// GIVEN: 40000 base, 5000 taxable and 3000 non-taxable allowances
	// WHEN: Calculating
	// THEN: Both count toward gross; only the non-taxable one leaves the
	//       taxable base. Contributions still apply to full gross.

	emp := salariedEmployee("40000")
	in := calcInput(emp, monthSummary(22, "0"))
	in.Allowances = []core.PayrollAllowance{
		{ID: "a-1", Name: "housing", Type: core.AllowanceFixed, Amount: decimal.NewFromInt(5000), Taxable: true},
		{ID: "a-2", Name: "transport", Type: core.AllowanceFixed, Amount: decimal.NewFromInt(3000), Taxable: false},
	}

	rec, err := newCalculator().Calculate(in)
	require.NoError(t, err)

	assert.True(t, rec.GrossSalary.Equal(decimal.NewFromInt(48000)))
	// Taxable gross 45000: tax = (45000 - 10000) * 0.10 = 3500.
	assert.True(t, rec.TaxDeduction.Equal(decimal.NewFromInt(3500)), "tax %s", rec.TaxDeduction)
	// Social security applies to the full 48000.
	assert.True(t, rec.SocialSecurityDeduction.Equal(decimal.NewFromInt(4320)))
	assert.Len(t, rec.Allowances, 2)
}

func TestCalculate_ExemptBand(t *testing.T) {
	// Gross inside the exempt band pays no tax but still contributes.
	emp := salariedEmployee("9000")
	rec, err := newCalculator().Calculate(calcInput(emp, monthSummary(22, "0")))
	require.NoError(t, err)

	assert.True(t, rec.TaxDeduction.IsZero())
	assert.True(t, rec.SocialSecurityDeduction.Equal(decimal.NewFromInt(810)))
}

func TestCalculate_OtherDeductions(t *testing.T) {
	emp := salariedEmployee("50000")
	in := calcInput(emp, monthSummary(20, "0"))
	in.Deductions = []core.PayrollDeduction{
		{ID: "d-1", Name: "loan installment", Type: core.DeductionLoan, Amount: decimal.NewFromInt(2000)},
		{ID: "d-2", Name: "advance recovery", Type: core.DeductionAdvance, Amount: decimal.NewFromInt(500)},
	}

	rec, err := newCalculator().Calculate(in)
	require.NoError(t, err)

	assert.True(t, rec.OtherDeductions.Equal(decimal.NewFromInt(2500)))
	assert.True(t, rec.NetSalary.Equal(decimal.NewFromInt(34500)), "net %s", rec.NetSalary)
	assert.Len(t, rec.Deductions, 2)
}

// =============================================================================
// NEGATIVE NET
// =============================================================================

func TestCalculate_NegativeNetFlaggedNotClamped(t *testing.T) {
	// GIVEN: Deductions exceeding gross
	// WHEN: Calculating
	// THEN: The record commits with the negative net and a review flag,
	//       and the error surfaces the condition

	emp := salariedEmployee("10000")
	in := calcInput(emp, monthSummary(20, "0"))
	in.Deductions = []core.PayrollDeduction{
		{ID: "d-1", Name: "loan installment", Type: core.DeductionLoan, Amount: decimal.NewFromInt(15000)},
	}

	rec, err := newCalculator().Calculate(in)

	require.Error(t, err)
	var negative *core.NegativeNetSalaryError
	require.True(t, errors.As(err, &negative))
	require.NotNil(t, rec)
	assert.True(t, rec.NetSalary.IsNegative())
	assert.True(t, rec.IsFlagged)
	assert.NotEmpty(t, rec.FlagReason)
	require.NoError(t, rec.Validate(), "flagged record still satisfies the arithmetic invariants")
}

// =============================================================================
// ANOMALY SCORING AGAINST PRIOR MONTHS
// =============================================================================

func TestCalculate_LargeSwingAgainstPriorMonthFlags(t *testing.T) {
	emp := salariedEmployee("50000")
	in := calcInput(emp, monthSummary(20, "0"))
	// Net will be 37000; a prior month of 10000 is a 270% swing.
	in.Prior = payroll.PriorContext{
		PriorMonthNet: decimal.NewFromInt(10000),
		HasPriorMonth: true,
	}

	rec, err := newCalculator().Calculate(in)
	require.NoError(t, err)

	assert.True(t, rec.IsFlagged)
	assert.Greater(t, rec.AnomalyScore, 0.0)
}

func TestCalculate_StableNetNotFlagged(t *testing.T) {
	emp := salariedEmployee("50000")
	in := calcInput(emp, monthSummary(20, "0"))
	in.Prior = payroll.PriorContext{
		PriorMonthNet: decimal.NewFromInt(37000),
		HasPriorMonth: true,
	}

	rec, err := newCalculator().Calculate(in)
	require.NoError(t, err)

	assert.False(t, rec.IsFlagged)
}

// =============================================================================
// RECOMPUTE
// =============================================================================

func TestRecompute_MutableRecord(t *testing.T) {
	calc := newCalculator()
	emp := salariedEmployee("50000")
	rec, err := calc.Calculate(calcInput(emp, monthSummary(20, "0")))
	require.NoError(t, err)

	in := calcInput(emp, monthSummary(20, "0"))
	in.Bonus = decimal.NewFromInt(5000)
	require.NoError(t, calc.Recompute(rec, in))

	assert.True(t, rec.GrossSalary.Equal(decimal.NewFromInt(55000)))
	require.NoError(t, rec.Validate())
}

func TestRecompute_ImmutableRecordRejected(t *testing.T) {
	calc := newCalculator()
	emp := salariedEmployee("50000")
	rec, err := calc.Calculate(calcInput(emp, monthSummary(20, "0")))
	require.NoError(t, err)

	rec.Status = core.PayrollApproved

	err = calc.Recompute(rec, calcInput(emp, monthSummary(20, "0")))

	require.Error(t, err)
	var immutable *core.ImmutablePayrollError
	assert.True(t, errors.As(err, &immutable))
}

// =============================================================================
// RATE TABLE
// =============================================================================

func TestRateTable_ProgressiveBrackets(t *testing.T) {
	b1 := decimal.NewFromInt(10000)
	b2 := decimal.NewFromInt(30000)
	table := payroll.RateTable{
		Brackets: []payroll.TaxBracket{
			{UpTo: &b1, Rate: decimal.Zero},
			{UpTo: &b2, Rate: core.MustDecimal("0.10")},
			{UpTo: nil, Rate: core.MustDecimal("0.20")},
		},
	}

	// 50000: 0 on the first 10000, 2000 on the next 20000, 4000 above.
	got := table.Statutory(decimal.NewFromInt(50000), decimal.NewFromInt(50000))
	assert.True(t, got.Tax.Equal(decimal.NewFromInt(6000)), "tax %s", got.Tax)

	// Inside the first bracket.
	got = table.Statutory(decimal.NewFromInt(8000), decimal.NewFromInt(8000))
	assert.True(t, got.Tax.IsZero())
}

func TestRateTable_ZeroRates(t *testing.T) {
	got := payroll.ZeroRates().Statutory(decimal.NewFromInt(50000), decimal.NewFromInt(50000))

	assert.True(t, got.Tax.IsZero())
	assert.True(t, got.SocialSecurity.IsZero())
	assert.True(t, got.HealthInsurance.IsZero())
	assert.True(t, got.Pension.IsZero())
}
