package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/anomaly"
	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// CALCULATOR CONFIGURATION - Immutable snapshot
// =============================================================================

// CalcConfig is the calculation configuration. Passed in explicitly so
// identical inputs always produce identical salary fields.
type CalcConfig struct {
	// OvertimeMultiplier scales the derived hourly rate for overtime pay.
	OvertimeMultiplier decimal.Decimal

	// StandardMonthlyHours divides base salary into an hourly rate when
	// the employee's salary config leaves it unset.
	StandardMonthlyHours decimal.Decimal

	Anomaly anomaly.Config
}

func DefaultCalcConfig() CalcConfig {
	return CalcConfig{
		OvertimeMultiplier:   decimal.NewFromFloat(1.5),
		StandardMonthlyHours: decimal.NewFromInt(176), // 22 days x 8 hours
		Anomaly:              anomaly.DefaultConfig(),
	}
}

// PriorContext carries the comparison baselines for payroll-level anomaly
// scoring. Zero values mean "no baseline available".
type PriorContext struct {
	PriorMonthNet       decimal.Decimal
	HasPriorMonth       bool
	DepartmentMedianNet decimal.Decimal
	HasDepartmentMedian bool
}

// Input is one calculation request.
type Input struct {
	Employee *core.Employee
	Summary  core.MonthlyAttendanceSummary

	Allowances []core.PayrollAllowance
	Deductions []core.PayrollDeduction

	Bonus      decimal.Decimal
	Commission decimal.Decimal

	Prior PriorContext

	Actor string
	Now   time.Time
}

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	Rates  DeductionPolicy
	Config CalcConfig
}

func NewCalculator(rates DeductionPolicy, cfg CalcConfig) *Calculator {
	return &Calculator{Rates: rates, Config: cfg}
}

// Calculate mints a DRAFT payroll record with computed salary fields.
//
// A negative net salary returns the record together with a
// NegativeNetSalaryError: the computation still commits (flagged) and the
// error surfaces the condition for manual review rather than clamping.
func (c *Calculator) Calculate(in Input) (*core.PayrollRecord, error) {
	rec := &core.PayrollRecord{
		AuditRecord: core.NewAuditRecord(in.Actor, in.Now),
		Employee:    core.EmployeeID(in.Employee.ID),
		Branch:      in.Employee.Branch,
		Month:       in.Summary.Month,
		Status:      core.PayrollDraft,
	}
	err := c.compute(rec, in)
	return rec, err
}

// Recompute rewrites the salary fields of an existing record. Only legal
// while the record is still mutable (DRAFT or CALCULATED); anything later
// is an ImmutablePayrollError and must go through a correction entry.
func (c *Calculator) Recompute(rec *core.PayrollRecord, in Input) error {
	if !rec.Status.Mutable() {
		return &core.ImmutablePayrollError{
			Record: core.PayrollID(rec.ID),
			Status: rec.Status,
		}
	}
	rec.Touch(in.Actor, in.Now)
	return c.compute(rec, in)
}

func (c *Calculator) compute(rec *core.PayrollRecord, in Input) error {
	emp := in.Employee
	rec.Summary = in.Summary
	rec.BaseSalary = emp.Salary.BaseSalary

	// Allowances: taxable and non-taxable both count toward gross; only
	// non-taxable ones are carved out of the taxable base later.
	allowanceTotal := decimal.Zero
	nonTaxable := decimal.Zero
	for _, a := range in.Allowances {
		allowanceTotal = allowanceTotal.Add(a.Amount)
		if !a.Taxable {
			nonTaxable = nonTaxable.Add(a.Amount)
		}
	}
	rec.AllowanceTotal = allowanceTotal
	rec.Allowances = append([]core.PayrollAllowance(nil), in.Allowances...)

	// Overtime: hourly rate derived from base salary over standard monthly
	// hours, scaled by the configured multiplier.
	standardHours := emp.Salary.StandardMonthlyHours
	if !standardHours.IsPositive() {
		standardHours = c.Config.StandardMonthlyHours
	}
	rec.OvertimeAmount = decimal.Zero
	if standardHours.IsPositive() && in.Summary.TotalOvertimeHours.IsPositive() {
		hourlyRate := emp.Salary.BaseSalary.Div(standardHours)
		rec.OvertimeAmount = in.Summary.TotalOvertimeHours.
			Mul(hourlyRate).
			Mul(c.Config.OvertimeMultiplier)
	}

	rec.Bonus = in.Bonus
	rec.Commission = in.Commission

	gross := rec.SumGross()
	taxableGross := gross.Sub(nonTaxable)

	statutory := c.Rates.Statutory(gross, taxableGross)
	rec.TaxDeduction = statutory.Tax
	rec.SocialSecurityDeduction = statutory.SocialSecurity
	rec.HealthInsuranceDeduction = statutory.HealthInsurance
	rec.PensionDeduction = statutory.Pension

	other := decimal.Zero
	for _, d := range in.Deductions {
		other = other.Add(d.Amount)
	}
	rec.OtherDeductions = other
	rec.Deductions = append([]core.PayrollDeduction(nil), in.Deductions...)

	rec.PaymentMethod = emp.Salary.PaymentMethod
	rec.BankName = emp.Salary.BankName
	rec.BankAccount = emp.Salary.BankAccount

	// Single rounding point: components are rounded and totals derived
	// from the rounded components, keeping gross - deductions = net exact.
	rec.Recalculate()

	c.scoreRecord(rec, in)

	if rec.NetSalary.IsNegative() {
		rec.IsFlagged = true
		rec.FlagReason = joinReasons(rec.FlagReason, "net salary is negative")
		return &core.NegativeNetSalaryError{
			Employee:   rec.Employee,
			Month:      rec.Month,
			Gross:      rec.GrossSalary.StringFixed(2),
			Deductions: rec.TotalDeductions.StringFixed(2),
		}
	}
	return nil
}

// scoreRecord flags unusually large deltas against the employee's prior
// month or the department median. Informational only: never blocks.
func (c *Calculator) scoreRecord(rec *core.PayrollRecord, in Input) {
	deviation := decimal.Zero
	hasBaseline := false

	if in.Prior.HasPriorMonth && in.Prior.PriorMonthNet.IsPositive() {
		d := rec.NetSalary.Sub(in.Prior.PriorMonthNet).Abs().Div(in.Prior.PriorMonthNet)
		deviation = d
		hasBaseline = true
	}
	if in.Prior.HasDepartmentMedian && in.Prior.DepartmentMedianNet.IsPositive() {
		d := rec.NetSalary.Sub(in.Prior.DepartmentMedianNet).Abs().Div(in.Prior.DepartmentMedianNet)
		if d.GreaterThan(deviation) {
			deviation = d
		}
		hasBaseline = true
	}
	if !hasBaseline {
		rec.AnomalyScore = 0
		return
	}

	dev, _ := deviation.Float64()
	result := anomaly.Score(anomaly.Features{
		BaselineDeviation:    dev,
		HasBaselineDeviation: true,
	}, c.Config.Anomaly)

	rec.AnomalyScore = result.Score
	if result.Flagged {
		rec.IsFlagged = true
		rec.FlagReason = joinReasons(rec.FlagReason, result.Reason())
	}
}

func joinReasons(existing, added string) string {
	if existing == "" {
		return added
	}
	if added == "" {
		return existing
	}
	return fmt.Sprintf("%s; %s", existing, added)
}
