package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONTHLY ATTENDANCE SUMMARY - Pure aggregate, recomputed on demand
// =============================================================================

// MonthlyAttendanceSummary is a pure function of one month's attendance
// records plus the employee's working-day policy. It is carried inside the
// PayrollRecord but never independently mutated.
type MonthlyAttendanceSummary struct {
	Employee EmployeeID
	Month    Month

	WorkingDays     int
	PresentDays     decimal.Decimal // HALF_DAY contributes 0.5
	AbsentDays      int
	LeaveDays       int
	LateArrivals    int
	EarlyDepartures int

	TotalWorkedHours   decimal.Decimal
	TotalOvertimeHours decimal.Decimal

	// RecordedDays counts distinct scheduled days that have any record,
	// driving the completeness check.
	RecordedDays int

	// Partial marks a draft aggregation that skipped the completeness check.
	Partial bool
}

// AttendancePercentage returns presentDays/workingDays as a percentage.
func (s MonthlyAttendanceSummary) AttendancePercentage() decimal.Decimal {
	if s.WorkingDays == 0 {
		return decimal.Zero
	}
	return s.PresentDays.Div(decimal.NewFromInt(int64(s.WorkingDays))).Mul(decimal.NewFromInt(100))
}

// =============================================================================
// PAYROLL STATUS - The approval lifecycle
// =============================================================================

type PayrollStatus string

const (
	PayrollDraft      PayrollStatus = "DRAFT"
	PayrollCalculated PayrollStatus = "CALCULATED"
	PayrollReviewed   PayrollStatus = "REVIEWED"
	PayrollApproved   PayrollStatus = "APPROVED"
	PayrollProcessed  PayrollStatus = "PROCESSED"
	PayrollPaid       PayrollStatus = "PAID"
	PayrollCancelled  PayrollStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s PayrollStatus) Terminal() bool {
	return s == PayrollPaid || s == PayrollCancelled
}

// Mutable reports whether the calculator may still rewrite salary fields.
func (s PayrollStatus) Mutable() bool {
	return s == PayrollDraft || s == PayrollCalculated
}

type PaymentMethod string

const (
	PayBankTransfer  PaymentMethod = "BANK_TRANSFER"
	PayCash          PaymentMethod = "CASH"
	PayCheck         PaymentMethod = "CHECK"
	PayMobilePayment PaymentMethod = "MOBILE_PAYMENT"
)

// =============================================================================
// PAYROLL RECORD - One per (employee, month)
// =============================================================================

// PayrollRecord is the monthly payroll outcome. It owns its allowance and
// deduction line items: they are created and soft-deleted with the record
// and are never shared.
type PayrollRecord struct {
	AuditRecord

	Employee EmployeeID
	Branch   BranchID
	Month    Month

	Summary MonthlyAttendanceSummary

	// Salary components. Gross = Base + Allowances + OvertimeAmount +
	// Bonus + Commission, enforced by Recalculate.
	BaseSalary     decimal.Decimal
	AllowanceTotal decimal.Decimal
	OvertimeAmount decimal.Decimal
	Bonus          decimal.Decimal
	Commission     decimal.Decimal
	GrossSalary    decimal.Decimal

	// Deduction components. TotalDeductions = sum of the five.
	TaxDeduction             decimal.Decimal
	SocialSecurityDeduction  decimal.Decimal
	HealthInsuranceDeduction decimal.Decimal
	PensionDeduction         decimal.Decimal
	OtherDeductions          decimal.Decimal
	TotalDeductions          decimal.Decimal

	NetSalary decimal.Decimal

	Allowances []PayrollAllowance
	Deductions []PayrollDeduction

	Status PayrollStatus

	PaymentMethod   PaymentMethod
	BankName        string
	BankAccount     string
	PaymentRef      string
	PaymentDate     *time.Time

	AnomalyScore float64
	IsFlagged    bool
	FlagReason   string

	// FlagAcknowledgedBy is set when a reviewer explicitly acknowledges
	// the review flag; required for CALCULATED -> REVIEWED when flagged.
	FlagAcknowledgedBy string

	CalculatedBy string
	CalculatedAt *time.Time
	ReviewedBy   string
	ReviewedAt   *time.Time
	ApprovedBy   string
	ApprovedAt   *time.Time
	ProcessedBy  string
	ProcessedAt  *time.Time
	PaidAt       *time.Time

	CancelledBy     string
	CancelledAt     *time.Time
	CancelReason    string

	// Corrections journals post-approval adjustments. In-place mutation is
	// forbidden once past CALCULATED.
	Corrections []CorrectionEntry

	Notes string
}

func (p *PayrollRecord) MonthKey() MonthKey {
	return MonthKey{Employee: p.Employee, Month: p.Month}
}

// SumGross recomputes gross from its components without storing it.
func (p *PayrollRecord) SumGross() decimal.Decimal {
	return p.BaseSalary.
		Add(p.AllowanceTotal).
		Add(p.OvertimeAmount).
		Add(p.Bonus).
		Add(p.Commission)
}

// SumDeductions recomputes total deductions from the five components.
func (p *PayrollRecord) SumDeductions() decimal.Decimal {
	return p.TaxDeduction.
		Add(p.SocialSecurityDeduction).
		Add(p.HealthInsuranceDeduction).
		Add(p.PensionDeduction).
		Add(p.OtherDeductions)
}

// Recalculate restores the derived totals from components. Rounding is
// applied here, at the point the record is about to be persisted, component
// by component, so gross - deductions = net holds exactly.
func (p *PayrollRecord) Recalculate() {
	p.BaseSalary = RoundMoney(p.BaseSalary)
	p.AllowanceTotal = RoundMoney(p.AllowanceTotal)
	p.OvertimeAmount = RoundMoney(p.OvertimeAmount)
	p.Bonus = RoundMoney(p.Bonus)
	p.Commission = RoundMoney(p.Commission)
	p.TaxDeduction = RoundMoney(p.TaxDeduction)
	p.SocialSecurityDeduction = RoundMoney(p.SocialSecurityDeduction)
	p.HealthInsuranceDeduction = RoundMoney(p.HealthInsuranceDeduction)
	p.PensionDeduction = RoundMoney(p.PensionDeduction)
	p.OtherDeductions = RoundMoney(p.OtherDeductions)

	p.GrossSalary = p.SumGross()
	p.TotalDeductions = p.SumDeductions()
	p.NetSalary = p.GrossSalary.Sub(p.TotalDeductions)
}

// Validate enforces the arithmetic invariants.
func (p *PayrollRecord) Validate() error {
	if p.Employee == "" {
		return &ValidationError{Field: "employee", Message: "required"}
	}
	if p.Month.IsZero() {
		return &ValidationError{Field: "month", Message: "required"}
	}
	if !p.GrossSalary.Equal(p.SumGross()) {
		return &ValidationError{Field: "grossSalary", Message: "does not equal sum of components"}
	}
	if !p.TotalDeductions.Equal(p.SumDeductions()) {
		return &ValidationError{Field: "totalDeductions", Message: "does not equal sum of components"}
	}
	if !p.NetSalary.Equal(p.GrossSalary.Sub(p.TotalDeductions)) {
		return &ValidationError{Field: "netSalary", Message: "does not equal gross minus deductions"}
	}
	return nil
}

// =============================================================================
// LINE ITEMS - Exclusively owned by one PayrollRecord
// =============================================================================

type AllowanceType string

const (
	AllowanceFixed       AllowanceType = "FIXED"
	AllowancePercentage  AllowanceType = "PERCENTAGE"
	AllowanceConditional AllowanceType = "CONDITIONAL"
	AllowanceOneTime     AllowanceType = "ONE_TIME"
)

type PayrollAllowance struct {
	ID       string
	Name     string
	Type     AllowanceType
	Amount   decimal.Decimal
	Taxable  bool
	Notes    string
}

type DeductionType string

const (
	DeductionMandatory DeductionType = "MANDATORY"
	DeductionVoluntary DeductionType = "VOLUNTARY"
	DeductionLoan      DeductionType = "LOAN"
	DeductionAdvance   DeductionType = "ADVANCE"
	DeductionTax       DeductionType = "TAX"
	DeductionInsurance DeductionType = "INSURANCE"
)

type PayrollDeduction struct {
	ID       string
	Name     string
	Type     DeductionType
	Amount   decimal.Decimal
	PreTax   bool
	Notes    string
}

// =============================================================================
// CORRECTIONS - Audited post-approval adjustments
// =============================================================================

// CorrectionEntry records an adjustment applied after the record left the
// mutable stages. The original fields keep their values; consumers apply
// corrections on top.
type CorrectionEntry struct {
	ID        string
	Field     string
	OldValue  string
	NewValue  string
	Reason    string
	Source    string // "manual", "sync"
	AppliedBy string
	AppliedAt time.Time
}
