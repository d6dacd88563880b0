/*
policy.go - Leave accrual policy definitions

PURPOSE:
  Defines how paid leave balances grow over time. A Policy binds a leave
  class (annual or sick) to a tenure-tiered accrual rate and year-boundary
  carryover rules.

TENURE TIERS:
  Accrual rate increases with years of service. Tiers are matched by the
  highest AfterYears that does not exceed the employee's tenure:
    {AfterYears: 0, AnnualDays: 15}
    {AfterYears: 3, AnnualDays: 20}
    {AfterYears: 5, AnnualDays: 25}
  An employee with 4 years of service accrues 20 days per year.

CARRYOVER:
  At the January posting the previous year's remaining balance is capped
  at MaxCarryover; the excess expires. A policy without a cap carries the
  full balance forward.

SEE ALSO:
  - accrual.go: Posts monthly accruals and usage against employee balances
*/
package leave

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// POLICY
// =============================================================================

// Policy governs accrual for one leave class. The Type selects which
// employee balance postings are applied to.
type Policy struct {
	Name string
	Type core.LeaveType

	// Tiers must be ordered by AfterYears ascending. At least one tier
	// with AfterYears 0 is expected.
	Tiers []TenureTier

	// CapCarryover bounds the balance carried across a year boundary at
	// MaxCarryover. When false the full balance carries forward.
	CapCarryover bool
	MaxCarryover decimal.Decimal

	// AllowNegative permits the balance to go below zero when usage
	// outruns accrual. Without it the balance floors at zero.
	AllowNegative bool
}

// TenureTier is one step of a tenure-based accrual schedule.
type TenureTier struct {
	AfterYears int
	AnnualDays decimal.Decimal
}

// AnnualDaysFor returns the yearly accrual for an employee with the given
// whole years of service.
func (p Policy) AnnualDaysFor(yearsOfService int) decimal.Decimal {
	var days decimal.Decimal
	for _, tier := range p.Tiers {
		if yearsOfService >= tier.AfterYears {
			days = tier.AnnualDays
		}
	}
	return days
}

// MonthlyAccrual returns one month's share of the yearly accrual, rounded
// to two decimal places.
func (p Policy) MonthlyAccrual(yearsOfService int) decimal.Decimal {
	return p.AnnualDaysFor(yearsOfService).Div(twelve).Round(2)
}

var twelve = decimal.NewFromInt(12)

// =============================================================================
// STANDARD POLICIES
// =============================================================================

// StandardAnnualPolicy is the default annual leave scheme: 15 days rising
// to 25 with tenure, up to 5 unused days carried into the next year.
func StandardAnnualPolicy() Policy {
	return Policy{
		Name: "standard-annual",
		Type: core.LeaveAnnual,
		Tiers: []TenureTier{
			{AfterYears: 0, AnnualDays: decimal.NewFromInt(15)},
			{AfterYears: 3, AnnualDays: decimal.NewFromInt(20)},
			{AfterYears: 5, AnnualDays: decimal.NewFromInt(25)},
		},
		CapCarryover: true,
		MaxCarryover: decimal.NewFromInt(5),
	}
}

// StandardSickPolicy is the default sick leave scheme: a flat 12 days per
// year, use-it-or-lose-it, with negative balances tolerated because
// illness does not wait for accrual.
func StandardSickPolicy() Policy {
	return Policy{
		Name: "standard-sick",
		Type: core.LeaveSick,
		Tiers: []TenureTier{
			{AfterYears: 0, AnnualDays: decimal.NewFromInt(12)},
		},
		CapCarryover:  true,
		MaxCarryover:  decimal.Zero,
		AllowNegative: true,
	}
}
