/*
Package payroll computes monthly salaries and governs the payroll record
approval lifecycle.

PURPOSE:
  - rates.go:      pluggable statutory deduction policies (jurisdictional)
  - calculator.go: attendance summary + salary config -> salary fields
  - lifecycle.go:  the DRAFT -> ... -> PAID state machine
  - runner.go:     batch payroll runs across a branch

SEE ALSO:
  - attendance/aggregator.go: produces the summaries consumed here
  - core/payroll.go: the PayrollRecord entity and its invariants
*/
package payroll

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUTORY DEDUCTION POLICY - Pluggable per jurisdiction
// =============================================================================

// StatutoryDeductions are the four rate-table-driven deduction components.
type StatutoryDeductions struct {
	Tax             decimal.Decimal
	SocialSecurity  decimal.Decimal
	HealthInsurance decimal.Decimal
	Pension         decimal.Decimal
}

// DeductionPolicy computes statutory deductions for a month. gross is the
// full gross salary; taxableGross is gross minus non-taxable allowances.
// Implementations must be pure functions of their configuration.
type DeductionPolicy interface {
	Statutory(gross, taxableGross decimal.Decimal) StatutoryDeductions
}

// =============================================================================
// RATE TABLE - Bracketed tax + flat contribution rates
// =============================================================================

// TaxBracket taxes the slice of income between the previous bracket's
// bound and UpTo at Rate. A nil UpTo means unbounded.
type TaxBracket struct {
	UpTo *decimal.Decimal
	Rate decimal.Decimal
}

// RateTable is a configuration snapshot implementing DeductionPolicy.
// Passed explicitly into every Calculate call; never global state.
type RateTable struct {
	// Brackets apply progressively to the taxable gross. Must be sorted
	// ascending by UpTo with at most one unbounded bracket last.
	Brackets []TaxBracket

	// Flat contribution rates applied to the full gross.
	SocialSecurityRate  decimal.Decimal
	HealthInsuranceRate decimal.Decimal
	PensionRate         decimal.Decimal

	// TaxOnFullGross applies the brackets to gross instead of taxable
	// gross, for jurisdictions that tax allowances.
	TaxOnFullGross bool
}

var _ DeductionPolicy = RateTable{}

func (rt RateTable) Statutory(gross, taxableGross decimal.Decimal) StatutoryDeductions {
	base := taxableGross
	if rt.TaxOnFullGross {
		base = gross
	}
	return StatutoryDeductions{
		Tax:             rt.progressiveTax(base),
		SocialSecurity:  gross.Mul(rt.SocialSecurityRate),
		HealthInsurance: gross.Mul(rt.HealthInsuranceRate),
		Pension:         gross.Mul(rt.PensionRate),
	}
}

func (rt RateTable) progressiveTax(base decimal.Decimal) decimal.Decimal {
	if base.IsNegative() {
		return decimal.Zero
	}
	tax := decimal.Zero
	lower := decimal.Zero
	for _, b := range rt.Brackets {
		upper := base
		if b.UpTo != nil && b.UpTo.LessThan(base) {
			upper = *b.UpTo
		}
		if upper.GreaterThan(lower) {
			tax = tax.Add(upper.Sub(lower).Mul(b.Rate))
		}
		if b.UpTo == nil || b.UpTo.GreaterThanOrEqual(base) {
			break
		}
		lower = *b.UpTo
	}
	return tax
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultRateTable is a plausible baseline: 10% tax above a small exempt
// band, 9% social security, 2% health insurance, 7% pension. Real
// deployments supply their jurisdiction's table.
func DefaultRateTable() RateTable {
	exempt := decimal.NewFromInt(10000)
	return RateTable{
		Brackets: []TaxBracket{
			{UpTo: &exempt, Rate: decimal.Zero},
			{UpTo: nil, Rate: decimal.NewFromFloat(0.10)},
		},
		SocialSecurityRate:  decimal.NewFromFloat(0.09),
		HealthInsuranceRate: decimal.NewFromFloat(0.02),
		PensionRate:         decimal.NewFromFloat(0.07),
	}
}

// ZeroRates deducts nothing. Useful in tests and for exempt cohorts.
func ZeroRates() RateTable { return RateTable{} }
