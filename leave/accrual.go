/*
accrual.go - Monthly leave accrual and usage posting

PURPOSE:
  Advances employee leave balances one month at a time. For every active
  employee of a branch the Accruer:
    1. At a January posting, reconciles the year boundary (carryover cap)
    2. Adds the month's accrual per the tenure-matched policy tier
    3. Subtracts leave days actually taken, read from attendance records

USAGE SOURCE:
  Taken leave is counted from LEAVE attendance records in the posted
  month, split by leave type. Only ANNUAL and SICK draw on balances;
  unpaid and statutory leaves (maternity, paternity, ...) are tracked in
  attendance but are not balance-backed.

SCHEDULING:
  PostMonth is calendar driven and not idempotent: the caller runs it
  exactly once per closed month, typically right before the payroll run.

SEE ALSO:
  - policy.go: Accrual rates and carryover rules
  - attendance/aggregator.go: Counts the same leave days into summaries
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// ACCRUER
// =============================================================================

// Accruer posts monthly accruals and usage against employee balances.
type Accruer struct {
	Store  core.RecordStore
	Annual Policy
	Sick   Policy

	// Clock is swappable for tests.
	Clock func() time.Time
}

// NewAccruer wires an accruer with the standard policies.
func NewAccruer(store core.RecordStore) *Accruer {
	return &Accruer{
		Store:  store,
		Annual: StandardAnnualPolicy(),
		Sick:   StandardSickPolicy(),
		Clock:  time.Now,
	}
}

// Posting is the per-employee outcome of one monthly posting.
type Posting struct {
	Employee core.EmployeeID

	AnnualAccrued decimal.Decimal
	AnnualUsed    decimal.Decimal
	AnnualBalance decimal.Decimal

	SickAccrued decimal.Decimal
	SickUsed    decimal.Decimal
	SickBalance decimal.Decimal

	// Err is set when this employee's posting failed; the rest of the
	// branch still posts.
	Err error
}

// PostMonth applies one month's accrual and usage to every active employee
// of a branch and persists the updated balances. Employees hired after the
// month, or inactive ones, are skipped. Results follow the store's
// employee-code ordering.
func (a *Accruer) PostMonth(ctx context.Context, branch core.BranchID, month core.Month, actor string) ([]Posting, error) {
	if actor == "" {
		return nil, &core.ValidationError{Field: "actor", Message: "required"}
	}
	if month.IsZero() {
		return nil, &core.ValidationError{Field: "month", Message: "required"}
	}

	employees, err := a.Store.ListEmployeesByBranch(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("list employees for branch %s: %w", branch, err)
	}

	var postings []Posting
	for _, emp := range employees {
		if !emp.IsActive() || emp.HireDate.After(month.End()) {
			continue
		}
		p, err := a.postEmployee(ctx, emp, month, actor)
		if err != nil {
			p = Posting{Employee: core.EmployeeID(emp.ID), Err: err}
		}
		postings = append(postings, p)
	}
	return postings, nil
}

func (a *Accruer) postEmployee(ctx context.Context, emp *core.Employee, month core.Month, actor string) (Posting, error) {
	annualUsed, sickUsed, err := a.countUsage(ctx, core.EmployeeID(emp.ID), month)
	if err != nil {
		return Posting{}, err
	}

	years := emp.YearsOfService(month.Start())
	p := Posting{
		Employee:      core.EmployeeID(emp.ID),
		AnnualAccrued: a.Annual.MonthlyAccrual(years),
		AnnualUsed:    annualUsed,
		SickAccrued:   a.Sick.MonthlyAccrual(years),
		SickUsed:      sickUsed,
	}

	p.AnnualBalance = advance(a.Annual, emp.AnnualLeaveBalance, p.AnnualAccrued, annualUsed, month)
	p.SickBalance = advance(a.Sick, emp.SickLeaveBalance, p.SickAccrued, sickUsed, month)

	emp.AnnualLeaveBalance = p.AnnualBalance
	emp.SickLeaveBalance = p.SickBalance
	emp.Touch(actor, a.Clock())
	if err := a.Store.PutEmployee(ctx, emp); err != nil {
		return Posting{}, err
	}
	return p, nil
}

// advance rolls one balance forward a month: year-boundary carryover,
// then accrual, then usage, then the negative-balance floor.
func advance(p Policy, balance, accrued, used decimal.Decimal, month core.Month) decimal.Decimal {
	if month.Month == time.January && p.CapCarryover && balance.GreaterThan(p.MaxCarryover) {
		balance = p.MaxCarryover
	}
	balance = balance.Add(accrued).Sub(used)
	if balance.IsNegative() && !p.AllowNegative {
		balance = decimal.Zero
	}
	return balance
}

// countUsage tallies balance-backed leave days taken in the month.
func (a *Accruer) countUsage(ctx context.Context, emp core.EmployeeID, month core.Month) (annual, sick decimal.Decimal, err error) {
	records, err := a.Store.QueryAttendanceRange(ctx, emp, month.Start(), month.End())
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	one := decimal.NewFromInt(1)
	for _, rec := range records {
		if rec.Status != core.StatusLeave {
			continue
		}
		switch rec.LeaveType {
		case core.LeaveAnnual:
			annual = annual.Add(one)
		case core.LeaveSick:
			sick = sick.Add(one)
		}
	}
	return annual, sick, nil
}

// =============================================================================
// PROJECTION
// =============================================================================

// ProjectedAnnualBalance estimates the annual leave balance at year end,
// assuming the remaining months accrue at the current tier and no further
// leave is taken. Tenure tier changes inside the projection window are
// ignored.
func (a *Accruer) ProjectedAnnualBalance(emp *core.Employee, asOf time.Time) decimal.Decimal {
	monthsLeft := 12 - int(asOf.Month())
	if monthsLeft <= 0 {
		return emp.AnnualLeaveBalance
	}
	monthly := a.Annual.MonthlyAccrual(emp.YearsOfService(asOf))
	return emp.AnnualLeaveBalance.Add(monthly.Mul(decimal.NewFromInt(int64(monthsLeft))))
}
