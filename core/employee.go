package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EMPLOYEE
// =============================================================================

type EmployeeStatus string

const (
	EmployeeActive     EmployeeStatus = "ACTIVE"
	EmployeeInactive   EmployeeStatus = "INACTIVE"
	EmployeeTerminated EmployeeStatus = "TERMINATED"
	EmployeeOnLeave    EmployeeStatus = "ON_LEAVE"
	EmployeeSuspended  EmployeeStatus = "SUSPENDED"
)

// Employee is a member of exactly one branch. The branch relation is a
// non-owning ID reference; reverse traversal (branch -> employees) goes
// through the store's query index.
type Employee struct {
	AuditRecord

	// Code is the human-facing employee code. Immutable after creation.
	Code string

	FirstName string
	LastName  string
	Email     string

	Branch   BranchID
	Status   EmployeeStatus
	HireDate time.Time

	// BiometricID links the employee to device gateway events.
	BiometricID string

	Schedule SchedulePolicy
	Salary   SalaryConfig

	AnnualLeaveBalance decimal.Decimal
	SickLeaveBalance   decimal.Decimal
}

func (e *Employee) FullName() string { return e.FirstName + " " + e.LastName }

func (e *Employee) IsActive() bool {
	return e.Status == EmployeeActive && !e.IsDeleted()
}

// YearsOfService counts whole years since hire.
func (e *Employee) YearsOfService(now time.Time) int {
	years := now.Year() - e.HireDate.Year()
	anniversary := e.HireDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}

// =============================================================================
// SCHEDULE POLICY - Shift window and working-day calendar
// =============================================================================

// SchedulePolicy is the per-employee working-time configuration consumed by
// the normalizer and aggregator. A zero GraceMinutes means no grace.
type SchedulePolicy struct {
	ShiftStart MinuteOfDay
	ShiftEnd   MinuteOfDay

	GraceMinutes int

	// WorkingWeekdays lists the days the employee is scheduled to work.
	// Empty means Monday through Friday.
	WorkingWeekdays []time.Weekday

	WorkingDaysPerWeek int

	// ExpectedMonthlyDays is the policy-configured working days per month
	// used by aggregation. Zero falls back to DefaultWorkingDays.
	ExpectedMonthlyDays int
}

// DefaultWorkingDays is the standard working days per month when the
// policy leaves ExpectedMonthlyDays unset.
const DefaultWorkingDays = 22

// ShiftHours returns the scheduled shift length in decimal hours.
func (p SchedulePolicy) ShiftHours() decimal.Decimal {
	minutes := int(p.ShiftEnd) - int(p.ShiftStart)
	if minutes <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
}

// IsWorkingDay reports whether the weekday is in the employee's calendar.
func (p SchedulePolicy) IsWorkingDay(day time.Time) bool {
	weekdays := p.WorkingWeekdays
	if len(weekdays) == 0 {
		weekdays = []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		}
	}
	wd := day.Weekday()
	for _, w := range weekdays {
		if w == wd {
			return true
		}
	}
	return false
}

// MonthlyWorkingDays resolves the expected working days for aggregation.
func (p SchedulePolicy) MonthlyWorkingDays() int {
	if p.ExpectedMonthlyDays > 0 {
		return p.ExpectedMonthlyDays
	}
	return DefaultWorkingDays
}

// ScheduledDays counts the calendar days of the month that fall on one of
// the employee's working weekdays.
func (p SchedulePolicy) ScheduledDays(m Month) int {
	days := 0
	for d := m.Start(); !d.After(m.End()); d = d.AddDate(0, 0, 1) {
		if p.IsWorkingDay(d) {
			days++
		}
	}
	return days
}

// WorkingDaysIn resolves the expected working days for a specific month.
// The configured monthly figure is a floor: a month whose calendar carries
// more scheduled days than the configuration expands to the calendar
// count, so a fully present month never exceeds its own denominator.
func (p SchedulePolicy) WorkingDaysIn(m Month) int {
	days := p.MonthlyWorkingDays()
	if scheduled := p.ScheduledDays(m); scheduled > days {
		return scheduled
	}
	return days
}

// =============================================================================
// SALARY CONFIG
// =============================================================================

// SalaryConfig is the employee's compensation configuration, read by the
// payroll calculator. Monetary values are monthly unless stated otherwise.
type SalaryConfig struct {
	BaseSalary decimal.Decimal

	// StandardMonthlyHours divides base salary into an hourly rate for
	// overtime. Zero falls back to the calculator's configured default.
	StandardMonthlyHours decimal.Decimal

	BankName      string
	BankAccount   string
	PaymentMethod PaymentMethod
}

// =============================================================================
// BRANCH
// =============================================================================

type BranchStatus string

const (
	BranchActive      BranchStatus = "ACTIVE"
	BranchInactive    BranchStatus = "INACTIVE"
	BranchMaintenance BranchStatus = "MAINTENANCE"
)

// Branch is a physical/organizational unit. It owns its biometric device
// registry and the geofence the anomaly flagger checks punches against.
type Branch struct {
	AuditRecord

	Code     string
	Name     string
	Timezone string
	Status   BranchStatus

	WorkingHoursStart MinuteOfDay
	WorkingHoursEnd   MinuteOfDay

	Location       Geolocation
	GeofenceRadius float64 // meters; 0 disables geofence scoring

	Devices []Device

	// LastSyncAt tracks cross-branch reconciliation progress.
	LastSyncAt time.Time
}

// OwnsDevice reports whether a device belongs to this branch's registry.
func (b *Branch) OwnsDevice(id DeviceID) bool {
	for _, d := range b.Devices {
		if d.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// DEVICE - Biometric terminal descriptor (no protocol details)
// =============================================================================

type DeviceStatus string

const (
	DeviceOnline      DeviceStatus = "ONLINE"
	DeviceOffline     DeviceStatus = "OFFLINE"
	DeviceMaintenance DeviceStatus = "MAINTENANCE"
)

// Device describes a biometric terminal registered to a branch. Connectivity
// and wire protocol live in the device gateway, not here.
type Device struct {
	ID           DeviceID
	Name         string
	SerialNumber string
	Status       DeviceStatus
}
