/*
Package core contains the domain kernel for the attendance-to-payroll engine.

PURPOSE:
  This package defines the entities shared by every other package: employees,
  branches, daily attendance records, monthly payroll records and their owned
  allowance/deduction line items, plus the contracts to the outside world
  (record store, device gateway, sync bus, payment provider).

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed identifiers: EmployeeID, BranchID, ... prevent mixing keys
  - Month: a (year, month) pair used as the payroll aggregation key
  - MinuteOfDay: shift boundaries as minutes since midnight
  - Money helpers: decimal arithmetic with a single rounding rule

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every monetary and hour value
  2. Rounding happens ONCE, at the persistence boundary (RoundMoney),
     never on intermediate sums, so gross - deductions = net stays exact
  3. Type safety: strong typing for IDs and enums
  4. Auditability: every entity embeds an AuditRecord (see audit.go)

SEE ALSO:
  - attendance.go: daily Attendance entity
  - payroll.go: PayrollRecord and its line items
  - errors.go: the error taxonomy
  - contracts.go: store/gateway/bus/payment interfaces
*/
package core

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type BranchID string
type AttendanceID string
type PayrollID string
type DeviceID string

// MonthKey uniquely identifies one payroll aggregation unit.
type MonthKey struct {
	Employee EmployeeID
	Month    Month
}

// DayKey uniquely identifies one attendance record.
type DayKey struct {
	Employee EmployeeID
	Date     time.Time // normalized via DateOf
}

func NewDayKey(emp EmployeeID, date time.Time) DayKey {
	return DayKey{Employee: emp, Date: DateOf(date)}
}

// =============================================================================
// MONTH - The payroll period
// =============================================================================

// Month is a calendar month in a branch's local reckoning.
// It is the aggregation key for summaries and payroll records.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the month at midnight UTC.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, -1)
}

// CalendarDays returns the number of days in the month.
func (m Month) CalendarDays() int {
	return m.End().Day()
}

func (m Month) Next() Month { return MonthOf(m.Start().AddDate(0, 1, 0)) }
func (m Month) Prev() Month { return MonthOf(m.Start().AddDate(0, -1, 0)) }

func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

func (m Month) IsZero() bool { return m.Year == 0 }

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// ParseMonth parses "2006-01" format.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// =============================================================================
// DATES AND CLOCK TIMES
// =============================================================================

// DateOf truncates a timestamp to its calendar day (UTC midnight).
// All DayKey dates go through this so map lookups behave.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func SameDay(a, b time.Time) bool { return DateOf(a).Equal(DateOf(b)) }

// MinuteOfDay is minutes since midnight. Shift boundaries ("09:00") are
// stored this way so comparing a punch against a schedule is integer math.
type MinuteOfDay int

// ParseClock parses "HH:MM" into a MinuteOfDay.
func ParseClock(s string) (MinuteOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return MinuteOfDay(h*60 + m), nil
}

// MustClock is for constants and tests; panics on malformed input.
func MustClock(s string) MinuteOfDay {
	mod, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return mod
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// At anchors the clock time onto a calendar day.
func (m MinuteOfDay) At(day time.Time) time.Time {
	d := DateOf(day)
	return d.Add(time.Duration(m) * time.Minute)
}

// MinuteWithin returns the minute-of-day of a timestamp.
func MinuteWithin(t time.Time) MinuteOfDay {
	return MinuteOfDay(t.Hour()*60 + t.Minute())
}

// =============================================================================
// MONEY - decimal arithmetic with one rounding rule
// =============================================================================

// RoundMoney applies the single documented rounding mode: round-half-up to
// two decimals. Call it only when a value is about to be persisted or
// surfaced; intermediate sums stay unrounded.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RoundHours rounds an hour quantity to two decimals (same rule as money).
func RoundHours(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MustDecimal parses a decimal literal; panics on malformed input.
// For configuration defaults and tests.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// HoursBetween returns the decimal hours between two instants, clamped to >= 0.
func HoursBetween(from, to time.Time) decimal.Decimal {
	if !to.After(from) {
		return decimal.Zero
	}
	minutes := to.Sub(from) / time.Minute
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
}

// =============================================================================
// GEOLOCATION
// =============================================================================

// Geolocation is a WGS84 coordinate attached to a punch event.
type Geolocation struct {
	Latitude  float64
	Longitude float64
}

// DistanceMeters returns the haversine distance between two coordinates.
// Used by the anomaly flagger for geofence checks.
func (g Geolocation) DistanceMeters(other Geolocation) float64 {
	const earthRadius = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	lat1 := toRad(g.Latitude)
	lat2 := toRad(other.Latitude)
	dLat := toRad(other.Latitude - g.Latitude)
	dLon := toRad(other.Longitude - g.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}
