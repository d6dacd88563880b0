package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ATTENDANCE STATUS - Closed enum, handle exhaustively at consumption sites
// =============================================================================

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "PRESENT"
	StatusAbsent  AttendanceStatus = "ABSENT"
	StatusLate    AttendanceStatus = "LATE"
	StatusHalfDay AttendanceStatus = "HALF_DAY"
	StatusWeekend AttendanceStatus = "WEEKEND"
	StatusHoliday AttendanceStatus = "HOLIDAY"
	StatusLeave   AttendanceStatus = "LEAVE"
)

// AllAttendanceStatuses exists so switches over the enum can be checked in
// tests for exhaustiveness when a new status is introduced.
var AllAttendanceStatuses = []AttendanceStatus{
	StatusPresent, StatusAbsent, StatusLate, StatusHalfDay,
	StatusWeekend, StatusHoliday, StatusLeave,
}

// PresenceWeight returns how much the status contributes to presentDays.
// LATE counts as present-with-penalty; HALF_DAY contributes 0.5.
func (s AttendanceStatus) PresenceWeight() decimal.Decimal {
	switch s {
	case StatusPresent, StatusLate:
		return decimal.NewFromInt(1)
	case StatusHalfDay:
		return MustDecimal("0.5")
	case StatusAbsent, StatusWeekend, StatusHoliday, StatusLeave:
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// CountsAsScheduled reports whether the day was a scheduled working day,
// i.e. participates in the presentDays + absentDays <= workingDays bound.
func (s AttendanceStatus) CountsAsScheduled() bool {
	switch s {
	case StatusPresent, StatusLate, StatusHalfDay, StatusAbsent, StatusLeave:
		return true
	case StatusWeekend, StatusHoliday:
		return false
	default:
		return false
	}
}

type AttendanceType string

const (
	TypeRegular      AttendanceType = "REGULAR"
	TypeOvertime     AttendanceType = "OVERTIME"
	TypeWorkFromHome AttendanceType = "WORK_FROM_HOME"
	TypeBusinessTrip AttendanceType = "BUSINESS_TRIP"
	TypeEmergency    AttendanceType = "EMERGENCY"
)

type VerificationMethod string

const (
	VerifyFingerprint VerificationMethod = "FINGERPRINT"
	VerifyFace        VerificationMethod = "FACE_RECOGNITION"
	VerifyCard        VerificationMethod = "CARD"
	VerifyPIN         VerificationMethod = "PIN"
	VerifyManual      VerificationMethod = "MANUAL"
)

type LeaveType string

const (
	LeaveAnnual       LeaveType = "ANNUAL"
	LeaveSick         LeaveType = "SICK"
	LeaveMaternity    LeaveType = "MATERNITY"
	LeavePaternity    LeaveType = "PATERNITY"
	LeaveEmergency    LeaveType = "EMERGENCY"
	LeaveUnpaid       LeaveType = "UNPAID"
	LeaveCompensatory LeaveType = "COMPENSATORY"
)

// =============================================================================
// ATTENDANCE - One record per (employee, calendar date)
// =============================================================================

// Attendance is a finalized daily record produced by the normalizer (or the
// absence marker for event-less working days). It is mutated only through
// the manual-override path and soft-deleted, never removed.
type Attendance struct {
	AuditRecord

	Employee EmployeeID
	Branch   BranchID
	Date     time.Time // normalized via DateOf

	CheckInTime  *time.Time
	CheckOutTime *time.Time
	BreakStart   *time.Time
	BreakEnd     *time.Time

	WorkedHours   decimal.Decimal
	BreakHours    decimal.Decimal
	OvertimeHours decimal.Decimal

	LateArrivalMinutes    int
	EarlyDepartureMinutes int

	Status AttendanceStatus
	Type   AttendanceType

	LeaveType   LeaveType
	LeaveReason string

	CheckInDevice      DeviceID
	CheckOutDevice     DeviceID
	VerificationMethod VerificationMethod
	VerificationScore  float64

	CheckInLocation  *Geolocation
	CheckOutLocation *Geolocation

	AnomalyScore     float64
	FlaggedForReview bool
	FlagReason       string

	ManualOverride       bool
	ManualOverrideBy     string
	ManualOverrideReason string

	Notes string
}

func (a *Attendance) Key() DayKey { return NewDayKey(a.Employee, a.Date) }

// IsPresent counts LATE as present. HALF_DAY is deliberately not full
// presence; callers needing fractional presence use PresenceWeight.
func (a *Attendance) IsPresent() bool {
	return a.Status == StatusPresent || a.Status == StatusLate
}

func (a *Attendance) IsAbsent() bool { return a.Status == StatusAbsent }

func (a *Attendance) HasOvertime() bool { return a.OvertimeHours.IsPositive() }

func (a *Attendance) RequiresReview() bool { return a.FlaggedForReview }

// Validate enforces the record-level invariants before any write.
func (a *Attendance) Validate() error {
	if a.Employee == "" {
		return &ValidationError{Field: "employee", Message: "required"}
	}
	if a.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "required"}
	}
	if a.CheckInTime != nil && a.CheckOutTime != nil && a.CheckOutTime.Before(*a.CheckInTime) {
		return &ValidationError{Field: "checkOutTime", Message: "before check-in"}
	}
	if a.WorkedHours.IsNegative() {
		return &ValidationError{Field: "workedHours", Message: "negative"}
	}
	if a.OvertimeHours.GreaterThan(a.WorkedHours) {
		return &ValidationError{Field: "overtimeHours", Message: "exceeds worked hours"}
	}
	if a.Status == StatusAbsent && !a.ManualOverride {
		if a.CheckInTime != nil || a.CheckOutTime != nil {
			return &ValidationError{Field: "status", Message: "absent record carries check-in/out times"}
		}
	}
	return nil
}
