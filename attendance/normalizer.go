/*
Package attendance derives and aggregates daily attendance records.

PURPOSE:
  The normalizer (this file) turns a day's raw punch session plus the
  employee's schedule policy into a finalized Attendance record: status,
  worked hours, late/early minutes, overtime and anomaly score.
  The aggregator (aggregator.go) folds a month of records into the
  summary counters the payroll calculator consumes.

NORMALIZATION RULES:
  - non-working weekday          -> WEEKEND, hours not counted
  - declared holiday             -> HOLIDAY, hours not counted
  - approved leave               -> LEAVE
  - no punch on a working day    -> ABSENT, zero hours
  - otherwise: worked = (out - in) - break, clamped to >= 0
    late  = max(0, in - shiftStart - grace)    -> status LATE if > 0
    early = max(0, shiftEnd - out)             -> recorded, no status change
    overtime = max(0, worked - shift length)
    worked below half the shift                -> HALF_DAY

ANOMALY SCORING:
  Confidence, geofence distance and deviation from the employee's
  trailing-30-day worked-hours average feed the shared anomaly scorer.
  Crossing the threshold sets the review flag; it never blocks the save.

SEE ALSO:
  - aggregator.go: monthly summary
  - anomaly/flagger.go: the scoring function
*/
package attendance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/anomaly"
	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// INPUTS
// =============================================================================

// DaySession is one day's raw punch pair from the device gateway.
// A zero CheckOut means the employee never punched out.
type DaySession struct {
	CheckIn  time.Time
	CheckOut time.Time

	BreakStart *time.Time
	BreakEnd   *time.Time

	CheckInDevice  core.DeviceID
	CheckOutDevice core.DeviceID

	Method     core.VerificationMethod
	Confidence float64

	CheckInLocation  *core.Geolocation
	CheckOutLocation *core.Geolocation
}

// LeaveInfo marks a day covered by an approved leave request.
type LeaveInfo struct {
	Type   core.LeaveType
	Reason string
}

// Baseline is the employee's trailing worked-hours average, computed from
// non-overridden records only (see TrailingBaseline).
type Baseline struct {
	AvgWorkedHours decimal.Decimal
	SampleDays     int
}

// DayContext carries everything about the day that is not the punch itself.
type DayContext struct {
	Date    time.Time
	Holiday bool
	Leave   *LeaveInfo

	// Branch supplies the geofence; nil disables geofence scoring.
	Branch *core.Branch

	Baseline *Baseline

	Actor string
	Now   time.Time
}

// =============================================================================
// NORMALIZER
// =============================================================================

type Normalizer struct {
	Anomaly anomaly.Config
}

func NewNormalizer(cfg anomaly.Config) *Normalizer {
	return &Normalizer{Anomaly: cfg}
}

// Normalize produces the finalized Attendance record for one employee-day.
// session may be nil (no punches). Returns ValidationError for malformed
// input; in that case no record is created.
func (n *Normalizer) Normalize(emp *core.Employee, day DayContext, session *DaySession) (*core.Attendance, error) {
	date := core.DateOf(day.Date)

	rec := &core.Attendance{
		AuditRecord: core.NewAuditRecord(day.Actor, day.Now),
		Employee:    core.EmployeeID(emp.ID),
		Branch:      emp.Branch,
		Date:        date,
		Type:        core.TypeRegular,
		WorkedHours: decimal.Zero,
		BreakHours:  decimal.Zero,
		OvertimeHours: decimal.Zero,
	}

	// Days outside the schedule never count toward payroll, punches or not.
	if !emp.Schedule.IsWorkingDay(date) {
		rec.Status = core.StatusWeekend
		return rec, nil
	}
	if day.Holiday {
		rec.Status = core.StatusHoliday
		return rec, nil
	}
	if day.Leave != nil {
		rec.Status = core.StatusLeave
		rec.LeaveType = day.Leave.Type
		rec.LeaveReason = day.Leave.Reason
		return rec, nil
	}
	if session == nil || session.CheckIn.IsZero() {
		rec.Status = core.StatusAbsent
		return rec, nil
	}

	if !session.CheckOut.IsZero() && session.CheckOut.Before(session.CheckIn) {
		return nil, &core.ValidationError{Field: "checkOutTime", Message: "before check-in"}
	}
	if session.BreakStart != nil && session.BreakEnd != nil && session.BreakEnd.Before(*session.BreakStart) {
		return nil, &core.ValidationError{Field: "breakEnd", Message: "before break start"}
	}

	checkIn := session.CheckIn
	rec.CheckInTime = &checkIn
	if !session.CheckOut.IsZero() {
		checkOut := session.CheckOut
		rec.CheckOutTime = &checkOut
	}
	rec.BreakStart = session.BreakStart
	rec.BreakEnd = session.BreakEnd
	rec.CheckInDevice = session.CheckInDevice
	rec.CheckOutDevice = session.CheckOutDevice
	rec.VerificationMethod = session.Method
	rec.VerificationScore = session.Confidence
	rec.CheckInLocation = session.CheckInLocation
	rec.CheckOutLocation = session.CheckOutLocation

	policy := emp.Schedule

	// Worked hours: (out - in) - break, minute precision, clamped to >= 0.
	if rec.CheckOutTime != nil {
		gross := core.HoursBetween(checkIn, *rec.CheckOutTime)
		if session.BreakStart != nil && session.BreakEnd != nil {
			rec.BreakHours = core.HoursBetween(*session.BreakStart, *session.BreakEnd)
		}
		worked := gross.Sub(rec.BreakHours)
		if worked.IsNegative() {
			worked = decimal.Zero
		}
		rec.WorkedHours = core.RoundHours(worked)
	}

	// Late arrival: minutes past shift start beyond the grace period.
	inMinute := int(core.MinuteWithin(checkIn))
	lateBy := inMinute - int(policy.ShiftStart) - policy.GraceMinutes
	if lateBy > 0 {
		rec.LateArrivalMinutes = lateBy
	}

	// Early departure: recorded, but does not by itself change status.
	if rec.CheckOutTime != nil {
		outMinute := int(core.MinuteWithin(*rec.CheckOutTime))
		earlyBy := int(policy.ShiftEnd) - outMinute
		if earlyBy > 0 {
			rec.EarlyDepartureMinutes = earlyBy
		}
	}

	shiftHours := policy.ShiftHours()
	if overtime := rec.WorkedHours.Sub(shiftHours); overtime.IsPositive() {
		rec.OvertimeHours = core.RoundHours(overtime)
	}

	switch {
	case shiftHours.IsPositive() && rec.WorkedHours.LessThan(shiftHours.Div(decimal.NewFromInt(2))):
		rec.Status = core.StatusHalfDay
	case rec.LateArrivalMinutes > 0:
		rec.Status = core.StatusLate
	default:
		rec.Status = core.StatusPresent
	}

	n.score(rec, day, session)
	return rec, nil
}

// MarkAbsent creates the ABSENT record for a working day with no event.
// The scheduled absence-marker calls this for every uncovered day.
func MarkAbsent(emp *core.Employee, date time.Time, actor string, now time.Time) *core.Attendance {
	return &core.Attendance{
		AuditRecord:   core.NewAuditRecord(actor, now),
		Employee:      core.EmployeeID(emp.ID),
		Branch:        emp.Branch,
		Date:          core.DateOf(date),
		Status:        core.StatusAbsent,
		Type:          core.TypeRegular,
		WorkedHours:   decimal.Zero,
		BreakHours:    decimal.Zero,
		OvertimeHours: decimal.Zero,
	}
}

func (n *Normalizer) score(rec *core.Attendance, day DayContext, session *DaySession) {
	features := anomaly.Features{
		Confidence:    session.Confidence,
		HasConfidence: true,
	}

	if day.Branch != nil && day.Branch.GeofenceRadius > 0 && session.CheckInLocation != nil {
		distance := session.CheckInLocation.DistanceMeters(day.Branch.Location)
		outside := distance - day.Branch.GeofenceRadius
		if outside < 0 {
			outside = 0
		}
		features.GeofenceDistance = outside
		features.HasGeofenceDistance = true
	}

	if day.Baseline != nil && day.Baseline.AvgWorkedHours.IsPositive() {
		diff := rec.WorkedHours.Sub(day.Baseline.AvgWorkedHours).Abs()
		deviation, _ := diff.Div(day.Baseline.AvgWorkedHours).Float64()
		features.BaselineDeviation = deviation
		features.HasBaselineDeviation = true
	}

	result := anomaly.Score(features, n.Anomaly)
	rec.AnomalyScore = result.Score
	rec.FlaggedForReview = result.Flagged
	rec.FlagReason = result.Reason()
}

// =============================================================================
// MANUAL OVERRIDE - The only legal mutation path for finalized records
// =============================================================================

// Override lists the fields a correction may overwrite. Nil fields are
// left untouched.
type Override struct {
	Status        *core.AttendanceStatus
	CheckInTime   *time.Time
	CheckOutTime  *time.Time
	WorkedHours   *decimal.Decimal
	OvertimeHours *decimal.Decimal
	LateArrivalMinutes    *int
	EarlyDepartureMinutes *int
	Notes         *string
}

// ApplyOverride mutates rec in place with actor attribution. Both actor and
// reason are mandatory: anonymous corrections are not corrections.
// Overridden records are excluded from future baselines (TrailingBaseline).
func ApplyOverride(rec *core.Attendance, o Override, actor, reason string, now time.Time) error {
	if actor == "" {
		return &core.ValidationError{Field: "actor", Message: "override requires an actor"}
	}
	if reason == "" {
		return &core.ValidationError{Field: "reason", Message: "override requires a reason"}
	}

	if o.Status != nil {
		rec.Status = *o.Status
	}
	if o.CheckInTime != nil {
		rec.CheckInTime = o.CheckInTime
	}
	if o.CheckOutTime != nil {
		rec.CheckOutTime = o.CheckOutTime
	}
	if o.WorkedHours != nil {
		rec.WorkedHours = *o.WorkedHours
	}
	if o.OvertimeHours != nil {
		rec.OvertimeHours = *o.OvertimeHours
	}
	if o.LateArrivalMinutes != nil {
		rec.LateArrivalMinutes = *o.LateArrivalMinutes
	}
	if o.EarlyDepartureMinutes != nil {
		rec.EarlyDepartureMinutes = *o.EarlyDepartureMinutes
	}
	if o.Notes != nil {
		rec.Notes = *o.Notes
	}

	rec.ManualOverride = true
	rec.ManualOverrideBy = actor
	rec.ManualOverrideReason = reason
	rec.Touch(actor, now)

	return rec.Validate()
}

// =============================================================================
// BASELINE - Trailing average for anomaly scoring
// =============================================================================

// TrailingBaseline computes the average worked hours over the records,
// skipping overridden records and non-worked days. Callers pass the
// trailing-30-day window; an empty window yields a nil baseline.
func TrailingBaseline(records []*core.Attendance) *Baseline {
	sum := decimal.Zero
	n := 0
	for _, rec := range records {
		if rec.ManualOverride || !rec.IsPresent() {
			continue
		}
		sum = sum.Add(rec.WorkedHours)
		n++
	}
	if n == 0 {
		return nil
	}
	return &Baseline{
		AvgWorkedHours: sum.Div(decimal.NewFromInt(int64(n))),
		SampleDays:     n,
	}
}
