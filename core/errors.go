/*
errors.go - Centralized error taxonomy for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Other packages wrap these with additional context.

ERROR CATEGORIES:
  1. Validation errors  - malformed input, rejected at the boundary
  2. Aggregation errors - month not ready to close
  3. Lifecycle errors   - illegal state machine moves, fatal to the operation
  4. Store errors       - uniqueness and optimistic-locking conflicts

USAGE:
  if errors.Is(err, core.ErrConcurrentModification) {
      // re-read the record and retry the transition
  }

SEE ALSO:
  - payroll/lifecycle.go: raises transition errors
  - attendance/aggregator.go: raises IncompleteAttendanceError
*/
package core

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrIncompleteAttendance is returned when a month has too few attendance
	// records to aggregate. Recoverable: retry later or request partial mode.
	ErrIncompleteAttendance = errors.New("attendance incomplete for month")

	// ErrNegativeNetSalary is returned when deductions exceed gross salary.
	// Non-fatal to the record: it is surfaced for manual review.
	ErrNegativeNetSalary = errors.New("net salary would be negative")

	// ErrInvalidTransition is returned for a non-adjacent or backward
	// lifecycle move. Fatal to the requested operation, no state change.
	ErrInvalidTransition = errors.New("invalid payroll transition")

	// ErrImmutablePayroll is returned when recomputation is attempted on a
	// record past CALCULATED. Corrections go through the audited path.
	ErrImmutablePayroll = errors.New("payroll record is immutable")

	// ErrConcurrentModification is returned when optimistic locking detects
	// a conflict. Caller must re-read and retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateRecord is returned when a write would violate the
	// one-record-per-key invariant (employee+date, employee+month).
	ErrDuplicateRecord = errors.New("record already exists for key")

	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed normalizer input, e.g. a check-out
// before its check-in. The attendance record is not created.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IncompleteAttendanceError reports how far a month is from being closeable.
type IncompleteAttendanceError struct {
	Employee    EmployeeID
	Month       Month
	RecordedDays int
	WorkingDays  int
	MinCoverage  float64
}

func (e *IncompleteAttendanceError) Error() string {
	return fmt.Sprintf("attendance incomplete: %s %s has %d/%d working days recorded (need %.0f%%)",
		e.Employee, e.Month, e.RecordedDays, e.WorkingDays, e.MinCoverage*100)
}

func (e *IncompleteAttendanceError) Unwrap() error { return ErrIncompleteAttendance }

// NegativeNetSalaryError reports a net salary below zero.
type NegativeNetSalaryError struct {
	Employee EmployeeID
	Month    Month
	Gross    string
	Deductions string
}

func (e *NegativeNetSalaryError) Error() string {
	return fmt.Sprintf("negative net salary: %s %s gross %s < deductions %s",
		e.Employee, e.Month, e.Gross, e.Deductions)
}

func (e *NegativeNetSalaryError) Unwrap() error { return ErrNegativeNetSalary }

// InvalidTransitionError reports an illegal state machine move.
type InvalidTransitionError struct {
	Record PayrollID
	From   PayrollStatus
	To     PayrollStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition %s -> %s for %s: %s", e.From, e.To, e.Record, e.Reason)
	}
	return fmt.Sprintf("invalid transition %s -> %s for %s", e.From, e.To, e.Record)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ImmutablePayrollError reports a recomputation attempt on a locked record.
type ImmutablePayrollError struct {
	Record PayrollID
	Status PayrollStatus
}

func (e *ImmutablePayrollError) Error() string {
	return fmt.Sprintf("payroll %s is immutable in status %s; use a correction entry", e.Record, e.Status)
}

func (e *ImmutablePayrollError) Unwrap() error { return ErrImmutablePayroll }

// ConcurrentModificationError reports an optimistic version conflict.
type ConcurrentModificationError struct {
	Record          string
	ExpectedVersion int64
	ActualVersion   int64
	At              time.Time
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification on %s: expected version %d, found %d",
		e.Record, e.ExpectedVersion, e.ActualVersion)
}

func (e *ConcurrentModificationError) Unwrap() error { return ErrConcurrentModification }

// DuplicateRecordError reports a one-per-key uniqueness violation.
type DuplicateRecordError struct {
	Kind       string // "attendance" or "payroll"
	Key        string
	ExistingID string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("duplicate %s record for %s (existing: %s)", e.Kind, e.Key, e.ExistingID)
}

func (e *DuplicateRecordError) Unwrap() error { return ErrDuplicateRecord }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrIncompleteAttendance)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrImmutablePayroll) ||
		errors.Is(err, ErrDuplicateRecord)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
