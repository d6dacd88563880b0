/*
contracts.go - Interfaces to the engine's external collaborators

PURPOSE:
  Defines the seams between the core and the outside world. The engine
  never talks to biometric hardware, databases, or payment rails directly;
  it goes through these contracts.

KEY INTERFACES:
  AttendanceStore:  get/put/query attendance records (one per employee+date)
  PayrollStore:     get/put/query payroll records with version checks
  DeviceGateway:    pre-validated punch events from biometric terminals
  SyncBus:          cross-branch change event distribution
  PaymentProvider:  payment confirmation at PROCESSED -> PAID

OPTIMISTIC LOCKING:
  PayrollStore.Put carries the version the caller read. A mismatch returns
  ConcurrentModificationError and writes nothing. This is what makes a
  lifecycle transition a single atomic check-and-update.

IMPLEMENTATIONS:
  - core/store/memory.go: in-memory, for tests and development
  - store/sqlite/sqlite.go: production SQLite

SEE ALSO:
  - payroll/lifecycle.go: drives PayrollStore version checks
  - gateway/ingest.go: consumes DeviceGateway
  - syncbus/reconciler.go: consumes SyncBus
*/
package core

import (
	"context"
	"time"
)

// =============================================================================
// RECORD STORE
// =============================================================================

// AttendanceStore persists daily attendance records.
// At most one record exists per (employee, date); Put of a new record whose
// key is already taken returns DuplicateRecordError. Finalized records are
// replaced only through the manual-override path, which updates in place
// by record ID.
type AttendanceStore interface {
	// GetAttendance returns the record for a key, or ErrNotFound.
	GetAttendance(ctx context.Context, key DayKey) (*Attendance, error)

	// PutAttendance inserts a new record or updates an existing one by ID.
	// Inserting a second record for an occupied key fails. Inserts keep
	// rec.Version as given; updates bump the stored version by one and
	// reflect it into rec.
	PutAttendance(ctx context.Context, rec *Attendance) error

	// QueryAttendanceRange returns an employee's records with
	// from <= date <= to, ordered by date. Soft-deleted records excluded.
	QueryAttendanceRange(ctx context.Context, emp EmployeeID, from, to time.Time) ([]*Attendance, error)
}

// PayrollStore persists monthly payroll records with optimistic versioning.
type PayrollStore interface {
	// GetPayroll returns the record for a key, or ErrNotFound.
	GetPayroll(ctx context.Context, key MonthKey) (*PayrollRecord, error)

	// PutPayroll writes the record. expectedVersion is the Version the
	// caller read (0 for a new record). On mismatch the write is rejected
	// with ConcurrentModificationError; a live record for the month when
	// expectedVersion is 0 counts as a mismatch too, so a lost create
	// race is retryable. On success the stored version is bumped and
	// reflected into rec.
	PutPayroll(ctx context.Context, rec *PayrollRecord, expectedVersion int64) error

	// QueryPayrollByStatus returns records in a month filtered by status.
	// An empty status matches all.
	QueryPayrollByStatus(ctx context.Context, month Month, status PayrollStatus) ([]*PayrollRecord, error)
}

// EmployeeStore persists employees and branches.
type EmployeeStore interface {
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	PutEmployee(ctx context.Context, emp *Employee) error
	ListEmployeesByBranch(ctx context.Context, branch BranchID) ([]*Employee, error)

	// FindEmployeeByBiometricID resolves a device event to an employee.
	FindEmployeeByBiometricID(ctx context.Context, biometricID string) (*Employee, error)

	GetBranch(ctx context.Context, id BranchID) (*Branch, error)
	PutBranch(ctx context.Context, b *Branch) error
}

// RecordStore is the full persistence contract.
type RecordStore interface {
	AttendanceStore
	PayrollStore
	EmployeeStore
}

// =============================================================================
// DEVICE GATEWAY - Pre-validated punch events
// =============================================================================

type PunchDirection string

const (
	PunchIn  PunchDirection = "IN"
	PunchOut PunchDirection = "OUT"
)

// PunchEvent is an already-validated check event handed over by the device
// gateway. The core never manages device connectivity or retries.
type PunchEvent struct {
	BiometricID string
	Device      DeviceID
	Timestamp   time.Time
	Direction   PunchDirection
	Method      VerificationMethod
	Confidence  float64
	Location    *Geolocation
}

// DeviceGateway is the synchronous source of punch events.
type DeviceGateway interface {
	// FetchEvents returns events recorded by a device since the watermark,
	// ordered by timestamp.
	FetchEvents(ctx context.Context, device DeviceID, since time.Time) ([]PunchEvent, error)
}

// =============================================================================
// SYNC BUS - Cross-branch eventual consistency
// =============================================================================

type EntityType string

const (
	EntityAttendance EntityType = "attendance"
	EntityPayroll    EntityType = "payroll"
	EntityEmployee   EntityType = "employee"
)

// ChangeEvent is a cross-branch state change notification.
type ChangeEvent struct {
	Entity    EntityType
	EntityID  string
	Branch    BranchID
	Version   int64
	Payload   []byte
	EmittedAt time.Time
}

// SyncBus distributes change events between branch instances. Delivery is
// asynchronous and eventually consistent; consumers must treat late events
// for finalized months as corrections, never blind overwrites.
type SyncBus interface {
	Publish(ctx context.Context, event ChangeEvent) error

	// Subscribe returns a channel of change events for one entity type.
	// The channel closes when ctx is done.
	Subscribe(ctx context.Context, entity EntityType) (<-chan ChangeEvent, error)
}

// =============================================================================
// PAYMENT PROVIDER
// =============================================================================

// PaymentConfirmation is the provider's answer at PROCESSED -> PAID.
type PaymentConfirmation struct {
	Confirmed bool
	Reference string
	PaidAt    time.Time
	Detail    string
}

// PaymentProvider confirms that a processed payroll was actually paid out.
type PaymentProvider interface {
	ConfirmPayment(ctx context.Context, record PayrollID, reference string) (PaymentConfirmation, error)
}
