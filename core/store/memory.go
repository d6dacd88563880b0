// Package store provides RecordStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	attendance map[core.DayKey]*core.Attendance
	payroll    map[core.MonthKey]*core.PayrollRecord
	employees  map[core.EmployeeID]*core.Employee
	branches   map[core.BranchID]*core.Branch
}

func NewMemory() *Memory {
	return &Memory{
		attendance: make(map[core.DayKey]*core.Attendance),
		payroll:    make(map[core.MonthKey]*core.PayrollRecord),
		employees:  make(map[core.EmployeeID]*core.Employee),
		branches:   make(map[core.BranchID]*core.Branch),
	}
}

var _ core.RecordStore = (*Memory)(nil)

// -----------------------------------------------------------------------------
// Attendance
// -----------------------------------------------------------------------------

func (m *Memory) GetAttendance(_ context.Context, key core.DayKey) (*core.Attendance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.attendance[key]
	if !ok || rec.IsDeleted() {
		return nil, core.ErrNotFound
	}
	return cloneAttendance(rec), nil
}

func (m *Memory) PutAttendance(_ context.Context, rec *core.Attendance) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.Key()
	if existing, ok := m.attendance[key]; ok {
		if existing.ID != rec.ID {
			return &core.DuplicateRecordError{
				Kind:       "attendance",
				Key:        string(key.Employee) + "/" + key.Date.Format("2006-01-02"),
				ExistingID: existing.ID,
			}
		}
		// Rewriting an existing day bumps its version, inserts keep the
		// version the caller set.
		rec.Version = existing.Version + 1
	}

	m.attendance[key] = cloneAttendance(rec)
	return nil
}

func (m *Memory) QueryAttendanceRange(_ context.Context, emp core.EmployeeID, from, to time.Time) ([]*core.Attendance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from, to = core.DateOf(from), core.DateOf(to)
	var result []*core.Attendance
	for key, rec := range m.attendance {
		if key.Employee != emp || rec.IsDeleted() {
			continue
		}
		if key.Date.Before(from) || key.Date.After(to) {
			continue
		}
		result = append(result, cloneAttendance(rec))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// -----------------------------------------------------------------------------
// Payroll - optimistic versioning lives here
// -----------------------------------------------------------------------------

func (m *Memory) GetPayroll(_ context.Context, key core.MonthKey) (*core.PayrollRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.payroll[key]
	if !ok || rec.IsDeleted() {
		return nil, core.ErrNotFound
	}
	return clonePayroll(rec), nil
}

func (m *Memory) PutPayroll(_ context.Context, rec *core.PayrollRecord, expectedVersion int64) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.MonthKey()
	existing, ok := m.payroll[key]

	if !ok {
		if expectedVersion != 0 {
			return &core.ConcurrentModificationError{
				Record:          rec.ID,
				ExpectedVersion: expectedVersion,
				ActualVersion:   0,
			}
		}
		stored := clonePayroll(rec)
		stored.Version = 1
		m.payroll[key] = stored
		rec.Version = 1
		return nil
	}

	if existing.ID != rec.ID {
		// A live record under a different ID means this writer lost the
		// create race for the month. Retryable, like any stale write.
		return &core.ConcurrentModificationError{
			Record:          rec.ID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   existing.Version,
		}
	}
	if existing.Version != expectedVersion {
		return &core.ConcurrentModificationError{
			Record:          rec.ID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   existing.Version,
		}
	}

	stored := clonePayroll(rec)
	stored.Version = expectedVersion + 1
	m.payroll[key] = stored
	rec.Version = stored.Version
	return nil
}

func (m *Memory) QueryPayrollByStatus(_ context.Context, month core.Month, status core.PayrollStatus) ([]*core.PayrollRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*core.PayrollRecord
	for key, rec := range m.payroll {
		if key.Month != month || rec.IsDeleted() {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		result = append(result, clonePayroll(rec))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Employee < result[j].Employee })
	return result, nil
}

// -----------------------------------------------------------------------------
// Employees and branches
// -----------------------------------------------------------------------------

func (m *Memory) GetEmployee(_ context.Context, id core.EmployeeID) (*core.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.employees[id]
	if !ok || emp.IsDeleted() {
		return nil, core.ErrNotFound
	}
	cp := *emp
	return &cp, nil
}

func (m *Memory) PutEmployee(_ context.Context, emp *core.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *emp
	m.employees[core.EmployeeID(emp.ID)] = &cp
	return nil
}

func (m *Memory) ListEmployeesByBranch(_ context.Context, branch core.BranchID) ([]*core.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*core.Employee
	for _, emp := range m.employees {
		if emp.Branch != branch || emp.IsDeleted() {
			continue
		}
		cp := *emp
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (m *Memory) FindEmployeeByBiometricID(_ context.Context, biometricID string) (*core.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, emp := range m.employees {
		if emp.BiometricID == biometricID && !emp.IsDeleted() {
			cp := *emp
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *Memory) GetBranch(_ context.Context, id core.BranchID) (*core.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.branches[id]
	if !ok || b.IsDeleted() {
		return nil, core.ErrNotFound
	}
	cp := *b
	cp.Devices = append([]core.Device(nil), b.Devices...)
	return &cp, nil
}

func (m *Memory) PutBranch(_ context.Context, b *core.Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *b
	cp.Devices = append([]core.Device(nil), b.Devices...)
	m.branches[core.BranchID(b.ID)] = &cp
	return nil
}

// -----------------------------------------------------------------------------
// Clone helpers - the store hands out copies, never its own pointers
// -----------------------------------------------------------------------------

func cloneAttendance(rec *core.Attendance) *core.Attendance {
	cp := *rec
	cp.CheckInTime = cloneTime(rec.CheckInTime)
	cp.CheckOutTime = cloneTime(rec.CheckOutTime)
	cp.BreakStart = cloneTime(rec.BreakStart)
	cp.BreakEnd = cloneTime(rec.BreakEnd)
	if rec.CheckInLocation != nil {
		loc := *rec.CheckInLocation
		cp.CheckInLocation = &loc
	}
	if rec.CheckOutLocation != nil {
		loc := *rec.CheckOutLocation
		cp.CheckOutLocation = &loc
	}
	return &cp
}

func clonePayroll(rec *core.PayrollRecord) *core.PayrollRecord {
	cp := *rec
	cp.Allowances = append([]core.PayrollAllowance(nil), rec.Allowances...)
	cp.Deductions = append([]core.PayrollDeduction(nil), rec.Deductions...)
	cp.Corrections = append([]core.CorrectionEntry(nil), rec.Corrections...)
	cp.CalculatedAt = cloneTime(rec.CalculatedAt)
	cp.ReviewedAt = cloneTime(rec.ReviewedAt)
	cp.ApprovedAt = cloneTime(rec.ApprovedAt)
	cp.ProcessedAt = cloneTime(rec.ProcessedAt)
	cp.PaidAt = cloneTime(rec.PaidAt)
	cp.CancelledAt = cloneTime(rec.CancelledAt)
	cp.PaymentDate = cloneTime(rec.PaymentDate)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
