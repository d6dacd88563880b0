/*
Package sqlite provides a SQLite-backed implementation of core.RecordStore.

PURPOSE:
  Implements the persistence contracts (AttendanceStore, PayrollStore,
  EmployeeStore) using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees:          entity records (schedule/salary config as JSON)
  branches:           branch records with device registry JSON
  attendance:         one row per (employee, date), soft-deleted only
  payroll_records:    one row per (employee, month), versioned
  payroll_allowances: line items owned by one payroll record
  payroll_deductions: line items owned by one payroll record

UNIQUENESS:
  Partial unique indexes enforce the one-record-per-key invariants at the
  database level, backing up the application-level checks.

OPTIMISTIC LOCKING:
  payroll_records carries a version column. PutPayroll updates WHERE
  version = expected; zero rows affected means a concurrent writer won and
  the caller gets ConcurrentModificationError.

DECIMALS:
  Monetary and hour values are stored as TEXT via decimal.String() so no
  float drift can creep in at the persistence boundary.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - core/contracts.go: interface definitions
  - core/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/core"
)

// Store implements core.RecordStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ core.RecordStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS branches (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		timezone TEXT,
		status TEXT NOT NULL,
		working_hours_start INTEGER DEFAULT 0,
		working_hours_end INTEGER DEFAULT 0,
		latitude REAL DEFAULT 0,
		longitude REAL DEFAULT 0,
		geofence_radius REAL DEFAULT 0,
		devices_json TEXT,
		last_sync_at TEXT,
		created_at TEXT NOT NULL,
		created_by TEXT,
		updated_at TEXT NOT NULL,
		updated_by TEXT,
		version INTEGER DEFAULT 1,
		deleted_at TEXT,
		deleted_by TEXT
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT,
		branch_id TEXT NOT NULL,
		status TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		biometric_id TEXT,
		schedule_json TEXT NOT NULL,
		salary_json TEXT NOT NULL,
		annual_leave_balance TEXT,
		sick_leave_balance TEXT,
		created_at TEXT NOT NULL,
		created_by TEXT,
		updated_at TEXT NOT NULL,
		updated_by TEXT,
		version INTEGER DEFAULT 1,
		deleted_at TEXT,
		deleted_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_employees_branch ON employees(branch_id);
	CREATE INDEX IF NOT EXISTS idx_employees_biometric ON employees(biometric_id)
		WHERE biometric_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		date TEXT NOT NULL,
		check_in_time TEXT,
		check_out_time TEXT,
		break_start TEXT,
		break_end TEXT,
		worked_hours TEXT NOT NULL,
		break_hours TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		late_arrival_minutes INTEGER DEFAULT 0,
		early_departure_minutes INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		attendance_type TEXT,
		leave_type TEXT,
		leave_reason TEXT,
		check_in_device TEXT,
		check_out_device TEXT,
		verification_method TEXT,
		verification_score REAL DEFAULT 0,
		check_in_lat REAL,
		check_in_lon REAL,
		anomaly_score REAL DEFAULT 0,
		flagged_for_review BOOLEAN DEFAULT FALSE,
		flag_reason TEXT,
		manual_override BOOLEAN DEFAULT FALSE,
		manual_override_by TEXT,
		manual_override_reason TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		created_by TEXT,
		updated_at TEXT NOT NULL,
		updated_by TEXT,
		version INTEGER DEFAULT 1,
		deleted_at TEXT,
		deleted_by TEXT
	);

	-- CRITICAL: at most one live attendance record per (employee, date)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_employee_date
		ON attendance(employee_id, date) WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_attendance_branch_date
		ON attendance(branch_id, date);
	CREATE INDEX IF NOT EXISTS idx_attendance_status
		ON attendance(status);

	CREATE TABLE IF NOT EXISTS payroll_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		month TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		base_salary TEXT NOT NULL,
		allowance_total TEXT NOT NULL,
		overtime_amount TEXT NOT NULL,
		bonus TEXT NOT NULL,
		commission TEXT NOT NULL,
		gross_salary TEXT NOT NULL,
		tax_deduction TEXT NOT NULL,
		social_security_deduction TEXT NOT NULL,
		health_insurance_deduction TEXT NOT NULL,
		pension_deduction TEXT NOT NULL,
		other_deductions TEXT NOT NULL,
		total_deductions TEXT NOT NULL,
		net_salary TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_method TEXT,
		bank_name TEXT,
		bank_account TEXT,
		payment_ref TEXT,
		payment_date TEXT,
		anomaly_score REAL DEFAULT 0,
		is_flagged BOOLEAN DEFAULT FALSE,
		flag_reason TEXT,
		flag_acknowledged_by TEXT,
		calculated_by TEXT,
		calculated_at TEXT,
		reviewed_by TEXT,
		reviewed_at TEXT,
		approved_by TEXT,
		approved_at TEXT,
		processed_by TEXT,
		processed_at TEXT,
		paid_at TEXT,
		cancelled_by TEXT,
		cancelled_at TEXT,
		cancel_reason TEXT,
		corrections_json TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		created_by TEXT,
		updated_at TEXT NOT NULL,
		updated_by TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		deleted_at TEXT,
		deleted_by TEXT
	);

	-- CRITICAL: at most one live payroll record per (employee, month)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payroll_employee_month
		ON payroll_records(employee_id, month) WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_payroll_month_status
		ON payroll_records(month, status);

	-- Line items are exclusively owned: rewritten with their record.
	CREATE TABLE IF NOT EXISTS payroll_allowances (
		id TEXT PRIMARY KEY,
		payroll_record_id TEXT NOT NULL,
		name TEXT NOT NULL,
		allowance_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		taxable BOOLEAN DEFAULT TRUE,
		notes TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_allowances_record
		ON payroll_allowances(payroll_record_id);

	CREATE TABLE IF NOT EXISTS payroll_deductions (
		id TEXT PRIMARY KEY,
		payroll_record_id TEXT NOT NULL,
		name TEXT NOT NULL,
		deduction_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		pre_tax BOOLEAN DEFAULT FALSE,
		notes TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_deductions_record
		ON payroll_deductions(payroll_record_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ATTENDANCE STORE
// =============================================================================

const attendanceColumns = `id, employee_id, branch_id, date,
	check_in_time, check_out_time, break_start, break_end,
	worked_hours, break_hours, overtime_hours,
	late_arrival_minutes, early_departure_minutes,
	status, attendance_type, leave_type, leave_reason,
	check_in_device, check_out_device, verification_method, verification_score,
	check_in_lat, check_in_lon,
	anomaly_score, flagged_for_review, flag_reason,
	manual_override, manual_override_by, manual_override_reason, notes,
	created_at, created_by, updated_at, updated_by, version, deleted_at, deleted_by`

func (s *Store) GetAttendance(ctx context.Context, key core.DayKey) (*core.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + attendanceColumns + ` FROM attendance
		WHERE employee_id = ? AND date = ? AND deleted_at IS NULL`
	row := s.db.QueryRowContext(ctx, query, key.Employee, key.Date.Format("2006-01-02"))
	rec, err := scanAttendance(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	return rec, err
}

func (s *Store) PutAttendance(ctx context.Context, rec *core.Attendance) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO attendance (` + attendanceColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			check_in_time=excluded.check_in_time,
			check_out_time=excluded.check_out_time,
			break_start=excluded.break_start,
			break_end=excluded.break_end,
			worked_hours=excluded.worked_hours,
			break_hours=excluded.break_hours,
			overtime_hours=excluded.overtime_hours,
			late_arrival_minutes=excluded.late_arrival_minutes,
			early_departure_minutes=excluded.early_departure_minutes,
			status=excluded.status,
			attendance_type=excluded.attendance_type,
			leave_type=excluded.leave_type,
			leave_reason=excluded.leave_reason,
			check_in_device=excluded.check_in_device,
			check_out_device=excluded.check_out_device,
			verification_method=excluded.verification_method,
			verification_score=excluded.verification_score,
			anomaly_score=excluded.anomaly_score,
			flagged_for_review=excluded.flagged_for_review,
			flag_reason=excluded.flag_reason,
			manual_override=excluded.manual_override,
			manual_override_by=excluded.manual_override_by,
			manual_override_reason=excluded.manual_override_reason,
			notes=excluded.notes,
			updated_at=excluded.updated_at,
			updated_by=excluded.updated_by,
			version=attendance.version + 1,
			deleted_at=excluded.deleted_at,
			deleted_by=excluded.deleted_by`

	var lat, lon any
	if rec.CheckInLocation != nil {
		lat, lon = rec.CheckInLocation.Latitude, rec.CheckInLocation.Longitude
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Employee, rec.Branch, rec.Date.Format("2006-01-02"),
		nullTime(rec.CheckInTime), nullTime(rec.CheckOutTime),
		nullTime(rec.BreakStart), nullTime(rec.BreakEnd),
		rec.WorkedHours.String(), rec.BreakHours.String(), rec.OvertimeHours.String(),
		rec.LateArrivalMinutes, rec.EarlyDepartureMinutes,
		rec.Status, rec.Type, nullString(string(rec.LeaveType)), nullString(rec.LeaveReason),
		nullString(string(rec.CheckInDevice)), nullString(string(rec.CheckOutDevice)),
		nullString(string(rec.VerificationMethod)), rec.VerificationScore,
		lat, lon,
		rec.AnomalyScore, rec.FlaggedForReview, nullString(rec.FlagReason),
		rec.ManualOverride, nullString(rec.ManualOverrideBy), nullString(rec.ManualOverrideReason),
		nullString(rec.Notes),
		rec.CreatedAt.UTC().Format(time.RFC3339), nullString(rec.CreatedBy),
		rec.UpdatedAt.UTC().Format(time.RFC3339), nullString(rec.UpdatedBy),
		rec.Version, nullTime(rec.DeletedAt), nullString(rec.DeletedBy),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.DuplicateRecordError{
				Kind: "attendance",
				Key:  fmt.Sprintf("%s/%s", rec.Employee, rec.Date.Format("2006-01-02")),
			}
		}
		return fmt.Errorf("failed to put attendance: %w", err)
	}

	// Rewrites bump the stored version, so hand it back to the caller.
	row := s.db.QueryRowContext(ctx, `SELECT version FROM attendance WHERE id = ?`, rec.ID)
	if err := row.Scan(&rec.Version); err != nil {
		return fmt.Errorf("failed to read back attendance version: %w", err)
	}
	return nil
}

func (s *Store) QueryAttendanceRange(ctx context.Context, emp core.EmployeeID, from, to time.Time) ([]*core.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + attendanceColumns + ` FROM attendance
		WHERE employee_id = ? AND date >= ? AND date <= ? AND deleted_at IS NULL
		ORDER BY date ASC`
	rows, err := s.db.QueryContext(ctx, query, emp,
		core.DateOf(from).Format("2006-01-02"), core.DateOf(to).Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*core.Attendance
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttendance(row scanner) (*core.Attendance, error) {
	var rec core.Attendance
	var date string
	var checkIn, checkOut, breakStart, breakEnd sql.NullString
	var worked, breakHours, overtime string
	var attType, leaveType, leaveReason sql.NullString
	var inDevice, outDevice, method sql.NullString
	var lat, lon sql.NullFloat64
	var flagReason, overrideBy, overrideReason, notes sql.NullString
	var createdAt, updatedAt string
	var createdBy, updatedBy, deletedAt, deletedBy sql.NullString

	err := row.Scan(
		&rec.ID, &rec.Employee, &rec.Branch, &date,
		&checkIn, &checkOut, &breakStart, &breakEnd,
		&worked, &breakHours, &overtime,
		&rec.LateArrivalMinutes, &rec.EarlyDepartureMinutes,
		&rec.Status, &attType, &leaveType, &leaveReason,
		&inDevice, &outDevice, &method, &rec.VerificationScore,
		&lat, &lon,
		&rec.AnomalyScore, &rec.FlaggedForReview, &flagReason,
		&rec.ManualOverride, &overrideBy, &overrideReason, &notes,
		&createdAt, &createdBy, &updatedAt, &updatedBy,
		&rec.Version, &deletedAt, &deletedBy,
	)
	if err != nil {
		return nil, err
	}

	rec.Date, _ = time.Parse("2006-01-02", date)
	rec.CheckInTime = parseNullTime(checkIn)
	rec.CheckOutTime = parseNullTime(checkOut)
	rec.BreakStart = parseNullTime(breakStart)
	rec.BreakEnd = parseNullTime(breakEnd)
	rec.WorkedHours = mustParse(worked)
	rec.BreakHours = mustParse(breakHours)
	rec.OvertimeHours = mustParse(overtime)
	rec.Type = core.AttendanceType(attType.String)
	rec.LeaveType = core.LeaveType(leaveType.String)
	rec.LeaveReason = leaveReason.String
	rec.CheckInDevice = core.DeviceID(inDevice.String)
	rec.CheckOutDevice = core.DeviceID(outDevice.String)
	rec.VerificationMethod = core.VerificationMethod(method.String)
	if lat.Valid && lon.Valid {
		rec.CheckInLocation = &core.Geolocation{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	rec.FlagReason = flagReason.String
	rec.ManualOverrideBy = overrideBy.String
	rec.ManualOverrideReason = overrideReason.String
	rec.Notes = notes.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	rec.CreatedBy = createdBy.String
	rec.UpdatedBy = updatedBy.String
	rec.DeletedAt = parseNullTime(deletedAt)
	rec.DeletedBy = deletedBy.String
	return &rec, nil
}

// =============================================================================
// PAYROLL STORE
// =============================================================================

const payrollColumns = `id, employee_id, branch_id, month, summary_json,
	base_salary, allowance_total, overtime_amount, bonus, commission, gross_salary,
	tax_deduction, social_security_deduction, health_insurance_deduction,
	pension_deduction, other_deductions, total_deductions, net_salary,
	status, payment_method, bank_name, bank_account, payment_ref, payment_date,
	anomaly_score, is_flagged, flag_reason, flag_acknowledged_by,
	calculated_by, calculated_at, reviewed_by, reviewed_at,
	approved_by, approved_at, processed_by, processed_at, paid_at,
	cancelled_by, cancelled_at, cancel_reason, corrections_json, notes,
	created_at, created_by, updated_at, updated_by, version, deleted_at, deleted_by`

func (s *Store) GetPayroll(ctx context.Context, key core.MonthKey) (*core.PayrollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+payrollColumns+` FROM payroll_records
		WHERE employee_id = ? AND month = ? AND deleted_at IS NULL`,
		key.Employee, key.Month.String())
	rec, err := scanPayroll(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadLineItems(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) PutPayroll(ctx context.Context, rec *core.PayrollRecord, expectedVersion int64) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	newVersion := expectedVersion + 1
	if expectedVersion == 0 {
		if err := insertPayroll(ctx, tx, rec); err != nil {
			return err
		}
	} else {
		result, err := updatePayroll(ctx, tx, rec, expectedVersion, newVersion)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return &core.ConcurrentModificationError{
				Record:          rec.ID,
				ExpectedVersion: expectedVersion,
			}
		}
	}

	// Line items are owned by the record: rewritten wholesale with it.
	if _, err := tx.ExecContext(ctx, `DELETE FROM payroll_allowances WHERE payroll_record_id = ?`, rec.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM payroll_deductions WHERE payroll_record_id = ?`, rec.ID); err != nil {
		return err
	}
	for _, a := range rec.Allowances {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payroll_allowances (id, payroll_record_id, name, allowance_type, amount, taxable, notes)
			 VALUES (?,?,?,?,?,?,?)`,
			a.ID, rec.ID, a.Name, a.Type, a.Amount.String(), a.Taxable, nullString(a.Notes)); err != nil {
			return err
		}
	}
	for _, d := range rec.Deductions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payroll_deductions (id, payroll_record_id, name, deduction_type, amount, pre_tax, notes)
			 VALUES (?,?,?,?,?,?,?)`,
			d.ID, rec.ID, d.Name, d.Type, d.Amount.String(), d.PreTax, nullString(d.Notes)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	rec.Version = newVersion
	return nil
}

func insertPayroll(ctx context.Context, tx *sql.Tx, rec *core.PayrollRecord) error {
	summaryJSON, _ := json.Marshal(rec.Summary)
	correctionsJSON, _ := json.Marshal(rec.Corrections)

	query := `INSERT INTO payroll_records (` + payrollColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := tx.ExecContext(ctx, query,
		rec.ID, rec.Employee, rec.Branch, rec.Month.String(), string(summaryJSON),
		rec.BaseSalary.String(), rec.AllowanceTotal.String(), rec.OvertimeAmount.String(),
		rec.Bonus.String(), rec.Commission.String(), rec.GrossSalary.String(),
		rec.TaxDeduction.String(), rec.SocialSecurityDeduction.String(),
		rec.HealthInsuranceDeduction.String(), rec.PensionDeduction.String(),
		rec.OtherDeductions.String(), rec.TotalDeductions.String(), rec.NetSalary.String(),
		rec.Status, nullString(string(rec.PaymentMethod)), nullString(rec.BankName),
		nullString(rec.BankAccount), nullString(rec.PaymentRef), nullTime(rec.PaymentDate),
		rec.AnomalyScore, rec.IsFlagged, nullString(rec.FlagReason), nullString(rec.FlagAcknowledgedBy),
		nullString(rec.CalculatedBy), nullTime(rec.CalculatedAt),
		nullString(rec.ReviewedBy), nullTime(rec.ReviewedAt),
		nullString(rec.ApprovedBy), nullTime(rec.ApprovedAt),
		nullString(rec.ProcessedBy), nullTime(rec.ProcessedAt), nullTime(rec.PaidAt),
		nullString(rec.CancelledBy), nullTime(rec.CancelledAt), nullString(rec.CancelReason),
		string(correctionsJSON), nullString(rec.Notes),
		rec.CreatedAt.UTC().Format(time.RFC3339), nullString(rec.CreatedBy),
		rec.UpdatedAt.UTC().Format(time.RFC3339), nullString(rec.UpdatedBy),
		1, nullTime(rec.DeletedAt), nullString(rec.DeletedBy),
	)
	if err != nil && isUniqueConstraintError(err) {
		// Another writer committed this employee-month first. Expose the
		// lost create race the same way a stale update surfaces, so the
		// caller's re-read-and-retry path covers both.
		var actual int64
		_ = tx.QueryRowContext(ctx,
			`SELECT version FROM payroll_records WHERE employee_id = ? AND month = ? AND deleted_at IS NULL`,
			rec.Employee, rec.Month.String()).Scan(&actual)
		return &core.ConcurrentModificationError{
			Record:          rec.ID,
			ExpectedVersion: 0,
			ActualVersion:   actual,
		}
	}
	return err
}

func updatePayroll(ctx context.Context, tx *sql.Tx, rec *core.PayrollRecord, expectedVersion, newVersion int64) (sql.Result, error) {
	summaryJSON, _ := json.Marshal(rec.Summary)
	correctionsJSON, _ := json.Marshal(rec.Corrections)

	query := `UPDATE payroll_records SET
		summary_json=?, base_salary=?, allowance_total=?, overtime_amount=?,
		bonus=?, commission=?, gross_salary=?,
		tax_deduction=?, social_security_deduction=?, health_insurance_deduction=?,
		pension_deduction=?, other_deductions=?, total_deductions=?, net_salary=?,
		status=?, payment_method=?, bank_name=?, bank_account=?, payment_ref=?, payment_date=?,
		anomaly_score=?, is_flagged=?, flag_reason=?, flag_acknowledged_by=?,
		calculated_by=?, calculated_at=?, reviewed_by=?, reviewed_at=?,
		approved_by=?, approved_at=?, processed_by=?, processed_at=?, paid_at=?,
		cancelled_by=?, cancelled_at=?, cancel_reason=?, corrections_json=?, notes=?,
		updated_at=?, updated_by=?, version=?, deleted_at=?, deleted_by=?
		WHERE id=? AND version=?`
	return tx.ExecContext(ctx, query,
		string(summaryJSON), rec.BaseSalary.String(), rec.AllowanceTotal.String(),
		rec.OvertimeAmount.String(), rec.Bonus.String(), rec.Commission.String(),
		rec.GrossSalary.String(),
		rec.TaxDeduction.String(), rec.SocialSecurityDeduction.String(),
		rec.HealthInsuranceDeduction.String(), rec.PensionDeduction.String(),
		rec.OtherDeductions.String(), rec.TotalDeductions.String(), rec.NetSalary.String(),
		rec.Status, nullString(string(rec.PaymentMethod)), nullString(rec.BankName),
		nullString(rec.BankAccount), nullString(rec.PaymentRef), nullTime(rec.PaymentDate),
		rec.AnomalyScore, rec.IsFlagged, nullString(rec.FlagReason), nullString(rec.FlagAcknowledgedBy),
		nullString(rec.CalculatedBy), nullTime(rec.CalculatedAt),
		nullString(rec.ReviewedBy), nullTime(rec.ReviewedAt),
		nullString(rec.ApprovedBy), nullTime(rec.ApprovedAt),
		nullString(rec.ProcessedBy), nullTime(rec.ProcessedAt), nullTime(rec.PaidAt),
		nullString(rec.CancelledBy), nullTime(rec.CancelledAt), nullString(rec.CancelReason),
		string(correctionsJSON), nullString(rec.Notes),
		rec.UpdatedAt.UTC().Format(time.RFC3339), nullString(rec.UpdatedBy),
		newVersion, nullTime(rec.DeletedAt), nullString(rec.DeletedBy),
		rec.ID, expectedVersion,
	)
}

func (s *Store) QueryPayrollByStatus(ctx context.Context, month core.Month, status core.PayrollStatus) ([]*core.PayrollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + payrollColumns + ` FROM payroll_records
		WHERE month = ? AND deleted_at IS NULL`
	args := []any{month.String()}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY employee_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*core.PayrollRecord
	for rows.Next() {
		rec, err := scanPayroll(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, rec := range result {
		if err := s.loadLineItems(ctx, rec); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func scanPayroll(row scanner) (*core.PayrollRecord, error) {
	var rec core.PayrollRecord
	var month, summaryJSON string
	var base, allowances, overtime, bonus, commission, gross string
	var tax, social, health, pension, other, total, net string
	var method, bankName, bankAccount, paymentRef, paymentDate sql.NullString
	var flagReason, ackBy sql.NullString
	var calcBy, calcAt, revBy, revAt, apprBy, apprAt, procBy, procAt, paidAt sql.NullString
	var cancBy, cancAt, cancReason sql.NullString
	var correctionsJSON, notes sql.NullString
	var createdAt, updatedAt string
	var createdBy, updatedBy, deletedAt, deletedBy sql.NullString

	err := row.Scan(
		&rec.ID, &rec.Employee, &rec.Branch, &month, &summaryJSON,
		&base, &allowances, &overtime, &bonus, &commission, &gross,
		&tax, &social, &health, &pension, &other, &total, &net,
		&rec.Status, &method, &bankName, &bankAccount, &paymentRef, &paymentDate,
		&rec.AnomalyScore, &rec.IsFlagged, &flagReason, &ackBy,
		&calcBy, &calcAt, &revBy, &revAt,
		&apprBy, &apprAt, &procBy, &procAt, &paidAt,
		&cancBy, &cancAt, &cancReason, &correctionsJSON, &notes,
		&createdAt, &createdBy, &updatedAt, &updatedBy,
		&rec.Version, &deletedAt, &deletedBy,
	)
	if err != nil {
		return nil, err
	}

	rec.Month, _ = core.ParseMonth(month)
	_ = json.Unmarshal([]byte(summaryJSON), &rec.Summary)
	rec.BaseSalary = mustParse(base)
	rec.AllowanceTotal = mustParse(allowances)
	rec.OvertimeAmount = mustParse(overtime)
	rec.Bonus = mustParse(bonus)
	rec.Commission = mustParse(commission)
	rec.GrossSalary = mustParse(gross)
	rec.TaxDeduction = mustParse(tax)
	rec.SocialSecurityDeduction = mustParse(social)
	rec.HealthInsuranceDeduction = mustParse(health)
	rec.PensionDeduction = mustParse(pension)
	rec.OtherDeductions = mustParse(other)
	rec.TotalDeductions = mustParse(total)
	rec.NetSalary = mustParse(net)
	rec.PaymentMethod = core.PaymentMethod(method.String)
	rec.BankName = bankName.String
	rec.BankAccount = bankAccount.String
	rec.PaymentRef = paymentRef.String
	rec.PaymentDate = parseNullTime(paymentDate)
	rec.FlagReason = flagReason.String
	rec.FlagAcknowledgedBy = ackBy.String
	rec.CalculatedBy = calcBy.String
	rec.CalculatedAt = parseNullTime(calcAt)
	rec.ReviewedBy = revBy.String
	rec.ReviewedAt = parseNullTime(revAt)
	rec.ApprovedBy = apprBy.String
	rec.ApprovedAt = parseNullTime(apprAt)
	rec.ProcessedBy = procBy.String
	rec.ProcessedAt = parseNullTime(procAt)
	rec.PaidAt = parseNullTime(paidAt)
	rec.CancelledBy = cancBy.String
	rec.CancelledAt = parseNullTime(cancAt)
	rec.CancelReason = cancReason.String
	if correctionsJSON.Valid && correctionsJSON.String != "" {
		_ = json.Unmarshal([]byte(correctionsJSON.String), &rec.Corrections)
	}
	rec.Notes = notes.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	rec.CreatedBy = createdBy.String
	rec.UpdatedBy = updatedBy.String
	rec.DeletedAt = parseNullTime(deletedAt)
	rec.DeletedBy = deletedBy.String
	return &rec, nil
}

func (s *Store) loadLineItems(ctx context.Context, rec *core.PayrollRecord) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, allowance_type, amount, taxable, notes
		 FROM payroll_allowances WHERE payroll_record_id = ?`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a core.PayrollAllowance
		var amount string
		var notes sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &amount, &a.Taxable, &notes); err != nil {
			return err
		}
		a.Amount = mustParse(amount)
		a.Notes = notes.String
		rec.Allowances = append(rec.Allowances, a)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	drows, err := s.db.QueryContext(ctx,
		`SELECT id, name, deduction_type, amount, pre_tax, notes
		 FROM payroll_deductions WHERE payroll_record_id = ?`, rec.ID)
	if err != nil {
		return err
	}
	defer drows.Close()
	for drows.Next() {
		var d core.PayrollDeduction
		var amount string
		var notes sql.NullString
		if err := drows.Scan(&d.ID, &d.Name, &d.Type, &amount, &d.PreTax, &notes); err != nil {
			return err
		}
		d.Amount = mustParse(amount)
		d.Notes = notes.String
		rec.Deductions = append(rec.Deductions, d)
	}
	return drows.Err()
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

const employeeColumns = `id, code, first_name, last_name, email, branch_id, status,
	hire_date, biometric_id, schedule_json, salary_json,
	annual_leave_balance, sick_leave_balance,
	created_at, created_by, updated_at, updated_by, version, deleted_at, deleted_by`

func (s *Store) GetEmployee(ctx context.Context, id core.EmployeeID) (*core.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees
		WHERE id = ? AND deleted_at IS NULL`, id)
	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	return emp, err
}

func (s *Store) PutEmployee(ctx context.Context, emp *core.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scheduleJSON, _ := json.Marshal(emp.Schedule)
	salaryJSON, _ := json.Marshal(emp.Salary)

	query := `INSERT INTO employees (` + employeeColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			first_name=excluded.first_name, last_name=excluded.last_name,
			email=excluded.email, branch_id=excluded.branch_id, status=excluded.status,
			biometric_id=excluded.biometric_id,
			schedule_json=excluded.schedule_json, salary_json=excluded.salary_json,
			annual_leave_balance=excluded.annual_leave_balance,
			sick_leave_balance=excluded.sick_leave_balance,
			updated_at=excluded.updated_at, updated_by=excluded.updated_by,
			version=employees.version + 1,
			deleted_at=excluded.deleted_at, deleted_by=excluded.deleted_by`
	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Code, emp.FirstName, emp.LastName, nullString(emp.Email),
		emp.Branch, emp.Status, emp.HireDate.Format("2006-01-02"),
		nullString(emp.BiometricID), string(scheduleJSON), string(salaryJSON),
		emp.AnnualLeaveBalance.String(), emp.SickLeaveBalance.String(),
		emp.CreatedAt.UTC().Format(time.RFC3339), nullString(emp.CreatedBy),
		emp.UpdatedAt.UTC().Format(time.RFC3339), nullString(emp.UpdatedBy),
		emp.Version, nullTime(emp.DeletedAt), nullString(emp.DeletedBy),
	)
	if err != nil && isUniqueConstraintError(err) {
		return &core.DuplicateRecordError{Kind: "employee", Key: emp.Code}
	}
	return err
}

func (s *Store) ListEmployeesByBranch(ctx context.Context, branch core.BranchID) ([]*core.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees
		WHERE branch_id = ? AND deleted_at IS NULL ORDER BY code ASC`, branch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*core.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, emp)
	}
	return result, rows.Err()
}

func (s *Store) FindEmployeeByBiometricID(ctx context.Context, biometricID string) (*core.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees
		WHERE biometric_id = ? AND deleted_at IS NULL`, biometricID)
	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	return emp, err
}

func scanEmployee(row scanner) (*core.Employee, error) {
	var emp core.Employee
	var email, biometricID sql.NullString
	var hireDate, scheduleJSON, salaryJSON string
	var annual, sick sql.NullString
	var createdAt, updatedAt string
	var createdBy, updatedBy, deletedAt, deletedBy sql.NullString

	err := row.Scan(
		&emp.ID, &emp.Code, &emp.FirstName, &emp.LastName, &email, &emp.Branch, &emp.Status,
		&hireDate, &biometricID, &scheduleJSON, &salaryJSON,
		&annual, &sick,
		&createdAt, &createdBy, &updatedAt, &updatedBy,
		&emp.Version, &deletedAt, &deletedBy,
	)
	if err != nil {
		return nil, err
	}

	emp.Email = email.String
	emp.BiometricID = biometricID.String
	emp.HireDate, _ = time.Parse("2006-01-02", hireDate)
	_ = json.Unmarshal([]byte(scheduleJSON), &emp.Schedule)
	_ = json.Unmarshal([]byte(salaryJSON), &emp.Salary)
	emp.AnnualLeaveBalance = mustParse(annual.String)
	emp.SickLeaveBalance = mustParse(sick.String)
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	emp.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	emp.CreatedBy = createdBy.String
	emp.UpdatedBy = updatedBy.String
	emp.DeletedAt = parseNullTime(deletedAt)
	emp.DeletedBy = deletedBy.String
	return &emp, nil
}

// =============================================================================
// BRANCHES
// =============================================================================

func (s *Store) GetBranch(ctx context.Context, id core.BranchID) (*core.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, code, name, timezone, status,
		working_hours_start, working_hours_end, latitude, longitude, geofence_radius,
		devices_json, last_sync_at, created_at, created_by, updated_at, updated_by,
		version, deleted_at, deleted_by
		FROM branches WHERE id = ? AND deleted_at IS NULL`, id)

	var b core.Branch
	var timezone, devicesJSON, lastSync sql.NullString
	var createdAt, updatedAt string
	var createdBy, updatedBy, deletedAt, deletedBy sql.NullString

	err := row.Scan(&b.ID, &b.Code, &b.Name, &timezone, &b.Status,
		&b.WorkingHoursStart, &b.WorkingHoursEnd,
		&b.Location.Latitude, &b.Location.Longitude, &b.GeofenceRadius,
		&devicesJSON, &lastSync, &createdAt, &createdBy, &updatedAt, &updatedBy,
		&b.Version, &deletedAt, &deletedBy)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	b.Timezone = timezone.String
	if devicesJSON.Valid && devicesJSON.String != "" {
		_ = json.Unmarshal([]byte(devicesJSON.String), &b.Devices)
	}
	if t := parseNullTime(lastSync); t != nil {
		b.LastSyncAt = *t
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	b.CreatedBy = createdBy.String
	b.UpdatedBy = updatedBy.String
	b.DeletedAt = parseNullTime(deletedAt)
	b.DeletedBy = deletedBy.String
	return &b, nil
}

func (s *Store) PutBranch(ctx context.Context, b *core.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	devicesJSON, _ := json.Marshal(b.Devices)
	var lastSync any
	if !b.LastSyncAt.IsZero() {
		lastSync = b.LastSyncAt.UTC().Format(time.RFC3339)
	}

	query := `INSERT INTO branches (id, code, name, timezone, status,
		working_hours_start, working_hours_end, latitude, longitude, geofence_radius,
		devices_json, last_sync_at, created_at, created_by, updated_at, updated_by,
		version, deleted_at, deleted_by)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, timezone=excluded.timezone, status=excluded.status,
			working_hours_start=excluded.working_hours_start,
			working_hours_end=excluded.working_hours_end,
			latitude=excluded.latitude, longitude=excluded.longitude,
			geofence_radius=excluded.geofence_radius,
			devices_json=excluded.devices_json, last_sync_at=excluded.last_sync_at,
			updated_at=excluded.updated_at, updated_by=excluded.updated_by,
			version=branches.version + 1,
			deleted_at=excluded.deleted_at, deleted_by=excluded.deleted_by`
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.Code, b.Name, nullString(b.Timezone), b.Status,
		b.WorkingHoursStart, b.WorkingHoursEnd,
		b.Location.Latitude, b.Location.Longitude, b.GeofenceRadius,
		string(devicesJSON), lastSync,
		b.CreatedAt.UTC().Format(time.RFC3339), nullString(b.CreatedBy),
		b.UpdatedAt.UTC().Format(time.RFC3339), nullString(b.UpdatedBy),
		b.Version, nullTime(b.DeletedAt), nullString(b.DeletedBy),
	)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func mustParse(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
