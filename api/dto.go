/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND HOURS:
  Decimal values cross the wire as strings ("50000.00") so clients never
  see float artifacts.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - core/payroll.go: Domain model these project
*/
package api

import (
	"time"

	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// EMPLOYEES AND BRANCHES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email,omitempty"`
	BranchID    string `json:"branch_id"`
	Status      string `json:"status"`
	HireDate    string `json:"hire_date"`
	BiometricID string `json:"biometric_id,omitempty"`
	BaseSalary  string `json:"base_salary"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	Code        string `json:"code"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	BranchID    string `json:"branch_id"`
	HireDate    string `json:"hire_date"`
	BiometricID string `json:"biometric_id"`

	BaseSalary           string `json:"base_salary"`
	StandardMonthlyHours string `json:"standard_monthly_hours,omitempty"`
	BankName             string `json:"bank_name,omitempty"`
	BankAccount          string `json:"bank_account,omitempty"`
	PaymentMethod        string `json:"payment_method,omitempty"`

	ShiftStart   string `json:"shift_start,omitempty"` // "09:00"
	ShiftEnd     string `json:"shift_end,omitempty"`   // "17:00"
	GraceMinutes int    `json:"grace_minutes,omitempty"`
	Actor        string `json:"actor"`
}

// BranchDTO represents a branch in API responses.
type BranchDTO struct {
	ID             string      `json:"id"`
	Code           string      `json:"code"`
	Name           string      `json:"name"`
	Timezone       string      `json:"timezone,omitempty"`
	Status         string      `json:"status"`
	GeofenceRadius float64     `json:"geofence_radius"`
	Devices        []DeviceDTO `json:"devices,omitempty"`
	LastSyncAt     string      `json:"last_sync_at,omitempty"`
}

// DeviceDTO represents a biometric device in API responses.
type DeviceDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number,omitempty"`
	Status       string `json:"status"`
}

// CreateBranchRequest is the request to create a branch.
type CreateBranchRequest struct {
	Code           string      `json:"code"`
	Name           string      `json:"name"`
	Timezone       string      `json:"timezone"`
	Latitude       float64     `json:"latitude"`
	Longitude      float64     `json:"longitude"`
	GeofenceRadius float64     `json:"geofence_radius"`
	Devices        []DeviceDTO `json:"devices"`
	Actor          string      `json:"actor"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// AttendanceDTO represents one daily attendance record.
type AttendanceDTO struct {
	ID                    string  `json:"id"`
	EmployeeID            string  `json:"employee_id"`
	Date                  string  `json:"date"`
	CheckInTime           string  `json:"check_in_time,omitempty"`
	CheckOutTime          string  `json:"check_out_time,omitempty"`
	WorkedHours           string  `json:"worked_hours"`
	BreakHours            string  `json:"break_hours"`
	OvertimeHours         string  `json:"overtime_hours"`
	LateArrivalMinutes    int     `json:"late_arrival_minutes"`
	EarlyDepartureMinutes int     `json:"early_departure_minutes"`
	Status                string  `json:"status"`
	LeaveType             string  `json:"leave_type,omitempty"`
	AnomalyScore          float64 `json:"anomaly_score"`
	FlaggedForReview      bool    `json:"flagged_for_review"`
	FlagReason            string  `json:"flag_reason,omitempty"`
	ManualOverride        bool    `json:"manual_override"`
	Version               int64   `json:"version"`
}

// OverrideAttendanceRequest corrects a finalized attendance record.
// Every field except actor and reason is optional; absent fields keep
// their current value.
type OverrideAttendanceRequest struct {
	CheckInTime  *string `json:"check_in_time,omitempty"`
	CheckOutTime *string `json:"check_out_time,omitempty"`
	Status       *string `json:"status,omitempty"`
	WorkedHours  *string `json:"worked_hours,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	Actor        string  `json:"actor"`
	Reason       string  `json:"reason"`
}

// MarkAbsentRequest records an explicit absence for a scheduled day.
type MarkAbsentRequest struct {
	Date  string `json:"date"`
	Actor string `json:"actor"`
}

// SummaryDTO is a monthly attendance roll-up.
type SummaryDTO struct {
	EmployeeID           string `json:"employee_id"`
	Month                string `json:"month"`
	WorkingDays          int    `json:"working_days"`
	PresentDays          string `json:"present_days"`
	AbsentDays           int    `json:"absent_days"`
	LeaveDays            int    `json:"leave_days"`
	LateArrivals         int    `json:"late_arrivals"`
	EarlyDepartures      int    `json:"early_departures"`
	TotalWorkedHours     string `json:"total_worked_hours"`
	TotalOvertimeHours   string `json:"total_overtime_hours"`
	RecordedDays         int    `json:"recorded_days"`
	Partial              bool   `json:"partial"`
	AttendancePercentage string `json:"attendance_percentage"`
}

// AccrueLeaveRequest posts one month's leave accrual for a branch.
type AccrueLeaveRequest struct {
	Month string `json:"month"` // "2025-06"
	Actor string `json:"actor"`
}

// LeavePostingDTO is the per-employee outcome of a leave accrual posting.
type LeavePostingDTO struct {
	EmployeeID    string `json:"employee_id"`
	AnnualAccrued string `json:"annual_accrued"`
	AnnualUsed    string `json:"annual_used"`
	AnnualBalance string `json:"annual_balance"`
	SickAccrued   string `json:"sick_accrued"`
	SickUsed      string `json:"sick_used"`
	SickBalance   string `json:"sick_balance"`
	Error         string `json:"error,omitempty"`
}

// IngestRequest triggers a device event pull for one branch.
type IngestRequest struct {
	DeviceID string `json:"device_id"`
	Since    string `json:"since"` // RFC3339; empty means branch watermark
	Actor    string `json:"actor"`
}

// IngestReportDTO summarizes one ingestion pass.
type IngestReportDTO struct {
	Created   int      `json:"created"`
	Conflicts []string `json:"conflicts,omitempty"`
	Unmatched int      `json:"unmatched"`
	Errors    []string `json:"errors,omitempty"`
}

// =============================================================================
// PAYROLL
// =============================================================================

// PayrollDTO represents a payroll record in API responses.
type PayrollDTO struct {
	ID         string     `json:"id"`
	EmployeeID string     `json:"employee_id"`
	BranchID   string     `json:"branch_id"`
	Month      string     `json:"month"`
	Summary    SummaryDTO `json:"summary"`

	BaseSalary     string `json:"base_salary"`
	AllowanceTotal string `json:"allowance_total"`
	OvertimeAmount string `json:"overtime_amount"`
	Bonus          string `json:"bonus"`
	Commission     string `json:"commission"`
	GrossSalary    string `json:"gross_salary"`

	TaxDeduction             string `json:"tax_deduction"`
	SocialSecurityDeduction  string `json:"social_security_deduction"`
	HealthInsuranceDeduction string `json:"health_insurance_deduction"`
	PensionDeduction         string `json:"pension_deduction"`
	OtherDeductions          string `json:"other_deductions"`
	TotalDeductions          string `json:"total_deductions"`
	NetSalary                string `json:"net_salary"`

	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method,omitempty"`
	PaymentRef    string `json:"payment_ref,omitempty"`
	PaymentDate   string `json:"payment_date,omitempty"`

	AnomalyScore float64 `json:"anomaly_score"`
	IsFlagged    bool    `json:"is_flagged"`
	FlagReason   string  `json:"flag_reason,omitempty"`

	Allowances  []LineItemDTO   `json:"allowances,omitempty"`
	Deductions  []LineItemDTO   `json:"deductions,omitempty"`
	Corrections []CorrectionDTO `json:"corrections,omitempty"`

	Version int64 `json:"version"`
}

// LineItemDTO is one allowance or deduction line.
type LineItemDTO struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

// CorrectionDTO is one post-approval correction journal entry.
type CorrectionDTO struct {
	ID        string `json:"id"`
	Field     string `json:"field"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	Reason    string `json:"reason"`
	Source    string `json:"source,omitempty"`
	AppliedBy string `json:"applied_by"`
	AppliedAt string `json:"applied_at"`
}

// CalculatePayrollRequest computes (or recomputes) one employee-month.
type CalculatePayrollRequest struct {
	Month      string        `json:"month"` // "2025-06"
	Partial    bool          `json:"partial"`
	Bonus      string        `json:"bonus,omitempty"`
	Commission string        `json:"commission,omitempty"`
	Allowances []LineItemDTO `json:"allowances,omitempty"`
	Deductions []LineItemDTO `json:"deductions,omitempty"`
	Actor      string        `json:"actor"`
}

// RunBranchRequest computes payroll for every active employee of a branch.
type RunBranchRequest struct {
	Month   string `json:"month"`
	Partial bool   `json:"partial"`
	Actor   string `json:"actor"`
}

// RunResultDTO is the per-employee outcome of a branch run.
type RunResultDTO struct {
	EmployeeID string      `json:"employee_id"`
	Record     *PayrollDTO `json:"record,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// TransitionPayrollRequest moves a payroll record through its lifecycle.
type TransitionPayrollRequest struct {
	Target          string `json:"target"`
	Actor           string `json:"actor"`
	AcknowledgeFlag bool   `json:"acknowledge_flag,omitempty"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	BankAccount     string `json:"bank_account,omitempty"`
	PaymentRef      string `json:"payment_ref,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// CorrectionRequest journals a post-approval correction.
type CorrectionRequest struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
	Reason   string `json:"reason"`
	Actor    string `json:"actor"`
}

// ErrorResponse is the standard error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toEmployeeDTO(e *core.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:          e.ID,
		Code:        e.Code,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		Email:       e.Email,
		BranchID:    string(e.Branch),
		Status:      string(e.Status),
		HireDate:    e.HireDate.Format("2006-01-02"),
		BiometricID: e.BiometricID,
		BaseSalary:  e.Salary.BaseSalary.StringFixed(2),
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func toBranchDTO(b *core.Branch) BranchDTO {
	dto := BranchDTO{
		ID:             string(b.ID),
		Code:           b.Code,
		Name:           b.Name,
		Timezone:       b.Timezone,
		Status:         string(b.Status),
		GeofenceRadius: b.GeofenceRadius,
	}
	for _, d := range b.Devices {
		dto.Devices = append(dto.Devices, DeviceDTO{
			ID:           string(d.ID),
			Name:         d.Name,
			SerialNumber: d.SerialNumber,
			Status:       string(d.Status),
		})
	}
	if !b.LastSyncAt.IsZero() {
		dto.LastSyncAt = b.LastSyncAt.Format(time.RFC3339)
	}
	return dto
}

func toAttendanceDTO(a *core.Attendance) AttendanceDTO {
	dto := AttendanceDTO{
		ID:                    a.ID,
		EmployeeID:            string(a.Employee),
		Date:                  a.Date.Format("2006-01-02"),
		WorkedHours:           a.WorkedHours.StringFixed(2),
		BreakHours:            a.BreakHours.StringFixed(2),
		OvertimeHours:         a.OvertimeHours.StringFixed(2),
		LateArrivalMinutes:    a.LateArrivalMinutes,
		EarlyDepartureMinutes: a.EarlyDepartureMinutes,
		Status:                string(a.Status),
		LeaveType:             string(a.LeaveType),
		AnomalyScore:          a.AnomalyScore,
		FlaggedForReview:      a.FlaggedForReview,
		FlagReason:            a.FlagReason,
		ManualOverride:        a.ManualOverride,
		Version:               a.Version,
	}
	if a.CheckInTime != nil {
		dto.CheckInTime = a.CheckInTime.Format(time.RFC3339)
	}
	if a.CheckOutTime != nil {
		dto.CheckOutTime = a.CheckOutTime.Format(time.RFC3339)
	}
	return dto
}

func toSummaryDTO(s core.MonthlyAttendanceSummary) SummaryDTO {
	return SummaryDTO{
		EmployeeID:           string(s.Employee),
		Month:                s.Month.String(),
		WorkingDays:          s.WorkingDays,
		PresentDays:          s.PresentDays.String(),
		AbsentDays:           s.AbsentDays,
		LeaveDays:            s.LeaveDays,
		LateArrivals:         s.LateArrivals,
		EarlyDepartures:      s.EarlyDepartures,
		TotalWorkedHours:     s.TotalWorkedHours.StringFixed(2),
		TotalOvertimeHours:   s.TotalOvertimeHours.StringFixed(2),
		RecordedDays:         s.RecordedDays,
		Partial:              s.Partial,
		AttendancePercentage: s.AttendancePercentage().StringFixed(1),
	}
}

func toPayrollDTO(p *core.PayrollRecord) *PayrollDTO {
	dto := &PayrollDTO{
		ID:         p.ID,
		EmployeeID: string(p.Employee),
		BranchID:   string(p.Branch),
		Month:      p.Month.String(),
		Summary:    toSummaryDTO(p.Summary),

		BaseSalary:     p.BaseSalary.StringFixed(2),
		AllowanceTotal: p.AllowanceTotal.StringFixed(2),
		OvertimeAmount: p.OvertimeAmount.StringFixed(2),
		Bonus:          p.Bonus.StringFixed(2),
		Commission:     p.Commission.StringFixed(2),
		GrossSalary:    p.GrossSalary.StringFixed(2),

		TaxDeduction:             p.TaxDeduction.StringFixed(2),
		SocialSecurityDeduction:  p.SocialSecurityDeduction.StringFixed(2),
		HealthInsuranceDeduction: p.HealthInsuranceDeduction.StringFixed(2),
		PensionDeduction:         p.PensionDeduction.StringFixed(2),
		OtherDeductions:          p.OtherDeductions.StringFixed(2),
		TotalDeductions:          p.TotalDeductions.StringFixed(2),
		NetSalary:                p.NetSalary.StringFixed(2),

		Status:        string(p.Status),
		PaymentMethod: string(p.PaymentMethod),
		PaymentRef:    p.PaymentRef,

		AnomalyScore: p.AnomalyScore,
		IsFlagged:    p.IsFlagged,
		FlagReason:   p.FlagReason,

		Version: p.Version,
	}
	if p.PaymentDate != nil {
		dto.PaymentDate = p.PaymentDate.Format("2006-01-02")
	}
	for _, a := range p.Allowances {
		dto.Allowances = append(dto.Allowances, LineItemDTO{
			ID: a.ID, Name: a.Name, Type: string(a.Type), Amount: a.Amount.StringFixed(2),
		})
	}
	for _, d := range p.Deductions {
		dto.Deductions = append(dto.Deductions, LineItemDTO{
			ID: d.ID, Name: d.Name, Type: string(d.Type), Amount: d.Amount.StringFixed(2),
		})
	}
	for _, c := range p.Corrections {
		dto.Corrections = append(dto.Corrections, CorrectionDTO{
			ID:        c.ID,
			Field:     c.Field,
			OldValue:  c.OldValue,
			NewValue:  c.NewValue,
			Reason:    c.Reason,
			Source:    c.Source,
			AppliedBy: c.AppliedBy,
			AppliedAt: c.AppliedAt.Format(time.RFC3339),
		})
	}
	return dto
}
