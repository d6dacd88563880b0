/*
handlers.go - HTTP API handlers for the attendance and payroll engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees?branch_id=          List employees of a branch
    POST   /api/employees                     Create employee
    GET    /api/employees/{id}                Get employee details
    GET    /api/employees/{id}/attendance     Attendance records in a range
    GET    /api/employees/{id}/summary/{month} Monthly attendance roll-up
    POST   /api/employees/{id}/absences       Mark an explicit absence
    POST   /api/employees/{id}/attendance/{date}/override
                                              Correct a finalized record
    POST   /api/employees/{id}/payroll        Calculate one employee-month
    GET    /api/employees/{id}/payroll/{month} Get payroll record
    POST   /api/employees/{id}/payroll/{month}/transition
                                              Lifecycle move
    POST   /api/employees/{id}/payroll/{month}/corrections
                                              Post-approval correction

  Branches:
    POST   /api/branches                      Create branch
    GET    /api/branches/{id}                 Get branch
    POST   /api/branches/{id}/ingest          Pull punch events from a device
    POST   /api/branches/{id}/payroll/run     Batch-calculate a month
    POST   /api/branches/{id}/leave/accrue    Post monthly leave accrual

  Payroll queries:
    GET    /api/payroll?month=&status=        List records for approval queues

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (normalizer, aggregator, calculator, controller)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (version mismatch, duplicate, illegal transition)
  - 422: Incomplete attendance, negative net salary
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. Actor identity comes from
  the request body and is trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/core"
	"github.com/warp/payroll-engine/gateway"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      core.RecordStore
	Aggregator *attendance.Aggregator
	Controller *payroll.Controller
	Calculator *payroll.Calculator
	Runner     *payroll.Runner
	Ingestor   *gateway.Ingestor // nil when no device gateway is wired
	Leave      *leave.Accruer
	Bus        core.SyncBus // optional, announces manual corrections
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees of a branch.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	branch := core.BranchID(r.URL.Query().Get("branch_id"))
	if branch == "" {
		writeError(w, http.StatusBadRequest, "branch_id query parameter is required", nil)
		return
	}

	employees, err := h.Store.ListEmployeesByBranch(r.Context(), branch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := core.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.FirstName == "" || req.BranchID == "" {
		writeError(w, http.StatusBadRequest, "code, first_name and branch_id are required", nil)
		return
	}

	hireDate, err := time.Parse("2006-01-02", req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "hire_date must be YYYY-MM-DD", err)
		return
	}
	baseSalary, err := decimal.NewFromString(req.BaseSalary)
	if err != nil || baseSalary.IsNegative() {
		writeError(w, http.StatusBadRequest, "base_salary must be a non-negative decimal", err)
		return
	}

	emp := &core.Employee{
		AuditRecord: core.NewAuditRecord(req.Actor, time.Now()),
		Code:        req.Code,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Branch:      core.BranchID(req.BranchID),
		Status:      core.EmployeeActive,
		HireDate:    hireDate,
		BiometricID: req.BiometricID,
		Salary: core.SalaryConfig{
			BaseSalary:    baseSalary,
			BankName:      req.BankName,
			BankAccount:   req.BankAccount,
			PaymentMethod: core.PaymentMethod(req.PaymentMethod),
		},
	}
	if req.StandardMonthlyHours != "" {
		hours, err := decimal.NewFromString(req.StandardMonthlyHours)
		if err != nil {
			writeError(w, http.StatusBadRequest, "standard_monthly_hours must be a decimal", err)
			return
		}
		emp.Salary.StandardMonthlyHours = hours
	}
	if req.ShiftStart != "" && req.ShiftEnd != "" {
		start, err := core.ParseClock(req.ShiftStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, "shift_start must be HH:MM", err)
			return
		}
		end, err := core.ParseClock(req.ShiftEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, "shift_end must be HH:MM", err)
			return
		}
		emp.Schedule = core.SchedulePolicy{
			ShiftStart:   start,
			ShiftEnd:     end,
			GraceMinutes: req.GraceMinutes,
		}
	}

	if err := h.Store.PutEmployee(r.Context(), emp); err != nil {
		writeDomainError(w, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// BRANCH HANDLERS
// =============================================================================

// GetBranch returns a single branch.
func (h *Handler) GetBranch(w http.ResponseWriter, r *http.Request) {
	id := core.BranchID(chi.URLParam(r, "id"))

	branch, err := h.Store.GetBranch(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get branch", err)
		return
	}
	writeJSON(w, http.StatusOK, toBranchDTO(branch))
}

// CreateBranch creates a new branch with its device registry.
func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req CreateBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "code and name are required", nil)
		return
	}

	branch := &core.Branch{
		AuditRecord: core.NewAuditRecord(req.Actor, time.Now()),
		Code:        req.Code,
		Name:        req.Name,
		Timezone:    req.Timezone,
		Status:      core.BranchActive,
		Location: core.Geolocation{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
		},
		GeofenceRadius: req.GeofenceRadius,
	}
	for _, d := range req.Devices {
		branch.Devices = append(branch.Devices, core.Device{
			ID:           core.DeviceID(d.ID),
			Name:         d.Name,
			SerialNumber: d.SerialNumber,
			Status:       core.DeviceOnline,
		})
	}

	if err := h.Store.PutBranch(r.Context(), branch); err != nil {
		writeDomainError(w, "Failed to create branch", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBranchDTO(branch))
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// GetAttendanceRange returns an employee's attendance records between
// ?from= and ?to= (inclusive, YYYY-MM-DD).
func (h *Handler) GetAttendanceRange(w http.ResponseWriter, r *http.Request) {
	emp := core.EmployeeID(chi.URLParam(r, "id"))

	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD", err)
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD", err)
		return
	}

	records, err := h.Store.QueryAttendanceRange(r.Context(), emp, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query attendance", err)
		return
	}

	dtos := make([]AttendanceDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAttendanceDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkAbsent records an explicit ABSENT record for a scheduled day.
func (h *Handler) MarkAbsent(w http.ResponseWriter, r *http.Request) {
	id := core.EmployeeID(chi.URLParam(r, "id"))

	var req MarkAbsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", err)
		return
	}

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}

	rec := attendance.MarkAbsent(emp, date, req.Actor, time.Now())
	if err := h.Store.PutAttendance(r.Context(), rec); err != nil {
		writeDomainError(w, "Failed to record absence", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceDTO(rec))
}

// OverrideAttendance corrects a finalized attendance record through the
// attributed override path. This is the only way to change a record that
// already exists.
func (h *Handler) OverrideAttendance(w http.ResponseWriter, r *http.Request) {
	id := core.EmployeeID(chi.URLParam(r, "id"))
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", err)
		return
	}

	var req OverrideAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.Store.GetAttendance(r.Context(), core.NewDayKey(id, date))
	if err != nil {
		writeDomainError(w, "Failed to get attendance", err)
		return
	}

	var o attendance.Override
	if req.Status != nil {
		status := core.AttendanceStatus(*req.Status)
		o.Status = &status
	}
	if req.CheckInTime != nil {
		t, err := time.Parse(time.RFC3339, *req.CheckInTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "check_in_time must be RFC3339", err)
			return
		}
		o.CheckInTime = &t
	}
	if req.CheckOutTime != nil {
		t, err := time.Parse(time.RFC3339, *req.CheckOutTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "check_out_time must be RFC3339", err)
			return
		}
		o.CheckOutTime = &t
	}
	if req.WorkedHours != nil {
		hours, err := decimal.NewFromString(*req.WorkedHours)
		if err != nil {
			writeError(w, http.StatusBadRequest, "worked_hours must be a decimal", err)
			return
		}
		o.WorkedHours = &hours
	}
	o.Notes = req.Notes

	if err := attendance.ApplyOverride(rec, o, req.Actor, req.Reason, time.Now()); err != nil {
		writeDomainError(w, "Override rejected", err)
		return
	}
	if err := h.Store.PutAttendance(r.Context(), rec); err != nil {
		writeDomainError(w, "Failed to save override", err)
		return
	}

	// Peers reconcile manual corrections the same way they reconcile
	// device-sourced records.
	if h.Bus != nil {
		payload, _ := json.Marshal(rec)
		_ = h.Bus.Publish(r.Context(), core.ChangeEvent{
			Entity:    core.EntityAttendance,
			EntityID:  rec.ID,
			Branch:    rec.Branch,
			Version:   rec.Version,
			Payload:   payload,
			EmittedAt: time.Now(),
		})
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(rec))
}

// GetMonthlySummary aggregates one employee-month on the fly.
// ?partial=true skips the completeness check for open months.
func (h *Handler) GetMonthlySummary(w http.ResponseWriter, r *http.Request) {
	id := core.EmployeeID(chi.URLParam(r, "id"))
	month, err := core.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM", err)
		return
	}
	partial := r.URL.Query().Get("partial") == "true"

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}

	summary, err := h.Aggregator.AggregateMonth(r.Context(), emp, month, partial)
	if err != nil {
		writeDomainError(w, "Failed to aggregate month", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// IngestDevice pulls punch events from one branch device and materializes
// attendance records.
func (h *Handler) IngestDevice(w http.ResponseWriter, r *http.Request) {
	if h.Ingestor == nil {
		writeError(w, http.StatusServiceUnavailable, "No device gateway configured", nil)
		return
	}
	id := core.BranchID(chi.URLParam(r, "id"))

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	branch, err := h.Store.GetBranch(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get branch", err)
		return
	}

	since := branch.LastSyncAt
	if req.Since != "" {
		since, err = time.Parse(time.RFC3339, req.Since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339", err)
			return
		}
	}

	started := time.Now()
	report, err := h.Ingestor.IngestDevice(r.Context(), branch, core.DeviceID(req.DeviceID), since, req.Actor)
	if err != nil {
		writeDomainError(w, "Ingestion failed", err)
		return
	}

	dto := IngestReportDTO{
		Created:   report.Created,
		Unmatched: report.Unmatched,
	}
	for _, key := range report.Conflicts {
		dto.Conflicts = append(dto.Conflicts, string(key.Employee)+"/"+key.Date.Format("2006-01-02"))
	}
	for _, e := range report.Errors {
		dto.Errors = append(dto.Errors, e.Error())
	}

	// A pull that dropped any day must leave the watermark where it is,
	// or those events are never fetched again. The fetch-start instant,
	// not the completion time, is the safe new floor.
	if len(report.Errors) == 0 {
		branch.LastSyncAt = started
		branch.Touch(req.Actor, started)
		if err := h.Store.PutBranch(r.Context(), branch); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to advance sync watermark", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// AccrueLeave posts one month's leave accrual and usage for every active
// employee of a branch. Run once per closed month, before the payroll run.
func (h *Handler) AccrueLeave(w http.ResponseWriter, r *http.Request) {
	branch := core.BranchID(chi.URLParam(r, "id"))

	var req AccrueLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := core.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM", err)
		return
	}

	postings, err := h.Leave.PostMonth(r.Context(), branch, month, req.Actor)
	if err != nil {
		writeDomainError(w, "Leave accrual failed", err)
		return
	}

	dtos := make([]LeavePostingDTO, len(postings))
	for i, p := range postings {
		dtos[i] = LeavePostingDTO{
			EmployeeID:    string(p.Employee),
			AnnualAccrued: p.AnnualAccrued.StringFixed(2),
			AnnualUsed:    p.AnnualUsed.StringFixed(2),
			AnnualBalance: p.AnnualBalance.StringFixed(2),
			SickAccrued:   p.SickAccrued.StringFixed(2),
			SickUsed:      p.SickUsed.StringFixed(2),
			SickBalance:   p.SickBalance.StringFixed(2),
		}
		if p.Err != nil {
			dtos[i].Error = p.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// CalculatePayroll aggregates and calculates a single employee-month.
// Idempotent while the record is still DRAFT or CALCULATED.
func (h *Handler) CalculatePayroll(w http.ResponseWriter, r *http.Request) {
	id := core.EmployeeID(chi.URLParam(r, "id"))

	var req CalculatePayrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := core.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM", err)
		return
	}

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}

	rec, err := h.Runner.CalculateOne(r.Context(), emp, month, req.Actor, req.Partial)
	if err != nil && rec == nil {
		writeDomainError(w, "Calculation failed", err)
		return
	}

	// A flagged negative-net record commits but the caller is told.
	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, toPayrollDTO(rec))
}

// GetPayroll returns one employee-month payroll record.
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	key, ok := payrollKey(w, r)
	if !ok {
		return
	}

	rec, err := h.Store.GetPayroll(r.Context(), key)
	if err != nil {
		writeDomainError(w, "Failed to get payroll record", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(rec))
}

// TransitionPayroll moves one payroll record through its lifecycle.
func (h *Handler) TransitionPayroll(w http.ResponseWriter, r *http.Request) {
	key, ok := payrollKey(w, r)
	if !ok {
		return
	}

	var req TransitionPayrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.Controller.Transition(r.Context(), key, payroll.TransitionRequest{
		Target:          core.PayrollStatus(req.Target),
		Actor:           req.Actor,
		AcknowledgeFlag: req.AcknowledgeFlag,
		PaymentMethod:   core.PaymentMethod(req.PaymentMethod),
		BankAccount:     req.BankAccount,
		PaymentRef:      req.PaymentRef,
		Reason:          req.Reason,
	})
	if err != nil {
		writeDomainError(w, "Transition rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(rec))
}

// RecordCorrection journals a correction against a finalized record.
func (h *Handler) RecordCorrection(w http.ResponseWriter, r *http.Request) {
	key, ok := payrollKey(w, r)
	if !ok {
		return
	}

	var req CorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.Controller.RecordCorrection(r.Context(), key, core.CorrectionEntry{
		Field:     req.Field,
		OldValue:  req.OldValue,
		NewValue:  req.NewValue,
		Reason:    req.Reason,
		Source:    "manual",
		AppliedBy: req.Actor,
	})
	if err != nil {
		writeDomainError(w, "Correction rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(rec))
}

// RunBranchPayroll batch-calculates a month for every active employee.
func (h *Handler) RunBranchPayroll(w http.ResponseWriter, r *http.Request) {
	branch := core.BranchID(chi.URLParam(r, "id"))

	var req RunBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := core.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM", err)
		return
	}

	results, err := h.Runner.RunBranch(r.Context(), branch, month, req.Actor, req.Partial)
	if err != nil {
		writeDomainError(w, "Branch run failed", err)
		return
	}

	dtos := make([]RunResultDTO, len(results))
	for i, res := range results {
		dtos[i].EmployeeID = string(res.Employee)
		if res.Record != nil {
			dtos[i].Record = toPayrollDTO(res.Record)
		}
		if res.Err != nil {
			dtos[i].Error = res.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPayroll returns payroll records for a month, optionally filtered by
// status. This backs the review and approval queues.
func (h *Handler) ListPayroll(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "month query parameter must be YYYY-MM", err)
		return
	}
	status := core.PayrollStatus(r.URL.Query().Get("status"))

	records, err := h.Store.QueryPayrollByStatus(r.Context(), month, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query payroll", err)
		return
	}

	dtos := make([]*PayrollDTO, len(records))
	for i, rec := range records {
		dtos[i] = toPayrollDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func payrollKey(w http.ResponseWriter, r *http.Request) (core.MonthKey, bool) {
	month, err := core.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM", err)
		return core.MonthKey{}, false
	}
	return core.MonthKey{
		Employee: core.EmployeeID(chi.URLParam(r, "id")),
		Month:    month,
	}, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, core.ErrConcurrentModification),
		errors.Is(err, core.ErrDuplicateRecord),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrImmutablePayroll):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, core.ErrIncompleteAttendance),
		errors.Is(err, core.ErrNegativeNetSalary):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case core.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
