/*
lifecycle.go - The payroll record state machine

STATES:
  DRAFT -> CALCULATED -> REVIEWED -> APPROVED -> PROCESSED -> PAID
  CANCELLED reachable from any non-terminal state. PAID and CANCELLED
  are terminal.

GUARDS:
  DRAFT      -> CALCULATED: a successful calculator run (use Calculate)
  CALCULATED -> REVIEWED:   flagged records need explicit acknowledgement
  REVIEWED   -> APPROVED:   approver must differ from calculator
  APPROVED   -> PROCESSED:  payment method; bank transfers need an account
  PROCESSED  -> PAID:       external payment confirmation
  any        -> CANCELLED:  a reason

ATOMICITY:
  Every transition is one optimistic check-and-update: the record is read,
  guarded, stamped, and written back with the version it was read at. A
  concurrent writer makes the Put fail with ConcurrentModificationError
  and nothing changes.

IDEMPOTENT RETRY:
  Requesting a transition into the state the record is already in is a
  no-op success, so replaying a request sequence cannot double-advance.
*/
package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// CONTROLLER
// =============================================================================

type Controller struct {
	Store   core.PayrollStore
	Payment core.PaymentProvider // required only for PROCESSED -> PAID
	Bus     core.SyncBus         // optional; transitions publish when set

	// Clock is swappable for tests. Defaults to time.Now.
	Clock func() time.Time
}

func NewController(store core.PayrollStore, payment core.PaymentProvider, bus core.SyncBus) *Controller {
	return &Controller{Store: store, Payment: payment, Bus: bus, Clock: time.Now}
}

func (c *Controller) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// next maps each state to its single legal forward successor.
var next = map[core.PayrollStatus]core.PayrollStatus{
	core.PayrollDraft:      core.PayrollCalculated,
	core.PayrollCalculated: core.PayrollReviewed,
	core.PayrollReviewed:   core.PayrollApproved,
	core.PayrollApproved:   core.PayrollProcessed,
	core.PayrollProcessed:  core.PayrollPaid,
}

// TransitionRequest is one externally-driven lifecycle move.
type TransitionRequest struct {
	Target core.PayrollStatus
	Actor  string

	// AcknowledgeFlag confirms the reviewer has seen the review flag.
	// Required for CALCULATED -> REVIEWED when the record is flagged.
	AcknowledgeFlag bool

	// Payment details for APPROVED -> PROCESSED.
	PaymentMethod core.PaymentMethod
	BankAccount   string

	// PaymentRef identifies the payment for PROCESSED -> PAID confirmation.
	PaymentRef string

	// Reason is mandatory for cancellation.
	Reason string
}

// Transition performs one atomic lifecycle move and returns the committed
// record. Fatal errors (InvalidTransitionError, ConcurrentModificationError)
// leave the stored record untouched.
func (c *Controller) Transition(ctx context.Context, key core.MonthKey, req TransitionRequest) (*core.PayrollRecord, error) {
	rec, err := c.Store.GetPayroll(ctx, key)
	if err != nil {
		return nil, err
	}
	readVersion := rec.Version
	now := c.now()

	// Idempotent retry: already there, nothing to do.
	if rec.Status == req.Target {
		return rec, nil
	}

	if req.Target == core.PayrollCancelled {
		if err := c.cancel(rec, req, now); err != nil {
			return nil, err
		}
	} else {
		if next[rec.Status] != req.Target {
			return nil, &core.InvalidTransitionError{
				Record: core.PayrollID(rec.ID),
				From:   rec.Status,
				To:     req.Target,
			}
		}
		if err := c.advance(ctx, rec, req, now); err != nil {
			return nil, err
		}
	}

	rec.Touch(req.Actor, now)
	if err := c.Store.PutPayroll(ctx, rec, readVersion); err != nil {
		return nil, err
	}
	c.publish(ctx, rec)
	return rec, nil
}

func (c *Controller) cancel(rec *core.PayrollRecord, req TransitionRequest, now time.Time) error {
	if rec.Status.Terminal() {
		return &core.InvalidTransitionError{
			Record: core.PayrollID(rec.ID),
			From:   rec.Status,
			To:     core.PayrollCancelled,
			Reason: "record is terminal",
		}
	}
	if req.Reason == "" {
		return &core.InvalidTransitionError{
			Record: core.PayrollID(rec.ID),
			From:   rec.Status,
			To:     core.PayrollCancelled,
			Reason: "cancellation requires a reason",
		}
	}
	rec.Status = core.PayrollCancelled
	rec.CancelledBy = req.Actor
	rec.CancelledAt = &now
	rec.CancelReason = req.Reason
	return nil
}

func (c *Controller) advance(ctx context.Context, rec *core.PayrollRecord, req TransitionRequest, now time.Time) error {
	invalid := func(reason string) error {
		return &core.InvalidTransitionError{
			Record: core.PayrollID(rec.ID),
			From:   rec.Status,
			To:     req.Target,
			Reason: reason,
		}
	}

	switch req.Target {
	case core.PayrollCalculated:
		// The calculator stamps CalculatedBy/At; reaching CALCULATED
		// without a calculator run is not a legal move.
		if rec.CalculatedAt == nil {
			return invalid("requires a successful calculator run; use Calculate")
		}

	case core.PayrollReviewed:
		if rec.IsFlagged && !req.AcknowledgeFlag {
			return invalid("flagged record requires explicit review acknowledgement")
		}
		if rec.IsFlagged {
			rec.FlagAcknowledgedBy = req.Actor
		}
		rec.ReviewedBy = req.Actor
		rec.ReviewedAt = &now

	case core.PayrollApproved:
		// Separation of duties: whoever calculated cannot approve.
		if req.Actor == "" || req.Actor == rec.CalculatedBy {
			return invalid("approver must differ from calculator")
		}
		rec.ApprovedBy = req.Actor
		rec.ApprovedAt = &now

	case core.PayrollProcessed:
		method := req.PaymentMethod
		if method == "" {
			method = rec.PaymentMethod
		}
		if method == "" {
			return invalid("processing requires a payment method")
		}
		if method == core.PayBankTransfer && req.BankAccount == "" && rec.BankAccount == "" {
			return invalid("bank transfer requires a bank account reference")
		}
		rec.PaymentMethod = method
		if req.BankAccount != "" {
			rec.BankAccount = req.BankAccount
		}
		rec.ProcessedBy = req.Actor
		rec.ProcessedAt = &now

	case core.PayrollPaid:
		if c.Payment == nil {
			return invalid("no payment provider configured")
		}
		confirmation, err := c.Payment.ConfirmPayment(ctx, core.PayrollID(rec.ID), req.PaymentRef)
		if err != nil {
			return fmt.Errorf("confirm payment for %s: %w", rec.ID, err)
		}
		if !confirmation.Confirmed {
			return invalid("payment not confirmed: " + confirmation.Detail)
		}
		rec.PaymentRef = confirmation.Reference
		paidAt := confirmation.PaidAt
		if paidAt.IsZero() {
			paidAt = now
		}
		rec.PaidAt = &paidAt
		rec.PaymentDate = &paidAt

	case core.PayrollDraft, core.PayrollCancelled:
		return invalid("not a forward transition")
	}

	rec.Status = req.Target
	return nil
}

// =============================================================================
// CALCULATE - DRAFT/CALCULATED recomputation under the version lock
// =============================================================================

// Calculate runs the calculator against the stored record for key, creating
// a DRAFT record if none exists, and commits the result as CALCULATED.
// Recomputation of a record past CALCULATED fails with ImmutablePayrollError.
//
// A NegativeNetSalaryError from the calculator still commits the flagged
// record; the error is returned alongside it for the caller to surface.
func (c *Controller) Calculate(ctx context.Context, calc *Calculator, in Input) (*core.PayrollRecord, error) {
	key := core.MonthKey{Employee: core.EmployeeID(in.Employee.ID), Month: in.Summary.Month}
	now := c.now()
	in.Now = now

	rec, err := c.Store.GetPayroll(ctx, key)
	readVersion := int64(0)
	var calcErr error
	switch {
	case core.IsNotFound(err):
		rec, calcErr = calc.Calculate(in)
	case err != nil:
		return nil, err
	default:
		readVersion = rec.Version
		calcErr = calc.Recompute(rec, in)
	}
	if calcErr != nil && !isNegativeNet(calcErr) {
		return nil, calcErr
	}

	rec.Status = core.PayrollCalculated
	rec.CalculatedBy = in.Actor
	rec.CalculatedAt = &now

	if err := c.Store.PutPayroll(ctx, rec, readVersion); err != nil {
		return nil, err
	}
	c.publish(ctx, rec)
	return rec, calcErr
}

func isNegativeNet(err error) bool {
	_, ok := err.(*core.NegativeNetSalaryError)
	return ok
}

// =============================================================================
// CORRECTIONS - Audited adjustments after the record locks
// =============================================================================

// RecordCorrection journals an adjustment on a record past its mutable
// stages. The record's computed fields stay as-is; the correction entry is
// the auditable delta. Mutable records don't need this path: recompute.
func (c *Controller) RecordCorrection(ctx context.Context, key core.MonthKey, entry core.CorrectionEntry) (*core.PayrollRecord, error) {
	if entry.Reason == "" || entry.AppliedBy == "" {
		return nil, &core.ValidationError{Field: "correction", Message: "requires actor and reason"}
	}

	rec, err := c.Store.GetPayroll(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.Status.Mutable() {
		return nil, &core.ValidationError{Field: "correction", Message: "record is still mutable; recompute instead"}
	}
	readVersion := rec.Version

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.AppliedAt = c.now()
	rec.Corrections = append(rec.Corrections, entry)
	rec.Touch(entry.AppliedBy, entry.AppliedAt)

	if err := c.Store.PutPayroll(ctx, rec, readVersion); err != nil {
		return nil, err
	}
	c.publish(ctx, rec)
	return rec, nil
}

func (c *Controller) publish(ctx context.Context, rec *core.PayrollRecord) {
	if c.Bus == nil {
		return
	}
	// Best effort: the bus is eventually consistent, a failed publish is
	// reconciled by the next sync cycle.
	_ = c.Bus.Publish(ctx, core.ChangeEvent{
		Entity:    core.EntityPayroll,
		EntityID:  rec.ID,
		Branch:    rec.Branch,
		Version:   rec.Version,
		EmittedAt: c.now(),
	})
}
