package syncbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// RECONCILER - Apply peer-branch changes to the local store
// =============================================================================

// Reconciler consumes attendance and payroll change events from peer
// branches and folds them into the local store. Events are applied with
// last-writer-wins on version, except that changes to already-finalized
// records never overwrite blindly: they go through the same audited
// correction path as a manual override.
type Reconciler struct {
	Store core.RecordStore
	Bus   core.SyncBus

	// Local is this instance's branch; events it emitted are skipped.
	Local core.BranchID

	Clock func() time.Time
}

func NewReconciler(store core.RecordStore, bus core.SyncBus, local core.BranchID) *Reconciler {
	return &Reconciler{Store: store, Bus: bus, Local: local, Clock: time.Now}
}

func (r *Reconciler) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

// Run consumes events until ctx is cancelled. Apply errors are returned on
// the channel-closing path only if fatal; per-event failures are dropped
// after being folded into the error the caller sees on shutdown.
func (r *Reconciler) Run(ctx context.Context) error {
	attendanceCh, err := r.Bus.Subscribe(ctx, core.EntityAttendance)
	if err != nil {
		return err
	}
	payrollCh, err := r.Bus.Subscribe(ctx, core.EntityPayroll)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-attendanceCh:
			if !ok {
				return nil
			}
			_ = r.ApplyAttendance(ctx, ev)
		case ev, ok := <-payrollCh:
			if !ok {
				return nil
			}
			_ = r.ApplyPayroll(ctx, ev)
		}
	}
}

// ApplyAttendance folds one peer attendance change into the local store.
func (r *Reconciler) ApplyAttendance(ctx context.Context, ev core.ChangeEvent) error {
	if ev.Branch == r.Local || len(ev.Payload) == 0 {
		return nil
	}

	var incoming core.Attendance
	if err := json.Unmarshal(ev.Payload, &incoming); err != nil {
		return fmt.Errorf("decode attendance event %s: %w", ev.EntityID, err)
	}

	existing, err := r.Store.GetAttendance(ctx, incoming.Key())
	if core.IsNotFound(err) {
		return r.Store.PutAttendance(ctx, &incoming)
	}
	if err != nil {
		return err
	}

	// Stale event: local copy is already at or past this version.
	if existing.Version >= ev.Version {
		return nil
	}

	// A late update to a finalized day is a correction, never a blind
	// overwrite: route it through the manual-override path with the peer
	// branch as the attributed actor.
	override := attendance.Override{
		Status:        &incoming.Status,
		CheckInTime:   incoming.CheckInTime,
		CheckOutTime:  incoming.CheckOutTime,
		WorkedHours:   &incoming.WorkedHours,
		OvertimeHours: &incoming.OvertimeHours,
	}
	actor := fmt.Sprintf("sync:%s", ev.Branch)
	reason := fmt.Sprintf("cross-branch correction from %s (version %d)", ev.Branch, ev.Version)
	if err := attendance.ApplyOverride(existing, override, actor, reason, r.now()); err != nil {
		return err
	}
	return r.Store.PutAttendance(ctx, existing)
}

// ApplyPayroll folds one peer payroll change into the local store.
func (r *Reconciler) ApplyPayroll(ctx context.Context, ev core.ChangeEvent) error {
	if ev.Branch == r.Local || len(ev.Payload) == 0 {
		return nil
	}

	var incoming core.PayrollRecord
	if err := json.Unmarshal(ev.Payload, &incoming); err != nil {
		return fmt.Errorf("decode payroll event %s: %w", ev.EntityID, err)
	}

	existing, err := r.Store.GetPayroll(ctx, incoming.MonthKey())
	if core.IsNotFound(err) {
		incoming.Version = 0
		return r.Store.PutPayroll(ctx, &incoming, 0)
	}
	if err != nil {
		return err
	}
	if existing.Version >= ev.Version {
		return nil
	}

	if existing.Status.Mutable() {
		readVersion := existing.Version
		incoming.AuditRecord = existing.AuditRecord
		return r.Store.PutPayroll(ctx, &incoming, readVersion)
	}

	// Finalized month: journal the delta as an audited correction.
	readVersion := existing.Version
	now := r.now()
	existing.Corrections = append(existing.Corrections, core.CorrectionEntry{
		ID:        uuid.NewString(),
		Field:     "netSalary",
		OldValue:  existing.NetSalary.StringFixed(2),
		NewValue:  incoming.NetSalary.StringFixed(2),
		Reason:    fmt.Sprintf("cross-branch correction from %s (version %d)", ev.Branch, ev.Version),
		Source:    "sync",
		AppliedBy: fmt.Sprintf("sync:%s", ev.Branch),
		AppliedAt: now,
	})
	existing.Touch(fmt.Sprintf("sync:%s", ev.Branch), now)
	return r.Store.PutPayroll(ctx, existing, readVersion)
}
