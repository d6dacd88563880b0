/*
Package gateway turns device punch streams into finalized attendance.

PURPOSE:
  The device gateway collaborator hands over pre-validated punch events.
  This package pairs them into per-day sessions (first IN, last OUT, break
  window), resolves the employee behind each biometric ID, and drives the
  attendance normalizer. Device connectivity, retries and wire protocol are
  the gateway's problem, never this package's.

CONCURRENCY:
  Normalization for different employees is independent. Work for the same
  (employee, date) is serialized on a per-key lock, and a day that already
  has a finalized record is never silently overwritten: it is reported as
  a conflict that needs the manual-override path.

SEE ALSO:
  - attendance/normalizer.go: the derivation rules
  - core/contracts.go: the DeviceGateway contract
*/
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// INGESTOR
// =============================================================================

type Ingestor struct {
	Gateway    core.DeviceGateway
	Store      core.RecordStore
	Normalizer *attendance.Normalizer
	Bus        core.SyncBus // optional

	// IsHoliday marks branch holidays for the normalizer. Nil means no
	// holidays.
	IsHoliday func(time.Time) bool

	mu    sync.Mutex
	locks map[core.DayKey]*sync.Mutex
}

// IngestReport summarizes one ingestion pass.
type IngestReport struct {
	Created   int
	Conflicts []core.DayKey // finalized days needing the override path
	Unmatched int           // events with no matching employee
	Errors    []error
}

// IngestDevice fetches a device's events since the watermark and writes
// the resulting attendance records. Different employee-days proceed in
// order within the call; concurrent calls for the same day serialize.
func (ing *Ingestor) IngestDevice(ctx context.Context, branch *core.Branch, device core.DeviceID, since time.Time, actor string) (IngestReport, error) {
	var report IngestReport

	if !branch.OwnsDevice(device) {
		return report, &core.ValidationError{
			Field:   "device",
			Message: fmt.Sprintf("device %s is not registered to branch %s", device, branch.Code),
		}
	}

	events, err := ing.Gateway.FetchEvents(ctx, device, since)
	if err != nil {
		return report, fmt.Errorf("fetch events from %s: %w", device, err)
	}

	now := time.Now()
	for biometricID, days := range groupSessions(events) {
		emp, err := ing.Store.FindEmployeeByBiometricID(ctx, biometricID)
		if core.IsNotFound(err) {
			report.Unmatched += len(days)
			continue
		}
		if err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}

		for _, ds := range days {
			ing.ingestDay(ctx, branch, emp, ds, actor, now, &report)
		}
	}
	return report, nil
}

func (ing *Ingestor) ingestDay(ctx context.Context, branch *core.Branch, emp *core.Employee, ds daySession, actor string, now time.Time, report *IngestReport) {
	key := core.NewDayKey(core.EmployeeID(emp.ID), ds.date)
	unlock := ing.lockDay(key)
	defer unlock()

	// Later punches for an already-finalized day are corrections, and
	// corrections go through the audited override path.
	if _, err := ing.Store.GetAttendance(ctx, key); err == nil {
		report.Conflicts = append(report.Conflicts, key)
		return
	} else if !core.IsNotFound(err) {
		report.Errors = append(report.Errors, err)
		return
	}

	baselineFrom := core.DateOf(ds.date).AddDate(0, 0, -30)
	trailing, err := ing.Store.QueryAttendanceRange(ctx, key.Employee, baselineFrom, ds.date.AddDate(0, 0, -1))
	if err != nil {
		report.Errors = append(report.Errors, err)
		return
	}

	day := attendance.DayContext{
		Date:     ds.date,
		Holiday:  ing.IsHoliday != nil && ing.IsHoliday(ds.date),
		Branch:   branch,
		Baseline: attendance.TrailingBaseline(trailing),
		Actor:    actor,
		Now:      now,
	}

	rec, err := ing.Normalizer.Normalize(emp, day, ds.session)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("normalize %s/%s: %w", emp.Code, ds.date.Format("2006-01-02"), err))
		return
	}
	if err := ing.Store.PutAttendance(ctx, rec); err != nil {
		report.Errors = append(report.Errors, err)
		return
	}
	report.Created++

	if ing.Bus != nil {
		payload, _ := json.Marshal(rec)
		_ = ing.Bus.Publish(ctx, core.ChangeEvent{
			Entity:    core.EntityAttendance,
			EntityID:  rec.ID,
			Branch:    rec.Branch,
			Version:   rec.Version,
			Payload:   payload,
			EmittedAt: now,
		})
	}
}

func (ing *Ingestor) lockDay(key core.DayKey) func() {
	ing.mu.Lock()
	if ing.locks == nil {
		ing.locks = make(map[core.DayKey]*sync.Mutex)
	}
	m, ok := ing.locks[key]
	if !ok {
		m = &sync.Mutex{}
		ing.locks[key] = m
	}
	ing.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// =============================================================================
// SESSION PAIRING - Punch events into per-day sessions
// =============================================================================

type daySession struct {
	date    time.Time
	session *attendance.DaySession
}

// groupSessions pairs a device's punches into one session per employee-day:
// first IN is the check-in, last OUT the check-out; an interior OUT/IN pair
// becomes the break window. Confidence is the weakest punch of the day.
func groupSessions(events []core.PunchEvent) map[string][]daySession {
	type dayGroup map[time.Time][]core.PunchEvent
	byEmployee := make(map[string]dayGroup)

	for _, ev := range events {
		day := core.DateOf(ev.Timestamp)
		if byEmployee[ev.BiometricID] == nil {
			byEmployee[ev.BiometricID] = make(dayGroup)
		}
		byEmployee[ev.BiometricID][day] = append(byEmployee[ev.BiometricID][day], ev)
	}

	result := make(map[string][]daySession, len(byEmployee))
	for biometricID, days := range byEmployee {
		for day, punches := range days {
			sort.Slice(punches, func(i, j int) bool {
				return punches[i].Timestamp.Before(punches[j].Timestamp)
			})
			result[biometricID] = append(result[biometricID], daySession{
				date:    day,
				session: pairPunches(punches),
			})
		}
		sort.Slice(result[biometricID], func(i, j int) bool {
			return result[biometricID][i].date.Before(result[biometricID][j].date)
		})
	}
	return result
}

func pairPunches(punches []core.PunchEvent) *attendance.DaySession {
	session := &attendance.DaySession{}
	confidence := 1.0

	var outs, ins []core.PunchEvent
	for _, p := range punches {
		if p.Confidence < confidence {
			confidence = p.Confidence
		}
		switch p.Direction {
		case core.PunchIn:
			ins = append(ins, p)
		case core.PunchOut:
			outs = append(outs, p)
		}
	}
	if len(ins) == 0 {
		return nil
	}

	first := ins[0]
	session.CheckIn = first.Timestamp
	session.CheckInDevice = first.Device
	session.Method = first.Method
	session.CheckInLocation = first.Location

	if len(outs) > 0 {
		last := outs[len(outs)-1]
		session.CheckOut = last.Timestamp
		session.CheckOutDevice = last.Device
		session.CheckOutLocation = last.Location

		// Interior OUT followed by a later IN is a break window.
		if len(outs) > 1 && len(ins) > 1 {
			breakStart := outs[0].Timestamp
			breakEnd := ins[len(ins)-1].Timestamp
			if breakStart.After(session.CheckIn) && breakEnd.Before(session.CheckOut) && breakEnd.After(breakStart) {
				session.BreakStart = &breakStart
				session.BreakEnd = &breakEnd
			}
		}
	}

	session.Confidence = confidence
	return session
}
