/*
scheduler.go - Automated device sync scheduler

PURPOSE:
  Periodically polls every registered biometric device and ingests new
  punch events, so attendance records materialize without manual pulls.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Pulls each branch's devices from the branch watermark (LastSyncAt)
  - Conflicting days (already finalized) are logged, never overwritten
  - Advances the branch watermark only after the whole pass succeeds

CONFIGURATION:
  - CheckInterval: How often to poll (default: 15 minutes)
  - Branches: Which branches to poll
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSyncScheduler(store, ingestor, branchIDs)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: IngestDevice endpoint (manual pull)
  - gateway/ingest.go: Ingestor
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/payroll-engine/core"
	"github.com/warp/payroll-engine/gateway"
)

// SyncScheduler handles automated punch-event ingestion.
type SyncScheduler struct {
	Store         core.RecordStore
	Ingestor      *gateway.Ingestor
	Branches      []core.BranchID
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSyncScheduler creates a new scheduler.
func NewSyncScheduler(store core.RecordStore, ingestor *gateway.Ingestor, branches []core.BranchID) *SyncScheduler {
	return &SyncScheduler{
		Store:         store,
		Ingestor:      ingestor,
		Branches:      branches,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SyncScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with check interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SyncScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SyncScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.pollAll()

	for {
		select {
		case <-ss.ticker.C:
			ss.pollAll()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SyncScheduler) pollAll() {
	ctx := context.Background()
	started := time.Now()

	created := 0
	conflicts := 0

	for _, id := range ss.Branches {
		branch, err := ss.Store.GetBranch(ctx, id)
		if err != nil {
			log.Printf("[Scheduler] Error loading branch %s: %v", id, err)
			continue
		}
		if branch.Status != core.BranchActive {
			continue
		}

		branchOK := true
		for _, device := range branch.Devices {
			if device.Status != core.DeviceOnline {
				continue
			}

			report, err := ss.Ingestor.IngestDevice(ctx, branch, device.ID, branch.LastSyncAt, "scheduler")
			if err != nil {
				log.Printf("[Scheduler] Error ingesting %s/%s: %v", branch.Code, device.ID, err)
				branchOK = false
				continue
			}
			// Per-day failures inside an otherwise successful pull also
			// hold the watermark, so the dropped days are retried.
			if len(report.Errors) > 0 {
				for _, e := range report.Errors {
					log.Printf("[Scheduler] Ingest error %s/%s: %v", branch.Code, device.ID, e)
				}
				branchOK = false
			}

			created += report.Created
			conflicts += len(report.Conflicts)
			for _, key := range report.Conflicts {
				log.Printf("[Scheduler] Conflict: %s/%s already finalized, override required",
					key.Employee, key.Date.Format("2006-01-02"))
			}
		}

		// A partial pull must not advance the watermark past unread events.
		if branchOK {
			branch.LastSyncAt = started
			branch.Touch("scheduler", started)
			if err := ss.Store.PutBranch(ctx, branch); err != nil {
				log.Printf("[Scheduler] Error advancing watermark for %s: %v", branch.Code, err)
			}
		}
	}

	if created > 0 || conflicts > 0 {
		log.Printf("[Scheduler] Completed: %d created, %d conflicts", created, conflicts)
	}
}

// RunNow triggers an immediate poll (for testing/admin).
func (ss *SyncScheduler) RunNow() {
	ss.pollAll()
}

// GetNextRunTime returns when the next scheduled poll will occur.
func (ss *SyncScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ss.CheckInterval)
}
