package payroll

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// KEYED LOCKS - Serialize work per (employee, month)
// =============================================================================

// monthLocks hands out one mutex per MonthKey so concurrent calculate
// triggers for the same employee-month are serialized. The optimistic
// version check on PutPayroll is the correctness backstop; this lock just
// avoids doing the losing computation at all when callers share a runner.
type monthLocks struct {
	mu    sync.Mutex
	locks map[core.MonthKey]*sync.Mutex
}

func newMonthLocks() *monthLocks {
	return &monthLocks{locks: make(map[core.MonthKey]*sync.Mutex)}
}

func (l *monthLocks) lock(key core.MonthKey) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// =============================================================================
// RUNNER - Batch payroll across a branch
// =============================================================================

// Runner drives aggregate-then-calculate for whole branches. Employees are
// independent, so the batch fans out across a bounded worker pool.
type Runner struct {
	Store      core.RecordStore
	Aggregator *attendance.Aggregator
	Calculator *Calculator
	Controller *Controller

	// Concurrency bounds the worker pool. Zero means 4.
	Concurrency int

	locks *monthLocks
	once  sync.Once
}

// RunResult is the outcome for one employee in a batch.
type RunResult struct {
	Employee core.EmployeeID
	Record   *core.PayrollRecord
	Err      error
}

// CalculateOne aggregates and calculates a single employee-month under the
// per-key lock. Safe to call concurrently for any mix of keys.
func (r *Runner) CalculateOne(ctx context.Context, emp *core.Employee, month core.Month, actor string, partial bool) (*core.PayrollRecord, error) {
	r.once.Do(func() { r.locks = newMonthLocks() })
	unlock := r.locks.lock(core.MonthKey{Employee: core.EmployeeID(emp.ID), Month: month})
	defer unlock()

	summary, err := r.Aggregator.AggregateMonth(ctx, emp, month, partial)
	if err != nil {
		return nil, err
	}

	in := Input{
		Employee: emp,
		Summary:  summary,
		Actor:    actor,
		Prior:    r.priorContext(ctx, emp, month),
	}
	return r.Controller.Calculate(ctx, r.Calculator, in)
}

// RunBranch calculates payroll for every active employee of a branch.
// Results come back sorted by employee, one entry per employee whether the
// calculation succeeded or not.
func (r *Runner) RunBranch(ctx context.Context, branch core.BranchID, month core.Month, actor string, partial bool) ([]RunResult, error) {
	employees, err := r.Store.ListEmployeesByBranch(ctx, branch)
	if err != nil {
		return nil, err
	}

	workers := r.Concurrency
	if workers <= 0 {
		workers = 4
	}

	sem := make(chan struct{}, workers)
	results := make([]RunResult, len(employees))
	var wg sync.WaitGroup

	for i, emp := range employees {
		if !emp.IsActive() {
			results[i] = RunResult{Employee: core.EmployeeID(emp.ID)}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, emp *core.Employee) {
			defer wg.Done()
			defer func() { <-sem }()

			rec, err := r.CalculateOne(ctx, emp, month, actor, partial)
			results[i] = RunResult{Employee: core.EmployeeID(emp.ID), Record: rec, Err: err}
		}(i, emp)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Employee < results[j].Employee })
	return results, nil
}

// priorContext loads the prior month's committed net salary for anomaly
// scoring. Missing prior months simply yield no baseline.
func (r *Runner) priorContext(ctx context.Context, emp *core.Employee, month core.Month) PriorContext {
	prior, err := r.Store.GetPayroll(ctx, core.MonthKey{
		Employee: core.EmployeeID(emp.ID),
		Month:    month.Prev(),
	})
	if err != nil {
		return PriorContext{}
	}
	return PriorContext{PriorMonthNet: prior.NetSalary, HasPriorMonth: true}
}
