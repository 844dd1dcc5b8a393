package core

import "sync"

// =============================================================================
// EMPLOYEE LOCKER - Per-employee single-writer guarantee
// =============================================================================

// EmployeeLocker serializes all mutating operations for one employee.
// Session state, ledger balance, and workflow step advancement are each
// read-modify-write sequences; interleaving two writers on the same
// employee would break their cross-entity invariants. Operations on
// different employees proceed in parallel.
type EmployeeLocker struct {
	mu    sync.Mutex
	locks map[EmployeeID]*sync.Mutex
}

func NewEmployeeLocker() *EmployeeLocker {
	return &EmployeeLocker{locks: make(map[EmployeeID]*sync.Mutex)}
}

// Acquire blocks until the employee's lock is held and returns the release
// function. Callers must defer the release.
func (l *EmployeeLocker) Acquire(id EmployeeID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
