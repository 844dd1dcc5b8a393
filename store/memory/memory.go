/*
Package memory provides an in-memory implementation of every store
contract, for tests and development.

The transactional unit of work is simulated with a full snapshot taken
before the function runs and restored if it fails - the same all-or-nothing
guarantee the SQLite store gets from a real database transaction.
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/editflow"
	"github.com/chronon/attendance-engine/hourbank"
	"github.com/chronon/attendance-engine/schedule"
	"github.com/chronon/attendance-engine/session"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type sessionKey struct {
	EmployeeID core.EmployeeID
	Date       string
}

type Store struct {
	mu          sync.RWMutex
	assignments map[core.EmployeeID][]schedule.ScheduleAssignment
	sessions    map[sessionKey]*session.TimeClockSession
	txs         map[core.EmployeeID][]hourbank.Transaction
	banks       map[core.EmployeeID]*hourbank.HourBank
	requests    map[core.RequestID]*editflow.EditRequest
}

func New() *Store {
	return &Store{
		assignments: make(map[core.EmployeeID][]schedule.ScheduleAssignment),
		sessions:    make(map[sessionKey]*session.TimeClockSession),
		txs:         make(map[core.EmployeeID][]hourbank.Transaction),
		banks:       make(map[core.EmployeeID]*hourbank.HourBank),
		requests:    make(map[core.RequestID]*editflow.EditRequest),
	}
}

// =============================================================================
// schedule.AssignmentStore
// =============================================================================

func (m *Store) SaveAssignment(_ context.Context, a schedule.ScheduleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.EmployeeID] = append(m.assignments[a.EmployeeID], a)
	return nil
}

func (m *Store) AssignmentsFor(_ context.Context, employeeID core.EmployeeID) ([]schedule.ScheduleAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]schedule.ScheduleAssignment(nil), m.assignments[employeeID]...), nil
}

// =============================================================================
// session.Store
// =============================================================================

func (m *Store) GetSession(_ context.Context, employeeID core.EmployeeID, date core.DayDate) (*session.TimeClockSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionKey{employeeID, date.String()}]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (m *Store) SaveSession(_ context.Context, s *session.TimeClockSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionKey{s.EmployeeID, s.Date.String()}] = copySession(s)
	return nil
}

func (m *Store) ListSessions(_ context.Context, employeeID core.EmployeeID, from, to core.DayDate) ([]*session.TimeClockSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*session.TimeClockSession
	for k, s := range m.sessions {
		if k.EmployeeID != employeeID {
			continue
		}
		if s.Date.AfterOrEqual(from) && s.Date.BeforeOrEqual(to) {
			result = append(result, copySession(s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Store) OpenSessions(_ context.Context) ([]*session.TimeClockSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*session.TimeClockSession
	for _, s := range m.sessions {
		if s.Status.Open() {
			result = append(result, copySession(s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func copySession(s *session.TimeClockSession) *session.TimeClockSession {
	c := *s
	c.Breaks = append([]session.BreakRecord(nil), s.Breaks...)
	c.Flags = append([]string(nil), s.Flags...)
	if s.ClockOut != nil {
		out := *s.ClockOut
		c.ClockOut = &out
	}
	return &c
}

// =============================================================================
// hourbank.LedgerStore (append-only) + hourbank.BankStore
// =============================================================================

func (m *Store) AppendTransaction(_ context.Context, tx hourbank.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx)
}

func (m *Store) appendLocked(tx hourbank.Transaction) error {
	list := m.txs[tx.EmployeeID]

	// Insert sorted by (date, createdAt); the ledger fold relies on it.
	i := sort.Search(len(list), func(i int) bool {
		if !list[i].Date.Equal(tx.Date) {
			return list[i].Date.After(tx.Date)
		}
		return list[i].CreatedAt.After(tx.CreatedAt)
	})
	list = append(list, hourbank.Transaction{})
	copy(list[i+1:], list[i:])
	list[i] = tx
	m.txs[tx.EmployeeID] = list
	return nil
}

func (m *Store) TransactionsFor(_ context.Context, employeeID core.EmployeeID) ([]hourbank.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]hourbank.Transaction(nil), m.txs[employeeID]...), nil
}

func (m *Store) ApprovedBySession(_ context.Context, employeeID core.EmployeeID, sessionID core.SessionID) ([]hourbank.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []hourbank.Transaction
	for _, tx := range m.txs[employeeID] {
		if tx.SessionID == sessionID && tx.Status == hourbank.StatusApproved {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Store) ApprovedByRequest(_ context.Context, employeeID core.EmployeeID, requestID core.RequestID) ([]hourbank.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []hourbank.Transaction
	for _, tx := range m.txs[employeeID] {
		if tx.RequestID == requestID && tx.Status == hourbank.StatusApproved {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Store) GetBank(_ context.Context, employeeID core.EmployeeID) (*hourbank.HourBank, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.banks[employeeID]
	if !ok {
		return nil, nil
	}
	return copyBank(b), nil
}

func (m *Store) SaveBank(_ context.Context, bank *hourbank.HourBank) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banks[bank.EmployeeID] = copyBank(bank)
	return nil
}

func (m *Store) ListBanks(_ context.Context) ([]*hourbank.HourBank, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*hourbank.HourBank
	for _, b := range m.banks {
		result = append(result, copyBank(b))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmployeeID < result[j].EmployeeID })
	return result, nil
}

func copyBank(b *hourbank.HourBank) *hourbank.HourBank {
	c := *b
	c.Periods = append([]hourbank.CompensationPeriod(nil), b.Periods...)
	return &c
}

// =============================================================================
// editflow.Store
// =============================================================================

func (m *Store) SaveRequest(_ context.Context, r *editflow.EditRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = copyRequest(r)
	return nil
}

func (m *Store) GetRequest(_ context.Context, id core.RequestID) (*editflow.EditRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return copyRequest(r), nil
}

func (m *Store) ListRequests(_ context.Context, employeeID core.EmployeeID) ([]*editflow.EditRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*editflow.EditRequest
	for _, r := range m.requests {
		if r.EmployeeID == employeeID {
			result = append(result, copyRequest(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func copyRequest(r *editflow.EditRequest) *editflow.EditRequest {
	c := *r
	c.Flow = append([]editflow.ApprovalStep(nil), r.Flow...)
	c.History = append([]editflow.StatusChange(nil), r.History...)
	return &c
}

// =============================================================================
// editflow.TxRunner - snapshot/rollback unit of work
// =============================================================================

// WithTx runs fn against the store and restores the pre-call snapshot if fn
// fails, so a failed materialization leaves no partial writes behind.
func (m *Store) WithTx(ctx context.Context, fn func(uow editflow.UnitOfWork) error) error {
	snapshot := m.snapshot()
	if err := fn(&unitOfWork{store: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type unitOfWork struct {
	store *Store
}

func (u *unitOfWork) Sessions() session.Store      { return u.store }
func (u *unitOfWork) Ledger() hourbank.LedgerStore { return u.store }

type memSnapshot struct {
	sessions map[sessionKey]*session.TimeClockSession
	txs      map[core.EmployeeID][]hourbank.Transaction
}

func (m *Store) snapshot() memSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make(map[sessionKey]*session.TimeClockSession, len(m.sessions))
	for k, v := range m.sessions {
		sessions[k] = copySession(v)
	}
	txs := make(map[core.EmployeeID][]hourbank.Transaction, len(m.txs))
	for k, v := range m.txs {
		txs[k] = append([]hourbank.Transaction(nil), v...)
	}
	return memSnapshot{sessions: sessions, txs: txs}
}

func (m *Store) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = s.sessions
	m.txs = s.txs
}
