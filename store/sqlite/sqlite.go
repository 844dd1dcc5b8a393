/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  schedule.AssignmentStore: Schedule-to-employee bindings
  session.Store:            Time clock sessions, keyed (employee, date)
  hourbank.LedgerStore:     Append-only transaction log
  hourbank.BankStore:       Per-employee bank records
  editflow.Store:           Edit requests with flow and history
  editflow.TxRunner:        Unit of work for materialization

APPEND-ONLY ENFORCEMENT:
  The transactions table takes INSERTs only. No UPDATE, no DELETE.
  Corrections land as new compensation rows.

WAL MODE:
  The database is opened with WAL so readers never block the single writer.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a versioned
  migration tool instead.

SEE ALSO:
  - store/memory: In-memory implementation for tests
  - editflow/materialize.go: The unit-of-work consumer
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/editflow"
	"github.com/chronon/attendance-engine/hourbank"
	"github.com/chronon/attendance-engine/schedule"
	"github.com/chronon/attendance-engine/session"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
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
	-- Schedule assignments (schedule config snapshotted as JSON)
	CREATE TABLE IF NOT EXISTS schedule_assignments (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		schedule_json TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_employee
		ON schedule_assignments(employee_id, start_date);

	-- Time clock sessions, one row per employee-day
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		clock_in_json TEXT NOT NULL,
		clock_out_json TEXT,
		breaks_json TEXT NOT NULL,
		status TEXT NOT NULL,
		total_worked_minutes INTEGER NOT NULL DEFAULT 0,
		expected_minutes INTEGER NOT NULL DEFAULT 0,
		overtime_minutes INTEGER NOT NULL DEFAULT 0,
		overtime_billable BOOLEAN NOT NULL DEFAULT FALSE,
		is_late BOOLEAN NOT NULL DEFAULT FALSE,
		minutes_late INTEGER NOT NULL DEFAULT 0,
		justification TEXT,
		flags_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(employee_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_status
		ON sessions(status);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL,
		session_id TEXT,
		request_id TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Balance fold (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_employee_date
		ON transactions(employee_id, date, created_at);

	-- Duplicate-reference and idempotency checks
	CREATE INDEX IF NOT EXISTS idx_transactions_session
		ON transactions(employee_id, session_id) WHERE session_id != '';
	CREATE INDEX IF NOT EXISTS idx_transactions_request
		ON transactions(employee_id, request_id) WHERE request_id != '';

	-- Hour banks (balance cache + caps + compensation periods)
	CREATE TABLE IF NOT EXISTS hour_banks (
		employee_id TEXT PRIMARY KEY,
		current_balance TEXT NOT NULL,
		max_positive_balance TEXT NOT NULL,
		max_negative_balance TEXT NOT NULL,
		periods_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Edit requests (approval flow and history as JSON)
	CREATE TABLE IF NOT EXISTS edit_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		target_date TEXT NOT NULL,
		changes_json TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL,
		flow_json TEXT NOT NULL,
		current_step INTEGER NOT NULL DEFAULT 0,
		history_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_edit_requests_employee
		ON edit_requests(employee_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_edit_requests_status
		ON edit_requests(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the query helpers work
// inside and outside a unit of work.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ASSIGNMENT STORE (schedule.AssignmentStore interface)
// =============================================================================

func (s *Store) SaveAssignment(ctx context.Context, a schedule.ScheduleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scheduleJSON, err := json.Marshal(a.Schedule)
	if err != nil {
		return fmt.Errorf("encoding schedule: %w", err)
	}
	var endDate *string
	if a.EndDate != nil {
		d := a.EndDate.String()
		endDate = &d
	}

	query := `
		INSERT INTO schedule_assignments (id, employee_id, schedule_json, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schedule_json = excluded.schedule_json,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`
	_, err = s.db.ExecContext(ctx, query,
		a.ID, a.EmployeeID, string(scheduleJSON),
		a.StartDate.String(), endDate,
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) AssignmentsFor(ctx context.Context, employeeID core.EmployeeID) ([]schedule.ScheduleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, schedule_json, start_date, end_date, created_at
		FROM schedule_assignments
		WHERE employee_id = ?
		ORDER BY start_date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []schedule.ScheduleAssignment
	for rows.Next() {
		var (
			a            schedule.ScheduleAssignment
			scheduleJSON string
			startDate    string
			endDate      sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&a.ID, &a.EmployeeID, &scheduleJSON, &startDate, &endDate, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(scheduleJSON), &a.Schedule); err != nil {
			return nil, fmt.Errorf("decoding schedule for assignment %s: %w", a.ID, err)
		}
		if a.StartDate, err = core.ParseDayDate(startDate); err != nil {
			return nil, err
		}
		if endDate.Valid {
			d, err := core.ParseDayDate(endDate.String)
			if err != nil {
				return nil, err
			}
			a.EndDate = &d
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// =============================================================================
// SESSION STORE (session.Store interface)
// =============================================================================

func (s *Store) GetSession(ctx context.Context, employeeID core.EmployeeID, date core.DayDate) (*session.TimeClockSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSession(ctx, s.db, employeeID, date)
}

func (s *Store) SaveSession(ctx context.Context, sess *session.TimeClockSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSession(ctx, s.db, sess)
}

func (s *Store) ListSessions(ctx context.Context, employeeID core.EmployeeID, from, to core.DayDate) ([]*session.TimeClockSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := sessionColumns + `
		FROM sessions
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	return querySessions(ctx, s.db, query, employeeID, from.String(), to.String())
}

func (s *Store) OpenSessions(ctx context.Context) ([]*session.TimeClockSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := sessionColumns + `
		FROM sessions
		WHERE status IN ('active', 'on_break')
		ORDER BY date ASC
	`
	return querySessions(ctx, s.db, query)
}

const sessionColumns = `
	SELECT id, employee_id, date, clock_in_json, clock_out_json, breaks_json,
	       status, total_worked_minutes, expected_minutes, overtime_minutes,
	       overtime_billable, is_late, minutes_late, justification, flags_json,
	       created_at, updated_at
`

func getSession(ctx context.Context, db dbtx, employeeID core.EmployeeID, date core.DayDate) (*session.TimeClockSession, error) {
	query := sessionColumns + ` FROM sessions WHERE employee_id = ? AND date = ?`
	sessions, err := querySessions(ctx, db, query, employeeID, date.String())
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return sessions[0], nil
}

func saveSession(ctx context.Context, db dbtx, sess *session.TimeClockSession) error {
	clockInJSON, err := json.Marshal(sess.ClockIn)
	if err != nil {
		return fmt.Errorf("encoding clock-in: %w", err)
	}
	var clockOutJSON *string
	if sess.ClockOut != nil {
		raw, err := json.Marshal(sess.ClockOut)
		if err != nil {
			return fmt.Errorf("encoding clock-out: %w", err)
		}
		v := string(raw)
		clockOutJSON = &v
	}
	breaksJSON, err := json.Marshal(sess.Breaks)
	if err != nil {
		return fmt.Errorf("encoding breaks: %w", err)
	}
	flagsJSON, err := json.Marshal(sess.Flags)
	if err != nil {
		return fmt.Errorf("encoding flags: %w", err)
	}

	query := `
		INSERT INTO sessions (id, employee_id, date, clock_in_json, clock_out_json, breaks_json,
			status, total_worked_minutes, expected_minutes, overtime_minutes,
			overtime_billable, is_late, minutes_late, justification, flags_json,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, date) DO UPDATE SET
			clock_in_json = excluded.clock_in_json,
			clock_out_json = excluded.clock_out_json,
			breaks_json = excluded.breaks_json,
			status = excluded.status,
			total_worked_minutes = excluded.total_worked_minutes,
			expected_minutes = excluded.expected_minutes,
			overtime_minutes = excluded.overtime_minutes,
			overtime_billable = excluded.overtime_billable,
			is_late = excluded.is_late,
			minutes_late = excluded.minutes_late,
			justification = excluded.justification,
			flags_json = excluded.flags_json,
			updated_at = excluded.updated_at
	`
	_, err = db.ExecContext(ctx, query,
		sess.ID, sess.EmployeeID, sess.Date.String(),
		string(clockInJSON), clockOutJSON, string(breaksJSON),
		sess.Status, sess.TotalWorkedMinutes, sess.ExpectedMinutes, sess.OvertimeMinutes,
		sess.OvertimeBillable, sess.IsLate, sess.MinutesLate, sess.Justification, string(flagsJSON),
		sess.CreatedAt.UTC().Format(time.RFC3339), sess.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func querySessions(ctx context.Context, db dbtx, query string, args ...any) ([]*session.TimeClockSession, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.TimeClockSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func scanSession(rows *sql.Rows) (*session.TimeClockSession, error) {
	var (
		sess          session.TimeClockSession
		date          string
		clockInJSON   string
		clockOutJSON  sql.NullString
		breaksJSON    string
		justification sql.NullString
		flagsJSON     sql.NullString
		createdAt     string
		updatedAt     string
	)
	err := rows.Scan(
		&sess.ID, &sess.EmployeeID, &date, &clockInJSON, &clockOutJSON, &breaksJSON,
		&sess.Status, &sess.TotalWorkedMinutes, &sess.ExpectedMinutes, &sess.OvertimeMinutes,
		&sess.OvertimeBillable, &sess.IsLate, &sess.MinutesLate, &justification, &flagsJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if sess.Date, err = core.ParseDayDate(date); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(clockInJSON), &sess.ClockIn); err != nil {
		return nil, fmt.Errorf("decoding clock-in for session %s: %w", sess.ID, err)
	}
	if clockOutJSON.Valid {
		var out session.ClockRecord
		if err := json.Unmarshal([]byte(clockOutJSON.String), &out); err != nil {
			return nil, fmt.Errorf("decoding clock-out for session %s: %w", sess.ID, err)
		}
		sess.ClockOut = &out
	}
	if err := json.Unmarshal([]byte(breaksJSON), &sess.Breaks); err != nil {
		return nil, fmt.Errorf("decoding breaks for session %s: %w", sess.ID, err)
	}
	if flagsJSON.Valid && flagsJSON.String != "" {
		if err := json.Unmarshal([]byte(flagsJSON.String), &sess.Flags); err != nil {
			return nil, fmt.Errorf("decoding flags for session %s: %w", sess.ID, err)
		}
	}
	sess.Justification = justification.String
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &sess, nil
}

// =============================================================================
// LEDGER STORE (hourbank.LedgerStore interface)
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx hourbank.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, tx)
}

func appendTransaction(ctx context.Context, db dbtx, tx hourbank.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, employee_id, date, tx_type, amount, reason, status, session_id, request_id, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		tx.ID, tx.EmployeeID, tx.Date.String(),
		tx.Type, tx.Amount.String(), tx.Reason, tx.Status,
		tx.SessionID, tx.RequestID, tx.CreatedBy,
		tx.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

const transactionColumns = `
	SELECT id, employee_id, date, tx_type, amount, reason, status,
	       session_id, request_id, created_by, created_at
`

func (s *Store) TransactionsFor(ctx context.Context, employeeID core.EmployeeID) ([]hourbank.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := transactionColumns + `
		FROM transactions
		WHERE employee_id = ?
		ORDER BY date ASC, created_at ASC
	`
	return queryTransactions(ctx, s.db, query, employeeID)
}

func (s *Store) ApprovedBySession(ctx context.Context, employeeID core.EmployeeID, sessionID core.SessionID) ([]hourbank.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := transactionColumns + `
		FROM transactions
		WHERE employee_id = ? AND session_id = ? AND status = 'approved'
		ORDER BY date ASC, created_at ASC
	`
	return queryTransactions(ctx, s.db, query, employeeID, sessionID)
}

func (s *Store) ApprovedByRequest(ctx context.Context, employeeID core.EmployeeID, requestID core.RequestID) ([]hourbank.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return approvedByRequest(ctx, s.db, employeeID, requestID)
}

func approvedByRequest(ctx context.Context, db dbtx, employeeID core.EmployeeID, requestID core.RequestID) ([]hourbank.Transaction, error) {
	query := transactionColumns + `
		FROM transactions
		WHERE employee_id = ? AND request_id = ? AND status = 'approved'
		ORDER BY date ASC, created_at ASC
	`
	return queryTransactions(ctx, db, query, employeeID, requestID)
}

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]hourbank.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []hourbank.Transaction
	for rows.Next() {
		var (
			tx        hourbank.Transaction
			date      string
			amount    string
			reason    sql.NullString
			sessionID sql.NullString
			requestID sql.NullString
			createdBy sql.NullString
			createdAt string
		)
		if err := rows.Scan(
			&tx.ID, &tx.EmployeeID, &date, &tx.Type, &amount, &reason, &tx.Status,
			&sessionID, &requestID, &createdBy, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if tx.Date, err = core.ParseDayDate(date); err != nil {
			return nil, err
		}
		tx.Amount = core.ParseMinutes(amount)
		tx.Reason = reason.String
		tx.SessionID = core.SessionID(sessionID.String)
		tx.RequestID = core.RequestID(requestID.String)
		tx.CreatedBy = createdBy.String
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// =============================================================================
// BANK STORE (hourbank.BankStore interface)
// =============================================================================

func (s *Store) GetBank(ctx context.Context, employeeID core.EmployeeID) (*hourbank.HourBank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT employee_id, current_balance, max_positive_balance, max_negative_balance,
		       periods_json, created_at, updated_at
		FROM hour_banks WHERE employee_id = ?
	`, employeeID)

	bank, err := scanBank(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return bank, err
}

func (s *Store) SaveBank(ctx context.Context, bank *hourbank.HourBank) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	periodsJSON, err := json.Marshal(bank.Periods)
	if err != nil {
		return fmt.Errorf("encoding periods: %w", err)
	}

	query := `
		INSERT INTO hour_banks (employee_id, current_balance, max_positive_balance,
			max_negative_balance, periods_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			current_balance = excluded.current_balance,
			max_positive_balance = excluded.max_positive_balance,
			max_negative_balance = excluded.max_negative_balance,
			periods_json = excluded.periods_json,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		bank.EmployeeID, bank.CurrentBalance.String(),
		bank.MaxPositiveBalance.String(), bank.MaxNegativeBalance.String(),
		string(periodsJSON),
		bank.CreatedAt.UTC().Format(time.RFC3339),
		bank.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListBanks(ctx context.Context) ([]*hourbank.HourBank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, current_balance, max_positive_balance, max_negative_balance,
		       periods_json, created_at, updated_at
		FROM hour_banks ORDER BY employee_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var banks []*hourbank.HourBank
	for rows.Next() {
		bank, err := scanBank(rows)
		if err != nil {
			return nil, err
		}
		banks = append(banks, bank)
	}
	return banks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBank(row rowScanner) (*hourbank.HourBank, error) {
	var (
		bank        hourbank.HourBank
		balance     string
		maxPositive string
		maxNegative string
		periodsJSON sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&bank.EmployeeID, &balance, &maxPositive, &maxNegative,
		&periodsJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	bank.CurrentBalance = core.ParseMinutes(balance)
	bank.MaxPositiveBalance = core.ParseMinutes(maxPositive)
	bank.MaxNegativeBalance = core.ParseMinutes(maxNegative)
	if periodsJSON.Valid && periodsJSON.String != "" {
		if err := json.Unmarshal([]byte(periodsJSON.String), &bank.Periods); err != nil {
			return nil, fmt.Errorf("decoding periods for bank %s: %w", bank.EmployeeID, err)
		}
	}
	bank.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	bank.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &bank, nil
}

// =============================================================================
// EDIT REQUEST STORE (editflow.Store interface)
// =============================================================================

func (s *Store) SaveRequest(ctx context.Context, r *editflow.EditRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changesJSON, err := json.Marshal(r.Changes)
	if err != nil {
		return fmt.Errorf("encoding changes: %w", err)
	}
	flowJSON, err := json.Marshal(r.Flow)
	if err != nil {
		return fmt.Errorf("encoding flow: %w", err)
	}
	historyJSON, err := json.Marshal(r.History)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	query := `
		INSERT INTO edit_requests (id, employee_id, target_date, changes_json, reason,
			status, flow_json, current_step, history_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			flow_json = excluded.flow_json,
			current_step = excluded.current_step,
			history_json = excluded.history_json,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.TargetDate.String(),
		string(changesJSON), r.Reason, r.Status,
		string(flowJSON), r.CurrentStep, string(historyJSON),
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

const requestColumns = `
	SELECT id, employee_id, target_date, changes_json, reason, status,
	       flow_json, current_step, history_json, created_at, updated_at
`

func (s *Store) GetRequest(ctx context.Context, id core.RequestID) (*editflow.EditRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requests, err := s.queryRequests(ctx, requestColumns+` FROM edit_requests WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return requests[0], nil
}

func (s *Store) ListRequests(ctx context.Context, employeeID core.EmployeeID) ([]*editflow.EditRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := requestColumns + `
		FROM edit_requests
		WHERE employee_id = ?
		ORDER BY created_at ASC
	`
	return s.queryRequests(ctx, query, employeeID)
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]*editflow.EditRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edit requests: %w", err)
	}
	defer rows.Close()

	var requests []*editflow.EditRequest
	for rows.Next() {
		var (
			r           editflow.EditRequest
			targetDate  string
			changesJSON string
			reason      sql.NullString
			flowJSON    string
			historyJSON string
			createdAt   string
			updatedAt   string
		)
		if err := rows.Scan(
			&r.ID, &r.EmployeeID, &targetDate, &changesJSON, &reason, &r.Status,
			&flowJSON, &r.CurrentStep, &historyJSON, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan edit request: %w", err)
		}
		if r.TargetDate, err = core.ParseDayDate(targetDate); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(changesJSON), &r.Changes); err != nil {
			return nil, fmt.Errorf("decoding changes for request %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(flowJSON), &r.Flow); err != nil {
			return nil, fmt.Errorf("decoding flow for request %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(historyJSON), &r.History); err != nil {
			return nil, fmt.Errorf("decoding history for request %s: %w", r.ID, err)
		}
		r.Reason = reason.String
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		requests = append(requests, &r)
	}
	return requests, rows.Err()
}

// =============================================================================
// UNIT OF WORK (editflow.TxRunner interface)
// =============================================================================

// WithTx executes fn inside a database transaction. All session and ledger
// writes made through the unit of work commit or roll back together.
func (s *Store) WithTx(ctx context.Context, fn func(uow editflow.UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txUnit{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txUnit backs both stores of the unit of work with the same *sql.Tx.
type txUnit struct {
	tx *sql.Tx
}

func (u *txUnit) Sessions() session.Store      { return &txSessions{tx: u.tx} }
func (u *txUnit) Ledger() hourbank.LedgerStore { return &txLedger{tx: u.tx} }

type txSessions struct {
	tx *sql.Tx
}

func (t *txSessions) GetSession(ctx context.Context, employeeID core.EmployeeID, date core.DayDate) (*session.TimeClockSession, error) {
	return getSession(ctx, t.tx, employeeID, date)
}

func (t *txSessions) SaveSession(ctx context.Context, sess *session.TimeClockSession) error {
	return saveSession(ctx, t.tx, sess)
}

func (t *txSessions) ListSessions(ctx context.Context, employeeID core.EmployeeID, from, to core.DayDate) ([]*session.TimeClockSession, error) {
	query := sessionColumns + `
		FROM sessions
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	return querySessions(ctx, t.tx, query, employeeID, from.String(), to.String())
}

func (t *txSessions) OpenSessions(ctx context.Context) ([]*session.TimeClockSession, error) {
	query := sessionColumns + `
		FROM sessions
		WHERE status IN ('active', 'on_break')
		ORDER BY date ASC
	`
	return querySessions(ctx, t.tx, query)
}

type txLedger struct {
	tx *sql.Tx
}

func (t *txLedger) AppendTransaction(ctx context.Context, tx hourbank.Transaction) error {
	return appendTransaction(ctx, t.tx, tx)
}

func (t *txLedger) TransactionsFor(ctx context.Context, employeeID core.EmployeeID) ([]hourbank.Transaction, error) {
	query := transactionColumns + `
		FROM transactions
		WHERE employee_id = ?
		ORDER BY date ASC, created_at ASC
	`
	return queryTransactions(ctx, t.tx, query, employeeID)
}

func (t *txLedger) ApprovedBySession(ctx context.Context, employeeID core.EmployeeID, sessionID core.SessionID) ([]hourbank.Transaction, error) {
	query := transactionColumns + `
		FROM transactions
		WHERE employee_id = ? AND session_id = ? AND status = 'approved'
		ORDER BY date ASC, created_at ASC
	`
	return queryTransactions(ctx, t.tx, query, employeeID, sessionID)
}

func (t *txLedger) ApprovedByRequest(ctx context.Context, employeeID core.EmployeeID, requestID core.RequestID) ([]hourbank.Transaction, error) {
	return approvedByRequest(ctx, t.tx, employeeID, requestID)
}
