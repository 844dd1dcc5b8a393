/*
Package hourbank maintains the per-employee signed time-balance ledger.

PURPOSE:
  Every worked-day delta, correction, and manual adjustment lands here as
  an immutable transaction. The running balance is always recomputable
  from the transaction list - the cached balance field on the bank is a
  derived projection, never the source of truth.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: approved transactions are never mutated or deleted
  2. REVERSAL-BY-COMPENSATION: corrections are new transactions
  3. ONE NET DELTA PER DAY: a session contributes at most one approved
     credit/debit unless an edit-request compensation supersedes it
  4. PENDING IS INVISIBLE: only approved transactions affect the balance

SEE ALSO:
  - ledger.go: Post / RecomputeBalance
  - alerts.go: Cap and compensation-period alerting
  - period.go: Compensation period sweep
*/
package hourbank

import (
	"context"
	"time"

	"github.com/chronon/attendance-engine/core"
)

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

type TransactionType string

const (
	TxCredit       TransactionType = "credit"       // worked more than expected
	TxDebit        TransactionType = "debit"        // worked less than expected
	TxCompensation TransactionType = "compensation" // approved edit-request correction
	TxAdjustment   TransactionType = "adjustment"   // manual admin correction
)

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
)

type Transaction struct {
	ID         core.TransactionID `json:"id"`
	EmployeeID core.EmployeeID    `json:"employee_id"`
	Date       core.DayDate       `json:"date"`
	Type       TransactionType    `json:"type"`
	Amount     core.Minutes       `json:"amount"` // signed minutes
	Reason     string             `json:"reason"`
	Status     TransactionStatus  `json:"status"`

	// Optional links back to the originating cause.
	SessionID core.SessionID `json:"session_id,omitempty"`
	RequestID core.RequestID `json:"request_id,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// HOUR BANK - One per employee
// =============================================================================

// HourBank holds the caps and the cached balance projection. Both caps are
// positive minute magnitudes.
type HourBank struct {
	EmployeeID         core.EmployeeID      `json:"employee_id"`
	CurrentBalance     core.Minutes         `json:"current_balance"` // derived cache, see RecomputeBalance
	MaxPositiveBalance core.Minutes         `json:"max_positive_balance"`
	MaxNegativeBalance core.Minutes         `json:"max_negative_balance"`
	Periods            []CompensationPeriod `json:"periods"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// =============================================================================
// COMPENSATION PERIOD - Bounded window for the balance to return to target
// =============================================================================

type PeriodStatus string

const (
	PeriodActive    PeriodStatus = "active"
	PeriodCompleted PeriodStatus = "completed"
	PeriodExpired   PeriodStatus = "expired"
)

// CompensationPeriod requires the balance magnitude to come back within
// TargetBalance by EndDate. CurrentBalance is a snapshot taken when the
// period is evaluated, not a live link.
type CompensationPeriod struct {
	ID             string       `json:"id"`
	StartDate      core.DayDate `json:"start_date"`
	EndDate        core.DayDate `json:"end_date"`
	TargetBalance  core.Minutes `json:"target_balance"`
	CurrentBalance core.Minutes `json:"current_balance"`
	Status         PeriodStatus `json:"status"`
}

// targetMet: the balance magnitude is back within the target magnitude.
func (p CompensationPeriod) targetMet(balance core.Minutes) bool {
	return balance.Abs().LessThanOrEqual(p.TargetBalance.Abs())
}

// =============================================================================
// STORES
// =============================================================================

// LedgerStore is the append-only transaction log. No update, no delete.
type LedgerStore interface {
	// AppendTransaction persists a transaction. The only write operation.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// TransactionsFor returns all transactions for the employee ordered by
	// (date, createdAt) ascending.
	TransactionsFor(ctx context.Context, employeeID core.EmployeeID) ([]Transaction, error)

	// ApprovedBySession returns approved transactions referencing a session.
	// Used for the duplicate-reference check.
	ApprovedBySession(ctx context.Context, employeeID core.EmployeeID, sessionID core.SessionID) ([]Transaction, error)

	// ApprovedByRequest returns approved transactions referencing an edit
	// request. Keeps materialization idempotent on retried decisions.
	ApprovedByRequest(ctx context.Context, employeeID core.EmployeeID, requestID core.RequestID) ([]Transaction, error)
}

// BankStore persists the per-employee bank records. GetBank returns
// (nil, nil) when the employee has no bank yet.
type BankStore interface {
	GetBank(ctx context.Context, employeeID core.EmployeeID) (*HourBank, error)
	SaveBank(ctx context.Context, bank *HourBank) error
	ListBanks(ctx context.Context) ([]*HourBank, error)
}

// =============================================================================
// SUMMARY - Read model exposed to collaborators
// =============================================================================

type Summary struct {
	EmployeeID       core.EmployeeID      `json:"employee_id"`
	Balance          core.Minutes         `json:"balance"`
	BalanceFormatted string               `json:"balance_formatted"` // e.g. "-1h 15min"
	MaxPositive      core.Minutes         `json:"max_positive"`
	MaxNegative      core.Minutes         `json:"max_negative"`
	PendingCount     int                  `json:"pending_count"`
	Alerts           []Alert              `json:"alerts"`
	Periods          []CompensationPeriod `json:"periods"`
}
