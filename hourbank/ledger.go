/*
ledger.go - Posting and balance recomputation

PURPOSE:
  Post validates and appends transactions; RecomputeBalance is the single
  authority for the running balance. Any cached balance field is a
  denormalized copy refreshed here, never hand-edited.

DUPLICATE RULE:
  Each worked day contributes at most one net credit/debit. A transaction
  referencing a session that already has an approved transaction of the
  same originating cause is rejected - unless it is a compensation, which
  explicitly supersedes the original.

LOCKING:
  Post and RecomputeBalance take the employee lock. PostWorkedDelta is the
  session engine's entry point and assumes the engine already holds that
  lock (clock-out posts inside its own critical section).

SEE ALSO:
  - types.go: Transaction and store contracts
  - core/lock.go: EmployeeLocker
*/
package hourbank

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chronon/attendance-engine/core"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Txs   LedgerStore
	Banks BankStore
	Locks *core.EmployeeLocker

	// Cap defaults applied when a bank is created on first post.
	DefaultMaxPositive core.Minutes
	DefaultMaxNegative core.Minutes

	Log zerolog.Logger
	Now func() time.Time
}

func NewLedger(txs LedgerStore, banks BankStore, locks *core.EmployeeLocker, log zerolog.Logger) *Ledger {
	return &Ledger{
		Txs:                txs,
		Banks:              banks,
		Locks:              locks,
		DefaultMaxPositive: core.NewMinutes(2400), // 40h
		DefaultMaxNegative: core.NewMinutes(1200), // 20h
		Log:                log,
		Now:                time.Now,
	}
}

// Post validates and appends a transaction.
//
// Fails with core.ErrInvalidAmount for zero amounts or a sign that
// contradicts the type, and core.ErrDuplicateReference when the referenced
// session already carries an approved transaction (compensations excepted).
func (l *Ledger) Post(ctx context.Context, tx Transaction) (*Transaction, error) {
	unlock := l.Locks.Acquire(tx.EmployeeID)
	defer unlock()

	return l.postLocked(ctx, tx)
}

// PostWorkedDelta implements session.BankPoster. The session engine holds
// the employee lock for the whole clock-out critical section, so no lock is
// taken here.
func (l *Ledger) PostWorkedDelta(ctx context.Context, employeeID core.EmployeeID, date core.DayDate,
	sessionID core.SessionID, delta core.Minutes, autoApprove bool, reason string) error {

	txType := TxCredit
	if delta.IsNegative() {
		txType = TxDebit
	}
	status := StatusPending
	if autoApprove {
		status = StatusApproved
	}

	_, err := l.postLocked(ctx, Transaction{
		EmployeeID: employeeID,
		Date:       date,
		Type:       txType,
		Amount:     delta,
		Reason:     reason,
		Status:     status,
		SessionID:  sessionID,
		CreatedBy:  "system",
	})
	return err
}

func (l *Ledger) postLocked(ctx context.Context, tx Transaction) (*Transaction, error) {
	if err := validate(tx); err != nil {
		return nil, err
	}

	if tx.SessionID != "" && tx.Type != TxCompensation {
		existing, err := l.Txs.ApprovedBySession(ctx, tx.EmployeeID, tx.SessionID)
		if err != nil {
			return nil, fmt.Errorf("checking session reference: %w", err)
		}
		for _, ex := range existing {
			if ex.Type != TxCompensation {
				return nil, &core.DuplicateReferenceError{
					EmployeeID:   tx.EmployeeID,
					SessionID:    tx.SessionID,
					ExistingTxID: ex.ID,
				}
			}
		}
	}

	if tx.ID == "" {
		tx.ID = core.NewTransactionID()
	}
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = l.Now()
	}

	if _, err := l.ensureBankLocked(ctx, tx.EmployeeID); err != nil {
		return nil, err
	}
	if err := l.Txs.AppendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("appending transaction: %w", err)
	}

	// Pending and rejected entries never touch the cached balance.
	if tx.Status == StatusApproved {
		if _, err := l.recomputeLocked(ctx, tx.EmployeeID); err != nil {
			return nil, err
		}
	}

	l.Log.Info().
		Str("employee", string(tx.EmployeeID)).
		Str("type", string(tx.Type)).
		Str("status", string(tx.Status)).
		Str("amount", tx.Amount.String()).
		Msg("transaction posted")
	return &tx, nil
}

func validate(tx Transaction) error {
	if tx.Amount.IsZero() {
		return fmt.Errorf("%w: amount is zero", core.ErrInvalidAmount)
	}
	switch tx.Type {
	case TxCredit:
		if tx.Amount.IsNegative() {
			return fmt.Errorf("%w: credit must be positive", core.ErrInvalidAmount)
		}
	case TxDebit:
		if tx.Amount.IsPositive() {
			return fmt.Errorf("%w: debit must be negative", core.ErrInvalidAmount)
		}
	case TxCompensation, TxAdjustment:
		// Either sign.
	default:
		return fmt.Errorf("%w: unknown type %q", core.ErrInvalidAmount, tx.Type)
	}
	return nil
}

// RecomputeBalance folds the approved transactions, ordered by
// (date, createdAt), into the authoritative balance and refreshes the
// cached projection on the bank.
func (l *Ledger) RecomputeBalance(ctx context.Context, employeeID core.EmployeeID) (core.Minutes, error) {
	unlock := l.Locks.Acquire(employeeID)
	defer unlock()

	return l.recomputeLocked(ctx, employeeID)
}

func (l *Ledger) recomputeLocked(ctx context.Context, employeeID core.EmployeeID) (core.Minutes, error) {
	balance, _, err := l.foldApproved(ctx, employeeID)
	if err != nil {
		return core.ZeroMinutes(), err
	}

	bank, err := l.ensureBankLocked(ctx, employeeID)
	if err != nil {
		return core.ZeroMinutes(), err
	}
	bank.CurrentBalance = balance
	bank.UpdatedAt = l.Now()
	if err := l.Banks.SaveBank(ctx, bank); err != nil {
		return core.ZeroMinutes(), fmt.Errorf("saving bank: %w", err)
	}
	return balance, nil
}

// foldApproved is the strict left-fold over the approved subset.
func (l *Ledger) foldApproved(ctx context.Context, employeeID core.EmployeeID) (core.Minutes, int, error) {
	txs, err := l.Txs.TransactionsFor(ctx, employeeID)
	if err != nil {
		return core.ZeroMinutes(), 0, fmt.Errorf("loading transactions: %w", err)
	}
	balance := core.ZeroMinutes()
	pending := 0
	for _, tx := range txs {
		switch tx.Status {
		case StatusApproved:
			balance = balance.Add(tx.Amount)
		case StatusPending:
			pending++
		}
	}
	return balance, pending, nil
}

func (l *Ledger) ensureBankLocked(ctx context.Context, employeeID core.EmployeeID) (*HourBank, error) {
	bank, err := l.Banks.GetBank(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("loading bank: %w", err)
	}
	if bank != nil {
		return bank, nil
	}

	now := l.Now()
	bank = &HourBank{
		EmployeeID:         employeeID,
		CurrentBalance:     core.ZeroMinutes(),
		MaxPositiveBalance: l.DefaultMaxPositive,
		MaxNegativeBalance: l.DefaultMaxNegative,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := l.Banks.SaveBank(ctx, bank); err != nil {
		return nil, fmt.Errorf("creating bank: %w", err)
	}
	return bank, nil
}

// Transactions returns the employee's full transaction history.
func (l *Ledger) Transactions(ctx context.Context, employeeID core.EmployeeID) ([]Transaction, error) {
	return l.Txs.TransactionsFor(ctx, employeeID)
}

// Summary builds the read model: recomputed balance, formatted rendering,
// alerts, and period state. Read-only; works off one consistent load of the
// transaction list rather than the cached projection.
func (l *Ledger) Summary(ctx context.Context, employeeID core.EmployeeID, asOf core.DayDate) (*Summary, error) {
	balance, pending, err := l.foldApproved(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	bank, err := l.Banks.GetBank(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("loading bank: %w", err)
	}
	if bank == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrBankNotFound, employeeID)
	}

	view := *bank
	view.CurrentBalance = balance

	return &Summary{
		EmployeeID:       employeeID,
		Balance:          balance,
		BalanceFormatted: balance.FormatSigned(),
		MaxPositive:      bank.MaxPositiveBalance,
		MaxNegative:      bank.MaxNegativeBalance,
		PendingCount:     pending,
		Alerts:           GenerateAlerts(&view, asOf),
		Periods:          append([]CompensationPeriod(nil), bank.Periods...),
	}, nil
}

// SetCaps updates the bank's cap configuration.
func (l *Ledger) SetCaps(ctx context.Context, employeeID core.EmployeeID, maxPositive, maxNegative core.Minutes) (*HourBank, error) {
	unlock := l.Locks.Acquire(employeeID)
	defer unlock()

	bank, err := l.ensureBankLocked(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	bank.MaxPositiveBalance = maxPositive
	bank.MaxNegativeBalance = maxNegative
	bank.UpdatedAt = l.Now()
	if err := l.Banks.SaveBank(ctx, bank); err != nil {
		return nil, fmt.Errorf("saving bank: %w", err)
	}
	return bank, nil
}
