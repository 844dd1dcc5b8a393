package hourbank

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chronon/attendance-engine/core"
)

// =============================================================================
// COMPENSATION PERIOD SWEEP - Periodic, idempotent resolution
// =============================================================================

// OpenCompensationPeriod starts a new active period on the employee's bank.
func (l *Ledger) OpenCompensationPeriod(ctx context.Context, employeeID core.EmployeeID,
	start, end core.DayDate, target core.Minutes) (*CompensationPeriod, error) {

	if end.Before(start) {
		return nil, fmt.Errorf("%w: period end %s before start %s", core.ErrInvalidAmount, end, start)
	}

	unlock := l.Locks.Acquire(employeeID)
	defer unlock()

	bank, err := l.ensureBankLocked(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	period := CompensationPeriod{
		ID:             "cp-" + uuid.NewString(),
		StartDate:      start,
		EndDate:        end,
		TargetBalance:  target,
		CurrentBalance: bank.CurrentBalance,
		Status:         PeriodActive,
	}
	bank.Periods = append(bank.Periods, period)
	bank.UpdatedAt = l.Now()

	if err := l.Banks.SaveBank(ctx, bank); err != nil {
		return nil, fmt.Errorf("saving bank: %w", err)
	}
	return &period, nil
}

// SweepCompensationPeriods resolves every active period whose end date has
// passed: completed when the balance snapshot meets the target at that
// moment, expired otherwise. The snapshot is stored on the period.
//
// Runs from the periodic daily trigger, not the posting path. Idempotent:
// already-resolved periods are skipped, so the sweep may be retried freely.
func (l *Ledger) SweepCompensationPeriods(ctx context.Context, asOf core.DayDate) (int, error) {
	banks, err := l.Banks.ListBanks(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing banks: %w", err)
	}

	resolved := 0
	for _, b := range banks {
		n, err := l.sweepBank(ctx, b.EmployeeID, asOf)
		if err != nil {
			return resolved, err
		}
		resolved += n
	}
	return resolved, nil
}

func (l *Ledger) sweepBank(ctx context.Context, employeeID core.EmployeeID, asOf core.DayDate) (int, error) {
	unlock := l.Locks.Acquire(employeeID)
	defer unlock()

	bank, err := l.Banks.GetBank(ctx, employeeID)
	if err != nil || bank == nil {
		return 0, err
	}

	resolved := 0
	for i := range bank.Periods {
		p := &bank.Periods[i]
		if p.Status != PeriodActive || !p.EndDate.Before(asOf) {
			continue
		}

		balance, _, err := l.foldApproved(ctx, employeeID)
		if err != nil {
			return resolved, err
		}
		p.CurrentBalance = balance
		if p.targetMet(balance) {
			p.Status = PeriodCompleted
		} else {
			p.Status = PeriodExpired
		}
		resolved++

		l.Log.Info().
			Str("employee", string(employeeID)).
			Str("period", p.ID).
			Str("status", string(p.Status)).
			Str("balance", balance.FormatSigned()).
			Msg("compensation period resolved")
	}

	if resolved > 0 {
		bank.UpdatedAt = l.Now()
		if err := l.Banks.SaveBank(ctx, bank); err != nil {
			return resolved, fmt.Errorf("saving bank: %w", err)
		}
	}
	return resolved, nil
}
