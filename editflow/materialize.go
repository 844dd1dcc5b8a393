/*
materialize.go - Atomic application of an approved edit request

PURPOSE:
  On final approval the requested change becomes real: the session's
  disputed fields are overwritten and a compensating transaction posts to
  the hour bank. Both writes happen inside one unit of work - either both
  commit or neither does. A half-applied correction would desynchronize
  the session from the ledger it feeds.

IDEMPOTENCY:
  A retried Decide after a commit-then-crash must not post a second
  compensation. Apply first checks for an approved transaction already
  referencing the request and treats its presence as "already applied".

SEE ALSO:
  - workflow.go: Caller; reverts to UnderReview on failure
  - hourbank/types.go, session/types.go: The two stores in the unit
*/
package editflow

import (
	"context"
	"fmt"
	"time"

	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/hourbank"
	"github.com/chronon/attendance-engine/session"
)

// =============================================================================
// UNIT OF WORK - Transactional boundary spanning session and ledger
// =============================================================================

// UnitOfWork exposes the session and ledger stores bound to one storage
// transaction.
type UnitOfWork interface {
	Sessions() session.Store
	Ledger() hourbank.LedgerStore
}

// TxRunner executes fn within a storage transaction. If fn returns an
// error the transaction rolls back and none of its writes survive.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// =============================================================================
// MATERIALIZER
// =============================================================================

type Materializer struct {
	Tx  TxRunner
	Now func() time.Time
}

func NewMaterializer(tx TxRunner) *Materializer {
	return &Materializer{Tx: tx, Now: time.Now}
}

// Apply overwrites the session's disputed fields and posts the compensating
// transaction, atomically. The compensation amount is the worked-minute
// difference the correction produces; a correction that changes no worked
// time (justification text only) posts no transaction.
func (m *Materializer) Apply(ctx context.Context, req *EditRequest, appliedBy string) error {
	return m.Tx.WithTx(ctx, func(uow UnitOfWork) error {
		s, err := uow.Sessions().GetSession(ctx, req.EmployeeID, req.TargetDate)
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("%w: employee %s on %s", core.ErrSessionNotFound, req.EmployeeID, req.TargetDate)
		}

		applied, err := uow.Ledger().ApprovedByRequest(ctx, req.EmployeeID, req.ID)
		if err != nil {
			return err
		}
		if len(applied) > 0 {
			// Already materialized by an earlier attempt.
			return nil
		}

		oldWorked := s.TotalWorkedMinutes

		if req.Changes.NewClockIn != nil {
			s.ClockIn.Timestamp = *req.Changes.NewClockIn
			s.ClockIn.IsManual = true
			s.ClockIn.RegisteredBy = appliedBy
		}
		if req.Changes.NewClockOut != nil {
			if s.ClockOut == nil {
				s.ClockOut = &session.ClockRecord{}
			}
			s.ClockOut.Timestamp = *req.Changes.NewClockOut
			s.ClockOut.IsManual = true
			s.ClockOut.RegisteredBy = appliedBy
			if s.Status == session.StatusInterrupted {
				s.Status = session.StatusCompleted
			}
		}
		if req.Changes.NewJustification != nil {
			s.Justification = *req.Changes.NewJustification
		}
		if s.ClockOut != nil && !s.ClockOut.Timestamp.After(s.ClockIn.Timestamp) {
			return fmt.Errorf("%w: corrected clock-out %s", core.ErrTimestampBeforeClockIn,
				s.ClockOut.Timestamp.Format(time.RFC3339))
		}

		s.Recalculate(s.OvertimeBillable)
		s.UpdatedAt = m.Now()

		if err := uow.Sessions().SaveSession(ctx, s); err != nil {
			return fmt.Errorf("overwriting session: %w", err)
		}

		delta := core.NewMinutes(s.TotalWorkedMinutes - oldWorked)
		if delta.IsZero() {
			return nil
		}

		comp := hourbank.Transaction{
			ID:         core.NewTransactionID(),
			EmployeeID: req.EmployeeID,
			Date:       req.TargetDate,
			Type:       hourbank.TxCompensation,
			Amount:     delta,
			Reason:     "approved edit request " + string(req.ID),
			Status:     hourbank.StatusApproved,
			SessionID:  s.ID,
			RequestID:  req.ID,
			CreatedBy:  appliedBy,
			CreatedAt:  m.Now(),
		}
		if err := uow.Ledger().AppendTransaction(ctx, comp); err != nil {
			return fmt.Errorf("posting compensation: %w", err)
		}
		return nil
	})
}
