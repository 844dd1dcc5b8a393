/*
workflow.go - Submit / Decide / Cancel

PURPOSE:
  Drives the approval chain. Submit builds the role-ordered flow from the
  chain policy; Decide advances or short-circuits it; Cancel is the
  requester's escape hatch before resolution.

MATERIALIZATION CONTRACT:
  The final approval materializes the change through one transactional
  unit of work (ledger compensation + session overwrite). If that unit
  fails, the request stays UnderReview with a system comment appended and
  nothing is partially applied; the same Decide call may be retried.

SEE ALSO:
  - types.go: Request, steps, history
  - materialize.go: The unit of work
*/
package editflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/hourbank"
	"github.com/chronon/attendance-engine/session"
)

// =============================================================================
// WORKFLOW
// =============================================================================

type Workflow struct {
	Requests Store
	Sessions session.Store
	Roles    core.RoleResolver
	Chain    ChainPolicy
	Mat      *Materializer
	Bank     *hourbank.Ledger
	Locks    *core.EmployeeLocker

	Log zerolog.Logger
	Now func() time.Time
}

func NewWorkflow(requests Store, sessions session.Store, roles core.RoleResolver,
	chain ChainPolicy, mat *Materializer, bank *hourbank.Ledger,
	locks *core.EmployeeLocker, log zerolog.Logger) *Workflow {

	return &Workflow{
		Requests: requests,
		Sessions: sessions,
		Roles:    roles,
		Chain:    chain,
		Mat:      mat,
		Bank:     bank,
		Locks:    locks,
		Log:      log,
		Now:      time.Now,
	}
}

// Submit files a new edit request. The approval flow is built from the
// chain policy; the request starts Pending at step zero. The replaced
// clock values are snapshotted onto Changes for the audit trail.
func (w *Workflow) Submit(ctx context.Context, employeeID core.EmployeeID,
	targetDate core.DayDate, changes Changes, reason string) (*EditRequest, error) {

	unlock := w.Locks.Acquire(employeeID)
	defer unlock()

	if s, err := w.Sessions.GetSession(ctx, employeeID, targetDate); err != nil {
		return nil, err
	} else if s != nil {
		if changes.NewClockIn != nil && changes.OldClockIn == nil {
			t := s.ClockIn.Timestamp
			changes.OldClockIn = &t
		}
		if changes.NewClockOut != nil && changes.OldClockOut == nil && s.ClockOut != nil {
			t := s.ClockOut.Timestamp
			changes.OldClockOut = &t
		}
	}

	now := w.Now()
	req := &EditRequest{
		ID:         core.NewRequestID(),
		EmployeeID: employeeID,
		TargetDate: targetDate,
		Changes:    changes,
		Reason:     reason,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for _, role := range w.Chain.ChainFor(req) {
		req.Flow = append(req.Flow, ApprovalStep{Role: role, Decision: StepPending})
	}
	req.appendHistory("", StatusPending, string(employeeID), "submitted", now)

	if err := w.Requests.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("saving request: %w", err)
	}

	w.Log.Info().
		Str("request", string(req.ID)).
		Str("employee", string(employeeID)).
		Int("steps", len(req.Flow)).
		Msg("edit request submitted")
	return req, nil
}

// Decide records one approver's decision on the current step.
//
// Fails with core.ErrNotCurrentApprover when the approver's role does not
// match the current step, and core.ErrAlreadyResolved on terminal requests.
// An approve on the last step triggers materialization; a reject anywhere
// resolves the whole request and skips the remaining steps.
func (w *Workflow) Decide(ctx context.Context, requestID core.RequestID,
	approverID core.EmployeeID, decision StepDecision, comments string) (*EditRequest, error) {

	req, materialized, err := w.decide(ctx, requestID, approverID, decision, comments)
	if err != nil {
		return nil, err
	}

	// Refresh the cached balance projection outside the request's critical
	// section; the recompute takes the employee lock itself.
	if materialized {
		if _, err := w.Bank.RecomputeBalance(ctx, req.EmployeeID); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (w *Workflow) decide(ctx context.Context, requestID core.RequestID,
	approverID core.EmployeeID, decision StepDecision, comments string) (*EditRequest, bool, error) {

	if decision != StepApproved && decision != StepRejected {
		return nil, false, fmt.Errorf("%w: decision must be approved or rejected", core.ErrInvalidAmount)
	}

	req, err := w.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	if req == nil {
		return nil, false, fmt.Errorf("%w: %s", core.ErrRequestNotFound, requestID)
	}

	unlock := w.Locks.Acquire(req.EmployeeID)
	defer unlock()

	// Re-read under the lock.
	req, err = w.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	if req.Status.Terminal() {
		return nil, false, fmt.Errorf("%w: %s is %s", core.ErrAlreadyResolved, requestID, req.Status)
	}

	step := req.currentStep()
	if step == nil {
		return nil, false, fmt.Errorf("%w: %s has no pending step", core.ErrAlreadyResolved, requestID)
	}

	role, err := w.Roles.RoleOf(ctx, approverID)
	if err != nil {
		return nil, false, err
	}
	if role != step.Role {
		return nil, false, &core.NotCurrentApproverError{
			RequestID:    requestID,
			ExpectedRole: step.Role,
			ActualRole:   role,
		}
	}

	now := w.Now()
	if req.Status == StatusPending {
		req.appendHistory(StatusPending, StatusUnderReview, string(approverID), "review started", now)
		req.Status = StatusUnderReview
	}

	if decision == StepRejected {
		step.Decision = StepRejected
		step.ApproverID = approverID
		step.Comments = comments
		step.DecidedAt = &now
		for i := req.CurrentStep + 1; i < len(req.Flow); i++ {
			req.Flow[i].Decision = StepSkipped
		}
		req.appendHistory(StatusUnderReview, StatusRejected, string(approverID), comments, now)
		req.Status = StatusRejected
		req.UpdatedAt = now

		if err := w.Requests.SaveRequest(ctx, req); err != nil {
			return nil, false, fmt.Errorf("saving request: %w", err)
		}
		w.Log.Info().Str("request", string(requestID)).Msg("edit request rejected")
		return req, false, nil
	}

	lastStep := req.CurrentStep == len(req.Flow)-1
	if lastStep {
		// Materialize before persisting the approval so a failed apply
		// leaves the step pending and Decide retryable.
		if err := w.Mat.Apply(ctx, req, string(approverID)); err != nil {
			req.appendHistory(StatusUnderReview, StatusUnderReview, "system",
				fmt.Sprintf("materialization failed: %v", err), now)
			req.UpdatedAt = now
			if saveErr := w.Requests.SaveRequest(ctx, req); saveErr != nil {
				w.Log.Error().Err(saveErr).Str("request", string(requestID)).Msg("saving failure comment")
			}
			return nil, false, &core.MaterializationError{RequestID: requestID, Cause: err}
		}
	}

	step.Decision = StepApproved
	step.ApproverID = approverID
	step.Comments = comments
	step.DecidedAt = &now
	req.CurrentStep++
	req.UpdatedAt = now

	if lastStep {
		req.appendHistory(StatusUnderReview, StatusApproved, string(approverID), comments, now)
		req.Status = StatusApproved
	}

	if err := w.Requests.SaveRequest(ctx, req); err != nil {
		return nil, false, fmt.Errorf("saving request: %w", err)
	}

	w.Log.Info().
		Str("request", string(requestID)).
		Str("status", string(req.Status)).
		Int("step", req.CurrentStep).
		Msg("edit request decided")
	return req, lastStep, nil
}

// Cancel withdraws the request. Only the requester may cancel, and only
// before a terminal status.
func (w *Workflow) Cancel(ctx context.Context, requestID core.RequestID,
	actorID core.EmployeeID, reason string) (*EditRequest, error) {

	req, err := w.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrRequestNotFound, requestID)
	}

	unlock := w.Locks.Acquire(req.EmployeeID)
	defer unlock()

	req, err = w.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", core.ErrAlreadyResolved, requestID, req.Status)
	}
	if actorID != req.EmployeeID {
		return nil, fmt.Errorf("%w: %s", core.ErrNotRequester, actorID)
	}

	now := w.Now()
	req.appendHistory(req.Status, StatusCancelled, string(actorID), reason, now)
	req.Status = StatusCancelled
	req.UpdatedAt = now

	if err := w.Requests.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("saving request: %w", err)
	}
	return req, nil
}

// Get returns the request with its full flow and history.
func (w *Workflow) Get(ctx context.Context, requestID core.RequestID) (*EditRequest, error) {
	req, err := w.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrRequestNotFound, requestID)
	}
	return req, nil
}

func (r *EditRequest) appendHistory(from, to Status, actor, reason string, at time.Time) {
	r.History = append(r.History, StatusChange{
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Timestamp:  at,
		Reason:     reason,
	})
}
