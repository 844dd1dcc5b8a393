/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Every one of these reflects a caller-correctable precondition surfaced
  synchronously - none are retried automatically. The single exception is
  materialization failure (see editflow), which callers may retry.

ERROR CATEGORIES:
  1. Schedule errors     - No assignment covers the requested date
  2. Session errors      - Clock event ordering violations
  3. Ledger errors       - Amount and reference validation
  4. Workflow errors     - Approval chain violations

USAGE:
  Packages wrap these with structured errors carrying context:

    if errors.Is(err, core.ErrDuplicateReference) {
        var dup *core.DuplicateReferenceError
        errors.As(err, &dup)
    }

SEE ALSO:
  - session/engine.go: raises the clock-event errors
  - hourbank/ledger.go: raises the ledger errors
  - editflow/workflow.go: raises the workflow errors
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoScheduleAssigned is returned when no schedule assignment covers
	// the requested date for the employee.
	ErrNoScheduleAssigned = errors.New("no schedule assigned for date")

	// ErrAlreadyClockedIn is returned when an open session already exists
	// for the employee-day.
	ErrAlreadyClockedIn = errors.New("already clocked in")

	// ErrNoActiveSession is returned when a clock event arrives with no
	// open session to attach it to.
	ErrNoActiveSession = errors.New("no active session")

	// ErrBreakAlreadyActive is returned when starting a break while one
	// is already open.
	ErrBreakAlreadyActive = errors.New("break already active")

	// ErrNoActiveBreak is returned when ending a break that was never started.
	ErrNoActiveBreak = errors.New("no active break")

	// ErrTimestampBeforeClockIn is returned when a clock-out precedes the
	// session's clock-in.
	ErrTimestampBeforeClockIn = errors.New("timestamp before clock-in")

	// ErrInvalidAmount is returned for zero amounts or amounts whose sign
	// contradicts the transaction type.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrDuplicateReference is returned when a session already has an
	// approved ledger transaction of the same originating cause.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrNotCurrentApprover is returned when the decider's role does not
	// match the current approval step.
	ErrNotCurrentApprover = errors.New("not current approver")

	// ErrAlreadyResolved is returned when deciding or cancelling a request
	// that reached a terminal status.
	ErrAlreadyResolved = errors.New("request already resolved")

	// ErrNotRequester is returned when someone other than the requester
	// attempts to cancel an edit request.
	ErrNotRequester = errors.New("only the requester may cancel")

	// ErrSessionNotFound is returned when no session exists for the
	// employee-day.
	ErrSessionNotFound = errors.New("session not found")

	// ErrRequestNotFound is returned when a referenced edit request
	// doesn't exist.
	ErrRequestNotFound = errors.New("edit request not found")

	// ErrBankNotFound is returned when no hour bank exists for the employee.
	ErrBankNotFound = errors.New("hour bank not found")

	// ErrMaterialization is returned when applying an approved edit request
	// fails. The request stays under review; Decide may be retried.
	ErrMaterialization = errors.New("materialization failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateReferenceError identifies the approved transaction that already
// covers the referenced session.
type DuplicateReferenceError struct {
	EmployeeID   EmployeeID
	SessionID    SessionID
	ExistingTxID TransactionID
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("session %s already has approved transaction %s", e.SessionID, e.ExistingTxID)
}

func (e *DuplicateReferenceError) Unwrap() error { return ErrDuplicateReference }

// NotCurrentApproverError reports which role the current step expects.
type NotCurrentApproverError struct {
	RequestID    RequestID
	ExpectedRole string
	ActualRole   string
}

func (e *NotCurrentApproverError) Error() string {
	return fmt.Sprintf("request %s: current step requires role %q, approver has %q",
		e.RequestID, e.ExpectedRole, e.ActualRole)
}

func (e *NotCurrentApproverError) Unwrap() error { return ErrNotCurrentApprover }

// MaterializationError wraps the storage failure behind a failed apply so the
// caller has enough detail to retry Decide safely.
type MaterializationError struct {
	RequestID RequestID
	Cause     error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("request %s: materialization failed: %v", e.RequestID, e.Cause)
}

func (e *MaterializationError) Unwrap() error { return ErrMaterialization }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to a caller-correctable
// precondition (maps to 4xx at the API boundary).
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyClockedIn) ||
		errors.Is(err, ErrNoActiveSession) ||
		errors.Is(err, ErrBreakAlreadyActive) ||
		errors.Is(err, ErrNoActiveBreak) ||
		errors.Is(err, ErrTimestampBeforeClockIn) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrDuplicateReference) ||
		errors.Is(err, ErrNotCurrentApprover) ||
		errors.Is(err, ErrAlreadyResolved) ||
		errors.Is(err, ErrNotRequester)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoScheduleAssigned) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrBankNotFound)
}

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrMaterialization)
}
