/*
Package editflow governs retroactive corrections to attendance facts.

PURPOSE:
  An employee cannot edit a posted session or ledger entry directly. They
  file a TimeEditRequest; the request walks an ordered, role-gated approval
  chain; only when the final step approves does the change materialize -
  a compensating ledger transaction plus the session field overwrite, both
  inside one transactional boundary.

STATE MACHINE:

  Pending ──decide──▶ UnderReview ──last approve──▶ Approved
     │                    │   │
     │                    │   └──any reject──▶ Rejected (later steps skipped)
     └──cancel────────────┴──cancel──▶ Cancelled (requester only)

HISTORY:
  Every status transition appends one immutable StatusChange. The history
  is never rewritten, only appended.

SEE ALSO:
  - workflow.go: Submit / Decide / Cancel
  - materialize.go: The atomic apply on final approval
*/
package editflow

import (
	"context"
	"time"

	"github.com/chronon/attendance-engine/core"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// =============================================================================
// APPROVAL STEPS - Ordered chain with typed decisions
// =============================================================================

// StepDecision is the typed outcome of one approval step. An explicit
// "skipped" keeps steps after a rejection distinguishable from ones that
// were never reached.
type StepDecision string

const (
	StepPending  StepDecision = "pending"
	StepApproved StepDecision = "approved"
	StepRejected StepDecision = "rejected"
	StepSkipped  StepDecision = "skipped"
)

type ApprovalStep struct {
	Role       string          `json:"role"`
	Decision   StepDecision    `json:"decision"`
	ApproverID core.EmployeeID `json:"approver_id,omitempty"`
	Comments   string          `json:"comments,omitempty"`
	DecidedAt  *time.Time      `json:"decided_at,omitempty"`
}

// StatusChange is one immutable entry in the request's audit history.
type StatusChange struct {
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	Actor      string    `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"reason,omitempty"`
}

// =============================================================================
// CHANGES - The proposed correction
// =============================================================================

// Changes holds the proposed values alongside the values they replace.
// Nil fields are left untouched by materialization.
type Changes struct {
	OldClockIn  *time.Time `json:"old_clock_in,omitempty"`
	NewClockIn  *time.Time `json:"new_clock_in,omitempty"`
	OldClockOut *time.Time `json:"old_clock_out,omitempty"`
	NewClockOut *time.Time `json:"new_clock_out,omitempty"`

	NewJustification *string `json:"new_justification,omitempty"`
}

// shiftMagnitude is the largest clock movement the change proposes, in
// minutes. Used by the chain policy to decide how many approvers to require.
func (c Changes) shiftMagnitude() int64 {
	var max int64
	if c.OldClockIn != nil && c.NewClockIn != nil {
		if d := abs(core.MinutesBetween(*c.OldClockIn, *c.NewClockIn)); d > max {
			max = d
		}
	}
	if c.OldClockOut != nil && c.NewClockOut != nil {
		if d := abs(core.MinutesBetween(*c.OldClockOut, *c.NewClockOut)); d > max {
			max = d
		}
	}
	return max
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// =============================================================================
// EDIT REQUEST
// =============================================================================

type EditRequest struct {
	ID         core.RequestID  `json:"id"`
	EmployeeID core.EmployeeID `json:"employee_id"`
	TargetDate core.DayDate    `json:"target_date"`
	Changes    Changes         `json:"changes"`
	Reason     string          `json:"reason"`

	Status      Status         `json:"status"`
	Flow        []ApprovalStep `json:"approval_flow"`
	CurrentStep int            `json:"current_approval_step"`
	History     []StatusChange `json:"status_history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// currentStep returns the step awaiting a decision, or nil past the end.
func (r *EditRequest) currentStep() *ApprovalStep {
	if r.CurrentStep < 0 || r.CurrentStep >= len(r.Flow) {
		return nil
	}
	return &r.Flow[r.CurrentStep]
}

// Store persists edit requests. GetRequest returns (nil, nil) when absent.
type Store interface {
	SaveRequest(ctx context.Context, r *EditRequest) error
	GetRequest(ctx context.Context, id core.RequestID) (*EditRequest, error)
	ListRequests(ctx context.Context, employeeID core.EmployeeID) ([]*EditRequest, error)
}

// =============================================================================
// CHAIN POLICY - Who has to approve
// =============================================================================

// ChainPolicy supplies the ordered approver-role list for a request.
type ChainPolicy interface {
	ChainFor(r *EditRequest) []string
}

// DefaultChainPolicy requires a supervisor for every request and adds an HR
// manager when the proposed clock movement exceeds HighImpactMinutes.
type DefaultChainPolicy struct {
	HighImpactMinutes int64
}

func (p DefaultChainPolicy) ChainFor(r *EditRequest) []string {
	chain := []string{"supervisor"}
	if p.HighImpactMinutes > 0 && r.Changes.shiftMagnitude() > p.HighImpactMinutes {
		chain = append(chain, "hr_manager")
	}
	return chain
}
