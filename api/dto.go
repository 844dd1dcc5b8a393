/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain entities that
  already carry JSON tags (sessions, transactions, summaries, edit
  requests) are returned directly; DTOs cover the request side and the few
  types whose internal shape should not leak.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO:     Response types returned to clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/chronon/attendance-engine/schedule"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ClockEventRequest is a clock-in or clock-out event. Manual entries carry
// provenance and are otherwise handled exactly like device events.
type ClockEventRequest struct {
	Timestamp    time.Time `json:"timestamp"`
	Location     string    `json:"location,omitempty"`
	IsManual     bool      `json:"is_manual,omitempty"`
	ManualReason string    `json:"manual_reason,omitempty"`
	RegisteredBy string    `json:"registered_by,omitempty"`
}

// StartBreakRequest opens a break of the given configured type.
type StartBreakRequest struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// EndBreakRequest closes the currently open break.
type EndBreakRequest struct {
	Timestamp time.Time `json:"timestamp"`
}

// JustificationRequest records a late-arrival justification on a session.
type JustificationRequest struct {
	Text string `json:"text"`
}

// CreateAssignmentRequest binds a schedule to the employee for a date range.
type CreateAssignmentRequest struct {
	ID        string                `json:"id,omitempty"`
	Schedule  schedule.WorkSchedule `json:"schedule"`
	StartDate string                `json:"start_date"`
	EndDate   *string               `json:"end_date,omitempty"`
}

// AssignmentDTO represents a schedule assignment in API responses.
type AssignmentDTO struct {
	ID         string                `json:"id"`
	EmployeeID string                `json:"employee_id"`
	Schedule   schedule.WorkSchedule `json:"schedule"`
	StartDate  string                `json:"start_date"`
	EndDate    *string               `json:"end_date,omitempty"`
	CreatedAt  string                `json:"created_at"`
}

// AdjustmentRequest posts a manual balance adjustment, in signed minutes.
type AdjustmentRequest struct {
	Date      string `json:"date"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	CreatedBy string `json:"created_by,omitempty"`
}

// CapsRequest updates the bank's balance caps, in positive minutes.
type CapsRequest struct {
	MaxPositive int64 `json:"max_positive"`
	MaxNegative int64 `json:"max_negative"`
}

// OpenPeriodRequest starts a compensation period on the employee's bank.
type OpenPeriodRequest struct {
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	TargetMinutes int64  `json:"target_minutes"`
}

// SubmitEditRequest files a retroactive correction for approval.
type SubmitEditRequest struct {
	TargetDate       string     `json:"target_date"`
	NewClockIn       *time.Time `json:"new_clock_in,omitempty"`
	NewClockOut      *time.Time `json:"new_clock_out,omitempty"`
	NewJustification *string    `json:"new_justification,omitempty"`
	Reason           string     `json:"reason"`
}

// DecideRequest records one approver's decision on the current step.
type DecideRequest struct {
	ApproverID string `json:"approver_id"`
	Decision   string `json:"decision"` // "approved" or "rejected"
	Comments   string `json:"comments,omitempty"`
}

// CancelRequest withdraws an edit request.
type CancelRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

// SweepResultDTO reports what the maintenance sweep resolved.
type SweepResultDTO struct {
	SessionsClosed  int `json:"sessions_closed"`
	PeriodsResolved int `json:"periods_resolved"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAssignmentDTO(a schedule.ScheduleAssignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:         a.ID,
		EmployeeID: string(a.EmployeeID),
		Schedule:   a.Schedule,
		StartDate:  a.StartDate.String(),
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
	if a.EndDate != nil {
		d := a.EndDate.String()
		dto.EndDate = &d
	}
	return dto
}

func toAssignmentDTOs(assignments []schedule.ScheduleAssignment) []AssignmentDTO {
	dtos := make([]AssignmentDTO, len(assignments))
	for i, a := range assignments {
		dtos[i] = toAssignmentDTO(a)
	}
	return dtos
}
