/*
Package schedule resolves an employee's expected work day.

PURPOSE:
  Given an employee and a date, answer: which shifts were they expected to
  work, which break windows apply, and how much grace do clock events get?
  The resolver is a pure function over externally configured schedules -
  it holds no state and produces no side effects, so results are cacheable
  per (employee, date).

KEY CONCEPTS:
  - WorkSchedule: the employer's configured week (shifts per weekday,
    break windows, tolerances). Immutable once assigned to a period.
  - ScheduleAssignment: versions a schedule onto an employee for a date
    interval. Never mutated in place; a new assignment supersedes the old
    one as of its start date.
  - ResolvedDay: the flattened answer the session engine consumes.

OVERLAP RULE:
  Two assignments covering the same date is a data-integrity violation
  upstream. The resolver still answers deterministically: the most
  recently created assignment wins, and the ambiguity is surfaced as a
  warning on the ResolvedDay.

SEE ALSO:
  - resolver.go: Resolve implementation
  - session/engine.go: The only consumer of ResolvedDay
*/
package schedule

import (
	"context"
	"time"

	"github.com/chronon/attendance-engine/core"
)

// =============================================================================
// SCHEDULE CONFIGURATION
// =============================================================================

// WorkShift is one contiguous expected working window in a day.
type WorkShift struct {
	Start    core.TimeOfDay `json:"start"`
	End      core.TimeOfDay `json:"end"`
	Flexible bool           `json:"flexible"`
}

// DurationMinutes is the shift length. Shifts never span midnight.
func (s WorkShift) DurationMinutes() int64 {
	return int64(s.End - s.Start)
}

// BreakConfig is a configured break window. Compliance with the min/max
// duration is advisory: violations flag the break, they never reject it.
type BreakConfig struct {
	Type            string         `json:"type"` // e.g. "lunch", "rest"
	WindowStart     core.TimeOfDay `json:"window_start"`
	WindowEnd       core.TimeOfDay `json:"window_end"`
	Paid            bool           `json:"paid"`
	Required        bool           `json:"required"`
	MinimumDuration int64          `json:"minimum_duration"` // minutes
	MaximumDuration int64          `json:"maximum_duration"` // minutes
}

// Tolerance is the grace window, in minutes, within which a clock event is
// not considered late or early. It is symmetric grace around the expected
// time, not a shift of it.
type Tolerance struct {
	EntryMinutes int64 `json:"entry_minutes"`
	ExitMinutes  int64 `json:"exit_minutes"`
	LunchMinutes int64 `json:"lunch_minutes"`
}

// WorkSchedule is the employer's configured week.
type WorkSchedule struct {
	ID            string                       `json:"id"`
	Name          string                       `json:"name"`
	Days          map[time.Weekday][]WorkShift `json:"days"`
	Breaks        []BreakConfig                `json:"breaks"`
	Tolerance     Tolerance                    `json:"tolerance"`
	AllowOvertime bool                         `json:"allow_overtime"`
}

// =============================================================================
// ASSIGNMENT - Versions a schedule onto an employee for a date interval
// =============================================================================

// ScheduleAssignment binds a schedule to an employee for [StartDate, EndDate].
// A nil EndDate means open-ended. The schedule config is snapshotted into the
// assignment so later edits to a schedule never rewrite history.
type ScheduleAssignment struct {
	ID         string
	EmployeeID core.EmployeeID
	Schedule   WorkSchedule
	StartDate  core.DayDate
	EndDate    *core.DayDate
	CreatedAt  time.Time
}

// Covers reports whether the assignment interval contains the date.
func (a ScheduleAssignment) Covers(date core.DayDate) bool {
	if date.Before(a.StartDate) {
		return false
	}
	if a.EndDate != nil && date.After(*a.EndDate) {
		return false
	}
	return true
}

// AssignmentStore persists schedule assignments.
type AssignmentStore interface {
	SaveAssignment(ctx context.Context, a ScheduleAssignment) error
	AssignmentsFor(ctx context.Context, employeeID core.EmployeeID) ([]ScheduleAssignment, error)
}

// =============================================================================
// RESOLVED DAY - What the session engine consumes
// =============================================================================

// ResolvedDay is the expected work day for one employee-date.
type ResolvedDay struct {
	Date            core.DayDate
	Shifts          []WorkShift
	Breaks          []BreakConfig
	Tolerance       Tolerance
	AllowOvertime   bool
	ExpectedMinutes int64
	Warnings        []string
}

// BreakByType finds the break config for a break type, if configured.
func (d ResolvedDay) BreakByType(breakType string) (BreakConfig, bool) {
	for _, b := range d.Breaks {
		if b.Type == breakType {
			return b, true
		}
	}
	return BreakConfig{}, false
}
