/*
Package session turns clock events into worked-time sessions.

PURPOSE:
  One TimeClockSession covers one employee, one calendar date. The engine
  consumes clock-in/out and break events, validates their ordering against
  the session state machine, and computes worked minutes, lateness, and
  overtime against the resolved schedule.

STATE MACHINE:

  NotStarted ──clockIn──▶ Active ◀─endBreak── OnBreak
                            │  └──startBreak──────▲
                            │
                      clockOut│         forced day-close
                            ▼                  │
                        Completed        Interrupted

COMPLIANCE IS ADVISORY:
  Short breaks, long breaks, and unapproved overtime are flagged on the
  session, never rejected. Only ordering violations (double clock-in,
  clock-out before clock-in) are errors.

SEE ALSO:
  - engine.go: Clock event handling
  - schedule: Supplies the expected day the session is measured against
*/
package session

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
	StatusActive      Status = "active"
	StatusOnBreak     Status = "on_break"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
)

// Open reports whether the session still accepts clock events.
func (s Status) Open() bool { return s == StatusActive || s == StatusOnBreak }

// =============================================================================
// COMPLIANCE FLAGS - Warnings attached to the entity, never blocking
// =============================================================================

const (
	FlagBreakBelowMinimum        = "break_below_minimum"
	FlagBreakAboveMaximum        = "break_above_maximum"
	FlagUnapprovedOvertime       = "unapproved_overtime"
	FlagLateWithoutJustification = "late_without_justification"
)

// =============================================================================
// RECORDS
// =============================================================================

// ClockRecord is a single clock event. Manual entries carry provenance but
// are otherwise treated identically to device-sourced ones.
type ClockRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Location     string    `json:"location,omitempty"`
	IsManual     bool      `json:"is_manual,omitempty"`
	ManualReason string    `json:"manual_reason,omitempty"`
	RegisteredBy string    `json:"registered_by,omitempty"`
}

// BreakRecord is one break taken inside the session.
type BreakRecord struct {
	Type            string     `json:"type"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMinutes int64      `json:"duration_minutes"`
	Paid            bool       `json:"paid"`
	Flags           []string   `json:"flags,omitempty"`
}

func (b BreakRecord) Completed() bool { return b.EndedAt != nil }

// =============================================================================
// TIME CLOCK SESSION - One employee, one calendar date
// =============================================================================

type TimeClockSession struct {
	ID         core.SessionID  `json:"id"`
	EmployeeID core.EmployeeID `json:"employee_id"`
	Date       core.DayDate    `json:"date"`

	ClockIn  ClockRecord   `json:"clock_in"`
	ClockOut *ClockRecord  `json:"clock_out,omitempty"`
	Breaks   []BreakRecord `json:"breaks"`

	Status             Status `json:"status"`
	TotalWorkedMinutes int64  `json:"total_worked_minutes"`
	ExpectedMinutes    int64  `json:"expected_minutes"`
	OvertimeMinutes    int64  `json:"overtime_minutes"`
	OvertimeBillable   bool   `json:"overtime_billable"`

	IsLate        bool   `json:"is_late"`
	MinutesLate   int64  `json:"minutes_late"`
	Justification string `json:"justification,omitempty"`

	Flags []string `json:"flags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// openBreak returns the index of the currently open break, or -1.
func (s *TimeClockSession) openBreak() int {
	for i := range s.Breaks {
		if !s.Breaks[i].Completed() {
			return i
		}
	}
	return -1
}

// unpaidBreakMinutes sums completed unpaid break durations. Paid breaks
// count as worked time.
func (s *TimeClockSession) unpaidBreakMinutes() int64 {
	var total int64
	for _, b := range s.Breaks {
		if b.Completed() && !b.Paid {
			total += b.DurationMinutes
		}
	}
	return total
}

// Recalculate recomputes worked and overtime minutes from the clock records
// and breaks currently on the session. It is the single place the worked-time
// formula lives: elapsed session time minus unpaid completed break durations.
// Used on clock-out, forced close, and when an approved edit overwrites the
// disputed clock fields.
func (s *TimeClockSession) Recalculate(allowOvertime bool) {
	if s.ClockOut == nil {
		return
	}
	elapsed := core.MinutesBetween(s.ClockIn.Timestamp, s.ClockOut.Timestamp)
	worked := elapsed - s.unpaidBreakMinutes()
	if worked < 0 {
		worked = 0
	}
	s.TotalWorkedMinutes = worked

	overtime := worked - s.ExpectedMinutes
	if overtime < 0 {
		overtime = 0
	}
	s.OvertimeMinutes = overtime
	s.OvertimeBillable = allowOvertime
	if overtime > 0 && !allowOvertime {
		s.addFlag(FlagUnapprovedOvertime)
	}
}

func (s *TimeClockSession) addFlag(flag string) {
	for _, f := range s.Flags {
		if f == flag {
			return
		}
	}
	s.Flags = append(s.Flags, flag)
}

// WorkedDelta is the signed minute delta this session contributes to the
// hour bank: worked time minus expected time.
func (s *TimeClockSession) WorkedDelta() core.Minutes {
	return core.NewMinutes(s.TotalWorkedMinutes - s.ExpectedMinutes)
}

// =============================================================================
// STORE - Session persistence, keyed (employee, date)
// =============================================================================

// Store persists sessions. Get returns (nil, nil) when no session exists
// for the employee-day; absence is a normal state for clock-in.
type Store interface {
	GetSession(ctx context.Context, employeeID core.EmployeeID, date core.DayDate) (*TimeClockSession, error)
	SaveSession(ctx context.Context, s *TimeClockSession) error
	ListSessions(ctx context.Context, employeeID core.EmployeeID, from, to core.DayDate) ([]*TimeClockSession, error)

	// OpenSessions returns every active/on-break session across employees.
	// Used by forced day-close.
	OpenSessions(ctx context.Context) ([]*TimeClockSession, error)
}
