package schedule

import (
	"context"
	"fmt"
	"sort"

	"github.com/chronon/attendance-engine/core"
)

// =============================================================================
// RESOLVER - Pure schedule resolution per (employee, date)
// =============================================================================

type Resolver struct {
	Assignments AssignmentStore
}

func NewResolver(store AssignmentStore) *Resolver {
	return &Resolver{Assignments: store}
}

// Resolve returns the expected shifts, break windows, and tolerances for the
// employee on the given date.
//
// Fails with core.ErrNoScheduleAssigned when no assignment interval contains
// the date. When multiple assignments overlap the date, the most recently
// created one wins and the ambiguity is surfaced on ResolvedDay.Warnings.
func (r *Resolver) Resolve(ctx context.Context, employeeID core.EmployeeID, date core.DayDate) (*ResolvedDay, error) {
	assignments, err := r.Assignments.AssignmentsFor(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("loading assignments for %s: %w", employeeID, err)
	}

	var covering []ScheduleAssignment
	for _, a := range assignments {
		if a.Covers(date) {
			covering = append(covering, a)
		}
	}
	if len(covering) == 0 {
		return nil, fmt.Errorf("%w: employee %s on %s", core.ErrNoScheduleAssigned, employeeID, date)
	}

	var warnings []string
	if len(covering) > 1 {
		sort.Slice(covering, func(i, j int) bool {
			return covering[i].CreatedAt.After(covering[j].CreatedAt)
		})
		warnings = append(warnings, fmt.Sprintf(
			"%d assignments overlap %s; using most recent (%s)",
			len(covering), date, covering[0].ID))
	}

	sched := covering[0].Schedule
	shifts := append([]WorkShift(nil), sched.Days[date.Weekday()]...)

	return &ResolvedDay{
		Date:            date,
		Shifts:          shifts,
		Breaks:          append([]BreakConfig(nil), sched.Breaks...),
		Tolerance:       sched.Tolerance,
		AllowOvertime:   sched.AllowOvertime,
		ExpectedMinutes: expectedMinutes(shifts, sched.Breaks),
		Warnings:        warnings,
	}, nil
}

// expectedMinutes is the scheduled working time for the day: the sum of
// shift lengths minus the minimum duration of each required unpaid break.
// Paid breaks count as worked time and do not reduce the expectation.
func expectedMinutes(shifts []WorkShift, breaks []BreakConfig) int64 {
	var total int64
	for _, s := range shifts {
		total += s.DurationMinutes()
	}
	if total == 0 {
		return 0
	}
	for _, b := range breaks {
		if b.Required && !b.Paid {
			total -= b.MinimumDuration
		}
	}
	if total < 0 {
		return 0
	}
	return total
}
