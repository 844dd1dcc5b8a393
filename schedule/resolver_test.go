package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/schedule"
	"github.com/chronon/attendance-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// standardWeek: Mon-Fri 09:00-18:00 with a required unpaid 30-60min lunch.
// Expected minutes per working day: 540 - 30 = 510.
func standardWeek(id string) schedule.WorkSchedule {
	shift := schedule.WorkShift{Start: core.MustTimeOfDay("09:00"), End: core.MustTimeOfDay("18:00")}
	days := map[time.Weekday][]schedule.WorkShift{}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		days[wd] = []schedule.WorkShift{shift}
	}
	return schedule.WorkSchedule{
		ID:   id,
		Name: "standard 9-to-6",
		Days: days,
		Breaks: []schedule.BreakConfig{{
			Type:            "lunch",
			WindowStart:     core.MustTimeOfDay("12:00"),
			WindowEnd:       core.MustTimeOfDay("14:00"),
			Required:        true,
			MinimumDuration: 30,
			MaximumDuration: 60,
		}},
		Tolerance:     schedule.Tolerance{EntryMinutes: 10, ExitMinutes: 10, LunchMinutes: 5},
		AllowOvertime: true,
	}
}

func assign(t *testing.T, store *memory.Store, employeeID string, sched schedule.WorkSchedule,
	start core.DayDate, end *core.DayDate, createdAt time.Time) schedule.ScheduleAssignment {

	a := schedule.ScheduleAssignment{
		ID:         "assign-" + sched.ID,
		EmployeeID: core.EmployeeID(employeeID),
		Schedule:   sched,
		StartDate:  start,
		EndDate:    end,
		CreatedAt:  createdAt,
	}
	require.NoError(t, store.SaveAssignment(context.Background(), a))
	return a
}

// =============================================================================
// RESOLUTION TESTS
// =============================================================================

func TestResolver_WorkingDay(t *testing.T) {
	// GIVEN: An open-ended standard assignment
	// WHEN: Resolving a covered Monday
	// THEN: The day carries the shift and 510 expected minutes

	store := memory.New()
	resolver := schedule.NewResolver(store)

	start := core.NewDayDate(2025, time.June, 1)
	assign(t, store, "emp-1", standardWeek("std"), start, nil, time.Now())

	monday := core.NewDayDate(2025, time.June, 2)
	day, err := resolver.Resolve(context.Background(), "emp-1", monday)
	require.NoError(t, err)

	require.Len(t, day.Shifts, 1)
	assert.Equal(t, core.MustTimeOfDay("09:00"), day.Shifts[0].Start)
	assert.Equal(t, int64(510), day.ExpectedMinutes, "9h shift minus 30min required unpaid lunch")
	assert.True(t, day.AllowOvertime)
	assert.Empty(t, day.Warnings)
}

func TestResolver_NonWorkingDay_ZeroExpected(t *testing.T) {
	// GIVEN: A Mon-Fri schedule
	// WHEN: Resolving a Sunday
	// THEN: No shifts and zero expected minutes, but resolution succeeds

	store := memory.New()
	resolver := schedule.NewResolver(store)

	assign(t, store, "emp-1", standardWeek("std"), core.NewDayDate(2025, time.June, 1), nil, time.Now())

	sunday := core.NewDayDate(2025, time.June, 8)
	day, err := resolver.Resolve(context.Background(), "emp-1", sunday)
	require.NoError(t, err)

	assert.Empty(t, day.Shifts)
	assert.Equal(t, int64(0), day.ExpectedMinutes)
}

func TestResolver_NoAssignment_Fails(t *testing.T) {
	// GIVEN: No assignment covers the date
	// WHEN: Resolving
	// THEN: ErrNoScheduleAssigned

	store := memory.New()
	resolver := schedule.NewResolver(store)

	_, err := resolver.Resolve(context.Background(), "emp-1", core.NewDayDate(2025, time.June, 2))
	assert.ErrorIs(t, err, core.ErrNoScheduleAssigned)
}

func TestResolver_DateOutsideAssignmentInterval_Fails(t *testing.T) {
	// GIVEN: An assignment bounded to June
	// WHEN: Resolving a July date
	// THEN: ErrNoScheduleAssigned

	store := memory.New()
	resolver := schedule.NewResolver(store)

	end := core.NewDayDate(2025, time.June, 30)
	assign(t, store, "emp-1", standardWeek("std"), core.NewDayDate(2025, time.June, 1), &end, time.Now())

	_, err := resolver.Resolve(context.Background(), "emp-1", core.NewDayDate(2025, time.July, 1))
	assert.ErrorIs(t, err, core.ErrNoScheduleAssigned)
}

func TestResolver_OverlappingAssignments_NewestWinsWithWarning(t *testing.T) {
	// GIVEN: Two assignments cover the same date; the newer one allows no overtime
	// WHEN: Resolving
	// THEN: The most recently created assignment wins and a warning surfaces

	store := memory.New()
	resolver := schedule.NewResolver(store)

	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	start := core.NewDayDate(2025, time.June, 1)

	assign(t, store, "emp-1", standardWeek("old"), start, nil, base)

	newer := standardWeek("new")
	newer.AllowOvertime = false
	assign(t, store, "emp-1", newer, start, nil, base.Add(time.Hour))

	day, err := resolver.Resolve(context.Background(), "emp-1", core.NewDayDate(2025, time.June, 2))
	require.NoError(t, err)

	assert.False(t, day.AllowOvertime, "newer assignment should win")
	require.Len(t, day.Warnings, 1)
	assert.Contains(t, day.Warnings[0], "assign-new")
}

func TestResolver_PaidBreakDoesNotReduceExpectedMinutes(t *testing.T) {
	// GIVEN: A schedule whose only required break is paid
	// WHEN: Resolving a working day
	// THEN: The expected minutes equal the full shift length

	store := memory.New()
	resolver := schedule.NewResolver(store)

	sched := standardWeek("paid")
	sched.Breaks[0].Paid = true
	assign(t, store, "emp-1", sched, core.NewDayDate(2025, time.June, 1), nil, time.Now())

	day, err := resolver.Resolve(context.Background(), "emp-1", core.NewDayDate(2025, time.June, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(540), day.ExpectedMinutes)
}

func TestResolver_OptionalUnpaidBreakDoesNotReduceExpectedMinutes(t *testing.T) {
	// GIVEN: An unpaid break that is not required
	// WHEN: Resolving
	// THEN: The expectation is the full shift length

	store := memory.New()
	resolver := schedule.NewResolver(store)

	sched := standardWeek("opt")
	sched.Breaks[0].Required = false
	assign(t, store, "emp-1", sched, core.NewDayDate(2025, time.June, 1), nil, time.Now())

	day, err := resolver.Resolve(context.Background(), "emp-1", core.NewDayDate(2025, time.June, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(540), day.ExpectedMinutes)
}

func TestResolver_SplitShiftDay(t *testing.T) {
	// GIVEN: A day with two shifts (06:00-10:00 and 14:00-18:00)
	// WHEN: Resolving
	// THEN: Both shifts are returned and their lengths sum

	store := memory.New()
	resolver := schedule.NewResolver(store)

	sched := schedule.WorkSchedule{
		ID: "split",
		Days: map[time.Weekday][]schedule.WorkShift{
			time.Monday: {
				{Start: core.MustTimeOfDay("06:00"), End: core.MustTimeOfDay("10:00")},
				{Start: core.MustTimeOfDay("14:00"), End: core.MustTimeOfDay("18:00")},
			},
		},
	}
	assign(t, store, "emp-1", sched, core.NewDayDate(2025, time.June, 1), nil, time.Now())

	day, err := resolver.Resolve(context.Background(), "emp-1", core.NewDayDate(2025, time.June, 2))
	require.NoError(t, err)
	require.Len(t, day.Shifts, 2)
	assert.Equal(t, int64(480), day.ExpectedMinutes)
}
