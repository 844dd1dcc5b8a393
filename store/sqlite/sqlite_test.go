package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/editflow"
	"github.com/chronon/attendance-engine/hourbank"
	"github.com/chronon/attendance-engine/schedule"
	"github.com/chronon/attendance-engine/session"
	"github.com/chronon/attendance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var day = core.NewDayDate(2025, time.June, 2)

func sampleSession(employeeID string) *session.TimeClockSession {
	in := core.MustTimeOfDay("09:00").On(day)
	out := core.MustTimeOfDay("17:45").On(day)
	lunchEnd := core.MustTimeOfDay("12:45").On(day)
	return &session.TimeClockSession{
		ID:         core.NewSessionID(),
		EmployeeID: core.EmployeeID(employeeID),
		Date:       day,
		ClockIn:    session.ClockRecord{Timestamp: in, Location: "office"},
		ClockOut:   &session.ClockRecord{Timestamp: out, IsManual: true, RegisteredBy: "mgr-1"},
		Breaks: []session.BreakRecord{{
			Type:            "lunch",
			StartedAt:       core.MustTimeOfDay("12:00").On(day),
			EndedAt:         &lunchEnd,
			DurationMinutes: 45,
		}},
		Status:             session.StatusCompleted,
		TotalWorkedMinutes: 480,
		ExpectedMinutes:    510,
		IsLate:             true,
		MinutesLate:        25,
		Justification:      "traffic",
		Flags:              []string{session.FlagBreakAboveMaximum},
		CreatedAt:          time.Now().UTC().Truncate(time.Second),
		UpdatedAt:          time.Now().UTC().Truncate(time.Second),
	}
}

// =============================================================================
// SESSION PERSISTENCE
// =============================================================================

func TestSQLite_SessionRoundTrip(t *testing.T) {
	// GIVEN: A completed session with breaks, flags, and manual provenance
	// WHEN: Saving and loading it
	// THEN: Every field survives the JSON columns intact

	store := newTestStore(t)
	ctx := context.Background()

	s := sampleSession("emp-1")
	require.NoError(t, store.SaveSession(ctx, s))

	got, err := store.GetSession(ctx, "emp-1", day)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, session.StatusCompleted, got.Status)
	assert.True(t, got.ClockIn.Timestamp.Equal(s.ClockIn.Timestamp))
	require.NotNil(t, got.ClockOut)
	assert.True(t, got.ClockOut.IsManual)
	assert.Equal(t, "mgr-1", got.ClockOut.RegisteredBy)
	require.Len(t, got.Breaks, 1)
	assert.Equal(t, int64(45), got.Breaks[0].DurationMinutes)
	assert.Equal(t, []string{session.FlagBreakAboveMaximum}, got.Flags)
	assert.Equal(t, int64(25), got.MinutesLate)
	assert.Equal(t, "traffic", got.Justification)
}

func TestSQLite_GetSession_AbsentIsNilNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetSession(context.Background(), "emp-1", day)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_SaveSession_UpsertsOnEmployeeDay(t *testing.T) {
	// GIVEN: A saved session
	// WHEN: Saving it again with updated fields
	// THEN: One row per employee-day; the update wins

	store := newTestStore(t)
	ctx := context.Background()

	s := sampleSession("emp-1")
	require.NoError(t, store.SaveSession(ctx, s))

	s.Justification = "revised"
	require.NoError(t, store.SaveSession(ctx, s))

	list, err := store.ListSessions(ctx, "emp-1", day, day)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "revised", list[0].Justification)
}

func TestSQLite_ListSessions_RangeAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, d := range []int{4, 2, 3} {
		s := sampleSession("emp-1")
		s.ID = core.NewSessionID()
		s.Date = core.NewDayDate(2025, time.June, d)
		s.ClockIn.Timestamp = core.MustTimeOfDay("09:00").On(s.Date)
		require.NoError(t, store.SaveSession(ctx, s))
	}

	list, err := store.ListSessions(ctx, "emp-1",
		core.NewDayDate(2025, time.June, 2), core.NewDayDate(2025, time.June, 3))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2025-06-02", list[0].Date.String())
	assert.Equal(t, "2025-06-03", list[1].Date.String())
}

func TestSQLite_OpenSessions_AcrossEmployees(t *testing.T) {
	// GIVEN: One open and one completed session
	// WHEN: Listing open sessions
	// THEN: Only the open one returns

	store := newTestStore(t)
	ctx := context.Background()

	open := sampleSession("emp-1")
	open.Status = session.StatusActive
	open.ClockOut = nil
	require.NoError(t, store.SaveSession(ctx, open))
	require.NoError(t, store.SaveSession(ctx, sampleSession("emp-2")))

	got, err := store.OpenSessions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.EmployeeID("emp-1"), got[0].EmployeeID)
	assert.Nil(t, got[0].ClockOut)
}

// =============================================================================
// LEDGER PERSISTENCE
// =============================================================================

func ledgerTx(employeeID string, d core.DayDate, amount int64, status hourbank.TransactionStatus) hourbank.Transaction {
	return hourbank.Transaction{
		ID:         core.NewTransactionID(),
		EmployeeID: core.EmployeeID(employeeID),
		Date:       d,
		Type:       hourbank.TxAdjustment,
		Amount:     core.NewMinutes(amount),
		Reason:     "test",
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestSQLite_TransactionsFor_OrderedByDateThenCreation(t *testing.T) {
	// GIVEN: Transactions inserted out of date order
	// WHEN: Loading them
	// THEN: They come back ordered by (date, createdAt) ascending

	store := newTestStore(t)
	ctx := context.Background()

	for _, d := range []int{5, 2, 9} {
		tx := ledgerTx("emp-1", core.NewDayDate(2025, time.June, d), 10, hourbank.StatusApproved)
		require.NoError(t, store.AppendTransaction(ctx, tx))
	}

	txs, err := store.TransactionsFor(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "2025-06-02", txs[0].Date.String())
	assert.Equal(t, "2025-06-05", txs[1].Date.String())
	assert.Equal(t, "2025-06-09", txs[2].Date.String())
}

func TestSQLite_ApprovedBySessionAndRequest(t *testing.T) {
	// GIVEN: Approved and pending transactions referencing a session and
	//        a request
	// WHEN: Querying by reference
	// THEN: Only the approved matches return

	store := newTestStore(t)
	ctx := context.Background()

	approved := ledgerTx("emp-1", day, 30, hourbank.StatusApproved)
	approved.SessionID = "sess-1"
	approved.RequestID = "req-1"
	require.NoError(t, store.AppendTransaction(ctx, approved))

	pending := ledgerTx("emp-1", day, 15, hourbank.StatusPending)
	pending.SessionID = "sess-1"
	pending.RequestID = "req-1"
	require.NoError(t, store.AppendTransaction(ctx, pending))

	bySession, err := store.ApprovedBySession(ctx, "emp-1", "sess-1")
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	assert.Equal(t, approved.ID, bySession[0].ID)

	byRequest, err := store.ApprovedByRequest(ctx, "emp-1", "req-1")
	require.NoError(t, err)
	require.Len(t, byRequest, 1)
	assert.Equal(t, approved.ID, byRequest[0].ID)
}

func TestSQLite_BankRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetBank(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, got, "absent bank is (nil, nil)")

	bank := &hourbank.HourBank{
		EmployeeID:         "emp-1",
		CurrentBalance:     core.NewMinutes(-75),
		MaxPositiveBalance: core.NewMinutes(2400),
		MaxNegativeBalance: core.NewMinutes(1200),
		Periods: []hourbank.CompensationPeriod{{
			ID:            "cp-1",
			StartDate:     core.NewDayDate(2025, time.June, 1),
			EndDate:       core.NewDayDate(2025, time.June, 30),
			TargetBalance: core.NewMinutes(60),
			Status:        hourbank.PeriodActive,
		}},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveBank(ctx, bank))

	got, err = store.GetBank(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(-75), got.CurrentBalance.Int64())
	require.Len(t, got.Periods, 1)
	assert.Equal(t, hourbank.PeriodActive, got.Periods[0].Status)
	assert.Equal(t, "2025-06-30", got.Periods[0].EndDate.String())

	banks, err := store.ListBanks(ctx)
	require.NoError(t, err)
	assert.Len(t, banks, 1)
}

// =============================================================================
// ASSIGNMENT AND REQUEST PERSISTENCE
// =============================================================================

func TestSQLite_AssignmentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	end := core.NewDayDate(2025, time.December, 31)
	a := schedule.ScheduleAssignment{
		ID:         "assign-1",
		EmployeeID: "emp-1",
		Schedule: schedule.WorkSchedule{
			ID:   "std",
			Name: "standard",
			Days: map[time.Weekday][]schedule.WorkShift{
				time.Monday: {{Start: core.MustTimeOfDay("09:00"), End: core.MustTimeOfDay("18:00")}},
			},
			Tolerance:     schedule.Tolerance{EntryMinutes: 10},
			AllowOvertime: true,
		},
		StartDate: core.NewDayDate(2025, time.June, 1),
		EndDate:   &end,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveAssignment(ctx, a))

	got, err := store.AssignmentsFor(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "assign-1", got[0].ID)
	require.NotNil(t, got[0].EndDate)
	assert.Equal(t, "2025-12-31", got[0].EndDate.String())
	require.Len(t, got[0].Schedule.Days[time.Monday], 1)
	assert.Equal(t, core.MustTimeOfDay("18:00"), got[0].Schedule.Days[time.Monday][0].End)
}

func TestSQLite_RequestRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	newOut := core.MustTimeOfDay("17:30").On(day)
	decidedAt := time.Now().UTC().Truncate(time.Second)
	req := &editflow.EditRequest{
		ID:         core.NewRequestID(),
		EmployeeID: "emp-1",
		TargetDate: day,
		Changes:    editflow.Changes{NewClockOut: &newOut},
		Reason:     "forgot to clock out",
		Status:     editflow.StatusUnderReview,
		Flow: []editflow.ApprovalStep{
			{Role: "supervisor", Decision: editflow.StepApproved, ApproverID: "sup-1", DecidedAt: &decidedAt},
			{Role: "hr_manager", Decision: editflow.StepPending},
		},
		CurrentStep: 1,
		History: []editflow.StatusChange{
			{ToStatus: editflow.StatusPending, Actor: "emp-1", Timestamp: decidedAt},
		},
		CreatedAt: decidedAt,
		UpdatedAt: decidedAt,
	}
	require.NoError(t, store.SaveRequest(ctx, req))

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, editflow.StatusUnderReview, got.Status)
	assert.Equal(t, 1, got.CurrentStep)
	require.Len(t, got.Flow, 2)
	assert.Equal(t, editflow.StepApproved, got.Flow[0].Decision)
	require.NotNil(t, got.Changes.NewClockOut)
	assert.True(t, got.Changes.NewClockOut.Equal(newOut))
	require.Len(t, got.History, 1)

	list, err := store.ListRequests(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A unit of work that writes a session and a transaction, then fails
	// WHEN: The function returns an error
	// THEN: Neither write survives

	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(uow editflow.UnitOfWork) error {
		if err := uow.Sessions().SaveSession(ctx, sampleSession("emp-1")); err != nil {
			return err
		}
		if err := uow.Ledger().AppendTransaction(ctx, ledgerTx("emp-1", day, 30, hourbank.StatusApproved)); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	s, err := store.GetSession(ctx, "emp-1", day)
	require.NoError(t, err)
	assert.Nil(t, s)

	txs, err := store.TransactionsFor(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSQLite_WithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(uow editflow.UnitOfWork) error {
		return uow.Sessions().SaveSession(ctx, sampleSession("emp-1"))
	})
	require.NoError(t, err)

	s, err := store.GetSession(ctx, "emp-1", day)
	require.NoError(t, err)
	require.NotNil(t, s)
}
