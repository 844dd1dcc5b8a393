/*
handlers_test.go - HTTP-level tests for the API surface

Covers routing, request decoding, and the domain-error to status mapping.
Domain behavior itself is tested in the domain packages; these tests drive
the full router against the in-memory store.
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronon/attendance-engine/api"
	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/editflow"
	"github.com/chronon/attendance-engine/hourbank"
	"github.com/chronon/attendance-engine/schedule"
	"github.com/chronon/attendance-engine/session"
	"github.com/chronon/attendance-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var monday = core.NewDayDate(2025, time.June, 2)

func at(hhmm string) time.Time {
	return core.MustTimeOfDay(hhmm).On(monday)
}

// newTestServer wires the full application over the in-memory store, with
// emp-1 assigned a Mon-Fri 09:00-18:00 schedule (510 expected minutes).
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	locks := core.NewEmployeeLocker()

	days := map[time.Weekday][]schedule.WorkShift{}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		days[wd] = []schedule.WorkShift{{Start: core.MustTimeOfDay("09:00"), End: core.MustTimeOfDay("18:00")}}
	}
	require.NoError(t, store.SaveAssignment(context.Background(), schedule.ScheduleAssignment{
		ID:         "assign-std",
		EmployeeID: "emp-1",
		Schedule: schedule.WorkSchedule{
			ID:   "std",
			Days: days,
			Breaks: []schedule.BreakConfig{{
				Type: "lunch", Required: true, MinimumDuration: 30, MaximumDuration: 60,
			}},
			Tolerance:     schedule.Tolerance{EntryMinutes: 10},
			AllowOvertime: true,
		},
		StartDate: core.NewDayDate(2025, time.June, 1),
		CreatedAt: time.Now(),
	}))

	resolver := schedule.NewResolver(store)
	ledger := hourbank.NewLedger(store, store, locks, zerolog.Nop())
	engine := session.NewEngine(store, resolver, ledger, locks, zerolog.Nop())
	roles := core.StaticRoleResolver{"sup-1": "supervisor"}
	workflow := editflow.NewWorkflow(store, store, roles,
		editflow.DefaultChainPolicy{HighImpactMinutes: 120},
		editflow.NewMaterializer(store), ledger, locks, zerolog.Nop())

	handler := api.NewHandler(engine, ledger, workflow, store, zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

// =============================================================================
// CLOCK EVENT ENDPOINTS
// =============================================================================

func TestAPI_ClockInAndOut(t *testing.T) {
	// GIVEN: A scheduled employee
	// WHEN: Clocking in and out over HTTP
	// THEN: 201 then 200, and the session completes

	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/clock-in",
		api.ClockEventRequest{Timestamp: at("09:00"), Location: "office"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/clock-out",
		api.ClockEventRequest{Timestamp: at("18:00")})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var s session.TimeClockSession
	decode(t, resp, &s)
	assert.Equal(t, session.StatusCompleted, s.Status)
	assert.Equal(t, int64(540), s.TotalWorkedMinutes)
}

func TestAPI_DoubleClockIn_Conflict(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/clock-in",
		api.ClockEventRequest{Timestamp: at("09:00")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/clock-in",
		api.ClockEventRequest{Timestamp: at("10:00")})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp api.ErrorResponse
	decode(t, resp, &errResp)
	assert.NotEmpty(t, errResp.Error)
}

func TestAPI_ClockIn_NoSchedule_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-99/clock-in",
		api.ClockEventRequest{Timestamp: at("09:00")})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ClockIn_MissingTimestamp_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/clock-in",
		api.ClockEventRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ClockOut_BeforeClockIn_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/clock-in",
		api.ClockEventRequest{Timestamp: at("09:00")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/clock-out",
		api.ClockEventRequest{Timestamp: at("08:00")})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// SESSION ENDPOINTS
// =============================================================================

func TestAPI_GetSession(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/clock-in",
		api.ClockEventRequest{Timestamp: at("09:00")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/employees/emp-1/sessions/2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var s session.TimeClockSession
	decode(t, resp, &s)
	assert.Equal(t, "2025-06-02", s.Date.String())
	assert.Equal(t, session.StatusActive, s.Status)
}

func TestAPI_GetSession_Missing_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/employees/emp-1/sessions/2025-06-02")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_GetSession_BadDate_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/employees/emp-1/sessions/not-a-date")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// HOUR BANK ENDPOINTS
// =============================================================================

func TestAPI_AdjustmentAndBankSummary(t *testing.T) {
	// GIVEN: A manual -90 adjustment
	// WHEN: Reading the bank summary
	// THEN: The balance and rendering reflect it

	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/adjustments",
		api.AdjustmentRequest{Date: "2025-06-02", Amount: -90, Reason: "migration correction", CreatedBy: "admin-1"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/employees/emp-1/bank")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var summary hourbank.Summary
	decode(t, resp, &summary)
	assert.Equal(t, "-1h 30min", summary.BalanceFormatted)
}

func TestAPI_Adjustment_ZeroAmount_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/adjustments",
		api.AdjustmentRequest{Date: "2025-06-02", Amount: 0, Reason: "noop"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Bank_Missing_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/employees/emp-1/bank")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// EDIT REQUEST ENDPOINTS
// =============================================================================

func completeDay(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/clock-in",
		api.ClockEventRequest{Timestamp: at("09:00")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/clock-out",
		api.ClockEventRequest{Timestamp: at("17:00")})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_EditRequestLifecycle(t *testing.T) {
	// GIVEN: A completed day clocked out too early
	// WHEN: Submitting a correction and the supervisor approves it
	// THEN: The request resolves approved and the bank reflects the delta

	srv := newTestServer(t)
	completeDay(t, srv)

	newOut := at("17:30")
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/requests",
		api.SubmitEditRequest{TargetDate: "2025-06-02", NewClockOut: &newOut, Reason: "badge reader failed"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var req editflow.EditRequest
	decode(t, resp, &req)
	assert.Equal(t, editflow.StatusPending, req.Status)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/requests/%s/decide", srv.URL, req.ID),
		api.DecideRequest{ApproverID: "sup-1", Decision: "approved", Comments: "verified"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decided editflow.EditRequest
	decode(t, resp, &decided)
	assert.Equal(t, editflow.StatusApproved, decided.Status)
}

func TestAPI_Decide_WrongRole_BadRequest(t *testing.T) {
	srv := newTestServer(t)
	completeDay(t, srv)

	newOut := at("17:30")
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/requests",
		api.SubmitEditRequest{TargetDate: "2025-06-02", NewClockOut: &newOut, Reason: "x"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var req editflow.EditRequest
	decode(t, resp, &req)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/requests/%s/decide", srv.URL, req.ID),
		api.DecideRequest{ApproverID: "emp-1", Decision: "approved"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Submit_NoChanges_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/requests",
		api.SubmitEditRequest{TargetDate: "2025-06-02", Reason: "nothing"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetRequest_Missing_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/requests/req-missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Cancel_ByOther_BadRequest(t *testing.T) {
	srv := newTestServer(t)
	completeDay(t, srv)

	newOut := at("17:30")
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-1/requests",
		api.SubmitEditRequest{TargetDate: "2025-06-02", NewClockOut: &newOut, Reason: "x"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var req editflow.EditRequest
	decode(t, resp, &req)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/requests/%s/cancel", srv.URL, req.ID),
		api.CancelRequest{ActorID: "sup-1"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

func TestAPI_AdminSweep(t *testing.T) {
	// GIVEN: Nothing open
	// WHEN: Triggering the sweep
	// THEN: 200 with zero counters; the sweep is safe to run any time

	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/admin/sweep", struct{}{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.SweepResultDTO
	decode(t, resp, &result)
	assert.Equal(t, 0, result.SessionsClosed)
	assert.Equal(t, 0, result.PeriodsResolved)
}

// =============================================================================
// ASSIGNMENT ENDPOINTS
// =============================================================================

func TestAPI_CreateAndListAssignments(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-2/assignments",
		api.CreateAssignmentRequest{
			Schedule:  schedule.WorkSchedule{ID: "night", Name: "night shift"},
			StartDate: "2025-07-01",
		})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created api.AssignmentDTO
	decode(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "2025-07-01", created.StartDate)

	resp, err := http.Get(srv.URL + "/api/employees/emp-2/assignments")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list []api.AssignmentDTO
	decode(t, resp, &list)
	require.Len(t, list, 1)
}

func TestAPI_CreateAssignment_InvertedRange_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	end := "2025-06-01"
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/emp-2/assignments",
		api.CreateAssignmentRequest{
			Schedule:  schedule.WorkSchedule{ID: "x"},
			StartDate: "2025-07-01",
			EndDate:   &end,
		})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
