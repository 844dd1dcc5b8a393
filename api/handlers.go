/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the attendance core via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Clock events:
    POST /api/employees/{id}/clock-in      Open the day's session
    POST /api/employees/{id}/clock-out     Complete the session
    POST /api/employees/{id}/breaks/start  Open a break
    POST /api/employees/{id}/breaks/end    Close the open break

  Sessions:
    GET  /api/employees/{id}/sessions                       List in range
    GET  /api/employees/{id}/sessions/{date}                Get one
    PUT  /api/employees/{id}/sessions/{date}/justification  Record justification

  Schedules:
    GET  /api/employees/{id}/assignments   List schedule assignments
    POST /api/employees/{id}/assignments   Assign a schedule

  Hour bank:
    GET  /api/employees/{id}/bank          Balance summary with alerts
    PUT  /api/employees/{id}/bank/caps     Update balance caps
    POST /api/employees/{id}/bank/periods  Open compensation period
    GET  /api/employees/{id}/transactions  Ledger history
    POST /api/employees/{id}/adjustments   Manual adjustment

  Edit requests:
    GET  /api/employees/{id}/requests      List employee's requests
    POST /api/employees/{id}/requests      Submit a correction
    GET  /api/requests/{id}                Get with flow and history
    POST /api/requests/{id}/decide         Approve/reject current step
    POST /api/requests/{id}/cancel         Withdraw (requester only)

  Admin:
    POST /api/admin/sweep                  Run day-close + period sweep now

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (double clock-in, duplicate reference, already resolved)
  - 500: Internal errors (including retryable materialization failures)

SECURITY NOTE:
  No authentication middleware. Identity and role management live outside
  this module; the API trusts the IDs it is handed.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/editflow"
	"github.com/chronon/attendance-engine/hourbank"
	"github.com/chronon/attendance-engine/schedule"
	"github.com/chronon/attendance-engine/session"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine      *session.Engine
	Ledger      *hourbank.Ledger
	Workflow    *editflow.Workflow
	Assignments schedule.AssignmentStore

	Log zerolog.Logger
}

// NewHandler creates a new handler with the given collaborators.
func NewHandler(engine *session.Engine, ledger *hourbank.Ledger, workflow *editflow.Workflow,
	assignments schedule.AssignmentStore, log zerolog.Logger) *Handler {

	return &Handler{
		Engine:      engine,
		Ledger:      ledger,
		Workflow:    workflow,
		Assignments: assignments,
		Log:         log,
	}
}

// =============================================================================
// CLOCK EVENT HANDLERS
// =============================================================================

// ClockIn opens the session for the employee-day.
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	var req ClockEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Timestamp.IsZero() {
		writeError(w, http.StatusBadRequest, "timestamp is required", nil)
		return
	}

	s, err := h.Engine.ClockIn(r.Context(), employeeID, clockRecord(req))
	if err != nil {
		writeDomainError(w, "Clock-in failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ClockOut completes the session and posts the worked delta.
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	var req ClockEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Timestamp.IsZero() {
		writeError(w, http.StatusBadRequest, "timestamp is required", nil)
		return
	}

	s, err := h.Engine.ClockOut(r.Context(), employeeID, clockRecord(req))
	if err != nil {
		writeDomainError(w, "Clock-out failed", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// StartBreak opens a break on the active session.
func (h *Handler) StartBreak(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	var req StartBreakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Type == "" || req.Timestamp.IsZero() {
		writeError(w, http.StatusBadRequest, "type and timestamp are required", nil)
		return
	}

	s, err := h.Engine.StartBreak(r.Context(), employeeID, req.Type, req.Timestamp)
	if err != nil {
		writeDomainError(w, "Starting break failed", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// EndBreak closes the open break.
func (h *Handler) EndBreak(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	var req EndBreakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Timestamp.IsZero() {
		writeError(w, http.StatusBadRequest, "timestamp is required", nil)
		return
	}

	s, err := h.Engine.EndBreak(r.Context(), employeeID, req.Timestamp)
	if err != nil {
		writeDomainError(w, "Ending break failed", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func clockRecord(req ClockEventRequest) session.ClockRecord {
	return session.ClockRecord{
		Timestamp:    req.Timestamp,
		Location:     req.Location,
		IsManual:     req.IsManual,
		ManualReason: req.ManualReason,
		RegisteredBy: req.RegisteredBy,
	}
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// GetSession returns the session for one employee-day.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))
	date, err := core.ParseDayDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	s, err := h.Engine.Sessions.GetSession(r.Context(), employeeID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load session", err)
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListSessions returns the employee's sessions in a date range. Defaults to
// the last 30 days when no range is given.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	to := core.Today()
	from := to.AddDays(-30)
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := core.ParseDayDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
		from = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := core.ParseDayDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date", err)
			return
		}
		to = d
	}

	sessions, err := h.Engine.Sessions.ListSessions(r.Context(), employeeID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}
	if sessions == nil {
		sessions = []*session.TimeClockSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// SetJustification records the late-arrival justification.
func (h *Handler) SetJustification(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))
	date, err := core.ParseDayDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	var req JustificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, err := h.Engine.SetJustification(r.Context(), employeeID, date, req.Text)
	if err != nil {
		writeDomainError(w, "Recording justification failed", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// =============================================================================
// SCHEDULE ASSIGNMENT HANDLERS
// =============================================================================

// CreateAssignment binds a schedule to the employee for a date range.
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	var req CreateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	startDate, err := core.ParseDayDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	var endDate *core.DayDate
	if req.EndDate != nil {
		d, err := core.ParseDayDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
			return
		}
		if d.Before(startDate) {
			writeError(w, http.StatusBadRequest, "end_date before start_date", nil)
			return
		}
		endDate = &d
	}

	a := schedule.ScheduleAssignment{
		ID:         req.ID,
		EmployeeID: employeeID,
		Schedule:   req.Schedule,
		StartDate:  startDate,
		EndDate:    endDate,
		CreatedAt:  time.Now(),
	}
	if a.ID == "" {
		a.ID = "assign-" + uuid.NewString()
	}

	if err := h.Assignments.SaveAssignment(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(a))
}

// ListAssignments returns the employee's schedule assignments.
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	assignments, err := h.Assignments.AssignmentsFor(r.Context(), employeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTOs(assignments))
}

// =============================================================================
// HOUR BANK HANDLERS
// =============================================================================

// GetBank returns the balance summary with alerts and period state.
func (h *Handler) GetBank(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	summary, err := h.Ledger.Summary(r.Context(), employeeID, core.Today())
	if err != nil {
		writeDomainError(w, "Failed to load bank", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ListTransactions returns the employee's full ledger history.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	txs, err := h.Ledger.Transactions(r.Context(), employeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	if txs == nil {
		txs = []hourbank.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// CreateAdjustment posts a manual, pre-approved balance adjustment.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := core.ParseDayDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	tx, err := h.Ledger.Post(r.Context(), hourbank.Transaction{
		EmployeeID: employeeID,
		Date:       date,
		Type:       hourbank.TxAdjustment,
		Amount:     core.NewMinutes(req.Amount),
		Reason:     req.Reason,
		Status:     hourbank.StatusApproved,
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, "Adjustment failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// SetCaps updates the bank's balance caps.
func (h *Handler) SetCaps(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	var req CapsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MaxPositive < 0 || req.MaxNegative < 0 {
		writeError(w, http.StatusBadRequest, "caps must be positive magnitudes", nil)
		return
	}

	bank, err := h.Ledger.SetCaps(r.Context(), employeeID,
		core.NewMinutes(req.MaxPositive), core.NewMinutes(req.MaxNegative))
	if err != nil {
		writeDomainError(w, "Updating caps failed", err)
		return
	}
	writeJSON(w, http.StatusOK, bank)
}

// OpenPeriod starts a compensation period on the employee's bank.
func (h *Handler) OpenPeriod(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	var req OpenPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := core.ParseDayDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := core.ParseDayDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	period, err := h.Ledger.OpenCompensationPeriod(r.Context(), employeeID,
		start, end, core.NewMinutes(req.TargetMinutes))
	if err != nil {
		writeDomainError(w, "Opening period failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, period)
}

// =============================================================================
// EDIT REQUEST HANDLERS
// =============================================================================

// SubmitRequest files a retroactive correction for approval.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	var req SubmitEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	targetDate, err := core.ParseDayDate(req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_date (use YYYY-MM-DD)", err)
		return
	}
	if req.NewClockIn == nil && req.NewClockOut == nil && req.NewJustification == nil {
		writeError(w, http.StatusBadRequest, "request proposes no change", nil)
		return
	}

	changes := editflow.Changes{
		NewClockIn:       req.NewClockIn,
		NewClockOut:      req.NewClockOut,
		NewJustification: req.NewJustification,
	}
	created, err := h.Workflow.Submit(r.Context(), employeeID, targetDate, changes, req.Reason)
	if err != nil {
		writeDomainError(w, "Submitting request failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListRequests returns the employee's edit requests with flow and history.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	requests, err := h.Workflow.Requests.ListRequests(r.Context(), employeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	if requests == nil {
		requests = []*editflow.EditRequest{}
	}
	writeJSON(w, http.StatusOK, requests)
}

// GetRequest returns one edit request with its flow and history.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestID := core.RequestID(chi.URLParam(r, "id"))

	req, err := h.Workflow.Get(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, "Failed to load request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DecideRequest records one approver's decision on the current step.
func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	requestID := core.RequestID(chi.URLParam(r, "id"))

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ApproverID == "" {
		writeError(w, http.StatusBadRequest, "approver_id is required", nil)
		return
	}

	decided, err := h.Workflow.Decide(r.Context(), requestID,
		core.EmployeeID(req.ApproverID), editflow.StepDecision(req.Decision), req.Comments)
	if err != nil {
		writeDomainError(w, "Decision failed", err)
		return
	}
	writeJSON(w, http.StatusOK, decided)
}

// CancelRequest withdraws an edit request (requester only).
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	requestID := core.RequestID(chi.URLParam(r, "id"))

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}

	cancelled, err := h.Workflow.Cancel(r.Context(), requestID, core.EmployeeID(req.ActorID), req.Reason)
	if err != nil {
		writeDomainError(w, "Cancellation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSweep runs the forced day-close and compensation-period sweep
// immediately. Both are idempotent, so repeated triggers are harmless.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	closed, err := h.Engine.ForceCloseOpenSessions(r.Context(), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Day-close sweep failed", err)
		return
	}
	resolved, err := h.Ledger.SweepCompensationPeriods(r.Context(), core.DayOf(now))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Period sweep failed", err)
		return
	}

	writeJSON(w, http.StatusOK, SweepResultDTO{SessionsClosed: closed, PeriodsResolved: resolved})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeDomainError maps domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, core.ErrAlreadyClockedIn),
		errors.Is(err, core.ErrDuplicateReference),
		errors.Is(err, core.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, message, err)
	case core.IsClientError(err), errors.Is(err, core.ErrUnknownEmployee):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
