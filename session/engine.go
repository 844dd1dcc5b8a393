/*
engine.go - Clock event handling

PURPOSE:
  Validates clock events against the session state machine, measures them
  against the resolved schedule, and emits the worked-minute delta to the
  hour bank when a session completes.

ORDERING GUARANTEES:
  Every mutating entry point takes the employee's exclusive lock before
  reading session state. Clock events for different employees proceed in
  parallel; events for the same employee are serialized.

LATENESS:
  minutesLate is the full distance from the nearest shift start, never
  reduced by the tolerance. The tolerance only decides whether isLate is
  set. A late session can still complete; if it completes without a
  justification it carries a standing compliance flag and the caller
  decides what to do with it.

SEE ALSO:
  - types.go: Session state and worked-time formula
  - hourbank: Receives the emitted deltas
*/
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/schedule"
)

// =============================================================================
// BANK POSTER - The ledger side of session completion
// =============================================================================

// BankPoster receives worked-minute deltas from completed sessions.
// autoApprove mirrors the employer's policy: completed sessions may post
// directly as approved, interrupted ones always post pending review.
type BankPoster interface {
	PostWorkedDelta(ctx context.Context, employeeID core.EmployeeID, date core.DayDate,
		sessionID core.SessionID, delta core.Minutes, autoApprove bool, reason string) error
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Sessions  Store
	Schedules *schedule.Resolver
	Bank      BankPoster
	Locks     *core.EmployeeLocker

	// AutoApprove controls whether completed-session deltas post as
	// approved. This is employer policy handed in from outside.
	AutoApprove bool

	Log zerolog.Logger
	Now func() time.Time
}

func NewEngine(sessions Store, resolver *schedule.Resolver, bank BankPoster, locks *core.EmployeeLocker, log zerolog.Logger) *Engine {
	return &Engine{
		Sessions:    sessions,
		Schedules:   resolver,
		Bank:        bank,
		Locks:       locks,
		AutoApprove: true,
		Log:         log,
		Now:         time.Now,
	}
}

// ClockIn opens the session for the employee-day.
//
// Fails with core.ErrAlreadyClockedIn when a session already exists for the
// day, and core.ErrNoScheduleAssigned when no assignment covers the date.
func (e *Engine) ClockIn(ctx context.Context, employeeID core.EmployeeID, rec ClockRecord) (*TimeClockSession, error) {
	unlock := e.Locks.Acquire(employeeID)
	defer unlock()

	date := core.DayOf(rec.Timestamp)

	existing, err := e.Sessions.GetSession(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// One session per employee-day: a completed session blocks a second
		// clock-in the same way an open one does.
		return nil, fmt.Errorf("%w: employee %s on %s", core.ErrAlreadyClockedIn, employeeID, date)
	}

	day, err := e.Schedules.Resolve(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}
	for _, w := range day.Warnings {
		e.Log.Warn().Str("employee", string(employeeID)).Str("date", date.String()).Msg(w)
	}

	now := e.Now()
	s := &TimeClockSession{
		ID:              core.NewSessionID(),
		EmployeeID:      employeeID,
		Date:            date,
		ClockIn:         rec,
		Status:          StatusActive,
		ExpectedMinutes: day.ExpectedMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.MinutesLate, s.IsLate = lateness(rec.Timestamp, date, day)

	if err := e.Sessions.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	e.Log.Info().
		Str("employee", string(employeeID)).
		Str("date", date.String()).
		Bool("late", s.IsLate).
		Int64("minutes_late", s.MinutesLate).
		Msg("clock-in")
	return s, nil
}

// lateness measures the clock-in against the nearest shift start. The
// tolerance is symmetric grace: it decides isLate, it never shifts the
// expected time or reduces minutesLate.
func lateness(ts time.Time, date core.DayDate, day *schedule.ResolvedDay) (minutesLate int64, isLate bool) {
	if len(day.Shifts) == 0 {
		return 0, false
	}

	nearest := day.Shifts[0].Start.On(date)
	best := absMinutes(ts, nearest)
	for _, shift := range day.Shifts[1:] {
		start := shift.Start.On(date)
		if d := absMinutes(ts, start); d < best {
			nearest, best = start, d
		}
	}

	late := core.MinutesBetween(nearest, ts)
	if late <= 0 {
		return 0, false
	}
	return late, late > day.Tolerance.EntryMinutes
}

func absMinutes(a, b time.Time) int64 {
	d := core.MinutesBetween(b, a)
	if d < 0 {
		return -d
	}
	return d
}

// StartBreak opens a break on the active session.
func (e *Engine) StartBreak(ctx context.Context, employeeID core.EmployeeID, breakType string, ts time.Time) (*TimeClockSession, error) {
	unlock := e.Locks.Acquire(employeeID)
	defer unlock()

	s, err := e.openSession(ctx, employeeID, ts)
	if err != nil {
		return nil, err
	}
	if s.Status == StatusOnBreak {
		return nil, fmt.Errorf("%w: employee %s", core.ErrBreakAlreadyActive, employeeID)
	}
	if ts.Before(s.ClockIn.Timestamp) {
		return nil, fmt.Errorf("%w: break start %s", core.ErrTimestampBeforeClockIn, ts.Format(time.RFC3339))
	}

	paid := false
	if day, err := e.Schedules.Resolve(ctx, employeeID, s.Date); err == nil {
		if cfg, ok := day.BreakByType(breakType); ok {
			paid = cfg.Paid
		}
	}

	s.Breaks = append(s.Breaks, BreakRecord{Type: breakType, StartedAt: ts, Paid: paid})
	s.Status = StatusOnBreak
	s.UpdatedAt = e.Now()

	if err := e.Sessions.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return s, nil
}

// EndBreak closes the open break and flags non-compliant durations.
// A break shorter than the configured minimum or longer than the maximum
// is flagged, never rejected.
func (e *Engine) EndBreak(ctx context.Context, employeeID core.EmployeeID, ts time.Time) (*TimeClockSession, error) {
	unlock := e.Locks.Acquire(employeeID)
	defer unlock()

	s, err := e.openSession(ctx, employeeID, ts)
	if err != nil {
		return nil, err
	}
	idx := s.openBreak()
	if idx < 0 {
		return nil, fmt.Errorf("%w: employee %s", core.ErrNoActiveBreak, employeeID)
	}

	e.closeBreak(ctx, s, idx, ts)
	s.Status = StatusActive
	s.UpdatedAt = e.Now()

	if err := e.Sessions.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return s, nil
}

func (e *Engine) closeBreak(ctx context.Context, s *TimeClockSession, idx int, ts time.Time) {
	br := &s.Breaks[idx]
	end := ts
	if end.Before(br.StartedAt) {
		end = br.StartedAt
	}
	br.EndedAt = &end
	br.DurationMinutes = core.MinutesBetween(br.StartedAt, end)

	if day, err := e.Schedules.Resolve(ctx, s.EmployeeID, s.Date); err == nil {
		if cfg, ok := day.BreakByType(br.Type); ok {
			if cfg.MinimumDuration > 0 && br.DurationMinutes < cfg.MinimumDuration {
				br.Flags = append(br.Flags, FlagBreakBelowMinimum)
			}
			if cfg.MaximumDuration > 0 && br.DurationMinutes > cfg.MaximumDuration {
				br.Flags = append(br.Flags, FlagBreakAboveMaximum)
			}
		}
	}
}

// ClockOut completes the session: closes any open break at the clock-out
// timestamp, computes worked minutes and overtime, and emits the worked
// delta to the hour bank.
func (e *Engine) ClockOut(ctx context.Context, employeeID core.EmployeeID, rec ClockRecord) (*TimeClockSession, error) {
	unlock := e.Locks.Acquire(employeeID)
	defer unlock()

	s, err := e.openSession(ctx, employeeID, rec.Timestamp)
	if err != nil {
		return nil, err
	}
	if !rec.Timestamp.After(s.ClockIn.Timestamp) {
		return nil, fmt.Errorf("%w: clock-out %s, clock-in %s", core.ErrTimestampBeforeClockIn,
			rec.Timestamp.Format(time.RFC3339), s.ClockIn.Timestamp.Format(time.RFC3339))
	}

	if idx := s.openBreak(); idx >= 0 {
		e.closeBreak(ctx, s, idx, rec.Timestamp)
	}

	allowOvertime := true
	if day, err := e.Schedules.Resolve(ctx, employeeID, s.Date); err == nil {
		allowOvertime = day.AllowOvertime
	}

	s.ClockOut = &rec
	s.Status = StatusCompleted
	s.Recalculate(allowOvertime)
	if s.IsLate && s.Justification == "" {
		s.addFlag(FlagLateWithoutJustification)
	}
	s.UpdatedAt = e.Now()

	if err := e.Sessions.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	if err := e.postDelta(ctx, s, e.AutoApprove, "worked-day delta"); err != nil {
		return nil, err
	}

	e.Log.Info().
		Str("employee", string(employeeID)).
		Str("date", s.Date.String()).
		Int64("worked", s.TotalWorkedMinutes).
		Int64("overtime", s.OvertimeMinutes).
		Msg("clock-out")
	return s, nil
}

// ForceCloseOpenSessions interrupts every session still open at the rollover
// boundary. Worked time is computed up to the boundary, not invented, and the
// delta posts pending review. Idempotent: already-closed sessions are
// untouched, so the sweep may be retried freely after a crash.
func (e *Engine) ForceCloseOpenSessions(ctx context.Context, asOf time.Time) (int, error) {
	open, err := e.Sessions.OpenSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing open sessions: %w", err)
	}

	closed := 0
	for _, s := range open {
		boundary := s.Date.NextMidnight()
		if asOf.Before(boundary) {
			// Day not over yet.
			continue
		}
		if err := e.forceClose(ctx, s, boundary); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

func (e *Engine) forceClose(ctx context.Context, s *TimeClockSession, boundary time.Time) error {
	unlock := e.Locks.Acquire(s.EmployeeID)
	defer unlock()

	// Re-read under the lock; a concurrent clock-out may have completed it.
	cur, err := e.Sessions.GetSession(ctx, s.EmployeeID, s.Date)
	if err != nil {
		return err
	}
	if cur == nil || !cur.Status.Open() {
		return nil
	}

	if idx := cur.openBreak(); idx >= 0 {
		e.closeBreak(ctx, cur, idx, boundary)
	}

	cur.ClockOut = &ClockRecord{Timestamp: boundary, IsManual: true, RegisteredBy: "system", ManualReason: "day rollover"}
	cur.Status = StatusInterrupted
	cur.Recalculate(false)
	cur.UpdatedAt = e.Now()

	if err := e.Sessions.SaveSession(ctx, cur); err != nil {
		return fmt.Errorf("saving interrupted session: %w", err)
	}

	if err := e.postDelta(ctx, cur, false, "interrupted at day rollover"); err != nil {
		return err
	}

	e.Log.Warn().
		Str("employee", string(cur.EmployeeID)).
		Str("date", cur.Date.String()).
		Int64("worked", cur.TotalWorkedMinutes).
		Msg("session interrupted at rollover")
	return nil
}

func (e *Engine) postDelta(ctx context.Context, s *TimeClockSession, autoApprove bool, reason string) error {
	if e.Bank == nil {
		return nil
	}
	delta := s.WorkedDelta()
	if delta.IsZero() {
		return nil
	}
	if err := e.Bank.PostWorkedDelta(ctx, s.EmployeeID, s.Date, s.ID, delta, autoApprove, reason); err != nil {
		return fmt.Errorf("posting worked delta: %w", err)
	}
	return nil
}

// openSession loads the session the timestamp belongs to.
func (e *Engine) openSession(ctx context.Context, employeeID core.EmployeeID, ts time.Time) (*TimeClockSession, error) {
	s, err := e.Sessions.GetSession(ctx, employeeID, core.DayOf(ts))
	if err != nil {
		return nil, err
	}
	if s == nil || !s.Status.Open() {
		return nil, fmt.Errorf("%w: employee %s", core.ErrNoActiveSession, employeeID)
	}
	return s, nil
}

// SetJustification records the late-arrival justification on the session.
// Callers outside this core decide whether an unjustified late session may
// complete; the engine only tracks the standing flag.
func (e *Engine) SetJustification(ctx context.Context, employeeID core.EmployeeID, date core.DayDate, text string) (*TimeClockSession, error) {
	unlock := e.Locks.Acquire(employeeID)
	defer unlock()

	s, err := e.Sessions.GetSession(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: employee %s on %s", core.ErrSessionNotFound, employeeID, date)
	}

	s.Justification = text
	if text != "" {
		kept := s.Flags[:0]
		for _, f := range s.Flags {
			if f != FlagLateWithoutJustification {
				kept = append(kept, f)
			}
		}
		s.Flags = kept
	}
	s.UpdatedAt = e.Now()

	if err := e.Sessions.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return s, nil
}
