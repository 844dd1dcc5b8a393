/*
scheduler.go - Periodic maintenance sweeper

PURPOSE:
  Runs the two time-driven maintenance jobs on an interval:
  1. Forced day-close: open sessions whose day has rolled over are closed
     at the day boundary and flagged for review.
  2. Compensation-period resolution: active periods whose end date has
     passed are marked completed or expired.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Both jobs are idempotent, so a missed or doubled tick is harmless
  - Manual trigger available via POST /api/admin/sweep

USAGE:
  sweeper := NewSweeper(engine, ledger, interval, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - session/engine.go: ForceCloseOpenSessions
  - hourbank/period.go: SweepCompensationPeriods
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/hourbank"
	"github.com/chronon/attendance-engine/session"
)

// Sweeper runs the day-close and period-resolution jobs periodically.
type Sweeper struct {
	Engine   *session.Engine
	Ledger   *hourbank.Ledger
	Interval time.Duration
	Log      zerolog.Logger

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweeper creates a new sweeper.
func NewSweeper(engine *session.Engine, ledger *hourbank.Ledger, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		Engine:   engine,
		Ledger:   ledger,
		Interval: interval,
		Log:      log,
		stop:     make(chan bool),
	}
}

// Start begins the sweeper.
func (sw *Sweeper) Start() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.Interval <= 0 {
		sw.Log.Info().Msg("sweeper disabled, not starting")
		return
	}

	sw.ticker = time.NewTicker(sw.Interval)
	sw.wg.Add(1)

	go sw.run()

	sw.Log.Info().Dur("interval", sw.Interval).Msg("sweeper started")
}

// Stop stops the sweeper.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ticker != nil {
		sw.ticker.Stop()
		close(sw.stop)
		sw.wg.Wait()
		sw.Log.Info().Msg("sweeper stopped")
	}
}

func (sw *Sweeper) run() {
	defer sw.wg.Done()

	// Run immediately on start
	sw.sweep()

	for {
		select {
		case <-sw.ticker.C:
			sw.sweep()
		case <-sw.stop:
			return
		}
	}
}

func (sw *Sweeper) sweep() {
	ctx := context.Background()
	now := time.Now()

	closed, err := sw.Engine.ForceCloseOpenSessions(ctx, now)
	if err != nil {
		sw.Log.Error().Err(err).Msg("day-close sweep failed")
	} else if closed > 0 {
		sw.Log.Info().Int("sessions", closed).Msg("force-closed stale sessions")
	}

	resolved, err := sw.Ledger.SweepCompensationPeriods(ctx, core.DayOf(now))
	if err != nil {
		sw.Log.Error().Err(err).Msg("period sweep failed")
	} else if resolved > 0 {
		sw.Log.Info().Int("periods", resolved).Msg("resolved compensation periods")
	}
}
