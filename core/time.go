package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// DAY DATE - One calendar date, UTC-normalized (session and ledger keys)
// =============================================================================

type DayDate struct {
	t time.Time
}

func NewDayDate(year int, month time.Month, day int) DayDate {
	return DayDate{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates a timestamp to its calendar date.
func DayOf(ts time.Time) DayDate {
	u := ts.UTC()
	return NewDayDate(u.Year(), u.Month(), u.Day())
}

func Today() DayDate { return DayOf(time.Now()) }

// ParseDayDate parses "2006-01-02". The zero DayDate is returned on error.
func ParseDayDate(s string) (DayDate, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return DayDate{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DayOf(t), nil
}

func (d DayDate) Before(o DayDate) bool        { return d.t.Before(o.t) }
func (d DayDate) After(o DayDate) bool         { return d.t.After(o.t) }
func (d DayDate) Equal(o DayDate) bool         { return d.t.Equal(o.t) }
func (d DayDate) BeforeOrEqual(o DayDate) bool { return !d.t.After(o.t) }
func (d DayDate) AfterOrEqual(o DayDate) bool  { return !d.t.Before(o.t) }
func (d DayDate) IsZero() bool                 { return d.t.IsZero() }

func (d DayDate) AddDays(n int) DayDate { return DayDate{t: d.t.AddDate(0, 0, n)} }
func (d DayDate) Weekday() time.Weekday { return d.t.Weekday() }

// Time returns midnight UTC of the date.
func (d DayDate) Time() time.Time { return d.t }

// NextMidnight is the rollover boundary for forced day-close.
func (d DayDate) NextMidnight() time.Time { return d.t.AddDate(0, 0, 1) }

// DaysUntil returns the number of whole days from d to o (negative if past).
func (d DayDate) DaysUntil(o DayDate) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}

func (d DayDate) String() string { return d.t.Format("2006-01-02") }

// MarshalJSON renders the date as "2006-01-02".
func (d DayDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DayDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDayDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// TIME OF DAY - Minutes since midnight (shift and break windows)
// =============================================================================

type TimeOfDay int

// ParseTimeOfDay parses "15:04".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is for configuration literals and tests.
func MustTimeOfDay(s string) TimeOfDay {
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return tod
}

// TimeOfDayFrom extracts the minutes-since-midnight of a timestamp (UTC).
func TimeOfDayFrom(ts time.Time) TimeOfDay {
	u := ts.UTC()
	return TimeOfDay(u.Hour()*60 + u.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// On anchors the time-of-day to a concrete date.
func (t TimeOfDay) On(d DayDate) time.Time {
	return d.Time().Add(time.Duration(t) * time.Minute)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// =============================================================================
// DURATION HELPERS
// =============================================================================

// MinutesBetween returns whole minutes from a to b, truncated toward zero.
func MinutesBetween(a, b time.Time) int64 {
	return int64(b.Sub(a) / time.Minute)
}
