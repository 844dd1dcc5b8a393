/*
Package core provides the shared primitives of the attendance engine.

PURPOSE:
  This package contains the value types and contracts every other package
  builds on: signed minute amounts, calendar dates, typed identifiers,
  sentinel errors, and the per-employee write lock.

KEY CONCEPTS IN THIS FILE (minutes.go):
  - Minutes: A signed quantity of worked time, the unit of the hour bank
  - FormatSigned: Human-readable rendering ("-1h 15min")

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so ledger sums never drift
  2. Sign carries meaning: positive = time owed to the employee,
     negative = time the employee owes back
  3. Value semantics: Minutes is immutable; every operation returns a copy

USAGE:
  delta := core.NewMinutes(-75)
  delta.FormatSigned() // "-1h 15min"

SEE ALSO:
  - time.go: DayDate and TimeOfDay
  - errors.go: Validation errors raised on bad amounts
*/
package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MINUTES - Signed worked-time quantity
// =============================================================================

type Minutes struct {
	Value decimal.Decimal
}

func NewMinutes(v int64) Minutes {
	return Minutes{Value: decimal.NewFromInt(v)}
}

func NewMinutesFromDecimal(d decimal.Decimal) Minutes {
	return Minutes{Value: d}
}

// ParseMinutes parses a stored decimal string. Invalid input yields zero.
func ParseMinutes(s string) Minutes {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Minutes{Value: decimal.Zero}
	}
	return Minutes{Value: d}
}

func ZeroMinutes() Minutes { return Minutes{Value: decimal.Zero} }

func (m Minutes) Add(o Minutes) Minutes      { return Minutes{Value: m.Value.Add(o.Value)} }
func (m Minutes) Sub(o Minutes) Minutes      { return Minutes{Value: m.Value.Sub(o.Value)} }
func (m Minutes) Neg() Minutes               { return Minutes{Value: m.Value.Neg()} }
func (m Minutes) Abs() Minutes               { return Minutes{Value: m.Value.Abs()} }
func (m Minutes) IsZero() bool               { return m.Value.IsZero() }
func (m Minutes) IsNegative() bool           { return m.Value.IsNegative() }
func (m Minutes) IsPositive() bool           { return m.Value.IsPositive() }
func (m Minutes) GreaterThan(o Minutes) bool { return m.Value.GreaterThan(o.Value) }
func (m Minutes) LessThan(o Minutes) bool    { return m.Value.LessThan(o.Value) }
func (m Minutes) GreaterThanOrEqual(o Minutes) bool {
	return m.Value.GreaterThanOrEqual(o.Value)
}
func (m Minutes) LessThanOrEqual(o Minutes) bool { return m.Value.LessThanOrEqual(o.Value) }
func (m Minutes) Equal(o Minutes) bool           { return m.Value.Equal(o.Value) }

// Int64 truncates toward zero. Ledger amounts are whole minutes in practice.
func (m Minutes) Int64() int64 { return m.Value.IntPart() }

func (m Minutes) String() string { return m.Value.String() }

// MarshalJSON delegates to the underlying decimal.
func (m Minutes) MarshalJSON() ([]byte, error) { return m.Value.MarshalJSON() }

func (m *Minutes) UnmarshalJSON(data []byte) error { return m.Value.UnmarshalJSON(data) }

// FormatSigned renders a balance for human consumption:
//
//	-75  -> "-1h 15min"
//	 120 -> "2h"
//	 45  -> "45min"
//	 0   -> "0min"
func (m Minutes) FormatSigned() string {
	total := m.Int64()
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	h := total / 60
	min := total % 60
	switch {
	case h > 0 && min > 0:
		return fmt.Sprintf("%s%dh %dmin", sign, h, min)
	case h > 0:
		return fmt.Sprintf("%s%dh", sign, h)
	default:
		return fmt.Sprintf("%s%dmin", sign, min)
	}
}

// Ratio returns m/o as a decimal, or zero when o is zero.
// Used for cap-threshold alerts (e.g. balance at 80% of the positive cap).
func (m Minutes) Ratio(o Minutes) decimal.Decimal {
	if o.Value.IsZero() {
		return decimal.Zero
	}
	return m.Value.Div(o.Value)
}
