/*
Package generic holds the calendar primitives shared by the ledger:
day-granular time points, month keys, closed periods and an injectable
clock.

KEY CONCEPTS:
  - TimePoint: a calendar day at midnight UTC
  - MonthKey:  a (year, month) bucket, wire format "YYYY-MM"
  - Period:    an inclusive day range (period.go)
  - Clock:     source of "today"; FixedClock in tests

SEE ALSO:
  - errors.go: ErrInvalidDate, ErrInvalidMonthKey
  - pallet/engine.go: takes a Clock
*/
package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Day-granular calendar date
// =============================================================================

// TimePoint is a calendar day. Ledger dates never carry a time of day, so
// every TimePoint is normalized to midnight UTC on construction.
type TimePoint struct {
	Time time.Time
}

// DateLayout is the canonical wire format for a TimePoint.
const DateLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day (in t's own location) and
// re-anchors it at midnight UTC.
func FromTime(t time.Time) TimePoint {
	if t.IsZero() {
		return TimePoint{}
	}
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseTimePoint accepts "2006-01-02" or a full RFC3339 timestamp; only the
// date part is kept. Returns ErrInvalidDate on anything else.
func ParseTimePoint(s string) (TimePoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimePoint{}, fmt.Errorf("%w: empty date", ErrInvalidDate)
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return FromTime(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return FromTime(t.UTC()), nil
	}
	return TimePoint{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int          { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month  { return tp.Time.Month() }
func (tp TimePoint) Day() int           { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool       { return tp.Time.IsZero() }
func (tp TimePoint) MonthKey() MonthKey { return MonthKey{Year: tp.Year(), Month: tp.Month()} }

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DateLayout)
}

// DaysBetween returns whole days from `from` to `to` (negative when to is earlier).
func DaysBetween(from, to TimePoint) int { return int(to.Time.Sub(from.Time).Hours() / 24) }

// =============================================================================
// MONTH KEY - Grouping key for every monthly summary
// =============================================================================

// MonthKey identifies a calendar month. Its String form "YYYY-MM" sorts
// lexicographically in chronological order.
type MonthKey struct {
	Year  int
	Month time.Month
}

func NewMonthKey(year int, month time.Month) MonthKey { return MonthKey{Year: year, Month: month} }

// ParseMonthKey parses "YYYY-MM".
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}, nil
}

func (m MonthKey) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

// Start is the first day of the month.
func (m MonthKey) Start() TimePoint { return NewTimePoint(m.Year, m.Month, 1) }

// End is the last day of the month.
func (m MonthKey) End() TimePoint { return NewTimePoint(m.Year, m.Month+1, 0) }

// Days is the number of calendar days in the month.
func (m MonthKey) Days() int { return m.End().Day() }

func (m MonthKey) Next() MonthKey { return m.Start().AddMonths(1).MonthKey() }

func (m MonthKey) Before(other MonthKey) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

func (m MonthKey) After(other MonthKey) bool { return other.Before(m) }

// Contains reports whether tp falls inside the month.
func (m MonthKey) Contains(tp TimePoint) bool { return !tp.IsZero() && tp.MonthKey() == m }

// MonthsBetween lists every month from `from` through `to` inclusive.
func MonthsBetween(from, to MonthKey) []MonthKey {
	var months []MonthKey
	for m := from; !m.After(to); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// =============================================================================
// CLOCK - Source of "today"
// =============================================================================

// Clock supplies the reference day for current-month calculations.
type Clock interface {
	Today() TimePoint
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Today() TimePoint { return FromTime(time.Now().UTC()) }

// FixedClock always returns the same day. Used by tests and replays.
type FixedClock struct {
	Day TimePoint
}

func (c FixedClock) Today() TimePoint { return c.Day }
