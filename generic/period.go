package generic

// =============================================================================
// PERIOD - Closed day range [Start, End]
// =============================================================================

// Period is an inclusive range of days. Storage accrual is billed per day
// the stock is present, so both endpoints count.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// MonthPeriod spans the whole month.
func MonthPeriod(m MonthKey) Period { return Period{Start: m.Start(), End: m.End()} }

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Empty reports whether the period has no days.
func (p Period) Empty() bool { return p.End.Before(p.Start) }

// Len is the number of days in the period, 0 when empty.
func (p Period) Len() int {
	if p.Empty() {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Clamp intersects p with other.
func (p Period) Clamp(other Period) Period {
	out := p
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out
}

// Validate returns ErrInvalidPeriod when End precedes Start.
func (p Period) Validate() error {
	if p.Empty() {
		return ErrInvalidPeriod
	}
	return nil
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
