/*
storage.go - Storage accrual integrator

PURPOSE:
  Integrates the equivalent stock of every record day by day, per calendar
  month, from the entry month through the month containing "today".

HOW A RECORD IS WALKED:
  1. Physical remaining stock is carried from month to month. Exits dated
     before a month's first day are applied once, when that month opens.
  2. A day array covers the active days of the month: from the entry day
     (entry month) or day 1, to the month end or today (current month).
  3. Exits inside the month are walked in date order. The exit day is
     still billed at the pre-exit stock; the lower stock starts the day
     after.
  4. The array sum is the record's unit-days for the month.

  Example, 30 pallets of geometry A in on Jan 10, 10 out on Jan 20, today
  Jan 31:
    Jan 10..20  Eq(30) = 38   11 days   418
    Jan 21..31  Eq(20) = 25   11 days   275
    unit-days                           693

SEE ALSO:
  - depletion.go: SortedExits
  - report.go: the per-document variant, which does not bucket by month
*/
package pallet

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/pallet-ledger/generic"
)

// StorageSummary is the storage exposure of one month.
type StorageSummary struct {
	Month generic.MonthKey

	NormalUnitDays int
	FrozenUnitDays int
	UnitDays       int

	// RecordDays sums the active days of every record billed in the month.
	RecordDays int
	// CoveredDays is the number of calendar days of the month that have
	// elapsed: the whole month, or up to today for the current one.
	CoveredDays int
	// AverageStock sums, over the records billed in the month, each
	// record's unit-days divided by its own active days. A record entered
	// mid-month counts at its stock while stored, not diluted over the
	// whole month.
	AverageStock decimal.Decimal

	NormalCost decimal.Decimal
	FrozenCost decimal.Decimal
	Cost       decimal.Decimal
}

// StorageLine is one record's contribution to one month.
type StorageLine struct {
	RecordID       RecordID
	DocumentID     DocumentID
	Month          generic.MonthKey
	Classification Classification

	FirstDay int
	LastDay  int

	OpeningUnits int // physical, at the start of FirstDay
	ClosingUnits int // physical, after the last exit billed in the month

	// Daily holds the equivalent stock billed on each active day,
	// Daily[0] being FirstDay.
	Daily    []int
	UnitDays int
	Cost     decimal.Decimal
}

// Period is the span of billed days.
func (l StorageLine) Period() generic.Period {
	return generic.Period{
		Start: generic.NewTimePoint(l.Month.Year, l.Month.Month, l.FirstDay),
		End:   generic.NewTimePoint(l.Month.Year, l.Month.Month, l.LastDay),
	}
}

// ActiveDays is the number of days the record was billed in the month.
func (l StorageLine) ActiveDays() int { return l.Period().Len() }

// StorageSummaries integrates every record up to today, one summary per
// month with non-zero exposure.
func (e *Engine) StorageSummaries(snap Snapshot, rates RateConfig) []StorageSummary {
	today := e.Today()
	byMonth := make(map[generic.MonthKey]*StorageSummary)
	for _, r := range snap.Records {
		walkStorage(r, today, rates, func(l StorageLine) {
			s, ok := byMonth[l.Month]
			if !ok {
				s = newStorageSummary(l.Month, today)
				byMonth[l.Month] = s
			}
			s.add(l)
		})
	}

	out := make([]StorageSummary, 0, len(byMonth))
	for _, s := range byMonth {
		s.AverageStock = s.AverageStock.Round(2)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// StorageLines returns the per-record breakdown of one month, in snapshot
// order. Months after today yield nothing.
func (e *Engine) StorageLines(snap Snapshot, rates RateConfig, month generic.MonthKey) []StorageLine {
	today := e.Today()
	var out []StorageLine
	for _, r := range snap.Records {
		walkStorage(r, today, rates, func(l StorageLine) {
			if l.Month == month {
				out = append(out, l)
			}
		})
	}
	return out
}

func newStorageSummary(m generic.MonthKey, today generic.TimePoint) *StorageSummary {
	covered := m.Days()
	if m == today.MonthKey() {
		covered = today.Day()
	}
	return &StorageSummary{
		Month:        m,
		CoveredDays:  covered,
		AverageStock: decimal.Zero,
		NormalCost:   decimal.Zero,
		FrozenCost:   decimal.Zero,
		Cost:         decimal.Zero,
	}
}

func (s *StorageSummary) add(l StorageLine) {
	if l.Classification.Frozen {
		s.FrozenUnitDays += l.UnitDays
		s.FrozenCost = s.FrozenCost.Add(l.Cost)
	} else {
		s.NormalUnitDays += l.UnitDays
		s.NormalCost = s.NormalCost.Add(l.Cost)
	}
	s.UnitDays += l.UnitDays
	if days := l.ActiveDays(); days > 0 {
		s.RecordDays += days
		s.AverageStock = s.AverageStock.Add(units(l.UnitDays).Div(units(days)))
	}
	s.Cost = s.Cost.Add(l.Cost)
}

// =============================================================================
// DAY WALK
// =============================================================================

// walkStorage emits one line per month in which r had non-zero exposure.
// Records without a usable entry date, or entered after today, emit nothing.
func walkStorage(r EntryRecord, today generic.TimePoint, rates RateConfig, emit func(StorageLine)) {
	if r.EntryDate.IsZero() {
		return
	}
	stored := generic.Period{Start: r.EntryDate, End: today}
	if stored.Validate() != nil {
		return
	}
	class := r.Classification()
	rate := rates.StorageRateFor(class.Frozen)
	exits := SortedExits(r)
	next := 0
	remaining := r.Units

	for _, m := range generic.MonthsBetween(r.EntryDate.MonthKey(), today.MonthKey()) {
		billed := generic.MonthPeriod(m).Clamp(stored)
		for next < len(exits) && exits[next].Date.Before(m.Start()) {
			remaining = deplete(remaining, exits[next].Units)
			next++
		}
		if remaining == 0 && next == len(exits) {
			return
		}

		first, last := billed.Start.Day(), billed.End.Day()

		opening := remaining
		stock := class.Geometry.Equivalent(remaining)
		daily := make([]int, last-first+1)
		for i := range daily {
			daily[i] = stock
		}

		for next < len(exits) && m.Contains(exits[next].Date) {
			ev := exits[next]
			if ev.Date.After(today) {
				// Not happened yet; the current month is the last one walked.
				break
			}
			after := deplete(remaining, ev.Units)
			stock -= class.Geometry.Equivalent(remaining) - class.Geometry.Equivalent(after)
			remaining = after
			for d := max(ev.Date.Day()+1, first); d <= last; d++ {
				daily[d-first] = stock
			}
			next++
		}

		unitDays := 0
		for _, v := range daily {
			unitDays += v
		}
		if unitDays == 0 {
			continue
		}
		emit(StorageLine{
			RecordID:       r.ID,
			DocumentID:     r.DocumentID,
			Month:          m,
			Classification: class,
			FirstDay:       first,
			LastDay:        last,
			OpeningUnits:   opening,
			ClosingUnits:   remaining,
			Daily:          daily,
			UnitDays:       unitDays,
			Cost:           units(unitDays).Mul(rate),
		})
	}
}

func deplete(remaining, exitUnits int) int {
	if exitUnits >= remaining {
		return 0
	}
	return remaining - exitUnits
}
