package pallet

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/pallet-ledger/generic"
)

// =============================================================================
// ENTRY SUMMARY - Handling cost of pallets entering in a month
// =============================================================================

// EntrySummary aggregates the records that entered in one month.
type EntrySummary struct {
	Month generic.MonthKey

	UnitsA      int // normal 100x120, physical
	EquivalentA int // normal 100x120, equivalent
	UnitsB      int // normal 80x120, physical == equivalent

	FrozenUnits      int // frozen, both geometries, physical
	FrozenEquivalent int

	TotalEquivalent int

	NormalCost decimal.Decimal
	FrozenCost decimal.Decimal
	Cost       decimal.Decimal
}

type monthDoc struct {
	month generic.MonthKey
	doc   DocumentID
}

// EntrySummaries groups records by (entry month, document). Physical counts
// of one document-month are summed per bucket before the equivalence table
// is applied, then documents are added up into the month.
func (e *Engine) EntrySummaries(snap Snapshot, rates RateConfig) ([]EntrySummary, []Issue) {
	var issues []Issue
	groups := make(map[monthDoc]*Counts)
	for _, r := range snap.Records {
		if r.EntryDate.IsZero() {
			issues = append(issues, invalidEntryDate(r))
			continue
		}
		k := monthDoc{month: r.EntryDate.MonthKey(), doc: r.DocumentID}
		c, ok := groups[k]
		if !ok {
			c = &Counts{}
			groups[k] = c
		}
		c.Add(r.Classification(), r.Units)
	}

	byMonth := make(map[generic.MonthKey]*EntrySummary)
	for k, c := range groups {
		s, ok := byMonth[k.month]
		if !ok {
			s = &EntrySummary{Month: k.month, NormalCost: decimal.Zero, FrozenCost: decimal.Zero, Cost: decimal.Zero}
			byMonth[k.month] = s
		}
		normalEq := c.NormalEquivalent()
		frozenEq := c.FrozenEquivalent()
		normalCost := units(normalEq).Mul(rates.EntryRateFor(false))
		frozenCost := units(frozenEq).Mul(rates.EntryRateFor(true))

		s.UnitsA += c.NormalA
		s.EquivalentA += EquivalentUnits(c.NormalA)
		s.UnitsB += c.NormalB
		s.FrozenUnits += c.Frozen()
		s.FrozenEquivalent += frozenEq
		s.TotalEquivalent += normalEq + frozenEq
		s.NormalCost = s.NormalCost.Add(normalCost)
		s.FrozenCost = s.FrozenCost.Add(frozenCost)
		s.Cost = s.Cost.Add(normalCost).Add(frozenCost)
	}

	out := make([]EntrySummary, 0, len(byMonth))
	for _, s := range byMonth {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, issues
}

// =============================================================================
// EXIT SUMMARY - Handling cost of pallets leaving in a month
// =============================================================================

// ExitSummary aggregates exit events by the month of the exit date.
type ExitSummary struct {
	Month generic.MonthKey

	UnitsA      int
	EquivalentA int
	UnitsB      int

	FrozenUnits      int
	FrozenEquivalent int

	TotalUnits int // physical, all buckets

	NormalCost decimal.Decimal
	FrozenCost decimal.Decimal
	Cost       decimal.Decimal
}

// ExitCost is the handling cost of a single exit of a record with the given
// classification. Equivalence is per exit: exits are never pooled.
func ExitCost(c Classification, exitUnits int, rates RateConfig) (equivalent int, cost decimal.Decimal) {
	equivalent = c.Geometry.Equivalent(exitUnits)
	return equivalent, units(equivalent).Mul(rates.ExitRateFor(c.Frozen))
}

// ExitSummaries groups active exits by their own month.
func (e *Engine) ExitSummaries(snap Snapshot, rates RateConfig) []ExitSummary {
	byMonth := make(map[generic.MonthKey]*ExitSummary)
	for _, r := range snap.Records {
		class := r.Classification()
		for _, ev := range r.ActiveExits() {
			m := ev.Date.MonthKey()
			s, ok := byMonth[m]
			if !ok {
				s = &ExitSummary{Month: m, NormalCost: decimal.Zero, FrozenCost: decimal.Zero, Cost: decimal.Zero}
				byMonth[m] = s
			}
			eq, cost := ExitCost(class, ev.Units, rates)
			switch class.Bucket() {
			case BucketFrozenA, BucketFrozenB:
				s.FrozenUnits += ev.Units
				s.FrozenEquivalent += eq
				s.FrozenCost = s.FrozenCost.Add(cost)
			case BucketNormalA:
				s.UnitsA += ev.Units
				s.EquivalentA += eq
				s.NormalCost = s.NormalCost.Add(cost)
			default:
				s.UnitsB += ev.Units
				s.NormalCost = s.NormalCost.Add(cost)
			}
			s.TotalUnits += ev.Units
			s.Cost = s.Cost.Add(cost)
		}
	}

	out := make([]ExitSummary, 0, len(byMonth))
	for _, s := range byMonth {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// =============================================================================
// MONTH LOOKUPS
// =============================================================================

// Movement selects which dates RecordsInMonth matches.
type Movement string

const (
	MovementEntry Movement = "entry"
	MovementExit  Movement = "exit"
)

// RecordsInMonth returns records that entered in the month, or that have at
// least one active exit in it.
func (e *Engine) RecordsInMonth(snap Snapshot, month generic.MonthKey, mv Movement) []EntryRecord {
	var out []EntryRecord
	for _, r := range snap.Records {
		switch mv {
		case MovementExit:
			for _, ev := range r.ActiveExits() {
				if month.Contains(ev.Date) {
					out = append(out, r)
					break
				}
			}
		default:
			if month.Contains(r.EntryDate) {
				out = append(out, r)
			}
		}
	}
	return out
}

// DocumentsInMonth returns the documents owning at least one record that
// entered in the month, in snapshot order.
func (e *Engine) DocumentsInMonth(snap Snapshot, month generic.MonthKey) []Document {
	ids := make(map[DocumentID]bool)
	for _, r := range e.RecordsInMonth(snap, month, MovementEntry) {
		ids[r.DocumentID] = true
	}
	var out []Document
	for _, d := range snap.Documents {
		if ids[d.ID] {
			out = append(out, d)
		}
	}
	return out
}
