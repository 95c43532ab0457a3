package pallet

import (
	"sort"

	"github.com/warp/pallet-ledger/generic"
)

// =============================================================================
// DEPLETION - Remaining stock of one record over time
// =============================================================================

// SequencePoint is the state of a record right after one exit.
type SequencePoint struct {
	Date      generic.TimePoint
	Units     int // pallets taken out by this exit
	Remaining int // physical pallets left after it, never negative
}

// RemainingAt returns the physical pallets still in stock at the end of
// asOf: entry units minus every active exit dated on or before asOf,
// clamped at zero.
func RemainingAt(r EntryRecord, asOf generic.TimePoint) int {
	remaining := r.Units
	for _, ev := range r.ActiveExits() {
		if ev.Date.BeforeOrEqual(asOf) {
			remaining -= ev.Units
		}
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingEquivalentAt is RemainingAt converted under the record's geometry.
func RemainingEquivalentAt(r EntryRecord, asOf generic.TimePoint) int {
	return r.Geometry.Equivalent(RemainingAt(r, asOf))
}

// SortedExits returns the active exits ordered by date; exits on the same
// day keep their slot order.
func SortedExits(r EntryRecord) []ExitEvent {
	exits := r.ActiveExits()
	sort.SliceStable(exits, func(i, j int) bool {
		return exits[i].Date.Before(exits[j].Date)
	})
	return exits
}

// SequencePoints applies the sorted exits cumulatively from the entry count.
func SequencePoints(r EntryRecord) []SequencePoint {
	exits := SortedExits(r)
	points := make([]SequencePoint, 0, len(exits))
	remaining := r.Units
	for _, ev := range exits {
		remaining -= ev.Units
		if remaining < 0 {
			remaining = 0
		}
		points = append(points, SequencePoint{Date: ev.Date, Units: ev.Units, Remaining: remaining})
	}
	return points
}

// overDepleted reports whether the record's exits exceed its entry.
func overDepleted(r EntryRecord) bool {
	return r.ExitedUnits() > r.Units
}
