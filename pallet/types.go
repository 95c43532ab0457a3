/*
Package pallet provides the warehouse ledger and cost-accrual engine.

PURPOSE:
  Tracks pallets ("units") moving through a warehouse. An entry record
  brings N pallets in on a date; dated partial exits deplete it over time.
  The engine turns these records into billable figures:
    - entry cost, per month of entry
    - exit cost, per month of exit
    - storage cost, integrated day by day per calendar month
    - a per-document report reconciling all records of a document number

KEY CONCEPTS IN THIS FILE (types.go):
  - Document: business document (number is NOT unique in storage)
  - EntryRecord: one ledger line, entry fields immutable, exits append-only
  - ExitSlot: present/absent exit slot (sum type, no nullable fields)
  - Snapshot: the immutable pair of streams every engine call reads

DESIGN PRINCIPLES:
  1. Stateless: every Engine call recomputes from its Snapshot
  2. Precision: rates and costs are decimal.Decimal
  3. Best effort: unusable records become Issues, never abort a batch
  4. Injected collaborators: Clock, Logger, RecordSource, RateProvider

USAGE:
  engine := pallet.NewEngine(generic.SystemClock{}, logger)
  sums := engine.Summarize(snapshot, rates)
  report := engine.BuildReport(snapshot, rates, "2025/7599")

SEE ALSO:
  - equivalence.go: physical -> equivalent units
  - storage.go: day-walk storage integrator
  - report.go: per-document reconciliation
*/
package pallet

import (
	"context"
	"fmt"

	"github.com/warp/pallet-ledger/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DocumentID string
type RecordID string

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is the business document a delivery was booked under.
// Several Documents may share a Number; reconciliation unions them.
type Document struct {
	ID     DocumentID
	Number string
}

// =============================================================================
// EXIT EVENTS
// =============================================================================

// ExitEvent is a dated partial exit against an entry record.
type ExitEvent struct {
	Date  generic.TimePoint
	Units int

	// ElapsedDays is informational (exit date - entry date). The integrator
	// never reads it.
	ElapsedDays *int
}

// ExitSlot is a named exit column of a record. A slot is either filled with
// an event or empty; it is never half-populated.
type ExitSlot struct {
	Key    string
	event  ExitEvent
	filled bool
}

// FilledSlot returns a slot holding ev.
func FilledSlot(key string, ev ExitEvent) ExitSlot {
	return ExitSlot{Key: key, event: ev, filled: true}
}

// EmptySlot returns a slot with no exit.
func EmptySlot(key string) ExitSlot {
	return ExitSlot{Key: key}
}

// Event returns the slot's exit and whether the slot is filled.
func (s ExitSlot) Event() (ExitEvent, bool) {
	return s.event, s.filled
}

// Active reports whether the slot takes part in calculations: filled, dated
// and with a positive unit count. Anything else is inert.
func (s ExitSlot) Active() bool {
	return s.filled && !s.event.Date.IsZero() && s.event.Units > 0
}

// =============================================================================
// ENTRY RECORD
// =============================================================================

// EntryRecord is the atomic ledger line: one entry and its partial exits.
type EntryRecord struct {
	ID         RecordID
	DocumentID DocumentID
	EntryDate  generic.TimePoint
	Units      int
	Geometry   Geometry
	Frozen     bool
	Note       string
	Exits      []ExitSlot
}

// NewEntryRecord builds a record and enforces the non-negative invariants.
// A zero EntryDate is accepted here: the engine reports it as InvalidDate
// and skips the record, so one bad row never blocks a whole import.
func NewEntryRecord(id RecordID, docID DocumentID, entryDate generic.TimePoint, units int, class Classification, note string, exits ...ExitSlot) (EntryRecord, error) {
	if units < 0 {
		return EntryRecord{}, fmt.Errorf("%w: record %s has %d units", ErrNegativeUnits, id, units)
	}
	for _, s := range exits {
		if ev, ok := s.Event(); ok && ev.Units < 0 {
			return EntryRecord{}, fmt.Errorf("%w: record %s exit %s has %d units", ErrNegativeUnits, id, s.Key, ev.Units)
		}
	}
	return EntryRecord{
		ID:         id,
		DocumentID: docID,
		EntryDate:  entryDate,
		Units:      units,
		Geometry:   class.Geometry,
		Frozen:     class.Frozen,
		Note:       note,
		Exits:      append([]ExitSlot(nil), exits...),
	}, nil
}

// WithExit returns a copy of the record with one more exit slot appended.
// The receiver is left untouched.
func (r EntryRecord) WithExit(slot ExitSlot) (EntryRecord, error) {
	if ev, ok := slot.Event(); ok && ev.Units < 0 {
		return EntryRecord{}, fmt.Errorf("%w: record %s exit %s has %d units", ErrNegativeUnits, r.ID, slot.Key, ev.Units)
	}
	out := r
	out.Exits = make([]ExitSlot, 0, len(r.Exits)+1)
	out.Exits = append(out.Exits, r.Exits...)
	out.Exits = append(out.Exits, slot)
	return out, nil
}

// Classification returns the record's billing classification.
func (r EntryRecord) Classification() Classification {
	return Classification{Geometry: r.Geometry, Frozen: r.Frozen}
}

// ActiveExits returns the filled, dated, non-zero exits in slot order.
func (r EntryRecord) ActiveExits() []ExitEvent {
	var out []ExitEvent
	for _, s := range r.Exits {
		if s.Active() {
			ev, _ := s.Event()
			out = append(out, ev)
		}
	}
	return out
}

// ExitedUnits is the sum of all active exits regardless of date.
func (r EntryRecord) ExitedUnits() int {
	total := 0
	for _, ev := range r.ActiveExits() {
		total += ev.Units
	}
	return total
}

// Clone deep-copies the record.
func (r EntryRecord) Clone() EntryRecord {
	out := r
	out.Exits = append([]ExitSlot(nil), r.Exits...)
	return out
}

// =============================================================================
// SNAPSHOT & COLLABORATORS
// =============================================================================

// Snapshot is a consistent pair of the two input streams. Engine calls
// never mutate it.
type Snapshot struct {
	Documents []Document
	Records   []EntryRecord
}

// RecordSource supplies snapshots. Implementations: store/memory, store/sqlite.
type RecordSource interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// RateProvider supplies the current rates. Read once at the start of every
// aggregation call, never cached by the engine.
type RateProvider interface {
	Rates(ctx context.Context) (RateConfig, error)
}
