/*
engine.go - Stateless calculation entry points

PURPOSE:
  Engine bundles the injected Clock and Logger. Every method reads only
  its arguments: a Snapshot and, when money is involved, a RateConfig.
  Nothing computed is kept between calls, so concurrent callers with
  their own snapshots never interfere.

ENTRY POINTS:
  Summarize           entry + exit + storage summaries in one pass set
  EntrySummaries      aggregate.go
  ExitSummaries       aggregate.go
  StorageSummaries    storage.go
  StorageLines        storage.go (per record detail for one month)
  StorageDetails      details.go
  BuildReport         report.go
  ProjectStorageCost  projection.go

SEE ALSO:
  - service.go: loads Snapshot and RateConfig per call through the
    RecordSource and RateProvider collaborators
*/
package pallet

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/pallet-ledger/generic"
)

// Engine computes summaries, reports and projections.
type Engine struct {
	Clock  generic.Clock
	Logger zerolog.Logger
}

// NewEngine creates an engine. A nil clock means the system clock.
func NewEngine(clock generic.Clock, logger zerolog.Logger) *Engine {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Engine{Clock: clock, Logger: logger}
}

// Today is the engine's reference day. A nil Clock reads the system clock.
func (e *Engine) Today() generic.TimePoint {
	if e.Clock == nil {
		return generic.SystemClock{}.Today()
	}
	return e.Clock.Today()
}

// =============================================================================
// SUMMARIES
// =============================================================================

// Summaries is the full output of an aggregation pass.
type Summaries struct {
	AsOf    generic.TimePoint
	Entries []EntrySummary
	Exits   []ExitSummary
	Storage []StorageSummary
	Issues  []Issue
}

// Totals is the grand total across every month of a Summaries.
type Totals struct {
	EntryEquivalent int
	ExitUnits       int
	EntryCost       decimal.Decimal
	ExitCost        decimal.Decimal
	StorageCost     decimal.Decimal
	Total           decimal.Decimal
}

// Totals sums every month.
func (s Summaries) Totals() Totals {
	t := Totals{EntryCost: decimal.Zero, ExitCost: decimal.Zero, StorageCost: decimal.Zero}
	for _, e := range s.Entries {
		t.EntryEquivalent += e.TotalEquivalent
		t.EntryCost = t.EntryCost.Add(e.Cost)
	}
	for _, x := range s.Exits {
		t.ExitUnits += x.TotalUnits
		t.ExitCost = t.ExitCost.Add(x.Cost)
	}
	for _, st := range s.Storage {
		t.StorageCost = t.StorageCost.Add(st.Cost)
	}
	t.Total = t.EntryCost.Add(t.ExitCost).Add(t.StorageCost)
	return t
}

// Summarize runs the monthly aggregator and the storage integrator over the
// same snapshot. The two passes share no state.
func (e *Engine) Summarize(snap Snapshot, rates RateConfig) Summaries {
	entries, entryIssues := e.EntrySummaries(snap, rates)
	exits := e.ExitSummaries(snap, rates)
	storage := e.StorageSummaries(snap, rates)

	issues := append(entryIssues, depletionIssues(snap)...)
	if len(issues) > 0 {
		e.Logger.Warn().Int("issues", len(issues)).Msg("records skipped or clamped during aggregation")
	}
	e.Logger.Debug().
		Int("records", len(snap.Records)).
		Int("entry_months", len(entries)).
		Int("exit_months", len(exits)).
		Int("storage_months", len(storage)).
		Msg("summaries computed")

	return Summaries{
		AsOf:    e.Today(),
		Entries: entries,
		Exits:   exits,
		Storage: storage,
		Issues:  issues,
	}
}

func depletionIssues(snap Snapshot) []Issue {
	var issues []Issue
	for _, r := range snap.Records {
		if overDepleted(r) {
			issues = append(issues, Issue{
				Kind:     IssueOverDepletion,
				RecordID: r.ID,
				Detail:   "exits exceed entry units, remaining stock clamped to zero",
			})
		}
	}
	return issues
}

func invalidEntryDate(r EntryRecord) Issue {
	return Issue{Kind: IssueInvalidDate, RecordID: r.ID, Detail: "entry date missing or unparseable"}
}
