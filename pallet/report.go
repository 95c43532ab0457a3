package pallet

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/pallet-ledger/generic"
)

// =============================================================================
// DOCUMENT REPORT
// =============================================================================

// Report reconciles every record bound to a document number.
type Report struct {
	Number    string
	Documents []Document // every document matched by the number
	Rows      []EntryRecord

	TotalEntered int // physical
	TotalExited  int // physical, every active exit
	Remaining    int // physical, clamped per record

	EquivalentNormal int
	EquivalentFrozen int

	EntryNormalCost decimal.Decimal
	EntryFrozenCost decimal.Decimal
	EntryCost       decimal.Decimal
	ExitCost        decimal.Decimal
	StorageCost     decimal.Decimal

	Exits []ReportExit

	// FallbackMatch is set when no document matched exactly and the
	// tolerant substring match was used instead.
	FallbackMatch bool
}

// ReportExit is one exit of the flattened, date-sorted exit list.
type ReportExit struct {
	RecordID    RecordID
	Date        generic.TimePoint
	Units       int
	ElapsedDays int
}

// TotalCost is entry + exit + storage.
func (r *Report) TotalCost() decimal.Decimal {
	return r.EntryCost.Add(r.ExitCost).Add(r.StorageCost)
}

// NormalizeDocumentNumber trims, collapses inner whitespace and uppercases.
func NormalizeDocumentNumber(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// BuildReport returns the report for a document number, or nil when no
// document matches it, exactly or through the fallback.
func (e *Engine) BuildReport(snap Snapshot, rates RateConfig, number string) *Report {
	docs, fallback := matchDocuments(snap.Documents, number)
	if len(docs) == 0 {
		e.Logger.Debug().Str("number", number).Msg("no document matches")
		return nil
	}
	if fallback {
		e.Logger.Warn().
			Str("number", number).
			Int("documents", len(docs)).
			Msg("document number matched by substring fallback")
	}

	ids := make(map[DocumentID]bool, len(docs))
	for _, d := range docs {
		ids[d.ID] = true
	}
	rep := &Report{
		Number:          NormalizeDocumentNumber(number),
		Documents:       docs,
		Rows:            []EntryRecord{},
		Exits:           []ReportExit{},
		EntryNormalCost: decimal.Zero,
		EntryFrozenCost: decimal.Zero,
		EntryCost:       decimal.Zero,
		ExitCost:        decimal.Zero,
		StorageCost:     decimal.Zero,
		FallbackMatch:   fallback,
	}
	for _, r := range snap.Records {
		if ids[r.DocumentID] {
			rep.Rows = append(rep.Rows, r.Clone())
		}
	}
	if len(rep.Rows) == 0 {
		e.Logger.Warn().Str("number", rep.Number).Msg("document has no records, returning empty report")
		return rep
	}

	today := e.Today()
	var counts Counts
	for _, r := range rep.Rows {
		class := r.Classification()
		counts.Add(class, r.Units)
		rep.TotalEntered += r.Units

		for _, ev := range r.ActiveExits() {
			_, cost := ExitCost(class, ev.Units, rates)
			rep.ExitCost = rep.ExitCost.Add(cost)
			rep.TotalExited += ev.Units
			rep.Exits = append(rep.Exits, ReportExit{
				RecordID:    r.ID,
				Date:        ev.Date,
				Units:       ev.Units,
				ElapsedDays: elapsedDays(r, ev),
			})
		}
		if left := r.Units - r.ExitedUnits(); left > 0 {
			rep.Remaining += left
		}
		rep.StorageCost = rep.StorageCost.Add(recordStorageCost(r, today, rates))
	}

	rep.EquivalentNormal = counts.NormalEquivalent()
	rep.EquivalentFrozen = counts.FrozenEquivalent()
	rep.EntryNormalCost = units(rep.EquivalentNormal).Mul(rates.EntryRateFor(false))
	rep.EntryFrozenCost = units(rep.EquivalentFrozen).Mul(rates.EntryRateFor(true))
	rep.EntryCost = rep.EntryNormalCost.Add(rep.EntryFrozenCost)

	sort.SliceStable(rep.Exits, func(i, j int) bool { return rep.Exits[i].Date.Before(rep.Exits[j].Date) })
	return rep
}

// matchDocuments finds documents whose normalized number equals the query.
// When none does, documents whose number contains the query, or is
// contained in it, are returned with fallback set.
func matchDocuments(docs []Document, number string) (matched []Document, fallback bool) {
	query := NormalizeDocumentNumber(number)
	if query == "" {
		return nil, false
	}
	for _, d := range docs {
		if NormalizeDocumentNumber(d.Number) == query {
			matched = append(matched, d)
		}
	}
	if len(matched) > 0 {
		return matched, false
	}
	for _, d := range docs {
		n := NormalizeDocumentNumber(d.Number)
		if n == "" {
			continue
		}
		if strings.Contains(n, query) || strings.Contains(query, n) {
			matched = append(matched, d)
		}
	}
	return matched, len(matched) > 0
}

func elapsedDays(r EntryRecord, ev ExitEvent) int {
	if ev.ElapsedDays != nil {
		return *ev.ElapsedDays
	}
	if r.EntryDate.IsZero() {
		return 0
	}
	return generic.DaysBetween(r.EntryDate, ev.Date)
}

// recordStorageCost accrues one record to today in segments between its
// entry and exit boundaries. Exits after today are not counted yet.
//
// Without exits both endpoints are billed: entry..today inclusive. With
// exits each segment is billed for the whole days between its boundaries,
// and the stock left after the last exit runs from that exit to today.
func recordStorageCost(r EntryRecord, today generic.TimePoint, rates RateConfig) decimal.Decimal {
	if r.EntryDate.IsZero() || r.EntryDate.After(today) {
		return decimal.Zero
	}
	rate := rates.StorageRateFor(r.Frozen)

	var exits []ExitEvent
	for _, ev := range SortedExits(r) {
		if ev.Date.BeforeOrEqual(today) {
			exits = append(exits, ev)
		}
	}
	if len(exits) == 0 {
		days := generic.DaysBetween(r.EntryDate, today) + 1
		return units(days * r.Geometry.Equivalent(r.Units)).Mul(rate)
	}

	unitDays := 0
	stock := r.Units
	boundary := r.EntryDate
	for _, ev := range exits {
		if days := generic.DaysBetween(boundary, ev.Date); days > 0 && stock > 0 {
			unitDays += days * r.Geometry.Equivalent(stock)
		}
		stock = deplete(stock, ev.Units)
		boundary = ev.Date
	}
	if days := generic.DaysBetween(boundary, today); days > 0 && stock > 0 {
		unitDays += days * r.Geometry.Equivalent(stock)
	}
	return units(unitDays).Mul(rate)
}
