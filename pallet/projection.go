package pallet

import (
	"github.com/shopspring/decimal"

	"github.com/warp/pallet-ledger/generic"
)

// =============================================================================
// PROJECTION - Storage cost still to accrue in the current month
// =============================================================================

// CurrentEquivalentStock is the equivalent stock at the end of today,
// converted per record. Records entered after today are ignored.
func (e *Engine) CurrentEquivalentStock(snap Snapshot) int {
	today := e.Today()
	total := 0
	for _, r := range snap.Records {
		if r.EntryDate.IsZero() || r.EntryDate.After(today) {
			continue
		}
		total += RemainingEquivalentAt(r, today)
	}
	return total
}

// ProjectStorageCost estimates the storage cost of the days left in month
// at today's stock. It is zero for any month but the current one.
//
// The projection bills all stock at StorageRatePerDay, frozen included.
func (e *Engine) ProjectStorageCost(snap Snapshot, rates RateConfig, month generic.MonthKey) decimal.Decimal {
	today := e.Today()
	if month != today.MonthKey() {
		return decimal.Zero
	}
	daysLeft := month.Days() - today.Day()
	if daysLeft <= 0 {
		return decimal.Zero
	}
	stock := e.CurrentEquivalentStock(snap)
	return units(stock).Mul(rates.StorageRatePerDay).Mul(units(daysLeft))
}
