package pallet_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/pallet-ledger/generic"
	"github.com/warp/pallet-ledger/pallet"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func engineAt(today generic.TimePoint) *pallet.Engine {
	return pallet.NewEngine(generic.FixedClock{Day: today}, zerolog.Nop())
}

// flatRates bills 1 per equivalent pallet for handling and storage, 2 for
// frozen handling, so costs read as counts.
func flatRates() pallet.RateConfig {
	return pallet.RateConfig{
		EntryRate:         decimal.NewFromInt(1),
		ExitRate:          decimal.NewFromInt(1),
		StorageRatePerDay: decimal.NewFromInt(1),
		FrozenRate:        decimal.NewFromInt(2),
	}
}

func exit(key string, at generic.TimePoint, n int) pallet.ExitSlot {
	return pallet.FilledSlot(key, pallet.ExitEvent{Date: at, Units: n})
}

func record(t *testing.T, id, doc string, entry generic.TimePoint, n int, label, note string, exits ...pallet.ExitSlot) pallet.EntryRecord {
	t.Helper()
	r, err := pallet.NewEntryRecord(pallet.RecordID(id), pallet.DocumentID(doc), entry, n, pallet.Classify(label, note), note, exits...)
	require.NoError(t, err)
	return r
}

func snapshot(records ...pallet.EntryRecord) pallet.Snapshot {
	seen := map[pallet.DocumentID]bool{}
	var docs []pallet.Document
	for _, r := range records {
		if !seen[r.DocumentID] {
			seen[r.DocumentID] = true
			docs = append(docs, pallet.Document{ID: r.DocumentID, Number: fmt.Sprintf("DOC %s", r.DocumentID)})
		}
	}
	return pallet.Snapshot{Documents: docs, Records: records}
}

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }
