package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pallet-ledger/generic"
	"github.com/warp/pallet-ledger/pallet"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func jan(day int) generic.TimePoint { return generic.NewTimePoint(2024, time.January, day) }

func TestStore_RecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveDocument(ctx, pallet.Document{ID: "d1", Number: "2025/7599"}))
	require.NoError(t, store.SaveDocument(ctx, pallet.Document{ID: "d2", Number: "2025/7599"}))

	elapsed := 10
	r1, err := pallet.NewEntryRecord("r1", "d1", jan(10), 30, pallet.Classify("100x120", "congelato"), "congelato",
		pallet.FilledSlot("uscita_1", pallet.ExitEvent{Date: jan(20), Units: 10, ElapsedDays: &elapsed}),
		pallet.EmptySlot("uscita_2"),
	)
	require.NoError(t, err)
	r2, err := pallet.NewEntryRecord("r2", "d2", generic.TimePoint{}, 4, pallet.Classify("80x120", ""), "")
	require.NoError(t, err)
	require.NoError(t, store.AppendRecords(ctx, []pallet.EntryRecord{r1, r2}))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Documents, 2)
	require.Len(t, snap.Records, 2)

	got := snap.Records[0]
	assert.Equal(t, r1.ID, got.ID)
	assert.Equal(t, jan(10), got.EntryDate)
	assert.Equal(t, pallet.GeometryA, got.Geometry)
	assert.True(t, got.Frozen)
	require.Len(t, got.Exits, 2)
	ev, ok := got.Exits[0].Event()
	require.True(t, ok)
	assert.Equal(t, jan(20), ev.Date)
	require.NotNil(t, ev.ElapsedDays)
	assert.Equal(t, 10, *ev.ElapsedDays)
	_, ok = got.Exits[1].Event()
	assert.False(t, ok)

	assert.True(t, snap.Records[1].EntryDate.IsZero())
	assert.Equal(t, pallet.GeometryB, snap.Records[1].Geometry)

	docs, records, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, docs)
	assert.Equal(t, 2, records)
}

func TestStore_AppendRecordsIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveDocument(ctx, pallet.Document{ID: "d1", Number: "A"}))

	r1, _ := pallet.NewEntryRecord("r1", "d1", jan(1), 1, pallet.Classify("", ""), "")
	require.NoError(t, store.AppendRecords(ctx, []pallet.EntryRecord{r1}))

	r2, _ := pallet.NewEntryRecord("r2", "d1", jan(1), 1, pallet.Classify("", ""), "")
	err := store.AppendRecords(ctx, []pallet.EntryRecord{r2, r1})
	assert.ErrorIs(t, err, pallet.ErrDuplicateRecord)

	orphan, _ := pallet.NewEntryRecord("r3", "missing", jan(1), 1, pallet.Classify("", ""), "")
	err = store.AppendRecords(ctx, []pallet.EntryRecord{orphan})
	assert.ErrorIs(t, err, pallet.ErrDocumentNotFound)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Records, 1)
}

func TestStore_AppendDatasetRollsBackDocuments(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveDocument(ctx, pallet.Document{ID: "d1", Number: "A"}))
	r1, _ := pallet.NewEntryRecord("r1", "d1", jan(1), 1, pallet.Classify("", ""), "")
	require.NoError(t, store.AppendRecords(ctx, []pallet.EntryRecord{r1}))

	// A new document with a duplicate record: nothing is written.
	r2, _ := pallet.NewEntryRecord("r2", "d2", jan(1), 1, pallet.Classify("", ""), "")
	r1again, _ := pallet.NewEntryRecord("r1", "d2", jan(1), 1, pallet.Classify("", ""), "")
	err := store.AppendDataset(ctx, []pallet.Document{{ID: "d2", Number: "B"}}, []pallet.EntryRecord{r2, r1again})
	assert.ErrorIs(t, err, pallet.ErrDuplicateRecord)

	docs, records, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, docs)
	assert.Equal(t, 1, records)

	// Records may reference documents introduced in the same call.
	require.NoError(t, store.AppendDataset(ctx,
		[]pallet.Document{{ID: "d1", Number: "ignored"}, {ID: "d2", Number: "B"}},
		[]pallet.EntryRecord{r2}))
	list, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Number)
}

func TestStore_AppendExit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveDocument(ctx, pallet.Document{ID: "d1", Number: "A"}))
	r1, _ := pallet.NewEntryRecord("r1", "d1", jan(1), 10, pallet.Classify("", ""), "",
		pallet.FilledSlot("uscita_1", pallet.ExitEvent{Date: jan(2), Units: 1}))
	require.NoError(t, store.AppendRecords(ctx, []pallet.EntryRecord{r1}))

	updated, err := store.AppendExit(ctx, "r1", pallet.FilledSlot("uscita_2", pallet.ExitEvent{Date: jan(5), Units: 3}))
	require.NoError(t, err)
	require.Len(t, updated.Exits, 2)
	assert.Equal(t, "uscita_2", updated.Exits[1].Key)
	assert.Equal(t, 4, updated.ExitedUnits())

	_, err = store.AppendExit(ctx, "nope", pallet.EmptySlot("uscita_1"))
	assert.ErrorIs(t, err, pallet.ErrRecordNotFound)
}

func TestStore_Rates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rates, err := store.Rates(ctx)
	require.NoError(t, err)
	assert.True(t, rates.FrozenRate.Equal(decimal.RequireFromString("5")), "defaults before first save")
	assert.False(t, rates.FrozenStorageRatePerDay.Valid)

	rates.StorageRatePerDay = decimal.RequireFromString("0.25")
	rates.FrozenStorageRatePerDay = decimal.NewNullDecimal(decimal.RequireFromString("0.4"))
	require.NoError(t, store.SaveRates(ctx, rates))

	got, err := store.Rates(ctx)
	require.NoError(t, err)
	assert.True(t, got.StorageRatePerDay.Equal(decimal.RequireFromString("0.25")))
	require.True(t, got.FrozenStorageRatePerDay.Valid)
	assert.True(t, got.FrozenStorageRatePerDay.Decimal.Equal(decimal.RequireFromString("0.4")))

	rates.EntryRate = decimal.NewFromInt(-1)
	assert.ErrorIs(t, store.SaveRates(ctx, rates), pallet.ErrInvalidRate)
}

func TestStore_ResetKeepsRates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveDocument(ctx, pallet.Document{ID: "d1", Number: "A"}))
	r1, _ := pallet.NewEntryRecord("r1", "d1", jan(1), 10, pallet.Classify("", ""), "",
		pallet.FilledSlot("uscita_1", pallet.ExitEvent{Date: jan(2), Units: 1}))
	require.NoError(t, store.AppendRecords(ctx, []pallet.EntryRecord{r1}))
	rates := pallet.DefaultRates()
	rates.ExitRate = decimal.NewFromInt(9)
	require.NoError(t, store.SaveRates(ctx, rates))

	require.NoError(t, store.Reset(ctx))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Documents)
	assert.Empty(t, snap.Records)
	got, _ := store.Rates(ctx)
	assert.True(t, got.ExitRate.Equal(decimal.NewFromInt(9)))
}
