package memory

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

func newRecord(t *testing.T, id, doc string) pallet.EntryRecord {
	t.Helper()
	r, err := pallet.NewEntryRecord(pallet.RecordID(id), pallet.DocumentID(doc),
		generic.NewTimePoint(2024, time.January, 10), 30, pallet.Classify("100x120", ""), "")
	require.NoError(t, err)
	return r
}

func TestMemory_AppendAndSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveDocument(ctx, pallet.Document{ID: "d1", Number: "A/1"}))
	require.NoError(t, m.SaveDocument(ctx, pallet.Document{ID: "d1", Number: "ignored"}))

	require.NoError(t, m.AppendRecords(ctx, []pallet.EntryRecord{newRecord(t, "r1", "d1")}))

	snap, err := m.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, "A/1", snap.Documents[0].Number)
	require.Len(t, snap.Records, 1)

	// Later writes do not leak into an earlier snapshot.
	_, err = m.AppendExit(ctx, "r1", pallet.FilledSlot("uscita_1", pallet.ExitEvent{
		Date: generic.NewTimePoint(2024, time.January, 20), Units: 10,
	}))
	require.NoError(t, err)
	assert.Empty(t, snap.Records[0].Exits)

	snap, _ = m.Snapshot(ctx)
	assert.Equal(t, 10, snap.Records[0].ExitedUnits())
}

func TestMemory_AppendRecordsIsAtomic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveDocument(ctx, pallet.Document{ID: "d1", Number: "A/1"}))
	require.NoError(t, m.AppendRecords(ctx, []pallet.EntryRecord{newRecord(t, "r1", "d1")}))

	err := m.AppendRecords(ctx, []pallet.EntryRecord{newRecord(t, "r2", "d1"), newRecord(t, "r1", "d1")})
	assert.ErrorIs(t, err, pallet.ErrDuplicateRecord)
	assert.True(t, pallet.IsConflict(err))

	err = m.AppendRecords(ctx, []pallet.EntryRecord{newRecord(t, "r3", "missing")})
	assert.ErrorIs(t, err, pallet.ErrDocumentNotFound)

	snap, _ := m.Snapshot(ctx)
	assert.Len(t, snap.Records, 1, "failed batches write nothing")

	_, err = m.AppendExit(ctx, "nope", pallet.EmptySlot("uscita_1"))
	assert.ErrorIs(t, err, pallet.ErrRecordNotFound)
}

func TestMemory_AppendDatasetIsAtomic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.AppendDataset(ctx, []pallet.Document{{ID: "d1", Number: "A/1"}},
		[]pallet.EntryRecord{newRecord(t, "r1", "d1")}))

	err := m.AppendDataset(ctx, []pallet.Document{{ID: "d2", Number: "B/1"}},
		[]pallet.EntryRecord{newRecord(t, "r2", "d2"), newRecord(t, "r1", "d2")})
	assert.ErrorIs(t, err, pallet.ErrDuplicateRecord)

	docs, _ := m.ListDocuments(ctx)
	require.Len(t, docs, 1, "the document of a failed batch is not kept")
	assert.Equal(t, "A/1", docs[0].Number)
}

func TestMemory_RatesAndReset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rates, err := m.Rates(ctx)
	require.NoError(t, err)
	assert.True(t, rates.EntryRate.Equal(decimal.RequireFromString("3.5")))

	rates.ExitRate = decimal.NewFromInt(-1)
	assert.ErrorIs(t, m.SaveRates(ctx, rates), pallet.ErrInvalidRate)

	require.NoError(t, m.SaveDocument(ctx, pallet.Document{ID: "d1"}))
	require.NoError(t, m.Reset(ctx))
	docs, _ := m.ListDocuments(ctx)
	assert.Empty(t, docs)
}
