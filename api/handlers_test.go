/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Imports, documents and exits
- Summaries, storage, projection and month listings
- Reports and exports
- Rates and error mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pallet-ledger/factory"
	"github.com/warp/pallet-ledger/generic"
	"github.com/warp/pallet-ledger/pallet"
	"github.com/warp/pallet-ledger/store/sqlite"
)

// testToday is the fixed clock of every handler test.
var testToday = generic.NewTimePoint(2024, time.March, 15)

type testServer struct {
	handler *Handler
	store   *sqlite.Store
	router  http.Handler
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := pallet.NewEngine(generic.FixedClock{Day: testToday}, zerolog.Nop())
	service := pallet.NewService(store, store, engine)
	h := NewHandler(store, service, zerolog.Nop())
	return &testServer{
		handler: h,
		store:   store,
		router:  NewRouter(h, RouterConfig{Logger: zerolog.Nop()}),
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

// flatRates makes costs read as counts: 1 per equivalent pallet for
// handling and storage, 2 for frozen handling.
func (ts *testServer) flatRates(t *testing.T) {
	t.Helper()
	require.NoError(t, ts.store.SaveRates(context.Background(), pallet.RateConfig{
		EntryRate:         decimal.NewFromInt(1),
		ExitRate:          decimal.NewFromInt(1),
		StorageRatePerDay: decimal.NewFromInt(1),
		FrozenRate:        decimal.NewFromInt(2),
	}))
}

func importRows(t *testing.T, ts *testServer, rows ...factory.RecordJSON) ImportRecordsResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/records", ImportRecordsRequest{Records: rows})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[ImportRecordsResponse](t, rec)
}

// =============================================================================
// IMPORTS & DOCUMENTS
// =============================================================================

func TestImportRecords_CreatesDocumentsOnFirstSighting(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: a stored document
	rec := ts.do(t, http.MethodPost, "/api/documents", CreateDocumentRequest{ID: "d1", Number: "2024/1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN: rows reference it by number, plus a new number
	resp := importRows(t, ts,
		factory.RecordJSON{ID: "r1", DocumentNumber: "2024/1", EntryDate: "2024-01-10", Units: 26, Geometry: "100x120"},
		factory.RecordJSON{ID: "r2", DocumentNumber: "2024/2", EntryDate: "2024-01-11", Units: 4, Geometry: "80x120"},
		factory.RecordJSON{ID: "r3", DocumentNumber: "2024/2", EntryDate: "2024-01-12", Units: 2, Geometry: "80x120",
			Exits: []factory.ExitJSON{{Date: "not-a-date", Units: 1}}},
	)

	// THEN: only the unseen number became a document
	assert.Equal(t, 1, resp.Documents)
	assert.Equal(t, 3, resp.Records)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, string(pallet.IssueInvalidDate), resp.Issues[0].Kind)

	docs := decodeBody[[]DocumentDTO](t, ts.do(t, http.MethodGet, "/api/documents", nil))
	assert.Len(t, docs, 2)

	snap, err := ts.store.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Records, 3)
	assert.Equal(t, pallet.DocumentID("d1"), snap.Records[0].DocumentID)
}

func TestImportRecords_Errors(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/records", ImportRecordsRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty batch fails validation")

	rec = ts.do(t, http.MethodPost, "/api/records", ImportRecordsRequest{Records: []factory.RecordJSON{
		{ID: "r1", DocumentID: "missing", EntryDate: "2024-01-10", Units: 1},
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown document id")

	rec = ts.do(t, http.MethodPost, "/api/records", ImportRecordsRequest{Records: []factory.RecordJSON{
		{ID: "r1", DocumentNumber: "X", EntryDate: "2024-01-10", Units: -1},
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "negative units")

	importRows(t, ts, factory.RecordJSON{ID: "r1", DocumentNumber: "X", EntryDate: "2024-01-10", Units: 1})
	rec = ts.do(t, http.MethodPost, "/api/records", ImportRecordsRequest{Records: []factory.RecordJSON{
		{ID: "r1", DocumentNumber: "X", EntryDate: "2024-01-10", Units: 1},
	}})
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate record id")

	rec = ts.do(t, http.MethodPost, "/api/documents", CreateDocumentRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "number is required")
}

func TestImportRecords_FailedBatchStoresNoDocuments(t *testing.T) {
	ts := setupTestServer(t)
	importRows(t, ts, factory.RecordJSON{ID: "r1", DocumentNumber: "X", EntryDate: "2024-01-10", Units: 1})

	// GIVEN: a batch that introduces NEW-1 and reuses the stored id r1
	rec := ts.do(t, http.MethodPost, "/api/records", ImportRecordsRequest{Records: []factory.RecordJSON{
		{ID: "r2", DocumentNumber: "NEW-1", EntryDate: "2024-01-11", Units: 2},
		{ID: "r1", DocumentNumber: "NEW-1", EntryDate: "2024-01-11", Units: 2},
	}})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	// THEN: neither the records nor the new document were kept
	docs := decodeBody[[]DocumentDTO](t, ts.do(t, http.MethodGet, "/api/documents", nil))
	require.Len(t, docs, 1)
	assert.Equal(t, "X", docs[0].Number)

	rec = ts.do(t, http.MethodGet, "/api/reports?number=NEW-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	snap, err := ts.store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Records, 1)
}

func TestAppendExit(t *testing.T) {
	ts := setupTestServer(t)
	importRows(t, ts, factory.RecordJSON{ID: "r1", DocumentNumber: "X", EntryDate: "2024-01-10", Units: 10, Geometry: "80x120",
		Exits: []factory.ExitJSON{{Date: "2024-01-12", Units: 2}}})

	rec := ts.do(t, http.MethodPost, "/api/records/r1/exits", AppendExitRequest{Date: "2024-02-01", Units: 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decodeBody[factory.RecordJSON](t, rec)
	require.Len(t, got.Exits, 2)
	assert.Equal(t, "uscita_2", got.Exits[1].Slot)
	assert.Equal(t, "2024-02-01", got.Exits[1].Date)

	rec = ts.do(t, http.MethodPost, "/api/records/nope/exits", AppendExitRequest{Date: "2024-02-01", Units: 3})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/records/r1/exits", AppendExitRequest{Date: "01/02/2024", Units: 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/records/r1/exits", AppendExitRequest{Date: "2024-02-01", Units: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SUMMARIES & STORAGE
// =============================================================================

func TestGetSummaries(t *testing.T) {
	ts := setupTestServer(t)
	ts.flatRates(t)
	importRows(t, ts,
		factory.RecordJSON{ID: "r1", DocumentNumber: "A", EntryDate: "2024-01-10", Units: 26, Geometry: "100x120",
			Exits: []factory.ExitJSON{{Date: "2024-02-05", Units: 6}}},
		factory.RecordJSON{ID: "r2", DocumentNumber: "A", EntryDate: "", Units: 3, Geometry: "80x120"},
	)

	rec := ts.do(t, http.MethodGet, "/api/summaries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[SummariesResponse](t, rec)

	assert.Equal(t, "2024-03-15", resp.AsOf)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "2024-01", resp.Entries[0].Month)
	assert.Equal(t, 33, resp.Entries[0].EquivalentA)
	assert.True(t, resp.Entries[0].Cost.Equal(decimal.NewFromInt(33)))

	require.Len(t, resp.Exits, 1)
	assert.Equal(t, "2024-02", resp.Exits[0].Month)
	assert.Equal(t, 6, resp.Exits[0].TotalUnits)

	require.Len(t, resp.Storage, 3)
	assert.Equal(t, "2024-03", resp.Storage[2].Month)
	assert.Equal(t, 15, resp.Storage[2].CoveredDays)

	require.Len(t, resp.Issues, 1)
	assert.Equal(t, "r2", resp.Issues[0].RecordID)
	assert.True(t, resp.Totals.Total.Equal(resp.Totals.EntryCost.Add(resp.Totals.ExitCost).Add(resp.Totals.StorageCost)))
}

func TestStorageEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	ts.flatRates(t)
	importRows(t, ts,
		factory.RecordJSON{ID: "r1", DocumentNumber: "A", EntryDate: "2024-03-01", Units: 26, Geometry: "100x120"},
		factory.RecordJSON{ID: "r2", DocumentNumber: "B", EntryDate: "2024-03-10", Units: 4, Geometry: "80x120", Note: "CONGELATO"},
	)

	details := decodeBody[StorageDetailsDTO](t, ts.do(t, http.MethodGet, "/api/storage/2024-03/details", nil))
	assert.Equal(t, "2024-03-15", details.Reference)
	assert.Equal(t, 26, details.NormalA)
	assert.Equal(t, 33, details.EquivalentNormal)
	assert.Equal(t, 4, details.FrozenB)
	assert.Equal(t, 4, details.EquivalentFrozen)

	proj := decodeBody[ProjectionDTO](t, ts.do(t, http.MethodGet, "/api/storage/2024-03/projection", nil))
	assert.True(t, proj.IsCurrentPeriod)
	assert.Equal(t, 37, proj.CurrentStock)
	assert.Equal(t, 16, proj.DaysRemaining)
	assert.True(t, proj.ProjectedCost.Equal(decimal.NewFromInt(37*16)), proj.ProjectedCost.String())

	past := decodeBody[ProjectionDTO](t, ts.do(t, http.MethodGet, "/api/storage/2024-02/projection", nil))
	assert.False(t, past.IsCurrentPeriod)
	assert.True(t, past.ProjectedCost.IsZero())

	lines := decodeBody[[]StorageLineDTO](t, ts.do(t, http.MethodGet, "/api/storage/2024-03/records", nil))
	require.Len(t, lines, 2)
	byID := map[string]StorageLineDTO{}
	for _, l := range lines {
		byID[l.RecordID] = l
	}
	assert.Equal(t, 15, byID["r1"].ActiveDays)
	assert.Equal(t, 15*33, byID["r1"].UnitDays)
	assert.Equal(t, "2024-03-10", byID["r2"].From)
	assert.True(t, byID["r2"].Frozen)

	rec := ts.do(t, http.MethodGet, "/api/storage/march/details", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonthListings(t *testing.T) {
	ts := setupTestServer(t)
	importRows(t, ts,
		factory.RecordJSON{ID: "r1", DocumentNumber: "A", EntryDate: "2024-01-10", Units: 5, Geometry: "80x120",
			Exits: []factory.ExitJSON{{Date: "2024-02-03", Units: 5}}},
		factory.RecordJSON{ID: "r2", DocumentNumber: "B", EntryDate: "2024-02-10", Units: 5, Geometry: "80x120"},
	)

	docs := decodeBody[[]DocumentDTO](t, ts.do(t, http.MethodGet, "/api/months/2024-01/documents", nil))
	require.Len(t, docs, 1)
	assert.Equal(t, "A", docs[0].Number)

	entries := decodeBody[[]factory.RecordJSON](t, ts.do(t, http.MethodGet, "/api/months/2024-02/records", nil))
	require.Len(t, entries, 1)
	assert.Equal(t, "r2", entries[0].ID)

	exits := decodeBody[[]factory.RecordJSON](t, ts.do(t, http.MethodGet, "/api/months/2024-02/records?movement=exit", nil))
	require.Len(t, exits, 1)
	assert.Equal(t, "r1", exits[0].ID)

	rec := ts.do(t, http.MethodGet, "/api/months/2024-02/records?movement=both", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REPORTS & EXPORTS
// =============================================================================

func TestGetReport(t *testing.T) {
	ts := setupTestServer(t)
	ts.flatRates(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/documents", CreateDocumentRequest{ID: "d1", Number: "2025/7599"}).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/documents", CreateDocumentRequest{ID: "d2", Number: "2025/7599"}).Code)
	importRows(t, ts,
		factory.RecordJSON{ID: "r1", DocumentID: "d1", EntryDate: "2024-03-01", Units: 20, Geometry: "80x120",
			Exits: []factory.ExitJSON{{Date: "2024-03-11", Units: 5}}},
		factory.RecordJSON{ID: "r2", DocumentID: "d2", EntryDate: "2024-03-05", Units: 6, Geometry: "80x120"},
	)

	rec := ts.do(t, http.MethodGet, "/api/reports?number=%202025/7599%20", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := decodeBody[ReportDTO](t, rec)
	assert.Equal(t, "2025/7599", rep.Number)
	assert.Len(t, rep.Documents, 2)
	assert.Len(t, rep.Rows, 2)
	assert.Equal(t, 26, rep.TotalEntered)
	assert.Equal(t, 5, rep.TotalExited)
	assert.Equal(t, 21, rep.Remaining)
	assert.False(t, rep.FallbackMatch)
	require.Len(t, rep.Exits, 1)
	assert.Equal(t, 10, rep.Exits[0].ElapsedDays)
	assert.True(t, rep.EntryCost.Equal(decimal.NewFromInt(26)))
	assert.True(t, rep.ExitCost.Equal(decimal.NewFromInt(5)))
	assert.True(t, rep.TotalCost.Equal(rep.EntryCost.Add(rep.ExitCost).Add(rep.StorageCost)))

	rec = ts.do(t, http.MethodGet, "/api/reports?number=9999/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/reports", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExports(t *testing.T) {
	ts := setupTestServer(t)
	importRows(t, ts, factory.RecordJSON{ID: "r1", DocumentNumber: "2024/9", EntryDate: "2024-03-01", Units: 3, Geometry: "100x120"})

	rec := ts.do(t, http.MethodGet, "/api/summaries/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "summaries-2024-03-15.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	rec = ts.do(t, http.MethodGet, "/api/reports/export.pdf?number=2024/9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = ts.do(t, http.MethodGet, "/api/reports/export.pdf?number=nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// RATES
// =============================================================================

func TestRates(t *testing.T) {
	ts := setupTestServer(t)

	got := decodeBody[RatesDTO](t, ts.do(t, http.MethodGet, "/api/rates", nil))
	assert.Equal(t, "3.5", got.EntryRate)
	assert.Empty(t, got.FrozenStorageRatePerDay)

	update := RatesDTO{EntryRate: "4", ExitRate: "3", StorageRatePerDay: "0.25", FrozenRate: "6", FrozenStorageRatePerDay: "0.4"}
	rec := ts.do(t, http.MethodPut, "/api/rates", update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got = decodeBody[RatesDTO](t, ts.do(t, http.MethodGet, "/api/rates", nil))
	assert.Equal(t, update, got)

	update.ExitRate = "-1"
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/api/rates", update).Code)

	update.ExitRate = "abc"
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/api/rates", update).Code)
}

func TestRates_FileManaged(t *testing.T) {
	ts := setupTestServer(t)
	ts.handler.Service.Rates = pallet.StaticRates(pallet.DefaultRates())

	rec := ts.do(t, http.MethodPut, "/api/rates", RatesDTO{EntryRate: "1", ExitRate: "1", StorageRatePerDay: "1", FrozenRate: "1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	got := decodeBody[RatesDTO](t, ts.do(t, http.MethodGet, "/api/rates", nil))
	assert.Equal(t, "3.5", got.ExitRate)
}
