/*
handlers.go - HTTP API handlers for the pallet ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to pallet.Service.

ENDPOINTS:
  Summaries:
    GET    /api/summaries                       Entry/exit/storage per month
    GET    /api/summaries/export.xlsx           Same, as a workbook

  Storage:
    GET    /api/storage/{month}/details         Stock on hand at the month's reference day
    GET    /api/storage/{month}/projection      Storage cost projected to month end
    GET    /api/storage/{month}/records         Per-record storage lines

  Months:
    GET    /api/months/{month}/documents        Documents with entries in the month
    GET    /api/months/{month}/records          Records by movement (?movement=entry|exit)

  Reports:
    GET    /api/reports?number=...              Document report
    GET    /api/reports/export.pdf?number=...   Same, as PDF

  Documents & records:
    GET    /api/documents                       List documents
    POST   /api/documents                       Register a document
    POST   /api/records                         Import a dataset
    POST   /api/records/{id}/exits              Append an exit

  Rates:
    GET    /api/rates                           Current tariff
    PUT    /api/rates                           Replace tariff (store-backed rates only)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Document or record not found
  - 409: Duplicate record id, or rates managed by file
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo datasets and reset
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/warp/pallet-ledger/export"
	"github.com/warp/pallet-ledger/factory"
	"github.com/warp/pallet-ledger/generic"
	"github.com/warp/pallet-ledger/pallet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   pallet.Store
	Service *pallet.Service
	Factory *factory.RecordFactory
	Logger  zerolog.Logger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a handler. The service reads from store; its rate
// provider is editable through the API only when it is a pallet.RateStore.
func NewHandler(store pallet.Store, service *pallet.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Service:  service,
		Factory:  factory.NewRecordFactory(),
		Logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) today() generic.TimePoint {
	return h.Service.Engine.Today()
}

// =============================================================================
// SUMMARIES
// =============================================================================

// GetSummaries returns the monthly summaries, totals and issues.
// GET /api/summaries
func (h *Handler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	sums, err := h.Service.Summaries(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to compute summaries", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummariesResponse(sums))
}

// ExportSummaries streams the summaries as XLSX.
// GET /api/summaries/export.xlsx
func (h *Handler) ExportSummaries(w http.ResponseWriter, r *http.Request) {
	sums, err := h.Service.Summaries(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to compute summaries", err)
		return
	}
	raw, err := export.SummariesXLSX(sums)
	if err != nil {
		h.writeServiceError(w, "Failed to render workbook", err)
		return
	}
	writeFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("summaries-%s.xlsx", sums.AsOf), raw)
}

// =============================================================================
// STORAGE
// =============================================================================

// GetStorageDetails returns the stock on hand for a month.
// GET /api/storage/{month}/details
func (h *Handler) GetStorageDetails(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	d, err := h.Service.StorageDetails(r.Context(), month)
	if err != nil {
		h.writeServiceError(w, "Failed to compute storage details", err)
		return
	}
	writeJSON(w, http.StatusOK, toStorageDetailsDTO(d))
}

// GetProjection returns the projected storage cost to month end. Months
// other than the current one project zero.
// GET /api/storage/{month}/projection
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	p, err := h.Service.Projection(r.Context(), month)
	if err != nil {
		h.writeServiceError(w, "Failed to project storage cost", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectionDTO(p))
}

// GetStorageLines returns how each record contributed to a month's storage.
// GET /api/storage/{month}/records
func (h *Handler) GetStorageLines(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	lines, err := h.Service.StorageLines(r.Context(), month)
	if err != nil {
		h.writeServiceError(w, "Failed to compute storage lines", err)
		return
	}
	writeJSON(w, http.StatusOK, toStorageLineDTOs(lines))
}

// =============================================================================
// MONTHS
// =============================================================================

// GetMonthDocuments lists the documents with entries in a month.
// GET /api/months/{month}/documents
func (h *Handler) GetMonthDocuments(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	docs, err := h.Service.DocumentsInMonth(r.Context(), month)
	if err != nil {
		h.writeServiceError(w, "Failed to list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTOs(docs))
}

// GetMonthRecords lists records entering (default) or exiting in a month.
// GET /api/months/{month}/records?movement=entry|exit
func (h *Handler) GetMonthRecords(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	mv := pallet.Movement(r.URL.Query().Get("movement"))
	switch mv {
	case "":
		mv = pallet.MovementEntry
	case pallet.MovementEntry, pallet.MovementExit:
	default:
		writeError(w, http.StatusBadRequest, "movement must be entry or exit", nil)
		return
	}
	records, err := h.Service.RecordsInMonth(r.Context(), month, mv)
	if err != nil {
		h.writeServiceError(w, "Failed to list records", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// =============================================================================
// REPORTS
// =============================================================================

// GetReport returns the report for a document number.
// GET /api/reports?number=2025/7599
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

// ExportReport streams the report for a document number as PDF.
// GET /api/reports/export.pdf?number=2025/7599
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.report(w, r)
	if !ok {
		return
	}
	raw, err := export.ReportPDF(rep)
	if err != nil {
		h.writeServiceError(w, "Failed to render report", err)
		return
	}
	writeFile(w, "application/pdf", "report.pdf", raw)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) (*pallet.Report, bool) {
	number := r.URL.Query().Get("number")
	if err := h.validate.Var(number, "required,max=128"); err != nil {
		writeError(w, http.StatusBadRequest, "number query parameter is required", err)
		return nil, false
	}
	rep, err := h.Service.Report(r.Context(), number)
	if err != nil {
		h.writeServiceError(w, "Failed to build report", err)
		return nil, false
	}
	return rep, true
}

// =============================================================================
// DOCUMENTS & RECORDS
// =============================================================================

// ListDocuments returns every document.
// GET /api/documents
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Store.ListDocuments(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTOs(docs))
}

// CreateDocument registers a document. Registering an existing id is a
// no-op: documents are created on first sighting only.
// POST /api/documents
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc := h.Factory.BuildDocument(factory.DocumentJSON{ID: req.ID, Number: req.Number})
	if err := h.Store.SaveDocument(r.Context(), doc); err != nil {
		h.writeServiceError(w, "Failed to create document", err)
		return
	}
	writeJSON(w, http.StatusCreated, DocumentDTO{ID: string(doc.ID), Number: doc.Number})
}

// ImportRecords builds a dataset with the record factory and appends it.
// Records may point at stored documents by id or by number; an unseen
// number creates its document.
// POST /api/records
func (h *Handler) ImportRecords(w http.ResponseWriter, r *http.Request) {
	var req ImportRecordsRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	stored, err := h.Store.ListDocuments(ctx)
	if err != nil {
		h.writeServiceError(w, "Failed to list documents", err)
		return
	}
	raw := factory.DatasetJSON{Records: req.Records}
	for _, d := range stored {
		raw.Documents = append(raw.Documents, factory.DocumentJSON{ID: string(d.ID), Number: d.Number})
	}
	raw.Documents = append(raw.Documents, req.Documents...)

	ds, err := h.Factory.BuildDataset(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dataset", err)
		return
	}
	if err := h.storeDataset(r, ds); err != nil {
		h.writeServiceError(w, "Failed to import records", err)
		return
	}

	h.Logger.Info().
		Int("records", len(ds.Records)).
		Int("issues", len(ds.Issues)).
		Msg("records imported")
	writeJSON(w, http.StatusCreated, ImportRecordsResponse{
		Documents: len(ds.Documents) - len(stored),
		Records:   len(ds.Records),
		Issues:    toIssueDTOs(ds.Issues),
	})
}

func (h *Handler) storeDataset(r *http.Request, ds factory.Dataset) error {
	return h.Store.AppendDataset(r.Context(), ds.Documents, ds.Records)
}

// AppendExit adds an exit to a stored record.
// POST /api/records/{id}/exits
func (h *Handler) AppendExit(w http.ResponseWriter, r *http.Request) {
	id := pallet.RecordID(chi.URLParam(r, "id"))
	var req AppendExitRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	snap, err := h.Store.Snapshot(ctx)
	if err != nil {
		h.writeServiceError(w, "Failed to load records", err)
		return
	}
	index := -1
	for _, rec := range snap.Records {
		if rec.ID == id {
			index = len(rec.Exits)
			break
		}
	}
	if index < 0 {
		writeError(w, http.StatusNotFound, "Record not found", pallet.ErrRecordNotFound)
		return
	}

	slot, err := h.Factory.BuildExit(id, index, factory.ExitJSON{
		Slot: req.Slot, Date: req.Date, Units: req.Units, ElapsedDays: req.ElapsedDays,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid exit", err)
		return
	}
	updated, err := h.Store.AppendExit(ctx, id, slot)
	if err != nil {
		h.writeServiceError(w, "Failed to append exit", err)
		return
	}
	if updated.ExitedUnits() > updated.Units {
		h.Logger.Warn().
			Str("record_id", string(id)).
			Int("units", updated.Units).
			Int("exited", updated.ExitedUnits()).
			Msg("exits exceed entry units")
	}
	writeJSON(w, http.StatusCreated, factory.ToJSON(updated))
}

// =============================================================================
// RATES
// =============================================================================

// GetRates returns the tariff in force.
// GET /api/rates
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Service.Rates.Rates(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to load rates", err)
		return
	}
	writeJSON(w, http.StatusOK, toRatesDTO(rates))
}

// UpdateRates replaces the tariff. The next call to any endpoint sees it.
// PUT /api/rates
func (h *Handler) UpdateRates(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.Service.Rates.(pallet.RateStore)
	if !ok {
		writeError(w, http.StatusConflict, "Rates are managed by the rates file", nil)
		return
	}
	var req RatesDTO
	if !h.decode(w, r, &req) {
		return
	}
	rates, err := req.toRateConfig()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rates", err)
		return
	}
	if err := rs.SaveRates(r.Context(), rates); err != nil {
		h.writeServiceError(w, "Failed to save rates", err)
		return
	}
	writeJSON(w, http.StatusOK, toRatesDTO(rates))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func monthParam(w http.ResponseWriter, r *http.Request) (generic.MonthKey, bool) {
	month, err := generic.ParseMonthKey(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return generic.MonthKey{}, false
	}
	return month, true
}

// writeServiceError maps domain errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case pallet.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case pallet.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case pallet.IsClientError(err), errors.Is(err, errUnknownScenario):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeFile(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
