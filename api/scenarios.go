/*
scenarios.go - Demo datasets for testing and demonstrations

PURPOSE:
  Provides pre-built warehouses that populate the store with realistic
  data. Each scenario is a factory dataset whose dates are placed relative
  to today, so projections and current-month figures always have something
  to show.

AVAILABLE SCENARIOS:
  duplicate-numbers: two documents booked under one number plus a "BIS"
                     variant, exercising report unions and the fallback match
  frozen-mix:        normal and frozen pallets of both geometries in one
                     document, exercising the four billing buckets
  carry-over:        stock carried across three months with partial exits,
                     a future exit, an over-depleted row and a bad date

HOW SCENARIOS WORK:
 1. Reset the store (documents and records; rates are kept)
 2. Build the dataset through factory.RecordFactory
 3. Save documents, append records in one batch

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "frozen-mix"}

NOTE:
	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ImportRecords uses the same factory path
  - factory/records.go: dataset JSON format
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/pallet-ledger/factory"
	"github.com/warp/pallet-ledger/generic"
)

var errUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	build func(today generic.TimePoint) factory.DatasetJSON
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "duplicate-numbers",
			Name:        "Duplicate Document Numbers",
			Description: "Two documents share one number; a third differs by suffix",
		},
		build: duplicateNumbersDataset,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "frozen-mix",
			Name:        "Frozen Mix",
			Description: "Normal and frozen pallets of both footprints in one delivery",
		},
		build: frozenMixDataset,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "carry-over",
			Name:        "Carry-Over",
			Description: "Stock carried across months with partial, future and excess exits",
		},
		build: carryOverDataset,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// day returns day d of the month `back` months before today's month.
func day(today generic.TimePoint, back, d int) string {
	return today.MonthKey().Start().AddMonths(-back).AddDays(d - 1).String()
}

func duplicateNumbersDataset(today generic.TimePoint) factory.DatasetJSON {
	return factory.DatasetJSON{
		Documents: []factory.DocumentJSON{
			{ID: "doc-7599-a", Number: "2025/7599"},
			{ID: "doc-7599-b", Number: "2025/7599"},
			{ID: "doc-7599-bis", Number: "2025/7599 BIS"},
		},
		Records: []factory.RecordJSON{
			{
				ID: "rec-dup-1", DocumentID: "doc-7599-a", EntryDate: day(today, 2, 5),
				Units: 26, Geometry: "100x120", Note: "bancali standard",
				Exits: []factory.ExitJSON{{Date: day(today, 1, 3), Units: 10}},
			},
			{
				ID: "rec-dup-2", DocumentID: "doc-7599-b", EntryDate: day(today, 1, 10),
				Units: 8, Geometry: "80x120",
			},
			{
				ID: "rec-dup-3", DocumentID: "doc-7599-bis", EntryDate: day(today, 1, 12),
				Units: 4, Geometry: "100x120", Note: "CONGELATO",
				Exits: []factory.ExitJSON{{Date: day(today, 1, 20), Units: 4}},
			},
		},
	}
}

func frozenMixDataset(today generic.TimePoint) factory.DatasetJSON {
	return factory.DatasetJSON{
		Records: []factory.RecordJSON{
			{ID: "rec-mix-1", DocumentNumber: "2025/8100", EntryDate: day(today, 1, 2), Units: 20, Geometry: "100x120"},
			{ID: "rec-mix-2", DocumentNumber: "2025/8100", EntryDate: day(today, 1, 2), Units: 6, Geometry: "100x120"},
			{ID: "rec-mix-3", DocumentNumber: "2025/8100", EntryDate: day(today, 1, 2), Units: 12, Geometry: "100x120", Note: "merce CONGELATO -18"},
			{ID: "rec-mix-4", DocumentNumber: "2025/8100", EntryDate: day(today, 1, 2), Units: 6, Geometry: "80x120", Note: "pesce congelato"},
			{ID: "rec-mix-5", DocumentNumber: "2025/8100", EntryDate: day(today, 1, 2), Units: 9, Geometry: "80x120",
				Exits: []factory.ExitJSON{{Date: day(today, 0, 1), Units: 3}}},
		},
	}
}

func carryOverDataset(today generic.TimePoint) factory.DatasetJSON {
	return factory.DatasetJSON{
		Records: []factory.RecordJSON{
			{
				ID: "rec-co-1", DocumentNumber: "2025/9001", EntryDate: day(today, 3, 10),
				Units: 25, Geometry: "100x120",
				Exits: []factory.ExitJSON{
					{Date: day(today, 3, 20), Units: 5},
					{Date: day(today, 2, 15), Units: 10},
					{Date: today.AddDays(5).String(), Units: 5},
				},
			},
			{
				ID: "rec-co-2", DocumentNumber: "2025/9002", EntryDate: day(today, 2, 1),
				Units: 10, Geometry: "80x120",
				Exits: []factory.ExitJSON{
					{Date: day(today, 1, 1), Units: 8},
					{Date: day(today, 1, 5), Units: 6},
				},
			},
			{
				ID: "rec-co-3", DocumentNumber: "2025/9002", EntryDate: "31/02/2025",
				Units: 3, Geometry: "80x120",
			},
		},
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if s, ok := findScenario(current); ok {
		writeJSON(w, http.StatusOK, s.ScenarioDTO)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.loadScenario(r.Context(), req.ScenarioID)
	if err != nil {
		h.writeServiceError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetDatabase removes every document and record. Rates are kept.
// DELETE /api/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeServiceError(w, "Failed to reset store", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	h.Logger.Info().Msg("store reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadScenario(ctx context.Context, id string) (LoadScenarioResponse, error) {
	sc, ok := findScenario(id)
	if !ok {
		return LoadScenarioResponse{}, fmt.Errorf("%w: %q", errUnknownScenario, id)
	}
	if err := h.Store.Reset(ctx); err != nil {
		return LoadScenarioResponse{}, fmt.Errorf("reset store: %w", err)
	}

	ds, err := h.Factory.BuildDataset(sc.build(h.today()))
	if err != nil {
		return LoadScenarioResponse{}, fmt.Errorf("build scenario %s: %w", id, err)
	}
	if err := h.Store.AppendDataset(ctx, ds.Documents, ds.Records); err != nil {
		return LoadScenarioResponse{}, err
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.Logger.Info().
		Str("scenario", id).
		Int("documents", len(ds.Documents)).
		Int("records", len(ds.Records)).
		Msg("scenario loaded")
	return LoadScenarioResponse{
		Scenario:  sc.ScenarioDTO,
		Documents: len(ds.Documents),
		Records:   len(ds.Records),
	}, nil
}
