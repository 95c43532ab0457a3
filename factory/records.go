/*
Package factory converts already-normalized JSON rows into ledger records.

PURPOSE:
  Spreadsheet parsing happens upstream. What arrives here is JSON with ISO
  dates, a geometry label, a free-text note and up to N exit slots. The
  factory classifies each row, parses its dates and builds typed
  pallet.EntryRecord values.

JSON SCHEMA:
  {
    "documents": [{"id": "d-1", "number": "2025/7599"}],
    "records": [
      {
        "id": "r-1",
        "document_id": "d-1",
        "entry_date": "2025-01-10",
        "units": 30,
        "geometry": "100x120",
        "note": "CONGELATO",
        "exits": [
          {"slot": "uscita_1", "date": "2025-01-20", "units": 10, "elapsed_days": 10}
        ]
      }
    ]
  }

  A record may carry "document_number" instead of "document_id": the first
  sighting of a number creates its document, later rows reuse it.

BAD INPUT:
  - entry date unparseable -> record kept with a zero date; the engine
    reports it as invalid_date and skips it
  - exit date unparseable  -> slot kept empty, invalid_date issue here
  - negative units         -> the row is rejected with ErrNegativeUnits

SEE ALSO:
  - pallet/types.go: NewEntryRecord, ExitSlot
  - api/scenarios.go: demo datasets written in this format
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/warp/pallet-ledger/generic"
	"github.com/warp/pallet-ledger/pallet"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// DatasetJSON is a batch of documents and records.
type DatasetJSON struct {
	Documents []DocumentJSON `json:"documents"`
	Records   []RecordJSON   `json:"records"`
}

// DocumentJSON is one business document.
type DocumentJSON struct {
	ID     string `json:"id,omitempty"`
	Number string `json:"number"`
}

// RecordJSON is one ledger row.
type RecordJSON struct {
	ID             string     `json:"id,omitempty"`
	DocumentID     string     `json:"document_id,omitempty"`
	DocumentNumber string     `json:"document_number,omitempty"`
	EntryDate      string     `json:"entry_date"`
	Units          int        `json:"units"`
	Geometry       string     `json:"geometry"`
	Note           string     `json:"note,omitempty"`
	Exits          []ExitJSON `json:"exits,omitempty"`
}

// ExitJSON is one exit slot. An empty date or zero units leaves it inert.
type ExitJSON struct {
	Slot        string `json:"slot,omitempty"`
	Date        string `json:"date,omitempty"`
	Units       int    `json:"units"`
	ElapsedDays *int   `json:"elapsed_days,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

// RecordFactory builds records and documents from JSON.
type RecordFactory struct {
	// NewID generates ids for rows that arrive without one.
	NewID func() string
}

// NewRecordFactory creates a factory generating UUIDs.
func NewRecordFactory() *RecordFactory {
	return &RecordFactory{NewID: uuid.NewString}
}

// Dataset is the typed result of a parse.
type Dataset struct {
	Documents []pallet.Document
	Records   []pallet.EntryRecord
	Issues    []pallet.Issue
}

// Snapshot returns the dataset as an engine snapshot.
func (d Dataset) Snapshot() pallet.Snapshot {
	return pallet.Snapshot{Documents: d.Documents, Records: d.Records}
}

// ParseDataset decodes and builds a whole batch. Rows that cannot become
// records at all abort the batch; recoverable problems are Issues.
func (f *RecordFactory) ParseDataset(data []byte) (Dataset, error) {
	var raw DatasetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Dataset{}, fmt.Errorf("invalid dataset JSON: %w", err)
	}
	return f.BuildDataset(raw)
}

// BuildDataset builds an already decoded batch.
func (f *RecordFactory) BuildDataset(raw DatasetJSON) (Dataset, error) {
	var out Dataset
	byNumber := make(map[string]pallet.DocumentID)
	known := make(map[pallet.DocumentID]bool)

	for _, dj := range raw.Documents {
		doc := f.BuildDocument(dj)
		out.Documents = append(out.Documents, doc)
		known[doc.ID] = true
		if _, ok := byNumber[pallet.NormalizeDocumentNumber(doc.Number)]; !ok {
			byNumber[pallet.NormalizeDocumentNumber(doc.Number)] = doc.ID
		}
	}

	for i, rj := range raw.Records {
		if rj.DocumentID == "" {
			if rj.DocumentNumber == "" {
				return Dataset{}, fmt.Errorf("record %d: document_id or document_number is required", i)
			}
			key := pallet.NormalizeDocumentNumber(rj.DocumentNumber)
			id, ok := byNumber[key]
			if !ok {
				doc := f.BuildDocument(DocumentJSON{Number: rj.DocumentNumber})
				out.Documents = append(out.Documents, doc)
				known[doc.ID] = true
				byNumber[key] = doc.ID
				id = doc.ID
			}
			rj.DocumentID = string(id)
		} else if !known[pallet.DocumentID(rj.DocumentID)] {
			return Dataset{}, fmt.Errorf("record %d: %w: %s", i, pallet.ErrDocumentNotFound, rj.DocumentID)
		}

		rec, issues, err := f.BuildRecord(rj)
		if err != nil {
			return Dataset{}, fmt.Errorf("record %d: %w", i, err)
		}
		out.Records = append(out.Records, rec)
		out.Issues = append(out.Issues, issues...)
	}
	return out, nil
}

// BuildDocument assigns an id when missing.
func (f *RecordFactory) BuildDocument(dj DocumentJSON) pallet.Document {
	id := dj.ID
	if id == "" {
		id = f.NewID()
	}
	return pallet.Document{ID: pallet.DocumentID(id), Number: dj.Number}
}

// BuildRecord classifies the row and parses its dates.
func (f *RecordFactory) BuildRecord(rj RecordJSON) (pallet.EntryRecord, []pallet.Issue, error) {
	id := rj.ID
	if id == "" {
		id = f.NewID()
	}
	rid := pallet.RecordID(id)

	// An unparseable entry date stays zero; the engine reports it.
	entry, err := generic.ParseTimePoint(rj.EntryDate)
	if err != nil {
		entry = generic.TimePoint{}
	}

	var issues []pallet.Issue
	slots := make([]pallet.ExitSlot, 0, len(rj.Exits))
	for i, ej := range rj.Exits {
		slot, issue := buildSlot(rid, i, ej)
		if issue != nil {
			issues = append(issues, *issue)
		}
		slots = append(slots, slot)
	}

	rec, err := pallet.NewEntryRecord(rid, pallet.DocumentID(rj.DocumentID), entry, rj.Units,
		pallet.Classify(rj.Geometry, rj.Note), rj.Note, slots...)
	if err != nil {
		return pallet.EntryRecord{}, nil, err
	}
	return rec, issues, nil
}

// BuildExit builds a single exit slot for appending to an existing record.
// Unlike rows inside a batch, an exit with a bad date is an error here.
func (f *RecordFactory) BuildExit(rid pallet.RecordID, index int, ej ExitJSON) (pallet.ExitSlot, error) {
	if ej.Units < 0 {
		return pallet.ExitSlot{}, fmt.Errorf("%w: exit has %d units", pallet.ErrNegativeUnits, ej.Units)
	}
	slot, issue := buildSlot(rid, index, ej)
	if issue != nil {
		return pallet.ExitSlot{}, issue
	}
	return slot, nil
}

func buildSlot(rid pallet.RecordID, index int, ej ExitJSON) (pallet.ExitSlot, *pallet.Issue) {
	key := ej.Slot
	if key == "" {
		key = SlotKey(index)
	}
	if ej.Date == "" {
		return pallet.EmptySlot(key), nil
	}
	at, err := generic.ParseTimePoint(ej.Date)
	if err != nil {
		return pallet.EmptySlot(key), &pallet.Issue{
			Kind:     pallet.IssueInvalidDate,
			RecordID: rid,
			Slot:     key,
			Detail:   err.Error(),
		}
	}
	return pallet.FilledSlot(key, pallet.ExitEvent{Date: at, Units: ej.Units, ElapsedDays: ej.ElapsedDays}), nil
}

// SlotKey is the default name of the i-th exit slot (0-based).
func SlotKey(i int) string { return fmt.Sprintf("uscita_%d", i+1) }

// =============================================================================
// REVERSE CONVERSION
// =============================================================================

// ToJSON renders a record back into its JSON row.
func ToJSON(r pallet.EntryRecord) RecordJSON {
	geometry := "80x120"
	if r.Geometry == pallet.GeometryA {
		geometry = "100x120"
	}
	out := RecordJSON{
		ID:         string(r.ID),
		DocumentID: string(r.DocumentID),
		EntryDate:  r.EntryDate.String(),
		Units:      r.Units,
		Geometry:   geometry,
		Note:       r.Note,
	}
	for _, s := range r.Exits {
		ej := ExitJSON{Slot: s.Key}
		if ev, ok := s.Event(); ok {
			ej.Date = ev.Date.String()
			ej.Units = ev.Units
			ej.ElapsedDays = ev.ElapsedDays
		}
		out.Exits = append(out.Exits, ej)
	}
	return out
}
