/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the pallet model from the external API contract: dates travel as
  "YYYY-MM-DD", months as "YYYY-MM", money as decimal strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags. Handlers call
  h.validate.Struct before touching the store.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/records.go: RecordJSON, the row format for imports
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/pallet-ledger/factory"
	"github.com/warp/pallet-ledger/pallet"
)

// =============================================================================
// SUMMARIES
// =============================================================================

type EntrySummaryDTO struct {
	Month            string          `json:"month"`
	UnitsA           int             `json:"units_100x120"`
	EquivalentA      int             `json:"equivalent_100x120"`
	UnitsB           int             `json:"units_80x120"`
	FrozenUnits      int             `json:"frozen_units"`
	FrozenEquivalent int             `json:"frozen_equivalent"`
	TotalEquivalent  int             `json:"total_equivalent"`
	NormalCost       decimal.Decimal `json:"normal_cost"`
	FrozenCost       decimal.Decimal `json:"frozen_cost"`
	Cost             decimal.Decimal `json:"cost"`
}

type ExitSummaryDTO struct {
	Month            string          `json:"month"`
	UnitsA           int             `json:"units_100x120"`
	EquivalentA      int             `json:"equivalent_100x120"`
	UnitsB           int             `json:"units_80x120"`
	FrozenUnits      int             `json:"frozen_units"`
	FrozenEquivalent int             `json:"frozen_equivalent"`
	TotalUnits       int             `json:"total_units"`
	NormalCost       decimal.Decimal `json:"normal_cost"`
	FrozenCost       decimal.Decimal `json:"frozen_cost"`
	Cost             decimal.Decimal `json:"cost"`
}

type StorageSummaryDTO struct {
	Month          string          `json:"month"`
	NormalUnitDays int             `json:"normal_unit_days"`
	FrozenUnitDays int             `json:"frozen_unit_days"`
	UnitDays       int             `json:"unit_days"`
	RecordDays     int             `json:"record_days"`
	CoveredDays    int             `json:"covered_days"`
	AverageStock   decimal.Decimal `json:"average_stock"`
	NormalCost     decimal.Decimal `json:"normal_cost"`
	FrozenCost     decimal.Decimal `json:"frozen_cost"`
	Cost           decimal.Decimal `json:"cost"`
}

type TotalsDTO struct {
	EntryEquivalent int             `json:"entry_equivalent"`
	ExitUnits       int             `json:"exit_units"`
	EntryCost       decimal.Decimal `json:"entry_cost"`
	ExitCost        decimal.Decimal `json:"exit_cost"`
	StorageCost     decimal.Decimal `json:"storage_cost"`
	Total           decimal.Decimal `json:"total"`
}

type IssueDTO struct {
	Kind     string `json:"kind"`
	RecordID string `json:"record_id"`
	Slot     string `json:"slot,omitempty"`
	Detail   string `json:"detail"`
}

// SummariesResponse is the body of GET /api/summaries.
type SummariesResponse struct {
	AsOf    string              `json:"as_of"`
	Entries []EntrySummaryDTO   `json:"entries"`
	Exits   []ExitSummaryDTO    `json:"exits"`
	Storage []StorageSummaryDTO `json:"storage"`
	Totals  TotalsDTO           `json:"totals"`
	Issues  []IssueDTO          `json:"issues"`
}

func toSummariesResponse(s pallet.Summaries) SummariesResponse {
	resp := SummariesResponse{
		AsOf:    s.AsOf.String(),
		Entries: make([]EntrySummaryDTO, 0, len(s.Entries)),
		Exits:   make([]ExitSummaryDTO, 0, len(s.Exits)),
		Storage: make([]StorageSummaryDTO, 0, len(s.Storage)),
		Issues:  toIssueDTOs(s.Issues),
	}
	for _, e := range s.Entries {
		resp.Entries = append(resp.Entries, EntrySummaryDTO{
			Month:            e.Month.String(),
			UnitsA:           e.UnitsA,
			EquivalentA:      e.EquivalentA,
			UnitsB:           e.UnitsB,
			FrozenUnits:      e.FrozenUnits,
			FrozenEquivalent: e.FrozenEquivalent,
			TotalEquivalent:  e.TotalEquivalent,
			NormalCost:       e.NormalCost,
			FrozenCost:       e.FrozenCost,
			Cost:             e.Cost,
		})
	}
	for _, x := range s.Exits {
		resp.Exits = append(resp.Exits, ExitSummaryDTO{
			Month:            x.Month.String(),
			UnitsA:           x.UnitsA,
			EquivalentA:      x.EquivalentA,
			UnitsB:           x.UnitsB,
			FrozenUnits:      x.FrozenUnits,
			FrozenEquivalent: x.FrozenEquivalent,
			TotalUnits:       x.TotalUnits,
			NormalCost:       x.NormalCost,
			FrozenCost:       x.FrozenCost,
			Cost:             x.Cost,
		})
	}
	for _, st := range s.Storage {
		resp.Storage = append(resp.Storage, StorageSummaryDTO{
			Month:          st.Month.String(),
			NormalUnitDays: st.NormalUnitDays,
			FrozenUnitDays: st.FrozenUnitDays,
			UnitDays:       st.UnitDays,
			RecordDays:     st.RecordDays,
			CoveredDays:    st.CoveredDays,
			AverageStock:   st.AverageStock,
			NormalCost:     st.NormalCost,
			FrozenCost:     st.FrozenCost,
			Cost:           st.Cost,
		})
	}
	t := s.Totals()
	resp.Totals = TotalsDTO{
		EntryEquivalent: t.EntryEquivalent,
		ExitUnits:       t.ExitUnits,
		EntryCost:       t.EntryCost,
		ExitCost:        t.ExitCost,
		StorageCost:     t.StorageCost,
		Total:           t.Total,
	}
	return resp
}

func toIssueDTOs(issues []pallet.Issue) []IssueDTO {
	out := make([]IssueDTO, 0, len(issues))
	for _, is := range issues {
		out = append(out, IssueDTO{
			Kind:     string(is.Kind),
			RecordID: string(is.RecordID),
			Slot:     is.Slot,
			Detail:   is.Detail,
		})
	}
	return out
}

// =============================================================================
// STORAGE
// =============================================================================

type StorageDetailsDTO struct {
	Month            string `json:"month"`
	Reference        string `json:"reference_date"`
	NormalA          int    `json:"normal_100x120"`
	NormalB          int    `json:"normal_80x120"`
	Normal           int    `json:"normal"`
	EquivalentNormal int    `json:"equivalent_normal"`
	FrozenA          int    `json:"frozen_100x120"`
	FrozenB          int    `json:"frozen_80x120"`
	Frozen           int    `json:"frozen"`
	EquivalentFrozen int    `json:"equivalent_frozen"`
}

func toStorageDetailsDTO(d pallet.StorageDetails) StorageDetailsDTO {
	return StorageDetailsDTO{
		Month:            d.Month.String(),
		Reference:        d.Reference.String(),
		NormalA:          d.NormalA,
		NormalB:          d.NormalB,
		Normal:           d.Normal(),
		EquivalentNormal: d.EquivalentNormal,
		FrozenA:          d.FrozenA,
		FrozenB:          d.FrozenB,
		Frozen:           d.Frozen(),
		EquivalentFrozen: d.EquivalentFrozen,
	}
}

type ProjectionDTO struct {
	Month           string          `json:"month"`
	IsCurrentPeriod bool            `json:"is_current_period"`
	CurrentStock    int             `json:"current_equivalent_stock"`
	DaysRemaining   int             `json:"days_remaining"`
	ProjectedCost   decimal.Decimal `json:"projected_cost"`
}

func toProjectionDTO(p pallet.Projection) ProjectionDTO {
	return ProjectionDTO{
		Month:           p.Month.String(),
		IsCurrentPeriod: p.IsCurrentPeriod,
		CurrentStock:    p.CurrentStock,
		DaysRemaining:   p.DaysRemaining,
		ProjectedCost:   p.ProjectedCost,
	}
}

type StorageLineDTO struct {
	RecordID     string          `json:"record_id"`
	DocumentID   string          `json:"document_id"`
	Geometry     string          `json:"geometry"`
	Frozen       bool            `json:"frozen"`
	From         string          `json:"from"`
	To           string          `json:"to"`
	ActiveDays   int             `json:"active_days"`
	OpeningUnits int             `json:"opening_units"`
	ClosingUnits int             `json:"closing_units"`
	Daily        []int           `json:"daily_equivalent"`
	UnitDays     int             `json:"unit_days"`
	Cost         decimal.Decimal `json:"cost"`
}

func toStorageLineDTOs(lines []pallet.StorageLine) []StorageLineDTO {
	out := make([]StorageLineDTO, 0, len(lines))
	for _, l := range lines {
		p := l.Period()
		out = append(out, StorageLineDTO{
			RecordID:     string(l.RecordID),
			DocumentID:   string(l.DocumentID),
			Geometry:     string(l.Classification.Geometry),
			Frozen:       l.Classification.Frozen,
			From:         p.Start.String(),
			To:           p.End.String(),
			ActiveDays:   l.ActiveDays(),
			OpeningUnits: l.OpeningUnits,
			ClosingUnits: l.ClosingUnits,
			Daily:        l.Daily,
			UnitDays:     l.UnitDays,
			Cost:         l.Cost,
		})
	}
	return out
}

// =============================================================================
// DOCUMENTS & RECORDS
// =============================================================================

type DocumentDTO struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

func toDocumentDTOs(docs []pallet.Document) []DocumentDTO {
	out := make([]DocumentDTO, 0, len(docs))
	for _, d := range docs {
		out = append(out, DocumentDTO{ID: string(d.ID), Number: d.Number})
	}
	return out
}

// CreateDocumentRequest registers a document. The id is generated when
// omitted.
type CreateDocumentRequest struct {
	ID     string `json:"id" validate:"omitempty,max=64"`
	Number string `json:"number" validate:"required,max=128"`
}

// ImportRecordsRequest is a factory dataset. Records may reference stored
// documents by id or by number.
type ImportRecordsRequest struct {
	Documents []factory.DocumentJSON `json:"documents"`
	Records   []factory.RecordJSON   `json:"records" validate:"required,min=1"`
}

type ImportRecordsResponse struct {
	Documents int        `json:"documents"`
	Records   int        `json:"records"`
	Issues    []IssueDTO `json:"issues"`
}

// AppendExitRequest adds an exit to a stored record.
type AppendExitRequest struct {
	Slot        string `json:"slot" validate:"omitempty,max=32"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Units       int    `json:"units" validate:"gt=0"`
	ElapsedDays *int   `json:"elapsed_days" validate:"omitempty,gte=0"`
}

func toRecordDTOs(records []pallet.EntryRecord) []factory.RecordJSON {
	out := make([]factory.RecordJSON, 0, len(records))
	for _, r := range records {
		out = append(out, factory.ToJSON(r))
	}
	return out
}

// =============================================================================
// REPORT
// =============================================================================

type ReportExitDTO struct {
	RecordID    string `json:"record_id"`
	Date        string `json:"date"`
	Units       int    `json:"units"`
	ElapsedDays int    `json:"elapsed_days"`
}

type ReportDTO struct {
	Number           string               `json:"number"`
	Documents        []DocumentDTO        `json:"documents"`
	FallbackMatch    bool                 `json:"fallback_match"`
	Rows             []factory.RecordJSON `json:"rows"`
	TotalEntered     int                  `json:"total_entered"`
	TotalExited      int                  `json:"total_exited"`
	Remaining        int                  `json:"remaining"`
	EquivalentNormal int                  `json:"equivalent_normal"`
	EquivalentFrozen int                  `json:"equivalent_frozen"`
	EntryNormalCost  decimal.Decimal      `json:"entry_normal_cost"`
	EntryFrozenCost  decimal.Decimal      `json:"entry_frozen_cost"`
	EntryCost        decimal.Decimal      `json:"entry_cost"`
	ExitCost         decimal.Decimal      `json:"exit_cost"`
	StorageCost      decimal.Decimal      `json:"storage_cost"`
	TotalCost        decimal.Decimal      `json:"total_cost"`
	Exits            []ReportExitDTO      `json:"exits"`
}

func toReportDTO(rep *pallet.Report) ReportDTO {
	dto := ReportDTO{
		Number:           rep.Number,
		Documents:        toDocumentDTOs(rep.Documents),
		FallbackMatch:    rep.FallbackMatch,
		Rows:             toRecordDTOs(rep.Rows),
		TotalEntered:     rep.TotalEntered,
		TotalExited:      rep.TotalExited,
		Remaining:        rep.Remaining,
		EquivalentNormal: rep.EquivalentNormal,
		EquivalentFrozen: rep.EquivalentFrozen,
		EntryNormalCost:  rep.EntryNormalCost,
		EntryFrozenCost:  rep.EntryFrozenCost,
		EntryCost:        rep.EntryCost,
		ExitCost:         rep.ExitCost,
		StorageCost:      rep.StorageCost,
		TotalCost:        rep.TotalCost(),
		Exits:            make([]ReportExitDTO, 0, len(rep.Exits)),
	}
	for _, x := range rep.Exits {
		dto.Exits = append(dto.Exits, ReportExitDTO{
			RecordID:    string(x.RecordID),
			Date:        x.Date.String(),
			Units:       x.Units,
			ElapsedDays: x.ElapsedDays,
		})
	}
	return dto
}

// =============================================================================
// RATES
// =============================================================================

// RatesDTO is both the response of GET and the body of PUT /api/rates.
type RatesDTO struct {
	EntryRate               string `json:"entry_rate" validate:"required,numeric"`
	ExitRate                string `json:"exit_rate" validate:"required,numeric"`
	StorageRatePerDay       string `json:"storage_rate_per_day" validate:"required,numeric"`
	FrozenRate              string `json:"frozen_rate" validate:"required,numeric"`
	FrozenStorageRatePerDay string `json:"frozen_storage_rate_per_day,omitempty" validate:"omitempty,numeric"`
}

func toRatesDTO(r pallet.RateConfig) RatesDTO {
	dto := RatesDTO{
		EntryRate:         r.EntryRate.String(),
		ExitRate:          r.ExitRate.String(),
		StorageRatePerDay: r.StorageRatePerDay.String(),
		FrozenRate:        r.FrozenRate.String(),
	}
	if r.FrozenStorageRatePerDay.Valid {
		dto.FrozenStorageRatePerDay = r.FrozenStorageRatePerDay.Decimal.String()
	}
	return dto
}

// toRateConfig expects a validated DTO.
func (d RatesDTO) toRateConfig() (pallet.RateConfig, error) {
	var (
		r   pallet.RateConfig
		err error
	)
	if r.EntryRate, err = decimal.NewFromString(d.EntryRate); err != nil {
		return r, err
	}
	if r.ExitRate, err = decimal.NewFromString(d.ExitRate); err != nil {
		return r, err
	}
	if r.StorageRatePerDay, err = decimal.NewFromString(d.StorageRatePerDay); err != nil {
		return r, err
	}
	if r.FrozenRate, err = decimal.NewFromString(d.FrozenRate); err != nil {
		return r, err
	}
	if d.FrozenStorageRatePerDay != "" {
		fs, err := decimal.NewFromString(d.FrozenStorageRatePerDay)
		if err != nil {
			return r, err
		}
		r.FrozenStorageRatePerDay = decimal.NewNullDecimal(fs)
	}
	return r, r.Validate()
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

type LoadScenarioResponse struct {
	Scenario  ScenarioDTO `json:"scenario"`
	Documents int         `json:"documents"`
	Records   int         `json:"records"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
