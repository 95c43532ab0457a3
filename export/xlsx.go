// Package export renders summaries and reports as downloadable files.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/warp/pallet-ledger/pallet"
)

const (
	sheetEntries = "entries"
	sheetExits   = "exits"
	sheetStorage = "storage"
	sheetTotals  = "totals"
)

// SummariesXLSX renders one sheet per summary kind plus a totals sheet.
func SummariesXLSX(s pallet.Summaries) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetEntries); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetExits, sheetStorage, sheetTotals} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("new sheet %s: %w", name, err)
		}
	}

	writeRow(f, sheetEntries, 1, "Month", "Units 100x120", "Equivalent 100x120", "Units 80x120",
		"Frozen units", "Frozen equivalent", "Total equivalent", "Normal cost", "Frozen cost", "Cost")
	for i, e := range s.Entries {
		writeRow(f, sheetEntries, i+2, e.Month.String(), e.UnitsA, e.EquivalentA, e.UnitsB,
			e.FrozenUnits, e.FrozenEquivalent, e.TotalEquivalent,
			e.NormalCost.InexactFloat64(), e.FrozenCost.InexactFloat64(), e.Cost.InexactFloat64())
	}

	writeRow(f, sheetExits, 1, "Month", "Units 100x120", "Equivalent 100x120", "Units 80x120",
		"Frozen units", "Frozen equivalent", "Total units", "Normal cost", "Frozen cost", "Cost")
	for i, x := range s.Exits {
		writeRow(f, sheetExits, i+2, x.Month.String(), x.UnitsA, x.EquivalentA, x.UnitsB,
			x.FrozenUnits, x.FrozenEquivalent, x.TotalUnits,
			x.NormalCost.InexactFloat64(), x.FrozenCost.InexactFloat64(), x.Cost.InexactFloat64())
	}

	writeRow(f, sheetStorage, 1, "Month", "Unit days", "Frozen unit days", "Record days",
		"Covered days", "Average stock", "Normal cost", "Frozen cost", "Cost")
	for i, st := range s.Storage {
		writeRow(f, sheetStorage, i+2, st.Month.String(), st.UnitDays, st.FrozenUnitDays, st.RecordDays,
			st.CoveredDays, st.AverageStock.InexactFloat64(),
			st.NormalCost.InexactFloat64(), st.FrozenCost.InexactFloat64(), st.Cost.InexactFloat64())
	}

	t := s.Totals()
	writeRow(f, sheetTotals, 1, "As of", s.AsOf.String())
	writeRow(f, sheetTotals, 2, "Entry equivalent", t.EntryEquivalent)
	writeRow(f, sheetTotals, 3, "Exit units", t.ExitUnits)
	writeRow(f, sheetTotals, 4, "Entry cost", t.EntryCost.InexactFloat64())
	writeRow(f, sheetTotals, 5, "Exit cost", t.ExitCost.InexactFloat64())
	writeRow(f, sheetTotals, 6, "Storage cost", t.StorageCost.InexactFloat64())
	writeRow(f, sheetTotals, 7, "Total", t.Total.InexactFloat64())
	writeRow(f, sheetTotals, 8, "Issues", len(s.Issues))

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			continue
		}
		_ = f.SetCellValue(sheet, cell, v)
	}
}
