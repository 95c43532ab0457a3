package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/warp/pallet-ledger/pallet"
)

// ReportPDF renders a document report: header, cost breakdown, the rows
// bound to the number and the date-sorted exit list.
func ReportPDF(rep *pallet.Report) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("%w: nil report", pallet.ErrDocumentNotFound)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("Document report %s", rep.Number))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	ids := make([]string, 0, len(rep.Documents))
	for _, d := range rep.Documents {
		ids = append(ids, string(d.ID))
	}
	pdf.Cell(0, 6, fmt.Sprintf("Documents: %s", strings.Join(ids, ", ")))
	pdf.Ln(5)
	if rep.FallbackMatch {
		pdf.Cell(0, 6, "Matched by partial number")
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Entered: %d  Exited: %d  Remaining: %d", rep.TotalEntered, rep.TotalExited, rep.Remaining))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Equivalent normal: %d  Equivalent frozen: %d", rep.EquivalentNormal, rep.EquivalentFrozen))
	pdf.Ln(8)

	costs := [][2]string{
		{"Entry (normal)", rep.EntryNormalCost.StringFixed(2)},
		{"Entry (frozen)", rep.EntryFrozenCost.StringFixed(2)},
		{"Entry", rep.EntryCost.StringFixed(2)},
		{"Exit", rep.ExitCost.StringFixed(2)},
		{"Storage", rep.StorageCost.StringFixed(2)},
		{"Total", rep.TotalCost().StringFixed(2)},
	}
	for _, c := range costs {
		pdf.CellFormat(50, 6, c[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, c[1], "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Entry", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Units", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Geometry", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Frozen", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Exited", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Note", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, r := range rep.Rows {
		frozen := ""
		if r.Frozen {
			frozen = "yes"
		}
		pdf.CellFormat(30, 6, r.EntryDate.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", r.Units), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, string(r.Geometry), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, frozen, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", r.ExitedUnits()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(60, 6, truncate(r.Note, 32), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	if len(rep.Exits) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(30, 6, "Exit", "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, "Units", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Days stored", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, x := range rep.Exits {
			pdf.CellFormat(30, 6, x.Date.String(), "1", 0, "C", false, 0, "")
			pdf.CellFormat(20, 6, fmt.Sprintf("%d", x.Units), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", x.ElapsedDays), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
