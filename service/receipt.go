package service

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/kevinaaaquil/library/reports"
)

// ReceiptPDF renders a borrower's loans as a one-table PDF receipt.
func ReceiptPDF(rep reports.BorrowerReport, issuedBy string, at time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(at)
	pdf.SetTitle("Library receipt", true)
	pdf.SetAuthor(issuedBy, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Library Receipt", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, tr("Borrower: "+rep.BorrowerName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, tr("Issued by: "+issuedBy), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Date: "+at.UTC().Format(time.DateOnly), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{70, 30, 30, 35, 25}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Book", "Status", "Staff", "Date", "Fine"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, r := range rep.Records {
		cells := []string{
			tr(r.BookTitle),
			r.Status,
			tr(r.Staff),
			r.Date.UTC().Format(time.DateOnly),
			strconv.Itoa(r.Fine),
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 7, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Borrowed: %d   Returned: %d   Not returned: %d",
		rep.Stats.TotalBorrowed, rep.Stats.Returned, rep.Stats.NotReturned), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Total fine: %d", rep.Stats.TotalFine), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
