package reports

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/kevinaaaquil/library/models"
)

var historyHeader = []string{"Book Title", "Borrower Name", "Borrower Phone", "Issue Date", "Return Date", "Fine"}

// WriteHistoryCSV writes the returned loans of acct as CSV, one row per loan.
func WriteHistoryCSV(w io.Writer, acct *models.Account) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(historyHeader); err != nil {
		return err
	}
	for _, l := range acct.LoanHistory {
		row := []string{
			l.BookTitle,
			l.BorrowerName,
			l.BorrowerPhone,
			csvDate(l.IssueDate),
			csvDate(l.ReturnDate),
			strconv.Itoa(l.Fine),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format(time.DateOnly)
}
